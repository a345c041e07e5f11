// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package server exposes an agent.Agent over the A2A protocol.
//
// The Executor turns an agent's step stream into A2A task events:
//
//	Progress(text)       -> status working (not final)
//	InputRequired(text)  -> status input-required (final for this turn)
//	Complete(text)       -> artifact update, then status completed (final)
//
// A client answering an input-required status sends its reply with the
// same task ID, and the executor runs the agent again against the stored
// task. Conversation state beyond the task itself is the agent's business.
//
// HTTPServer hosts the executor over JSON-RPC (and optionally gRPC) using
// the a2a-go SDK, with the agent card served from the well-known path.
package server
