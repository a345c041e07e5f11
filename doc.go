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

// Package parley hosts task-oriented A2A agents and drives multi-turn
// conversations with them.
//
// The server side (pkg/server) maps an agent's step stream onto the A2A task
// lifecycle: a submitted task, working updates for progress, input-required
// when the agent needs more information, and a result artifact followed by
// completed. Tasks live in memory or in SQL (pkg/task).
//
// The client side (pkg/client) sends a query, tracks the task and context
// IDs from whatever events arrive, and answers input-required questions
// through a Prompter until the task completes.
//
// # Quick Start
//
// Serve the built-in weather agent and talk to it:
//
//	go install github.com/kadirpekel/parley/cmd/parley@latest
//	parley serve
//	parley chat --url http://localhost:8080
//
// Agents are scripted from a YAML rules file (pkg/agent/scripted) or run out
// of process as go-plugin binaries (pkg/agent/plugin).
package parley
