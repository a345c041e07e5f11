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

package server

import (
	"errors"
	"fmt"

	"github.com/a2aproject/a2a-go/a2a"
)

var (
	// ErrMissingMessage is returned when a request carries no user message.
	ErrMissingMessage = errors.New("request has no message")

	// ErrIncompleteStream is returned when the agent stream ends without
	// completing the task or asking for input.
	ErrIncompleteStream = errors.New("agent stream ended without completion or input request")

	// ErrUnsupportedOperation is returned by Cancel. It wraps the SDK sentinel
	// so the transport reports the protocol's unsupported-operation code.
	ErrUnsupportedOperation = fmt.Errorf("task cancellation: %w", a2a.ErrUnsupportedOperation)
)
