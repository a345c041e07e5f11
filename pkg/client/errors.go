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

package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/a2aproject/a2a-go/a2a"
)

// ErrIncompleteTurn is returned when a turn's event stream ends before the
// task completed or asked for input.
var ErrIncompleteTurn = errors.New("event stream ended without a terminal status")

// TransportError reports a failure sending a message or consuming its
// event stream. The conversation state is kept so the turn can be retried.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// TaskFailedError reports a task that ended in failed, canceled or rejected.
type TaskFailedError struct {
	TaskID a2a.TaskID
	State  a2a.TaskState
	Text   string
}

func (e *TaskFailedError) Error() string {
	if e.Text == "" {
		return fmt.Sprintf("task %s ended in state %s", e.TaskID, e.State)
	}
	return fmt.Sprintf("task %s ended in state %s: %s", e.TaskID, e.State, e.Text)
}

func isCanceled(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled)
}
