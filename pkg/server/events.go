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
	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
)

// newSubmittedTask builds the task announced on the first turn.
func newSubmittedTask(reqCtx *a2asrv.RequestContext) *a2a.Task {
	return &a2a.Task{
		ID:        reqCtx.TaskID,
		ContextID: reqCtx.ContextID,
		Status:    a2a.TaskStatus{State: a2a.TaskStateSubmitted},
		History:   []*a2a.Message{reqCtx.Message},
	}
}

// newResultArtifact builds the single, complete artifact that carries the
// agent's final answer.
func newResultArtifact(reqCtx *a2asrv.RequestContext, name, description, text string) *a2a.TaskArtifactUpdateEvent {
	event := a2a.NewArtifactEvent(reqCtx, a2a.TextPart{Text: text})
	event.Artifact.Name = name
	event.Artifact.Description = description
	event.Append = false
	event.LastChunk = true
	return event
}

// newStatus builds a status update. An empty text leaves the status without a message.
func newStatus(reqCtx *a2asrv.RequestContext, state a2a.TaskState, text string, final bool) *a2a.TaskStatusUpdateEvent {
	var msg *a2a.Message
	if text != "" {
		msg = a2a.NewMessageForTask(a2a.MessageRoleAgent, reqCtx, a2a.TextPart{Text: text})
	}
	event := a2a.NewStatusUpdateEvent(reqCtx, state, msg)
	event.Final = final
	return event
}
