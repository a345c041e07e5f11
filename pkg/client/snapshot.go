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
	"slices"
	"strings"

	"github.com/a2aproject/a2a-go/a2a"
)

// Snapshot folds a turn's events into the latest view of its task.
type Snapshot struct {
	task *a2a.Task
}

// Apply folds one event into the snapshot.
func (s *Snapshot) Apply(event a2a.Event) {
	switch ev := event.(type) {
	case *a2a.Task:
		cp := *ev
		cp.Artifacts = slices.Clone(ev.Artifacts)
		s.task = &cp

	case *a2a.TaskStatusUpdateEvent:
		t := s.ensure(ev.TaskID, ev.ContextID)
		t.Status = ev.Status

	case *a2a.TaskArtifactUpdateEvent:
		t := s.ensure(ev.TaskID, ev.ContextID)
		if ev.Artifact == nil {
			return
		}
		if ev.Append {
			for i, existing := range t.Artifacts {
				if existing.ID == ev.Artifact.ID {
					// Events are shared with observers; extend a copy.
					merged := *existing
					merged.Parts = append(slices.Clone(existing.Parts), ev.Artifact.Parts...)
					t.Artifacts[i] = &merged
					return
				}
			}
		}
		artifact := *ev.Artifact
		artifact.Parts = slices.Clone(ev.Artifact.Parts)
		t.Artifacts = append(t.Artifacts, &artifact)

	case *a2a.Message:
		t := s.ensure(ev.TaskID, ev.ContextID)
		t.Status.Message = ev
	}
}

func (s *Snapshot) ensure(taskID a2a.TaskID, contextID string) *a2a.Task {
	if s.task == nil {
		s.task = &a2a.Task{ID: taskID, ContextID: contextID}
	}
	if s.task.ID == "" {
		s.task.ID = taskID
	}
	if s.task.ContextID == "" {
		s.task.ContextID = contextID
	}
	return s.task
}

// Task returns the folded task, nil before any event.
func (s *Snapshot) Task() *a2a.Task {
	return s.task
}

// State returns the current task state, empty before any status.
func (s *Snapshot) State() a2a.TaskState {
	if s.task == nil {
		return ""
	}
	return s.task.Status.State
}

// StatusText returns the text of the current status message.
func (s *Snapshot) StatusText() string {
	if s.task == nil || s.task.Status.Message == nil {
		return ""
	}
	return partsText(s.task.Status.Message.Parts)
}

// LastArtifactText returns the text of the most recent artifact.
func (s *Snapshot) LastArtifactText() string {
	if s.task == nil || len(s.task.Artifacts) == 0 {
		return ""
	}
	return partsText(s.task.Artifacts[len(s.task.Artifacts)-1].Parts)
}

func partsText(parts []a2a.Part) string {
	var b strings.Builder
	for _, p := range parts {
		switch tp := p.(type) {
		case a2a.TextPart:
			b.WriteString(tp.Text)
		case *a2a.TextPart:
			b.WriteString(tp.Text)
		}
	}
	return b.String()
}
