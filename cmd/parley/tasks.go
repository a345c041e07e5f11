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

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/a2aproject/a2a-go/a2a"

	"github.com/kadirpekel/parley/pkg/config"
	"github.com/kadirpekel/parley/pkg/task"
)

// TasksCmd lists the tasks persisted for a conversation.
type TasksCmd struct {
	ContextID string `arg:"" name:"context-id" help:"Conversation context ID."`
}

func (c *TasksCmd) Run(cli *CLI) error {
	ctx := context.Background()

	cfg, loader, err := loadConfig(ctx, cli)
	if err != nil {
		return err
	}
	if loader != nil {
		defer loader.Close()
	}
	if cfg.Tasks.Backend != config.TaskBackendSQL {
		return errors.New("tasks are only persisted with the sql backend")
	}

	dbPool := config.NewDBPool()
	defer dbPool.Close()

	s, err := task.NewFromConfig(ctx, cfg, dbPool)
	if err != nil {
		return err
	}
	store, ok := s.(*task.SQLStore)
	if !ok {
		return fmt.Errorf("task store %T cannot list tasks", s)
	}

	tasks, err := store.ListByContext(ctx, c.ContextID)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		fmt.Printf("No tasks for context %s\n", c.ContextID)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TASK\tSTATE\tMESSAGES\tARTIFACTS")
	for _, t := range tasks {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", t.ID, t.Status.State, len(t.History), artifactNames(t))
	}
	return w.Flush()
}

func artifactNames(t *a2a.Task) string {
	if len(t.Artifacts) == 0 {
		return "-"
	}
	names := ""
	for i, a := range t.Artifacts {
		if i > 0 {
			names += ","
		}
		names += a.Name
	}
	return names
}
