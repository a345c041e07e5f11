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

package task

import (
	"context"
	"errors"
	"fmt"

	"github.com/a2aproject/a2a-go/a2asrv"

	"github.com/kadirpekel/parley/pkg/config"
)

// NewFromConfig creates the task store described by cfg.Tasks.
// It returns nil for the memory backend; a2a-go then keeps tasks in memory.
//
// Example config:
//
//	tasks:
//	  backend: sql
//	  database:
//	    driver: sqlite
//	    database: ./.parley/tasks.db
func NewFromConfig(ctx context.Context, cfg *config.Config, pool *config.DBPool) (a2asrv.TaskStore, error) {
	tasks := cfg.Tasks
	switch tasks.Backend {
	case "", config.TaskBackendMemory:
		return nil, nil
	case config.TaskBackendSQL:
	default:
		return nil, fmt.Errorf("unknown tasks backend: %s", tasks.Backend)
	}

	if pool == nil {
		return nil, errors.New("DBPool is required for the sql task backend")
	}
	if tasks.Database == nil {
		return nil, errors.New("tasks.database is required for the sql task backend")
	}

	db, err := pool.Get(ctx, tasks.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}
	store, err := NewSQLStore(ctx, db, tasks.Database.Dialect())
	if err != nil {
		return nil, err
	}
	return store, nil
}
