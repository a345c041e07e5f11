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

// Package task persists A2A tasks in SQL databases.
package task

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
)

// Dialects supported by SQLStore.
const (
	DialectPostgres = "postgres"
	DialectMySQL    = "mysql"
	DialectSQLite   = "sqlite"
)

// SQLStore implements a2asrv.TaskStore on a SQL database.
type SQLStore struct {
	db      *sql.DB
	dialect string
	now     func() time.Time
}

type taskRow struct {
	ID            string
	ContextID     string
	StatusJSON    string
	HistoryJSON   string
	ArtifactsJSON string
	MetadataJSON  string
	CreatedAt     int64
	UpdatedAt     int64
}

const (
	createTableSQL = `
CREATE TABLE IF NOT EXISTS parley_tasks (
    id VARCHAR(255) PRIMARY KEY,
    context_id VARCHAR(255) NOT NULL,
    status_json TEXT NOT NULL,
    history_json TEXT,
    artifacts_json TEXT,
    metadata_json TEXT,
    created_at BIGINT NOT NULL,
    updated_at BIGINT NOT NULL
)`

	// MySQL has no IF NOT EXISTS for indexes; duplicates are ignored in initSchema.
	createContextIndexSQL   = `CREATE INDEX idx_parley_tasks_context_id ON parley_tasks(context_id)`
	createUpdatedAtIndexSQL = `CREATE INDEX idx_parley_tasks_updated_at ON parley_tasks(updated_at)`

	selectColumns = `id, context_id, status_json, history_json, artifacts_json, metadata_json, created_at, updated_at`
)

// NewSQLStore creates the task table if needed and returns a store.
// The db handle is shared; SQLStore never closes it.
func NewSQLStore(ctx context.Context, db *sql.DB, dialect string) (*SQLStore, error) {
	if db == nil {
		return nil, errors.New("database connection is required")
	}

	normalized := dialect
	if dialect == "sqlite3" {
		normalized = DialectSQLite
	}
	switch normalized {
	case DialectPostgres, DialectMySQL, DialectSQLite:
	default:
		return nil, fmt.Errorf("unsupported dialect: %s (supported: postgres, mysql, sqlite, sqlite3)", dialect)
	}

	s := &SQLStore{db: db, dialect: normalized, now: time.Now}
	if err := s.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLStore) initSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("failed to create parley_tasks table: %w", err)
	}

	for _, stmt := range []string{createContextIndexSQL, createUpdatedAtIndexSQL} {
		if s.dialect != DialectMySQL {
			stmt = strings.Replace(stmt, "CREATE INDEX", "CREATE INDEX IF NOT EXISTS", 1)
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			if s.dialect == DialectMySQL && strings.Contains(err.Error(), "Duplicate key name") {
				continue
			}
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

// Save inserts or updates a task. The original created_at is kept on update.
func (s *SQLStore) Save(ctx context.Context, task *a2a.Task) error {
	if task == nil {
		return errors.New("task is required")
	}

	row, err := s.taskToRow(task)
	if err != nil {
		return fmt.Errorf("failed to serialize task: %w", err)
	}

	_, err = s.db.ExecContext(ctx, s.rebind(s.upsertSQL()),
		row.ID, row.ContextID, row.StatusJSON,
		row.HistoryJSON, row.ArtifactsJSON, row.MetadataJSON,
		row.CreatedAt, row.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save task %s: %w", task.ID, err)
	}

	slog.Debug("Task saved", "task_id", task.ID, "state", task.Status.State)
	return nil
}

func (s *SQLStore) upsertSQL() string {
	const insert = `
INSERT INTO parley_tasks (id, context_id, status_json, history_json, artifacts_json, metadata_json, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`
	if s.dialect == DialectMySQL {
		return insert + `ON DUPLICATE KEY UPDATE
    context_id = VALUES(context_id),
    status_json = VALUES(status_json),
    history_json = VALUES(history_json),
    artifacts_json = VALUES(artifacts_json),
    metadata_json = VALUES(metadata_json),
    updated_at = VALUES(updated_at)`
	}
	return insert + `ON CONFLICT (id) DO UPDATE SET
    context_id = excluded.context_id,
    status_json = excluded.status_json,
    history_json = excluded.history_json,
    artifacts_json = excluded.artifacts_json,
    metadata_json = excluded.metadata_json,
    updated_at = excluded.updated_at`
}

// Get returns the task with the given ID, or a2a.ErrTaskNotFound.
func (s *SQLStore) Get(ctx context.Context, taskID a2a.TaskID) (*a2a.Task, error) {
	query := s.rebind(`SELECT ` + selectColumns + ` FROM parley_tasks WHERE id = ?`)

	var row taskRow
	err := s.db.QueryRowContext(ctx, query, string(taskID)).Scan(
		&row.ID, &row.ContextID, &row.StatusJSON,
		&row.HistoryJSON, &row.ArtifactsJSON, &row.MetadataJSON,
		&row.CreatedAt, &row.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, a2a.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query task %s: %w", taskID, err)
	}
	return rowToTask(&row)
}

// ListByContext returns the tasks of one conversation, oldest first.
func (s *SQLStore) ListByContext(ctx context.Context, contextID string) ([]*a2a.Task, error) {
	query := s.rebind(`SELECT ` + selectColumns + ` FROM parley_tasks WHERE context_id = ? ORDER BY created_at, id`)

	rows, err := s.db.QueryContext(ctx, query, contextID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks for context %s: %w", contextID, err)
	}
	defer rows.Close()

	var tasks []*a2a.Task
	for rows.Next() {
		var row taskRow
		if err := rows.Scan(
			&row.ID, &row.ContextID, &row.StatusJSON,
			&row.HistoryJSON, &row.ArtifactsJSON, &row.MetadataJSON,
			&row.CreatedAt, &row.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		task, err := rowToTask(&row)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// rebind rewrites ? placeholders as $n for postgres.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) taskToRow(task *a2a.Task) (*taskRow, error) {
	statusJSON, err := json.Marshal(task.Status)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal status: %w", err)
	}
	historyJSON, err := marshalOr(task.History, len(task.History) == 0, "[]")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal history: %w", err)
	}
	artifactsJSON, err := marshalOr(task.Artifacts, len(task.Artifacts) == 0, "[]")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal artifacts: %w", err)
	}
	metadataJSON, err := marshalOr(task.Metadata, len(task.Metadata) == 0, "{}")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	now := s.now().UnixMilli()
	return &taskRow{
		ID:            string(task.ID),
		ContextID:     task.ContextID,
		StatusJSON:    string(statusJSON),
		HistoryJSON:   historyJSON,
		ArtifactsJSON: artifactsJSON,
		MetadataJSON:  metadataJSON,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func marshalOr(v any, empty bool, fallback string) (string, error) {
	if empty {
		return fallback, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func rowToTask(row *taskRow) (*a2a.Task, error) {
	task := &a2a.Task{
		ID:        a2a.TaskID(row.ID),
		ContextID: row.ContextID,
	}

	if row.StatusJSON == "" {
		return nil, fmt.Errorf("task %s has no status", row.ID)
	}
	if err := json.Unmarshal([]byte(row.StatusJSON), &task.Status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status: %w", err)
	}
	if row.HistoryJSON != "" && row.HistoryJSON != "[]" {
		if err := json.Unmarshal([]byte(row.HistoryJSON), &task.History); err != nil {
			return nil, fmt.Errorf("failed to unmarshal history: %w", err)
		}
	}
	if row.ArtifactsJSON != "" && row.ArtifactsJSON != "[]" {
		if err := json.Unmarshal([]byte(row.ArtifactsJSON), &task.Artifacts); err != nil {
			return nil, fmt.Errorf("failed to unmarshal artifacts: %w", err)
		}
	}
	if row.MetadataJSON != "" && row.MetadataJSON != "{}" {
		if err := json.Unmarshal([]byte(row.MetadataJSON), &task.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return task, nil
}

var _ a2asrv.TaskStore = (*SQLStore)(nil)
