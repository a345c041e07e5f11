package task

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/kadirpekel/parley/pkg/config"
)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	store, err := NewSQLStore(context.Background(), db, "sqlite")
	require.NoError(t, err)
	return store
}

func sampleTask(id, contextID string, state a2a.TaskState) *a2a.Task {
	return &a2a.Task{
		ID:        a2a.TaskID(id),
		ContextID: contextID,
		Status:    a2a.TaskStatus{State: state},
		History: []*a2a.Message{
			a2a.NewMessage(a2a.MessageRoleUser, a2a.TextPart{Text: "weather in Paris?"}),
		},
	}
}

func TestSQLStore_SaveAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	task := sampleTask("task-1", "ctx-1", a2a.TaskStateWorking)
	task.Artifacts = []*a2a.Artifact{{
		ID:    "art-1",
		Name:  "result",
		Parts: []a2a.Part{a2a.TextPart{Text: "sunny"}},
	}}
	task.Metadata = map[string]any{"source": "test"}
	require.NoError(t, store.Save(ctx, task))

	got, err := store.Get(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskID("task-1"), got.ID)
	assert.Equal(t, "ctx-1", got.ContextID)
	assert.Equal(t, a2a.TaskStateWorking, got.Status.State)
	require.Len(t, got.History, 1)
	require.Len(t, got.Artifacts, 1)
	assert.Equal(t, "result", got.Artifacts[0].Name)
	assert.Equal(t, "test", got.Metadata["source"])
}

func TestSQLStore_GetUnknown(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, a2a.ErrTaskNotFound)
}

func TestSQLStore_UpsertKeepsCreatedAt(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.UnixMilli(1_700_000_000_000)
	store.now = func() time.Time { return now }

	task := sampleTask("task-1", "ctx-1", a2a.TaskStateSubmitted)
	require.NoError(t, store.Save(ctx, task))

	now = now.Add(time.Minute)
	task.Status.State = a2a.TaskStateInputRequired
	require.NoError(t, store.Save(ctx, task))

	got, err := store.Get(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateInputRequired, got.Status.State)

	var created, updated int64
	require.NoError(t, store.db.QueryRow(
		`SELECT created_at, updated_at FROM parley_tasks WHERE id = ?`, "task-1",
	).Scan(&created, &updated))
	assert.Equal(t, int64(1_700_000_000_000), created)
	assert.Equal(t, int64(1_700_000_060_000), updated)
}

func TestSQLStore_ListByContext(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.UnixMilli(1_700_000_000_000)
	store.now = func() time.Time { return now }

	for _, id := range []string{"task-b", "task-a"} {
		require.NoError(t, store.Save(ctx, sampleTask(id, "ctx-1", a2a.TaskStateCompleted)))
		now = now.Add(time.Second)
	}
	require.NoError(t, store.Save(ctx, sampleTask("task-c", "ctx-2", a2a.TaskStateCompleted)))

	tasks, err := store.ListByContext(ctx, "ctx-1")
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, a2a.TaskID("task-b"), tasks[0].ID)
	assert.Equal(t, a2a.TaskID("task-a"), tasks[1].ID)

	tasks, err = store.ListByContext(ctx, "ctx-unknown")
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestSQLStore_SchemaIsIdempotent(t *testing.T) {
	store := newTestStore(t)

	_, err := NewSQLStore(context.Background(), store.db, "sqlite3")
	assert.NoError(t, err)
}

func TestNewSQLStore_Errors(t *testing.T) {
	_, err := NewSQLStore(context.Background(), nil, "sqlite")
	assert.ErrorContains(t, err, "database connection is required")

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()
	_, err = NewSQLStore(context.Background(), db, "oracle")
	assert.ErrorContains(t, err, "unsupported dialect: oracle")
}

func TestSQLStore_Rebind(t *testing.T) {
	pg := &SQLStore{dialect: DialectPostgres}
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", pg.rebind("SELECT * FROM t WHERE a = ? AND b = ?"))

	lite := &SQLStore{dialect: DialectSQLite}
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))
}

func TestNewFromConfig(t *testing.T) {
	ctx := context.Background()
	pool := config.NewDBPool()
	t.Cleanup(func() { pool.Close() })

	t.Run("memory", func(t *testing.T) {
		cfg := config.Default()
		store, err := NewFromConfig(ctx, cfg, pool)
		require.NoError(t, err)
		assert.Nil(t, store)
	})

	t.Run("sql", func(t *testing.T) {
		cfg := config.Default()
		cfg.Tasks.Backend = config.TaskBackendSQL
		cfg.Tasks.Database = &config.DatabaseConfig{Driver: config.DriverSQLite, Database: ":memory:"}
		cfg.Tasks.Database.SetDefaults()

		store, err := NewFromConfig(ctx, cfg, pool)
		require.NoError(t, err)
		require.IsType(t, &SQLStore{}, store)

		require.NoError(t, store.Save(ctx, sampleTask("task-1", "ctx-1", a2a.TaskStateCompleted)))
		got, err := store.Get(ctx, "task-1")
		require.NoError(t, err)
		assert.Equal(t, a2a.TaskStateCompleted, got.Status.State)
	})

	t.Run("sql without pool", func(t *testing.T) {
		cfg := config.Default()
		cfg.Tasks.Backend = config.TaskBackendSQL
		cfg.Tasks.Database = &config.DatabaseConfig{Driver: config.DriverSQLite, Database: ":memory:"}

		_, err := NewFromConfig(ctx, cfg, nil)
		assert.ErrorContains(t, err, "DBPool is required")
	})

	t.Run("unknown backend", func(t *testing.T) {
		cfg := config.Default()
		cfg.Tasks.Backend = "redis"

		_, err := NewFromConfig(ctx, cfg, pool)
		assert.ErrorContains(t, err, "unknown tasks backend")
	})
}
