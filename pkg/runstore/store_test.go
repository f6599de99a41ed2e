package runstore

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/harun/mofflow/pkg/workflow"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "runs.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleRun(id string, createdAt time.Time) *Run {
	return &Run{
		ID:       id,
		ThreadID: "thread-1",
		Request:  "find a copper MOF",
		Terminal: "completed",
		Plan:     []string{"search_mof_db", "optimize_structure_ase"},
		Results: []workflow.StepResult{
			{StepIndex: 0, ToolName: "search_mof_db", Payload: map[string]interface{}{"mof_name": "HKUST-1"}},
			{StepIndex: 1, ToolName: "optimize_structure_ase", IsError: true, Payload: map[string]interface{}{"error": "crashed"}},
		},
		Report:    "# Workflow Report",
		CreatedAt: createdAt,
	}
}

func TestStore_SaveAndGet(t *testing.T) {
	store := testStore(t)
	run := sampleRun("run-1", time.Now().UTC())

	require.NoError(t, store.Save(run))

	got, err := store.Get("run-1")
	require.NoError(t, err)
	assert.Equal(t, run.Request, got.Request)
	assert.Equal(t, run.Terminal, got.Terminal)
	assert.Equal(t, run.Plan, got.Plan)
	require.Len(t, got.Results, 2)
	assert.Equal(t, "step_0_search_mof_db", got.Results[0].Key())
	assert.True(t, got.Results[1].IsError)
	assert.Equal(t, run.Report, got.Report)
}

func TestStore_GetMissing(t *testing.T) {
	store := testStore(t)

	_, err := store.Get("nope")

	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestStore_DuplicateIDRejected(t *testing.T) {
	store := testStore(t)
	run := sampleRun("run-1", time.Now().UTC())

	require.NoError(t, store.Save(run))
	assert.Error(t, store.Save(run))
}

func TestStore_ListRecent(t *testing.T) {
	store := testStore(t)
	now := time.Now().UTC()

	require.NoError(t, store.Save(sampleRun("old", now.Add(-2*time.Hour))))
	require.NoError(t, store.Save(sampleRun("new", now)))

	runs, err := store.ListRecent(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "new", runs[0].ID)
	assert.Equal(t, "old", runs[1].ID)
}

func TestStore_DeleteOlderThan(t *testing.T) {
	store := testStore(t)
	now := time.Now().UTC()

	require.NoError(t, store.Save(sampleRun("stale", now.Add(-48*time.Hour))))
	require.NoError(t, store.Save(sampleRun("fresh", now)))

	deleted, err := store.DeleteOlderThan(now.Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = store.Get("stale")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	_, err = store.Get("fresh")
	assert.NoError(t, err)
}

func TestRetention_RejectsDoubleStart(t *testing.T) {
	store := testStore(t)
	retention := NewRetention(store, time.Hour, "@hourly", zerolog.Nop())

	require.NoError(t, retention.Start())
	defer retention.Stop()

	assert.Error(t, retention.Start())
}

func TestRetention_InvalidSchedule(t *testing.T) {
	store := testStore(t)
	retention := NewRetention(store, time.Hour, "not a schedule", zerolog.Nop())

	assert.Error(t, retention.Start())
}
