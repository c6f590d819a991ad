package tasks

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitRunsTaskToCompletion(t *testing.T) {
	runner := NewRunner("")

	id := runner.Submit(KindBackup, func(ctx context.Context) (map[string]any, error) {
		return map[string]any{"status": "success", "filename": "mysql_appdb_20240301_100000.sql"}, nil
	})
	require.NotEmpty(t, id)
	runner.Wait()

	task, ok := runner.Get(id)
	require.True(t, ok)
	assert.Equal(t, KindBackup, task.Kind)
	assert.Equal(t, StatusSucceeded, task.Status)
	assert.Equal(t, "mysql_appdb_20240301_100000.sql", task.Result["filename"])
	assert.Empty(t, task.Error)
	assert.False(t, task.CreatedAt.IsZero())
	assert.False(t, task.CompletedAt.IsZero())
}

func TestSubmitRecordsFailure(t *testing.T) {
	runner := NewRunner("")

	id := runner.Submit(KindRestore, func(ctx context.Context) (map[string]any, error) {
		return nil, errors.New("artifact not found: absent.sql")
	})
	runner.Wait()

	task, ok := runner.Get(id)
	require.True(t, ok)
	assert.Equal(t, StatusFailed, task.Status)
	assert.Equal(t, "artifact not found: absent.sql", task.Error)
	assert.Nil(t, task.Result)
}

func TestPanicBecomesTaskFailure(t *testing.T) {
	runner := NewRunner("")

	id := runner.Submit(KindExport, func(ctx context.Context) (map[string]any, error) {
		panic("exporter blew up")
	})
	runner.Wait()

	task, ok := runner.Get(id)
	require.True(t, ok)
	assert.Equal(t, StatusFailed, task.Status)
	assert.Contains(t, task.Error, "panic: exporter blew up")
}

func TestGetUnknownTask(t *testing.T) {
	runner := NewRunner("")

	_, ok := runner.Get("no-such-id")
	assert.False(t, ok)
}

func TestListNewestFirst(t *testing.T) {
	runner := NewRunner("")
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	runner.tasks["a"] = &Task{ID: "a", Kind: KindBackup, Status: StatusSucceeded, CreatedAt: base}
	runner.tasks["b"] = &Task{ID: "b", Kind: KindBackup, Status: StatusSucceeded, CreatedAt: base.Add(time.Minute)}
	runner.tasks["c"] = &Task{ID: "c", Kind: KindBackup, Status: StatusSucceeded, CreatedAt: base.Add(2 * time.Minute)}

	listed := runner.List()
	require.Len(t, listed, 3)
	assert.Equal(t, "c", listed[0].ID)
	assert.Equal(t, "b", listed[1].ID)
	assert.Equal(t, "a", listed[2].ID)
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusRunning.Terminal())
	assert.True(t, StatusSucceeded.Terminal())
	assert.True(t, StatusFailed.Terminal())
}

func TestHistorySurvivesRestart(t *testing.T) {
	historyPath := filepath.Join(t.TempDir(), "tasks.json")

	runner := NewRunner(historyPath)
	id := runner.Submit(KindBackup, func(ctx context.Context) (map[string]any, error) {
		return map[string]any{"status": "success", "filename": "a.sql"}, nil
	})
	runner.Wait()

	restarted := NewRunner(historyPath)
	task, ok := restarted.Get(id)
	require.True(t, ok)
	assert.Equal(t, StatusSucceeded, task.Status)
	assert.Equal(t, "a.sql", task.Result["filename"])
}

func TestInterruptedTasksFailOnLoad(t *testing.T) {
	historyPath := filepath.Join(t.TempDir(), "tasks.json")
	snapshot := `{
  "tasks": [
    {"id": "t1", "kind": "backup", "status": "running", "createdAt": "2024-03-01T10:00:00Z"},
    {"id": "t2", "kind": "restore", "status": "succeeded", "createdAt": "2024-03-01T09:00:00Z"}
  ],
  "lastUpdated": "2024-03-01T10:00:05Z",
  "version": "1.0"
}`
	require.NoError(t, os.WriteFile(historyPath, []byte(snapshot), 0o644))

	runner := NewRunner(historyPath)

	interrupted, ok := runner.Get("t1")
	require.True(t, ok)
	assert.Equal(t, StatusFailed, interrupted.Status)
	assert.Equal(t, "interrupted by restart", interrupted.Error)

	finished, ok := runner.Get("t2")
	require.True(t, ok)
	assert.Equal(t, StatusSucceeded, finished.Status)
	assert.Empty(t, finished.Error)
}

func TestCorruptHistoryStartsFresh(t *testing.T) {
	historyPath := filepath.Join(t.TempDir(), "tasks.json")
	require.NoError(t, os.WriteFile(historyPath, []byte("{not json"), 0o644))

	runner := NewRunner(historyPath)
	assert.Empty(t, runner.List())

	// The runner still accepts and persists new work.
	id := runner.Submit(KindBackup, func(ctx context.Context) (map[string]any, error) {
		return map[string]any{"status": "success"}, nil
	})
	runner.Wait()

	task, ok := runner.Get(id)
	require.True(t, ok)
	assert.Equal(t, StatusSucceeded, task.Status)
}
