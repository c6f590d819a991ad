package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/supporttools/GoDBVault/pkg/metrics"
)

// Fn is the body of a task. It returns the result payload recorded on
// success. The context is owned by the runner, not the submitter.
type Fn func(ctx context.Context) (map[string]any, error)

// Runner executes submitted tasks on their own goroutines and tracks their
// status in memory. When a history path is configured, the task table is
// snapshotted to disk after every transition so history survives restarts.
type Runner struct {
	mu          sync.RWMutex
	tasks       map[string]*Task
	historyPath string
	wg          sync.WaitGroup
}

// NewRunner creates a task runner. historyPath may be empty to keep task
// history purely in memory.
func NewRunner(historyPath string) *Runner {
	r := &Runner{
		tasks:       make(map[string]*Task),
		historyPath: historyPath,
	}

	if historyPath != "" {
		if err := r.load(); err != nil {
			log.Printf("Warning: could not load task history, starting fresh: %v", err)
		}
	}

	return r
}

// Submit registers a task and starts it on its own goroutine. The returned
// id is available immediately; the task itself runs out of band. A failing
// task records its error and never crashes the runner.
func (r *Runner) Submit(kind Kind, fn Fn) string {
	id := uuid.New().String()
	task := &Task{
		ID:        id,
		Kind:      kind,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}

	r.mu.Lock()
	r.tasks[id] = task
	r.save()
	r.mu.Unlock()

	r.wg.Add(1)
	go r.run(id, kind, fn)

	return id
}

// run executes one task and records its terminal state.
func (r *Runner) run(id string, kind Kind, fn Fn) {
	defer r.wg.Done()

	metrics.ActiveTasks.WithLabelValues(string(kind)).Inc()
	defer metrics.ActiveTasks.WithLabelValues(string(kind)).Dec()

	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("Task %s panicked: %v", id, rec)
			r.finish(id, nil, fmt.Sprintf("panic: %v", rec))
		}
	}()

	r.transition(id, StatusRunning)

	result, err := fn(context.Background())
	if err != nil {
		log.Printf("Task %s (%s) failed: %v", id, kind, err)
		r.finish(id, nil, err.Error())
		return
	}

	r.finish(id, result, "")
}

// Get returns a copy of the task with the given id.
func (r *Runner) Get(id string) (Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	task, ok := r.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *task, true
}

// List returns all known tasks, newest first.
func (r *Runner) List() []Task {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Task, 0, len(r.tasks))
	for _, task := range r.tasks {
		result = append(result, *task)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result
}

// Wait blocks until every submitted task has reached a terminal state. Used
// to drain in-flight work at shutdown.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// transition moves a task to a non-terminal status.
func (r *Runner) transition(id string, status Status) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if task, ok := r.tasks[id]; ok {
		task.Status = status
		r.save()
	}
}

// finish records a task's terminal state: succeeded with a result, or failed
// with an error message.
func (r *Runner) finish(id string, result map[string]any, errMsg string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[id]
	if !ok {
		return
	}

	if errMsg != "" {
		task.Status = StatusFailed
		task.Error = errMsg
	} else {
		task.Status = StatusSucceeded
		task.Result = result
	}
	task.CompletedAt = time.Now()
	r.save()
}

// history is the on-disk snapshot shape.
type history struct {
	Tasks       []Task    `json:"tasks"`
	LastUpdated time.Time `json:"lastUpdated"`
	Version     string    `json:"version"`
}

// save snapshots the task table to the history path. Callers hold the lock.
// Snapshot failures are logged, never fatal: history is a convenience, the
// in-memory table stays authoritative.
func (r *Runner) save() {
	if r.historyPath == "" {
		return
	}

	snapshot := history{
		Tasks:       make([]Task, 0, len(r.tasks)),
		LastUpdated: time.Now(),
		Version:     "1.0",
	}
	for _, task := range r.tasks {
		snapshot.Tasks = append(snapshot.Tasks, *task)
	}
	sort.Slice(snapshot.Tasks, func(i, j int) bool {
		return snapshot.Tasks[i].CreatedAt.Before(snapshot.Tasks[j].CreatedAt)
	})

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		log.Printf("Warning: failed to marshal task history: %v", err)
		return
	}

	if err := os.MkdirAll(filepath.Dir(r.historyPath), 0755); err != nil {
		log.Printf("Warning: failed to create task history directory: %v", err)
		return
	}

	// Write-then-rename so a crash mid-write never truncates the snapshot.
	tmpPath := r.historyPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		log.Printf("Warning: failed to write task history: %v", err)
		return
	}
	if err := os.Rename(tmpPath, r.historyPath); err != nil {
		log.Printf("Warning: failed to replace task history: %v", err)
	}
}

// load restores the task table from the history path. Tasks that were still
// pending or running when the process stopped are marked failed: their
// goroutines did not survive the restart.
func (r *Runner) load() error {
	data, err := os.ReadFile(r.historyPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read task history: %w", err)
	}

	var snapshot history
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return fmt.Errorf("failed to parse task history: %w", err)
	}

	for i := range snapshot.Tasks {
		task := snapshot.Tasks[i]
		if !task.Status.Terminal() {
			task.Status = StatusFailed
			task.Error = "interrupted by restart"
		}
		r.tasks[task.ID] = &task
	}

	log.Printf("Loaded %d task records from %s", len(snapshot.Tasks), r.historyPath)
	return nil
}
