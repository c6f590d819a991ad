// Package tasks runs backup, restore, export, and import jobs out of band
// and tracks their status for the API to query.
package tasks

import (
	"time"
)

// Kind identifies the operation a task performs.
type Kind string

const (
	// KindBackup dumps a database and uploads the artifact
	KindBackup Kind = "backup"
	// KindRestore replays a stored artifact into a database
	KindRestore Kind = "restore"
	// KindExport streams one table to a flat file in storage
	KindExport Kind = "export"
	// KindImport loads a stored flat file into one table
	KindImport Kind = "import"
)

// Status represents the lifecycle state of a task.
type Status string

const (
	// StatusPending indicates a task accepted but not yet started
	StatusPending Status = "pending"
	// StatusRunning indicates a task currently executing
	StatusRunning Status = "running"
	// StatusSucceeded indicates a task that completed with a result
	StatusSucceeded Status = "succeeded"
	// StatusFailed indicates a task that ended with an error
	StatusFailed Status = "failed"
)

// Terminal reports whether the status is final. Terminal tasks never
// transition again.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Task records one submitted operation. The result payload is opaque to the
// runner; each kind defines its own shape.
type Task struct {
	ID          string         `json:"id"`
	Kind        Kind           `json:"kind"`
	Status      Status         `json:"status"`
	Result      map[string]any `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	CompletedAt time.Time      `json:"completedAt"`
}
