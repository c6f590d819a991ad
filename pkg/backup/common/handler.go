// Package common defines the contract shared by the per-engine backup
// handlers and the registry they announce themselves into.
package common

import (
	"context"
	"fmt"
	"strings"

	"github.com/supporttools/GoDBVault/pkg/dbtypes"
)

// Progress phase names reported while a backup moves through its stages.
const (
	PhaseStarting  = "Starting Backup"
	PhaseDumping   = "Dumping"
	PhaseUploading = "Uploading to Storage"
	PhaseCompleted = "Completed"
)

// Update is a single progress report. Bytes carries the dump file size
// observed so far and is zero for phase-only updates.
type Update struct {
	Phase string
	Bytes int64
}

// ProgressFunc receives progress updates. It may be called from a goroutine
// other than the caller's; a nil ProgressFunc disables reporting.
type ProgressFunc func(Update)

// Handler dumps and restores one engine by driving its native command-line
// tooling. SQL handlers pass credentials through the subprocess environment;
// MongoDB's tools have no such mechanism and take them in the connection URI.
type Handler interface {
	// Engine returns the engine this handler serves.
	Engine() dbtypes.EngineType

	// FileExtension returns the artifact suffix, dot included.
	FileExtension() string

	// Backup writes a dump of the configured database to targetPath,
	// reporting the growing file size through progress when non-nil.
	Backup(ctx context.Context, targetPath string, progress ProgressFunc) error

	// Restore replays the dump at sourcePath into the configured database.
	Restore(ctx context.Context, sourcePath string) error
}

// ToolError reports a dump tool that exited non-zero, carrying the tool's
// diagnostic output so the failure is actionable without shell access.
type ToolError struct {
	Engine dbtypes.EngineType
	Tool   string
	Output string
}

func (e *ToolError) Error() string {
	out := strings.TrimSpace(e.Output)
	if out == "" {
		return fmt.Sprintf("%s: %s exited with an error", e.Engine, e.Tool)
	}
	return fmt.Sprintf("%s: %s failed: %s", e.Engine, e.Tool, out)
}

// Factory builds a handler from plaintext connection details.
type Factory func(details dbtypes.ConnectionDetails) Handler

// factories stores the registered handler factories, keyed by engine.
var factories = make(map[dbtypes.EngineType]Factory)

// Register records a handler factory for an engine. Handler packages call
// this from init, so registration is complete before main runs.
func Register(engine dbtypes.EngineType, factory Factory) {
	factories[engine] = factory
}

// NewHandler builds a handler for the engine named in details.
func NewHandler(details dbtypes.ConnectionDetails) (Handler, error) {
	factory, ok := factories[details.Engine]
	if !ok {
		return nil, fmt.Errorf("no backup handler registered for engine: %s", details.Engine)
	}
	return factory(details), nil
}

// Registered reports whether an engine has a backup handler factory.
func Registered(engine dbtypes.EngineType) bool {
	_, ok := factories[engine]
	return ok
}
