package common

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/supporttools/GoDBVault/pkg/dbtypes"
)

// monitorInterval is how often the dump file is sampled for progress.
const monitorInterval = 200 * time.Millisecond

// RunTool starts cmd and waits for it to finish, killing the process if ctx
// is canceled first. Stderr is captured and surfaces in the ToolError on a
// non-zero exit. When watchPath and progress are both set, a monitor
// goroutine samples the file's size on a fixed interval and reports it as
// Dumping updates; the monitor is stopped the instant the wait resolves.
func RunTool(ctx context.Context, cmd *exec.Cmd, engine dbtypes.EngineType, tool, watchPath string, progress ProgressFunc) error {
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", tool, err)
	}

	// Signal command completion without blocking the select below.
	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	stop := make(chan struct{})
	var monitorDone chan struct{}
	if progress != nil && watchPath != "" {
		monitorDone = make(chan struct{})
		go func() {
			defer close(monitorDone)
			monitorFile(watchPath, progress, stop)
		}()
	}
	stopMonitor := func() {
		close(stop)
		if monitorDone != nil {
			<-monitorDone
		}
	}

	select {
	case <-ctx.Done():
		if cmd.Process != nil {
			cmd.Process.Kill()
		}
		<-done
		stopMonitor()
		return ctx.Err()
	case err := <-done:
		stopMonitor()
		if err != nil {
			return &ToolError{Engine: engine, Tool: tool, Output: stderr.String()}
		}
		return nil
	}
}

// monitorFile reports the size of the file at path until stop is closed.
// Stat failures are skipped; the file may not exist on the first samples.
func monitorFile(path string, progress ProgressFunc, stop <-chan struct{}) {
	ticker := time.NewTicker(monitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			info, err := os.Stat(path)
			if err != nil {
				continue
			}
			progress(Update{Phase: PhaseDumping, Bytes: info.Size()})
		}
	}
}
