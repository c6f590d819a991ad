// Package postgresql drives pg_dump and psql for backup and restore.
package postgresql

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/supporttools/GoDBVault/pkg/backup/common"
	"github.com/supporttools/GoDBVault/pkg/dbtypes"
)

// Handler dumps and restores PostgreSQL databases through the client tools.
type Handler struct {
	details dbtypes.ConnectionDetails
}

// New returns a handler for the given connection details.
func New(details dbtypes.ConnectionDetails) common.Handler {
	return &Handler{details: details}
}

// Engine returns the engine this handler serves.
func (h *Handler) Engine() dbtypes.EngineType {
	return dbtypes.EnginePostgreSQL
}

// FileExtension returns the artifact suffix for PostgreSQL dumps.
func (h *Handler) FileExtension() string {
	return ".sql"
}

// Backup runs pg_dump writing directly to targetPath. The password travels
// in PGPASSWORD so it never appears in process listings.
func (h *Handler) Backup(ctx context.Context, targetPath string, progress common.ProgressFunc) error {
	if h.details.DatabaseName == "" {
		return errors.New("postgresql backup requires a database name")
	}

	args := append(h.clientArgs(), "-f", targetPath)
	cmd := exec.Command("pg_dump", args...)
	cmd.Env = h.env()

	return common.RunTool(ctx, cmd, dbtypes.EnginePostgreSQL, "pg_dump", targetPath, progress)
}

// Restore replays the dump at sourcePath through psql.
func (h *Handler) Restore(ctx context.Context, sourcePath string) error {
	if h.details.DatabaseName == "" {
		return errors.New("postgresql restore requires a database name")
	}

	args := append(h.clientArgs(), "-f", sourcePath)
	cmd := exec.Command("psql", args...)
	cmd.Env = h.env()

	return common.RunTool(ctx, cmd, dbtypes.EnginePostgreSQL, "psql", "", nil)
}

func (h *Handler) clientArgs() []string {
	return []string{
		"-h", h.details.Host,
		"-p", fmt.Sprintf("%d", h.details.Port),
		"-U", h.details.Username,
		"-d", h.details.DatabaseName,
	}
}

func (h *Handler) env() []string {
	return append(os.Environ(), "PGPASSWORD="+h.details.Password)
}

func init() {
	common.Register(dbtypes.EnginePostgreSQL, New)
}
