// Package mysql drives mysqldump and the mysql client for backup and restore.
package mysql

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/supporttools/GoDBVault/pkg/backup/common"
	"github.com/supporttools/GoDBVault/pkg/dbtypes"
)

// Handler dumps and restores MySQL databases through the client tools.
type Handler struct {
	details dbtypes.ConnectionDetails
}

// New returns a handler for the given connection details.
func New(details dbtypes.ConnectionDetails) common.Handler {
	return &Handler{details: details}
}

// Engine returns the engine this handler serves.
func (h *Handler) Engine() dbtypes.EngineType {
	return dbtypes.EngineMySQL
}

// FileExtension returns the artifact suffix for MySQL dumps.
func (h *Handler) FileExtension() string {
	return ".sql"
}

// Backup runs mysqldump with stdout redirected to targetPath. The password
// travels in MYSQL_PWD so it never appears in process listings.
func (h *Handler) Backup(ctx context.Context, targetPath string, progress common.ProgressFunc) error {
	out, err := os.Create(targetPath)
	if err != nil {
		return fmt.Errorf("failed to create dump file: %w", err)
	}
	defer out.Close()

	args := h.clientArgs()
	if h.details.DatabaseName == "" {
		args = append(args, "--all-databases")
	} else {
		args = append(args, h.details.DatabaseName)
	}

	cmd := exec.Command("mysqldump", args...)
	cmd.Stdout = out
	cmd.Env = h.env()

	return common.RunTool(ctx, cmd, dbtypes.EngineMySQL, "mysqldump", targetPath, progress)
}

// Restore feeds the dump at sourcePath to the mysql client on stdin. An
// all-databases dump names its own schemas, so the database argument is only
// passed when the profile has one.
func (h *Handler) Restore(ctx context.Context, sourcePath string) error {
	in, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("failed to open dump file: %w", err)
	}
	defer in.Close()

	args := h.clientArgs()
	if h.details.DatabaseName != "" {
		args = append(args, h.details.DatabaseName)
	}

	cmd := exec.Command("mysql", args...)
	cmd.Stdin = in
	cmd.Env = h.env()

	return common.RunTool(ctx, cmd, dbtypes.EngineMySQL, "mysql", "", nil)
}

func (h *Handler) clientArgs() []string {
	return []string{
		"-h", h.details.Host,
		"-P", fmt.Sprintf("%d", h.details.Port),
		"-u", h.details.Username,
	}
}

func (h *Handler) env() []string {
	return append(os.Environ(), "MYSQL_PWD="+h.details.Password)
}

func init() {
	common.Register(dbtypes.EngineMySQL, New)
}
