// Package mongodb drives mongodump and mongorestore for backup and restore.
package mongodb

import (
	"context"
	"fmt"
	"net/url"
	"os/exec"

	"github.com/supporttools/GoDBVault/pkg/backup/common"
	"github.com/supporttools/GoDBVault/pkg/dbtypes"
)

// Handler dumps and restores MongoDB databases through the database tools.
type Handler struct {
	details dbtypes.ConnectionDetails
}

// New returns a handler for the given connection details.
func New(details dbtypes.ConnectionDetails) common.Handler {
	return &Handler{details: details}
}

// Engine returns the engine this handler serves.
func (h *Handler) Engine() dbtypes.EngineType {
	return dbtypes.EngineMongoDB
}

// FileExtension returns the artifact suffix for MongoDB archives.
func (h *Handler) FileExtension() string {
	return ".archive"
}

// Backup runs mongodump in archive mode writing directly to targetPath. An
// empty database name dumps every database on the server.
func (h *Handler) Backup(ctx context.Context, targetPath string, progress common.ProgressFunc) error {
	cmd := exec.Command("mongodump", "--uri", h.uri(), "--archive="+targetPath)

	return common.RunTool(ctx, cmd, dbtypes.EngineMongoDB, "mongodump", targetPath, progress)
}

// Restore replays the archive at sourcePath through mongorestore. Existing
// collections are dropped before replay, so a restore replaces rather than
// merges.
func (h *Handler) Restore(ctx context.Context, sourcePath string) error {
	cmd := exec.Command("mongorestore", "--uri", h.uri(), "--archive="+sourcePath, "--drop")

	return common.RunTool(ctx, cmd, dbtypes.EngineMongoDB, "mongorestore", "", nil)
}

// uri assembles the tool connection string. Credentials are URL-escaped;
// authSource falls back to admin, where MongoDB keeps users by default.
func (h *Handler) uri() string {
	var cred string
	if h.details.Username != "" && h.details.Password != "" {
		cred = fmt.Sprintf("%s:%s@",
			url.QueryEscape(h.details.Username), url.QueryEscape(h.details.Password))
	}

	authSource := h.details.AuthSource
	if authSource == "" {
		authSource = "admin"
	}

	return fmt.Sprintf("mongodb://%s%s:%d/%s?authSource=%s",
		cred, h.details.Host, h.details.Port, h.details.DatabaseName, url.QueryEscape(authSource))
}

func init() {
	common.Register(dbtypes.EngineMongoDB, New)
}
