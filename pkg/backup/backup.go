// Package backup orchestrates dump and restore runs: it drives the engine
// handler, moves the artifact through the storage backend, and records the
// result in the artifact catalog.
package backup

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/supporttools/GoDBVault/pkg/backup/common"
	"github.com/supporttools/GoDBVault/pkg/config"
	"github.com/supporttools/GoDBVault/pkg/dbtypes"
	"github.com/supporttools/GoDBVault/pkg/metrics"
	"github.com/supporttools/GoDBVault/pkg/registry"
	"github.com/supporttools/GoDBVault/pkg/storage"
)

// allDatabasesLabel names dumps that cover every database on the server.
const allDatabasesLabel = "all_databases"

// Catalog records stored artifacts. registry.ArtifactRepository satisfies it.
type Catalog interface {
	Create(artifact *registry.Artifact) error
}

// Manager runs backup and restore operations for a single connection.
type Manager struct {
	details dbtypes.ConnectionDetails
	handler common.Handler
	store   storage.Backend
	catalog Catalog
}

// NewManager builds a manager for the given connection. It fails when no
// backup handler is registered for the connection's engine.
func NewManager(details dbtypes.ConnectionDetails, store storage.Backend, catalog Catalog) (*Manager, error) {
	handler, err := common.NewHandler(details)
	if err != nil {
		return nil, err
	}

	return &Manager{
		details: details,
		handler: handler,
		store:   store,
		catalog: catalog,
	}, nil
}

// databaseLabel is the database portion of artifact names and metric labels.
func (m *Manager) databaseLabel() string {
	if m.details.DatabaseName == "" {
		return allDatabasesLabel
	}
	return m.details.DatabaseName
}

// artifactName builds the stored name for a backup taken at the given time.
func (m *Manager) artifactName(now time.Time) string {
	return fmt.Sprintf("%s_%s_%s%s",
		m.handler.Engine(),
		m.databaseLabel(),
		now.Format("20060102_150405"),
		m.handler.FileExtension(),
	)
}

// storageLabel is the storage backend name used in artifact records and
// metric labels.
func storageLabel() string {
	if config.CFG.Storage.Type == "" {
		return "local"
	}
	return config.CFG.Storage.Type
}

// Backup dumps the database to a temp file, uploads it, and records the
// artifact. It returns the stored artifact name. The temp file is removed
// whether the run succeeds or fails.
func (m *Manager) Backup(ctx context.Context, progress common.ProgressFunc) (string, error) {
	engine := string(m.handler.Engine())
	database := m.databaseLabel()

	report := func(phase string, bytes int64) {
		if progress != nil {
			progress(common.Update{Phase: phase, Bytes: bytes})
		}
	}

	startTime := time.Now()
	name := m.artifactName(startTime)
	report(common.PhaseStarting, 0)
	log.Printf("Starting backup of %s database %s", engine, database)

	tmp, err := os.CreateTemp("", "dbvault-backup-*"+m.handler.FileExtension())
	if err != nil {
		metrics.BackupCount.WithLabelValues(engine, database, "error").Inc()
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := m.handler.Backup(ctx, tmpPath, progress); err != nil {
		metrics.BackupCount.WithLabelValues(engine, database, "error").Inc()
		return "", err
	}

	info, err := os.Stat(tmpPath)
	if err != nil {
		metrics.BackupCount.WithLabelValues(engine, database, "error").Inc()
		return "", fmt.Errorf("failed to stat dump file: %w", err)
	}
	size := info.Size()

	report(common.PhaseUploading, size)
	uploadStart := time.Now()
	storedName, err := m.store.Upload(tmpPath, name)
	if err != nil {
		metrics.UploadCount.WithLabelValues(engine, database, "error").Inc()
		metrics.BackupCount.WithLabelValues(engine, database, "error").Inc()
		return "", fmt.Errorf("failed to upload backup: %w", err)
	}
	metrics.UploadCount.WithLabelValues(engine, database, "success").Inc()
	metrics.UploadDuration.WithLabelValues(engine, database).Observe(time.Since(uploadStart).Seconds())

	// The artifact is durable in storage at this point, so a catalog write
	// failure degrades to a warning. catalog-recovery can rebuild the record.
	if m.catalog != nil {
		record := &registry.Artifact{
			Name:         storedName,
			Engine:       engine,
			DatabaseName: database,
			Size:         size,
			Storage:      storageLabel(),
			CreatedAt:    startTime,
		}
		if err := m.catalog.Create(record); err != nil {
			log.Printf("Warning: failed to record artifact %s in catalog: %v", storedName, err)
		}
	}

	metrics.BackupCount.WithLabelValues(engine, database, "success").Inc()
	metrics.BackupDuration.WithLabelValues(engine, database).Observe(time.Since(startTime).Seconds())
	metrics.BackupSize.WithLabelValues(engine, database, storageLabel()).Set(float64(size))
	metrics.LastBackupTimestamp.WithLabelValues(engine, database).SetToCurrentTime()

	report(common.PhaseCompleted, size)
	log.Printf("Backup completed: %s (%d bytes)", storedName, size)
	return storedName, nil
}

// Restore downloads a stored artifact and replays it into the database. The
// downloaded copy is removed whether the run succeeds or fails.
func (m *Manager) Restore(ctx context.Context, artifactName string) error {
	engine := string(m.handler.Engine())
	database := m.databaseLabel()

	log.Printf("Starting restore of %s database %s from %s", engine, database, artifactName)

	tmp, err := os.CreateTemp("", "dbvault-restore-*"+m.handler.FileExtension())
	if err != nil {
		metrics.RestoreCount.WithLabelValues(engine, database, "error").Inc()
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := m.store.Download(artifactName, tmpPath); err != nil {
		metrics.RestoreCount.WithLabelValues(engine, database, "error").Inc()
		return fmt.Errorf("failed to download backup: %w", err)
	}

	if err := m.handler.Restore(ctx, tmpPath); err != nil {
		metrics.RestoreCount.WithLabelValues(engine, database, "error").Inc()
		return err
	}

	metrics.RestoreCount.WithLabelValues(engine, database, "success").Inc()
	log.Printf("Restore completed: %s into %s database %s", artifactName, engine, database)
	return nil
}
