package tasks

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/supporttools/GoDBVault/pkg/backup"
	"github.com/supporttools/GoDBVault/pkg/database/pool"
	"github.com/supporttools/GoDBVault/pkg/registry"
	"github.com/supporttools/GoDBVault/pkg/services"
	"github.com/supporttools/GoDBVault/pkg/storage"
)

// Operations wires task submissions to the backup, storage, and service
// layers. Profiles are validated at submit time and re-resolved when the
// task runs, so a task always works from current credentials and opens its
// own session rather than borrowing the submitter's.
type Operations struct {
	runner    *Runner
	store     storage.Backend
	profiles  *registry.ProfileRepository
	artifacts *registry.ArtifactRepository
	pools     *pool.Manager
}

// NewOperations creates the task operation layer.
func NewOperations(runner *Runner, store storage.Backend, profiles *registry.ProfileRepository, artifacts *registry.ArtifactRepository, pools *pool.Manager) *Operations {
	return &Operations{
		runner:    runner,
		store:     store,
		profiles:  profiles,
		artifacts: artifacts,
		pools:     pools,
	}
}

// Runner exposes the underlying runner for status queries.
func (o *Operations) Runner() *Runner {
	return o.runner
}

// SubmitBackup queues a backup of the named profile and returns the task id.
func (o *Operations) SubmitBackup(profileName string) (string, error) {
	if _, err := o.profiles.GetByName(profileName); err != nil {
		return "", err
	}

	id := o.runner.Submit(KindBackup, func(ctx context.Context) (map[string]any, error) {
		profile, err := o.profiles.GetByName(profileName)
		if err != nil {
			return nil, err
		}

		manager, err := backup.NewManager(profile.Details(), o.store, o.artifacts)
		if err != nil {
			return nil, err
		}

		filename, err := manager.Backup(ctx, nil)
		if err != nil {
			return nil, err
		}

		return map[string]any{"status": "success", "filename": filename}, nil
	})

	return id, nil
}

// SubmitRestore queues a restore of the named profile from a stored artifact.
func (o *Operations) SubmitRestore(profileName, artifactName string) (string, error) {
	if _, err := o.profiles.GetByName(profileName); err != nil {
		return "", err
	}

	id := o.runner.Submit(KindRestore, func(ctx context.Context) (map[string]any, error) {
		profile, err := o.profiles.GetByName(profileName)
		if err != nil {
			return nil, err
		}

		manager, err := backup.NewManager(profile.Details(), o.store, o.artifacts)
		if err != nil {
			return nil, err
		}

		if err := manager.Restore(ctx, artifactName); err != nil {
			return nil, err
		}

		return map[string]any{"status": "success", "message": "Database restored successfully"}, nil
	})

	return id, nil
}

// SubmitExport queues an export of one table to a flat file in storage.
// Format defaults to csv.
func (o *Operations) SubmitExport(profileName, table, format string) (string, error) {
	if format == "" {
		format = "csv"
	}
	if _, err := o.profiles.GetByName(profileName); err != nil {
		return "", err
	}

	id := o.runner.Submit(KindExport, func(ctx context.Context) (map[string]any, error) {
		profile, err := o.profiles.GetByName(profileName)
		if err != nil {
			return nil, err
		}

		svc, err := services.NewTableService(profile.Details(), o.pools)
		if err != nil {
			return nil, err
		}
		defer svc.Close()

		exporter, ok := svc.(services.TableExporter)
		if !ok {
			return nil, fmt.Errorf("export is not supported for engine %s", profile.Engine)
		}

		filename := fmt.Sprintf("export_%s_%s_%s.%s",
			profile.Name, table, time.Now().Format("20060102_150405"), format)

		tmp, err := os.CreateTemp("", "dbvault-export-*."+format)
		if err != nil {
			return nil, fmt.Errorf("failed to create temp file: %w", err)
		}
		tmpPath := tmp.Name()
		defer os.Remove(tmpPath)

		_, err = exporter.ExportTable(ctx, table, format, tmp)
		if closeErr := tmp.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("failed to flush export file: %w", closeErr)
		}
		if err != nil {
			return nil, err
		}

		storedName, err := o.store.Upload(tmpPath, filename)
		if err != nil {
			return nil, fmt.Errorf("failed to upload export: %w", err)
		}

		return map[string]any{"status": "success", "filename": storedName}, nil
	})

	return id, nil
}

// SubmitImport queues a load of a stored flat file into one table. Format
// defaults to csv.
func (o *Operations) SubmitImport(profileName, table, fileName, format string) (string, error) {
	if format == "" {
		format = "csv"
	}
	if _, err := o.profiles.GetByName(profileName); err != nil {
		return "", err
	}

	id := o.runner.Submit(KindImport, func(ctx context.Context) (map[string]any, error) {
		profile, err := o.profiles.GetByName(profileName)
		if err != nil {
			return nil, err
		}

		svc, err := services.NewTableService(profile.Details(), o.pools)
		if err != nil {
			return nil, err
		}
		defer svc.Close()

		exporter, ok := svc.(services.TableExporter)
		if !ok {
			return nil, fmt.Errorf("import is not supported for engine %s", profile.Engine)
		}

		tmp, err := os.CreateTemp("", "dbvault-import-*."+format)
		if err != nil {
			return nil, fmt.Errorf("failed to create temp file: %w", err)
		}
		tmpPath := tmp.Name()
		tmp.Close()
		defer os.Remove(tmpPath)

		if err := o.store.Download(fileName, tmpPath); err != nil {
			return nil, fmt.Errorf("failed to download %s: %w", fileName, err)
		}

		file, err := os.Open(tmpPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open downloaded file: %w", err)
		}
		defer file.Close()

		rows, err := exporter.ImportTable(ctx, table, format, file)
		if err != nil {
			return nil, err
		}

		return map[string]any{"status": "success", "rows_affected": rows}, nil
	})

	return id, nil
}
