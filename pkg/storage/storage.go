// Package storage provides pluggable backends for backup artifacts.
package storage

import (
	"fmt"

	"github.com/supporttools/GoDBVault/pkg/config"
	"github.com/supporttools/GoDBVault/pkg/storage/ftp"
	"github.com/supporttools/GoDBVault/pkg/storage/local"
	"github.com/supporttools/GoDBVault/pkg/storage/s3"
)

// Backend stores and retrieves backup artifacts by name. Every failure
// propagates to the caller: a failed upload fails the backup that produced
// it.
type Backend interface {
	// Upload copies the file at localPath into storage under name and
	// returns the stored name.
	Upload(localPath, name string) (string, error)

	// Download copies the stored artifact into localPath.
	Download(name, localPath string) error

	// List returns stored artifact names. Artifact names embed their
	// timestamp, so descending order puts the newest first.
	List() ([]string, error)

	// Delete removes a stored artifact.
	Delete(name string) error
}

// NewBackend builds the backend selected by the storage configuration.
func NewBackend() (Backend, error) {
	switch config.CFG.Storage.Type {
	case "local", "":
		client, err := local.NewClient()
		if err != nil {
			return nil, err
		}
		return client, nil
	case "s3":
		client, err := s3.NewClient()
		if err != nil {
			return nil, err
		}
		return client, nil
	case "ftp":
		client, err := ftp.NewClient()
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", config.CFG.Storage.Type)
	}
}
