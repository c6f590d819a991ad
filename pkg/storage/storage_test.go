package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supporttools/GoDBVault/pkg/config"
	"github.com/supporttools/GoDBVault/pkg/storage/ftp"
	"github.com/supporttools/GoDBVault/pkg/storage/local"
	"github.com/supporttools/GoDBVault/pkg/storage/s3"
)

func withStorageConfig(t *testing.T, cfg config.StorageConfig) {
	t.Helper()
	prev := config.CFG.Storage
	config.CFG.Storage = cfg
	t.Cleanup(func() { config.CFG.Storage = prev })
}

func TestNewBackendDefaultsToLocal(t *testing.T) {
	withStorageConfig(t, config.StorageConfig{
		Local: config.LocalStorageConfig{Directory: filepath.Join(t.TempDir(), "backups")},
	})

	backend, err := NewBackend()
	require.NoError(t, err)
	assert.IsType(t, (*local.Client)(nil), backend)
}

func TestNewBackendSelectsS3(t *testing.T) {
	withStorageConfig(t, config.StorageConfig{
		Type: "s3",
		S3: config.S3StorageConfig{
			Bucket:    "test-bucket",
			Region:    "us-east-1",
			AccessKey: "key",
			SecretKey: "secret",
		},
	})

	backend, err := NewBackend()
	require.NoError(t, err)
	assert.IsType(t, (*s3.Client)(nil), backend)
}

func TestNewBackendSelectsFTP(t *testing.T) {
	withStorageConfig(t, config.StorageConfig{
		Type: "ftp",
		FTP:  config.FTPStorageConfig{Host: "ftp.example.com", Port: 21},
	})

	backend, err := NewBackend()
	require.NoError(t, err)
	assert.IsType(t, (*ftp.Client)(nil), backend)
}

func TestNewBackendRejectsUnknownType(t *testing.T) {
	withStorageConfig(t, config.StorageConfig{Type: "tape"})

	_, err := NewBackend()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported storage type: tape")
}

func TestNewBackendPropagatesBackendErrors(t *testing.T) {
	withStorageConfig(t, config.StorageConfig{Type: "ftp"})

	_, err := NewBackend()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ftp host is not configured")
}
