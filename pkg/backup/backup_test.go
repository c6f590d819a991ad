package backup

import (
	"context"
	"errors"
	"os"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supporttools/GoDBVault/pkg/backup/common"
	"github.com/supporttools/GoDBVault/pkg/dbtypes"
	"github.com/supporttools/GoDBVault/pkg/registry"
)

type stubHandler struct {
	engine     dbtypes.EngineType
	dumpData   string
	backupErr  error
	restoreErr error

	backupPath  string
	restorePath string
	restored    string
}

func (s *stubHandler) Engine() dbtypes.EngineType { return s.engine }
func (s *stubHandler) FileExtension() string      { return ".sql" }

func (s *stubHandler) Backup(_ context.Context, targetPath string, progress common.ProgressFunc) error {
	s.backupPath = targetPath
	if s.backupErr != nil {
		return s.backupErr
	}
	if err := os.WriteFile(targetPath, []byte(s.dumpData), 0o600); err != nil {
		return err
	}
	if progress != nil {
		progress(common.Update{Phase: common.PhaseDumping, Bytes: int64(len(s.dumpData))})
	}
	return nil
}

func (s *stubHandler) Restore(_ context.Context, sourcePath string) error {
	s.restorePath = sourcePath
	if s.restoreErr != nil {
		return s.restoreErr
	}
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return err
	}
	s.restored = string(data)
	return nil
}

type stubStore struct {
	uploads     map[string]string // name -> content
	uploadErr   error
	downloadErr error
	content     string
}

func newStubStore() *stubStore {
	return &stubStore{uploads: make(map[string]string)}
}

func (s *stubStore) Upload(localPath, name string) (string, error) {
	if s.uploadErr != nil {
		return "", s.uploadErr
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return "", err
	}
	s.uploads[name] = string(data)
	return name, nil
}

func (s *stubStore) Download(name, localPath string) error {
	if s.downloadErr != nil {
		return s.downloadErr
	}
	return os.WriteFile(localPath, []byte(s.content), 0o600)
}

func (s *stubStore) List() ([]string, error) { return nil, nil }
func (s *stubStore) Delete(string) error     { return nil }

type stubCatalog struct {
	records   []*registry.Artifact
	createErr error
}

func (s *stubCatalog) Create(artifact *registry.Artifact) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.records = append(s.records, artifact)
	return nil
}

func newTestManager(database string) (*Manager, *stubHandler, *stubStore, *stubCatalog) {
	handler := &stubHandler{engine: "stubdb", dumpData: "dump-bytes"}
	store := newStubStore()
	catalog := &stubCatalog{}
	manager := &Manager{
		details: dbtypes.ConnectionDetails{
			Engine:       handler.engine,
			Host:         "db1.example.com",
			Port:         3306,
			DatabaseName: database,
		},
		handler: handler,
		store:   store,
		catalog: catalog,
	}
	return manager, handler, store, catalog
}

func TestBackupUploadsAndRecordsArtifact(t *testing.T) {
	manager, handler, store, catalog := newTestManager("appdb")

	var phases []string
	name, err := manager.Backup(context.Background(), func(u common.Update) {
		phases = append(phases, u.Phase)
	})
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^stubdb_appdb_\d{8}_\d{6}\.sql$`), name)
	assert.Equal(t, "dump-bytes", store.uploads[name])

	require.Len(t, catalog.records, 1)
	record := catalog.records[0]
	assert.Equal(t, name, record.Name)
	assert.Equal(t, "stubdb", record.Engine)
	assert.Equal(t, "appdb", record.DatabaseName)
	assert.Equal(t, int64(len("dump-bytes")), record.Size)
	assert.Equal(t, "local", record.Storage)
	assert.False(t, record.CreatedAt.IsZero())

	assert.Equal(t, []string{
		common.PhaseStarting,
		common.PhaseDumping,
		common.PhaseUploading,
		common.PhaseCompleted,
	}, phases)

	_, statErr := os.Stat(handler.backupPath)
	assert.True(t, os.IsNotExist(statErr), "temp dump should be removed after upload")
}

func TestBackupLabelsAllDatabasesWhenNameEmpty(t *testing.T) {
	manager, _, _, catalog := newTestManager("")

	name, err := manager.Backup(context.Background(), nil)
	require.NoError(t, err)

	assert.Contains(t, name, "_all_databases_")
	require.Len(t, catalog.records, 1)
	assert.Equal(t, "all_databases", catalog.records[0].DatabaseName)
}

func TestBackupHandlerFailureRemovesTemp(t *testing.T) {
	manager, handler, store, catalog := newTestManager("appdb")
	handler.backupErr = errors.New("mysqldump exploded")

	_, err := manager.Backup(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mysqldump exploded")

	assert.Empty(t, store.uploads)
	assert.Empty(t, catalog.records)
	_, statErr := os.Stat(handler.backupPath)
	assert.True(t, os.IsNotExist(statErr), "temp dump should be removed after failure")
}

func TestBackupUploadFailureRemovesTemp(t *testing.T) {
	manager, handler, _, catalog := newTestManager("appdb")
	store := manager.store.(*stubStore)
	store.uploadErr = errors.New("bucket unreachable")

	_, err := manager.Backup(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to upload backup")

	assert.Empty(t, catalog.records)
	_, statErr := os.Stat(handler.backupPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestBackupSucceedsWhenCatalogWriteFails(t *testing.T) {
	manager, _, store, catalog := newTestManager("appdb")
	catalog.createErr = errors.New("registry db locked")

	name, err := manager.Backup(context.Background(), nil)
	require.NoError(t, err)
	assert.Contains(t, store.uploads, name)
}

func TestRestoreDownloadsAndReplays(t *testing.T) {
	manager, handler, store, _ := newTestManager("appdb")
	store.content = "-- replayed dump"

	require.NoError(t, manager.Restore(context.Background(), "stubdb_appdb_20240301_100000.sql"))

	assert.Equal(t, "-- replayed dump", handler.restored)
	_, statErr := os.Stat(handler.restorePath)
	assert.True(t, os.IsNotExist(statErr), "downloaded copy should be removed after restore")
}

func TestRestoreDownloadFailure(t *testing.T) {
	manager, handler, store, _ := newTestManager("appdb")
	store.downloadErr = errors.New("object missing")

	err := manager.Restore(context.Background(), "absent.sql")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to download backup")
	assert.Empty(t, handler.restorePath, "handler should not run when download fails")
}

func TestRestoreHandlerFailureRemovesTemp(t *testing.T) {
	manager, handler, store, _ := newTestManager("appdb")
	store.content = "dump"
	handler.restoreErr = errors.New("psql exploded")

	err := manager.Restore(context.Background(), "a.sql")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "psql exploded")

	_, statErr := os.Stat(handler.restorePath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestNewManagerRejectsUnknownEngine(t *testing.T) {
	details := dbtypes.ConnectionDetails{Engine: "fax-machine"}

	_, err := NewManager(details, newStubStore(), &stubCatalog{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no backup handler registered")
}
