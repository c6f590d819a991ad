package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	backupcommon "github.com/supporttools/GoDBVault/pkg/backup/common"
	"github.com/supporttools/GoDBVault/pkg/config"
	dbcommon "github.com/supporttools/GoDBVault/pkg/database/common"
	"github.com/supporttools/GoDBVault/pkg/database/pool"
	"github.com/supporttools/GoDBVault/pkg/dbtypes"
	"github.com/supporttools/GoDBVault/pkg/registry"
	"github.com/supporttools/GoDBVault/pkg/scheduler"
	"github.com/supporttools/GoDBVault/pkg/security"
	"github.com/supporttools/GoDBVault/pkg/storage"
	"github.com/supporttools/GoDBVault/pkg/tasks"
)

// restoredPayload captures what the stub dump handler replayed. Reads are
// ordered after writes by Runner.Wait.
var restoredPayload string

// stubDumpHandler backs the fake "stubdump" engine so backup and restore
// tasks run end to end without a real database.
type stubDumpHandler struct {
	details dbtypes.ConnectionDetails
}

func (h *stubDumpHandler) Engine() dbtypes.EngineType { return "stubdump" }
func (h *stubDumpHandler) FileExtension() string      { return ".sql" }

func (h *stubDumpHandler) Backup(_ context.Context, targetPath string, _ backupcommon.ProgressFunc) error {
	return os.WriteFile(targetPath, []byte("-- dump for "+h.details.DatabaseName), 0o600)
}

func (h *stubDumpHandler) Restore(_ context.Context, sourcePath string) error {
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return err
	}
	restoredPayload = string(data)
	return nil
}

// lastProbedDetails records what the stub connector was built with, so tests
// can prove profile credentials reach the connector decrypted.
var lastProbedDetails dbtypes.ConnectionDetails

// stubConnector backs the fake "stubconn" engine for connection tests. The
// probe verdict keys off the host so tests can exercise both outcomes.
type stubConnector struct {
	details dbtypes.ConnectionDetails
}

func (c *stubConnector) Engine() dbtypes.EngineType    { return "stubconn" }
func (c *stubConnector) Connect(context.Context) error { return nil }
func (c *stubConnector) Close() error                  { return nil }

func (c *stubConnector) ExecuteQuery(_ context.Context, _ string, _ ...any) dbtypes.QueryResult {
	return dbtypes.QueryResult{}
}

func (c *stubConnector) TestConnection(context.Context) (bool, string) {
	if c.details.Host == "down.example.com" {
		return false, "connection refused: " + c.details.Host
	}
	return true, "connected to " + c.details.Host + " as " + c.details.Username
}

func init() {
	backupcommon.Register("stubdump", func(details dbtypes.ConnectionDetails) backupcommon.Handler {
		return &stubDumpHandler{details: details}
	})
	dbcommon.Register("stubconn", func(details dbtypes.ConnectionDetails, _ *pool.Manager) (dbcommon.Connector, error) {
		lastProbedDetails = details
		return &stubConnector{details: details}, nil
	})
}

// apiFixture wires a full API stack onto a throwaway registry and a local
// storage directory.
type apiFixture struct {
	ops        *tasks.Operations
	store      storage.Backend
	profiles   *registry.ProfileRepository
	artifacts  *registry.ArtifactRepository
	pools      *pool.Manager
	handler    http.Handler
	storageDir string
}

func newTestServer(t *testing.T, sched *scheduler.Scheduler) *apiFixture {
	t.Helper()
	require.NoError(t, security.Initialize("api-test-key"))

	db, err := gorm.Open(gormsqlite.Open(filepath.Join(t.TempDir(), "registry.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, registry.RunMigrations(db))

	storageDir := t.TempDir()
	originalStorage := config.CFG.Storage
	config.CFG.Storage = config.StorageConfig{
		Type:  "local",
		Local: config.LocalStorageConfig{Directory: storageDir},
	}
	t.Cleanup(func() { config.CFG.Storage = originalStorage })

	store, err := storage.NewBackend()
	require.NoError(t, err)

	profiles := registry.NewProfileRepository(db)
	artifacts := registry.NewArtifactRepository(db)
	pools := pool.NewManager(2)
	ops := tasks.NewOperations(tasks.NewRunner(""), store, profiles, artifacts, pools)

	server := NewServer(ops, store, profiles, artifacts, pools, sched)
	return &apiFixture{
		ops:        ops,
		store:      store,
		profiles:   profiles,
		artifacts:  artifacts,
		pools:      pools,
		handler:    server.Handler(),
		storageDir: storageDir,
	}
}

func (f *apiFixture) do(method, target string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

// newRecordedRequest drives a one-off handler, for tests that swap in a
// different storage backend than the fixture's.
func newRecordedRequest(handler http.Handler, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) createProfile(t *testing.T, profile *registry.ConnectionProfile) {
	t.Helper()
	require.NoError(t, f.profiles.Create(profile))
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), "body: %s", rec.Body.String())
	return body
}

func TestHealthEndpoint(t *testing.T) {
	f := newTestServer(t, nil)

	rec := f.do(http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeJSON(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.NotEmpty(t, body["version"])
	_, err := time.Parse(time.RFC3339, body["time"].(string))
	assert.NoError(t, err)
}

func TestMethodGuards(t *testing.T) {
	f := newTestServer(t, nil)

	cases := []struct {
		method string
		target string
	}{
		{http.MethodGet, "/api/backups/run"},
		{http.MethodGet, "/api/backups/restore"},
		{http.MethodGet, "/api/tables/export"},
		{http.MethodGet, "/api/tables/import"},
		{http.MethodPost, "/api/tasks"},
		{http.MethodPost, "/api/artifacts"},
		{http.MethodGet, "/api/artifacts/delete"},
		{http.MethodPost, "/api/artifacts/download"},
		{http.MethodPost, "/api/profiles/test"},
		{http.MethodPost, "/api/schedules"},
	}

	for _, tc := range cases {
		rec := f.do(tc.method, tc.target, nil)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, "%s %s", tc.method, tc.target)
	}
}

func TestSchedulesEndpoint(t *testing.T) {
	f := newTestServer(t, nil)

	originalSchedules := config.CFG.Schedules
	config.CFG.Schedules = []config.ScheduleConfig{
		{Name: "nightly", Profile: "prod-db", Cron: "@daily"},
		{Profile: "staging-db", Cron: "@hourly"},
	}
	t.Cleanup(func() { config.CFG.Schedules = originalSchedules })

	sched, err := scheduler.NewScheduler(f.ops)
	require.NoError(t, err)
	require.NoError(t, sched.SetupJobs())
	sched.Start()
	defer sched.Stop()

	server := NewServer(f.ops, f.store, f.profiles, f.artifacts, f.pools, sched)
	req := httptest.NewRequest(http.MethodGet, "/api/schedules", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON(t, rec)
	assert.Equal(t, float64(2), body["count"])

	schedules := body["schedules"].([]any)
	first := schedules[0].(map[string]any)
	assert.Equal(t, "nightly", first["name"])
	assert.Equal(t, "prod-db", first["profile"])
	assert.Equal(t, "@daily", first["cron"])
	nextRun, err := time.Parse(time.RFC3339, first["nextRun"].(string))
	require.NoError(t, err)
	assert.True(t, nextRun.After(time.Now().Add(-time.Minute)))

	// Unnamed schedules surface under their positional name.
	second := schedules[1].(map[string]any)
	assert.Equal(t, "schedule-2", second["name"])
}

func TestSchedulesWithoutScheduler(t *testing.T) {
	f := newTestServer(t, nil)

	rec := f.do(http.MethodGet, "/api/schedules", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
