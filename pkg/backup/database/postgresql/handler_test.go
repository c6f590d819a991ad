package postgresql

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supporttools/GoDBVault/pkg/backup/common"
	"github.com/supporttools/GoDBVault/pkg/dbtypes"
)

func testDetails() dbtypes.ConnectionDetails {
	return dbtypes.ConnectionDetails{
		Engine:       dbtypes.EnginePostgreSQL,
		Host:         "pg1.example.com",
		Port:         5432,
		DatabaseName: "appdb",
		Username:     "postgres",
		Password:     "sekret",
	}
}

// stubTool installs a shell script named tool on PATH so the handler runs it
// instead of the real client binary.
func stubTool(t *testing.T, tool, script string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, tool)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755))
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

// pgStub writes its arguments and PGPASSWORD into the file named by the -f
// flag, mirroring how pg_dump and psql take their file argument.
const pgStub = `out=""
while [ $# -gt 0 ]; do
  if [ "$1" = "-f" ]; then out="$2"; fi
  all="$all $1"
  shift
done
echo "args:$all" > "$out"
echo "pwd:$PGPASSWORD" >> "$out"`

func TestBackupWritesToTargetWithEnvPassword(t *testing.T) {
	stubTool(t, "pg_dump", pgStub)

	target := filepath.Join(t.TempDir(), "out.sql")
	require.NoError(t, New(testDetails()).Backup(context.Background(), target, nil))

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	assert.Contains(t, lines[0], "-h pg1.example.com -p 5432 -U postgres -d appdb -f "+target)
	assert.NotContains(t, lines[0], "sekret")
	assert.Equal(t, "pwd:sekret", lines[1])
}

func TestBackupRequiresDatabaseName(t *testing.T) {
	details := testDetails()
	details.DatabaseName = ""

	err := New(details).Backup(context.Background(), filepath.Join(t.TempDir(), "out.sql"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires a database name")
}

func TestBackupSurfacesToolError(t *testing.T) {
	stubTool(t, "pg_dump", `echo "FATAL: password authentication failed" >&2; exit 1`)

	err := New(testDetails()).Backup(context.Background(), filepath.Join(t.TempDir(), "out.sql"), nil)
	require.Error(t, err)

	var toolErr *common.ToolError
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, "pg_dump", toolErr.Tool)
	assert.Contains(t, toolErr.Output, "password authentication failed")
}

func TestRestoreReplaysThroughPsql(t *testing.T) {
	captured := filepath.Join(t.TempDir(), "psql-args.txt")
	t.Setenv("STUB_CAPTURE", captured)
	stubTool(t, "psql", `echo "args:$*" > "$STUB_CAPTURE"`)

	source := filepath.Join(t.TempDir(), "dump.sql")
	require.NoError(t, os.WriteFile(source, []byte("SELECT 1;\n"), 0o600))

	require.NoError(t, New(testDetails()).Restore(context.Background(), source))

	data, err := os.ReadFile(captured)
	require.NoError(t, err)
	assert.Contains(t, string(data), "-h pg1.example.com -p 5432 -U postgres -d appdb -f "+source)
}

func TestHandlerIdentity(t *testing.T) {
	h := New(testDetails())
	assert.Equal(t, dbtypes.EnginePostgreSQL, h.Engine())
	assert.Equal(t, ".sql", h.FileExtension())
	assert.True(t, common.Registered(dbtypes.EnginePostgreSQL))
}
