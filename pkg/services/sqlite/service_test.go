package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supporttools/GoDBVault/pkg/dbtypes"
)

type recordedCall struct {
	query  string
	params []any
}

type fakeRunner struct {
	replies map[string]dbtypes.QueryResult
	calls   []recordedCall
}

func (f *fakeRunner) ExecuteQuery(_ context.Context, query string, params ...any) dbtypes.QueryResult {
	f.calls = append(f.calls, recordedCall{query: query, params: params})
	if res, ok := f.replies[query]; ok {
		return res
	}
	return dbtypes.ErrorResult("unexpected query: %s", query)
}

func (f *fakeRunner) Close() error { return nil }

func (f *fakeRunner) lastCall() recordedCall {
	return f.calls[len(f.calls)-1]
}

func newTestService(path string, replies map[string]dbtypes.QueryResult) (*Service, *fakeRunner) {
	runner := &fakeRunner{replies: replies}
	svc := &Service{
		details: dbtypes.ConnectionDetails{Engine: dbtypes.EngineSQLite, Host: path},
		conn:    runner,
	}
	return svc, runner
}

func TestBrowseLowercasesSearch(t *testing.T) {
	countQuery := "SELECT COUNT(*) AS total FROM `notes` WHERE lower(`id`) LIKE ? OR lower(`body`) LIKE ?"
	dataQuery := "SELECT * FROM `notes` WHERE lower(`id`) LIKE ? OR lower(`body`) LIKE ? LIMIT ? OFFSET ?"
	svc, runner := newTestService("notes.db", map[string]dbtypes.QueryResult{
		"PRAGMA table_info(`notes`)": dbtypes.RowsResult([]dbtypes.Row{
			{"name": "id", "pk": int64(1), "notnull": int64(1)},
			{"name": "body", "pk": int64(0), "notnull": int64(0)},
		}),
		countQuery: dbtypes.RowsResult([]dbtypes.Row{{"total": int64(6)}}),
		dataQuery:  dbtypes.RowsResult([]dbtypes.Row{{"id": int64(1), "body": "Go notes"}}),
	})

	result, err := svc.Browse(context.Background(), "notes", dbtypes.BrowseOptions{
		Page: 1, PageSize: 4, Search: "Go",
	})
	require.NoError(t, err)

	assert.Equal(t, "id", result.PrimaryKey)
	assert.Equal(t, int64(6), result.TotalRows)
	assert.Equal(t, int64(2), result.TotalPages)
	assert.Equal(t, int64(1), result.StartIndex)
	assert.Equal(t, int64(4), result.EndIndex)

	last := runner.lastCall()
	assert.Equal(t, dataQuery, last.query)
	assert.Equal(t, []any{"%go%", "%go%", int64(4), int64(0)}, last.params)
}

func TestStructureReadsPragmas(t *testing.T) {
	svc, _ := newTestService("notes.db", map[string]dbtypes.QueryResult{
		"PRAGMA table_info(`notes`)": dbtypes.RowsResult([]dbtypes.Row{
			{"name": "id", "type": "INTEGER", "notnull": int64(1), "pk": int64(1)},
			{"name": "tag", "type": "TEXT", "notnull": int64(0), "pk": int64(0)},
		}),
		"PRAGMA index_list(`notes`)": dbtypes.RowsResult([]dbtypes.Row{
			{"name": "idx_notes_tag", "unique": int64(1), "origin": "c"},
			{"name": "sqlite_autoindex_notes_1", "unique": int64(1), "origin": "pk"},
		}),
		"PRAGMA index_info(`idx_notes_tag`)": dbtypes.RowsResult([]dbtypes.Row{
			{"name": "tag"},
		}),
		"PRAGMA index_info(`sqlite_autoindex_notes_1`)": dbtypes.RowsResult([]dbtypes.Row{
			{"name": "id"},
		}),
	})

	structure, err := svc.Structure(context.Background(), "notes")
	require.NoError(t, err)

	require.Len(t, structure.Columns, 2)
	assert.Equal(t, "PRI", structure.Columns[0].Key)
	assert.False(t, structure.Columns[0].Nullable)
	assert.True(t, structure.Columns[1].Nullable)

	require.Len(t, structure.Indexes, 2)
	assert.Equal(t, []string{"tag"}, structure.Indexes[0].Columns)
	assert.True(t, structure.Indexes[0].Unique)
	assert.False(t, structure.Indexes[0].Primary)
	assert.True(t, structure.Indexes[1].Primary)
}

func TestCreateTableInlinePrimaryKey(t *testing.T) {
	want := "CREATE TABLE `notes` (`id` INTEGER PRIMARY KEY AUTOINCREMENT, `body` text NOT NULL)"
	svc, runner := newTestService("notes.db", map[string]dbtypes.QueryResult{want: dbtypes.CountResult(0)})

	res := svc.CreateTable(context.Background(), "notes", []dbtypes.ColumnDefinition{
		{Name: "id", Type: "INTEGER", PrimaryKey: true, AutoIncrement: true},
		{Name: "body", Type: "text"},
	})
	require.False(t, res.IsError(), res.Message)
	assert.Equal(t, want, runner.lastCall().query)
}

func TestCreateTableCompositeKeyUsesTrailingClause(t *testing.T) {
	want := "CREATE TABLE `m` (`a` int NOT NULL, `b` int NOT NULL, PRIMARY KEY (`a`, `b`))"
	svc, runner := newTestService("notes.db", map[string]dbtypes.QueryResult{want: dbtypes.CountResult(0)})

	res := svc.CreateTable(context.Background(), "m", []dbtypes.ColumnDefinition{
		{Name: "a", Type: "int", PrimaryKey: true},
		{Name: "b", Type: "int", PrimaryKey: true},
	})
	require.False(t, res.IsError(), res.Message)
	assert.Equal(t, want, runner.lastCall().query)
}

func TestCreateTableRejectsNonIntegerAutoincrement(t *testing.T) {
	svc, runner := newTestService("notes.db", nil)

	res := svc.CreateTable(context.Background(), "notes", []dbtypes.ColumnDefinition{
		{Name: "id", Type: "text", PrimaryKey: true, AutoIncrement: true},
	})
	assert.True(t, res.IsError())
	assert.Contains(t, res.Message, "AUTOINCREMENT requires an INTEGER primary key")
	assert.Empty(t, runner.calls)
}

func TestModifyColumnUnsupported(t *testing.T) {
	svc, runner := newTestService("notes.db", nil)

	res := svc.ModifyColumn(context.Background(), "notes", "body", dbtypes.ColumnDefinition{Type: "text"})
	assert.True(t, res.IsError())
	assert.Contains(t, res.Message, "does not support modifying columns")
	assert.Empty(t, runner.calls)
}

func TestDropIndexOmitsTable(t *testing.T) {
	want := "DROP INDEX `idx_notes_tag`"
	svc, runner := newTestService("notes.db", map[string]dbtypes.QueryResult{want: dbtypes.CountResult(0)})

	res := svc.DropIndex(context.Background(), "notes", "idx_notes_tag")
	require.False(t, res.IsError(), res.Message)
	assert.Equal(t, want, runner.lastCall().query)
}

func TestDashboardStatsReportsFileAndTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.db")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))

	replies := map[string]dbtypes.QueryResult{
		"SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name": dbtypes.RowsResult([]dbtypes.Row{
			{"name": "notes"},
		}),
		"SELECT COUNT(*) AS total FROM `notes`": dbtypes.RowsResult([]dbtypes.Row{{"total": int64(41)}}),
	}
	for _, name := range pragmaSettings {
		replies["PRAGMA "+name] = dbtypes.ErrorResult("no such pragma")
	}
	replies["PRAGMA journal_mode"] = dbtypes.RowsResult([]dbtypes.Row{{"journal_mode": "wal"}})

	svc, _ := newTestService(path, replies)
	stats := svc.DashboardStats(context.Background())

	fileInfo := stats["file_info"].(map[string]any)
	assert.Equal(t, path, fileInfo["path"])
	assert.Equal(t, int64(4), fileInfo["size_bytes"])

	tables := stats["tables"].([]dbtypes.Row)
	require.Len(t, tables, 1)
	assert.Equal(t, "notes", tables[0]["name"])
	assert.Equal(t, int64(41), tables[0]["row_count"])

	pragma := stats["pragma"].(map[string]any)
	assert.Equal(t, "wal", pragma["journal_mode"])
	_, hasPageSize := pragma["page_size"]
	assert.False(t, hasPageSize)
}
