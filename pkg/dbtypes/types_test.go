package dbtypes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEngine(t *testing.T) {
	tests := []struct {
		input    string
		expected EngineType
		wantErr  bool
	}{
		{"mysql", EngineMySQL, false},
		{"MySQL", EngineMySQL, false},
		{"mariadb", EngineMySQL, false},
		{"PostgreSQL", EnginePostgreSQL, false},
		{"postgres", EnginePostgreSQL, false},
		{"SQLite", EngineSQLite, false},
		{"sqlite3", EngineSQLite, false},
		{"MongoDB", EngineMongoDB, false},
		{"Elasticsearch", EngineElasticsearch, false},
		{"es", EngineElasticsearch, false},
		{" mysql ", EngineMySQL, false},
		{"oracle", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			engine, err := ParseEngine(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, engine)
		})
	}
}

func TestFingerprint(t *testing.T) {
	details := ConnectionDetails{
		Host:         "db.example.com",
		Port:         3306,
		Username:     "app",
		DatabaseName: "orders",
	}
	assert.Equal(t, "db.example.com:3306:app:orders", details.Fingerprint())

	// The same endpoint with a different database is a different pool key.
	other := details
	other.DatabaseName = "billing"
	assert.NotEqual(t, details.Fingerprint(), other.Fingerprint())
}

func TestQueryResultConstructors(t *testing.T) {
	rows := RowsResult([]Row{{"id": 1}})
	assert.Equal(t, KindRows, rows.Kind)
	assert.Len(t, rows.Rows, 1)
	assert.False(t, rows.IsError())

	// nil row slices normalize to empty so JSON callers see [] not null
	empty := RowsResult(nil)
	assert.NotNil(t, empty.Rows)
	assert.Len(t, empty.Rows, 0)

	count := CountResult(7)
	assert.Equal(t, KindCount, count.Kind)
	assert.Equal(t, int64(7), count.Affected)

	failure := ErrorResult("table %s not found", "users")
	assert.True(t, failure.IsError())
	assert.Equal(t, "table users not found", failure.Message)
}

func TestFieldResolve(t *testing.T) {
	// An explicit null flag wins over any carried value.
	assert.Nil(t, Field{Value: "", Null: true}.Resolve())
	assert.Nil(t, Field{Value: "ignored", Null: true}.Resolve())

	// Without the flag, the empty string stays an empty string.
	assert.Equal(t, "", Field{Value: ""}.Resolve())
	assert.Equal(t, 42, Field{Value: 42}.Resolve())
}

func TestPageMath(t *testing.T) {
	tests := []struct {
		name                          string
		total, page, limit            int64
		wantPages, wantStart, wantEnd int64
	}{
		{"three matches on one page", 3, 1, 25, 1, 1, 3},
		{"empty table", 0, 1, 25, 0, 0, 0},
		{"exact page boundary", 50, 2, 25, 2, 26, 50},
		{"partial last page", 51, 3, 25, 3, 51, 51},
		{"single row", 1, 1, 1, 1, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pages, start, end := PageMath(tt.total, tt.page, tt.limit)
			assert.Equal(t, tt.wantPages, pages, "total pages")
			assert.Equal(t, tt.wantStart, start, "start index")
			assert.Equal(t, tt.wantEnd, end, "end index")
		})
	}
}

func TestClampPageSize(t *testing.T) {
	assert.Equal(t, int64(1), ClampPageSize(0))
	assert.Equal(t, int64(1), ClampPageSize(-5))
	assert.Equal(t, int64(500), ClampPageSize(500))
	assert.Equal(t, int64(1000), ClampPageSize(1000))
	assert.Equal(t, int64(1000), ClampPageSize(5000))
}
