package postgresql

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supporttools/GoDBVault/pkg/dbtypes"
)

func TestNewDefaultsPort(t *testing.T) {
	c, err := New(dbtypes.ConnectionDetails{Host: "pg.example.com"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 5432, c.details.Port)
}

func TestDSNShape(t *testing.T) {
	c, err := New(dbtypes.ConnectionDetails{
		Host: "pg.example.com", Port: 5433, Username: "app", Password: "s3c", DatabaseName: "inventory",
	}, nil)
	require.NoError(t, err)

	dsn := c.dsn()
	assert.Contains(t, dsn, "host=pg.example.com")
	assert.Contains(t, dsn, "port=5433")
	assert.Contains(t, dsn, "dbname=inventory")
	assert.Contains(t, dsn, "sslmode=disable")
}

func TestProducesResultSet(t *testing.T) {
	assert.True(t, producesResultSet("SELECT 1"))
	assert.True(t, producesResultSet("  with cte as (select 1) select * from cte"))
	assert.True(t, producesResultSet("SHOW server_version"))
	assert.True(t, producesResultSet("EXPLAIN SELECT 1"))
	assert.True(t, producesResultSet("VALUES (1), (2)"))
	assert.True(t, producesResultSet("TABLE users"))
	assert.True(t, producesResultSet("INSERT INTO t (a) VALUES (1) RETURNING id"))
	assert.False(t, producesResultSet("INSERT INTO t (a) VALUES (1)"))
	assert.False(t, producesResultSet("UPDATE t SET a=1"))
	assert.False(t, producesResultSet("VACUUM"))
}

func TestExecuteQueryRowsAndCount(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	c, err := New(dbtypes.ConnectionDetails{Host: "pg.example.com"}, nil)
	require.NoError(t, err)
	c.db = db

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM users")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))
	res := c.ExecuteQuery(context.Background(), "SELECT id FROM users")
	require.Equal(t, dbtypes.KindRows, res.Kind)
	assert.Equal(t, int64(42), res.Rows[0]["id"])

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE id = $1")).
		WithArgs(42).
		WillReturnResult(sqlmock.NewResult(0, 1))
	res = c.ExecuteQuery(context.Background(), "DELETE FROM users WHERE id = $1", 42)
	require.Equal(t, dbtypes.KindCount, res.Kind)
	assert.Equal(t, int64(1), res.Affected)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCloseIsIdempotent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	c, err := New(dbtypes.ConnectionDetails{Host: "pg.example.com"}, nil)
	require.NoError(t, err)
	c.db = db

	mock.ExpectClose()
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}
