package mysql

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supporttools/GoDBVault/pkg/database/pool"
	"github.com/supporttools/GoDBVault/pkg/dbtypes"
)

func testConnector(t *testing.T) (*Connector, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	c, err := New(dbtypes.ConnectionDetails{
		Engine:       dbtypes.EngineMySQL,
		Host:         "db.example.com",
		Username:     "app",
		Password:     "secret",
		DatabaseName: "inventory",
	}, nil)
	require.NoError(t, err)
	c.db = db
	return c, mock
}

func TestNewRequiresHost(t *testing.T) {
	_, err := New(dbtypes.ConnectionDetails{}, nil)
	assert.Error(t, err)
}

func TestNewDefaultsPort(t *testing.T) {
	c, err := New(dbtypes.ConnectionDetails{Host: "h"}, nil)
	require.NoError(t, err)
	assert.Equal(t, defaultPort, c.details.Port)
}

func TestDSNShape(t *testing.T) {
	c, err := New(dbtypes.ConnectionDetails{
		Host: "db.example.com", Port: 3307, Username: "app", Password: "s3c", DatabaseName: "inventory",
	}, nil)
	require.NoError(t, err)

	dsn := c.dsn()
	assert.Contains(t, dsn, "tcp(db.example.com:3307)")
	assert.Contains(t, dsn, "/inventory")
	assert.Contains(t, dsn, "parseTime=true")
}

func TestIsReadStatement(t *testing.T) {
	assert.True(t, isReadStatement("SELECT 1"))
	assert.True(t, isReadStatement("  select * from t"))
	assert.True(t, isReadStatement("SHOW TABLES"))
	assert.True(t, isReadStatement("describe users"))
	assert.True(t, isReadStatement("EXPLAIN SELECT 1"))
	assert.False(t, isReadStatement("INSERT INTO t VALUES (1)"))
	assert.False(t, isReadStatement("UPDATE t SET a=1"))
	assert.False(t, isReadStatement("DELETE FROM t"))
	assert.False(t, isReadStatement("CREATE TABLE t (a int)"))
}

func TestExecuteQuerySelectReturnsRows(t *testing.T) {
	c, mock := testConnector(t)

	created := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, created_at FROM users")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "created_at"}).
			AddRow(int64(1), []byte("alice"), created))

	res := c.ExecuteQuery(context.Background(), "SELECT id, name, created_at FROM users")
	require.Equal(t, dbtypes.KindRows, res.Kind)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, []string{"id", "name", "created_at"}, res.Columns)
	assert.Equal(t, int64(1), res.Rows[0]["id"])
	assert.Equal(t, "alice", res.Rows[0]["name"])
	assert.Equal(t, "2024-05-01T09:30:00Z", res.Rows[0]["created_at"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteQueryWriteReturnsAffected(t *testing.T) {
	c, mock := testConnector(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET name=? WHERE id=?")).
		WithArgs("bob", 7).
		WillReturnResult(sqlmock.NewResult(0, 3))

	res := c.ExecuteQuery(context.Background(), "UPDATE users SET name=? WHERE id=?", "bob", 7)
	require.Equal(t, dbtypes.KindCount, res.Kind)
	assert.Equal(t, int64(3), res.Affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteQueryErrorBecomesErrorResult(t *testing.T) {
	c, mock := testConnector(t)

	mock.ExpectQuery("SELECT broken").WillReturnError(errors.New("table does not exist"))

	res := c.ExecuteQuery(context.Background(), "SELECT broken")
	require.True(t, res.IsError())
	assert.Contains(t, res.Message, "table does not exist")
}

func TestCloseIsIdempotent(t *testing.T) {
	c, mock := testConnector(t)
	mock.ExpectClose()

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.Nil(t, c.db)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClosePooledReleasesWithoutClosing(t *testing.T) {
	c, _ := testConnector(t)
	c.pools = pool.NewManager(2)
	c.pooled = true

	// No ExpectClose: a pooled handle must stay open for other leases.
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.False(t, c.pooled)
}
