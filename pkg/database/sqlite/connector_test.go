package sqlite

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supporttools/GoDBVault/pkg/dbtypes"
)

func TestNewRequiresFilePath(t *testing.T) {
	_, err := New(dbtypes.ConnectionDetails{}, nil)
	assert.Error(t, err)
}

func TestIsReadStatement(t *testing.T) {
	assert.True(t, isReadStatement("SELECT * FROM t"))
	assert.True(t, isReadStatement("pragma table_info(users)"))
	assert.True(t, isReadStatement("EXPLAIN QUERY PLAN SELECT 1"))
	assert.False(t, isReadStatement("INSERT INTO t VALUES (1)"))
	assert.False(t, isReadStatement("DROP TABLE t"))
}

func TestExecuteQueryClassification(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	c, err := New(dbtypes.ConnectionDetails{Host: "/data/app.db"}, nil)
	require.NoError(t, err)
	c.db = db

	mock.ExpectQuery(regexp.QuoteMeta("PRAGMA table_info(users)")).
		WillReturnRows(sqlmock.NewRows([]string{"cid", "name"}).AddRow(int64(0), []byte("id")))
	res := c.ExecuteQuery(context.Background(), "PRAGMA table_info(users)")
	require.Equal(t, dbtypes.KindRows, res.Kind)
	assert.Equal(t, "id", res.Rows[0]["name"])

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users")).
		WillReturnResult(sqlmock.NewResult(0, 2))
	res = c.ExecuteQuery(context.Background(), "DELETE FROM users")
	require.Equal(t, dbtypes.KindCount, res.Kind)
	assert.Equal(t, int64(2), res.Affected)

	assert.NoError(t, mock.ExpectationsWereMet())
}
