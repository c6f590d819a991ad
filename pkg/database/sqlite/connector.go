// Package sqlite implements the SQLite connector. The Host field of the
// connection details carries the database file path.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"strings"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/supporttools/GoDBVault/pkg/database/common"
	"github.com/supporttools/GoDBVault/pkg/database/pool"
	"github.com/supporttools/GoDBVault/pkg/dbtypes"
)

// readPrefixes are the statement verbs that produce result sets.
var readPrefixes = []string{"SELECT", "PRAGMA", "EXPLAIN"}

// Connector implements common.Connector for SQLite database files.
type Connector struct {
	details dbtypes.ConnectionDetails
	pools   *pool.Manager
	db      *sql.DB
	pooled  bool
}

// New builds a SQLite connector for the file named by details.Host.
func New(details dbtypes.ConnectionDetails, pools *pool.Manager) (*Connector, error) {
	if details.Host == "" {
		return nil, errors.New("SQLite database file path is required")
	}
	return &Connector{details: details, pools: pools}, nil
}

// Engine returns the engine name.
func (c *Connector) Engine() dbtypes.EngineType {
	return dbtypes.EngineSQLite
}

// Connect opens the database file, through the pool manager when available.
func (c *Connector) Connect(ctx context.Context) error {
	if c.db != nil {
		return nil
	}

	if c.pools != nil {
		db, err := c.pools.Get(ctx, "sqlite3", c.details.Host, c.details.Fingerprint())
		if err == nil {
			c.db = db
			c.pooled = true
			return nil
		}
		log.Printf("Warning: pool unavailable for %s, using direct connection: %v", c.details.Host, err)
	}

	db, err := sql.Open("sqlite3", c.details.Host)
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return err
	}
	c.db = db
	c.pooled = false
	return nil
}

// Close releases the handle. Safe to call twice.
func (c *Connector) Close() error {
	if c.db == nil {
		return nil
	}
	db := c.db
	c.db = nil
	if c.pooled {
		c.pools.Release(c.details.Fingerprint())
		c.pooled = false
		return nil
	}
	return db.Close()
}

// DB exposes the underlying handle for the table service.
func (c *Connector) DB() *sql.DB {
	return c.db
}

// TestConnection opens the file and reports the verdict.
func (c *Connector) TestConnection(ctx context.Context) (bool, string) {
	opened := c.db == nil
	if err := c.Connect(ctx); err != nil {
		return false, err.Error()
	}
	if opened {
		defer c.Close()
	}
	if err := c.db.PingContext(ctx); err != nil {
		return false, err.Error()
	}
	return true, "Connection successful"
}

// ExecuteQuery runs one raw statement. SELECT, PRAGMA and EXPLAIN yield rows,
// everything else yields an affected-row count.
func (c *Connector) ExecuteQuery(ctx context.Context, query string, params ...any) dbtypes.QueryResult {
	if err := c.Connect(ctx); err != nil {
		return dbtypes.ErrorResult("%v", err)
	}

	if isReadStatement(query) {
		rows, err := c.db.QueryContext(ctx, query, params...)
		if err != nil {
			return dbtypes.ErrorResult("%v", err)
		}
		defer rows.Close()
		data, cols, err := common.ScanRows(rows)
		if err != nil {
			return dbtypes.ErrorResult("%v", err)
		}
		res := dbtypes.RowsResult(data)
		res.Columns = cols
		return res
	}

	result, err := c.db.ExecContext(ctx, query, params...)
	if err != nil {
		return dbtypes.ErrorResult("%v", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		affected = 0
	}
	return dbtypes.CountResult(affected)
}

func isReadStatement(query string) bool {
	up := strings.ToUpper(strings.TrimSpace(query))
	for _, prefix := range readPrefixes {
		if strings.HasPrefix(up, prefix) {
			return true
		}
	}
	return false
}

func init() {
	common.Register(dbtypes.EngineSQLite, func(details dbtypes.ConnectionDetails, pools *pool.Manager) (common.Connector, error) {
		return New(details, pools)
	})
}
