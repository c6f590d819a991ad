// Package postgresql implements the PostgreSQL connector.
package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/supporttools/GoDBVault/pkg/database/common"
	"github.com/supporttools/GoDBVault/pkg/database/pool"
	"github.com/supporttools/GoDBVault/pkg/dbtypes"
)

const defaultPort = 5432

// Connector implements common.Connector for PostgreSQL servers.
type Connector struct {
	details dbtypes.ConnectionDetails
	pools   *pool.Manager
	db      *sql.DB
	pooled  bool
}

// New builds a PostgreSQL connector. The connection itself is deferred to Connect.
func New(details dbtypes.ConnectionDetails, pools *pool.Manager) (*Connector, error) {
	if details.Host == "" {
		return nil, errors.New("PostgreSQL host is required")
	}
	if details.Port == 0 {
		details.Port = defaultPort
	}
	return &Connector{details: details, pools: pools}, nil
}

// Engine returns the engine name.
func (c *Connector) Engine() dbtypes.EngineType {
	return dbtypes.EnginePostgreSQL
}

func (c *Connector) dsn() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable connect_timeout=10",
		c.details.Host, c.details.Port, c.details.Username, c.details.Password, c.details.DatabaseName)
}

// Connect acquires a pooled handle for this server, falling back to a direct
// connection when the pool cannot be created.
func (c *Connector) Connect(ctx context.Context) error {
	if c.db != nil {
		return nil
	}

	dsn := c.dsn()
	if c.pools != nil {
		db, err := c.pools.Get(ctx, "postgres", dsn, c.details.Fingerprint())
		if err == nil {
			c.db = db
			c.pooled = true
			return nil
		}
		log.Printf("Warning: pool unavailable for %s, using direct connection: %v", c.details.Fingerprint(), err)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("failed to open PostgreSQL connection to %s:%d: %w", c.details.Host, c.details.Port, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping PostgreSQL server at %s:%d: %w", c.details.Host, c.details.Port, err)
	}
	c.db = db
	c.pooled = false
	return nil
}

// Close releases the connection. Safe to call twice.
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

// TestConnection connects, pings and reports the verdict.
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

// ExecuteQuery runs one raw statement. Statements that produce a result set
// yield rows; everything else yields an affected-row count.
func (c *Connector) ExecuteQuery(ctx context.Context, query string, params ...any) dbtypes.QueryResult {
	if err := c.Connect(ctx); err != nil {
		return dbtypes.ErrorResult("%v", err)
	}

	if producesResultSet(query) {
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

// producesResultSet decides whether a statement returns rows. database/sql
// forces the decision before execution, so the verbs that open a result set
// are enumerated, and a RETURNING clause routes writes through the row path.
func producesResultSet(query string) bool {
	up := strings.ToUpper(strings.TrimSpace(query))
	for _, prefix := range []string{"SELECT", "WITH", "SHOW", "EXPLAIN", "VALUES", "TABLE"} {
		if strings.HasPrefix(up, prefix) {
			return true
		}
	}
	return strings.Contains(up, " RETURNING ")
}

func init() {
	common.Register(dbtypes.EnginePostgreSQL, func(details dbtypes.ConnectionDetails, pools *pool.Manager) (common.Connector, error) {
		return New(details, pools)
	})
}
