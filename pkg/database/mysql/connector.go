// Package mysql implements the MySQL connector.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/supporttools/GoDBVault/pkg/database/common"
	"github.com/supporttools/GoDBVault/pkg/database/pool"
	"github.com/supporttools/GoDBVault/pkg/dbtypes"
)

const defaultPort = 3306

// readPrefixes are the statement verbs that produce result sets.
var readPrefixes = []string{"SELECT", "SHOW", "DESCRIBE", "EXPLAIN"}

// Connector implements common.Connector for MySQL and MariaDB servers.
type Connector struct {
	details dbtypes.ConnectionDetails
	pools   *pool.Manager
	db      *sql.DB
	pooled  bool
}

// New builds a MySQL connector. The connection itself is deferred to Connect.
func New(details dbtypes.ConnectionDetails, pools *pool.Manager) (*Connector, error) {
	if details.Host == "" {
		return nil, errors.New("MySQL host is required")
	}
	if details.Port == 0 {
		details.Port = defaultPort
	}
	return &Connector{details: details, pools: pools}, nil
}

// Engine returns the engine name.
func (c *Connector) Engine() dbtypes.EngineType {
	return dbtypes.EngineMySQL
}

func (c *Connector) dsn() string {
	cfg := mysql.NewConfig()
	cfg.User = c.details.Username
	cfg.Passwd = c.details.Password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", c.details.Host, c.details.Port)
	cfg.DBName = c.details.DatabaseName
	cfg.ParseTime = true
	cfg.Timeout = 10 * time.Second
	return cfg.FormatDSN()
}

// Connect acquires a pooled handle for this server, falling back to a direct
// connection when the pool cannot be created.
func (c *Connector) Connect(ctx context.Context) error {
	if c.db != nil {
		return nil
	}

	dsn := c.dsn()
	if c.pools != nil {
		db, err := c.pools.Get(ctx, "mysql", dsn, c.details.Fingerprint())
		if err == nil {
			c.db = db
			c.pooled = true
			return nil
		}
		log.Printf("Warning: pool unavailable for %s, using direct connection: %v", c.details.Fingerprint(), err)
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("failed to open MySQL connection to %s:%d: %w", c.details.Host, c.details.Port, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping MySQL server at %s:%d: %w", c.details.Host, c.details.Port, err)
	}
	c.db = db
	c.pooled = false
	return nil
}

// Close releases the connection. Pooled handles are returned to the manager;
// direct handles are closed outright. Safe to call twice.
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

// DB exposes the underlying handle for the table service. Connect must have
// succeeded first.
func (c *Connector) DB() *sql.DB {
	return c.db
}

// TestConnection connects, pings and reports the verdict. When the connector
// was not already connected it is left closed afterwards.
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

// ExecuteQuery runs one raw statement. Read verbs yield rows, everything else
// yields an affected-row count; failures come back as an error result.
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
	common.Register(dbtypes.EngineMySQL, func(details dbtypes.ConnectionDetails, pools *pool.Manager) (common.Connector, error) {
		return New(details, pools)
	})
}
