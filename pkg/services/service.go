// Package services assembles the per-engine implementations behind
// engine-neutral interfaces. Row-and-table engines share TableService;
// MongoDB and Elasticsearch expose their own service shapes because their
// operations do not map onto tables.
package services

import (
	"context"
	"fmt"
	"io"

	"github.com/supporttools/GoDBVault/pkg/database/pool"
	"github.com/supporttools/GoDBVault/pkg/dbtypes"
	esservice "github.com/supporttools/GoDBVault/pkg/services/elasticsearch"
	mongoservice "github.com/supporttools/GoDBVault/pkg/services/mongodb"
	mysqlservice "github.com/supporttools/GoDBVault/pkg/services/mysql"
	pgservice "github.com/supporttools/GoDBVault/pkg/services/postgresql"
	sqliteservice "github.com/supporttools/GoDBVault/pkg/services/sqlite"
)

// TableService is the uniform surface for engines that store rows in tables.
type TableService interface {
	Engine() dbtypes.EngineType
	Close() error

	DashboardStats(ctx context.Context) dbtypes.Row
	Browse(ctx context.Context, table string, opts dbtypes.BrowseOptions) (dbtypes.BrowseResult, error)
	Structure(ctx context.Context, table string) (dbtypes.TableStructure, error)
	GetRow(ctx context.Context, table, pkColumn string, pkValue any) (dbtypes.Row, error)
	InsertRow(ctx context.Context, table string, values dbtypes.RowValues) dbtypes.QueryResult
	UpdateRow(ctx context.Context, table, pkColumn string, pkValue any, values dbtypes.RowValues) dbtypes.QueryResult
	DeleteRow(ctx context.Context, table, pkColumn string, pkValue any) dbtypes.QueryResult
	CreateTable(ctx context.Context, table string, columns []dbtypes.ColumnDefinition) dbtypes.QueryResult
	DropTable(ctx context.Context, table string) dbtypes.QueryResult
	AddColumn(ctx context.Context, table string, col dbtypes.ColumnDefinition) dbtypes.QueryResult
	ModifyColumn(ctx context.Context, table, column string, col dbtypes.ColumnDefinition) dbtypes.QueryResult
	DropColumn(ctx context.Context, table, column string) dbtypes.QueryResult
	DropIndex(ctx context.Context, table, index string) dbtypes.QueryResult
	RawQuery(ctx context.Context, query string) dbtypes.QueryResult
}

// TableExporter is implemented by services that can stream a table to and
// from flat files. Export and import tasks reject engines without it.
type TableExporter interface {
	ExportTable(ctx context.Context, table, format string, w io.Writer) (int64, error)
	ImportTable(ctx context.Context, table, format string, r io.Reader) (int64, error)
}

// NewTableService builds the service for a row-and-table engine. Adding an
// engine means adding a switch arm here.
func NewTableService(details dbtypes.ConnectionDetails, pools *pool.Manager) (TableService, error) {
	switch details.Engine {
	case dbtypes.EngineMySQL:
		return mysqlservice.New(details, pools)
	case dbtypes.EnginePostgreSQL:
		return pgservice.New(details, pools)
	case dbtypes.EngineSQLite:
		return sqliteservice.New(details, pools)
	case dbtypes.EngineMongoDB:
		return nil, fmt.Errorf("engine %s uses the collection service", details.Engine)
	case dbtypes.EngineElasticsearch:
		return nil, fmt.Errorf("engine %s uses the search service", details.Engine)
	default:
		return nil, fmt.Errorf("unsupported engine: %s", details.Engine)
	}
}

// NewCollectionService builds the document service for MongoDB profiles.
func NewCollectionService(details dbtypes.ConnectionDetails, pools *pool.Manager) (*mongoservice.Service, error) {
	if details.Engine != dbtypes.EngineMongoDB {
		return nil, fmt.Errorf("engine %s does not support collection operations", details.Engine)
	}
	return mongoservice.New(details, pools)
}

// NewSearchService builds the search service for Elasticsearch profiles.
func NewSearchService(details dbtypes.ConnectionDetails, pools *pool.Manager) (*esservice.Service, error) {
	if details.Engine != dbtypes.EngineElasticsearch {
		return nil, fmt.Errorf("engine %s does not support search operations", details.Engine)
	}
	return esservice.New(details, pools)
}
