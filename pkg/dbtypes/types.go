// Package dbtypes defines the shared domain types used across connectors,
// services, and the backup subsystem.
package dbtypes

import (
	"fmt"
	"strings"
)

// EngineType identifies a supported database engine family.
type EngineType string

const (
	// EngineMySQL is the MySQL relational engine
	EngineMySQL EngineType = "mysql"
	// EnginePostgreSQL is the PostgreSQL relational engine
	EnginePostgreSQL EngineType = "postgresql"
	// EngineSQLite is the SQLite embedded relational engine
	EngineSQLite EngineType = "sqlite"
	// EngineMongoDB is the MongoDB document engine
	EngineMongoDB EngineType = "mongodb"
	// EngineElasticsearch is the Elasticsearch search engine
	EngineElasticsearch EngineType = "elasticsearch"
)

// Engines lists every supported engine. Adding an engine means extending this
// list plus registering a connector and, where applicable, a backup handler.
var Engines = []EngineType{
	EngineMySQL,
	EnginePostgreSQL,
	EngineSQLite,
	EngineMongoDB,
	EngineElasticsearch,
}

// ParseEngine normalizes an external engine spelling ("MySQL", "PostgreSQL",
// "postgres", ...) to its canonical EngineType.
func ParseEngine(s string) (EngineType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mysql", "mariadb":
		return EngineMySQL, nil
	case "postgresql", "postgres":
		return EnginePostgreSQL, nil
	case "sqlite", "sqlite3":
		return EngineSQLite, nil
	case "mongodb", "mongo":
		return EngineMongoDB, nil
	case "elasticsearch", "elastic", "es":
		return EngineElasticsearch, nil
	default:
		return "", fmt.Errorf("unsupported engine type: %q", s)
	}
}

// ConnectionProfile is a stored, named connection definition. The password is
// held encrypted; decryption happens transiently when details are resolved.
type ConnectionProfile struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Engine       EngineType `json:"engine"`
	Host         string     `json:"host"`
	Port         int        `json:"port"`
	DatabaseName string     `json:"databaseName"` // database, index, or file path depending on engine
	Username     string     `json:"username"`
	Password     string     `json:"-"` // encrypted at rest, never serialized
	AuthSource   string     `json:"authSource,omitempty"`
	Category     string     `json:"category"`
}

// ConnectionDetails holds the plaintext connection fields for a single
// operation. Instances are derived from a profile at call time and must not
// be logged or cached.
type ConnectionDetails struct {
	Engine       EngineType
	Host         string
	Port         int
	DatabaseName string
	Username     string
	Password     string
	AuthSource   string
}

// Fingerprint returns the pool key for these details: host:port:user:db.
func (d ConnectionDetails) Fingerprint() string {
	return fmt.Sprintf("%s:%d:%s:%s", d.Host, d.Port, d.Username, d.DatabaseName)
}

// Row is a single result row keyed by column name.
type Row = map[string]any

// ResultKind discriminates the QueryResult union.
type ResultKind int

const (
	// KindRows indicates a result set is present
	KindRows ResultKind = iota
	// KindCount indicates a write with an affected-row count
	KindCount
	// KindError indicates a per-operation failure carried as data
	KindError
)

// QueryResult is the uniform result shape every engine adapter normalizes to.
// Exactly one of Rows, Affected, or Message is meaningful, selected by Kind.
type QueryResult struct {
	Kind     ResultKind `json:"kind"`
	Rows     []Row      `json:"rows,omitempty"`
	Columns  []string   `json:"columns,omitempty"` // inferred column order for raw queries
	Affected int64      `json:"affected,omitempty"`
	Message  string     `json:"message,omitempty"`
}

// RowsResult builds a result-set QueryResult.
func RowsResult(rows []Row) QueryResult {
	if rows == nil {
		rows = []Row{}
	}
	return QueryResult{Kind: KindRows, Rows: rows}
}

// CountResult builds an affected-count QueryResult.
func CountResult(n int64) QueryResult {
	return QueryResult{Kind: KindCount, Affected: n}
}

// ErrorResult builds a failure QueryResult. The message is data, not a Go
// error: callers at the service boundary must handle it without panicking.
func ErrorResult(format string, args ...any) QueryResult {
	return QueryResult{Kind: KindError, Message: fmt.Sprintf(format, args...)}
}

// IsError reports whether the result carries a per-operation failure.
func (r QueryResult) IsError() bool { return r.Kind == KindError }

// Field carries a single CRUD value together with an explicit set-to-null
// flag. NULL versus empty string is never inferred from absence.
type Field struct {
	Value any  `json:"value"`
	Null  bool `json:"null"`
}

// RowValues maps column names to CRUD fields.
type RowValues map[string]Field

// Resolve returns the driver-level value for the field: nil when the null
// flag is set, the raw value otherwise.
func (f Field) Resolve() any {
	if f.Null {
		return nil
	}
	return f.Value
}

// ColumnDefinition describes one column for DDL generation.
type ColumnDefinition struct {
	Name          string `json:"name"`
	Type          string `json:"type"`
	Length        int    `json:"length,omitempty"`
	Nullable      bool   `json:"nullable"`
	Default       string `json:"default,omitempty"`
	AutoIncrement bool   `json:"autoIncrement,omitempty"`
	PrimaryKey    bool   `json:"primaryKey,omitempty"`
	Position      string `json:"position,omitempty"` // e.g. "FIRST" or "AFTER col" where the dialect supports it
}

// ColumnInfo describes one introspected column.
type ColumnInfo struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
	Default  string `json:"default,omitempty"`
	Key      string `json:"key,omitempty"`
	Extra    string `json:"extra,omitempty"`
}

// IndexInfo describes one index grouped from engine metadata, with its member
// columns in index order.
type IndexInfo struct {
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Unique  bool     `json:"unique"`
	Primary bool     `json:"primary,omitempty"`
	Columns []string `json:"columns"`
}

// ConstraintInfo describes one table constraint (PostgreSQL reports these
// alongside indexes).
type ConstraintInfo struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Definition string `json:"definition"`
}

// TableStructure is the structure half of the browse contract.
type TableStructure struct {
	Columns     []ColumnInfo     `json:"columns"`
	Indexes     []IndexInfo      `json:"indexes"`
	Constraints []ConstraintInfo `json:"constraints,omitempty"`
}

// BrowseOptions carries the paging, search and sort knobs for table browsing.
// SortColumn is honored only when it names a real column; SortOrder is ASC
// unless explicitly DESC.
type BrowseOptions struct {
	Page       int64  `json:"page"`
	PageSize   int64  `json:"pageSize"`
	Search     string `json:"search,omitempty"`
	SortColumn string `json:"sortColumn,omitempty"`
	SortOrder  string `json:"sortOrder,omitempty"`
}

// BrowseResult is a page of table rows plus display bookkeeping. StartIndex
// and EndIndex are 1-based inclusive and both zero when the table is empty.
type BrowseResult struct {
	Columns    []string `json:"columns"`
	PrimaryKey string   `json:"primaryKey"`
	Rows       []Row    `json:"rows"`
	TotalRows  int64    `json:"totalRows"`
	TotalPages int64    `json:"totalPages"`
	StartIndex int64    `json:"startIndex"`
	EndIndex   int64    `json:"endIndex"`
}

// CollectionPage is the document-engine counterpart of BrowseResult.
type CollectionPage struct {
	Documents   []Row    `json:"documents"`
	Columns     []string `json:"columns"`
	TotalDocs   int64    `json:"totalDocs"`
	TotalPages  int64    `json:"totalPages"`
	CurrentPage int64    `json:"currentPage"`
	PerPage     int64    `json:"perPage"`
}

// PageMath computes the shared pagination bookkeeping: total pages as
// ceil(total/limit) and the 1-based inclusive display range, 0/0 when empty.
func PageMath(total, page, limit int64) (totalPages, startIndex, endIndex int64) {
	if limit <= 0 {
		limit = 1
	}
	totalPages = (total + limit - 1) / limit
	if total > 0 {
		startIndex = (page-1)*limit + 1
		endIndex = page * limit
		if endIndex > total {
			endIndex = total
		}
	}
	return totalPages, startIndex, endIndex
}

// ClampPageSize bounds a requested page size to [1,1000].
func ClampPageSize(limit int64) int64 {
	if limit < 1 {
		return 1
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}
