// Package postgresql provides the table service for PostgreSQL profiles.
// Table arguments may be schema-qualified ("schema.table"); the public
// schema is assumed otherwise.
package postgresql

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/supporttools/GoDBVault/pkg/database/common"
	pgdb "github.com/supporttools/GoDBVault/pkg/database/postgresql"
	"github.com/supporttools/GoDBVault/pkg/database/pool"
	"github.com/supporttools/GoDBVault/pkg/dbtypes"
)

const activityQuery = `
		SELECT
			pid,
			usename AS user,
			state,
			query,
			EXTRACT(EPOCH FROM (now() - query_start))::numeric(10,2) AS duration_sec,
			query_start
		FROM pg_stat_activity
		WHERE state IS NOT NULL
		AND query NOT LIKE '%pg_stat_activity%'
		ORDER BY query_start DESC
		LIMIT 10`

// runner is the slice of the connector the service needs.
type runner interface {
	ExecuteQuery(ctx context.Context, query string, params ...any) dbtypes.QueryResult
	Close() error
}

// Service runs table operations over one PostgreSQL connection.
type Service struct {
	details dbtypes.ConnectionDetails
	conn    runner
}

// New builds the service. The connection is acquired lazily on first use.
func New(details dbtypes.ConnectionDetails, pools *pool.Manager) (*Service, error) {
	conn, err := pgdb.New(details, pools)
	if err != nil {
		return nil, err
	}
	return &Service{details: details, conn: conn}, nil
}

// Engine returns the engine name.
func (s *Service) Engine() dbtypes.EngineType {
	return dbtypes.EnginePostgreSQL
}

// Close releases the underlying connection.
func (s *Service) Close() error {
	return s.conn.Close()
}

func (s *Service) quote(ident string) string {
	return common.QuoteIdent(dbtypes.EnginePostgreSQL, ident)
}

// splitQualified resolves a possibly schema-qualified name.
func splitQualified(table string) (schema, name string) {
	if i := strings.Index(table, "."); i >= 0 {
		return table[:i], table[i+1:]
	}
	return "public", table
}

// Browse returns one page of table rows; search ILIKEs every column cast to
// text, the PostgreSQL spelling of a case-insensitive substring match.
func (s *Service) Browse(ctx context.Context, table string, opts dbtypes.BrowseOptions) (dbtypes.BrowseResult, error) {
	if !common.ValidIdent(table) {
		return dbtypes.BrowseResult{}, fmt.Errorf("invalid table name: %q", table)
	}
	schema, name := splitQualified(table)
	qualified := s.quote(schema + "." + name)

	colsRes := s.conn.ExecuteQuery(ctx, `
		SELECT column_name, data_type, is_nullable, column_default
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`, schema, name)
	if colsRes.IsError() {
		return dbtypes.BrowseResult{}, fmt.Errorf("failed to read columns for %s: %s", table, colsRes.Message)
	}
	columns := make([]string, 0, len(colsRes.Rows))
	for _, row := range colsRes.Rows {
		col, _ := row["column_name"].(string)
		columns = append(columns, col)
	}

	primaryKey := ""
	pkRes := s.conn.ExecuteQuery(ctx, `
		SELECT a.attname
		FROM pg_index i
		JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = ANY(i.indkey)
		WHERE i.indrelid = $1::regclass AND i.indisprimary`, schema+"."+name)
	if !pkRes.IsError() && len(pkRes.Rows) > 0 {
		primaryKey, _ = pkRes.Rows[0]["attname"].(string)
	}
	if primaryKey == "" && len(columns) > 0 {
		primaryKey = columns[0]
	}

	page := opts.Page
	if page < 1 {
		page = 1
	}
	limit := dbtypes.ClampPageSize(opts.PageSize)

	where := ""
	var params []any
	if opts.Search != "" && len(columns) > 0 {
		conditions := make([]string, len(columns))
		for i, col := range columns {
			conditions[i] = fmt.Sprintf("%s::text ILIKE $%d", s.quote(col), len(params)+1)
			params = append(params, "%"+opts.Search+"%")
		}
		where = " WHERE " + strings.Join(conditions, " OR ")
	}

	countRes := s.conn.ExecuteQuery(ctx, "SELECT COUNT(*) AS total FROM "+qualified+where, params...)
	if countRes.IsError() {
		return dbtypes.BrowseResult{}, fmt.Errorf("failed to count rows in %s: %s", table, countRes.Message)
	}
	var total int64
	if len(countRes.Rows) > 0 {
		total = common.AsInt64(countRes.Rows[0]["total"])
	}
	totalPages, start, end := dbtypes.PageMath(total, page, limit)

	order := ""
	if opts.SortColumn != "" && containsColumn(columns, opts.SortColumn) {
		order = " ORDER BY " + s.quote(opts.SortColumn) + " " + sortDirection(opts.SortOrder)
	}

	offset := (page - 1) * limit
	dataQuery := fmt.Sprintf("SELECT * FROM %s%s%s LIMIT $%d OFFSET $%d",
		qualified, where, order, len(params)+1, len(params)+2)
	dataRes := s.conn.ExecuteQuery(ctx, dataQuery, append(params, limit, offset)...)
	if dataRes.IsError() {
		return dbtypes.BrowseResult{}, fmt.Errorf("failed to read rows from %s: %s", table, dataRes.Message)
	}

	return dbtypes.BrowseResult{
		Columns:    columns,
		PrimaryKey: primaryKey,
		Rows:       dataRes.Rows,
		TotalRows:  total,
		TotalPages: totalPages,
		StartIndex: start,
		EndIndex:   end,
	}, nil
}

// Structure returns columns, indexes and constraints for a table.
func (s *Service) Structure(ctx context.Context, table string) (dbtypes.TableStructure, error) {
	if !common.ValidIdent(table) {
		return dbtypes.TableStructure{}, fmt.Errorf("invalid table name: %q", table)
	}
	schema, name := splitQualified(table)

	colsRes := s.conn.ExecuteQuery(ctx, `
		SELECT
			column_name AS name,
			data_type AS type,
			character_maximum_length AS max_length,
			is_nullable AS nullable,
			column_default AS default_value
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`, schema, name)
	if colsRes.IsError() {
		return dbtypes.TableStructure{}, fmt.Errorf("failed to read columns for %s: %s", table, colsRes.Message)
	}
	columns := make([]dbtypes.ColumnInfo, 0, len(colsRes.Rows))
	for _, row := range colsRes.Rows {
		colName, _ := row["name"].(string)
		typ, _ := row["type"].(string)
		nullable, _ := row["nullable"].(string)
		def, _ := row["default_value"].(string)
		columns = append(columns, dbtypes.ColumnInfo{
			Name: colName, Type: typ, Nullable: nullable == "YES", Default: def,
		})
	}

	idxRes := s.conn.ExecuteQuery(ctx, `
		SELECT
			i.relname AS name,
			am.amname AS type,
			ix.indisunique AS is_unique,
			ix.indisprimary AS is_primary,
			array_to_string(array_agg(a.attname ORDER BY array_position(ix.indkey, a.attnum)), ', ') AS columns
		FROM pg_class t
		JOIN pg_index ix ON t.oid = ix.indrelid
		JOIN pg_class i ON i.oid = ix.indexrelid
		JOIN pg_am am ON i.relam = am.oid
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
		JOIN pg_namespace n ON n.oid = t.relnamespace
		WHERE t.relname = $1 AND n.nspname = $2
		GROUP BY i.relname, am.amname, ix.indisunique, ix.indisprimary`, name, schema)
	if idxRes.IsError() {
		return dbtypes.TableStructure{}, fmt.Errorf("failed to read indexes for %s: %s", table, idxRes.Message)
	}
	indexes := make([]dbtypes.IndexInfo, 0, len(idxRes.Rows))
	for _, row := range idxRes.Rows {
		idxName, _ := row["name"].(string)
		typ, _ := row["type"].(string)
		cols, _ := row["columns"].(string)
		indexes = append(indexes, dbtypes.IndexInfo{
			Name:    idxName,
			Type:    typ,
			Unique:  asBool(row["is_unique"]),
			Primary: asBool(row["is_primary"]),
			Columns: strings.Split(cols, ", "),
		})
	}

	constraints := make([]dbtypes.ConstraintInfo, 0)
	conRes := s.conn.ExecuteQuery(ctx, `
		SELECT
			conname AS name,
			contype AS type,
			pg_get_constraintdef(c.oid) AS definition
		FROM pg_constraint c
		JOIN pg_namespace n ON n.oid = c.connamespace
		JOIN pg_class t ON t.oid = c.conrelid
		WHERE t.relname = $1 AND n.nspname = $2`, name, schema)
	if !conRes.IsError() {
		for _, row := range conRes.Rows {
			conName, _ := row["name"].(string)
			typ, _ := row["type"].(string)
			def, _ := row["definition"].(string)
			constraints = append(constraints, dbtypes.ConstraintInfo{Name: conName, Type: typ, Definition: def})
		}
	}

	return dbtypes.TableStructure{Columns: columns, Indexes: indexes, Constraints: constraints}, nil
}

// GetRow fetches a single row by primary key; a nil row means not found.
func (s *Service) GetRow(ctx context.Context, table, pkColumn string, pkValue any) (dbtypes.Row, error) {
	if !common.ValidIdent(table) || !common.ValidIdent(pkColumn) {
		return nil, fmt.Errorf("invalid identifier")
	}
	schema, name := splitQualified(table)
	res := s.conn.ExecuteQuery(ctx,
		"SELECT * FROM "+s.quote(schema+"."+name)+" WHERE "+s.quote(pkColumn)+" = $1", pkValue)
	if res.IsError() {
		return nil, fmt.Errorf("%s", res.Message)
	}
	if len(res.Rows) == 0 {
		return nil, nil
	}
	return res.Rows[0], nil
}

// InsertRow inserts one row. Fields flagged null are written as NULL.
func (s *Service) InsertRow(ctx context.Context, table string, values dbtypes.RowValues) dbtypes.QueryResult {
	if !common.ValidIdent(table) {
		return dbtypes.ErrorResult("invalid table name: %q", table)
	}
	if len(values) == 0 {
		return dbtypes.ErrorResult("no values provided")
	}
	cols, params, err := orderedValues(values)
	if err != nil {
		return dbtypes.ErrorResult("%v", err)
	}

	schema, name := splitQualified(table)
	quoted := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	for i, col := range cols {
		quoted[i] = s.quote(col)
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		s.quote(schema+"."+name), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))
	return s.conn.ExecuteQuery(ctx, query, params...)
}

// UpdateRow updates one row by primary key.
func (s *Service) UpdateRow(ctx context.Context, table, pkColumn string, pkValue any, values dbtypes.RowValues) dbtypes.QueryResult {
	if !common.ValidIdent(table) || !common.ValidIdent(pkColumn) {
		return dbtypes.ErrorResult("invalid identifier")
	}
	if len(values) == 0 {
		return dbtypes.ErrorResult("no values provided")
	}
	cols, params, err := orderedValues(values)
	if err != nil {
		return dbtypes.ErrorResult("%v", err)
	}

	schema, name := splitQualified(table)
	assignments := make([]string, len(cols))
	for i, col := range cols {
		assignments[i] = fmt.Sprintf("%s = $%d", s.quote(col), i+1)
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d",
		s.quote(schema+"."+name), strings.Join(assignments, ", "), s.quote(pkColumn), len(cols)+1)
	return s.conn.ExecuteQuery(ctx, query, append(params, pkValue)...)
}

// DeleteRow deletes one row by primary key.
func (s *Service) DeleteRow(ctx context.Context, table, pkColumn string, pkValue any) dbtypes.QueryResult {
	if !common.ValidIdent(table) || !common.ValidIdent(pkColumn) {
		return dbtypes.ErrorResult("invalid identifier")
	}
	schema, name := splitQualified(table)
	return s.conn.ExecuteQuery(ctx,
		"DELETE FROM "+s.quote(schema+"."+name)+" WHERE "+s.quote(pkColumn)+" = $1", pkValue)
}

// CreateTable creates a table. Auto-increment columns become serial or
// bigserial; primary keys collect into a trailing clause.
func (s *Service) CreateTable(ctx context.Context, table string, columns []dbtypes.ColumnDefinition) dbtypes.QueryResult {
	if !common.ValidIdent(table) {
		return dbtypes.ErrorResult("invalid table name: %q", table)
	}
	if len(columns) == 0 {
		return dbtypes.ErrorResult("at least one column is required")
	}

	schema, name := splitQualified(table)
	defs := make([]string, 0, len(columns)+1)
	var pks []string
	for _, col := range columns {
		def, err := s.columnDefinition(col)
		if err != nil {
			return dbtypes.ErrorResult("%v", err)
		}
		defs = append(defs, def)
		if col.PrimaryKey {
			pks = append(pks, s.quote(col.Name))
		}
	}
	if len(pks) > 0 {
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}
	return s.conn.ExecuteQuery(ctx,
		fmt.Sprintf("CREATE TABLE %s (%s)", s.quote(schema+"."+name), strings.Join(defs, ", ")))
}

// DropTable drops a table.
func (s *Service) DropTable(ctx context.Context, table string) dbtypes.QueryResult {
	if !common.ValidIdent(table) {
		return dbtypes.ErrorResult("invalid table name: %q", table)
	}
	schema, name := splitQualified(table)
	return s.conn.ExecuteQuery(ctx, "DROP TABLE "+s.quote(schema+"."+name))
}

// AddColumn appends a column to an existing table.
func (s *Service) AddColumn(ctx context.Context, table string, col dbtypes.ColumnDefinition) dbtypes.QueryResult {
	if !common.ValidIdent(table) {
		return dbtypes.ErrorResult("invalid table name: %q", table)
	}
	def, err := s.columnDefinition(col)
	if err != nil {
		return dbtypes.ErrorResult("%v", err)
	}
	schema, name := splitQualified(table)
	return s.conn.ExecuteQuery(ctx,
		fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", s.quote(schema+"."+name), def))
}

// ModifyColumn rewrites a column as the statement sequence PostgreSQL
// requires: TYPE, then SET/DROP NOT NULL, then SET/DROP DEFAULT. The first
// failing statement aborts the sequence.
func (s *Service) ModifyColumn(ctx context.Context, table, column string, col dbtypes.ColumnDefinition) dbtypes.QueryResult {
	if !common.ValidIdent(table) || !common.ValidIdent(column) {
		return dbtypes.ErrorResult("invalid identifier")
	}
	schema, name := splitQualified(table)
	target := s.quote(schema+"."+name)
	qcol := s.quote(column)

	typeDef := col.Type
	if col.Length > 0 && !strings.Contains(col.Type, "(") {
		typeDef += fmt.Sprintf("(%d)", col.Length)
	}

	statements := []string{
		fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s", target, qcol, typeDef),
	}
	if col.Nullable {
		statements = append(statements,
			fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP NOT NULL", target, qcol))
	} else {
		statements = append(statements,
			fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET NOT NULL", target, qcol))
	}
	if col.Default != "" {
		statements = append(statements,
			fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET DEFAULT %s", target, qcol, common.QuoteLiteral(col.Default)))
	} else {
		statements = append(statements,
			fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP DEFAULT", target, qcol))
	}

	for _, stmt := range statements {
		if res := s.conn.ExecuteQuery(ctx, stmt); res.IsError() {
			return res
		}
	}
	return dbtypes.QueryResult{Kind: dbtypes.KindCount, Message: "success"}
}

// DropColumn removes a column.
func (s *Service) DropColumn(ctx context.Context, table, column string) dbtypes.QueryResult {
	if !common.ValidIdent(table) || !common.ValidIdent(column) {
		return dbtypes.ErrorResult("invalid identifier")
	}
	schema, name := splitQualified(table)
	return s.conn.ExecuteQuery(ctx,
		fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", s.quote(schema+"."+name), s.quote(column)))
}

// DropIndex drops an index. Indexes are schema-scoped objects here, so the
// index argument carries the qualification and the table is not needed.
func (s *Service) DropIndex(ctx context.Context, _ string, index string) dbtypes.QueryResult {
	if !common.ValidIdent(index) {
		return dbtypes.ErrorResult("invalid index name: %q", index)
	}
	schema, name := splitQualified(index)
	return s.conn.ExecuteQuery(ctx, "DROP INDEX "+s.quote(schema+"."+name))
}

// RawQuery executes arbitrary SQL the caller is trusted with.
func (s *Service) RawQuery(ctx context.Context, query string) dbtypes.QueryResult {
	return s.conn.ExecuteQuery(ctx, query)
}

// Activity returns the ten most recent entries from pg_stat_activity.
func (s *Service) Activity(ctx context.Context) dbtypes.QueryResult {
	return s.conn.ExecuteQuery(ctx, activityQuery)
}

// DashboardStats gathers version, connections, sizes, table inventory,
// recent activity and key settings. Every section degrades independently.
func (s *Service) DashboardStats(ctx context.Context) dbtypes.Row {
	stats := dbtypes.Row{
		"version":            "Unknown",
		"active_connections": int64(0),
		"max_connections":    int64(0),
		"database_size":      "0 MB",
		"tables":             []dbtypes.Row{},
		"activities":         []dbtypes.Row{},
		"settings":           map[string]any{},
	}

	if res := s.conn.ExecuteQuery(ctx, "SELECT version()"); !res.IsError() && len(res.Rows) > 0 {
		stats["version"] = res.Rows[0]["version"]
	} else if res.IsError() {
		log.Printf("Error fetching PostgreSQL version: %s", res.Message)
	}

	if res := s.conn.ExecuteQuery(ctx, `
		SELECT
			(SELECT count(*) FROM pg_stat_activity) AS active_connections,
			(SELECT setting::int FROM pg_settings WHERE name = 'max_connections') AS max_connections`); !res.IsError() && len(res.Rows) > 0 {
		stats["active_connections"] = common.AsInt64(res.Rows[0]["active_connections"])
		stats["max_connections"] = common.AsInt64(res.Rows[0]["max_connections"])
	} else if res.IsError() {
		log.Printf("Error fetching PostgreSQL connection stats: %s", res.Message)
	}

	if res := s.conn.ExecuteQuery(ctx,
		"SELECT pg_size_pretty(pg_database_size(current_database())) AS size"); !res.IsError() && len(res.Rows) > 0 {
		stats["database_size"] = res.Rows[0]["size"]
	} else if res.IsError() {
		log.Printf("Error fetching PostgreSQL database size: %s", res.Message)
	}

	if res := s.conn.ExecuteQuery(ctx, `
		SELECT
			schemaname AS schema,
			tablename AS name,
			'table' AS type,
			tableowner AS owner,
			pg_size_pretty(pg_total_relation_size(schemaname || '.' || tablename)) AS size,
			pg_total_relation_size(schemaname || '.' || tablename) AS size_bytes,
			(SELECT reltuples::bigint FROM pg_class WHERE oid = (schemaname || '.' || tablename)::regclass) AS estimated_rows
		FROM pg_tables
		WHERE schemaname NOT IN ('pg_catalog', 'information_schema')
		ORDER BY schemaname, tablename`); !res.IsError() {
		stats["tables"] = res.Rows
	} else {
		log.Printf("Error fetching PostgreSQL tables: %s", res.Message)
	}

	if res := s.conn.ExecuteQuery(ctx, activityQuery); !res.IsError() {
		stats["activities"] = res.Rows
	} else {
		log.Printf("Error fetching PostgreSQL activity: %s", res.Message)
	}

	if res := s.conn.ExecuteQuery(ctx, `
		SELECT name, setting, unit, short_desc
		FROM pg_settings
		WHERE name IN ('max_connections', 'shared_buffers', 'work_mem', 'maintenance_work_mem',
			'effective_cache_size', 'server_version', 'data_directory')`); !res.IsError() {
		settings := make(map[string]any, len(res.Rows))
		for _, row := range res.Rows {
			name, _ := row["name"].(string)
			settings[name] = row["setting"]
		}
		stats["settings"] = settings
	} else {
		log.Printf("Error fetching PostgreSQL settings: %s", res.Message)
	}

	return stats
}

// columnDefinition renders one column for CREATE/ALTER statements; serial
// types absorb auto-increment and are implicitly NOT NULL.
func (s *Service) columnDefinition(col dbtypes.ColumnDefinition) (string, error) {
	if !common.ValidIdent(col.Name) {
		return "", fmt.Errorf("invalid column name: %q", col.Name)
	}
	typ := col.Type
	if col.Length > 0 && !strings.Contains(col.Type, "(") {
		typ += fmt.Sprintf("(%d)", col.Length)
	}
	if col.AutoIncrement {
		if strings.Contains(strings.ToLower(col.Type), "big") {
			typ = "bigserial"
		} else {
			typ = "serial"
		}
	}
	def := s.quote(col.Name) + " " + typ
	if !col.Nullable && !col.AutoIncrement {
		def += " NOT NULL"
	}
	if col.Default != "" {
		def += " DEFAULT " + common.QuoteLiteral(col.Default)
	}
	return def, nil
}

// orderedValues flattens a value map into a deterministic column order.
func orderedValues(values dbtypes.RowValues) ([]string, []any, error) {
	cols := make([]string, 0, len(values))
	for col := range values {
		if !common.ValidIdent(col) {
			return nil, nil, fmt.Errorf("invalid column name: %q", col)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	params := make([]any, len(cols))
	for i, col := range cols {
		params[i] = values[col].Resolve()
	}
	return cols, params, nil
}

func containsColumn(columns []string, name string) bool {
	for _, col := range columns {
		if col == name {
			return true
		}
	}
	return false
}

func sortDirection(order string) string {
	if strings.EqualFold(order, "DESC") {
		return "DESC"
	}
	return "ASC"
}

func asBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return b == "t" || b == "true" || b == "Yes"
	case int64:
		return b != 0
	default:
		return false
	}
}
