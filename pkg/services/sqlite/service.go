// Package sqlite provides the table service for SQLite profiles. The
// profile's host field carries the database file path.
package sqlite

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/supporttools/GoDBVault/pkg/database/common"
	"github.com/supporttools/GoDBVault/pkg/database/pool"
	sqlitedb "github.com/supporttools/GoDBVault/pkg/database/sqlite"
	"github.com/supporttools/GoDBVault/pkg/dbtypes"
)

// pragmaSettings are the file-level knobs shown on the dashboard.
var pragmaSettings = []string{
	"journal_mode", "synchronous", "cache_size", "page_size",
	"page_count", "auto_vacuum", "foreign_keys", "user_version", "encoding",
}

// runner is the slice of the connector the service needs.
type runner interface {
	ExecuteQuery(ctx context.Context, query string, params ...any) dbtypes.QueryResult
	Close() error
}

// Service runs table operations over one SQLite database file.
type Service struct {
	details dbtypes.ConnectionDetails
	conn    runner
}

// New builds the service for the file named by details.Host.
func New(details dbtypes.ConnectionDetails, pools *pool.Manager) (*Service, error) {
	conn, err := sqlitedb.New(details, pools)
	if err != nil {
		return nil, err
	}
	return &Service{details: details, conn: conn}, nil
}

// Engine returns the engine name.
func (s *Service) Engine() dbtypes.EngineType {
	return dbtypes.EngineSQLite
}

// Close releases the underlying handle.
func (s *Service) Close() error {
	return s.conn.Close()
}

func (s *Service) quote(ident string) string {
	return common.QuoteIdent(dbtypes.EngineSQLite, ident)
}

// Browse returns one page of table rows.
func (s *Service) Browse(ctx context.Context, table string, opts dbtypes.BrowseOptions) (dbtypes.BrowseResult, error) {
	if !common.ValidIdent(table) {
		return dbtypes.BrowseResult{}, fmt.Errorf("invalid table name: %q", table)
	}
	qt := s.quote(table)

	infoRes := s.conn.ExecuteQuery(ctx, fmt.Sprintf("PRAGMA table_info(%s)", qt))
	if infoRes.IsError() {
		return dbtypes.BrowseResult{}, fmt.Errorf("failed to read columns for %s: %s", table, infoRes.Message)
	}

	columns := make([]string, 0, len(infoRes.Rows))
	primaryKey := ""
	for _, row := range infoRes.Rows {
		name, _ := row["name"].(string)
		columns = append(columns, name)
		if common.AsInt64(row["pk"]) > 0 && primaryKey == "" {
			primaryKey = name
		}
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
			conditions[i] = "lower(" + s.quote(col) + ") LIKE ?"
			params = append(params, "%"+strings.ToLower(opts.Search)+"%")
		}
		where = " WHERE " + strings.Join(conditions, " OR ")
	}

	countRes := s.conn.ExecuteQuery(ctx, "SELECT COUNT(*) AS total FROM "+qt+where, params...)
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
	dataRes := s.conn.ExecuteQuery(ctx, "SELECT * FROM "+qt+where+order+" LIMIT ? OFFSET ?",
		append(params, limit, offset)...)
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

// Structure returns columns plus indexes resolved through PRAGMA index_list
// and index_info.
func (s *Service) Structure(ctx context.Context, table string) (dbtypes.TableStructure, error) {
	if !common.ValidIdent(table) {
		return dbtypes.TableStructure{}, fmt.Errorf("invalid table name: %q", table)
	}
	qt := s.quote(table)

	infoRes := s.conn.ExecuteQuery(ctx, fmt.Sprintf("PRAGMA table_info(%s)", qt))
	if infoRes.IsError() {
		return dbtypes.TableStructure{}, fmt.Errorf("failed to read columns for %s: %s", table, infoRes.Message)
	}
	columns := make([]dbtypes.ColumnInfo, 0, len(infoRes.Rows))
	for _, row := range infoRes.Rows {
		name, _ := row["name"].(string)
		typ, _ := row["type"].(string)
		def, _ := row["dflt_value"].(string)
		key := ""
		if common.AsInt64(row["pk"]) > 0 {
			key = "PRI"
		}
		columns = append(columns, dbtypes.ColumnInfo{
			Name: name, Type: typ,
			Nullable: common.AsInt64(row["notnull"]) == 0,
			Default:  def, Key: key,
		})
	}

	listRes := s.conn.ExecuteQuery(ctx, fmt.Sprintf("PRAGMA index_list(%s)", qt))
	if listRes.IsError() {
		return dbtypes.TableStructure{}, fmt.Errorf("failed to read indexes for %s: %s", table, listRes.Message)
	}
	indexes := make([]dbtypes.IndexInfo, 0, len(listRes.Rows))
	for _, row := range listRes.Rows {
		idxName, _ := row["name"].(string)
		origin, _ := row["origin"].(string)
		idx := dbtypes.IndexInfo{
			Name:    idxName,
			Type:    "btree",
			Unique:  common.AsInt64(row["unique"]) == 1,
			Primary: origin == "pk",
		}
		if common.ValidIdent(idxName) {
			memberRes := s.conn.ExecuteQuery(ctx, fmt.Sprintf("PRAGMA index_info(%s)", s.quote(idxName)))
			if !memberRes.IsError() {
				for _, member := range memberRes.Rows {
					col, _ := member["name"].(string)
					idx.Columns = append(idx.Columns, col)
				}
			}
		}
		indexes = append(indexes, idx)
	}

	return dbtypes.TableStructure{Columns: columns, Indexes: indexes}, nil
}

// GetRow fetches a single row by primary key; a nil row means not found.
func (s *Service) GetRow(ctx context.Context, table, pkColumn string, pkValue any) (dbtypes.Row, error) {
	if !common.ValidIdent(table) || !common.ValidIdent(pkColumn) {
		return nil, fmt.Errorf("invalid identifier")
	}
	res := s.conn.ExecuteQuery(ctx,
		"SELECT * FROM "+s.quote(table)+" WHERE "+s.quote(pkColumn)+" = ?", pkValue)
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

	quoted := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	for i, col := range cols {
		quoted[i] = s.quote(col)
		placeholders[i] = "?"
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		s.quote(table), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))
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

	assignments := make([]string, len(cols))
	for i, col := range cols {
		assignments[i] = s.quote(col) + " = ?"
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
		s.quote(table), strings.Join(assignments, ", "), s.quote(pkColumn))
	return s.conn.ExecuteQuery(ctx, query, append(params, pkValue)...)
}

// DeleteRow deletes one row by primary key.
func (s *Service) DeleteRow(ctx context.Context, table, pkColumn string, pkValue any) dbtypes.QueryResult {
	if !common.ValidIdent(table) || !common.ValidIdent(pkColumn) {
		return dbtypes.ErrorResult("invalid identifier")
	}
	return s.conn.ExecuteQuery(ctx,
		"DELETE FROM "+s.quote(table)+" WHERE "+s.quote(pkColumn)+" = ?", pkValue)
}

// CreateTable creates a table. A single integer primary key is declared
// inline so AUTOINCREMENT stays legal; composite keys fall back to a
// trailing PRIMARY KEY clause.
func (s *Service) CreateTable(ctx context.Context, table string, columns []dbtypes.ColumnDefinition) dbtypes.QueryResult {
	if !common.ValidIdent(table) {
		return dbtypes.ErrorResult("invalid table name: %q", table)
	}
	if len(columns) == 0 {
		return dbtypes.ErrorResult("at least one column is required")
	}

	pkCount := 0
	for _, col := range columns {
		if col.PrimaryKey {
			pkCount++
		}
	}

	defs := make([]string, 0, len(columns)+1)
	var pks []string
	for _, col := range columns {
		if !common.ValidIdent(col.Name) {
			return dbtypes.ErrorResult("invalid column name: %q", col.Name)
		}
		typ := col.Type
		if col.Length > 0 && !strings.Contains(col.Type, "(") {
			typ += fmt.Sprintf("(%d)", col.Length)
		}
		def := s.quote(col.Name) + " " + typ

		if col.PrimaryKey && pkCount == 1 {
			def += " PRIMARY KEY"
			if col.AutoIncrement {
				if !strings.Contains(strings.ToLower(col.Type), "int") {
					return dbtypes.ErrorResult("AUTOINCREMENT requires an INTEGER primary key")
				}
				def += " AUTOINCREMENT"
			}
		} else {
			if col.PrimaryKey {
				pks = append(pks, s.quote(col.Name))
			}
			if !col.Nullable {
				def += " NOT NULL"
			}
		}
		if col.Default != "" {
			def += " DEFAULT " + common.QuoteLiteral(col.Default)
		}
		defs = append(defs, def)
	}
	if len(pks) > 0 {
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}
	return s.conn.ExecuteQuery(ctx,
		fmt.Sprintf("CREATE TABLE %s (%s)", s.quote(table), strings.Join(defs, ", ")))
}

// DropTable drops a table.
func (s *Service) DropTable(ctx context.Context, table string) dbtypes.QueryResult {
	if !common.ValidIdent(table) {
		return dbtypes.ErrorResult("invalid table name: %q", table)
	}
	return s.conn.ExecuteQuery(ctx, "DROP TABLE "+s.quote(table))
}

// AddColumn appends a column to an existing table.
func (s *Service) AddColumn(ctx context.Context, table string, col dbtypes.ColumnDefinition) dbtypes.QueryResult {
	if !common.ValidIdent(table) {
		return dbtypes.ErrorResult("invalid table name: %q", table)
	}
	if !common.ValidIdent(col.Name) {
		return dbtypes.ErrorResult("invalid column name: %q", col.Name)
	}
	typ := col.Type
	if col.Length > 0 && !strings.Contains(col.Type, "(") {
		typ += fmt.Sprintf("(%d)", col.Length)
	}
	def := s.quote(col.Name) + " " + typ
	if !col.Nullable {
		def += " NOT NULL"
	}
	if col.Default != "" {
		def += " DEFAULT " + common.QuoteLiteral(col.Default)
	}
	return s.conn.ExecuteQuery(ctx,
		fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", s.quote(table), def))
}

// ModifyColumn is not supported by the engine short of a table rebuild.
func (s *Service) ModifyColumn(_ context.Context, _, _ string, _ dbtypes.ColumnDefinition) dbtypes.QueryResult {
	return dbtypes.ErrorResult("sqlite does not support modifying columns; recreate the table instead")
}

// DropColumn removes a column (SQLite 3.35 or newer).
func (s *Service) DropColumn(ctx context.Context, table, column string) dbtypes.QueryResult {
	if !common.ValidIdent(table) || !common.ValidIdent(column) {
		return dbtypes.ErrorResult("invalid identifier")
	}
	return s.conn.ExecuteQuery(ctx,
		fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", s.quote(table), s.quote(column)))
}

// DropIndex removes an index.
func (s *Service) DropIndex(ctx context.Context, _ string, index string) dbtypes.QueryResult {
	if !common.ValidIdent(index) {
		return dbtypes.ErrorResult("invalid index name: %q", index)
	}
	return s.conn.ExecuteQuery(ctx, "DROP INDEX "+s.quote(index))
}

// RawQuery executes arbitrary SQL the caller is trusted with.
func (s *Service) RawQuery(ctx context.Context, query string) dbtypes.QueryResult {
	return s.conn.ExecuteQuery(ctx, query)
}

// DashboardStats reports database file info, the table inventory with row
// counts, and pragma settings. Every section degrades independently.
func (s *Service) DashboardStats(ctx context.Context) dbtypes.Row {
	stats := dbtypes.Row{
		"file_info": map[string]any{},
		"tables":    []dbtypes.Row{},
		"pragma":    map[string]any{},
	}

	if info, err := os.Stat(s.details.Host); err == nil {
		stats["file_info"] = map[string]any{
			"path":       s.details.Host,
			"size_bytes": info.Size(),
			"size":       humanize.Bytes(uint64(info.Size())),
			"modified":   info.ModTime().Format(time.RFC3339),
		}
	} else {
		log.Printf("Error reading SQLite file info: %v", err)
	}

	if res := s.conn.ExecuteQuery(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name"); !res.IsError() {
		tables := make([]dbtypes.Row, 0, len(res.Rows))
		for _, row := range res.Rows {
			name, _ := row["name"].(string)
			entry := dbtypes.Row{"name": name, "row_count": int64(0)}
			if common.ValidIdent(name) {
				countRes := s.conn.ExecuteQuery(ctx, "SELECT COUNT(*) AS total FROM "+s.quote(name))
				if !countRes.IsError() && len(countRes.Rows) > 0 {
					entry["row_count"] = common.AsInt64(countRes.Rows[0]["total"])
				}
			}
			tables = append(tables, entry)
		}
		stats["tables"] = tables
	} else {
		log.Printf("Error fetching SQLite tables: %s", res.Message)
	}

	pragma := make(map[string]any, len(pragmaSettings))
	for _, name := range pragmaSettings {
		res := s.conn.ExecuteQuery(ctx, "PRAGMA "+name)
		if res.IsError() || len(res.Rows) == 0 {
			continue
		}
		pragma[name] = res.Rows[0][name]
	}
	stats["pragma"] = pragma

	return stats
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
