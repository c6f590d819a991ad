// Package mysql provides the table service for MySQL and MariaDB profiles:
// browsing, row CRUD, DDL, raw queries and the server dashboard.
package mysql

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/supporttools/GoDBVault/pkg/database/common"
	mysqldb "github.com/supporttools/GoDBVault/pkg/database/mysql"
	"github.com/supporttools/GoDBVault/pkg/database/pool"
	"github.com/supporttools/GoDBVault/pkg/dbtypes"
)

// runner is the slice of the connector the service needs.
type runner interface {
	ExecuteQuery(ctx context.Context, query string, params ...any) dbtypes.QueryResult
	Close() error
}

// Service runs table operations over one MySQL connection.
type Service struct {
	details dbtypes.ConnectionDetails
	conn    runner
}

// New builds the service. The connection is acquired lazily on first use and
// released by Close.
func New(details dbtypes.ConnectionDetails, pools *pool.Manager) (*Service, error) {
	conn, err := mysqldb.New(details, pools)
	if err != nil {
		return nil, err
	}
	return &Service{details: details, conn: conn}, nil
}

// Engine returns the engine name.
func (s *Service) Engine() dbtypes.EngineType {
	return dbtypes.EngineMySQL
}

// Close releases the underlying connection.
func (s *Service) Close() error {
	return s.conn.Close()
}

func (s *Service) quote(ident string) string {
	return common.QuoteIdent(dbtypes.EngineMySQL, ident)
}

// Browse returns one page of table rows. Columns are introspected first so
// search can cover every column and sorting only accepts real column names.
func (s *Service) Browse(ctx context.Context, table string, opts dbtypes.BrowseOptions) (dbtypes.BrowseResult, error) {
	if !common.ValidIdent(table) {
		return dbtypes.BrowseResult{}, fmt.Errorf("invalid table name: %q", table)
	}
	qt := s.quote(table)

	colsRes := s.conn.ExecuteQuery(ctx, "SHOW COLUMNS FROM "+qt)
	if colsRes.IsError() {
		return dbtypes.BrowseResult{}, fmt.Errorf("failed to read columns for %s: %s", table, colsRes.Message)
	}

	columns := make([]string, 0, len(colsRes.Rows))
	primaryKey := ""
	for _, row := range colsRes.Rows {
		field, _ := row["Field"].(string)
		columns = append(columns, field)
		if key, _ := row["Key"].(string); key == "PRI" && primaryKey == "" {
			primaryKey = field
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
			conditions[i] = s.quote(col) + " LIKE ?"
			params = append(params, "%"+opts.Search+"%")
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

// Structure returns column details plus indexes grouped by key name.
func (s *Service) Structure(ctx context.Context, table string) (dbtypes.TableStructure, error) {
	if !common.ValidIdent(table) {
		return dbtypes.TableStructure{}, fmt.Errorf("invalid table name: %q", table)
	}
	qt := s.quote(table)

	colsRes := s.conn.ExecuteQuery(ctx, "SHOW FULL COLUMNS FROM "+qt)
	if colsRes.IsError() {
		return dbtypes.TableStructure{}, fmt.Errorf("failed to read columns for %s: %s", table, colsRes.Message)
	}
	columns := make([]dbtypes.ColumnInfo, 0, len(colsRes.Rows))
	for _, row := range colsRes.Rows {
		name, _ := row["Field"].(string)
		typ, _ := row["Type"].(string)
		nullable, _ := row["Null"].(string)
		def, _ := row["Default"].(string)
		key, _ := row["Key"].(string)
		extra, _ := row["Extra"].(string)
		columns = append(columns, dbtypes.ColumnInfo{
			Name: name, Type: typ, Nullable: nullable == "YES",
			Default: def, Key: key, Extra: extra,
		})
	}

	idxRes := s.conn.ExecuteQuery(ctx, "SHOW INDEX FROM "+qt)
	if idxRes.IsError() {
		return dbtypes.TableStructure{}, fmt.Errorf("failed to read indexes for %s: %s", table, idxRes.Message)
	}
	var order []string
	grouped := make(map[string]*dbtypes.IndexInfo)
	for _, row := range idxRes.Rows {
		keyName, _ := row["Key_name"].(string)
		idx, ok := grouped[keyName]
		if !ok {
			idxType, _ := row["Index_type"].(string)
			idx = &dbtypes.IndexInfo{
				Name:    keyName,
				Type:    idxType,
				Unique:  common.AsInt64(row["Non_unique"]) == 0,
				Primary: keyName == "PRIMARY",
			}
			grouped[keyName] = idx
			order = append(order, keyName)
		}
		col, _ := row["Column_name"].(string)
		idx.Columns = append(idx.Columns, col)
	}
	indexes := make([]dbtypes.IndexInfo, 0, len(order))
	for _, name := range order {
		indexes = append(indexes, *grouped[name])
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
	cols, params, err := s.orderedValues(values)
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
	cols, params, err := s.orderedValues(values)
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

// CreateTable creates a table from column definitions. Primary key columns
// are collected into a trailing PRIMARY KEY clause.
func (s *Service) CreateTable(ctx context.Context, table string, columns []dbtypes.ColumnDefinition) dbtypes.QueryResult {
	if !common.ValidIdent(table) {
		return dbtypes.ErrorResult("invalid table name: %q", table)
	}
	if len(columns) == 0 {
		return dbtypes.ErrorResult("at least one column is required")
	}

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
	def, err := s.columnDefinition(col)
	if err != nil {
		return dbtypes.ErrorResult("%v", err)
	}
	query := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", s.quote(table), def)
	if pos := s.positionClause(col.Position); pos != "" {
		query += pos
	}
	return s.conn.ExecuteQuery(ctx, query)
}

// ModifyColumn redefines an existing column in place.
func (s *Service) ModifyColumn(ctx context.Context, table, column string, col dbtypes.ColumnDefinition) dbtypes.QueryResult {
	if !common.ValidIdent(table) || !common.ValidIdent(column) {
		return dbtypes.ErrorResult("invalid identifier")
	}
	col.Name = column
	def, err := s.columnDefinition(col)
	if err != nil {
		return dbtypes.ErrorResult("%v", err)
	}
	query := fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN %s", s.quote(table), def)
	if pos := s.positionClause(col.Position); pos != "" {
		query += pos
	}
	return s.conn.ExecuteQuery(ctx, query)
}

// DropColumn removes a column.
func (s *Service) DropColumn(ctx context.Context, table, column string) dbtypes.QueryResult {
	if !common.ValidIdent(table) || !common.ValidIdent(column) {
		return dbtypes.ErrorResult("invalid identifier")
	}
	return s.conn.ExecuteQuery(ctx,
		fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", s.quote(table), s.quote(column)))
}

// DropIndex removes an index from a table.
func (s *Service) DropIndex(ctx context.Context, table, index string) dbtypes.QueryResult {
	if !common.ValidIdent(table) || !common.ValidIdent(index) {
		return dbtypes.ErrorResult("invalid identifier")
	}
	return s.conn.ExecuteQuery(ctx,
		fmt.Sprintf("DROP INDEX %s ON %s", s.quote(index), s.quote(table)))
}

// RawQuery executes arbitrary SQL the caller is trusted with.
func (s *Service) RawQuery(ctx context.Context, query string) dbtypes.QueryResult {
	return s.conn.ExecuteQuery(ctx, query)
}

// ProcessList returns SHOW PROCESSLIST.
func (s *Service) ProcessList(ctx context.Context) dbtypes.QueryResult {
	return s.conn.ExecuteQuery(ctx, "SHOW PROCESSLIST")
}

// DashboardStats gathers server status, variables, table status and the
// process list. Each section degrades to empty on failure so a restricted
// account still gets a partial dashboard.
func (s *Service) DashboardStats(ctx context.Context) dbtypes.Row {
	stats := dbtypes.Row{
		"status":      map[string]any{},
		"variables":   map[string]any{},
		"tables":      []dbtypes.Row{},
		"processlist": []dbtypes.Row{},
	}

	if res := s.conn.ExecuteQuery(ctx, "SHOW STATUS"); !res.IsError() {
		stats["status"] = variableMap(res.Rows)
	} else {
		log.Printf("Error fetching MySQL status: %s", res.Message)
	}
	if res := s.conn.ExecuteQuery(ctx, "SHOW VARIABLES"); !res.IsError() {
		stats["variables"] = variableMap(res.Rows)
	} else {
		log.Printf("Error fetching MySQL variables: %s", res.Message)
	}
	if res := s.conn.ExecuteQuery(ctx, "SHOW TABLE STATUS"); !res.IsError() {
		stats["tables"] = res.Rows
	} else {
		log.Printf("Error fetching MySQL table status: %s", res.Message)
	}
	if res := s.conn.ExecuteQuery(ctx, "SHOW PROCESSLIST"); !res.IsError() {
		stats["processlist"] = res.Rows
	} else {
		log.Printf("Error fetching MySQL processlist: %s", res.Message)
	}
	return stats
}

// columnDefinition renders one column for CREATE/ALTER statements.
func (s *Service) columnDefinition(col dbtypes.ColumnDefinition) (string, error) {
	if !common.ValidIdent(col.Name) {
		return "", fmt.Errorf("invalid column name: %q", col.Name)
	}
	def := s.quote(col.Name) + " " + col.Type
	if col.Length > 0 && !strings.Contains(col.Type, "(") {
		def += fmt.Sprintf("(%d)", col.Length)
	}
	if !col.Nullable {
		def += " NOT NULL"
	}
	if col.AutoIncrement {
		def += " AUTO_INCREMENT"
	}
	if col.Default != "" {
		def += " DEFAULT " + common.QuoteLiteral(col.Default)
	}
	return def, nil
}

// positionClause renders FIRST / AFTER for ALTER statements when valid.
func (s *Service) positionClause(position string) string {
	switch {
	case position == "":
		return ""
	case strings.EqualFold(position, "FIRST"):
		return " FIRST"
	case strings.HasPrefix(strings.ToUpper(position), "AFTER "):
		col := strings.TrimSpace(position[len("AFTER "):])
		if common.ValidIdent(col) {
			return " AFTER " + s.quote(col)
		}
	}
	return ""
}

// orderedValues flattens a value map into a deterministic column order.
func (s *Service) orderedValues(values dbtypes.RowValues) ([]string, []any, error) {
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

func variableMap(rows []dbtypes.Row) map[string]any {
	out := make(map[string]any, len(rows))
	for _, row := range rows {
		name, _ := row["Variable_name"].(string)
		out[name] = row["Value"]
	}
	return out
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
