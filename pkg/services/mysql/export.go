package mysql

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	"github.com/supporttools/GoDBVault/pkg/database/common"
	"github.com/supporttools/GoDBVault/pkg/dbtypes"
)

// ExportTable streams the full table to w in the requested format (csv or
// json) and returns the number of rows written.
func (s *Service) ExportTable(ctx context.Context, table, format string, w io.Writer) (int64, error) {
	if !common.ValidIdent(table) {
		return 0, fmt.Errorf("invalid table name: %q", table)
	}

	res := s.conn.ExecuteQuery(ctx, "SELECT * FROM "+s.quote(table))
	if res.IsError() {
		return 0, fmt.Errorf("failed to read table %s: %s", table, res.Message)
	}

	switch format {
	case "csv":
		writer := csv.NewWriter(w)
		if err := writer.Write(res.Columns); err != nil {
			return 0, fmt.Errorf("failed to write CSV header: %w", err)
		}
		for _, row := range res.Rows {
			record := make([]string, len(res.Columns))
			for i, col := range res.Columns {
				if v := row[col]; v != nil {
					record[i] = fmt.Sprint(v)
				}
			}
			if err := writer.Write(record); err != nil {
				return 0, fmt.Errorf("failed to write CSV row: %w", err)
			}
		}
		writer.Flush()
		if err := writer.Error(); err != nil {
			return 0, fmt.Errorf("failed to flush CSV: %w", err)
		}
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res.Rows); err != nil {
			return 0, fmt.Errorf("failed to encode JSON: %w", err)
		}
	default:
		return 0, fmt.Errorf("unsupported export format: %q", format)
	}

	return int64(len(res.Rows)), nil
}

// ImportTable replays rows from r into the table and returns how many were
// inserted. CSV input must carry a header row naming the target columns;
// JSON input is an array of objects.
func (s *Service) ImportTable(ctx context.Context, table, format string, r io.Reader) (int64, error) {
	if !common.ValidIdent(table) {
		return 0, fmt.Errorf("invalid table name: %q", table)
	}

	var inserted int64
	switch format {
	case "csv":
		reader := csv.NewReader(r)
		header, err := reader.Read()
		if err != nil {
			return 0, fmt.Errorf("failed to read CSV header: %w", err)
		}
		for {
			record, err := reader.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				return inserted, fmt.Errorf("failed to read CSV row %d: %w", inserted+1, err)
			}
			values := make(dbtypes.RowValues, len(header))
			for i, col := range header {
				if i < len(record) {
					values[col] = dbtypes.Field{Value: record[i]}
				}
			}
			res := s.InsertRow(ctx, table, values)
			if res.IsError() {
				return inserted, fmt.Errorf("failed to insert row %d: %s", inserted+1, res.Message)
			}
			inserted += res.Affected
		}
	case "json":
		var rows []map[string]any
		if err := json.NewDecoder(r).Decode(&rows); err != nil {
			return 0, fmt.Errorf("failed to decode JSON: %w", err)
		}
		for i, row := range rows {
			values := make(dbtypes.RowValues, len(row))
			for col, v := range row {
				values[col] = dbtypes.Field{Value: v, Null: v == nil}
			}
			res := s.InsertRow(ctx, table, values)
			if res.IsError() {
				return inserted, fmt.Errorf("failed to insert row %d: %s", i+1, res.Message)
			}
			inserted += res.Affected
		}
	default:
		return 0, fmt.Errorf("unsupported import format: %q", format)
	}

	return inserted, nil
}
