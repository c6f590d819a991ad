package common

import (
	"database/sql"
	"encoding/base64"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/supporttools/GoDBVault/pkg/dbtypes"
)

// ScanRows drains a result set into transport-safe row maps and returns the
// column order the driver reported. The caller still owns rows.Close.
func ScanRows(rows *sql.Rows) ([]dbtypes.Row, []string, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to read result columns")
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to read column types")
	}

	out := make([]dbtypes.Row, 0)
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, errors.Wrap(err, "failed to scan row")
		}

		row := make(dbtypes.Row, len(cols))
		for i, col := range cols {
			v := NormalizeValue(raw[i])
			if s, ok := v.(string); ok && isDecimalType(types[i].DatabaseTypeName()) {
				if f, perr := strconv.ParseFloat(s, 64); perr == nil {
					v = f
				}
			}
			row[col] = v
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, errors.Wrap(err, "error iterating result rows")
	}
	return out, cols, nil
}

// NormalizeValue converts a driver value into something encoding/json can
// carry without surprises: timestamps become RFC 3339 strings, byte slices
// become text when they are valid UTF-8 and base64 otherwise.
func NormalizeValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case time.Time:
		return val.Format(time.RFC3339)
	case []byte:
		if utf8.Valid(val) {
			return string(val)
		}
		return base64.StdEncoding.EncodeToString(val)
	default:
		return val
	}
}

// isDecimalType matches the fixed-point types drivers hand back as text.
func isDecimalType(dbType string) bool {
	up := strings.ToUpper(dbType)
	return strings.Contains(up, "DECIMAL") || strings.Contains(up, "NUMERIC")
}
