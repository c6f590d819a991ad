package common

import (
	"strings"

	"github.com/supporttools/GoDBVault/pkg/dbtypes"
)

// ValidIdent reports whether s is safe to use as an identifier: letters,
// digits, underscore, and dot for schema qualification. Everything that
// reaches a statement as an identifier must pass this first.
func ValidIdent(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '.' {
			continue
		}
		return false
	}
	return true
}

// QuoteIdent quotes a possibly schema-qualified identifier for the engine's
// dialect. Parts are expected to have passed ValidIdent already.
func QuoteIdent(engine dbtypes.EngineType, ident string) string {
	parts := strings.Split(ident, ".")
	for i, p := range parts {
		switch engine {
		case dbtypes.EnginePostgreSQL:
			p = strings.ReplaceAll(p, `"`, `""`)
			parts[i] = `"` + p + `"`
		case dbtypes.EngineMySQL, dbtypes.EngineSQLite:
			p = strings.ReplaceAll(p, "`", "``")
			parts[i] = "`" + p + "`"
		default:
			parts[i] = p
		}
	}
	return strings.Join(parts, ".")
}

// QuoteLiteral wraps a string value for direct embedding in DDL (column
// defaults). Statement parameters remain the rule for data values.
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// AsInt64 coerces the loosely typed values drivers hand back for counts.
func AsInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case uint64:
		return int64(n)
	case float64:
		return int64(n)
	case string:
		var out int64
		for _, r := range n {
			if r < '0' || r > '9' {
				return 0
			}
			out = out*10 + int64(r-'0')
		}
		return out
	default:
		return 0
	}
}
