package sql

import (
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// NormalizeSQL canonicalizes a query for cache keying: the statement is
// parsed and deparsed so cosmetically different but logically identical
// queries produce identical text. The operation is idempotent. When the SQL
// does not parse, it degrades to case-folded trimmed text so that caching
// still works instead of erroring.
func NormalizeSQL(sqlText string) string {
	trimmed := stripTrailingSemicolon(strings.TrimSpace(sqlText))
	if trimmed == "" {
		return ""
	}

	result, err := pg_query.Parse(trimmed)
	if err != nil || len(result.Stmts) == 0 {
		return strings.ToUpper(trimmed)
	}

	normalized, err := pg_query.Deparse(result)
	if err != nil {
		return strings.ToUpper(trimmed)
	}
	return strings.TrimSpace(normalized)
}
