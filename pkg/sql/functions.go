package sql

// DefaultAllowedFunctions is the read-only function whitelist: aggregates,
// string/date/math/conditional helpers, and casts. Names are matched
// case-insensitively against the last element of the parsed function name,
// so schema-qualified calls like pg_catalog.count are covered too.
var DefaultAllowedFunctions = []string{
	// Aggregates
	"sum", "count", "avg", "min", "max", "array_agg", "string_agg",
	// String manipulation
	// btrim is included because the grammar rewrites TRIM(...) syntax to it.
	"upper", "lower", "trim", "btrim", "ltrim", "rtrim", "length", "concat", "substring",
	// Dates
	"date_trunc", "extract", "now", "current_date", "current_timestamp",
	// Conditionals
	"coalesce", "nullif", "greatest", "least",
	// Math
	"round", "abs", "ceil", "floor",
	// Casting
	"cast", "to_char", "to_date", "to_number",
}

// DefaultDangerousKeywords are statement keywords that must never appear as
// table references. Actual dangerous statements are caught by AST node type;
// this list backs the reserved-name check on table references and the
// raw-text fallback of IsDangerousCommand.
var DefaultDangerousKeywords = []string{
	"drop", "insert", "update", "delete", "alter", "create",
	"truncate", "grant", "revoke", "exec", "execute",
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set
}
