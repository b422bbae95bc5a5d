package sql

import "testing"

func TestNormalizeSQL_EquivalentQueriesCollide(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
	}{
		{
			name: "whitespace differences",
			a:    "SELECT id,   revenue FROM sales",
			b:    "SELECT id, revenue\nFROM sales",
		},
		{
			name: "keyword casing",
			a:    "select id from sales where country = 'DE'",
			b:    "SELECT id FROM sales WHERE country = 'DE'",
		},
		{
			name: "trailing semicolon",
			a:    "SELECT id FROM sales;",
			b:    "SELECT id FROM sales",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, want := NormalizeSQL(tt.a), NormalizeSQL(tt.b); got != want {
				t.Errorf("NormalizeSQL mismatch:\n  %q -> %q\n  %q -> %q", tt.a, got, tt.b, want)
			}
		})
	}
}

func TestNormalizeSQL_Idempotent(t *testing.T) {
	queries := []string{
		"SELECT id, revenue FROM sales WHERE country = 'DE' ORDER BY revenue DESC",
		"select count(*) from sales group by country",
		"WITH top AS (SELECT id FROM sales) SELECT * FROM top",
		"this is not sql at all",
		"",
	}

	for _, q := range queries {
		once := NormalizeSQL(q)
		twice := NormalizeSQL(once)
		if once != twice {
			t.Errorf("NormalizeSQL not idempotent for %q: %q != %q", q, once, twice)
		}
	}
}

func TestNormalizeSQL_FallbackOnParseFailure(t *testing.T) {
	got := NormalizeSQL("  not valid sql  ")
	if got != "NOT VALID SQL" {
		t.Errorf("NormalizeSQL fallback = %q, want %q", got, "NOT VALID SQL")
	}
}

func TestNormalizeSQL_DistinctQueriesStayDistinct(t *testing.T) {
	a := NormalizeSQL("SELECT id FROM sales")
	b := NormalizeSQL("SELECT revenue FROM sales")
	if a == b {
		t.Errorf("distinct queries normalized to the same text: %q", a)
	}
}
