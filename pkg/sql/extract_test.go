package sql

import (
	"reflect"
	"testing"
)

func TestExtractTables(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{
			name:  "single table",
			query: "SELECT id FROM sales",
			want:  []string{"sales"},
		},
		{
			name:  "join",
			query: "SELECT s.id FROM sales s JOIN products p ON s.product_id = p.id",
			want:  []string{"products", "sales"},
		},
		{
			name:  "duplicate references deduplicated",
			query: "SELECT a.id FROM sales a, sales b",
			want:  []string{"sales"},
		},
		{
			name:  "cte name excluded",
			query: "WITH top AS (SELECT id FROM sales) SELECT * FROM top",
			want:  []string{"sales"},
		},
		{
			name:  "subquery in from",
			query: "SELECT sub.id FROM (SELECT id FROM products) sub",
			want:  []string{"products"},
		},
		{
			name:  "subquery in where",
			query: "SELECT id FROM sales WHERE product_id IN (SELECT id FROM products)",
			want:  []string{"products", "sales"},
		},
		{
			name:  "union",
			query: "SELECT id FROM sales UNION SELECT id FROM products",
			want:  []string{"products", "sales"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractTables(tt.query)
			if err != nil {
				t.Fatalf("ExtractTables(%q) error: %v", tt.query, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractTables(%q) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}

func TestExtractTables_ParseError(t *testing.T) {
	if _, err := ExtractTables("not sql"); err == nil {
		t.Error("ExtractTables on invalid SQL: want error, got nil")
	}
}

func TestIsDangerousCommand(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  bool
	}{
		{"select", "SELECT id FROM sales", false},
		{"empty", "   ", false},
		{"drop", "DROP TABLE sales", true},
		{"mixed case drop", "dRoP tAbLe sales", true},
		{"update", "UPDATE sales SET revenue = 0", true},
		{"dml in cte", "WITH w AS (DELETE FROM sales RETURNING id) SELECT * FROM w", true},
		{"unparseable dangerous prefix", "DELETE FROM", true},
		{"unparseable harmless", "hello world", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsDangerousCommand(tt.query); got != tt.want {
				t.Errorf("IsDangerousCommand(%q) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}

func TestCheckForInjection(t *testing.T) {
	if res := CheckForInjection("top ten customers by revenue"); res != nil {
		t.Errorf("plain question flagged as injection: %+v", res)
	}

	res := CheckForInjection("1' OR '1'='1' --")
	if res == nil || !res.IsSQLi {
		t.Error("classic injection pattern not detected")
	}
}
