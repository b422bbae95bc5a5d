package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanSQL(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "bare statement unchanged",
			input: "SELECT id FROM sales",
			want:  "SELECT id FROM sales",
		},
		{
			name:  "sql fence",
			input: "```sql\nSELECT id FROM sales\n```",
			want:  "SELECT id FROM sales",
		},
		{
			name:  "plain fence",
			input: "```\nSELECT id FROM sales\n```",
			want:  "SELECT id FROM sales",
		},
		{
			name:  "fence with surrounding prose",
			input: "Here is the query:\n```sql\nSELECT id FROM sales\n```\nThis selects all ids.",
			want:  "SELECT id FROM sales",
		},
		{
			name:  "leading prose without fence",
			input: "Sure, here you go: SELECT id FROM sales",
			want:  "SELECT id FROM sales",
		},
		{
			name:  "think tag stripped",
			input: "<think>the user wants ids</think>SELECT id FROM sales",
			want:  "SELECT id FROM sales",
		},
		{
			name:  "trailing semicolon stripped",
			input: "SELECT id FROM sales;",
			want:  "SELECT id FROM sales",
		},
		{
			name:  "with clause",
			input: "```sql\nWITH t AS (SELECT 1) SELECT * FROM t\n```",
			want:  "WITH t AS (SELECT 1) SELECT * FROM t",
		},
		{
			name:  "empty response",
			input: "   \n",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanSQL(tt.input))
		})
	}
}
