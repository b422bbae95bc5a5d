// Package prompts builds the prompts used for SQL generation and
// correction.
package prompts

import (
	"fmt"
	"strings"
)

// GenerationSystemMessage frames the model as a SQL writer for analytics
// questions.
const GenerationSystemMessage = "You are an expert PostgreSQL analyst. " +
	"You translate questions into a single read-only SQL query. " +
	"Respond with the SQL statement only, no explanation."

// CorrectionSystemMessage frames the model as a SQL repair assistant.
const CorrectionSystemMessage = "You are an expert PostgreSQL analyst. " +
	"You fix broken SQL queries. " +
	"Respond with the corrected SQL statement only, no explanation."

// GenerationContext provides everything the model needs to write a query.
type GenerationContext struct {
	Question string
	Schema   string // Catalog description, one table per block
}

// BuildGenerationPrompt creates the prompt for translating a question into
// SQL against the described schema.
func BuildGenerationPrompt(gc GenerationContext) string {
	var prompt strings.Builder

	prompt.WriteString("# Database Schema\n\n")
	prompt.WriteString(gc.Schema)
	prompt.WriteString("\n\n# Rules\n\n")
	prompt.WriteString("- Write exactly one SELECT statement.\n")
	prompt.WriteString("- Use only the tables and columns listed above.\n")
	prompt.WriteString("- Never modify data: no INSERT, UPDATE, DELETE, DDL.\n")
	prompt.WriteString("- Prefer explicit column lists over SELECT *.\n")
	prompt.WriteString("\n# Question\n\n")
	prompt.WriteString(gc.Question)
	prompt.WriteString("\n")

	return prompt.String()
}

// CorrectionContext provides the failure details for a repair attempt.
type CorrectionContext struct {
	FailedSQL    string
	ErrorMessage string
	ErrorType    string // Classification label, e.g. COLUMN_NOT_FOUND
	Schema       string
}

// errorHints gives the model targeted guidance per failure class.
var errorHints = map[string]string{
	"COLUMN_NOT_FOUND": "A referenced column does not exist. Check the schema for the correct column name or a close variant.",
	"TABLE_NOT_FOUND":  "A referenced table does not exist. Use only the tables listed in the schema.",
	"SYNTAX_ERROR":     "The statement has a syntax error. Rewrite it as valid PostgreSQL.",
	"TYPE_MISMATCH":    "An operation mixes incompatible types. Add the appropriate cast.",
	"AGGREGATE_ERROR":  "Aggregate usage is invalid. Ensure non-aggregated columns appear in GROUP BY.",
	"JOIN_ERROR":       "A join is malformed. Check the join condition against the foreign keys in the schema.",
}

// BuildCorrectionPrompt creates the prompt for repairing a failed query.
func BuildCorrectionPrompt(cc CorrectionContext) string {
	var prompt strings.Builder

	prompt.WriteString("# Database Schema\n\n")
	prompt.WriteString(cc.Schema)
	prompt.WriteString("\n\n# Failed Query\n\n")
	prompt.WriteString(cc.FailedSQL)
	prompt.WriteString("\n\n# Error\n\n")
	prompt.WriteString(cc.ErrorMessage)
	if hint, ok := errorHints[cc.ErrorType]; ok {
		prompt.WriteString(fmt.Sprintf("\n\n# Hint\n\n%s", hint))
	}
	prompt.WriteString("\n\n# Rules\n\n")
	prompt.WriteString("- Keep the query's intent; change only what the error requires.\n")
	prompt.WriteString("- Write exactly one SELECT statement.\n")
	prompt.WriteString("- Use only the tables and columns listed in the schema.\n")

	return prompt.String()
}
