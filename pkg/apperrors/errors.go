// Package apperrors defines the validation error taxonomy surfaced by the
// SQL gateway. Validation errors are fatal to the query that produced them;
// infrastructure failures (cache, lock, embeddings) are never represented
// here because they are absorbed at the call site.
package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyQuery indicates the submitted SQL was empty or only whitespace.
	ErrEmptyQuery = errors.New("empty SQL query")

	// ErrMultipleStatements indicates more than one statement was submitted.
	ErrMultipleStatements = errors.New("multiple SQL statements not allowed; only single statements are permitted")

	// ErrCommentNotAllowed indicates the SQL contains a comment marker.
	// Comments are rejected before parsing to avoid parser ambiguity attacks.
	ErrCommentNotAllowed = errors.New("SQL comments are not allowed")
)

// SyntaxError indicates the SQL could not be parsed.
type SyntaxError struct {
	Detail string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("SQL syntax error: %s", e.Detail)
}

// DangerousCommandError indicates a mutating or administrative statement.
type DangerousCommandError struct {
	Command string
}

func (e *DangerousCommandError) Error() string {
	return fmt.Sprintf("dangerous command %q detected; only SELECT queries are permitted", e.Command)
}

// InvalidTableError indicates a table reference not present in the schema.
type InvalidTableError struct {
	Table   string
	Allowed []string
}

func (e *InvalidTableError) Error() string {
	msg := fmt.Sprintf("table %q is not in the allowed schema", e.Table)
	if len(e.Allowed) > 0 {
		msg += "; allowed tables: " + strings.Join(e.Allowed, ", ")
	}
	return msg
}

// InvalidColumnError indicates a column reference not present in the
// resolved table. Table is empty when the column was unqualified and not
// found in any table of the schema.
type InvalidColumnError struct {
	Column  string
	Table   string
	Allowed []string
}

func (e *InvalidColumnError) Error() string {
	var msg string
	if e.Table != "" {
		msg = fmt.Sprintf("column %q does not exist in table %q", e.Column, e.Table)
	} else {
		msg = fmt.Sprintf("column %q does not exist in any table of the schema", e.Column)
	}
	if len(e.Allowed) > 0 {
		msg += "; allowed columns: " + strings.Join(e.Allowed, ", ")
	}
	return msg
}

// FunctionNotAllowedError indicates a function call outside the whitelist.
type FunctionNotAllowedError struct {
	Name    string
	Allowed []string
}

func (e *FunctionNotAllowedError) Error() string {
	msg := fmt.Sprintf("function %q is not allowed", e.Name)
	if len(e.Allowed) > 0 {
		msg += "; allowed functions: " + strings.Join(e.Allowed, ", ")
	}
	return msg
}

// IsValidationError reports whether err belongs to the validation taxonomy.
// The gateway uses this to distinguish rejections (propagated to the caller)
// from infrastructure failures (absorbed locally).
func IsValidationError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrEmptyQuery) || errors.Is(err, ErrMultipleStatements) || errors.Is(err, ErrCommentNotAllowed) {
		return true
	}
	var (
		syntaxErr    *SyntaxError
		dangerousErr *DangerousCommandError
		tableErr     *InvalidTableError
		columnErr    *InvalidColumnError
		funcErr      *FunctionNotAllowedError
	)
	return errors.As(err, &syntaxErr) ||
		errors.As(err, &dangerousErr) ||
		errors.As(err, &tableErr) ||
		errors.As(err, &columnErr) ||
		errors.As(err, &funcErr)
}
