package gateway

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/alesierraalta/SQLAgent/pkg/apperrors"
)

// Failure classes used to pick correction hints and decide recoverability.
const (
	ErrColumnNotFound     = "COLUMN_NOT_FOUND"
	ErrTableNotFound      = "TABLE_NOT_FOUND"
	ErrSyntax             = "SYNTAX_ERROR"
	ErrTypeMismatch       = "TYPE_MISMATCH"
	ErrAggregate          = "AGGREGATE_ERROR"
	ErrJoin               = "JOIN_ERROR"
	ErrFunctionNotAllowed = "FUNCTION_NOT_ALLOWED"
	ErrUnknown            = "UNKNOWN_ERROR"
)

// ClassifyError maps a validation or execution failure to its class.
// PostgreSQL errors classify by SQLSTATE when available, with message
// matching as the fallback for providers that return bare strings.
func ClassifyError(err error) string {
	if err == nil {
		return ErrUnknown
	}

	var colErr *apperrors.InvalidColumnError
	if errors.As(err, &colErr) {
		return ErrColumnNotFound
	}
	var tblErr *apperrors.InvalidTableError
	if errors.As(err, &tblErr) {
		return ErrTableNotFound
	}
	var synErr *apperrors.SyntaxError
	if errors.As(err, &synErr) {
		return ErrSyntax
	}
	var fnErr *apperrors.FunctionNotAllowedError
	if errors.As(err, &fnErr) {
		return ErrFunctionNotAllowed
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "42703": // undefined_column
			return ErrColumnNotFound
		case "42P01": // undefined_table
			return ErrTableNotFound
		case "42601": // syntax_error
			return ErrSyntax
		case "42804", "22P02", "42883": // datatype mismatch, invalid text, undefined function signature
			return ErrTypeMismatch
		case "42803": // grouping_error
			return ErrAggregate
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "column") && strings.Contains(msg, "does not exist"):
		return ErrColumnNotFound
	case strings.Contains(msg, "relation") && strings.Contains(msg, "does not exist"):
		return ErrTableNotFound
	case strings.Contains(msg, "table") && strings.Contains(msg, "does not exist"):
		return ErrTableNotFound
	case strings.Contains(msg, "syntax error"):
		return ErrSyntax
	case strings.Contains(msg, "operator does not exist"),
		strings.Contains(msg, "invalid input syntax"),
		strings.Contains(msg, "cannot be cast"):
		return ErrTypeMismatch
	case strings.Contains(msg, "aggregate"),
		strings.Contains(msg, "group by"):
		return ErrAggregate
	case strings.Contains(msg, "join"):
		return ErrJoin
	default:
		return ErrUnknown
	}
}

// Recoverable reports whether a correction attempt is worth making for
// this failure. Infrastructure failures and cancellations are not fixable
// by rewriting SQL.
func Recoverable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	switch ClassifyError(err) {
	case ErrColumnNotFound, ErrTableNotFound, ErrSyntax, ErrTypeMismatch, ErrAggregate, ErrJoin, ErrFunctionNotAllowed:
		return true
	default:
		return false
	}
}
