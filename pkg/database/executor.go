package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/alesierraalta/SQLAgent/pkg/logging"
)

const (
	defaultQueryTimeout = 30 * time.Second
	defaultMaxRows      = 1000
)

// Executor runs validated SELECT statements and returns their rows as
// JSON. Statements execute inside a read-only transaction, so anything
// that slipped past validation still cannot write.
type Executor struct {
	db      *DB
	timeout time.Duration
	maxRows int
	logger  *zap.Logger
}

// ExecutorConfig tunes query execution. Zero values pick defaults.
type ExecutorConfig struct {
	Timeout time.Duration
	MaxRows int
}

func NewExecutor(db *DB, cfg ExecutorConfig, logger *zap.Logger) *Executor {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultQueryTimeout
	}
	if cfg.MaxRows == 0 {
		cfg.MaxRows = defaultMaxRows
	}
	return &Executor{
		db:      db,
		timeout: cfg.Timeout,
		maxRows: cfg.MaxRows,
		logger:  logger.Named("executor"),
	}
}

// Execute runs sqlText and returns the rows as a JSON array of objects
// keyed by column name, plus the row count. Result sets are truncated at
// the configured row cap.
func (e *Executor) Execute(ctx context.Context, sqlText string) (json.RawMessage, int, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()

	tx, err := e.db.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to begin read-only transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, sqlText)
	if err != nil {
		return nil, 0, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, fd := range fields {
		columns[i] = fd.Name
	}

	out := make([]map[string]any, 0)
	truncated := false
	for rows.Next() {
		if len(out) >= e.maxRows {
			truncated = true
			break
		}
		values, err := rows.Values()
		if err != nil {
			return nil, 0, fmt.Errorf("failed to read row: %w", err)
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("query failed: %w", err)
	}

	data, err := json.Marshal(out)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal rows: %w", err)
	}

	e.logger.Debug("Query executed",
		zap.String("sql", logging.SanitizeQuery(sqlText)),
		zap.Int("rows", len(out)),
		zap.Bool("truncated", truncated),
		zap.Duration("elapsed", time.Since(start)))

	return data, len(out), nil
}
