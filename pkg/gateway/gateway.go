// Package gateway orchestrates the question-to-result pipeline: cache
// probes, SQL generation, validation, execution, and learned correction.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/alesierraalta/SQLAgent/pkg/cache"
	"github.com/alesierraalta/SQLAgent/pkg/lock"
	"github.com/alesierraalta/SQLAgent/pkg/logging"
	"github.com/alesierraalta/SQLAgent/pkg/patterns"
	"github.com/alesierraalta/SQLAgent/pkg/schema"
	sqlutil "github.com/alesierraalta/SQLAgent/pkg/sql"
)

// ErrSuspiciousQuestion rejects questions that look like injection
// payloads rather than natural language.
var ErrSuspiciousQuestion = errors.New("question looks like an injection attempt")

// Result sources.
const (
	SourceExactCache    = "exact_cache"
	SourceSemanticCache = "semantic_cache"
	SourceExecuted      = "executed"
)

// QueryGenerator produces and repairs SQL. Implemented by llm.SQLGenerator.
type QueryGenerator interface {
	GenerateSQL(ctx context.Context, question, schemaDescription string) (string, error)
	CorrectSQL(ctx context.Context, failedSQL, errMsg, errorType, schemaDescription string) (string, error)
}

// QueryExecutor runs validated SQL. Implemented by database.Executor.
type QueryExecutor interface {
	Execute(ctx context.Context, sqlText string) (json.RawMessage, int, error)
}

// Validator checks SQL against the allowed catalog. Implemented by
// sql.Validator.
type Validator interface {
	Validate(sqlText string, catalog *schema.Catalog) error
}

// Result is the answer to a question.
type Result struct {
	Question   string          `json:"question"`
	SQL        string          `json:"sql"`
	Rows       json.RawMessage `json:"rows"`
	RowCount   int             `json:"row_count"`
	Source     string          `json:"source"`
	Corrected  bool            `json:"corrected,omitempty"`
	Similarity float64         `json:"similarity,omitempty"`
	Elapsed    time.Duration   `json:"elapsed_ns"`
}

// Config tunes the pipeline. Zero values pick defaults.
type Config struct {
	MaxCorrections int           // Correction attempts per request, default 2
	LockWait       time.Duration // Poll interval while waiting on a peer, default 100ms
}

// Gateway glues the collaborators together. All cache layers degrade to
// misses on failure; only generation, validation, and execution failures
// surface to the caller.
type Gateway struct {
	validator      Validator
	generator      QueryGenerator
	executor       QueryExecutor
	schemaProvider schema.Provider
	exactCache     *cache.QueryCache
	semanticCache  *cache.SemanticCache
	patternStore   *patterns.Store
	requestLock    *lock.RequestLock
	maxCorrections int
	lockWait       time.Duration
	logger         *zap.Logger
}

func New(
	validator Validator,
	generator QueryGenerator,
	executor QueryExecutor,
	schemaProvider schema.Provider,
	exactCache *cache.QueryCache,
	semanticCache *cache.SemanticCache,
	patternStore *patterns.Store,
	requestLock *lock.RequestLock,
	cfg Config,
	logger *zap.Logger,
) *Gateway {
	if cfg.MaxCorrections == 0 {
		cfg.MaxCorrections = 2
	}
	if cfg.LockWait == 0 {
		cfg.LockWait = 100 * time.Millisecond
	}
	return &Gateway{
		validator:      validator,
		generator:      generator,
		executor:       executor,
		schemaProvider: schemaProvider,
		exactCache:     exactCache,
		semanticCache:  semanticCache,
		patternStore:   patternStore,
		requestLock:    requestLock,
		maxCorrections: cfg.MaxCorrections,
		lockWait:       cfg.LockWait,
		logger:         logger.Named("gateway"),
	}
}

// Ask answers a natural-language question with data from the database,
// serving from cache when possible.
func (g *Gateway) Ask(ctx context.Context, question string) (*Result, error) {
	start := time.Now()

	if check := sqlutil.CheckForInjection(question); check != nil && check.IsSQLi {
		g.logger.Warn("Rejected suspicious question",
			zap.String("fingerprint", check.Fingerprint))
		return nil, ErrSuspiciousQuestion
	}

	fingerprint := cache.QuestionFingerprint(question)

	// Identical concurrent questions collapse onto one worker; the rest
	// wait and then serve from the caches the winner populated.
	release, acquired := g.requestLock.Acquire(ctx, fingerprint)
	if !acquired {
		g.logger.Debug("Waiting on concurrent identical request",
			zap.String("fingerprint", fingerprint))
		if err := g.requestLock.Wait(ctx, fingerprint, g.lockWait); err != nil {
			return nil, err
		}
		release, _ = g.requestLock.Acquire(ctx, fingerprint)
	}
	defer release()

	if hit, ok := g.semanticCache.Lookup(ctx, question); ok {
		g.logger.Info("Semantic cache hit",
			zap.Float64("similarity", hit.Similarity))
		return &Result{
			Question:   question,
			SQL:        hit.SQL,
			Rows:       hit.Result,
			RowCount:   countRows(hit.Result),
			Source:     SourceSemanticCache,
			Similarity: hit.Similarity,
			Elapsed:    time.Since(start),
		}, nil
	}

	catalog, err := g.schemaProvider.GetSchema(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}
	schemaDesc := catalog.Describe()

	sqlText, err := g.generator.GenerateSQL(ctx, question, schemaDesc)
	if err != nil {
		return nil, fmt.Errorf("failed to generate sql: %w", err)
	}

	result, err := g.runValidated(ctx, question, sqlText, catalog, schemaDesc)
	if err != nil {
		return nil, err
	}
	result.Question = question
	result.Elapsed = time.Since(start)
	return result, nil
}

// Execute validates and runs caller-supplied SQL, bypassing generation.
// It shares the cache and correction machinery with Ask.
func (g *Gateway) Execute(ctx context.Context, sqlText string) (*Result, error) {
	start := time.Now()

	catalog, err := g.schemaProvider.GetSchema(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}

	result, err := g.runValidated(ctx, "", sqlText, catalog, catalog.Describe())
	if err != nil {
		return nil, err
	}
	result.Elapsed = time.Since(start)
	return result, nil
}

// runValidated takes candidate SQL through validation, the exact cache,
// execution, and the correction loop.
func (g *Gateway) runValidated(ctx context.Context, question, sqlText string, catalog *schema.Catalog, schemaDesc string) (*Result, error) {
	attempt := func(candidate string) (*Result, error) {
		if err := g.validator.Validate(candidate, catalog); err != nil {
			return nil, err
		}

		if rows, ok := g.exactCache.Get(ctx, candidate); ok {
			g.logger.Info("Exact cache hit")
			return &Result{SQL: candidate, Rows: rows, RowCount: countRows(rows), Source: SourceExactCache}, nil
		}

		rows, count, err := g.executor.Execute(ctx, candidate)
		if err != nil {
			return nil, err
		}
		return &Result{SQL: candidate, Rows: rows, RowCount: count, Source: SourceExecuted}, nil
	}

	result, err := attempt(sqlText)
	current := sqlText
	for i := 0; err != nil && i < g.maxCorrections; i++ {
		if !Recoverable(err) {
			return nil, err
		}
		errorType := ClassifyError(err)
		g.logger.Info("Attempting correction",
			zap.String("error_type", errorType),
			zap.Int("attempt", i+1),
			zap.String("error", logging.SanitizeError(err)))

		corrected, cerr := g.correct(ctx, current, err.Error(), errorType, schemaDesc)
		if cerr != nil {
			g.logger.Warn("Correction failed", zap.Error(cerr))
			return nil, err
		}
		if corrected == current {
			return nil, err
		}

		failedSQL, failedMsg := current, err.Error()
		current = corrected
		result, err = attempt(corrected)
		if err == nil {
			g.patternStore.RecordCorrection(failedSQL, failedMsg, corrected)
			result.Corrected = true
		}
	}
	if err != nil {
		return nil, err
	}

	if result.Source == SourceExecuted {
		if cerr := g.exactCache.Set(ctx, result.SQL, result.Rows); cerr != nil {
			g.logger.Warn("Failed to populate exact cache", zap.Error(cerr))
		}
		if question != "" {
			g.semanticCache.Store(ctx, question, result.SQL, result.Rows)
		}
	}
	return result, nil
}

// correct looks for a remembered fix first and falls back to the model.
func (g *Gateway) correct(ctx context.Context, failedSQL, errMsg, errorType, schemaDesc string) (string, error) {
	if corrected, ok := g.patternStore.FindCorrection(failedSQL, errMsg); ok {
		g.logger.Info("Applying remembered correction")
		return corrected, nil
	}
	return g.generator.CorrectSQL(ctx, failedSQL, errMsg, errorType, schemaDesc)
}

// countRows recovers the row count from a cached result payload, which is
// always a JSON array of row objects.
func countRows(raw json.RawMessage) int {
	var rows []json.RawMessage
	if err := json.Unmarshal(raw, &rows); err != nil {
		return 0
	}
	return len(rows)
}

// Stats aggregates the state of the caching layers.
type Stats struct {
	ExactCache cache.QueryCacheStats `json:"exact_cache"`
	Patterns   patterns.Statistics   `json:"patterns"`
}

func (g *Gateway) Stats(ctx context.Context) (Stats, error) {
	exact, err := g.exactCache.Stats(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{ExactCache: exact, Patterns: g.patternStore.Stats()}, nil
}
