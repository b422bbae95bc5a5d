package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/alesierraalta/SQLAgent/pkg/apperrors"
	"github.com/alesierraalta/SQLAgent/pkg/cache"
	"github.com/alesierraalta/SQLAgent/pkg/lock"
	"github.com/alesierraalta/SQLAgent/pkg/patterns"
	"github.com/alesierraalta/SQLAgent/pkg/schema"
	sqlutil "github.com/alesierraalta/SQLAgent/pkg/sql"
)

type fakeGenerator struct {
	GenerateSQLFunc func(ctx context.Context, question, schemaDescription string) (string, error)
	CorrectSQLFunc  func(ctx context.Context, failedSQL, errMsg, errorType, schemaDescription string) (string, error)

	GenerateCalls int
	CorrectCalls  int
}

func (f *fakeGenerator) GenerateSQL(ctx context.Context, question, schemaDescription string) (string, error) {
	f.GenerateCalls++
	return f.GenerateSQLFunc(ctx, question, schemaDescription)
}

func (f *fakeGenerator) CorrectSQL(ctx context.Context, failedSQL, errMsg, errorType, schemaDescription string) (string, error) {
	f.CorrectCalls++
	if f.CorrectSQLFunc == nil {
		return "", errors.New("no correction configured")
	}
	return f.CorrectSQLFunc(ctx, failedSQL, errMsg, errorType, schemaDescription)
}

type fakeExecutor struct {
	ExecuteFunc  func(ctx context.Context, sqlText string) (json.RawMessage, int, error)
	ExecuteCalls int
}

func (f *fakeExecutor) Execute(ctx context.Context, sqlText string) (json.RawMessage, int, error) {
	f.ExecuteCalls++
	return f.ExecuteFunc(ctx, sqlText)
}

type staticProvider struct {
	catalog *schema.Catalog
}

func (p *staticProvider) GetSchema(ctx context.Context) (*schema.Catalog, error) {
	return p.catalog, nil
}

func testCatalog() *schema.Catalog {
	return schema.NewCatalog([]schema.Table{
		{
			Name: "sales",
			Columns: []schema.Column{
				{Name: "id", Type: "integer"},
				{Name: "product_id", Type: "integer"},
				{Name: "country", Type: "text"},
				{Name: "revenue", Type: "numeric"},
			},
			PrimaryKey:  []string{"id"},
			ForeignKeys: map[string]string{"product_id": "products.id"},
		},
		{
			Name: "products",
			Columns: []schema.Column{
				{Name: "id", Type: "integer"},
				{Name: "name", Type: "text"},
				{Name: "price", Type: "numeric"},
			},
			PrimaryKey: []string{"id"},
		},
	})
}

type fixture struct {
	gateway   *Gateway
	generator *fakeGenerator
	executor  *fakeExecutor
	patterns  *patterns.Store
	semantic  *cache.SemanticCache
}

func newFixture(t *testing.T, embedder cache.EmbeddingProvider) *fixture {
	t.Helper()
	logger := zap.NewNop()

	generator := &fakeGenerator{}
	executor := &fakeExecutor{}
	store := patterns.NewStore("", logger)
	semantic := cache.NewSemanticCache(embedder, cache.NewMemoryBackend(), cache.SemanticCacheConfig{}, logger)

	g := New(
		sqlutil.NewValidator(sqlutil.Config{}),
		generator,
		executor,
		&staticProvider{catalog: testCatalog()},
		cache.NewQueryCache(cache.NewMemoryBackend(), time.Minute, logger),
		semantic,
		store,
		lock.NewRequestLock(nil, time.Second, logger),
		Config{},
		logger,
	)
	return &fixture{gateway: g, generator: generator, executor: executor, patterns: store, semantic: semantic}
}

func TestGateway_AskHappyPath(t *testing.T) {
	f := newFixture(t, nil)
	f.generator.GenerateSQLFunc = func(ctx context.Context, question, schemaDesc string) (string, error) {
		assert.Contains(t, schemaDesc, "sales")
		return "SELECT country, sum(revenue) AS total FROM sales GROUP BY country", nil
	}
	f.executor.ExecuteFunc = func(ctx context.Context, sqlText string) (json.RawMessage, int, error) {
		return json.RawMessage(`[{"country":"AR","total":148.9}]`), 1, nil
	}

	result, err := f.gateway.Ask(context.Background(), "total revenue by country")
	require.NoError(t, err)
	assert.Equal(t, SourceExecuted, result.Source)
	assert.Equal(t, 1, result.RowCount)
	assert.False(t, result.Corrected)
	assert.JSONEq(t, `[{"country":"AR","total":148.9}]`, string(result.Rows))
}

func TestGateway_ExactCacheServesRepeatSQL(t *testing.T) {
	f := newFixture(t, nil)
	f.generator.GenerateSQLFunc = func(ctx context.Context, question, schemaDesc string) (string, error) {
		return "SELECT id FROM sales", nil
	}
	f.executor.ExecuteFunc = func(ctx context.Context, sqlText string) (json.RawMessage, int, error) {
		return json.RawMessage(`[{"id":1},{"id":2}]`), 2, nil
	}

	first, err := f.gateway.Ask(context.Background(), "list sale ids")
	require.NoError(t, err)
	assert.Equal(t, SourceExecuted, first.Source)

	second, err := f.gateway.Ask(context.Background(), "show me every sale id")
	require.NoError(t, err)
	assert.Equal(t, SourceExactCache, second.Source)
	assert.Equal(t, 2, second.RowCount, "cached result keeps its row count")
	assert.JSONEq(t, string(first.Rows), string(second.Rows))
	assert.Equal(t, 1, f.executor.ExecuteCalls, "repeat SQL must not re-execute")
}

func TestGateway_DangerousGenerationRejectedThenCorrected(t *testing.T) {
	f := newFixture(t, nil)
	f.generator.GenerateSQLFunc = func(ctx context.Context, question, schemaDesc string) (string, error) {
		return "SELECT revenu FROM sales", nil
	}
	f.generator.CorrectSQLFunc = func(ctx context.Context, failedSQL, errMsg, errorType, schemaDesc string) (string, error) {
		assert.Equal(t, ErrColumnNotFound, errorType)
		return "SELECT revenue FROM sales", nil
	}
	f.executor.ExecuteFunc = func(ctx context.Context, sqlText string) (json.RawMessage, int, error) {
		return json.RawMessage(`[]`), 0, nil
	}

	result, err := f.gateway.Ask(context.Background(), "revenue please")
	require.NoError(t, err)
	assert.True(t, result.Corrected)
	assert.Equal(t, "SELECT revenue FROM sales", result.SQL)

	// The verified fix is remembered, keyed by the normalized failure.
	probe := (&apperrors.InvalidColumnError{Column: "anything", Allowed: testCatalog().AllColumns()}).Error()
	corrected, ok := f.patterns.FindCorrection("select  revenu from sales", probe)
	if assert.True(t, ok) {
		assert.Equal(t, "SELECT revenue FROM sales", corrected)
	}
}

func TestGateway_PatternStoreSkipsModelRoundTrip(t *testing.T) {
	f := newFixture(t, nil)
	failMsg := (&apperrors.InvalidColumnError{Column: "revenu", Allowed: testCatalog().AllColumns()}).Error()
	f.patterns.RecordCorrection("SELECT revenu FROM sales", failMsg, "SELECT revenue FROM sales")

	f.generator.GenerateSQLFunc = func(ctx context.Context, question, schemaDesc string) (string, error) {
		return "SELECT revenu FROM sales", nil
	}
	f.executor.ExecuteFunc = func(ctx context.Context, sqlText string) (json.RawMessage, int, error) {
		return json.RawMessage(`[]`), 0, nil
	}

	result, err := f.gateway.Ask(context.Background(), "revenue please")
	require.NoError(t, err)
	assert.True(t, result.Corrected)
	assert.Equal(t, "SELECT revenue FROM sales", result.SQL)
	assert.Zero(t, f.generator.CorrectCalls, "remembered corrections must not call the model")
}

func TestGateway_ExecutionErrorCorrected(t *testing.T) {
	f := newFixture(t, nil)
	f.generator.GenerateSQLFunc = func(ctx context.Context, question, schemaDesc string) (string, error) {
		return "SELECT country FROM sales", nil
	}
	f.generator.CorrectSQLFunc = func(ctx context.Context, failedSQL, errMsg, errorType, schemaDesc string) (string, error) {
		assert.Equal(t, ErrSyntax, errorType)
		return "SELECT revenue FROM sales", nil
	}
	calls := 0
	f.executor.ExecuteFunc = func(ctx context.Context, sqlText string) (json.RawMessage, int, error) {
		calls++
		if calls == 1 {
			return nil, 0, errors.New("syntax error at or near \"country\"")
		}
		return json.RawMessage(`[]`), 0, nil
	}

	result, err := f.gateway.Ask(context.Background(), "revenue")
	require.NoError(t, err)
	assert.True(t, result.Corrected)
	assert.Equal(t, 2, f.executor.ExecuteCalls)
}

func TestGateway_UnrecoverableErrorNotCorrected(t *testing.T) {
	f := newFixture(t, nil)
	f.generator.GenerateSQLFunc = func(ctx context.Context, question, schemaDesc string) (string, error) {
		return "SELECT country FROM sales", nil
	}
	f.executor.ExecuteFunc = func(ctx context.Context, sqlText string) (json.RawMessage, int, error) {
		return nil, 0, errors.New("connection refused")
	}

	_, err := f.gateway.Ask(context.Background(), "revenue")
	require.Error(t, err)
	assert.Zero(t, f.generator.CorrectCalls)
}

func TestGateway_CorrectionAttemptsBounded(t *testing.T) {
	f := newFixture(t, nil)
	f.generator.GenerateSQLFunc = func(ctx context.Context, question, schemaDesc string) (string, error) {
		return "SELECT revenu FROM sales", nil
	}
	attempt := 0
	f.generator.CorrectSQLFunc = func(ctx context.Context, failedSQL, errMsg, errorType, schemaDesc string) (string, error) {
		attempt++
		if attempt == 1 {
			return "SELECT revenuu FROM sales", nil
		}
		return "SELECT revenuuu FROM sales", nil
	}
	f.executor.ExecuteFunc = func(ctx context.Context, sqlText string) (json.RawMessage, int, error) {
		t.Fatal("invalid SQL must never reach the executor")
		return nil, 0, nil
	}

	_, err := f.gateway.Ask(context.Background(), "revenue")
	require.Error(t, err)
	assert.Equal(t, 2, f.generator.CorrectCalls, "corrections stop at the configured bound")
}

func TestGateway_InjectionQuestionRejected(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.gateway.Ask(context.Background(), "1' OR '1'='1' --")
	assert.ErrorIs(t, err, ErrSuspiciousQuestion)
	assert.Zero(t, f.generator.GenerateCalls)
}

type stubEmbedder struct {
	vectors map[string][]float64
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	return s.vectors[text], nil
}

func TestGateway_SemanticCacheServesSimilarQuestion(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float64{
		"total revenue by country":   {1, 0, 0},
		"revenue totals per country": {0.99, 0.141, 0},
	}}
	f := newFixture(t, embedder)
	f.generator.GenerateSQLFunc = func(ctx context.Context, question, schemaDesc string) (string, error) {
		return "SELECT country, sum(revenue) FROM sales GROUP BY country", nil
	}
	f.executor.ExecuteFunc = func(ctx context.Context, sqlText string) (json.RawMessage, int, error) {
		return json.RawMessage(`[{"country":"AR"}]`), 1, nil
	}

	_, err := f.gateway.Ask(context.Background(), "total revenue by country")
	require.NoError(t, err)

	result, err := f.gateway.Ask(context.Background(), "revenue totals per country")
	require.NoError(t, err)
	assert.Equal(t, SourceSemanticCache, result.Source)
	assert.Equal(t, 1, result.RowCount, "cached result keeps its row count")
	assert.GreaterOrEqual(t, result.Similarity, cache.DefaultSimilarityThreshold)
	assert.Equal(t, 1, f.generator.GenerateCalls, "similar questions must not regenerate SQL")
}

func TestGateway_ExecuteValidatesDirectSQL(t *testing.T) {
	f := newFixture(t, nil)
	f.executor.ExecuteFunc = func(ctx context.Context, sqlText string) (json.RawMessage, int, error) {
		return json.RawMessage(`[]`), 0, nil
	}

	_, err := f.gateway.Execute(context.Background(), "DROP TABLE sales")
	require.Error(t, err)
	assert.Zero(t, f.executor.ExecuteCalls)

	result, err := f.gateway.Execute(context.Background(), "SELECT id FROM sales")
	require.NoError(t, err)
	assert.Equal(t, SourceExecuted, result.Source)
}

func TestGateway_Stats(t *testing.T) {
	f := newFixture(t, nil)
	f.generator.GenerateSQLFunc = func(ctx context.Context, question, schemaDesc string) (string, error) {
		return "SELECT id FROM sales", nil
	}
	f.executor.ExecuteFunc = func(ctx context.Context, sqlText string) (json.RawMessage, int, error) {
		return json.RawMessage(`[]`), 0, nil
	}

	_, err := f.gateway.Ask(context.Background(), "ids")
	require.NoError(t, err)

	stats, err := f.gateway.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ExactCache.ActiveEntries)
}
