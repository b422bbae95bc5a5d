package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeEmbedder struct {
	EmbedFunc func(ctx context.Context, text string) ([]float64, error)
	calls     int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	f.calls++
	return f.EmbedFunc(ctx, text)
}

// vectorEmbedder maps known texts to fixed vectors.
func vectorEmbedder(vectors map[string][]float64) *fakeEmbedder {
	return &fakeEmbedder{
		EmbedFunc: func(ctx context.Context, text string) ([]float64, error) {
			return vectors[text], nil
		},
	}
}

func TestSemanticCache_HitAboveThreshold(t *testing.T) {
	ctx := context.Background()
	embedder := vectorEmbedder(map[string][]float64{
		"total sales by country":   {1, 0, 0},
		"sales totals per country": {0.99, 0.14, 0},
	})
	c := NewSemanticCache(embedder, NewMemoryBackend(), SemanticCacheConfig{TTL: time.Minute}, zap.NewNop())

	c.Store(ctx, "total sales by country", "SELECT country, sum(revenue) FROM sales GROUP BY country", json.RawMessage(`[{"country":"AR"}]`))

	hit, ok := c.Lookup(ctx, "sales totals per country")
	require.True(t, ok)
	assert.Equal(t, "total sales by country", hit.Question)
	assert.Contains(t, hit.SQL, "GROUP BY country")
	assert.GreaterOrEqual(t, hit.Similarity, DefaultSimilarityThreshold)
}

func TestSemanticCache_MissBelowThreshold(t *testing.T) {
	ctx := context.Background()
	embedder := vectorEmbedder(map[string][]float64{
		"total sales by country": {1, 0, 0},
		"list all employees":     {0, 1, 0},
	})
	c := NewSemanticCache(embedder, NewMemoryBackend(), SemanticCacheConfig{}, zap.NewNop())

	c.Store(ctx, "total sales by country", "SELECT 1", json.RawMessage(`1`))

	_, ok := c.Lookup(ctx, "list all employees")
	assert.False(t, ok)
}

func TestSemanticCache_BestMatchWins(t *testing.T) {
	ctx := context.Background()
	embedder := vectorEmbedder(map[string][]float64{
		"close":  {0.95, 0.3122, 0},
		"closer": {0.99, 0.141, 0},
		"probe":  {1, 0, 0},
	})
	c := NewSemanticCache(embedder, NewMemoryBackend(), SemanticCacheConfig{}, zap.NewNop())

	c.Store(ctx, "close", "SELECT 'close'", json.RawMessage(`1`))
	c.Store(ctx, "closer", "SELECT 'closer'", json.RawMessage(`2`))

	hit, ok := c.Lookup(ctx, "probe")
	require.True(t, ok)
	assert.Equal(t, "closer", hit.Question)
}

func TestSemanticCache_NoProviderIsNoop(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	c := NewSemanticCache(nil, backend, SemanticCacheConfig{}, zap.NewNop())

	c.Store(ctx, "anything", "SELECT 1", json.RawMessage(`1`))
	_, ok := c.Lookup(ctx, "anything")
	assert.False(t, ok)

	stats, err := backend.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalEntries)
}

func TestSemanticCache_EmbeddingsMemoized(t *testing.T) {
	ctx := context.Background()
	embedder := vectorEmbedder(map[string][]float64{"q": {1, 0}})
	c := NewSemanticCache(embedder, NewMemoryBackend(), SemanticCacheConfig{}, zap.NewNop())

	c.Store(ctx, "q", "SELECT 1", json.RawMessage(`1`))
	c.Lookup(ctx, "q")
	c.Lookup(ctx, "Q")

	assert.Equal(t, 1, embedder.calls, "repeated questions should reuse the memoized embedding")
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float64{1, 2, 3}, []float64{1, 2, 3}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity([]float64{1, 0}, []float64{1}))
	assert.Equal(t, 0.0, cosineSimilarity(nil, nil))
	assert.Equal(t, 0.0, cosineSimilarity([]float64{0, 0}, []float64{0, 0}))
}
