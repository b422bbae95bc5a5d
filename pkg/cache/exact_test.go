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

func TestQueryCache_EquivalentSQLSharesEntry(t *testing.T) {
	ctx := context.Background()
	c := NewQueryCache(NewMemoryBackend(), time.Minute, zap.NewNop())

	require.NoError(t, c.Set(ctx, "select id, revenue from sales where country = 'AR'", json.RawMessage(`[{"id":1}]`)))

	// Same statement, different formatting and keyword case.
	result, ok := c.Get(ctx, "SELECT id,\n       revenue\nFROM sales\nWHERE country = 'AR'")
	require.True(t, ok)
	assert.JSONEq(t, `[{"id":1}]`, string(result))
}

func TestQueryCache_DistinctSQLDistinctEntries(t *testing.T) {
	ctx := context.Background()
	c := NewQueryCache(NewMemoryBackend(), time.Minute, zap.NewNop())

	require.NoError(t, c.Set(ctx, "SELECT id FROM sales", json.RawMessage(`1`)))

	_, ok := c.Get(ctx, "SELECT id FROM products")
	assert.False(t, ok)
}

func TestQueryCache_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewQueryCache(NewMemoryBackend(), -time.Second, zap.NewNop())

	require.NoError(t, c.Set(ctx, "SELECT id FROM sales", json.RawMessage(`1`)))

	_, ok := c.Get(ctx, "SELECT id FROM sales")
	assert.False(t, ok, "entry past its TTL must read as a miss")
}

func TestQueryCache_Invalidate(t *testing.T) {
	ctx := context.Background()
	c := NewQueryCache(NewMemoryBackend(), time.Minute, zap.NewNop())

	require.NoError(t, c.Set(ctx, "SELECT id FROM sales", json.RawMessage(`1`)))
	require.NoError(t, c.Invalidate(ctx, "select id from sales"))

	_, ok := c.Get(ctx, "SELECT id FROM sales")
	assert.False(t, ok)
}

func TestQueryCache_Stats(t *testing.T) {
	ctx := context.Background()
	c := NewQueryCache(NewMemoryBackend(), time.Minute, zap.NewNop())

	require.NoError(t, c.Set(ctx, "SELECT id FROM sales", json.RawMessage(`1`)))

	_, ok := c.Get(ctx, "SELECT id FROM sales")
	require.True(t, ok)
	_, ok = c.Get(ctx, "SELECT id FROM products")
	require.False(t, ok)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, "memory", stats.Backend)
	assert.Equal(t, 1, stats.TotalEntries)
	assert.Equal(t, 1, stats.ActiveEntries)
	assert.Equal(t, 0, stats.ExpiredEntries)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 0.5, stats.HitRate, 1e-9)
}

func TestQuestionFingerprint_FoldsCaseAndWhitespace(t *testing.T) {
	a := QuestionFingerprint("Top  ten customers\nby revenue")
	b := QuestionFingerprint("top ten customers by revenue")
	c := QuestionFingerprint("top ten customers by profit")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
