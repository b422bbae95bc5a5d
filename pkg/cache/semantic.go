package cache

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultSimilarityThreshold is the minimum cosine similarity for a
	// stored question to count as a semantic hit.
	DefaultSimilarityThreshold = 0.90

	defaultEmbeddingMemoLimit = 1000
)

// EmbeddingProvider turns text into a vector for similarity comparison.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// SemanticHit is a cached result matched by question similarity rather than
// exact SQL equality.
type SemanticHit struct {
	Question   string
	SQL        string
	Result     json.RawMessage
	Similarity float64
}

type semanticRecord struct {
	Question  string          `json:"question"`
	SQL       string          `json:"sql"`
	Result    json.RawMessage `json:"result"`
	Embedding []float64       `json:"embedding"`
}

// SemanticCacheConfig tunes the semantic layer. Zero values pick defaults.
type SemanticCacheConfig struct {
	Threshold     float64
	TTL           time.Duration
	EmbeddingMemo int
}

// SemanticCache answers new questions from cached results of semantically
// similar past questions. With no embedding provider it is a no-op: every
// lookup misses and every store is skipped. Provider and backend failures
// are logged and degrade to misses; the cache never fails a request.
type SemanticCache struct {
	provider  EmbeddingProvider
	backend   Backend
	threshold float64
	ttl       time.Duration
	logger    *zap.Logger

	mu        sync.Mutex
	memo      map[string][]float64
	memoLimit int
}

func NewSemanticCache(provider EmbeddingProvider, backend Backend, cfg SemanticCacheConfig, logger *zap.Logger) *SemanticCache {
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultSimilarityThreshold
	}
	if cfg.EmbeddingMemo == 0 {
		cfg.EmbeddingMemo = defaultEmbeddingMemoLimit
	}
	return &SemanticCache{
		provider:  provider,
		backend:   backend,
		threshold: cfg.Threshold,
		ttl:       cfg.TTL,
		logger:    logger.Named("semantic-cache"),
		memo:      make(map[string][]float64),
		memoLimit: cfg.EmbeddingMemo,
	}
}

// Lookup embeds the question and returns the best stored match at or above
// the similarity threshold.
func (c *SemanticCache) Lookup(ctx context.Context, question string) (*SemanticHit, bool) {
	if c.provider == nil {
		return nil, false
	}

	vec, err := c.embed(ctx, question)
	if err != nil {
		c.logger.Warn("Failed to embed question", zap.Error(err))
		return nil, false
	}

	entries, err := c.backend.List(ctx)
	if err != nil {
		c.logger.Warn("Semantic cache scan failed", zap.Error(err))
		return nil, false
	}

	var best *SemanticHit
	for _, entry := range entries {
		var rec semanticRecord
		if err := json.Unmarshal(entry.Value, &rec); err != nil {
			c.logger.Warn("Skipping corrupt semantic entry", zap.String("key", entry.Key), zap.Error(err))
			continue
		}
		sim := cosineSimilarity(vec, rec.Embedding)
		if sim < c.threshold {
			continue
		}
		if best == nil || sim > best.Similarity {
			best = &SemanticHit{
				Question:   rec.Question,
				SQL:        rec.SQL,
				Result:     rec.Result,
				Similarity: sim,
			}
		}
	}
	if best == nil {
		return nil, false
	}
	c.logger.Debug("Semantic cache hit",
		zap.String("matched_question", best.Question),
		zap.Float64("similarity", best.Similarity))
	return best, true
}

// Store records a question with its SQL and result for future similarity
// matches.
func (c *SemanticCache) Store(ctx context.Context, question, sqlText string, result json.RawMessage) {
	if c.provider == nil {
		return
	}

	vec, err := c.embed(ctx, question)
	if err != nil {
		c.logger.Warn("Failed to embed question", zap.Error(err))
		return
	}

	value, err := json.Marshal(semanticRecord{
		Question:  question,
		SQL:       sqlText,
		Result:    result,
		Embedding: vec,
	})
	if err != nil {
		c.logger.Warn("Failed to marshal semantic entry", zap.Error(err))
		return
	}

	now := time.Now()
	entry := &Entry{
		Key:       QuestionFingerprint(question),
		Value:     value,
		CreatedAt: now,
		Preview:   truncate(question, previewLength),
	}
	if c.ttl > 0 {
		entry.ExpiresAt = now.Add(c.ttl)
	}
	if err := c.backend.Set(ctx, entry); err != nil {
		c.logger.Warn("Failed to store semantic entry", zap.Error(err))
	}
}

// Purge reaps expired entries and returns how many live ones remain.
func (c *SemanticCache) Purge(ctx context.Context) (int, error) {
	entries, err := c.backend.List(ctx)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Clear removes every stored question.
func (c *SemanticCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.memo = make(map[string][]float64)
	c.mu.Unlock()
	return c.backend.Clear(ctx)
}

// embed memoizes embeddings per question fingerprint so repeated questions
// do not pay for provider round trips.
func (c *SemanticCache) embed(ctx context.Context, question string) ([]float64, error) {
	fp := QuestionFingerprint(question)

	c.mu.Lock()
	if vec, ok := c.memo[fp]; ok {
		c.mu.Unlock()
		return vec, nil
	}
	c.mu.Unlock()

	vec, err := c.provider.Embed(ctx, question)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if len(c.memo) >= c.memoLimit {
		for k := range c.memo {
			delete(c.memo, k)
			break
		}
	}
	c.memo[fp] = vec
	c.mu.Unlock()
	return vec, nil
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
