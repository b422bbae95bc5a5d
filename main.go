package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/alesierraalta/SQLAgent/pkg/cache"
	"github.com/alesierraalta/SQLAgent/pkg/config"
	"github.com/alesierraalta/SQLAgent/pkg/database"
	"github.com/alesierraalta/SQLAgent/pkg/gateway"
	"github.com/alesierraalta/SQLAgent/pkg/llm"
	"github.com/alesierraalta/SQLAgent/pkg/lock"
	"github.com/alesierraalta/SQLAgent/pkg/logging"
	"github.com/alesierraalta/SQLAgent/pkg/patterns"
	"github.com/alesierraalta/SQLAgent/pkg/schema"
	sqlutil "github.com/alesierraalta/SQLAgent/pkg/sql"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	sqlFlag := flag.String("sql", "", "Validate and execute this SQL directly instead of asking a question")
	statsFlag := flag.Bool("stats", false, "Print cache and pattern statistics and exit")
	flag.Parse()

	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting sqlagent",
		zap.String("version", cfg.Version),
		zap.String("env", cfg.Env),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.URL())))

	ctx := context.Background()

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.URL(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := database.NewRedisClient(cfg.Redis.URL)
	if err != nil {
		logger.Warn("Invalid Redis URL, continuing without Redis", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	exactBackend, err := cache.SelectBackend(ctx, cfg.Cache.Backend, cfg.Cache.Dir, "cache:", redisClient, logger)
	if err != nil {
		logger.Fatal("Failed to create cache backend", zap.Error(err))
	}
	semanticBackend, err := cache.SelectBackend(ctx, cfg.Cache.Backend,
		filepath.Join(cfg.Cache.Dir, "semantic"), "semantic:", redisClient, logger)
	if err != nil {
		logger.Fatal("Failed to create semantic cache backend", zap.Error(err))
	}

	client, err := llm.NewClient(&llm.Config{
		Provider:       cfg.LLM.Provider,
		Endpoint:       cfg.LLM.Endpoint,
		Model:          cfg.LLM.Model,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		APIKey:         cfg.LLM.APIKey,
		MaxTokens:      cfg.LLM.MaxTokens,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create llm client", zap.Error(err))
	}

	// Anthropic has no embedding endpoint; the semantic cache runs
	// disabled rather than erroring on every question.
	var embedder cache.EmbeddingProvider
	if cfg.LLM.Provider != llm.ProviderAnthropic {
		embedder = client
	}

	descriptions, err := schema.LoadDescriptions(cfg.Database.DescriptionsPath)
	if err != nil {
		logger.Warn("Failed to load table descriptions", zap.Error(err))
	}

	exactCache := cache.NewQueryCache(exactBackend, cfg.Cache.TTL, logger)
	semanticCache := cache.NewSemanticCache(embedder, semanticBackend, cache.SemanticCacheConfig{
		Threshold: cfg.Cache.SimilarityThreshold,
		TTL:       cfg.Cache.SemanticTTL,
	}, logger)
	patternStore := patterns.NewStore(cfg.Patterns.Path, logger)
	requestLock := lock.NewRequestLock(redisClient, cfg.Lock.TTL, logger)

	g := gateway.New(
		sqlutil.NewValidator(sqlutil.Config{AllowedFunctions: cfg.Query.AllowedFunctions}),
		llm.NewSQLGenerator(client, logger),
		database.NewExecutor(db, database.ExecutorConfig{
			Timeout: cfg.Query.Timeout,
			MaxRows: cfg.Query.MaxRows,
		}, logger),
		database.NewSchemaProvider(db, database.SchemaProviderConfig{
			Schema:       cfg.Database.Schema,
			Descriptions: descriptions,
		}, logger),
		exactCache,
		semanticCache,
		patternStore,
		requestLock,
		gateway.Config{MaxCorrections: cfg.Query.MaxCorrections},
		logger,
	)

	maintain(ctx, cfg, exactCache, semanticCache, patternStore, logger)

	switch {
	case *statsFlag:
		stats, err := g.Stats(ctx)
		if err != nil {
			logger.Fatal("Failed to collect stats", zap.Error(err))
		}
		printJSON(stats)
	case *sqlFlag != "":
		result, err := g.Execute(ctx, *sqlFlag)
		if err != nil {
			logger.Fatal("Query failed", zap.Error(err))
		}
		printJSON(result)
	default:
		question := strings.TrimSpace(strings.Join(flag.Args(), " "))
		if question == "" {
			fmt.Fprintln(os.Stderr, "usage: sqlagent [flags] <question>")
			flag.PrintDefaults()
			os.Exit(2)
		}
		result, err := g.Ask(ctx, question)
		if err != nil {
			logger.Fatal("Question failed", zap.Error(err))
		}
		printJSON(result)
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "local" {
		logConfig := zap.NewDevelopmentConfig()
		logConfig.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
		return logConfig.Build()
	}
	return zap.NewProduction()
}

// maintain runs the expired-entry cleanup passes.
func maintain(ctx context.Context, cfg *config.Config, exactCache *cache.QueryCache, semanticCache *cache.SemanticCache, patternStore *patterns.Store, logger *zap.Logger) {
	if cfg.Cache.CleanupInterval <= 0 {
		return
	}
	if remaining, err := exactCache.Purge(ctx); err == nil {
		logger.Debug("Purged exact cache", zap.Int("remaining", remaining))
	}
	if remaining, err := semanticCache.Purge(ctx); err == nil {
		logger.Debug("Purged semantic cache", zap.Int("remaining", remaining))
	}
	if removed := patternStore.PruneStale(time.Now().Add(-cfg.Patterns.StaleAge)); removed > 0 {
		logger.Info("Pruned stale patterns", zap.Int("removed", removed))
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatalf("Failed to encode output: %v", err)
	}
}
