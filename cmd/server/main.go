// Command server starts the book-RAG query API: config and logger setup,
// Postgres/Redis/Qdrant wiring, the query pipeline, and the HTTP surface
// that fronts it, the same shape as the gateway binary this module's
// structure was learned from.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ayeshadev283/bookrag/internal/analytics"
	"github.com/ayeshadev283/bookrag/internal/config"
	"github.com/ayeshadev283/bookrag/internal/db"
	"github.com/ayeshadev283/bookrag/internal/embeddings"
	"github.com/ayeshadev283/bookrag/internal/generation"
	"github.com/ayeshadev283/bookrag/internal/health"
	"github.com/ayeshadev283/bookrag/internal/httpapi"
	"github.com/ayeshadev283/bookrag/internal/orchestrator"
	"github.com/ayeshadev283/bookrag/internal/ratelimit"
	"github.com/ayeshadev283/bookrag/internal/refusal"
	"github.com/ayeshadev283/bookrag/internal/retrieval"
	"github.com/ayeshadev283/bookrag/internal/tracing"
	"github.com/ayeshadev283/bookrag/internal/vectordb"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ragCfg := config.DefaultRAGConfig()
	applyEnvOverrides(ragCfg)

	if err := tracing.Initialize(tracing.Config{
		Enabled:      ragCfg.Tracing.Enabled,
		ServiceName:  ragCfg.Tracing.ServiceName,
		OTLPEndpoint: ragCfg.Tracing.OTLPEndpoint,
	}, logger); err != nil {
		logger.Warn("tracing initialization failed, continuing without spans", zap.Error(err))
	}

	// features.yaml carries the refusal-gate thresholds independently of
	// RAGConfig, the same split the gateway binary keeps between its
	// Viper-loaded features document and its own env-driven service config.
	features, err := config.Load()
	if err != nil {
		logger.Warn("failed to load feature configuration, using defaults", zap.Error(err))
	}
	refusalCfg := config.RefusalFromEnvOrDefaults(features)
	gate := refusal.New(refusalCfg)

	dbConfig := &db.Config{
		Host:            getEnvOrDefault("POSTGRES_HOST", "postgres"),
		Port:            getEnvOrDefaultInt("POSTGRES_PORT", 5432),
		User:            getEnvOrDefault("POSTGRES_USER", "bookrag"),
		Password:        getEnvOrDefault("POSTGRES_PASSWORD", ""),
		Database:        getEnvOrDefault("POSTGRES_DB", "bookrag"),
		MaxConnections:  ragCfg.Database.MaxConnections,
		IdleConnections: ragCfg.Database.IdleConnections,
		MaxLifetime:     ragCfg.Database.MaxLifetime,
		SSLMode:         ragCfg.Database.SSLMode,
	}
	dbClient, err := db.NewClient(dbConfig, logger)
	if err != nil {
		logger.Fatal("failed to initialize database client", zap.Error(err))
	}
	defer dbClient.Close()

	vectordb.Initialize(vectordb.Config{
		Enabled:              ragCfg.Vector.Enabled,
		Host:                 ragCfg.Vector.Host,
		Port:                 ragCfg.Vector.Port,
		Chunks:               ragCfg.Vector.Chunks,
		TopK:                 ragCfg.Vector.TopK,
		Threshold:            ragCfg.Vector.Threshold,
		Timeout:              ragCfg.Vector.Timeout,
		ExpectedEmbeddingDim: ragCfg.Embeddings.Dimensions,
		MMREnabled:           ragCfg.Vector.MmrEnabled,
		MMRLambda:            ragCfg.Vector.MmrLambda,
		MMRPoolMultiplier:    ragCfg.Vector.MmrPoolMultiplier,
	})
	vdb := vectordb.Get()

	var embedCache embeddings.EmbeddingCache
	if ragCfg.Embeddings.UseRedisCache {
		redisAddr := getEnvOrDefault("REDIS_ADDR", ragCfg.Embeddings.RedisAddr)
		rc, err := embeddings.NewRedisCache(redisAddr)
		if err != nil {
			logger.Warn("redis embedding cache unavailable, falling back to in-process LRU", zap.Error(err))
			embedCache = embeddings.NewLocalLRU(ragCfg.Embeddings.MaxLRU)
		} else {
			embedCache = rc
		}
	} else {
		embedCache = embeddings.NewLocalLRU(ragCfg.Embeddings.MaxLRU)
	}
	embeddings.Initialize(embeddings.Config{
		Provider:     embeddings.Provider(ragCfg.Embeddings.Provider),
		APIKey:       getEnvOrDefault("EMBEDDINGS_API_KEY", ""),
		BaseURL:      ragCfg.Embeddings.BaseURL,
		DefaultModel: ragCfg.Embeddings.DefaultModel,
		Dimensions:   ragCfg.Embeddings.Dimensions,
		Timeout:      ragCfg.Embeddings.Timeout,
		EnableRedis:  ragCfg.Embeddings.UseRedisCache,
		RedisAddr:    getEnvOrDefault("REDIS_ADDR", ragCfg.Embeddings.RedisAddr),
		CacheTTL:     ragCfg.Embeddings.CacheTTL,
		MaxLRU:       ragCfg.Embeddings.MaxLRU,
		Chunking: embeddings.ChunkingConfig{
			Enabled:       ragCfg.Embeddings.Chunking.Enabled,
			MaxTokens:     ragCfg.Embeddings.Chunking.MaxTokens,
			OverlapTokens: ragCfg.Embeddings.Chunking.OverlapTokens,
		},
	}, embedCache, logger)
	embedder := embeddings.Get()

	retriever := retrieval.New(vdb, ragCfg.Vector, logger)
	generator := generation.New(ragCfg.Generation, logger)
	limiter := ratelimit.New(ragCfg.RateLimit, logger)
	analyticsSvc := analytics.New(dbClient, ragCfg.Analytics, logger)
	pipeline := orchestrator.New(embedder, retriever, gate, generator, limiter, dbClient, logger)

	healthMgr := health.NewManager(logger)
	registerHealthCheckers(healthMgr, dbClient, vdb, generator, logger)
	healthCtx, stopHealth := context.WithCancel(context.Background())
	defer stopHealth()
	if err := healthMgr.Start(healthCtx); err != nil {
		logger.Warn("health manager failed to start background checks", zap.Error(err))
	}

	mux := httpapi.NewRouter(pipeline, dbClient, analyticsSvc, healthMgr, logger)
	mux.Handle("/metrics", promhttp.Handler())

	port := getEnvOrDefaultInt("PORT", ragCfg.Service.Port)
	server := &http.Server{
		Addr:         ":" + strconv.Itoa(port),
		Handler:      corsMiddleware(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  300 * time.Second,
	}

	go func() {
		logger.Info("book-rag server starting", zap.Int("port", port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("book-rag server shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	limiter.Close()
	logger.Info("book-rag server stopped")
}

// registerHealthCheckers wires the checkers the health package already
// implements against this binary's live dependencies.
func registerHealthCheckers(mgr *health.Manager, dbClient *db.Client, vdb *vectordb.Client, generator *generation.Generator, logger *zap.Logger) {
	if err := mgr.RegisterChecker(health.NewDatabaseHealthChecker(dbClient.GetDB(), dbClient.Wrapper(), logger)); err != nil {
		logger.Warn("failed to register database health checker", zap.Error(err))
	}
	if err := mgr.RegisterChecker(health.NewVectorIndexHealthChecker(vdb, logger)); err != nil {
		logger.Warn("failed to register vector index health checker", zap.Error(err))
	}
	if err := mgr.RegisterChecker(health.NewLLMServiceHealthChecker(generator.CircuitBreaker(), logger)); err != nil {
		logger.Warn("failed to register llm health checker", zap.Error(err))
	}
}

// corsMiddleware allows browser-based clients to call the query API
// directly during development, mirroring the gateway's own permissive
// development CORS policy.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Max-Age", "3600")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func applyEnvOverrides(cfg *config.RAGConfig) {
	if v := getEnvOrDefaultInt("PORT", 0); v != 0 {
		cfg.Service.Port = v
	}
	cfg.Vector.Host = getEnvOrDefault("QDRANT_HOST", cfg.Vector.Host)
	cfg.Embeddings.Provider = getEnvOrDefault("EMBEDDINGS_PROVIDER", cfg.Embeddings.Provider)
	cfg.Generation.Provider = getEnvOrDefault("GENERATION_PROVIDER", cfg.Generation.Provider)
}
