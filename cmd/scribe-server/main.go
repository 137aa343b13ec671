// Package main provides the HTTP server entry point for the Arcane Scribe
// query service.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/grimoire-labs/arcane-scribe/internal/api"
	"github.com/grimoire-labs/arcane-scribe/internal/blobstore"
	"github.com/grimoire-labs/arcane-scribe/internal/embedding"
	"github.com/grimoire-labs/arcane-scribe/internal/indexcache"
	"github.com/grimoire-labs/arcane-scribe/internal/llm"
	"github.com/grimoire-labs/arcane-scribe/internal/query"
	"github.com/grimoire-labs/arcane-scribe/internal/respcache"
	"github.com/grimoire-labs/arcane-scribe/internal/retrieval"
)

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Create context that cancels on SIGTERM/SIGINT
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Configuration from environment
	dataDir := getEnv("DATA_DIR", "./data")
	cacheDBPath := getEnv("CACHE_DB_PATH", "./scribe-cache.db")
	cacheTTL := getEnvInt("CACHE_TTL_SECONDS", int(respcache.DefaultTTL/time.Second))
	maxIndexes := getEnvInt("MAX_INDEX_CACHE", indexcache.DefaultMaxSize)
	topK := getEnvInt("RETRIEVAL_TOP_K", retrieval.DefaultTopK)
	model := getEnv("GENERATION_MODEL", llm.DefaultModel)
	port := getEnv("PORT", "8080")

	// Initialize blob store
	store, err := blobstore.NewFSStore(dataDir)
	if err != nil {
		log.Fatalf("failed to open blob store: %v", err)
	}

	// Initialize response cache; the service runs without it if it fails
	var cache respcache.Cache
	var health api.HealthChecker
	sqliteCache, err := respcache.NewSQLiteCache(cacheDBPath, time.Duration(cacheTTL)*time.Second)
	if err != nil {
		log.Printf("response cache unavailable, running without it: %v", err)
	} else {
		defer sqliteCache.Close()
		cache = sqliteCache
		health = sqliteCache
	}

	// Initialize embedding client
	embeddingClient, err := embedding.NewClient()
	if err != nil {
		log.Fatalf("failed to create embedding client: %v", err)
	}
	embedder := embedding.NewEmbedder(embeddingClient, 0) // Use default batch size

	// Wire the query pipeline
	indexes := indexcache.New(store, maxIndexes, logger)
	retriever := retrieval.New(embedder, topK)
	configurator := llm.NewConfigurator(embeddingClient.Client(), model, logger)
	processor := query.NewProcessor(indexes, retriever, query.LLMConfigurator{Configurator: configurator}, cache, logger)

	server := api.NewServer(processor, store, health, logger)

	addr := "0.0.0.0:" + port
	httpServer := &http.Server{Addr: addr, Handler: server.Handler()}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown error: %v", err)
		}
	}()

	log.Printf("Starting HTTP server on %s (query at /query, health at /health)", addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("HTTP server error: %v", err)
	}
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		var i int
		if _, err := fmt.Sscanf(v, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}
