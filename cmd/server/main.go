// Package main provides the HTTP server entry point for the thesis
// assistant.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/skripsi-assistant/rag-server/internal/api"
	"github.com/skripsi-assistant/rag-server/internal/chunker"
	"github.com/skripsi-assistant/rag-server/internal/config"
	"github.com/skripsi-assistant/rag-server/internal/embedding"
	"github.com/skripsi-assistant/rag-server/internal/generation"
	"github.com/skripsi-assistant/rag-server/internal/ingest"
	"github.com/skripsi-assistant/rag-server/internal/pdf"
	"github.com/skripsi-assistant/rag-server/internal/rag"
	"github.com/skripsi-assistant/rag-server/internal/vectorstore"
)

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Create context that cancels on SIGTERM/SIGINT
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	embedder, err := embedding.NewEmbedder(0) // default batch size
	if err != nil {
		log.Fatalf("failed to create embedding client: %v", err)
	}

	store, err := vectorstore.New(cfg.QdrantHost, cfg.QdrantPort, embedder)
	if err != nil {
		log.Fatalf("failed to connect to Qdrant: %v", err)
	}
	defer store.Close()

	if err := store.EnsureCollection(ctx, vectorstore.DefaultCollection); err != nil {
		log.Fatalf("failed to ensure collection: %v", err)
	}

	generator, err := generation.NewClient(ctx, cfg.GeminiAPIKey, logger)
	if err != nil {
		log.Fatalf("failed to create Gemini client: %v", err)
	}
	defer generator.Close()

	textChunker, err := chunker.New(cfg.MaxChunkSize, cfg.ChunkOverlap)
	if err != nil {
		log.Fatalf("invalid chunking configuration: %v", err)
	}

	ragService := rag.NewService(store, generator, logger, vectorstore.DefaultCollection, cfg.SimilarityThreshold)
	pipeline := ingest.NewPipeline(pdf.ExtractText, textChunker, store, logger, vectorstore.DefaultCollection)

	server := api.NewServer(&api.Config{
		RAG:         ragService,
		Ingestor:    pipeline,
		Store:       store,
		Logger:      logger,
		Collection:  vectorstore.DefaultCollection,
		MaxFileSize: cfg.MaxFileSizeBytes(),
		TopK:        cfg.TopKRetrieval,
	})

	addr := "0.0.0.0:" + cfg.Port
	httpServer := &http.Server{
		Addr:    addr,
		Handler: server.Routes(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown error: %v", err)
		}
	}()

	log.Printf("Starting HTTP server on %s", addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("HTTP server error: %v", err)
	}
	log.Println("Server stopped")
}
