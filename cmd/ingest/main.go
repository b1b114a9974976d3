// Package main provides the ingestion CLI for managing the document index
// without running the HTTP server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/skripsi-assistant/rag-server/internal/chunker"
	"github.com/skripsi-assistant/rag-server/internal/config"
	"github.com/skripsi-assistant/rag-server/internal/embedding"
	"github.com/skripsi-assistant/rag-server/internal/ingest"
	"github.com/skripsi-assistant/rag-server/internal/pdf"
	"github.com/skripsi-assistant/rag-server/internal/vectorstore"
)

var rootCmd = &cobra.Command{
	Use:   "skripsi-ingest",
	Short: "Thesis assistant document indexing tool",
	Long: `CLI tool for managing the thesis assistant document index in Qdrant.

Environment variables:
  GEMINI_API_KEY  Gemini API key (required)
  OPENAI_API_KEY  OpenAI API key for embeddings (required)
  QDRANT_HOST     Qdrant hostname (default: localhost)
  QDRANT_PORT     Qdrant gRPC port (default: 6334)`,
}

var guidelinesCmd = &cobra.Command{
	Use:   "guidelines <file.pdf>",
	Short: "Index the thesis guidelines PDF",
	Long: `Extracts, chunks, embeds and indexes the thesis guidelines PDF.

The existing guideline namespace is cleared first so repeated runs
replace the index instead of duplicating it.`,
	Args: cobra.ExactArgs(1),
	RunE: runGuidelines,
}

var thesisCmd = &cobra.Command{
	Use:   "thesis <file.pdf>",
	Short: "Index a student thesis PDF under a new document id",
	Args:  cobra.ExactArgs(1),
	RunE:  runThesis,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print collection statistics and namespace distribution",
	RunE:  runStats,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <document-id>",
	Short: "Delete all chunks of a document (use 'guidelines' for the guideline corpus)",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	rootCmd.AddCommand(guidelinesCmd)
	rootCmd.AddCommand(thesisCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(deleteCmd)
}

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// connectStore opens a Qdrant connection for read-only commands that need
// neither embeddings nor the full configuration.
func connectStore() (*vectorstore.Store, error) {
	host := getEnv("QDRANT_HOST", "localhost")
	port := getEnvInt("QDRANT_PORT", 6334)

	fmt.Printf("Connecting to Qdrant at %s:%d...\n", host, port)
	store, err := vectorstore.New(host, port, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant: %w", err)
	}
	return store, nil
}

// connectPipeline builds the store plus the full ingestion pipeline.
// Callers must Close the returned store.
func connectPipeline(ctx context.Context) (*vectorstore.Store, *ingest.Pipeline, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	embedder, err := embedding.NewEmbedder(0) // default batch size
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create embedding client: %w", err)
	}

	fmt.Printf("Connecting to Qdrant at %s:%d...\n", cfg.QdrantHost, cfg.QdrantPort)
	store, err := vectorstore.New(cfg.QdrantHost, cfg.QdrantPort, embedder)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to Qdrant: %w", err)
	}

	if err := store.EnsureCollection(ctx, vectorstore.DefaultCollection); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("failed to ensure collection: %w", err)
	}

	textChunker, err := chunker.New(cfg.MaxChunkSize, cfg.ChunkOverlap)
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("invalid chunking configuration: %w", err)
	}

	pipeline := ingest.NewPipeline(pdf.ExtractText, textChunker, store, slog.Default(), vectorstore.DefaultCollection)
	return store, pipeline, nil
}

func runGuidelines(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	start := time.Now()

	store, pipeline, err := connectPipeline(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	fmt.Println("Clearing existing guideline index...")
	deleted, err := store.DeleteByNamespace(ctx, vectorstore.GuidelineNamespace, vectorstore.DefaultCollection)
	if err != nil {
		return fmt.Errorf("failed to clear guideline namespace: %w", err)
	}
	if deleted > 0 {
		fmt.Printf("Removed %d stale chunks\n", deleted)
	}

	fmt.Printf("Indexing %s...\n", args[0])
	result, err := pipeline.IngestGuidelines(ctx, args[0])
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	fmt.Println()
	fmt.Println("Guidelines indexed!")
	fmt.Printf("  Chunks: %d\n", result.ChunksCreated)
	fmt.Printf("  Duration: %s\n", result.Duration.Round(time.Millisecond))
	fmt.Printf("Total time: %s\n", time.Since(start).Round(time.Millisecond))
	return nil
}

func runThesis(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	start := time.Now()

	store, pipeline, err := connectPipeline(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	fmt.Printf("Indexing %s...\n", args[0])
	result, err := pipeline.IngestThesis(ctx, args[0], filepath.Base(args[0]))
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	fmt.Println()
	fmt.Println("Thesis indexed!")
	fmt.Printf("  Document ID: %s\n", result.DocumentID)
	fmt.Printf("  Chunks: %d\n", result.ChunksCreated)
	fmt.Printf("  Duration: %s\n", result.Duration.Round(time.Millisecond))
	fmt.Printf("Total time: %s\n", time.Since(start).Round(time.Millisecond))
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	store, err := connectStore()
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := store.Stats(ctx, vectorstore.DefaultCollection)
	if err != nil {
		return fmt.Errorf("failed to get stats: %w", err)
	}

	fmt.Printf("Collection: %s\n", stats.CollectionName)
	fmt.Printf("Total chunks: %d\n", stats.TotalChunks)
	fmt.Println("Namespaces:")

	namespaces := make([]string, 0, len(stats.NamespaceDistribution))
	for namespace := range stats.NamespaceDistribution {
		namespaces = append(namespaces, namespace)
	}
	sort.Strings(namespaces)
	for _, namespace := range namespaces {
		fmt.Printf("  %-40s %d\n", namespace, stats.NamespaceDistribution[namespace])
	}
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	store, err := connectStore()
	if err != nil {
		return err
	}
	defer store.Close()

	documentID := args[0]
	namespace := vectorstore.ThesisNamespace(documentID)
	if documentID == ingest.GuidelineDocumentID {
		namespace = vectorstore.GuidelineNamespace
	}

	deleted, err := store.DeleteByNamespace(ctx, namespace, vectorstore.DefaultCollection)
	if err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}

	fmt.Printf("Deleted %d chunks from %s\n", deleted, namespace)
	return nil
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
