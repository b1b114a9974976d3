// Package rag orchestrates retrieval-augmented question answering: it picks
// the namespaces to search, merges and ranks retrieval results, invokes
// grounded or ungrounded generation, and derives source citations.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/skripsi-assistant/rag-server/internal/chunker"
	"github.com/skripsi-assistant/rag-server/internal/vectorstore"
)

// maxSourceReferences caps the citation list returned with an answer.
const maxSourceReferences = 5

// noContextNote is appended to ungrounded answers so students know the
// reply was not grounded in their documents.
const noContextNote = "\n\n*Catatan: Tidak ditemukan konteks yang relevan dari dokumen yang tersedia."

// Searcher is the read-side of the vector store the orchestrator depends on.
type Searcher interface {
	Search(ctx context.Context, query, collection, namespaceFilter string, topK int, similarityThreshold float64) ([]vectorstore.Result, error)
	Stats(ctx context.Context, collection string) (*vectorstore.Stats, error)
}

// Generator produces answers from the language model. Implementations must
// degrade provider failures to answer strings rather than returning errors.
type Generator interface {
	Generate(ctx context.Context, question string, chunks []vectorstore.Result) string
	GenerateSimple(ctx context.Context, question string) string
	TestConnection(ctx context.Context) bool
}

// SourceReference is a deduplicated citation derived from a retrieval
// result, for display alongside the answer.
type SourceReference struct {
	Source          string  `json:"source"`
	Page            *int    `json:"page,omitempty"`
	Chapter         string  `json:"chapter"`
	SimilarityScore float64 `json:"similarity_score"`
}

// SystemStats aggregates index and provider health.
type SystemStats struct {
	VectorStore         *vectorstore.Stats `json:"vector_store,omitempty"`
	GeminiConnected     bool               `json:"gemini_connection"`
	AvailableNamespaces []string           `json:"available_namespaces"`
	Status              string             `json:"status"`
	Error               string             `json:"error,omitempty"`
}

// Service answers questions over the indexed corpus. Construct once at
// startup and share across requests; it holds no per-request state.
type Service struct {
	store               Searcher
	generator           Generator
	logger              *slog.Logger
	collection          string
	similarityThreshold float64
}

// NewService wires the orchestrator to its collaborators.
func NewService(store Searcher, generator Generator, logger *slog.Logger, collection string, similarityThreshold float64) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if collection == "" {
		collection = vectorstore.DefaultCollection
	}
	return &Service{
		store:               store,
		generator:           generator,
		logger:              logger,
		collection:          collection,
		similarityThreshold: similarityThreshold,
	}
}

// Answer runs the full question pipeline and never propagates a failure:
// anything unexpected becomes a localized error answer with empty sources
// and the elapsed time measured so far.
func (s *Service) Answer(ctx context.Context, question, documentID string, includeGuidelines bool, topK int) (answer string, sources []SourceReference, elapsed time.Duration) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in rag pipeline", "panic", r)
			answer = fmt.Sprintf("Maaf, terjadi kesalahan saat memproses pertanyaan Anda: %v", r)
			sources = []SourceReference{}
			elapsed = time.Since(start)
		}
	}()

	namespaces := searchNamespaces(documentID, includeGuidelines)

	var retrieved []vectorstore.Result
	budget := perNamespaceBudget(topK, len(namespaces))
	for _, namespace := range namespaces {
		results, err := s.store.Search(ctx, question, s.collection, namespace, budget, s.similarityThreshold)
		if err != nil {
			// Degrade the read path: a failed namespace query must not kill
			// the request, the ungrounded fallback still applies.
			s.logger.Warn("namespace search failed", "namespace", namespace, "error", err)
			continue
		}
		retrieved = append(retrieved, results...)
	}

	sort.SliceStable(retrieved, func(i, j int) bool {
		return retrieved[i].SimilarityScore > retrieved[j].SimilarityScore
	})
	if len(retrieved) > topK {
		retrieved = retrieved[:topK]
	}

	s.logger.Info("retrieved chunks for question", "count", len(retrieved), "namespaces", namespaces)

	if len(retrieved) > 0 {
		answer = s.generator.Generate(ctx, question, retrieved)
	} else {
		answer = s.generator.GenerateSimple(ctx, question) + noContextNote
	}

	return answer, extractSourceReferences(retrieved), time.Since(start)
}

// searchNamespaces builds the namespace set for a question. An empty set
// defaults to the guideline corpus.
func searchNamespaces(documentID string, includeGuidelines bool) []string {
	var namespaces []string
	if includeGuidelines {
		namespaces = append(namespaces, vectorstore.GuidelineNamespace)
	}
	if documentID != "" {
		namespaces = append(namespaces, vectorstore.ThesisNamespace(documentID))
	}
	if len(namespaces) == 0 {
		namespaces = []string{vectorstore.GuidelineNamespace}
	}
	return namespaces
}

// perNamespaceBudget splits topK across namespaces with a +1 rounding
// cushion. Tunable arithmetic, not a domain requirement; the merged list is
// re-truncated to topK afterwards either way.
func perNamespaceBudget(topK, namespaceCount int) int {
	if namespaceCount <= 0 {
		return topK
	}
	return topK/namespaceCount + 1
}

// extractSourceReferences maps retrieval results to display citations,
// deduplicated by (source, page, chapter) preserving first-seen order.
func extractSourceReferences(results []vectorstore.Result) []SourceReference {
	type sourceKey struct {
		source  string
		page    int
		chapter string
	}

	sources := make([]SourceReference, 0, maxSourceReferences)
	seen := make(map[sourceKey]bool)

	for _, result := range results {
		chapter := result.Metadata.Chapter
		if chapter == "" {
			chapter = "Unknown Chapter"
		}

		ref := SourceReference{
			Source:          sourceName(result.Metadata),
			Chapter:         chapter,
			SimilarityScore: result.SimilarityScore,
		}
		if result.Metadata.Page > 0 {
			page := result.Metadata.Page
			ref.Page = &page
		}

		key := sourceKey{source: ref.Source, page: result.Metadata.Page, chapter: chapter}
		if seen[key] {
			continue
		}
		seen[key] = true

		sources = append(sources, ref)
		if len(sources) == maxSourceReferences {
			break
		}
	}

	return sources
}

// sourceName renders a human-readable source label for a chunk.
func sourceName(meta chunker.ChunkMetadata) string {
	switch meta.DocumentType {
	case chunker.DocumentTypeGuidelines:
		return "Pedoman Skripsi UIN Imam Bonjol Padang"
	case chunker.DocumentTypeStudentThesis:
		if meta.Filename != "" {
			return "Skripsi: " + meta.Filename
		}
		return "Skripsi: Skripsi Mahasiswa"
	default:
		if meta.Source != "" {
			return meta.Source
		}
		return "Unknown Source"
	}
}

// AvailableNamespaces lists the namespaces currently present in the index.
func (s *Service) AvailableNamespaces(ctx context.Context) []string {
	stats, err := s.store.Stats(ctx, s.collection)
	if err != nil {
		s.logger.Error("failed to get collection stats", "error", err)
		return nil
	}

	namespaces := make([]string, 0, len(stats.NamespaceDistribution))
	for namespace := range stats.NamespaceDistribution {
		namespaces = append(namespaces, namespace)
	}
	sort.Strings(namespaces)
	return namespaces
}

// SystemStats reports index statistics and provider connectivity.
func (s *Service) SystemStats(ctx context.Context) *SystemStats {
	stats, err := s.store.Stats(ctx, s.collection)
	if err != nil {
		s.logger.Error("failed to get system stats", "error", err)
		return &SystemStats{Status: "error", Error: err.Error()}
	}

	connected := s.generator.TestConnection(ctx)
	status := "healthy"
	if !connected {
		status = "degraded"
	}

	return &SystemStats{
		VectorStore:         stats,
		GeminiConnected:     connected,
		AvailableNamespaces: s.AvailableNamespaces(ctx),
		Status:              status,
	}
}
