package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/skripsi-assistant/rag-server/internal/ingest"
	"github.com/skripsi-assistant/rag-server/internal/rag"
	"github.com/skripsi-assistant/rag-server/internal/vectorstore"
)

// QuestionAnswerer is the read-side pipeline behind /chat and /stats.
type QuestionAnswerer interface {
	Answer(ctx context.Context, question, documentID string, includeGuidelines bool, topK int) (string, []rag.SourceReference, time.Duration)
	SystemStats(ctx context.Context) *rag.SystemStats
}

// Ingestor is the write-side pipeline behind the upload endpoints.
type Ingestor interface {
	IngestGuidelines(ctx context.Context, path string) (*ingest.Result, error)
	IngestThesis(ctx context.Context, path, filename string) (*ingest.Result, error)
}

// DocumentStore is the slice of the vector store the API needs directly:
// health probing, listing, and namespace deletion.
type DocumentStore interface {
	Health(ctx context.Context) error
	Stats(ctx context.Context, collection string) (*vectorstore.Stats, error)
	DeleteByNamespace(ctx context.Context, namespace, collection string) (int, error)
}

// Config holds the server's dependencies and limits.
type Config struct {
	RAG        QuestionAnswerer
	Ingestor   Ingestor
	Store      DocumentStore
	Logger     *slog.Logger
	Collection string
	// MaxFileSize is the upload limit in bytes.
	MaxFileSize int64
	// TopK is the retrieval depth used for every chat request.
	TopK int
}

// Server serves the HTTP API.
type Server struct {
	rag         QuestionAnswerer
	ingestor    Ingestor
	store       DocumentStore
	logger      *slog.Logger
	collection  string
	maxFileSize int64
	topK        int
}

// NewServer creates a Server from its configuration.
func NewServer(cfg *Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	collection := cfg.Collection
	if collection == "" {
		collection = vectorstore.DefaultCollection
	}
	return &Server{
		rag:         cfg.RAG,
		ingestor:    cfg.Ingestor,
		store:       cfg.Store,
		logger:      logger,
		collection:  collection,
		maxFileSize: cfg.MaxFileSize,
		topK:        cfg.TopK,
	}
}

// Routes registers all endpoints on a fresh mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /upload/guidelines", s.handleUploadGuidelines)
	mux.HandleFunc("POST /upload/thesis", s.handleUploadThesis)
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("GET /documents", s.handleListDocuments)
	mux.HandleFunc("DELETE /documents/{id}", s.handleDeleteDocument)
	mux.HandleFunc("GET /stats", s.handleStats)
	return mux
}
