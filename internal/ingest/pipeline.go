// Package ingest implements the document write path: extract text from an
// uploaded PDF, chunk it, and persist the chunks to the vector store.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/skripsi-assistant/rag-server/internal/chunker"
	"github.com/skripsi-assistant/rag-server/internal/vectorstore"
)

// GuidelineDocumentID is the stable id of the single guideline document.
const GuidelineDocumentID = "guidelines"

// guidelineSource labels guideline chunks for citation display.
const guidelineSource = "UIN Imam Bonjol Padang Thesis Guidelines"

// TextExtractor pulls raw text out of a document file. pdf.ExtractText is
// the production implementation.
type TextExtractor func(path string) (string, error)

// Writer is the write-side of the vector store the pipeline depends on.
type Writer interface {
	Add(ctx context.Context, chunks []chunker.Chunk, collection string) error
}

// Result summarizes one ingestion run.
type Result struct {
	DocumentID    string
	ChunksCreated int
	Duration      time.Duration
}

// Pipeline turns a PDF on disk into indexed chunks.
type Pipeline struct {
	extract    TextExtractor
	chunker    *chunker.Chunker
	store      Writer
	logger     *slog.Logger
	collection string
}

// NewPipeline wires the ingestion steps together.
func NewPipeline(extract TextExtractor, c *chunker.Chunker, store Writer, logger *slog.Logger, collection string) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if collection == "" {
		collection = vectorstore.DefaultCollection
	}
	return &Pipeline{
		extract:    extract,
		chunker:    c,
		store:      store,
		logger:     logger,
		collection: collection,
	}
}

// IngestGuidelines processes the thesis guidelines PDF into the guideline
// namespace. Re-ingesting replaces nothing automatically; callers that want
// a clean slate delete the namespace first.
func (p *Pipeline) IngestGuidelines(ctx context.Context, path string) (*Result, error) {
	meta := chunker.DocumentMetadata{
		Namespace:    vectorstore.GuidelineNamespace,
		DocumentType: chunker.DocumentTypeGuidelines,
		Source:       guidelineSource,
	}
	return p.ingest(ctx, path, GuidelineDocumentID, meta)
}

// IngestThesis processes a student thesis PDF under a freshly generated
// document id and its own namespace.
func (p *Pipeline) IngestThesis(ctx context.Context, path, filename string) (*Result, error) {
	documentID := uuid.New().String()
	meta := chunker.DocumentMetadata{
		Namespace:    vectorstore.ThesisNamespace(documentID),
		DocumentType: chunker.DocumentTypeStudentThesis,
		StudentID:    documentID,
		Filename:     filename,
	}
	return p.ingest(ctx, path, documentID, meta)
}

func (p *Pipeline) ingest(ctx context.Context, path, documentID string, meta chunker.DocumentMetadata) (*Result, error) {
	start := time.Now()

	text, err := p.extract(path)
	if err != nil {
		return nil, fmt.Errorf("extract text: %w", err)
	}

	chunks := p.chunker.ChunkText(text, meta)
	p.logger.Info("chunked document",
		"document_id", documentID,
		"namespace", meta.Namespace,
		"chunks", len(chunks),
	)

	if err := p.store.Add(ctx, chunks, p.collection); err != nil {
		return nil, fmt.Errorf("store chunks: %w", err)
	}

	return &Result{
		DocumentID:    documentID,
		ChunksCreated: len(chunks),
		Duration:      time.Since(start),
	}, nil
}
