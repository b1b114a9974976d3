// Package api exposes the question-answering pipeline over HTTP with JSON
// request/response bodies.
package api

import (
	"time"

	"github.com/skripsi-assistant/rag-server/internal/rag"
)

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	// Question must be 1-1000 characters.
	Question string `json:"question"`
	// DocumentID scopes retrieval to one uploaded thesis when set.
	DocumentID string `json:"document_id,omitempty"`
	// IncludeGuidelines defaults to true when omitted.
	IncludeGuidelines *bool `json:"include_guidelines,omitempty"`
}

// ChatResponse carries the generated answer with its citations.
type ChatResponse struct {
	Answer         string                `json:"answer"`
	Sources        []rag.SourceReference `json:"sources"`
	ProcessingTime float64               `json:"processing_time"`
	Timestamp      time.Time             `json:"timestamp"`
}

// UploadResponse reports the outcome of a document upload.
type UploadResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	DocumentID    string `json:"document_id,omitempty"`
	ChunksCreated int    `json:"chunks_created,omitempty"`
}

// DocumentInfo summarizes one namespace-derived document.
type DocumentInfo struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Name        string `json:"name"`
	ChunksCount int    `json:"chunks_count"`
	Namespace   string `json:"namespace"`
}

// DocumentsResponse is the body of GET /documents.
type DocumentsResponse struct {
	Documents      []DocumentInfo `json:"documents"`
	TotalDocuments int            `json:"total_documents"`
	TotalChunks    uint64         `json:"total_chunks"`
}

// DeleteResponse reports a namespace deletion.
type DeleteResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	DeletedChunks int    `json:"deleted_chunks"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Qdrant    string `json:"qdrant"`
	Timestamp string `json:"timestamp"`
}

// ErrorResponse is the body of any non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}
