package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/skripsi-assistant/rag-server/internal/ingest"
	"github.com/skripsi-assistant/rag-server/internal/vectorstore"
)

const healthCheckTimeout = 3 * time.Second

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := HealthResponse{
		Status:    "healthy",
		Qdrant:    "connected",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	code := http.StatusOK
	if err := s.store.Health(ctx); err != nil {
		s.logger.Warn("health check failed", "error", err)
		resp.Status = "unhealthy"
		resp.Qdrant = "disconnected"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

func (s *Server) handleUploadGuidelines(w http.ResponseWriter, r *http.Request) {
	path, _, ok := s.receiveUpload(w, r)
	if !ok {
		return
	}
	defer os.Remove(path)

	result, err := s.ingestor.IngestGuidelines(r.Context(), path)
	if err != nil {
		s.logger.Error("guideline ingestion failed", "error", err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("gagal memproses dokumen: %v", err))
		return
	}

	s.logger.Info("guidelines uploaded",
		"chunks", result.ChunksCreated,
		"duration", result.Duration,
	)
	writeJSON(w, http.StatusOK, UploadResponse{
		Success:       true,
		Message:       "Pedoman Skripsi berhasil diupload dan diproses",
		DocumentID:    result.DocumentID,
		ChunksCreated: result.ChunksCreated,
	})
}

func (s *Server) handleUploadThesis(w http.ResponseWriter, r *http.Request) {
	path, filename, ok := s.receiveUpload(w, r)
	if !ok {
		return
	}
	defer os.Remove(path)

	result, err := s.ingestor.IngestThesis(r.Context(), path, filename)
	if err != nil {
		s.logger.Error("thesis ingestion failed", "filename", filename, "error", err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("gagal memproses dokumen: %v", err))
		return
	}

	s.logger.Info("thesis uploaded",
		"document_id", result.DocumentID,
		"chunks", result.ChunksCreated,
		"duration", result.Duration,
	)
	writeJSON(w, http.StatusOK, UploadResponse{
		Success:       true,
		Message:       fmt.Sprintf("Skripsi '%s' berhasil diupload dan diproses", filename),
		DocumentID:    result.DocumentID,
		ChunksCreated: result.ChunksCreated,
	})
}

// receiveUpload validates the multipart PDF and spools it to a temp file.
// The size limit is enforced before any extraction work happens. On failure
// the error response has already been written and ok is false.
func (s *Server) receiveUpload(w http.ResponseWriter, r *http.Request) (path, filename string, ok bool) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file tidak ditemukan dalam request")
		return "", "", false
	}
	defer file.Close()

	filename = filepath.Base(header.Filename)
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		writeError(w, http.StatusBadRequest, "Hanya file PDF yang didukung")
		return "", "", false
	}

	tmp, err := os.CreateTemp("", "upload-*.pdf")
	if err != nil {
		s.logger.Error("failed to create temp file", "error", err)
		writeError(w, http.StatusInternalServerError, "gagal menyimpan file sementara")
		return "", "", false
	}

	// Read one byte past the limit so an at-limit file passes and an
	// over-limit file is detected without buffering the whole body.
	written, err := io.Copy(tmp, io.LimitReader(file, s.maxFileSize+1))
	closeErr := tmp.Close()
	if err != nil || closeErr != nil {
		os.Remove(tmp.Name())
		s.logger.Error("failed to spool upload", "error", err)
		writeError(w, http.StatusInternalServerError, "gagal menyimpan file sementara")
		return "", "", false
	}
	if written > s.maxFileSize {
		os.Remove(tmp.Name())
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("Ukuran file melebihi batas maksimal %d MB", s.maxFileSize/(1024*1024)))
		return "", "", false
	}

	return tmp.Name(), filename, true
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "body request tidak valid")
		return
	}

	question := strings.TrimSpace(req.Question)
	if len(question) < 1 || len(question) > 1000 {
		writeError(w, http.StatusBadRequest, "Pertanyaan harus antara 1 dan 1000 karakter")
		return
	}

	includeGuidelines := true
	if req.IncludeGuidelines != nil {
		includeGuidelines = *req.IncludeGuidelines
	}

	answer, sources, elapsed := s.rag.Answer(r.Context(), question, req.DocumentID, includeGuidelines, s.topK)

	writeJSON(w, http.StatusOK, ChatResponse{
		Answer:         answer,
		Sources:        sources,
		ProcessingTime: elapsed.Seconds(),
		Timestamp:      time.Now().UTC(),
	})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context(), s.collection)
	if err != nil {
		s.logger.Error("failed to list documents", "error", err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("gagal mengambil daftar dokumen: %v", err))
		return
	}

	documents := documentsFromNamespaces(stats.NamespaceDistribution)
	writeJSON(w, http.StatusOK, DocumentsResponse{
		Documents:      documents,
		TotalDocuments: len(documents),
		TotalChunks:    stats.TotalChunks,
	})
}

// documentsFromNamespaces derives the document list from the namespace
// distribution. The index is the source of truth; there is no separate
// document registry.
func documentsFromNamespaces(distribution map[string]int) []DocumentInfo {
	documents := make([]DocumentInfo, 0, len(distribution))

	if count, ok := distribution[vectorstore.GuidelineNamespace]; ok {
		documents = append(documents, DocumentInfo{
			ID:          ingest.GuidelineDocumentID,
			Type:        "pedoman",
			Name:        "Pedoman Skripsi UIN Imam Bonjol Padang",
			ChunksCount: count,
			Namespace:   vectorstore.GuidelineNamespace,
		})
	}

	thesisNamespaces := make([]string, 0, len(distribution))
	for namespace := range distribution {
		if strings.HasPrefix(namespace, vectorstore.ThesisNamespacePrefix) {
			thesisNamespaces = append(thesisNamespaces, namespace)
		}
	}
	sort.Strings(thesisNamespaces)

	for _, namespace := range thesisNamespaces {
		documentID := strings.TrimPrefix(namespace, vectorstore.ThesisNamespacePrefix)
		documents = append(documents, DocumentInfo{
			ID:          documentID,
			Type:        "skripsi",
			Name:        fmt.Sprintf("Skripsi Mahasiswa (%s...)", shortID(documentID)),
			ChunksCount: distribution[namespace],
			Namespace:   namespace,
		})
	}

	return documents
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	documentID := r.PathValue("id")
	if documentID == "" {
		writeError(w, http.StatusBadRequest, "document id tidak boleh kosong")
		return
	}

	namespace := vectorstore.ThesisNamespace(documentID)
	if documentID == ingest.GuidelineDocumentID {
		namespace = vectorstore.GuidelineNamespace
	}

	deleted, err := s.store.DeleteByNamespace(r.Context(), namespace, s.collection)
	if err != nil {
		s.logger.Error("delete failed", "namespace", namespace, "error", err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("gagal menghapus dokumen: %v", err))
		return
	}

	s.logger.Info("document deleted", "document_id", documentID, "chunks", deleted)
	writeJSON(w, http.StatusOK, DeleteResponse{
		Success:       true,
		Message:       fmt.Sprintf("Dokumen '%s' berhasil dihapus", documentID),
		DeletedChunks: deleted,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.rag.SystemStats(r.Context()))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are already out; nothing useful left to do.
		return
	}
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, ErrorResponse{Error: message})
}
