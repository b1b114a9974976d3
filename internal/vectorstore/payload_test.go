package vectorstore

import (
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"

	"github.com/skripsi-assistant/rag-server/internal/chunker"
)

func TestPayloadRoundTrip(t *testing.T) {
	chunk := chunker.Chunk{
		Content: "Isi bab dua tentang landasan teori.",
		Metadata: chunker.ChunkMetadata{
			Namespace:      "pedoman",
			DocumentType:   chunker.DocumentTypeGuidelines,
			Source:         "UIN Imam Bonjol Padang Thesis Guidelines",
			Page:           12,
			Chapter:        "BAB II: LANDASAN TEORI",
			Section:        "2.1 Teori",
			ChunkIndex:     3,
			WordCount:      6,
			IsContinuation: true,
		},
	}

	payload := qdrant.NewValueMap(payloadFromChunk(chunk))
	got := metadataFromPayload(payload)

	assert.Equal(t, chunk.Metadata, got)
}

func TestPayloadRoundTrip_ThesisFields(t *testing.T) {
	chunk := chunker.Chunk{
		Content: "Pendahuluan skripsi mahasiswa.",
		Metadata: chunker.ChunkMetadata{
			Namespace:    ThesisNamespace("abc-123"),
			DocumentType: chunker.DocumentTypeStudentThesis,
			StudentID:    "abc-123",
			Filename:     "skripsi_final.pdf",
			Chapter:      "Introduction",
			WordCount:    3,
		},
	}

	payload := qdrant.NewValueMap(payloadFromChunk(chunk))
	got := metadataFromPayload(payload)

	assert.Equal(t, "abc-123", got.StudentID)
	assert.Equal(t, "skripsi_final.pdf", got.Filename)
	assert.Equal(t, "skripsi_mahasiswa_abc-123", got.Namespace)
	assert.Zero(t, got.Page, "Unset page should read back as 0")
}

func TestPageFromPayload_FallbackOrder(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]any
		want    int
	}{
		{"page key preferred", map[string]any{"page": 3, "page_number": 7, "halaman": 9}, 3},
		{"page_number second", map[string]any{"page_number": 7, "halaman": 9}, 7},
		{"halaman last", map[string]any{"halaman": 9}, 9},
		{"numeric string coerced", map[string]any{"page": "14"}, 14},
		{"non-coercible skipped", map[string]any{"page": "lampiran", "halaman": 5}, 5},
		{"nothing set", map[string]any{"chapter": "BAB I"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := qdrant.NewValueMap(tt.payload)
			assert.Equal(t, tt.want, pageFromPayload(payload))
		})
	}
}

func TestThesisNamespace(t *testing.T) {
	assert.Equal(t, "skripsi_mahasiswa_xyz", ThesisNamespace("xyz"))
}
