//go:build integration

package vectorstore

import (
	"context"
	"hash/fnv"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skripsi-assistant/rag-server/internal/chunker"
)

// hashEmbedder produces deterministic fake vectors so integration tests do
// not need an embedding API key.
type hashEmbedder struct{}

func (hashEmbedder) GenerateEmbeddings(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		h := fnv.New32a()
		h.Write([]byte(text))
		seed := h.Sum32()
		vector := make([]float32, VectorDimension)
		for j := range vector {
			seed = seed*1664525 + 1013904223
			vector[j] = float32(seed%1000)/1000 - 0.5
		}
		vectors[i] = vector
	}
	return vectors, nil
}

// setupTestStore creates a store against a local Qdrant, skipping the test
// when Qdrant is not running.
func setupTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	store, err := New("localhost", 6334, hashEmbedder{})
	if err != nil {
		t.Skipf("Qdrant not available: %v", err)
	}

	collection := "test_" + uuid.New().String()
	require.NoError(t, store.EnsureCollection(context.Background(), collection))
	return store, collection
}

func guidelineChunk(content string, index int) chunker.Chunk {
	return chunker.Chunk{
		Content: content,
		Metadata: chunker.ChunkMetadata{
			Namespace:    GuidelineNamespace,
			DocumentType: chunker.DocumentTypeGuidelines,
			Chapter:      "BAB I: PENDAHULUAN",
			ChunkIndex:   index,
			WordCount:    len(content),
		},
	}
}

func TestAddAndSearch(t *testing.T) {
	store, collection := setupTestStore(t)
	defer store.Close()
	ctx := context.Background()

	chunks := []chunker.Chunk{
		guidelineChunk("Pedoman penulisan bab pendahuluan skripsi.", 0),
		guidelineChunk("Aturan format margin dan spasi dokumen.", 1),
	}
	require.NoError(t, store.Add(ctx, chunks, collection))

	// Identical text embeds to the identical vector, so the match is exact.
	results, err := store.Search(ctx, "Pedoman penulisan bab pendahuluan skripsi.",
		collection, GuidelineNamespace, 5, 0.9)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	assert.Equal(t, "Pedoman penulisan bab pendahuluan skripsi.", results[0].Content)
	assert.Equal(t, GuidelineNamespace, results[0].Metadata.Namespace)
	assert.GreaterOrEqual(t, results[0].SimilarityScore, 0.9)
}

func TestSearch_NamespaceFilter(t *testing.T) {
	store, collection := setupTestStore(t)
	defer store.Close()
	ctx := context.Background()

	thesis := chunker.Chunk{
		Content: "Analisis data skripsi mahasiswa.",
		Metadata: chunker.ChunkMetadata{
			Namespace:    ThesisNamespace("stu-1"),
			DocumentType: chunker.DocumentTypeStudentThesis,
			StudentID:    "stu-1",
		},
	}
	require.NoError(t, store.Add(ctx, []chunker.Chunk{guidelineChunk("Pedoman umum.", 0), thesis}, collection))

	results, err := store.Search(ctx, "Analisis data skripsi mahasiswa.",
		collection, ThesisNamespace("stu-1"), 10, 0)
	require.NoError(t, err)

	for _, result := range results {
		assert.Equal(t, ThesisNamespace("stu-1"), result.Metadata.Namespace)
	}
}

func TestSearch_EmptyCollection(t *testing.T) {
	store, collection := setupTestStore(t)
	defer store.Close()

	results, err := store.Search(context.Background(), "pertanyaan apa saja",
		collection, GuidelineNamespace, 5, 0.7)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestDeleteByNamespace(t *testing.T) {
	store, collection := setupTestStore(t)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, []chunker.Chunk{
		guidelineChunk("Chunk pertama.", 0),
		guidelineChunk("Chunk kedua.", 1),
	}, collection))

	deleted, err := store.DeleteByNamespace(ctx, GuidelineNamespace, collection)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	// Deleting an empty namespace is not an error.
	deleted, err = store.DeleteByNamespace(ctx, "skripsi_mahasiswa_nonexistent", collection)
	require.NoError(t, err)
	assert.Equal(t, 0, deleted)
}

func TestStats(t *testing.T) {
	store, collection := setupTestStore(t)
	defer store.Close()
	ctx := context.Background()

	thesis := chunker.Chunk{
		Content:  "Isi skripsi.",
		Metadata: chunker.ChunkMetadata{Namespace: ThesisNamespace("stu-2")},
	}
	require.NoError(t, store.Add(ctx, []chunker.Chunk{guidelineChunk("Isi pedoman.", 0), thesis}, collection))

	stats, err := store.Stats(ctx, collection)
	require.NoError(t, err)

	assert.Equal(t, collection, stats.CollectionName)
	assert.Equal(t, 1, stats.NamespaceDistribution[GuidelineNamespace])
	assert.Equal(t, 1, stats.NamespaceDistribution[ThesisNamespace("stu-2")])
}
