package vectorstore

import (
	"context"

	"github.com/skripsi-assistant/rag-server/internal/chunker"
)

// DefaultCollection is the single Qdrant collection holding all chunks.
const DefaultCollection = "documents"

// Namespace partition keys. Exactly one guideline namespace exists; each
// uploaded thesis gets its own namespace derived from its document id.
const (
	GuidelineNamespace    = "pedoman"
	ThesisNamespacePrefix = "skripsi_mahasiswa_"
)

// ThesisNamespace returns the namespace for a student thesis document.
func ThesisNamespace(documentID string) string {
	return ThesisNamespacePrefix + documentID
}

// VectorDimension is the embedding size stored per chunk. Matches
// embedding.Dimension for text-embedding-3-small.
const VectorDimension = 1536

// Embedder computes embedding vectors for texts. Implemented by
// embedding.Embedder; faked in tests.
type Embedder interface {
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// Result is a transient retrieval hit: chunk content plus metadata and a
// similarity score in [0,1] (equivalent to 1 minus cosine distance).
type Result struct {
	ID              string
	Content         string
	Metadata        chunker.ChunkMetadata
	SimilarityScore float64
}

// Stats summarizes a collection for health and document listing.
type Stats struct {
	TotalChunks           uint64
	NamespaceDistribution map[string]int
	CollectionName        string
}
