package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skripsi-assistant/rag-server/internal/chunker"
	"github.com/skripsi-assistant/rag-server/internal/vectorstore"
)

// fakeSearcher serves canned results per namespace and records the queries
// it receives.
type fakeSearcher struct {
	resultsByNamespace map[string][]vectorstore.Result
	searchErr          error
	statsErr           error
	stats              *vectorstore.Stats

	queriedNamespaces []string
	requestedTopK     []int
}

func (f *fakeSearcher) Search(_ context.Context, _, _, namespaceFilter string, topK int, threshold float64) ([]vectorstore.Result, error) {
	f.queriedNamespaces = append(f.queriedNamespaces, namespaceFilter)
	f.requestedTopK = append(f.requestedTopK, topK)
	if f.searchErr != nil {
		return nil, f.searchErr
	}

	var out []vectorstore.Result
	for _, r := range f.resultsByNamespace[namespaceFilter] {
		if r.SimilarityScore >= threshold {
			out = append(out, r)
		}
	}
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func (f *fakeSearcher) Stats(context.Context, string) (*vectorstore.Stats, error) {
	if f.statsErr != nil {
		return nil, f.statsErr
	}
	return f.stats, nil
}

// fakeGenerator records which generation path ran.
type fakeGenerator struct {
	groundedCalls   int
	ungroundedCalls int
	receivedChunks  []vectorstore.Result
	connected       bool
	panicOnGenerate bool
}

func (f *fakeGenerator) Generate(_ context.Context, _ string, chunks []vectorstore.Result) string {
	if f.panicOnGenerate {
		panic("generator blew up")
	}
	f.groundedCalls++
	f.receivedChunks = chunks
	return "jawaban berdasarkan konteks"
}

func (f *fakeGenerator) GenerateSimple(context.Context, string) string {
	f.ungroundedCalls++
	return "jawaban umum"
}

func (f *fakeGenerator) TestConnection(context.Context) bool { return f.connected }

func guidelineHit(content string, score float64) vectorstore.Result {
	return vectorstore.Result{
		Content:         content,
		SimilarityScore: score,
		Metadata: chunker.ChunkMetadata{
			Namespace:    vectorstore.GuidelineNamespace,
			DocumentType: chunker.DocumentTypeGuidelines,
			Chapter:      "BAB I: PENDAHULUAN",
		},
	}
}

func thesisHit(content string, score float64, docID string) vectorstore.Result {
	return vectorstore.Result{
		Content:         content,
		SimilarityScore: score,
		Metadata: chunker.ChunkMetadata{
			Namespace:    vectorstore.ThesisNamespace(docID),
			DocumentType: chunker.DocumentTypeStudentThesis,
			Filename:     "skripsi.pdf",
			Chapter:      "BAB II: TEORI",
		},
	}
}

func newTestService(store *fakeSearcher, gen *fakeGenerator) *Service {
	return NewService(store, gen, nil, "documents", 0.7)
}

func TestSearchNamespaces(t *testing.T) {
	assert.Equal(t, []string{"pedoman"}, searchNamespaces("", true))
	assert.Equal(t, []string{"skripsi_mahasiswa_abc"}, searchNamespaces("abc", false))
	assert.Equal(t, []string{"pedoman", "skripsi_mahasiswa_abc"}, searchNamespaces("abc", true))
	// Empty set falls back to the guideline corpus.
	assert.Equal(t, []string{"pedoman"}, searchNamespaces("", false))
}

func TestPerNamespaceBudget(t *testing.T) {
	assert.Equal(t, 6, perNamespaceBudget(5, 1))
	assert.Equal(t, 3, perNamespaceBudget(5, 2))
	assert.Equal(t, 2, perNamespaceBudget(4, 3))
}

func TestAnswer_GroundedPath(t *testing.T) {
	store := &fakeSearcher{
		resultsByNamespace: map[string][]vectorstore.Result{
			"pedoman": {
				guidelineHit("chunk a", 0.85),
				guidelineHit("chunk b", 0.80),
				guidelineHit("chunk c", 0.75),
			},
		},
	}
	gen := &fakeGenerator{}
	svc := newTestService(store, gen)

	answer, sources, elapsed := svc.Answer(context.Background(), "Bagaimana format bab satu?", "", true, 5)

	assert.Equal(t, "jawaban berdasarkan konteks", answer)
	assert.Equal(t, 1, gen.groundedCalls)
	assert.Zero(t, gen.ungroundedCalls)
	assert.Equal(t, []string{"pedoman"}, store.queriedNamespaces)
	assert.Equal(t, []int{6}, store.requestedTopK, "single namespace budget is topK/1+1")
	assert.LessOrEqual(t, len(sources), 5)
	assert.Greater(t, elapsed.Nanoseconds(), int64(0))

	for _, src := range sources {
		assert.Equal(t, "Pedoman Skripsi UIN Imam Bonjol Padang", src.Source)
	}
}

func TestAnswer_MergesAndRanksAcrossNamespaces(t *testing.T) {
	store := &fakeSearcher{
		resultsByNamespace: map[string][]vectorstore.Result{
			"pedoman": {
				guidelineHit("pedoman tinggi", 0.9),
				guidelineHit("pedoman rendah", 0.72),
			},
			"skripsi_mahasiswa_doc1": {
				thesisHit("skripsi sedang", 0.8, "doc1"),
			},
		},
	}
	gen := &fakeGenerator{}
	svc := newTestService(store, gen)

	_, _, _ = svc.Answer(context.Background(), "pertanyaan", "doc1", true, 2)

	assert.Equal(t, []string{"pedoman", "skripsi_mahasiswa_doc1"}, store.queriedNamespaces)
	assert.Equal(t, []int{2, 2}, store.requestedTopK, "two namespaces share budget 2/2+1=2")

	require.Len(t, gen.receivedChunks, 2, "merged list truncated to topK")
	assert.Equal(t, "pedoman tinggi", gen.receivedChunks[0].Content)
	assert.Equal(t, "skripsi sedang", gen.receivedChunks[1].Content)
}

func TestAnswer_EmptyIndexUngroundedFallback(t *testing.T) {
	store := &fakeSearcher{resultsByNamespace: map[string][]vectorstore.Result{}}
	gen := &fakeGenerator{}
	svc := newTestService(store, gen)

	answer, sources, _ := svc.Answer(context.Background(), "Apa itu skripsi?", "", true, 5)

	assert.Zero(t, gen.groundedCalls)
	assert.Equal(t, 1, gen.ungroundedCalls)
	assert.True(t, strings.HasPrefix(answer, "jawaban umum"))
	assert.Contains(t, answer, "Tidak ditemukan konteks yang relevan")
	assert.Empty(t, sources)
}

func TestAnswer_SearchFailureDegradesToFallback(t *testing.T) {
	store := &fakeSearcher{searchErr: errors.New("qdrant down")}
	gen := &fakeGenerator{}
	svc := newTestService(store, gen)

	answer, sources, _ := svc.Answer(context.Background(), "pertanyaan", "", true, 5)

	assert.Equal(t, 1, gen.ungroundedCalls, "search failure should not abort the request")
	assert.NotEmpty(t, answer)
	assert.Empty(t, sources)
}

func TestAnswer_PanicRecoveredAtBoundary(t *testing.T) {
	store := &fakeSearcher{
		resultsByNamespace: map[string][]vectorstore.Result{
			"pedoman": {guidelineHit("chunk", 0.9)},
		},
	}
	gen := &fakeGenerator{panicOnGenerate: true}
	svc := newTestService(store, gen)

	answer, sources, elapsed := svc.Answer(context.Background(), "pertanyaan", "", true, 5)

	assert.Contains(t, answer, "Maaf, terjadi kesalahan")
	assert.Empty(t, sources)
	assert.Greater(t, elapsed.Nanoseconds(), int64(0))
}

func TestExtractSourceReferences_Dedup(t *testing.T) {
	page := 10
	withPage := guidelineHit("a", 0.9)
	withPage.Metadata.Page = page
	duplicate := guidelineHit("b", 0.8)
	duplicate.Metadata.Page = page
	differentChapter := guidelineHit("c", 0.7)
	differentChapter.Metadata.Page = page
	differentChapter.Metadata.Chapter = "BAB II: TEORI"

	sources := extractSourceReferences([]vectorstore.Result{withPage, duplicate, differentChapter})

	require.Len(t, sources, 2, "same (source, page, chapter) should collapse")
	assert.Equal(t, 0.9, sources[0].SimilarityScore, "first-seen wins")
	require.NotNil(t, sources[0].Page)
	assert.Equal(t, 10, *sources[0].Page)
}

func TestExtractSourceReferences_CapAtFive(t *testing.T) {
	var results []vectorstore.Result
	for i := 0; i < 8; i++ {
		hit := guidelineHit(fmt.Sprintf("chunk %d", i), 0.9)
		hit.Metadata.Chapter = fmt.Sprintf("BAB %d", i)
		results = append(results, hit)
	}

	sources := extractSourceReferences(results)
	assert.Len(t, sources, 5)
}

func TestExtractSourceReferences_SourceNames(t *testing.T) {
	unknown := vectorstore.Result{SimilarityScore: 0.8, Metadata: chunker.ChunkMetadata{Chapter: "X"}}
	raw := vectorstore.Result{SimilarityScore: 0.8, Metadata: chunker.ChunkMetadata{Source: "Dokumen Lain", Chapter: "Y"}}
	thesis := thesisHit("t", 0.8, "doc1")

	sources := extractSourceReferences([]vectorstore.Result{unknown, raw, thesis})
	require.Len(t, sources, 3)
	assert.Equal(t, "Unknown Source", sources[0].Source)
	assert.Equal(t, "Dokumen Lain", sources[1].Source)
	assert.Equal(t, "Skripsi: skripsi.pdf", sources[2].Source)
}

func TestSystemStats(t *testing.T) {
	store := &fakeSearcher{
		stats: &vectorstore.Stats{
			TotalChunks:           12,
			NamespaceDistribution: map[string]int{"pedoman": 10, "skripsi_mahasiswa_a": 2},
			CollectionName:        "documents",
		},
	}
	gen := &fakeGenerator{connected: true}
	svc := newTestService(store, gen)

	stats := svc.SystemStats(context.Background())
	assert.Equal(t, "healthy", stats.Status)
	assert.True(t, stats.GeminiConnected)
	assert.Equal(t, []string{"pedoman", "skripsi_mahasiswa_a"}, stats.AvailableNamespaces)

	gen.connected = false
	stats = svc.SystemStats(context.Background())
	assert.Equal(t, "degraded", stats.Status)
}

func TestSystemStats_StoreError(t *testing.T) {
	store := &fakeSearcher{statsErr: errors.New("unreachable")}
	gen := &fakeGenerator{}
	svc := newTestService(store, gen)

	stats := svc.SystemStats(context.Background())
	assert.Equal(t, "error", stats.Status)
	assert.NotEmpty(t, stats.Error)
}
