// Package chunker splits extracted document text into size-bounded,
// semantically labeled chunks ready for embedding.
package chunker

import (
	"fmt"
	"regexp"
	"strings"
)

// DocumentType identifies the corpus a document belongs to.
type DocumentType string

const (
	DocumentTypeGuidelines    DocumentType = "thesis_guidelines"
	DocumentTypeStudentThesis DocumentType = "student_thesis"
)

// DocumentMetadata describes the source document being chunked. The chunker
// copies it onto every chunk it emits.
type DocumentMetadata struct {
	Namespace    string
	DocumentType DocumentType
	StudentID    string // student theses only
	Filename     string // student theses only
	Source       string
	Page         int // optional source page, 0 when unknown
}

// ChunkMetadata is the full metadata record stored with each chunk.
type ChunkMetadata struct {
	Namespace      string
	DocumentType   DocumentType
	StudentID      string
	Filename       string
	Source         string
	Page           int
	Chapter        string
	Section        string
	ChunkIndex     int
	WordCount      int
	IsContinuation bool
}

// Chunk is the unit of retrieval. ID is left empty here; the vector store
// assigns one on write.
type Chunk struct {
	ID       string
	Content  string
	Metadata ChunkMetadata
}

// Heading detection is deliberately heuristic. These patterns cover the
// Indonesian and English conventions seen in thesis documents (BAB II,
// CHAPTER 3, BAGIAN IV) and numbered subsections (2.1 Landasan Teori).
var (
	chapterPattern    = regexp.MustCompile(`(?i)(BAB|CHAPTER|BAGIAN)\s+([IVX\d]+)\.?\s*(\S[^\n]*)`)
	sectionPattern    = regexp.MustCompile(`\d+\.\d+\.?\s*\S[^\n]*`)
	pageMarkerPattern = regexp.MustCompile(`--- Page \d+ ---`)
	noisePattern      = regexp.MustCompile(`[^\w\s.,;:!?\-()]`)
	blankLinesPattern = regexp.MustCompile(`\n\s*\n+`)
	spacesPattern     = regexp.MustCompile(`[ \t]+`)
)

// Chunker splits cleaned text into word-bounded chunks with overlap.
type Chunker struct {
	maxChunkSize int
	chunkOverlap int
}

// New creates a Chunker. chunkOverlap must be smaller than maxChunkSize or
// the sliding-window step would be non-positive.
func New(maxChunkSize, chunkOverlap int) (*Chunker, error) {
	if maxChunkSize <= 0 {
		return nil, fmt.Errorf("max chunk size must be positive, got %d", maxChunkSize)
	}
	if chunkOverlap < 0 {
		return nil, fmt.Errorf("chunk overlap must not be negative, got %d", chunkOverlap)
	}
	if chunkOverlap >= maxChunkSize {
		return nil, fmt.Errorf("chunk overlap (%d) must be smaller than max chunk size (%d)",
			chunkOverlap, maxChunkSize)
	}
	return &Chunker{
		maxChunkSize: maxChunkSize,
		chunkOverlap: chunkOverlap,
	}, nil
}

// CleanText normalizes extracted text: page markers and non-text noise are
// removed, horizontal whitespace is collapsed, paragraph breaks survive.
func CleanText(text string) string {
	text = pageMarkerPattern.ReplaceAllString(text, "")
	text = noisePattern.ReplaceAllString(text, " ")
	text = spacesPattern.ReplaceAllString(text, " ")
	text = blankLinesPattern.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// block is a paragraph-level unit with its running structural labels.
type block struct {
	chapter string
	section string
	content string
}

// extractBlocks splits cleaned text into paragraph blocks, tracking the
// current chapter label across heading lines. Chapter headings themselves
// produce no block.
func extractBlocks(text string) []block {
	currentChapter := "Introduction"
	var blocks []block

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		if m := chapterPattern.FindStringSubmatch(para); m != nil {
			currentChapter = fmt.Sprintf("%s %s: %s", m[1], m[2], strings.TrimSpace(m[3]))
			continue
		}

		// Normalize intra-paragraph whitespace so chunk contents are
		// single-spaced word sequences.
		content := strings.Join(strings.Fields(para), " ")

		section := ""
		if m := sectionPattern.FindString(para); m != "" {
			section = strings.TrimSpace(m)
		}

		blocks = append(blocks, block{
			chapter: currentChapter,
			section: section,
			content: content,
		})
	}

	return blocks
}

// ChunkText cleans text, detects structure, and emits ordered chunks. Blocks
// within the size bound become single chunks; larger blocks are split with a
// sliding word window of maxChunkSize advancing maxChunkSize-chunkOverlap
// words per step, every window after the first flagged as a continuation.
// Empty input yields no chunks.
func (c *Chunker) ChunkText(text string, meta DocumentMetadata) []Chunk {
	cleaned := CleanText(text)
	if cleaned == "" {
		return nil
	}

	var chunks []Chunk
	chunkIndex := 0

	emit := func(words []string, b block, isContinuation bool) {
		content := strings.Join(words, " ")
		chunks = append(chunks, Chunk{
			Content: content,
			Metadata: ChunkMetadata{
				Namespace:      meta.Namespace,
				DocumentType:   meta.DocumentType,
				StudentID:      meta.StudentID,
				Filename:       meta.Filename,
				Source:         meta.Source,
				Page:           meta.Page,
				Chapter:        b.chapter,
				Section:        b.section,
				ChunkIndex:     chunkIndex,
				WordCount:      len(words),
				IsContinuation: isContinuation,
			},
		})
		chunkIndex++
	}

	step := c.maxChunkSize - c.chunkOverlap

	for _, b := range extractBlocks(cleaned) {
		words := strings.Fields(b.content)
		if len(words) <= c.maxChunkSize {
			emit(words, b, false)
			continue
		}

		for i := 0; i < len(words); i += step {
			end := i + c.maxChunkSize
			if end > len(words) {
				end = len(words)
			}
			emit(words[i:end], b, i > 0)
		}
	}

	return chunks
}
