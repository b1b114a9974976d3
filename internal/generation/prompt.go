package generation

import (
	"fmt"
	"strings"

	"github.com/skripsi-assistant/rag-server/internal/vectorstore"
)

// Placeholders inserted when a context group came back empty from retrieval.
const (
	noGuidelineContext = "Tidak ada konteks Pedoman Skripsi yang relevan ditemukan."
	noThesisContext    = "Tidak ada konteks skripsi mahasiswa yang relevan."
)

// BuildPrompt assembles the grounded instructional prompt. Retrieved chunks
// are partitioned into a guideline group and a thesis group by namespace
// marker, preserving retrieval order within each group, and formatted as
// "[<Group> - <chapter>]: <content>" entries.
func BuildPrompt(question string, chunks []vectorstore.Result) string {
	var guidelineContext, thesisContext []string

	for _, chunk := range chunks {
		chapter := chunk.Metadata.Chapter
		if chapter == "" {
			chapter = "Unknown Chapter"
		}
		switch {
		case strings.Contains(chunk.Metadata.Namespace, vectorstore.GuidelineNamespace):
			guidelineContext = append(guidelineContext,
				fmt.Sprintf("[Pedoman - %s]: %s", chapter, chunk.Content))
		case strings.Contains(chunk.Metadata.Namespace, strings.TrimSuffix(vectorstore.ThesisNamespacePrefix, "_")):
			thesisContext = append(thesisContext,
				fmt.Sprintf("[Skripsi - %s]: %s", chapter, chunk.Content))
		}
	}

	parts := []string{
		"Anda adalah asisten AI yang membantu mahasiswa memahami Pedoman Skripsi UIN Imam Bonjol Padang.",
		"Berikan jawaban yang akurat berdasarkan konteks yang diberikan.",
		"Prioritaskan informasi dari Pedoman Skripsi sebagai referensi utama.",
		"Jika ada informasi dari skripsi mahasiswa, gunakan sebagai contoh atau referensi tambahan.",
		"Berikan jawaban dalam bahasa Indonesia yang jelas dan mudah dipahami.",
		"",
		"[KONTEKS PEDOMAN SKRIPSI]:",
	}

	if len(guidelineContext) > 0 {
		parts = append(parts, guidelineContext...)
	} else {
		parts = append(parts, noGuidelineContext)
	}

	parts = append(parts, "", "[KONTEKS SKRIPSI MAHASISWA]:")

	if len(thesisContext) > 0 {
		parts = append(parts, thesisContext...)
	} else {
		parts = append(parts, noThesisContext)
	}

	parts = append(parts,
		"",
		fmt.Sprintf("[PERTANYAAN MAHASISWA]: %s", question),
		"",
		"[JAWABAN]:",
		"Berdasarkan Pedoman Skripsi UIN Imam Bonjol Padang dan konteks yang tersedia, berikut adalah penjelasan untuk pertanyaan Anda:",
	)

	return strings.Join(parts, "\n")
}

// BuildSimplePrompt is the ungrounded fallback prompt used when retrieval
// produced no relevant chunks.
func BuildSimplePrompt(question string) string {
	return fmt.Sprintf(`Anda adalah asisten AI yang membantu mahasiswa dengan pertanyaan umum tentang skripsi.

Pertanyaan: %s

Berikan jawaban yang informatif dan membantu dalam bahasa Indonesia.`, question)
}
