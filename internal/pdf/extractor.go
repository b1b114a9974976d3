// Package pdf extracts plain text from uploaded PDF documents.
package pdf

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// ExtractText reads a PDF file and returns its text with a page marker
// line before each page. If structured extraction fails, it falls back to
// scraping printable runes from the raw bytes; if that also yields nothing,
// an error is returned and no chunks should be produced.
func ExtractText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err == nil {
		defer f.Close()
		if text, perr := extractPages(r); perr == nil && strings.TrimSpace(text) != "" {
			return text, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read pdf file: %w", err)
	}
	text := extractPrintableText(data)
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("no extractable text in %s", path)
	}
	return text, nil
}

// extractPages walks every page, prefixing each with a marker the chunker
// strips during cleaning.
func extractPages(r *pdf.Reader) (string, error) {
	var sb strings.Builder

	for pageNum := 1; pageNum <= r.NumPage(); pageNum++ {
		page := r.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("extract page %d: %w", pageNum, err)
		}
		fmt.Fprintf(&sb, "\n--- Page %d ---\n", pageNum)
		sb.WriteString(text)
	}

	return sb.String(), nil
}

// extractPrintableText salvages whatever printable runes exist in the raw
// bytes. Last-resort path for PDFs the reader cannot parse.
func extractPrintableText(in []byte) string {
	var sb strings.Builder
	for len(in) > 0 {
		r, size := utf8.DecodeRune(in)
		if r == utf8.RuneError && size == 1 {
			b := in[0]
			if isPrintableASCII(b) {
				sb.WriteByte(b)
			}
			in = in[1:]
			continue
		}
		in = in[size:]
		if isPrintableRune(r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func isPrintableASCII(b byte) bool {
	return b == '\n' || b == '\r' || b == '\t' || (b >= 32 && b < 127)
}

func isPrintableRune(r rune) bool {
	if r == '\n' || r == '\r' || r == '\t' {
		return true
	}
	return r >= 32 && r <= 0x10FFFF
}
