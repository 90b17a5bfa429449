// Package extract produces plain text from uploaded documents so the
// assistant can read them later.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/findez/inventory/internal/document"
)

// MaxTextChars caps stored extracted text. Anything beyond is dropped at
// extraction time; the assistant-facing read path applies its own, smaller cap.
const MaxTextChars = 200_000

// ErrUnsupported indicates the file type has no text extraction path.
var ErrUnsupported = errors.New("unsupported file type for text extraction")

// FromUpload extracts plain text from an uploaded file. The file type is
// derived from the name. Image and unknown types return ErrUnsupported.
func FromUpload(fileName string, r io.Reader) (string, error) {
	switch document.DeriveFileType(fileName, "") {
	case "pdf":
		return fromPDF(r)
	case "text", "markdown", "csv":
		return fromPlainText(r)
	default:
		return "", ErrUnsupported
	}
}

// fromPDF extracts text from all pages. The body is buffered because the
// PDF parser needs random access.
func fromPDF(r io.Reader) (string, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("reading pdf body: %w", err)
	}

	reader, err := pdf.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return "", fmt.Errorf("parsing pdf: %w", err)
	}

	text, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}

	var sb strings.Builder
	if _, err := io.Copy(&sb, text); err != nil {
		return "", fmt.Errorf("collecting pdf text: %w", err)
	}
	return cleanText(sb.String()), nil
}

// fromPlainText reads the body as UTF-8, dropping invalid sequences
// instead of failing. Scanned text files in odd encodings still yield
// their ASCII subset.
func fromPlainText(r io.Reader) (string, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("reading text body: %w", err)
	}
	return cleanText(string(bytes.ToValidUTF8(body, nil))), nil
}

// cleanText strips null bytes, normalizes line endings, collapses runs of
// blank lines and enforces MaxTextChars.
func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blanks := 0
	for _, line := range lines {
		trimmed := strings.TrimRight(line, " \t")
		if strings.TrimSpace(trimmed) == "" {
			blanks++
			if blanks > 1 {
				continue
			}
			trimmed = ""
		} else {
			blanks = 0
		}
		out = append(out, trimmed)
	}

	s = strings.TrimSpace(strings.Join(out, "\n"))
	return Truncate(s, MaxTextChars)
}

// Truncate caps s at max characters without splitting a UTF-8 sequence.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := s[:max]
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut
}
