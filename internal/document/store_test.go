package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveFileType(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		mimeType string
		want     string
	}{
		{"pdf by mime", "manual.bin", "application/pdf", "pdf"},
		{"pdf by extension", "manual.PDF", "", "pdf"},
		{"image by mime", "photo", "image/jpeg", "image"},
		{"image by extension", "photo.webp", "", "image"},
		{"plain text", "notes.txt", "text/plain", "text"},
		{"markdown wins over text mime", "readme.md", "text/markdown", "markdown"},
		{"csv", "parts.csv", "", "csv"},
		{"unknown", "archive.zip", "application/zip", "other"},
		{"no extension no mime", "mystery", "", "other"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveFileType(tt.fileName, tt.mimeType))
		})
	}
}
