package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromUpload_PlainText(t *testing.T) {
	text, err := FromUpload("notes.txt", strings.NewReader("line one\r\nline two\r\n\r\n\r\nline three"))
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two\n\nline three", text)
}

func TestFromUpload_InvalidUTF8(t *testing.T) {
	text, err := FromUpload("notes.txt", strings.NewReader("ok \xff\xfe bytes"))
	require.NoError(t, err)
	assert.Equal(t, "ok  bytes", text)
}

func TestFromUpload_Unsupported(t *testing.T) {
	_, err := FromUpload("photo.jpg", strings.NewReader("jpeg"))
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = FromUpload("archive.zip", strings.NewReader("zip"))
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestCleanText(t *testing.T) {
	t.Run("strips null bytes", func(t *testing.T) {
		assert.Equal(t, "ab", cleanText("a\x00b"))
	})

	t.Run("collapses blank runs", func(t *testing.T) {
		got := cleanText("a\n\n\n\n\nb")
		assert.Equal(t, "a\n\nb", got)
	})

	t.Run("trims trailing whitespace", func(t *testing.T) {
		assert.Equal(t, "a\nb", cleanText("a   \nb\t\t"))
	})

	t.Run("caps length", func(t *testing.T) {
		long := strings.Repeat("x", MaxTextChars+500)
		assert.Len(t, cleanText(long), MaxTextChars)
	})
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 10))
	assert.Equal(t, "ab", Truncate("abcdef", 2))

	// Never splits a multi-byte rune.
	s := "héllo" // é is two bytes, positions 1-2
	got := Truncate(s, 2)
	assert.Equal(t, "h", got)
}
