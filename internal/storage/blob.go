// Package storage persists uploaded file bodies on the local filesystem.
//
// Keys are generated server-side and never derived from raw user input, so
// a crafted file name cannot escape the storage root.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// BlobStore writes and reads file bodies under a root directory.
// Layout: <root>/<owner>/<uuid><ext>
type BlobStore struct {
	root string
}

// NewBlobStore creates the root directory if needed.
func NewBlobStore(root string) (*BlobStore, error) {
	if root == "" {
		return nil, fmt.Errorf("storage root is required")
	}
	if err := os.MkdirAll(root, 0750); err != nil {
		return nil, fmt.Errorf("creating storage root: %w", err)
	}
	return &BlobStore{root: root}, nil
}

// Put stores the reader's content and returns the storage key and byte count.
func (b *BlobStore) Put(ownerID, fileName string, r io.Reader) (string, int64, error) {
	dir := filepath.Join(b.root, sanitizeSegment(ownerID))
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", 0, fmt.Errorf("creating owner directory: %w", err)
	}

	key := filepath.Join(sanitizeSegment(ownerID), uuid.NewString()+safeExt(fileName))
	path := filepath.Join(b.root, key)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0640)
	if err != nil {
		return "", 0, fmt.Errorf("creating blob file: %w", err)
	}

	n, err := io.Copy(f, r)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", 0, fmt.Errorf("writing blob: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", 0, fmt.Errorf("closing blob file: %w", err)
	}

	return key, n, nil
}

// Get opens a stored blob for reading. The caller must close the reader.
func (b *BlobStore) Get(key string) (io.ReadCloser, error) {
	path, err := b.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening blob: %w", err)
	}
	return f, nil
}

// resolve joins key with the root and rejects keys that escape it.
func (b *BlobStore) resolve(key string) (string, error) {
	path := filepath.Join(b.root, filepath.Clean(key))
	rootAbs, err := filepath.Abs(b.root)
	if err != nil {
		return "", fmt.Errorf("resolving storage root: %w", err)
	}
	pathAbs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving blob path: %w", err)
	}
	if pathAbs != rootAbs && !strings.HasPrefix(pathAbs, rootAbs+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return pathAbs, nil
}

// sanitizeSegment keeps only characters safe for a single path segment.
func sanitizeSegment(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '_', r == '.':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	out := sb.String()
	if out == "" || out == "." || out == ".." {
		return "anonymous"
	}
	return out
}

// safeExt returns the file extension when it looks harmless, else nothing.
func safeExt(fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	if len(ext) < 2 || len(ext) > 10 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
