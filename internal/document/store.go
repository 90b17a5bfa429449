// Package document manages uploaded document metadata, the extracted text
// cache, and the per-document AI access consent flag.
//
// The assistant may only read a document's text after the owner has granted
// access explicitly. Consent is stored per document and checked on every read.
package document

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/findez/inventory/internal/log"
)

var (
	// ErrNotFound indicates the document does not exist for this owner.
	ErrNotFound = errors.New("document not found")

	// ErrNoText indicates no text has been extracted for the document.
	ErrNoText = errors.New("no extracted text")
)

// DefaultListLimit bounds List when the caller passes limit <= 0.
const DefaultListLimit = 50

// Document is stored file metadata. The file body lives in blob storage
// under StoragePath.
type Document struct {
	ID                uuid.UUID  `json:"id"`
	OwnerID           string     `json:"owner_id"`
	FileName          string     `json:"file_name"`
	MimeType          string     `json:"mime_type"`
	FileType          string     `json:"file_type"`
	StoragePath       string     `json:"storage_path"`
	SizeBytes         int64      `json:"size_bytes"`
	AIAccessGranted   bool       `json:"ai_access_granted"`
	AIAccessGrantedAt *time.Time `json:"ai_access_granted_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// Text is a cached extraction result for one document.
type Text struct {
	Content   string
	Truncated bool
}

const documentCols = `id, owner_id, file_name, mime_type, file_type, storage_path,
	size_bytes, ai_access_granted, ai_access_granted_at, created_at`

// Store manages documents backed by PostgreSQL.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool   *pgxpool.Pool
	logger log.Logger
}

// NewStore creates a document Store.
func NewStore(pool *pgxpool.Pool, logger log.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Create inserts document metadata and returns the stored row.
func (s *Store) Create(ctx context.Context, doc *Document) (*Document, error) {
	if doc.FileType == "" {
		doc.FileType = DeriveFileType(doc.FileName, doc.MimeType)
	}
	row := s.pool.QueryRow(ctx,
		`INSERT INTO documents (owner_id, file_name, mime_type, file_type, storage_path, size_bytes)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+documentCols,
		doc.OwnerID, doc.FileName, doc.MimeType, doc.FileType, doc.StoragePath, doc.SizeBytes,
	)
	created, err := scanDocument(row)
	if err != nil {
		return nil, fmt.Errorf("inserting document: %w", err)
	}
	return created, nil
}

// List returns up to limit documents for an owner, newest first.
func (s *Store) List(ctx context.Context, ownerID string, limit int) ([]*Document, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+documentCols+` FROM documents
		 WHERE owner_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		ownerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	docs := []*Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

// ByPath returns the document stored at the given storage path.
func (s *Store) ByPath(ctx context.Context, ownerID, storagePath string) (*Document, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+documentCols+` FROM documents
		 WHERE owner_id = $1 AND storage_path = $2`,
		ownerID, storagePath,
	)
	doc, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("looking up document %q: %w", storagePath, err)
	}
	return doc, nil
}

// GrantAIAccess sets the consent flag for the document at storagePath.
// Returns true iff a row was updated.
func (s *Store) GrantAIAccess(ctx context.Context, ownerID, storagePath string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE documents
		 SET ai_access_granted = true, ai_access_granted_at = now()
		 WHERE owner_id = $1 AND storage_path = $2`,
		ownerID, storagePath,
	)
	if err != nil {
		return false, fmt.Errorf("granting AI access for %q: %w", storagePath, err)
	}
	return tag.RowsAffected() > 0, nil
}

// AIAccessGranted reports whether consent has been given for the document
// at storagePath. A missing document reads as not granted.
func (s *Store) AIAccessGranted(ctx context.Context, ownerID, storagePath string) (bool, error) {
	var granted bool
	err := s.pool.QueryRow(ctx,
		`SELECT ai_access_granted FROM documents
		 WHERE owner_id = $1 AND storage_path = $2`,
		ownerID, storagePath,
	).Scan(&granted)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking AI access for %q: %w", storagePath, err)
	}
	return granted, nil
}

// UpsertText stores (or replaces) the extracted text for a document.
func (s *Store) UpsertText(ctx context.Context, docID uuid.UUID, content string, truncated bool) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO document_texts (document_id, content, truncated)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (document_id) DO UPDATE
		 SET content = EXCLUDED.content, truncated = EXCLUDED.truncated, extracted_at = now()`,
		docID, content, truncated,
	)
	if err != nil {
		return fmt.Errorf("storing document text: %w", err)
	}
	return nil
}

// TextByID returns the cached extracted text for a document.
// Returns ErrNoText when nothing has been extracted yet.
func (s *Store) TextByID(ctx context.Context, docID uuid.UUID) (*Text, error) {
	t := &Text{}
	err := s.pool.QueryRow(ctx,
		`SELECT content, truncated FROM document_texts WHERE document_id = $1`,
		docID,
	).Scan(&t.Content, &t.Truncated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoText
	}
	if err != nil {
		return nil, fmt.Errorf("reading document text: %w", err)
	}
	return t, nil
}

// DeriveFileType derives a coarse file type from mime type and extension.
func DeriveFileType(name, mimeType string) string {
	switch {
	case mimeType == "application/pdf":
		return "pdf"
	case strings.HasPrefix(mimeType, "image/"):
		return "image"
	case strings.HasPrefix(mimeType, "text/"):
		return textSubtype(name)
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return "pdf"
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
		return "image"
	case ".txt", ".md", ".markdown", ".csv":
		return textSubtype(name)
	default:
		return "other"
	}
}

func textSubtype(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".markdown":
		return "markdown"
	case ".csv":
		return "csv"
	default:
		return "text"
	}
}

func scanDocument(row pgx.Row) (*Document, error) {
	doc := &Document{}
	err := row.Scan(
		&doc.ID, &doc.OwnerID, &doc.FileName, &doc.MimeType, &doc.FileType,
		&doc.StoragePath, &doc.SizeBytes, &doc.AIAccessGranted,
		&doc.AIAccessGrantedAt, &doc.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return doc, nil
}
