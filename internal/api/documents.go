package api

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/findez/inventory/internal/agent"
	"github.com/findez/inventory/internal/document"
	"github.com/findez/inventory/internal/extract"
	"github.com/findez/inventory/internal/log"
)

// documentHandler serves upload, listing and AI consent endpoints.
type documentHandler struct {
	docs           DocumentStore
	blobs          BlobStore
	activity       ActivityStore
	provider       agent.CompletionProvider
	logger         log.Logger
	maxUploadBytes int64
}

// upload handles POST /api/documents/upload (multipart, field "file").
//
// The file body lands in blob storage, metadata in the documents table.
// Text extraction runs inline and is best-effort: an upload whose text
// cannot be extracted still succeeds, the assistant just has nothing to
// read until a later extraction pass.
func (h *documentHandler) upload(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+maxBodyBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "too_large", "upload exceeds the size limit")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "multipart field \"file\" is required")
		return
	}
	defer func() {
		if err := file.Close(); err != nil {
			h.logger.Debug("closing upload", "error", err)
		}
	}()

	fileName := filepath.Base(header.Filename)
	if fileName == "" || fileName == "." || fileName == string(filepath.Separator) {
		writeError(w, http.StatusBadRequest, "invalid_request", "file name is required")
		return
	}

	key, size, err := h.blobs.Put(id.UserID, fileName, file)
	if err != nil {
		h.logger.Error("storing upload", "error", err, "user", id.UserID)
		writeError(w, http.StatusInternalServerError, "internal_error", "could not store upload")
		return
	}

	mimeType := header.Header.Get("Content-Type")
	doc, err := h.docs.Create(r.Context(), &document.Document{
		OwnerID:     id.UserID,
		FileName:    fileName,
		MimeType:    mimeType,
		FileType:    document.DeriveFileType(fileName, mimeType),
		StoragePath: key,
		SizeBytes:   size,
	})
	if err != nil {
		h.logger.Error("creating document record", "error", err, "user", id.UserID)
		writeError(w, http.StatusInternalServerError, "internal_error", "could not record upload")
		return
	}

	h.extractText(r, doc, file)

	summary := agent.SummarizeActivity(r.Context(), h.provider, h.logger, "uploaded "+fileName)
	h.record(r, summary, "document_upload")

	writeJSON(w, http.StatusCreated, map[string]any{"document": doc})
}

// extractText populates the text cache from the just-uploaded body.
func (h *documentHandler) extractText(r *http.Request, doc *document.Document, file io.ReadSeeker) {
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		h.logger.Warn("rewinding upload for extraction", "error", err, "document", doc.ID)
		return
	}

	text, err := extract.FromUpload(doc.FileName, file)
	if err != nil {
		if !errors.Is(err, extract.ErrUnsupported) {
			h.logger.Warn("text extraction failed", "error", err, "document", doc.ID)
		}
		return
	}

	// extract caps by bytes, so the flag has to compare bytes too.
	truncated := len(text) >= extract.MaxTextChars
	if err := h.docs.UpsertText(r.Context(), doc.ID, text, truncated); err != nil {
		h.logger.Warn("caching extracted text", "error", err, "document", doc.ID)
	}
}

// list handles GET /api/documents.
func (h *documentHandler) list(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFromContext(r.Context())

	limit := document.DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = n
	}

	docs, err := h.docs.List(r.Context(), id.UserID, limit)
	if err != nil {
		h.logger.Error("listing documents", "error", err, "user", id.UserID)
		writeError(w, http.StatusInternalServerError, "internal_error", "could not list documents")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"documents": docs,
		"count":     len(docs),
	})
}

type grantRequest struct {
	StoragePath string `json:"storage_path"`
}

// grantAccess handles POST /api/documents/grant_ai_access.
func (h *documentHandler) grantAccess(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFromContext(r.Context())

	var req grantRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.StoragePath == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "storage_path is required")
		return
	}

	granted, err := h.docs.GrantAIAccess(r.Context(), id.UserID, req.StoragePath)
	if err != nil {
		h.logger.Error("granting AI access", "error", err, "user", id.UserID)
		writeError(w, http.StatusInternalServerError, "internal_error", "could not grant access")
		return
	}
	if !granted {
		writeError(w, http.StatusNotFound, "not_found", "document not found")
		return
	}

	h.record(r, "granted AI access to "+req.StoragePath, "ai_access_grant")
	writeJSON(w, http.StatusOK, map[string]any{"granted": true})
}

// record writes a best-effort activity entry for the calling user.
func (h *documentHandler) record(r *http.Request, summary, eventType string) {
	id, _ := identityFromContext(r.Context())
	var actor *string
	if id.DisplayName != "" {
		actor = &id.DisplayName
	}
	h.activity.RecordBestEffort(r.Context(), id.UserID, summary,
		map[string]any{"type": eventType}, actor)
}
