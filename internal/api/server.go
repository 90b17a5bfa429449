// Package api provides the HTTP surface of the inventory service.
//
// Endpoints:
//
//	POST   /api/add_item                   create one item
//	POST   /api/search_items               natural-language search
//	PATCH  /api/update_item                partial update
//	DELETE /api/delete_item?item_id=       delete one item
//	POST   /api/inventory/bulk_create      create many items
//	GET    /api/activity/recent            activity feed
//	POST   /api/ai_command                 one assistant turn (JSON)
//	POST   /api/ai_command/stream          one assistant turn (SSE)
//	POST   /api/documents/upload           multipart upload
//	GET    /api/documents                  list documents
//	POST   /api/documents/grant_ai_access  AI read consent
//	POST   /api/process_barcode            identify a scanned barcode
//	GET    /health, GET /ready             probes (unauthenticated)
//
// All /api routes require a bearer token; the subject claim scopes every
// store call to the calling user.
package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/findez/inventory/internal/activity"
	"github.com/findez/inventory/internal/agent"
	"github.com/findez/inventory/internal/document"
	"github.com/findez/inventory/internal/inventory"
	"github.com/findez/inventory/internal/log"
)

const (
	// ReadHeaderTimeout prevents Slowloris-style header trickling.
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout is long enough for a full SSE assistant turn.
	WriteTimeout = 2 * time.Minute

	// IdleTimeout is the keep-alive timeout between requests.
	IdleTimeout = 2 * time.Minute

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 30 * time.Second
)

// ItemStore is the inventory surface the API consumes.
type ItemStore interface {
	List(ctx context.Context, ownerID string) ([]*inventory.Item, error)
	Search(ctx context.Context, ownerID, query string) ([]*inventory.Item, error)
	CreateOne(ctx context.Context, ownerID string, row map[string]any) (*inventory.Item, error)
	CreateBulk(ctx context.Context, ownerID string, rows []map[string]any) ([]*inventory.Item, []inventory.RowError, error)
	Update(ctx context.Context, ownerID string, id uuid.UUID, fields map[string]any) (*inventory.Item, error)
	Delete(ctx context.Context, ownerID string, id uuid.UUID) error
}

// DocumentStore is the document surface the API consumes.
type DocumentStore interface {
	Create(ctx context.Context, doc *document.Document) (*document.Document, error)
	List(ctx context.Context, ownerID string, limit int) ([]*document.Document, error)
	GrantAIAccess(ctx context.Context, ownerID, storagePath string) (bool, error)
	UpsertText(ctx context.Context, docID uuid.UUID, content string, truncated bool) error
}

// ActivityStore is the activity surface the API consumes.
type ActivityStore interface {
	Recent(ctx context.Context, ownerID string, limit int) ([]*activity.Entry, error)
	RecordBestEffort(ctx context.Context, ownerID, summary string, metadata map[string]any, actorName *string)
}

// BlobStore persists uploaded file bodies.
type BlobStore interface {
	Put(ownerID, fileName string, r io.Reader) (string, int64, error)
}

// Assistant runs one conversation turn, single-shot or streamed.
type Assistant interface {
	Run(ctx context.Context, userID, message, displayName string) (*agent.Result, error)
	StreamRun(ctx context.Context, userID, message, displayName string, emit func(agent.Event) error) error
}

// ServerConfig contains everything needed to build the API server.
type ServerConfig struct {
	Logger      log.Logger
	Items       ItemStore
	Documents   DocumentStore
	Activity    ActivityStore
	Blobs       BlobStore
	Assistant   Assistant
	Provider    agent.CompletionProvider
	Pool        *pgxpool.Pool // Optional: nil makes /ready report unavailable
	AuthSecret  []byte        // Required: 32+ bytes, HS256 verification key
	CORSOrigins []string
	TrustProxy  bool // Trust X-Real-IP/X-Forwarded-For (behind reverse proxy)
	RateBurst   int  // Per-IP burst (0 = default 60)
	MaxUploadMB int  // Upload size cap (0 = default 10)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Items == nil || cfg.Documents == nil || cfg.Activity == nil || cfg.Blobs == nil {
		return nil, errors.New("all stores are required")
	}
	if cfg.Assistant == nil || cfg.Provider == nil {
		return nil, errors.New("assistant and provider are required")
	}
	if len(cfg.AuthSecret) < 32 {
		return nil, errors.New("auth secret must be at least 32 bytes")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	maxUploadMB := cfg.MaxUploadMB
	if maxUploadMB <= 0 {
		maxUploadMB = 10
	}

	inv := &inventoryHandler{
		items:    cfg.Items,
		activity: cfg.Activity,
		provider: cfg.Provider,
		logger:   logger,
	}
	docs := &documentHandler{
		docs:           cfg.Documents,
		blobs:          cfg.Blobs,
		activity:       cfg.Activity,
		provider:       cfg.Provider,
		logger:         logger,
		maxUploadBytes: int64(maxUploadMB) << 20,
	}
	assist := &assistHandler{
		assistant: cfg.Assistant,
		provider:  cfg.Provider,
		logger:    logger,
	}
	acts := &activityHandler{activity: cfg.Activity, logger: logger}
	probes := &healthHandler{pool: cfg.Pool, logger: logger}

	mux := http.NewServeMux()

	// Inventory
	mux.HandleFunc("POST /api/add_item", inv.addItem)
	mux.HandleFunc("POST /api/search_items", inv.searchItems)
	mux.HandleFunc("PATCH /api/update_item", inv.updateItem)
	mux.HandleFunc("DELETE /api/delete_item", inv.deleteItem)
	mux.HandleFunc("POST /api/inventory/bulk_create", inv.bulkCreate)

	// Assistant
	mux.HandleFunc("POST /api/ai_command", assist.aiCommand)
	mux.HandleFunc("POST /api/ai_command/stream", assist.aiCommandStream)
	mux.HandleFunc("POST /api/process_barcode", assist.processBarcode)

	// Documents
	mux.HandleFunc("POST /api/documents/upload", docs.upload)
	mux.HandleFunc("GET /api/documents", docs.list)
	mux.HandleFunc("POST /api/documents/grant_ai_access", docs.grantAccess)

	// Activity
	mux.HandleFunc("GET /api/activity/recent", acts.recent)

	// Rate limiter: per-IP token bucket (1 token/sec refill)
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Build middleware stack (outermost first):
	//   Recovery → RequestID → Logging → CORS → RateLimit → Auth → Routes
	// RequestID must be before Logging so request_id is available in log
	// attributes. CORS must be before RateLimit so preflight OPTIONS gets
	// proper CORS headers.
	var handler http.Handler = mux
	handler = authMiddleware(cfg.AuthSecret, logger)(handler)
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Top-level mux keeps health probes outside the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", probes.liveness)
	topMux.HandleFunc("GET /ready", probes.readiness)
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
