package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/findez/inventory/internal/activity"
	"github.com/findez/inventory/internal/document"
	"github.com/findez/inventory/internal/inventory"
)

// Grounding snapshot bounds.
const (
	snapshotDocLimit      = 50
	snapshotActivityLimit = 25
)

// ItemStore is the inventory capability consumed by the agent.
type ItemStore interface {
	List(ctx context.Context, ownerID string) ([]*inventory.Item, error)
	Search(ctx context.Context, ownerID, query string) ([]*inventory.Item, error)
	CreateOne(ctx context.Context, ownerID string, row map[string]any) (*inventory.Item, error)
	CreateBulk(ctx context.Context, ownerID string, rows []map[string]any) ([]*inventory.Item, []inventory.RowError, error)
	Update(ctx context.Context, ownerID string, id uuid.UUID, fields map[string]any) (*inventory.Item, error)
	Delete(ctx context.Context, ownerID string, id uuid.UUID) error
}

// DocumentStore is the document capability consumed by the agent.
type DocumentStore interface {
	List(ctx context.Context, ownerID string, limit int) ([]*document.Document, error)
	ByPath(ctx context.Context, ownerID, storagePath string) (*document.Document, error)
	GrantAIAccess(ctx context.Context, ownerID, storagePath string) (bool, error)
	AIAccessGranted(ctx context.Context, ownerID, storagePath string) (bool, error)
	UpsertText(ctx context.Context, docID uuid.UUID, content string, truncated bool) error
	TextByID(ctx context.Context, docID uuid.UUID) (*document.Text, error)
}

// ActivityStore is the audit-log capability consumed by the agent.
type ActivityStore interface {
	Recent(ctx context.Context, ownerID string, limit int) ([]*activity.Entry, error)
	RecordBestEffort(ctx context.Context, ownerID, summary string, metadata map[string]any, actorName *string)
}

// BlobGetter fetches raw document bytes by storage path.
type BlobGetter interface {
	Get(key string) (io.ReadCloser, error)
}

// snapshot is the grounding context injected into the model each turn.
// Document entries are reduced to display-safe metadata; raw content is
// never included.
type snapshot struct {
	Inventory      []*inventory.Item `json:"inventory"`
	Documents      []docSummary      `json:"documents"`
	RecentActivity []activityLine    `json:"recent_activity"`
}

type docSummary struct {
	FileName        string    `json:"file_name"`
	StoragePath     string    `json:"storage_path"`
	MimeType        string    `json:"mime_type"`
	SizeBytes       int64     `json:"size_bytes"`
	AIAccessGranted bool      `json:"ai_access_granted"`
	CreatedAt       time.Time `json:"created_at"`
}

type activityLine struct {
	EventType string    `json:"event_type"`
	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"created_at"`
}

// assembleContext builds the grounding JSON and the greeting decision.
//
// Greet-with-name is true iff a display name is available and no prior
// ai_chat entry exists in the fetched activity window. This is a
// first-contact heuristic re-derived every call, not a persisted flag, so
// it can re-trigger once the window ages out.
func (a *Agent) assembleContext(ctx context.Context, userID, displayName string) (grounding string, greet bool, err error) {
	items, err := a.items.List(ctx, userID)
	if err != nil {
		return "", false, fmt.Errorf("loading inventory: %w", err)
	}

	docs, err := a.docs.List(ctx, userID, snapshotDocLimit)
	if err != nil {
		return "", false, fmt.Errorf("loading documents: %w", err)
	}

	// Activity feeds the greeting heuristic and light conversational
	// memory; a failed fetch degrades to no greeting, never a failed turn.
	entries, actErr := a.activity.Recent(ctx, userID, snapshotActivityLimit)
	if actErr != nil {
		a.logger.Warn("loading recent activity failed", "error", actErr)
		entries = nil
	}

	snap := snapshot{
		Inventory:      items,
		Documents:      make([]docSummary, 0, len(docs)),
		RecentActivity: make([]activityLine, 0, len(entries)),
	}
	for _, d := range docs {
		snap.Documents = append(snap.Documents, docSummary{
			FileName:        d.FileName,
			StoragePath:     d.StoragePath,
			MimeType:        d.MimeType,
			SizeBytes:       d.SizeBytes,
			AIAccessGranted: d.AIAccessGranted,
			CreatedAt:       d.CreatedAt,
		})
	}

	greet = displayName != "" && actErr == nil
	for _, e := range entries {
		snap.RecentActivity = append(snap.RecentActivity, activityLine{
			EventType: e.EventType,
			Summary:   e.Summary,
			CreatedAt: e.CreatedAt,
		})
		if e.EventType == "ai_chat" {
			greet = false
		}
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return "", false, fmt.Errorf("encoding grounding snapshot: %w", err)
	}
	return string(data), greet, nil
}
