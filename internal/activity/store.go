// Package activity records the append-only audit trail of inventory actions.
//
// Recording is best-effort on most call sites: a failed audit write must
// never fail the user-facing operation it describes. Entries double as
// conversational memory; the assistant reads recent entries to decide
// whether to greet the user.
package activity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/findez/inventory/internal/log"
)

// Entry is one audit trail row. Entries are never mutated or deleted.
type Entry struct {
	ID        uuid.UUID      `json:"id"`
	OwnerID   string         `json:"owner_id"`
	EventType string         `json:"event_type"`
	Summary   string         `json:"summary"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	ActorName *string        `json:"actor_name,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// DefaultRecentLimit bounds Recent when the caller passes limit <= 0.
const DefaultRecentLimit = 25

// Store manages the activity log backed by PostgreSQL.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool   *pgxpool.Pool
	logger log.Logger
}

// NewStore creates an activity Store.
func NewStore(pool *pgxpool.Pool, logger log.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Store{pool: pool, logger: logger}, nil
}

// eventType derives the entry tag from metadata, defaulting to "unknown".
func eventType(metadata map[string]any) string {
	if t, ok := metadata["type"].(string); ok && t != "" {
		return t
	}
	return "unknown"
}

// Record inserts an audit entry.
//
// Deployments migrated before actor_name existed reject the column with
// undefined_column; in that case the insert is retried once without it so
// the action is still recorded.
func (s *Store) Record(ctx context.Context, ownerID, summary string, metadata map[string]any, actorName *string) error {
	event := eventType(metadata)

	_, err := s.pool.Exec(ctx,
		`INSERT INTO activity_log (owner_id, event_type, summary, metadata, actor_name)
		 VALUES ($1, $2, $3, $4, $5)`,
		ownerID, event, summary, metadata, actorName,
	)
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "42703" { // undefined_column
		s.logger.Warn("actor_name column missing, recording without it", "event_type", event)
		_, retryErr := s.pool.Exec(ctx,
			`INSERT INTO activity_log (owner_id, event_type, summary, metadata)
			 VALUES ($1, $2, $3, $4)`,
			ownerID, event, summary, metadata,
		)
		if retryErr != nil {
			return fmt.Errorf("recording activity without actor: %w", retryErr)
		}
		return nil
	}

	return fmt.Errorf("recording activity: %w", err)
}

// RecordBestEffort records an entry and logs instead of returning errors.
func (s *Store) RecordBestEffort(ctx context.Context, ownerID, summary string, metadata map[string]any, actorName *string) {
	if err := s.Record(ctx, ownerID, summary, metadata, actorName); err != nil {
		s.logger.Warn("activity record failed", "event_type", eventType(metadata), "error", err)
	}
}

// Recent returns the newest entries for an owner, most recent first.
func (s *Store) Recent(ctx context.Context, ownerID string, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, owner_id, event_type, summary, metadata, actor_name, created_at
		 FROM activity_log
		 WHERE owner_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		ownerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing activity: %w", err)
	}
	defer rows.Close()

	entries := []*Entry{}
	for rows.Next() {
		e := &Entry{}
		if err := rows.Scan(&e.ID, &e.OwnerID, &e.EventType, &e.Summary, &e.Metadata, &e.ActorName, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning activity entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating activity entries: %w", err)
	}
	return entries, nil
}
