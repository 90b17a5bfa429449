//go:build integration
// +build integration

package activity

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/findez/inventory/internal/log"
	"github.com/findez/inventory/internal/testutil"
)

func newIntegrationStore(t *testing.T) (*Store, *pgxpool.Pool) {
	t.Helper()
	tdb, cleanup := testutil.SetupTestDB(t)
	t.Cleanup(cleanup)

	store, err := NewStore(tdb.Pool, log.NewNop())
	require.NoError(t, err)
	return store, tdb.Pool
}

func TestStore_RecordAndRecent_Integration(t *testing.T) {
	store, _ := newIntegrationStore(t)
	ctx := context.Background()

	actor := "Ana"
	err := store.Record(ctx, "owner-1", "added Drill",
		map[string]any{"type": "item_add", "tool": "add_inventory_items"}, &actor)
	require.NoError(t, err)

	err = store.Record(ctx, "owner-1", "asked about the garage",
		map[string]any{"type": "ai_chat"}, nil)
	require.NoError(t, err)

	err = store.Record(ctx, "owner-2", "added Wrench",
		map[string]any{"type": "item_add"}, nil)
	require.NoError(t, err)

	entries, err := store.Recent(ctx, "owner-1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2, "owner-2 excluded")

	// Most recent first.
	assert.Equal(t, "ai_chat", entries[0].EventType)
	assert.Nil(t, entries[0].ActorName)

	assert.Equal(t, "item_add", entries[1].EventType)
	assert.Equal(t, "added Drill", entries[1].Summary)
	require.NotNil(t, entries[1].ActorName)
	assert.Equal(t, "Ana", *entries[1].ActorName)
	assert.Equal(t, "add_inventory_items", entries[1].Metadata["tool"])
}

func TestStore_RecentLimit_Integration(t *testing.T) {
	store, _ := newIntegrationStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Record(ctx, "owner-1", "entry",
			map[string]any{"type": "item_add"}, nil))
	}

	entries, err := store.Recent(ctx, "owner-1", 3)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

// Deployments migrated before actor_name existed must still accept writes:
// the store retries the insert without the column on undefined_column.
func TestStore_RecordWithoutActorColumn_Integration(t *testing.T) {
	store, pool := newIntegrationStore(t)
	ctx := context.Background()

	_, err := pool.Exec(ctx, `ALTER TABLE activity_log DROP COLUMN actor_name`)
	require.NoError(t, err)

	actor := "Ana"
	err = store.Record(ctx, "owner-1", "added Drill",
		map[string]any{"type": "item_add"}, &actor)
	require.NoError(t, err, "insert must fall back to the reduced column set")

	var summary string
	err = pool.QueryRow(ctx,
		`SELECT summary FROM activity_log WHERE owner_id = $1`, "owner-1",
	).Scan(&summary)
	require.NoError(t, err)
	assert.Equal(t, "added Drill", summary)
}
