//go:build integration
// +build integration

package inventory

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/findez/inventory/internal/log"
	"github.com/findez/inventory/internal/testutil"
)

func newIntegrationStore(t *testing.T) (*Store, *testutil.TestDB) {
	t.Helper()
	tdb, cleanup := testutil.SetupTestDB(t)
	t.Cleanup(cleanup)

	store, err := NewStore(tdb.Pool, log.NewNop())
	require.NoError(t, err)
	return store, tdb
}

func mustCreate(t *testing.T, store *Store, ownerID string, row map[string]any) *Item {
	t.Helper()
	item, err := store.CreateOne(context.Background(), ownerID, row)
	require.NoError(t, err)
	return item
}

func TestStore_CreateAndGet_Integration(t *testing.T) {
	store, _ := newIntegrationStore(t)
	ctx := context.Background()

	created := mustCreate(t, store, "owner-1", map[string]any{
		"name":     "Cordless Drill",
		"category": "Tools",
		"location": "Garage",
		"brand":    "Makita",
		"tags":     []string{"power", "18v"},
	})
	assert.NotZero(t, created.ID)
	assert.Equal(t, 1, created.Quantity, "quantity defaults to 1")
	assert.NotZero(t, created.CreatedAt)

	got, err := store.Get(ctx, "owner-1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Cordless Drill", got.Name)
	require.NotNil(t, got.Brand)
	assert.Equal(t, "Makita", *got.Brand)
	assert.Equal(t, []string{"power", "18v"}, got.Tags)

	// Another owner never sees the row.
	_, err = store.Get(ctx, "owner-2", created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_Search_Integration(t *testing.T) {
	store, _ := newIntegrationStore(t)
	ctx := context.Background()

	mustCreate(t, store, "owner-1", map[string]any{
		"name": "Drill", "category": "Tools", "location": "Garage",
	})
	mustCreate(t, store, "owner-1", map[string]any{
		"name": "Screwdriver", "category": "Tools", "location": "Workbench",
		"notes": "came with the drill kit",
	})
	mustCreate(t, store, "owner-1", map[string]any{
		"name": "Flour", "category": "Pantry", "location": "Kitchen",
	})
	mustCreate(t, store, "owner-2", map[string]any{
		"name": "Drill Press", "category": "Tools", "location": "Shop",
	})

	t.Run("matches across columns, case-insensitive", func(t *testing.T) {
		items, err := store.Search(ctx, "owner-1", "DRILL")
		require.NoError(t, err)
		require.Len(t, items, 2, "name match plus notes match, owner-2 excluded")
	})

	t.Run("empty query returns the full list", func(t *testing.T) {
		items, err := store.Search(ctx, "owner-1", "   ")
		require.NoError(t, err)
		assert.Len(t, items, 3)
	})

	t.Run("no match", func(t *testing.T) {
		items, err := store.Search(ctx, "owner-1", "tractor")
		require.NoError(t, err)
		assert.Empty(t, items)
	})
}

func TestStore_SearchEscapesWildcards_Integration(t *testing.T) {
	store, _ := newIntegrationStore(t)
	ctx := context.Background()

	mustCreate(t, store, "owner-1", map[string]any{
		"name": "100% cotton rope", "category": "Supplies", "location": "Shed",
	})
	mustCreate(t, store, "owner-1", map[string]any{
		"name": "100ft extension cord", "category": "Supplies", "location": "Shed",
	})

	// "%" must match the literal character, not act as a LIKE wildcard.
	items, err := store.Search(ctx, "owner-1", "100%")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "100% cotton rope", items[0].Name)

	// Same for "_": no single-character wildcard behavior.
	items, err = store.Search(ctx, "owner-1", "100_")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestStore_CreateBulk_Integration(t *testing.T) {
	store, tdb := newIntegrationStore(t)
	ctx := context.Background()

	created, failures, err := store.CreateBulk(ctx, "owner-1", []map[string]any{
		{"name": "Hammer", "category": "Tools", "location": "Garage"},
		{"category": "Tools", "location": "Garage"}, // no name
		{"name": "Wrench", "category": "Tools", "location": "Garage", "quantity": "3"},
	})
	require.NoError(t, err)

	require.Len(t, created, 2)
	assert.Equal(t, "Hammer", created[0].Name)
	assert.Equal(t, "Wrench", created[1].Name)
	assert.Equal(t, 3, created[1].Quantity)

	require.Len(t, failures, 1)
	assert.Equal(t, 1, failures[0].Index)
	assert.Contains(t, failures[0].Reason, "name is required")

	var count int
	err = tdb.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM items WHERE owner_id = $1`, "owner-1").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 2, count, "only valid rows are inserted")
}

func TestStore_CreateBulk_AllInvalid_Integration(t *testing.T) {
	store, _ := newIntegrationStore(t)

	created, failures, err := store.CreateBulk(context.Background(), "owner-1", []map[string]any{
		{"name": "No Category", "location": "Garage"},
		{"name": "No Location", "category": "Tools"},
	})
	require.NoError(t, err)
	assert.Empty(t, created)
	require.Len(t, failures, 2)
	assert.Equal(t, 0, failures[0].Index)
	assert.Equal(t, 1, failures[1].Index)
}

func TestStore_Update_Integration(t *testing.T) {
	store, _ := newIntegrationStore(t)
	ctx := context.Background()

	item := mustCreate(t, store, "owner-1", map[string]any{
		"name": "Drill", "category": "Tools", "location": "Garage",
	})

	t.Run("multiple fields in one statement", func(t *testing.T) {
		updated, err := store.Update(ctx, "owner-1", item.ID, map[string]any{
			"location": "Basement",
			"quantity": 4,
			"notes":    "moved during cleanup",
			"tags":     []any{"power"},
		})
		require.NoError(t, err)
		assert.Equal(t, "Basement", updated.Location)
		assert.Equal(t, 4, updated.Quantity)
		require.NotNil(t, updated.Notes)
		assert.Equal(t, "moved during cleanup", *updated.Notes)
		assert.Equal(t, []string{"power"}, updated.Tags)
		assert.True(t, updated.UpdatedAt.After(item.UpdatedAt) || updated.UpdatedAt.Equal(item.UpdatedAt))
	})

	t.Run("disallowed fields filtered, nothing left", func(t *testing.T) {
		_, err := store.Update(ctx, "owner-1", item.ID, map[string]any{
			"owner_id": "owner-2",
			"id":       "bogus",
		})
		assert.ErrorIs(t, err, ErrNoFields)

		got, err := store.Get(ctx, "owner-1", item.ID)
		require.NoError(t, err)
		assert.Equal(t, "owner-1", got.OwnerID, "filtered update must not touch the row")
	})

	t.Run("wrong owner", func(t *testing.T) {
		_, err := store.Update(ctx, "owner-2", item.ID, map[string]any{"quantity": 9})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("negative quantity clamps to zero", func(t *testing.T) {
		updated, err := store.Update(ctx, "owner-1", item.ID, map[string]any{"quantity": -5})
		require.NoError(t, err)
		assert.Equal(t, 0, updated.Quantity)
	})
}

func TestStore_Delete_Integration(t *testing.T) {
	store, _ := newIntegrationStore(t)
	ctx := context.Background()

	item := mustCreate(t, store, "owner-1", map[string]any{
		"name": "Drill", "category": "Tools", "location": "Garage",
	})

	require.ErrorIs(t, store.Delete(ctx, "owner-2", item.ID), ErrNotFound)

	require.NoError(t, store.Delete(ctx, "owner-1", item.ID))
	_, err := store.Get(ctx, "owner-1", item.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, store.Delete(ctx, "owner-1", item.ID), ErrNotFound)
}

func TestStore_List_Integration(t *testing.T) {
	store, _ := newIntegrationStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		mustCreate(t, store, "owner-1", map[string]any{
			"name": fmt.Sprintf("Item %d", i+1), "category": "Misc", "location": "Shelf",
		})
	}

	items, err := store.List(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "Item 3", items[0].Name, "newest first")
}
