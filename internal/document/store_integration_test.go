//go:build integration
// +build integration

package document

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/findez/inventory/internal/log"
	"github.com/findez/inventory/internal/testutil"
)

func newIntegrationStore(t *testing.T) *Store {
	t.Helper()
	tdb, cleanup := testutil.SetupTestDB(t)
	t.Cleanup(cleanup)

	store, err := NewStore(tdb.Pool, log.NewNop())
	require.NoError(t, err)
	return store
}

func mustCreateDoc(t *testing.T, store *Store, ownerID, fileName, storagePath string) *Document {
	t.Helper()
	doc, err := store.Create(context.Background(), &Document{
		OwnerID:     ownerID,
		FileName:    fileName,
		MimeType:    "text/plain",
		StoragePath: storagePath,
		SizeBytes:   42,
	})
	require.NoError(t, err)
	return doc
}

func TestStore_CreateAndByPath_Integration(t *testing.T) {
	store := newIntegrationStore(t)
	ctx := context.Background()

	created := mustCreateDoc(t, store, "owner-1", "warranty.txt", "owner-1/warranty.txt")
	assert.NotZero(t, created.ID)
	assert.Equal(t, "text", created.FileType, "file type derived on insert")
	assert.False(t, created.AIAccessGranted, "uploads start without consent")
	assert.Nil(t, created.AIAccessGrantedAt)

	got, err := store.ByPath(ctx, "owner-1", "owner-1/warranty.txt")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = store.ByPath(ctx, "owner-2", "owner-1/warranty.txt")
	assert.ErrorIs(t, err, ErrNotFound, "path lookups are owner-scoped")
}

func TestStore_GrantAIAccess_Integration(t *testing.T) {
	store := newIntegrationStore(t)
	ctx := context.Background()

	doc := mustCreateDoc(t, store, "owner-1", "manual.txt", "owner-1/manual.txt")

	granted, err := store.AIAccessGranted(ctx, "owner-1", doc.StoragePath)
	require.NoError(t, err)
	assert.False(t, granted)

	ok, err := store.GrantAIAccess(ctx, "owner-1", doc.StoragePath)
	require.NoError(t, err)
	assert.True(t, ok)

	granted, err = store.AIAccessGranted(ctx, "owner-1", doc.StoragePath)
	require.NoError(t, err)
	assert.True(t, granted)

	got, err := store.ByPath(ctx, "owner-1", doc.StoragePath)
	require.NoError(t, err)
	assert.NotNil(t, got.AIAccessGrantedAt)

	t.Run("wrong owner cannot grant", func(t *testing.T) {
		ok, err := store.GrantAIAccess(ctx, "owner-2", doc.StoragePath)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("missing document reads as not granted", func(t *testing.T) {
		granted, err := store.AIAccessGranted(ctx, "owner-1", "owner-1/nope.txt")
		require.NoError(t, err)
		assert.False(t, granted)
	})
}

func TestStore_UpsertText_Integration(t *testing.T) {
	store := newIntegrationStore(t)
	ctx := context.Background()

	doc := mustCreateDoc(t, store, "owner-1", "notes.txt", "owner-1/notes.txt")

	_, err := store.TextByID(ctx, doc.ID)
	assert.ErrorIs(t, err, ErrNoText)

	require.NoError(t, store.UpsertText(ctx, doc.ID, "first extraction", false))
	text, err := store.TextByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "first extraction", text.Content)
	assert.False(t, text.Truncated)

	// A second pass replaces, not duplicates.
	require.NoError(t, store.UpsertText(ctx, doc.ID, "second extraction", true))
	text, err = store.TextByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "second extraction", text.Content)
	assert.True(t, text.Truncated)

	_, err = store.TextByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNoText)
}

func TestStore_List_Integration(t *testing.T) {
	store := newIntegrationStore(t)
	ctx := context.Background()

	mustCreateDoc(t, store, "owner-1", "a.txt", "owner-1/a.txt")
	mustCreateDoc(t, store, "owner-1", "b.txt", "owner-1/b.txt")
	mustCreateDoc(t, store, "owner-1", "c.txt", "owner-1/c.txt")
	mustCreateDoc(t, store, "owner-2", "d.txt", "owner-2/d.txt")

	docs, err := store.List(ctx, "owner-1", 10)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "c.txt", docs[0].FileName, "newest first")

	docs, err = store.List(ctx, "owner-1", 2)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}
