package api

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddItem(t *testing.T) {
	h := newTestServer(t)
	token := signToken(t, "user-1", "Ana")

	t.Run("created", func(t *testing.T) {
		rec := h.do(http.MethodPost, "/api/add_item", token, map[string]any{
			"name": "Drill", "category": "Tools", "location": "Garage",
		})
		require.Equal(t, http.StatusCreated, rec.Code)
		require.Len(t, h.items.rows, 1)
		assert.Equal(t, "user-1", h.items.rows[0].OwnerID)

		require.Len(t, h.acts.recorded, 1)
		assert.Equal(t, "item_add", h.acts.recorded[0].metadata["type"])
		require.NotNil(t, h.acts.recorded[0].actor)
		assert.Equal(t, "Ana", *h.acts.recorded[0].actor)
	})

	t.Run("validation failure", func(t *testing.T) {
		rec := h.do(http.MethodPost, "/api/add_item", token, map[string]any{
			"category": "Tools",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "validation_failed", body["error"])
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := h.do(http.MethodPost, "/api/add_item", token, "not an object")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSearchItems(t *testing.T) {
	h := newTestServer(t)
	h.addItem("user-1", "Drill", "Tools", "Garage")
	h.addItem("user-1", "Screws", "Hardware", "Drawer")
	h.addItem("user-2", "Saw", "Tools", "Shed")
	token := signToken(t, "user-1", "")

	t.Run("matches query", func(t *testing.T) {
		rec := h.do(http.MethodPost, "/api/search_items", token, map[string]any{"query": "drill"})
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, float64(1), body["count"])
	})

	t.Run("empty query lists everything owned", func(t *testing.T) {
		rec := h.do(http.MethodPost, "/api/search_items", token, map[string]any{"query": ""})
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, float64(2), body["count"], "owner sees both items, the foreign one never")
	})
}

func TestUpdateItem(t *testing.T) {
	h := newTestServer(t)
	drill := h.addItem("user-1", "Drill", "Tools", "Garage")
	token := signToken(t, "user-1", "")

	t.Run("updated", func(t *testing.T) {
		rec := h.do(http.MethodPatch, "/api/update_item", token, map[string]any{
			"item_id": drill.ID.String(),
			"updates": map[string]any{"location": "Shed"},
		})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Shed", h.items.rows[0].Location)
	})

	t.Run("no fields", func(t *testing.T) {
		rec := h.do(http.MethodPatch, "/api/update_item", token, map[string]any{
			"item_id": drill.ID.String(),
			"updates": map[string]any{},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "no_fields", decodeBody(t, rec)["error"])
	})

	t.Run("foreign item reads as missing", func(t *testing.T) {
		rec := h.do(http.MethodPatch, "/api/update_item", signToken(t, "user-2", ""), map[string]any{
			"item_id": drill.ID.String(),
			"updates": map[string]any{"location": "Stolen"},
		})
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "Shed", h.items.rows[0].Location, "state unchanged")
	})

	t.Run("bad id", func(t *testing.T) {
		rec := h.do(http.MethodPatch, "/api/update_item", token, map[string]any{
			"item_id": "nope",
			"updates": map[string]any{"location": "Shed"},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestDeleteItem(t *testing.T) {
	h := newTestServer(t)
	drill := h.addItem("user-1", "Drill", "Tools", "Garage")
	token := signToken(t, "user-1", "")

	t.Run("bad id", func(t *testing.T) {
		rec := h.do(http.MethodDelete, "/api/delete_item?item_id=nope", token, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing id", func(t *testing.T) {
		rec := h.do(http.MethodDelete, "/api/delete_item?item_id="+uuid.NewString(), token, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("deleted", func(t *testing.T) {
		rec := h.do(http.MethodDelete, "/api/delete_item?item_id="+drill.ID.String(), token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, decodeBody(t, rec)["deleted"])
		assert.Empty(t, h.items.rows)
	})
}

func TestBulkCreate(t *testing.T) {
	h := newTestServer(t)
	token := signToken(t, "user-1", "")

	t.Run("partial failure", func(t *testing.T) {
		rec := h.do(http.MethodPost, "/api/inventory/bulk_create", token, map[string]any{
			"items": []map[string]any{
				{"name": "A", "category": "C", "location": "L"},
				{"name": "", "category": "C", "location": "L"},
			},
		})
		require.Equal(t, http.StatusCreated, rec.Code)
		body := decodeBody(t, rec)
		assert.Len(t, body["created"], 1)
		assert.Len(t, body["failures"], 1)
	})

	t.Run("empty list", func(t *testing.T) {
		rec := h.do(http.MethodPost, "/api/inventory/bulk_create", token, map[string]any{
			"items": []map[string]any{},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("too many rows", func(t *testing.T) {
		rows := make([]map[string]any, maxBulkRows+1)
		for i := range rows {
			rows[i] = map[string]any{"name": "X", "category": "C", "location": "L"}
		}
		rec := h.do(http.MethodPost, "/api/inventory/bulk_create", token, map[string]any{"items": rows})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
