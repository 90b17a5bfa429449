package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/findez/inventory/internal/agent"
	"github.com/findez/inventory/internal/inventory"
	"github.com/findez/inventory/internal/log"
)

// maxBulkRows bounds one bulk_create request.
const maxBulkRows = 100

// inventoryHandler serves the item CRUD endpoints.
type inventoryHandler struct {
	items    ItemStore
	activity ActivityStore
	provider agent.CompletionProvider
	logger   log.Logger
}

// addItem handles POST /api/add_item.
func (h *inventoryHandler) addItem(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFromContext(r.Context())

	var row map[string]any
	if !decodeJSON(w, r, &row) {
		return
	}

	item, err := h.items.CreateOne(r.Context(), id.UserID, row)
	if err != nil {
		if errors.Is(err, inventory.ErrValidation) {
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}
		h.logger.Error("creating item", "error", err, "user", id.UserID)
		writeError(w, http.StatusInternalServerError, "internal_error", "could not create item")
		return
	}

	h.record(r, "added "+item.Name, "item_add")
	writeJSON(w, http.StatusCreated, map[string]any{"item": item})
}

type searchRequest struct {
	Query string `json:"query"`
}

// searchItems handles POST /api/search_items.
//
// The free-text query goes through the model once to split it into keywords
// and optional category/location filters; keywords drive the database search
// and the filters narrow the result afterwards. An empty query lists the
// whole inventory.
func (h *inventoryHandler) searchItems(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFromContext(r.Context())

	var req searchRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	intent := agent.ParseSearchQuery(r.Context(), h.provider, h.logger, req.Query)

	items, err := h.items.Search(r.Context(), id.UserID, strings.Join(intent.Keywords, " "))
	if err != nil {
		h.logger.Error("searching items", "error", err, "user", id.UserID)
		writeError(w, http.StatusInternalServerError, "internal_error", "search failed")
		return
	}

	items = filterByIntent(items, intent)
	writeJSON(w, http.StatusOK, map[string]any{
		"items":  items,
		"count":  len(items),
		"intent": intent,
	})
}

// filterByIntent applies the parsed category and location filters.
func filterByIntent(items []*inventory.Item, intent agent.SearchIntent) []*inventory.Item {
	if intent.Category == "" && intent.Location == "" {
		return items
	}
	out := make([]*inventory.Item, 0, len(items))
	for _, it := range items {
		if intent.Category != "" && !containsFold(it.Category, intent.Category) {
			continue
		}
		if intent.Location != "" && !containsFold(it.Location, intent.Location) {
			continue
		}
		out = append(out, it)
	}
	return out
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

type updateRequest struct {
	ItemID  string         `json:"item_id"`
	Updates map[string]any `json:"updates"`
}

// updateItem handles PATCH /api/update_item.
func (h *inventoryHandler) updateItem(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFromContext(r.Context())

	var req updateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	itemID, err := uuid.Parse(req.ItemID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "item_id must be a UUID")
		return
	}

	item, err := h.items.Update(r.Context(), id.UserID, itemID, req.Updates)
	switch {
	case err == nil:
	case errors.Is(err, inventory.ErrNoFields):
		writeError(w, http.StatusBadRequest, "no_fields", "no updatable fields in request")
		return
	case errors.Is(err, inventory.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	case errors.Is(err, inventory.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "item not found")
		return
	default:
		h.logger.Error("updating item", "error", err, "user", id.UserID, "item", itemID)
		writeError(w, http.StatusInternalServerError, "internal_error", "could not update item")
		return
	}

	h.record(r, "updated "+item.Name, "item_update")
	writeJSON(w, http.StatusOK, map[string]any{"item": item})
}

// deleteItem handles DELETE /api/delete_item?item_id=<uuid>.
func (h *inventoryHandler) deleteItem(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFromContext(r.Context())

	itemID, err := uuid.Parse(r.URL.Query().Get("item_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "item_id must be a UUID")
		return
	}

	if err := h.items.Delete(r.Context(), id.UserID, itemID); err != nil {
		if errors.Is(err, inventory.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "item not found")
			return
		}
		h.logger.Error("deleting item", "error", err, "user", id.UserID, "item", itemID)
		writeError(w, http.StatusInternalServerError, "internal_error", "could not delete item")
		return
	}

	h.record(r, "deleted item "+itemID.String(), "item_delete")
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

type bulkCreateRequest struct {
	Items []map[string]any `json:"items"`
}

// bulkCreate handles POST /api/inventory/bulk_create.
// Row failures are reported per row; valid rows are still inserted.
func (h *inventoryHandler) bulkCreate(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFromContext(r.Context())

	var req bulkCreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "items must not be empty")
		return
	}
	if len(req.Items) > maxBulkRows {
		writeError(w, http.StatusBadRequest, "invalid_request",
			fmt.Sprintf("at most %d items per request", maxBulkRows))
		return
	}

	created, failures, err := h.items.CreateBulk(r.Context(), id.UserID, req.Items)
	if err != nil {
		h.logger.Error("bulk create", "error", err, "user", id.UserID)
		writeError(w, http.StatusInternalServerError, "internal_error", "bulk create failed")
		return
	}

	if len(created) > 0 {
		h.record(r, fmt.Sprintf("added %d items", len(created)), "bulk_create")
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"created":  created,
		"failures": failures,
	})
}

// record writes a best-effort activity entry for the calling user.
func (h *inventoryHandler) record(r *http.Request, summary, eventType string) {
	id, _ := identityFromContext(r.Context())
	var actor *string
	if id.DisplayName != "" {
		actor = &id.DisplayName
	}
	h.activity.RecordBestEffort(r.Context(), id.UserID, summary,
		map[string]any{"type": eventType}, actor)
}
