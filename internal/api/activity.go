package api

import (
	"net/http"
	"strconv"

	"github.com/findez/inventory/internal/activity"
	"github.com/findez/inventory/internal/log"
)

// activityHandler serves the activity feed.
type activityHandler struct {
	activity ActivityStore
	logger   log.Logger
}

// recent handles GET /api/activity/recent.
func (h *activityHandler) recent(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFromContext(r.Context())

	limit := activity.DefaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := h.activity.Recent(r.Context(), id.UserID, limit)
	if err != nil {
		h.logger.Error("listing activity", "error", err, "user", id.UserID)
		writeError(w, http.StatusInternalServerError, "internal_error", "could not list activity")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"activity": entries,
		"count":    len(entries),
	})
}
