package api

import (
	"net/http"
	"strings"

	"github.com/findez/inventory/internal/agent"
	"github.com/findez/inventory/internal/log"
)

// SSE event names for the streaming assistant endpoint.
const (
	eventStatus = "status"
	eventDelta  = "delta"
	eventDone   = "done"
	eventError  = "error"
)

// assistHandler serves the assistant endpoints.
type assistHandler struct {
	assistant Assistant
	provider  agent.CompletionProvider
	logger    log.Logger
}

type commandRequest struct {
	Message string `json:"message"`
}

// aiCommand handles POST /api/ai_command. One request is one full assistant
// turn; the response carries the final answer plus the tool outcome, if any.
func (h *assistHandler) aiCommand(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFromContext(r.Context())

	var req commandRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "message is required")
		return
	}

	result, err := h.assistant.Run(r.Context(), id.UserID, req.Message, id.DisplayName)
	if err != nil {
		h.logger.Error("assistant turn failed", "error", err, "user", id.UserID)
		writeError(w, http.StatusBadGateway, "assistant_failed", "the assistant could not complete the request")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// aiCommandStream handles POST /api/ai_command/stream (SSE).
//
// Events: status (progress), delta (answer text), done (final result),
// error. A client that disconnects mid-stream does not abort the turn; a
// tool already dispatched still takes effect.
func (h *assistHandler) aiCommandStream(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFromContext(r.Context())

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	var req commandRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := decodeStreamBody(r, &req); err != nil {
		_ = writeEvent(w, flusher, eventError, ErrorResponse{Error: "invalid_request", Message: "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		_ = writeEvent(w, flusher, eventError, ErrorResponse{Error: "invalid_request", Message: "message is required"})
		return
	}

	h.logger.Debug("SSE stream started", "user", id.UserID)

	err := h.assistant.StreamRun(r.Context(), id.UserID, req.Message, id.DisplayName,
		func(ev agent.Event) error {
			switch ev.Type {
			case agent.EventStatus:
				return writeEvent(w, flusher, eventStatus, map[string]string{"message": ev.Message})
			case agent.EventDelta:
				return writeEvent(w, flusher, eventDelta, map[string]string{"delta": ev.Delta})
			case agent.EventDone:
				return writeEvent(w, flusher, eventDone, ev.Result)
			}
			return nil
		})
	if err != nil {
		h.logger.Error("assistant stream failed", "error", err, "user", id.UserID)
		_ = writeEvent(w, flusher, eventError, ErrorResponse{
			Error:   "assistant_failed",
			Message: "the assistant could not complete the request",
		})
		return
	}

	h.logger.Debug("SSE stream completed", "user", id.UserID)
}

type barcodeRequest struct {
	Barcode string `json:"barcode"`
}

// processBarcode handles POST /api/process_barcode. The model's best guess
// at the product comes back; known=false means it could not identify one.
func (h *assistHandler) processBarcode(w http.ResponseWriter, r *http.Request) {
	var req barcodeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Barcode) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "barcode is required")
		return
	}

	guess := agent.InterpretBarcode(r.Context(), h.provider, h.logger, req.Barcode)
	writeJSON(w, http.StatusOK, map[string]any{"product": guess})
}
