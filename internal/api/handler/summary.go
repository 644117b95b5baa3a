package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/d9705996/huddle/internal/api/jsonapi"
	"github.com/d9705996/huddle/internal/summary"
)

// GenerateSummary handles POST /api/v1/meeting-notes/{id}/generate-summary.
func (h *MeetingHandler) GenerateSummary(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Locale string `json:"locale"`
	}
	if r.ContentLength != 0 {
		if err := decode(w, r, &req); err != nil {
			renderError(w, h.log, r, err)
			return
		}
	}
	n, err := h.notes.GenerateSummary(r.Context(), subject(r), r.PathValue("id"), summary.ParseLocale(req.Locale))
	if err != nil {
		renderError(w, h.log, r, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, n)
}

// StreamSummary handles GET /api/v1/meeting-notes/{id}/summary/stream as
// server-sent events: one "data:" event per block, then a "done" event.
// Errors found before the first block are rendered as a regular error
// document. The request context ends generation when the client leaves.
func (h *MeetingHandler) StreamSummary(w http.ResponseWriter, r *http.Request) {
	locale := summary.ParseLocale(newParams(r).str("locale"))
	blocks, err := h.notes.StreamSummary(r.Context(), subject(r), r.PathValue("id"), locale)
	if err != nil {
		renderError(w, h.log, r, err)
		return
	}

	rc := http.NewResponseController(w)
	// Streams outlive the server's write timeout.
	_ = rc.SetWriteDeadline(time.Time{})
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	_ = rc.Flush()

	for b := range blocks {
		data, err := json.Marshal(b)
		if err != nil {
			h.log.Error("encode summary block", "err", err)
			continue
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
	if r.Context().Err() == nil {
		_, _ = fmt.Fprint(w, "event: done\ndata: {}\n\n")
		_ = rc.Flush()
	}
}
