package v1

import (
	"net/http"

	"argus/internal/domain/telemetry"
	"argus/pkg/errors"
)

// handleIngestRequest records one LLM request. The request id,
// timestamp and cost are filled in when the caller omits them.
func (h *Handler) handleIngestRequest(w http.ResponseWriter, r *http.Request) {
	var record telemetry.Record
	if err := decodeJSON(r, &record); err != nil {
		h.writeError(w, err)
		return
	}

	ctx := r.Context()
	if record.UserID != "" {
		ctx = errors.WithUserID(ctx, record.UserID)
	}

	if h.budget != nil && record.UserID != "" {
		if err := h.budget.Check(ctx, record.UserID); err != nil {
			h.writeError(w, err)
			return
		}
	}

	stored, err := h.telemetry.Ingest(ctx, &record)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, stored)
}

// handleGetRequest fetches one stored record by request id
func (h *Handler) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	record, err := h.telemetry.Read(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, record)
}

// handleListRequests returns the records within a time window,
// optionally filtered to one model
func (h *Handler) handleListRequests(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseTimeRange(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	records, err := h.telemetry.Range(r.Context(), start, end, r.URL.Query().Get("model"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(records),
		"records": records,
	})
}
