package v1

import (
	"net/http"
)

// handleCostMetrics aggregates cost over a time window
func (h *Handler) handleCostMetrics(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseTimeRange(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	costs, err := h.analytics.CostMetrics(r.Context(), start, end, r.URL.Query().Get("model"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, costs)
}

// handlePerformanceMetrics aggregates latency and success rate over a
// time window
func (h *Handler) handlePerformanceMetrics(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseTimeRange(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	perf, err := h.analytics.PerformanceMetrics(r.Context(), start, end, r.URL.Query().Get("model"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, perf)
}

// handleErrorSummary aggregates failures over a time window
func (h *Handler) handleErrorSummary(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseTimeRange(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	summary, err := h.analytics.ErrorSummary(r.Context(), start, end)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, summary)
}

// handleAlerts evaluates the alert rules right now and returns
// whatever fires. Alerts are not persisted, so the response is the
// current state, not a history.
func (h *Handler) handleAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.alerting.Check(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":  len(alerts),
		"alerts": alerts,
	})
}

type evaluateRequest struct {
	ModelName      string   `json:"model_name"`
	ModelVersion   string   `json:"model_version"`
	PromptTemplate string   `json:"prompt_template"`
	CaseIDs        []string `json:"case_ids"`
	UserID         string   `json:"user_id"`
}

// handleEvaluate runs the evaluation cases against a model and
// returns the run report
func (h *Handler) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	report, err := h.evaluator.EvaluateModel(r.Context(), req.ModelName, req.ModelVersion, req.PromptTemplate, req.CaseIDs, req.UserID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, report)
}
