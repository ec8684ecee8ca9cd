package v1

import (
	"net/http"
)

type startExperimentRequest struct {
	Name         string  `json:"name"`
	VariantA     string  `json:"variant_a"`
	VariantB     string  `json:"variant_b"`
	TrafficSplit float64 `json:"traffic_split"`
}

// handleStartExperiment creates or replaces an experiment
func (h *Handler) handleStartExperiment(w http.ResponseWriter, r *http.Request) {
	var req startExperimentRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	assignment, err := h.experiments.Start(r.Context(), req.Name, req.VariantA, req.VariantB, req.TrafficSplit)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, assignment)
}

// handleGetExperiment returns the stored experiment configuration
func (h *Handler) handleGetExperiment(w http.ResponseWriter, r *http.Request) {
	assignment, err := h.experiments.Get(r.Context(), r.PathValue("name"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, assignment)
}

// handleStopExperiment deactivates and removes an experiment
func (h *Handler) handleStopExperiment(w http.ResponseWriter, r *http.Request) {
	if err := h.experiments.Stop(r.Context(), r.PathValue("name")); err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusNoContent, nil)
}

type assignVariantRequest struct {
	UserID string `json:"user_id"`
}

// handleAssignVariant resolves which prompt a request should use.
// Anonymous requests (no user id) get a fresh random split per call.
func (h *Handler) handleAssignVariant(w http.ResponseWriter, r *http.Request) {
	var req assignVariantRequest
	if err := decodeJSONAllowEmpty(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	selection, err := h.experiments.Assign(r.Context(), r.PathValue("name"), req.UserID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, selection)
}
