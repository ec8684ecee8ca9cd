package v1

import (
	"net/http"
)

type registerModelRequest struct {
	Name        string            `json:"name"`
	Provider    string            `json:"provider"`
	Parameters  map[string]string `json:"parameters"`
	Description string            `json:"description"`
}

// handleRegisterModel registers a new model version
func (h *Handler) handleRegisterModel(w http.ResponseWriter, r *http.Request) {
	var req registerModelRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	meta, err := h.models.Register(req.Name, req.Provider, req.Parameters, req.Description)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, meta)
}

// handleListModels returns every registered model version
func (h *Handler) handleListModels(w http.ResponseWriter, r *http.Request) {
	models := h.models.List()

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":  len(models),
		"models": models,
	})
}
