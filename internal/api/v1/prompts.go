package v1

import (
	"net/http"

	"argus/internal/domain/prompt"
)

type createPromptRequest struct {
	Name        string `json:"name"`
	Template    string `json:"template"`
	Description string `json:"description"`
}

// handleCreatePrompt stores a new draft template version
func (h *Handler) handleCreatePrompt(w http.ResponseWriter, r *http.Request) {
	var req createPromptRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	tmpl, err := h.prompts.Create(r.Context(), req.Name, req.Template, req.Description)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, tmpl)
}

// handleListPrompts returns templates filtered by name and status
func (h *Handler) handleListPrompts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	templates, err := h.prompts.List(r.Context(), q.Get("name"), prompt.Status(q.Get("status")))
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(templates),
		"prompts": templates,
	})
}

// handleGetPrompt fetches one template version by id
func (h *Handler) handleGetPrompt(w http.ResponseWriter, r *http.Request) {
	tmpl, err := h.prompts.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, tmpl)
}

// handleDeletePrompt removes one template version
func (h *Handler) handleDeletePrompt(w http.ResponseWriter, r *http.Request) {
	if err := h.prompts.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusNoContent, nil)
}

// handleActivatePrompt promotes a version to active, deprecating any
// other active version of the same name
func (h *Handler) handleActivatePrompt(w http.ResponseWriter, r *http.Request) {
	tmpl, err := h.prompts.Activate(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, tmpl)
}

type renderPromptRequest struct {
	Variables map[string]string `json:"variables"`
}

// handleRenderPrompt fills the template's placeholders with the given
// variables. A missing variable is a 400 naming it.
func (h *Handler) handleRenderPrompt(w http.ResponseWriter, r *http.Request) {
	var req renderPromptRequest
	if err := decodeJSONAllowEmpty(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	rendered, err := h.prompts.Render(r.Context(), "", req.Variables, r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"rendered": rendered})
}
