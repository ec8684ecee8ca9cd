package v1

import (
	"encoding/json"
	"io"
	"net/http"

	"argus/pkg/errors"
)

// Request bodies above this size are rejected outright
const maxBodyBytes = 1 << 20

// writeJSON encodes v as the response body with the given status
func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Errorw("Failed to encode response", "error", err)
	}
}

// writeError maps a domain error onto an HTTP status and error body
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := httpStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.Errorw("Request failed", "status", status, "error", err)
	}
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// httpStatus maps domain errors onto HTTP status codes
func httpStatus(err error) int {
	var validationErr *errors.ValidationError
	switch {
	case errors.Is(err, errors.ErrInvalidInput), errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.Is(err, errors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errors.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, errors.ErrDailyLimitExceeded), errors.Is(err, errors.ErrRateLimitExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, errors.ErrUnavailable), errors.Is(err, errors.ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON decodes the request body into v
func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v); err != nil {
		return errors.Wrapf(errors.ErrInvalidInput, "malformed request body: %v", err)
	}
	return nil
}

// decodeJSONAllowEmpty is decodeJSON for endpoints where an absent
// body is a valid zero-value request
func decodeJSONAllowEmpty(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return errors.Wrapf(errors.ErrInvalidInput, "malformed request body: %v", err)
}
