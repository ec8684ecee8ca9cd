package telemetry

import (
	"encoding/json"
	"time"

	"argus/pkg/errors"
)

// Record represents one observed model invocation. Records are
// immutable once ingested: they are appended, read back and expired,
// never mutated.
type Record struct {
	RequestID    string            `json:"request_id"`
	ModelName    string            `json:"model_name"`
	ModelVersion string            `json:"model_version,omitempty"`
	PromptID     string            `json:"prompt_id,omitempty"`
	UserID       string            `json:"user_id,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
	InputTokens  int               `json:"input_tokens"`
	OutputTokens int               `json:"output_tokens"`
	LatencyMs    float64           `json:"latency_ms"`
	CostUSD      float64           `json:"cost_usd"`
	Success      bool              `json:"success"`
	ErrorMessage string            `json:"error_message,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// TotalTokens returns input plus output tokens.
func (r *Record) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}

// Day returns the UTC day bucket the record belongs to.
func (r *Record) Day() string {
	return r.Timestamp.UTC().Format("2006-01-02")
}

// Validate checks invariants on a record about to be ingested.
func (r *Record) Validate() error {
	if r.ModelName == "" {
		return errors.NewValidationError("model_name", "must not be empty", r.ModelName)
	}
	if r.InputTokens < 0 {
		return errors.NewValidationError("input_tokens", "must be non-negative", r.InputTokens)
	}
	if r.OutputTokens < 0 {
		return errors.NewValidationError("output_tokens", "must be non-negative", r.OutputTokens)
	}
	if r.LatencyMs < 0 {
		return errors.NewValidationError("latency_ms", "must be non-negative", r.LatencyMs)
	}
	if r.CostUSD < 0 {
		return errors.NewValidationError("cost_usd", "must be non-negative", r.CostUSD)
	}
	return nil
}

// DecodeRecord re-hydrates a stored record, enforcing the presence of
// the fields every consumer depends on. A blob missing request_id,
// model_name or timestamp is a typed failure, not a zero-value record.
func DecodeRecord(data []byte) (*Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "malformed record: %v", err)
	}
	if r.RequestID == "" {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "stored record missing request_id")
	}
	if r.ModelName == "" {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "stored record %s missing model_name", r.RequestID)
	}
	if r.Timestamp.IsZero() {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "stored record %s missing timestamp", r.RequestID)
	}
	return &r, nil
}
