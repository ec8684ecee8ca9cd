package model

import (
	"time"

	"argus/pkg/errors"
)

// Status is the lifecycle state of a registered model version.
type Status string

const (
	StatusTraining   Status = "training"
	StatusReady      Status = "ready"
	StatusDeployed   Status = "deployed"
	StatusDeprecated Status = "deprecated"
	StatusFailed     Status = "failed"
)

// Metadata describes one registered model version.
type Metadata struct {
	Name               string             `json:"name"`
	Version            string             `json:"version"`
	Provider           string             `json:"provider"`
	Status             Status             `json:"status"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
	Parameters         map[string]string  `json:"parameters,omitempty"`
	PerformanceMetrics map[string]float64 `json:"performance_metrics,omitempty"`
	CostPer1KTokens    float64            `json:"cost_per_1k_tokens"`
	MaxTokens          int                `json:"max_tokens,omitempty"`
	Description        string             `json:"description,omitempty"`
}

// Key returns the registry key for a model name and version.
func Key(name, version string) string {
	return name + "_" + version
}

// Validate checks invariants on metadata about to be registered.
func (m *Metadata) Validate() error {
	if m.Name == "" {
		return errors.NewValidationError("name", "must not be empty", m.Name)
	}
	if m.CostPer1KTokens < 0 {
		return errors.NewValidationError("cost_per_1k_tokens", "must be non-negative", m.CostPer1KTokens)
	}
	return nil
}
