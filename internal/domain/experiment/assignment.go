package experiment

import (
	"encoding/json"
	"time"

	"argus/pkg/errors"
)

// Assignment is the configuration of one named A/B experiment.
// TrafficSplit is the probability of variant B.
type Assignment struct {
	ExperimentName string    `json:"experiment_name"`
	VariantAID     string    `json:"variant_a_id"`
	VariantBID     string    `json:"variant_b_id"`
	TrafficSplit   float64   `json:"traffic_split"`
	StartedAt      time.Time `json:"started_at"`
	Active         bool      `json:"active"`
}

// NewAssignment creates an active assignment starting now.
func NewAssignment(name, variantA, variantB string, split float64) *Assignment {
	return &Assignment{
		ExperimentName: name,
		VariantAID:     variantA,
		VariantBID:     variantB,
		TrafficSplit:   split,
		StartedAt:      time.Now().UTC(),
		Active:         true,
	}
}

// Validate checks the assignment invariants.
func (a *Assignment) Validate() error {
	if a.ExperimentName == "" {
		return errors.NewValidationError("experiment_name", "must not be empty", a.ExperimentName)
	}
	if a.VariantAID == "" {
		return errors.NewValidationError("variant_a_id", "must not be empty", a.VariantAID)
	}
	if a.VariantBID == "" {
		return errors.NewValidationError("variant_b_id", "must not be empty", a.VariantBID)
	}
	if a.TrafficSplit < 0 || a.TrafficSplit > 1 {
		return errors.NewValidationError("traffic_split", "must be within [0, 1]", a.TrafficSplit)
	}
	return nil
}

// DecodeAssignment re-hydrates a stored assignment with required-field
// validation.
func DecodeAssignment(data []byte) (*Assignment, error) {
	var a Assignment
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "malformed assignment: %v", err)
	}
	if a.ExperimentName == "" {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "stored assignment missing experiment_name")
	}
	if a.VariantAID == "" || a.VariantBID == "" {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "stored assignment %s missing variant ids", a.ExperimentName)
	}
	if a.TrafficSplit < 0 || a.TrafficSplit > 1 {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "stored assignment %s has split %v outside [0, 1]", a.ExperimentName, a.TrafficSplit)
	}
	return &a, nil
}
