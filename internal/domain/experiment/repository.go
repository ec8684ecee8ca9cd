package experiment

import (
	"context"
)

// Repository defines storage operations for experiment assignments.
// Save overwrites any prior assignment for the same experiment name;
// there is no merge.
type Repository interface {
	// Save stores an assignment, replacing any existing one.
	Save(ctx context.Context, assignment *Assignment) error

	// Get retrieves the assignment for an experiment name.
	Get(ctx context.Context, name string) (*Assignment, error)

	// Delete removes the assignment for an experiment name.
	Delete(ctx context.Context, name string) error
}
