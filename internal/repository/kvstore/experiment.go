package kvstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"argus/internal/domain/experiment"
	"argus/internal/kv"
	"argus/pkg/errors"
)

// ExperimentRepository implements experiment.Repository using a
// kv.Store. Assignments are stored with configTTL, so an experiment
// left running past the TTL silently reverts to the fallback variant.
type ExperimentRepository struct {
	store     kv.Store
	configTTL time.Duration
}

// NewExperimentRepository creates an experiment repository.
func NewExperimentRepository(store kv.Store, configTTL time.Duration) *ExperimentRepository {
	return &ExperimentRepository{
		store:     store,
		configTTL: configTTL,
	}
}

// Save stores an assignment, replacing any existing one
func (r *ExperimentRepository) Save(ctx context.Context, assignment *experiment.Assignment) error {
	data, err := json.Marshal(assignment)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal assignment: experiment=%s", assignment.ExperimentName)
	}

	if err := r.store.Set(ctx, r.getKey(assignment.ExperimentName), data, r.configTTL); err != nil {
		return errors.Wrapf(err, "failed to save assignment: experiment=%s", assignment.ExperimentName)
	}
	return nil
}

// Get retrieves the assignment for an experiment name
func (r *ExperimentRepository) Get(ctx context.Context, name string) (*experiment.Assignment, error) {
	data, err := r.store.Get(ctx, r.getKey(name))
	if errors.Is(err, errors.ErrNotFound) {
		return nil, errors.Wrapf(errors.ErrNotFound, "experiment %s", name)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get assignment: experiment=%s", name)
	}

	assignment, err := experiment.DecodeAssignment(data)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode assignment: experiment=%s", name)
	}
	return assignment, nil
}

// Delete removes the assignment for an experiment name
func (r *ExperimentRepository) Delete(ctx context.Context, name string) error {
	if err := r.store.Delete(ctx, r.getKey(name)); err != nil {
		return errors.Wrapf(err, "failed to delete assignment: experiment=%s", name)
	}
	return nil
}

func (r *ExperimentRepository) getKey(name string) string {
	return fmt.Sprintf("ab_test:%s", name)
}
