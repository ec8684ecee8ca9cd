package kvstore

import (
	"context"
	"encoding/json"
	"fmt"

	"argus/internal/domain/prompt"
	"argus/internal/kv"
	"argus/pkg/errors"
)

const (
	promptIndexKey = "prompts:index"
)

// PromptRepository implements prompt.Repository using a kv.Store.
// Templates never expire. Ids append to a global index and a per-name
// index on first save; the store has no list-remove, so deleted ids
// stay in the indexes and readers skip them.
type PromptRepository struct {
	store kv.Store
}

// NewPromptRepository creates a prompt repository.
func NewPromptRepository(store kv.Store) *PromptRepository {
	return &PromptRepository{store: store}
}

// Save stores a template and indexes its id on first save
func (r *PromptRepository) Save(ctx context.Context, template *prompt.Template) error {
	data, err := json.Marshal(template)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal template: id=%s", template.ID)
	}

	key := r.getKey(template.ID)

	_, getErr := r.store.Get(ctx, key)
	isNew := errors.Is(getErr, errors.ErrNotFound)
	if getErr != nil && !isNew {
		return errors.Wrapf(getErr, "failed to check template existence: id=%s", template.ID)
	}

	if err := r.store.Set(ctx, key, data, 0); err != nil {
		return errors.Wrapf(err, "failed to save template: id=%s", template.ID)
	}

	if isNew {
		if err := r.store.ListAppend(ctx, promptIndexKey, template.ID); err != nil {
			return errors.Wrapf(err, "failed to index template: id=%s", template.ID)
		}
		if err := r.store.ListAppend(ctx, r.nameKey(template.Name), template.ID); err != nil {
			return errors.Wrapf(err, "failed to index template by name: id=%s", template.ID)
		}
	}

	return nil
}

// Get retrieves a template by id
func (r *PromptRepository) Get(ctx context.Context, id string) (*prompt.Template, error) {
	data, err := r.store.Get(ctx, r.getKey(id))
	if errors.Is(err, errors.ErrNotFound) {
		return nil, errors.Wrapf(errors.ErrNotFound, "template %s", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get template: id=%s", id)
	}

	template, err := prompt.DecodeTemplate(data)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode template: id=%s", id)
	}
	return template, nil
}

// Delete removes a template by id
func (r *PromptRepository) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, r.getKey(id)); err != nil {
		return errors.Wrapf(err, "failed to delete template: id=%s", id)
	}
	return nil
}

// IDs returns all known template ids in creation order
func (r *PromptRepository) IDs(ctx context.Context) ([]string, error) {
	ids, err := r.store.ListRange(ctx, promptIndexKey, 0, -1)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list template ids")
	}
	return ids, nil
}

// IDsForName returns the version ids of a named template in creation order
func (r *PromptRepository) IDsForName(ctx context.Context, name string) ([]string, error) {
	ids, err := r.store.ListRange(ctx, r.nameKey(name), 0, -1)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list template ids: name=%s", name)
	}
	return ids, nil
}

func (r *PromptRepository) getKey(id string) string {
	return fmt.Sprintf("prompt:%s", id)
}

func (r *PromptRepository) nameKey(name string) string {
	return fmt.Sprintf("prompt_versions:%s", name)
}
