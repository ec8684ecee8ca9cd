package prompt

import (
	"context"
)

// Repository defines storage operations for prompt templates. The
// backing store only supports list-append, so deleting a template
// leaves its id in the name/global indexes; readers skip ids whose
// template no longer exists.
type Repository interface {
	// Save stores a template and indexes its id.
	Save(ctx context.Context, template *Template) error

	// Get retrieves a template by id.
	Get(ctx context.Context, id string) (*Template, error)

	// Delete removes a template by id.
	Delete(ctx context.Context, id string) error

	// IDs returns all known template ids in creation order. May
	// include ids of deleted templates.
	IDs(ctx context.Context) ([]string, error)

	// IDsForName returns the version ids of a named template in
	// creation order. May include ids of deleted templates.
	IDsForName(ctx context.Context, name string) ([]string, error)
}
