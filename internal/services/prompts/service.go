package prompts

import (
	"context"
	"sort"

	"argus/internal/domain/prompt"
	"argus/pkg/errors"
	"argus/pkg/logger"
)

// Service provides business logic for prompt template versioning
type Service struct {
	repo prompt.Repository
	log  *logger.Logger
}

// NewService creates a new prompts service
func NewService(repo prompt.Repository, log *logger.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With("service", "prompts"),
	}
}

// Create stores a new draft version of a named template. The version
// number continues the name's existing sequence.
func (s *Service) Create(ctx context.Context, name, text, description string) (*prompt.Template, error) {
	ids, err := s.repo.IDsForName(ctx, name)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count existing versions")
	}

	tmpl := prompt.NewTemplate(name, text, description, len(ids)+1)
	if err := tmpl.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, tmpl); err != nil {
		s.log.Errorw("Failed to store prompt template",
			"name", name,
			"error", err,
		)
		return nil, errors.Wrap(err, "failed to store prompt template")
	}

	s.log.Infow("Prompt template created",
		"name", name,
		"id", tmpl.ID,
		"version", tmpl.Version,
	)

	return tmpl, nil
}

// Get retrieves a template version by id
func (s *Service) Get(ctx context.Context, id string) (*prompt.Template, error) {
	tmpl, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			s.log.Debugw("Prompt template not found",
				"id", id,
			)
		} else {
			s.log.Errorw("Failed to get prompt template",
				"id", id,
				"error", err,
			)
		}
		return nil, err
	}
	return tmpl, nil
}

// GetActive returns the active version for a name. Names without an
// active version yield ErrNotFound.
func (s *Service) GetActive(ctx context.Context, name string) (*prompt.Template, error) {
	versions, err := s.versionsForName(ctx, name)
	if err != nil {
		return nil, err
	}

	for _, tmpl := range versions {
		if tmpl.Status == prompt.StatusActive {
			return tmpl, nil
		}
	}

	return nil, errors.Wrapf(errors.ErrNotFound, "no active prompt: name=%s", name)
}

// Activate promotes a version to active and deprecates any other
// active version of the same name.
func (s *Service) Activate(ctx context.Context, id string) (*prompt.Template, error) {
	tmpl, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	others, err := s.versionsForName(ctx, tmpl.Name)
	if err != nil {
		return nil, err
	}

	for _, other := range others {
		if other.ID == tmpl.ID || other.Status != prompt.StatusActive {
			continue
		}
		other.Status = prompt.StatusDeprecated
		other.Touch()
		if err := s.repo.Save(ctx, other); err != nil {
			return nil, errors.Wrapf(err, "failed to deprecate version: id=%s", other.ID)
		}
	}

	tmpl.Status = prompt.StatusActive
	tmpl.Touch()
	if err := s.repo.Save(ctx, tmpl); err != nil {
		return nil, errors.Wrap(err, "failed to activate prompt template")
	}

	s.log.Infow("Prompt template activated",
		"name", tmpl.Name,
		"id", tmpl.ID,
		"version", tmpl.Version,
	)

	return tmpl, nil
}

// MarkTesting flips the given versions to testing status. All ids must
// resolve to stored templates.
func (s *Service) MarkTesting(ctx context.Context, ids ...string) error {
	for _, id := range ids {
		tmpl, err := s.repo.Get(ctx, id)
		if err != nil {
			return errors.Wrapf(err, "failed to mark testing: id=%s", id)
		}

		tmpl.Status = prompt.StatusTesting
		tmpl.Touch()
		if err := s.repo.Save(ctx, tmpl); err != nil {
			return errors.Wrapf(err, "failed to mark testing: id=%s", id)
		}
	}
	return nil
}

// Render fills a template's placeholders. An explicit promptID wins,
// otherwise the name's active version is used, and names with neither
// fall back to the builtin template when one exists.
func (s *Service) Render(ctx context.Context, name string, values map[string]string, promptID string) (string, error) {
	var (
		tmpl *prompt.Template
		err  error
	)

	if promptID != "" {
		tmpl, err = s.repo.Get(ctx, promptID)
		if err != nil {
			return "", err
		}
	} else {
		tmpl, err = s.GetActive(ctx, name)
		if err != nil {
			if !errors.Is(err, errors.ErrNotFound) {
				return "", err
			}

			text, ok := BuiltinTemplate(name)
			if !ok {
				return "", errors.Wrapf(errors.ErrNotFound, "no prompt for template: name=%s", name)
			}
			tmpl = &prompt.Template{
				Name:      name,
				Template:  text,
				Variables: prompt.ExtractVariables(text),
			}
		}
	}

	return tmpl.Render(values)
}

// UpdateMetrics merges observed performance metrics into a version
func (s *Service) UpdateMetrics(ctx context.Context, id string, metrics map[string]float64) (*prompt.Template, error) {
	tmpl, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if tmpl.PerformanceMetrics == nil {
		tmpl.PerformanceMetrics = make(map[string]float64, len(metrics))
	}
	for k, v := range metrics {
		tmpl.PerformanceMetrics[k] = v
	}
	tmpl.Touch()

	if err := s.repo.Save(ctx, tmpl); err != nil {
		return nil, errors.Wrap(err, "failed to update prompt metrics")
	}

	return tmpl, nil
}

// List returns templates filtered by name and status, newest update
// first. Index entries whose record has expired are skipped.
func (s *Service) List(ctx context.Context, name string, status prompt.Status) ([]*prompt.Template, error) {
	var (
		ids []string
		err error
	)

	if name != "" {
		ids, err = s.repo.IDsForName(ctx, name)
	} else {
		ids, err = s.repo.IDs(ctx)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to list prompt ids")
	}

	templates := make([]*prompt.Template, 0, len(ids))
	for _, id := range ids {
		tmpl, err := s.repo.Get(ctx, id)
		if err != nil {
			if errors.Is(err, errors.ErrNotFound) || errors.Is(err, errors.ErrInvalidInput) {
				continue
			}
			return nil, errors.Wrapf(err, "failed to read prompt: id=%s", id)
		}
		if status != "" && tmpl.Status != status {
			continue
		}
		templates = append(templates, tmpl)
	}

	sort.SliceStable(templates, func(i, j int) bool {
		return templates[i].UpdatedAt.After(templates[j].UpdatedAt)
	})

	return templates, nil
}

// Delete removes a stored version. Its id remains in the name indexes
// and readers skip it.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return errors.Wrap(err, "failed to delete prompt template")
	}

	s.log.Infow("Prompt template deleted",
		"id", id,
	)

	return nil
}

func (s *Service) versionsForName(ctx context.Context, name string) ([]*prompt.Template, error) {
	ids, err := s.repo.IDsForName(ctx, name)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list versions: name=%s", name)
	}

	versions := make([]*prompt.Template, 0, len(ids))
	for _, id := range ids {
		tmpl, err := s.repo.Get(ctx, id)
		if err != nil {
			if errors.Is(err, errors.ErrNotFound) || errors.Is(err, errors.ErrInvalidInput) {
				continue
			}
			return nil, errors.Wrapf(err, "failed to read version: id=%s", id)
		}
		versions = append(versions, tmpl)
	}

	return versions, nil
}
