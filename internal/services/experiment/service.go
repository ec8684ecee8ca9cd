package experiment

import (
	"context"
	"hash/fnv"
	"math/rand"

	"argus/internal/domain/experiment"
	"argus/internal/domain/prompt"
	"argus/internal/metrics"
	"argus/pkg/errors"
	"argus/pkg/logger"
)

// Variant labels returned by Assign
const (
	VariantA      = "A"
	VariantB      = "B"
	VariantActive = "active"
)

// Assignment modes returned by Assign
const (
	ModeSticky   = "sticky"
	ModeRandom   = "random"
	ModeFallback = "fallback"
)

// PromptStore is the slice of prompt operations experiments need
type PromptStore interface {
	Get(ctx context.Context, id string) (*prompt.Template, error)
	GetActive(ctx context.Context, name string) (*prompt.Template, error)
	MarkTesting(ctx context.Context, ids ...string) error
}

// Selection is the outcome of resolving a prompt for one request
type Selection struct {
	Prompt  *prompt.Template `json:"prompt"`
	Variant string           `json:"variant"`
	Mode    string           `json:"mode"`
}

// Service provides business logic for A/B experiments over prompt versions
type Service struct {
	repo    experiment.Repository
	prompts PromptStore
	log     *logger.Logger
}

// NewService creates a new experiment service
func NewService(repo experiment.Repository, prompts PromptStore, log *logger.Logger) *Service {
	return &Service{
		repo:    repo,
		prompts: prompts,
		log:     log.With("service", "experiment"),
	}
}

// Start creates or replaces the experiment under name. Both variant
// prompts must exist and are flipped to testing status. Re-starting an
// experiment overwrites the previous configuration wholesale.
func (s *Service) Start(ctx context.Context, name, variantA, variantB string, split float64) (*experiment.Assignment, error) {
	assignment := experiment.NewAssignment(name, variantA, variantB, split)
	if err := assignment.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.prompts.Get(ctx, variantA); err != nil {
		return nil, errors.Wrapf(err, "variant A prompt: id=%s", variantA)
	}
	if _, err := s.prompts.Get(ctx, variantB); err != nil {
		return nil, errors.Wrapf(err, "variant B prompt: id=%s", variantB)
	}

	if err := s.prompts.MarkTesting(ctx, variantA, variantB); err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, assignment); err != nil {
		s.log.Errorw("Failed to store experiment",
			"experiment", name,
			"error", err,
		)
		return nil, errors.Wrap(err, "failed to store experiment")
	}

	s.log.Infow("Experiment started",
		"experiment", name,
		"variant_a", variantA,
		"variant_b", variantB,
		"traffic_split", split,
	)

	return assignment, nil
}

// Get retrieves the experiment configuration under name
func (s *Service) Get(ctx context.Context, name string) (*experiment.Assignment, error) {
	assignment, err := s.repo.Get(ctx, name)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			s.log.Debugw("Experiment not found",
				"experiment", name,
			)
		} else {
			s.log.Errorw("Failed to get experiment",
				"experiment", name,
				"error", err,
			)
		}
		return nil, err
	}
	return assignment, nil
}

// Assign resolves which prompt a request should use. A missing or
// inactive experiment falls back to the name's active prompt. Requests
// carrying a user id are bucketed deterministically so the same user
// keeps seeing the same variant; anonymous requests are split randomly
// per call.
func (s *Service) Assign(ctx context.Context, name, userID string) (*Selection, error) {
	assignment, err := s.repo.Get(ctx, name)
	if err != nil {
		if !errors.Is(err, errors.ErrNotFound) {
			return nil, err
		}
		return s.fallback(ctx, name)
	}
	if !assignment.Active {
		return s.fallback(ctx, name)
	}

	useB, mode := pickVariant(assignment.TrafficSplit, userID)

	variantID, label := assignment.VariantAID, VariantA
	if useB {
		variantID, label = assignment.VariantBID, VariantB
	}

	tmpl, err := s.prompts.Get(ctx, variantID)
	if err != nil {
		return nil, errors.Wrapf(err, "variant %s prompt: id=%s", label, variantID)
	}

	metrics.RecordAssignment(name, label, mode)

	s.log.Debugw("Variant assigned",
		"experiment", name,
		"variant", label,
		"mode", mode,
	)

	return &Selection{Prompt: tmpl, Variant: label, Mode: mode}, nil
}

// Stop deactivates and removes the experiment configuration
func (s *Service) Stop(ctx context.Context, name string) error {
	if _, err := s.repo.Get(ctx, name); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, name); err != nil {
		return errors.Wrap(err, "failed to stop experiment")
	}

	s.log.Infow("Experiment stopped",
		"experiment", name,
	)

	return nil
}

func (s *Service) fallback(ctx context.Context, name string) (*Selection, error) {
	tmpl, err := s.prompts.GetActive(ctx, name)
	if err != nil {
		return nil, err
	}

	metrics.RecordAssignment(name, VariantActive, ModeFallback)

	return &Selection{Prompt: tmpl, Variant: VariantActive, Mode: ModeFallback}, nil
}

// pickVariant decides between variant A and B for one request
func pickVariant(split float64, userID string) (useB bool, mode string) {
	if userID != "" {
		return float64(userBucket(userID)) < split*100, ModeSticky
	}
	return rand.Float64() < split, ModeRandom
}

// userBucket maps a user id onto [0, 100)
func userBucket(userID string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return h.Sum32() % 100
}
