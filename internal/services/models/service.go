package models

import (
	"crypto/md5"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"argus/internal/domain/model"
	"argus/internal/pricing"
	"argus/pkg/errors"
	"argus/pkg/logger"
)

// Token caps from the model catalog, gpt-4's cap doubles as the
// fallback for unknown models.
var maxTokensByModel = map[string]int{
	"gpt-4":           8192,
	"gpt-3.5-turbo":   4096,
	"claude-3-opus":   4096,
	"claude-3-sonnet": 4096,
}

const defaultMaxTokens = 8192

// Summary is the comparable slice of a registered model version
type Summary struct {
	Name               string             `json:"name"`
	Version            string             `json:"version"`
	Provider           string             `json:"provider"`
	CostPer1KTokens    float64            `json:"cost_per_1k_tokens"`
	PerformanceMetrics map[string]float64 `json:"performance_metrics"`
}

// Comparison pairs two registered model versions for review
type Comparison struct {
	Model1         Summary `json:"model1"`
	Model2         Summary `json:"model2"`
	CostDifference float64 `json:"cost_difference"`
}

// Service is an in-process registry of model versions. The harness
// tracks versions and lifecycle only, it never loads weights or calls
// a provider.
type Service struct {
	mu     sync.RWMutex
	models map[string]*model.Metadata
	rates  *pricing.Table
	log    *logger.Logger
}

// NewService creates a new model registry service
func NewService(rates *pricing.Table, log *logger.Logger) *Service {
	return &Service{
		models: make(map[string]*model.Metadata),
		rates:  rates,
		log:    log.With("service", "models"),
	}
}

// Register records a new model version. The version id derives from
// the registration time and a digest of the parameters.
func (s *Service) Register(name, provider string, parameters map[string]string, description string) (*model.Metadata, error) {
	now := time.Now().UTC()

	paramsJSON, err := json.Marshal(parameters)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "unencodable parameters: %v", err)
	}
	digest := fmt.Sprintf("%x", md5.Sum(paramsJSON))
	version := fmt.Sprintf("%s_%s", now.Format("20060102T150405.000"), digest[:8])

	maxTokens, ok := maxTokensByModel[name]
	if !ok {
		maxTokens = defaultMaxTokens
	}

	meta := &model.Metadata{
		Name:            name,
		Version:         version,
		Provider:        provider,
		Status:          model.StatusReady,
		CreatedAt:       now,
		UpdatedAt:       now,
		Parameters:      parameters,
		CostPer1KTokens: s.rates.Rate(name),
		MaxTokens:       maxTokens,
		Description:     description,
	}
	if err := meta.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.models[model.Key(name, version)] = meta
	s.mu.Unlock()

	s.log.Infow("Model registered",
		"model", name,
		"version", version,
		"provider", provider,
	)

	return clone(meta), nil
}

// Deploy flips a version to deployed status
func (s *Service) Deploy(name, version string) (*model.Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, ok := s.models[model.Key(name, version)]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "model %s version %s", name, version)
	}

	meta.Status = model.StatusDeployed
	meta.UpdatedAt = time.Now().UTC()

	s.log.Infow("Model deployed",
		"model", name,
		"version", version,
	)

	return clone(meta), nil
}

// Get returns a specific version, or the most recently updated version
// of the name when version is empty.
func (s *Service) Get(name, version string) (*model.Metadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if version != "" {
		meta, ok := s.models[model.Key(name, version)]
		if !ok {
			return nil, errors.Wrapf(errors.ErrNotFound, "model %s version %s", name, version)
		}
		return clone(meta), nil
	}

	var latest *model.Metadata
	for _, meta := range s.models {
		if meta.Name != name {
			continue
		}
		if latest == nil || meta.UpdatedAt.After(latest.UpdatedAt) {
			latest = meta
		}
	}
	if latest == nil {
		return nil, errors.Wrapf(errors.ErrNotFound, "model %s", name)
	}
	return clone(latest), nil
}

// List returns every registered version, ordered by name then version
func (s *Service) List() []*model.Metadata {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Metadata, 0, len(s.models))
	for _, meta := range s.models {
		out = append(out, clone(meta))
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Version < out[j].Version
	})

	return out
}

// UpdateMetrics merges observed performance metrics into a version
func (s *Service) UpdateMetrics(name, version string, metrics map[string]float64) (*model.Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, ok := s.models[model.Key(name, version)]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "model %s version %s", name, version)
	}

	if meta.PerformanceMetrics == nil {
		meta.PerformanceMetrics = make(map[string]float64, len(metrics))
	}
	for k, v := range metrics {
		meta.PerformanceMetrics[k] = v
	}
	meta.UpdatedAt = time.Now().UTC()

	return clone(meta), nil
}

// Deprecate flips a version to deprecated status
func (s *Service) Deprecate(name, version string) (*model.Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, ok := s.models[model.Key(name, version)]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "model %s version %s", name, version)
	}

	meta.Status = model.StatusDeprecated
	meta.UpdatedAt = time.Now().UTC()

	return clone(meta), nil
}

// Cost computes the price of a token count against a version's rate.
// Unknown versions cost nothing rather than failing the caller.
func (s *Service) Cost(name, version string, tokens int) float64 {
	meta, err := s.Get(name, version)
	if err != nil {
		return 0.0
	}
	return float64(tokens) / 1000.0 * meta.CostPer1KTokens
}

// Compare returns both versions side by side with their cost spread
func (s *Service) Compare(name1, version1, name2, version2 string) (*Comparison, error) {
	m1, err := s.Get(name1, version1)
	if err != nil {
		return nil, err
	}
	m2, err := s.Get(name2, version2)
	if err != nil {
		return nil, err
	}

	return &Comparison{
		Model1:         summarize(m1),
		Model2:         summarize(m2),
		CostDifference: m2.CostPer1KTokens - m1.CostPer1KTokens,
	}, nil
}

func summarize(m *model.Metadata) Summary {
	metrics := m.PerformanceMetrics
	if metrics == nil {
		metrics = map[string]float64{}
	}
	return Summary{
		Name:               m.Name,
		Version:            m.Version,
		Provider:           m.Provider,
		CostPer1KTokens:    m.CostPer1KTokens,
		PerformanceMetrics: metrics,
	}
}

func clone(m *model.Metadata) *model.Metadata {
	out := *m
	if m.Parameters != nil {
		out.Parameters = make(map[string]string, len(m.Parameters))
		for k, v := range m.Parameters {
			out.Parameters[k] = v
		}
	}
	if m.PerformanceMetrics != nil {
		out.PerformanceMetrics = make(map[string]float64, len(m.PerformanceMetrics))
		for k, v := range m.PerformanceMetrics {
			out.PerformanceMetrics[k] = v
		}
	}
	return &out
}
