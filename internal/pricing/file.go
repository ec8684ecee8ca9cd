package pricing

import (
	"os"

	"gopkg.in/yaml.v3"

	"argus/pkg/errors"
)

// fileConfig is the YAML shape of a pricing override file:
//
//	default: gpt-4
//	models:
//	  gpt-4:
//	    cost_per_1k_tokens: 0.03
//	  my-fine-tune:
//	    cost_per_1k_tokens: 0.05
type fileConfig struct {
	Default string                    `yaml:"default"`
	Models  map[string]fileModelEntry `yaml:"models"`
}

type fileModelEntry struct {
	CostPer1KTokens float64 `yaml:"cost_per_1k_tokens"`
}

// LoadFile replaces the table contents with built-ins merged with the
// YAML file at path. File entries win over built-ins. The file's
// default entry must exist in the merged set.
func (t *Table) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "failed to read pricing file %s", path)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return errors.Wrapf(errors.ErrInvalidInput, "malformed pricing file %s: %v", path, err)
	}

	rates := make(map[string]float64, len(builtinRates)+len(cfg.Models))
	for name, rate := range builtinRates {
		rates[name] = rate
	}
	for name, entry := range cfg.Models {
		if entry.CostPer1KTokens < 0 {
			return errors.Wrapf(errors.ErrInvalidInput, "negative rate for model %s in %s", name, path)
		}
		rates[name] = entry.CostPer1KTokens
	}

	defaultModel := cfg.Default
	if defaultModel == "" {
		defaultModel = DefaultModel
	}
	if _, ok := rates[defaultModel]; !ok {
		return errors.Wrapf(errors.ErrInvalidInput, "default model %s has no rate in %s", defaultModel, path)
	}

	t.replace(rates, defaultModel)
	return nil
}
