// Package pricing holds the per-model cost rate table used to derive
// request cost from token counts. Rates come from built-in defaults,
// optionally overridden by a YAML file that can be hot-reloaded.
package pricing

import (
	"sync"
)

// DefaultModel is the rate table entry used for unknown model names.
const DefaultModel = "gpt-4"

// builtinRates mirror the rates the demo environment ships with,
// in USD per 1000 tokens.
var builtinRates = map[string]float64{
	"gpt-4":           0.03,
	"gpt-3.5-turbo":   0.002,
	"claude-3-opus":   0.015,
	"claude-3-sonnet": 0.003,
}

// Table is a concurrency-safe model -> cost-per-1k-tokens lookup with
// a default fallback entry. Lookup never fails: unknown models price
// at the default model's rate.
type Table struct {
	mu           sync.RWMutex
	rates        map[string]float64
	defaultModel string
}

// NewTable creates a table seeded with the built-in rates.
func NewTable() *Table {
	rates := make(map[string]float64, len(builtinRates))
	for name, rate := range builtinRates {
		rates[name] = rate
	}
	return &Table{
		rates:        rates,
		defaultModel: DefaultModel,
	}
}

// Rate returns the cost per 1000 tokens for model, falling back to the
// default entry for unknown names.
func (t *Table) Rate(model string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if rate, ok := t.rates[model]; ok {
		return rate
	}
	return t.rates[t.defaultModel]
}

// Cost computes the USD cost of a request:
// (inputTokens + outputTokens) / 1000 * rate.
func (t *Table) Cost(model string, inputTokens, outputTokens int) float64 {
	totalTokens := inputTokens + outputTokens
	return float64(totalTokens) / 1000.0 * t.Rate(model)
}

// SetRate adds or replaces a single model rate.
func (t *Table) SetRate(model string, costPer1K float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rates[model] = costPer1K
}

// Models returns the model names currently priced.
func (t *Table) Models() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	names := make([]string, 0, len(t.rates))
	for name := range t.rates {
		names = append(names, name)
	}
	return names
}

// replace swaps the full rate set under lock. Used by file loads so a
// reload is atomic from the reader's point of view.
func (t *Table) replace(rates map[string]float64, defaultModel string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rates = rates
	t.defaultModel = defaultModel
}
