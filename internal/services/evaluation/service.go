package evaluation

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"argus/internal/domain/prompt"
	"argus/internal/domain/telemetry"
	"argus/internal/pricing"
	"argus/internal/tokenizer"
	"argus/pkg/errors"
	"argus/pkg/logger"
)

// Result is the outcome of one case within an evaluation run.
type Result struct {
	TestCaseID    string    `json:"test_case_id"`
	ModelName     string    `json:"model_name"`
	ModelVersion  string    `json:"model_version"`
	ActualOutput  string    `json:"actual_output"`
	ActualTokens  int       `json:"actual_tokens"`
	LatencyMs     float64   `json:"latency_ms"`
	CostUSD       float64   `json:"cost_usd"`
	Success       bool      `json:"success"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	AccuracyScore *float64  `json:"accuracy_score,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Report summarizes one evaluation run.
type Report struct {
	EvaluationID    string         `json:"evaluation_id"`
	ModelName       string         `json:"model_name"`
	ModelVersion    string         `json:"model_version"`
	TotalTests      int            `json:"total_tests"`
	SuccessfulTests int            `json:"successful_tests"`
	AvgAccuracy     float64        `json:"avg_accuracy"`
	AvgLatencyMs    float64        `json:"avg_latency_ms"`
	TotalCostUSD    float64        `json:"total_cost_usd"`
	AvgCostPerTest  float64        `json:"avg_cost_per_test"`
	SuccessRate     float64        `json:"success_rate"`
	StartTime       time.Time      `json:"start_time"`
	EndTime         time.Time      `json:"end_time"`
	TestCategories  map[string]int `json:"test_categories"`
	ErrorSummary    map[string]int `json:"error_summary"`
}

// Comparison holds two evaluation reports over the same cases plus the
// per-metric deltas, second model minus first.
type Comparison struct {
	Model1      *Report     `json:"model1"`
	Model2      *Report     `json:"model2"`
	Differences Differences `json:"differences"`
}

// Differences are model2 minus model1.
type Differences struct {
	Accuracy    float64 `json:"accuracy_diff"`
	LatencyMs   float64 `json:"latency_diff"`
	CostUSD     float64 `json:"cost_diff"`
	SuccessRate float64 `json:"success_rate_diff"`
}

// Recorder feeds evaluation traffic into the telemetry pipeline so
// runs show up in cost and performance aggregates.
type Recorder interface {
	Ingest(ctx context.Context, record *telemetry.Record) (*telemetry.Record, error)
}

// Service runs scripted evaluations against simulated model
// completions. Cases, results and reports live in process memory; the
// telemetry recorder is the durable trail of a run.
type Service struct {
	mu      sync.RWMutex
	cases   map[string]*Case
	results map[string][]*Result
	reports map[string]*Report

	rates    *pricing.Table
	recorder Recorder
	log      *logger.Logger
}

// NewService creates an evaluator seeded with the default cases.
// recorder may be nil to skip telemetry ingestion.
func NewService(rates *pricing.Table, recorder Recorder, log *logger.Logger) *Service {
	s := &Service{
		cases:    make(map[string]*Case),
		results:  make(map[string][]*Result),
		reports:  make(map[string]*Report),
		rates:    rates,
		recorder: recorder,
		log:      log.With("service", "evaluation"),
	}
	for _, c := range defaultCases() {
		s.cases[c.ID] = c
	}
	return s
}

// AddCase registers a scenario for future runs, replacing any case
// with the same id.
func (s *Service) AddCase(c *Case) error {
	if c == nil || c.ID == "" {
		return errors.Wrap(errors.ErrInvalidInput, "case id must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cases[c.ID] = c
	return nil
}

// Cases returns the registered scenarios sorted by id.
func (s *Service) Cases() []*Case {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Case, 0, len(s.cases))
	for _, c := range s.cases {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// EvaluateModel runs the selected cases against a model using the given
// prompt template and returns the run report. caseIDs selects a subset;
// unknown ids are skipped, an empty list means every registered case.
func (s *Service) EvaluateModel(
	ctx context.Context,
	modelName, modelVersion, promptTemplate string,
	caseIDs []string,
	userID string,
) (*Report, error) {
	if modelName == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "model name must not be empty")
	}
	if promptTemplate == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "prompt template must not be empty")
	}

	cases := s.selectCases(caseIDs)
	evaluationID := "eval_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]

	s.log.Infow("Starting evaluation",
		"evaluation_id", evaluationID,
		"model", modelName,
		"cases", len(cases))

	startTime := time.Now().UTC()
	results := make([]*Result, 0, len(cases))
	for _, c := range cases {
		result := s.runCase(ctx, c, evaluationID, modelName, modelVersion, promptTemplate, userID)
		results = append(results, result)
	}
	endTime := time.Now().UTC()

	report := s.summarize(evaluationID, modelName, modelVersion, results, startTime, endTime)

	s.mu.Lock()
	s.results[evaluationID] = results
	s.reports[evaluationID] = report
	s.mu.Unlock()

	s.log.Infow("Evaluation complete",
		"evaluation_id", evaluationID,
		"success_rate", report.SuccessRate,
		"total_cost_usd", report.TotalCostUSD)

	return cloneReport(report), nil
}

// CompareModels evaluates two models over the same cases and template
// and reports the per-metric deltas.
func (s *Service) CompareModels(
	ctx context.Context,
	model1Name, model1Version, model2Name, model2Version, promptTemplate string,
	caseIDs []string,
) (*Comparison, error) {
	report1, err := s.EvaluateModel(ctx, model1Name, model1Version, promptTemplate, caseIDs, "")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to evaluate model %s", model1Name)
	}
	report2, err := s.EvaluateModel(ctx, model2Name, model2Version, promptTemplate, caseIDs, "")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to evaluate model %s", model2Name)
	}

	return &Comparison{
		Model1: report1,
		Model2: report2,
		Differences: Differences{
			Accuracy:    report2.AvgAccuracy - report1.AvgAccuracy,
			LatencyMs:   report2.AvgLatencyMs - report1.AvgLatencyMs,
			CostUSD:     report2.TotalCostUSD - report1.TotalCostUSD,
			SuccessRate: report2.SuccessRate - report1.SuccessRate,
		},
	}, nil
}

// GetReport returns the summary of a finished run.
func (s *Service) GetReport(evaluationID string) (*Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report, ok := s.reports[evaluationID]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "evaluation %s", evaluationID)
	}
	return cloneReport(report), nil
}

// GetResults returns the per-case results of a finished run.
func (s *Service) GetResults(evaluationID string) ([]*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results, ok := s.results[evaluationID]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "evaluation %s", evaluationID)
	}

	out := make([]*Result, len(results))
	for i, r := range results {
		clone := *r
		out[i] = &clone
	}
	return out, nil
}

// ExportResults renders a run's results as "json" or "csv".
func (s *Service) ExportResults(evaluationID, format string) (string, error) {
	results, err := s.GetResults(evaluationID)
	if err != nil {
		return "", err
	}

	switch format {
	case "json":
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return "", errors.Wrap(err, "failed to encode results")
		}
		return string(data), nil
	case "csv":
		return encodeCSV(results)
	default:
		return "", errors.Wrapf(errors.ErrInvalidInput, "unsupported export format: %s", format)
	}
}

func (s *Service) selectCases(caseIDs []string) []*Case {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var cases []*Case
	if len(caseIDs) > 0 {
		for _, id := range caseIDs {
			if c, ok := s.cases[id]; ok {
				cases = append(cases, c)
			}
		}
		return cases
	}

	for _, c := range s.cases {
		cases = append(cases, c)
	}
	sort.Slice(cases, func(i, j int) bool { return cases[i].ID < cases[j].ID })
	return cases
}

// runCase renders the prompt, fakes the model call and prices the
// outcome. Failures become failed results rather than errors so one
// bad case cannot sink a run.
func (s *Service) runCase(
	ctx context.Context,
	c *Case,
	evaluationID, modelName, modelVersion, promptTemplate, userID string,
) *Result {
	now := time.Now().UTC()
	result := &Result{
		TestCaseID:   c.ID,
		ModelName:    modelName,
		ModelVersion: modelVersion,
		Timestamp:    now,
	}

	tpl := &prompt.Template{
		Template:  promptTemplate,
		Variables: prompt.ExtractVariables(promptTemplate),
	}
	rendered, err := tpl.Render(c.Input)
	if err != nil {
		result.ErrorMessage = err.Error()
		s.log.Warnw("Evaluation case failed",
			"evaluation_id", evaluationID,
			"test_case_id", c.ID,
			"error", err)
		return result
	}

	output := simulatedCompletion(c.Category)

	latency := rand.NormFloat64()*200 + 1000
	if latency < 1 {
		latency = 1
	}
	if c.MaxLatencyMs > 0 && latency > c.MaxLatencyMs {
		latency = c.MaxLatencyMs
	}

	promptTokens, outputTokens := tokenizer.EstimatePair(rendered, output)

	result.ActualOutput = output
	result.ActualTokens = promptTokens + outputTokens
	result.LatencyMs = latency
	result.CostUSD = s.rates.Cost(modelName, promptTokens, outputTokens)
	result.Success = true

	if c.ExpectedOutput != "" {
		score := scoreAccuracy(output, c.ExpectedOutput)
		result.AccuracyScore = &score
	}

	if s.recorder != nil {
		record := &telemetry.Record{
			ModelName:    modelName,
			ModelVersion: modelVersion,
			UserID:       userID,
			InputTokens:  promptTokens,
			OutputTokens: outputTokens,
			LatencyMs:    latency,
			CostUSD:      result.CostUSD,
			Success:      true,
			Metadata: map[string]string{
				"evaluation_id": evaluationID,
				"test_case_id":  c.ID,
			},
		}
		if c.Category != "" {
			record.Metadata["category"] = c.Category
		}
		if _, err := s.recorder.Ingest(ctx, record); err != nil {
			s.log.Errorw("Failed to record evaluation request",
				"evaluation_id", evaluationID,
				"test_case_id", c.ID,
				"error", err)
		}
	}

	return result
}

func (s *Service) summarize(
	evaluationID, modelName, modelVersion string,
	results []*Result,
	startTime, endTime time.Time,
) *Report {
	report := &Report{
		EvaluationID:   evaluationID,
		ModelName:      modelName,
		ModelVersion:   modelVersion,
		TotalTests:     len(results),
		StartTime:      startTime,
		EndTime:        endTime,
		TestCategories: make(map[string]int),
		ErrorSummary:   make(map[string]int),
	}

	var successful []*Result
	for _, r := range results {
		if r.Success {
			successful = append(successful, r)
		} else if r.ErrorMessage != "" {
			report.ErrorSummary[r.ErrorMessage]++
		}
		if c, ok := s.lookupCase(r.TestCaseID); ok && c.Category != "" {
			report.TestCategories[c.Category]++
		}
	}
	if len(successful) == 0 {
		return report
	}

	var accuracySum, latencySum, costSum float64
	scored := 0
	for _, r := range successful {
		latencySum += r.LatencyMs
		costSum += r.CostUSD
		if r.AccuracyScore != nil {
			accuracySum += *r.AccuracyScore
			scored++
		}
	}

	report.SuccessfulTests = len(successful)
	if scored > 0 {
		report.AvgAccuracy = accuracySum / float64(scored)
	}
	report.AvgLatencyMs = latencySum / float64(len(successful))
	report.TotalCostUSD = costSum
	report.AvgCostPerTest = costSum / float64(len(results))
	report.SuccessRate = float64(len(successful)) / float64(len(results))

	return report
}

func (s *Service) lookupCase(id string) (*Case, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cases[id]
	return c, ok
}

// scoreAccuracy rates a completion against the expected output. A
// substring hit is a full score, otherwise the share of distinct
// expected words present in the completion.
func scoreAccuracy(actual, expected string) float64 {
	actualLower := strings.ToLower(actual)
	expectedLower := strings.ToLower(expected)

	if strings.Contains(actualLower, expectedLower) {
		return 1.0
	}

	actualWords := make(map[string]bool)
	for _, w := range strings.Fields(actualLower) {
		actualWords[w] = true
	}

	expectedWords := make(map[string]bool)
	matched := 0
	for _, w := range strings.Fields(expectedLower) {
		if expectedWords[w] {
			continue
		}
		expectedWords[w] = true
		if actualWords[w] {
			matched++
		}
	}
	if len(expectedWords) == 0 {
		return 1.0
	}
	return float64(matched) / float64(len(expectedWords))
}

func encodeCSV(results []*Result) (string, error) {
	var b strings.Builder
	w := csv.NewWriter(&b)

	header := []string{
		"test_case_id", "model_name", "model_version", "actual_tokens",
		"latency_ms", "cost_usd", "success", "error_message", "accuracy_score", "timestamp",
	}
	if err := w.Write(header); err != nil {
		return "", errors.Wrap(err, "failed to encode results")
	}

	for _, r := range results {
		accuracy := ""
		if r.AccuracyScore != nil {
			accuracy = strconv.FormatFloat(*r.AccuracyScore, 'f', -1, 64)
		}
		row := []string{
			r.TestCaseID,
			r.ModelName,
			r.ModelVersion,
			strconv.Itoa(r.ActualTokens),
			strconv.FormatFloat(r.LatencyMs, 'f', -1, 64),
			strconv.FormatFloat(r.CostUSD, 'f', -1, 64),
			strconv.FormatBool(r.Success),
			r.ErrorMessage,
			accuracy,
			r.Timestamp.Format(time.RFC3339Nano),
		}
		if err := w.Write(row); err != nil {
			return "", errors.Wrap(err, "failed to encode results")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", errors.Wrap(err, "failed to encode results")
	}
	return b.String(), nil
}

func cloneReport(report *Report) *Report {
	clone := *report
	clone.TestCategories = make(map[string]int, len(report.TestCategories))
	for k, v := range report.TestCategories {
		clone.TestCategories[k] = v
	}
	clone.ErrorSummary = make(map[string]int, len(report.ErrorSummary))
	for k, v := range report.ErrorSummary {
		clone.ErrorSummary[k] = v
	}
	return &clone
}
