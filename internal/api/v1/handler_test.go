package v1

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"argus/internal/domain/telemetry"
	"argus/internal/kv"
	"argus/internal/pricing"
	"argus/internal/repository/kvstore"
	alertingsvc "argus/internal/services/alerting"
	analyticssvc "argus/internal/services/analytics"
	evaluationsvc "argus/internal/services/evaluation"
	experimentsvc "argus/internal/services/experiment"
	modelsvc "argus/internal/services/models"
	promptsvc "argus/internal/services/prompts"
	telemetrysvc "argus/internal/services/telemetry"
	"argus/pkg/logger"
)

func testLogger() *logger.Logger {
	zapLogger, _ := zap.NewDevelopment()
	return &logger.Logger{SugaredLogger: zapLogger.Sugar()}
}

func newTestMux(t *testing.T, limiter *rate.Limiter) *http.ServeMux {
	t.Helper()

	log := testLogger()
	store := kv.NewMemoryStore()
	rates := pricing.NewTable()

	telemetryRepo := kvstore.NewTelemetryRepository(store, 24*time.Hour, 30*24*time.Hour)
	ingest := telemetrysvc.NewService(telemetryRepo, rates, 100, log)
	analytics := analyticssvc.NewService(ingest, log)

	prompts := promptsvc.NewService(kvstore.NewPromptRepository(store), log)
	experiments := experimentsvc.NewService(kvstore.NewExperimentRepository(store, time.Hour), prompts, log)

	h := NewHandler(Deps{
		Telemetry:   ingest,
		Analytics:   analytics,
		Experiments: experiments,
		Prompts:     prompts,
		Models:      modelsvc.NewService(rates, log),
		Alerting:    alertingsvc.NewService(analytics, 100.0, nil, log),
		Evaluator:   evaluationsvc.NewService(rates, ingest, log),
		Limiter:     limiter,
	}, log)

	mux := http.NewServeMux()
	h.Register(mux)
	return mux
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func createPrompt(t *testing.T, mux *http.ServeMux, name, text string) string {
	t.Helper()

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/prompts", map[string]string{
		"name":        name,
		"template":    text,
		"description": "test prompt",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		ID string `json:"id"`
	}
	decodeBody(t, rec, &created)
	require.NotEmpty(t, created.ID)
	return created.ID
}

func TestHandler_IngestAndFetchRequest(t *testing.T) {
	mux := newTestMux(t, nil)

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/requests", map[string]interface{}{
		"model_name":    "gpt-4",
		"input_tokens":  1000,
		"output_tokens": 0,
		"latency_ms":    150.0,
		"success":       true,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var stored telemetry.Record
	decodeBody(t, rec, &stored)
	assert.NotEmpty(t, stored.RequestID)
	assert.False(t, stored.Timestamp.IsZero())
	assert.InDelta(t, 0.03, stored.CostUSD, 1e-12)

	rec = doJSON(t, mux, http.MethodGet, "/api/v1/requests/"+stored.RequestID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var fetched telemetry.Record
	decodeBody(t, rec, &fetched)
	assert.Equal(t, stored.RequestID, fetched.RequestID)
	assert.Equal(t, "gpt-4", fetched.ModelName)
}

func TestHandler_GetRequest_NotFound(t *testing.T) {
	mux := newTestMux(t, nil)

	rec := doJSON(t, mux, http.MethodGet, "/api/v1/requests/missing-id", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_Ingest_RejectsInvalidRecord(t *testing.T) {
	mux := newTestMux(t, nil)

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/requests", map[string]interface{}{
		"model_name":   "gpt-4",
		"input_tokens": -5,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, mux, http.MethodPost, "/api/v1/requests", map[string]interface{}{
		"input_tokens": 10,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_Ingest_RejectsMalformedBody(t *testing.T) {
	mux := newTestMux(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/requests", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_ListRequests_FiltersByModel(t *testing.T) {
	mux := newTestMux(t, nil)

	for _, model := range []string{"gpt-4", "gpt-4", "claude-3-opus"} {
		rec := doJSON(t, mux, http.MethodPost, "/api/v1/requests", map[string]interface{}{
			"model_name":    model,
			"input_tokens":  100,
			"output_tokens": 50,
			"latency_ms":    200.0,
			"success":       true,
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := doJSON(t, mux, http.MethodGet, "/api/v1/requests?model=gpt-4", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var listed struct {
		Count   int                `json:"count"`
		Records []telemetry.Record `json:"records"`
	}
	decodeBody(t, rec, &listed)
	assert.Equal(t, 2, listed.Count)
	for _, r := range listed.Records {
		assert.Equal(t, "gpt-4", r.ModelName)
	}
}

func TestHandler_ExperimentLifecycle(t *testing.T) {
	mux := newTestMux(t, nil)

	idA := createPrompt(t, mux, "greeting", "Hello {name}")
	idB := createPrompt(t, mux, "greeting", "Hi there {name}")

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/experiments", map[string]interface{}{
		"name":          "greeting-test",
		"variant_a":     idA,
		"variant_b":     idB,
		"traffic_split": 1.0,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	// split 1.0 routes every user to variant B
	rec = doJSON(t, mux, http.MethodPost, "/api/v1/experiments/greeting-test/assign", map[string]string{
		"user_id": "user-1",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var selection struct {
		Variant string `json:"variant"`
		Mode    string `json:"mode"`
		Prompt  struct {
			ID string `json:"id"`
		} `json:"prompt"`
	}
	decodeBody(t, rec, &selection)
	assert.Equal(t, experimentsvc.VariantB, selection.Variant)
	assert.Equal(t, experimentsvc.ModeSticky, selection.Mode)
	assert.Equal(t, idB, selection.Prompt.ID)

	rec = doJSON(t, mux, http.MethodGet, "/api/v1/experiments/greeting-test", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var assignment struct {
		ExperimentName string  `json:"experiment_name"`
		TrafficSplit   float64 `json:"traffic_split"`
		Active         bool    `json:"active"`
	}
	decodeBody(t, rec, &assignment)
	assert.Equal(t, "greeting-test", assignment.ExperimentName)
	assert.True(t, assignment.Active)

	rec = doJSON(t, mux, http.MethodDelete, "/api/v1/experiments/greeting-test", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, "/api/v1/experiments/greeting-test", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_StartExperiment_InvalidSplit(t *testing.T) {
	mux := newTestMux(t, nil)

	idA := createPrompt(t, mux, "greeting", "Hello {name}")
	idB := createPrompt(t, mux, "greeting", "Hi there {name}")

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/experiments", map[string]interface{}{
		"name":          "greeting-test",
		"variant_a":     idA,
		"variant_b":     idB,
		"traffic_split": 1.5,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_Assign_FallsBackToActivePrompt(t *testing.T) {
	mux := newTestMux(t, nil)

	id := createPrompt(t, mux, "greeting", "Hello {name}")
	rec := doJSON(t, mux, http.MethodPost, "/api/v1/prompts/"+id+"/activate", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, mux, http.MethodPost, "/api/v1/experiments/greeting/assign", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var selection struct {
		Variant string `json:"variant"`
		Mode    string `json:"mode"`
	}
	decodeBody(t, rec, &selection)
	assert.Equal(t, experimentsvc.ModeFallback, selection.Mode)
}

func TestHandler_PromptLifecycle(t *testing.T) {
	mux := newTestMux(t, nil)

	id := createPrompt(t, mux, "welcome", "Welcome {user} to {place}")

	rec := doJSON(t, mux, http.MethodGet, "/api/v1/prompts/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var tmpl struct {
		ID        string   `json:"id"`
		Status    string   `json:"status"`
		Variables []string `json:"variables"`
	}
	decodeBody(t, rec, &tmpl)
	assert.Equal(t, id, tmpl.ID)
	assert.Equal(t, "draft", tmpl.Status)
	assert.ElementsMatch(t, []string{"user", "place"}, tmpl.Variables)

	rec = doJSON(t, mux, http.MethodPost, "/api/v1/prompts/"+id+"/activate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &tmpl)
	assert.Equal(t, "active", tmpl.Status)

	rec = doJSON(t, mux, http.MethodGet, "/api/v1/prompts?name=welcome", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var listed struct {
		Count int `json:"count"`
	}
	decodeBody(t, rec, &listed)
	assert.Equal(t, 1, listed.Count)

	rec = doJSON(t, mux, http.MethodDelete, "/api/v1/prompts/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, "/api/v1/prompts/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_RenderPrompt(t *testing.T) {
	mux := newTestMux(t, nil)

	id := createPrompt(t, mux, "welcome", "Hello {name}")

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/prompts/"+id+"/render", map[string]interface{}{
		"variables": map[string]string{"name": "Ada"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var rendered struct {
		Rendered string `json:"rendered"`
	}
	decodeBody(t, rec, &rendered)
	assert.Equal(t, "Hello Ada", rendered.Rendered)

	// Missing variable names the gap
	rec = doJSON(t, mux, http.MethodPost, "/api/v1/prompts/"+id+"/render", map[string]interface{}{
		"variables": map[string]string{},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "name")
}

func TestHandler_MetricsEndpoints(t *testing.T) {
	mux := newTestMux(t, nil)

	for i := 0; i < 4; i++ {
		body := map[string]interface{}{
			"model_name":    "gpt-4",
			"input_tokens":  100,
			"output_tokens": 100,
			"latency_ms":    float64(100 + i*100),
			"success":       true,
		}
		if i == 3 {
			body["success"] = false
			body["error_message"] = "rate limit"
			body["input_tokens"] = 0
			body["output_tokens"] = 0
		}
		rec := doJSON(t, mux, http.MethodPost, "/api/v1/requests", body)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	start := time.Now().UTC().Add(-time.Hour).Format(time.RFC3339)
	end := time.Now().UTC().Add(time.Hour).Format(time.RFC3339)
	window := fmt.Sprintf("start=%s&end=%s", start, end)

	rec := doJSON(t, mux, http.MethodGet, "/api/v1/metrics/costs?"+window, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var costs struct {
		TotalCostUSD  float64 `json:"total_cost_usd"`
		RequestsCount int     `json:"requests_count"`
		TokensCount   int     `json:"tokens_count"`
	}
	decodeBody(t, rec, &costs)
	assert.Equal(t, 4, costs.RequestsCount)
	assert.Equal(t, 600, costs.TokensCount)
	// 3 successful records, (100+100)/1000 * 0.03 each
	assert.InDelta(t, 3*0.006, costs.TotalCostUSD, 1e-9)

	rec = doJSON(t, mux, http.MethodGet, "/api/v1/metrics/performance?"+window, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var perf struct {
		TotalRequests int     `json:"total_requests"`
		SuccessRate   float64 `json:"success_rate"`
		MinLatencyMs  float64 `json:"min_latency_ms"`
		MaxLatencyMs  float64 `json:"max_latency_ms"`
	}
	decodeBody(t, rec, &perf)
	assert.Equal(t, 4, perf.TotalRequests)
	assert.InDelta(t, 0.75, perf.SuccessRate, 1e-9)
	assert.InDelta(t, 100, perf.MinLatencyMs, 1e-9)
	assert.InDelta(t, 400, perf.MaxLatencyMs, 1e-9)

	rec = doJSON(t, mux, http.MethodGet, "/api/v1/metrics/errors?"+window, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var summary struct {
		TotalErrors int            `json:"total_errors"`
		ErrorTypes  map[string]int `json:"error_types"`
	}
	decodeBody(t, rec, &summary)
	assert.Equal(t, 1, summary.TotalErrors)
	assert.Equal(t, 1, summary.ErrorTypes["rate limit"])
}

func TestHandler_MetricsRejectsBadTimeRange(t *testing.T) {
	mux := newTestMux(t, nil)

	rec := doJSON(t, mux, http.MethodGet, "/api/v1/metrics/costs?start=garbage", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_Alerts_QuietWithoutSpend(t *testing.T) {
	mux := newTestMux(t, nil)

	rec := doJSON(t, mux, http.MethodGet, "/api/v1/alerts", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var alerts struct {
		Count int `json:"count"`
	}
	decodeBody(t, rec, &alerts)
	assert.Equal(t, 0, alerts.Count)
}

func TestHandler_Models(t *testing.T) {
	mux := newTestMux(t, nil)

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/models", map[string]interface{}{
		"name":        "gpt-4",
		"provider":    "openai",
		"parameters":  map[string]string{"temperature": "0.7"},
		"description": "general purpose",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var registered struct {
		Name            string  `json:"name"`
		Version         string  `json:"version"`
		CostPer1KTokens float64 `json:"cost_per_1k_tokens"`
	}
	decodeBody(t, rec, &registered)
	assert.Equal(t, "gpt-4", registered.Name)
	assert.NotEmpty(t, registered.Version)
	assert.InDelta(t, 0.03, registered.CostPer1KTokens, 1e-12)

	rec = doJSON(t, mux, http.MethodGet, "/api/v1/models", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var listed struct {
		Count int `json:"count"`
	}
	decodeBody(t, rec, &listed)
	assert.Equal(t, 1, listed.Count)
}

func TestHandler_Evaluate(t *testing.T) {
	mux := newTestMux(t, nil)

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/evaluate", map[string]interface{}{
		"model_name":      "gpt-4",
		"prompt_template": "Context: {context}\nQ: {question}",
		"case_ids":        []string{"chat_001", "complex_001"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var report struct {
		EvaluationID string  `json:"evaluation_id"`
		TotalTests   int     `json:"total_tests"`
		SuccessRate  float64 `json:"success_rate"`
	}
	decodeBody(t, rec, &report)
	assert.NotEmpty(t, report.EvaluationID)
	assert.Equal(t, 2, report.TotalTests)
	assert.InDelta(t, 1.0, report.SuccessRate, 1e-9)

	// Evaluation traffic lands in the telemetry aggregates
	rec = doJSON(t, mux, http.MethodGet, "/api/v1/metrics/costs", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var costs struct {
		RequestsCount int `json:"requests_count"`
	}
	decodeBody(t, rec, &costs)
	assert.Equal(t, report.TotalTests, costs.RequestsCount)
}

func TestHandler_Evaluate_RequiresModel(t *testing.T) {
	mux := newTestMux(t, nil)

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/evaluate", map[string]interface{}{
		"prompt_template": "Answer: {input}",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_IngestRateLimited(t *testing.T) {
	// Burst of one, effectively no refill within the test
	mux := newTestMux(t, rate.NewLimiter(rate.Limit(0.001), 1))

	body := map[string]interface{}{
		"model_name":    "gpt-4",
		"input_tokens":  10,
		"output_tokens": 5,
		"success":       true,
	}

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/requests", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, mux, http.MethodPost, "/api/v1/requests", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "rate limit")

	// Read paths stay open while ingest is throttled
	rec = doJSON(t, mux, http.MethodGet, "/api/v1/models", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
