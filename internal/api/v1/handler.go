package v1

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"

	alertingsvc "argus/internal/services/alerting"
	analyticssvc "argus/internal/services/analytics"
	budgetsvc "argus/internal/services/budget"
	evaluationsvc "argus/internal/services/evaluation"
	experimentsvc "argus/internal/services/experiment"
	modelsvc "argus/internal/services/models"
	promptsvc "argus/internal/services/prompts"
	telemetrysvc "argus/internal/services/telemetry"
	"argus/pkg/errors"
	"argus/pkg/logger"
)

// Deps bundles the services the REST API exposes
type Deps struct {
	Telemetry   *telemetrysvc.Service
	Analytics   *analyticssvc.Service
	Experiments *experimentsvc.Service
	Prompts     *promptsvc.Service
	Models      *modelsvc.Service
	Alerting    *alertingsvc.Service
	Evaluator   *evaluationsvc.Service
	Budget      *budgetsvc.Service // optional, nil disables spend checks
	Limiter     *rate.Limiter      // guards the ingest path
}

// Handler serves the versioned REST API
type Handler struct {
	telemetry   *telemetrysvc.Service
	analytics   *analyticssvc.Service
	experiments *experimentsvc.Service
	prompts     *promptsvc.Service
	models      *modelsvc.Service
	alerting    *alertingsvc.Service
	evaluator   *evaluationsvc.Service
	budget      *budgetsvc.Service
	limiter     *rate.Limiter
	log         *logger.Logger
}

// NewHandler creates the v1 API handler
func NewHandler(deps Deps, log *logger.Logger) *Handler {
	return &Handler{
		telemetry:   deps.Telemetry,
		analytics:   deps.Analytics,
		experiments: deps.Experiments,
		prompts:     deps.Prompts,
		models:      deps.Models,
		alerting:    deps.Alerting,
		evaluator:   deps.Evaluator,
		budget:      deps.Budget,
		limiter:     deps.Limiter,
		log:         log.With("component", "api"),
	}
}

// Register mounts all v1 routes on mux
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/requests", h.rateLimited(h.handleIngestRequest))
	mux.HandleFunc("GET /api/v1/requests", h.handleListRequests)
	mux.HandleFunc("GET /api/v1/requests/{id}", h.handleGetRequest)

	mux.HandleFunc("POST /api/v1/experiments", h.handleStartExperiment)
	mux.HandleFunc("GET /api/v1/experiments/{name}", h.handleGetExperiment)
	mux.HandleFunc("DELETE /api/v1/experiments/{name}", h.handleStopExperiment)
	mux.HandleFunc("POST /api/v1/experiments/{name}/assign", h.handleAssignVariant)

	mux.HandleFunc("GET /api/v1/metrics/costs", h.handleCostMetrics)
	mux.HandleFunc("GET /api/v1/metrics/performance", h.handlePerformanceMetrics)
	mux.HandleFunc("GET /api/v1/metrics/errors", h.handleErrorSummary)
	mux.HandleFunc("GET /api/v1/alerts", h.handleAlerts)

	mux.HandleFunc("POST /api/v1/prompts", h.handleCreatePrompt)
	mux.HandleFunc("GET /api/v1/prompts", h.handleListPrompts)
	mux.HandleFunc("GET /api/v1/prompts/{id}", h.handleGetPrompt)
	mux.HandleFunc("DELETE /api/v1/prompts/{id}", h.handleDeletePrompt)
	mux.HandleFunc("POST /api/v1/prompts/{id}/activate", h.handleActivatePrompt)
	mux.HandleFunc("POST /api/v1/prompts/{id}/render", h.handleRenderPrompt)

	mux.HandleFunc("GET /api/v1/models", h.handleListModels)
	mux.HandleFunc("POST /api/v1/models", h.handleRegisterModel)

	mux.HandleFunc("POST /api/v1/evaluate", h.handleEvaluate)
}

// parseTimeRange reads the start/end query parameters. RFC3339 and
// plain dates are both accepted; the default window is the trailing
// 24 hours.
func parseTimeRange(r *http.Request) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	start := now.Add(-24 * time.Hour)
	end := now

	if raw := r.URL.Query().Get("start"); raw != "" {
		t, err := parseTime(raw)
		if err != nil {
			return time.Time{}, time.Time{}, errors.Wrapf(errors.ErrInvalidInput, "start: %v", err)
		}
		start = t
	}
	if raw := r.URL.Query().Get("end"); raw != "" {
		t, err := parseTime(raw)
		if err != nil {
			return time.Time{}, time.Time{}, errors.Wrapf(errors.ErrInvalidInput, "end: %v", err)
		}
		end = t
	}

	return start, end, nil
}

func parseTime(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}
