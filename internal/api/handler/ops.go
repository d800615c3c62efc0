package handler

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/breathway/breathway/internal/api/models"
	"github.com/breathway/breathway/internal/api/response"
	"github.com/breathway/breathway/internal/provider/resilience"
)

const readinessTimeout = 2 * time.Second

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// ProviderHealthSource is satisfied by *resilience.Registry.
type ProviderHealthSource interface {
	GetAllHealth() []*resilience.ProviderHealth
}

// OpsHandler serves liveness, readiness and provider state.
type OpsHandler struct {
	version   string
	buildTime string
	started   time.Time
	checks    map[string]ReadinessCheck
	providers ProviderHealthSource
}

// NewOpsHandler creates an OpsHandler. checks and providers may be nil.
func NewOpsHandler(version, buildTime string, checks map[string]ReadinessCheck, providers ProviderHealthSource) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		started:   time.Now(),
		checks:    checks,
		providers: providers,
	}
}

// HealthCheck handles GET /v1/ops/health.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	response.JSON(w, r, http.StatusOK, models.Health{
		Status:        models.HealthStatusOK,
		Time:          models.Timestamp(now),
		Version:       h.version,
		BuildTime:     h.buildTime,
		UptimeSeconds: int64(now.Sub(h.started).Seconds()),
	})
}

// ReadinessCheck handles GET /v1/ops/ready. Checks run in name order, each
// with its own timeout, and any failure answers 503.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	ready := models.Readiness{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Checks: []models.Check{},
	}

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		check := models.Check{Name: name, Status: models.HealthStatusOK}
		if err := h.run(r.Context(), h.checks[name]); err != nil {
			check.Status, check.Detail = models.HealthStatusFail, err.Error()
			ready.Status = models.HealthStatusFail
		}
		ready.Checks = append(ready.Checks, check)
	}

	code := http.StatusOK
	if ready.Status == models.HealthStatusFail {
		code = http.StatusServiceUnavailable
	}
	response.JSON(w, r, code, ready)
}

func (h *OpsHandler) run(ctx context.Context, check ReadinessCheck) error {
	ctx, cancel := context.WithTimeout(ctx, readinessTimeout)
	defer cancel()
	return check(ctx)
}

// ProviderStatus handles GET /v1/ops/providers.
func (h *OpsHandler) ProviderStatus(w http.ResponseWriter, r *http.Request) {
	resp := models.ProvidersStatus{
		Status:    models.HealthStatusOK,
		Time:      models.Timestamp(time.Now()),
		Providers: []models.ProviderStatus{},
	}
	if h.providers != nil {
		for _, ph := range h.providers.GetAllHealth() {
			ps := toProviderStatus(ph)
			if ps.Status != models.HealthStatusOK {
				resp.Status = models.HealthStatusDegraded
			}
			resp.Providers = append(resp.Providers, ps)
		}
	}
	response.JSON(w, r, http.StatusOK, resp)
}

var providerStatuses = map[string]models.HealthStatus{
	"healthy":  models.HealthStatusOK,
	"degraded": models.HealthStatusDegraded,
}

func toProviderStatus(ph *resilience.ProviderHealth) models.ProviderStatus {
	status, ok := providerStatuses[ph.Status()]
	if !ok {
		status = models.HealthStatusFail
	}
	return models.ProviderStatus{
		Provider:      ph.Name,
		Status:        status,
		CircuitState:  resilience.StateName(ph.CircuitState),
		Requests:      ph.Counts.Requests,
		Failures:      ph.Counts.ConsecutiveFailures,
		LastSuccessAt: models.TimestampPtr(ph.LastSuccessAt),
		LastFailureAt: models.TimestampPtr(ph.LastFailureAt),
		Message:       ph.LastError,
	}
}
