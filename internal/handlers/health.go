package handlers

import (
	"context"
	"net/http"
	"time"
)

// ReadinessCheck probes one downstream dependency. A nil error means the
// dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// HealthHandlers serves liveness and readiness probes.
type HealthHandlers struct {
	startedAt time.Time
	clock     func() time.Time
	checks    map[string]ReadinessCheck
}

// HealthOption customises health handler construction.
type HealthOption func(*HealthHandlers)

// NewHealthHandlers constructs probe handlers with an optional set of
// dependency checks.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{
		startedAt: time.Now().UTC(),
		clock:     time.Now,
		checks:    map[string]ReadinessCheck{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// WithHealthClock overrides the time source used in probe payloads.
func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// WithHealthStartedAt overrides the recorded process start time.
func WithHealthStartedAt(t time.Time) HealthOption {
	return func(h *HealthHandlers) {
		h.startedAt = t.UTC()
	}
}

// WithReadinessCheck registers a named dependency probe evaluated by Readyz.
func WithReadinessCheck(name string, check ReadinessCheck) HealthOption {
	return func(h *HealthHandlers) {
		if name != "" && check != nil {
			h.checks[name] = check
		}
	}
}

// Healthz reports process liveness only.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	now := h.clock().UTC()
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"uptime":    now.Sub(h.startedAt).String(),
		"timestamp": now.Format(time.RFC3339),
	})
}

// Readyz runs every registered dependency check and reports per-check status.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := h.clock().UTC()

	status := "ok"
	checks := make(map[string]map[string]string, len(h.checks))
	for name, check := range h.checks {
		entry := map[string]string{"status": "ok"}
		if err := check(ctx); err != nil {
			status = "unavailable"
			entry["status"] = "unavailable"
			entry["error"] = err.Error()
		}
		checks[name] = entry
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}

	writeJSONResponse(w, code, map[string]any{
		"status":    status,
		"checks":    checks,
		"timestamp": now.Format(time.RFC3339),
	})
}
