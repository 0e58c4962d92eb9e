package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"voiceagent/core"
)

const healthCheckTimeout = 5 * time.Second

const (
	HealthHealthy   = "healthy"
	HealthDegraded  = "degraded"
	HealthUnhealthy = "unhealthy"
)

// HealthCheck is one dependency reported by /health. A failing critical
// check makes the whole service unhealthy; any other failure only degrades it.
type HealthCheck struct {
	Name     string
	Critical bool
	Check    func(ctx context.Context) error
}

type healthResponse struct {
	Status    string            `json:"status"`
	Services  map[string]string `json:"services"`
	Timestamp time.Time         `json:"timestamp"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := h.checkHealth(r.Context())
	status := http.StatusOK
	if resp.Status == HealthUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (h *Handler) checkHealth(ctx context.Context) healthResponse {
	resp := healthResponse{
		Status:    HealthHealthy,
		Services:  make(map[string]string, len(h.HealthChecks)),
		Timestamp: time.Now().UTC(),
	}
	for _, hc := range h.HealthChecks {
		cctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		err := hc.Check(cctx)
		cancel()

		switch {
		case err == nil:
			resp.Services[hc.Name] = "ok"
			continue
		case errors.Is(err, core.ErrNotConfigured):
			resp.Services[hc.Name] = "not_configured"
		default:
			resp.Services[hc.Name] = "error: " + err.Error()
		}
		h.logger().Warn("health check failed", "service", hc.Name, "error", err)
		if hc.Critical {
			resp.Status = HealthUnhealthy
		} else if resp.Status == HealthHealthy {
			resp.Status = HealthDegraded
		}
	}
	return resp
}
