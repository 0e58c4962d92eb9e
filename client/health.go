package client

import (
	"context"
	"time"

	"voiceagent/core"
)

const defaultHealthInterval = 30 * time.Second

type HealthSource interface {
	Health(ctx context.Context) (*HealthReport, error)
}

// HealthMonitor polls the server and dispatches HealthChanged whenever the
// reported status moves. An unreachable server is reported as unknown.
type HealthMonitor struct {
	source   HealthSource
	interval time.Duration
	dispatch func(Event)
	logger   *core.Logger
}

func NewHealthMonitor(source HealthSource, interval time.Duration, dispatch func(Event), logger *core.Logger) *HealthMonitor {
	if interval <= 0 {
		interval = defaultHealthInterval
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &HealthMonitor{source: source, interval: interval, dispatch: dispatch, logger: logger}
}

// Check runs a single poll.
func (m *HealthMonitor) Check(ctx context.Context) HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, m.interval)
	defer cancel()
	report, err := m.source.Health(ctx)
	if err != nil {
		m.logger.Debug("health check failed", "error", err)
		return HealthUnknown
	}
	switch report.Status {
	case HealthHealthy, HealthDegraded, HealthUnhealthy:
		return report.Status
	}
	return HealthUnknown
}

func (m *HealthMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	last := HealthStatus("")
	for {
		if status := m.Check(ctx); status != last {
			last = status
			m.dispatch(HealthChanged{Status: status})
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
