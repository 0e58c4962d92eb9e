package core

import (
	"context"
	"errors"
	"sync"
)

// IService is implemented by every provider client.
type IService interface {
	Name() string
	Init(ctx context.Context) error
	Cleanup() error
}

// HealthChecker is implemented by dependencies that can report readiness.
type HealthChecker interface {
	Check(ctx context.Context) error
}

// ErrNoBackupService is returned when a failover is requested but the list is exhausted.
var ErrNoBackupService = errors.New("no backup services available")

// BaseHandler owns a primary service plus an ordered list of backups and
// hands out the one currently in use.
type BaseHandler[S IService] struct {
	mu             sync.RWMutex
	service        S
	backupServices []S
	logger         *Logger
}

func NewBaseHandler[S IService](service S, backupServices []S, logger *Logger) *BaseHandler[S] {
	if logger == nil {
		logger = GetLogger()
	}
	return &BaseHandler[S]{
		service:        service,
		backupServices: backupServices,
		logger:         logger,
	}
}

// Initialize runs Init on the active service and every backup.
func (h *BaseHandler[S]) Initialize(ctx context.Context) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if err := h.service.Init(ctx); err != nil {
		return err
	}
	for _, b := range h.backupServices {
		if err := b.Init(ctx); err != nil {
			h.logger.With(map[string]any{"service": b.Name(), "error": err}).Warn("backup service failed to initialize")
		}
	}
	return nil
}

// Cleanup releases every service.
func (h *BaseHandler[S]) Cleanup() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var errs []error
	errs = append(errs, h.service.Cleanup())
	for _, b := range h.backupServices {
		errs = append(errs, b.Cleanup())
	}
	return errors.Join(errs...)
}

// AddBackupService appends a service tried after the current list.
func (h *BaseHandler[S]) AddBackupService(service S) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.backupServices = append(h.backupServices, service)
}

// Services returns the active service followed by the remaining backups.
func (h *BaseHandler[S]) Services() []S {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]S, 0, len(h.backupServices)+1)
	out = append(out, h.service)
	return append(out, h.backupServices...)
}

// Service returns the active service.
func (h *BaseHandler[S]) Service() S {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.service
}

// SwitchToBackupService promotes the first backup when failed is still the
// active service. Concurrent callers that observed the same failure only
// switch once.
func (h *BaseHandler[S]) SwitchToBackupService(failed S) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.service.Name() != failed.Name() {
		return nil
	}
	if len(h.backupServices) == 0 {
		return ErrNoBackupService
	}
	h.logger.With(map[string]any{"from": h.service.Name(), "to": h.backupServices[0].Name()}).Warn("switching to backup service")
	// The failed service goes to the back so it is retried once the others
	// are exhausted.
	next := h.backupServices[0]
	rest := append(make([]S, 0, len(h.backupServices)), h.backupServices[1:]...)
	h.backupServices = append(rest, h.service)
	h.service = next
	return nil
}

// CheckHealth checks the active service when it implements HealthChecker.
func (h *BaseHandler[S]) CheckHealth(ctx context.Context) error {
	svc := h.Service()
	if hc, ok := any(svc).(HealthChecker); ok {
		return hc.Check(ctx)
	}
	return nil
}

// Run calls fn with the active service and fails over to the next backup
// while the error is transient and ctx is still live. Every service is
// tried at most once per call. The returned service is the one that
// produced the final result.
func (h *BaseHandler[S]) Run(ctx context.Context, stage Stage, fn func(S) error) (S, error) {
	attempts := len(h.Services())
	var (
		svc S
		err error
	)
	for i := 0; i < attempts; i++ {
		svc = h.Service()
		err = fn(svc)
		if err == nil {
			return svc, nil
		}
		se := ClassifyProviderError(ctx, stage, err)
		if se.Provider == "" {
			se.Provider = svc.Name()
		}
		err = se
		if ctx.Err() != nil || !failoverKind(se.Kind) {
			return svc, err
		}
		if swErr := h.SwitchToBackupService(svc); swErr != nil {
			return svc, err
		}
		h.logger.With(map[string]any{"stage": string(stage), "provider": svc.Name(), "error": se}).Warn("provider failed, trying backup")
	}
	return svc, err
}

func failoverKind(kind ErrorKind) bool {
	switch kind {
	case KindUpstreamUnavailable, KindTimeout, KindRateLimited:
		return true
	}
	return false
}
