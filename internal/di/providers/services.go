package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/kindlehubapp/kindlehub/internal/config"
	"github.com/kindlehubapp/kindlehub/internal/logger"
	"github.com/kindlehubapp/kindlehub/internal/ratelimit"
	"github.com/kindlehubapp/kindlehub/internal/service"
)

// ProvideLibraryService provides the committed book collection with its
// cache primed. A failed first load is logged and retried on the next read.
func ProvideLibraryService(i do.Injector) (*service.LibraryService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	library := service.NewLibraryService(storeHandle.Store, log.Logger)
	if err := library.LoadBooks(context.Background()); err != nil {
		log.Warn("Initial book load failed", "error", err)
	}

	return library, nil
}

// ProvideBatchServiceFactory provides the constructor sessions use for their
// BatchService, bound to the shared store and library.
func ProvideBatchServiceFactory(i do.Injector) (service.BatchServiceFactory, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	library := do.MustInvoke[*service.LibraryService](i)
	log := do.MustInvoke[*logger.Logger](i)

	return func() *service.BatchService {
		return service.NewBatchService(storeHandle.Store, library, log.Logger,
			service.WithDuplicateThreshold(cfg.Import.DuplicateThreshold))
	}, nil
}

// SessionRegistryHandle wraps the registry and its idle-session janitor.
type SessionRegistryHandle struct {
	*service.SessionRegistry
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SessionRegistryHandle) Shutdown() error {
	h.cancel()
	return nil
}

// ProvideSessionRegistry provides the review session registry and starts
// expiring idle sessions in the background.
func ProvideSessionRegistry(i do.Injector) (*SessionRegistryHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	factory := do.MustInvoke[service.BatchServiceFactory](i)
	log := do.MustInvoke[*logger.Logger](i)

	registry := service.NewSessionRegistry(factory, log.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	go registry.RunJanitor(ctx, cfg.Session.SweepInterval, cfg.Session.IdleTimeout)

	log.Debug("Session janitor started",
		"idle_timeout", cfg.Session.IdleTimeout,
		"sweep_interval", cfg.Session.SweepInterval,
	)

	return &SessionRegistryHandle{SessionRegistry: registry, cancel: cancel}, nil
}

// RateLimiterHandle wraps the per-IP limiter. Limiter is nil when rate
// limiting is disabled.
type RateLimiterHandle struct {
	Limiter *ratelimit.KeyedRateLimiter
}

// Shutdown implements do.Shutdownable.
func (h *RateLimiterHandle) Shutdown() error {
	if h.Limiter != nil {
		h.Limiter.Stop()
	}
	return nil
}

// ProvideRateLimiter provides the API rate limiter.
func ProvideRateLimiter(i do.Injector) (*RateLimiterHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if cfg.RateLimit.RequestsPerSecond == 0 {
		log.Info("API rate limiting disabled by configuration")
		return &RateLimiterHandle{}, nil
	}

	limiter := ratelimit.New(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	return &RateLimiterHandle{Limiter: limiter}, nil
}
