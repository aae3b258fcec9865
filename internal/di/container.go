// Package di provides dependency injection configuration for KindleHub.
package di

import (
	"github.com/samber/do/v2"

	"github.com/kindlehubapp/kindlehub/internal/config"
	"github.com/kindlehubapp/kindlehub/internal/di/providers"
	"github.com/kindlehubapp/kindlehub/internal/logger"
	"github.com/kindlehubapp/kindlehub/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
// Services are built lazily, so CLI commands only open what they invoke.
func NewContainer(flags config.FlagValues, version string) *do.RootScope {
	injector := do.New()

	// Inputs
	do.ProvideValue(injector, flags)
	do.ProvideValue(injector, providers.Version(version))

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Database layer
	do.Provide(injector, providers.ProvideStore)

	// Business services
	do.Provide(injector, providers.ProvideLibraryService)
	do.Provide(injector, providers.ProvideBatchServiceFactory)
	do.Provide(injector, providers.ProvideSessionRegistry)

	// Server
	do.Provide(injector, providers.ProvideRateLimiter)
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes every service the HTTP server needs and starts it.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*logger.Logger](injector)

	if _, err := do.Invoke[*providers.StoreHandle](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*service.LibraryService](injector)
	_ = do.MustInvoke[*providers.SessionRegistryHandle](injector)
	_ = do.MustInvoke[*providers.RateLimiterHandle](injector)

	if _, err := do.Invoke[*providers.HTTPServerHandle](injector); err != nil {
		return err
	}
	return nil
}
