// Package providers contains dependency injection providers for KindleHub.
package providers

import (
	"fmt"

	"github.com/samber/do/v2"

	"github.com/kindlehubapp/kindlehub/internal/config"
	"github.com/kindlehubapp/kindlehub/internal/logger"
)

// ProvideConfig provides the application configuration. Command-line
// overrides come from the config.FlagValues registered with the container.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	flags := do.MustInvoke[config.FlagValues](i)
	return config.Load(flags)
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	level, err := logger.ParseLevel(cfg.Logger.Level)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	log := logger.New(logger.Config{
		Level:       level,
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	log.Debug("Configuration loaded",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"store_driver", cfg.Store.Driver,
		"data_path", cfg.Store.DataPath,
	)

	return log, nil
}
