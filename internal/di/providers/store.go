package providers

import (
	"fmt"
	"os"

	"github.com/samber/do/v2"

	"github.com/kindlehubapp/kindlehub/internal/config"
	"github.com/kindlehubapp/kindlehub/internal/logger"
	"github.com/kindlehubapp/kindlehub/internal/store"
	"github.com/kindlehubapp/kindlehub/internal/store/sqlite"
)

// StoreHandle wraps the selected store backend with shutdown capability.
type StoreHandle struct {
	store.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore opens the backend named by STORE_DRIVER under the data path.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if err := os.MkdirAll(cfg.Store.DataPath, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	path := cfg.Store.Path()
	var (
		s   store.Store
		err error
	)
	switch cfg.Store.Driver {
	case config.DriverBadger:
		s, err = store.New(path, log.Logger)
	default:
		s, err = sqlite.Open(path, log.Logger)
	}
	if err != nil {
		return nil, err
	}

	log.Info("Database initialized", "driver", cfg.Store.Driver, "path", path)

	return &StoreHandle{Store: s}, nil
}
