package providers

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/samber/do/v2"

	"github.com/kindlehubapp/kindlehub/internal/api"
	"github.com/kindlehubapp/kindlehub/internal/config"
	"github.com/kindlehubapp/kindlehub/internal/logger"
	"github.com/kindlehubapp/kindlehub/internal/service"
)

// shutdownTimeout bounds how long in-flight requests may drain on shutdown.
const shutdownTimeout = 30 * time.Second

// Version is the build version reported by the API.
type Version string

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the HTTP server and starts listening.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	version := do.MustInvoke[Version](i)
	library := do.MustInvoke[*service.LibraryService](i)
	sessions := do.MustInvoke[*SessionRegistryHandle](i)
	limiter := do.MustInvoke[*RateLimiterHandle](i)

	handler := api.NewServer(
		&api.Services{
			Library:  library,
			Sessions: sessions.SessionRegistry,
		},
		api.Options{
			Version:     string(version),
			CORSOrigins: cfg.Server.CORSOrigins,
			RateLimiter: limiter.Limiter,
		},
		log.Logger,
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Bind before returning so a busy port fails the bootstrap.
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return nil, err
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	log.Info("Server running", "addr", ln.Addr().String(), "version", string(version))

	return &HTTPServerHandle{Server: srv}, nil
}
