package main

import (
	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/kindlehubapp/kindlehub/internal/di"
	"github.com/kindlehubapp/kindlehub/internal/logger"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the KindleHub API server",
		Long: `Start the KindleHub HTTP API.

The server exposes review sessions under /api/v1/sessions, the committed
library under /api/v1/books, and a health check at /health. It runs until
interrupted.

Examples:
  kindlehub serve                  # Listen on SERVER_PORT (default 8080)
  kindlehub serve --port 3000      # Listen on a custom port
  kindlehub serve --store badger   # Use the Badger backend`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			injector := opts.container()

			if err := di.Bootstrap(injector); err != nil {
				_ = injector.Shutdown()
				return err
			}

			log := do.MustInvoke[*logger.Logger](injector)

			<-cmd.Context().Done()

			log.Info("Shutting down server gracefully...")
			if err := injector.Shutdown(); err != nil {
				log.Error("Shutdown error", "error", err)
			}
			log.Info("Server stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.flags.Port, "port", "", "port to listen on (env: SERVER_PORT)")

	return cmd
}
