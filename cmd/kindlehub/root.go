package main

import (
	"fmt"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/kindlehubapp/kindlehub/internal/config"
	"github.com/kindlehubapp/kindlehub/internal/di"
)

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	flags  config.FlagValues
	output string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "kindlehub",
		Short: "Review Kindle clippings and keep them in a local library",
		Long: `KindleHub stages parsed Kindle clippings as a batch you can review,
edit, and commit into a local library of books and clippings.

Commands:
  serve    Run the HTTP API used by the review front-end
  import   Stage a parsed clippings file and commit or discard it
  books    List the books in the library
  history  List past batches
  stats    Show library totals

Configuration is read from flags, then the environment, then a .env file.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return validateOutputFormat(opts.output)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.flags.Env, "env", "", "environment: development, staging, or production (env: ENV)")
	pf.StringVar(&opts.flags.LogLevel, "log-level", "", "log level: debug, info, warn, or error (env: LOG_LEVEL)")
	pf.StringVar(&opts.flags.StoreDriver, "store", "", "store driver: sqlite or badger (env: STORE_DRIVER)")
	pf.StringVar(&opts.flags.DataPath, "data", "", "data directory (env: DATA_PATH, default: ~/KindleHub/data)")
	pf.StringVar(&opts.flags.EnvFile, "env-file", "", "path to a .env file (default: ./.env)")
	pf.StringVarP(&opts.output, "output", "o", outputText, "output format: text, json, or yaml")

	cmd.AddCommand(
		newServeCmd(opts),
		newImportCmd(opts),
		newBooksCmd(opts),
		newHistoryCmd(opts),
		newStatsCmd(opts),
	)

	return cmd
}

// container builds a DI container from the parsed flags.
func (o *rootOptions) container() *do.RootScope {
	return di.NewContainer(o.flags, version)
}

// invoke resolves a service, returning the provider's error instead of panicking.
func invoke[T any](injector do.Injector) (T, error) {
	v, err := do.Invoke[T](injector)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("initialize: %w", err)
	}
	return v, nil
}
