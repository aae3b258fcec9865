// Package main provides the kindlehub command: the review API server and
// library maintenance commands.
package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	root := newRootCmd()

	if err := fang.Execute(
		context.Background(),
		root,
		fang.WithVersion(version),
		fang.WithNotifySignal(os.Interrupt, os.Kill),
	); err != nil {
		os.Exit(1)
	}
}
