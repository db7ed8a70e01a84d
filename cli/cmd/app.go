package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/flint/types"
)

// NewApp returns the flint CLI. The caller sets ExitErrHandler.
func NewApp(opts Options) *cli.App {
	if opts.Commit == "" {
		opts.Commit = "unknown"
	}
	return &cli.App{
		Name:    "flint",
		Usage:   "Build 8051 firmware and flash it to STC chips over serial",
		Version: fmt.Sprintf("%s (commit: %s)", types.Version, opts.Commit),
		Commands: []*cli.Command{
			BuildCommand(opts),
			UploadCommand(opts),
			DevicesCommand(opts),
			CleanCommand(opts),
			InfoCommand(opts),
			WatchCommand(opts),
			VersionCommand(opts.Commit),
		},
	}
}
