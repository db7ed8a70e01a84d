// Package main provides the flint CLI entrypoint.
//
// Usage:
//
//	flint <command> [options]
//
// Exit codes:
//   - 0: success
//   - 1: build failed (or an unclassified error)
//   - 2: a required tool is missing
//   - 3: the serial device was not found
//   - 4: the upload failed
//   - 5: the last build is stale (upload --no-build)
//   - 6: invalid flags or config
//   - 130: cancelled by the operator
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/flint/cli/cmd"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	app := cmd.NewApp(cmd.Options{Commit: commit})
	app.ExitErrHandler = exitErrHandler

	if err := app.Run(os.Args); err != nil {
		// ExitErrHandler already exited for cli.ExitCoder errors.
		os.Exit(1)
	}
}

// exitErrHandler preserves exit codes from cli.Exit.
func exitErrHandler(c *cli.Context, err error) {
	if err == nil {
		return
	}
	var stderr io.Writer = os.Stderr
	if c != nil && c.App != nil && c.App.ErrWriter != nil {
		stderr = c.App.ErrWriter
	}
	os.Exit(exitCode(stderr, err))
}

// exitCode reports err on w and returns the process exit code.
func exitCode(w io.Writer, err error) int {
	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()

		// cli.Exit("", N).Error() is "exit status N"; the outcome was
		// already reported, so print nothing.
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(w, msg)
		}
		return code
	}

	fmt.Fprintf(w, "Error: %v\n", err)
	return 1
}
