package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/flint/runtime"
)

// WatchCommand returns the watch command.
func WatchCommand(opts Options) *cli.Command {
	return &cli.Command{
		Name:   "watch",
		Usage:  "Rebuild the source every time it changes",
		Flags:  watchFlags(),
		Action: watchAction(opts),
	}
}

func watchAction(opts Options) cli.ActionFunc {
	return func(c *cli.Context) error {
		e, err := setup(c, opts)
		if err != nil {
			return err
		}
		defer e.close()
		ctx, stop := signalContext(c)
		defer stop()

		e.console.Step("watching %s (ctrl+c to stop)", e.orch.Layout().Source)
		err = e.orch.Watch(ctx, c.Duration("debounce"), func(res *runtime.BuildResult, _ error) {
			if res.Outcome.IsSuccess() {
				e.console.Success("built %s", res.Artifact.ImagePath)
			} else {
				e.console.Outcome(res.Outcome)
			}
			if !e.quiet {
				if err := e.renderer.Render(res); err != nil {
					e.logger.Warn("render failed", map[string]any{"error": err.Error()})
				}
			}
		})
		if err != nil {
			return exit(e.console, err)
		}
		return nil
	}
}
