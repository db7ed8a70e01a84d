package cmd

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/flint/cli/tui"
	"github.com/pithecene-io/flint/device"
	"github.com/pithecene-io/flint/runtime"
	"github.com/pithecene-io/flint/types"
)

// DevicesCommand returns the devices command.
func DevicesCommand(opts Options) *cli.Command {
	return &cli.Command{
		Name:    "devices",
		Aliases: []string{"list-devices"},
		Usage:   "List serial devices an upload could bind, preferred first",
		Flags:   devicesFlags(),
		Action:  devicesAction(opts),
	}
}

func devicesAction(opts Options) cli.ActionFunc {
	return func(c *cli.Context) error {
		e, err := setup(c, opts)
		if err != nil {
			return err
		}
		defer e.close()

		interval := c.Duration("interval")
		live := c.Bool("watch") || c.Bool("tui")
		switch {
		case c.Bool("watch") && c.Bool("tui"):
			return exit(e.console, fmt.Errorf("%w: --watch and --tui are mutually exclusive", runtime.ErrInvalidConfig))
		case live && interval <= 0:
			return exit(e.console, fmt.Errorf("%w: --interval must be positive, got %s", runtime.ErrInvalidConfig, interval))
		}

		ctx, stop := signalContext(c)
		defer stop()

		if c.Bool("tui") {
			scan := func() []device.Candidate { return e.orch.Devices().Candidates }
			if err := tui.RunDevices(ctx, scan, interval); err != nil {
				return exit(e.console, err)
			}
			if err := ctx.Err(); err != nil {
				return exit(e.console, err)
			}
			return nil
		}

		res := e.orch.Devices()
		if !c.Bool("watch") {
			return e.finish(types.Outcome{Status: types.OutcomeSuccess}, res)
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			if err := e.renderer.Render(res); err != nil {
				return err
			}
			select {
			case <-ctx.Done():
				return exit(e.console, ctx.Err())
			case <-ticker.C:
			}
			res = e.orch.Devices()
		}
	}
}
