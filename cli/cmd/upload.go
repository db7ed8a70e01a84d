package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/flint/cli/config"
	"github.com/pithecene-io/flint/cli/render"
	"github.com/pithecene-io/flint/flash"
	"github.com/pithecene-io/flint/runtime"
)

// UploadCommand returns the upload command.
func UploadCommand(opts Options) *cli.Command {
	return &cli.Command{
		Name:  "upload",
		Usage: "Build the source and flash it over serial",
		Description: "Without --port, waits for a serial adapter to appear. Once a device\n" +
			"is bound, power-cycle the board when prompted.",
		Flags:  uploadFlags(),
		Action: uploadAction(opts),
	}
}

func uploadAction(opts Options) cli.ActionFunc {
	return func(c *cli.Context) error {
		e, err := setupWith(c, opts, func(cfg *config.Config, console *render.Console, deps *runtime.Deps) error {
			report := func(ev flash.Event) { reportPhase(console, ev) }
			deps.Observer = chainObservers(report, deps.Observer)
			return wireNotifier(cfg, deps)
		})
		if err != nil {
			return err
		}
		defer e.close()
		ctx, stop := signalContext(c)
		defer stop()

		if !c.Bool("no-build") {
			e.console.Step("building %s", e.orch.Layout().Source)
		}
		res, _ := e.orch.Upload(ctx, runtime.UploadOptions{
			Port:    c.String("port"),
			Baud:    c.Int("baud"),
			NoBuild: c.Bool("no-build"),
		})
		return e.finish(res.Outcome, res)
	}
}

// reportPhase turns session transitions into operator messages.
func reportPhase(console *render.Console, ev flash.Event) {
	switch ev.To {
	case flash.PhasePolling:
		if ev.Polls == 0 {
			console.Step("waiting for a serial adapter; plug one in or press ctrl+c")
		}
	case flash.PhaseWaitingForReset:
		console.Prompt("Power-cycle the board now (device %s)", ev.Device)
	case flash.PhaseUploading:
		console.Step("uploading to %s", ev.Device)
	case flash.PhaseDone:
		console.Success("flashed %s", ev.Device)
	}
}

func chainObservers(observers ...flash.Observer) flash.Observer {
	return func(ev flash.Event) {
		for _, o := range observers {
			if o != nil {
				o(ev)
			}
		}
	}
}
