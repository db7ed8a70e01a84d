package cmd

import (
	"github.com/urfave/cli/v2"
)

// BuildCommand returns the build command.
func BuildCommand(opts Options) *cli.Command {
	return &cli.Command{
		Name:   "build",
		Usage:  "Compile and package the source into a flashable image",
		Flags:  CommonFlags(),
		Action: buildAction(opts),
	}
}

func buildAction(opts Options) cli.ActionFunc {
	return func(c *cli.Context) error {
		e, err := setup(c, opts)
		if err != nil {
			return err
		}
		defer e.close()
		ctx, stop := signalContext(c)
		defer stop()

		e.console.Step("building %s", e.orch.Layout().Source)
		res, _ := e.orch.Build(ctx)
		if res.Outcome.IsSuccess() {
			e.console.Success("built %s", res.Artifact.ImagePath)
		}
		return e.finish(res.Outcome, res)
	}
}
