package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/flint/types"
)

// InfoCommand returns the info command. It reports state and runs no tool.
func InfoCommand(opts Options) *cli.Command {
	return &cli.Command{
		Name:   "info",
		Usage:  "Show the last build of the source and how each tool resolves",
		Flags:  CommonFlags(),
		Action: infoAction(opts),
	}
}

func infoAction(opts Options) cli.ActionFunc {
	return func(c *cli.Context) error {
		e, err := setup(c, opts)
		if err != nil {
			return err
		}
		defer e.close()
		return e.finish(types.Outcome{Status: types.OutcomeSuccess}, e.orch.Info())
	}
}
