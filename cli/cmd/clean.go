package cmd

import (
	"github.com/urfave/cli/v2"
)

// CleanCommand returns the clean command.
func CleanCommand(opts Options) *cli.Command {
	return &cli.Command{
		Name:   "clean",
		Usage:  "Remove the files the build generates for the source",
		Flags:  CommonFlags(),
		Action: cleanAction(opts),
	}
}

func cleanAction(opts Options) cli.ActionFunc {
	return func(c *cli.Context) error {
		e, err := setup(c, opts)
		if err != nil {
			return err
		}
		defer e.close()
		res, _ := e.orch.Clean()
		if res.Outcome.IsSuccess() {
			e.console.Success("removed %d file(s)", len(res.Removed))
		}
		return e.finish(res.Outcome, res)
	}
}
