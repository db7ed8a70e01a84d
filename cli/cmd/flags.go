// Package cmd provides the CLI commands for the flint binary.
package cmd

import (
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/flint/cli/config"
	"github.com/pithecene-io/flint/runtime"
)

// Shared flags, accepted by every command.
var (
	// ConfigFlag points at flint.yaml. A missing default file is not an error.
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to the config file",
		Value:   config.DefaultPath,
	}

	// SourceFlag overrides the source file.
	SourceFlag = &cli.StringFlag{
		Name:    "source",
		Aliases: []string{"s"},
		Usage:   "Firmware source file (default: config source, then main.c)",
	}

	// VerboseFlag enables debug logs and metrics in results.
	VerboseFlag = &cli.BoolFlag{
		Name:    "verbose",
		Aliases: []string{"v"},
		Usage:   "Enable debug logging and include metrics in results",
	}

	// QuietFlag suppresses progress lines and the rendered result.
	QuietFlag = &cli.BoolFlag{
		Name:    "quiet",
		Aliases: []string{"q"},
		Usage:   "Only print prompts and failures",
	}

	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml (default: table on a terminal, json otherwise)",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}
)

// CommonFlags returns the flags shared by all commands.
func CommonFlags() []cli.Flag {
	return []cli.Flag{
		ConfigFlag,
		SourceFlag,
		VerboseFlag,
		QuietFlag,
		FormatFlag,
		NoColorFlag,
	}
}

func uploadFlags() []cli.Flag {
	return append(CommonFlags(),
		&cli.StringFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Usage:   "Serial device to flash (default: auto-detect)",
		},
		&cli.IntFlag{
			Name:    "baud",
			Aliases: []string{"b"},
			Usage:   "Programming baud rate (default: config baud, then 115200)",
		},
		&cli.BoolFlag{
			Name:  "no-build",
			Usage: "Flash the last build instead of rebuilding",
		},
	)
}

func devicesFlags() []cli.Flag {
	return append(CommonFlags(),
		&cli.BoolFlag{
			Name:    "watch",
			Aliases: []string{"w"},
			Usage:   "Rescan and re-render until interrupted",
		},
		&cli.BoolFlag{
			Name:  "tui",
			Usage: "Interactive live view",
		},
		&cli.DurationFlag{
			Name:  "interval",
			Usage: "Rescan interval for --watch and --tui",
			Value: time.Second,
		},
	)
}

func watchFlags() []cli.Flag {
	return append(CommonFlags(),
		&cli.DurationFlag{
			Name:  "debounce",
			Usage: "Quiet period after a change before rebuilding",
			Value: runtime.DefaultDebounce,
		},
	)
}
