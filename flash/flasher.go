package flash

import (
	"context"
	"os/exec"
	"strconv"
	"time"

	"github.com/pithecene-io/flint/toolchain"
)

// Request is one invocation of the flash stage.
type Request struct {
	Device string
	Baud   int
	Image  string
	// Timeout bounds the tool run. Zero selects DefaultUploadTimeout.
	Timeout time.Duration
}

// Flasher uploads an image to the device.
// A nil error means the image was written.
type Flasher interface {
	Flash(ctx context.Context, req Request) error
}

// FlasherOptions configures the external flash tool.
type FlasherOptions struct {
	// Tool is the flasher executable (stcgal).
	Tool string
	// Protocol is the chip family passed as -P (stc89, stc12, auto, ...).
	Protocol string
	// ExtraArgs are appended before the image path.
	ExtraArgs []string
	// LookPath resolves Tool. Defaults to exec.LookPath.
	LookPath toolchain.LookPathFunc
}

// StageFlasher runs the external flash tool through a toolchain.Runner.
type StageFlasher struct {
	opts   FlasherOptions
	runner toolchain.Runner
}

// NewStageFlasher creates a flasher backed by runner.
func NewStageFlasher(opts FlasherOptions, runner toolchain.Runner) *StageFlasher {
	if opts.LookPath == nil {
		opts.LookPath = exec.LookPath
	}
	return &StageFlasher{opts: opts, runner: runner}
}

// Precheck verifies the flash tool resolves without invoking it.
func (f *StageFlasher) Precheck() error {
	if f.opts.Tool == "" {
		return &toolchain.ToolMissingError{Role: "flasher", Tool: f.opts.Tool}
	}
	if _, err := f.opts.LookPath(f.opts.Tool); err != nil {
		return &toolchain.ToolMissingError{Role: "flasher", Tool: f.opts.Tool}
	}
	return nil
}

// Args returns the flash tool's command line for a request.
func (f *StageFlasher) Args(req Request) []string {
	var args []string
	if f.opts.Protocol != "" {
		args = append(args, "-P", f.opts.Protocol)
	}
	args = append(args, "-p", req.Device, "-b", strconv.Itoa(req.Baud))
	args = append(args, f.opts.ExtraArgs...)
	return append(args, req.Image)
}

// Flash invokes the flash tool and maps its result to an UploadError.
func (f *StageFlasher) Flash(ctx context.Context, req Request) error {
	path, err := f.opts.LookPath(f.opts.Tool)
	if err != nil {
		return &toolchain.ToolMissingError{Role: "flasher", Tool: f.opts.Tool}
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultUploadTimeout
	}
	res, err := f.runner.Run(ctx, &toolchain.Invocation{
		Stage:   toolchain.StageFlash,
		Path:    path,
		Args:    f.Args(req),
		Timeout: timeout,
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &UploadError{Device: req.Device, Tool: f.opts.Tool, Err: err}
	}
	if res.TimedOut || res.ExitCode != 0 {
		return &UploadError{
			Device:   req.Device,
			Tool:     f.opts.Tool,
			ExitCode: res.ExitCode,
			TimedOut: res.TimedOut,
			Output:   string(res.Output),
		}
	}
	return nil
}
