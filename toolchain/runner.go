package toolchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/pithecene-io/flint/log"
)

// waitDelay bounds how long Run waits for a killed tool's pipes to drain.
const waitDelay = 2 * time.Second

// Invocation describes one external tool run.
type Invocation struct {
	// Stage is the pipeline stage the invocation belongs to.
	Stage Stage
	// Path is the executable (resolved path or bare name).
	Path string
	// Args are passed to the executable as-is.
	Args []string
	// Dir is the working directory. Empty means the current directory.
	Dir string
	// Stdout receives the tool's standard output. If nil, stdout is
	// captured into Result.Output together with stderr.
	Stdout io.Writer
	// Timeout bounds the run. Zero means no timeout beyond ctx.
	Timeout time.Duration
}

// Result is the outcome of an invocation that started.
type Result struct {
	// ExitCode is the process exit status (-1 when killed).
	ExitCode int
	// Output is captured stderr, plus stdout when Invocation.Stdout is nil.
	Output []byte
	// TimedOut is set when Invocation.Timeout elapsed before exit.
	TimedOut bool
	// Duration is the wall time of the run.
	Duration time.Duration
}

// Success reports a clean zero exit.
func (r *Result) Success() bool {
	return r != nil && !r.TimedOut && r.ExitCode == 0
}

// Runner invokes external tools. Production code uses ExecRunner; tests
// substitute fakes so no real compiler or programmer is needed.
type Runner interface {
	// Run executes inv and returns its result. A non-nil error means the
	// tool could not be started or ctx was cancelled by the caller; a
	// nonzero exit or a timeout is reported through Result.
	Run(ctx context.Context, inv *Invocation) (*Result, error)
}

// LookPathFunc resolves an executable name, like exec.LookPath.
type LookPathFunc func(file string) (string, error)

// ExecRunner runs tools as child processes.
type ExecRunner struct {
	logger *log.Logger
}

// NewExecRunner creates a process runner.
func NewExecRunner(logger *log.Logger) *ExecRunner {
	if logger == nil {
		logger = log.Nop()
	}
	return &ExecRunner{logger: logger}
}

// Run executes the invocation as a child process.
func (r *ExecRunner) Run(ctx context.Context, inv *Invocation) (*Result, error) {
	runCtx := ctx
	if inv.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, inv.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, inv.Path, inv.Args...)
	cmd.Dir = inv.Dir
	cmd.WaitDelay = waitDelay

	var output bytes.Buffer
	cmd.Stderr = &output
	if inv.Stdout != nil {
		cmd.Stdout = inv.Stdout
	} else {
		cmd.Stdout = &output
	}

	r.logger.Debug("invoking tool", map[string]any{
		"stage": string(inv.Stage),
		"path":  inv.Path,
		"args":  inv.Args,
		"dir":   inv.Dir,
	})

	start := time.Now()
	err := cmd.Run()
	result := &Result{
		Output:   output.Bytes(),
		Duration: time.Since(start),
	}

	if err == nil {
		return result, nil
	}

	// Caller cancellation wins over the timeout and the exit status.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, ctxErr
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		result.TimedOut = true
		result.ExitCode = -1
		return result, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}

	return nil, fmt.Errorf("failed to start %s: %w", inv.Path, err)
}
