package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/pithecene-io/flint/flash"
	"github.com/pithecene-io/flint/toolchain"
	"github.com/pithecene-io/flint/types"
)

// ErrInvalidConfig indicates a flag or config value was rejected before any
// work started.
var ErrInvalidConfig = errors.New("invalid configuration")

// Process exit codes, one per outcome status.
const (
	ExitCodeSuccess        = 0
	ExitCodeBuildFailed    = 1
	ExitCodeToolMissing    = 2
	ExitCodeDeviceNotFound = 3
	ExitCodeUploadFailed   = 4
	ExitCodeStaleArtifact  = 5
	ExitCodeInvalidConfig  = 6
	ExitCodeCancelled      = 130
	ExitCodeError          = 1
)

// detailLines bounds the tool output carried in an outcome.
const detailLines = 20

// ExitCode maps an outcome status to the process exit code.
func ExitCode(status types.OutcomeStatus) int {
	switch status {
	case types.OutcomeSuccess:
		return ExitCodeSuccess
	case types.OutcomeBuildFailed:
		return ExitCodeBuildFailed
	case types.OutcomeToolMissing:
		return ExitCodeToolMissing
	case types.OutcomeDeviceNotFound:
		return ExitCodeDeviceNotFound
	case types.OutcomeUploadFailed:
		return ExitCodeUploadFailed
	case types.OutcomeStaleArtifact:
		return ExitCodeStaleArtifact
	case types.OutcomeInvalidConfig:
		return ExitCodeInvalidConfig
	case types.OutcomeCancelled:
		return ExitCodeCancelled
	default:
		return ExitCodeError
	}
}

// Classify maps an error from any orchestrator operation to an outcome.
// The order matters: a precheck BuildError wraps a ToolMissingError and is
// reported as tool_missing, and cancellation wins over whatever stage was
// interrupted.
func Classify(err error) types.Outcome {
	if err == nil {
		return types.Outcome{Status: types.OutcomeSuccess, Message: "ok"}
	}

	out := types.Outcome{Message: err.Error()}
	switch {
	case errors.Is(err, flash.ErrCancelled), errors.Is(err, context.Canceled):
		out.Status = types.OutcomeCancelled
		out.Message = "cancelled by operator"
	case errors.Is(err, ErrInvalidConfig):
		out.Status = types.OutcomeInvalidConfig
	case errors.Is(err, toolchain.ErrToolMissing):
		out.Status = types.OutcomeToolMissing
		var missing *toolchain.ToolMissingError
		if errors.As(err, &missing) {
			out.Message = missing.Error()
		}
	case errors.Is(err, toolchain.ErrStaleArtifact), errors.Is(err, toolchain.ErrNoArtifact):
		out.Status = types.OutcomeStaleArtifact
	case errors.Is(err, toolchain.ErrBuildFailed):
		out.Status = types.OutcomeBuildFailed
		var buildErr *toolchain.BuildError
		if errors.As(err, &buildErr) {
			out.Message = buildMessage(buildErr)
			out.Detail = toolchain.Tail(buildErr.Output, detailLines)
		}
	case errors.Is(err, flash.ErrDeviceNotFound):
		out.Status = types.OutcomeDeviceNotFound
	case errors.Is(err, flash.ErrUploadFailed):
		out.Status = types.OutcomeUploadFailed
		var uploadErr *flash.UploadError
		if errors.As(err, &uploadErr) {
			out.Detail = toolchain.Tail(uploadErr.Output, detailLines)
		}
	default:
		out.Status = types.OutcomeError
	}
	return out
}

func buildMessage(e *toolchain.BuildError) string {
	switch {
	case e.TimedOut:
		return fmt.Sprintf("%s stage timed out: %s did not finish in time", e.Stage, e.Tool)
	case e.Err != nil:
		return e.Error()
	default:
		return fmt.Sprintf("%s stage failed: %s exited with status %d", e.Stage, e.Tool, e.ExitCode)
	}
}
