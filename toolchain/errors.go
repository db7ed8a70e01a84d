package toolchain

import (
	"errors"
	"fmt"
	"strings"
)

// Stage names one external, atomic tool invocation.
type Stage string

// Pipeline stages.
const (
	StagePrecheck Stage = "precheck"
	StageCompile  Stage = "compile"
	StagePackage  Stage = "package"
	StageFlash    Stage = "flash"
)

// Sentinel errors for classification. Use errors.Is(err, ErrXxx).
var (
	// ErrBuildFailed matches every BuildError.
	ErrBuildFailed = errors.New("build failed")

	// ErrToolMissing indicates an external tool could not be resolved.
	ErrToolMissing = errors.New("tool missing")

	// ErrTimeout indicates an external tool exceeded its time bound.
	ErrTimeout = errors.New("stage timed out")

	// ErrStaleArtifact indicates an image no longer matches its source.
	ErrStaleArtifact = errors.New("artifact is stale")

	// ErrNoArtifact indicates no build manifest exists for the source.
	ErrNoArtifact = errors.New("no build artifact")
)

// ToolMissingError names the external tool that could not be resolved.
type ToolMissingError struct {
	// Role is what the tool is used for (compiler, packager, flasher).
	Role string
	// Tool is the configured executable name or path.
	Tool string
}

func (e *ToolMissingError) Error() string {
	return fmt.Sprintf("%s %q not found on PATH (install it or set tools.%s in flint.yaml)", e.Role, e.Tool, e.Role)
}

// Is matches ErrToolMissing.
func (e *ToolMissingError) Is(target error) bool {
	return target == ErrToolMissing
}

// BuildError reports a failed pipeline stage.
type BuildError struct {
	// Stage is the stage that failed.
	Stage Stage
	// Tool is the executable the stage invoked, if any.
	Tool string
	// ExitCode is the tool's exit status when it ran to completion.
	ExitCode int
	// TimedOut is set when the stage exceeded its timeout.
	TimedOut bool
	// Output is the tool's captured diagnostics.
	Output string
	// Err is the underlying cause when the failure was not an exit status.
	Err error
}

func (e *BuildError) Error() string {
	switch {
	case e.TimedOut:
		return fmt.Sprintf("%s stage timed out (%s)", e.Stage, e.Tool)
	case e.Err != nil:
		return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
	default:
		return fmt.Sprintf("%s stage failed: %s exited with status %d", e.Stage, e.Tool, e.ExitCode)
	}
}

// Unwrap returns the underlying cause for errors.Is/As chain traversal.
func (e *BuildError) Unwrap() error {
	return e.Err
}

// Is matches ErrBuildFailed, and ErrTimeout when the stage timed out.
func (e *BuildError) Is(target error) bool {
	switch target {
	case ErrBuildFailed:
		return true
	case ErrTimeout:
		return e.TimedOut
	default:
		return false
	}
}

// Tail returns at most the last n non-empty lines of tool output.
func Tail(output string, n int) string {
	lines := strings.Split(strings.TrimRight(output, "\n"), "\n")
	kept := lines[:0]
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			kept = append(kept, l)
		}
	}
	if len(kept) > n {
		kept = kept[len(kept)-n:]
	}
	return strings.Join(kept, "\n")
}
