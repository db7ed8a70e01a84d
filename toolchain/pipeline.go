package toolchain

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"time"

	"github.com/pithecene-io/flint/iox"
	"github.com/pithecene-io/flint/log"
	"github.com/pithecene-io/flint/metrics"
)

// Default stage timeouts.
const (
	DefaultCompileTimeout = 60 * time.Second
	DefaultPackageTimeout = 30 * time.Second
)

// Tools names the pipeline's external executables.
type Tools struct {
	// Compiler turns a source into an Intel HEX intermediate (sdcc).
	Compiler string
	// Packager turns the intermediate into the final image (packihx).
	Packager string
}

// Options configures a pipeline.
type Options struct {
	// Tools are the executables to invoke.
	Tools Tools
	// CompileArgs precede the source file name on the compiler command line.
	CompileArgs []string
	// CompileTimeout bounds the compile stage (default 60s).
	CompileTimeout time.Duration
	// PackageTimeout bounds the package stage (default 30s).
	PackageTimeout time.Duration
	// LookPath resolves tool names. Defaults to exec.LookPath.
	LookPath LookPathFunc
	// Now stamps artifacts. Defaults to time.Now.
	Now func() time.Time
}

// Pipeline runs compile then package over a source.
// It holds no state between calls.
type Pipeline struct {
	opts      Options
	runner    Runner
	logger    *log.Logger
	collector *metrics.Collector
}

// NewPipeline creates a pipeline. A nil collector disables counting.
func NewPipeline(opts Options, runner Runner, logger *log.Logger, collector *metrics.Collector) *Pipeline {
	if opts.CompileTimeout <= 0 {
		opts.CompileTimeout = DefaultCompileTimeout
	}
	if opts.PackageTimeout <= 0 {
		opts.PackageTimeout = DefaultPackageTimeout
	}
	if opts.LookPath == nil {
		opts.LookPath = exec.LookPath
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Pipeline{
		opts:      opts,
		runner:    runner,
		logger:    logger,
		collector: collector,
	}
}

// Precheck verifies that both stage executables resolve. It invokes nothing.
func (p *Pipeline) Precheck() error {
	for _, t := range []struct{ role, tool string }{
		{"compiler", p.opts.Tools.Compiler},
		{"packager", p.opts.Tools.Packager},
	} {
		if _, err := p.resolve(t.role, t.tool); err != nil {
			return &BuildError{Stage: StagePrecheck, Tool: t.tool, Err: err}
		}
	}
	return nil
}

// resolve maps a tool name to an executable path.
func (p *Pipeline) resolve(role, tool string) (string, error) {
	if tool == "" {
		return "", &ToolMissingError{Role: role, Tool: tool}
	}
	path, err := p.opts.LookPath(tool)
	if err != nil {
		return "", &ToolMissingError{Role: role, Tool: tool}
	}
	return path, nil
}

// Build runs precheck, compile and package, then records the manifest.
func (p *Pipeline) Build(ctx context.Context, l Layout) (*Artifact, error) {
	if err := p.Precheck(); err != nil {
		return nil, err
	}
	inter, err := p.Compile(ctx, l)
	if err != nil {
		return nil, err
	}
	artifact, err := p.Package(ctx, l, inter)
	if err != nil {
		return nil, err
	}
	if err := writeManifest(l.Manifest(), artifact); err != nil {
		return nil, &BuildError{Stage: StagePackage, Err: fmt.Errorf("record manifest: %w", err)}
	}

	p.logger.Info("build complete", map[string]any{
		"image":  artifact.ImagePath,
		"size":   artifact.ImageSize,
		"digest": artifact.ImageDigest,
	})
	return artifact, nil
}

// Compile runs the compiler and returns the intermediate bound to the
// source content it was built from. Earlier outputs for the source are
// removed first, so a failure never leaves a previous image in place.
func (p *Pipeline) Compile(ctx context.Context, l Layout) (*Intermediate, error) {
	tool := p.opts.Tools.Compiler
	path, err := p.resolve("compiler", tool)
	if err != nil {
		return nil, &BuildError{Stage: StagePrecheck, Tool: tool, Err: err}
	}

	src, err := Identify(l.Source)
	if err != nil {
		return nil, &BuildError{Stage: StageCompile, Tool: tool, Err: fmt.Errorf("read source: %w", err)}
	}

	if err := removeIfExists(l.Intermediate(), l.Image(), l.Manifest()); err != nil {
		return nil, &BuildError{Stage: StageCompile, Tool: tool, Err: err}
	}

	args := append(slices.Clone(p.opts.CompileArgs), filepath.Base(l.Source))
	res, err := p.run(ctx, &Invocation{
		Stage:   StageCompile,
		Path:    path,
		Args:    args,
		Dir:     l.Dir,
		Timeout: p.opts.CompileTimeout,
	}, tool)
	if err != nil {
		return nil, err
	}

	digest, err := digestFile(l.Intermediate())
	if err != nil {
		p.collector.IncStageFailure(string(StageCompile))
		return nil, &BuildError{
			Stage:  StageCompile,
			Tool:   tool,
			Output: string(res.Output),
			Err:    fmt.Errorf("compiler exited cleanly but produced no %s", filepath.Base(l.Intermediate())),
		}
	}

	return &Intermediate{Source: src, Path: l.Intermediate(), Digest: digest}, nil
}

// Package converts an intermediate into the final image. It refuses to run
// when the intermediate is missing or differs from what Compile produced.
func (p *Pipeline) Package(ctx context.Context, l Layout, inter *Intermediate) (*Artifact, error) {
	tool := p.opts.Tools.Packager
	if inter == nil {
		return nil, &BuildError{Stage: StagePackage, Tool: tool, Err: errors.New("compile stage did not complete")}
	}
	digest, err := digestFile(inter.Path)
	if err != nil {
		return nil, &BuildError{Stage: StagePackage, Tool: tool, Err: fmt.Errorf("intermediate image %s is missing", inter.Path)}
	}
	if digest != inter.Digest {
		return nil, &BuildError{Stage: StagePackage, Tool: tool, Err: fmt.Errorf("intermediate image %s changed since compile", inter.Path)}
	}

	path, err := p.resolve("packager", tool)
	if err != nil {
		return nil, &BuildError{Stage: StagePrecheck, Tool: tool, Err: err}
	}

	out, err := iox.TempSibling(l.Image())
	if err != nil {
		return nil, &BuildError{Stage: StagePackage, Tool: tool, Err: err}
	}
	if _, err := p.run(ctx, &Invocation{
		Stage:   StagePackage,
		Path:    path,
		Args:    []string{filepath.Base(inter.Path)},
		Dir:     l.Dir,
		Stdout:  out,
		Timeout: p.opts.PackageTimeout,
	}, tool); err != nil {
		iox.Abort(out)
		return nil, err
	}
	if err := iox.Commit(out, l.Image()); err != nil {
		return nil, &BuildError{Stage: StagePackage, Tool: tool, Err: err}
	}

	info, err := os.Stat(l.Image())
	if err != nil {
		return nil, &BuildError{Stage: StagePackage, Tool: tool, Err: err}
	}
	imgDigest, err := digestFile(l.Image())
	if err != nil {
		return nil, &BuildError{Stage: StagePackage, Tool: tool, Err: err}
	}

	return &Artifact{
		Source:           inter.Source,
		IntermediatePath: inter.Path,
		ImagePath:        l.Image(),
		ImageDigest:      imgDigest,
		ImageSize:        info.Size(),
		BuiltAt:          p.opts.Now().UTC(),
	}, nil
}

// run invokes one stage and converts a failed result into a BuildError.
// Caller cancellation is returned unwrapped so it classifies as cancelled.
func (p *Pipeline) run(ctx context.Context, inv *Invocation, tool string) (*Result, error) {
	stage := string(inv.Stage)
	p.collector.IncStageRun(stage)

	res, err := p.runner.Run(ctx, inv)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.collector.IncStageFailure(stage)
		return nil, &BuildError{Stage: inv.Stage, Tool: tool, Err: err}
	}

	p.logger.Debug("stage finished", map[string]any{
		"stage":       stage,
		"exit_code":   res.ExitCode,
		"timed_out":   res.TimedOut,
		"duration_ms": res.Duration.Milliseconds(),
	})

	switch {
	case res.TimedOut:
		p.collector.IncStageTimeout(stage)
		return nil, &BuildError{Stage: inv.Stage, Tool: tool, TimedOut: true, ExitCode: res.ExitCode, Output: string(res.Output)}
	case res.ExitCode != 0:
		p.collector.IncStageFailure(stage)
		return nil, &BuildError{Stage: inv.Stage, Tool: tool, ExitCode: res.ExitCode, Output: string(res.Output)}
	}
	return res, nil
}

// removeIfExists deletes files, ignoring ones that are already gone.
func removeIfExists(paths ...string) error {
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove stale %s: %w", path, err)
		}
	}
	return nil
}

// Clean removes the layout's generated files and returns those that existed.
func Clean(l Layout) ([]string, error) {
	var removed []string
	for _, path := range l.Generated() {
		err := os.Remove(path)
		switch {
		case err == nil:
			removed = append(removed, path)
		case errors.Is(err, os.ErrNotExist):
		default:
			return removed, fmt.Errorf("remove %s: %w", path, err)
		}
	}
	return removed, nil
}
