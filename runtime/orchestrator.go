package runtime

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/pithecene-io/flint/adapter"
	"github.com/pithecene-io/flint/device"
	"github.com/pithecene-io/flint/flash"
	"github.com/pithecene-io/flint/log"
	"github.com/pithecene-io/flint/metrics"
	"github.com/pithecene-io/flint/toolchain"
	"github.com/pithecene-io/flint/types"
)

// notifyTimeout bounds publishing one completion event, retries included.
const notifyTimeout = 30 * time.Second

// Config is the resolved configuration of one command.
type Config struct {
	// Source is the firmware source file.
	Source string
	// Tools are the compiler and packager executables.
	Tools toolchain.Tools
	// CompileArgs precede the source on the compiler command line.
	CompileArgs []string
	// Flasher is the flash tool executable.
	Flasher string
	// Protocol is the flash tool's chip family (-P).
	Protocol string
	// FlashArgs are extra flash tool arguments.
	FlashArgs []string

	CompileTimeout time.Duration
	PackageTimeout time.Duration
	UploadTimeout  time.Duration

	// Baud is the default programming baud rate.
	Baud int
	// Port is the default explicit device. Empty selects auto-detection.
	Port string
	// PollInterval is the wait between scans while no device is present.
	PollInterval time.Duration
	// SettleDelay is the pause after the power-cycle prompt.
	SettleDelay time.Duration
	// Classes are the device pattern classes, in preference order.
	// Empty selects the platform defaults.
	Classes []device.PatternClass
}

// Deps are the orchestrator's collaborators. Zero values select the
// production implementation.
type Deps struct {
	Runner     toolchain.Runner
	LookPath   toolchain.LookPathFunc
	Locator    flash.Locator
	Flasher    flash.Flasher
	Sleep      flash.SleepFunc
	Observer   flash.Observer
	Enumerator device.Enumerator
	Notifier   adapter.Notifier
	Logger     *log.Logger
	Collector  *metrics.Collector
	Now        func() time.Time
}

// prechecker is implemented by flashers that can verify their tool
// without running it.
type prechecker interface {
	Precheck() error
}

// Orchestrator runs flint's commands over one source file.
type Orchestrator struct {
	cfg      Config
	deps     Deps
	layout   toolchain.Layout
	pipeline *toolchain.Pipeline
	devices  *device.Locator
	flasher  flash.Flasher
	logger   *log.Logger
}

// New validates cfg and wires the orchestrator.
func New(cfg Config, deps Deps) (*Orchestrator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	layout, err := toolchain.NewLayout(cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if deps.Logger == nil {
		deps.Logger = log.Nop()
	}
	if deps.Runner == nil {
		deps.Runner = toolchain.NewExecRunner(deps.Logger)
	}
	if deps.LookPath == nil {
		deps.LookPath = exec.LookPath
	}
	if deps.Enumerator == nil {
		deps.Enumerator = device.SystemEnumerator()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	devices := device.NewLocator(cfg.Classes...)
	if deps.Locator == nil {
		deps.Locator = devices
	}

	flasher := deps.Flasher
	if flasher == nil {
		flasher = flash.NewStageFlasher(flash.FlasherOptions{
			Tool:      cfg.Flasher,
			Protocol:  cfg.Protocol,
			ExtraArgs: cfg.FlashArgs,
			LookPath:  deps.LookPath,
		}, deps.Runner)
	}

	pipeline := toolchain.NewPipeline(toolchain.Options{
		Tools:          cfg.Tools,
		CompileArgs:    cfg.CompileArgs,
		CompileTimeout: cfg.CompileTimeout,
		PackageTimeout: cfg.PackageTimeout,
		LookPath:       deps.LookPath,
		Now:            deps.Now,
	}, deps.Runner, deps.Logger, deps.Collector)

	return &Orchestrator{
		cfg:      cfg,
		deps:     deps,
		layout:   layout,
		pipeline: pipeline,
		devices:  devices,
		flasher:  flasher,
		logger:   deps.Logger,
	}, nil
}

func (c Config) validate() error {
	var errs []error
	if c.Source == "" {
		errs = append(errs, errors.New("source file is required"))
	}
	if c.Baud <= 0 {
		errs = append(errs, fmt.Errorf("baud rate must be positive, got %d", c.Baud))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll interval must be positive, got %s", c.PollInterval))
	}
	if c.SettleDelay < 0 {
		errs = append(errs, fmt.Errorf("settle delay must not be negative, got %s", c.SettleDelay))
	}
	for _, class := range c.Classes {
		if len(class.Patterns) == 0 {
			errs = append(errs, fmt.Errorf("device class %q has no patterns", class.Name))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Layout returns the artifact layout of the source.
func (o *Orchestrator) Layout() toolchain.Layout {
	return o.layout
}

// BuildResult is the result of a build.
type BuildResult struct {
	Outcome  types.Outcome       `json:"outcome" yaml:"outcome"`
	Artifact *toolchain.Artifact `json:"artifact,omitempty" yaml:"artifact,omitempty"`
	Duration time.Duration       `json:"duration" yaml:"duration"`
	Metrics  *metrics.Snapshot   `json:"metrics,omitempty" yaml:"metrics,omitempty"`
}

// Build compiles and packages the source.
func (o *Orchestrator) Build(ctx context.Context) (*BuildResult, error) {
	start := o.deps.Now()
	artifact, err := o.pipeline.Build(ctx, o.layout)
	res := &BuildResult{
		Outcome:  Classify(err),
		Artifact: artifact,
		Duration: o.deps.Now().Sub(start),
		Metrics:  o.snapshot(),
	}
	if err != nil {
		o.logger.Warn("build failed", map[string]any{
			"source": o.layout.Source,
			"status": string(res.Outcome.Status),
			"error":  err.Error(),
		})
	}
	return res, err
}

// UploadOptions are per-invocation upload overrides.
type UploadOptions struct {
	// Port overrides the configured device. Empty keeps the config value.
	Port string
	// Baud overrides the configured baud rate when positive.
	Baud int
	// NoBuild flashes the last recorded build instead of rebuilding.
	NoBuild bool
}

// UploadResult is the result of an upload.
type UploadResult struct {
	Outcome  types.Outcome       `json:"outcome" yaml:"outcome"`
	Artifact *toolchain.Artifact `json:"artifact,omitempty" yaml:"artifact,omitempty"`
	Session  *flash.Result       `json:"session,omitempty" yaml:"session,omitempty"`
	Duration time.Duration       `json:"duration" yaml:"duration"`
	Metrics  *metrics.Snapshot   `json:"metrics,omitempty" yaml:"metrics,omitempty"`
}

// Upload builds the source (or loads the last build) and flashes it.
// A build failure returns before any flash session is created.
func (o *Orchestrator) Upload(ctx context.Context, opts UploadOptions) (*UploadResult, error) {
	start := o.deps.Now()
	res := &UploadResult{}

	err := o.upload(ctx, opts, res)

	res.Outcome = Classify(err)
	res.Duration = o.deps.Now().Sub(start)
	res.Metrics = o.snapshot()
	o.notify(ctx, res)
	return res, err
}

func (o *Orchestrator) upload(ctx context.Context, opts UploadOptions, res *UploadResult) error {
	baud := o.cfg.Baud
	if opts.Baud != 0 {
		baud = opts.Baud
	}
	if baud <= 0 {
		return fmt.Errorf("%w: baud rate must be positive, got %d", ErrInvalidConfig, baud)
	}
	port := o.cfg.Port
	if opts.Port != "" {
		port = opts.Port
	}

	// Fail on a missing flasher before spending time on a build.
	if p, ok := o.flasher.(prechecker); ok {
		if err := p.Precheck(); err != nil {
			return err
		}
	}

	artifact, err := o.artifact(ctx, opts.NoBuild)
	if err != nil {
		return err
	}
	res.Artifact = artifact

	session, err := flash.NewSession(flash.Config{
		Device:        port,
		Baud:          baud,
		Artifact:      artifact,
		PollInterval:  o.cfg.PollInterval,
		SettleDelay:   o.cfg.SettleDelay,
		UploadTimeout: o.cfg.UploadTimeout,
	}, flash.Deps{
		Locator:   o.deps.Locator,
		Flasher:   o.flasher,
		Sleep:     o.deps.Sleep,
		Observer:  o.deps.Observer,
		Logger:    o.logger,
		Collector: o.deps.Collector,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	result, err := session.Run(ctx)
	if err != nil {
		return err
	}
	res.Session = result
	return result.Err
}

func (o *Orchestrator) artifact(ctx context.Context, noBuild bool) (*toolchain.Artifact, error) {
	if !noBuild {
		return o.pipeline.Build(ctx, o.layout)
	}
	artifact, err := toolchain.LoadArtifact(o.layout)
	if err != nil {
		return nil, err
	}
	if err := artifact.Verify(); err != nil {
		return nil, err
	}
	return artifact, nil
}

// notify publishes the upload outcome. It runs even when ctx is cancelled
// and never changes the upload's result.
func (o *Orchestrator) notify(ctx context.Context, res *UploadResult) {
	if o.deps.Notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	event := &adapter.FlashCompletedEvent{
		EventType:  adapter.EventTypeFlashCompleted,
		Version:    types.Version,
		Source:     o.layout.Source,
		Outcome:    string(res.Outcome.Status),
		Message:    res.Outcome.Message,
		Timestamp:  o.deps.Now().UTC().Format(time.RFC3339),
		DurationMs: res.Duration.Milliseconds(),
	}
	if a := res.Artifact; a != nil {
		event.Image = a.ImagePath
		event.ImageDigest = a.ImageDigest
	}
	if s := res.Session; s != nil {
		event.SessionID = s.SessionID
		event.Device = s.Device
		event.Baud = s.Baud
		event.Polls = s.Polls
	}

	if err := o.deps.Notifier.Publish(ctx, event); err != nil {
		o.logger.Warn("failed to publish flash event", map[string]any{"error": err.Error()})
	}
}

// CleanResult lists the generated files that were removed.
type CleanResult struct {
	Outcome types.Outcome `json:"outcome" yaml:"outcome"`
	Removed []string      `json:"removed" yaml:"removed"`
}

// Clean removes every file the build generates for the source. Missing
// files are not errors.
func (o *Orchestrator) Clean() (*CleanResult, error) {
	removed, err := toolchain.Clean(o.layout)
	if removed == nil {
		removed = []string{}
	}
	return &CleanResult{Outcome: Classify(err), Removed: removed}, err
}

// DevicesResult lists the serial devices a session could bind.
type DevicesResult struct {
	Preferred  string                `json:"preferred,omitempty" yaml:"preferred,omitempty"`
	Candidates []device.Candidate    `json:"candidates" yaml:"candidates"`
	Classes    []device.PatternClass `json:"classes" yaml:"classes"`
}

// Devices scans for candidate devices and decorates them with USB details.
// It never fails: enumeration errors leave candidates undecorated.
func (o *Orchestrator) Devices() *DevicesResult {
	cands := device.Describe(o.devices.Candidates(), o.deps.Enumerator)
	if cands == nil {
		cands = []device.Candidate{}
	}
	res := &DevicesResult{Candidates: cands, Classes: o.devices.Classes()}
	if len(cands) > 0 {
		res.Preferred = cands[0].Path
	}
	return res
}

// ToolInfo reports how a configured tool resolves.
type ToolInfo struct {
	Role  string `json:"role" yaml:"role"`
	Tool  string `json:"tool" yaml:"tool"`
	Path  string `json:"path,omitempty" yaml:"path,omitempty"`
	Found bool   `json:"found" yaml:"found"`
}

// InfoResult describes the source's build state and the toolchain.
type InfoResult struct {
	Version  string              `json:"version" yaml:"version"`
	Source   string              `json:"source" yaml:"source"`
	Image    string              `json:"image" yaml:"image"`
	Manifest string              `json:"manifest" yaml:"manifest"`
	Artifact *toolchain.Artifact `json:"artifact,omitempty" yaml:"artifact,omitempty"`
	Fresh    bool                `json:"fresh" yaml:"fresh"`
	Reason   string              `json:"reason,omitempty" yaml:"reason,omitempty"`
	Tools    []ToolInfo          `json:"tools" yaml:"tools"`
}

// Info reports the last build of the source, whether it is still fresh,
// and whether each tool resolves. It invokes nothing.
func (o *Orchestrator) Info() *InfoResult {
	res := &InfoResult{
		Version:  types.Version,
		Source:   o.layout.Source,
		Image:    o.layout.Image(),
		Manifest: o.layout.Manifest(),
	}

	artifact, err := toolchain.LoadArtifact(o.layout)
	switch {
	case err != nil:
		res.Reason = err.Error()
	default:
		res.Artifact = artifact
		if err := artifact.Verify(); err != nil {
			res.Reason = err.Error()
		} else {
			res.Fresh = true
		}
	}

	for _, t := range []struct{ role, tool string }{
		{"compiler", o.cfg.Tools.Compiler},
		{"packager", o.cfg.Tools.Packager},
		{"flasher", o.cfg.Flasher},
	} {
		ti := ToolInfo{Role: t.role, Tool: t.tool}
		if t.tool != "" {
			if path, err := o.deps.LookPath(t.tool); err == nil {
				ti.Path, ti.Found = path, true
			}
		}
		res.Tools = append(res.Tools, ti)
	}
	return res
}

func (o *Orchestrator) snapshot() *metrics.Snapshot {
	if o.deps.Collector == nil {
		return nil
	}
	snap := o.deps.Collector.Snapshot()
	return &snap
}
