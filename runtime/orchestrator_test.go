package runtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.bug.st/serial/enumerator"

	"github.com/pithecene-io/flint/adapter"
	"github.com/pithecene-io/flint/device"
	"github.com/pithecene-io/flint/flash"
	"github.com/pithecene-io/flint/metrics"
	"github.com/pithecene-io/flint/toolchain"
	"github.com/pithecene-io/flint/types"
)

// stageRunner simulates sdcc, packihx and stcgal.
type stageRunner struct {
	mu    sync.Mutex
	calls []toolchain.Invocation

	compileExit int
	flashExit   int
}

func (r *stageRunner) Run(_ context.Context, inv *toolchain.Invocation) (*toolchain.Result, error) {
	r.mu.Lock()
	r.calls = append(r.calls, *inv)
	r.mu.Unlock()

	switch inv.Stage {
	case toolchain.StageCompile:
		if r.compileExit != 0 {
			return &toolchain.Result{ExitCode: r.compileExit, Output: []byte("main.c:1: syntax error\n")}, nil
		}
		src := filepath.Join(inv.Dir, inv.Args[len(inv.Args)-1])
		data, err := os.ReadFile(src)
		if err != nil {
			return nil, err
		}
		base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
		ihx := fmt.Sprintf(":IHX %x\n", data)
		return &toolchain.Result{}, os.WriteFile(filepath.Join(inv.Dir, base+".ihx"), []byte(ihx), 0o600)

	case toolchain.StagePackage:
		data, err := os.ReadFile(filepath.Join(inv.Dir, inv.Args[0]))
		if err != nil {
			return nil, err
		}
		_, _ = inv.Stdout.Write(bytes.ToUpper(data))
		return &toolchain.Result{}, nil

	case toolchain.StageFlash:
		if r.flashExit != 0 {
			return &toolchain.Result{ExitCode: r.flashExit, Output: []byte("Protocol error: no response\n")}, nil
		}
		return &toolchain.Result{Output: []byte("Writing flash: 100%\n")}, nil
	}
	return nil, fmt.Errorf("unexpected stage %s", inv.Stage)
}

func (r *stageRunner) stages() []toolchain.Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]toolchain.Stage, len(r.calls))
	for i, c := range r.calls {
		out[i] = c.Stage
	}
	return out
}

// appearingLocator finds device after `after` empty scans.
type appearingLocator struct {
	mu     sync.Mutex
	device string
	after  int
	scans  int
}

func (l *appearingLocator) Locate() (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.scans++
	if l.device == "" || l.scans <= l.after {
		return "", false
	}
	return l.device, true
}

func (l *appearingLocator) Exists(path string) bool { return path == l.device }

// recordingNotifier captures published events.
type recordingNotifier struct {
	mu     sync.Mutex
	events []*adapter.FlashCompletedEvent
	err    error
}

func (n *recordingNotifier) Publish(_ context.Context, ev *adapter.FlashCompletedEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return n.err
}

func (n *recordingNotifier) Close() error { return nil }

func lookPathWithout(missing ...string) toolchain.LookPathFunc {
	return func(file string) (string, error) {
		for _, m := range missing {
			if file == m {
				return "", exec.ErrNotFound
			}
		}
		return "/usr/bin/" + file, nil
	}
}

func instantSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	src := filepath.Join(dir, "main.c")
	if err := os.WriteFile(src, []byte("#include <8051.h>\nvoid main(void) { P1 = 0; }\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	return Config{
		Source:       src,
		Tools:        toolchain.Tools{Compiler: "sdcc", Packager: "packihx"},
		CompileArgs:  []string{"-mmcs51"},
		Flasher:      "stcgal",
		Protocol:     "stc89",
		Baud:         flash.DefaultBaud,
		PollInterval: time.Second,
		SettleDelay:  2 * time.Second,
		Classes:      []device.PatternClass{{Name: "usb", Patterns: []string{filepath.Join(dir, "ttyUSB*")}}},
	}
}

func testDeps(runner toolchain.Runner, locator flash.Locator) Deps {
	return Deps{
		Runner:     runner,
		LookPath:   lookPathWithout(),
		Locator:    locator,
		Sleep:      instantSleep,
		Enumerator: func() ([]*enumerator.PortDetails, error) { return nil, nil },
	}
}

func newOrchestrator(t *testing.T, cfg Config, deps Deps) *Orchestrator {
	t.Helper()
	o, err := New(cfg, deps)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return o
}

func TestUpload_EndToEndAfterPolling(t *testing.T) {
	runner := &stageRunner{}
	locator := &appearingLocator{device: "/dev/ttyUSB0", after: 3}
	notifier := &recordingNotifier{}
	var prompts []flash.Event

	deps := testDeps(runner, locator)
	deps.Notifier = notifier
	deps.Collector = metrics.NewCollector("upload", "main.c")
	deps.Observer = func(ev flash.Event) {
		if ev.To == flash.PhaseWaitingForReset {
			prompts = append(prompts, ev)
		}
	}

	o := newOrchestrator(t, testConfig(t), deps)
	res, err := o.Upload(t.Context(), UploadOptions{})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if res.Outcome.Status != types.OutcomeSuccess || ExitCode(res.Outcome.Status) != 0 {
		t.Errorf("Outcome = %+v", res.Outcome)
	}
	if res.Session == nil || res.Session.Polls != 3 || res.Session.Phase != flash.PhaseDone {
		t.Fatalf("Session = %+v", res.Session)
	}
	if len(prompts) != 1 || prompts[0].Device != "/dev/ttyUSB0" {
		t.Errorf("reset prompts = %+v", prompts)
	}

	want := []toolchain.Stage{toolchain.StageCompile, toolchain.StagePackage, toolchain.StageFlash}
	got := runner.stages()
	if len(got) != len(want) {
		t.Fatalf("stages = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("stages = %v, want %v", got, want)
		}
	}
	flashArgs := strings.Join(runner.calls[2].Args, " ")
	if wantArgs := "-P stc89 -p /dev/ttyUSB0 -b 115200 " + o.Layout().Image(); flashArgs != wantArgs {
		t.Errorf("flash args = %q, want %q", flashArgs, wantArgs)
	}

	if res.Metrics == nil || res.Metrics.PollCycles != 3 || res.Metrics.UploadSuccesses != 1 {
		t.Errorf("Metrics = %+v", res.Metrics)
	}

	if len(notifier.events) != 1 {
		t.Fatalf("events = %d, want 1", len(notifier.events))
	}
	ev := notifier.events[0]
	if ev.Outcome != "success" || ev.Device != "/dev/ttyUSB0" || ev.Polls != 3 || ev.SessionID == "" {
		t.Errorf("event = %+v", ev)
	}
}

func TestUpload_CompileFailureNeverStartsSession(t *testing.T) {
	runner := &stageRunner{compileExit: 1}
	locator := &appearingLocator{device: "/dev/ttyUSB0"}
	notifier := &recordingNotifier{}
	deps := testDeps(runner, locator)
	deps.Notifier = notifier

	o := newOrchestrator(t, testConfig(t), deps)
	res, err := o.Upload(t.Context(), UploadOptions{})

	var buildErr *toolchain.BuildError
	if !errors.As(err, &buildErr) || buildErr.Stage != toolchain.StageCompile {
		t.Fatalf("err = %v, want BuildError{compile}", err)
	}
	if res.Session != nil {
		t.Error("no session may exist after a build failure")
	}
	if locator.scans != 0 {
		t.Error("locator must not be consulted after a build failure")
	}
	if res.Outcome.Status != types.OutcomeBuildFailed || ExitCode(res.Outcome.Status) == 0 {
		t.Errorf("Outcome = %+v", res.Outcome)
	}
	if res.Outcome.Detail == "" {
		t.Error("compiler diagnostics should be carried in the outcome")
	}
	if _, statErr := os.Stat(o.Layout().Image()); !errors.Is(statErr, os.ErrNotExist) {
		t.Error("no image may exist after a compile failure")
	}
	if len(notifier.events) != 1 || notifier.events[0].Outcome != "build_failed" {
		t.Errorf("events = %+v", notifier.events)
	}
}

func TestUpload_MissingFlasherFailsBeforeBuild(t *testing.T) {
	runner := &stageRunner{}
	deps := testDeps(runner, &appearingLocator{device: "/dev/ttyUSB0"})
	deps.LookPath = lookPathWithout("stcgal")

	o := newOrchestrator(t, testConfig(t), deps)
	res, err := o.Upload(t.Context(), UploadOptions{})
	if !errors.Is(err, toolchain.ErrToolMissing) {
		t.Fatalf("err = %v, want ErrToolMissing", err)
	}
	if res.Outcome.Status != types.OutcomeToolMissing {
		t.Errorf("Status = %s", res.Outcome.Status)
	}
	if len(runner.stages()) != 0 {
		t.Errorf("no stage may run, got %v", runner.stages())
	}
}

func TestUpload_ManualPortMissing(t *testing.T) {
	runner := &stageRunner{}
	o := newOrchestrator(t, testConfig(t), testDeps(runner, &appearingLocator{device: "/dev/ttyUSB0"}))

	res, err := o.Upload(t.Context(), UploadOptions{Port: "/dev/ttyUSB5"})
	if !errors.Is(err, flash.ErrDeviceNotFound) {
		t.Fatalf("err = %v, want ErrDeviceNotFound", err)
	}
	if ExitCode(res.Outcome.Status) != ExitCodeDeviceNotFound {
		t.Errorf("Outcome = %+v", res.Outcome)
	}
	if res.Session.Polls != 0 {
		t.Error("manual mode must not poll")
	}
}

func TestUpload_FlashFailure(t *testing.T) {
	runner := &stageRunner{flashExit: 2}
	o := newOrchestrator(t, testConfig(t), testDeps(runner, &appearingLocator{device: "/dev/ttyUSB0"}))

	res, err := o.Upload(t.Context(), UploadOptions{Baud: 9600})
	if !errors.Is(err, flash.ErrUploadFailed) {
		t.Fatalf("err = %v, want ErrUploadFailed", err)
	}
	if res.Outcome.Status != types.OutcomeUploadFailed || !strings.Contains(res.Outcome.Detail, "Protocol error") {
		t.Errorf("Outcome = %+v", res.Outcome)
	}
	if res.Session.Baud != 9600 {
		t.Errorf("Baud = %d, want override 9600", res.Session.Baud)
	}
}

func TestUpload_InvalidBaudOverride(t *testing.T) {
	o := newOrchestrator(t, testConfig(t), testDeps(&stageRunner{}, &appearingLocator{}))
	res, err := o.Upload(t.Context(), UploadOptions{Baud: -1})
	if !errors.Is(err, ErrInvalidConfig) || res.Outcome.Status != types.OutcomeInvalidConfig {
		t.Errorf("err = %v, outcome = %+v", err, res.Outcome)
	}
}

func TestUpload_NoBuild(t *testing.T) {
	t.Run("without a previous build", func(t *testing.T) {
		runner := &stageRunner{}
		o := newOrchestrator(t, testConfig(t), testDeps(runner, &appearingLocator{device: "/dev/ttyUSB0"}))
		_, err := o.Upload(t.Context(), UploadOptions{NoBuild: true})
		if !errors.Is(err, toolchain.ErrNoArtifact) {
			t.Fatalf("err = %v, want ErrNoArtifact", err)
		}
		if len(runner.stages()) != 0 {
			t.Errorf("stages = %v, want none", runner.stages())
		}
	})

	t.Run("reuses a fresh build", func(t *testing.T) {
		runner := &stageRunner{}
		o := newOrchestrator(t, testConfig(t), testDeps(runner, &appearingLocator{device: "/dev/ttyUSB0"}))
		if _, err := o.Build(t.Context()); err != nil {
			t.Fatalf("Build: %v", err)
		}
		if _, err := o.Upload(t.Context(), UploadOptions{NoBuild: true}); err != nil {
			t.Fatalf("Upload: %v", err)
		}
		got := runner.stages()
		if got[len(got)-1] != toolchain.StageFlash || len(got) != 3 {
			t.Errorf("stages = %v, want one build then flash", got)
		}
	})

	t.Run("refuses a stale build", func(t *testing.T) {
		runner := &stageRunner{}
		cfg := testConfig(t)
		o := newOrchestrator(t, cfg, testDeps(runner, &appearingLocator{device: "/dev/ttyUSB0"}))
		if _, err := o.Build(t.Context()); err != nil {
			t.Fatalf("Build: %v", err)
		}
		if err := os.WriteFile(cfg.Source, []byte("void main(void) { for (;;); }\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		res, err := o.Upload(t.Context(), UploadOptions{NoBuild: true})
		if !errors.Is(err, toolchain.ErrStaleArtifact) {
			t.Fatalf("err = %v, want ErrStaleArtifact", err)
		}
		if ExitCode(res.Outcome.Status) != ExitCodeStaleArtifact {
			t.Errorf("Outcome = %+v", res.Outcome)
		}
	})
}

func TestUpload_CancelledWhilePolling(t *testing.T) {
	deps := testDeps(&stageRunner{}, &appearingLocator{})
	deps.Sleep = flash.Sleep
	cfg := testConfig(t)
	cfg.PollInterval = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	time.AfterFunc(60*time.Millisecond, cancel)

	res, err := newOrchestrator(t, cfg, deps).Upload(ctx, UploadOptions{})
	if !errors.Is(err, flash.ErrCancelled) {
		t.Fatalf("err = %v, want ErrCancelled", err)
	}
	if ExitCode(res.Outcome.Status) != ExitCodeCancelled {
		t.Errorf("Outcome = %+v", res.Outcome)
	}
}

func TestUpload_NotifierFailureKeepsOutcome(t *testing.T) {
	deps := testDeps(&stageRunner{}, &appearingLocator{device: "/dev/ttyUSB0"})
	deps.Notifier = &recordingNotifier{err: errors.New("hook down")}

	res, err := newOrchestrator(t, testConfig(t), deps).Upload(t.Context(), UploadOptions{})
	if err != nil || !res.Outcome.IsSuccess() {
		t.Errorf("err = %v, outcome = %+v", err, res.Outcome)
	}
}

func TestBuild_Idempotent(t *testing.T) {
	o := newOrchestrator(t, testConfig(t), testDeps(&stageRunner{}, &appearingLocator{}))

	first, err := o.Build(t.Context())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	img1, _ := os.ReadFile(first.Artifact.ImagePath)

	second, err := o.Build(t.Context())
	if err != nil {
		t.Fatalf("second Build: %v", err)
	}
	img2, _ := os.ReadFile(second.Artifact.ImagePath)

	if !bytes.Equal(img1, img2) || first.Artifact.ImageDigest != second.Artifact.ImageDigest {
		t.Error("unchanged source must yield an identical image")
	}
	if !second.Outcome.IsSuccess() {
		t.Errorf("Outcome = %+v", second.Outcome)
	}
}

func TestClean(t *testing.T) {
	o := newOrchestrator(t, testConfig(t), testDeps(&stageRunner{}, &appearingLocator{}))
	if _, err := o.Build(t.Context()); err != nil {
		t.Fatalf("Build: %v", err)
	}

	res, err := o.Clean()
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	// .ihx, .hex and the manifest
	if len(res.Removed) != 3 {
		t.Errorf("Removed = %v", res.Removed)
	}
	if _, err := os.Stat(o.Layout().Source); err != nil {
		t.Error("clean must never remove the source")
	}

	again, err := o.Clean()
	if err != nil || len(again.Removed) != 0 {
		t.Errorf("second Clean = %+v, %v", again, err)
	}
}

func TestDevices(t *testing.T) {
	cfg := testConfig(t)
	dir := filepath.Dir(cfg.Source)
	for _, name := range []string{"ttyUSB1", "ttyUSB0"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o600); err != nil {
			t.Fatal(err)
		}
	}
	deps := testDeps(&stageRunner{}, nil)
	deps.Enumerator = func() ([]*enumerator.PortDetails, error) {
		return []*enumerator.PortDetails{{Name: filepath.Join(dir, "ttyUSB0"), IsUSB: true, VID: "1A86", PID: "7523"}}, nil
	}

	res := newOrchestrator(t, cfg, deps).Devices()
	if res.Preferred != filepath.Join(dir, "ttyUSB0") {
		t.Errorf("Preferred = %q", res.Preferred)
	}
	if len(res.Candidates) != 2 || res.Candidates[0].VID != "1a86" {
		t.Errorf("Candidates = %+v", res.Candidates)
	}

	deps.Enumerator = func() ([]*enumerator.PortDetails, error) { return nil, errors.New("no sysfs") }
	if res := newOrchestrator(t, cfg, deps).Devices(); len(res.Candidates) != 2 {
		t.Errorf("enumeration failure must not hide candidates: %+v", res.Candidates)
	}
}

func TestInfo(t *testing.T) {
	deps := testDeps(&stageRunner{}, &appearingLocator{})
	deps.LookPath = lookPathWithout("stcgal")
	cfg := testConfig(t)
	o := newOrchestrator(t, cfg, deps)

	info := o.Info()
	if info.Fresh || info.Artifact != nil || info.Reason == "" {
		t.Errorf("Info before build = %+v", info)
	}
	if len(info.Tools) != 3 || !info.Tools[0].Found || info.Tools[2].Found {
		t.Errorf("Tools = %+v", info.Tools)
	}

	if _, err := o.Build(t.Context()); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if info := o.Info(); !info.Fresh || info.Artifact == nil {
		t.Errorf("Info after build = %+v", info)
	}

	if err := os.WriteFile(cfg.Source, []byte("// edited\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if info := o.Info(); info.Fresh || !strings.Contains(info.Reason, "changed") {
		t.Errorf("Info after edit = %+v", info)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no source", func(c *Config) { c.Source = "" }},
		{"zero baud", func(c *Config) { c.Baud = 0 }},
		{"zero poll interval", func(c *Config) { c.PollInterval = 0 }},
		{"negative settle delay", func(c *Config) { c.SettleDelay = -time.Second }},
		{"empty device class", func(c *Config) { c.Classes = []device.PatternClass{{Name: "a"}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(&cfg)
			_, err := New(cfg, Deps{})
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("err = %v, want ErrInvalidConfig", err)
			}
		})
	}
}
