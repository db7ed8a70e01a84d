package flash

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pithecene-io/flint/log"
	"github.com/pithecene-io/flint/metrics"
)

// Locator finds serial devices. device.Locator satisfies it.
type Locator interface {
	// Locate returns the preferred device, or false if none is present.
	Locate() (string, bool)
	// Exists reports whether an explicit device path is present.
	Exists(path string) bool
}

// SleepFunc waits for d or until ctx is done, returning ctx.Err() in the
// latter case.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the production SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Event describes one phase transition.
type Event struct {
	SessionID string
	From      Phase
	To        Phase
	// Device is the bound device path, once known.
	Device string
	// Polls is the number of empty scans so far.
	Polls int
	// SettleDelay is set on entry to waiting_for_reset.
	SettleDelay time.Duration
	// Err is set on entry to failed.
	Err error
}

// Observer is notified synchronously of every transition. The CLI uses it
// to print the power-cycle prompt on entry to waiting_for_reset.
type Observer func(Event)

// Deps are the session's collaborators.
type Deps struct {
	Locator Locator
	Flasher Flasher
	// Sleep defaults to Sleep.
	Sleep SleepFunc
	// Observer may be nil.
	Observer Observer
	// Logger defaults to log.Nop().
	Logger *log.Logger
	// Collector may be nil.
	Collector *metrics.Collector
}

// Result is the terminal state of a session.
type Result struct {
	SessionID string        `json:"session_id" yaml:"session_id"`
	Phase     Phase         `json:"phase" yaml:"phase"`
	Device    string        `json:"device,omitempty" yaml:"device,omitempty"`
	Baud      int           `json:"baud" yaml:"baud"`
	Manual    bool          `json:"manual" yaml:"manual"`
	Polls     int           `json:"polls" yaml:"polls"`
	Waited    time.Duration `json:"waited" yaml:"waited"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
	History   []Phase       `json:"history" yaml:"history"`
	Err       error         `json:"-" yaml:"-"`
}

// Session is the run-state of one upload attempt. It is single-use and
// not safe for concurrent use.
type Session struct {
	id   string
	cfg  Config
	deps Deps

	phase   Phase
	device  string
	polls   int
	waited  time.Duration
	history []Phase
	ran     bool
}

// NewSession validates cfg and creates a session in the idle phase.
func NewSession(cfg Config, deps Deps) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flash config: %w", err)
	}
	if cfg.UploadTimeout == 0 {
		cfg.UploadTimeout = DefaultUploadTimeout
	}
	if deps.Locator == nil {
		return nil, errors.New("flash session requires a locator")
	}
	if deps.Flasher == nil {
		return nil, errors.New("flash session requires a flasher")
	}
	if deps.Sleep == nil {
		deps.Sleep = Sleep
	}
	if deps.Logger == nil {
		deps.Logger = log.Nop()
	}

	id := uuid.NewString()
	deps.Logger = deps.Logger.With("session_id", id)

	return &Session{
		id:      id,
		cfg:     cfg,
		deps:    deps,
		phase:   PhaseIdle,
		history: []Phase{PhaseIdle},
	}, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Phase returns the current phase.
func (s *Session) Phase() Phase { return s.phase }

// Run drives the session to a terminal phase. Failures are reported in
// Result.Err; the returned error is only ErrSessionUsed.
func (s *Session) Run(ctx context.Context) (*Result, error) {
	if s.ran {
		return nil, ErrSessionUsed
	}
	s.ran = true
	start := time.Now()

	err := s.drive(ctx)
	if err != nil {
		s.fail(err)
	}

	return &Result{
		SessionID: s.id,
		Phase:     s.phase,
		Device:    s.device,
		Baud:      s.cfg.Baud,
		Manual:    s.cfg.Manual(),
		Polls:     s.polls,
		Waited:    s.waited,
		Duration:  time.Since(start),
		History:   append([]Phase(nil), s.history...),
		Err:       err,
	}, nil
}

func (s *Session) drive(ctx context.Context) error {
	// Never flash an image that no longer matches its source.
	if err := s.cfg.Artifact.Verify(); err != nil {
		return err
	}

	s.transition(PhaseLocating)
	device, err := s.locate(ctx)
	if err != nil {
		return err
	}
	s.device = device

	s.transition(PhaseWaitingForReset)
	if err := s.wait(ctx, s.cfg.SettleDelay); err != nil {
		return cancelled(s.phase, err)
	}

	s.transition(PhaseUploading)
	s.deps.Collector.IncUploadAttempt()
	err = s.deps.Flasher.Flash(ctx, Request{
		Device:  s.device,
		Baud:    s.cfg.Baud,
		Image:   s.cfg.Artifact.ImagePath,
		Timeout: s.cfg.UploadTimeout,
	})
	if err != nil {
		s.deps.Collector.IncUploadFailure()
		return s.uploadError(ctx, err)
	}

	s.deps.Collector.IncUploadSuccess()
	s.transition(PhaseDone)
	return nil
}

// locate binds a device. Manual mode checks presence once; auto mode
// alternates locating and polling until a device appears or ctx ends.
func (s *Session) locate(ctx context.Context) (string, error) {
	if s.cfg.Manual() {
		if !s.deps.Locator.Exists(s.cfg.Device) {
			return "", &DeviceNotFoundError{Path: s.cfg.Device}
		}
		return s.cfg.Device, nil
	}

	for {
		if device, ok := s.deps.Locator.Locate(); ok {
			return device, nil
		}

		s.transition(PhasePolling)
		s.polls++
		s.deps.Collector.IncPollCycle()
		if s.polls == 1 {
			s.deps.Logger.Info("no serial device found; waiting for adapter", map[string]any{
				"poll_interval": s.cfg.PollInterval.String(),
			})
		}
		if err := s.wait(ctx, s.cfg.PollInterval); err != nil {
			return "", cancelled(s.phase, err)
		}
		s.transition(PhaseLocating)
	}
}

func (s *Session) wait(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.deps.Sleep(ctx, d); err != nil {
		return err
	}
	s.waited += d
	return nil
}

// uploadError normalizes a flasher error. Caller cancellation is reported
// as ErrCancelled; anything else becomes an UploadError.
func (s *Session) uploadError(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return cancelled(s.phase, err)
	}
	var uploadErr *UploadError
	if errors.As(err, &uploadErr) {
		return err
	}
	if errors.Is(err, ErrUploadFailed) {
		return err
	}
	return &UploadError{Device: s.device, Err: err}
}

func (s *Session) transition(to Phase) {
	s.emit(to, nil)
}

func (s *Session) fail(err error) {
	s.emit(PhaseFailed, err)
}

func (s *Session) emit(to Phase, err error) {
	from := s.phase
	mustTransition(from, to)
	s.phase = to
	s.history = append(s.history, to)

	fields := map[string]any{"from": string(from), "to": string(to)}
	if s.device != "" {
		fields["device"] = s.device
	}
	if err != nil {
		fields["error"] = err.Error()
		s.deps.Logger.Warn("flash session failed", fields)
	} else {
		s.deps.Logger.Debug("flash session transition", fields)
	}

	if s.deps.Observer == nil {
		return
	}
	ev := Event{
		SessionID: s.id,
		From:      from,
		To:        to,
		Device:    s.device,
		Polls:     s.polls,
		Err:       err,
	}
	if to == PhaseWaitingForReset {
		ev.SettleDelay = s.cfg.SettleDelay
	}
	s.deps.Observer(ev)
}
