package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/flint/adapter"
	"github.com/pithecene-io/flint/adapter/redis"
	"github.com/pithecene-io/flint/adapter/webhook"
	"github.com/pithecene-io/flint/cli/config"
	"github.com/pithecene-io/flint/cli/render"
	"github.com/pithecene-io/flint/iox"
	"github.com/pithecene-io/flint/log"
	"github.com/pithecene-io/flint/metrics"
	"github.com/pithecene-io/flint/runtime"
	"github.com/pithecene-io/flint/toolchain"
	"github.com/pithecene-io/flint/types"
)

// Options configures the commands built by NewApp.
type Options struct {
	// Commit is reported by the version command.
	Commit string
	// Deps are handed to every orchestrator. Zero values select the
	// production implementations; tests inject fakes here.
	Deps runtime.Deps
}

// env is what one command invocation works with.
type env struct {
	cfg      *config.Config
	orch     *runtime.Orchestrator
	console  *render.Console
	renderer *render.Renderer
	logger   *log.Logger
	notifier adapter.Notifier
	quiet    bool
}

// setup loads the config, applies flag overrides and wires the
// orchestrator. Failures are already reported on the console and returned
// as exit errors.
func setup(c *cli.Context, opts Options) (*env, error) {
	return setupWith(c, opts, nil)
}

// wireFunc adjusts the orchestrator's deps for one command once the config
// and console exist. An error is reported like a config error.
type wireFunc func(cfg *config.Config, console *render.Console, deps *runtime.Deps) error

// setupWith is setup with a hook that wires command-specific deps.
func setupWith(c *cli.Context, opts Options, wire wireFunc) (*env, error) {
	console := render.NewConsole(c.App.ErrWriter, c.Bool("no-color"), c.Bool("quiet"))

	renderer, err := render.NewRenderer(c)
	if err != nil {
		return nil, exit(console, fmt.Errorf("%w: %w", runtime.ErrInvalidConfig, err))
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return nil, exit(console, fmt.Errorf("%w: %w", runtime.ErrInvalidConfig, err))
	}
	if c.IsSet("source") {
		cfg.Source = c.String("source")
	}

	verbose := c.Bool("verbose")
	deps := opts.Deps
	if deps.Logger == nil {
		deps.Logger = log.NewLogger(log.Context{Command: c.Command.Name, Source: cfg.Source}, verbose)
	}
	if deps.Collector == nil && verbose {
		deps.Collector = metrics.NewCollector(c.Command.Name, cfg.Source)
	}
	if wire != nil {
		if err := wire(cfg, console, &deps); err != nil {
			return nil, exit(console, err)
		}
	}

	deps.Logger.Sugar().Debugf("source %s, baud %d, port %q", cfg.Source, cfg.Baud, cfg.Port)

	orch, err := runtime.New(orchestratorConfig(cfg), deps)
	if err != nil {
		if deps.Notifier != nil {
			iox.DiscardClose(deps.Notifier)
		}
		return nil, exit(console, err)
	}

	return &env{
		cfg:      cfg,
		orch:     orch,
		console:  console,
		renderer: renderer,
		logger:   deps.Logger,
		notifier: deps.Notifier,
		quiet:    c.Bool("quiet"),
	}, nil
}

// close flushes the logger and releases the notifier.
func (e *env) close() {
	iox.DiscardErr(e.logger.Sync)
	if e.notifier != nil {
		iox.DiscardClose(e.notifier)
	}
}

// loadConfig requires the file only when --config was given explicitly.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	if c.IsSet("config") {
		return config.Load(path)
	}
	return config.LoadOptional(path)
}

// wireNotifier sets deps.Notifier from the notify config unless one was
// injected.
func wireNotifier(cfg *config.Config, deps *runtime.Deps) error {
	if deps.Notifier != nil || !cfg.Notify.Enabled() {
		return nil
	}
	notifier, err := newNotifier(cfg.Notify)
	if err != nil {
		return fmt.Errorf("%w: %w", runtime.ErrInvalidConfig, err)
	}
	deps.Notifier = notifier
	return nil
}

// newNotifier builds the configured notifiers, fanned out when both the
// webhook and Redis are set.
func newNotifier(nc config.NotifyConfig) (adapter.Notifier, error) {
	retry := func(retries int) adapter.Retry {
		if nc.Retries != nil {
			retries = *nc.Retries
		}
		return adapter.Retry{Retries: retries}
	}

	var notifiers adapter.Fanout
	if nc.URL != "" {
		n, err := webhook.New(webhook.Config{
			URL:     nc.URL,
			Headers: nc.Headers,
			Timeout: nc.Timeout.Duration,
			Retry:   retry(webhook.DefaultRetries),
		})
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, n)
	}
	if nc.RedisURL != "" {
		n, err := redis.New(redis.Config{
			URL:     nc.RedisURL,
			Channel: nc.Channel,
			Timeout: nc.Timeout.Duration,
			Retry:   retry(redis.DefaultRetries),
		})
		if err != nil {
			return nil, errors.Join(err, notifiers.Close())
		}
		notifiers = append(notifiers, n)
	}
	if len(notifiers) == 1 {
		return notifiers[0], nil
	}
	return notifiers, nil
}

func orchestratorConfig(cfg *config.Config) runtime.Config {
	return runtime.Config{
		Source: cfg.Source,
		Tools: toolchain.Tools{
			Compiler: cfg.Tools.Compiler,
			Packager: cfg.Tools.Packager,
		},
		CompileArgs:    cfg.CompileArgs(),
		Flasher:        cfg.Tools.Flasher,
		Protocol:       cfg.Protocol,
		FlashArgs:      cfg.Flash.ExtraArgs,
		CompileTimeout: cfg.Timeouts.Compile.Duration,
		PackageTimeout: cfg.Timeouts.Package.Duration,
		UploadTimeout:  cfg.Timeouts.Upload.Duration,
		Baud:           cfg.Baud,
		Port:           cfg.Port,
		PollInterval:   cfg.Session.PollInterval.Duration,
		SettleDelay:    cfg.Session.SettleDelay.Duration,
		Classes:        cfg.DeviceClasses(),
	}
}

// signalContext cancels on SIGINT or SIGTERM.
func signalContext(c *cli.Context) (context.Context, context.CancelFunc) {
	parent := c.Context
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// finish renders the result and maps the outcome to an exit error.
// Failures are always reported on the console; the rendered result is
// skipped under --quiet.
func (e *env) finish(outcome types.Outcome, result any) error {
	if !e.quiet {
		if err := e.renderer.Render(result); err != nil {
			return err
		}
	}
	e.console.Outcome(outcome)
	if outcome.IsSuccess() {
		return nil
	}
	return cli.Exit("", runtime.ExitCode(outcome.Status))
}

// exit reports err on the console and returns the matching exit error.
func exit(console *render.Console, err error) error {
	outcome := runtime.Classify(err)
	console.Outcome(outcome)
	return cli.Exit("", runtime.ExitCode(outcome.Status))
}
