// Package config loads flint.yaml.
//
// Every value is optional. Precedence is flags, then the config file, then
// the built-in defaults in Defaults.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pithecene-io/flint/device"
)

// Built-in defaults.
const (
	DefaultSource   = "main.c"
	DefaultBaud     = 115200
	DefaultProtocol = "stc89"
	DefaultModel    = "mcs51"
	DefaultIRAMSize = 256
	DefaultXRAMSize = 0
	DefaultCodeSize = 8192

	DefaultCompiler = "sdcc"
	DefaultPackager = "packihx"
	DefaultFlasher  = "stcgal"

	DefaultCompileTimeout = 60 * time.Second
	DefaultPackageTimeout = 30 * time.Second
	DefaultUploadTimeout  = 120 * time.Second
	DefaultPollInterval   = time.Second
	DefaultSettleDelay    = 2 * time.Second
)

// Config is the shape of flint.yaml.
type Config struct {
	Source   string         `yaml:"source"`
	Baud     int            `yaml:"baud"`
	Port     string         `yaml:"port"`
	Protocol string         `yaml:"protocol"`
	Tools    ToolsConfig    `yaml:"tools"`
	Compile  CompileConfig  `yaml:"compile"`
	Flash    FlashConfig    `yaml:"flash"`
	Timeouts TimeoutsConfig `yaml:"timeouts"`
	Session  SessionConfig  `yaml:"session"`
	Devices  DevicesConfig  `yaml:"devices"`
	Notify   NotifyConfig   `yaml:"notify"`
}

// ToolsConfig names the external executables.
type ToolsConfig struct {
	Compiler string `yaml:"compiler"`
	Packager string `yaml:"packager"`
	Flasher  string `yaml:"flasher"`
}

// CompileConfig shapes the compiler command line.
type CompileConfig struct {
	Model      string   `yaml:"model"`
	IRAMSize   *int     `yaml:"iram_size,omitempty"`
	XRAMSize   *int     `yaml:"xram_size,omitempty"`
	CodeSize   *int     `yaml:"code_size,omitempty"`
	ExtraFlags []string `yaml:"extra_flags,omitempty"`
}

// FlashConfig holds extra flash tool arguments.
type FlashConfig struct {
	ExtraArgs []string `yaml:"extra_args,omitempty"`
}

// TimeoutsConfig bounds each external stage.
type TimeoutsConfig struct {
	Compile Duration `yaml:"compile"`
	Package Duration `yaml:"package"`
	Upload  Duration `yaml:"upload"`
}

// SessionConfig tunes device polling and the reset wait.
type SessionConfig struct {
	PollInterval Duration `yaml:"poll_interval"`
	SettleDelay  Duration `yaml:"settle_delay"`
}

// DevicesConfig overrides the device pattern classes. Class A is always
// preferred over class B.
type DevicesConfig struct {
	ClassA []string `yaml:"class_a,omitempty"`
	ClassB []string `yaml:"class_b,omitempty"`
}

// NotifyConfig configures completion notifications. URL enables the
// webhook and RedisURL the Redis channel; both may be set. Timeout and
// Retries apply to each.
type NotifyConfig struct {
	URL      string            `yaml:"url"`
	Headers  map[string]string `yaml:"headers,omitempty"`
	RedisURL string            `yaml:"redis_url"`
	Channel  string            `yaml:"channel,omitempty"`
	Timeout  Duration          `yaml:"timeout,omitempty"`
	Retries  *int              `yaml:"retries,omitempty"`
}

// Enabled reports whether any notifier is configured.
func (n NotifyConfig) Enabled() bool {
	return n.URL != "" || n.RedisURL != ""
}

// Duration wraps time.Duration for YAML strings like "10s" or "1m30s".
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML renders the duration in its string form.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	iram, xram, code := DefaultIRAMSize, DefaultXRAMSize, DefaultCodeSize
	return &Config{
		Source:   DefaultSource,
		Baud:     DefaultBaud,
		Protocol: DefaultProtocol,
		Tools: ToolsConfig{
			Compiler: DefaultCompiler,
			Packager: DefaultPackager,
			Flasher:  DefaultFlasher,
		},
		Compile: CompileConfig{
			Model:    DefaultModel,
			IRAMSize: &iram,
			XRAMSize: &xram,
			CodeSize: &code,
		},
		Timeouts: TimeoutsConfig{
			Compile: Duration{DefaultCompileTimeout},
			Package: Duration{DefaultPackageTimeout},
			Upload:  Duration{DefaultUploadTimeout},
		},
		Session: SessionConfig{
			PollInterval: Duration{DefaultPollInterval},
			SettleDelay:  Duration{DefaultSettleDelay},
		},
	}
}

// fillDefaults sets every zero-valued field to its built-in default.
// A settle delay of zero is kept only when the file sets it explicitly,
// which Load tracks through settleSet.
func (c *Config) fillDefaults(settleSet bool) {
	d := Defaults()
	if c.Source == "" {
		c.Source = d.Source
	}
	if c.Baud == 0 {
		c.Baud = d.Baud
	}
	if c.Protocol == "" {
		c.Protocol = d.Protocol
	}
	if c.Tools.Compiler == "" {
		c.Tools.Compiler = d.Tools.Compiler
	}
	if c.Tools.Packager == "" {
		c.Tools.Packager = d.Tools.Packager
	}
	if c.Tools.Flasher == "" {
		c.Tools.Flasher = d.Tools.Flasher
	}
	if c.Compile.Model == "" {
		c.Compile.Model = d.Compile.Model
	}
	if c.Compile.IRAMSize == nil {
		c.Compile.IRAMSize = d.Compile.IRAMSize
	}
	if c.Compile.XRAMSize == nil {
		c.Compile.XRAMSize = d.Compile.XRAMSize
	}
	if c.Compile.CodeSize == nil {
		c.Compile.CodeSize = d.Compile.CodeSize
	}
	if c.Timeouts.Compile.Duration == 0 {
		c.Timeouts.Compile = d.Timeouts.Compile
	}
	if c.Timeouts.Package.Duration == 0 {
		c.Timeouts.Package = d.Timeouts.Package
	}
	if c.Timeouts.Upload.Duration == 0 {
		c.Timeouts.Upload = d.Timeouts.Upload
	}
	if c.Session.PollInterval.Duration == 0 {
		c.Session.PollInterval = d.Session.PollInterval
	}
	if c.Session.SettleDelay.Duration == 0 && !settleSet {
		c.Session.SettleDelay = d.Session.SettleDelay
	}
}

// Validate rejects values no command can run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Baud <= 0 {
		errs = append(errs, fmt.Errorf("baud must be positive, got %d", c.Baud))
	}
	for name, d := range map[string]time.Duration{
		"timeouts.compile":      c.Timeouts.Compile.Duration,
		"timeouts.package":      c.Timeouts.Package.Duration,
		"timeouts.upload":       c.Timeouts.Upload.Duration,
		"session.poll_interval": c.Session.PollInterval.Duration,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	if c.Session.SettleDelay.Duration < 0 {
		errs = append(errs, fmt.Errorf("session.settle_delay must not be negative, got %s", c.Session.SettleDelay))
	}
	for name, n := range map[string]*int{
		"compile.iram_size": c.Compile.IRAMSize,
		"compile.xram_size": c.Compile.XRAMSize,
		"compile.code_size": c.Compile.CodeSize,
	} {
		if n != nil && *n < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative, got %d", name, *n))
		}
	}
	if c.Notify.Retries != nil && *c.Notify.Retries < 0 {
		errs = append(errs, fmt.Errorf("notify.retries must not be negative, got %d", *c.Notify.Retries))
	}
	return errors.Join(errs...)
}

// CompileArgs returns the compiler flags that precede the source file.
func (c *Config) CompileArgs() []string {
	var args []string
	if c.Compile.Model != "" {
		args = append(args, "-m"+c.Compile.Model)
	}
	for _, opt := range []struct {
		flag string
		n    *int
	}{
		{"--iram-size", c.Compile.IRAMSize},
		{"--xram-size", c.Compile.XRAMSize},
		{"--code-size", c.Compile.CodeSize},
	} {
		if opt.n != nil {
			args = append(args, opt.flag, strconv.Itoa(*opt.n))
		}
	}
	return append(args, c.Compile.ExtraFlags...)
}

// DeviceClasses returns the configured pattern classes, or nil to select
// the platform defaults.
func (c *Config) DeviceClasses() []device.PatternClass {
	var classes []device.PatternClass
	if len(c.Devices.ClassA) > 0 {
		classes = append(classes, device.PatternClass{Name: "A", Patterns: c.Devices.ClassA})
	}
	if len(c.Devices.ClassB) > 0 {
		classes = append(classes, device.PatternClass{Name: "B", Patterns: c.Devices.ClassB})
	}
	return classes
}
