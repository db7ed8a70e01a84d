package flash

import (
	"errors"
	"fmt"
	"time"

	"github.com/pithecene-io/flint/toolchain"
)

// Defaults for session timing and the serial link.
const (
	DefaultBaud          = 115200
	DefaultPollInterval  = time.Second
	DefaultSettleDelay   = 2 * time.Second
	DefaultUploadTimeout = 120 * time.Second
)

// Config is the immutable input of one flash attempt.
type Config struct {
	// Device is the explicit serial device. Empty selects auto-detection.
	Device string
	// Baud is the programming baud rate. It is never negotiated.
	Baud int
	// Artifact is the image to flash.
	Artifact *toolchain.Artifact
	// PollInterval is the wait between scans while no device is present.
	PollInterval time.Duration
	// SettleDelay is the pause after the power-cycle prompt. The chip only
	// listens for the programmer briefly after power-on and gives no
	// software-visible signal, so this is a fixed wait.
	SettleDelay time.Duration
	// UploadTimeout bounds the flash tool run. Zero selects
	// DefaultUploadTimeout.
	UploadTimeout time.Duration
}

// Manual reports whether the config names an explicit device.
func (c Config) Manual() bool {
	return c.Device != ""
}

// Validate rejects configs a session cannot run.
func (c Config) Validate() error {
	var errs []error
	if c.Baud <= 0 {
		errs = append(errs, fmt.Errorf("baud rate must be positive, got %d", c.Baud))
	}
	if c.Artifact == nil {
		errs = append(errs, errors.New("artifact is required"))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll interval must be positive, got %s", c.PollInterval))
	}
	if c.SettleDelay < 0 {
		errs = append(errs, fmt.Errorf("settle delay must not be negative, got %s", c.SettleDelay))
	}
	if c.UploadTimeout < 0 {
		errs = append(errs, fmt.Errorf("upload timeout must not be negative, got %s", c.UploadTimeout))
	}
	return errors.Join(errs...)
}
