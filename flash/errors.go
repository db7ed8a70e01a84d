package flash

import (
	"errors"
	"fmt"

	"github.com/pithecene-io/flint/toolchain"
)

// Sentinel errors for classification. Use errors.Is(err, ErrXxx).
var (
	// ErrDeviceNotFound indicates an explicit device path does not exist.
	ErrDeviceNotFound = errors.New("device not found")

	// ErrCancelled indicates the operator interrupted polling, the reset
	// wait or the upload.
	ErrCancelled = errors.New("cancelled")

	// ErrUploadFailed matches every UploadError.
	ErrUploadFailed = errors.New("upload failed")

	// ErrSessionUsed is returned by Run on a session that already ran.
	ErrSessionUsed = errors.New("flash session already ran")
)

// DeviceNotFoundError names the device path that was checked.
type DeviceNotFoundError struct {
	Path string
}

func (e *DeviceNotFoundError) Error() string {
	return fmt.Sprintf("serial device %s not found (check the adapter cable or pass a different --port)", e.Path)
}

// Is matches ErrDeviceNotFound.
func (e *DeviceNotFoundError) Is(target error) bool {
	return target == ErrDeviceNotFound
}

// UploadError reports a failed flash stage.
type UploadError struct {
	// Device is the serial device the upload targeted.
	Device string
	// Tool is the flasher executable.
	Tool string
	// ExitCode is the flasher's exit status when it ran to completion.
	ExitCode int
	// TimedOut is set when the flasher exceeded its timeout.
	TimedOut bool
	// Output is the flasher's captured output.
	Output string
	// Err is the underlying cause when the failure was not an exit status.
	Err error
}

func (e *UploadError) Error() string {
	switch {
	case e.TimedOut:
		return fmt.Sprintf("upload to %s timed out (%s); was the chip power-cycled?", e.Device, e.Tool)
	case e.Err != nil:
		return fmt.Sprintf("upload to %s failed: %v", e.Device, e.Err)
	default:
		return fmt.Sprintf("upload to %s failed: %s exited with status %d", e.Device, e.Tool, e.ExitCode)
	}
}

// Unwrap returns the underlying cause.
func (e *UploadError) Unwrap() error {
	return e.Err
}

// Is matches ErrUploadFailed, and toolchain.ErrTimeout when timed out.
func (e *UploadError) Is(target error) bool {
	switch target {
	case ErrUploadFailed:
		return true
	case toolchain.ErrTimeout:
		return e.TimedOut
	default:
		return false
	}
}

// cancelled wraps a context error as ErrCancelled, keeping both in the chain.
func cancelled(phase Phase, err error) error {
	return fmt.Errorf("%w during %s: %w", ErrCancelled, phase, err)
}
