package capture

import (
	"errors"
	"fmt"
)

// Setup failures. The session is closed when one of these is returned.
var (
	ErrDeviceUnavailable   = errors.New("capture device unavailable")
	ErrUnsupportedFormat   = errors.New("unsupported pixel format")
	ErrInsufficientBuffers = errors.New("insufficient capture buffers")
)

// Runtime conditions.
var (
	// ErrNotReady means no filled buffer is available yet. Retry.
	ErrNotReady = errors.New("frame not ready")
	// ErrFrameIO means one frame was lost to an I/O error. The session keeps streaming.
	ErrFrameIO = errors.New("frame I/O error")
	// ErrDeviceLost means the device failed; the session has been closed.
	ErrDeviceLost = errors.New("capture device lost")
)

// Invariant violations. These indicate the buffer ring is already inconsistent.
var (
	ErrDoubleRelease = errors.New("buffer released twice")
	ErrInvalidIndex  = errors.New("buffer index out of range")
	ErrRingCorrupt   = errors.New("buffer ring out of sync with driver")
)

// ErrInvalidState is returned when an operation is not valid in the session's current state.
var ErrInvalidState = errors.New("invalid session state")

// Error records the failed operation and device path alongside the cause.
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("capture %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("capture %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err only means "try again".
func IsTransient(err error) bool {
	return errors.Is(err, ErrNotReady)
}

// IsRecoverable reports whether a frame was skipped but streaming continues.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrFrameIO)
}

// IsFatal reports whether err ended the session.
func IsFatal(err error) bool {
	for _, target := range []error{
		ErrDeviceLost, ErrRingCorrupt,
		ErrDeviceUnavailable, ErrUnsupportedFormat, ErrInsufficientBuffers,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
