package gpio

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is matched by every setup-time error: invalid pin,
	// wrong direction or duplicate registration. These are not retried.
	ErrConfiguration = errors.New("gpio configuration error")

	// ErrHardware is matched by every driver-level read or write failure.
	ErrHardware = errors.New("gpio hardware error")

	ErrAlreadySubscribed = fmt.Errorf("%w: pin already has an active registration for this level", ErrConfiguration)
	ErrNotConfigured     = fmt.Errorf("%w: pin not configured", ErrConfiguration)
	ErrDirection         = fmt.Errorf("%w: wrong pin direction", ErrConfiguration)
	ErrInvalidPin        = fmt.Errorf("%w: invalid pin", ErrConfiguration)
	ErrChipClosed        = fmt.Errorf("%w: chip closed", ErrConfiguration)
)

// IOError wraps a failed read or write at the driver boundary.
type IOError struct {
	Op  string // "read" or "write"
	Pin Pin
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("gpio %s pin %d: %v", e.Op, e.Pin, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Is reports IOError as ErrHardware so callers can use errors.Is.
func (e *IOError) Is(target error) bool {
	return target == ErrHardware
}
