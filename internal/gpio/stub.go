//go:build !linux

package gpio

import "errors"

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// CdevChip is not available on non-Linux platforms.
type CdevChip struct{ unsupportedChip }

// NewCdevChip returns an error on non-Linux platforms.
func NewCdevChip(name string) (*CdevChip, error) {
	return nil, errUnsupported
}

// PeriphChip is not available on non-Linux platforms.
type PeriphChip struct{ unsupportedChip }

// NewPeriphChip returns an error on non-Linux platforms.
func NewPeriphChip(numbering Numbering) (*PeriphChip, error) {
	return nil, errUnsupported
}

type unsupportedChip struct{}

func (unsupportedChip) Configure(Pin, Direction, Level) error { return errUnsupported }
func (unsupportedChip) Read(Pin) (Level, error)               { return Low, errUnsupported }
func (unsupportedChip) Write(Pin, Level) error                { return errUnsupported }
func (unsupportedChip) Subscribe(Pin, Level) error            { return errUnsupported }
func (unsupportedChip) Unsubscribe(Pin, Level) error          { return nil }
func (unsupportedChip) Close() error                          { return nil }
