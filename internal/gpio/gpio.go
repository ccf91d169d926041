// Package gpio provides digital pin access with hardware abstraction.
// The real implementations use the Linux GPIO character device (gpiocdev) or
// periph.io. The fake implementation allows testing without hardware.
package gpio

import (
	"fmt"
	"strings"
)

// Level is the logic level of a digital line.
type Level bool

const (
	Low  Level = false
	High Level = true
)

// String returns "HIGH" or "LOW".
func (l Level) String() string {
	if l {
		return "HIGH"
	}
	return "LOW"
}

// ParseLevel accepts HIGH/LOW, 1/0 and ON/OFF in any case.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "HIGH", "1", "ON":
		return High, nil
	case "LOW", "0", "OFF":
		return Low, nil
	}
	return Low, fmt.Errorf("invalid level %q (want HIGH or LOW)", s)
}

// MarshalText encodes the level as HIGH or LOW.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText decodes HIGH or LOW, so levels can be written that way in
// YAML config files.
func (l *Level) UnmarshalText(b []byte) error {
	v, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// Set implements pflag.Value.
func (l *Level) Set(s string) error {
	return l.UnmarshalText([]byte(s))
}

// Type implements pflag.Value.
func (l *Level) Type() string {
	return "level"
}

// Pin identifies a digital line. Its meaning depends on the driver: a line
// offset (BCM number) for gpiocdev, a BCM or header number for periph.
type Pin int

// Direction is fixed when a pin is configured.
type Direction int

const (
	Input Direction = iota
	Output
)

func (d Direction) String() string {
	switch d {
	case Input:
		return "input"
	case Output:
		return "output"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// Chip is the GPIO subsystem used by the detector and the ring controller.
// Implementations must be safe for concurrent use: a ring session reads the
// hook pin and writes the ringer pin from different goroutines.
type Chip interface {
	// Configure claims a pin in the given direction. Outputs start at initial.
	Configure(pin Pin, dir Direction, initial Level) error

	// Read returns the current level of an input pin.
	Read(pin Pin) (Level, error)

	// Write drives an output pin.
	Write(pin Pin, level Level) error

	// Subscribe registers interest in pin reaching level. Only one
	// registration per pin+level may be active; a second returns
	// ErrAlreadySubscribed.
	Subscribe(pin Pin, level Level) error

	// Unsubscribe releases a registration. It is safe to call when none exists.
	Unsubscribe(pin Pin, level Level) error

	// Close drives outputs low and releases all lines.
	Close() error
}

// Pin definitions (physical header numbering, as the phone is wired)
const (
	DefaultPinRinger Pin = 11
	DefaultPinHook   Pin = 13
)

// Numbering selects how periph pin numbers are resolved.
type Numbering string

const (
	// NumberingBoard addresses pins by physical header position (P1_11).
	NumberingBoard Numbering = "board"
	// NumberingBCM addresses pins by SoC GPIO number (GPIO17).
	NumberingBCM Numbering = "bcm"
)
