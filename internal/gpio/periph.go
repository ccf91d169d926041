//go:build linux

package gpio

import (
	"fmt"
	"sync"

	pgpio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// PeriphChip drives pins through periph.io. Unlike CdevChip it can address
// pins by their header position, which is how the phone was wired.
type PeriphChip struct {
	numbering Numbering
	subs      subscriptions

	mu     sync.Mutex
	pins   map[Pin]*periphPin
	closed bool
}

type periphPin struct {
	io  pgpio.PinIO
	dir Direction
}

// NewPeriphChip initialises the periph host drivers.
func NewPeriphChip(numbering Numbering) (*PeriphChip, error) {
	switch numbering {
	case NumberingBoard, NumberingBCM:
	default:
		return nil, fmt.Errorf("%w: unknown pin numbering %q", ErrConfiguration, numbering)
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init periph host: %w", err)
	}
	return &PeriphChip{
		numbering: numbering,
		pins:      make(map[Pin]*periphPin),
	}, nil
}

func (c *PeriphChip) pinName(pin Pin) string {
	if c.numbering == NumberingBoard {
		return fmt.Sprintf("P1_%d", pin)
	}
	return fmt.Sprintf("GPIO%d", pin)
}

// Configure resolves the pin by name and sets its direction.
func (c *PeriphChip) Configure(pin Pin, dir Direction, initial Level) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("configure pin %d: %w", pin, ErrChipClosed)
	}
	if _, ok := c.pins[pin]; ok {
		return fmt.Errorf("configure pin %d: %w: already configured", pin, ErrConfiguration)
	}
	p := gpioreg.ByName(c.pinName(pin))
	if p == nil {
		return fmt.Errorf("configure pin %s: %w", c.pinName(pin), ErrInvalidPin)
	}

	switch dir {
	case Input:
		if err := p.In(pgpio.PullDown, pgpio.NoEdge); err != nil {
			return fmt.Errorf("configure pin %s as input: %w", c.pinName(pin), err)
		}
	case Output:
		if err := p.Out(pgpio.Level(initial)); err != nil {
			return fmt.Errorf("configure pin %s as output: %w", c.pinName(pin), err)
		}
	default:
		return fmt.Errorf("configure pin %d as %s: %w", pin, dir, ErrDirection)
	}
	c.pins[pin] = &periphPin{io: p, dir: dir}
	return nil
}

func (c *PeriphChip) lookup(pin Pin, dir Direction) (pgpio.PinIO, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrChipClosed
	}
	p, ok := c.pins[pin]
	if !ok {
		return nil, ErrNotConfigured
	}
	if p.dir != dir {
		return nil, ErrDirection
	}
	return p.io, nil
}

// Read returns the pin level. periph reports no read errors; a pin that
// cannot be read returns Low.
func (c *PeriphChip) Read(pin Pin) (Level, error) {
	p, err := c.lookup(pin, Input)
	if err != nil {
		return Low, fmt.Errorf("read pin %d: %w", pin, err)
	}
	return Level(p.Read()), nil
}

// Write drives the pin.
func (c *PeriphChip) Write(pin Pin, level Level) error {
	p, err := c.lookup(pin, Output)
	if err != nil {
		return fmt.Errorf("write pin %d: %w", pin, err)
	}
	if err := p.Out(pgpio.Level(level)); err != nil {
		return &IOError{Op: "write", Pin: pin, Err: err}
	}
	return nil
}

// Subscribe registers pin+level for an input pin.
func (c *PeriphChip) Subscribe(pin Pin, level Level) error {
	if _, err := c.lookup(pin, Input); err != nil {
		return fmt.Errorf("subscribe pin %d: %w", pin, err)
	}
	return c.subs.add(pin, level)
}

// Unsubscribe releases pin+level. No-op if not registered.
func (c *PeriphChip) Unsubscribe(pin Pin, level Level) error {
	c.subs.remove(pin, level)
	return nil
}

// Close drives outputs low and returns every pin to input with pull-down.
// Later calls on the chip fail with ErrChipClosed.
func (c *PeriphChip) Close() error {
	c.subs.clear()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	var errs []error
	for pin, p := range c.pins {
		if p.dir == Output {
			if err := p.io.Out(pgpio.Low); err != nil {
				errs = append(errs, fmt.Errorf("drive pin %d low: %w", pin, err))
			}
		}
		if err := p.io.In(pgpio.PullDown, pgpio.NoEdge); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", pin, err))
		}
	}
	c.pins = nil

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
