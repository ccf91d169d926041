//go:build linux

package gpio

import (
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"
)

// CdevChip drives lines through the Linux GPIO character device.
// Pins are line offsets on the chip (BCM numbers on a Raspberry Pi).
type CdevChip struct {
	subs subscriptions

	mu     sync.Mutex
	chip   *gpiocdev.Chip
	lines  map[Pin]*cdevLine
	closed bool
}

type cdevLine struct {
	line *gpiocdev.Line
	dir  Direction
}

// NewCdevChip opens the named chip, e.g. "gpiochip0".
func NewCdevChip(name string) (*CdevChip, error) {
	chip, err := gpiocdev.NewChip(name)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", name, err)
	}
	return &CdevChip{
		chip:  chip,
		lines: make(map[Pin]*cdevLine),
	}, nil
}

// Configure requests the line. Inputs get a pull-down to match Pi boot
// defaults, which is also what keeps an open hook switch reading LOW.
func (c *CdevChip) Configure(pin Pin, dir Direction, initial Level) error {
	if pin < 0 {
		return fmt.Errorf("configure pin %d: %w", pin, ErrInvalidPin)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("configure pin %d: %w", pin, ErrChipClosed)
	}
	if _, ok := c.lines[pin]; ok {
		return fmt.Errorf("configure pin %d: %w: already configured", pin, ErrConfiguration)
	}

	var opts []gpiocdev.LineReqOption
	switch dir {
	case Input:
		opts = append(opts, gpiocdev.AsInput, gpiocdev.WithPullDown)
	case Output:
		opts = append(opts, gpiocdev.AsOutput(levelValue(initial)))
	default:
		return fmt.Errorf("configure pin %d as %s: %w", pin, dir, ErrDirection)
	}
	line, err := c.chip.RequestLine(int(pin), opts...)
	if err != nil {
		return fmt.Errorf("request pin %d: %w: %v", pin, ErrInvalidPin, err)
	}
	c.lines[pin] = &cdevLine{line: line, dir: dir}
	return nil
}

func (c *CdevChip) lookup(pin Pin, dir Direction) (*gpiocdev.Line, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrChipClosed
	}
	l, ok := c.lines[pin]
	if !ok {
		return nil, ErrNotConfigured
	}
	if l.dir != dir {
		return nil, ErrDirection
	}
	return l.line, nil
}

// Read returns the line value.
func (c *CdevChip) Read(pin Pin) (Level, error) {
	line, err := c.lookup(pin, Input)
	if err != nil {
		return Low, fmt.Errorf("read pin %d: %w", pin, err)
	}
	v, err := line.Value()
	if err != nil {
		return Low, &IOError{Op: "read", Pin: pin, Err: err}
	}
	return v != 0, nil
}

// Write sets the line value.
func (c *CdevChip) Write(pin Pin, level Level) error {
	line, err := c.lookup(pin, Output)
	if err != nil {
		return fmt.Errorf("write pin %d: %w", pin, err)
	}
	if err := line.SetValue(levelValue(level)); err != nil {
		return &IOError{Op: "write", Pin: pin, Err: err}
	}
	return nil
}

// Subscribe registers pin+level for an input line.
func (c *CdevChip) Subscribe(pin Pin, level Level) error {
	if _, err := c.lookup(pin, Input); err != nil {
		return fmt.Errorf("subscribe pin %d: %w", pin, err)
	}
	return c.subs.add(pin, level)
}

// Unsubscribe releases pin+level. No-op if not registered.
func (c *CdevChip) Unsubscribe(pin Pin, level Level) error {
	c.subs.remove(pin, level)
	return nil
}

// Close drives outputs low, then reconfigures every line to input with
// pull-down (matching Pi boot defaults) before releasing it, so the ringer
// is never left energised across a restart. Later calls on the chip fail
// with ErrChipClosed; closing again is a no-op.
func (c *CdevChip) Close() error {
	c.subs.clear()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	var errs []error
	for pin, l := range c.lines {
		if l.dir == Output {
			if err := l.line.SetValue(0); err != nil {
				errs = append(errs, fmt.Errorf("drive pin %d low: %w", pin, err))
			}
		}
		if err := l.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", pin, err))
		}
		if err := l.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", pin, err))
		}
	}
	c.lines = nil
	if c.chip != nil {
		if err := c.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		c.chip = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

func levelValue(l Level) int {
	if l {
		return 1
	}
	return 0
}
