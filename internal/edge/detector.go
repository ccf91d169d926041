// Package edge turns a polled input pin into an awaitable, debounced event.
package edge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/sweeney/phonehack/internal/gpio"
	"github.com/sweeney/phonehack/internal/logging"
	"github.com/sweeney/phonehack/internal/logic"
)

// State is the lifecycle state of a Detector.
type State int

const (
	StateArmed State = iota
	StateDebouncing
	StateResolved
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateArmed:
		return "ARMED"
	case StateDebouncing:
		return "DEBOUNCING"
	case StateResolved:
		return "RESOLVED"
	case StateCancelled:
		return "CANCELLED"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var (
	// ErrSpent is returned by Wait on a non-reusable detector that has
	// already resolved, been cancelled or failed.
	ErrSpent = errors.New("edge: detector is spent")
	// ErrBusy is returned when Wait is called while another Wait is running.
	ErrBusy = errors.New("edge: wait already in progress")
	// ErrClosed is returned by Wait after Close.
	ErrClosed = errors.New("edge: detector closed")
)

// Config describes what a Detector waits for.
type Config struct {
	Name     string // used in log lines only
	Pin      gpio.Pin
	Level    gpio.Level
	Poll     time.Duration // > 0
	Debounce time.Duration // >= 0
	Reusable bool
}

func (c Config) label() string {
	if c.Name != "" {
		return c.Name
	}
	return fmt.Sprintf("pin %d", c.Pin)
}

// Detector waits until a pin has held a level for the debounce duration.
//
// A non-reusable detector serves exactly one Wait and releases its pin
// registration when that Wait returns, however it returns. A reusable
// detector keeps its registration until Close and starts every Wait from a
// fresh debounce cycle.
type Detector struct {
	chip  gpio.Chip
	clock clockwork.Clock
	cfg   Config

	mu         sync.Mutex
	state      State
	waiting    bool
	spent      bool
	closed     bool
	registered bool
}

// New validates cfg and registers the pin+level with the chip. A second
// detector for the same pin+level fails here with gpio.ErrAlreadySubscribed.
func New(chip gpio.Chip, clock clockwork.Clock, cfg Config) (*Detector, error) {
	if _, err := logic.NewDebouncer(cfg.Poll, cfg.Debounce); err != nil {
		return nil, fmt.Errorf("edge %s: %w: %v", cfg.label(), gpio.ErrConfiguration, err)
	}
	if cfg.Pin < 0 {
		return nil, fmt.Errorf("edge %s: %w", cfg.label(), gpio.ErrInvalidPin)
	}
	if err := chip.Subscribe(cfg.Pin, cfg.Level); err != nil {
		return nil, fmt.Errorf("edge %s: %w", cfg.label(), err)
	}
	return &Detector{
		chip:       chip,
		clock:      clock,
		cfg:        cfg,
		registered: true,
	}, nil
}

// Config returns the detector's configuration.
func (d *Detector) Config() Config {
	return d.cfg
}

// State returns the current lifecycle state.
func (d *Detector) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Wait blocks until the pin has held the target level for the debounce
// duration and returns that level. There is no timeout: it returns early
// only when ctx is done (with ctx.Err()) or a read fails (with the read
// error, which matches gpio.ErrHardware for driver faults).
func (d *Detector) Wait(ctx context.Context) (gpio.Level, error) {
	if err := d.begin(); err != nil {
		return gpio.Low, err
	}
	defer d.end()

	deb, _ := logic.NewDebouncer(d.cfg.Poll, d.cfg.Debounce)
	logging.Debugf("%s: awaiting %s on pin %d", d.cfg.label(), d.cfg.Level, d.cfg.Pin)

	for {
		if err := ctx.Err(); err != nil {
			return gpio.Low, d.finish(StateCancelled, err)
		}

		level, err := d.chip.Read(d.cfg.Pin)
		if err != nil {
			logging.Errorf("%s: %v", d.cfg.label(), err)
			return gpio.Low, d.finish(StateFailed, err)
		}

		if deb.Observe(level == d.cfg.Level) {
			logging.Debugf("%s: pin %d in state %s", d.cfg.label(), d.cfg.Pin, level)
			return level, d.finish(StateResolved, nil)
		}

		if deb.Matching() {
			d.setState(StateDebouncing)
			logging.Tracef("%s: pin %d matched %s for %v of %v",
				d.cfg.label(), d.cfg.Pin, d.cfg.Level, deb.Held(), d.cfg.Debounce)
		} else {
			d.setState(StateArmed)
		}

		if err := sleep(ctx, d.clock, d.cfg.Poll); err != nil {
			return gpio.Low, d.finish(StateCancelled, err)
		}
	}
}

// Close releases the pin registration. Safe to call more than once.
func (d *Detector) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return d.release()
}

func (d *Detector) begin() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch {
	case d.closed:
		return ErrClosed
	case d.spent:
		return ErrSpent
	case d.waiting:
		return ErrBusy
	}
	d.waiting = true
	d.state = StateArmed
	return nil
}

func (d *Detector) end() {
	d.mu.Lock()
	d.waiting = false
	d.mu.Unlock()
}

func (d *Detector) setState(s State) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
}

// finish records the terminal state of one Wait. Non-reusable detectors
// deregister here; err is returned unchanged.
func (d *Detector) finish(s State, err error) error {
	d.mu.Lock()
	d.state = s
	if !d.cfg.Reusable {
		d.spent = true
	}
	d.mu.Unlock()

	if !d.cfg.Reusable {
		if rerr := d.release(); rerr != nil {
			logging.Warnf("%s: %v", d.cfg.label(), rerr)
		}
	}
	return err
}

func (d *Detector) release() error {
	d.mu.Lock()
	if !d.registered {
		d.mu.Unlock()
		return nil
	}
	d.registered = false
	d.mu.Unlock()

	logging.Debugf("%s: removing detector for pin %d %s", d.cfg.label(), d.cfg.Pin, d.cfg.Level)
	if err := d.chip.Unsubscribe(d.cfg.Pin, d.cfg.Level); err != nil {
		return fmt.Errorf("unsubscribe pin %d: %w", d.cfg.Pin, err)
	}
	return nil
}

// sleep waits for d on clock, returning ctx.Err() if ctx finishes first.
// The timer is stopped on every path so no waiter is left on the clock.
func sleep(ctx context.Context, clock clockwork.Clock, d time.Duration) error {
	t := clock.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.Chan():
		return nil
	}
}
