// Package ring drives the ringer until the handset is lifted.
package ring

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/sweeney/phonehack/internal/edge"
	"github.com/sweeney/phonehack/internal/gpio"
	"github.com/sweeney/phonehack/internal/logging"
	"github.com/sweeney/phonehack/internal/logic"
)

// State is the controller's state.
type State int

const (
	StateIdle State = iota
	StateRinging
	StateAnswered
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRinging:
		return "RINGING"
	case StateAnswered:
		return "ANSWERED"
	case StateFailed:
		return "FAILED"
	case StateCancelled:
		return "CANCELLED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ErrSessionActive is returned by Ring while another session owns the ringer.
var ErrSessionActive = errors.New("ring: session already active")

// Config holds pin assignment, polarity and timing for ring sessions.
type Config struct {
	RingerPin   gpio.Pin
	AnswerPin   gpio.Pin
	AnswerLevel gpio.Level
	Poll        time.Duration
	Debounce    time.Duration
	Pattern     logic.Pattern
}

// Validate checks timing and pins.
func (c Config) Validate() error {
	if c.RingerPin < 0 || c.AnswerPin < 0 {
		return fmt.Errorf("ring: %w", gpio.ErrInvalidPin)
	}
	if c.RingerPin == c.AnswerPin {
		return fmt.Errorf("ring: %w: ringer and answer pin are both %d", gpio.ErrConfiguration, c.RingerPin)
	}
	if _, err := logic.NewDebouncer(c.Poll, c.Debounce); err != nil {
		return fmt.Errorf("ring: %w: %v", gpio.ErrConfiguration, err)
	}
	if err := c.Pattern.Validate(); err != nil {
		return fmt.Errorf("ring: %w: %v", gpio.ErrConfiguration, err)
	}
	return nil
}

// Session describes one ringing episode.
type Session struct {
	ID      int
	Started time.Time
	Ended   time.Time // zero while ringing
	Bursts  int
	State   State
}

// Duration returns how long the session rang.
func (s Session) Duration() time.Duration {
	if s.Ended.IsZero() {
		return 0
	}
	return s.Ended.Sub(s.Started)
}

// Observer is told when sessions start and end. Calls are made from the
// goroutine running Ring and should return promptly: Ringing runs while the
// ringer is already toggling, Ended after it has been silenced, and Ring
// does not return until every Ended call has.
type Observer interface {
	Ringing(s Session)
	Ended(s Session, err error)
}

// Option configures a Controller.
type Option func(*Controller)

// WithObserver adds an observer.
func WithObserver(o Observer) Option {
	return func(c *Controller) {
		c.observers = append(c.observers, o)
	}
}

// Controller owns the ringer pin and runs ring sessions one at a time.
type Controller struct {
	chip      gpio.Chip
	clock     clockwork.Clock
	cfg       Config
	observers []Observer

	mu       sync.Mutex
	state    State
	active   bool
	sessions int
}

// New validates cfg. The ringer pin must already be configured as an output
// and the answer pin as an input.
func New(chip gpio.Chip, clock clockwork.Clock, cfg Config, opts ...Option) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Controller{
		chip:  chip,
		clock: clock,
		cfg:   cfg,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// State returns the state of the current or last session.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

type ringResult struct {
	bursts int
	err    error
}

// Ring rings until the answer pin holds the answer level for the debounce
// duration, then silences the ringer and returns the session.
//
// The ringer task and the answer watcher run concurrently. Whichever ends
// first stops the other, and Ring waits for both before driving the ringer
// LOW, so no write can follow the final LOW. A write failure ends the
// session with an error matching gpio.ErrHardware; cancelling ctx ends it
// with ctx's error. Neither is retried.
func (c *Controller) Ring(ctx context.Context) (Session, error) {
	if err := c.begin(); err != nil {
		return Session{}, err
	}
	defer c.end()

	det, err := edge.New(c.chip, c.clock, edge.Config{
		Name:     "answered",
		Pin:      c.cfg.AnswerPin,
		Level:    c.cfg.AnswerLevel,
		Poll:     c.cfg.Poll,
		Debounce: c.cfg.Debounce,
	})
	if err != nil {
		c.setState(StateFailed)
		return Session{}, err
	}
	defer det.Close()

	c.mu.Lock()
	c.sessions++
	sess := Session{ID: c.sessions, Started: c.clock.Now(), State: StateRinging}
	c.state = StateRinging
	c.mu.Unlock()

	logging.Infof("ringing (session %d)", sess.ID)

	ringCtx, stopRinging := context.WithCancel(ctx)
	defer stopRinging()
	watchCtx, stopWatching := context.WithCancel(ctx)
	defer stopWatching()

	ringDone := make(chan ringResult, 1)
	go func() {
		n, err := c.ringForever(ringCtx)
		ringDone <- ringResult{bursts: n, err: err}
	}()
	watchDone := make(chan error, 1)
	go func() {
		_, err := det.Wait(watchCtx)
		watchDone <- err
	}()

	// Both tasks are running, so a slow observer cannot hold up the ringer.
	for _, o := range c.observers {
		o.Ringing(sess)
	}

	var rr ringResult
	var watchErr error
	select {
	case watchErr = <-watchDone:
		if watchErr == nil {
			logging.Debugf("stopping ringer")
		}
		stopRinging()
		rr = <-ringDone
	case rr = <-ringDone:
		stopWatching()
		watchErr = <-watchDone
	}

	// Both tasks have exited: this is the last write of the session.
	lowErr := c.chip.Write(c.cfg.RingerPin, gpio.Low)

	sess.Ended = c.clock.Now()
	sess.Bursts = rr.bursts

	var errs []error
	if rr.err != nil && !isCancel(rr.err) {
		errs = append(errs, fmt.Errorf("ringer: %w", rr.err))
	}
	if watchErr != nil && !isCancel(watchErr) {
		errs = append(errs, fmt.Errorf("answer watcher: %w", watchErr))
	}
	if lowErr != nil {
		errs = append(errs, fmt.Errorf("silence ringer: %w", lowErr))
	}

	switch {
	case len(errs) > 0:
		err = errors.Join(errs...)
		sess.State = StateFailed
		logging.Errorf("ring session %d failed: %v", sess.ID, err)
	case watchErr != nil:
		err = watchErr
		sess.State = StateCancelled
		logging.Infof("ring session %d cancelled", sess.ID)
	default:
		sess.State = StateAnswered
		logging.Infof("phone answered after %v", sess.Duration())
	}

	c.setState(sess.State)
	for _, o := range c.observers {
		o.Ended(sess, err)
	}
	return sess, err
}

// ringForever runs bursts until ctx is done or a write fails. It checks ctx
// before every write, so cancellation lands on a toggle boundary and never
// between a decision and its write.
func (c *Controller) ringForever(ctx context.Context) (int, error) {
	steps := c.cfg.Pattern.BurstSteps()
	bursts := 0
	for {
		bursts++
		logging.Debugf("ring! ring!")
		for _, s := range steps {
			if err := ctx.Err(); err != nil {
				return bursts, err
			}
			if err := c.chip.Write(c.cfg.RingerPin, gpio.Level(s.On)); err != nil {
				return bursts, err
			}
			if err := sleep(ctx, c.clock, s.For); err != nil {
				return bursts, err
			}
		}
		if c.cfg.Pattern.Pause > 0 {
			if err := sleep(ctx, c.clock, c.cfg.Pattern.Pause); err != nil {
				return bursts, err
			}
		}
	}
}

func (c *Controller) begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active {
		return ErrSessionActive
	}
	c.active = true
	return nil
}

func (c *Controller) end() {
	c.mu.Lock()
	c.active = false
	c.mu.Unlock()
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func isCancel(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

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
