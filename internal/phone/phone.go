// Package phone runs the phone's top-level loop: wait for the handset to be
// hung up, ring until it is lifted, play a sound, repeat.
package phone

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/sweeney/phonehack/internal/audio"
	"github.com/sweeney/phonehack/internal/edge"
	"github.com/sweeney/phonehack/internal/gpio"
	"github.com/sweeney/phonehack/internal/logging"
	"github.com/sweeney/phonehack/internal/ring"
)

// ErrRunning is returned by Run when the loop is already running or has run.
var ErrRunning = errors.New("phone: already run")

// Ringer runs one ring session.
type Ringer interface {
	Ring(ctx context.Context) (ring.Session, error)
}

// Observer is told about cradle and playback events. Calls are made from
// the goroutine running Run and must not block.
type Observer interface {
	OnHook(at time.Time)
	Played(sound string, at time.Time, err error)
}

// Config describes the cradle switch and what to play once answered.
type Config struct {
	HookPin     gpio.Pin
	OnHookLevel gpio.Level
	Poll        time.Duration
	Debounce    time.Duration
	Sound       string
}

// Option configures a Phone.
type Option func(*Phone)

// WithObserver adds an observer.
func WithObserver(o Observer) Option {
	return func(p *Phone) {
		p.observers = append(p.observers, o)
	}
}

// Phone owns the cradle detector and sequences ringing and playback.
type Phone struct {
	clock     clockwork.Clock
	cfg       Config
	ringer    Ringer
	player    audio.Player
	cradle    *edge.Detector
	observers []Observer

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
	stopped bool
}

// New registers the cradle detector on the hook pin, which must already be
// configured as an input.
func New(chip gpio.Chip, clock clockwork.Clock, cfg Config, ringer Ringer, player audio.Player, opts ...Option) (*Phone, error) {
	cradle, err := edge.New(chip, clock, edge.Config{
		Name:     "cradle",
		Pin:      cfg.HookPin,
		Level:    cfg.OnHookLevel,
		Poll:     cfg.Poll,
		Debounce: cfg.Debounce,
		Reusable: true,
	})
	if err != nil {
		return nil, fmt.Errorf("phone: %w", err)
	}
	p := &Phone{
		clock:  clock,
		cfg:    cfg,
		ringer: ringer,
		player: player,
		cradle: cradle,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Run loops until ctx is cancelled, Shutdown is called or the hardware
// fails. Cancellation returns ctx's error; a hardware failure returns an
// error matching gpio.ErrHardware. Playback failures are logged and the
// loop carries on. Run may be called once.
func (p *Phone) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p.mu.Lock()
	switch {
	case p.stopped:
		p.mu.Unlock()
		return context.Canceled
	case p.started:
		p.mu.Unlock()
		return ErrRunning
	}
	p.started = true
	p.cancel = cancel
	p.done = make(chan struct{})
	done := p.done
	p.mu.Unlock()

	defer close(done)
	defer p.cradle.Close()

	for {
		logging.Infof("waiting for phone in hangar")
		if _, err := p.cradle.Wait(ctx); err != nil {
			return err
		}
		now := p.clock.Now()
		logging.Infof("phone hung up")
		for _, o := range p.observers {
			o.OnHook(now)
		}

		if _, err := p.ringer.Ring(ctx); err != nil {
			return err
		}

		if err := p.play(ctx); err != nil {
			return err
		}
	}
}

// play returns an error only when ctx is done.
func (p *Phone) play(ctx context.Context) error {
	logging.Infof("starting audio playback")
	err := p.player.Play(ctx, p.cfg.Sound)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		logging.Errorf("playback of %s failed: %v", p.cfg.Sound, err)
	}
	now := p.clock.Now()
	for _, o := range p.observers {
		o.Played(p.cfg.Sound, now, err)
	}
	return nil
}

// Shutdown stops Run, waits for it to return and releases the cradle
// detector. Any ring session in progress is torn down with the ringer LOW.
// Safe to call more than once and before Run.
func (p *Phone) Shutdown() {
	p.mu.Lock()
	p.stopped = true
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	p.cradle.Close()
}
