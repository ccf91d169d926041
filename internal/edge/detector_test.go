package edge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/sweeney/phonehack/internal/clocktest"
	"github.com/sweeney/phonehack/internal/gpio"
)

const hookPin gpio.Pin = 13

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*clockwork.FakeClock, *gpio.FakeChip) {
	t.Helper()
	fc := clockwork.NewFakeClockAt(t0)
	chip := gpio.NewFakeChip(fc)
	if err := chip.Configure(hookPin, gpio.Input, gpio.Low); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	return fc, chip
}

func defaultConfig() Config {
	return Config{
		Name:     "test",
		Pin:      hookPin,
		Level:    gpio.High,
		Poll:     200 * time.Millisecond,
		Debounce: 800 * time.Millisecond,
	}
}

type result struct {
	level gpio.Level
	err   error
	at    time.Time
}

// waitAsync runs d.Wait in a goroutine and closes done when it returns.
func waitAsync(ctx context.Context, fc *clockwork.FakeClock, d *Detector) (<-chan result, <-chan struct{}) {
	res := make(chan result, 1)
	done := make(chan struct{})
	go func() {
		l, err := d.Wait(ctx)
		res <- result{level: l, err: err, at: fc.Now()}
		close(done)
	}()
	return res, done
}

func TestWaitResolvesAfterDebounce(t *testing.T) {
	fc, chip := setup(t)
	chip.SetLevelAt(hookPin, t0, gpio.High)

	d, err := New(chip, fc, defaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, done := waitAsync(context.Background(), fc, d)
	clocktest.Drive(t, fc, 1, 200*time.Millisecond, done)
	r := <-res

	if r.err != nil {
		t.Fatalf("Wait: %v", r.err)
	}
	if r.level != gpio.High {
		t.Errorf("level: got %s, want HIGH", r.level)
	}
	if want := t0.Add(800 * time.Millisecond); !r.at.Equal(want) {
		t.Errorf("resolved at %v, want %v", r.at.Sub(t0), want.Sub(t0))
	}
	if d.State() != StateResolved {
		t.Errorf("state: got %s, want RESOLVED", d.State())
	}
	if chip.Reads() != 5 {
		t.Errorf("reads: got %d, want 5", chip.Reads())
	}
}

func TestWaitNotBeforeDebounce(t *testing.T) {
	fc, chip := setup(t)
	// High only shortly after start: 100ms into the first poll interval.
	chip.SetLevelAt(hookPin, t0.Add(100*time.Millisecond), gpio.High)

	d, err := New(chip, fc, defaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, done := waitAsync(context.Background(), fc, d)
	clocktest.Drive(t, fc, 1, 50*time.Millisecond, done)
	r := <-res

	// First matching sample at 200ms, held 800ms at 1000ms: within one poll
	// interval of the level actually holding for 800ms (900ms), not before.
	if want := t0.Add(1000 * time.Millisecond); !r.at.Equal(want) {
		t.Errorf("resolved at %v, want %v", r.at.Sub(t0), want.Sub(t0))
	}
}

func TestWaitGlitchResetsHold(t *testing.T) {
	fc, chip := setup(t)
	chip.SetLevelAt(hookPin, t0, gpio.High)
	chip.SetLevelAt(hookPin, t0.Add(400*time.Millisecond), gpio.Low)
	chip.SetLevelAt(hookPin, t0.Add(500*time.Millisecond), gpio.High)

	d, err := New(chip, fc, defaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, done := waitAsync(context.Background(), fc, d)
	clocktest.Drive(t, fc, 1, 200*time.Millisecond, done)
	r := <-res

	// Samples: 0 H, 200 H, 400 L (reset), 600 H starts again, 1400 reaches 800ms.
	if want := t0.Add(1400 * time.Millisecond); !r.at.Equal(want) {
		t.Errorf("resolved at %v, want %v", r.at.Sub(t0), want.Sub(t0))
	}
}

func TestWaitZeroDebounceResolvesImmediately(t *testing.T) {
	fc, chip := setup(t)
	chip.SetLevel(hookPin, gpio.High)

	cfg := defaultConfig()
	cfg.Debounce = 0
	d, err := New(chip, fc, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	l, err := d.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if l != gpio.High {
		t.Errorf("level: got %s, want HIGH", l)
	}
	if chip.Reads() != 1 {
		t.Errorf("reads: got %d, want 1", chip.Reads())
	}
}

func TestWaitLowLevel(t *testing.T) {
	fc, chip := setup(t)

	cfg := defaultConfig()
	cfg.Level = gpio.Low
	cfg.Debounce = 400 * time.Millisecond
	d, err := New(chip, fc, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, done := waitAsync(context.Background(), fc, d)
	clocktest.Drive(t, fc, 1, 200*time.Millisecond, done)
	r := <-res
	if r.err != nil || r.level != gpio.Low {
		t.Fatalf("Wait: got %s, %v", r.level, r.err)
	}
	if want := t0.Add(400 * time.Millisecond); !r.at.Equal(want) {
		t.Errorf("resolved at %v, want %v", r.at.Sub(t0), want.Sub(t0))
	}
}

func TestNonReusableDeregistersOnce(t *testing.T) {
	fc, chip := setup(t)
	chip.SetLevel(hookPin, gpio.High)

	cfg := defaultConfig()
	cfg.Debounce = 0
	d, err := New(chip, fc, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if chip.Subscriptions() != 1 {
		t.Fatalf("expected registration after New, got %d", chip.Subscriptions())
	}

	if _, err := d.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if chip.Subscriptions() != 0 {
		t.Errorf("registration not released: %d", chip.Subscriptions())
	}

	if _, err := d.Wait(context.Background()); !errors.Is(err, ErrSpent) {
		t.Errorf("second Wait: got %v, want ErrSpent", err)
	}
	d.Close()
	if chip.Unsubscribes() != 1 {
		t.Errorf("unsubscribes: got %d, want exactly 1", chip.Unsubscribes())
	}
}

func TestReusableRunsFreshCycles(t *testing.T) {
	fc, chip := setup(t)
	chip.SetLevelAt(hookPin, t0, gpio.High)

	cfg := defaultConfig()
	cfg.Reusable = true
	d, err := New(chip, fc, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var times []time.Time
	done := make(chan struct{})
	errs := make(chan error, 1)
	go func() {
		defer close(done)
		for i := 0; i < 2; i++ {
			if _, err := d.Wait(context.Background()); err != nil {
				errs <- err
				return
			}
			times = append(times, fc.Now())
		}
	}()
	clocktest.Drive(t, fc, 1, 200*time.Millisecond, done)

	select {
	case err := <-errs:
		t.Fatalf("Wait: %v", err)
	default:
	}
	if len(times) != 2 {
		t.Fatalf("expected 2 resolutions, got %d", len(times))
	}
	if !times[0].Equal(t0.Add(800 * time.Millisecond)) {
		t.Errorf("first resolution at %v, want 800ms", times[0].Sub(t0))
	}
	// The second cycle starts from zero even though the pin never changed.
	if !times[1].Equal(t0.Add(1600 * time.Millisecond)) {
		t.Errorf("second resolution at %v, want 1.6s", times[1].Sub(t0))
	}
	if chip.Subscriptions() != 1 {
		t.Errorf("reusable detector must keep its registration, got %d", chip.Subscriptions())
	}

	d.Close()
	d.Close()
	if chip.Subscriptions() != 0 || chip.Unsubscribes() != 1 {
		t.Errorf("Close: subscriptions=%d unsubscribes=%d", chip.Subscriptions(), chip.Unsubscribes())
	}
	if _, err := d.Wait(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Wait after Close: got %v, want ErrClosed", err)
	}
}

func TestDuplicateRegistrationFailsFast(t *testing.T) {
	fc, chip := setup(t)
	chip.SetLevel(hookPin, gpio.High)

	cfg := defaultConfig()
	cfg.Debounce = 0
	first, err := New(chip, fc, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := New(chip, fc, cfg); !errors.Is(err, gpio.ErrAlreadySubscribed) {
		t.Fatalf("second New: got %v, want ErrAlreadySubscribed", err)
	}

	// Same pin, other level is a separate registration.
	other := cfg
	other.Level = gpio.Low
	if _, err := New(chip, fc, other); err != nil {
		t.Errorf("New for other level: %v", err)
	}

	if _, err := first.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if _, err := New(chip, fc, cfg); err != nil {
		t.Errorf("New after release: %v", err)
	}
}

func TestWaitCancelledMidDebounce(t *testing.T) {
	fc, chip := setup(t)
	chip.SetLevelAt(hookPin, t0, gpio.High)

	d, err := New(chip, fc, defaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	res, _ := waitAsync(ctx, fc, d)

	clocktest.Settle(t, fc, 1)
	fc.Advance(200 * time.Millisecond)
	clocktest.Settle(t, fc, 1)
	if d.State() != StateDebouncing {
		t.Errorf("state before cancel: got %s, want DEBOUNCING", d.State())
	}
	cancel()
	r := <-res

	if !errors.Is(r.err, context.Canceled) {
		t.Fatalf("Wait: got %v, want context.Canceled", r.err)
	}
	if d.State() != StateCancelled {
		t.Errorf("state: got %s, want CANCELLED", d.State())
	}
	if chip.Subscriptions() != 0 {
		t.Errorf("cancelled watcher must deregister, %d left", chip.Subscriptions())
	}
	if _, err := d.Wait(context.Background()); !errors.Is(err, ErrSpent) {
		t.Errorf("Wait after cancel: got %v, want ErrSpent", err)
	}
}

func TestWaitAlreadyCancelled(t *testing.T) {
	fc, chip := setup(t)
	d, err := New(chip, fc, defaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := d.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
	if chip.Reads() != 0 {
		t.Errorf("no read expected, got %d", chip.Reads())
	}
}

func TestWaitReadError(t *testing.T) {
	fc, chip := setup(t)
	chip.FailReads(errors.New("bus fault"))

	d, err := New(chip, fc, defaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = d.Wait(context.Background())
	if !errors.Is(err, gpio.ErrHardware) {
		t.Fatalf("got %v, want ErrHardware", err)
	}
	if d.State() != StateFailed {
		t.Errorf("state: got %s, want FAILED", d.State())
	}
	if chip.Subscriptions() != 0 {
		t.Errorf("failed detector must deregister, %d left", chip.Subscriptions())
	}
}

func TestWaitBusy(t *testing.T) {
	fc, chip := setup(t)
	cfg := defaultConfig()
	cfg.Reusable = true
	d, err := New(chip, fc, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	res, _ := waitAsync(ctx, fc, d)
	clocktest.Settle(t, fc, 1)

	if _, err := d.Wait(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("concurrent Wait: got %v, want ErrBusy", err)
	}
	cancel()
	if r := <-res; !errors.Is(r.err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", r.err)
	}
	// A cancelled reusable detector keeps its registration and can wait again.
	if chip.Subscriptions() != 1 {
		t.Errorf("subscriptions: got %d, want 1", chip.Subscriptions())
	}
}

func TestNewValidation(t *testing.T) {
	fc, chip := setup(t)
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero poll", func(c *Config) { c.Poll = 0 }},
		{"negative debounce", func(c *Config) { c.Debounce = -time.Millisecond }},
		{"negative pin", func(c *Config) { c.Pin = -1 }},
		{"unconfigured pin", func(c *Config) { c.Pin = 5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(&cfg)
			if _, err := New(chip, fc, cfg); !errors.Is(err, gpio.ErrConfiguration) {
				t.Errorf("got %v, want ErrConfiguration", err)
			}
		})
	}
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{
		StateArmed:      "ARMED",
		StateDebouncing: "DEBOUNCING",
		StateResolved:   "RESOLVED",
		StateCancelled:  "CANCELLED",
		StateFailed:     "FAILED",
	} {
		if s.String() != want {
			t.Errorf("got %q, want %q", s.String(), want)
		}
	}
}
