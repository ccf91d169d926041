package gpio

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Write is a recorded output write.
type Write struct {
	At    time.Time
	Pin   Pin
	Level Level
}

type levelChange struct {
	at    time.Time
	level Level
}

type fakePin struct {
	dir      Direction
	initial  Level
	changes  []levelChange // sorted by at
	implicit bool          // created by SetLevelAt before Configure
}

func (p *fakePin) levelAt(now time.Time) Level {
	l := p.initial
	for _, c := range p.changes {
		if c.at.After(now) {
			break
		}
		l = c.level
	}
	return l
}

// FakeChip is a test double. Input levels follow a timeline evaluated
// against the injected clock, and every output write is recorded with the
// clock's time. Safe for concurrent use.
type FakeChip struct {
	clock clockwork.Clock
	subs  subscriptions

	mu          sync.Mutex
	pins        map[Pin]*fakePin
	writes      []Write
	reads       int
	readTimes   map[Pin][]time.Time
	readErr     error
	writeErr    error
	failAfter   int // writes allowed before writeErr applies
	failTimes   int // failing writes left; <0 means unlimited
	unsubscribe int
	closed      bool
}

// NewFakeChip creates a FakeChip using clock for timestamps and timelines.
func NewFakeChip(clock clockwork.Clock) *FakeChip {
	return &FakeChip{
		clock:     clock,
		pins:      make(map[Pin]*fakePin),
		readTimes: make(map[Pin][]time.Time),
	}
}

// Configure claims a pin. Configuring the same pin twice, or any pin after
// Close, is an error.
func (f *FakeChip) Configure(pin Pin, dir Direction, initial Level) error {
	if pin < 0 {
		return fmt.Errorf("configure pin %d: %w", pin, ErrInvalidPin)
	}
	if dir != Input && dir != Output {
		return fmt.Errorf("configure pin %d as %s: %w", pin, dir, ErrDirection)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return fmt.Errorf("configure pin %d: %w", pin, ErrChipClosed)
	}
	if p, ok := f.pins[pin]; ok {
		if !p.implicit || dir != Input {
			return fmt.Errorf("configure pin %d: %w: already configured", pin, ErrConfiguration)
		}
		p.implicit = false
		p.initial = initial
		return nil
	}
	f.pins[pin] = &fakePin{dir: dir, initial: initial}
	return nil
}

// SetLevel changes an input pin's level from the clock's current time on.
func (f *FakeChip) SetLevel(pin Pin, level Level) {
	f.SetLevelAt(pin, f.clock.Now(), level)
}

// SetLevelAt schedules an input pin to change level at the given time.
// The pin may be scripted before it is configured as an input.
func (f *FakeChip) SetLevelAt(pin Pin, at time.Time, level Level) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pins[pin]
	if !ok {
		p = &fakePin{dir: Input, implicit: true}
		f.pins[pin] = p
	}
	p.changes = append(p.changes, levelChange{at: at, level: level})
	sort.SliceStable(p.changes, func(i, j int) bool {
		return p.changes[i].at.Before(p.changes[j].at)
	})
}

// Read returns the input pin's level at the clock's current time.
func (f *FakeChip) Read(pin Pin) (Level, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	p, ok := f.pins[pin]
	if !ok {
		return Low, fmt.Errorf("read pin %d: %w", pin, ErrNotConfigured)
	}
	if p.dir != Input {
		return Low, fmt.Errorf("read pin %d: %w", pin, ErrDirection)
	}
	if f.readErr != nil {
		return Low, &IOError{Op: "read", Pin: pin, Err: f.readErr}
	}
	now := f.clock.Now()
	f.readTimes[pin] = append(f.readTimes[pin], now)
	return p.levelAt(now), nil
}

// Write records the write, or fails if a write error has been armed.
func (f *FakeChip) Write(pin Pin, level Level) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pins[pin]
	if !ok {
		return fmt.Errorf("write pin %d: %w", pin, ErrNotConfigured)
	}
	if p.dir != Output {
		return fmt.Errorf("write pin %d: %w", pin, ErrDirection)
	}
	if f.writeErr != nil {
		if f.failAfter > 0 {
			f.failAfter--
		} else if f.failTimes != 0 {
			if f.failTimes > 0 {
				f.failTimes--
			}
			return &IOError{Op: "write", Pin: pin, Err: f.writeErr}
		}
	}
	p.initial = level
	f.writes = append(f.writes, Write{At: f.clock.Now(), Pin: pin, Level: level})
	return nil
}

// Subscribe registers pin+level.
func (f *FakeChip) Subscribe(pin Pin, level Level) error {
	f.mu.Lock()
	p, ok := f.pins[pin]
	f.mu.Unlock()
	if !ok {
		return fmt.Errorf("subscribe pin %d: %w", pin, ErrNotConfigured)
	}
	if p.dir != Input {
		return fmt.Errorf("subscribe pin %d: %w", pin, ErrDirection)
	}
	return f.subs.add(pin, level)
}

// Unsubscribe releases pin+level. Only calls that released a registration
// are counted by Unsubscribes.
func (f *FakeChip) Unsubscribe(pin Pin, level Level) error {
	if f.subs.remove(pin, level) {
		f.mu.Lock()
		f.unsubscribe++
		f.mu.Unlock()
	}
	return nil
}

// Close drives outputs low and releases subscriptions.
func (f *FakeChip) Close() error {
	f.subs.clear()
	f.mu.Lock()
	defer f.mu.Unlock()
	for pin, p := range f.pins {
		if p.dir == Output {
			p.initial = Low
			f.writes = append(f.writes, Write{At: f.clock.Now(), Pin: pin, Level: Low})
		}
	}
	f.closed = true
	return nil
}

// FailReads makes every subsequent Read return an IOError wrapping err.
// A nil err clears the failure.
func (f *FakeChip) FailReads(err error) {
	f.mu.Lock()
	f.readErr = err
	f.mu.Unlock()
}

// FailWrites lets after more writes succeed, then fails the next times
// writes (every write if times < 0) with an IOError wrapping err. A nil err
// clears the failure.
func (f *FakeChip) FailWrites(after, times int, err error) {
	f.mu.Lock()
	f.writeErr = err
	f.failAfter = after
	f.failTimes = times
	f.mu.Unlock()
}

// Writes returns a copy of the writes recorded for pin.
func (f *FakeChip) Writes(pin Pin) []Write {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Write
	for _, w := range f.writes {
		if w.Pin == pin {
			out = append(out, w)
		}
	}
	return out
}

// Output returns the level last written to an output pin.
func (f *FakeChip) Output(pin Pin) Level {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.pins[pin]; ok && p.dir == Output {
		return p.initial
	}
	return Low
}

// Reads returns how many times Read was called.
func (f *FakeChip) Reads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

// ReadTimes returns the clock times of the successful reads of pin.
func (f *FakeChip) ReadTimes(pin Pin) []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.readTimes[pin]...)
}

// Subscriptions returns the number of active registrations.
func (f *FakeChip) Subscriptions() int {
	return f.subs.len()
}

// Unsubscribes returns how many registrations have been released.
func (f *FakeChip) Unsubscribes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unsubscribe
}

// Closed reports whether Close was called.
func (f *FakeChip) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
