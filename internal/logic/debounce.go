// Package logic contains the pure state machines behind the phone: the
// debounce filter and the ring cadence.
// This package has NO external dependencies (no GPIO, no goroutines, no
// time.Sleep). Callers feed it samples and act on what it returns.
package logic

import (
	"errors"
	"time"
)

// Debouncer accumulates hold time over consecutive matching samples taken
// one poll interval apart.
//
// The first matching sample starts a run with zero hold time; every further
// matching sample adds one poll interval. A single mismatched sample discards
// the run. The debouncer is satisfied once the hold time reaches the debounce
// duration, so with debounce 0 the first matching sample satisfies it.
type Debouncer struct {
	poll     time.Duration
	debounce time.Duration
	held     time.Duration
	matching bool
}

var (
	ErrPollInterval = errors.New("poll interval must be > 0")
	ErrDebounce     = errors.New("debounce duration must be >= 0")
)

// NewDebouncer returns a Debouncer sampling every poll and requiring
// debounce of continuous hold.
func NewDebouncer(poll, debounce time.Duration) (*Debouncer, error) {
	if poll <= 0 {
		return nil, ErrPollInterval
	}
	if debounce < 0 {
		return nil, ErrDebounce
	}
	return &Debouncer{poll: poll, debounce: debounce}, nil
}

// Observe feeds one sample and reports whether the hold requirement is met.
func (d *Debouncer) Observe(match bool) bool {
	if !match {
		d.held = 0
		d.matching = false
		return false
	}
	if d.matching {
		d.held += d.poll
	} else {
		d.matching = true
	}
	return d.held >= d.debounce
}

// Held returns the accumulated hold time of the current run.
func (d *Debouncer) Held() time.Duration {
	return d.held
}

// Matching reports whether a run is in progress.
func (d *Debouncer) Matching() bool {
	return d.matching
}

// Reset discards any run in progress.
func (d *Debouncer) Reset() {
	d.held = 0
	d.matching = false
}

// SamplesNeeded returns how many consecutive matching samples resolve the
// debouncer. A debounce that is not a multiple of poll rounds up.
func (d *Debouncer) SamplesNeeded() int {
	return 1 + int((d.debounce+d.poll-1)/d.poll)
}
