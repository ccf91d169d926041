package logic

import (
	"errors"
	"time"
)

// Step is one output write followed by a wait.
type Step struct {
	On  bool
	For time.Duration
}

// Pattern is the ring cadence: the ringer toggles on and off every Toggle
// for Burst, then stays off for Pause, and repeats.
type Pattern struct {
	Toggle time.Duration
	Burst  time.Duration
	Pause  time.Duration
}

var (
	ErrToggleInterval = errors.New("ring toggle interval must be > 0")
	ErrBurstDuration  = errors.New("ring burst duration must be > 0")
	ErrPauseDuration  = errors.New("ring pause duration must be >= 0")
)

// DefaultPattern returns the cadence of the original phone: 50ms toggles for
// 1.6s, then 1.6s of silence.
func DefaultPattern() Pattern {
	return Pattern{
		Toggle: 50 * time.Millisecond,
		Burst:  1600 * time.Millisecond,
		Pause:  1600 * time.Millisecond,
	}
}

// Validate checks the pattern can be run.
func (p Pattern) Validate() error {
	if p.Toggle <= 0 {
		return ErrToggleInterval
	}
	if p.Burst <= 0 {
		return ErrBurstDuration
	}
	if p.Pause < 0 {
		return ErrPauseDuration
	}
	return nil
}

// Cycles returns how many on/off cycles make up one burst. A burst that is
// not a whole number of cycles rounds up.
func (p Pattern) Cycles() int {
	cycle := 2 * p.Toggle
	return int((p.Burst + cycle - 1) / cycle)
}

// BurstSteps returns the writes of one burst: on, off, on, off, ... each held
// for Toggle. The last step is always off.
func (p Pattern) BurstSteps() []Step {
	n := p.Cycles()
	steps := make([]Step, 0, 2*n)
	for i := 0; i < n; i++ {
		steps = append(steps, Step{On: true, For: p.Toggle}, Step{On: false, For: p.Toggle})
	}
	return steps
}

// Period returns the length of one burst plus its pause.
func (p Pattern) Period() time.Duration {
	return time.Duration(2*p.Cycles())*p.Toggle + p.Pause
}
