// Package status provides a thread-safe status tracker for the phonehack
// daemon. It is read by the HTTP handlers and the MQTT heartbeat.
package status

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/sweeney/phonehack/internal/ring"
)

// Config contains daemon configuration for display.
type Config struct {
	RingerPin   int
	HookPin     int
	AnswerPin   int
	OnHookLevel string
	AnswerLevel string
	PollMs      int64
	DebounceMs  int64
	HeartbeatMs int64
	Sound       string
	Output      string
	Broker      string
	HTTPAddr    string
}

// Counts tallies what the phone has done since startup.
type Counts struct {
	OnHook     int
	Rings      int
	Answered   int
	Cancelled  int
	Failed     int
	Plays      int
	PlayErrors int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Ring          ring.State
	Session       int
	LastRing      time.Time
	LastRingTime  time.Duration // how long the last answered session rang
	LastError     string
	Counts        Counts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Ringing reports whether a session is in progress.
func (s Snapshot) Ringing() bool {
	return s.Ring == ring.StateRinging
}

// Tracker holds mutable daemon state behind an RWMutex. It observes ring
// sessions, cradle events and playback.
type Tracker struct {
	clock clockwork.Clock

	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker whose start time is the clock's now.
func NewTracker(clock clockwork.Clock, cfg Config) *Tracker {
	return &Tracker{
		clock: clock,
		snap: Snapshot{
			StartTime: clock.Now(),
			Config:    cfg,
		},
	}
}

// Ringing records the start of a session.
func (t *Tracker) Ringing(s ring.Session) {
	t.mu.Lock()
	t.snap.Ring = ring.StateRinging
	t.snap.Session = s.ID
	t.snap.LastRing = s.Started
	t.snap.Counts.Rings++
	t.mu.Unlock()
}

// Ended records how a session finished.
func (t *Tracker) Ended(s ring.Session, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Ring = s.State
	switch s.State {
	case ring.StateAnswered:
		t.snap.Counts.Answered++
		t.snap.LastRingTime = s.Duration()
	case ring.StateCancelled:
		t.snap.Counts.Cancelled++
	case ring.StateFailed:
		t.snap.Counts.Failed++
	}
	if err != nil && s.State == ring.StateFailed {
		t.snap.LastError = err.Error()
	}
}

// OnHook records the handset being placed in the cradle.
func (t *Tracker) OnHook(at time.Time) {
	t.mu.Lock()
	t.snap.Counts.OnHook++
	t.mu.Unlock()
}

// Played records a playback attempt.
func (t *Tracker) Played(sound string, at time.Time, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		t.snap.Counts.PlayErrors++
		t.snap.LastError = err.Error()
		return
	}
	t.snap.Counts.Plays++
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set from the clock at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = t.clock.Now()
	return s
}
