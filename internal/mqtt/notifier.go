package mqtt

import (
	"sync"
	"time"

	"github.com/sweeney/phonehack/internal/logging"
	"github.com/sweeney/phonehack/internal/ring"
)

// notifyQueue bounds the events waiting for the publisher.
const notifyQueue = 64

// Notifier turns phone activity into events on a Publisher. Events are
// queued and published from the notifier's own goroutine, so a stalled
// broker never holds up the caller. Publish failures are logged and never
// reach the caller; events arriving while the queue is full are dropped.
type Notifier struct {
	pub   Publisher
	queue chan Event
	done  chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewNotifier starts a notifier publishing to pub. Call Close to flush it.
func NewNotifier(pub Publisher) *Notifier {
	n := &Notifier{
		pub:   pub,
		queue: make(chan Event, notifyQueue),
		done:  make(chan struct{}),
	}
	go n.loop()
	return n
}

// Close publishes the queued events and stops the notifier. Events after
// Close are discarded. Safe to call more than once.
func (n *Notifier) Close() {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.queue)
	}
	n.mu.Unlock()
	<-n.done
}

func (n *Notifier) loop() {
	defer close(n.done)
	for ev := range n.queue {
		if err := n.pub.Publish(ev); err != nil {
			logging.Warnf("mqtt: publish %s: %v", ev.Type, err)
		}
	}
}

// Ringing publishes RINGING.
func (n *Notifier) Ringing(s ring.Session) {
	n.publish(Event{Timestamp: s.Started, Type: EventRinging, Session: s.ID})
}

// Ended publishes the session outcome.
func (n *Notifier) Ended(s ring.Session, err error) {
	ev := Event{
		Timestamp: s.Ended,
		Session:   s.ID,
		Bursts:    s.Bursts,
		RingTime:  s.Duration(),
	}
	switch s.State {
	case ring.StateAnswered:
		ev.Type = EventAnswered
	case ring.StateCancelled:
		ev.Type = EventRingCancelled
	default:
		ev.Type = EventRingFailed
	}
	if err != nil && s.State == ring.StateFailed {
		ev.Error = err.Error()
	}
	n.publish(ev)
}

// OnHook publishes ON_HOOK.
func (n *Notifier) OnHook(at time.Time) {
	n.publish(Event{Timestamp: at, Type: EventOnHook})
}

// Played publishes PLAYED or PLAY_FAILED.
func (n *Notifier) Played(sound string, at time.Time, err error) {
	ev := Event{Timestamp: at, Type: EventPlayed, Sound: sound}
	if err != nil {
		ev.Type = EventPlayFailed
		ev.Error = err.Error()
	}
	n.publish(ev)
}

func (n *Notifier) publish(ev Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		logging.Debugf("mqtt: notifier closed, discarding %s", ev.Type)
		return
	}
	select {
	case n.queue <- ev:
	default:
		logging.Warnf("mqtt: event queue full, dropping %s", ev.Type)
	}
}
