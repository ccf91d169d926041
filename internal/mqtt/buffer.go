package mqtt

import "github.com/sweeney/phonehack/internal/logging"

// bufferedMsg is a serialized message awaiting replay.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// lifecycle reports whether m is a retained system message such as STARTUP
// or SHUTDOWN. These describe the daemon itself and outlive phone events.
func (m bufferedMsg) lifecycle() bool {
	return m.topic == TopicSystem && m.retained
}

// offlineQueue holds messages published while the broker is unreachable,
// oldest first. When full it drops the oldest phone event or heartbeat, and
// only drops a lifecycle message when nothing else is queued.
// Callers synchronize access.
type offlineQueue struct {
	msgs     []bufferedMsg
	capacity int
	dropped  int // since the last drain
}

func newOfflineQueue(capacity int) *offlineQueue {
	return &offlineQueue{
		msgs:     make([]bufferedMsg, 0, capacity),
		capacity: capacity,
	}
}

func (q *offlineQueue) push(msg bufferedMsg) {
	if len(q.msgs) == q.capacity {
		q.evict()
	}
	q.msgs = append(q.msgs, msg)
}

func (q *offlineQueue) evict() {
	victim := 0
	for i, m := range q.msgs {
		if !m.lifecycle() {
			victim = i
			break
		}
	}
	if q.dropped == 0 {
		logging.Warnf("mqtt: offline buffer full (%d messages), dropping %s message",
			q.capacity, q.msgs[victim].topic)
	}
	q.dropped++
	q.msgs = append(q.msgs[:victim], q.msgs[victim+1:]...)
}

// drainAll returns the queued messages in publish order and empties the queue.
func (q *offlineQueue) drainAll() []bufferedMsg {
	if len(q.msgs) == 0 {
		return nil
	}
	if q.dropped > 0 {
		logging.Warnf("mqtt: %d messages were dropped while offline", q.dropped)
	}
	out := q.msgs
	q.msgs = make([]bufferedMsg, 0, q.capacity)
	q.dropped = 0
	return out
}

func (q *offlineQueue) len() int {
	return len(q.msgs)
}
