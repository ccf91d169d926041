package mqtt

import "testing"

func event(i int) bufferedMsg {
	return bufferedMsg{topic: Topic, payload: []byte{byte(i)}, qos: 1}
}

func lifecycleMsg(i int) bufferedMsg {
	return bufferedMsg{topic: TopicSystem, payload: []byte{byte(i)}, qos: 1, retained: true}
}

func heartbeatMsg(i int) bufferedMsg {
	return bufferedMsg{topic: TopicSystem, payload: []byte{byte(i)}, qos: 1}
}

func payloadBytes(msgs []bufferedMsg) []byte {
	out := make([]byte, len(msgs))
	for i, m := range msgs {
		out[i] = m.payload[0]
	}
	return out
}

func TestOfflineQueueEmptyDrain(t *testing.T) {
	if got := newOfflineQueue(10).drainAll(); got != nil {
		t.Errorf("expected nil from empty drain, got %d items", len(got))
	}
}

func TestOfflineQueueOrderAndEviction(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		pushed   []bufferedMsg
		want     []byte
	}{
		{"partial", 10, []bufferedMsg{event(0), event(1), event(2)}, []byte{0, 1, 2}},
		{"overflow drops oldest event", 3,
			[]bufferedMsg{event(0), event(1), event(2), event(3), event(4)}, []byte{2, 3, 4}},
		{"startup survives event overflow", 3,
			[]bufferedMsg{lifecycleMsg(0), event(1), event(2), event(3)}, []byte{0, 2, 3}},
		{"heartbeat goes before startup", 3,
			[]bufferedMsg{lifecycleMsg(0), heartbeatMsg(1), lifecycleMsg(2), event(3)}, []byte{0, 2, 3}},
		{"only lifecycle left drops oldest", 2,
			[]bufferedMsg{lifecycleMsg(0), lifecycleMsg(1), lifecycleMsg(2)}, []byte{1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := newOfflineQueue(tt.capacity)
			for _, m := range tt.pushed {
				q.push(m)
			}
			if q.len() != len(tt.want) {
				t.Errorf("len: got %d, want %d", q.len(), len(tt.want))
			}
			got := payloadBytes(q.drainAll())
			if string(got) != string(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
			if q.len() != 0 || q.drainAll() != nil {
				t.Error("queue should be empty after drain")
			}
		})
	}
}

func TestOfflineQueueDroppedResetOnDrain(t *testing.T) {
	q := newOfflineQueue(1)
	q.push(event(0))
	q.push(event(1))
	if q.dropped != 1 {
		t.Errorf("dropped: got %d, want 1", q.dropped)
	}
	q.drainAll()
	if q.dropped != 0 {
		t.Errorf("dropped after drain: got %d", q.dropped)
	}

	q.push(event(10))
	if got := payloadBytes(q.drainAll()); string(got) != string([]byte{10}) {
		t.Errorf("second cycle: got %v", got)
	}
}

func TestOfflineQueueDrainDoesNotAlias(t *testing.T) {
	q := newOfflineQueue(4)
	q.push(event(0))
	first := q.drainAll()
	q.push(event(1))
	if first[0].payload[0] != 0 {
		t.Errorf("drained slice changed after push: %v", payloadBytes(first))
	}
}

func TestOfflineQueuePreservesFields(t *testing.T) {
	q := newOfflineQueue(2)
	q.push(bufferedMsg{topic: TopicSystem, payload: []byte(`{"x":1}`), qos: 1, retained: true})

	got := q.drainAll()
	if len(got) != 1 {
		t.Fatalf("expected 1 item, got %d", len(got))
	}
	m := got[0]
	if m.topic != TopicSystem || string(m.payload) != `{"x":1}` || m.qos != 1 || !m.retained {
		t.Errorf("fields not preserved: %+v", m)
	}
}
