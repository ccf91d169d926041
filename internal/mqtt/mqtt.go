// Package mqtt publishes phone events to an MQTT broker, with a fake for tests.
package mqtt

import (
	"encoding/json"
	"time"
)

// Topic is the MQTT topic for phone events.
const Topic = "phone/ringer/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "phone/ringer/system"

// EventType names a phone event.
type EventType string

const (
	EventOnHook        EventType = "ON_HOOK"
	EventRinging       EventType = "RINGING"
	EventAnswered      EventType = "ANSWERED"
	EventRingCancelled EventType = "RING_CANCELLED"
	EventRingFailed    EventType = "RING_FAILED"
	EventPlayed        EventType = "PLAYED"
	EventPlayFailed    EventType = "PLAY_FAILED"
)

// Event is something the phone did.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Session   int
	Bursts    int
	RingTime  time.Duration
	Sound     string
	Error     string
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a phone event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Phone PhonePayload `json:"phone"`
}

// PhonePayload contains the phone event details.
type PhonePayload struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Session   int    `json:"session,omitempty"`
	Bursts    int    `json:"bursts,omitempty"`
	RingMs    int64  `json:"ring_ms,omitempty"`
	Sound     string `json:"sound,omitempty"`
	Error     string `json:"error,omitempty"`
}

// FormatPayload creates the JSON payload for a phone event.
func FormatPayload(event Event) ([]byte, error) {
	payload := Payload{
		Phone: PhonePayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     string(event.Type),
			Session:   event.Session,
			Bursts:    event.Bursts,
			RingMs:    event.RingTime.Milliseconds(),
			Sound:     event.Sound,
			Error:     event.Error,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
