package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string     `json:"event,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	Ring          string     `json:"ring"`
	Session       int        `json:"session"`
	LastRing      string     `json:"last_ring,omitempty"`
	LastRingMs    int64      `json:"last_ring_ms,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	StartTime     string     `json:"start_time"`
	Timestamp     string     `json:"timestamp"`
	MQTT          MQTTStatus `json:"mqtt"`
	Counts        CountsJSON `json:"counts"`
	Config        ConfigJSON `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of Counts.
type CountsJSON struct {
	OnHook     int `json:"on_hook"`
	Rings      int `json:"rings"`
	Answered   int `json:"answered"`
	Cancelled  int `json:"cancelled"`
	Failed     int `json:"failed"`
	Plays      int `json:"plays"`
	PlayErrors int `json:"play_errors"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	RingerPin   int    `json:"ringer_pin"`
	HookPin     int    `json:"hook_pin"`
	AnswerPin   int    `json:"answer_pin"`
	OnHookLevel string `json:"on_hook_level"`
	AnswerLevel string `json:"answer_level"`
	PollMs      int64  `json:"poll_ms"`
	DebounceMs  int64  `json:"debounce_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Sound       string `json:"sound"`
	Output      string `json:"output"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Ring:          snap.Ring.String(),
		Session:       snap.Session,
		LastRingMs:    snap.LastRingTime.Milliseconds(),
		LastError:     snap.LastError,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			OnHook:     snap.Counts.OnHook,
			Rings:      snap.Counts.Rings,
			Answered:   snap.Counts.Answered,
			Cancelled:  snap.Counts.Cancelled,
			Failed:     snap.Counts.Failed,
			Plays:      snap.Counts.Plays,
			PlayErrors: snap.Counts.PlayErrors,
		},
		Config: ConfigJSON{
			RingerPin:   snap.Config.RingerPin,
			HookPin:     snap.Config.HookPin,
			AnswerPin:   snap.Config.AnswerPin,
			OnHookLevel: snap.Config.OnHookLevel,
			AnswerLevel: snap.Config.AnswerLevel,
			PollMs:      snap.Config.PollMs,
			DebounceMs:  snap.Config.DebounceMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Sound:       snap.Config.Sound,
			Output:      snap.Config.Output,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
		},
	}
	if !snap.LastRing.IsZero() {
		inner.LastRing = snap.LastRing.UTC().Format(time.RFC3339)
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
