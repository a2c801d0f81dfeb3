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
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Relay         string       `json:"relay"`
	Schedule      ScheduleJSON `json:"schedule"`
	LastEvent     *EventJSON   `json:"last_event,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	NextAutostart string       `json:"next_autostart,omitempty"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"event_counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// ScheduleJSON is the JSON representation of the runner snapshot.
type ScheduleJSON struct {
	Phase        string `json:"phase"`
	Generation   uint64 `json:"generation"`
	EpisodeID    string `json:"episode_id,omitempty"`
	ScheduledFor string `json:"scheduled_for,omitempty"`
	OffAt        string `json:"off_at,omitempty"`
}

// EventJSON is the JSON representation of the last schedule event.
type EventJSON struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	Error     string `json:"error,omitempty"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Scheduled  int `json:"scheduled"`
	Superseded int `json:"superseded"`
	Energized  int `json:"energized"`
	AutoOff    int `json:"auto_off"`
	Stopped    int `json:"stopped"`
	Faults     int `json:"faults"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Chip         string `json:"gpio_chip"`
	Pin          int    `json:"gpio_pin"`
	OnDurationMs int64  `json:"on_duration_ms"`
	HeartbeatMs  int64  `json:"heartbeat_ms"`
	Broker       string `json:"broker"`
	HTTPAddr     string `json:"http_addr"`
	Autostart    string `json:"autostart,omitempty"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func buildInner(snap Snapshot) StatusInner {
	relay := string(snap.Relay)
	if relay == "" {
		relay = "UNKNOWN"
	}
	phase := string(snap.Schedule.Phase)
	if phase == "" {
		phase = "IDLE"
	}

	inner := StatusInner{
		Relay: relay,
		Schedule: ScheduleJSON{
			Phase:        phase,
			Generation:   snap.Schedule.Generation,
			EpisodeID:    snap.Schedule.EpisodeID,
			ScheduledFor: formatTime(snap.Schedule.ScheduledFor),
			OffAt:        formatTime(snap.Schedule.OffAt),
		},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     formatTime(snap.StartTime),
		Timestamp:     formatTime(snap.Now),
		NextAutostart: formatTime(snap.NextAutostart),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Scheduled:  snap.Counts.Scheduled,
			Superseded: snap.Counts.Superseded,
			Energized:  snap.Counts.Energized,
			AutoOff:    snap.Counts.AutoOff,
			Stopped:    snap.Counts.Stopped,
			Faults:     snap.Counts.Faults,
		},
		Config: ConfigJSON{
			Chip:         snap.Config.Chip,
			Pin:          snap.Config.Pin,
			OnDurationMs: snap.Config.OnDurationMs,
			HeartbeatMs:  snap.Config.HeartbeatMs,
			Broker:       snap.Config.Broker,
			HTTPAddr:     snap.Config.HTTPAddr,
			Autostart:    snap.Config.Autostart,
		},
	}
	if ev := snap.LastEvent; ev != nil {
		inner.LastEvent = &EventJSON{
			Type:      string(ev.Type),
			Timestamp: formatTime(ev.Timestamp),
			Error:     ev.Err,
		}
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
