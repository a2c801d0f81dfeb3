// Package status provides a thread-safe status tracker for the coffee-relay daemon.
// It is read by HTTP handlers and the MQTT heartbeat.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/coffee-relay/internal/actuator"
	"github.com/sweeney/coffee-relay/internal/schedule"
)

// NetworkInfo contains network state as written by pi-helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	Chip         string
	Pin          int
	OnDurationMs int64
	HeartbeatMs  int64
	Broker       string
	HTTPAddr     string
	Autostart    string
}

// Counts tracks schedule events since startup.
type Counts struct {
	Scheduled  int
	Superseded int
	Energized  int
	AutoOff    int
	Stopped    int
	Faults     int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and stays valid after the lock is released.
type Snapshot struct {
	Relay         actuator.State
	Schedule      schedule.Snapshot
	LastEvent     *schedule.Event
	Counts        Counts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	NextAutostart time.Time
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update sets the live relay state and the runner snapshot.
func (t *Tracker) Update(relay actuator.State, sched schedule.Snapshot) {
	t.mu.Lock()
	t.snap.Relay = relay
	t.snap.Schedule = sched
	t.mu.Unlock()
}

// Notify records a schedule event. It implements schedule.Notifier.
func (t *Tracker) Notify(ev schedule.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := ev
	t.snap.LastEvent = &e
	switch ev.Type {
	case schedule.EventScheduled:
		t.snap.Counts.Scheduled++
	case schedule.EventSuperseded:
		t.snap.Counts.Superseded++
	case schedule.EventEnergized:
		t.snap.Counts.Energized++
	case schedule.EventAutoOff:
		t.snap.Counts.AutoOff++
	case schedule.EventStopped:
		t.snap.Counts.Stopped++
		if ev.Err != "" {
			t.snap.Counts.Faults++
		}
	case schedule.EventFault:
		t.snap.Counts.Faults++
	}
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNextAutostart records when the autostart schedule fires next.
func (t *Tracker) SetNextAutostart(next time.Time) {
	t.mu.Lock()
	t.snap.NextAutostart = next
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	if s.LastEvent != nil {
		e := *s.LastEvent
		s.LastEvent = &e
	}
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
