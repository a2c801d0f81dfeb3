package status

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/coffee-relay/internal/actuator"
	"github.com/sweeney/coffee-relay/internal/schedule"
)

func TestNewTracker(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := Config{Pin: 21, OnDurationMs: 600000, Broker: "tcp://localhost:1883", HTTPAddr: ":80"}
	tr := NewTracker(start, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Config.Pin != 21 {
		t.Errorf("Config.Pin: got %d, want 21", snap.Config.Pin)
	}
	if snap.Config.HTTPAddr != ":80" {
		t.Errorf("Config.HTTPAddr: got %q, want %q", snap.Config.HTTPAddr, ":80")
	}
	if snap.LastEvent != nil {
		t.Error("expected no LastEvent initially")
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
}

func TestUpdateAndSnapshot(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	at := time.Date(2026, 1, 2, 7, 30, 0, 0, time.UTC)

	tr.Update(actuator.StateOn, schedule.Snapshot{
		Generation:   4,
		Phase:        schedule.PhaseActive,
		EpisodeID:    "ep-1",
		ScheduledFor: at,
		OffAt:        at.Add(10 * time.Minute),
	})

	snap := tr.Snapshot()
	if snap.Relay != actuator.StateOn {
		t.Errorf("Relay: got %q, want ON", snap.Relay)
	}
	if snap.Schedule.Phase != schedule.PhaseActive {
		t.Errorf("Phase: got %q, want ACTIVE", snap.Schedule.Phase)
	}
	if snap.Schedule.Generation != 4 {
		t.Errorf("Generation: got %d, want 4", snap.Schedule.Generation)
	}
}

func TestNotifyCounts(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	for _, typ := range []schedule.EventType{
		schedule.EventScheduled,
		schedule.EventSuperseded,
		schedule.EventScheduled,
		schedule.EventEnergized,
		schedule.EventAutoOff,
		schedule.EventStopped,
		schedule.EventFault,
	} {
		tr.Notify(schedule.Event{Type: typ})
	}
	tr.Notify(schedule.Event{Type: schedule.EventStopped, Err: "hardware fault"})

	c := tr.Snapshot().Counts
	want := Counts{Scheduled: 2, Superseded: 1, Energized: 1, AutoOff: 1, Stopped: 2, Faults: 2}
	if c != want {
		t.Errorf("Counts: got %+v, want %+v", c, want)
	}
}

func TestNotifyRecordsLastEvent(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	ts := time.Date(2026, 1, 1, 6, 0, 0, 0, time.UTC)

	tr.Notify(schedule.Event{Type: schedule.EventScheduled, Timestamp: ts})
	tr.Notify(schedule.Event{Type: schedule.EventFault, Timestamp: ts.Add(time.Hour), Err: "boom"})

	snap := tr.Snapshot()
	if snap.LastEvent == nil {
		t.Fatal("expected LastEvent")
	}
	if snap.LastEvent.Type != schedule.EventFault {
		t.Errorf("LastEvent.Type: got %q, want FAULT", snap.LastEvent.Type)
	}
	if snap.LastEvent.Err != "boom" {
		t.Errorf("LastEvent.Err: got %q, want boom", snap.LastEvent.Err)
	}
}

func TestSetMQTTConnected(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.SetMQTTConnected(true)
	if !tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}

	tr.SetMQTTConnected(false)
	if tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=false")
	}
}

func TestSetNextAutostart(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	next := time.Date(2026, 1, 2, 6, 30, 0, 0, time.UTC)

	tr.SetNextAutostart(next)
	if !tr.Snapshot().NextAutostart.Equal(next) {
		t.Errorf("NextAutostart: got %v, want %v", tr.Snapshot().NextAutostart, next)
	}
}

func TestSetNetwork(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	if tr.Snapshot().Network != nil {
		t.Error("expected nil Network initially")
	}

	net := &NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected"}
	tr.SetNetwork(net)

	snap := tr.Snapshot()
	if snap.Network == nil {
		t.Fatal("expected non-nil Network")
	}
	if snap.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want %q", snap.Network.IP, "192.168.1.42")
	}
}

func TestSnapshotUptime(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		StartTime: start,
		Now:       start.Add(15 * time.Minute),
	}

	if snap.Uptime() != 15*time.Minute {
		t.Errorf("Uptime: got %v, want 15m", snap.Uptime())
	}
}

func TestSnapshotNowIsSet(t *testing.T) {
	tr := NewTracker(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Config{})

	before := time.Now()
	snap := tr.Snapshot()
	after := time.Now()

	if snap.Now.Before(before) || snap.Now.After(after) {
		t.Errorf("Now (%v) not between %v and %v", snap.Now, before, after)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.Update(actuator.StateOn, schedule.Snapshot{Phase: schedule.PhaseActive})
	tr.Notify(schedule.Event{Type: schedule.EventEnergized})

	snap1 := tr.Snapshot()

	tr.Update(actuator.StateOff, schedule.Snapshot{Phase: schedule.PhaseCompleted})
	tr.Notify(schedule.Event{Type: schedule.EventAutoOff})

	// snap1 should still reflect old state
	if snap1.Relay != actuator.StateOn {
		t.Error("snapshot should be a copy; Relay was modified")
	}
	if snap1.Schedule.Phase != schedule.PhaseActive {
		t.Error("snapshot should be a copy; Phase was modified")
	}
	if snap1.LastEvent.Type != schedule.EventEnergized {
		t.Error("snapshot should be a copy; LastEvent was modified")
	}
}

func TestFormatJSON(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	at := time.Date(2026, 1, 1, 7, 0, 0, 0, time.UTC)
	snap := Snapshot{
		Relay: actuator.StateOff,
		Schedule: schedule.Snapshot{
			Generation:   2,
			Phase:        schedule.PhasePending,
			EpisodeID:    "ep-2",
			ScheduledFor: at,
		},
		Counts:        Counts{Scheduled: 2, Superseded: 1},
		StartTime:     start,
		Now:           start.Add(15 * time.Minute),
		MQTTConnected: true,
		Config:        Config{Pin: 21, OnDurationMs: 600000, HeartbeatMs: 900000, Broker: "tcp://localhost:1883", HTTPAddr: ":80"},
	}

	data := FormatJSON(snap)

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.Relay != "OFF" {
		t.Errorf("Relay: got %q, want OFF", parsed.Status.Relay)
	}
	if parsed.Status.Schedule.Phase != "PENDING" {
		t.Errorf("Phase: got %q, want PENDING", parsed.Status.Schedule.Phase)
	}
	if parsed.Status.Schedule.ScheduledFor != "2026-01-01T07:00:00Z" {
		t.Errorf("ScheduledFor: got %q", parsed.Status.Schedule.ScheduledFor)
	}
	if parsed.Status.Schedule.OffAt != "" {
		t.Errorf("expected empty OffAt while pending, got %q", parsed.Status.Schedule.OffAt)
	}
	if parsed.Status.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", parsed.Status.UptimeSeconds)
	}
	if parsed.Status.MQTT.Connected != true {
		t.Error("expected MQTT.Connected=true")
	}
	if parsed.Status.Counts.Superseded != 1 {
		t.Errorf("Counts.Superseded: got %d, want 1", parsed.Status.Counts.Superseded)
	}
	if parsed.Status.Config.Pin != 21 {
		t.Errorf("Config.Pin: got %d, want 21", parsed.Status.Config.Pin)
	}
	// Event and Reason should be omitted
	if parsed.Status.Event != "" {
		t.Errorf("expected empty Event for web format, got %q", parsed.Status.Event)
	}
	if parsed.Status.Reason != "" {
		t.Errorf("expected empty Reason for web format, got %q", parsed.Status.Reason)
	}
}

func TestFormatJSONUnknownState(t *testing.T) {
	snap := Snapshot{
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC),
	}

	data := FormatJSON(snap)

	var parsed StatusJSON
	json.Unmarshal(data, &parsed)

	if parsed.Status.Relay != "UNKNOWN" {
		t.Errorf("Relay: got %q, want UNKNOWN", parsed.Status.Relay)
	}
	if parsed.Status.Schedule.Phase != "IDLE" {
		t.Errorf("Phase: got %q, want IDLE", parsed.Status.Schedule.Phase)
	}
}

func TestFormatJSONLastEvent(t *testing.T) {
	ev := schedule.Event{
		Type:      schedule.EventStopped,
		Timestamp: time.Date(2026, 1, 1, 7, 5, 0, 0, time.UTC),
		Err:       (&actuator.HardwareFault{Op: "write", Line: 21, Err: errors.New("ebusy")}).Error(),
	}
	snap := Snapshot{
		LastEvent: &ev,
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 7, 5, 0, 0, time.UTC),
	}

	var parsed StatusJSON
	if err := json.Unmarshal(FormatJSON(snap), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.LastEvent == nil {
		t.Fatal("expected last_event in JSON")
	}
	if parsed.Status.LastEvent.Type != "STOPPED" {
		t.Errorf("LastEvent.Type: got %q, want STOPPED", parsed.Status.LastEvent.Type)
	}
	if parsed.Status.LastEvent.Error != "hardware fault: write pin 21: ebusy" {
		t.Errorf("LastEvent.Error: got %q", parsed.Status.LastEvent.Error)
	}
}

func TestFormatStatusEvent(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		Relay:         actuator.StateOn,
		Schedule:      schedule.Snapshot{Phase: schedule.PhaseActive},
		StartTime:     start,
		Now:           start.Add(15 * time.Minute),
		MQTTConnected: true,
		Config:        Config{Broker: "tcp://localhost:1883"},
	}

	data := FormatStatusEvent(snap, "HEARTBEAT", "")

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.Event != "HEARTBEAT" {
		t.Errorf("Event: got %q, want HEARTBEAT", parsed.Status.Event)
	}
	if parsed.Status.Reason != "" {
		t.Errorf("Reason: got %q, want empty", parsed.Status.Reason)
	}
	if parsed.Status.Relay != "ON" {
		t.Errorf("Relay: got %q, want ON", parsed.Status.Relay)
	}
	if parsed.Status.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", parsed.Status.UptimeSeconds)
	}
}

func TestFormatStatusEventShutdown(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		Relay:     actuator.StateOff,
		StartTime: start,
		Now:       start.Add(30 * time.Minute),
		Config:    Config{Broker: "tcp://localhost:1883"},
	}

	data := FormatStatusEvent(snap, "SHUTDOWN", "SIGTERM")

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.Event != "SHUTDOWN" {
		t.Errorf("Event: got %q, want SHUTDOWN", parsed.Status.Event)
	}
	if parsed.Status.Reason != "SIGTERM" {
		t.Errorf("Reason: got %q, want SIGTERM", parsed.Status.Reason)
	}
}

func TestFormatStatusEventOmitsReasonWhenEmpty(t *testing.T) {
	snap := Snapshot{
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC),
	}

	data := FormatStatusEvent(snap, "STARTUP", "")

	var raw map[string]interface{}
	json.Unmarshal(data, &raw)
	status := raw["status"].(map[string]interface{})
	if _, exists := status["reason"]; exists {
		t.Error("reason should be omitted when empty")
	}
	if status["event"] != "STARTUP" {
		t.Errorf("event: got %v, want STARTUP", status["event"])
	}
}

func TestFormatJSONWithNetwork(t *testing.T) {
	snap := Snapshot{
		Relay:     actuator.StateOff,
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC),
		Network:   &NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected", SSID: "MyNet"},
		Config:    Config{Broker: "tcp://localhost:1883"},
	}

	data := FormatJSON(snap)

	var parsed StatusJSON
	json.Unmarshal(data, &parsed)

	if parsed.Status.Network == nil {
		t.Fatal("expected Network in JSON")
	}
	if parsed.Status.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want 192.168.1.42", parsed.Status.Network.IP)
	}
	if parsed.Status.Network.SSID != "MyNet" {
		t.Errorf("Network.SSID: got %q, want MyNet", parsed.Status.Network.SSID)
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	var wg sync.WaitGroup

	// Writer
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			tr.Update(actuator.StateOn, schedule.Snapshot{Generation: uint64(i)})
			tr.Notify(schedule.Event{Type: schedule.EventScheduled})
			tr.SetMQTTConnected(i%2 == 0)
			tr.SetNetwork(&NetworkInfo{IP: "1.2.3.4"})
		}
	}()

	// Reader
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			snap := tr.Snapshot()
			_ = snap.Uptime()
		}
	}()

	wg.Wait()
}
