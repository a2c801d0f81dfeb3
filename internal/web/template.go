package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/sweeney/coffee-relay/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"stateOrUnknown": func(s string) string {
		if s == "" {
			return "UNKNOWN"
		}
		return s
	},
	// relative renders t against now, e.g. "3 hours from now".
	"relative": func(t, now time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return humanize.RelTime(t, now, "ago", "from now")
	},
	"clock": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.Format("Mon 15:04:05")
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Coffee Relay</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
#result { margin-left: 1em; }
</style>
</head>
<body>
<h1>Coffee Relay</h1>

<h2>Relay</h2>
<table>
<tr><th>State</th><td id="relay-state" class="{{if eq (stateOrUnknown (printf "%s" .Relay)) "ON"}}on{{else if eq (stateOrUnknown (printf "%s" .Relay)) "OFF"}}off{{else}}unknown{{end}}">{{stateOrUnknown (printf "%s" .Relay)}}</td></tr>
<tr><th>Phase</th><td>{{stateOrUnknown (printf "%s" .Schedule.Phase)}}</td></tr>
<tr><th>Starts</th><td>{{clock .Schedule.ScheduledFor}} ({{relative .Schedule.ScheduledFor .Now}})</td></tr>
<tr><th>Auto-off</th><td>{{clock .Schedule.OffAt}} ({{relative .Schedule.OffAt .Now}})</td></tr>
<tr><th>Generation</th><td>{{.Schedule.Generation}}</td></tr>
{{if .LastEvent}}<tr><th>Last event</th><td>{{.LastEvent.Type}} {{relative .LastEvent.Timestamp .Now}}{{if .LastEvent.Err}} ({{.LastEvent.Err}}){{end}}</td></tr>{{end}}
{{if .Config.Autostart}}<tr><th>Autostart</th><td>{{.Config.Autostart}} next {{relative .NextAutostart .Now}}</td></tr>{{end}}
</table>

<form id="start-form">
<input type="time" id="start-time" step="1" required>
<button type="submit">Start</button>
<button type="button" id="stop">Stop</button>
<span id="result"></span>
</form>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}} {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Scheduled</th><td>{{.Counts.Scheduled}}</td></tr>
<tr><th>Superseded</th><td>{{.Counts.Superseded}}</td></tr>
<tr><th>Energized</th><td>{{.Counts.Energized}}</td></tr>
<tr><th>Auto-off</th><td>{{.Counts.AutoOff}}</td></tr>
<tr><th>Stopped</th><td>{{.Counts.Stopped}}</td></tr>
<tr><th>Faults</th><td>{{.Counts.Faults}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>GPIO</th><td>{{.Config.Chip}} line {{.Config.Pin}}</td></tr>
<tr><th>On duration</th><td>{{.Config.OnDurationMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
<script>
(function() {
  var result = document.getElementById("result");

  function call(path, body) {
    return fetch(path, {
      method: "POST",
      headers: { "Content-Type": "application/json" },
      body: body ? JSON.stringify(body) : null
    }).then(function(r) { return r.json(); }).then(function(j) {
      result.textContent = j.message || j.error;
      setTimeout(function() { location.reload(); }, 1000);
    });
  }

  document.getElementById("start-form").addEventListener("submit", function(e) {
    e.preventDefault();
    call("/api/raspberrypi/startcoffee", { time: document.getElementById("start-time").value });
  });
  document.getElementById("stop").addEventListener("click", function() {
    call("/api/raspberrypi/stopcoffee");
  });
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	return indexTmpl.Execute(w, data)
}
