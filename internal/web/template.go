package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/volcano-manager/internal/control"
	"github.com/sweeney/volcano-manager/internal/status"
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
	"modeClass": func(m control.Mode) string {
		switch m {
		case control.ModeActive:
			return "active"
		case control.ModePassive:
			return "passive"
		}
		return "unknown"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Volcano Manager</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.active { color: #c00; font-weight: bold; }
.passive { color: green; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; background: orange; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
</style>
</head>
<body>
<h1>Volcano Manager<span id="live-dot" class="live-dot" title="connecting"></span></h1>

<h2>Controller</h2>
<table>
<tr><th>Mode</th><td id="mode" class="{{modeClass .State.Mode}}">{{.State.Mode}}</td></tr>
<tr><th>Safe signals</th><td id="streak">{{.State.SafeStreak}}/{{.SafeTarget}}</td></tr>
<tr><th>Last command</th><td id="last-command">{{if .LastCommand}}{{.LastCommand}}{{else}}none{{end}}</td></tr>
</table>

<h2>Last Reading</h2>
<table>
{{if .LastReading}}<tr><th>Temperature</th><td id="temp">{{printf "%.1f" .LastReading.Temperature}}</td></tr>
<tr><th>Risk</th><td id="risk">{{printf "%.4f" .LastReading.Risk}}</td></tr>
<tr><th>Device mode</th><td id="device-mode">{{.LastReading.DeviceMode}}</td></tr>
<tr><th>Received</th><td>{{.LastReadingAt.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
{{else}}<tr><th>Temperature</th><td id="temp">-</td></tr>
<tr><th>Risk</th><td id="risk">-</td></tr>
<tr><th>Device mode</th><td id="device-mode">-</td></tr>
{{end}}</table>

<h2>Counts</h2>
<table>
<tr><th>Readings</th><td>{{.Counts.Readings}}</td></tr>
<tr><th>Escalations</th><td>{{.Counts.Escalations}}</td></tr>
<tr><th>De-escalations</th><td>{{.Counts.Deescalations}}</td></tr>
<tr><th>Overflow discards</th><td>{{.Link.Overflows}}</td></tr>
<tr><th>Dropped lines</th><td>{{.Link.Dropped}}</td></tr>
<tr><th>Faults</th><td>{{.Link.Faults}}</td></tr>
<tr><th>Command failures</th><td>{{.Link.CommandFailures}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
<tr><th>Device</th><td>{{.Config.Device}} @ {{.Config.Baud}}</td></tr>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Session</th><td>{{.SessionID}}</td></tr>
<tr><th>Heartbeat</th><td>{{if le .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
<script>
(function() {
  var dot = document.getElementById("live-dot");
  function byId(id) { return document.getElementById(id); }
  function connect() {
    var ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
    ws.onopen = function() { dot.className = "live-dot ok"; dot.title = "live"; };
    ws.onclose = function() { dot.className = "live-dot err"; dot.title = "offline"; setTimeout(connect, 5000); };
    ws.onmessage = function(ev) {
      try {
        var s = JSON.parse(ev.data).status;
        var mode = byId("mode");
        mode.textContent = s.mode;
        mode.className = s.mode === "ACTIVE" ? "active" : s.mode === "PASSIVE" ? "passive" : "unknown";
        byId("streak").textContent = s.safe_streak + "/" + s.safe_target;
        byId("last-command").textContent = s.last_command || "none";
        if (s.last_reading) {
          byId("temp").textContent = s.last_reading.temp.toFixed(1);
          byId("risk").textContent = s.last_reading.risk.toFixed(4);
          byId("device-mode").textContent = s.last_reading.mode;
        }
      } catch (e) {}
    };
  }
  connect();
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime     time.Duration
		SafeTarget int
	}{
		Snapshot:   snap,
		Uptime:     snap.Uptime(),
		SafeTarget: control.DebounceCount,
	}
	return indexTmpl.Execute(w, data)
}
