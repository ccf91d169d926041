package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/phonehack/internal/logging"
	"github.com/sweeney/phonehack/internal/status"
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
	"ringClass": func(s string) string {
		switch s {
		case "RINGING":
			return "ringing"
		case "FAILED":
			return "failed"
		}
		return "idle"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>Phonehack</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.ringing { color: green; font-weight: bold; }
.idle { color: #888; }
.failed { color: red; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Phonehack</h1>

<h2>Ringer</h2>
<table>
<tr><th>State</th><td id="ring-state" class="{{ringClass .RingState}}">{{.RingState}}</td></tr>
<tr><th>Session</th><td>{{.Session}}</td></tr>
<tr><th>Last ring</th><td>{{if .LastRing.IsZero}}never{{else}}{{.LastRing.UTC.Format "2006-01-02T15:04:05Z"}}{{end}}</td></tr>
{{if .LastRingTime}}<tr><th>Answered after</th><td>{{.LastRingTime}}</td></tr>{{end}}
{{if .LastError}}<tr><th>Last error</th><td class="failed">{{.LastError}}</td></tr>{{end}}
</table>

<h2>Counts</h2>
<table>
<tr><th>Hung up</th><td>{{.Counts.OnHook}}</td></tr>
<tr><th>Rings</th><td>{{.Counts.Rings}}</td></tr>
<tr><th>Answered</th><td>{{.Counts.Answered}}</td></tr>
<tr><th>Cancelled</th><td>{{.Counts.Cancelled}}</td></tr>
<tr><th>Failed</th><td>{{.Counts.Failed}}</td></tr>
<tr><th>Sounds played</th><td>{{.Counts.Plays}}</td></tr>
<tr><th>Playback errors</th><td>{{.Counts.PlayErrors}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Ringer pin</th><td>{{.Config.RingerPin}}</td></tr>
<tr><th>Hook pin</th><td>{{.Config.HookPin}} (on-hook {{.Config.OnHookLevel}})</td></tr>
<tr><th>Answer pin</th><td>{{.Config.AnswerPin}} (answered {{.Config.AnswerLevel}})</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceMs}}ms</td></tr>
<tr><th>Sound</th><td>{{.Config.Sound}} via {{.Config.Output}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/metrics">metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	data := struct {
		status.Snapshot
		Uptime    time.Duration
		RingState string
	}{
		Snapshot:  snap,
		Uptime:    snap.Uptime(),
		RingState: snap.Ring.String(),
	}
	if err := indexTmpl.Execute(w, data); err != nil {
		logging.Warnf("web: render index: %v", err)
	}
}
