package server

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/vanderheijden86/blockmap/pkg/export"
)

type livePage struct {
	Title      string
	Background string
	Foreground string
	SVG        template.HTML
	Outline    template.HTML
	Keys       map[string]string
}

var liveTemplate = template.Must(template.New("live").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { margin: 0; background: {{.Background}}; color: {{.Foreground}}; font-family: sans-serif; }
header { padding: 8px 16px; border-bottom: 1px solid #e5e7eb; display: flex; gap: 16px; }
#map svg { display: block; width: 100%; height: calc(100vh - 41px); }
#outline { padding: 0 16px; }
#error { color: #dc2626; }
</style>
</head>
<body>
<header><strong id="title">{{.Title}}</strong><span id="level"></span><span id="error"></span></header>
<div id="map">{{.SVG}}</div>
<details id="outline"><summary>Outline</summary>{{.Outline}}</details>
<script>
const keys = {{.Keys}};
const proto = location.protocol === "https:" ? "wss://" : "ws://";
const ws = new WebSocket(proto + location.host + "/ws");
ws.onmessage = (ev) => {
  const msg = JSON.parse(ev.data);
  if (msg.type === "update") {
    document.getElementById("map").innerHTML = msg.svg;
    document.getElementById("title").textContent = msg.state.title;
    document.getElementById("level").textContent = msg.state.state + " · level " + msg.state.level + "/" + msg.state.levels;
    document.getElementById("error").textContent = "";
  } else if (msg.type === "error") {
    document.getElementById("error").textContent = msg.message;
  }
};
document.addEventListener("keydown", (ev) => {
  const name = ({ArrowUp: "up", ArrowDown: "down", ArrowLeft: "left", ArrowRight: "right"})[ev.key] || ev.key;
  const cmd = keys[name];
  if (cmd && ws.readyState === WebSocket.OPEN) {
    ev.preventDefault();
    ws.send(JSON.stringify({type: "command", name: cmd}));
  }
});
</script>
</body>
</html>
`))

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	view := s.bridge.Options()
	page := livePage{
		Title:      "blockmap",
		Background: view.Background,
		Foreground: view.Foreground,
		Keys:       s.keyTable(),
	}
	if last := s.renderer.Last(); last != nil {
		page.Title = last.Document.Title
		body, err := export.RenderHTML(last.Document)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		page.Outline = body
	}
	if svg, err := s.snapshotSVG(); err == nil {
		page.SVG = template.HTML(export.Policy().SanitizeBytes(svg))
	}
	var buf bytes.Buffer
	if err := liveTemplate.Execute(&buf, page); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
