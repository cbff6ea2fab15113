package server

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"github.com/conneroisu/reshape/internal/config"
)

const sampleLines = "2024-01-05 07:30: 120/80 62\n2024-01-05 21:10: 118/79 60\n# morning reading missed\n2024-01-06 07:45: 131/85 71"

// playgroundPage renders the editor, preloaded with the configured templates.
func playgroundPage(cfg *config.Config) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		quote := ""
		if cfg.Output.Quote {
			quote = " checked"
		}

		_, err := fmt.Fprintf(w, pageHTML,
			templ.EscapeString(cfg.Templates.Source),
			templ.EscapeString(cfg.Templates.Target),
			quote,
			templ.EscapeString(sampleLines),
		)
		return err
	})
}

const pageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>reshape playground</title>
<style>
body { font-family: system-ui, sans-serif; margin: 2rem; color: #222; }
label { display: block; font-weight: 600; margin-top: 1rem; }
input[type=text], textarea { width: 100%%; font-family: monospace; font-size: 14px; padding: 4px; }
textarea { height: 10rem; }
table { border-collapse: collapse; margin-top: 1rem; font-family: monospace; }
th, td { border: 1px solid #ccc; padding: 2px 8px; text-align: left; }
td.missing { background: #fdd; }
tr.failed td { color: #a00; }
.overlay { border: 1px solid #c00; background: #fee; padding: 0.5rem 1rem; margin-top: 1rem; }
.suggestion { color: #555; font-size: 90%%; }
#status { float: right; font-size: 90%%; color: #666; }
#events { font-size: 90%%; color: #555; }
</style>
</head>
<body>
<span id="status">connecting</span>
<h1>reshape</h1>
<label for="source">Source template</label>
<input type="text" id="source" value="%s">
<label for="target">Target template</label>
<input type="text" id="target" value="%s">
<label><input type="checkbox" id="quote"%s> Quote substituted values</label>
<label for="lines">Sample lines</label>
<textarea id="lines">%s</textarea>
<div id="errors"></div>
<table id="rows"></table>
<ul id="events"></ul>
<script>
(function () {
  var ids = ["source", "target", "quote", "lines"];
  var el = {};
  ids.forEach(function (id) { el[id] = document.getElementById(id); });
  var status = document.getElementById("status");
  var ws = null;

  function request() {
    return JSON.stringify({
      source: el.source.value,
      target: el.target.value,
      quote: el.quote.checked,
      lines: el.lines.value.split("\n")
    });
  }

  function send() {
    if (ws && ws.readyState === WebSocket.OPEN) {
      ws.send(request());
    }
  }

  function cell(row, text, cls) {
    var td = document.createElement(row.parentNode && row.parentNode.tagName === "THEAD" ? "th" : "td");
    td.textContent = text;
    if (cls) { td.className = cls; }
    row.appendChild(td);
  }

  function render(resp) {
    document.getElementById("errors").innerHTML = resp.overlay || "";
    var table = document.getElementById("rows");
    table.textContent = "";
    var head = table.createTHead().insertRow();
    cell(head, "line");
    (resp.source_variables || []).forEach(function (name) { cell(head, name); });
    cell(head, "output");
    (resp.rows || []).forEach(function (r) {
      var tr = table.insertRow();
      if (r.error) { tr.className = "failed"; }
      cell(tr, String(r.line));
      var missing = {};
      (r.missing || []).forEach(function (i) { missing[i] = true; });
      (resp.source_variables || []).forEach(function (_, i) {
        cell(tr, r.fields && i < r.fields.length ? r.fields[i] : "", missing[i] ? "missing" : "");
      });
      cell(tr, r.error ? r.error.message : r.output);
    });
  }

  function note(msg) {
    var li = document.createElement("li");
    li.textContent = msg;
    var list = document.getElementById("events");
    list.insertBefore(li, list.firstChild);
  }

  function connect() {
    var scheme = location.protocol === "https:" ? "wss://" : "ws://";
    ws = new WebSocket(scheme + location.host + "/ws");
    ws.onopen = function () { status.textContent = "live"; send(); };
    ws.onclose = function () {
      status.textContent = "disconnected";
      setTimeout(connect, 2000);
    };
    ws.onmessage = function (ev) {
      var msg = JSON.parse(ev.data);
      if (msg.type === "transform") {
        render(msg);
      } else if (msg.type === "converted") {
        note(msg.path + " -> " + msg.output + " (" + (msg.written || 0) + " written, " + (msg.failed || 0) + " failed)");
      } else if (msg.type === "conversion_failed" || msg.type === "error") {
        note((msg.path ? msg.path + ": " : "") + msg.error);
      }
    };
  }

  ids.forEach(function (id) { el[id].addEventListener("input", send); });
  connect();
})();
</script>
</body>
</html>
`
