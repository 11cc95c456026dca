package server

import "html/template"

const pageHead = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; margin: 2em; color: #1d2327; }
.notice { border-left: 4px solid #72aee6; background: #fff; padding: 1px 12px; margin: 8px 0; box-shadow: 0 1px 1px rgba(0,0,0,.04); }
.notice-success { border-left-color: #00a32a; }
.notice-warning { border-left-color: #dba617; }
.notice-error { border-left-color: #d63638; }
table.widefat { border-collapse: collapse; width: 100%; }
table.widefat th, table.widefat td { border: 1px solid #c3c4c7; padding: 8px 10px; text-align: left; vertical-align: top; }
table.striped tbody tr:nth-child(odd) { background: #f6f7f7; }
.hook { font-size: 12px; background: #f0f6fc; border-radius: 3px; padding: 1px 6px; }
</style>
</head>
<body>
`

const pageFoot = `<p style="opacity:.6;">{{.Version}}</p>
</body>
</html>
`

var indexTemplate = template.Must(template.New("index").Parse(pageHead + `
<h1>{{.Title}}</h1>
<div class="notice notice-{{.Parser.Level}}"><p>{{.Parser.Message}}</p></div>

<h2>Custom Rules Found in Theme Files</h2>
<form method="get" action="/">
  <p>
    <label><strong>Scan Additional Theme File (Optional)</strong></label><br>
    <span style="font-family:monospace;">{{.ThemeDir}}/</span>
    <input type="text" name="file" placeholder="inc/extra.php" value="{{.Additional}}">
    <label><input type="checkbox" name="all" value="1"{{if .ThemeWide}} checked{{end}}> Scan every PHP file in the theme</label>
    <br><em>Path is relative to the active theme directory (e.g., "inc/extra.php").</em>
  </p>
  <p><button type="submit">Scan for Custom Rules</button></p>
</form>
{{if .ScanError}}<div class="notice notice-error"><pre>{{.ScanError}}</pre></div>{{end}}
{{.Report}}

<hr>
<h2>UI-Based Settings Export</h2>
<p>Preview and download WooCommerce shipping settings configured in the admin.</p>
<form method="post" action="/export" style="margin-bottom:1em;">
  <input type="hidden" name="{{.NonceField}}" value="{{.Nonce}}">
  <p><button type="submit">Download CSV of UI Settings</button></p>
</form>

<h3>Shipping Zones &amp; Methods Preview</h3>
{{with .Preview}}
{{if .Available}}
<form method="get" action="/" style="margin:0 0 12px 0;">
  <label style="margin-right:12px;"><input type="checkbox" name="issues_only" value="1"{{if .IssuesOnly}} checked{{end}}> Only show zones with issues</label>
  <label style="margin-right:12px;"><input type="checkbox" name="enabled_only" value="1"{{if .EnabledOnly}} checked{{end}}> Show only enabled methods</label>
  <button type="submit">Apply Filters</button>
  <a href="/">Reset</a>
</form>
{{if .Warnings}}<div class="notice notice-warning"><p style="margin:8px 0 0 0;">{{.Warnings}}</p></div>{{end}}
<table class="widefat striped">
  <thead><tr>{{range .Headers}}<th scope="col">{{.}}</th>{{end}}</tr></thead>
  <tbody>
  {{range .Rows}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
  {{end}}
  </tbody>
</table>
{{if .Overflow}}<p><em>{{.Overflow}}</em></p>{{end}}
{{else}}
<p><em>WooCommerce shipping is not available.</em></p>
{{end}}
{{end}}
<p><a href="/self-test">Self-Test Suite</a></p>
` + pageFoot))

var selfTestTemplate = template.Must(template.New("self-test").Parse(pageHead + `
<h1>{{.Title}}</h1>

<div style="margin-top:20px;">
  <h2>Environment Versions</h2>
  <ul>
    <li>WordPress: {{or .Environment.WordPressVersion "N/A"}}</li>
    <li>Database: {{or .Environment.DatabaseVersion "N/A"}}</li>
    <li>WooCommerce: {{or .Environment.WooCommerceVersion "N/A"}}</li>
    {{if .Environment.ThemeName}}<li>{{.Environment.ThemeName}}: {{.Environment.ThemeVersion}}</li>{{end}}
    <li>Go: {{.GoVersion}}</li>
    <li>wsd build: <code>{{.BuildID}}</code></li>
  </ul>
</div>

<p>These checks verify the scanner and the data formatting helpers against the current environment.</p>
<button id="run-self-tests">Run All Tests</button>
<p id="last-test-time">{{if .LastRun}}<strong>Tests Last Ran:</strong> {{.LastRun}}{{end}}</p>
<table class="widefat striped" id="test-results" style="display:none;">
  <thead><tr><th style="width:40px;"></th><th>Test</th><th>Result</th></tr></thead>
  <tbody></tbody>
</table>

<div style="margin-top:40px;">
  <h2>Changelog Preview</h2>
  <div style="padding:1px 15px; border:1px solid #ccd0d4; background:#fff; max-height:400px; overflow-y:auto;">
    {{if .Changelog}}{{.Changelog}}{{else}}<p>changelog.md file not found.</p>{{end}}
  </div>
</div>

<script>
(function () {
  const tests = {{.Tests}};
  const nonce = {{.Nonce}};
  const nonceHeader = {{.NonceHeader}};
  const button = document.getElementById('run-self-tests');
  const table = document.getElementById('test-results');
  const body = table.querySelector('tbody');

  function post(url, params) {
    return fetch(url, {
      method: 'POST',
      credentials: 'same-origin',
      headers: { [nonceHeader]: nonce, 'Content-Type': 'application/x-www-form-urlencoded' },
      body: new URLSearchParams(params || {}),
    }).then(function (r) { return r.json(); });
  }

  async function runAll() {
    button.disabled = true;
    body.innerHTML = '';
    table.style.display = '';
    for (const test of tests) {
      const row = body.insertRow();
      const icon = row.insertCell();
      row.insertCell().textContent = test.name;
      const message = row.insertCell();
      icon.textContent = '…';
      try {
        const res = await post('/self-test/run', { test_id: test.id });
        icon.textContent = res.success ? '✔' : '✖';
        icon.style.color = res.success ? 'green' : 'red';
        message.innerHTML = (res.data && res.data.message) || 'An unknown error occurred.';
      } catch (e) {
        icon.textContent = '✖';
        icon.style.color = 'red';
        message.textContent = 'Failed to execute test (request error).';
        button.disabled = false;
        return;
      }
    }
    const stamp = await post('/self-test/timestamp');
    if (stamp.success) {
      document.getElementById('last-test-time').innerHTML = '<strong>Tests Last Ran:</strong> ' + stamp.data.time;
    }
    button.disabled = false;
  }

  button.addEventListener('click', runAll);
})();
</script>
<p><a href="/">Back to the debugger</a></p>
` + pageFoot))
