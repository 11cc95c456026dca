package server

import (
	"bytes"
	"errors"
	"html/template"
	"net/http"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/standardbeagle/wsd/internal/debug"
	"github.com/standardbeagle/wsd/internal/display"
	"github.com/standardbeagle/wsd/internal/export"
	"github.com/standardbeagle/wsd/internal/preview"
	"github.com/standardbeagle/wsd/internal/scanner"
	"github.com/standardbeagle/wsd/internal/selftest"
	"github.com/standardbeagle/wsd/internal/version"
	"github.com/standardbeagle/wsd/internal/woo"
)

// MsgShippingUnavailable replaces the preview when no settings source answers
const MsgShippingUnavailable = "WooCommerce shipping is not available."

var errNoSource = errors.New("no shipping settings source configured")

// timestampLayout matches WordPress's default "F j, Y g:i a"
const timestampLayout = "January 2, 2006 3:04 pm"

type previewView struct {
	Available   bool
	IssuesOnly  bool
	EnabledOnly bool
	Headers     []string
	Rows        [][]template.HTML
	Warnings    template.HTML
	Overflow    string
}

type indexView struct {
	Title      string
	Nonce      string
	NonceField string
	Parser     scanner.Notice
	ThemeDir   string
	Additional string
	ThemeWide  bool
	Report     template.HTML
	ScanError  string
	Preview    previewView
	Version    string
}

func (s *AdminServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	nonce, err := s.nonce(w, r)
	if err != nil {
		http.Error(w, "failed to start session", http.StatusInternalServerError)
		return
	}

	q := r.URL.Query()
	view := indexView{
		Title:      "Shipping Debugger",
		Nonce:      nonce,
		NonceField: NonceField,
		Parser:     s.scanner.ParserStatus(),
		ThemeDir:   s.cfg.Theme.Dir,
		Additional: q.Get("file"),
		ThemeWide:  isChecked(q.Get("all")),
		Version:    version.Info(),
	}

	report, err := s.scanner.Scan(r.Context(), scanner.Request{
		AdditionalFile: view.Additional,
		ThemeWide:      view.ThemeWide,
	})
	if err != nil {
		view.ScanError = err.Error()
		debug.LogServer("scan failed: %v\n", err)
	} else {
		var buf bytes.Buffer
		if err := display.NewTreeFormatter(display.FormatterOptions{Format: "html"}).WriteHTML(&buf, report.Display()); err != nil {
			view.ScanError = err.Error()
		} else {
			view.Report = template.HTML(buf.String())
		}
	}

	view.Preview = s.previewView(r, isChecked(q.Get("issues_only")), isChecked(q.Get("enabled_only")))
	render(w, indexTemplate, view)
}

func (s *AdminServer) previewView(r *http.Request, issuesOnly, enabledOnly bool) previewView {
	pv := previewView{IssuesOnly: issuesOnly, EnabledOnly: enabledOnly, Headers: preview.Headers}
	zones, err := s.zones(r)
	if err != nil {
		return pv
	}
	pv.Available = true

	opts := preview.OptionsFromConfig(s.cfg)
	opts.IssuesOnly = issuesOnly
	opts.EnabledOnly = enabledOnly
	res := preview.CollectZoneRows(zones, opts)

	for _, row := range res.Rows {
		cells := row.Cells()
		out := make([]template.HTML, len(cells))
		for i, c := range cells {
			out[i] = template.HTML(c)
		}
		pv.Rows = append(pv.Rows, out)
	}
	pv.Warnings = template.HTML(res.WarningsHTML())
	pv.Overflow = res.OverflowText()
	return pv
}

func (s *AdminServer) zones(r *http.Request) ([]woo.Zone, error) {
	if s.source == nil {
		return nil, errNoSource
	}
	zones, err := s.source.Zones(r.Context())
	if err != nil {
		debug.LogServer("shipping settings unavailable: %v\n", err)
		return nil, err
	}
	return zones, nil
}

func (s *AdminServer) handleExport(w http.ResponseWriter, r *http.Request) {
	zones, err := s.zones(r)
	if err != nil {
		http.Error(w, MsgShippingUnavailable, http.StatusServiceUnavailable)
		return
	}

	home := s.cfg.Site.HomeURL
	if home == "" {
		home = r.Host
	}
	filename := export.Filename(home, time.Now())

	h := w.Header()
	h.Set("Cache-Control", "no-cache, must-revalidate, max-age=0, no-store, private")
	h.Set("Expires", "Wed, 11 Jan 1984 05:00:00 GMT")
	h.Set("Content-Type", "text/csv; charset=utf-8")
	h.Set("Content-Disposition", "attachment; filename="+filename)

	if err := export.WriteCSV(w, zones, s.cfg.Preview.CurrencySymbol); err != nil {
		debug.LogServer("csv export failed: %v\n", err)
	}
}

type selfTestView struct {
	Title       string
	Nonce       string
	NonceHeader string
	Environment woo.Environment
	Version     string
	BuildID     string
	GoVersion   string
	Tests       []selftest.Test
	LastRun     string
	Changelog   template.HTML
}

func (s *AdminServer) handleSelfTestPage(w http.ResponseWriter, r *http.Request) {
	nonce, err := s.nonce(w, r)
	if err != nil {
		http.Error(w, "failed to start session", http.StatusInternalServerError)
		return
	}

	view := selfTestView{
		Title:       "Shipping Debugger — Self-Test Suite",
		Nonce:       nonce,
		NonceHeader: NonceHeader,
		Version:     version.Info(),
		BuildID:     version.BuildID(),
		GoVersion:   runtime.Version(),
		Tests:       selftest.Tests,
	}
	if s.source != nil {
		if env, err := s.source.Environment(r.Context()); err == nil {
			view.Environment = env
		}
	}
	if last, err := s.suite.LastRun(r.Context()); err == nil && !last.IsZero() {
		view.LastRun = last.Format(timestampLayout)
	}
	if s.changelogPath != "" {
		view.Changelog = template.HTML(selftest.ChangelogPreview(s.changelogPath, selftest.DefaultChangelogLines))
	}
	render(w, selfTestTemplate, view)
}

var testIDPattern = regexp.MustCompile(`[^a-z0-9_\-]`)

func (s *AdminServer) handleRunTest(w http.ResponseWriter, r *http.Request) {
	id := testIDPattern.ReplaceAllString(strings.ToLower(r.FormValue("test_id")), "")
	res := s.suite.Run(r.Context(), id)
	writeJSON(w, http.StatusOK, ajaxResponse{Success: res.Passed, Data: messageData{Message: res.Message}})
}

func (s *AdminServer) handleTimestamp(w http.ResponseWriter, r *http.Request) {
	at, err := s.suite.MarkRun(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, ajaxResponse{Success: false, Data: messageData{Message: err.Error()}})
		return
	}
	writeJSON(w, http.StatusOK, ajaxResponse{Success: true, Data: timestampData{Time: at.Format(timestampLayout)}})
}

func isChecked(v string) bool {
	return v != "" && v != "0" && v != "false"
}

func render(w http.ResponseWriter, t *template.Template, data any) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		debug.LogServer("template %s failed: %v\n", t.Name(), err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
