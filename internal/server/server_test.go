package server

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/wsd/internal/config"
	"github.com/standardbeagle/wsd/internal/export"
	"github.com/standardbeagle/wsd/internal/scanner"
	"github.com/standardbeagle/wsd/internal/selftest"
	"github.com/standardbeagle/wsd/internal/store"
	"github.com/standardbeagle/wsd/internal/woo"
)

const snapshotYAML = `
environment:
  woocommerce_version: 8.9.0
zones:
  - id: 1
    name: Lower 48
    locations:
      - {code: US, type: country}
    methods:
      - instance_id: 3
        id: free_shipping
        enabled: true
`

const rulesPHP = `<?php
add_filter('woocommerce_package_rates', 'hide_free_shipping');
function hide_free_shipping($rates) {
    unset($rates['free_shipping:3']);
    return $rates;
}
`

type fixture struct {
	server *AdminServer
	store  *store.Store
	cfg    *config.Config
}

func newFixture(t *testing.T, token string) *fixture {
	t.Helper()
	root := t.TempDir()
	theme := filepath.Join(root, "child")
	require.NoError(t, os.MkdirAll(filepath.Join(theme, "inc"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(theme, "inc", "shipping-restrictions.php"), []byte(rulesPHP), 0o644))

	snap := filepath.Join(root, "site.yaml")
	require.NoError(t, os.WriteFile(snap, []byte(snapshotYAML), 0o644))

	cfg := config.Default()
	cfg.Theme.Dir = theme
	cfg.Site.HomeURL = "https://shop.example.com"
	cfg.Server.SessionSecret = "test-secret-key-32-bytes-long!!"
	cfg.Server.AdminToken = token

	source, err := woo.OpenSnapshot(snap, "", theme)
	require.NoError(t, err)

	sc, err := scanner.New(cfg)
	require.NoError(t, err)

	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	srv, err := New(Options{
		Config:  cfg,
		Scanner: sc,
		Source:  source,
		Suite:   selftest.New(cfg, sc, source, st),
	})
	require.NoError(t, err)
	return &fixture{server: srv, store: st, cfg: cfg}
}

var nonceInput = regexp.MustCompile(`name="_wsd_nonce" value="([0-9a-f]+)"`)

// session loads the index page and returns its nonce and cookies
func (f *fixture) session(t *testing.T, h http.Handler, header http.Header) (string, []*http.Cookie, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for k, v := range header {
		req.Header.Set(k, v[0])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	m := nonceInput.FindStringSubmatch(body)
	require.NotNil(t, m, "nonce field present")
	return m[1], rec.Result().Cookies(), body
}

func post(h http.Handler, path string, form url.Values, cookies []*http.Cookie, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, v := range header {
		req.Header.Set(k, v[0])
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestIndexPage(t *testing.T) {
	f := newFixture(t, "")
	_, _, body := f.session(t, f.server.Handler(), nil)

	assert.Contains(t, body, "PHP parser is loaded and parsed a test snippet successfully.")
	assert.Contains(t, body, "Function: <code>hide_free_shipping()</code>")
	assert.Contains(t, body, "Removes a shipping rate by key (<code>free_shipping:3</code>)")
	assert.Contains(t, body, "<strong>Lower 48</strong><br>")
	assert.Contains(t, body, "Free Shipping has no requirement (no minimum and no coupon).")
}

func TestIndexPage_Filters(t *testing.T) {
	f := newFixture(t, "")
	req := httptest.NewRequest(http.MethodGet, "/?issues_only=1&file=../../etc/passwd", nil)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, scanner.MsgOutsideTheme)
	assert.Contains(t, body, `name="issues_only" value="1" checked`)
}

func TestExport(t *testing.T) {
	f := newFixture(t, "")
	h := f.server.Handler()

	rec := post(h, "/export", url.Values{}, nil, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), MsgNonceExpired)

	nonce, cookies, _ := f.session(t, h, nil)
	rec = post(h, "/export", url.Values{NonceField: {nonce}}, cookies, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Regexp(t, `^attachment; filename=shop\.example\.com-shipping-\d{4}-\d{2}-\d{2}-\d{6}\.csv$`, rec.Header().Get("Content-Disposition"))

	records, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, export.Header, records[0])
	assert.Len(t, records, 3)
}

func TestCapability(t *testing.T) {
	f := newFixture(t, "s3cret")
	h := f.server.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), MsgInsufficientPermissions)

	bearer := http.Header{"Authorization": {"Bearer s3cret"}}
	nonce, cookies, _ := f.session(t, h, bearer)

	rec = post(h, "/export", url.Values{NonceField: {nonce}}, cookies, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code, "nonce alone does not grant the capability")

	rec = post(h, "/export", url.Values{NonceField: {nonce}}, cookies, bearer)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/self-test?token=s3cret", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var tokenCookieSet bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == tokenCookie {
			tokenCookieSet = true
		}
	}
	assert.True(t, tokenCookieSet)
}

func decode(t *testing.T, body io.Reader) (bool, map[string]string) {
	t.Helper()
	var resp struct {
		Success bool              `json:"success"`
		Data    map[string]string `json:"data"`
	}
	require.NoError(t, json.NewDecoder(body).Decode(&resp))
	return resp.Success, resp.Data
}

func TestNonceHeader_AnyCase(t *testing.T) {
	f := newFixture(t, "")
	h := f.server.Handler()
	nonce, cookies, _ := f.session(t, h, nil)

	for _, key := range []string{NonceHeader, "x-wsd-nonce", "X-WSD-NONCE"} {
		rec := post(h, "/self-test/timestamp", url.Values{}, cookies, http.Header{key: {nonce}})
		require.Equal(t, http.StatusOK, rec.Code, key)
		ok, _ := decode(t, rec.Body)
		assert.True(t, ok, key)
	}
}

func TestSelfTestEndpoints(t *testing.T) {
	f := newFixture(t, "")
	h := f.server.Handler()

	rec := post(h, "/self-test/run", url.Values{"test_id": {"warning_logic_mock"}}, nil, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	ok, data := decode(t, rec.Body)
	assert.False(t, ok)
	assert.Equal(t, MsgNonceFailed, data["message"])

	nonce, cookies, _ := f.session(t, h, nil)
	withNonce := http.Header{NonceHeader: {nonce}}

	rec = post(h, "/self-test/run", url.Values{"test_id": {"warning_logic_mock"}}, cookies, withNonce)
	require.Equal(t, http.StatusOK, rec.Code)
	ok, data = decode(t, rec.Body)
	assert.True(t, ok, data["message"])

	rec = post(h, "/self-test/run", url.Values{"test_id": {"Nope!"}}, cookies, withNonce)
	ok, data = decode(t, rec.Body)
	assert.False(t, ok)
	assert.Equal(t, selftest.MsgInvalidTest, data["message"])

	rec = post(h, "/self-test/timestamp", url.Values{}, cookies, withNonce)
	require.Equal(t, http.StatusOK, rec.Code)
	ok, data = decode(t, rec.Body)
	assert.True(t, ok)
	assert.NotEmpty(t, data["time"])

	last, err := f.store.GetTime(context.Background(), store.OptionSelfTestLastRun)
	require.NoError(t, err)
	assert.False(t, last.IsZero())
}

func TestSelfTestPage(t *testing.T) {
	f := newFixture(t, "")
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/self-test", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "WooCommerce: 8.9.0")
	assert.Contains(t, body, "ast_scanner_logic")
	assert.Contains(t, body, "changelog.md file not found.")
}
