package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/standardbeagle/wsd/internal/config"
	wsderrors "github.com/standardbeagle/wsd/internal/errors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const rulesSource = `<?php
add_filter('woocommerce_package_rates', 'storefront_limit_rates');
function storefront_limit_rates($rates) {
    unset($rates['flat_rate:2']);
    return $rates;
}
`

func newTheme(t *testing.T, files map[string]string) (*config.Config, string) {
	t.Helper()
	root := t.TempDir()
	theme := filepath.Join(root, "storefront-child")
	require.NoError(t, os.MkdirAll(theme, 0o755))
	for rel, content := range files {
		path := filepath.Join(theme, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	cfg := config.Default()
	cfg.Theme.Dir = theme
	cfg.Scan.WatchDebounceMs = 50
	return cfg, theme
}

func newScanner(t *testing.T, cfg *config.Config) *Scanner {
	t.Helper()
	s, err := New(cfg)
	require.NoError(t, err)
	return s
}

func TestParserStatus(t *testing.T) {
	cfg, _ := newTheme(t, nil)
	s := newScanner(t, cfg)
	status := s.ParserStatus()
	assert.Equal(t, LevelSuccess, status.Level)
	assert.Contains(t, status.Message, "parsed a test snippet successfully")
}

func TestScan_DefaultRulesFile(t *testing.T) {
	cfg, _ := newTheme(t, map[string]string{config.DefaultRulesFile: rulesSource})
	s := newScanner(t, cfg)

	report, err := s.Scan(context.Background(), Request{})
	require.NoError(t, err)
	require.Len(t, report.Files, 1)

	fr := report.Files[0]
	assert.Equal(t, "storefront-child/inc/shipping-restrictions.php", fr.DisplayPath)
	assert.Empty(t, fr.Notices)
	require.Len(t, fr.Groups, 2)
	assert.Equal(t, "global scope", fr.Groups[0].Function)
	assert.Equal(t, "storefront_limit_rates()", fr.Groups[1].Function)
	assert.Equal(t, []string{"hooked to woocommerce_package_rates"}, fr.Groups[1].Hooks)
	assert.Equal(t, 2, report.FindingCount())
}

func TestScan_DefaultRulesFileMissing(t *testing.T) {
	cfg, _ := newTheme(t, nil)
	s := newScanner(t, cfg)

	report, err := s.Scan(context.Background(), Request{})
	require.NoError(t, err)
	require.Len(t, report.Files, 1)
	require.Len(t, report.Files[0].Notices, 1)
	assert.Equal(t, MsgFileNotFound, report.Files[0].Notices[0].Message)
}

func TestScan_AdditionalFile(t *testing.T) {
	cfg, theme := newTheme(t, map[string]string{
		"inc/extra.php": rulesSource,
	})
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(theme), "outside.php"), []byte(rulesSource), 0o644))
	s := newScanner(t, cfg)

	tests := []struct {
		name       string
		file       string
		wantFiles  int
		wantNotice string
	}{
		{"inside theme", "inc/extra.php", 1, ""},
		{"leading slash trimmed", "/inc/extra.php", 1, ""},
		{"missing", "inc/nope.php", 0, MsgAdditionalNotFound},
		{"parent directory", "../outside.php", 0, MsgOutsideTheme},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := s.Scan(context.Background(), Request{AdditionalFile: tt.file})
			require.NoError(t, err)
			assert.Len(t, report.Files, tt.wantFiles)
			if tt.wantNotice != "" {
				require.Len(t, report.Notices, 1)
				assert.Equal(t, tt.wantNotice, report.Notices[0].Message)
			} else {
				assert.Empty(t, report.Notices)
			}
		})
	}
}

func TestScan_ThemeWide(t *testing.T) {
	cfg, _ := newTheme(t, map[string]string{
		"functions.php":          "<?php\nrequire 'inc/shipping-restrictions.php';\n",
		config.DefaultRulesFile:  rulesSource,
		"vendor/lib/ignored.php": rulesSource,
		"templates/cart.php":     "<?php\n$cart->add_fee('Gift wrap', 3);\n",
		"assets/readme.txt":      "not php",
		"inc/legacy/old.min.php": rulesSource,
	})
	s := newScanner(t, cfg)

	report, err := s.Scan(context.Background(), Request{ThemeWide: true})
	require.NoError(t, err)

	var paths []string
	for _, f := range report.Files {
		paths = append(paths, f.DisplayPath)
	}
	assert.Equal(t, []string{
		"storefront-child/functions.php",
		"storefront-child/inc/shipping-restrictions.php",
		"storefront-child/templates/cart.php",
	}, paths)

	require.Len(t, report.Files[0].Notices, 1)
	assert.Equal(t, MsgNothingFound, report.Files[0].Notices[0].Message)
	assert.Equal(t, 3, report.FindingCount())
}

func TestScan_ThemeWideReportsFailedFiles(t *testing.T) {
	cfg, _ := newTheme(t, map[string]string{
		config.DefaultRulesFile: rulesSource,
		"inc/fake.php":          "just some text",
	})
	s := newScanner(t, cfg)

	report, err := s.Scan(context.Background(), Request{ThemeWide: true})
	require.NoError(t, err)
	require.Len(t, report.Files, 2)
	require.Len(t, report.Notices, 1)
	assert.Equal(t, LevelWarning, report.Notices[0].Level)
	assert.Equal(t, fmt.Sprintf(MsgFilesFailed, 1, 2), report.Notices[0].Message)
	assert.Equal(t, 2, report.FindingCount())
}

func TestScanAll_CollectsFailures(t *testing.T) {
	cfg, theme := newTheme(t, map[string]string{
		"a.php": "no tag here",
		"b.php": rulesSource,
		"c.php": "still no tag",
	})
	s := newScanner(t, cfg)
	files := []string{
		filepath.Join(theme, "a.php"),
		filepath.Join(theme, "b.php"),
		filepath.Join(theme, "c.php"),
	}

	reports, err := s.scanAll(context.Background(), files)
	require.Len(t, reports, 3)
	var multi *wsderrors.MultiError
	require.ErrorAs(t, err, &multi)
	require.Len(t, multi.Errors, 2)

	var scanErr *wsderrors.ScanError
	require.ErrorAs(t, multi.Errors[0], &scanErr)
	assert.Equal(t, "storefront-child/a.php", scanErr.FilePath)
	assert.Contains(t, multi.Errors[1].Error(), "storefront-child/c.php")

	reports, err = s.scanAll(context.Background(), files[1:2])
	require.NoError(t, err)
	require.Len(t, reports, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.scanAll(ctx, files)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScanFile_RejectsNonPHPContent(t *testing.T) {
	cfg, theme := newTheme(t, map[string]string{"inc/fake.php": "just some text"})
	s := newScanner(t, cfg)

	fr := s.ScanFile(filepath.Join(theme, "inc", "fake.php"))
	require.Len(t, fr.Notices, 1)
	assert.Equal(t, LevelError, fr.Notices[0].Level)
	assert.Contains(t, fr.Notices[0].Message, "no PHP open tag")
}

func TestScanSource_SyntaxErrorKeepsPartialResults(t *testing.T) {
	cfg, theme := newTheme(t, nil)
	s := newScanner(t, cfg)

	src := "<?php\nfunction broken($rates) {\n    unset($rates['local_pickup:4']);\n    if ( {\n}\n"
	fr := s.ScanSource(filepath.Join(theme, "broken.php"), []byte(src))
	require.NotEmpty(t, fr.Warnings)
	assert.Contains(t, fr.Warnings[0], "parse error at storefront-child/broken.php")
	assert.True(t, strings.HasSuffix(fr.Warnings[0], "results may be incomplete"))
}

func TestScanSource_CachesByContent(t *testing.T) {
	cfg, theme := newTheme(t, nil)
	s := newScanner(t, cfg)
	path := filepath.Join(theme, "inc", "rules.php")

	first := s.ScanSource(path, []byte(rulesSource))
	second := s.ScanSource(path, []byte(rulesSource))
	assert.Same(t, first, second)

	changed := s.ScanSource(path, []byte(rulesSource+"\n// edited\n"))
	assert.NotSame(t, first, changed)

	s.Forget()
	assert.NotSame(t, first, s.ScanSource(path, []byte(rulesSource)))
}

func TestWatcher_RescansOnWrite(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg, theme := newTheme(t, map[string]string{config.DefaultRulesFile: "<?php\n"})
	s := newScanner(t, cfg)

	reports := make(chan *Report, 4)
	w, err := NewWatcher(s, Request{}, func(r *Report, _ []string) {
		reports <- r
	})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))

	require.NoError(t, os.WriteFile(filepath.Join(theme, filepath.FromSlash(config.DefaultRulesFile)), []byte(rulesSource), 0o644))

	select {
	case r := <-reports:
		assert.Equal(t, 2, r.FindingCount())
	case <-time.After(5 * time.Second):
		t.Fatal("no report after file write")
	}
	require.NoError(t, w.Stop())
}

func TestEventDebouncer_Batches(t *testing.T) {
	defer goleak.VerifyNone(t)

	flushed := make(chan []string, 2)
	d := newEventDebouncer(20*time.Millisecond, func(paths []string) { flushed <- paths })
	d.addEvent("b.php")
	d.addEvent("a.php")
	d.addEvent("b.php")

	select {
	case paths := <-flushed:
		assert.Equal(t, []string{"a.php", "b.php"}, paths)
	case <-time.After(5 * time.Second):
		t.Fatal("no flush")
	}
	d.stop()
	d.addEvent("c.php")
	assert.Never(t, func() bool { return len(flushed) > 0 }, 100*time.Millisecond, 10*time.Millisecond)
}

func TestEventDebouncer_StopWaitsForFlush(t *testing.T) {
	defer goleak.VerifyNone(t)

	started := make(chan struct{})
	release := make(chan struct{})
	d := newEventDebouncer(time.Millisecond, func([]string) {
		close(started)
		<-release
	})
	d.addEvent("a.php")

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("flush never started")
	}

	stopped := make(chan struct{})
	go func() {
		d.stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("stop returned while a flush was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("stop did not return after the flush finished")
	}
}
