package selftest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/wsd/internal/config"
	"github.com/standardbeagle/wsd/internal/scanner"
	"github.com/standardbeagle/wsd/internal/store"
	"github.com/standardbeagle/wsd/internal/woo"
)

type zonesSource struct {
	err error
}

func (z zonesSource) Zones(context.Context) ([]woo.Zone, error) {
	return []woo.Zone{{Name: woo.RestOfWorldZoneName}}, z.err
}

func (z zonesSource) Environment(context.Context) (woo.Environment, error) {
	return woo.Environment{}, nil
}

func (z zonesSource) Close() error { return nil }

func newSuite(t *testing.T, source woo.Source, st *store.Store) (*Suite, string) {
	t.Helper()
	theme := t.TempDir()
	cfg := config.Default()
	cfg.Theme.Dir = theme
	sc, err := scanner.New(cfg)
	require.NoError(t, err)
	return New(cfg, sc, source, st), theme
}

func TestRunAll(t *testing.T) {
	suite, theme := newSuite(t, zonesSource{}, nil)

	results := suite.RunAll(context.Background())
	require.Len(t, results, len(Tests))
	for i, r := range results {
		assert.Equal(t, Tests[i].ID, r.ID)
		assert.Equal(t, Tests[i].Name, r.Name)
		assert.True(t, r.Passed, "%s: %s", r.ID, r.Message)
	}
	assert.Equal(t, "Successfully detected rules and resolved array variables.", results[3].Message)

	_, err := os.Stat(filepath.Join(theme, "inc", FixtureFile))
	assert.True(t, os.IsNotExist(err), "fixture is removed after the scan")
}

func TestRun_InvalidID(t *testing.T) {
	suite, _ := newSuite(t, zonesSource{}, nil)
	r := suite.Run(context.Background(), "drop_tables")
	assert.False(t, r.Passed)
	assert.Equal(t, MsgInvalidTest, r.Message)
}

func TestDependencyCheck_MissingWooCommerce(t *testing.T) {
	suite, _ := newSuite(t, zonesSource{err: errors.New("connection refused")}, nil)
	r := suite.Run(context.Background(), "dependency_check")
	assert.False(t, r.Passed)
	assert.Equal(t, "Missing critical dependencies: WooCommerce.", r.Message)

	noSource, _ := newSuite(t, nil, nil)
	assert.False(t, noSource.Run(context.Background(), "dependency_check").Passed)
}

func TestScannerCheck_KeepsExistingInc(t *testing.T) {
	suite, theme := newSuite(t, zonesSource{}, nil)
	other := filepath.Join(theme, "inc", "shipping-restrictions.php")
	require.NoError(t, os.MkdirAll(filepath.Dir(other), 0o755))
	require.NoError(t, os.WriteFile(other, []byte("<?php\n"), 0o644))

	r := suite.Run(context.Background(), "ast_scanner_logic")
	assert.True(t, r.Passed, r.Message)
	assert.FileExists(t, other)
}

func TestLastRun(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()

	suite, _ := newSuite(t, zonesSource{}, st)
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	suite.now = func() time.Time { return fixed }

	last, err := suite.LastRun(context.Background())
	require.NoError(t, err)
	assert.True(t, last.IsZero())

	marked, err := suite.MarkRun(context.Background())
	require.NoError(t, err)
	assert.True(t, fixed.Equal(marked))

	last, err = suite.LastRun(context.Background())
	require.NoError(t, err)
	assert.True(t, fixed.Equal(last))
}

func TestChangelogPreview(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "CHANGELOG.md")
	require.NoError(t, os.WriteFile(path, []byte("# Changelog\n\n## 1.2.0\n- Added **theme-wide** scans\n"), 0o644))

	out := ChangelogPreview(path, DefaultChangelogLines)
	assert.Contains(t, out, "<h1>Changelog</h1>")
	assert.Contains(t, out, "<strong>theme-wide</strong>")

	assert.Equal(t, "<p>changelog.md file not found.</p>", ChangelogPreview(filepath.Join(dir, "missing.md"), 10))
}

func TestPlainChangelog(t *testing.T) {
	out := plainChangelog([]byte("one\ntwo <b>\nthree\n"), 2)
	assert.Contains(t, out, "<pre>one\ntwo &lt;b&gt;</pre>")
}
