package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTOML(t *testing.T) {
	content := `
state_path = "state.db"

[site]
name = "Shop"
home_url = "https://shop.example.com"

[theme]
dir = "themes/child"
max_file_size = "512KB"
exclude = ["**/old/**"]

[store]
driver = "snapshot"
snapshot = "zones.json"

[preview]
max_rows = 10
enabled_only = true
`
	cfg, err := parseTOML([]byte(content))
	require.NoError(t, err)

	assert.Equal(t, "Shop", cfg.Site.Name)
	assert.Equal(t, "themes/child", cfg.Theme.Dir)
	assert.Equal(t, int64(512*1024), cfg.Theme.MaxFileSize)
	assert.Equal(t, []string{"**/old/**"}, cfg.Theme.Exclude)
	assert.Equal(t, "snapshot", cfg.Store.Driver)
	assert.Equal(t, 10, cfg.Preview.MaxRows)
	assert.Equal(t, DefaultMaxLocations, cfg.Preview.MaxLocations)
	assert.True(t, cfg.Preview.EnabledOnly)
	assert.Equal(t, "state.db", cfg.StatePath)
}

func TestParseTOML_BadSize(t *testing.T) {
	_, err := parseTOML([]byte("[theme]\nmax_file_size = \"huge\"\n"))
	assert.Error(t, err)
}

func TestLoadWithRoot_FallsBackToTOML(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", t.TempDir())
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".wsd.toml"), []byte("[theme]\ndir = \"child\"\n"), 0644))

	cfg, err := LoadWithRoot("", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "child"), cfg.Theme.Dir)
}
