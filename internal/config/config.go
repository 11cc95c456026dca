package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Preview and scanner defaults shared by every config source
const (
	DefaultRulesFile       = "inc/shipping-restrictions.php"
	DefaultMaxPreviewRows  = 100
	DefaultMaxLocations    = 6
	DefaultCurrencySymbol  = "$"
	DefaultTablePrefix     = "wp_"
	DefaultServerAddr      = "127.0.0.1:8787"
	DefaultAdminPath       = "/wp-admin/"
	DefaultWatchDebounceMs = 300
	DefaultReportCacheSize = 256
	DefaultMaxFileSize     = 2 * 1024 * 1024
)

type Config struct {
	Version int
	Site    Site
	Theme   Theme
	Store   Store
	Preview Preview
	Server  Server
	Scan    Scan
	// StatePath is the sqlite file holding self-test timestamps and other local options
	StatePath string
}

// Site describes the WordPress install being inspected
type Site struct {
	Name          string
	HomeURL       string
	AdminURL      string // base for "Edit zone" links
	WordPressRoot string // optional, enables version detection from wp-includes/version.php
}

type Theme struct {
	Dir         string
	RulesFile   string // relative to Dir
	Include     []string
	Exclude     []string
	MaxFileSize int64
}

// Store selects where WooCommerce shipping settings come from
type Store struct {
	Driver      string // "mysql", "sqlite" or "snapshot"
	DSN         string
	TablePrefix string
	Snapshot    string // YAML/JSON file used when Driver is "snapshot"
}

type Preview struct {
	MaxRows        int
	MaxLocations   int
	CurrencySymbol string
	IssuesOnly     bool
	EnabledOnly    bool
}

type Server struct {
	Addr          string
	SessionSecret string
	AdminToken    string // empty disables the capability check
}

type Scan struct {
	Workers         int // 0 = auto-detect (NumCPU-1)
	ReportCacheSize int
	WatchDebounceMs int
	// Products are bolded in checkout error messages; nil uses the built-in list
	Products []string
}

func Load(path string) (*Config, error) {
	return LoadWithRoot(path, "")
}

// LoadWithRoot reads ~/.wsd.kdl, then the project's .wsd.kdl (or .wsd.toml), merges them,
// and finally applies .env and WSD_* environment overrides.
func LoadWithRoot(path string, rootDir string) (*Config, error) {
	searchDir := "."
	if rootDir != "" {
		searchDir = rootDir
	}

	homeDir, err := os.UserHomeDir()
	var baseConfig *Config
	if err == nil && homeDir != searchDir {
		if globalCfg, err := LoadKDL(homeDir); err == nil && globalCfg != nil {
			baseConfig = globalCfg
		}
	}

	var projectConfig *Config
	if path != "" {
		cfg, err := loadFile(path)
		if err != nil {
			return nil, err
		}
		projectConfig = cfg
	} else if kdlCfg, err := LoadKDL(searchDir); err != nil {
		return nil, err
	} else if kdlCfg != nil {
		projectConfig = kdlCfg
	} else if tomlCfg, err := LoadTOML(searchDir); err != nil {
		return nil, err
	} else if tomlCfg != nil {
		projectConfig = tomlCfg
	}

	var cfg *Config
	switch {
	case baseConfig != nil && projectConfig != nil:
		cfg = mergeConfigs(baseConfig, projectConfig)
	case projectConfig != nil:
		cfg = projectConfig
	case baseConfig != nil:
		cfg = baseConfig
	default:
		cfg = Default()
	}

	if err := applyEnv(cfg, searchDir); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if filepath.Ext(path) == ".toml" {
		return parseTOML(content)
	}
	return parseKDL(string(content))
}

// Default returns the configuration used when no config file exists
func Default() *Config {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}

	return &Config{
		Version: 1,
		Site: Site{
			AdminURL: DefaultAdminPath,
		},
		Theme: Theme{
			Dir:         cwd,
			RulesFile:   DefaultRulesFile,
			Include:     []string{"**/*.php"},
			Exclude:     defaultExclusions(),
			MaxFileSize: DefaultMaxFileSize,
		},
		Store: Store{
			Driver:      "mysql",
			TablePrefix: DefaultTablePrefix,
		},
		Preview: Preview{
			MaxRows:        DefaultMaxPreviewRows,
			MaxLocations:   DefaultMaxLocations,
			CurrencySymbol: DefaultCurrencySymbol,
		},
		Server: Server{
			Addr: DefaultServerAddr,
		},
		Scan: Scan{
			ReportCacheSize: DefaultReportCacheSize,
			WatchDebounceMs: DefaultWatchDebounceMs,
		},
		StatePath: filepath.Join(cwd, ".wsd-state.db"),
	}
}

func defaultExclusions() []string {
	return []string{
		"**/vendor/**",
		"**/node_modules/**",
		"**/.git/**",
		"**/tests/**",
		"**/*.min.php",
	}
}

// mergeConfigs merges a base config with a project config.
// Project config takes precedence, but base exclusions are preserved.
func mergeConfigs(base, project *Config) *Config {
	merged := *project

	if len(base.Theme.Exclude) > 0 {
		seen := make(map[string]bool)
		out := make([]string, 0, len(base.Theme.Exclude)+len(project.Theme.Exclude))
		for _, list := range [][]string{base.Theme.Exclude, project.Theme.Exclude} {
			for _, pattern := range list {
				if !seen[pattern] {
					seen[pattern] = true
					out = append(out, pattern)
				}
			}
		}
		merged.Theme.Exclude = out
	}

	if len(project.Theme.Include) == 0 && len(base.Theme.Include) > 0 {
		merged.Theme.Include = base.Theme.Include
	}

	// Credentials usually live in the home config only
	if merged.Store.DSN == "" {
		merged.Store.DSN = base.Store.DSN
	}
	if merged.Server.SessionSecret == "" {
		merged.Server.SessionSecret = base.Server.SessionSecret
	}
	if merged.Server.AdminToken == "" {
		merged.Server.AdminToken = base.Server.AdminToken
	}

	return &merged
}

// applyEnv loads <dir>/.env (existing variables win) and applies WSD_* overrides
func applyEnv(cfg *Config, dir string) error {
	envPath := filepath.Join(dir, ".env")
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return err
		}
	}

	overrides := []struct {
		key string
		dst *string
	}{
		{"WSD_THEME_DIR", &cfg.Theme.Dir},
		{"WSD_DB_DRIVER", &cfg.Store.Driver},
		{"WSD_DSN", &cfg.Store.DSN},
		{"WSD_TABLE_PREFIX", &cfg.Store.TablePrefix},
		{"WSD_SNAPSHOT", &cfg.Store.Snapshot},
		{"WSD_SESSION_SECRET", &cfg.Server.SessionSecret},
		{"WSD_ADMIN_TOKEN", &cfg.Server.AdminToken},
		{"WSD_HOME_URL", &cfg.Site.HomeURL},
	}
	for _, o := range overrides {
		if v, ok := os.LookupEnv(o.key); ok && v != "" {
			*o.dst = v
		}
	}
	return nil
}
