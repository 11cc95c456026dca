package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

const tomlFileName = ".wsd.toml"

// tomlFile mirrors the KDL layout for projects that already keep TOML config around
type tomlFile struct {
	Site struct {
		Name          string `toml:"name"`
		HomeURL       string `toml:"home_url"`
		AdminURL      string `toml:"admin_url"`
		WordPressRoot string `toml:"wordpress_root"`
	} `toml:"site"`
	Theme struct {
		Dir         string   `toml:"dir"`
		RulesFile   string   `toml:"rules_file"`
		MaxFileSize string   `toml:"max_file_size"`
		Include     []string `toml:"include"`
		Exclude     []string `toml:"exclude"`
	} `toml:"theme"`
	Store struct {
		Driver      string `toml:"driver"`
		DSN         string `toml:"dsn"`
		TablePrefix string `toml:"table_prefix"`
		Snapshot    string `toml:"snapshot"`
	} `toml:"store"`
	Preview struct {
		MaxRows        *int   `toml:"max_rows"`
		MaxLocations   *int   `toml:"max_locations"`
		CurrencySymbol string `toml:"currency_symbol"`
		IssuesOnly     bool   `toml:"issues_only"`
		EnabledOnly    bool   `toml:"enabled_only"`
	} `toml:"preview"`
	Server struct {
		Addr          string `toml:"addr"`
		SessionSecret string `toml:"session_secret"`
		AdminToken    string `toml:"admin_token"`
	} `toml:"server"`
	Scan struct {
		Workers         int      `toml:"workers"`
		ReportCacheSize int      `toml:"report_cache_size"`
		WatchDebounceMs int      `toml:"watch_debounce_ms"`
		Products        []string `toml:"products"`
	} `toml:"scan"`
	StatePath string `toml:"state_path"`
}

// LoadTOML attempts to load configuration from a .wsd.toml file in dir
func LoadTOML(dir string) (*Config, error) {
	path := filepath.Join(dir, tomlFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %v", tomlFileName, err)
	}
	cfg, err := parseTOML(data)
	if err != nil {
		return nil, err
	}
	resolvePaths(cfg, dir)
	return cfg, nil
}

func parseTOML(data []byte) (*Config, error) {
	var f tomlFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse TOML config: %w", err)
	}

	cfg := Default()
	setString(&cfg.Site.Name, f.Site.Name)
	setString(&cfg.Site.HomeURL, f.Site.HomeURL)
	setString(&cfg.Site.AdminURL, f.Site.AdminURL)
	setString(&cfg.Site.WordPressRoot, f.Site.WordPressRoot)

	setString(&cfg.Theme.Dir, f.Theme.Dir)
	setString(&cfg.Theme.RulesFile, f.Theme.RulesFile)
	if f.Theme.MaxFileSize != "" {
		sz, err := parseSize(f.Theme.MaxFileSize)
		if err != nil {
			return nil, fmt.Errorf("invalid theme.max_file_size %q: %w", f.Theme.MaxFileSize, err)
		}
		cfg.Theme.MaxFileSize = sz
	}
	if len(f.Theme.Include) > 0 {
		cfg.Theme.Include = f.Theme.Include
	}
	if f.Theme.Exclude != nil {
		cfg.Theme.Exclude = f.Theme.Exclude
	}

	setString(&cfg.Store.Driver, f.Store.Driver)
	setString(&cfg.Store.DSN, f.Store.DSN)
	setString(&cfg.Store.TablePrefix, f.Store.TablePrefix)
	setString(&cfg.Store.Snapshot, f.Store.Snapshot)

	if f.Preview.MaxRows != nil {
		cfg.Preview.MaxRows = *f.Preview.MaxRows
	}
	if f.Preview.MaxLocations != nil {
		cfg.Preview.MaxLocations = *f.Preview.MaxLocations
	}
	setString(&cfg.Preview.CurrencySymbol, f.Preview.CurrencySymbol)
	cfg.Preview.IssuesOnly = f.Preview.IssuesOnly
	cfg.Preview.EnabledOnly = f.Preview.EnabledOnly

	setString(&cfg.Server.Addr, f.Server.Addr)
	setString(&cfg.Server.SessionSecret, f.Server.SessionSecret)
	setString(&cfg.Server.AdminToken, f.Server.AdminToken)

	if f.Scan.Workers != 0 {
		cfg.Scan.Workers = f.Scan.Workers
	}
	if f.Scan.ReportCacheSize != 0 {
		cfg.Scan.ReportCacheSize = f.Scan.ReportCacheSize
	}
	if f.Scan.WatchDebounceMs != 0 {
		cfg.Scan.WatchDebounceMs = f.Scan.WatchDebounceMs
	}
	if len(f.Scan.Products) > 0 {
		cfg.Scan.Products = f.Scan.Products
	}
	setString(&cfg.StatePath, f.StatePath)

	return cfg, nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
