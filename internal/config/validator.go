package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	wsderrors "github.com/standardbeagle/wsd/internal/errors"
)

// Validator validates configuration and sets smart defaults
type Validator struct{}

// NewValidator creates a new configuration validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAndSetDefaults validates configuration and applies smart defaults
func (v *Validator) ValidateAndSetDefaults(cfg *Config) error {
	if err := v.validateTheme(&cfg.Theme); err != nil {
		return wsderrors.NewConfigError("theme", cfg.Theme.Dir, err)
	}

	if err := v.validateStore(&cfg.Store); err != nil {
		return wsderrors.NewConfigError("store", cfg.Store.Driver, err)
	}

	if err := v.validatePreview(&cfg.Preview); err != nil {
		return wsderrors.NewConfigError("preview", "", err)
	}

	if err := v.validateSite(&cfg.Site); err != nil {
		return wsderrors.NewConfigError("site", cfg.Site.HomeURL, err)
	}

	if cfg.Scan.Workers < 0 {
		return wsderrors.NewConfigError("scan.workers", fmt.Sprint(cfg.Scan.Workers),
			errors.New("workers cannot be negative"))
	}

	v.setSmartDefaults(cfg)
	return nil
}

func (v *Validator) validateTheme(theme *Theme) error {
	if theme.Dir == "" {
		return errors.New("theme directory cannot be empty")
	}
	if theme.RulesFile != "" {
		if filepath.IsAbs(theme.RulesFile) || strings.HasPrefix(filepath.Clean(theme.RulesFile), "..") {
			return fmt.Errorf("rules file must be relative to the theme directory, got %q", theme.RulesFile)
		}
	}
	for _, pattern := range append(append([]string{}, theme.Include...), theme.Exclude...) {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid glob pattern %q", pattern)
		}
	}
	if theme.MaxFileSize < 0 {
		return fmt.Errorf("MaxFileSize cannot be negative, got %d", theme.MaxFileSize)
	}
	return nil
}

func (v *Validator) validateStore(store *Store) error {
	switch store.Driver {
	case "", "mysql", "sqlite":
	case "snapshot":
		if store.Snapshot == "" {
			return errors.New("snapshot driver requires a snapshot file")
		}
	default:
		return fmt.Errorf("unknown store driver %q (want mysql, sqlite or snapshot)", store.Driver)
	}
	for _, r := range store.TablePrefix {
		if !(r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return fmt.Errorf("table prefix %q may only contain letters, digits and underscores", store.TablePrefix)
		}
	}
	return nil
}

func (v *Validator) validatePreview(preview *Preview) error {
	if preview.MaxRows < 0 {
		return fmt.Errorf("MaxRows cannot be negative, got %d", preview.MaxRows)
	}
	if preview.MaxLocations < 0 {
		return fmt.Errorf("MaxLocations cannot be negative, got %d", preview.MaxLocations)
	}
	return nil
}

func (v *Validator) validateSite(site *Site) error {
	if site.HomeURL == "" {
		return nil
	}
	u, err := url.Parse(site.HomeURL)
	if err != nil {
		return err
	}
	if u.Host == "" {
		return fmt.Errorf("home URL %q has no host", site.HomeURL)
	}
	return nil
}

// setSmartDefaults fills zero values left by partial config files
func (v *Validator) setSmartDefaults(cfg *Config) {
	if cfg.Scan.Workers == 0 {
		cfg.Scan.Workers = max(1, runtime.NumCPU()-1)
	}
	if cfg.Scan.ReportCacheSize == 0 {
		cfg.Scan.ReportCacheSize = DefaultReportCacheSize
	}
	if cfg.Scan.WatchDebounceMs == 0 {
		cfg.Scan.WatchDebounceMs = DefaultWatchDebounceMs
	}
	if cfg.Theme.RulesFile == "" {
		cfg.Theme.RulesFile = DefaultRulesFile
	}
	if len(cfg.Theme.Include) == 0 {
		cfg.Theme.Include = []string{"**/*.php"}
	}
	if cfg.Theme.MaxFileSize == 0 {
		cfg.Theme.MaxFileSize = DefaultMaxFileSize
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "mysql"
	}
	if cfg.Store.TablePrefix == "" {
		cfg.Store.TablePrefix = DefaultTablePrefix
	}
	if cfg.Preview.MaxRows == 0 {
		cfg.Preview.MaxRows = DefaultMaxPreviewRows
	}
	if cfg.Preview.MaxLocations == 0 {
		cfg.Preview.MaxLocations = DefaultMaxLocations
	}
	if cfg.Preview.CurrencySymbol == "" {
		cfg.Preview.CurrencySymbol = DefaultCurrencySymbol
	}
	if cfg.Site.AdminURL == "" {
		cfg.Site.AdminURL = DefaultAdminPath
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = DefaultServerAddr
	}
}

// ValidateConfig is a convenience function for quick validation
func ValidateConfig(cfg *Config) error {
	return NewValidator().ValidateAndSetDefaults(cfg)
}

// RulesPath returns the absolute default rules file path
func (c *Config) RulesPath() string {
	return filepath.Join(c.Theme.Dir, filepath.FromSlash(c.Theme.RulesFile))
}
