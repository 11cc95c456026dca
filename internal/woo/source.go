package woo

import (
	"fmt"

	"github.com/standardbeagle/wsd/internal/config"
)

// Open builds the source selected by the store configuration
func Open(cfg *config.Config) (Source, error) {
	switch cfg.Store.Driver {
	case "snapshot":
		return OpenSnapshot(cfg.Store.Snapshot, cfg.Site.WordPressRoot, cfg.Theme.Dir)
	case "mysql", "sqlite":
		return OpenSQL(cfg.Store.DSN, SQLOptions{
			Driver:        cfg.Store.Driver,
			TablePrefix:   cfg.Store.TablePrefix,
			WordPressRoot: cfg.Site.WordPressRoot,
			ThemeDir:      cfg.Theme.Dir,
		})
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
