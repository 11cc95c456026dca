package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

const kdlFileName = ".wsd.kdl"

// LoadKDL attempts to load configuration from a .wsd.kdl file in dir
func LoadKDL(dir string) (*Config, error) {
	kdlPath := filepath.Join(dir, kdlFileName)

	if _, err := os.Stat(kdlPath); os.IsNotExist(err) {
		return nil, nil
	}

	content, err := os.ReadFile(kdlPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %v", kdlFileName, err)
	}

	cfg, err := parseKDL(string(content))
	if err != nil {
		return nil, err
	}
	resolvePaths(cfg, dir)
	return cfg, nil
}

// resolvePaths makes file paths relative to the directory holding the config file
func resolvePaths(cfg *Config, dir string) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		absDir = dir
	}
	for _, p := range []*string{&cfg.Theme.Dir, &cfg.Store.Snapshot, &cfg.StatePath, &cfg.Site.WordPressRoot} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Clean(filepath.Join(absDir, *p))
		}
	}
}

func parseKDL(content string) (*Config, error) {
	cfg := Default()

	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse KDL config: %w", err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "site":
			for _, cn := range n.Children {
				assignSimpleString(cn, "name", func(v string) { cfg.Site.Name = v })
				assignSimpleString(cn, "home_url", func(v string) { cfg.Site.HomeURL = v })
				assignSimpleString(cn, "admin_url", func(v string) { cfg.Site.AdminURL = v })
				assignSimpleString(cn, "wordpress_root", func(v string) { cfg.Site.WordPressRoot = v })
			}
		case "theme":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "dir":
					if s, ok := firstStringArg(cn); ok {
						cfg.Theme.Dir = s
					}
				case "rules_file":
					if s, ok := firstStringArg(cn); ok {
						cfg.Theme.RulesFile = s
					}
				case "max_file_size":
					if v, ok := firstIntArg(cn); ok {
						cfg.Theme.MaxFileSize = int64(v)
					}
					if s, ok := firstStringArg(cn); ok {
						if sz, err := parseSize(s); err == nil {
							cfg.Theme.MaxFileSize = sz
						}
					}
				}
			}
		case "store":
			for _, cn := range n.Children {
				assignSimpleString(cn, "driver", func(v string) { cfg.Store.Driver = v })
				assignSimpleString(cn, "dsn", func(v string) { cfg.Store.DSN = v })
				assignSimpleString(cn, "table_prefix", func(v string) { cfg.Store.TablePrefix = v })
				assignSimpleString(cn, "snapshot", func(v string) { cfg.Store.Snapshot = v })
			}
		case "preview":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "max_rows":
					if v, ok := firstIntArg(cn); ok {
						cfg.Preview.MaxRows = v
					}
				case "max_locations":
					if v, ok := firstIntArg(cn); ok {
						cfg.Preview.MaxLocations = v
					}
				case "currency_symbol":
					if s, ok := firstStringArg(cn); ok {
						cfg.Preview.CurrencySymbol = s
					}
				case "issues_only":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Preview.IssuesOnly = b
					}
				case "enabled_only":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Preview.EnabledOnly = b
					}
				}
			}
		case "server":
			for _, cn := range n.Children {
				assignSimpleString(cn, "addr", func(v string) { cfg.Server.Addr = v })
				assignSimpleString(cn, "session_secret", func(v string) { cfg.Server.SessionSecret = v })
				assignSimpleString(cn, "admin_token", func(v string) { cfg.Server.AdminToken = v })
			}
		case "scan":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "workers":
					if v, ok := firstIntArg(cn); ok {
						cfg.Scan.Workers = v
					}
				case "report_cache_size":
					if v, ok := firstIntArg(cn); ok {
						cfg.Scan.ReportCacheSize = v
					}
				case "watch_debounce_ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.Scan.WatchDebounceMs = v
					}
				case "products":
					cfg.Scan.Products = collectStringArgs(cn)
				}
			}
		case "include":
			cfg.Theme.Include = collectStringArgs(n)
		case "exclude":
			// An exclude block replaces the defaults
			cfg.Theme.Exclude = collectStringArgs(n)
		case "state_path":
			if s, ok := firstStringArg(n); ok {
				cfg.StatePath = s
			}
		}
	}

	return cfg, nil
}

// Helper functions over the kdl-go document model
func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}
func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}
func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case bool:
		return v, true
	case string:
		return parseBool(v), true
	default:
		log.Printf("WARNING: invalid bool value for '%s' in KDL config, got %T", nodeName(n), v)
		return false, false
	}
}
func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}

	// Block format: exclude { "pattern" } makes each pattern a child node name
	if len(out) == 0 && len(n.Children) > 0 {
		for _, child := range n.Children {
			if s, ok := firstStringArg(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				if s, ok := child.Name.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}

	return out
}
func assignSimpleString(n *document.Node, target string, set func(string)) {
	if nodeName(n) == target {
		if s, ok := firstStringArg(n); ok {
			set(s)
		}
	}
}

// parseSize handles size strings like "10MB", "500KB", "1GB"
func parseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))

	var multiplier int64 = 1
	var numStr string

	switch {
	case strings.HasSuffix(s, "GB"):
		multiplier = 1024 * 1024 * 1024
		numStr = strings.TrimSuffix(s, "GB")
	case strings.HasSuffix(s, "MB"):
		multiplier = 1024 * 1024
		numStr = strings.TrimSuffix(s, "MB")
	case strings.HasSuffix(s, "KB"):
		multiplier = 1024
		numStr = strings.TrimSuffix(s, "KB")
	case strings.HasSuffix(s, "B"):
		numStr = strings.TrimSuffix(s, "B")
	default:
		numStr = s
	}

	num, err := strconv.ParseInt(strings.TrimSpace(numStr), 10, 64)
	if err != nil {
		return 0, err
	}

	return num * multiplier, nil
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "yes" || s == "1" || s == "on"
}
