package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/standardbeagle/wsd/internal/config"
	"github.com/standardbeagle/wsd/internal/debug"
	"github.com/standardbeagle/wsd/internal/scanner"
	"github.com/standardbeagle/wsd/internal/selftest"
	"github.com/standardbeagle/wsd/internal/store"
	"github.com/standardbeagle/wsd/internal/version"
	"github.com/standardbeagle/wsd/internal/woo"

	"github.com/urfave/cli/v2"
)

var Version = version.Version

// loadConfigWithOverrides loads configuration and applies CLI flag overrides
func loadConfigWithOverrides(c *cli.Context) (*config.Config, error) {
	configPath := c.String("config")
	root := c.String("root")

	cfg, err := config.LoadWithRoot(configPath, root)
	if err != nil {
		if configPath == "" {
			configPath = "project config"
		}
		return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
	}

	if themeFlag := c.String("theme"); themeFlag != "" {
		absTheme, err := filepath.Abs(themeFlag)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve theme path %q: %w", themeFlag, err)
		}
		cfg.Theme.Dir = absTheme
	}
	if snapshot := c.String("snapshot"); snapshot != "" {
		cfg.Store.Driver = "snapshot"
		cfg.Store.Snapshot = snapshot
	}
	if dsn := c.String("dsn"); dsn != "" {
		cfg.Store.DSN = dsn
	}
	if includeFlags := c.StringSlice("include"); len(includeFlags) > 0 {
		cfg.Theme.Include = includeFlags
	}
	if excludeFlags := c.StringSlice("exclude"); len(excludeFlags) > 0 {
		cfg.Theme.Exclude = append(cfg.Theme.Exclude, excludeFlags...)
	}

	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// environment is everything a command may need, opened on demand
type environment struct {
	cfg     *config.Config
	scanner *scanner.Scanner
	source  woo.Source
	store   *store.Store
	suite   *selftest.Suite
}

func (e *environment) Close() {
	if e.source != nil {
		e.source.Close()
	}
	if e.store != nil {
		e.store.Close()
	}
}

// openEnvironment builds the scanner and, when requested, the WooCommerce
// source and local state store. A source that cannot be opened is logged and
// left nil unless requireSource is set.
func openEnvironment(c *cli.Context, requireSource, withState bool) (*environment, error) {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return nil, err
	}

	sc, err := scanner.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create scanner: %w", err)
	}
	env := &environment{cfg: cfg, scanner: sc}

	if hasStore(cfg) {
		source, err := woo.Open(cfg)
		if err != nil {
			if requireSource {
				return nil, err
			}
			debug.LogSource("WooCommerce settings unavailable: %v\n", err)
		} else {
			env.source = source
		}
	} else if requireSource {
		return nil, fmt.Errorf("no WooCommerce store configured; pass --dsn or --snapshot")
	}

	if withState {
		st, err := store.Open(cfg.StatePath)
		if err != nil {
			env.Close()
			return nil, fmt.Errorf("failed to open state store: %w", err)
		}
		env.store = st
	}

	env.suite = selftest.New(cfg, sc, env.source, env.store)
	return env, nil
}

func hasStore(cfg *config.Config) bool {
	if cfg.Store.Driver == "snapshot" {
		return cfg.Store.Snapshot != ""
	}
	return cfg.Store.DSN != ""
}

func main() {
	if err := newApp().RunContext(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:                   "wsd",
		Usage:                  "Explain WooCommerce shipping settings and custom theme shipping rules",
		Version:                Version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file path (.kdl or .toml); default searches the project root",
			},
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Project directory holding .wsd.kdl, .wsd.toml and .env",
			},
			&cli.StringFlag{
				Name:    "theme",
				Aliases: []string{"t"},
				Usage:   "Active theme directory (overrides config)",
				EnvVars: []string{"WSD_THEME_DIR"},
			},
			&cli.StringFlag{
				Name:  "dsn",
				Usage: "WordPress database DSN (overrides config)",
			},
			&cli.StringFlag{
				Name:  "snapshot",
				Usage: "Read shipping settings from a YAML/JSON snapshot instead of the database",
			},
			&cli.StringSliceFlag{
				Name:  "include",
				Usage: "Theme files to scan with --all (e.g., --include 'inc/**/*.php')",
			},
			&cli.StringSliceFlag{
				Name:  "exclude",
				Usage: "Theme files to skip with --all (e.g., --exclude '**/legacy/**')",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Show debug information on stderr",
			},
		},
		Commands: []*cli.Command{
			{
				Name:    "scan",
				Aliases: []string{"s"},
				Usage:   "Explain the custom shipping rules in the theme's PHP",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "file",
						Aliases: []string{"f"},
						Usage:   "Theme-relative PHP file to scan instead of the rules file",
					},
					&cli.BoolFlag{
						Name:    "all",
						Aliases: []string{"a"},
						Usage:   "Scan every PHP file in the theme",
					},
					&cli.StringFlag{
						Name:  "format",
						Usage: "Output format: text, markdown, html or json",
						Value: "text",
					},
					&cli.BoolFlag{
						Name:    "watch",
						Aliases: []string{"w"},
						Usage:   "Rescan when theme files change",
					},
					&cli.BoolFlag{
						Name:  "no-color",
						Usage: "Disable colored output",
					},
				},
				Action: scanCommand,
			},
			{
				Name:    "zones",
				Aliases: []string{"z"},
				Usage:   "Preview shipping zones, methods and configuration warnings",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "issues-only",
						Usage: "Only zones with configuration issues",
					},
					&cli.BoolFlag{
						Name:  "enabled-only",
						Usage: "Hide disabled methods (counts still include them)",
					},
					&cli.StringFlag{
						Name:  "format",
						Usage: "Output format: text or json",
						Value: "text",
					},
					&cli.StringFlag{
						Name:  "save-snapshot",
						Usage: "Also write the zones and environment to a YAML snapshot file",
					},
					&cli.BoolFlag{
						Name:  "no-color",
						Usage: "Disable colored output",
					},
				},
				Action: zonesCommand,
			},
			{
				Name:    "export",
				Aliases: []string{"e"},
				Usage:   "Export shipping zones and methods to CSV",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "Output file; '-' for stdout (default: <host>-shipping-<time>.csv)",
					},
				},
				Action: exportCommand,
			},
			{
				Name:  "selftest",
				Usage: "Run the built-in self tests",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "test",
						Usage: "Run a single test: " + testIDList(),
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output as JSON",
					},
				},
				Action: selfTestCommand,
			},
			{
				Name:  "serve",
				Usage: "Start the admin console",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address (overrides config)",
					},
					&cli.StringFlag{
						Name:  "changelog",
						Usage: "Changelog shown on the self-test page",
						Value: "CHANGELOG.md",
					},
				},
				Action: serveCommand,
			},
			{
				Name:   "mcp",
				Usage:  "Start MCP server over stdio",
				Action: mcpCommand,
			},
			{
				Name:  "config",
				Usage: "Inspect configuration",
				Subcommands: []*cli.Command{
					{
						Name:   "show",
						Usage:  "Show the effective configuration",
						Action: configShowCommand,
					},
					{
						Name:   "validate",
						Usage:  "Validate the configuration and report problems",
						Action: configValidateCommand,
					},
				},
			},
			{
				Name:   "version",
				Usage:  "Show version information",
				Action: versionCommand,
			},
		},
		Before: func(c *cli.Context) error {
			if c.Args().Get(0) == "mcp" {
				// stdout belongs to the JSON-RPC stream
				debug.SetMCPMode(true)
				return nil
			}
			if c.Bool("verbose") {
				debug.EnableDebug = "true"
			}
			if debug.IsDebugEnabled() {
				debug.SetDebugOutput(os.Stderr)
			}
			return nil
		},
		Action: func(c *cli.Context) error {
			// Auto-detect MCP mode: if stdin has JSON-RPC content, switch to MCP mode
			if isMCPMode() {
				debug.SetMCPMode(true)
				return mcpCommand(c)
			}
			return cli.ShowAppHelp(c)
		},
	}
}

func testIDList() string {
	ids := make([]string, len(selftest.Tests))
	for i, t := range selftest.Tests {
		ids[i] = t.ID
	}
	return strings.Join(ids, ", ")
}

func isMCPMode() bool {
	// Priority 1: Explicit environment variable (for MCP clients to set)
	if v := os.Getenv("WSD_MCP_MODE"); v == "1" || v == "true" {
		return true
	}

	// Priority 2: Non-terminal stdin (pipes, redirects) - likely JSON-RPC
	stat, err := os.Stdin.Stat()
	return err == nil && (stat.Mode()&os.ModeCharDevice) == 0
}
