package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/standardbeagle/wsd/internal/config"
	"github.com/standardbeagle/wsd/internal/debug"
	"github.com/standardbeagle/wsd/internal/display"
	"github.com/standardbeagle/wsd/internal/export"
	"github.com/standardbeagle/wsd/internal/preview"
	"github.com/standardbeagle/wsd/internal/scanner"
	"github.com/standardbeagle/wsd/internal/selftest"
	"github.com/standardbeagle/wsd/internal/server"
	"github.com/standardbeagle/wsd/internal/version"
	"github.com/standardbeagle/wsd/internal/woo"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true)
	passStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
)

// useColor reports whether w is a terminal and color was not disabled
func useColor(c *cli.Context, w io.Writer) bool {
	if c.Bool("no-color") || os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	stat, err := f.Stat()
	return err == nil && stat.Mode()&os.ModeCharDevice != 0
}

func scanCommand(c *cli.Context) error {
	format := c.String("format")
	switch format {
	case "text", "markdown", "html", "json":
	default:
		return fmt.Errorf("unsupported format %q (want text, markdown, html or json)", format)
	}

	env, err := openEnvironment(c, false, false)
	if err != nil {
		return err
	}
	defer env.Close()

	out := c.App.Writer
	color := useColor(c, out)
	req := scanner.Request{AdditionalFile: c.String("file"), ThemeWide: c.Bool("all")}

	if status := env.scanner.ParserStatus(); status.Level != scanner.LevelSuccess {
		fmt.Fprintln(c.App.ErrWriter, status.Message)
	}

	report, err := env.scanner.Scan(c.Context, req)
	if err != nil {
		return err
	}
	if err := printReport(out, report, format, color); err != nil {
		return err
	}
	if !c.Bool("watch") {
		return nil
	}

	watcher, err := scanner.NewWatcher(env.scanner, req, func(report *scanner.Report, changed []string) {
		fmt.Fprintf(out, "\n%s\n", headingStyle.Render(fmt.Sprintf("Rescanned after %d change(s) at %s", len(changed), time.Now().Format("15:04:05"))))
		if err := printReport(out, report, format, color); err != nil {
			fmt.Fprintf(c.App.ErrWriter, "render error: %v\n", err)
		}
	})
	if err != nil {
		return err
	}
	watcher.OnError(func(err error) {
		fmt.Fprintf(c.App.ErrWriter, "watch error: %v\n", err)
	})
	if err := watcher.Start(c.Context); err != nil {
		return err
	}
	defer watcher.Stop()

	fmt.Fprintf(c.App.ErrWriter, "Watching %s for changes (Ctrl+C to stop)\n", env.cfg.Theme.Dir)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-sigChan:
	case <-c.Context.Done():
	}
	return nil
}

func printReport(w io.Writer, report *scanner.Report, format string, color bool) error {
	text, err := report.Render(format, color)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, text)
	return err
}

func zonesCommand(c *cli.Context) error {
	format := c.String("format")
	if format != "text" && format != "json" {
		return fmt.Errorf("unsupported format %q (want text or json)", format)
	}

	env, err := openEnvironment(c, true, false)
	if err != nil {
		return err
	}
	defer env.Close()

	zones, err := env.source.Zones(c.Context)
	if err != nil {
		return err
	}

	if path := c.String("save-snapshot"); path != "" {
		if err := saveSnapshot(c, env.source, zones, path); err != nil {
			return err
		}
		fmt.Fprintf(c.App.ErrWriter, "Snapshot written to %s\n", path)
	}

	opts := preview.OptionsFromConfig(env.cfg)
	if c.IsSet("issues-only") {
		opts.IssuesOnly = c.Bool("issues-only")
	}
	if c.IsSet("enabled-only") {
		opts.EnabledOnly = c.Bool("enabled-only")
	}
	result := preview.CollectZoneRows(zones, opts)

	if format == "json" {
		formatted, err := display.NewTreeFormatter(display.FormatterOptions{Format: "json"}).FormatValue(result)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, formatted)
		return nil
	}
	fmt.Fprintln(c.App.Writer, result.Text(useColor(c, c.App.Writer)))
	return nil
}

func saveSnapshot(c *cli.Context, source woo.Source, zones []woo.Zone, path string) error {
	siteEnv, err := source.Environment(c.Context)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create snapshot: %w", err)
	}
	if err := woo.WriteSnapshot(f, siteEnv, zones); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func exportCommand(c *cli.Context) error {
	env, err := openEnvironment(c, true, false)
	if err != nil {
		return err
	}
	defer env.Close()

	zones, err := env.source.Zones(c.Context)
	if err != nil {
		return err
	}

	out := c.String("out")
	if out == "-" {
		return export.WriteCSV(c.App.Writer, zones, env.cfg.Preview.CurrencySymbol)
	}
	if out == "" {
		out = export.Filename(env.cfg.Site.HomeURL, time.Now())
	}

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", out, err)
	}
	if err := export.WriteCSV(f, zones, env.cfg.Preview.CurrencySymbol); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(c.App.ErrWriter, "Exported %d zones to %s\n", len(zones), out)
	return nil
}

func selfTestCommand(c *cli.Context) error {
	env, err := openEnvironment(c, false, true)
	if err != nil {
		return err
	}
	defer env.Close()

	var results []selftest.Result
	if id := c.String("test"); id != "" {
		result := env.suite.Run(c.Context, id)
		if result.Name == "" {
			return fmt.Errorf("%s", selftest.MsgInvalidTest)
		}
		results = append(results, result)
	} else {
		results = env.suite.RunAll(c.Context)
		if _, err := env.suite.MarkRun(c.Context); err != nil {
			return fmt.Errorf("failed to record self-test run: %w", err)
		}
	}

	failed := 0
	for _, r := range results {
		if !r.Passed {
			failed++
		}
	}

	if c.Bool("json") {
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, string(data))
	} else {
		color := useColor(c, c.App.Writer)
		for _, r := range results {
			status := "PASS"
			style := passStyle
			if !r.Passed {
				status, style = "FAIL", failStyle
			}
			if color {
				status = style.Render(status)
			}
			fmt.Fprintf(c.App.Writer, "%s  %s\n      %s\n", status, r.Name, display.PlainText(r.Message))
		}
	}

	if failed > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d self tests failed", failed, len(results)), 1)
	}
	return nil
}

func serveCommand(c *cli.Context) error {
	logger, err := debug.NewLogger(c.Bool("verbose"))
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	env, err := openEnvironment(c, false, true)
	if err != nil {
		return err
	}
	defer env.Close()
	if env.source == nil {
		logger.Warn("no WooCommerce store configured; export and zone preview are disabled")
	}

	srv, err := server.New(server.Options{
		Config:        env.cfg,
		Scanner:       env.scanner,
		Source:        env.source,
		Suite:         env.suite,
		ChangelogPath: c.String("changelog"),
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	addr := env.cfg.Server.Addr
	if c.IsSet("addr") {
		addr = c.String("addr")
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("admin console starting",
		zap.String("addr", "http://"+addr+"/"),
		zap.String("theme", env.cfg.Theme.Dir),
		zap.Bool("token_required", env.cfg.Server.AdminToken != ""))
	if err := srv.Serve(ctx, addr); err != nil {
		return err
	}
	logger.Info("admin console stopped")
	return nil
}

// redacted hides credentials in config show output
func redacted(cfg *config.Config) config.Config {
	out := *cfg
	if out.Store.DSN != "" {
		out.Store.DSN = "********"
	}
	if out.Server.SessionSecret != "" {
		out.Server.SessionSecret = "********"
	}
	if out.Server.AdminToken != "" {
		out.Server.AdminToken = "********"
	}
	return out
}

func configShowCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	formatted, err := display.NewTreeFormatter(display.FormatterOptions{Format: "json"}).FormatValue(redacted(cfg))
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, formatted)
	return nil
}

func configValidateCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		fmt.Fprintf(c.App.Writer, "%s Configuration is invalid: %v\n", failStyle.Render("✗"), err)
		return cli.Exit("", 1)
	}

	fmt.Fprintf(c.App.Writer, "%s Configuration is valid\n", passStyle.Render("✓"))
	fmt.Fprintf(c.App.Writer, "  Theme:      %s\n", cfg.Theme.Dir)
	fmt.Fprintf(c.App.Writer, "  Rules file: %s\n", cfg.RulesPath())
	if _, err := os.Stat(cfg.RulesPath()); err != nil {
		fmt.Fprintf(c.App.Writer, "  %s rules file not found\n", failStyle.Render("!"))
	}
	store := cfg.Store.Driver
	if !hasStore(cfg) {
		store += " (not configured)"
	}
	fmt.Fprintf(c.App.Writer, "  Store:      %s\n", store)
	return nil
}

func versionCommand(c *cli.Context) error {
	fmt.Fprintln(c.App.Writer, version.FullInfo())
	fmt.Fprintf(c.App.Writer, "Go: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	return nil
}
