// Package scanner resolves which theme files to analyse, runs the shipping
// rule analyzer over them and assembles per-file reports.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/standardbeagle/wsd/internal/config"
	"github.com/standardbeagle/wsd/internal/debug"
	wsderrors "github.com/standardbeagle/wsd/internal/errors"
	"github.com/standardbeagle/wsd/internal/phpast"
	"github.com/standardbeagle/wsd/internal/rules"
	"github.com/standardbeagle/wsd/internal/security"
	"github.com/standardbeagle/wsd/pkg/pathutil"
)

// Notice messages shown to the site admin
const (
	MsgAdditionalNotFound = "Additional file not found. Please check the path."
	MsgOutsideTheme       = "Additional file must be inside the active theme directory."
	MsgFileNotFound       = "File not found."
	MsgParserUnavailable  = "PHP parser not available. Unable to scan this file."
	MsgNothingFound       = "No shipping-related logic found in this file."
	MsgFilesFailed        = "%d of %d theme files could not be scanned. See the file notices below."
)

var errSyntax = errors.New("syntax error")

// Level is the severity of a notice
type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is a message attached to a report or a file
type Notice struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

// FileReport is the analysis of one file
type FileReport struct {
	Path        string                             `json:"-"`
	DisplayPath string                             `json:"path"`
	Notices     []Notice                           `json:"notices,omitempty"`
	Warnings    []string                           `json:"warnings,omitempty"`
	Groups      []rules.Group                      `json:"groups,omitempty"`
	Hooked      []rules.HookedFunction             `json:"hooked,omitempty"`
	Arrays      map[string]map[string]*rules.Array `json:"arrays,omitempty"`
}

// Report is the result of one scan request
type Report struct {
	Notices []Notice      `json:"notices,omitempty"`
	Files   []*FileReport `json:"files"`
}

// FindingCount sums findings across all files
func (r *Report) FindingCount() int {
	n := 0
	for _, f := range r.Files {
		for _, g := range f.Groups {
			n += len(g.Findings)
		}
	}
	return n
}

// Request selects what to scan. With neither field set the theme's rules file is scanned.
type Request struct {
	// AdditionalFile is a theme-relative path scanned instead of the rules file
	AdditionalFile string
	// ThemeWide scans every PHP file in the theme matching the include/exclude globs
	ThemeWide bool
}

// Scanner analyses theme files. It is safe for concurrent use.
type Scanner struct {
	cfg       *config.Config
	analyzer  *rules.Analyzer
	validator *security.FileValidator
	cache     *lru.Cache[string, *FileReport]

	probeOnce sync.Once
	probeErr  error
}

// New creates a scanner for the configured theme
func New(cfg *config.Config) (*Scanner, error) {
	size := cfg.Scan.ReportCacheSize
	if size <= 0 {
		size = config.DefaultReportCacheSize
	}
	cache, err := lru.New[string, *FileReport](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create report cache: %w", err)
	}
	return &Scanner{
		cfg: cfg,
		analyzer: rules.NewAnalyzer(rules.Options{
			CurrencySymbol: cfg.Preview.CurrencySymbol,
			Products:       cfg.Scan.Products,
		}),
		validator: security.NewFileValidator(cfg.Theme.MaxFileSize),
		cache:     cache,
	}, nil
}

// ParserStatus probes the PHP grammar once and reports whether scanning can work
func (s *Scanner) ParserStatus() Notice {
	s.probeOnce.Do(func() {
		s.probeErr = phpast.Probe()
	})
	if s.probeErr != nil {
		return Notice{Level: LevelError, Message: "PHP parser error: " + s.probeErr.Error()}
	}
	return Notice{Level: LevelSuccess, Message: "PHP parser is loaded and parsed a test snippet successfully."}
}

func (s *Scanner) parserReady() bool {
	return s.ParserStatus().Level == LevelSuccess
}

// Scan runs a request. Problems with individual files are reported as notices;
// the error is reserved for failures to enumerate the theme.
func (s *Scanner) Scan(ctx context.Context, req Request) (*Report, error) {
	report := &Report{}
	switch {
	case req.ThemeWide:
		files, err := s.ThemeFiles()
		if err != nil {
			return nil, wsderrors.NewScanError("list", s.cfg.Theme.Dir, err)
		}
		fileReports, err := s.scanAll(ctx, files)
		var failed *wsderrors.MultiError
		if errors.As(err, &failed) {
			debug.LogScan("theme scan: %v\n", failed)
			report.Notices = append(report.Notices, Notice{
				Level:   LevelWarning,
				Message: fmt.Sprintf(MsgFilesFailed, len(failed.Errors), len(files)),
			})
		} else if err != nil {
			return nil, err
		}
		report.Files = fileReports
	case req.AdditionalFile != "":
		path, err := security.ResolveInTheme(s.cfg.Theme.Dir, strings.TrimLeft(req.AdditionalFile, "/"))
		if err != nil {
			if errors.Is(err, wsderrors.ErrOutsideTheme) {
				report.Notices = append(report.Notices, Notice{Level: LevelWarning, Message: MsgOutsideTheme})
			} else {
				report.Notices = append(report.Notices, Notice{Level: LevelWarning, Message: MsgAdditionalNotFound})
			}
			return report, nil
		}
		if _, err := os.Stat(path); err != nil {
			report.Notices = append(report.Notices, Notice{Level: LevelWarning, Message: MsgAdditionalNotFound})
			return report, nil
		}
		report.Files = append(report.Files, s.ScanFile(path))
	default:
		report.Files = append(report.Files, s.ScanFile(s.cfg.RulesPath()))
	}
	return report, nil
}

// ScanFile analyses one file. Missing files, rejected content and parser
// problems become notices on the returned report.
func (s *Scanner) ScanFile(path string) *FileReport {
	fr := &FileReport{Path: path, DisplayPath: pathutil.DisplayPath(path, s.cfg.Theme.Dir)}

	if err := s.validator.ValidatePHPFile(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			fr.Notices = append(fr.Notices, Notice{Level: LevelInfo, Message: MsgFileNotFound})
		} else {
			fr.Notices = append(fr.Notices, Notice{Level: LevelError, Message: err.Error()})
		}
		return fr
	}
	if !s.parserReady() {
		fr.Notices = append(fr.Notices, Notice{Level: LevelError, Message: MsgParserUnavailable})
		return fr
	}

	src, err := os.ReadFile(path)
	if err != nil {
		fr.Notices = append(fr.Notices, Notice{Level: LevelError, Message: wsderrors.NewFileError("read", path, err).Error()})
		return fr
	}
	return s.ScanSource(path, src)
}

// failure returns the first error-level notice as an error, or nil
func (fr *FileReport) failure() error {
	for _, n := range fr.Notices {
		if n.Level == LevelError {
			return wsderrors.NewScanError("scan", fr.DisplayPath, errors.New(n.Message))
		}
	}
	return nil
}

// ScanSource analyses in-memory source. Results are cached by path and content hash.
func (s *Scanner) ScanSource(path string, src []byte) *FileReport {
	key := path + "#" + strconv.FormatUint(xxhash.Sum64(src), 16)
	if cached, ok := s.cache.Get(key); ok {
		debug.LogScan("report cache hit for %s\n", path)
		return cached
	}

	fr := &FileReport{Path: path, DisplayPath: pathutil.DisplayPath(path, s.cfg.Theme.Dir)}
	f, err := phpast.Parse(src)
	if err != nil {
		fr.Notices = append(fr.Notices, Notice{Level: LevelError, Message: MsgParserUnavailable})
		return fr
	}
	defer f.Close()

	if se, ok := f.FirstError(); ok {
		perr := wsderrors.NewParseError(fr.DisplayPath, se.Line, se.Column, se.Token, errSyntax)
		fr.Warnings = append(fr.Warnings, perr.Error()+"; results may be incomplete")
	}

	analysis := s.analyzer.Analyze(f)
	fr.Groups = analysis.Groups
	fr.Hooked = analysis.Hooked
	fr.Arrays = analysis.Arrays
	fr.Warnings = append(fr.Warnings, analysis.Warnings...)
	if analysis.Empty() {
		fr.Notices = append(fr.Notices, Notice{Level: LevelInfo, Message: MsgNothingFound})
	}

	s.cache.Add(key, fr)
	return fr
}

// Forget drops cached reports; used when a watched file changes on disk
func (s *Scanner) Forget() {
	s.cache.Purge()
}
