package scanner

import (
	"context"
	"io/fs"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/wsd/internal/debug"
	wsderrors "github.com/standardbeagle/wsd/internal/errors"
)

// ThemeFiles lists the theme's PHP files matching the include globs and none of
// the exclude globs, sorted by path.
func (s *Scanner) ThemeFiles() ([]string, error) {
	root := s.cfg.Theme.Dir
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		rel, rerr := filepath.Rel(root, path)
		if rerr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if rel != "." && (s.excluded(rel) || s.excluded(rel+"/")) {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".php" || s.excluded(rel) || !s.included(rel) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	debug.LogScan("theme %s: %d PHP files selected\n", root, len(files))
	return files, nil
}

// Matches reports whether a theme-relative slash path would be scanned in theme-wide mode
func (s *Scanner) Matches(rel string) bool {
	return filepath.Ext(rel) == ".php" && !s.excluded(rel) && s.included(rel)
}

func (s *Scanner) included(rel string) bool {
	if len(s.cfg.Theme.Include) == 0 {
		return true
	}
	for _, pattern := range s.cfg.Theme.Include {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func (s *Scanner) excluded(rel string) bool {
	for _, pattern := range s.cfg.Theme.Exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// scanAll analyses files with a bounded worker pool, keeping results in input order.
// Files that could not be scanned come back as a *wsderrors.MultiError alongside
// the full report list; any other error means the scan was cancelled.
func (s *Scanner) scanAll(ctx context.Context, files []string) ([]*FileReport, error) {
	reports := make([]*FileReport, len(files))
	failures := make([]error, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers())

	for i, path := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			reports[i] = s.ScanFile(path)
			failures[i] = reports[i].failure()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, wsderrors.NewMultiError(failures).ErrOrNil()
}

func (s *Scanner) workers() int {
	if s.cfg.Scan.Workers > 0 {
		return s.cfg.Scan.Workers
	}
	if n := runtime.NumCPU() - 1; n > 1 {
		return n
	}
	return 1
}
