package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/standardbeagle/wsd/internal/debug"
)

// Watcher re-runs a scan request whenever PHP files in the theme change
type Watcher struct {
	scanner   *Scanner
	req       Request
	watcher   *fsnotify.Watcher
	debouncer *eventDebouncer
	onReport  func(*Report, []string)
	onError   func(error)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWatcher prepares a watcher; onReport receives each fresh report and the changed paths
func NewWatcher(s *Scanner, req Request, onReport func(*Report, []string)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	debounce := time.Duration(s.cfg.Scan.WatchDebounceMs) * time.Millisecond
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}
	w := &Watcher{
		scanner:  s,
		req:      req,
		watcher:  fw,
		onReport: onReport,
		onError:  func(err error) { debug.LogScan("watch error: %v\n", err) },
	}
	w.debouncer = newEventDebouncer(debounce, w.rescan)
	return w, nil
}

// OnError replaces the default error handler
func (w *Watcher) OnError(fn func(error)) {
	w.onError = fn
}

// Start watches every non-excluded directory of the theme until ctx ends or Stop is called
func (w *Watcher) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	root := w.scanner.cfg.Theme.Dir
	debug.LogScan("Starting file watcher for theme: %s\n", root)

	if err := w.addWatches(root); err != nil {
		w.cancel()
		return fmt.Errorf("failed to add watches starting from %s: %w", root, err)
	}

	w.wg.Add(1)
	go w.processEvents()
	return nil
}

// Stop ends watching and waits for the event loop to exit
func (w *Watcher) Stop() error {
	if w.cancel != nil {
		w.cancel()
	}
	err := w.watcher.Close()
	w.wg.Wait()
	w.debouncer.stop()
	return err
}

// addWatches adds every directory under root, skipping excluded ones and symlink cycles
func (w *Watcher) addWatches(root string) error {
	visited := make(map[string]bool)
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		real, err := filepath.EvalSymlinks(path)
		if err != nil {
			return nil
		}
		if visited[real] {
			return filepath.SkipDir
		}
		visited[real] = true

		if rel, err := filepath.Rel(root, path); err == nil && rel != "." {
			rel = filepath.ToSlash(rel)
			if w.scanner.excluded(rel) || w.scanner.excluded(rel+"/") {
				return filepath.SkipDir
			}
		}
		if err := w.watcher.Add(path); err != nil {
			debug.LogScan("failed to add watch for %s: %v\n", path, err)
		}
		return nil
	})
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.onError(err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		if event.Op&fsnotify.Create != 0 {
			if err := w.addWatches(path); err != nil {
				w.onError(err)
			}
		}
		return
	}
	if filepath.Ext(path) != ".php" {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	debug.LogScan("watch: %v %s\n", event.Op, path)
	w.debouncer.addEvent(path)
}

func (w *Watcher) rescan(paths []string) {
	if w.ctx.Err() != nil {
		return
	}
	w.scanner.Forget()
	report, err := w.scanner.Scan(w.ctx, w.req)
	if err != nil {
		w.onError(err)
		return
	}
	w.onReport(report, paths)
}

// eventDebouncer batches bursts of file events into one rescan
type eventDebouncer struct {
	mu       sync.Mutex
	paths    map[string]struct{}
	debounce time.Duration
	timer    *time.Timer
	flushFn  func([]string)
	stopped  bool
	inflight sync.WaitGroup
}

func newEventDebouncer(debounce time.Duration, flush func([]string)) *eventDebouncer {
	return &eventDebouncer{
		paths:    make(map[string]struct{}),
		debounce: debounce,
		flushFn:  flush,
	}
}

func (d *eventDebouncer) addEvent(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.paths[path] = struct{}{}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.debounce, d.flush)
}

func (d *eventDebouncer) flush() {
	d.mu.Lock()
	if d.stopped || len(d.paths) == 0 {
		d.mu.Unlock()
		return
	}
	paths := make([]string, 0, len(d.paths))
	for p := range d.paths {
		paths = append(paths, p)
	}
	d.paths = make(map[string]struct{})
	d.inflight.Add(1)
	d.mu.Unlock()
	defer d.inflight.Done()

	sort.Strings(paths)
	d.flushFn(paths)
}

// stop discards pending events and waits for a flush already running to return.
// It must not be called from inside the flush callback.
func (d *eventDebouncer) stop() {
	d.mu.Lock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.mu.Unlock()
	d.inflight.Wait()
}
