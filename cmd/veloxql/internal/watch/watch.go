// Package watch calls back when any of a set of files changes.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period after the last event before the
// callback runs.
const DefaultDebounce = 300 * time.Millisecond

// Watcher watches files through their directories, so editors that replace
// a file on save are seen as well.
type Watcher struct {
	files    map[string]bool
	callback func(changed []string) error
	watcher  *fsnotify.Watcher
	debounce time.Duration
	log      *slog.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the debounce period.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithLogger sets the logger watch errors are reported to.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) {
		w.log = l
	}
}

// New returns a watcher of the given files. The callback receives the
// changed files in event order.
func New(files []string, callback func(changed []string) error, opts ...Option) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: creating watcher: %w", err)
	}
	w := &Watcher{
		files:    make(map[string]bool, len(files)),
		callback: callback,
		watcher:  fw,
		debounce: DefaultDebounce,
		log:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(w)
	}
	dirs := make(map[string]bool)
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			fw.Close()
			return nil, fmt.Errorf("watch: %s: %w", f, err)
		}
		w.files[abs] = true
		if dir := filepath.Dir(abs); !dirs[dir] {
			if err := fw.Add(dir); err != nil {
				fw.Close()
				return nil, fmt.Errorf("watch: watching %s: %w", dir, err)
			}
			dirs[dir] = true
		}
	}
	return w, nil
}

// Run blocks until ctx is done, calling back after each burst of changes.
// Callback errors are logged and do not stop the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	var (
		fire    <-chan time.Time
		changed []string
		seen    = make(map[string]bool)
	)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			name, err := filepath.Abs(event.Name)
			if err != nil || !w.files[name] {
				continue
			}
			if !seen[name] {
				seen[name] = true
				changed = append(changed, name)
			}
			timer.Reset(w.debounce)
			fire = timer.C
		case <-fire:
			if err := w.callback(changed); err != nil {
				w.log.ErrorContext(ctx, "watch callback failed", "files", changed, "error", err)
			}
			fire, changed = nil, nil
			clear(seen)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.WarnContext(ctx, "watch error", "error", err)
		}
	}
}
