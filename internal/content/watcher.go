package content

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// debounce is how long a file must stay quiet before its change is reported.
const debounce = 100 * time.Millisecond

// Watcher reports changes to stack definition and script files in a set of
// directories. Directories are watched non-recursively.
type Watcher struct {
	watcher *fsnotify.Watcher
	logger  *zap.Logger
	// Events receives the path of each changed .yaml, .yml, or .lua file.
	Events  chan string
	closeCh chan struct{}
	done    chan struct{}
	once    sync.Once
}

// NewWatcher starts watching dirs.
//
// Postcondition: Returns a running Watcher, or an error if any dir cannot be watched.
func NewWatcher(logger *zap.Logger, dirs ...string) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	for _, dir := range dirs {
		if err := w.Add(dir); err != nil {
			_ = w.Close()
			return nil, err
		}
	}

	watcher := &Watcher{
		watcher: w,
		logger:  logger,
		Events:  make(chan string, 16),
		closeCh: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go watcher.run()
	return watcher, nil
}

// Close stops the watcher. Events is closed once the watch loop exits.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.closeCh)
		err = w.watcher.Close()
		<-w.done
	})
	return err
}

func (w *Watcher) run() {
	defer close(w.done)
	defer close(w.Events)
	pending := make(map[string]time.Time)
	timer := time.NewTimer(debounce)
	timer.Stop()
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if !IsStackFile(event.Name) && !IsScriptFile(event.Name) {
				continue
			}
			if len(pending) == 0 {
				timer.Reset(debounce)
			}
			pending[event.Name] = time.Now()
		case <-timer.C:
			now := time.Now()
			var wait time.Duration
			for path, last := range pending {
				if quiet := now.Sub(last); quiet < debounce {
					if rest := debounce - quiet; wait == 0 || rest < wait {
						wait = rest
					}
					continue
				}
				delete(pending, path)
				select {
				case w.Events <- path:
				case <-w.closeCh:
					return
				}
			}
			if len(pending) > 0 {
				timer.Reset(wait)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("content watcher error", zap.Error(err))
		case <-w.closeCh:
			timer.Stop()
			return
		}
	}
}

// Serve dispatches changes until ctx is cancelled or the watcher closes:
// stack files reload lib, and script files call onScript when it is non-nil.
func (w *Watcher) Serve(ctx context.Context, lib *Library, onScript func(path string)) {
	for {
		select {
		case <-ctx.Done():
			return
		case path, ok := <-w.Events:
			if !ok {
				return
			}
			switch {
			case IsStackFile(path):
				w.logger.Info("stack definition changed", zap.String("path", path))
				_ = lib.Reload()
			case IsScriptFile(path) && onScript != nil:
				w.logger.Info("script changed", zap.String("path", path))
				onScript(path)
			}
		}
	}
}

// IsStackFile reports whether path names a YAML stack definition.
func IsStackFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// IsScriptFile reports whether path names a Lua hook script.
func IsScriptFile(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == ".lua"
}
