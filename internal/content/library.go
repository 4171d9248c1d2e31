// Package content keeps stack definitions loaded from disk and reloads them
// when the files change.
package content

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/cory-johannsen/healthstack/internal/game/health"
)

// Library is a reloadable set of stack definitions. Entities already spawned
// keep the definition they were built from.
type Library struct {
	dir    string
	logger *zap.Logger

	mu  sync.RWMutex
	reg *health.Registry
}

// NewLibrary loads every definition in dir.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns a Library holding at least the definitions in dir,
// or an error if any file fails to load.
func NewLibrary(dir string, logger *zap.Logger) (*Library, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Library{dir: dir, logger: logger}
	reg, err := l.load()
	if err != nil {
		return nil, err
	}
	l.reg = reg
	l.logger.Info("stack definitions loaded", zap.String("dir", dir), zap.Int("count", reg.Len()))
	return l, nil
}

func (l *Library) load() (*health.Registry, error) {
	reg, err := health.LoadDirectory(l.dir, func(path, msg string) {
		l.logger.Warn("stack definition warning", zap.String("path", path), zap.String("warning", msg))
	})
	if err != nil {
		return nil, fmt.Errorf("loading stack definitions from %q: %w", l.dir, err)
	}
	return reg, nil
}

// Reload re-reads the directory. On failure the previous definitions stay
// active and the error is returned.
func (l *Library) Reload() error {
	reg, err := l.load()
	if err != nil {
		l.logger.Error("stack definition reload failed, keeping previous set", zap.Error(err))
		return err
	}
	l.mu.Lock()
	l.reg = reg
	l.mu.Unlock()
	l.logger.Info("stack definitions reloaded", zap.String("dir", l.dir), zap.Int("count", reg.Len()))
	return nil
}

// Registry returns the current definition set.
func (l *Library) Registry() *health.Registry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.reg
}

// Get returns the definition with id.
func (l *Library) Get(id string) (*health.StackDef, bool) {
	return l.Registry().Get(id)
}

// IDs returns every definition ID in sorted order.
func (l *Library) IDs() []string {
	return l.Registry().IDs()
}

// Dir returns the directory the library loads from.
func (l *Library) Dir() string { return l.dir }
