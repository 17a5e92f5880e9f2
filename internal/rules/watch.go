package rules

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long the watcher waits after the last change
// before reloading. Editors often write a file in several steps.
const DefaultDebounce = 250 * time.Millisecond

// ErrWatcherFailed indicates the filesystem watcher could not start.
var ErrWatcherFailed = errors.New("failed to initialize rule file watcher")

// ApplyFunc receives each successfully loaded rule set.
type ApplyFunc func(Set)

// Watcher reloads a rule file whenever it changes and hands the result to
// an ApplyFunc. A file that fails to load leaves the previous rules in
// place.
type Watcher struct {
	path     string
	apply    ApplyFunc
	debounce time.Duration
	logger   *zap.Logger

	// OnReload, if set, is called after every reload attempt.
	OnReload func(error)

	watcher *fsnotify.Watcher
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

// NewWatcher creates a watcher for path. It does not load the file; call
// Load first for the initial rules.
func NewWatcher(path string, apply ApplyFunc, logger *zap.Logger) (*Watcher, error) {
	if apply == nil {
		return nil, errors.New("apply func is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving rule path: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	return &Watcher{
		path:     abs,
		apply:    apply,
		debounce: DefaultDebounce,
		logger:   logger.With(zap.String("rules_path", abs)),
		watcher:  fw,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// SetDebounce overrides the reload delay. Call before Start.
func (w *Watcher) SetDebounce(d time.Duration) {
	if d > 0 {
		w.debounce = d
	}
}

// Start watches the file's directory, so replacing the file by rename is
// picked up as well as in-place writes.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(w.path), err)
	}
	go w.run(ctx)
	return nil
}

// Stop ends the watch loop and waits for it to exit.
func (w *Watcher) Stop() {
	w.once.Do(func() {
		close(w.stop)
		_ = w.watcher.Close()
	})
	<-w.done
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("rule watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload() {
	set, err := Load(w.path)
	if w.OnReload != nil {
		w.OnReload(err)
	}
	if err != nil {
		w.logger.Warn("rule reload failed, keeping previous rules", zap.Error(err))
		return
	}
	w.apply(set)
	w.logger.Info("rules reloaded",
		zap.Int("dna_rules", len(set.DNARules)),
		zap.Int("groups", len(set.Groups)))
}
