// Package watcher reports changes to a results payload on disk, using
// fsnotify with a stat-polling fallback.
package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Dicklesworthstone/dplace_viewer/pkg/debug"
)

// DefaultPollInterval is the polling interval in fallback mode.
const DefaultPollInterval = 2 * time.Second

// ForcePollEnv forces polling when set to a truthy value.
const ForcePollEnv = "DV_FORCE_POLL"

// Common errors.
var (
	ErrFileRemoved    = errors.New("watched file was removed")
	ErrPermission     = errors.New("permission denied")
	ErrAlreadyStarted = errors.New("watcher already started")
)

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounceDuration sets the debounce duration.
func WithDebounceDuration(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounceDuration = d
	}
}

// WithPollInterval sets the polling interval for fallback mode.
func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.pollInterval = d
	}
}

// WithOnChange sets the callback invoked when the file changes.
func WithOnChange(fn func()) WatcherOption {
	return func(w *Watcher) {
		w.onChange = fn
	}
}

// WithOnError sets the callback invoked on errors.
func WithOnError(fn func(error)) WatcherOption {
	return func(w *Watcher) {
		w.onError = fn
	}
}

// WithForcePoll forces polling mode even if fsnotify is available.
func WithForcePoll(force bool) WatcherOption {
	return func(w *Watcher) {
		w.forcePoll = force
	}
}

// Watcher monitors one file.
type Watcher struct {
	path             string
	debounceDuration time.Duration
	pollInterval     time.Duration
	onChange         func()
	onError          func(error)
	forcePoll        bool

	fsWatcher   *fsnotify.Watcher
	debouncer   *Debouncer
	useFallback bool
	lastMtime   time.Time
	lastSize    int64

	ctx      context.Context
	cancel   context.CancelFunc
	started  bool
	mu       sync.RWMutex
	changeCh chan struct{}
}

// NewWatcher creates a watcher for path. The file need not exist yet.
func NewWatcher(path string, opts ...WatcherOption) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		path:             absPath,
		debounceDuration: DefaultDebounceDuration,
		pollInterval:     DefaultPollInterval,
		onChange:         func() {},
		onError:          func(error) {},
		changeCh:         make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.pollInterval <= 0 {
		w.pollInterval = DefaultPollInterval
	}
	w.debouncer = NewDebouncer(w.debounceDuration)
	return w, nil
}

// Start begins watching.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return ErrAlreadyStarted
	}

	info, err := os.Stat(w.path)
	switch {
	case err == nil:
		w.lastMtime = info.ModTime()
		w.lastSize = info.Size()
	case os.IsPermission(err):
		return ErrPermission
	default:
		w.lastMtime = time.Time{}
		w.lastSize = 0
	}

	w.ctx, w.cancel = context.WithCancel(context.Background())
	w.useFallback = w.forcePoll || envBool(ForcePollEnv)

	if !w.useFallback {
		fsw, err := fsnotify.NewWatcher()
		if err == nil {
			// The directory is watched so atomic saves (write + rename) are seen.
			if err := fsw.Add(filepath.Dir(w.path)); err != nil {
				fsw.Close()
				w.useFallback = true
			} else {
				w.fsWatcher = fsw
				go w.watchFsnotify(fsw.Events, fsw.Errors)
			}
		} else {
			w.useFallback = true
		}
	}
	if w.useFallback {
		go w.watchPolling()
	}

	lg := debug.Component("watcher")
	lg.Debug().Str("path", w.path).Bool("polling", w.useFallback).Msg("watching")
	w.started = true
	return nil
}

// Stop stops watching. The Changed channel stays open so a pending receiver
// is not woken spuriously.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started {
		return
	}
	w.cancel()
	if w.fsWatcher != nil {
		w.fsWatcher.Close()
		w.fsWatcher = nil
	}
	w.debouncer.Cancel()
	w.started = false
}

// IsPolling returns true if the watcher is using polling mode.
func (w *Watcher) IsPolling() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.useFallback
}

// IsStarted returns true if the watcher is running.
func (w *Watcher) IsStarted() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.started
}

// Changed receives after each debounced change.
func (w *Watcher) Changed() <-chan struct{} {
	return w.changeCh
}

// Path returns the absolute watched path.
func (w *Watcher) Path() string {
	return w.path
}

func envBool(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func (w *Watcher) watchFsnotify(events <-chan fsnotify.Event, errs <-chan error) {
	target := filepath.Base(w.path)
	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != target {
				continue
			}
			switch {
			case event.Op&fsnotify.Remove != 0:
				w.onError(ErrFileRemoved)
			case event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0:
				w.debouncer.Trigger(w.notifyChange)
			}

		case err, ok := <-errs:
			if !ok {
				return
			}
			w.onError(err)
		}
	}
}

func (w *Watcher) watchPolling() {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return

		case <-ticker.C:
			info, err := os.Stat(w.path)
			if err != nil {
				switch {
				case os.IsNotExist(err):
					w.mu.Lock()
					hadFile := !w.lastMtime.IsZero()
					w.lastMtime, w.lastSize = time.Time{}, 0
					w.mu.Unlock()
					if hadFile {
						w.onError(ErrFileRemoved)
					}
				case os.IsPermission(err):
					w.onError(ErrPermission)
				default:
					w.onError(err)
				}
				continue
			}

			w.mu.Lock()
			changed := !info.ModTime().Equal(w.lastMtime) || info.Size() != w.lastSize
			if changed {
				w.lastMtime = info.ModTime()
				w.lastSize = info.Size()
			}
			w.mu.Unlock()

			if changed {
				w.debouncer.Trigger(w.notifyChange)
			}
		}
	}
}

func (w *Watcher) notifyChange() {
	w.mu.RLock()
	started := w.started
	w.mu.RUnlock()
	if !started {
		return
	}

	w.onChange()
	select {
	case w.changeCh <- struct{}{}:
	default:
	}
}
