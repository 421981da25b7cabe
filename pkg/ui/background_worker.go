// Package ui provides the terminal user interface for dplace_viewer.
// This file implements the BackgroundWorker for off-thread payload loading.
package ui

import (
	"context"
	"fmt"
	rtdebug "runtime/debug"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Dicklesworthstone/dplace_viewer/pkg/debug"
	"github.com/Dicklesworthstone/dplace_viewer/pkg/loader"
	"github.com/Dicklesworthstone/dplace_viewer/pkg/model"
	"github.com/Dicklesworthstone/dplace_viewer/pkg/phylo"
	"github.com/Dicklesworthstone/dplace_viewer/pkg/watcher"
)

// WorkerState represents the current state of the background worker.
type WorkerState int

const (
	// WorkerIdle means the worker is waiting for file changes.
	WorkerIdle WorkerState = iota
	// WorkerProcessing means the worker is building a new snapshot.
	WorkerProcessing
	// WorkerStopped means the worker has been stopped.
	WorkerStopped
)

func (s WorkerState) String() string {
	switch s {
	case WorkerIdle:
		return "idle"
	case WorkerProcessing:
		return "processing"
	case WorkerStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// WorkerError wraps errors with phase and retry context.
type WorkerError struct {
	Phase   string    // "load", "layout"
	Cause   error     // The underlying error
	Time    time.Time // When the error occurred
	Retries int       // Number of retry attempts
}

func (e WorkerError) Error() string {
	return fmt.Sprintf("%s failed: %v (retries: %d)", e.Phase, e.Cause, e.Retries)
}

func (e WorkerError) Unwrap() error {
	return e.Cause
}

// Sender delivers messages to the UI. *tea.Program satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

// PayloadSnapshot is an immutable view of one payload version with every
// tree already laid out.
type PayloadSnapshot struct {
	Path       string
	Results    *model.Results
	Diagrams   map[string]*phylo.Diagram
	TreeErrors map[string]error
	DataHash   string
	BuiltAt    time.Time
}

// NewPayloadSnapshot lays out every tree in p. A tree that fails to parse
// is recorded in TreeErrors and does not fail the snapshot.
func NewPayloadSnapshot(p *loader.Payload, opts phylo.Options) *PayloadSnapshot {
	s := &PayloadSnapshot{
		Path:       p.Path,
		Results:    p.Results,
		Diagrams:   make(map[string]*phylo.Diagram),
		TreeErrors: make(map[string]error),
		DataHash:   p.Hash,
		BuiltAt:    time.Now(),
	}
	for _, tree := range p.Results.Trees {
		d, err := phylo.Build(tree, p.Results, opts)
		if err != nil {
			s.TreeErrors[tree.Name] = err
			continue
		}
		s.Diagrams[tree.Name] = d
	}
	return s
}

// BackgroundWorker manages background processing of the results payload.
// It owns the file watcher, implements coalescing, and builds snapshots
// off the UI thread.
type BackgroundWorker struct {
	// Configuration
	payloadPath   string
	debounceDelay time.Duration
	treeOptions   phylo.Options

	// State
	mu       sync.RWMutex
	state    WorkerState
	dirty    bool // True if a change came in while processing
	snapshot *PayloadSnapshot
	started  bool
	lastHash string // Content hash of last processed snapshot (for dedup)

	// Error tracking
	lastError  *WorkerError
	errorCount int

	// Components
	watcher *watcher.Watcher
	sender  Sender

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// WorkerConfig configures the BackgroundWorker.
type WorkerConfig struct {
	PayloadPath   string
	DebounceDelay time.Duration
	PollInterval  time.Duration
	ForcePoll     bool
	TreeOptions   phylo.Options
	Sender        Sender
}

// NewBackgroundWorker creates a new background worker.
func NewBackgroundWorker(cfg WorkerConfig) (*BackgroundWorker, error) {
	ctx, cancel := context.WithCancel(context.Background())

	if cfg.DebounceDelay == 0 {
		cfg.DebounceDelay = watcher.DefaultDebounceDuration
	}

	w := &BackgroundWorker{
		payloadPath:   cfg.PayloadPath,
		debounceDelay: cfg.DebounceDelay,
		treeOptions:   cfg.TreeOptions,
		sender:        cfg.Sender,
		state:         WorkerIdle,
		ctx:           ctx,
		cancel:        cancel,
		done:          make(chan struct{}),
	}

	if cfg.PayloadPath != "" && cfg.PayloadPath != loader.Stdin {
		opts := []watcher.WatcherOption{
			watcher.WithDebounceDuration(cfg.DebounceDelay),
			watcher.WithForcePoll(cfg.ForcePoll),
		}
		if cfg.PollInterval > 0 {
			opts = append(opts, watcher.WithPollInterval(cfg.PollInterval))
		}
		fw, err := watcher.NewWatcher(cfg.PayloadPath, opts...)
		if err != nil {
			cancel()
			return nil, err
		}
		w.watcher = fw
	}

	return w, nil
}

// SetSender sets where snapshot messages go. It must be called before Start.
func (w *BackgroundWorker) SetSender(s Sender) {
	w.mu.Lock()
	w.sender = s
	w.mu.Unlock()
}

// Start begins watching for file changes and processing in the background.
// Start is idempotent.
func (w *BackgroundWorker) Start() error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	w.started = true
	w.mu.Unlock()

	if w.watcher != nil {
		if err := w.watcher.Start(); err != nil {
			return err
		}
		go w.processLoop()
	} else {
		// No watcher: close done so Stop() doesn't block
		close(w.done)
	}

	return nil
}

// Stop halts the background worker and cleans up resources.
// Stop is idempotent.
func (w *BackgroundWorker) Stop() {
	w.mu.Lock()
	if w.state == WorkerStopped {
		w.mu.Unlock()
		return
	}
	w.state = WorkerStopped
	wasStarted := w.started
	w.mu.Unlock()

	w.cancel()

	if w.watcher != nil {
		w.watcher.Stop()
	}

	if wasStarted {
		select {
		case <-w.done:
		case <-time.After(2 * time.Second):
		}
	}
}

// TriggerRefresh manually triggers a refresh of the data.
// Has no effect if the worker is stopped; coalesces while processing.
func (w *BackgroundWorker) TriggerRefresh() {
	w.mu.Lock()
	if w.state == WorkerStopped {
		w.mu.Unlock()
		return
	}
	if w.state == WorkerProcessing {
		w.dirty = true
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	go w.process()
}

// GetSnapshot returns the current snapshot (may be nil).
func (w *BackgroundWorker) GetSnapshot() *PayloadSnapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.snapshot
}

// State returns the current worker state.
func (w *BackgroundWorker) State() WorkerState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

func (w *BackgroundWorker) processLoop() {
	defer close(w.done)

	if w.watcher == nil {
		return
	}

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.watcher.Changed():
			w.process()
		}
	}
}

// process builds a new snapshot from the current file.
func (w *BackgroundWorker) process() {
	w.mu.Lock()
	if w.state != WorkerIdle {
		if w.state == WorkerProcessing {
			w.dirty = true
		}
		w.mu.Unlock()
		return
	}
	w.state = WorkerProcessing
	w.dirty = false
	w.mu.Unlock()

	// nil means deduped or failed
	snapshot := w.buildSnapshot()

	w.mu.Lock()
	if w.state == WorkerStopped {
		w.mu.Unlock()
		return
	}
	if snapshot != nil {
		w.snapshot = snapshot
	}
	wasDirty := w.dirty
	w.state = WorkerIdle
	sender := w.sender
	w.mu.Unlock()

	if sender != nil && snapshot != nil {
		sender.Send(SnapshotReadyMsg{Snapshot: snapshot})
	}

	if wasDirty {
		go w.process()
	}
}

// safeCompute executes fn and recovers from any panics.
func (w *BackgroundWorker) safeCompute(phase string, fn func() error) *WorkerError {
	var result *WorkerError
	func() {
		defer func() {
			if r := recover(); r != nil {
				result = &WorkerError{
					Phase: phase,
					Cause: fmt.Errorf("panic: %v\n%s", r, rtdebug.Stack()),
					Time:  time.Now(),
				}
			}
		}()
		if err := fn(); err != nil {
			result = &WorkerError{
				Phase: phase,
				Cause: err,
				Time:  time.Now(),
			}
		}
	}()
	return result
}

func (w *BackgroundWorker) recordError(err *WorkerError) {
	w.mu.Lock()
	w.lastError = err
	if err != nil {
		w.errorCount++
		err.Retries = w.errorCount
	} else {
		w.errorCount = 0
	}
	w.mu.Unlock()
}

// LastError returns the most recent error (nil if last operation succeeded).
func (w *BackgroundWorker) LastError() *WorkerError {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastError
}

func (w *BackgroundWorker) sendError(err *WorkerError) {
	w.mu.RLock()
	sender := w.sender
	w.mu.RUnlock()
	if sender != nil {
		sender.Send(SnapshotErrorMsg{Err: err, Recoverable: true})
	}
}

// buildSnapshot loads the payload and constructs a new PayloadSnapshot.
// Called from the worker goroutine, never the UI thread. Returns nil if the
// path is empty, loading fails, or content is unchanged.
func (w *BackgroundWorker) buildSnapshot() *PayloadSnapshot {
	if w.payloadPath == "" {
		return nil
	}
	log := debug.Component("worker")
	start := time.Now()

	var payload *loader.Payload
	loadErr := w.safeCompute("load", func() error {
		var err error
		payload, err = loader.Load(w.payloadPath)
		return err
	})
	if loadErr != nil {
		log.Warn().Err(loadErr).Str("path", w.payloadPath).Msg("payload load failed")
		w.recordError(loadErr)
		w.sendError(loadErr)
		return nil
	}
	loadDuration := time.Since(start)

	w.mu.RLock()
	lastHash := w.lastHash
	w.mu.RUnlock()

	if payload.Hash == lastHash && lastHash != "" {
		log.Debug().Str("hash", hashPrefix(payload.Hash)).Msg("content unchanged, skipping rebuild")
		w.recordError(nil)
		return nil
	}

	var snapshot *PayloadSnapshot
	layoutStart := time.Now()
	layoutErr := w.safeCompute("layout", func() error {
		snapshot = NewPayloadSnapshot(payload, w.treeOptions)
		return nil
	})
	if layoutErr != nil {
		log.Warn().Err(layoutErr).Msg("tree layout failed")
		w.recordError(layoutErr)
		w.sendError(layoutErr)
		return nil
	}

	w.recordError(nil)

	w.mu.Lock()
	w.lastHash = payload.Hash
	w.mu.Unlock()

	log.Debug().
		Int("societies", len(payload.Results.Societies)).
		Int("trees", len(payload.Results.Trees)).
		Dur("load", loadDuration).
		Dur("layout", time.Since(layoutStart)).
		Str("hash", hashPrefix(payload.Hash)).
		Msg("snapshot built")

	return snapshot
}

// SnapshotReadyMsg is sent to the UI when a new snapshot is ready.
type SnapshotReadyMsg struct {
	Snapshot *PayloadSnapshot
}

// SnapshotErrorMsg is sent to the UI when snapshot building fails.
type SnapshotErrorMsg struct {
	Err         error
	Recoverable bool // True if we expect to recover on next file change
}

// WatcherChanged returns the watcher's change notification channel.
func (w *BackgroundWorker) WatcherChanged() <-chan struct{} {
	if w.watcher == nil {
		return nil
	}
	return w.watcher.Changed()
}

// LastHash returns the content hash from the last successful snapshot build.
func (w *BackgroundWorker) LastHash() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastHash
}

// hashPrefix returns up to 16 characters of the hash for logging.
func hashPrefix(hash string) string {
	if len(hash) > 16 {
		return hash[:16]
	}
	return hash
}

// ResetHash clears the stored content hash, forcing the next buildSnapshot
// to process even if content is unchanged.
func (w *BackgroundWorker) ResetHash() {
	w.mu.Lock()
	w.lastHash = ""
	w.mu.Unlock()
}
