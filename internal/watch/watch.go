package watch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce absorbs the burst of events editors emit for a single save.
const DefaultDebounce = 300 * time.Millisecond

// Handler is called with the watched path once its content has changed.
type Handler func(ctx context.Context, path string) error

// Stats counts watcher activity.
type Stats struct {
	Events    int
	Triggered int
	Unchanged int
	Errors    int
}

// Watcher re-runs a handler when a single file's content changes. It watches
// the parent directory so atomic saves (write temp, rename) are seen.
type Watcher struct {
	mu       sync.Mutex
	fsw      *fsnotify.Watcher
	path     string
	debounce time.Duration
	handler  Handler
	logger   *zap.Logger

	pendingSince time.Time
	lastHash     string
	stats        Stats

	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// New creates a watcher for path. A zero debounce uses DefaultDebounce.
func New(path string, debounce time.Duration, handler Handler, logger *zap.Logger) (*Watcher, error) {
	if handler == nil {
		return nil, fmt.Errorf("watch handler is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve watch path: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fs watcher: %w", err)
	}
	return &Watcher{
		fsw:      fsw,
		path:     abs,
		debounce: debounce,
		handler:  handler,
		logger:   logger.With(zap.String("path", abs)),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins watching. The current content is the baseline; only later
// changes trigger the handler.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	hash, err := hashFile(w.path)
	if err != nil {
		w.abort()
		return fmt.Errorf("read watched file: %w", err)
	}
	w.lastHash = hash

	if err := w.fsw.Add(filepath.Dir(w.path)); err != nil {
		w.abort()
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	w.logger.Info("watching file")

	go w.run(ctx)
	return nil
}

func (w *Watcher) abort() {
	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
	_ = w.fsw.Close()
}

// Stop ends the watch loop and releases the underlying watcher.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.fsw.Close(); err != nil {
		w.logger.Warn("close fs watcher", zap.Error(err))
	}
	w.logger.Info("watcher stopped")
}

// Done is closed when the watch loop exits.
func (w *Watcher) Done() <-chan struct{} {
	return w.doneCh
}

// Stats returns a copy of the activity counters.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	tick := w.debounce / 3
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("fs watcher error", zap.Error(err))
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()
		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
		return
	}
	w.logger.Debug("file event", zap.String("op", event.Op.String()))

	w.mu.Lock()
	w.stats.Events++
	w.pendingSince = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	if w.pendingSince.IsZero() || time.Since(w.pendingSince) < w.debounce {
		w.mu.Unlock()
		return
	}
	w.pendingSince = time.Time{}
	w.mu.Unlock()

	hash, err := hashFile(w.path)
	if err != nil {
		if os.IsNotExist(err) {
			w.logger.Debug("watched file missing, waiting for it to return")
			return
		}
		w.logger.Error("read watched file", zap.Error(err))
		w.mu.Lock()
		w.stats.Errors++
		w.mu.Unlock()
		return
	}
	if hash == w.lastHash {
		w.mu.Lock()
		w.stats.Unchanged++
		w.mu.Unlock()
		return
	}
	w.lastHash = hash

	w.mu.Lock()
	w.stats.Triggered++
	w.mu.Unlock()
	if err := w.handler(ctx, w.path); err != nil {
		w.logger.Error("watch handler failed", zap.Error(err))
		w.mu.Lock()
		w.stats.Errors++
		w.mu.Unlock()
	}
}

func hashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
