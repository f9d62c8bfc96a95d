package config

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a configuration file whenever it changes on disk,
// debouncing bursts of write events into a single reload, grounded on
// the teacher's skills.Manager file-watch loop.
type Watcher struct {
	path     string
	debounce time.Duration
	logger   *slog.Logger
	onReload func(*Config)

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewWatcher creates a Watcher for the config file at path. onReload is
// called with the newly parsed Config after every debounced change; a
// reload that fails to parse or validate is logged and skipped,
// leaving the last-good configuration in effect.
func NewWatcher(path string, onReload func(*Config), logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		path:     path,
		debounce: 250 * time.Millisecond,
		logger:   logger.With("component", "config_watcher"),
		onReload: onReload,
	}
}

// Start begins watching. It is a no-op if already started.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watcher != nil {
		w.mu.Unlock()
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	if err := fsw.Add(w.path); err != nil {
		fsw.Close()
		w.mu.Unlock()
		return err
	}
	w.watcher = fsw
	watchCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.mu.Unlock()

	w.wg.Add(1)
	go w.loop(watchCtx)
	return nil
}

// Close stops watching and releases the underlying file handle.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	fsw := w.watcher
	w.watcher = nil
	w.mu.Unlock()

	if fsw != nil {
		_ = fsw.Close()
	}
	w.wg.Wait()
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()
	w.mu.Lock()
	fsw := w.watcher
	w.mu.Unlock()
	if fsw == nil {
		return
	}

	var mu sync.Mutex
	var timer *time.Timer
	scheduleReload := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(w.debounce, w.reload)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				scheduleReload()
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watch error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Warn("config reload failed, keeping previous configuration", "error", err, "path", w.path)
		return
	}
	w.logger.Info("configuration reloaded", "path", w.path)
	if w.onReload != nil {
		w.onReload(cfg)
	}
}
