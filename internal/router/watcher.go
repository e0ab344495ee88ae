package router

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the routing policy when its file changes. Invalid or
// missing files are logged and the previous policy stays active.
type Watcher struct {
	router   *Router
	path     string
	debounce time.Duration
	logger   *slog.Logger

	mu    sync.Mutex
	timer *time.Timer
}

// NewWatcher constructs a watcher for path.
func NewWatcher(router *Router, path string, logger *slog.Logger) (*Watcher, error) {
	if router == nil {
		return nil, errors.New("router is required")
	}
	if path == "" {
		return nil, errors.New("policy path is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{router: router, path: path, debounce: 300 * time.Millisecond, logger: logger}, nil
}

// Run watches until ctx is cancelled. The parent directory is watched so
// editors that replace the file atomically are handled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	target := filepath.Clean(w.path)
	w.logger.Info("watching routing policy", slog.String("path", w.path))

	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.schedule()
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("routing policy watcher error", slog.Any("error", err))
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	data, err := os.ReadFile(w.path)
	if errors.Is(err, os.ErrNotExist) {
		// Atomic saves briefly remove the file; the Create that follows reloads it.
		w.logger.Warn("routing policy file missing, keeping previous policy", slog.String("path", w.path))
		return
	}
	if err != nil {
		w.logger.Warn("routing policy reload failed, keeping previous policy", slog.String("path", w.path), slog.Any("error", err))
		return
	}
	policy, err := parsePolicy(data)
	if err != nil {
		w.logger.Warn("routing policy reload failed, keeping previous policy", slog.String("path", w.path), slog.Any("error", err))
		return
	}
	if policy.DefaultRegion == "" {
		policy.DefaultRegion = w.router.Policy().DefaultRegion
	}
	w.router.SetPolicy(policy)
	w.logger.Info("routing policy reloaded",
		slog.String("path", w.path),
		slog.Int("auto_execute_actions", len(policy.AutoExecuteActions)),
		slog.Int("repositories", len(policy.Repositories)))
}
