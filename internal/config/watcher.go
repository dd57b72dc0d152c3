package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"dirigent/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches the workspace config file and re-applies the thresholds
// section on change, so routing bounds are tunable without a restart.
type Watcher struct {
	mu          sync.RWMutex
	watcher     *fsnotify.Watcher
	workspace   string
	thresholds  Thresholds
	onChange    func(Thresholds)
	debounceDur time.Duration
	lastEvent   time.Time
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
}

// NewWatcher creates a watcher seeded with the current thresholds. onChange
// is invoked (from the watcher goroutine) after every successful reload.
func NewWatcher(workspace string, seed Thresholds, onChange func(Thresholds)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		watcher:     fw,
		workspace:   workspace,
		thresholds:  seed,
		onChange:    onChange,
		debounceDur: 500 * time.Millisecond, // editors fire bursts of writes
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Thresholds returns the latest applied thresholds.
func (w *Watcher) Thresholds() Thresholds {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.thresholds
}

// Start begins watching the config directory. Non-blocking.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	dir := filepath.Dir(Path(w.workspace))
	if err := w.watcher.Add(dir); err != nil {
		// Dotdir may not exist yet; thresholds just stay at the seed.
		logging.Get(logging.CategoryBoot).Warn("config watcher: initial watch failed: %v", err)
	} else {
		logging.BootDebug("config watcher: watching %s", dir)
	}

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the goroutine to exit.
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
	_ = w.watcher.Close()
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	cfgPath := Path(w.workspace)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Name != cfgPath {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.mu.Lock()
			if time.Since(w.lastEvent) < w.debounceDur {
				w.mu.Unlock()
				continue
			}
			w.lastEvent = time.Now()
			w.mu.Unlock()

			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryBoot).Warn("config watcher: %v", err)
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.workspace)
	if err != nil {
		logging.Get(logging.CategoryBoot).Warn("config watcher: reload rejected: %v", err)
		return
	}

	w.mu.Lock()
	w.thresholds = cfg.Thresholds
	cb := w.onChange
	w.mu.Unlock()

	logging.Boot("config watcher: thresholds reloaded (execute=%.2f uncertain=%.2f)",
		cfg.Thresholds.Execute, cfg.Thresholds.Uncertain)

	if cb != nil {
		cb(cfg.Thresholds)
	}
}
