package scanner

import (
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"ludex/internal/logging"
)

// Watcher observes the library roots and fires a rescan trigger after folder
// churn settles. Roots are watched non-recursively: folder creation, removal,
// and renames at the top level are the signals that matter for a rescan.
type Watcher struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration
	trigger  func()
	logger   *slog.Logger

	mu      sync.Mutex
	dirty   bool
	lastHit time.Time
	started bool

	done   chan struct{}
	closed sync.Once
}

// NewWatcher builds a watcher over the provided roots. Roots that do not
// exist yet are skipped; the periodic scan still covers them once created.
func NewWatcher(roots []string, debounce time.Duration, trigger func(), logger *slog.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = time.Second
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	watchLogger := logging.NewComponentLogger(logger, "scanner-watch")

	w := &Watcher{
		watcher:  fw,
		debounce: debounce,
		trigger:  trigger,
		logger:   watchLogger,
		done:     make(chan struct{}),
	}
	added := 0
	for _, root := range roots {
		if strings.TrimSpace(root) == "" {
			continue
		}
		if err := fw.Add(root); err != nil {
			watchLogger.Warn("cannot watch library root", logging.String("root", root), logging.Error(err))
			continue
		}
		added++
	}
	if added == 0 {
		_ = fw.Close()
		return nil, ErrNoWatchableRoots
	}
	return w, nil
}

// ErrNoWatchableRoots reports that none of the configured roots exist yet.
var ErrNoWatchableRoots = errors.New("no watchable library roots")

// Start launches the event loop. Close stops it.
func (w *Watcher) Start() {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()
	go w.loop()
}

// Close stops watching and waits for the loop to exit.
func (w *Watcher) Close() error {
	var err error
	w.closed.Do(func() {
		err = w.watcher.Close()
		w.mu.Lock()
		started := w.started
		w.mu.Unlock()
		if started {
			<-w.done
		}
	})
	return err
}

func (w *Watcher) loop() {
	defer close(w.done)

	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !relevantEvent(event) {
				continue
			}
			w.mu.Lock()
			w.dirty = true
			w.lastHit = time.Now()
			w.mu.Unlock()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("library watch error", logging.Error(err))
		case <-ticker.C:
			w.mu.Lock()
			fire := w.dirty && time.Since(w.lastHit) >= w.debounce
			if fire {
				w.dirty = false
			}
			w.mu.Unlock()
			if fire && w.trigger != nil {
				w.trigger()
			}
		}
	}
}

func relevantEvent(event fsnotify.Event) bool {
	if strings.HasPrefix(filepath.Base(event.Name), ".") {
		return false
	}
	return event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
}
