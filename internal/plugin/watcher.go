package plugin

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"modeswitch/internal/logging"
)

// DefaultDebounce batches filesystem events before a reload fires.
const DefaultDebounce = 500 * time.Millisecond

// Watcher reloads the registry when the plugins root changes on disk.
// Any create, remove, or rename under the root triggers one debounced
// full reload cycle: stop all, load all, start all.
type Watcher struct {
	registry *Registry
	log      *logging.Logger
	debounce time.Duration

	fsw     *fsnotify.Watcher
	closeCh chan struct{}
	wg      sync.WaitGroup

	mu      sync.Mutex
	running bool
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce overrides the reload debounce window.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewWatcher creates a watcher over the registry's plugins root.
func NewWatcher(registry *Registry, log *logging.Logger, opts ...WatcherOption) *Watcher {
	if log == nil {
		log = logging.NullLogger
	}
	w := &Watcher{
		registry: registry,
		log:      log.WithComponent("plugin-watcher"),
		debounce: DefaultDebounce,
		closeCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching. A missing plugins root is not an error; the
// watcher simply never fires until the root appears and Start is called
// again.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(w.registry.Dir()); err != nil {
		fsw.Close()
		w.log.Warn("not watching %s: %v", w.registry.Dir(), err)
		return nil
	}

	w.fsw = fsw
	w.running = true
	w.wg.Add(1)
	go w.loop()

	w.log.Info("watching %s", w.registry.Dir())
	return nil
}

// Stop ends watching and waits for the loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.closeCh)
	w.fsw.Close()
	w.mu.Unlock()

	w.wg.Wait()
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	var timer *time.Timer
	var timerCh <-chan time.Time

	for {
		select {
		case <-w.closeCh:
			if timer != nil {
				timer.Stop()
			}
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.log.Debug("plugins root changed: %s", ev)
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerCh = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error: %v", err)

		case <-timerCh:
			timer = nil
			timerCh = nil
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	w.log.Info("plugins changed on disk, reloading")
	w.registry.StopAll()
	if err := w.registry.LoadAll(); err != nil {
		w.log.Error("reload failed: %v", err)
		return
	}
	w.registry.StartAll()
}
