package capture

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultSettle = 300 * time.Millisecond

// DirWatcher yields every image written into a directory. A file is yielded
// once it has seen no writes for the settle period, so a photo that is still
// being copied in is not read half-written.
type DirWatcher struct {
	dir     string
	watcher *fsnotify.Watcher
	logger  *zap.Logger
	settle  time.Duration

	mu      sync.Mutex
	pending map[string]time.Time

	out       chan Capture
	done      chan struct{}
	runDone   chan struct{}
	closeOnce sync.Once
}

type WatcherOption func(*DirWatcher)

// WithSettle sets how long a file must stay unchanged before it is yielded.
func WithSettle(d time.Duration) WatcherOption {
	return func(w *DirWatcher) {
		if d > 0 {
			w.settle = d
		}
	}
}

func WithWatcherLogger(logger *zap.Logger) WatcherOption {
	return func(w *DirWatcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewDirWatcher starts watching dir. Files already present are ignored.
// Close must be called to release the watcher.
func NewDirWatcher(dir string, opts ...WatcherOption) (*DirWatcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	w := &DirWatcher{
		dir:     dir,
		watcher: fw,
		logger:  zap.NewNop(),
		settle:  defaultSettle,
		pending: make(map[string]time.Time),
		out:     make(chan Capture, 16),
		done:    make(chan struct{}),
		runDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	w.logger.Debug("Watching capture directory", zap.String("dir", dir))
	go w.run()
	return w, nil
}

func (w *DirWatcher) Dir() string { return w.dir }

// Acquire returns the next settled image. It returns ErrClosed after Close.
func (w *DirWatcher) Acquire(ctx context.Context) (Capture, error) {
	select {
	case c := <-w.out:
		return c, nil
	case <-ctx.Done():
		return Capture{}, ctx.Err()
	case <-w.done:
		return Capture{}, ErrClosed
	}
}

// Close stops the watcher and waits for its loop to exit.
func (w *DirWatcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
		<-w.runDone
	})
	return err
}

func (w *DirWatcher) run() {
	defer close(w.runDone)

	tick := w.settle / 4
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Capture watcher error", zap.Error(err))

		case now := <-ticker.C:
			w.flush(now)
		}
	}
}

func (w *DirWatcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	if !IsImage(event.Name) {
		return
	}
	w.mu.Lock()
	w.pending[event.Name] = time.Now()
	w.mu.Unlock()
}

// flush yields every pending file that has been quiet for the settle period.
func (w *DirWatcher) flush(now time.Time) {
	var ready []string
	w.mu.Lock()
	for path, last := range w.pending {
		if now.Sub(last) >= w.settle {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()
	slices.Sort(ready)

	for _, path := range ready {
		c, err := readCapture(path)
		if err != nil {
			w.logger.Warn("Skipping capture", zap.String("path", path), zap.Error(err))
			continue
		}
		w.logger.Debug("Captured image", zap.String("path", path), zap.Int("bytes", len(c.Data)))
		select {
		case w.out <- c:
		case <-w.done:
			return
		}
	}
}
