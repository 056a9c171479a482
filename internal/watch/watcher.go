package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher calls a function once per burst of changes to matching files under
// a directory tree. Calls never overlap; a change during a call queues exactly
// one more call.
type Watcher struct {
	root     string
	match    func(path string) bool
	debounce time.Duration
	fsw      *fsnotify.Watcher
	rerun    chan struct{}

	mu    sync.Mutex
	timer *time.Timer
}

// New watches root recursively. Directories created later are added as they appear.
func New(root string, debounce time.Duration, match func(path string) bool) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}

	w := &Watcher{
		root:     root,
		match:    match,
		debounce: debounce,
		fsw:      fsw,
		rerun:    make(chan struct{}, 1),
	}

	if err := w.addDirsRecursive(root); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// MatchExt matches files with the given extension, ignoring hidden and editor temp files.
func MatchExt(ext string) func(string) bool {
	return func(path string) bool {
		base := filepath.Base(path)
		if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
			return false
		}
		return filepath.Ext(base) == ext
	}
}

// Run processes events until ctx is done, then closes the watcher.
func (w *Watcher) Run(ctx context.Context, fn func(ctx context.Context)) error {
	logger := zerolog.Ctx(ctx)
	runCtx, cancel := context.WithCancel(ctx)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-w.rerun:
				fn(runCtx)
			}
		}
	}()

	defer func() {
		w.stopTimer()
		cancel()
		wg.Wait()
		_ = w.fsw.Close()
	}()

	logger.Info().Str("dir", w.root).Msg("Watching for changes")

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Msg("watcher error")
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, ev fsnotify.Event) {
	if ev.Has(fsnotify.Create) {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			_ = w.addDirsRecursive(ev.Name)
			return
		}
	}
	if ev.Op == fsnotify.Chmod || !w.match(ev.Name) {
		return
	}
	zerolog.Ctx(ctx).Debug().Str("path", ev.Name).Str("op", ev.Op.String()).Msg("File change detected")
	w.trigger()
}

// trigger restarts the debounce timer, when it fires one run is queued.
func (w *Watcher) trigger() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case w.rerun <- struct{}{}:
		default:
		}
	})
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

func (w *Watcher) addDirsRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := w.fsw.Add(path); err != nil {
				return fmt.Errorf("watch %s: %w", path, err)
			}
		}
		return nil
	})
}
