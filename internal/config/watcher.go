package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jonasBoss/key-mapper/internal/app"
)

// PresetWatcher watches the preset directory and reports which preset file
// changed, debounced so editors that write in several steps trigger one
// reload.
type PresetWatcher struct {
	watcher  *fsnotify.Watcher
	handler  func(path string)
	debounce time.Duration
	log      *app.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
	wg      sync.WaitGroup
}

// NewPresetWatcher starts watching dir. handler is called with the path of
// each changed preset file.
func NewPresetWatcher(dir string, handler func(path string), log *app.Logger) (*PresetWatcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, err
	}

	if log == nil {
		log = app.NopLogger()
	}
	w := &PresetWatcher{
		watcher:  fw,
		handler:  handler,
		debounce: 100 * time.Millisecond,
		log:      log.WithComponent("preset-watcher"),
		pending:  make(map[string]*time.Timer),
	}
	return w, nil
}

// Run processes change events until the context is cancelled.
func (w *PresetWatcher) Run(ctx context.Context) {
	defer w.flush()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) {
				continue
			}
			if filepath.Ext(ev.Name) != ".toml" {
				continue
			}
			w.schedule(ev.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error("watching presets: %v", err)
		}
	}
}

// schedule arms the debounce timer for one path, restarting it if the file
// changes again before it fires.
func (w *PresetWatcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Reset(w.debounce)
		return
	}

	w.wg.Add(1)
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		defer w.wg.Done()
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		w.log.Info("preset %s changed", filepath.Base(path))
		w.handler(path)
	})
}

// flush stops all pending timers without firing them.
func (w *PresetWatcher) flush() {
	w.mu.Lock()
	for path, timer := range w.pending {
		if timer.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

// Close stops the underlying watcher.
func (w *PresetWatcher) Close() error {
	return w.watcher.Close()
}
