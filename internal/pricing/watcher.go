package pricing

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"argus/pkg/errors"
	"argus/pkg/logger"
)

const debounceInterval = 100 * time.Millisecond

// Watcher re-loads the pricing file into the table whenever it changes
// on disk, so rate updates do not require a restart.
type Watcher struct {
	table   *Table
	path    string
	log     *logger.Logger
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewWatcher creates a watcher for the pricing file at path. Start
// must be called to begin watching.
func NewWatcher(table *Table, path string, log *logger.Logger) *Watcher {
	return &Watcher{
		table: table,
		path:  path,
		log:   log.With("component", "pricing_watcher"),
		done:  make(chan struct{}),
	}
}

// Start begins watching the pricing file's directory. The directory is
// watched rather than the file so replace-by-rename updates are seen.
func (w *Watcher) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create fs watcher")
	}
	w.watcher = watcher

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return errors.Wrapf(err, "failed to watch %s", dir)
	}

	go w.watchLoop()

	w.log.Info("Pricing file watcher started", "path", w.path)
	return nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}

func (w *Watcher) watchLoop() {
	var debounce *time.Timer

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			// Debounce rapid successive writes
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceInterval, w.reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("Pricing watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	if err := w.table.LoadFile(w.path); err != nil {
		w.log.Error("Failed to reload pricing file",
			"path", w.path,
			"error", err,
		)
		return
	}
	w.log.Info("Pricing table reloaded", "path", w.path, "models", len(w.table.Models()))
}
