package changepipeline

import (
	"io/fs"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/forgelabs/forge/pkg/logging"
)

// watcher wraps fsnotify as the external watcher feeding the coalescer. It
// adds watches recursively for directories, mirroring the behavior the
// teacher's own native recursive watcher provides, but does so here above a
// plain fsnotify.Watcher rather than reimplementing OS-native recursive
// watch syscalls (see DESIGN.md).
type watcher struct {
	logger *logging.Logger
	fsw    *fsnotify.Watcher
}

func newWatcher(logger *logging.Logger) (*watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &watcher{logger: logger, fsw: fsw}, nil
}

// addRecursiveWatch registers watches for root and every directory beneath
// it.
func addRecursiveWatch(w *watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return w.fsw.Add(path)
		}
		return nil
	})
}

// run translates fsnotify events into RawEvents fed to the coalescer until
// the watcher is closed.
func (w *watcher) run(c *coalescer) {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			kind, ok := translateOp(ev.Op)
			if !ok {
				continue
			}
			c.Ingest(RawEvent{Path: filepath.ToSlash(ev.Name), Kind: kind})

			// fsnotify does not recurse into newly created directories on
			// its own; pick up new subdirectories as they appear so the
			// watch stays recursive.
			if ev.Op&fsnotify.Create == fsnotify.Create {
				if err := w.fsw.Add(ev.Name); err != nil {
					w.logger.Debugf("Unable to add watch for %s: %s", ev.Name, err.Error())
				}
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warnf("Watch error: %s", err.Error())
		}
	}
}

// translateOp maps an fsnotify operation to an EventKind. Chmod-only events
// carry no content change and are dropped.
func translateOp(op fsnotify.Op) (EventKind, bool) {
	switch {
	case op&fsnotify.Remove == fsnotify.Remove || op&fsnotify.Rename == fsnotify.Rename:
		return EventDeleted, true
	case op&fsnotify.Create == fsnotify.Create:
		return EventAdded, true
	case op&fsnotify.Write == fsnotify.Write:
		return EventModified, true
	default:
		return 0, false
	}
}

func (w *watcher) Close() error {
	return w.fsw.Close()
}
