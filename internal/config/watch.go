package config

import (
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher hot-reloads cfg in place whenever its backing file changes on
// disk, so a running gateway picks up hand-edited config.json changes
// (or update_config tool writes from another process) without a
// restart. Secrets sourced from the environment (API keys, DSNs) are
// re-applied from the process environment on every reload since Load
// already layers env overrides on top of the file.
type Watcher struct {
	fsw *fsnotify.Watcher
}

// WatchFile starts watching path and calls ReplaceFrom on cfg with the
// freshly loaded file each time it changes. Reload errors are logged and
// skipped — cfg keeps serving its last-known-good values.
func WatchFile(path string, cfg *Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{fsw: fsw}
	go w.loop(path, cfg)
	return w, nil
}

func (w *Watcher) loop(path string, cfg *Config) {
	abs, _ := filepath.Abs(path)
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			evAbs, _ := filepath.Abs(ev.Name)
			if evAbs != abs {
				continue
			}
			if !(ev.Op&(fsnotify.Write|fsnotify.Create) != 0) {
				continue
			}
			reloaded, err := Load(path)
			if err != nil {
				slog.Warn("config: reload failed, keeping previous config", "path", path, "error", err)
				continue
			}
			cfg.ReplaceFrom(reloaded)
			slog.Info("config: reloaded from disk", "path", path)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("config: watcher error", "error", err)
		}
	}
}

// Stop ends the watch goroutine and releases the underlying fsnotify handle.
func (w *Watcher) Stop() error {
	return w.fsw.Close()
}
