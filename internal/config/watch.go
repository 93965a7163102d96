package config

import (
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"longhaul/internal/logging"
)

// Watch reloads the logging section whenever <workspace>/.longhaul/config.yaml
// changes. Returns a stop function. Watching is best-effort: if the directory
// does not exist or the watcher cannot start, Watch returns a no-op stop and
// the error.
func Watch(workspace string) (stop func(), err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return func() {}, err
	}

	dir := filepath.Join(workspace, ".longhaul")
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return func() {}, err
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !strings.HasSuffix(event.Name, "config.yaml") {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := logging.ReloadSettings(); err != nil {
					logging.Get(logging.CategoryBoot).Warn("config reload failed: %v", err)
					continue
				}
				logging.BootDebug("logging settings reloaded from %s", event.Name)
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		watcher.Close()
	}, nil
}
