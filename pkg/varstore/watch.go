package varstore

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
)

// Watch reloads the variables file at path whenever it changes, until ctx is
// done. The parent directory is watched so that files replaced by rename are
// picked up.
func (s *Store) Watch(ctx context.Context, path string) error {
	path, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrap(err, "filepath.Abs")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "fsnotify.NewWatcher")
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			level.Warn(s.logger).Log("msg", "error closing watcher", "err", err)
		}
	}()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return errors.Wrap(err, "watcher.Add")
	}
	level.Debug(s.logger).Log("msg", "watching variables file", "path", path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if err := s.LoadFile(path); err != nil {
				level.Error(s.logger).Log("msg", "failed to reload variables", "path", path, "err", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			level.Error(s.logger).Log("msg", "variables watcher error", "err", err)
		}
	}
}
