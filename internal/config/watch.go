package config

import (
	"context"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watch monitors the config file at path and invokes onChange with the
// freshly parsed Config after every successful rewrite. Replay knobs such as
// replay.acceleration take effect without a restart this way.
//
// A rewrite that fails to parse or validate is logged and ignored; the
// previously active config stays in force. Watch blocks until ctx is
// cancelled.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	slog.Info("config: watching for changes", "path", path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			switch {
			case event.Has(fsnotify.Write), event.Has(fsnotify.Create):
				// Writes and creates both count: editors frequently save by
				// writing a temp file and renaming it over the original.
			default:
				continue
			}

			cfg, err := Load(path)
			if err != nil {
				slog.Error("config: reload failed, keeping previous config",
					"path", path, "err", err)
				continue
			}
			slog.Info("config: reloaded",
				"path", path,
				"acceleration", cfg.Replay.Acceleration,
			)
			onChange(cfg)

			// An atomic save replaces the inode; re-register the path so
			// subsequent saves keep arriving.
			_ = watcher.Add(path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}
