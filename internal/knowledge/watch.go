package knowledge

import (
	"context"
	"strings"

	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watcher re-imports knowledge documents when the content directory changes,
// so externally authored edits go live without a restart.
type Watcher struct {
	syncer  *Syncer
	watcher *fsnotify.Watcher
	logger  *slog.Logger
}

func NewWatcher(syncer *Syncer, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{syncer: syncer, watcher: w, logger: logger}, nil
}

// Watch monitors dir until ctx is cancelled, re-importing any .json document
// that is created or written. Import failures are logged, never fatal: the
// store keeps serving the last good version of the document.
func (w *Watcher) Watch(ctx context.Context, dir string) error {
	if err := w.watcher.Add(dir); err != nil {
		return err
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if !strings.HasSuffix(strings.ToLower(event.Name), ".json") {
					continue
				}
				if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
					continue
				}
				if _, err := w.syncer.ImportFile(ctx, event.Name); err != nil {
					w.logger.Error("knowledge re-import failed", slog.String("path", event.Name), slog.Any("err", err))
				}
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.logger.Error("content watcher error", slog.Any("err", err))
			}
		}
	}()

	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}
