package content

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch observes root and its subdirectories and calls onChange once per
// burst of file events, after debounce has passed without further events.
// It blocks until ctx is cancelled.
func Watch(ctx context.Context, root string, debounce time.Duration, log *zap.Logger, onChange func()) error {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("watch")
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if addErr := w.Add(path); addErr != nil {
				return fmt.Errorf("watch %s: %w", path, addErr)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk content dir: %w", err)
	}
	log.Info("watching content", zap.String("root", root))

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			log.Debug("content change", zap.String("path", ev.Name), zap.String("op", ev.Op.String()))
			if ev.Has(fsnotify.Create) {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := w.Add(ev.Name); addErr != nil {
						log.Warn("watch new directory", zap.String("path", ev.Name), zap.Error(addErr))
					}
				}
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, onChange)
		case werr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("watcher error", zap.Error(werr))
		}
	}
}
