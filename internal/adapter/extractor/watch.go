package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadRules перечитывает файл правил и ставит его правила перед встроенными.
// При ошибке текущий набор правил не меняется.
func (e *ContentExtractor) ReloadRules(path string) error {
	rules, err := LoadRules(path)
	if err != nil {
		return err
	}
	e.SetRules(append(rules, DefaultRules()...))
	e.log.Info("Extraction rules loaded",
		slog.String("file", path),
		slog.Int("rules", len(rules)),
	)
	return nil
}

// WatchRules следит за файлом правил и перезагружает его после записи, создания или переименования.
// Наблюдение ведется за каталогом, чтобы пережить атомарную замену файла редактором.
// Блокируется до отмены ctx.
func (e *ContentExtractor) WatchRules(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create rules watcher: %w", err)
	}
	defer watcher.Close()

	target := filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(target), err)
	}
	log := e.log.With(slog.String("op", "extractor.WatchRules"), slog.String("file", target))
	log.Info("Watching extraction rules")

	var reload <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			reload = time.After(e.debounce)
		case <-reload:
			reload = nil
			if err := e.ReloadRules(target); err != nil {
				log.Error("Failed to reload extraction rules, keeping previous set", slog.Any("error", err))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("Rules watcher error", slog.Any("error", err))
		}
	}
}
