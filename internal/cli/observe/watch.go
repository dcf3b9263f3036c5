package observe

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Refresher: всё, что умеет перечитать своё состояние (Hub любого типа).
type Refresher interface {
	Refresh(ctx context.Context)
}

// FileWatcher следит за файлом БД (и его -wal/-shm) и перечитывает хабы,
// когда таблицы меняет другой процесс.
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	base     string
	targets  []Refresher
	logger   *zap.SugaredLogger
	debounce time.Duration
}

// NewFileWatcher создаёт watcher для файла БД по пути dbPath.
func NewFileWatcher(dbPath string, logger *zap.SugaredLogger, targets ...Refresher) (*FileWatcher, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	dir := filepath.Dir(dbPath)
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	return &FileWatcher{
		watcher:  w,
		base:     filepath.Base(dbPath),
		targets:  targets,
		logger:   logger,
		debounce: 150 * time.Millisecond,
	}, nil
}

// Run обрабатывает события до отмены ctx. Серия событий схлопывается в одно перечитывание.
func (fw *FileWatcher) Run(ctx context.Context) error {
	defer fw.watcher.Close()

	timer := time.NewTimer(fw.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.watcher.Events:
			if !ok {
				return nil
			}
			if !fw.relevant(ev) {
				continue
			}
			timer.Reset(fw.debounce)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return nil
			}
			fw.logger.Warnw("observe: watcher error", "error", err)
		case <-timer.C:
			for _, t := range fw.targets {
				t.Refresh(ctx)
			}
		}
	}
}

func (fw *FileWatcher) relevant(ev fsnotify.Event) bool {
	if !strings.HasPrefix(filepath.Base(ev.Name), fw.base) {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename)
}
