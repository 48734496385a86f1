package pipeline

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Watcher 输入文件监听器
// 监听文件所在目录，编辑器通过重命名替换文件时也能收到事件
type Watcher struct {
	watcher  *fsnotify.Watcher
	paths    map[string]struct{}
	debounce time.Duration
	logger   *zap.Logger
}

// NewWatcher 创建监听器
func NewWatcher(paths []string, debounce time.Duration, logger *zap.Logger) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, ErrNoInput
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create file watcher")
	}

	w := &Watcher{
		watcher:  fw,
		paths:    make(map[string]struct{}, len(paths)),
		debounce: debounce,
		logger:   logger,
	}
	dirs := make(map[string]struct{})
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			fw.Close()
			return nil, errors.Wrapf(err, "resolve %s", path)
		}
		w.paths[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, errors.Wrapf(err, "watch %s", dir)
		}
	}
	return w, nil
}

// Run 阻塞运行，文件变化稳定 debounce 时长后调用 onChange
func (w *Watcher) Run(ctx context.Context, onChange func()) error {
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("input changed", zap.String("path", event.Name), zap.String("op", event.Op.String()))
			timer.Reset(w.debounce)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", zap.Error(err))
		case <-timer.C:
			onChange()
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return false
	}
	abs, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	_, ok := w.paths[abs]
	return ok
}

// Close 关闭监听器
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
