package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"NaslParser/internal/model"
	"NaslParser/internal/utils"
)

// ResultHandler 处理重新解析后的脚本
type ResultHandler func(model.ScriptResult)

// Watcher 监听脚本目录，文件变化后经过防抖重新解析
type Watcher struct {
	root    string
	scanner *ScriptScanner
	delay   time.Duration
	watcher *fsnotify.Watcher
	logger  *utils.Logger
}

func NewWatcher(root string, scanner *ScriptScanner, delay time.Duration) (*Watcher, error) {
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("创建文件监听器失败: %w", err)
	}

	w := &Watcher{
		root:    root,
		scanner: scanner,
		delay:   delay,
		watcher: fw,
		logger:  utils.NewLogger("watcher"),
	}

	if err := w.addTree(root); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

// addTree 递归加入目录，fsnotify本身不递归
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("监听目录 %s 失败: %w", path, err)
		}
		return nil
	})
}

// Run 阻塞直到ctx结束，每批变更的脚本按路径排序后交给handle
func (w *Watcher) Run(ctx context.Context, handle ResultHandler) error {
	defer w.watcher.Close()

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.delay)
	timer.Stop()
	defer timer.Stop()

	w.logger.Info("开始监听 %s", w.root)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("停止监听 %s", w.root)
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						w.logger.Warn("%v", err)
					}
					continue
				}
			}

			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !w.scanner.Matches(event.Name) {
				continue
			}

			pending[event.Name] = struct{}{}
			timer.Reset(w.delay)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("监听错误: %v", err)

		case <-timer.C:
			paths := make([]string, 0, len(pending))
			for path := range pending {
				paths = append(paths, path)
			}
			sort.Strings(paths)
			clear(pending)

			for _, path := range paths {
				handle(w.scanner.ScanFile(path))
			}
		}
	}
}
