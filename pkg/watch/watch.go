// Package watch 监视形状和动画库 YAML 文件的变化，用于热重载
//
// 事件在后台 goroutine 中收集，由模拟线程在 Update 中调用 Drain 取出。
package watch

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounce 同一文件两次事件的最小间隔（编辑器保存时常触发多次写入）
const debounce = 100 * time.Millisecond

// Watcher 目录监视器
type Watcher struct {
	watcher *fsnotify.Watcher
	events  chan string
	errors  chan error
	closeCh chan struct{}
	done    chan struct{}
	once    sync.Once
}

// NewWatcher 监视一个或多个目录（不递归）
func NewWatcher(dirs ...string) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	for _, dir := range dirs {
		if err := w.Add(dir); err != nil {
			_ = w.Close()
			return nil, err
		}
	}

	watcher := &Watcher{
		watcher: w,
		events:  make(chan string, 16),
		errors:  make(chan error, 1),
		closeCh: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go watcher.run()
	return watcher, nil
}

// Events 变化的 YAML 文件路径
func (w *Watcher) Events() <-chan string {
	return w.events
}

// Errors 监视错误
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Drain 非阻塞地取出所有待处理的变化，返回处理的数量
// 同一批次中重复的路径只回调一次
func (w *Watcher) Drain(fn func(path string)) int {
	seen := make(map[string]bool)
	for {
		select {
		case path, ok := <-w.events:
			if !ok {
				return len(seen)
			}
			if seen[path] {
				continue
			}
			seen[path] = true
			fn(path)
		default:
			return len(seen)
		}
	}
}

// Close 停止监视
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.closeCh)
		err = w.watcher.Close()
		<-w.done
	})
	return err
}

func (w *Watcher) run() {
	defer func() {
		close(w.events)
		close(w.errors)
		close(w.done)
	}()

	last := make(map[string]time.Time)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if !IsYAML(event.Name) {
				continue
			}
			now := time.Now()
			if t, ok := last[event.Name]; ok && now.Sub(t) < debounce {
				continue
			}
			last[event.Name] = now
			select {
			case w.events <- event.Name:
			case <-w.closeCh:
				return
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			default:
				// 只保留最早的一个未读错误
			}
		case <-w.closeCh:
			return
		}
	}
}

// IsYAML 是否为 YAML 文件
func IsYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
