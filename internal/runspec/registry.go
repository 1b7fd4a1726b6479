package runspec

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"backlab/internal/logger"

	"github.com/fsnotify/fsnotify"
)

// Snapshot 是模板目录某一时刻的快照。
type Snapshot struct {
	Version  int64
	LoadedAt time.Time
	Specs    map[string]RunSpec
}

// ChangeListener 在模板重载后触发。
type ChangeListener func(Snapshot)

// Registry 管理一个目录下的具名 RunSpec 模板，并监听文件变更。
// 解析与校验在重载时完成，拿到的 Snapshot 都是已通过 schema 的值。
type Registry struct {
	dir string

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []ChangeListener
	watcher   *fsnotify.Watcher
}

// NewRegistry 加载目录并开始监听更新。
func NewRegistry(dir string) (*Registry, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("runspec registry 需要模板目录")
	}
	r := &Registry{dir: dir}
	if err := r.reload(); err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("创建 runspec watcher 失败: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("监听 runspec 目录失败: %w", err)
	}
	r.watcher = watcher
	go r.watchLoop()
	return r, nil
}

func (r *Registry) watchLoop() {
	for {
		select {
		case evt, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if err := r.reload(); err != nil {
				logger.Errorf("runspec 模板重载失败: %v", err)
				continue
			}
			r.notifyListeners()
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			logger.Warnf("runspec watcher 错误: %v", err)
		}
	}
}

// Close 停止监听。
func (r *Registry) Close() error {
	if r.watcher == nil {
		return nil
	}
	return r.watcher.Close()
}

func (r *Registry) reload() error {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("读取 runspec 目录失败: %w", err)
	}
	specs := make(map[string]RunSpec)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" && ext != ".json" {
			continue
		}
		path := filepath.Join(r.dir, entry.Name())
		spec, err := Load(path)
		if err != nil {
			return fmt.Errorf("模板 %s 无效: %w", entry.Name(), err)
		}
		if _, dup := specs[spec.Name]; dup {
			return fmt.Errorf("模板名称重复: %s", spec.Name)
		}
		specs[spec.Name] = spec
	}
	r.mu.Lock()
	r.snapshot = Snapshot{
		Version:  r.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Specs:    specs,
	}
	r.mu.Unlock()
	logger.Infof("runspec 模板已加载: %d 个（目录=%s）", len(specs), r.dir)
	return nil
}

// Snapshot 返回当前模板集拷贝。
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := Snapshot{Version: r.snapshot.Version, LoadedAt: r.snapshot.LoadedAt, Specs: make(map[string]RunSpec, len(r.snapshot.Specs))}
	for k, v := range r.snapshot.Specs {
		out.Specs[k] = v
	}
	return out
}

// Resolve 按名称取模板。
func (r *Registry) Resolve(name string) (RunSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.snapshot.Specs[name]
	return spec, ok
}

// Names 返回排序后的模板名。
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.snapshot.Specs))
	for name := range r.snapshot.Specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OnChange 注册重载回调。
func (r *Registry) OnChange(fn ChangeListener) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

func (r *Registry) notifyListeners() {
	snap := r.Snapshot()
	r.mu.RLock()
	listeners := append([]ChangeListener(nil), r.listeners...)
	r.mu.RUnlock()
	for _, fn := range listeners {
		fn(snap)
	}
}
