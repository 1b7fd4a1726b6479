package config

import "strings"

// Config 是 Backlab 的主配置载体。
type Config struct {
	App    AppConfig    `toml:"app"`
	Data   DataConfig   `toml:"data"`
	Runs   RunsConfig   `toml:"runs"`
	Report ReportConfig `toml:"report"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
}

// DataConfig 指向只读的行情数据目录。
// 每个 symbol@timeframe 一个 SQLite 库，预警流同库存放。
type DataConfig struct {
	Dir string `toml:"dir"`
}

// RunsConfig 控制回测运行的持久化与并发。
type RunsConfig struct {
	DBPath        string `toml:"db_path"`
	TemplateDir   string `toml:"template_dir"`
	MaxConcurrent int    `toml:"max_concurrent"`
}

// ReportConfig 控制图表产物的输出。
type ReportConfig struct {
	OutputDir            string `toml:"output_dir"`
	SnapshotDisabled     bool   `toml:"snapshot_disabled"`
	RenderTimeoutSeconds int    `toml:"render_timeout_seconds"`
}

// keySet 用于追踪配置文件中显式设置的字段路径。
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault 描述单个字段的默认值设置规则。
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
