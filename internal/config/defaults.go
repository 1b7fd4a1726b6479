package config

import "strings"

// 默认值常量
const (
	defaultAppEnv            = "dev"
	defaultAppLogLevel       = "info"
	defaultAppHTTPAddr       = ":9980"
	defaultAppLogPath        = "data/logs/backlab.log"
	defaultDataDir           = "data/candles"
	defaultRunsDB            = "data/runs.db"
	defaultRunsTemplateDir   = "configs/runspecs"
	defaultRunsMaxConcurrent = 4
	defaultReportOutputDir   = "data/reports"
	defaultReportTimeout     = 30
)

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Data.applyDefaults(keys)
	c.Runs.applyDefaults(keys)
	c.Report.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
	)
}

func (d *DataConfig) applyDefaults(keys keySet) {
	if d == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("data.dir", &d.Dir, defaultDataDir),
	)
}

func (r *RunsConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("runs.db_path", &r.DBPath, defaultRunsDB),
		stringFieldDefault("runs.template_dir", &r.TemplateDir, defaultRunsTemplateDir),
		fieldDefault{
			key:   "runs.max_concurrent",
			need:  func() bool { return r.MaxConcurrent <= 0 },
			apply: func() { r.MaxConcurrent = defaultRunsMaxConcurrent },
		},
	)
}

func (r *ReportConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("report.output_dir", &r.OutputDir, defaultReportOutputDir),
		fieldDefault{
			key:   "report.render_timeout_seconds",
			need:  func() bool { return r.RenderTimeoutSeconds <= 0 },
			apply: func() { r.RenderTimeoutSeconds = defaultReportTimeout },
		},
	)
}

// applyFieldDefaults 只在字段未被显式设置且取值为空时回填默认值。
func applyFieldDefaults(keys keySet, fields ...fieldDefault) {
	for _, f := range fields {
		if f.apply == nil {
			continue
		}
		if keys.isSet(f.key) {
			continue
		}
		if f.need != nil && !f.need() {
			continue
		}
		f.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
