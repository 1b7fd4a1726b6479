package config

import (
	"fmt"
	"strings"
)

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.App.validate(); err != nil {
		return err
	}
	if err := c.Runs.validate(); err != nil {
		return err
	}
	if err := c.Report.validate(); err != nil {
		return err
	}
	return nil
}

func (a *AppConfig) validate() error {
	level := strings.ToLower(strings.TrimSpace(a.LogLevel))
	if !validLogLevels[level] {
		return fmt.Errorf("app.log_level must be one of debug/info/warn/error, got %q", a.LogLevel)
	}
	a.LogLevel = level
	if strings.TrimSpace(a.HTTPAddr) == "" {
		return fmt.Errorf("app.http_addr cannot be empty")
	}
	return nil
}

func (r *RunsConfig) validate() error {
	if strings.TrimSpace(r.DBPath) == "" {
		return fmt.Errorf("runs.db_path cannot be empty")
	}
	if r.MaxConcurrent <= 0 {
		return fmt.Errorf("runs.max_concurrent must be > 0")
	}
	if r.MaxConcurrent > 64 {
		return fmt.Errorf("runs.max_concurrent too large: %d", r.MaxConcurrent)
	}
	return nil
}

func (r *ReportConfig) validate() error {
	if r.RenderTimeoutSeconds <= 0 {
		return fmt.Errorf("report.render_timeout_seconds must be > 0")
	}
	return nil
}
