package app

import (
	"fmt"

	"backlab/internal/backtest"
	"backlab/internal/config"
	"backlab/internal/logger"
	"backlab/internal/report"
	"backlab/internal/runspec"
	"backlab/internal/sim"
	"backlab/internal/sim/features"
	"backlab/internal/sim/fill"
	"backlab/internal/sim/policies"
	"backlab/internal/sim/signals"
	"backlab/internal/store/runstore"
	runshttp "backlab/internal/transport/http/runs"
)

// AppBuilder 按依赖次序装配应用组件。
type AppBuilder struct {
	cfg *config.Config
}

func NewAppBuilder(cfg *config.Config) *AppBuilder {
	return &AppBuilder{cfg: cfg}
}

// Build 初始化存储、注册表、编排服务与 HTTP 入口。
func (b *AppBuilder) Build() (*App, error) {
	if b == nil || b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg

	store, err := backtest.NewStore(cfg.Data.Dir)
	if err != nil {
		return nil, fmt.Errorf("初始化行情存储失败: %w", err)
	}
	runs, err := runstore.NewRunStore(cfg.Runs.DBPath)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("初始化结果存储失败: %w", err)
	}

	reg := buildRegistry()
	svc := backtest.NewService(cfg, store, runs, reg)

	var templates *runspec.Registry
	if cfg.Runs.TemplateDir != "" {
		templates, err = runspec.NewRegistry(cfg.Runs.TemplateDir)
		if err != nil {
			logger.Warnf("模板目录加载失败，模板接口关闭: %v", err)
			templates = nil
		}
	}

	reports := report.NewBuilder(cfg.Report)

	httpSrv, err := runshttp.NewServer(runshttp.Config{
		Addr:      cfg.App.HTTPAddr,
		Service:   svc,
		Runs:      runs,
		Data:      store,
		Templates: templates,
		Reports:   reports,
	})
	if err != nil {
		_ = store.Close()
		_ = runs.Close()
		return nil, fmt.Errorf("初始化 HTTP 服务失败: %w", err)
	}

	return &App{
		cfg:       cfg,
		store:     store,
		runs:      runs,
		svc:       svc,
		templates: templates,
		httpSrv:   httpSrv,
	}, nil
}

// buildRegistry 挂载全部内置插件。
func buildRegistry() *sim.Registry {
	reg := sim.NewRegistry()
	features.Register(reg)
	signals.Register(reg)
	policies.Register(reg)
	fill.Register(reg)
	return reg
}
