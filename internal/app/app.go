package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"backlab/internal/backtest"
	"backlab/internal/config"
	"backlab/internal/logger"
	"backlab/internal/runspec"
	"backlab/internal/store/runstore"
	runshttp "backlab/internal/transport/http/runs"
)

// App 负责应用级编排：加载配置→初始化依赖→启动 HTTP 服务。
type App struct {
	cfg       *config.Config
	store     *backtest.Store
	runs      *runstore.RunStore
	svc       *backtest.Service
	templates *runspec.Registry
	httpSrv   *runshttp.Server
}

// NewApp 根据配置构建应用对象（不启动）。
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(cfg)
}

// Run 启动 HTTP 服务并阻塞到 ctx 取消。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	logger.Infof("backlab 启动，HTTP 监听 %s，数据目录 %s", a.cfg.App.HTTPAddr, a.cfg.Data.Dir)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := a.httpSrv.Start(); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return a.httpSrv.Shutdown(shutdownCtx)
	})

	err := group.Wait()
	a.close()
	return err
}

// Service 暴露编排服务（测试与批处理入口使用）。
func (a *App) Service() *backtest.Service {
	if a == nil {
		return nil
	}
	return a.svc
}

func (a *App) close() {
	if a.svc != nil {
		a.svc.Close()
	}
	if a.templates != nil {
		_ = a.templates.Close()
	}
	if a.runs != nil {
		_ = a.runs.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
}
