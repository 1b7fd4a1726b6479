package runshttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"backlab/internal/backtest"
	"backlab/internal/report"
	"backlab/internal/runspec"
	"backlab/internal/sim"
	"backlab/internal/store/runstore"
)

// Server 提供回测运行的 HTTP API。
type Server struct {
	addr      string
	svc       *backtest.Service
	runs      *runstore.RunStore
	data      *backtest.Store
	templates *runspec.Registry
	reports   *report.Builder
	router    *gin.Engine
	srv       *http.Server
}

// Config 描述 HTTP Server 的依赖。
type Config struct {
	Addr      string
	Service   *backtest.Service
	Runs      *runstore.RunStore
	Data      *backtest.Store
	Templates *runspec.Registry
	Reports   *report.Builder
}

// NewServer 构建 HTTP Server。
func NewServer(cfg Config) (*Server, error) {
	if cfg.Service == nil {
		return nil, errors.New("service 不能为空")
	}
	if cfg.Runs == nil {
		return nil, errors.New("run store 不能为空")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9980"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		addr:      cfg.Addr,
		svc:       cfg.Service,
		runs:      cfg.Runs,
		data:      cfg.Data,
		templates: cfg.Templates,
		reports:   cfg.Reports,
		router:    router,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	api := s.router.Group("/api")
	api.GET("/timeframes", s.handleTimeframes)
	api.GET("/templates", s.handleTemplates)
	api.GET("/data", s.handleManifest)
	api.POST("/runs", s.handleRunStart)
	api.GET("/runs", s.handleRunList)
	api.GET("/runs/:id", s.handleRunDetail)
	api.GET("/runs/:id/events", s.handleRunEvents)
	api.GET("/runs/:id/trades", s.handleRunTrades)
	api.GET("/runs/:id/snapshots", s.handleRunSnapshots)
	api.POST("/runs/:id/cancel", s.handleRunCancel)
	api.GET("/runs/:id/report", s.handleRunReportHTML)
	api.POST("/runs/:id/report", s.handleRunReport)
	api.DELETE("/runs/:id", s.handleRunDelete)
}

// Start 启动监听，阻塞直到服务关闭。
func (s *Server) Start() error {
	s.srv = &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown 优雅关闭。
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleTimeframes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"timeframes": backtest.SupportedTimeframes()})
}

func (s *Server) handleTemplates(c *gin.Context) {
	if s.templates == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "模板目录未启用"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"templates": s.templates.Names()})
}

func (s *Server) handleManifest(c *gin.Context) {
	if s.data == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "数据存储未启用"})
		return
	}
	symbol := c.Query("symbol")
	tf := c.Query("timeframe")
	if symbol == "" || tf == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol/timeframe 必填"})
		return
	}
	info, err := s.data.Manifest(c.Request.Context(), symbol, tf)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"manifest": info})
}

// handleRunStart 接受内联 spec 或模板名，异步启动回放。
func (s *Server) handleRunStart(c *gin.Context) {
	var req struct {
		Template string          `json:"template"`
		Spec     json.RawMessage `json:"spec"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var spec runspec.RunSpec
	switch {
	case len(req.Spec) > 0:
		parsed, err := runspec.Parse(req.Spec, true)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		spec = parsed
	case req.Template != "":
		if s.templates == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "模板目录未启用"})
			return
		}
		resolved, ok := s.templates.Resolve(req.Template)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "未知模板: " + req.Template})
			return
		}
		spec = resolved
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "spec 或 template 必填"})
		return
	}
	runID, err := s.svc.StartRun(c.Request.Context(), spec)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"run_id": runID})
}

func (s *Server) handleRunList(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	runs, err := s.runs.ListRuns(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) handleRunDetail(c *gin.Context) {
	run, err := s.runs.GetRun(c.Param("id"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, runstore.ErrRunNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": run})
}

func (s *Server) handleRunEvents(c *gin.Context) {
	events, err := s.runs.ListEvents(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (s *Server) handleRunTrades(c *gin.Context) {
	trades, err := s.runs.ListTrades(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

func (s *Server) handleRunSnapshots(c *gin.Context) {
	points, err := s.runs.ListSnapshots(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": points})
}

func (s *Server) handleRunCancel(c *gin.Context) {
	if !s.svc.Cancel(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "run 不在进行中"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"canceled": true})
}

func (s *Server) handleRunDelete(c *gin.Context) {
	err := s.runs.DeleteRun(c.Param("id"))
	if errors.Is(err, runstore.ErrRunNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// handleRunReport 基于已持久化的派生产物渲染报告，返回产物路径。
func (s *Server) handleRunReport(c *gin.Context) {
	files, ok := s.renderReport(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": files})
}

// handleRunReportHTML 渲染后直接回 HTML 页面。
func (s *Server) handleRunReportHTML(c *gin.Context) {
	files, ok := s.renderReport(c)
	if !ok {
		return
	}
	c.File(files.HTMLPath)
}

func (s *Server) renderReport(c *gin.Context) (report.Files, bool) {
	if s.reports == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "报告渲染未启用"})
		return report.Files{}, false
	}
	runID := c.Param("id")
	run, err := s.runs.GetRun(runID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, runstore.ErrRunNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return report.Files{}, false
	}
	if run.Status != runstore.RunStatusComplete {
		c.JSON(http.StatusConflict, gin.H{"error": "仅完整账本的 run 可渲染报告"})
		return report.Files{}, false
	}
	snapshots, err := s.runs.ListSnapshots(runID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return report.Files{}, false
	}
	trades, err := s.runs.ListTrades(runID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return report.Files{}, false
	}
	input := report.Input{
		RunID:  runID,
		Name:   run.Name,
		Symbol: run.Symbol,
	}
	if len(run.MetricsJSON) > 0 {
		if err := json.Unmarshal(run.MetricsJSON, &input.Metrics); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return report.Files{}, false
		}
	}
	for _, pt := range snapshots {
		input.Equity = append(input.Equity, sim.EquityPoint{TS: pt.TS, Equity: pt.Equity, Drawdown: pt.Drawdown})
	}
	for _, tr := range trades {
		input.Trades = append(input.Trades, sim.Trade{
			EntryTS:    tr.EntryTS,
			ExitTS:     tr.ExitTS,
			EntryPrice: tr.EntryPrice,
			ExitPrice:  tr.ExitPrice,
			Size:       tr.Size,
			Side:       tr.Side,
			PnL:        tr.PnL,
		})
	}
	files, err := s.reports.Render(c.Request.Context(), input)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return report.Files{}, false
	}
	return files, true
}
