package report

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"backlab/internal/config"
	"backlab/internal/sim"
)

const (
	colorBackground    = "#060c1b"
	colorTextPrimary   = "#eceff4"
	colorTextSecondary = "#9ca3af"
	colorEquity        = "#3b82f6"
	colorDrawdown      = "#f87171"
	colorWin           = "#34d399"
	colorLoss          = "#f87171"

	chartWidthPx   = 1600
	equityHeightPx = 520
	tradesHeightPx = 320
)

// Input 是渲染一份 run 报告所需的派生产物。
type Input struct {
	RunID   string
	Name    string
	Symbol  string
	Equity  []sim.EquityPoint
	Trades  []sim.Trade
	Metrics sim.Metrics
}

// Files 指向渲染产物。
type Files struct {
	HTMLPath string `json:"html_path"`
	PNGPath  string `json:"png_path,omitempty"`
}

// Builder 把权益曲线与交易分布渲染成 HTML 报告，
// 配置允许时再经 headless Chrome 截成 PNG。
type Builder struct {
	outDir   string
	snapshot bool
	timeout  time.Duration
}

func NewBuilder(cfg config.ReportConfig) *Builder {
	timeout := time.Duration(cfg.RenderTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Builder{
		outDir:   cfg.OutputDir,
		snapshot: !cfg.SnapshotDisabled,
		timeout:  timeout,
	}
}

// Render 产出报告文件并返回路径。
func (b *Builder) Render(ctx context.Context, input Input) (Files, error) {
	if input.RunID == "" {
		return Files{}, fmt.Errorf("run id 不能为空")
	}
	if len(input.Equity) == 0 {
		return Files{}, fmt.Errorf("run %s 没有权益曲线可渲染", input.RunID)
	}
	if err := os.MkdirAll(b.outDir, 0o755); err != nil {
		return Files{}, err
	}
	html, err := buildPageHTML(input)
	if err != nil {
		return Files{}, err
	}
	htmlPath := filepath.Join(b.outDir, input.RunID+".html")
	if err := os.WriteFile(htmlPath, html, 0o644); err != nil {
		return Files{}, err
	}
	files := Files{HTMLPath: htmlPath}
	if !b.snapshot {
		return files, nil
	}
	height := equityHeightPx + tradesHeightPx
	png, err := renderHTMLToPNG(ctx, html, chartWidthPx, height, b.timeout)
	if err != nil {
		// 截图环境缺 Chrome 时报告降级为纯 HTML。
		return files, nil
	}
	pngPath := filepath.Join(b.outDir, input.RunID+".png")
	if err := os.WriteFile(pngPath, png, 0o644); err != nil {
		return files, err
	}
	files.PNGPath = pngPath
	return files, nil
}

func buildPageHTML(input Input) ([]byte, error) {
	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	page.AddCharts(buildEquityChart(input), buildTradesChart(input))

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func buildEquityChart(input Input) *charts.Line {
	line := charts.NewLine()
	title := strings.TrimSpace(input.Name)
	if title == "" {
		title = input.RunID
	}
	subtitle := fmt.Sprintf("return %.2f%% | max drawdown %.2f%% | sharpe %.2f | trades %d",
		input.Metrics.TotalReturn*100, input.Metrics.MaxDrawdown*100, input.Metrics.Sharpe, input.Metrics.Trades)
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", chartWidthPx),
			Height:          fmt.Sprintf("%dpx", equityHeightPx),
			BackgroundColor: colorBackground,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:         fmt.Sprintf("%s %s", title, strings.ToUpper(input.Symbol)),
			Subtitle:      subtitle,
			Left:          "left",
			Top:           "10",
			TitleStyle:    &opts.TextStyle{Color: colorTextPrimary, FontSize: 18},
			SubtitleStyle: &opts.TextStyle{Color: colorTextSecondary},
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), TextStyle: &opts.TextStyle{Color: colorTextPrimary}}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
		charts.WithXAxisOpts(opts.XAxis{
			Type:      "category",
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Scale:     opts.Bool(true),
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSecondary, Opacity: opts.Float(0.2)}},
		}),
	)
	xAxis := make([]string, len(input.Equity))
	equity := make([]opts.LineData, len(input.Equity))
	drawdown := make([]opts.LineData, len(input.Equity))
	for i, pt := range input.Equity {
		xAxis[i] = time.UnixMilli(pt.TS).UTC().Format("01-02 15:04")
		equity[i] = opts.LineData{Value: round(pt.Equity, 4)}
		drawdown[i] = opts.LineData{Value: round(-pt.Drawdown*100, 4)}
	}
	line.SetXAxis(xAxis)
	line.AddSeries("Equity", equity,
		charts.WithLineStyleOpts(opts.LineStyle{Color: colorEquity, Width: 2}),
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	line.AddSeries("Drawdown %", drawdown,
		charts.WithLineStyleOpts(opts.LineStyle{Color: colorDrawdown, Width: 1}),
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	return line
}

func buildTradesChart(input Input) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", chartWidthPx),
			Height:          fmt.Sprintf("%dpx", tradesHeightPx),
			BackgroundColor: colorBackground,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:      fmt.Sprintf("Trade PnL (win rate %.1f%%)", input.Metrics.WinRate*100),
			Left:       "left",
			TitleStyle: &opts.TextStyle{Color: colorTextPrimary},
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Color: colorTextSecondary}}),
		charts.WithYAxisOpts(opts.YAxis{
			AxisLabel: &opts.AxisLabel{Show: opts.Bool(true), Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSecondary, Opacity: opts.Float(0.15)}},
		}),
	)
	xAxis := make([]string, len(input.Trades))
	data := make([]opts.BarData, len(input.Trades))
	for i, tr := range input.Trades {
		xAxis[i] = time.UnixMilli(tr.ExitTS).UTC().Format("01-02 15:04")
		color := colorLoss
		if tr.PnL >= 0 {
			color = colorWin
		}
		data[i] = opts.BarData{
			Value:     round(tr.PnL, 4),
			ItemStyle: &opts.ItemStyle{Color: color, Opacity: opts.Float(0.8)},
		}
	}
	bar.SetXAxis(xAxis)
	bar.AddSeries("PnL", data)
	return bar
}

func round(val float64, decimals int) float64 {
	if decimals <= 0 {
		return math.Round(val)
	}
	scale := math.Pow10(decimals)
	return math.Round(val*scale) / scale
}
