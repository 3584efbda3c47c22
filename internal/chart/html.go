package chart

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// RenderHTML writes an interactive line chart of pts to w.
func RenderHTML(w io.Writer, title string, pts []Point) error {
	if len(pts) == 0 {
		return ErrNoPoints
	}

	x := make([]string, len(pts))
	dist := make([]opts.LineData, len(pts))
	p5 := make([]opts.LineData, len(pts))
	p95 := make([]opts.LineData, len(pts))
	for i, p := range pts {
		x[i] = fmt.Sprintf("%g", p.ActivationTime)
		dist[i] = opts.LineData{Value: p.Distance}
		p5[i] = opts.LineData{Value: p.P5}
		p95[i] = opts.LineData{Value: p.P95}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "960px", Height: "540px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("%d points, 5th-95th percentile band", len(pts))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Activation (min)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Range (m)", NameLocation: "middle", NameGap: 40}),
	)
	line.SetXAxis(x).
		AddSeries("distance", dist).
		AddSeries("p5", p5, charts.WithLineStyleOpts(opts.LineStyle{Type: "dashed"})).
		AddSeries("p95", p95, charts.WithLineStyleOpts(opts.LineStyle{Type: "dashed"}))

	if err := line.Render(w); err != nil {
		return fmt.Errorf("render error: %w", err)
	}
	return nil
}
