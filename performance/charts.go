package performance

import (
	"fmt"
	"io"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// MaxMixBars caps the instruction mix chart.
const MaxMixBars = 40

// WriteHTML renders the report as a chart page to path.
func WriteHTML(r *Report, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := RenderHTML(r, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// RenderHTML writes the chart page to w.
func RenderHTML(r *Report, w io.Writer) error {
	page := components.NewPage()
	page.PageTitle = "clustersim " + r.Binary
	page.AddCharts(mixChart(r), hartChart(r), phaseChart(r))
	return page.Render(w)
}

func newBar(title, subtitle string) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
	)
	return bar
}

func mixChart(r *Report) *charts.Bar {
	mix := r.Mix()
	if len(mix) > MaxMixBars {
		mix = mix[:MaxMixBars]
	}
	names := make([]string, len(mix))
	data := make([]opts.BarData, len(mix))
	for i, m := range mix {
		names[i] = m.Mnemonic
		data[i] = opts.BarData{Value: m.Count}
	}
	bar := newBar("Static instruction mix", fmt.Sprintf("%d clusters", len(r.Clusters)))
	bar.SetGlobalOptions(charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Rotate: 60, Interval: "0"}}))
	bar.SetXAxis(names).AddSeries("instructions", data)
	return bar
}

func hartChart(r *Report) *charts.Bar {
	names := make([]string, len(r.Harts))
	instret := make([]opts.BarData, len(r.Harts))
	cycles := make([]opts.BarData, len(r.Harts))
	for i, h := range r.Harts {
		names[i] = fmt.Sprintf("hart %d", h.ID)
		instret[i] = opts.BarData{Value: h.Instret}
		cycles[i] = opts.BarData{Value: h.Cycle}
	}
	bar := newBar("Harts", fmt.Sprintf("%d retired, %.2f MIPS", r.Retired, r.MIPS()))
	bar.SetXAxis(names).
		AddSeries("instret", instret).
		AddSeries("cycle", cycles)
	return bar
}

func phaseChart(r *Report) *charts.Bar {
	names := make([]string, len(r.Clusters))
	tr := make([]opts.BarData, len(r.Clusters))
	op := make([]opts.BarData, len(r.Clusters))
	jt := make([]opts.BarData, len(r.Clusters))
	for i, c := range r.Clusters {
		names[i] = fmt.Sprintf("cluster %d", c.Cluster)
		tr[i] = opts.BarData{Value: c.TranslateTime.Microseconds()}
		op[i] = opts.BarData{Value: c.OptimizeTime.Microseconds()}
		jt[i] = opts.BarData{Value: c.JITTime.Microseconds()}
	}
	bar := newBar("Compile phases (us)", fmt.Sprintf("run %v", r.RunTime))
	bar.SetXAxis(names).
		AddSeries("translate", tr).
		AddSeries("optimize", op).
		AddSeries("jit", jt).
		SetSeriesOptions(charts.WithBarChartOpts(opts.BarChart{Stack: "phases"}))
	return bar
}
