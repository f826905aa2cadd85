// Package charts renders report datasets as embeddable ECharts fragments.
package charts

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"retail-insights/internal/reporting"
)

const (
	styleTagLen   = len("</style>")
	pointSize     = 8
	labelFontSize = 11
	trendWidth    = 2
)

// Style holds chart dimensions and colors.
type Style struct {
	Width   string
	Height  string
	Palette []string
	Trend   string
}

func DefaultStyle() Style {
	return Style{
		Width:   "100%",
		Height:  "420px",
		Palette: []string{"#4e79a7", "#f28e2b", "#e15759", "#76b7b2", "#59a14f", "#edc948", "#b07aa1"},
		Trend:   "#e15759",
	}
}

// Renderer turns datasets into HTML fragments.
type Renderer struct {
	style Style
}

func NewRenderer(style Style) *Renderer {
	if len(style.Palette) == 0 {
		style = DefaultStyle()
	}
	return &Renderer{style: style}
}

type renderable interface {
	Render(w io.Writer) error
}

// Render returns the chart markup for ds. Table datasets have no chart and
// render as an empty fragment; the page draws them as HTML tables.
func (r *Renderer) Render(ds reporting.Dataset) (template.HTML, error) {
	var chart renderable

	switch ds.Kind {
	case reporting.ChartPie:
		chart = r.pie(ds)
	case reporting.ChartBar:
		chart = r.bar(ds, false)
	case reporting.ChartHBar:
		chart = r.bar(ds, true)
	case reporting.ChartScatter:
		chart = r.scatter(ds)
	case reporting.ChartTable:
		return "", nil
	default:
		return "", fmt.Errorf("unsupported chart kind %q", ds.Kind)
	}

	var buf bytes.Buffer
	if err := chart.Render(&buf); err != nil {
		return "", fmt.Errorf("rendering chart %s: %w", ds.Name, err)
	}

	return template.HTML(extractChartContent(buf.String())), nil
}

// ChartID is the DOM id of the chart element for a dataset name.
func ChartID(name string) string {
	return "chart-" + strings.ReplaceAll(name, "_", "-")
}

func (r *Renderer) init(ds reporting.Dataset) opts.Initialization {
	return opts.Initialization{
		ChartID: ChartID(ds.Name),
		Width:   r.style.Width,
		Height:  r.style.Height,
	}
}

func (r *Renderer) pie(ds reporting.Dataset) *charts.Pie {
	pie := charts.NewPie()
	pie.SetGlobalOptions(
		charts.WithInitializationOpts(r.init(ds)),
		charts.WithTitleOpts(opts.Title{Title: ds.Title, Left: "center"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "item"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Bottom: "0"}),
		charts.WithColorsOpts(opts.Colors(r.style.Palette)),
	)

	data := make([]opts.PieData, 0, len(ds.Rows))
	for _, row := range ds.Rows {
		v := firstValue(row)
		if !v.Valid {
			continue
		}
		data = append(data, opts.PieData{Name: row.Key, Value: v.Float})
	}

	pie.AddSeries(seriesName(ds), data).
		SetSeriesOptions(
			charts.WithLabelOpts(opts.Label{
				Show:      opts.Bool(true),
				Formatter: "{b}: {d}%",
			}),
			charts.WithPieChartOpts(opts.PieChart{Radius: []string{"35%", "65%"}}),
		)

	return pie
}

func (r *Renderer) bar(ds reporting.Dataset, horizontal bool) *charts.Bar {
	bar := charts.NewBar()

	category := ds.KeyColumn
	valueAxis := seriesName(ds)

	xAxis := opts.XAxis{Name: category, AxisLabel: &opts.AxisLabel{Interval: "0", Rotate: 20, FontSize: labelFontSize}}
	yAxis := opts.YAxis{Name: valueAxis}
	if horizontal {
		xAxis = opts.XAxis{Name: valueAxis}
		yAxis = opts.YAxis{Name: category, AxisLabel: &opts.AxisLabel{FontSize: labelFontSize}}
	}

	bar.SetGlobalOptions(
		charts.WithInitializationOpts(r.init(ds)),
		charts.WithTitleOpts(opts.Title{Title: ds.Title, Left: "center"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithGridOpts(opts.Grid{Left: "5%", Right: "5%", Top: "60", Bottom: "10%", ContainLabel: opts.Bool(true)}),
		charts.WithXAxisOpts(xAxis),
		charts.WithYAxisOpts(yAxis),
	)

	labels := make([]string, len(ds.Rows))
	data := make([]opts.BarData, len(ds.Rows))
	for i, row := range ds.Rows {
		labels[i] = row.Key
		data[i] = opts.BarData{Name: row.Label}
		if v := firstValue(row); v.Valid {
			data[i].Value = v.Float
		}
	}

	bar.SetXAxis(labels).AddSeries(valueAxis, data,
		charts.WithItemStyleOpts(opts.ItemStyle{Color: r.style.Palette[0]}),
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(ds.LabelColumn != ""), Position: "top", Formatter: "{b}"}),
	)

	if horizontal {
		bar.XYReversal()
	}

	return bar
}

func (r *Renderer) scatter(ds reporting.Dataset) *charts.Scatter {
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(r.init(ds)),
		charts.WithTitleOpts(opts.Title{Title: ds.Title, Left: "center"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "item"}),
		charts.WithXAxisOpts(opts.XAxis{Name: ds.XLabel, Type: "value", Scale: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: ds.YLabel, Type: "value", Scale: opts.Bool(true)}),
		charts.WithGridOpts(opts.Grid{Left: "5%", Right: "8%", Top: "60", Bottom: "8%", ContainLabel: opts.Bool(true)}),
	)

	data := make([]opts.ScatterData, len(ds.Points))
	for i, p := range ds.Points {
		data[i] = opts.ScatterData{Value: []any{p.X, p.Y, p.Key}, SymbolSize: pointSize}
	}

	scatter.AddSeries(ds.YLabel, data, charts.WithItemStyleOpts(opts.ItemStyle{Color: r.style.Palette[0], Opacity: opts.Float(0.7)}))

	if t := ds.Trend; t != nil {
		line := charts.NewLine()
		line.AddSeries("Trend", []opts.LineData{
			{Value: []any{t.X0, t.Y0}},
			{Value: []any{t.X1, t.Y1}},
		},
			charts.WithLineStyleOpts(opts.LineStyle{Color: r.style.Trend, Width: trendWidth}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: r.style.Trend}),
			charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
		)
		scatter.Overlap(line)
	}

	return scatter
}

func firstValue(row reporting.Row) reporting.Value {
	if len(row.Values) == 0 {
		return reporting.Null()
	}
	return row.Values[0]
}

func seriesName(ds reporting.Dataset) string {
	if len(ds.Columns) == 0 {
		return ds.Name
	}
	return ds.Columns[0]
}

// extractChartContent keeps the chart element and its script from a full
// go-echarts page.
func extractChartContent(html string) string {
	trimmed := strings.TrimSpace(html)
	if !strings.HasPrefix(trimmed, "<!DOCTYPE") && !strings.HasPrefix(trimmed, "<html") {
		return html
	}

	start := strings.Index(html, `<div class="container">`)
	if start == -1 {
		return html
	}

	end := strings.Index(html, `</body>`)
	if end == -1 {
		return html
	}

	content := html[start:end]
	content = strings.ReplaceAll(content, `class="container"`, `class="echart-box"`)

	return removeStyleTags(content)
}

func removeStyleTags(content string) string {
	for {
		i := strings.Index(content, `<style>`)
		if i == -1 {
			return content
		}

		j := strings.Index(content[i:], `</style>`)
		if j == -1 {
			return content
		}

		content = content[:i] + content[i+j+styleTagLen:]
	}
}
