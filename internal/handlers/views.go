package handlers

import (
	"fmt"

	"retail-insights/internal/charts"
	"retail-insights/internal/reporting"
	"retail-insights/internal/ui/templates"
)

// chartViews renders the chart markup of every dataset in report.
func chartViews(renderer *charts.Renderer, report *reporting.Report) ([]templates.ChartView, error) {
	if report == nil {
		return nil, nil
	}

	views := make([]templates.ChartView, 0, len(report.Charts))
	for _, ds := range report.Charts {
		html, err := renderer.Render(ds)
		if err != nil {
			return nil, fmt.Errorf("chart %s: %w", ds.Name, err)
		}
		views = append(views, templates.ChartView{Dataset: ds, HTML: html})
	}
	return views, nil
}
