package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"retail-insights/internal/export"
	"retail-insights/internal/models"
	"retail-insights/internal/reporting"
	"retail-insights/internal/services"
	"retail-insights/internal/store"
	"retail-insights/internal/ui/templates"
)

const loadTimeout = 2 * time.Minute

func newReportCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report <dashboard>",
		Short: "Render one dashboard as tables",
		Long: `Load the order table from the configured source, apply the category
filters and print the KPIs and every chart dataset of a dashboard.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), loadTimeout)
			defer cancel()

			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}

			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))
			stack, err := store.Open(cfg, logger, nil)
			if err != nil {
				return err
			}
			defer stack.Close()

			engine := reporting.NewEngine(reporting.TrendByName(cfg.Reporting.TrendMethod))
			analytics := services.NewAnalytics(stack.Source, engine, 0, logger, nil)

			result, err := analytics.Render(ctx, args[0], selectionFromFlags(cmd))
			if err != nil {
				return fmt.Errorf("render %s: %w", args[0], err)
			}

			if out := v.GetString("output"); out != "" {
				return writeWorkbook(out, result)
			}

			printer := newReportPrinter(cmd.OutOrStdout(), v.GetBool("no-color"))
			printer.print(result)
			return nil
		},
	}

	cmd.Flags().StringSlice("category", nil, "categories to include (repeatable, default all)")
	cmd.Flags().StringSlice("subcategory", nil, "sub-categories to include (repeatable, default all)")
	cmd.Flags().StringP("output", "o", "", "write an Excel workbook instead of printing")
	return cmd
}

// selectionFromFlags leaves a filter nil, meaning everything, unless its
// flag was given.
func selectionFromFlags(cmd *cobra.Command) models.Selection {
	var sel models.Selection
	if cmd.Flags().Changed("category") {
		sel.Categories, _ = cmd.Flags().GetStringSlice("category")
	}
	if cmd.Flags().Changed("subcategory") {
		sel.SubCategories, _ = cmd.Flags().GetStringSlice("subcategory")
	}
	return sel
}

func writeWorkbook(path string, result *services.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create workbook: %w", err)
	}
	if err := export.Write(f, result.Report, result.Selection); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

type reportPrinter struct {
	out     io.Writer
	heading *color.Color
	muted   *color.Color
}

func newReportPrinter(out io.Writer, noColor bool) *reportPrinter {
	p := &reportPrinter{
		out:     out,
		heading: color.New(color.FgCyan, color.Bold),
		muted:   color.New(color.Faint),
	}
	if noColor {
		p.heading.DisableColor()
		p.muted.DisableColor()
	}
	return p
}

func (p *reportPrinter) print(result *services.Result) {
	report := result.Report

	p.heading.Fprintln(p.out, report.Title)
	p.muted.Fprintf(p.out, "%s orders, categories: %v, sub-categories: %d selected, %s\n\n",
		humanize.Comma(int64(report.RowCount)),
		result.Selection.Categories,
		len(result.Selection.SubCategories),
		result.Elapsed.Round(time.Microsecond),
	)

	kpis := p.table()
	kpis.AppendHeader(table.Row{"KPI", "Value"})
	for _, k := range report.KPIs {
		kpis.AppendRow(table.Row{k.Label, templates.FormatKPI(k)})
	}
	kpis.Render()

	for _, ds := range report.Charts {
		fmt.Fprintln(p.out)
		p.heading.Fprintln(p.out, ds.Title)
		if len(ds.Points) > 0 {
			p.points(ds)
			continue
		}
		p.rows(ds)
	}
}

func (p *reportPrinter) rows(ds reporting.Dataset) {
	t := p.table()

	header := table.Row{ds.KeyColumn}
	if ds.LabelColumn != "" {
		header = append(header, ds.LabelColumn)
	}
	for _, c := range ds.Columns {
		header = append(header, c)
	}
	t.AppendHeader(header)

	for _, r := range ds.Rows {
		row := table.Row{r.Key}
		if ds.LabelColumn != "" {
			row = append(row, r.Label)
		}
		for _, v := range r.Values {
			row = append(row, templates.FormatCell(v))
		}
		t.AppendRow(row)
	}
	t.Render()
}

func (p *reportPrinter) points(ds reporting.Dataset) {
	t := p.table()
	t.AppendHeader(table.Row{"key", ds.XLabel, ds.YLabel})
	for _, pt := range ds.Points {
		t.AppendRow(table.Row{pt.Key, humanize.FormatFloat("#,###.##", pt.X), humanize.FormatFloat("#,###.##", pt.Y)})
	}
	if ds.Trend != nil {
		t.AppendFooter(table.Row{"trend (" + ds.Trend.Method + ")",
			"intercept " + humanize.FormatFloat("#,###.####", ds.Trend.Intercept),
			"slope " + humanize.FormatFloat("#,###.####", ds.Trend.Slope)})
	}
	t.Render()
}

func (p *reportPrinter) table() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(p.out)
	t.SetStyle(table.StyleLight)
	return t
}
