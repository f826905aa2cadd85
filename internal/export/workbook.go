// Package export writes dashboard reports as Excel workbooks.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"retail-insights/internal/models"
	"retail-insights/internal/reporting"
)

const (
	kpiSheet       = "KPIs"
	filterSheet    = "Filters"
	maxSheetName   = 31
	headerRow      = 1
	firstDataRow   = 2
	headerFontBold = true
)

// ContentType is the MIME type of a workbook written by Write.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Workbook builds one sheet of KPIs, one sheet describing the selection and
// one sheet per chart dataset.
func Workbook(report *reporting.Report, sel models.Selection) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", kpiSheet); err != nil {
		return nil, fmt.Errorf("rename default sheet: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: headerFontBold}})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	w := &sheetWriter{f: f, header: header}

	w.row(kpiSheet, headerRow, true, "kpi", "label", "unit", "value")
	for i, k := range report.KPIs {
		var value any = k.Value
		if k.Unit == reporting.UnitText {
			value = k.Text
		}
		w.row(kpiSheet, firstDataRow+i, false, k.Name, k.Label, string(k.Unit), value)
	}

	if _, err := f.NewSheet(filterSheet); err != nil {
		return nil, fmt.Errorf("create filter sheet: %w", err)
	}
	w.row(filterSheet, headerRow, true, "dashboard", report.Title)
	w.row(filterSheet, 2, false, "orders", report.RowCount)
	w.row(filterSheet, 3, false, "categories", strings.Join(sel.Categories, ", "))
	w.row(filterSheet, 4, false, "sub_categories", strings.Join(sel.SubCategories, ", "))

	for _, ds := range report.Charts {
		name := sheetName(ds.Name)
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", name, err)
		}
		if ds.Kind == reporting.ChartScatter {
			w.points(name, ds)
		} else {
			w.rows(name, ds)
		}
	}

	if w.err != nil {
		f.Close()
		return nil, w.err
	}

	return f, nil
}

// Write streams the workbook for report to out.
func Write(out io.Writer, report *reporting.Report, sel models.Selection) error {
	f, err := Workbook(report, sel)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(out); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// sheetWriter keeps the first cell error so callers can write rows
// unconditionally.
type sheetWriter struct {
	f      *excelize.File
	header int
	err    error
}

func (w *sheetWriter) row(sheet string, n int, header bool, values ...any) {
	if w.err != nil {
		return
	}

	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		w.err = err
		return
	}

	if err := w.f.SetSheetRow(sheet, cell, &values); err != nil {
		w.err = fmt.Errorf("write %s row %d: %w", sheet, n, err)
		return
	}

	if header {
		last, err := excelize.CoordinatesToCellName(len(values), n)
		if err != nil {
			w.err = err
			return
		}
		if err := w.f.SetCellStyle(sheet, cell, last, w.header); err != nil {
			w.err = fmt.Errorf("style %s header: %w", sheet, err)
		}
	}
}

func (w *sheetWriter) rows(sheet string, ds reporting.Dataset) {
	header := []any{ds.KeyColumn}
	if ds.LabelColumn != "" {
		header = append(header, ds.LabelColumn)
	}
	for _, c := range ds.Columns {
		header = append(header, c)
	}
	w.row(sheet, headerRow, true, header...)

	for i, r := range ds.Rows {
		values := []any{r.Key}
		if ds.LabelColumn != "" {
			values = append(values, r.Label)
		}
		for _, v := range r.Values {
			values = append(values, cellValue(v))
		}
		w.row(sheet, firstDataRow+i, false, values...)
	}
}

func (w *sheetWriter) points(sheet string, ds reporting.Dataset) {
	w.row(sheet, headerRow, true, "key", ds.XLabel, ds.YLabel)
	for i, p := range ds.Points {
		w.row(sheet, firstDataRow+i, false, p.Key, p.X, p.Y)
	}

	if t := ds.Trend; t != nil {
		n := firstDataRow + len(ds.Points) + 1
		w.row(sheet, n, true, "trend", "intercept", "slope")
		w.row(sheet, n+1, false, t.Method, t.Intercept, t.Slope)
	}
}

// cellValue leaves undefined aggregates as empty cells.
func cellValue(v reporting.Value) any {
	if !v.Valid {
		return nil
	}
	return v.Float
}

func sheetName(name string) string {
	if len(name) > maxSheetName {
		return name[:maxSheetName]
	}
	return name
}
