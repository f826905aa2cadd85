package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"retail-insights/internal/models"
	"retail-insights/internal/reporting"
)

func testReport() *reporting.Report {
	return &reporting.Report{
		Slug:     "sales",
		Title:    "Sales",
		RowCount: 3,
		KPIs: []reporting.KPIValue{
			{Name: "total_sales", Label: "Total Sales", Unit: reporting.UnitMillions, Value: 1.5},
			{Name: "top_product", Label: "Top Selling Product", Unit: reporting.UnitText, Text: "P1"},
		},
		Charts: []reporting.Dataset{
			{
				Name: "category_top_product", Kind: reporting.ChartBar,
				KeyColumn: "category", LabelColumn: "product_id", Columns: []string{"sale_amount"},
				Rows: []reporting.Row{{Key: "Electronics", Label: "P1", Values: []reporting.Value{reporting.Num(200)}}},
			},
			{
				Name: "product_ratings", Kind: reporting.ChartTable,
				KeyColumn: "product_id", Columns: []string{"avg_rating", "sales"},
				Rows: []reporting.Row{{Key: "P3", Values: []reporting.Value{reporting.Null(), reporting.Num(50)}}},
			},
			{
				Name: "price_vs_sales", Kind: reporting.ChartScatter, XLabel: "Price", YLabel: "Sales",
				Points: []reporting.Point{{Key: "P1", X: 100, Y: 200}, {Key: "P2", X: 50, Y: 75}},
				Trend:  &reporting.Trend{Method: "ols", Intercept: -50, Slope: 2.5},
			},
		},
	}
}

func readBack(t *testing.T, report *reporting.Report, sel models.Selection) *excelize.File {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, report, sel))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestWrite_Sheets(t *testing.T) {
	f := readBack(t, testReport(), models.Selection{Categories: []string{"Electronics"}})

	assert.Equal(t,
		[]string{"KPIs", "Filters", "category_top_product", "product_ratings", "price_vs_sales"},
		f.GetSheetList())
}

func TestWrite_KPIs(t *testing.T) {
	f := readBack(t, testReport(), models.Selection{})

	rows, err := f.GetRows(kpiSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"kpi", "label", "unit", "value"}, rows[0])
	assert.Equal(t, []string{"total_sales", "Total Sales", "currency_millions", "1.5"}, rows[1])
	assert.Equal(t, []string{"top_product", "Top Selling Product", "text", "P1"}, rows[2])
}

func TestWrite_Filters(t *testing.T) {
	f := readBack(t, testReport(), models.Selection{
		Categories:    []string{"Electronics", "Home"},
		SubCategories: []string{"Phones"},
	})

	cats, err := f.GetCellValue(filterSheet, "B3")
	require.NoError(t, err)
	assert.Equal(t, "Electronics, Home", cats)

	subs, err := f.GetCellValue(filterSheet, "B4")
	require.NoError(t, err)
	assert.Equal(t, "Phones", subs)
}

func TestWrite_DatasetSheets(t *testing.T) {
	f := readBack(t, testReport(), models.Selection{})

	bars, err := f.GetRows("category_top_product")
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"category", "product_id", "sale_amount"},
		{"Electronics", "P1", "200"},
	}, bars)

	missing, err := f.GetCellValue("product_ratings", "B2")
	require.NoError(t, err)
	assert.Empty(t, missing, "undefined aggregates stay blank")

	points, err := f.GetRows("price_vs_sales")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(points), 3)
	assert.Equal(t, []string{"key", "Price", "Sales"}, points[0])
	assert.Equal(t, []string{"P1", "100", "200"}, points[1])

	method, err := f.GetCellValue("price_vs_sales", "A6")
	require.NoError(t, err)
	assert.Equal(t, "ols", method)
}

func TestSheetName(t *testing.T) {
	assert.Equal(t, "short", sheetName("short"))
	assert.Len(t, sheetName("a_very_long_dataset_name_that_overflows"), maxSheetName)
}
