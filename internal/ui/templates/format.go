package templates

import (
	"math"

	"github.com/dustin/go-humanize"

	"retail-insights/internal/reporting"
)

const (
	twoDecimals = "#,###.##"
	missing     = "–"
)

// FormatKPI renders a metric card value with its unit.
func FormatKPI(k reporting.KPIValue) string {
	switch k.Unit {
	case reporting.UnitText:
		return k.Text
	case reporting.UnitCount:
		return humanize.Comma(int64(math.Round(k.Value)))
	case reporting.UnitPercent:
		return humanize.FormatFloat(twoDecimals, k.Value) + "%"
	case reporting.UnitCurrency:
		return "$" + humanize.FormatFloat(twoDecimals, k.Value)
	case reporting.UnitMillions:
		return "$" + humanize.FormatFloat(twoDecimals, k.Value) + "M"
	case reporting.UnitThousands:
		return "$" + humanize.FormatFloat(twoDecimals, k.Value) + "K"
	case reporting.UnitRating:
		return humanize.FormatFloat(twoDecimals, k.Value)
	default:
		return humanize.FormatFloat(twoDecimals, k.Value)
	}
}

// FormatCell renders one table cell; undefined aggregates show a dash.
func FormatCell(v reporting.Value) string {
	if !v.Valid {
		return missing
	}
	return humanize.FormatFloat(twoDecimals, v.Float)
}
