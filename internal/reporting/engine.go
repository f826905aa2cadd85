package reporting

import (
	"encoding/json"
	"fmt"
	"strconv"

	apperrors "retail-insights/internal/errors"
	"retail-insights/internal/models"
)

// Unit tells the presentation layer how to format a KPI.
type Unit string

const (
	UnitCount     Unit = "count"
	UnitPercent   Unit = "percent"
	UnitCurrency  Unit = "currency"
	UnitMillions  Unit = "currency_millions"
	UnitThousands Unit = "currency_thousands"
	UnitRating    Unit = "rating"
	UnitText      Unit = "text"
)

// ChartKind is the chart a dataset is meant for.
type ChartKind string

const (
	ChartPie     ChartKind = "pie"
	ChartBar     ChartKind = "bar"
	ChartHBar    ChartKind = "hbar"
	ChartScatter ChartKind = "scatter"
	ChartTable   ChartKind = "table"
)

// KPIValue is one computed metric card.
type KPIValue struct {
	Name  string  `json:"name"`
	Label string  `json:"label"`
	Unit  Unit    `json:"unit"`
	Value float64 `json:"value"`
	Text  string  `json:"text,omitempty"`
}

// Value is a dataset cell. Valid is false for an aggregate with no input,
// such as the mean rating of a product nobody rated.
type Value struct {
	Float float64
	Valid bool
}

func Num(f float64) Value { return Value{Float: f, Valid: true} }

func Null() Value { return Value{} }

func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Valid {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, v.Float, 'g', -1, 64), nil
}

func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = Value{}
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*v = Num(f)
	return nil
}

// Row is one line of a tabular dataset.
type Row struct {
	Key    string  `json:"key"`
	Label  string  `json:"label,omitempty"`
	Values []Value `json:"values"`
}

// Dataset is a chart-ready table. Scatter datasets carry Points (and an
// optional Trend) instead of Rows.
type Dataset struct {
	Name        string    `json:"name"`
	Title       string    `json:"title"`
	Kind        ChartKind `json:"kind"`
	KeyColumn   string    `json:"key_column,omitempty"`
	LabelColumn string    `json:"label_column,omitempty"`
	Columns     []string  `json:"columns,omitempty"`
	Rows        []Row     `json:"rows,omitempty"`
	XLabel      string    `json:"x_label,omitempty"`
	YLabel      string    `json:"y_label,omitempty"`
	Points      []Point   `json:"points,omitempty"`
	Trend       *Trend    `json:"trend,omitempty"`
}

// Report is the full output of one dashboard run.
type Report struct {
	Slug     string     `json:"slug"`
	Title    string     `json:"title"`
	RowCount int        `json:"row_count"`
	KPIs     []KPIValue `json:"kpis"`
	Charts   []Dataset  `json:"charts"`
}

func (r *Report) KPI(name string) (KPIValue, bool) {
	for _, k := range r.KPIs {
		if k.Name == name {
			return k, true
		}
	}
	return KPIValue{}, false
}

func (r *Report) Chart(name string) (Dataset, bool) {
	for _, c := range r.Charts {
		if c.Name == name {
			return c, true
		}
	}
	return Dataset{}, false
}

// KPISpec declares one metric card of a dashboard.
type KPISpec struct {
	Name    string
	Label   string
	Unit    Unit
	compute func(*Scope) (KPIValue, error)
}

// Number declares a numeric KPI.
func Number(name, label string, unit Unit, fn func(*Scope) (float64, error)) KPISpec {
	return KPISpec{
		Name:  name,
		Label: label,
		Unit:  unit,
		compute: func(s *Scope) (KPIValue, error) {
			v, err := fn(s)
			if err != nil {
				return KPIValue{}, err
			}
			return KPIValue{Name: name, Label: label, Unit: unit, Value: v}, nil
		},
	}
}

// Text declares a KPI whose value is a label, such as a product id.
func Text(name, label string, fn func(*Scope) (string, error)) KPISpec {
	return KPISpec{
		Name:  name,
		Label: label,
		Unit:  UnitText,
		compute: func(s *Scope) (KPIValue, error) {
			v, err := fn(s)
			if err != nil {
				return KPIValue{}, err
			}
			return KPIValue{Name: name, Label: label, Unit: UnitText, Text: v}, nil
		},
	}
}

// ChartSpec declares one chart dataset of a dashboard. Build fills in Rows
// or Points; the engine stamps Name, Title and Kind.
type ChartSpec struct {
	Name  string
	Title string
	Kind  ChartKind
	Build func(*Scope) (Dataset, error)
}

// Dashboard is the declarative definition of one page.
type Dashboard struct {
	Slug   string
	Title  string
	KPIs   []KPISpec
	Charts []ChartSpec
}

// Scope is the per-run input handed to every spec. Groupings are memoised
// for the lifetime of a single run only.
type Scope struct {
	Frame *Frame
	Trend TrendEstimator

	groupings map[string]*Grouping
	products  []ProductStat
}

func newScope(rows []models.Order, trend TrendEstimator) *Scope {
	if trend == nil {
		trend = NoTrend{}
	}
	return &Scope{
		Frame:     NewFrame(rows),
		Trend:     trend,
		groupings: make(map[string]*Grouping),
	}
}

// GroupBy memoises Frame.GroupBy under name.
func (s *Scope) GroupBy(name string, key Field) *Grouping {
	if g, ok := s.groupings[name]; ok {
		return g
	}
	g := s.Frame.GroupBy(key)
	s.groupings[name] = g
	return g
}

// RequireRows fails with ErrEmptySelection when the frame is empty.
func (s *Scope) RequireRows(what string) error {
	if s.Frame.Len() == 0 {
		return fmt.Errorf("%s: %w", what, apperrors.ErrEmptySelection)
	}
	return nil
}

// Mean is Frame.Mean that fails on an undefined mean.
func (s *Scope) Mean(m Measure, what string) (float64, error) {
	v, ok := s.Frame.Mean(m)
	if !ok {
		return 0, fmt.Errorf("%s: %w", what, apperrors.ErrEmptySelection)
	}
	return v, nil
}

// Share returns part/whole*100 and fails on a zero denominator.
func Share(part, whole float64, what string) (float64, error) {
	if whole == 0 {
		return 0, fmt.Errorf("%s: %w", what, apperrors.ErrEmptySelection)
	}
	return part / whole * 100, nil
}

// Best returns the key of ArgMax(aggs) or ErrEmptySelection.
func Best(aggs []Agg, what string) (Agg, error) {
	a, ok := ArgMax(aggs)
	if !ok {
		return Agg{}, fmt.Errorf("%s: %w", what, apperrors.ErrEmptySelection)
	}
	return a, nil
}

// Engine runs dashboard definitions over filtered order sets.
type Engine struct {
	trend TrendEstimator
}

func NewEngine(trend TrendEstimator) *Engine {
	if trend == nil {
		trend = LinearOLS{}
	}
	return &Engine{trend: trend}
}

func (e *Engine) Trend() TrendEstimator {
	return e.trend
}

// Run computes every KPI and chart of d over rows. Any failing KPI or
// chart aborts the run and no partial report is returned.
func (e *Engine) Run(d Dashboard, rows []models.Order) (*Report, error) {
	scope := newScope(rows, e.trend)

	report := &Report{
		Slug:     d.Slug,
		Title:    d.Title,
		RowCount: len(rows),
		KPIs:     make([]KPIValue, 0, len(d.KPIs)),
		Charts:   make([]Dataset, 0, len(d.Charts)),
	}

	for _, spec := range d.KPIs {
		v, err := spec.compute(scope)
		if err != nil {
			return nil, fmt.Errorf("%s kpi %s: %w", d.Slug, spec.Name, err)
		}
		report.KPIs = append(report.KPIs, v)
	}

	for _, spec := range d.Charts {
		ds, err := spec.Build(scope)
		if err != nil {
			return nil, fmt.Errorf("%s chart %s: %w", d.Slug, spec.Name, err)
		}
		ds.Name, ds.Title, ds.Kind = spec.Name, spec.Title, spec.Kind
		report.Charts = append(report.Charts, ds)
	}

	return report, nil
}

// rowsOf converts aggregates into single-value rows.
func rowsOf(aggs []Agg) []Row {
	rows := make([]Row, len(aggs))
	for i, a := range aggs {
		v := Null()
		if a.Defined {
			v = Num(a.Value)
		}
		rows[i] = Row{Key: a.Key, Values: []Value{v}}
	}
	return rows
}

// scatter builds a scatter dataset and fits the scope's trend through it.
func (s *Scope) scatter(xLabel, yLabel string, points []Point) Dataset {
	return Dataset{
		XLabel: xLabel,
		YLabel: yLabel,
		Points: points,
		Trend:  s.Trend.Fit(points),
	}
}

// topNShares is the revenue share of the top n entries of sorted, one row per n.
func topNShares(sorted []Agg, total float64, ns []int, what string) ([]Row, error) {
	rows := make([]Row, 0, len(ns))
	for _, n := range ns {
		top := sorted
		if len(top) > n {
			top = top[:n]
		}
		share, err := Share(SumValues(top), total, what)
		if err != nil {
			return nil, err
		}
		rows = append(rows, Row{Key: fmt.Sprintf("Top %d", n), Values: []Value{Num(share)}})
	}
	return rows, nil
}
