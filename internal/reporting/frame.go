// Package reporting holds the filter engine and the aggregation pipelines
// behind every dashboard. Everything here is a pure function of the filtered
// order set: no I/O, no caching across calls.
package reporting

import (
	"cmp"
	"slices"

	"retail-insights/internal/models"
)

// Field extracts a grouping key from an order.
type Field func(models.Order) string

// Measure extracts a numeric value from an order. ok is false for nulls,
// which every aggregate skips.
type Measure func(models.Order) (value float64, ok bool)

var (
	ByUser         Field = func(o models.Order) string { return o.UserID }
	ByProduct      Field = func(o models.Order) string { return o.ProductID }
	ByCategory     Field = func(o models.Order) string { return o.Category }
	BySubCategory1 Field = func(o models.Order) string { return o.SubCategory1 }
	BySubCategory2 Field = func(o models.Order) string { return o.SubCategory2 }
	BySubCategory3 Field = func(o models.Order) string { return o.SubCategory3 }
)

var (
	SellingPrice Measure = func(o models.Order) (float64, bool) { return o.SellingPrice, true }
	Discount     Measure = func(o models.Order) (float64, bool) { return o.DiscountPercentage, true }
	Rating       Measure = func(o models.Order) (float64, bool) {
		if o.Rating == nil {
			return 0, false
		}
		return *o.Rating, true
	}
	RatingCount Measure = func(o models.Order) (float64, bool) {
		if o.RatingCount == nil {
			return 0, false
		}
		return float64(*o.RatingCount), true
	}
)

// Frame is a read-only view over a filtered order set.
type Frame struct {
	rows []models.Order
}

func NewFrame(rows []models.Order) *Frame {
	return &Frame{rows: rows}
}

func (f *Frame) Len() int {
	return len(f.rows)
}

func (f *Frame) Rows() []models.Order {
	return f.rows
}

// Sum adds every non-null value of m.
func (f *Frame) Sum(m Measure) float64 {
	total := 0.0
	for _, o := range f.rows {
		if v, ok := m(o); ok {
			total += v
		}
	}
	return total
}

// Mean averages the non-null values of m. ok is false when there are none.
func (f *Frame) Mean(m Measure) (mean float64, ok bool) {
	total, n := 0.0, 0
	for _, o := range f.rows {
		if v, valid := m(o); valid {
			total += v
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return total / float64(n), true
}

// NUnique counts the distinct values of key.
func (f *Frame) NUnique(key Field) int {
	seen := make(map[string]struct{})
	for _, o := range f.rows {
		seen[key(o)] = struct{}{}
	}
	return len(seen)
}

// ArgMaxRow returns the index of the first row holding the maximum of m.
func (f *Frame) ArgMaxRow(m Measure) (int, bool) {
	best, found := -1, false
	bestVal := 0.0
	for i, o := range f.rows {
		v, ok := m(o)
		if !ok {
			continue
		}
		if !found || v > bestVal {
			best, bestVal, found = i, v, true
		}
	}
	return best, found
}

// Group is the rows sharing one key, in first-encounter order.
type Group struct {
	Key  string
	rows []models.Order
}

func (g Group) Frame() *Frame {
	return NewFrame(g.rows)
}

func (g Group) Len() int {
	return len(g.rows)
}

// Grouping is the result of GroupBy. Groups keep the order in which their
// key was first seen, so "first-encountered" tie-breaks follow row order.
type Grouping struct {
	groups []Group
}

func (f *Frame) GroupBy(key Field) *Grouping {
	index := make(map[string]int)
	groups := make([]Group, 0)

	for _, o := range f.rows {
		k := key(o)
		i, exists := index[k]
		if !exists {
			i = len(groups)
			index[k] = i
			groups = append(groups, Group{Key: k})
		}
		groups[i].rows = append(groups[i].rows, o)
	}

	return &Grouping{groups: groups}
}

func (g *Grouping) Groups() []Group {
	return g.groups
}

func (g *Grouping) Len() int {
	return len(g.groups)
}

// Agg is one aggregated value per group key. Defined is false when the group
// had no non-null input (the mean of nothing).
type Agg struct {
	Key     string
	Value   float64
	Defined bool
}

func (g *Grouping) aggregate(fn func(*Frame) (float64, bool)) []Agg {
	out := make([]Agg, len(g.groups))
	for i, grp := range g.groups {
		v, ok := fn(grp.Frame())
		out[i] = Agg{Key: grp.Key, Value: v, Defined: ok}
	}
	return out
}

func (g *Grouping) Count() []Agg {
	return g.aggregate(func(f *Frame) (float64, bool) { return float64(f.Len()), true })
}

func (g *Grouping) Sum(m Measure) []Agg {
	return g.aggregate(func(f *Frame) (float64, bool) { return f.Sum(m), true })
}

func (g *Grouping) Mean(m Measure) []Agg {
	return g.aggregate(func(f *Frame) (float64, bool) { return f.Mean(m) })
}

func (g *Grouping) NUnique(key Field) []Agg {
	return g.aggregate(func(f *Frame) (float64, bool) { return float64(f.NUnique(key)), true })
}

// ArgMax returns the first defined aggregate holding the maximum value.
func ArgMax(aggs []Agg) (Agg, bool) {
	var best Agg
	found := false
	for _, a := range aggs {
		if !a.Defined {
			continue
		}
		if !found || a.Value > best.Value {
			best, found = a, true
		}
	}
	return best, found
}

// AllAtMax returns every defined aggregate equal to the maximum, in order.
func AllAtMax(aggs []Agg) []Agg {
	best, ok := ArgMax(aggs)
	if !ok {
		return nil
	}
	var out []Agg
	for _, a := range aggs {
		if a.Defined && a.Value == best.Value {
			out = append(out, a)
		}
	}
	return out
}

// Defined drops aggregates without a value.
func Defined(aggs []Agg) []Agg {
	out := make([]Agg, 0, len(aggs))
	for _, a := range aggs {
		if a.Defined {
			out = append(out, a)
		}
	}
	return out
}

// SortDesc returns a copy sorted by value, highest first. Equal values keep
// their relative order.
func SortDesc(aggs []Agg) []Agg {
	out := slices.Clone(aggs)
	slices.SortStableFunc(out, func(a, b Agg) int {
		return cmp.Compare(b.Value, a.Value)
	})
	return out
}

// TopN is SortDesc limited to n entries.
func TopN(aggs []Agg, n int) []Agg {
	sorted := SortDesc(aggs)
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// SumValues adds the values of aggs.
func SumValues(aggs []Agg) float64 {
	total := 0.0
	for _, a := range aggs {
		total += a.Value
	}
	return total
}
