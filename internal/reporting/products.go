package reporting

// ProductStat is the per-product aggregate shared by the sales and the
// satisfaction dashboards.
type ProductStat struct {
	ProductID      string
	AvgPrice       float64
	AvgDiscountPct float64
	AvgRating      Value
	AvgRatingCount Value
	Orders         int
	Sales          float64
}

// Products aggregates the frame per product_id in first-encounter order.
func (s *Scope) Products() []ProductStat {
	if s.products != nil {
		return s.products
	}

	groups := s.GroupBy("product", ByProduct).Groups()
	stats := make([]ProductStat, len(groups))
	for i, g := range groups {
		f := g.Frame()
		price, _ := f.Mean(SellingPrice)
		discount, _ := f.Mean(Discount)
		stat := ProductStat{
			ProductID:      g.Key,
			AvgPrice:       price,
			AvgDiscountPct: discount * 100,
			Orders:         f.Len(),
			Sales:          f.Sum(SellingPrice),
		}
		if r, ok := f.Mean(Rating); ok {
			stat.AvgRating = Num(r)
		}
		if rc, ok := f.Mean(RatingCount); ok {
			stat.AvgRatingCount = Num(rc)
		}
		stats[i] = stat
	}

	s.products = stats
	return stats
}

// RatedProducts keeps the products with a defined mean rating.
func (s *Scope) RatedProducts() []ProductStat {
	var rated []ProductStat
	for _, p := range s.Products() {
		if p.AvgRating.Valid {
			rated = append(rated, p)
		}
	}
	return rated
}

// ProductSales is total revenue per product.
func (s *Scope) ProductSales() []Agg {
	return s.GroupBy("product", ByProduct).Sum(SellingPrice)
}

// topPerCategory picks, per category, the product with the best aggregate
// and returns the winners sorted by that aggregate, highest first.
func topPerCategory(s *Scope, agg func(*Grouping) []Agg) []Row {
	categories := s.GroupBy("category", ByCategory).Groups()
	winners := make([]Agg, 0, len(categories))
	labels := make(map[string]string, len(categories))

	for _, c := range categories {
		best, ok := ArgMax(agg(c.Frame().GroupBy(ByProduct)))
		if !ok {
			continue
		}
		winners = append(winners, Agg{Key: c.Key, Value: best.Value, Defined: true})
		labels[c.Key] = best.Key
	}

	sorted := SortDesc(winners)
	rows := make([]Row, len(sorted))
	for i, w := range sorted {
		rows[i] = Row{Key: w.Key, Label: labels[w.Key], Values: []Value{Num(w.Value)}}
	}
	return rows
}
