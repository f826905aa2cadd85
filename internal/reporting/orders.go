package reporting

import (
	"cmp"
	"slices"
	"strconv"
)

// Orders dashboard KPI and chart names.
const (
	KPIUniqueProducts      = "unique_products"
	KPITotalOrders         = "total_orders"
	KPIAverageDiscount     = "average_discount"
	KPIAverageSellingPrice = "average_selling_price"
	KPIUniqueCategories    = "unique_categories"
	KPIUniqueSubcategories = "unique_subcategories"
	KPIHighestPriceProduct = "highest_price_product"

	ChartCategoryOrders        = "category_orders"
	ChartHighestPricedProducts = "highest_priced_products"
	ChartTopSubcategories      = "top_subcategories"
	ChartDiscountOrders        = "discount_orders"
)

const topSubcategoryCount = 5

// OrdersDashboard is the order-volume overview.
func OrdersDashboard() Dashboard {
	return Dashboard{
		Slug:  "orders",
		Title: "Amazon Orders Insights",
		KPIs: []KPISpec{
			Number(KPIUniqueProducts, "Unique Products", UnitCount, func(s *Scope) (float64, error) {
				return float64(s.Frame.NUnique(ByProduct)), nil
			}),
			Number(KPITotalOrders, "Total Orders", UnitCount, func(s *Scope) (float64, error) {
				return float64(s.Frame.Len()), nil
			}),
			Number(KPIAverageDiscount, "Average Discount", UnitPercent, func(s *Scope) (float64, error) {
				mean, err := s.Mean(Discount, "average discount")
				return mean * 100, err
			}),
			Number(KPIAverageSellingPrice, "Average Selling Price", UnitCurrency, func(s *Scope) (float64, error) {
				return s.Mean(SellingPrice, "average selling price")
			}),
			Number(KPIUniqueCategories, "Unique Categories", UnitCount, func(s *Scope) (float64, error) {
				return float64(s.Frame.NUnique(ByCategory)), nil
			}),
			Number(KPIUniqueSubcategories, "Unique Subcategories", UnitCount, func(s *Scope) (float64, error) {
				return float64(s.Frame.NUnique(BySubCategory1)), nil
			}),
			Text(KPIHighestPriceProduct, "Highest Price Product", highestPriceProduct),
		},
		Charts: []ChartSpec{
			{
				Name:  ChartCategoryOrders,
				Title: "Category Wise Order Frequency",
				Kind:  ChartPie,
				Build: func(s *Scope) (Dataset, error) {
					return Dataset{
						KeyColumn: "category",
						Columns:   []string{"order_count"},
						Rows:      rowsOf(s.GroupBy("category", ByCategory).Count()),
					}, nil
				},
			},
			{
				Name:  ChartHighestPricedProducts,
				Title: "Highest Priced Product per Category",
				Kind:  ChartBar,
				Build: func(s *Scope) (Dataset, error) {
					if err := s.RequireRows("highest priced products"); err != nil {
						return Dataset{}, err
					}
					return Dataset{
						KeyColumn:   "category",
						LabelColumn: "product_id",
						Columns:     []string{"selling_price"},
						Rows:        topPerCategory(s, func(g *Grouping) []Agg { return g.Mean(SellingPrice) }),
					}, nil
				},
			},
			{
				Name:  ChartTopSubcategories,
				Title: "Top 5 Subcategories by Order Frequency",
				Kind:  ChartHBar,
				Build: func(s *Scope) (Dataset, error) {
					if err := s.RequireRows("top subcategories"); err != nil {
						return Dataset{}, err
					}
					counts := s.GroupBy("sub_category1", BySubCategory1).Count()
					return Dataset{
						KeyColumn: "subcategory",
						Columns:   []string{"order_count"},
						Rows:      rowsOf(TopN(counts, topSubcategoryCount)),
					}, nil
				},
			},
			{
				Name:  ChartDiscountOrders,
				Title: "Discount vs Number of Orders",
				Kind:  ChartScatter,
				Build: func(s *Scope) (Dataset, error) {
					if err := s.RequireRows("discount orders"); err != nil {
						return Dataset{}, err
					}
					return s.scatter("Discount (%)", "Number of Orders", discountOrderPoints(s.Frame)), nil
				},
			},
		},
	}
}

func highestPriceProduct(s *Scope) (string, error) {
	if err := s.RequireRows("highest price product"); err != nil {
		return "", err
	}
	i, _ := s.Frame.ArgMaxRow(SellingPrice)
	return s.Frame.Rows()[i].ProductID, nil
}

// discountOrderPoints counts orders per exact discount value, ascending by
// discount, with the discount expressed as a percentage.
func discountOrderPoints(f *Frame) []Point {
	counts := make(map[float64]int)
	for _, o := range f.Rows() {
		counts[o.DiscountPercentage]++
	}

	discounts := make([]float64, 0, len(counts))
	for d := range counts {
		discounts = append(discounts, d)
	}
	slices.SortFunc(discounts, cmp.Compare[float64])

	points := make([]Point, len(discounts))
	for i, d := range discounts {
		pct := d * 100
		points[i] = Point{
			Key: strconv.FormatFloat(pct, 'f', -1, 64),
			X:   pct,
			Y:   float64(counts[d]),
		}
	}
	return points
}
