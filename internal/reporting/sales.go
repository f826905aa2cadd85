package reporting

// Sales-performance dashboard KPI and chart names.
const (
	KPITotalSales          = "total_sales"
	KPIAverageOrderValue   = "average_order_value"
	KPITopProduct          = "top_product"
	KPITopFiveProductShare = "top5_product_share"
	KPITopCategory         = "top_category"
	KPITopSubcategory1     = "top_subcategory1"
	KPITopSubcategory2     = "top_subcategory2"
	KPITopSubcategory3     = "top_subcategory3"

	ChartTopProducts       = "top_products"
	ChartTopNProductShare  = "top_n_product_share"
	ChartCategoryTopSeller = "category_top_product"
	ChartPriceVsSales      = "price_vs_sales"
	ChartDiscountVsSales   = "discount_vs_sales"
	ChartRatingVsSales     = "rating_vs_sales"
)

var productShareTiers = []int{20, 50, 100}

// SalesDashboard covers product sales performance.
func SalesDashboard() Dashboard {
	return Dashboard{
		Slug:  "sales",
		Title: "Product Sales Analysis and Performance Metrics",
		KPIs: []KPISpec{
			Number(KPITotalSales, "Total Sales", UnitMillions, func(s *Scope) (float64, error) {
				return s.Frame.Sum(SellingPrice) / 1e6, nil
			}),
			Number(KPIAverageOrderValue, "Average Order Value", UnitCurrency, func(s *Scope) (float64, error) {
				return s.Mean(SellingPrice, "average order value")
			}),
			Text(KPITopProduct, "Top Selling Product", func(s *Scope) (string, error) {
				best, err := Best(s.ProductSales(), "top selling product")
				return best.Key, err
			}),
			Number(KPITopFiveProductShare, "Top 5 Products Sale Share", UnitPercent, func(s *Scope) (float64, error) {
				return Share(SumValues(TopN(s.ProductSales(), 5)), s.Frame.Sum(SellingPrice), "top 5 product share")
			}),
			Text(KPITopCategory, "Top Selling Category", topSellerBy("category", ByCategory)),
			Text(KPITopSubcategory1, "Top Selling Sub Category1", topSellerBy("sub_category1", BySubCategory1)),
			Text(KPITopSubcategory2, "Top Selling Sub Category2", topSellerBy("sub_category2", BySubCategory2)),
			Text(KPITopSubcategory3, "Top Selling Sub Category3", topSellerBy("sub_category3", BySubCategory3)),
		},
		Charts: []ChartSpec{
			{
				Name:  ChartTopProducts,
				Title: "Top 5 Products by Sale Amount",
				Kind:  ChartBar,
				Build: func(s *Scope) (Dataset, error) {
					if err := s.RequireRows("top products"); err != nil {
						return Dataset{}, err
					}
					return Dataset{
						KeyColumn: "product_id",
						Columns:   []string{"sales"},
						Rows:      rowsOf(TopN(s.ProductSales(), 5)),
					}, nil
				},
			},
			{
				Name:  ChartTopNProductShare,
				Title: "Sales Share by Top N Products",
				Kind:  ChartPie,
				Build: func(s *Scope) (Dataset, error) {
					rows, err := topNShares(SortDesc(s.ProductSales()), s.Frame.Sum(SellingPrice), productShareTiers, "top N product share")
					if err != nil {
						return Dataset{}, err
					}
					return Dataset{KeyColumn: "tier", Columns: []string{"sales_share"}, Rows: rows}, nil
				},
			},
			{
				Name:  ChartCategoryTopSeller,
				Title: "Category Wise Top Selling Product",
				Kind:  ChartBar,
				Build: func(s *Scope) (Dataset, error) {
					if err := s.RequireRows("category top product"); err != nil {
						return Dataset{}, err
					}
					return Dataset{
						KeyColumn:   "category",
						LabelColumn: "product_id",
						Columns:     []string{"sale_amount"},
						Rows:        topPerCategory(s, func(g *Grouping) []Agg { return g.Sum(SellingPrice) }),
					}, nil
				},
			},
			{
				Name:  ChartPriceVsSales,
				Title: "Price vs Sales",
				Kind:  ChartScatter,
				Build: productScatter("Price", "Sales", func(p ProductStat) (float64, float64, bool) {
					return p.AvgPrice, p.Sales, true
				}),
			},
			{
				Name:  ChartDiscountVsSales,
				Title: "Discount vs Sales",
				Kind:  ChartScatter,
				Build: productScatter("Discount", "Sales", func(p ProductStat) (float64, float64, bool) {
					return p.AvgDiscountPct, p.Sales, true
				}),
			},
			{
				Name:  ChartRatingVsSales,
				Title: "Rating vs Sales",
				Kind:  ChartScatter,
				Build: productScatter("Rating", "Sales", func(p ProductStat) (float64, float64, bool) {
					return p.AvgRating.Float, p.Sales, p.AvgRating.Valid
				}),
			},
		},
	}
}

// topSellerBy names the group of key with the highest total revenue.
func topSellerBy(name string, key Field) func(*Scope) (string, error) {
	return func(s *Scope) (string, error) {
		best, err := Best(s.GroupBy(name, key).Sum(SellingPrice), "top selling "+name)
		return best.Key, err
	}
}

// productScatter plots one point per product for which xy reports ok.
func productScatter(xLabel, yLabel string, xy func(ProductStat) (x, y float64, ok bool)) func(*Scope) (Dataset, error) {
	return func(s *Scope) (Dataset, error) {
		if err := s.RequireRows(xLabel + " vs " + yLabel); err != nil {
			return Dataset{}, err
		}
		products := s.Products()
		points := make([]Point, 0, len(products))
		for _, p := range products {
			x, y, ok := xy(p)
			if !ok {
				continue
			}
			points = append(points, Point{Key: p.ProductID, X: x, Y: y})
		}
		return s.scatter(xLabel, yLabel, points), nil
	}
}
