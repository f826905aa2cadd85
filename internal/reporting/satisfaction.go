package reporting

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"

	apperrors "retail-insights/internal/errors"
)

// Customer-satisfaction dashboard KPI and chart names.
const (
	KPIAverageRating       = "average_rating"
	KPIShareRatedFourPlus  = "share_rated_4_plus"
	KPITopRatedCategory    = "top_rated_category"
	KPITopRatedSubcategory = "top_rated_subcategory1"

	ChartProductRatings      = "product_ratings"
	ChartTopRatedProducts    = "top_rated_products"
	ChartCategoryRatings     = "category_ratings"
	ChartPriceVsRating       = "price_vs_rating"
	ChartDiscountVsRating    = "discount_vs_rating"
	ChartRatingCountVsRating = "rating_count_vs_rating"
	ChartRatingOrders        = "rating_orders"
)

const highRatingThreshold = 4.0

// SatisfactionDashboard covers ratings.
func SatisfactionDashboard() Dashboard {
	return Dashboard{
		Slug:  "satisfaction",
		Title: "Customer Satisfaction Analysis",
		KPIs: []KPISpec{
			Number(KPIAverageRating, "Average Rating", UnitRating, func(s *Scope) (float64, error) {
				return s.Mean(Rating, "average rating")
			}),
			Number(KPIShareRatedFourPlus, "Share of Products >= 4", UnitPercent, func(s *Scope) (float64, error) {
				rated := s.RatedProducts()
				high := 0
				for _, p := range rated {
					if p.AvgRating.Float >= highRatingThreshold {
						high++
					}
				}
				return Share(float64(high), float64(len(rated)), "share of products rated 4+")
			}),
			Text(KPITopRatedCategory, "High Rating Category", func(s *Scope) (string, error) {
				best, err := Best(s.GroupBy("category", ByCategory).Mean(Rating), "high rating category")
				return best.Key, err
			}),
			Text(KPITopRatedSubcategory, "High Rating Sub Category1", func(s *Scope) (string, error) {
				best, err := Best(s.GroupBy("sub_category1", BySubCategory1).Mean(Rating), "high rating sub category")
				return best.Key, err
			}),
		},
		Charts: []ChartSpec{
			{
				Name:  ChartProductRatings,
				Title: "Product Rating Summary",
				Kind:  ChartTable,
				Build: func(s *Scope) (Dataset, error) {
					if err := s.RequireRows("product ratings"); err != nil {
						return Dataset{}, err
					}
					products := s.Products()
					rows := make([]Row, len(products))
					for i, p := range products {
						rows[i] = Row{Key: p.ProductID, Values: []Value{
							Num(p.AvgPrice),
							Num(p.AvgDiscountPct),
							p.AvgRating,
							p.AvgRatingCount,
							Num(float64(p.Orders)),
							Num(p.Sales),
						}}
					}
					return Dataset{
						KeyColumn: "product_id",
						Columns:   []string{"avg_price", "avg_discount", "avg_rating", "avg_rating_count", "order_count", "sales"},
						Rows:      rows,
					}, nil
				},
			},
			{
				Name:  ChartTopRatedProducts,
				Title: "Top Rated Products",
				Kind:  ChartTable,
				Build: func(s *Scope) (Dataset, error) {
					ratings := make([]Agg, 0)
					for _, p := range s.RatedProducts() {
						ratings = append(ratings, Agg{Key: p.ProductID, Value: p.AvgRating.Float, Defined: true})
					}
					top := AllAtMax(ratings)
					if len(top) == 0 {
						return Dataset{}, fmt.Errorf("top rated products: %w", apperrors.ErrEmptySelection)
					}
					return Dataset{KeyColumn: "product_id", Columns: []string{"rating"}, Rows: rowsOf(top)}, nil
				},
			},
			{
				Name:  ChartCategoryRatings,
				Title: "Category Wise Average Rating",
				Kind:  ChartTable,
				Build: func(s *Scope) (Dataset, error) {
					means := Defined(s.GroupBy("category", ByCategory).Mean(Rating))
					return Dataset{KeyColumn: "category", Columns: []string{"avg_rating"}, Rows: rowsOf(SortDesc(means))}, nil
				},
			},
			{
				Name:  ChartPriceVsRating,
				Title: "Price vs Rating",
				Kind:  ChartScatter,
				Build: ratedScatter("Price", func(p ProductStat) (float64, bool) { return p.AvgPrice, true }),
			},
			{
				Name:  ChartDiscountVsRating,
				Title: "Discount vs Rating",
				Kind:  ChartScatter,
				Build: ratedScatter("Discount", func(p ProductStat) (float64, bool) { return p.AvgDiscountPct, true }),
			},
			{
				Name:  ChartRatingCountVsRating,
				Title: "Rating Count vs Rating",
				Kind:  ChartScatter,
				Build: ratedScatter("Rating Count", func(p ProductStat) (float64, bool) {
					return p.AvgRatingCount.Float, p.AvgRatingCount.Valid
				}),
			},
			{
				Name:  ChartRatingOrders,
				Title: "Rating vs Number of Orders",
				Kind:  ChartScatter,
				Build: func(s *Scope) (Dataset, error) {
					if err := s.RequireRows("rating orders"); err != nil {
						return Dataset{}, err
					}
					return s.scatter("Rating", "Number of Orders", ratingOrderPoints(s.Frame)), nil
				},
			},
		},
	}
}

// ratedScatter plots x against mean rating for every rated product.
func ratedScatter(xLabel string, x func(ProductStat) (float64, bool)) func(*Scope) (Dataset, error) {
	return func(s *Scope) (Dataset, error) {
		if err := s.RequireRows(xLabel + " vs rating"); err != nil {
			return Dataset{}, err
		}
		rated := s.RatedProducts()
		points := make([]Point, 0, len(rated))
		for _, p := range rated {
			xv, ok := x(p)
			if !ok {
				continue
			}
			points = append(points, Point{Key: p.ProductID, X: xv, Y: p.AvgRating.Float})
		}
		return s.scatter(xLabel, "Rating", points), nil
	}
}

// ratingOrderPoints counts orders per rating value; unrated rows are skipped
// and ratings without orders never appear.
func ratingOrderPoints(f *Frame) []Point {
	counts := make(map[float64]int)
	for _, o := range f.Rows() {
		if r, ok := Rating(o); ok {
			counts[r]++
		}
	}

	ratings := make([]float64, 0, len(counts))
	for r := range counts {
		ratings = append(ratings, r)
	}
	slices.SortFunc(ratings, cmp.Compare[float64])

	points := make([]Point, len(ratings))
	for i, r := range ratings {
		points[i] = Point{Key: strconv.FormatFloat(r, 'f', -1, 64), X: r, Y: float64(counts[r])}
	}
	return points
}
