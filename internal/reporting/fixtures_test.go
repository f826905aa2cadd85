package reporting

import "retail-insights/internal/models"

func ratingOf(v float64) *float64 { return &v }

func countOf(n int64) *int64 { return &n }

func order(user, product, category, sub string, price, discount float64, rating *float64, ratingCount *int64) models.Order {
	return models.Order{
		UserID:             user,
		ProductID:          product,
		Category:           category,
		SubCategory1:       sub,
		SubCategory2:       sub + " II",
		SubCategory3:       sub + " III",
		SellingPrice:       price,
		DiscountPercentage: discount,
		Rating:             rating,
		RatingCount:        ratingCount,
	}
}

// sampleOrders is a small table with repeat customers, an unrated product,
// a revenue tie between P1 and P2 and a single top-rated product.
func sampleOrders() []models.Order {
	return []models.Order{
		order("U1", "P1", "Electronics", "Phones", 100, 0.10, ratingOf(4), countOf(10)),
		order("U1", "P2", "Electronics", "Laptops", 200, 0.20, ratingOf(4), countOf(20)),
		order("U2", "P3", "Fashion", "Shoes", 50, 0.10, nil, nil),
		order("U3", "P1", "Electronics", "Phones", 100, 0.30, ratingOf(4), countOf(10)),
		order("U2", "P4", "Fashion", "Shirts", 30, 0.50, ratingOf(3), countOf(5)),
		order("U4", "P5", "Home", "Kitchen", 20, 0.00, ratingOf(5), countOf(1)),
	}
}
