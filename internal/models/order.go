package models

// Order is one line item of the CleanedAmazonData table.
type Order struct {
	UserID             string   `json:"user_id" db:"user_id"`
	ProductID          string   `json:"product_id" db:"product_id"`
	Category           string   `json:"category" db:"category"`
	SubCategory1       string   `json:"sub_category1" db:"sub_category1"`
	SubCategory2       string   `json:"sub_category2" db:"sub_category2"`
	SubCategory3       string   `json:"sub_category3" db:"sub_category3"`
	SellingPrice       float64  `json:"selling_price" db:"selling_price"`
	DiscountPercentage float64  `json:"discount_percentage" db:"discount_percentage"`
	Rating             *float64 `json:"rating,omitempty" db:"rating"`
	RatingCount        *int64   `json:"rating_count,omitempty" db:"rating_count"`
}

// HasRating reports whether the product on this line was ever rated.
func (o Order) HasRating() bool {
	return o.Rating != nil
}

// Selection is the sidebar filter state of one request.
type Selection struct {
	Categories    []string `json:"categories"`
	SubCategories []string `json:"subcategories"`
}

// FilterOptions are the choices offered by the sidebar multiselects.
type FilterOptions struct {
	Categories    []string `json:"categories"`
	SubCategories []string `json:"subcategories"`
}
