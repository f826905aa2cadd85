package reporting

// Customer dashboard KPI and chart names.
const (
	KPIUniqueCustomers       = "unique_customers"
	KPIRepeatedCustomers     = "repeated_customers"
	KPIRepeatPurchaseRate    = "repeat_purchase_rate"
	KPIRepeatCustomerRevenue = "repeat_customer_revenue"
	KPIRepeatRevenueShare    = "repeat_revenue_share"
	KPITopFiveCustomerShare  = "top5_customer_share"
	KPIMaxCustomerSpend      = "max_customer_spend"

	ChartCategoryCustomers    = "category_customers"
	ChartTopNCustomerShare    = "top_n_customer_share"
	ChartSubcategoryCustomers = "top_subcategories_by_customers"
	ChartLoyalCustomers       = "loyal_customers"
)

var customerShareTiers = []int{15, 50, 100}

// CustomersDashboard covers customer base and loyalty.
func CustomersDashboard() Dashboard {
	return Dashboard{
		Slug:  "customers",
		Title: "Customer Dashboard",
		KPIs: []KPISpec{
			Number(KPIUniqueCustomers, "Unique Customers", UnitCount, func(s *Scope) (float64, error) {
				return float64(customers(s).Len()), nil
			}),
			Number(KPIRepeatedCustomers, "Repeated Customers", UnitCount, func(s *Scope) (float64, error) {
				return float64(len(repeatedCustomers(s))), nil
			}),
			Number(KPIRepeatPurchaseRate, "Repeat Purchase Rate", UnitPercent, func(s *Scope) (float64, error) {
				return Share(float64(len(repeatedCustomers(s))), float64(customers(s).Len()), "repeat purchase rate")
			}),
			Number(KPIRepeatCustomerRevenue, "Repeat Customer Revenue", UnitMillions, func(s *Scope) (float64, error) {
				return repeatRevenue(s) / 1e6, nil
			}),
			Number(KPIRepeatRevenueShare, "Repeat Customer Revenue %", UnitPercent, func(s *Scope) (float64, error) {
				return Share(repeatRevenue(s), s.Frame.Sum(SellingPrice), "repeat customer revenue share")
			}),
			Number(KPITopFiveCustomerShare, "Top 5 Customers Share", UnitPercent, func(s *Scope) (float64, error) {
				top := TopN(customerSpend(s), 5)
				return Share(SumValues(top), s.Frame.Sum(SellingPrice), "top 5 customer share")
			}),
			Number(KPIMaxCustomerSpend, "Maximum Ordered Amount", UnitThousands, func(s *Scope) (float64, error) {
				best, err := Best(customerSpend(s), "maximum customer spend")
				return best.Value / 1e3, err
			}),
		},
		Charts: []ChartSpec{
			{
				Name:  ChartCategoryCustomers,
				Title: "Category Wise Customer Base",
				Kind:  ChartPie,
				Build: func(s *Scope) (Dataset, error) {
					return Dataset{
						KeyColumn: "category",
						Columns:   []string{"customer_base"},
						Rows:      rowsOf(s.GroupBy("category", ByCategory).NUnique(ByUser)),
					}, nil
				},
			},
			{
				Name:  ChartTopNCustomerShare,
				Title: "Top N Customers Sales Share",
				Kind:  ChartPie,
				Build: func(s *Scope) (Dataset, error) {
					rows, err := topNShares(SortDesc(customerSpend(s)), s.Frame.Sum(SellingPrice), customerShareTiers, "top N customer share")
					if err != nil {
						return Dataset{}, err
					}
					return Dataset{KeyColumn: "tier", Columns: []string{"sales_share"}, Rows: rows}, nil
				},
			},
			{
				Name:  ChartSubcategoryCustomers,
				Title: "Top 5 Subcategories by Customer Base",
				Kind:  ChartHBar,
				Build: func(s *Scope) (Dataset, error) {
					if err := s.RequireRows("subcategory customers"); err != nil {
						return Dataset{}, err
					}
					base := s.GroupBy("sub_category1", BySubCategory1).NUnique(ByUser)
					return Dataset{
						KeyColumn: "subcategory",
						Columns:   []string{"customer_base"},
						Rows:      rowsOf(TopN(base, topSubcategoryCount)),
					}, nil
				},
			},
			{
				Name:  ChartLoyalCustomers,
				Title: "Top 5 Loyal Customers",
				Kind:  ChartHBar,
				Build: func(s *Scope) (Dataset, error) {
					if err := s.RequireRows("loyal customers"); err != nil {
						return Dataset{}, err
					}
					return Dataset{
						KeyColumn: "user_id",
						Columns:   []string{"order_count"},
						Rows:      rowsOf(TopN(repeatedCustomers(s), 5)),
					}, nil
				},
			},
		},
	}
}

func customers(s *Scope) *Grouping {
	return s.GroupBy("user", ByUser)
}

// customerSpend is total selling price per customer, in first-encounter order.
func customerSpend(s *Scope) []Agg {
	return customers(s).Sum(SellingPrice)
}

// repeatedCustomers is the order count of every customer with more than one
// order.
func repeatedCustomers(s *Scope) []Agg {
	var out []Agg
	for _, a := range customers(s).Count() {
		if a.Value > 1 {
			out = append(out, a)
		}
	}
	return out
}

func repeatRevenue(s *Scope) float64 {
	total := 0.0
	for _, g := range customers(s).Groups() {
		if g.Len() > 1 {
			total += g.Frame().Sum(SellingPrice)
		}
	}
	return total
}
