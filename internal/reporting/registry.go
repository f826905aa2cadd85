package reporting

// Dashboards lists every dashboard in sidebar order.
func Dashboards() []Dashboard {
	return []Dashboard{
		OrdersDashboard(),
		CustomersDashboard(),
		SalesDashboard(),
		SatisfactionDashboard(),
	}
}

// Lookup finds a dashboard by slug.
func Lookup(slug string) (Dashboard, bool) {
	for _, d := range Dashboards() {
		if d.Slug == slug {
			return d, true
		}
	}
	return Dashboard{}, false
}
