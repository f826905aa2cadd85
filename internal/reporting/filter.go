package reporting

import (
	"fmt"
	"slices"

	apperrors "retail-insights/internal/errors"
	"retail-insights/internal/models"
)

// ApplyFilter returns the rows whose category is in categories and whose
// sub_category1 is in subcategories, in input order.
//
// An empty category selection returns the whole input rather than nothing.
// The dashboards have always behaved this way (clearing the category box
// shows every order) and callers rely on it.
func ApplyFilter(orders []models.Order, categories, subcategories []string) []models.Order {
	if len(categories) == 0 {
		return slices.Clone(orders)
	}

	catSet := toSet(categories)
	subSet := toSet(subcategories)

	out := make([]models.Order, 0, len(orders))
	for _, o := range orders {
		if _, ok := catSet[o.Category]; !ok {
			continue
		}
		if _, ok := subSet[o.SubCategory1]; !ok {
			continue
		}
		out = append(out, o)
	}
	return out
}

// Filter applies a resolved selection.
func Filter(orders []models.Order, sel models.Selection) []models.Order {
	return ApplyFilter(orders, sel.Categories, sel.SubCategories)
}

// Options lists the sorted distinct categories of orders and the sorted
// distinct sub-categories found under the given categories.
func Options(orders []models.Order, categories []string) models.FilterOptions {
	catSet := toSet(categories)

	cats := make(map[string]struct{})
	subs := make(map[string]struct{})
	for _, o := range orders {
		cats[o.Category] = struct{}{}
		if _, ok := catSet[o.Category]; ok {
			subs[o.SubCategory1] = struct{}{}
		}
	}

	return models.FilterOptions{
		Categories:    sortedKeys(cats),
		SubCategories: sortedKeys(subs),
	}
}

// ResolveSelection turns a requested selection into one that satisfies the
// filter's input constraints: categories are clamped to those present in
// orders and sub-categories to those under the chosen categories.
//
// A nil Categories slice means "not specified" and selects every category;
// a non-nil empty slice is kept empty. The same holds for SubCategories,
// which default to every sub-category of the chosen categories.
//
// Naming only categories that do not exist fails with ErrEmptySelection
// instead of clamping to the empty selection, which would show every order.
func ResolveSelection(orders []models.Order, requested models.Selection) (models.Selection, models.FilterOptions, error) {
	all := Options(orders, nil)

	categories := all.Categories
	if requested.Categories != nil {
		categories = intersect(requested.Categories, all.Categories)
	}

	opts := Options(orders, categories)

	subcategories := opts.SubCategories
	if requested.SubCategories != nil {
		subcategories = intersect(requested.SubCategories, opts.SubCategories)
	}

	sel := models.Selection{Categories: categories, SubCategories: subcategories}
	if len(requested.Categories) > 0 && len(categories) == 0 {
		return sel, opts, fmt.Errorf("unknown categories %q: %w", requested.Categories, apperrors.ErrEmptySelection)
	}
	return sel, opts, nil
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// intersect keeps the members of allowed that appear in requested, in the
// order of allowed. The result is never nil.
func intersect(requested, allowed []string) []string {
	want := toSet(requested)
	out := make([]string, 0, len(requested))
	for _, a := range allowed {
		if _, ok := want[a]; ok {
			out = append(out, a)
		}
	}
	return out
}
