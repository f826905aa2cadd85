package reporting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "retail-insights/internal/errors"
	"retail-insights/internal/models"
)

func TestApplyFilter(t *testing.T) {
	orders := sampleOrders()

	tests := []struct {
		name          string
		categories    []string
		subcategories []string
		wantProducts  []string
	}{
		{
			name:          "single category all subcategories",
			categories:    []string{"Electronics"},
			subcategories: []string{"Phones", "Laptops"},
			wantProducts:  []string{"P1", "P2", "P1"},
		},
		{
			name:          "subcategory narrows category",
			categories:    []string{"Electronics", "Fashion"},
			subcategories: []string{"Shoes"},
			wantProducts:  []string{"P3"},
		},
		{
			name:          "subcategory outside selected categories matches nothing",
			categories:    []string{"Home"},
			subcategories: []string{"Phones"},
			wantProducts:  []string{},
		},
		{
			name:          "category with no subcategories matches nothing",
			categories:    []string{"Fashion"},
			subcategories: nil,
			wantProducts:  []string{},
		},
		{
			name:          "empty category selection returns every row",
			categories:    []string{},
			subcategories: []string{"Shoes"},
			wantProducts:  []string{"P1", "P2", "P3", "P1", "P4", "P5"},
		},
		{
			name:          "nil category selection returns every row",
			categories:    nil,
			subcategories: nil,
			wantProducts:  []string{"P1", "P2", "P3", "P1", "P4", "P5"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplyFilter(orders, tt.categories, tt.subcategories)

			products := make([]string, 0, len(got))
			for _, o := range got {
				products = append(products, o.ProductID)
			}
			assert.Equal(t, tt.wantProducts, products)
		})
	}
}

func TestApplyFilter_EmptyCategoriesReturnsFullDataset(t *testing.T) {
	orders := sampleOrders()

	got := ApplyFilter(orders, []string{}, []string{})

	require.Len(t, got, len(orders))
	assert.Equal(t, orders, got)
}

func TestApplyFilter_DoesNotAliasInput(t *testing.T) {
	orders := sampleOrders()

	got := ApplyFilter(orders, nil, nil)
	got[0].ProductID = "changed"

	assert.Equal(t, "P1", orders[0].ProductID)
}

func TestApplyFilter_Idempotent(t *testing.T) {
	orders := sampleOrders()
	cats := []string{"Electronics", "Home"}
	subs := []string{"Phones", "Kitchen"}

	once := ApplyFilter(orders, cats, subs)
	twice := ApplyFilter(once, cats, subs)

	assert.Equal(t, once, twice)
}

func TestOptions(t *testing.T) {
	opts := Options(sampleOrders(), []string{"Fashion", "Electronics"})

	assert.Equal(t, []string{"Electronics", "Fashion", "Home"}, opts.Categories)
	assert.Equal(t, []string{"Laptops", "Phones", "Shirts", "Shoes"}, opts.SubCategories)
}

func TestResolveSelection(t *testing.T) {
	orders := sampleOrders()

	t.Run("unspecified selects everything", func(t *testing.T) {
		sel, opts, err := ResolveSelection(orders, models.Selection{})
		require.NoError(t, err)

		assert.Equal(t, []string{"Electronics", "Fashion", "Home"}, sel.Categories)
		assert.Equal(t, opts.SubCategories, sel.SubCategories)
		assert.Len(t, Filter(orders, sel), len(orders))
	})

	t.Run("subcategories default to the chosen categories", func(t *testing.T) {
		sel, opts, err := ResolveSelection(orders, models.Selection{Categories: []string{"Fashion"}})
		require.NoError(t, err)

		assert.Equal(t, []string{"Shirts", "Shoes"}, opts.SubCategories)
		assert.Equal(t, []string{"Shirts", "Shoes"}, sel.SubCategories)
	})

	t.Run("unknown values are dropped", func(t *testing.T) {
		sel, _, err := ResolveSelection(orders, models.Selection{
			Categories:    []string{"Home", "Garden"},
			SubCategories: []string{"Kitchen", "Phones"},
		})
		require.NoError(t, err)

		assert.Equal(t, []string{"Home"}, sel.Categories)
		assert.Equal(t, []string{"Kitchen"}, sel.SubCategories)
	})

	t.Run("explicit empty categories are kept", func(t *testing.T) {
		sel, _, err := ResolveSelection(orders, models.Selection{Categories: []string{}})
		require.NoError(t, err)

		require.NotNil(t, sel.Categories)
		assert.Empty(t, sel.Categories)
		assert.Len(t, Filter(orders, sel), len(orders))
	})

	t.Run("only unknown categories is an empty selection", func(t *testing.T) {
		sel, opts, err := ResolveSelection(orders, models.Selection{Categories: []string{"Garden"}})

		require.ErrorIs(t, err, apperrors.ErrEmptySelection)
		assert.Empty(t, sel.Categories)
		assert.Equal(t, []string{"Electronics", "Fashion", "Home"}, opts.Categories)
	})
}

func BenchmarkApplyFilter(b *testing.B) {
	orders := make([]models.Order, 0, 10000)
	for range 1000 {
		orders = append(orders, sampleOrders()...)
	}
	cats := []string{"Electronics", "Fashion"}
	subs := []string{"Phones", "Shoes"}

	for b.Loop() {
		ApplyFilter(orders, cats, subs)
	}
}
