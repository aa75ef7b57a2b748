package search

import (
	"slices"

	"github.com/GoSim-25-26J-441/bitwidth-core/pkg/models"
)

// OrderVariables returns the processing order. Sorting is stable with ties
// broken by declaration order.
func OrderVariables(vars []*models.Variable, order Order) []*models.Variable {
	out := make([]*models.Variable, len(vars))
	copy(out, vars)
	slices.SortStableFunc(out, func(a, b *models.Variable) int {
		return a.Index - b.Index
	})

	switch order {
	case OrderReverseDeclaration:
		slices.Reverse(out)
	case OrderWidthAscending:
		slices.SortStableFunc(out, func(a, b *models.Variable) int {
			return a.Initial.Total - b.Initial.Total
		})
	case OrderWidthDescending:
		slices.SortStableFunc(out, func(a, b *models.Variable) int {
			return b.Initial.Total - a.Initial.Total
		})
	}
	return out
}
