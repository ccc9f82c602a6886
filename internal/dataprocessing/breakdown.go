package dataprocessing

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"retailcast/pkg/contracts/domain"
)

// SumByField totals TotalPrice per distinct value of a categorical field,
// ordered by category name.
func SumByField(rows []domain.SalesRow, field string) ([]domain.CategoryTotal, error) {
	sums := make(map[string]decimal.Decimal)
	for _, r := range rows {
		key, ok := r.Field(field)
		if !ok {
			return nil, fmt.Errorf("cannot group by %q", field)
		}
		sums[key] = sums[key].Add(r.TotalPrice)
	}

	out := make([]domain.CategoryTotal, 0, len(sums))
	for k, v := range sums {
		out = append(out, domain.CategoryTotal{Category: k, Total: v.InexactFloat64()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}
