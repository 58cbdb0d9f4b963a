// Package costing computes the new cost price for a restocked item. It is
// pure: no persistence, no clock, just the strategy arithmetic, so it can
// be exercised directly in tests and reused by any storage backend.
package costing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"tokokas/backend/internal/domain"
	"tokokas/backend/internal/store"
)

// Input carries everything a strategy may consult. OnHandQuantity and
// CurrentCost describe the item before the restock is applied.
type Input struct {
	Strategy       string
	OnHandQuantity int
	CurrentCost    decimal.Decimal
	AddedQuantity  int
	UnitCost       decimal.Decimal
	OverrideCost   *decimal.Decimal
}

// NewCostPrice resolves the cost price the item should carry after the
// restock. Weighted averaging uses decimal division with enough precision
// for currency (DivisionPrecision default is 16), so 10@100 + 5@130 yields
// 110 exactly and uneven mixes keep their fraction.
func NewCostPrice(in Input) (decimal.Decimal, error) {
	if in.AddedQuantity < 1 {
		return decimal.Zero, fmt.Errorf("%w: quantity added must be at least 1", store.ErrInvalidArgument)
	}
	if in.UnitCost.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: unit cost must not be negative", store.ErrInvalidArgument)
	}

	switch in.Strategy {
	case domain.CostStrategyKeep:
		return in.CurrentCost, nil
	case domain.CostStrategyLast:
		return in.UnitCost, nil
	case domain.CostStrategyWeighted:
		onHand := decimal.NewFromInt(int64(in.OnHandQuantity))
		added := decimal.NewFromInt(int64(in.AddedQuantity))
		total := onHand.Add(added)
		// AddedQuantity >= 1 so total is never zero for products, whose
		// on-hand quantity is kept non-negative.
		existingValue := onHand.Mul(in.CurrentCost)
		addedValue := added.Mul(in.UnitCost)
		return existingValue.Add(addedValue).Div(total), nil
	case domain.CostStrategyOverride:
		if in.OverrideCost == nil {
			return decimal.Zero, fmt.Errorf("%w: override strategy requires an override cost", store.ErrInvalidArgument)
		}
		if in.OverrideCost.IsNegative() {
			return decimal.Zero, fmt.Errorf("%w: override cost must not be negative", store.ErrInvalidArgument)
		}
		return *in.OverrideCost, nil
	default:
		return decimal.Zero, fmt.Errorf("%w: unknown cost strategy %q", store.ErrInvalidArgument, in.Strategy)
	}
}
