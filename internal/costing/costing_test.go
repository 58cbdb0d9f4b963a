package costing

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"tokokas/backend/internal/domain"
	"tokokas/backend/internal/store"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestNewCostPriceKeep(t *testing.T) {
	got, err := NewCostPrice(Input{
		Strategy:       domain.CostStrategyKeep,
		OnHandQuantity: 10,
		CurrentCost:    dec("100"),
		AddedQuantity:  5,
		UnitCost:       dec("130"),
	})
	if err != nil {
		t.Fatalf("NewCostPrice: %v", err)
	}
	if !got.Equal(dec("100")) {
		t.Fatalf("keep strategy changed cost: got %s", got)
	}
}

func TestNewCostPriceLast(t *testing.T) {
	got, err := NewCostPrice(Input{
		Strategy:       domain.CostStrategyLast,
		OnHandQuantity: 10,
		CurrentCost:    dec("100"),
		AddedQuantity:  5,
		UnitCost:       dec("130"),
	})
	if err != nil {
		t.Fatalf("NewCostPrice: %v", err)
	}
	if !got.Equal(dec("130")) {
		t.Fatalf("last strategy: got %s, want 130", got)
	}
}

func TestNewCostPriceWeighted(t *testing.T) {
	// (10*100 + 5*130) / 15 = 1650/15 = 110 exactly.
	got, err := NewCostPrice(Input{
		Strategy:       domain.CostStrategyWeighted,
		OnHandQuantity: 10,
		CurrentCost:    dec("100"),
		AddedQuantity:  5,
		UnitCost:       dec("130"),
	})
	if err != nil {
		t.Fatalf("NewCostPrice: %v", err)
	}
	if !got.Equal(dec("110")) {
		t.Fatalf("weighted average: got %s, want 110", got)
	}
}

func TestNewCostPriceWeightedKeepsFraction(t *testing.T) {
	// (10*100 + 5*130) weights flipped: (10*130 + 5*100)/15 = 126.66...
	got, err := NewCostPrice(Input{
		Strategy:       domain.CostStrategyWeighted,
		OnHandQuantity: 10,
		CurrentCost:    dec("130"),
		AddedQuantity:  5,
		UnitCost:       dec("100"),
	})
	if err != nil {
		t.Fatalf("NewCostPrice: %v", err)
	}
	want := dec("1900").Div(dec("15"))
	if !got.Equal(want) {
		t.Fatalf("weighted average: got %s, want %s", got, want)
	}
	if got.StringFixed(2) != "126.67" {
		t.Fatalf("rounded display: got %s, want 126.67", got.StringFixed(2))
	}
}

func TestNewCostPriceWeightedFromZeroStock(t *testing.T) {
	got, err := NewCostPrice(Input{
		Strategy:       domain.CostStrategyWeighted,
		OnHandQuantity: 0,
		CurrentCost:    dec("100"),
		AddedQuantity:  4,
		UnitCost:       dec("90"),
	})
	if err != nil {
		t.Fatalf("NewCostPrice: %v", err)
	}
	if !got.Equal(dec("90")) {
		t.Fatalf("weighted with zero on hand should equal unit cost, got %s", got)
	}
}

func TestNewCostPriceOverride(t *testing.T) {
	override := dec("87.50")
	got, err := NewCostPrice(Input{
		Strategy:       domain.CostStrategyOverride,
		OnHandQuantity: 10,
		CurrentCost:    dec("100"),
		AddedQuantity:  5,
		UnitCost:       dec("130"),
		OverrideCost:   &override,
	})
	if err != nil {
		t.Fatalf("NewCostPrice: %v", err)
	}
	if !got.Equal(override) {
		t.Fatalf("override strategy: got %s, want %s", got, override)
	}
}

func TestNewCostPriceOverrideWithoutValue(t *testing.T) {
	_, err := NewCostPrice(Input{
		Strategy:       domain.CostStrategyOverride,
		OnHandQuantity: 10,
		CurrentCost:    dec("100"),
		AddedQuantity:  5,
		UnitCost:       dec("130"),
	})
	if !errors.Is(err, store.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestNewCostPriceRejectsBadInput(t *testing.T) {
	cases := []struct {
		name string
		in   Input
	}{
		{"zero quantity", Input{Strategy: domain.CostStrategyKeep, AddedQuantity: 0, UnitCost: dec("10")}},
		{"negative unit cost", Input{Strategy: domain.CostStrategyLast, AddedQuantity: 1, UnitCost: dec("-1")}},
		{"unknown strategy", Input{Strategy: "fifo", AddedQuantity: 1, UnitCost: dec("10")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewCostPrice(tc.in); !errors.Is(err, store.ErrInvalidArgument) {
				t.Fatalf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}
}
