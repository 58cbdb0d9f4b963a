package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tokokas/backend/internal/domain"
	"tokokas/backend/internal/store"
)

// TestCreateSaleAgainstPostgres exercises the full sale transaction against a
// real database: stock decrement, the order/checkout/transaction inserts and
// the profit/loss refresh all land together, and an oversized sale rolls
// everything back.
func TestCreateSaleAgainstPostgres(t *testing.T) {
	databaseURL := os.Getenv("TOKOKAS_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set TOKOKAS_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	code := fmt.Sprintf("IT%d", stamp%100000)

	created, err := s.CreateStore(ctx, domain.Store{
		BusinessID: "biz-integration",
		Code:       code,
		Name:       "Integration Test Store",
	})
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	storeID := created.ID

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM transactions WHERE store_id = $1`, storeID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM checkouts WHERE store_id = $1`, storeID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM orders WHERE store_id = $1`, storeID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM profit_loss WHERE store_id = $1`, storeID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM inventory_items WHERE store_id = $1`, storeID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM customers WHERE store_id = $1`, storeID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM staff WHERE store_id = $1`, storeID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM store_counters WHERE store_id = $1`, storeID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM stores WHERE id = $1`, storeID)
	})

	item, err := s.CreateInventoryItem(ctx, domain.InventoryItem{
		StoreID:      storeID,
		Type:         domain.ItemTypeProduct,
		Name:         "Integration Biscuit",
		SKU:          fmt.Sprintf("SKU-IT-%d", stamp),
		Quantity:     10,
		CostPrice:    decimal.NewFromInt(6000),
		SellingPrice: decimal.NewFromInt(9000),
	})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}

	number, err := s.AllocateCustomerNumber(ctx, storeID)
	if err != nil {
		t.Fatalf("allocate customer number: %v", err)
	}
	if want := code + "001"; number != want {
		t.Fatalf("expected first customer number %s, got %s", want, number)
	}

	customer, err := s.CreateCustomer(ctx, domain.Customer{
		StoreID:        storeID,
		CustomerNumber: number,
		Name:           "Integration Customer",
	})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}

	staff, err := s.CreateStaff(ctx, domain.Staff{
		StoreID: storeID,
		Name:    "Integration Cashier",
		Role:    "cashier",
	})
	if err != nil {
		t.Fatalf("create staff: %v", err)
	}

	price := decimal.NewFromInt(9000)
	record, err := s.CreateSale(ctx, store.SaleInput{
		StoreID:       storeID,
		CustomerID:    customer.ID,
		StaffID:       staff.ID,
		PaymentMethod: "cash",
		Lines: []store.SaleLine{
			{
				InventoryID: item.ID,
				Quantity:    3,
				UnitPrice:   price,
				TotalPrice:  price.Mul(decimal.NewFromInt(3)),
				IsProduct:   true,
			},
		},
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if len(record.Checkouts) != 1 || len(record.Orders) != 1 || len(record.Transactions) != 1 {
		t.Fatalf("expected one record per kind, got %d/%d/%d",
			len(record.Orders), len(record.Checkouts), len(record.Transactions))
	}

	after, err := s.GetInventoryItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if after.Quantity != 7 {
		t.Fatalf("expected stock 7 after selling 3 of 10, got %d", after.Quantity)
	}

	pl, err := s.GetProfitLoss(ctx, storeID, item.ID)
	if err != nil {
		t.Fatalf("get profit loss: %v", err)
	}
	if pl.TotalQuantitySold != 3 {
		t.Fatalf("expected 3 sold in aggregate, got %d", pl.TotalQuantitySold)
	}
	if !pl.TotalRevenue.Equal(decimal.NewFromInt(27000)) {
		t.Fatalf("expected revenue 27000, got %s", pl.TotalRevenue)
	}
	// 27000 revenue minus 3 * 6000 cost.
	if !pl.TotalNetProfit.Equal(decimal.NewFromInt(9000)) {
		t.Fatalf("expected net profit 9000, got %s", pl.TotalNetProfit)
	}

	// An oversized sale must roll back the whole transaction.
	_, err = s.CreateSale(ctx, store.SaleInput{
		StoreID:       storeID,
		CustomerID:    customer.ID,
		StaffID:       staff.ID,
		PaymentMethod: "cash",
		Lines: []store.SaleLine{
			{
				InventoryID: item.ID,
				Quantity:    8,
				UnitPrice:   price,
				TotalPrice:  price.Mul(decimal.NewFromInt(8)),
				IsProduct:   true,
			},
		},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	final, err := s.GetInventoryItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("get item after rollback: %v", err)
	}
	if final.Quantity != 7 {
		t.Fatalf("expected stock unchanged at 7 after failed sale, got %d", final.Quantity)
	}

	orders, err := s.ListOrders(ctx, storeID, "", 10)
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("expected 1 order after the failed sale rolled back, got %d", len(orders))
	}
}
