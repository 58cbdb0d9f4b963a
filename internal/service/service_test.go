package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tokokas/backend/internal/domain"
	"tokokas/backend/internal/store"
	"tokokas/backend/internal/store/memory"
)

func newTestService() (*Service, *memory.Store) {
	repo := memory.NewSeeded()
	return New(repo, nil, 0), repo
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "admin", Role: "admin"})
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func TestCheckoutDecrementsStockAndRecordsSale(t *testing.T) {
	svc, repo := newTestService()
	ctx := adminCtx()

	result, err := svc.Checkout(ctx, domain.CheckoutRequest{
		StoreID:       "store-dt01",
		CustomerID:    "cust-budi",
		StaffID:       "staff-dewi",
		PaymentMethod: "qris",
		Items: []domain.CheckoutLine{
			{InventoryID: "inv-mie", Quantity: 3},
			{InventoryID: "inv-bungkus", Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success result")
	}
	if len(result.CheckoutIDs) != 2 {
		t.Fatalf("expected one checkout per line, got %d", len(result.CheckoutIDs))
	}

	item, err := repo.GetInventoryItem(ctx, "inv-mie")
	if err != nil {
		t.Fatalf("get item failed: %v", err)
	}
	if item.Quantity != 117 {
		t.Fatalf("expected stock 117 after selling 3 of 120, got %d", item.Quantity)
	}

	// The service line carries no stock and must stay at zero.
	svcItem, err := repo.GetInventoryItem(ctx, "inv-bungkus")
	if err != nil {
		t.Fatalf("get service item failed: %v", err)
	}
	if svcItem.Quantity != 0 {
		t.Fatalf("expected service quantity to stay 0, got %d", svcItem.Quantity)
	}

	transactions, err := svc.ListTransactions(ctx, "store-dt01", "cust-budi", 10)
	if err != nil {
		t.Fatalf("list transactions failed: %v", err)
	}
	if len(transactions) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(transactions))
	}
}

func TestCheckoutFailureLeavesNothingBehind(t *testing.T) {
	svc, repo := newTestService()
	ctx := adminCtx()

	_, err := svc.Checkout(ctx, domain.CheckoutRequest{
		StoreID:    "store-dt01",
		CustomerID: "cust-budi",
		StaffID:    "staff-dewi",
		Items: []domain.CheckoutLine{
			{InventoryID: "inv-mie", Quantity: 2},
			{InventoryID: "inv-roti", Quantity: 41},
		},
	})
	if err == nil {
		t.Fatalf("expected checkout to fail on the oversized line")
	}
	var stockErr *store.StockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected StockError, got %v", err)
	}
	if stockErr.ItemName != "Roti Tawar" || stockErr.Available != 40 {
		t.Fatalf("unexpected stock error details: %+v", stockErr)
	}

	// The passing line must not have been applied.
	item, err := repo.GetInventoryItem(ctx, "inv-mie")
	if err != nil {
		t.Fatalf("get item failed: %v", err)
	}
	if item.Quantity != 120 {
		t.Fatalf("expected stock untouched at 120, got %d", item.Quantity)
	}

	orders, err := repo.ListOrders(ctx, "store-dt01", "", 10)
	if err != nil {
		t.Fatalf("list orders failed: %v", err)
	}
	if len(orders) != 0 {
		t.Fatalf("expected no orders after failed checkout, got %d", len(orders))
	}
}

func TestCheckoutAggregatesDuplicateLines(t *testing.T) {
	svc, _ := newTestService()

	// Each line fits alone but the cart totals more than the 40 on hand.
	_, err := svc.Checkout(adminCtx(), domain.CheckoutRequest{
		StoreID:    "store-dt01",
		CustomerID: "cust-budi",
		StaffID:    "staff-dewi",
		Items: []domain.CheckoutLine{
			{InventoryID: "inv-roti", Quantity: 25},
			{InventoryID: "inv-roti", Quantity: 25},
		},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock across duplicate lines, got %v", err)
	}
}

func TestCheckoutCustomPriceOverridesSellingPrice(t *testing.T) {
	svc, repo := newTestService()
	ctx := adminCtx()

	custom := dec(t, "3000")
	_, err := svc.Checkout(ctx, domain.CheckoutRequest{
		StoreID:    "store-dt01",
		CustomerID: "cust-sari",
		StaffID:    "staff-dewi",
		Items: []domain.CheckoutLine{
			{InventoryID: "inv-mie", Quantity: 2, CustomPrice: &custom},
		},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	orders, err := repo.ListOrders(ctx, "store-dt01", "inv-mie", 1)
	if err != nil {
		t.Fatalf("list orders failed: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("expected 1 order, got %d", len(orders))
	}
	if !orders[0].TotalPrice.Equal(dec(t, "6000")) {
		t.Fatalf("expected order total 6000 at custom price, got %s", orders[0].TotalPrice)
	}
}

func TestCheckoutRejectsUnsupportedPaymentMethod(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Checkout(adminCtx(), domain.CheckoutRequest{
		StoreID:       "store-dt01",
		CustomerID:    "cust-budi",
		StaffID:       "staff-dewi",
		PaymentMethod: "barter",
		Items: []domain.CheckoutLine{
			{InventoryID: "inv-mie", Quantity: 1},
		},
	})
	if !errors.Is(err, store.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for unknown payment method, got %v", err)
	}
}

func TestCheckoutRejectsArchivedCustomer(t *testing.T) {
	svc, _ := newTestService()
	ctx := adminCtx()

	archived := true
	if _, err := svc.UpdateCustomer(ctx, "cust-budi", domain.CustomerUpdateRequest{IsArchived: &archived}); err != nil {
		t.Fatalf("archive customer failed: %v", err)
	}

	_, err := svc.Checkout(ctx, domain.CheckoutRequest{
		StoreID:    "store-dt01",
		CustomerID: "cust-budi",
		StaffID:    "staff-dewi",
		Items: []domain.CheckoutLine{
			{InventoryID: "inv-mie", Quantity: 1},
		},
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for archived customer, got %v", err)
	}
}

func TestConcurrentCheckoutsNeverOversell(t *testing.T) {
	svc, repo := newTestService()
	ctx := adminCtx()

	const workers = 12
	const perCheckout = 5 // 12 workers want 60 of the 40 on hand

	var wg sync.WaitGroup
	errCh := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Checkout(ctx, domain.CheckoutRequest{
				StoreID:    "store-dt01",
				CustomerID: "cust-budi",
				StaffID:    "staff-dewi",
				Items: []domain.CheckoutLine{
					{InventoryID: "inv-roti", Quantity: perCheckout},
				},
			})
			errCh <- err
		}()
	}
	wg.Wait()
	close(errCh)

	successes := 0
	for err := range errCh {
		if err == nil {
			successes++
			continue
		}
		if !errors.Is(err, store.ErrInsufficientStock) {
			t.Fatalf("expected only insufficient-stock failures, got %v", err)
		}
	}

	item, err := repo.GetInventoryItem(ctx, "inv-roti")
	if err != nil {
		t.Fatalf("get item failed: %v", err)
	}
	if item.Quantity < 0 {
		t.Fatalf("stock went negative: %d", item.Quantity)
	}
	if want := 40 - successes*perCheckout; item.Quantity != want {
		t.Fatalf("stock %d does not match %d successful checkouts (want %d)", item.Quantity, successes, want)
	}
	if successes != 40/perCheckout {
		t.Fatalf("expected exactly %d checkouts to win, got %d", 40/perCheckout, successes)
	}
}

func TestConcurrentCustomerNumbersAreUniqueAndContiguous(t *testing.T) {
	svc, _ := newTestService()
	ctx := adminCtx()

	const n = 25
	var wg sync.WaitGroup
	numbers := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			created, err := svc.CreateCustomer(ctx, domain.CustomerCreateRequest{
				StoreID: "store-dt01",
				Name:    fmt.Sprintf("Pelanggan %02d", i),
			})
			if err != nil {
				t.Errorf("create customer %d failed: %v", i, err)
				return
			}
			numbers <- created.CustomerNumber
		}(i)
	}
	wg.Wait()
	close(numbers)

	seen := make(map[string]bool, n)
	for number := range numbers {
		if seen[number] {
			t.Fatalf("duplicate customer number %s", number)
		}
		seen[number] = true
	}
	if len(seen) != n {
		t.Fatalf("expected %d numbers, got %d", n, len(seen))
	}
	// The seed consumed 001 and 002, so the batch must be exactly 003..027.
	for i := 3; i < 3+n; i++ {
		want := fmt.Sprintf("DT01%03d", i)
		if !seen[want] {
			t.Fatalf("expected customer number %s to be assigned", want)
		}
	}
}

func TestRestockRejectsServiceItem(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Restock(adminCtx(), "inv-bungkus", domain.RestockRequest{
		QuantityAdded: 5,
		UnitCost:      dec(t, "1000"),
		CostStrategy:  domain.CostStrategyLast,
		StaffID:       "staff-dewi",
	})
	if !errors.Is(err, store.ErrInvalidOperation) {
		t.Fatalf("expected invalid operation for service restock, got %v", err)
	}
}

// saleBetweenReadsRepo commits a sale after the restock pre-check has read
// its snapshot, so the repository-side restock must resolve quantity from
// the state it holds locked rather than from that snapshot.
type saleBetweenReadsRepo struct {
	*memory.Store
	once    sync.Once
	sale    store.SaleInput
	saleErr error
}

func (r *saleBetweenReadsRepo) GetInventoryItem(ctx context.Context, id string) (*domain.InventoryItem, error) {
	item, err := r.Store.GetInventoryItem(ctx, id)
	if err != nil {
		return nil, err
	}
	snapshot := *item
	r.once.Do(func() {
		_, r.saleErr = r.Store.CreateSale(ctx, r.sale)
	})
	return &snapshot, nil
}

func TestRestockCountsSaleCommittedDuringRestock(t *testing.T) {
	price := decimal.NewFromInt(17800)
	repo := &saleBetweenReadsRepo{
		Store: memory.NewSeeded(),
		sale: store.SaleInput{
			StoreID:       "store-dt01",
			CustomerID:    "cust-budi",
			StaffID:       "staff-dewi",
			PaymentMethod: "cash",
			Lines: []store.SaleLine{{
				InventoryID: "inv-roti",
				Quantity:    3,
				UnitPrice:   price,
				TotalPrice:  price.Mul(decimal.NewFromInt(3)),
				IsProduct:   true,
			}},
		},
	}
	svc := New(repo, nil, 0)

	// inv-roti starts at 40; the interleaved sale takes 3, the restock adds 5.
	updated, err := svc.Restock(adminCtx(), "inv-roti", domain.RestockRequest{
		QuantityAdded: 5,
		UnitCost:      dec(t, "12500"),
		CostStrategy:  domain.CostStrategyKeep,
		StaffID:       "staff-dewi",
	})
	if err != nil {
		t.Fatalf("restock failed: %v", err)
	}
	if repo.saleErr != nil {
		t.Fatalf("interleaved sale failed: %v", repo.saleErr)
	}
	if updated.Quantity != 42 {
		t.Fatalf("restock erased the interleaved sale: quantity %d, want 42", updated.Quantity)
	}

	item, err := repo.Store.GetInventoryItem(context.Background(), "inv-roti")
	if err != nil {
		t.Fatalf("reload item: %v", err)
	}
	if item.Quantity != 42 {
		t.Fatalf("stored quantity %d, want 42", item.Quantity)
	}
}

func TestRestockStrategies(t *testing.T) {
	svc, _ := newTestService()
	ctx := adminCtx()

	// inv-susu: 60 on hand at 13600. Last intake wins.
	item, err := svc.Restock(ctx, "inv-susu", domain.RestockRequest{
		QuantityAdded: 10,
		UnitCost:      dec(t, "15000"),
		CostStrategy:  domain.CostStrategyLast,
		StaffID:       "staff-dewi",
	})
	if err != nil {
		t.Fatalf("last restock failed: %v", err)
	}
	if item.Quantity != 70 {
		t.Fatalf("expected quantity 70, got %d", item.Quantity)
	}
	if !item.CostPrice.Equal(dec(t, "15000")) {
		t.Fatalf("expected last cost 15000, got %s", item.CostPrice)
	}

	// inv-telur: 80 on hand at 23000, add 20 at 18000 -> weighted 22000.
	item, err = svc.Restock(ctx, "inv-telur", domain.RestockRequest{
		QuantityAdded: 20,
		UnitCost:      dec(t, "18000"),
		CostStrategy:  domain.CostStrategyWeighted,
		StaffID:       "staff-dewi",
	})
	if err != nil {
		t.Fatalf("weighted restock failed: %v", err)
	}
	if !item.CostPrice.Equal(dec(t, "22000")) {
		t.Fatalf("expected weighted cost 22000, got %s", item.CostPrice)
	}

	// inv-kopi: override ignores both the current cost and the intake cost.
	override := dec(t, "2000")
	newPrice := dec(t, "2900")
	item, err = svc.Restock(ctx, "inv-kopi", domain.RestockRequest{
		QuantityAdded:   50,
		UnitCost:        dec(t, "1650"),
		CostStrategy:    domain.CostStrategyOverride,
		OverrideCost:    &override,
		NewSellingPrice: &newPrice,
		StaffID:         "staff-dewi",
	})
	if err != nil {
		t.Fatalf("override restock failed: %v", err)
	}
	if !item.CostPrice.Equal(override) {
		t.Fatalf("expected override cost 2000, got %s", item.CostPrice)
	}
	if !item.SellingPrice.Equal(newPrice) {
		t.Fatalf("expected new selling price 2900, got %s", item.SellingPrice)
	}

	events, err := svc.ListRestockEvents(ctx, "store-dt01", "", 10)
	if err != nil {
		t.Fatalf("list restock events failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 restock events, got %d", len(events))
	}
}

func TestProfitLossRefreshIsIdempotent(t *testing.T) {
	svc, _ := newTestService()
	ctx := adminCtx()

	if _, err := svc.Checkout(ctx, domain.CheckoutRequest{
		StoreID:    "store-dt01",
		CustomerID: "cust-budi",
		StaffID:    "staff-dewi",
		Items: []domain.CheckoutLine{
			{InventoryID: "inv-mie", Quantity: 10},
		},
	}); err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	first, err := svc.RefreshProfitLoss(ctx, "store-dt01", "inv-mie")
	if err != nil {
		t.Fatalf("first refresh failed: %v", err)
	}
	second, err := svc.RefreshProfitLoss(ctx, "store-dt01", "inv-mie")
	if err != nil {
		t.Fatalf("second refresh failed: %v", err)
	}

	if first.TotalQuantitySold != second.TotalQuantitySold ||
		first.QuantityRemaining != second.QuantityRemaining ||
		!first.TotalRevenue.Equal(second.TotalRevenue) ||
		!first.TotalNetProfit.Equal(second.TotalNetProfit) {
		t.Fatalf("refresh is not idempotent: %+v vs %+v", first, second)
	}

	if second.TotalQuantitySold != 10 {
		t.Fatalf("expected 10 sold, got %d", second.TotalQuantitySold)
	}
	if !second.TotalRevenue.Equal(dec(t, "35000")) {
		t.Fatalf("expected revenue 35000, got %s", second.TotalRevenue)
	}
	// 35000 revenue minus 10 * 2700 current cost.
	if !second.TotalNetProfit.Equal(dec(t, "8000")) {
		t.Fatalf("expected net profit 8000, got %s", second.TotalNetProfit)
	}
	if second.QuantityRemaining != 110 {
		t.Fatalf("expected 110 remaining, got %d", second.QuantityRemaining)
	}
}

func TestProfitLossUsesCurrentCostPrice(t *testing.T) {
	svc, _ := newTestService()
	ctx := adminCtx()

	if _, err := svc.Checkout(ctx, domain.CheckoutRequest{
		StoreID:    "store-dt01",
		CustomerID: "cust-budi",
		StaffID:    "staff-dewi",
		Items: []domain.CheckoutLine{
			{InventoryID: "inv-mie", Quantity: 10},
		},
	}); err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	// Raising the cost price re-prices historical sales on the next refresh:
	// profit is measured against current cost, not cost at time of sale.
	override := dec(t, "3000")
	if _, err := svc.Restock(ctx, "inv-mie", domain.RestockRequest{
		QuantityAdded: 10,
		UnitCost:      dec(t, "3000"),
		CostStrategy:  domain.CostStrategyOverride,
		OverrideCost:  &override,
		StaffID:       "staff-dewi",
	}); err != nil {
		t.Fatalf("restock failed: %v", err)
	}

	pl, err := svc.RefreshProfitLoss(ctx, "store-dt01", "inv-mie")
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	// 35000 revenue minus 10 * 3000 new cost.
	if !pl.TotalNetProfit.Equal(dec(t, "5000")) {
		t.Fatalf("expected net profit 5000 at the new cost, got %s", pl.TotalNetProfit)
	}
}

func TestRefreshAllProfitLossCoversEveryItem(t *testing.T) {
	svc, _ := newTestService()
	ctx := adminCtx()

	refreshed, err := svc.RefreshAllProfitLoss(ctx, "store-dt01")
	if err != nil {
		t.Fatalf("refresh all failed: %v", err)
	}
	if refreshed != 6 {
		t.Fatalf("expected 6 items refreshed, got %d", refreshed)
	}

	report, err := svc.ProfitLossReport(ctx, "store-dt01")
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}
	if len(report.Rows) != 6 {
		t.Fatalf("expected 6 report rows, got %d", len(report.Rows))
	}
}

// recordingCache counts cache traffic so tests can observe hit, miss and
// invalidation behavior without Redis.
type recordingCache struct {
	mu            sync.Mutex
	entries       map[string]*domain.ProfitLossReport
	hits          int
	sets          int
	invalidations int
}

func newRecordingCache() *recordingCache {
	return &recordingCache{entries: make(map[string]*domain.ProfitLossReport)}
}

func (c *recordingCache) Get(_ context.Context, key string) (*domain.ProfitLossReport, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	report, ok := c.entries[key]
	if ok {
		c.hits++
	}
	return report, ok, nil
}

func (c *recordingCache) Set(_ context.Context, key string, value *domain.ProfitLossReport, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	c.sets++
	return nil
}

func (c *recordingCache) Invalidate(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	c.invalidations++
	return nil
}

func TestProfitLossReportCacheInvalidatedByCheckout(t *testing.T) {
	repo := memory.NewSeeded()
	rc := newRecordingCache()
	svc := New(repo, rc, time.Minute)
	ctx := adminCtx()

	if _, err := svc.ProfitLossReport(ctx, "store-dt01"); err != nil {
		t.Fatalf("first report failed: %v", err)
	}
	if rc.sets != 1 {
		t.Fatalf("expected report to be cached, sets=%d", rc.sets)
	}

	if _, err := svc.ProfitLossReport(ctx, "store-dt01"); err != nil {
		t.Fatalf("second report failed: %v", err)
	}
	if rc.hits != 1 {
		t.Fatalf("expected a cache hit on the second read, hits=%d", rc.hits)
	}

	if _, err := svc.Checkout(ctx, domain.CheckoutRequest{
		StoreID:    "store-dt01",
		CustomerID: "cust-budi",
		StaffID:    "staff-dewi",
		Items: []domain.CheckoutLine{
			{InventoryID: "inv-kopi", Quantity: 2},
		},
	}); err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if rc.invalidations == 0 {
		t.Fatalf("expected checkout to invalidate the cached report")
	}

	report, err := svc.ProfitLossReport(ctx, "store-dt01")
	if err != nil {
		t.Fatalf("report after checkout failed: %v", err)
	}
	found := false
	for _, row := range report.Rows {
		if row.InventoryID == "inv-kopi" && row.TotalQuantitySold == 2 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected the fresh report to include the new sale")
	}
}

func TestCreateStoreRequiresAdmin(t *testing.T) {
	svc, _ := newTestService()
	cashierCtx := WithActor(context.Background(), domain.Actor{Username: "cashier", Role: "cashier"})

	_, err := svc.CreateStore(cashierCtx, domain.StoreCreateRequest{
		BusinessID: "biz-demo",
		Code:       "KP02",
		Name:       "Toko Kedua",
	})
	if err == nil {
		t.Fatalf("expected non-admin store creation to fail")
	}
}

func TestDeleteCustomerWithSalesConflicts(t *testing.T) {
	svc, _ := newTestService()
	ctx := adminCtx()

	if _, err := svc.Checkout(ctx, domain.CheckoutRequest{
		StoreID:    "store-dt01",
		CustomerID: "cust-sari",
		StaffID:    "staff-dewi",
		Items: []domain.CheckoutLine{
			{InventoryID: "inv-mie", Quantity: 1},
		},
	}); err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	if err := svc.DeleteCustomer(ctx, "cust-sari"); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict deleting a customer with sales, got %v", err)
	}

	// Archiving is the supported path for customers with history.
	archived := true
	updated, err := svc.UpdateCustomer(ctx, "cust-sari", domain.CustomerUpdateRequest{IsArchived: &archived})
	if err != nil {
		t.Fatalf("archive failed: %v", err)
	}
	if !updated.IsArchived {
		t.Fatalf("expected customer to be archived")
	}
}

func TestNewStoreEndToEnd(t *testing.T) {
	svc, _ := newTestService()
	ctx := adminCtx()

	created, err := svc.CreateStore(ctx, domain.StoreCreateRequest{
		BusinessID: "biz-demo",
		Code:       "kp02",
		Name:       "Toko Kedua Pasar",
	})
	if err != nil {
		t.Fatalf("create store failed: %v", err)
	}
	if created.Code != "KP02" {
		t.Fatalf("expected store code uppercased to KP02, got %s", created.Code)
	}

	item, err := svc.CreateInventoryItem(ctx, domain.InventoryCreateRequest{
		StoreID:      created.ID,
		Type:         domain.ItemTypeProduct,
		Name:         "Gula Pasir 1kg",
		SKU:          "sku-gula-01",
		Quantity:     30,
		CostPrice:    dec(t, "14000"),
		SellingPrice: dec(t, "17500"),
	})
	if err != nil {
		t.Fatalf("create item failed: %v", err)
	}

	staff, err := svc.CreateStaff(ctx, domain.StaffCreateRequest{
		StoreID: created.ID,
		Name:    "Rina Kurnia",
		Role:    "cashier",
	})
	if err != nil {
		t.Fatalf("create staff failed: %v", err)
	}

	customer, err := svc.CreateCustomer(ctx, domain.CustomerCreateRequest{
		StoreID: created.ID,
		Name:    "Hendra Gunawan",
	})
	if err != nil {
		t.Fatalf("create customer failed: %v", err)
	}
	if customer.CustomerNumber != "KP02001" {
		t.Fatalf("expected first customer number KP02001, got %s", customer.CustomerNumber)
	}

	result, err := svc.Checkout(ctx, domain.CheckoutRequest{
		StoreID:    created.ID,
		CustomerID: customer.ID,
		StaffID:    staff.ID,
		Items: []domain.CheckoutLine{
			{InventoryID: item.ID, Quantity: 4},
		},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if len(result.CheckoutIDs) != 1 {
		t.Fatalf("expected 1 checkout id, got %d", len(result.CheckoutIDs))
	}

	report, err := svc.ProfitLossReport(ctx, created.ID)
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}
	if len(report.Rows) != 1 {
		t.Fatalf("expected 1 report row, got %d", len(report.Rows))
	}
	row := report.Rows[0]
	if row.TotalQuantitySold != 4 || row.QuantityRemaining != 26 {
		t.Fatalf("unexpected sold/remaining: %d/%d", row.TotalQuantitySold, row.QuantityRemaining)
	}
	if !row.TotalRevenue.Equal(dec(t, "70000")) {
		t.Fatalf("expected revenue 70000, got %s", row.TotalRevenue)
	}
	if !row.TotalNetProfit.Equal(dec(t, "14000")) {
		t.Fatalf("expected net profit 14000, got %s", row.TotalNetProfit)
	}

	// A second, oversized checkout fails and leaves the ledger as-is.
	_, err = svc.Checkout(ctx, domain.CheckoutRequest{
		StoreID:    created.ID,
		CustomerID: customer.ID,
		StaffID:    staff.ID,
		Items: []domain.CheckoutLine{
			{InventoryID: item.ID, Quantity: 27},
		},
	})
	var stockErr *store.StockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected stock error on oversized checkout, got %v", err)
	}
	if stockErr.Available != 26 {
		t.Fatalf("expected 26 available in error, got %d", stockErr.Available)
	}
	after, err := svc.GetInventoryItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("get item failed: %v", err)
	}
	if after.Quantity != 26 {
		t.Fatalf("expected stock unchanged at 26, got %d", after.Quantity)
	}
}
