package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"tokokas/backend/internal/costing"
	"tokokas/backend/internal/domain"
	"tokokas/backend/internal/store"
	"tokokas/backend/internal/xid"
)

// Store is the in-memory repository used for dev mode and tests. A single
// mutex serializes writes, which gives multi-item sales the same
// all-or-nothing behavior the SQL backend gets from transactions: every
// write method validates the whole input before mutating anything.
type Store struct {
	mu              sync.RWMutex
	stores          map[string]domain.Store
	counters        map[string]int
	customers       map[string]domain.Customer
	staff           map[string]domain.Staff
	items           map[string]domain.InventoryItem
	orders          []domain.Order
	checkouts       []domain.Checkout
	transactions    []domain.Transaction
	restockEvents   []domain.RestockEvent
	profitLoss      map[string]domain.ProfitLoss
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		stores:          make(map[string]domain.Store),
		counters:        make(map[string]int),
		customers:       make(map[string]domain.Customer),
		staff:           make(map[string]domain.Staff),
		items:           make(map[string]domain.InventoryItem),
		orders:          make([]domain.Order, 0, 128),
		checkouts:       make([]domain.Checkout, 0, 128),
		transactions:    make([]domain.Transaction, 0, 128),
		restockEvents:   make([]domain.RestockEvent, 0, 32),
		profitLoss:      make(map[string]domain.ProfitLoss),
		auditLogs:       make([]domain.AuditLog, 0, 128),
		usersByUsername: make(map[string]domain.UserAccount),
	}
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD
// environment variables. If unset, hardcoded dev defaults are used with a
// warning printed to stdout. These credentials are never used in production
// (the backend uses PostgreSQL when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"cashier", cashierPwd, "cashier"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func mustDecimal(val string) decimal.Decimal {
	d, err := decimal.NewFromString(val)
	if err != nil {
		log.Fatalf("[memory-store] bad seed decimal %q: %v", val, err)
	}
	return d
}

// NewSeeded returns a store pre-loaded with a demo shop: one store (code
// DT01), a handful of products plus one service, two customers and a
// cashier. Tests and dev mode both start from this data.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()

	demoStore := domain.Store{
		ID:         "store-dt01",
		BusinessID: "biz-demo",
		Code:       "DT01",
		Name:       "Toko Demo Thamrin",
		CreatedAt:  now,
	}
	s.stores[demoStore.ID] = demoStore
	s.counters[demoStore.ID] = 1

	items := []domain.InventoryItem{
		{ID: "inv-mie", Type: domain.ItemTypeProduct, Name: "Mie Goreng Instan", SKU: "SKU-MIE-01", Quantity: 120, CostPrice: mustDecimal("2700"), SellingPrice: mustDecimal("3500")},
		{ID: "inv-telur", Type: domain.ItemTypeProduct, Name: "Telur 10 Butir", SKU: "SKU-TELUR-01", Quantity: 80, CostPrice: mustDecimal("23000"), SellingPrice: mustDecimal("26500")},
		{ID: "inv-susu", Type: domain.ItemTypeProduct, Name: "Susu UHT 1L", SKU: "SKU-SUSU-01", Quantity: 60, CostPrice: mustDecimal("13600"), SellingPrice: mustDecimal("18900")},
		{ID: "inv-kopi", Type: domain.ItemTypeProduct, Name: "Kopi Sachet", SKU: "SKU-KOPI-01", Quantity: 200, CostPrice: mustDecimal("1700"), SellingPrice: mustDecimal("2600")},
		{ID: "inv-roti", Type: domain.ItemTypeProduct, Name: "Roti Tawar", SKU: "SKU-ROTI-01", Quantity: 40, CostPrice: mustDecimal("12500"), SellingPrice: mustDecimal("17800")},
		{ID: "inv-bungkus", Type: domain.ItemTypeService, Name: "Jasa Bungkus Kado", SKU: "SVC-BUNGKUS-01", Quantity: 0, CostPrice: mustDecimal("0"), SellingPrice: mustDecimal("5000")},
	}
	for _, item := range items {
		item.StoreID = demoStore.ID
		item.CreatedAt = now
		item.UpdatedAt = now
		s.items[item.ID] = item
	}

	for _, c := range []domain.Customer{
		{ID: "cust-budi", Name: "Budi Santoso", Phone: "+62-812-1111-0001"},
		{ID: "cust-sari", Name: "Sari Lestari", Phone: "+62-812-1111-0002"},
	} {
		c.StoreID = demoStore.ID
		c.CustomerNumber = fmt.Sprintf("%s%03d", demoStore.Code, s.counters[demoStore.ID])
		c.CreatedAt = now
		s.counters[demoStore.ID]++
		s.customers[c.ID] = c
	}

	cashier := domain.Staff{
		ID:        "staff-dewi",
		StoreID:   demoStore.ID,
		Name:      "Dewi Anggraini",
		Role:      "cashier",
		CreatedAt: now,
	}
	s.staff[cashier.ID] = cashier

	s.usersByUsername = seedUsers()
	return s
}

func plKey(storeID string, inventoryID string) string {
	return storeID + "|" + inventoryID
}

func (s *Store) CreateStore(_ context.Context, st domain.Store) (*domain.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	code := strings.ToUpper(strings.TrimSpace(st.Code))
	if st.Name == "" || st.BusinessID == "" || !validStoreCode(code) {
		return nil, store.ErrInvalidArgument
	}
	for _, existing := range s.stores {
		if existing.Code == code {
			return nil, store.ErrConflict
		}
	}

	if st.ID == "" {
		st.ID = xid.New("store")
	}
	if st.CreatedAt.IsZero() {
		st.CreatedAt = time.Now().UTC()
	}
	st.Code = code
	s.stores[st.ID] = st
	s.counters[st.ID] = 1
	created := st
	return &created, nil
}

func validStoreCode(code string) bool {
	if code == "" || len(code) > 10 {
		return false
	}
	for _, r := range code {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

func (s *Store) GetStore(_ context.Context, id string) (*domain.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, exists := s.stores[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copySt := st
	return &copySt, nil
}

func (s *Store) ListStores(_ context.Context) ([]domain.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Store, 0, len(s.stores))
	for _, st := range s.stores {
		result = append(result, st)
	}
	slices.SortFunc(result, func(a, b domain.Store) int {
		return strings.Compare(a.Code, b.Code)
	})
	return result, nil
}

func (s *Store) AllocateCustomerNumber(_ context.Context, storeID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, exists := s.stores[storeID]
	if !exists {
		return "", store.ErrNotFound
	}
	n := s.counters[storeID]
	if n < 1 {
		n = 1
	}
	s.counters[storeID] = n + 1
	return fmt.Sprintf("%s%03d", st.Code, n), nil
}

func (s *Store) CreateCustomer(_ context.Context, c domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.stores[c.StoreID]; !exists {
		return nil, store.ErrNotFound
	}
	if strings.TrimSpace(c.Name) == "" || c.CustomerNumber == "" {
		return nil, store.ErrInvalidArgument
	}

	if c.ID == "" {
		c.ID = xid.New("cust")
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	s.customers[c.ID] = c
	created := c
	return &created, nil
}

func (s *Store) GetCustomer(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, exists := s.customers[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyC := c
	return &copyC, nil
}

func (s *Store) ListCustomers(_ context.Context, storeID string, includeArchived bool) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		if storeID != "" && c.StoreID != storeID {
			continue
		}
		if c.IsArchived && !includeArchived {
			continue
		}
		result = append(result, c)
	}
	slices.SortFunc(result, func(a, b domain.Customer) int {
		return strings.Compare(a.CustomerNumber, b.CustomerNumber)
	})
	return result, nil
}

func (s *Store) UpdateCustomer(_ context.Context, c domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.customers[c.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if strings.TrimSpace(c.Name) == "" {
		return nil, store.ErrInvalidArgument
	}
	// Identity fields never change on update.
	c.StoreID = existing.StoreID
	c.CustomerNumber = existing.CustomerNumber
	c.CreatedAt = existing.CreatedAt
	s.customers[c.ID] = c
	updated := c
	return &updated, nil
}

func (s *Store) DeleteCustomer(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.customers[id]; !exists {
		return store.ErrNotFound
	}
	for _, tx := range s.transactions {
		if tx.CustomerID == id {
			return store.ErrConflict
		}
	}
	delete(s.customers, id)
	return nil
}

func (s *Store) CreateStaff(_ context.Context, member domain.Staff) (*domain.Staff, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.stores[member.StoreID]; !exists {
		return nil, store.ErrNotFound
	}
	if strings.TrimSpace(member.Name) == "" || strings.TrimSpace(member.Role) == "" {
		return nil, store.ErrInvalidArgument
	}

	if member.ID == "" {
		member.ID = xid.New("staff")
	}
	if member.CreatedAt.IsZero() {
		member.CreatedAt = time.Now().UTC()
	}
	s.staff[member.ID] = member
	created := member
	return &created, nil
}

func (s *Store) GetStaff(_ context.Context, id string) (*domain.Staff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	member, exists := s.staff[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyMember := member
	return &copyMember, nil
}

func (s *Store) ListStaff(_ context.Context, storeID string, includeArchived bool) ([]domain.Staff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Staff, 0, len(s.staff))
	for _, member := range s.staff {
		if storeID != "" && member.StoreID != storeID {
			continue
		}
		if member.IsArchived && !includeArchived {
			continue
		}
		result = append(result, member)
	}
	slices.SortFunc(result, func(a, b domain.Staff) int {
		return strings.Compare(a.Name, b.Name)
	})
	return result, nil
}

func (s *Store) UpdateStaff(_ context.Context, member domain.Staff) (*domain.Staff, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.staff[member.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if strings.TrimSpace(member.Name) == "" || strings.TrimSpace(member.Role) == "" {
		return nil, store.ErrInvalidArgument
	}
	member.StoreID = existing.StoreID
	member.CreatedAt = existing.CreatedAt
	s.staff[member.ID] = member
	updated := member
	return &updated, nil
}

func (s *Store) DeleteStaff(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.staff[id]; !exists {
		return store.ErrNotFound
	}
	for _, chk := range s.checkouts {
		if chk.StaffID == id {
			return store.ErrConflict
		}
	}
	delete(s.staff, id)
	return nil
}

func (s *Store) CreateInventoryItem(_ context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.stores[item.StoreID]; !exists {
		return nil, store.ErrNotFound
	}
	if err := validateItem(item); err != nil {
		return nil, err
	}

	if item.ID == "" {
		item.ID = xid.New("inv")
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	s.items[item.ID] = item
	created := item
	return &created, nil
}

func validateItem(item domain.InventoryItem) error {
	if strings.TrimSpace(item.Name) == "" {
		return store.ErrInvalidArgument
	}
	if item.Type != domain.ItemTypeProduct && item.Type != domain.ItemTypeService {
		return store.ErrInvalidArgument
	}
	if item.Quantity < 0 || item.CostPrice.IsNegative() || item.SellingPrice.IsNegative() {
		return store.ErrInvalidArgument
	}
	if item.Type == domain.ItemTypeService && item.Quantity != 0 {
		return store.ErrInvalidArgument
	}
	return nil
}

func (s *Store) GetInventoryItem(_ context.Context, id string) (*domain.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, exists := s.items[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyItem := item
	return &copyItem, nil
}

func (s *Store) ListInventoryItems(_ context.Context, storeID string) ([]domain.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.InventoryItem, 0, len(s.items))
	for _, item := range s.items {
		if storeID != "" && item.StoreID != storeID {
			continue
		}
		result = append(result, item)
	}
	slices.SortFunc(result, func(a, b domain.InventoryItem) int {
		return strings.Compare(a.Name, b.Name)
	})
	return result, nil
}

func (s *Store) UpdateInventoryItem(_ context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.items[item.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	item.StoreID = existing.StoreID
	item.Type = existing.Type
	item.CreatedAt = existing.CreatedAt
	if err := validateItem(item); err != nil {
		return nil, err
	}
	item.UpdatedAt = time.Now().UTC()
	s.items[item.ID] = item
	updated := item
	return &updated, nil
}

func (s *Store) CreateSale(_ context.Context, input store.SaleInput) (*store.SaleRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.stores[input.StoreID]; !exists {
		return nil, store.ErrNotFound
	}
	if _, exists := s.customers[input.CustomerID]; !exists {
		return nil, store.ErrNotFound
	}
	if _, exists := s.staff[input.StaffID]; !exists {
		return nil, store.ErrNotFound
	}
	if len(input.Lines) == 0 {
		return nil, store.ErrInvalidArgument
	}

	// Stage stock changes first so a failing line leaves nothing behind.
	staged := make(map[string]domain.InventoryItem, len(input.Lines))
	for _, line := range input.Lines {
		item, exists := s.items[line.InventoryID]
		if !exists || item.StoreID != input.StoreID {
			return nil, store.ErrNotFound
		}
		if staged[item.ID].ID != "" {
			item = staged[item.ID]
		}
		if item.Type == domain.ItemTypeProduct {
			if item.Quantity < line.Quantity {
				return nil, &store.StockError{
					ItemName:  item.Name,
					Available: item.Quantity,
					Requested: line.Quantity,
				}
			}
			item.Quantity -= line.Quantity
			item.UpdatedAt = time.Now().UTC()
		}
		staged[item.ID] = item
	}

	now := time.Now().UTC()
	record := &store.SaleRecord{
		Orders:       make([]domain.Order, 0, len(input.Lines)),
		Checkouts:    make([]domain.Checkout, 0, len(input.Lines)),
		Transactions: make([]domain.Transaction, 0, len(input.Lines)),
	}
	for _, line := range input.Lines {
		order := domain.Order{
			ID:          xid.New("ord"),
			StoreID:     input.StoreID,
			InventoryID: line.InventoryID,
			Quantity:    line.Quantity,
			TotalPrice:  line.TotalPrice,
			CreatedAt:   now,
		}
		checkout := domain.Checkout{
			ID:            xid.New("chk"),
			StoreID:       input.StoreID,
			StaffID:       input.StaffID,
			OrderID:       order.ID,
			TotalPrice:    line.TotalPrice,
			PaymentMethod: input.PaymentMethod,
			PaymentStatus: domain.PaymentStatusPaid,
			CreatedAt:     now,
		}
		tx := domain.Transaction{
			ID:          xid.New("trx"),
			StoreID:     input.StoreID,
			CheckoutID:  checkout.ID,
			CustomerID:  input.CustomerID,
			InventoryID: line.InventoryID,
			CreatedAt:   now,
		}
		s.orders = append(s.orders, order)
		s.checkouts = append(s.checkouts, checkout)
		s.transactions = append(s.transactions, tx)
		record.Orders = append(record.Orders, order)
		record.Checkouts = append(record.Checkouts, checkout)
		record.Transactions = append(record.Transactions, tx)
	}
	for id, item := range staged {
		s.items[id] = item
	}
	for id := range staged {
		s.refreshProfitLossLocked(input.StoreID, id)
	}
	return record, nil
}

func (s *Store) ApplyRestock(_ context.Context, itemID string, event domain.RestockEvent) (*domain.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Quantity and cost resolve against the state held under the lock, so a
	// sale that landed after the caller's read is never overwritten.
	existing, exists := s.items[itemID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if existing.Type != domain.ItemTypeProduct {
		return nil, fmt.Errorf("%w: cannot restock a service item", store.ErrInvalidOperation)
	}

	newCost, err := costing.NewCostPrice(costing.Input{
		Strategy:       event.CostStrategy,
		OnHandQuantity: existing.Quantity,
		CurrentCost:    existing.CostPrice,
		AddedQuantity:  event.QuantityAdded,
		UnitCost:       event.UnitCost,
		OverrideCost:   event.OverrideCost,
	})
	if err != nil {
		return nil, err
	}

	item := existing
	item.Quantity += event.QuantityAdded
	item.CostPrice = newCost
	if event.NewSellingPrice != nil {
		item.SellingPrice = *event.NewSellingPrice
	}
	if err := validateItem(item); err != nil {
		return nil, err
	}
	item.UpdatedAt = time.Now().UTC()

	if event.ID == "" {
		event.ID = xid.New("rst")
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	event.StoreID = item.StoreID
	event.InventoryID = item.ID

	s.items[item.ID] = item
	s.restockEvents = append(s.restockEvents, event)
	s.refreshProfitLossLocked(item.StoreID, item.ID)

	updated := item
	return &updated, nil
}

func (s *Store) ListRestockEvents(_ context.Context, storeID string, inventoryID string, limit int) ([]domain.RestockEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.RestockEvent, 0, 16)
	for i := len(s.restockEvents) - 1; i >= 0; i-- {
		event := s.restockEvents[i]
		if storeID != "" && event.StoreID != storeID {
			continue
		}
		if inventoryID != "" && event.InventoryID != inventoryID {
			continue
		}
		result = append(result, event)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

// refreshProfitLossLocked recomputes the aggregate for one item from the
// full order history. Caller must hold the write lock.
func (s *Store) refreshProfitLossLocked(storeID string, inventoryID string) {
	item, exists := s.items[inventoryID]
	if !exists || item.StoreID != storeID {
		return
	}

	sold := 0
	revenue := decimal.Zero
	for _, order := range s.orders {
		if order.StoreID != storeID || order.InventoryID != inventoryID {
			continue
		}
		sold += order.Quantity
		revenue = revenue.Add(order.TotalPrice)
	}

	cost := decimal.NewFromInt(int64(sold)).Mul(item.CostPrice)
	remaining := 0
	if item.Type == domain.ItemTypeProduct {
		remaining = item.Quantity
	}

	s.profitLoss[plKey(storeID, inventoryID)] = domain.ProfitLoss{
		StoreID:           storeID,
		InventoryID:       inventoryID,
		TotalQuantitySold: sold,
		QuantityRemaining: remaining,
		TotalRevenue:      revenue,
		TotalNetProfit:    revenue.Sub(cost),
		UpdatedAt:         time.Now().UTC(),
	}
}

func (s *Store) RefreshProfitLoss(_ context.Context, storeID string, inventoryID string) (*domain.ProfitLoss, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, exists := s.items[inventoryID]
	if !exists || item.StoreID != storeID {
		return nil, store.ErrNotFound
	}
	s.refreshProfitLossLocked(storeID, inventoryID)
	pl := s.profitLoss[plKey(storeID, inventoryID)]
	return &pl, nil
}

func (s *Store) GetProfitLoss(_ context.Context, storeID string, inventoryID string) (*domain.ProfitLoss, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pl, exists := s.profitLoss[plKey(storeID, inventoryID)]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyPL := pl
	return &copyPL, nil
}

func (s *Store) ListProfitLoss(_ context.Context, storeID string) ([]domain.ProfitLossRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.ProfitLossRow, 0, len(s.profitLoss))
	for _, pl := range s.profitLoss {
		if storeID != "" && pl.StoreID != storeID {
			continue
		}
		row := domain.ProfitLossRow{ProfitLoss: pl}
		if item, exists := s.items[pl.InventoryID]; exists {
			row.ItemName = item.Name
			row.ItemType = item.Type
		}
		result = append(result, row)
	}
	slices.SortFunc(result, func(a, b domain.ProfitLossRow) int {
		return strings.Compare(a.ItemName, b.ItemName)
	})
	return result, nil
}

func (s *Store) ListOrders(_ context.Context, storeID string, inventoryID string, limit int) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Order, 0, 32)
	for i := len(s.orders) - 1; i >= 0; i-- {
		order := s.orders[i]
		if storeID != "" && order.StoreID != storeID {
			continue
		}
		if inventoryID != "" && order.InventoryID != inventoryID {
			continue
		}
		result = append(result, order)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (s *Store) ListTransactions(_ context.Context, storeID string, customerID string, limit int) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Transaction, 0, 32)
	for i := len(s.transactions) - 1; i >= 0; i-- {
		tx := s.transactions[i]
		if storeID != "" && tx.StoreID != storeID {
			continue
		}
		if customerID != "" && tx.CustomerID != customerID {
			continue
		}
		result = append(result, tx)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, 32)
	for i := len(s.auditLogs) - 1; i >= 0; i-- {
		result = append(result, s.auditLogs[i])
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" {
		return store.ErrInvalidArgument
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrConflict
	}
	user.Username = username
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.usersByUsername[username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		result = append(result, user)
	}
	slices.SortFunc(result, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return result, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}
