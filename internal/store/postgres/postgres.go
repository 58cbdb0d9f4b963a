package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"tokokas/backend/internal/costing"
	"tokokas/backend/internal/domain"
	"tokokas/backend/internal/store"
	"tokokas/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateStore(ctx context.Context, st domain.Store) (*domain.Store, error) {
	st.Code = strings.ToUpper(strings.TrimSpace(st.Code))
	if st.Name == "" || st.BusinessID == "" || !validStoreCode(st.Code) {
		return nil, store.ErrInvalidArgument
	}
	if st.ID == "" {
		st.ID = xid.New("store")
	}
	if st.CreatedAt.IsZero() {
		st.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO stores (id, business_id, code, name, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, st.ID, st.BusinessID, st.Code, st.Name, st.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO store_counters (store_id, next_customer_number)
		VALUES ($1, 1)
		ON CONFLICT (store_id) DO NOTHING
	`, st.ID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

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

func (s *Store) GetStore(ctx context.Context, id string) (*domain.Store, error) {
	var st domain.Store
	err := s.db.QueryRowContext(ctx, `
		SELECT id, business_id, code, name, created_at
		FROM stores
		WHERE id = $1
	`, id).Scan(&st.ID, &st.BusinessID, &st.Code, &st.Name, &st.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	st.CreatedAt = st.CreatedAt.UTC()
	return &st, nil
}

func (s *Store) ListStores(ctx context.Context) ([]domain.Store, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, business_id, code, name, created_at
		FROM stores
		ORDER BY code
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stores := make([]domain.Store, 0, 16)
	for rows.Next() {
		var st domain.Store
		if err := rows.Scan(&st.ID, &st.BusinessID, &st.Code, &st.Name, &st.CreatedAt); err != nil {
			return nil, err
		}
		st.CreatedAt = st.CreatedAt.UTC()
		stores = append(stores, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return stores, nil
}

// AllocateCustomerNumber claims the next counter value in a single upsert.
// The statement is atomic on its own: concurrent calls serialize on the
// counter row and each RETURNING observes a distinct value.
func (s *Store) AllocateCustomerNumber(ctx context.Context, storeID string) (string, error) {
	var code string
	err := s.db.QueryRowContext(ctx, `
		SELECT code FROM stores WHERE id = $1
	`, storeID).Scan(&code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", store.ErrNotFound
		}
		return "", err
	}

	var claimed int
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO store_counters (store_id, next_customer_number)
		VALUES ($1, 2)
		ON CONFLICT (store_id)
		DO UPDATE SET next_customer_number = store_counters.next_customer_number + 1
		RETURNING next_customer_number - 1
	`, storeID).Scan(&claimed)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s%03d", code, claimed), nil
}

func (s *Store) CreateCustomer(ctx context.Context, c domain.Customer) (*domain.Customer, error) {
	if strings.TrimSpace(c.Name) == "" || c.CustomerNumber == "" {
		return nil, store.ErrInvalidArgument
	}
	if c.ID == "" {
		c.ID = xid.New("cust")
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, store_id, customer_number, name, phone, email, is_archived, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, c.ID, c.StoreID, c.CustomerNumber, c.Name, nullIfEmpty(c.Phone), nullIfEmpty(c.Email), c.IsArchived, c.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	created := c
	return &created, nil
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	var c domain.Customer
	var phone, email sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, store_id, customer_number, name, phone, email, is_archived, created_at
		FROM customers
		WHERE id = $1
	`, id).Scan(&c.ID, &c.StoreID, &c.CustomerNumber, &c.Name, &phone, &email, &c.IsArchived, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	c.Phone = phone.String
	c.Email = email.String
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

func (s *Store) ListCustomers(ctx context.Context, storeID string, includeArchived bool) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, store_id, customer_number, name, phone, email, is_archived, created_at
		FROM customers
		WHERE ($1 = '' OR store_id = $1) AND ($2 OR is_archived = false)
		ORDER BY customer_number
	`, storeID, includeArchived)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 64)
	for rows.Next() {
		var c domain.Customer
		var phone, email sql.NullString
		if err := rows.Scan(&c.ID, &c.StoreID, &c.CustomerNumber, &c.Name, &phone, &email, &c.IsArchived, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Phone = phone.String
		c.Email = email.String
		c.CreatedAt = c.CreatedAt.UTC()
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return customers, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, c domain.Customer) (*domain.Customer, error) {
	if strings.TrimSpace(c.Name) == "" {
		return nil, store.ErrInvalidArgument
	}

	err := s.db.QueryRowContext(ctx, `
		UPDATE customers
		SET name = $2, phone = $3, email = $4, is_archived = $5
		WHERE id = $1
		RETURNING store_id, customer_number, created_at
	`, c.ID, c.Name, nullIfEmpty(c.Phone), nullIfEmpty(c.Email), c.IsArchived).
		Scan(&c.StoreID, &c.CustomerNumber, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	updated := c
	return &updated, nil
}

func (s *Store) DeleteCustomer(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM customers
		WHERE id = $1
	`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CreateStaff(ctx context.Context, member domain.Staff) (*domain.Staff, error) {
	if strings.TrimSpace(member.Name) == "" || strings.TrimSpace(member.Role) == "" {
		return nil, store.ErrInvalidArgument
	}
	if member.ID == "" {
		member.ID = xid.New("staff")
	}
	if member.CreatedAt.IsZero() {
		member.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO staff (id, store_id, name, role, is_archived, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, member.ID, member.StoreID, member.Name, member.Role, member.IsArchived, member.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	created := member
	return &created, nil
}

func (s *Store) GetStaff(ctx context.Context, id string) (*domain.Staff, error) {
	var member domain.Staff
	err := s.db.QueryRowContext(ctx, `
		SELECT id, store_id, name, role, is_archived, created_at
		FROM staff
		WHERE id = $1
	`, id).Scan(&member.ID, &member.StoreID, &member.Name, &member.Role, &member.IsArchived, &member.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	member.CreatedAt = member.CreatedAt.UTC()
	return &member, nil
}

func (s *Store) ListStaff(ctx context.Context, storeID string, includeArchived bool) ([]domain.Staff, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, store_id, name, role, is_archived, created_at
		FROM staff
		WHERE ($1 = '' OR store_id = $1) AND ($2 OR is_archived = false)
		ORDER BY name
	`, storeID, includeArchived)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := make([]domain.Staff, 0, 16)
	for rows.Next() {
		var member domain.Staff
		if err := rows.Scan(&member.ID, &member.StoreID, &member.Name, &member.Role, &member.IsArchived, &member.CreatedAt); err != nil {
			return nil, err
		}
		member.CreatedAt = member.CreatedAt.UTC()
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return members, nil
}

func (s *Store) UpdateStaff(ctx context.Context, member domain.Staff) (*domain.Staff, error) {
	if strings.TrimSpace(member.Name) == "" || strings.TrimSpace(member.Role) == "" {
		return nil, store.ErrInvalidArgument
	}

	err := s.db.QueryRowContext(ctx, `
		UPDATE staff
		SET name = $2, role = $3, is_archived = $4
		WHERE id = $1
		RETURNING store_id, created_at
	`, member.ID, member.Name, member.Role, member.IsArchived).
		Scan(&member.StoreID, &member.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	member.CreatedAt = member.CreatedAt.UTC()
	updated := member
	return &updated, nil
}

func (s *Store) DeleteStaff(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM staff
		WHERE id = $1
	`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CreateInventoryItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO inventory_items (id, store_id, type, name, sku, quantity, cost_price, selling_price, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, item.ID, item.StoreID, item.Type, item.Name, nullIfEmpty(item.SKU), item.Quantity,
		item.CostPrice, item.SellingPrice, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

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

func (s *Store) GetInventoryItem(ctx context.Context, id string) (*domain.InventoryItem, error) {
	item, err := scanItem(s.db.QueryRowContext(ctx, `
		SELECT id, store_id, type, name, sku, quantity, cost_price, selling_price, created_at, updated_at
		FROM inventory_items
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return item, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*domain.InventoryItem, error) {
	var item domain.InventoryItem
	var sku sql.NullString
	err := row.Scan(&item.ID, &item.StoreID, &item.Type, &item.Name, &sku,
		&item.Quantity, &item.CostPrice, &item.SellingPrice, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	item.SKU = sku.String
	item.CreatedAt = item.CreatedAt.UTC()
	item.UpdatedAt = item.UpdatedAt.UTC()
	return &item, nil
}

func (s *Store) ListInventoryItems(ctx context.Context, storeID string) ([]domain.InventoryItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, store_id, type, name, sku, quantity, cost_price, selling_price, created_at, updated_at
		FROM inventory_items
		WHERE ($1 = '' OR store_id = $1)
		ORDER BY name
	`, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.InventoryItem, 0, 64)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) UpdateInventoryItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
	if strings.TrimSpace(item.Name) == "" || item.CostPrice.IsNegative() || item.SellingPrice.IsNegative() {
		return nil, store.ErrInvalidArgument
	}

	err := s.db.QueryRowContext(ctx, `
		UPDATE inventory_items
		SET name = $2, sku = $3, selling_price = $4, updated_at = now()
		WHERE id = $1
		RETURNING store_id, type, quantity, cost_price, created_at, updated_at
	`, item.ID, item.Name, nullIfEmpty(item.SKU), item.SellingPrice).
		Scan(&item.StoreID, &item.Type, &item.Quantity, &item.CostPrice, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	item.CreatedAt = item.CreatedAt.UTC()
	item.UpdatedAt = item.UpdatedAt.UTC()
	updated := item
	return &updated, nil
}

// CreateSale persists a validated sale as one serializable transaction.
// Stock rows are locked up front with FOR UPDATE, so the quantity check and
// decrement are decided under the lock; a concurrent sale that got there
// first is seen before any row is written.
func (s *Store) CreateSale(ctx context.Context, input store.SaleInput) (*store.SaleRecord, error) {
	if len(input.Lines) == 0 {
		return nil, store.ErrInvalidArgument
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var customerStore string
	err = tx.QueryRowContext(ctx, `
		SELECT store_id FROM customers WHERE id = $1
	`, input.CustomerID).Scan(&customerStore)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	var staffStore string
	err = tx.QueryRowContext(ctx, `
		SELECT store_id FROM staff WHERE id = $1
	`, input.StaffID).Scan(&staffStore)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if customerStore != input.StoreID || staffStore != input.StoreID {
		return nil, store.ErrNotFound
	}

	ids := uniqueInventoryIDs(input.Lines)
	itemRows, err := tx.QueryContext(ctx, `
		SELECT id, name, type, quantity
		FROM inventory_items
		WHERE store_id = $1 AND id = ANY($2)
		FOR UPDATE
	`, input.StoreID, ids)
	if err != nil {
		return nil, err
	}
	type itemState struct {
		name      string
		itemType  string
		remaining int
	}
	locked := make(map[string]itemState, len(ids))
	for itemRows.Next() {
		var id string
		var st itemState
		if err := itemRows.Scan(&id, &st.name, &st.itemType, &st.remaining); err != nil {
			_ = itemRows.Close()
			return nil, err
		}
		locked[id] = st
	}
	if err := itemRows.Err(); err != nil {
		_ = itemRows.Close()
		return nil, err
	}
	_ = itemRows.Close()

	// Validate every line against the locked state before writing anything.
	for _, line := range input.Lines {
		st, ok := locked[line.InventoryID]
		if !ok {
			return nil, store.ErrNotFound
		}
		if line.Quantity < 1 {
			return nil, store.ErrInvalidArgument
		}
		if st.itemType == domain.ItemTypeProduct {
			if st.remaining < line.Quantity {
				return nil, &store.StockError{
					ItemName:  st.name,
					Available: st.remaining,
					Requested: line.Quantity,
				}
			}
			st.remaining -= line.Quantity
			locked[line.InventoryID] = st
		}
	}

	now := time.Now().UTC()
	record := &store.SaleRecord{
		Orders:       make([]domain.Order, 0, len(input.Lines)),
		Checkouts:    make([]domain.Checkout, 0, len(input.Lines)),
		Transactions: make([]domain.Transaction, 0, len(input.Lines)),
	}
	for _, line := range input.Lines {
		st := locked[line.InventoryID]
		order := domain.Order{
			ID:          xid.New("ord"),
			StoreID:     input.StoreID,
			InventoryID: line.InventoryID,
			Quantity:    line.Quantity,
			TotalPrice:  line.TotalPrice,
			CreatedAt:   now,
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO orders (id, store_id, inventory_id, quantity, total_price, created_at)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, order.ID, order.StoreID, order.InventoryID, order.Quantity, order.TotalPrice, order.CreatedAt); err != nil {
			return nil, err
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
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO checkouts (id, store_id, staff_id, order_id, total_price, payment_method, payment_status, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, checkout.ID, checkout.StoreID, checkout.StaffID, checkout.OrderID, checkout.TotalPrice,
			checkout.PaymentMethod, checkout.PaymentStatus, checkout.CreatedAt); err != nil {
			return nil, err
		}

		trx := domain.Transaction{
			ID:          xid.New("trx"),
			StoreID:     input.StoreID,
			CheckoutID:  checkout.ID,
			CustomerID:  input.CustomerID,
			InventoryID: line.InventoryID,
			CreatedAt:   now,
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO transactions (id, store_id, checkout_id, customer_id, inventory_id, created_at)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, trx.ID, trx.StoreID, trx.CheckoutID, trx.CustomerID, trx.InventoryID, trx.CreatedAt); err != nil {
			return nil, err
		}

		if st.itemType == domain.ItemTypeProduct {
			res, err := tx.ExecContext(ctx, `
				UPDATE inventory_items
				SET quantity = quantity - $2, updated_at = now()
				WHERE id = $1 AND quantity >= $2
			`, line.InventoryID, line.Quantity)
			if err != nil {
				return nil, err
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return nil, err
			}
			// The FOR UPDATE lock makes this unreachable in practice; it
			// still guards against any path that skipped the lock.
			if affected == 0 {
				return nil, &store.StockError{
					ItemName:  st.name,
					Available: st.remaining,
					Requested: line.Quantity,
				}
			}
		}

		record.Orders = append(record.Orders, order)
		record.Checkouts = append(record.Checkouts, checkout)
		record.Transactions = append(record.Transactions, trx)
	}

	for _, id := range ids {
		if err := refreshProfitLossTx(ctx, tx, input.StoreID, id); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		if isSerializationFailure(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	return record, nil
}

func uniqueInventoryIDs(lines []store.SaleLine) []string {
	set := make(map[string]struct{}, len(lines))
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		if line.InventoryID == "" {
			continue
		}
		if _, seen := set[line.InventoryID]; seen {
			continue
		}
		set[line.InventoryID] = struct{}{}
		ids = append(ids, line.InventoryID)
	}
	return ids
}

func (s *Store) ApplyRestock(ctx context.Context, itemID string, event domain.RestockEvent) (*domain.InventoryItem, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	// The quantity increment and the cost strategy both resolve against the
	// row held under this lock, never against a caller snapshot. A sale that
	// committed after the caller's read is already reflected here.
	item, err := scanItem(tx.QueryRowContext(ctx, `
		SELECT id, store_id, type, name, sku, quantity, cost_price, selling_price, created_at, updated_at
		FROM inventory_items
		WHERE id = $1
		FOR UPDATE
	`, itemID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if item.Type != domain.ItemTypeProduct {
		return nil, fmt.Errorf("%w: cannot restock a service item", store.ErrInvalidOperation)
	}

	newCost, err := costing.NewCostPrice(costing.Input{
		Strategy:       event.CostStrategy,
		OnHandQuantity: item.Quantity,
		CurrentCost:    item.CostPrice,
		AddedQuantity:  event.QuantityAdded,
		UnitCost:       event.UnitCost,
		OverrideCost:   event.OverrideCost,
	})
	if err != nil {
		return nil, err
	}

	item.Quantity += event.QuantityAdded
	item.CostPrice = newCost
	if event.NewSellingPrice != nil {
		item.SellingPrice = *event.NewSellingPrice
	}
	if err := validateItem(*item); err != nil {
		return nil, err
	}

	err = tx.QueryRowContext(ctx, `
		UPDATE inventory_items
		SET quantity = $2, cost_price = $3, selling_price = $4, updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at
	`, item.ID, item.Quantity, item.CostPrice, item.SellingPrice).
		Scan(&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if event.ID == "" {
		event.ID = xid.New("rst")
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	event.StoreID = item.StoreID
	event.InventoryID = item.ID
	_, err = tx.ExecContext(ctx, `
		INSERT INTO restock_events (id, store_id, inventory_id, quantity_added, unit_cost, cost_strategy,
			override_cost, new_selling_price, notes, staff_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, event.ID, event.StoreID, event.InventoryID, event.QuantityAdded, event.UnitCost, event.CostStrategy,
		nullDecimal(event.OverrideCost), nullDecimal(event.NewSellingPrice), nullIfEmpty(event.Notes),
		nullIfEmpty(event.StaffID), event.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := refreshProfitLossTx(ctx, tx, item.StoreID, item.ID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		if isSerializationFailure(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	item.CreatedAt = item.CreatedAt.UTC()
	item.UpdatedAt = item.UpdatedAt.UTC()
	return item, nil
}

func (s *Store) ListRestockEvents(ctx context.Context, storeID string, inventoryID string, limit int) ([]domain.RestockEvent, error) {
	if limit < 1 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, store_id, inventory_id, quantity_added, unit_cost, cost_strategy,
			override_cost, new_selling_price, notes, staff_id, created_at
		FROM restock_events
		WHERE ($1 = '' OR store_id = $1) AND ($2 = '' OR inventory_id = $2)
		ORDER BY created_at DESC
		LIMIT $3
	`, storeID, inventoryID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]domain.RestockEvent, 0, limit)
	for rows.Next() {
		var event domain.RestockEvent
		var override, newPrice decimal.NullDecimal
		var notes, staffID sql.NullString
		if err := rows.Scan(&event.ID, &event.StoreID, &event.InventoryID, &event.QuantityAdded,
			&event.UnitCost, &event.CostStrategy, &override, &newPrice, &notes, &staffID, &event.CreatedAt); err != nil {
			return nil, err
		}
		if override.Valid {
			val := override.Decimal
			event.OverrideCost = &val
		}
		if newPrice.Valid {
			val := newPrice.Decimal
			event.NewSellingPrice = &val
		}
		event.Notes = notes.String
		event.StaffID = staffID.String
		event.CreatedAt = event.CreatedAt.UTC()
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// refreshProfitLossTx recomputes one item's aggregate from the full order
// history inside the caller's transaction. Net profit uses the item's
// current cost price.
func refreshProfitLossTx(ctx context.Context, tx *sql.Tx, storeID string, inventoryID string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO profit_loss (store_id, inventory_id, total_quantity_sold, quantity_remaining,
			total_revenue, total_net_profit, updated_at)
		SELECT i.store_id, i.id,
			COALESCE(SUM(o.quantity), 0),
			CASE WHEN i.type = 'product' THEN i.quantity ELSE 0 END,
			COALESCE(SUM(o.total_price), 0),
			COALESCE(SUM(o.total_price), 0) - COALESCE(SUM(o.quantity), 0) * i.cost_price,
			now()
		FROM inventory_items i
		LEFT JOIN orders o ON o.inventory_id = i.id AND o.store_id = i.store_id
		WHERE i.store_id = $1 AND i.id = $2
		GROUP BY i.store_id, i.id, i.type, i.quantity, i.cost_price
		ON CONFLICT (store_id, inventory_id) DO UPDATE SET
			total_quantity_sold = EXCLUDED.total_quantity_sold,
			quantity_remaining = EXCLUDED.quantity_remaining,
			total_revenue = EXCLUDED.total_revenue,
			total_net_profit = EXCLUDED.total_net_profit,
			updated_at = EXCLUDED.updated_at
	`, storeID, inventoryID)
	return err
}

func (s *Store) RefreshProfitLoss(ctx context.Context, storeID string, inventoryID string) (*domain.ProfitLoss, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var exists bool
	err = tx.QueryRowContext(ctx, `
		SELECT true FROM inventory_items WHERE id = $1 AND store_id = $2
	`, inventoryID, storeID).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	if err := refreshProfitLossTx(ctx, tx, storeID, inventoryID); err != nil {
		return nil, err
	}

	var pl domain.ProfitLoss
	err = tx.QueryRowContext(ctx, `
		SELECT store_id, inventory_id, total_quantity_sold, quantity_remaining,
			total_revenue, total_net_profit, updated_at
		FROM profit_loss
		WHERE store_id = $1 AND inventory_id = $2
	`, storeID, inventoryID).Scan(&pl.StoreID, &pl.InventoryID, &pl.TotalQuantitySold,
		&pl.QuantityRemaining, &pl.TotalRevenue, &pl.TotalNetProfit, &pl.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	pl.UpdatedAt = pl.UpdatedAt.UTC()
	return &pl, nil
}

func (s *Store) GetProfitLoss(ctx context.Context, storeID string, inventoryID string) (*domain.ProfitLoss, error) {
	var pl domain.ProfitLoss
	err := s.db.QueryRowContext(ctx, `
		SELECT store_id, inventory_id, total_quantity_sold, quantity_remaining,
			total_revenue, total_net_profit, updated_at
		FROM profit_loss
		WHERE store_id = $1 AND inventory_id = $2
	`, storeID, inventoryID).Scan(&pl.StoreID, &pl.InventoryID, &pl.TotalQuantitySold,
		&pl.QuantityRemaining, &pl.TotalRevenue, &pl.TotalNetProfit, &pl.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	pl.UpdatedAt = pl.UpdatedAt.UTC()
	return &pl, nil
}

func (s *Store) ListProfitLoss(ctx context.Context, storeID string) ([]domain.ProfitLossRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pl.store_id, pl.inventory_id, pl.total_quantity_sold, pl.quantity_remaining,
			pl.total_revenue, pl.total_net_profit, pl.updated_at, i.name, i.type
		FROM profit_loss pl
		JOIN inventory_items i ON i.id = pl.inventory_id
		WHERE ($1 = '' OR pl.store_id = $1)
		ORDER BY i.name
	`, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.ProfitLossRow, 0, 64)
	for rows.Next() {
		var row domain.ProfitLossRow
		if err := rows.Scan(&row.StoreID, &row.InventoryID, &row.TotalQuantitySold,
			&row.QuantityRemaining, &row.TotalRevenue, &row.TotalNetProfit,
			&row.UpdatedAt, &row.ItemName, &row.ItemType); err != nil {
			return nil, err
		}
		row.UpdatedAt = row.UpdatedAt.UTC()
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) ListOrders(ctx context.Context, storeID string, inventoryID string, limit int) ([]domain.Order, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, store_id, inventory_id, quantity, total_price, created_at
		FROM orders
		WHERE ($1 = '' OR store_id = $1) AND ($2 = '' OR inventory_id = $2)
		ORDER BY created_at DESC
		LIMIT $3
	`, storeID, inventoryID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]domain.Order, 0, limit)
	for rows.Next() {
		var order domain.Order
		if err := rows.Scan(&order.ID, &order.StoreID, &order.InventoryID,
			&order.Quantity, &order.TotalPrice, &order.CreatedAt); err != nil {
			return nil, err
		}
		order.CreatedAt = order.CreatedAt.UTC()
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *Store) ListTransactions(ctx context.Context, storeID string, customerID string, limit int) ([]domain.Transaction, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, store_id, checkout_id, customer_id, inventory_id, created_at
		FROM transactions
		WHERE ($1 = '' OR store_id = $1) AND ($2 = '' OR customer_id = $2)
		ORDER BY created_at DESC
		LIMIT $3
	`, storeID, customerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := make([]domain.Transaction, 0, limit)
	for rows.Next() {
		var trx domain.Transaction
		if err := rows.Scan(&trx.ID, &trx.StoreID, &trx.CheckoutID,
			&trx.CustomerID, &trx.InventoryID, &trx.CreatedAt); err != nil {
			return nil, err
		}
		trx.CreatedAt = trx.CreatedAt.UTC()
		transactions = append(transactions, trx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return transactions, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, entry.ID, entry.Actor, entry.Action, entry.EntityType, nullIfEmpty(entry.EntityID),
		nullIfEmpty(entry.Detail), entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		var entityID, detail sql.NullString
		if err := rows.Scan(&entry.ID, &entry.Actor, &entry.Action, &entry.EntityType,
			&entityID, &detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.EntityID = entityID.String
		entry.Detail = detail.String
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" {
		return store.ErrInvalidArgument
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_accounts (username, password, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil && isUniqueViolation(err) {
		return store.ErrConflict
	}
	return err
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM user_accounts
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE user_accounts
		SET password = $2
		WHERE username = $1
	`, strings.ToLower(strings.TrimSpace(username)), password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}

// isSerializationFailure matches SQLSTATE 40001. Serializable sale and
// restock transactions that lose a race surface this; callers map it to
// ErrConflict so clients retry.
func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullDecimal(val *decimal.Decimal) any {
	if val == nil {
		return nil
	}
	return *val
}
