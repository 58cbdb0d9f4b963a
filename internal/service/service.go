package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tokokas/backend/internal/cache"
	"tokokas/backend/internal/domain"
	"tokokas/backend/internal/store"
	"tokokas/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo      store.Repository
	reports   cache.ReportCache
	reportTTL time.Duration
}

func New(repo store.Repository, reports cache.ReportCache, reportTTL time.Duration) *Service {
	if reports == nil {
		reports = cache.NoopReportCache{}
	}
	if reportTTL <= 0 {
		reportTTL = 30 * time.Second
	}

	return &Service{
		repo:      repo,
		reports:   reports,
		reportTTL: reportTTL,
	}
}

func (s *Service) CreateStore(ctx context.Context, req domain.StoreCreateRequest) (domain.Store, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Store{}, fmt.Errorf("admin role required")
	}

	created, err := s.repo.CreateStore(ctx, domain.Store{
		BusinessID: strings.TrimSpace(req.BusinessID),
		Code:       strings.ToUpper(strings.TrimSpace(req.Code)),
		Name:       strings.TrimSpace(req.Name),
	})
	if err != nil {
		return domain.Store{}, err
	}

	s.logAudit(ctx, "store_create", "store", created.ID, fmt.Sprintf("code=%s,name=%s", created.Code, created.Name))
	return *created, nil
}

func (s *Service) GetStore(ctx context.Context, id string) (domain.Store, error) {
	st, err := s.repo.GetStore(ctx, id)
	if err != nil {
		return domain.Store{}, err
	}
	return *st, nil
}

func (s *Service) ListStores(ctx context.Context) ([]domain.Store, error) {
	return s.repo.ListStores(ctx)
}

// CreateCustomer allocates the next per-store customer number and creates
// the customer with it. The allocation is a separate atomic step, so a
// failed create burns a number; the sequence stays duplicate-free either
// way.
func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (domain.Customer, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.StoreID == "" || req.Name == "" {
		return domain.Customer{}, store.ErrInvalidArgument
	}

	number, err := s.repo.AllocateCustomerNumber(ctx, req.StoreID)
	if err != nil {
		return domain.Customer{}, err
	}

	created, err := s.repo.CreateCustomer(ctx, domain.Customer{
		StoreID:        req.StoreID,
		CustomerNumber: number,
		Name:           req.Name,
		Phone:          strings.TrimSpace(req.Phone),
		Email:          strings.TrimSpace(req.Email),
	})
	if err != nil {
		return domain.Customer{}, err
	}

	s.logAudit(ctx, "customer_create", "customer", created.ID, fmt.Sprintf("number=%s,name=%s", created.CustomerNumber, created.Name))
	return *created, nil
}

func (s *Service) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	c, err := s.repo.GetCustomer(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}
	return *c, nil
}

func (s *Service) ListCustomers(ctx context.Context, storeID string, includeArchived bool) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx, storeID, includeArchived)
}

func (s *Service) UpdateCustomer(ctx context.Context, id string, req domain.CustomerUpdateRequest) (domain.Customer, error) {
	existing, err := s.repo.GetCustomer(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Customer{}, store.ErrInvalidArgument
		}
		updated.Name = name
	}
	if req.Phone != nil {
		updated.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Email != nil {
		updated.Email = strings.TrimSpace(*req.Email)
	}
	if req.IsArchived != nil {
		updated.IsArchived = *req.IsArchived
	}

	saved, err := s.repo.UpdateCustomer(ctx, updated)
	if err != nil {
		return domain.Customer{}, err
	}

	s.logAudit(ctx, "customer_update", "customer", saved.ID, fmt.Sprintf("archived=%t", saved.IsArchived))
	return *saved, nil
}

func (s *Service) DeleteCustomer(ctx context.Context, id string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return fmt.Errorf("admin role required")
	}

	if err := s.repo.DeleteCustomer(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "customer_delete", "customer", id, "")
	return nil
}

func (s *Service) CreateStaff(ctx context.Context, req domain.StaffCreateRequest) (domain.Staff, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Role = strings.TrimSpace(req.Role)
	if req.StoreID == "" || req.Name == "" || req.Role == "" {
		return domain.Staff{}, store.ErrInvalidArgument
	}

	created, err := s.repo.CreateStaff(ctx, domain.Staff{
		StoreID: req.StoreID,
		Name:    req.Name,
		Role:    req.Role,
	})
	if err != nil {
		return domain.Staff{}, err
	}

	s.logAudit(ctx, "staff_create", "staff", created.ID, fmt.Sprintf("name=%s,role=%s", created.Name, created.Role))
	return *created, nil
}

func (s *Service) GetStaff(ctx context.Context, id string) (domain.Staff, error) {
	member, err := s.repo.GetStaff(ctx, id)
	if err != nil {
		return domain.Staff{}, err
	}
	return *member, nil
}

func (s *Service) ListStaff(ctx context.Context, storeID string, includeArchived bool) ([]domain.Staff, error) {
	return s.repo.ListStaff(ctx, storeID, includeArchived)
}

func (s *Service) UpdateStaff(ctx context.Context, id string, req domain.StaffUpdateRequest) (domain.Staff, error) {
	existing, err := s.repo.GetStaff(ctx, id)
	if err != nil {
		return domain.Staff{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Staff{}, store.ErrInvalidArgument
		}
		updated.Name = name
	}
	if req.Role != nil {
		role := strings.TrimSpace(*req.Role)
		if role == "" {
			return domain.Staff{}, store.ErrInvalidArgument
		}
		updated.Role = role
	}
	if req.IsArchived != nil {
		updated.IsArchived = *req.IsArchived
	}

	saved, err := s.repo.UpdateStaff(ctx, updated)
	if err != nil {
		return domain.Staff{}, err
	}

	s.logAudit(ctx, "staff_update", "staff", saved.ID, fmt.Sprintf("archived=%t", saved.IsArchived))
	return *saved, nil
}

func (s *Service) DeleteStaff(ctx context.Context, id string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return fmt.Errorf("admin role required")
	}

	if err := s.repo.DeleteStaff(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "staff_delete", "staff", id, "")
	return nil
}

func (s *Service) CreateInventoryItem(ctx context.Context, req domain.InventoryCreateRequest) (domain.InventoryItem, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.SKU = strings.ToUpper(strings.TrimSpace(req.SKU))
	if req.StoreID == "" || req.Name == "" {
		return domain.InventoryItem{}, store.ErrInvalidArgument
	}
	if req.Type != domain.ItemTypeProduct && req.Type != domain.ItemTypeService {
		return domain.InventoryItem{}, store.ErrInvalidArgument
	}
	if req.Quantity < 0 || req.CostPrice.IsNegative() || req.SellingPrice.IsNegative() {
		return domain.InventoryItem{}, store.ErrInvalidArgument
	}
	if req.Type == domain.ItemTypeService && req.Quantity != 0 {
		return domain.InventoryItem{}, store.ErrInvalidArgument
	}

	created, err := s.repo.CreateInventoryItem(ctx, domain.InventoryItem{
		StoreID:      req.StoreID,
		Type:         req.Type,
		Name:         req.Name,
		SKU:          req.SKU,
		Quantity:     req.Quantity,
		CostPrice:    req.CostPrice,
		SellingPrice: req.SellingPrice,
	})
	if err != nil {
		return domain.InventoryItem{}, err
	}

	s.logAudit(ctx, "inventory_create", "inventory", created.ID, fmt.Sprintf("name=%s,type=%s,qty=%d", created.Name, created.Type, created.Quantity))
	return *created, nil
}

func (s *Service) GetInventoryItem(ctx context.Context, id string) (domain.InventoryItem, error) {
	item, err := s.repo.GetInventoryItem(ctx, id)
	if err != nil {
		return domain.InventoryItem{}, err
	}
	return *item, nil
}

func (s *Service) ListInventoryItems(ctx context.Context, storeID string) ([]domain.InventoryItem, error) {
	return s.repo.ListInventoryItems(ctx, storeID)
}

func (s *Service) UpdateInventoryItem(ctx context.Context, id string, req domain.InventoryUpdateRequest) (domain.InventoryItem, error) {
	existing, err := s.repo.GetInventoryItem(ctx, id)
	if err != nil {
		return domain.InventoryItem{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.InventoryItem{}, store.ErrInvalidArgument
		}
		updated.Name = name
	}
	if req.SKU != nil {
		updated.SKU = strings.ToUpper(strings.TrimSpace(*req.SKU))
	}
	if req.SellingPrice != nil {
		if req.SellingPrice.IsNegative() {
			return domain.InventoryItem{}, store.ErrInvalidArgument
		}
		updated.SellingPrice = *req.SellingPrice
	}

	saved, err := s.repo.UpdateInventoryItem(ctx, updated)
	if err != nil {
		return domain.InventoryItem{}, err
	}

	s.logAudit(ctx, "inventory_update", "inventory", saved.ID, fmt.Sprintf("name=%s", saved.Name))
	return *saved, nil
}

// Restock applies one stock intake. The cost strategy and the quantity
// increment are resolved by the repository against the row it holds locked,
// so a sale committing between this pre-check and the restock transaction
// still counts; the event plus the refreshed profit/loss aggregate land in
// the same storage transaction as the item update.
func (s *Service) Restock(ctx context.Context, itemID string, req domain.RestockRequest) (domain.InventoryItem, error) {
	item, err := s.repo.GetInventoryItem(ctx, itemID)
	if err != nil {
		return domain.InventoryItem{}, err
	}
	if item.Type != domain.ItemTypeProduct {
		return domain.InventoryItem{}, fmt.Errorf("%w: cannot restock a service item", store.ErrInvalidOperation)
	}
	if req.NewSellingPrice != nil && req.NewSellingPrice.IsNegative() {
		return domain.InventoryItem{}, fmt.Errorf("%w: selling price must not be negative", store.ErrInvalidArgument)
	}

	saved, err := s.repo.ApplyRestock(ctx, itemID, domain.RestockEvent{
		StoreID:         item.StoreID,
		InventoryID:     item.ID,
		QuantityAdded:   req.QuantityAdded,
		UnitCost:        req.UnitCost,
		CostStrategy:    req.CostStrategy,
		OverrideCost:    req.OverrideCost,
		NewSellingPrice: req.NewSellingPrice,
		Notes:           strings.TrimSpace(req.Notes),
		StaffID:         req.StaffID,
	})
	if err != nil {
		return domain.InventoryItem{}, err
	}

	s.invalidateReport(ctx, saved.StoreID)
	s.logAudit(ctx, "inventory_restock", "inventory", saved.ID,
		fmt.Sprintf("added=%d,strategy=%s,cost=%s", req.QuantityAdded, req.CostStrategy, saved.CostPrice))
	return *saved, nil
}

func (s *Service) ListRestockEvents(ctx context.Context, storeID string, inventoryID string, limit int) ([]domain.RestockEvent, error) {
	return s.repo.ListRestockEvents(ctx, storeID, inventoryID, limit)
}

// Checkout processes a multi-item sale. Validation runs against a snapshot
// for friendly errors; the repository re-validates under lock, so losing a
// stock race after this pre-check still fails cleanly with the same
// insufficient-stock shape. There is no idempotency key: if the call fails
// ambiguously (timeout after commit), the caller must inspect recent
// transactions before retrying.
func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutResult, error) {
	if req.StoreID == "" || req.CustomerID == "" || req.StaffID == "" {
		return domain.CheckoutResult{}, store.ErrInvalidArgument
	}
	if len(req.Items) == 0 {
		return domain.CheckoutResult{}, fmt.Errorf("%w: checkout requires at least one item", store.ErrInvalidArgument)
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = "cash"
	}
	if !isSupportedPaymentMethod(req.PaymentMethod) {
		return domain.CheckoutResult{}, fmt.Errorf("%w: unsupported payment method %q", store.ErrInvalidArgument, req.PaymentMethod)
	}

	if _, err := s.repo.GetStore(ctx, req.StoreID); err != nil {
		return domain.CheckoutResult{}, err
	}
	customer, err := s.repo.GetCustomer(ctx, req.CustomerID)
	if err != nil {
		return domain.CheckoutResult{}, err
	}
	if customer.StoreID != req.StoreID || customer.IsArchived {
		return domain.CheckoutResult{}, store.ErrNotFound
	}
	staff, err := s.repo.GetStaff(ctx, req.StaffID)
	if err != nil {
		return domain.CheckoutResult{}, err
	}
	if staff.StoreID != req.StoreID || staff.IsArchived {
		return domain.CheckoutResult{}, store.ErrNotFound
	}

	lines := make([]store.SaleLine, 0, len(req.Items))
	requested := make(map[string]int, len(req.Items))
	for _, reqItem := range req.Items {
		if reqItem.InventoryID == "" || reqItem.Quantity < 1 {
			return domain.CheckoutResult{}, fmt.Errorf("%w: each item needs an inventory id and a quantity of at least 1", store.ErrInvalidArgument)
		}
		item, err := s.repo.GetInventoryItem(ctx, reqItem.InventoryID)
		if err != nil {
			return domain.CheckoutResult{}, err
		}
		if item.StoreID != req.StoreID {
			return domain.CheckoutResult{}, store.ErrNotFound
		}

		unitPrice := item.SellingPrice
		if reqItem.CustomPrice != nil {
			if reqItem.CustomPrice.IsNegative() {
				return domain.CheckoutResult{}, fmt.Errorf("%w: custom price must not be negative", store.ErrInvalidArgument)
			}
			unitPrice = *reqItem.CustomPrice
		}

		if item.Type == domain.ItemTypeProduct {
			requested[item.ID] += reqItem.Quantity
			if requested[item.ID] > item.Quantity {
				return domain.CheckoutResult{}, &store.StockError{
					ItemName:  item.Name,
					Available: item.Quantity,
					Requested: requested[item.ID],
				}
			}
		}

		lines = append(lines, store.SaleLine{
			InventoryID: item.ID,
			Quantity:    reqItem.Quantity,
			UnitPrice:   unitPrice,
			TotalPrice:  unitPrice.Mul(decimal.NewFromInt(int64(reqItem.Quantity))),
			IsProduct:   item.Type == domain.ItemTypeProduct,
		})
	}

	record, err := s.repo.CreateSale(ctx, store.SaleInput{
		StoreID:       req.StoreID,
		CustomerID:    req.CustomerID,
		StaffID:       req.StaffID,
		PaymentMethod: req.PaymentMethod,
		Lines:         lines,
	})
	if err != nil {
		return domain.CheckoutResult{}, err
	}

	s.invalidateReport(ctx, req.StoreID)

	checkoutIDs := make([]string, 0, len(record.Checkouts))
	for _, chk := range record.Checkouts {
		checkoutIDs = append(checkoutIDs, chk.ID)
	}
	s.logAudit(ctx, "checkout", "sale", checkoutIDs[0],
		fmt.Sprintf("customer=%s,items=%d,payment=%s", customer.CustomerNumber, len(lines), req.PaymentMethod))

	return domain.CheckoutResult{
		Success:     true,
		Message:     "Checkout successful",
		CheckoutIDs: checkoutIDs,
	}, nil
}

func isSupportedPaymentMethod(method string) bool {
	switch method {
	case "cash", "card", "transfer", "qris":
		return true
	}
	return false
}

// ProfitLossReport serves the per-store report, via the cache when warm.
// Checkout and restock invalidate the cached entry, so a hit is never
// stale, just cheap.
func (s *Service) ProfitLossReport(ctx context.Context, storeID string) (domain.ProfitLossReport, error) {
	if storeID == "" {
		return domain.ProfitLossReport{}, store.ErrInvalidArgument
	}
	if _, err := s.repo.GetStore(ctx, storeID); err != nil {
		return domain.ProfitLossReport{}, err
	}

	key := reportCacheKey(storeID)
	if cached, ok, err := s.reports.Get(ctx, key); err == nil && ok {
		return *cached, nil
	}

	rows, err := s.repo.ListProfitLoss(ctx, storeID)
	if err != nil {
		return domain.ProfitLossReport{}, err
	}

	report := domain.ProfitLossReport{
		StoreID:     storeID,
		GeneratedAt: time.Now().UTC(),
		Rows:        rows,
	}
	if err := s.reports.Set(ctx, key, &report, s.reportTTL); err != nil {
		log.Printf("[service] WARN: failed to cache profit/loss report store=%s: %v", storeID, err)
	}
	return report, nil
}

// RefreshProfitLoss recomputes one item's aggregate from scratch. Safe to
// call any number of times; the result depends only on the order history
// and the item's current state.
func (s *Service) RefreshProfitLoss(ctx context.Context, storeID string, inventoryID string) (domain.ProfitLoss, error) {
	if storeID == "" || inventoryID == "" {
		return domain.ProfitLoss{}, store.ErrInvalidArgument
	}
	pl, err := s.repo.RefreshProfitLoss(ctx, storeID, inventoryID)
	if err != nil {
		return domain.ProfitLoss{}, err
	}
	s.invalidateReport(ctx, storeID)
	return *pl, nil
}

// RefreshAllProfitLoss backfills aggregates for every item in the store and
// returns how many were recomputed.
func (s *Service) RefreshAllProfitLoss(ctx context.Context, storeID string) (int, error) {
	if storeID == "" {
		return 0, store.ErrInvalidArgument
	}
	if _, err := s.repo.GetStore(ctx, storeID); err != nil {
		return 0, err
	}

	items, err := s.repo.ListInventoryItems(ctx, storeID)
	if err != nil {
		return 0, err
	}
	for _, item := range items {
		if _, err := s.repo.RefreshProfitLoss(ctx, storeID, item.ID); err != nil {
			return 0, fmt.Errorf("refresh %s: %w", item.ID, err)
		}
	}

	s.invalidateReport(ctx, storeID)
	s.logAudit(ctx, "profit_loss_refresh", "store", storeID, fmt.Sprintf("items=%d", len(items)))
	return len(items), nil
}

func (s *Service) ListTransactions(ctx context.Context, storeID string, customerID string, limit int) ([]domain.Transaction, error) {
	return s.repo.ListTransactions(ctx, storeID, customerID, limit)
}

func (s *Service) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	return s.repo.ListAuditLogs(ctx, limit)
}

func reportCacheKey(storeID string) string {
	return "tokokas:report:profit-loss:" + storeID
}

func (s *Service) invalidateReport(ctx context.Context, storeID string) {
	if err := s.reports.Invalidate(ctx, reportCacheKey(storeID)); err != nil {
		log.Printf("[service] WARN: failed to invalidate report cache store=%s: %v", storeID, err)
	}
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:         xid.New("audit"),
		Actor:      actor.Username,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
		CreatedAt:  time.Now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}
