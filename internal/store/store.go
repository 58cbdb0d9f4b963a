package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"tokokas/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrInvalidOperation  = errors.New("invalid operation")
	ErrConflict          = errors.New("conflict")
)

// StockError reports a line item that cannot be fulfilled. It wraps
// ErrInsufficientStock so callers can match with errors.Is and still read
// the item name and available quantity for display.
type StockError struct {
	ItemName  string
	Available int
	Requested int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: have %d, want %d", e.ItemName, e.Available, e.Requested)
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }

// Message is the customer-facing text for a failed line item.
func (e *StockError) Message() string {
	return fmt.Sprintf("Sorry, we only have %d %s in stock.", e.Available, e.ItemName)
}

// SaleLine is one validated line item of a sale, priced by the service
// layer before it reaches the repository.
type SaleLine struct {
	InventoryID string
	Quantity    int
	UnitPrice   decimal.Decimal
	TotalPrice  decimal.Decimal
	IsProduct   bool
}

// SaleInput is the unit of work for CreateSale. The repository applies the
// whole input in a single transaction: orders, checkouts, transactions,
// stock decrements and the profit/loss refresh commit together or not at
// all.
type SaleInput struct {
	StoreID       string
	CustomerID    string
	StaffID       string
	PaymentMethod string
	Lines         []SaleLine
}

// SaleRecord is what CreateSale persisted, in line-item order.
type SaleRecord struct {
	Orders       []domain.Order
	Checkouts    []domain.Checkout
	Transactions []domain.Transaction
}

type Repository interface {
	CreateStore(ctx context.Context, s domain.Store) (*domain.Store, error)
	GetStore(ctx context.Context, id string) (*domain.Store, error)
	ListStores(ctx context.Context) ([]domain.Store, error)

	// AllocateCustomerNumber atomically claims the next per-store counter
	// value and returns the formatted number (store code + zero-padded
	// counter). Concurrent calls never observe the same value.
	AllocateCustomerNumber(ctx context.Context, storeID string) (string, error)

	CreateCustomer(ctx context.Context, c domain.Customer) (*domain.Customer, error)
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	ListCustomers(ctx context.Context, storeID string, includeArchived bool) ([]domain.Customer, error)
	UpdateCustomer(ctx context.Context, c domain.Customer) (*domain.Customer, error)
	// DeleteCustomer fails with ErrConflict while transactions reference
	// the customer; archiving is the supported removal path then.
	DeleteCustomer(ctx context.Context, id string) error

	CreateStaff(ctx context.Context, s domain.Staff) (*domain.Staff, error)
	GetStaff(ctx context.Context, id string) (*domain.Staff, error)
	ListStaff(ctx context.Context, storeID string, includeArchived bool) ([]domain.Staff, error)
	UpdateStaff(ctx context.Context, s domain.Staff) (*domain.Staff, error)
	DeleteStaff(ctx context.Context, id string) error

	CreateInventoryItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error)
	GetInventoryItem(ctx context.Context, id string) (*domain.InventoryItem, error)
	ListInventoryItems(ctx context.Context, storeID string) ([]domain.InventoryItem, error)
	UpdateInventoryItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error)

	// CreateSale applies a validated sale atomically. Stock rows are
	// re-checked under lock; losing a race surfaces as *StockError even if
	// the earlier service-side validation passed.
	CreateSale(ctx context.Context, input SaleInput) (*SaleRecord, error)

	// ApplyRestock reads the item under lock, resolves the new cost price
	// from the event's strategy against the locked on-hand state, raises the
	// quantity, and commits item update, event and refreshed aggregate
	// together. The event carries the request; the locked row is the source
	// of truth for current quantity and cost, so a sale committing after the
	// caller's read cannot be overwritten.
	ApplyRestock(ctx context.Context, itemID string, event domain.RestockEvent) (*domain.InventoryItem, error)
	ListRestockEvents(ctx context.Context, storeID string, inventoryID string, limit int) ([]domain.RestockEvent, error)

	RefreshProfitLoss(ctx context.Context, storeID string, inventoryID string) (*domain.ProfitLoss, error)
	GetProfitLoss(ctx context.Context, storeID string, inventoryID string) (*domain.ProfitLoss, error)
	ListProfitLoss(ctx context.Context, storeID string) ([]domain.ProfitLossRow, error)

	ListOrders(ctx context.Context, storeID string, inventoryID string, limit int) ([]domain.Order, error)
	ListTransactions(ctx context.Context, storeID string, customerID string, limit int) ([]domain.Transaction, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
