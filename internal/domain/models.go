package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Inventory item kinds. Services carry no stock and cannot be restocked.
const (
	ItemTypeProduct = "product"
	ItemTypeService = "service"
)

// Restock cost strategies.
const (
	CostStrategyKeep     = "keep"
	CostStrategyLast     = "last"
	CostStrategyWeighted = "weighted"
	CostStrategyOverride = "override"
)

// PaymentStatusPaid is the only status checkout records today; unpaid or
// partially-paid flows settle outside this system.
const PaymentStatusPaid = "paid"

type Store struct {
	ID         string    `json:"id"`
	BusinessID string    `json:"business_id"`
	Code       string    `json:"code"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
}

type Customer struct {
	ID             string    `json:"id"`
	StoreID        string    `json:"store_id"`
	CustomerNumber string    `json:"customer_number"`
	Name           string    `json:"name"`
	Phone          string    `json:"phone,omitempty"`
	Email          string    `json:"email,omitempty"`
	IsArchived     bool      `json:"is_archived"`
	CreatedAt      time.Time `json:"created_at"`
}

type Staff struct {
	ID         string    `json:"id"`
	StoreID    string    `json:"store_id"`
	Name       string    `json:"name"`
	Role       string    `json:"role"`
	IsArchived bool      `json:"is_archived"`
	CreatedAt  time.Time `json:"created_at"`
}

type InventoryItem struct {
	ID           string          `json:"id"`
	StoreID      string          `json:"store_id"`
	Type         string          `json:"type"`
	Name         string          `json:"name"`
	SKU          string          `json:"sku,omitempty"`
	Quantity     int             `json:"quantity"`
	CostPrice    decimal.Decimal `json:"cost_price"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Order is an append-only line-item record of a sale.
type Order struct {
	ID          string          `json:"id"`
	StoreID     string          `json:"store_id"`
	InventoryID string          `json:"inventory_id"`
	Quantity    int             `json:"quantity"`
	TotalPrice  decimal.Decimal `json:"total_price"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Checkout wraps a single order with payment details. Append-only.
type Checkout struct {
	ID            string          `json:"id"`
	StoreID       string          `json:"store_id"`
	StaffID       string          `json:"staff_id"`
	OrderID       string          `json:"order_id"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	PaymentMethod string          `json:"payment_method"`
	PaymentStatus string          `json:"payment_status"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Transaction links a checkout to the customer it was sold to. Append-only.
type Transaction struct {
	ID          string    `json:"id"`
	StoreID     string    `json:"store_id"`
	CheckoutID  string    `json:"checkout_id"`
	CustomerID  string    `json:"customer_id"`
	InventoryID string    `json:"inventory_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// RestockEvent records one stock intake and the costing decision applied
// to it. Append-only.
type RestockEvent struct {
	ID              string           `json:"id"`
	StoreID         string           `json:"store_id"`
	InventoryID     string           `json:"inventory_id"`
	QuantityAdded   int              `json:"quantity_added"`
	UnitCost        decimal.Decimal  `json:"unit_cost"`
	CostStrategy    string           `json:"cost_strategy"`
	OverrideCost    *decimal.Decimal `json:"override_cost,omitempty"`
	NewSellingPrice *decimal.Decimal `json:"new_selling_price,omitempty"`
	Notes           string           `json:"notes,omitempty"`
	StaffID         string           `json:"staff_id"`
	CreatedAt       time.Time        `json:"created_at"`
}

// ProfitLoss is the derived per-item aggregate, recomputed from the full
// order history. Net profit is measured against the item's current cost
// price, not the cost at time of sale.
type ProfitLoss struct {
	StoreID           string          `json:"store_id"`
	InventoryID       string          `json:"inventory_id"`
	TotalQuantitySold int             `json:"total_quantity_sold"`
	QuantityRemaining int             `json:"quantity_remaining"`
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	TotalNetProfit    decimal.Decimal `json:"total_net_profit"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// ProfitLossRow joins the aggregate with item display fields for reports.
type ProfitLossRow struct {
	ProfitLoss
	ItemName string `json:"item_name"`
	ItemType string `json:"item_type"`
}

type ProfitLossReport struct {
	StoreID     string          `json:"store_id"`
	GeneratedAt time.Time       `json:"generated_at"`
	Rows        []ProfitLossRow `json:"rows"`
}

type AuditLog struct {
	ID         string    `json:"id"`
	Actor      string    `json:"actor"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Detail     string    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type UserAccount struct {
	Username  string    `json:"username"`
	Password  string    `json:"-"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// Actor identifies the authenticated user attached to a request context.
type Actor struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type CashierCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CashierUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type StoreCreateRequest struct {
	BusinessID string `json:"business_id"`
	Code       string `json:"code"`
	Name       string `json:"name"`
}

type CustomerCreateRequest struct {
	StoreID string `json:"store_id"`
	Name    string `json:"name"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
}

type CustomerUpdateRequest struct {
	Name       *string `json:"name,omitempty"`
	Phone      *string `json:"phone,omitempty"`
	Email      *string `json:"email,omitempty"`
	IsArchived *bool   `json:"is_archived,omitempty"`
}

type StaffCreateRequest struct {
	StoreID string `json:"store_id"`
	Name    string `json:"name"`
	Role    string `json:"role"`
}

type StaffUpdateRequest struct {
	Name       *string `json:"name,omitempty"`
	Role       *string `json:"role,omitempty"`
	IsArchived *bool   `json:"is_archived,omitempty"`
}

type InventoryCreateRequest struct {
	StoreID      string          `json:"store_id"`
	Type         string          `json:"type"`
	Name         string          `json:"name"`
	SKU          string          `json:"sku,omitempty"`
	Quantity     int             `json:"quantity"`
	CostPrice    decimal.Decimal `json:"cost_price"`
	SellingPrice decimal.Decimal `json:"selling_price"`
}

type InventoryUpdateRequest struct {
	Name         *string          `json:"name,omitempty"`
	SKU          *string          `json:"sku,omitempty"`
	SellingPrice *decimal.Decimal `json:"selling_price,omitempty"`
}

type RestockRequest struct {
	QuantityAdded   int              `json:"quantity_added"`
	UnitCost        decimal.Decimal  `json:"unit_cost"`
	CostStrategy    string           `json:"cost_strategy"`
	OverrideCost    *decimal.Decimal `json:"override_cost,omitempty"`
	NewSellingPrice *decimal.Decimal `json:"new_selling_price,omitempty"`
	Notes           string           `json:"notes,omitempty"`
	StaffID         string           `json:"staff_id"`
}

type CheckoutLine struct {
	InventoryID string           `json:"inventory_id"`
	Quantity    int              `json:"quantity"`
	CustomPrice *decimal.Decimal `json:"custom_price,omitempty"`
}

type CheckoutRequest struct {
	StoreID       string         `json:"store_id"`
	CustomerID    string         `json:"customer_id"`
	StaffID       string         `json:"staff_id"`
	PaymentMethod string         `json:"payment_method"`
	Items         []CheckoutLine `json:"items"`
}

type CheckoutResult struct {
	Success     bool     `json:"success"`
	Message     string   `json:"message"`
	CheckoutIDs []string `json:"checkout_ids"`
}
