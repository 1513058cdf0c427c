package domain

import "time"

// All monetary values are integer centavos. Keeping money integral makes the
// customer-balance invariant (balance == signed sum of ledger entries) exact.

const (
	PaymentCash    = "cash"
	PaymentGCash   = "gcash"
	PaymentCredit  = "credit"
	PaymentPartial = "partial"
)

const (
	SaleStatusCompleted = "completed"
	SaleStatusPending   = "pending"
	SaleStatusVoided    = "voided"
)

const (
	CreditEntryCredit  = "credit"
	CreditEntryDebit   = "debit"
	CreditEntryPayment = "payment"
)

const (
	AdjustAdd      = "add"
	AdjustSubtract = "subtract"
	AdjustSet      = "set"
)

type Product struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Barcode       string    `json:"barcode,omitempty"`
	Category      string    `json:"category"`
	PriceCents    int64     `json:"price_cents"`
	CostCents     int64     `json:"cost_cents"`
	StockQty      int       `json:"stock_qty"`
	MinStockLevel int       `json:"min_stock_level"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type ProductCreateRequest struct {
	Name          string `json:"name"`
	Barcode       string `json:"barcode,omitempty"`
	Category      string `json:"category"`
	PriceCents    int64  `json:"price_cents"`
	CostCents     int64  `json:"cost_cents"`
	MinStockLevel int    `json:"min_stock_level"`
	InitialStock  int    `json:"initial_stock"`
}

type ProductUpdateRequest struct {
	Name          *string `json:"name,omitempty"`
	Barcode       *string `json:"barcode,omitempty"`
	Category      *string `json:"category,omitempty"`
	PriceCents    *int64  `json:"price_cents,omitempty"`
	CostCents     *int64  `json:"cost_cents,omitempty"`
	MinStockLevel *int    `json:"min_stock_level,omitempty"`
	Active        *bool   `json:"active,omitempty"`
}

type Customer struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone,omitempty"`
	Address      string    `json:"address,omitempty"`
	BalanceCents int64     `json:"balance_cents"`
	CreatedAt    time.Time `json:"created_at"`
}

type CustomerCreateRequest struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type CartItem struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type SaleItem struct {
	ProductID      string `json:"product_id"`
	Name           string `json:"name"`
	Qty            int    `json:"qty"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	TotalCents     int64  `json:"total_cents"`
}

// Sale is immutable once created except for the transition to voided.
type Sale struct {
	ID                  string     `json:"id"`
	SaleNumber          string     `json:"sale_number"`
	CustomerID          string     `json:"customer_id,omitempty"`
	TotalCents          int64      `json:"total_cents"`
	DiscountCents       int64      `json:"discount_cents"`
	FinalCents          int64      `json:"final_cents"`
	PaymentMethod       string     `json:"payment_method"`
	PaymentStatus       string     `json:"payment_status"`
	AmountReceivedCents int64      `json:"amount_received_cents"`
	ChangeCents         int64      `json:"change_cents"`
	RemainingCents      int64      `json:"remaining_cents"`
	VoidReason          string     `json:"void_reason,omitempty"`
	VoidedAt            *time.Time `json:"voided_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	Items               []SaleItem `json:"items"`
}

type SaleCreateRequest struct {
	CustomerID          string     `json:"customer_id,omitempty"`
	PaymentMethod       string     `json:"payment_method"`
	AmountReceivedCents int64      `json:"amount_received_cents"`
	DiscountCents       int64      `json:"discount_cents"`
	Items               []CartItem `json:"items"`
}

type SaleResponse struct {
	Sale Sale `json:"sale"`
}

type SaleListResponse struct {
	Sales []Sale `json:"sales"`
}

type VoidSaleRequest struct {
	SaleID     string `json:"sale_id"`
	Reason     string `json:"reason"`
	ManagerPIN string `json:"manager_pin"`
}

type VoidSaleResponse struct {
	SaleID        string `json:"sale_id"`
	PaymentStatus string `json:"payment_status"`
	VoidedAt      string `json:"voided_at"`
}

// CreditTransaction is one row of the append-only customer ledger.
// credit/debit entries raise the balance, payment entries lower it.
type CreditTransaction struct {
	ID          string    `json:"id"`
	CustomerID  string    `json:"customer_id"`
	Type        string    `json:"type"`
	AmountCents int64     `json:"amount_cents"`
	Description string    `json:"description,omitempty"`
	SaleID      string    `json:"sale_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type CreditTransactionRequest struct {
	CustomerID  string `json:"customer_id"`
	Type        string `json:"type"`
	AmountCents int64  `json:"amount_cents"`
	Description string `json:"description"`
}

type CreditTransactionResponse struct {
	Customer    Customer          `json:"customer"`
	Transaction CreditTransaction `json:"transaction"`
}

// InventoryAdjustment is the append-only audit row written alongside every
// stock mutation, including sale decrements and void restocks.
type InventoryAdjustment struct {
	ID          string    `json:"id"`
	ProductID   string    `json:"product_id"`
	Type        string    `json:"type"`
	Qty         int       `json:"qty"`
	Reason      string    `json:"reason"`
	PerformedBy string    `json:"performed_by,omitempty"`
	SaleID      string    `json:"sale_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type StockAdjustRequest struct {
	ProductID string `json:"product_id"`
	Type      string `json:"type"`
	Qty       int    `json:"qty"`
	Reason    string `json:"reason"`
}

type StockAdjustResponse struct {
	Product    Product             `json:"product"`
	Adjustment InventoryAdjustment `json:"adjustment"`
}

type DailyReportPayment struct {
	PaymentMethod string `json:"payment_method"`
	Sales         int64  `json:"sales"`
	TotalCents    int64  `json:"total_cents"`
}

type DailyReport struct {
	Date                   string               `json:"date"`
	Sales                  int64                `json:"sales"`
	GrossSalesCents        int64                `json:"gross_sales_cents"`
	DiscountCents          int64                `json:"discount_cents"`
	NetSalesCents          int64                `json:"net_sales_cents"`
	CreditOutstandingCents int64                `json:"credit_outstanding_cents"`
	ByPayment              []DailyReportPayment `json:"by_payment"`
}

type LowStockItem struct {
	ProductID     string `json:"product_id"`
	Name          string `json:"name"`
	Category      string `json:"category"`
	StockQty      int    `json:"stock_qty"`
	MinStockLevel int    `json:"min_stock_level"`
}

type LowStockResponse struct {
	GeneratedAt string         `json:"generated_at"`
	Items       []LowStockItem `json:"items"`
}

type AuditLog struct {
	ID         string    `json:"id"`
	Actor      string    `json:"actor"`
	Role       string    `json:"role"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Detail     string    `json:"detail"`
	CreatedAt  time.Time `json:"created_at"`
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

type Actor struct {
	Username string
	Role     string
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

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}
