package domain

import "time"

// Currency is the code a money amount is expressed in. The panel only
// trades in USD and UZS; any other code is passed through untouched by the
// conversion layer.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyUZS Currency = "UZS"
)

const (
	RoleSeller = "seller"
	RoleAdmin  = "admin"
)

const (
	PaymentCash     = "cash"
	PaymentCard     = "card"
	PaymentTransfer = "transfer"
)

const (
	CartKindOrder = "order"
	CartKindDebt  = "debt"
)

// Debt document direction: "in" is a repayment that lowers the debtor
// balance, "out" is goods released on credit that raises it.
const (
	DebtDocIn  = "in"
	DebtDocOut = "out"
)

const (
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
)

type Product struct {
	ID             string    `json:"id"`
	StoreID        string    `json:"store_id"`
	Name           string    `json:"name"`
	Articul        string    `json:"articul"`
	Brand          string    `json:"brand"`
	Category       string    `json:"category"`
	InPriceCents   int64     `json:"in_price_cents"`
	OutPriceCents  int64     `json:"out_price_cents"`
	Currency       Currency  `json:"currency"`
	Count          int       `json:"count"`
	WarehouseCount int       `json:"warehouse_count"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
}

type ProductCreateRequest struct {
	Name           string   `json:"name"`
	Articul        string   `json:"articul"`
	Brand          string   `json:"brand"`
	Category       string   `json:"category"`
	InPrice        string   `json:"in_price"`
	OutPrice       string   `json:"out_price"`
	Currency       Currency `json:"currency"`
	Count          int      `json:"count"`
	WarehouseCount int      `json:"warehouse_count"`
}

type ProductUpdateRequest struct {
	Name           *string   `json:"name,omitempty"`
	Articul        *string   `json:"articul,omitempty"`
	Brand          *string   `json:"brand,omitempty"`
	Category       *string   `json:"category,omitempty"`
	InPrice        *string   `json:"in_price,omitempty"`
	OutPrice       *string   `json:"out_price,omitempty"`
	Currency       *Currency `json:"currency,omitempty"`
	Count          *int      `json:"count,omitempty"`
	WarehouseCount *int      `json:"warehouse_count,omitempty"`
	Active         *bool     `json:"active,omitempty"`
}

// ProductSnapshot is the denormalized copy of a product captured when a line
// is added to a cart. It is intentionally never refreshed afterwards so the
// document keeps the prices and stock counts that were in effect at the time
// of sale.
type ProductSnapshot struct {
	Name           string   `json:"name"`
	Articul        string   `json:"articul"`
	Brand          string   `json:"brand"`
	Category       string   `json:"category"`
	InPriceCents   int64    `json:"in_price_cents"`
	OutPriceCents  int64    `json:"out_price_cents"`
	Currency       Currency `json:"currency"`
	Count          int      `json:"count"`
	WarehouseCount int      `json:"warehouse_count"`
}

// CartLine is one working line of an order or debt document. Price may
// differ from the snapshot's out price when the seller negotiates.
type CartLine struct {
	ProductID  string          `json:"product"`
	Snapshot   ProductSnapshot `json:"product_data"`
	Currency   Currency        `json:"currency"`
	PriceCents int64           `json:"price_cents"`
	Quantity   float64         `json:"quantity"`
}

// DocumentHeader carries the aggregate fields of the document being built:
// who the customer is, how they pay, and how change is settled.
type DocumentHeader struct {
	CustomerPhone  string   `json:"customer_phone"`
	CustomerName   string   `json:"customer_name,omitempty"`
	PaymentMethod  string   `json:"payment_method"`
	Currency       Currency `json:"currency"`
	PaidCents      int64    `json:"paid_cents"`
	ChangeGiven    bool     `json:"change_given"`
	ChangeCents    int64    `json:"change_cents"`
	ChangeCurrency Currency `json:"change_currency"`
	Comment        string   `json:"comment,omitempty"`
}

// CartLineRequest is the HTTP boundary shape of a line. Price and quantity
// arrive as decimal strings (clients send "12 500,5" style values) and are
// normalized exactly once, in the service layer.
type CartLineRequest struct {
	Product  string   `json:"product"`
	Currency Currency `json:"currency"`
	Price    string   `json:"price"`
	Quantity string   `json:"quantity"`
}

type HeaderUpdateRequest struct {
	CustomerPhone  *string   `json:"customer_phone,omitempty"`
	CustomerName   *string   `json:"customer_name,omitempty"`
	PaymentMethod  *string   `json:"payment_method,omitempty"`
	Currency       *Currency `json:"currency,omitempty"`
	Paid           *string   `json:"paid,omitempty"`
	ChangeGiven    *bool     `json:"change_given,omitempty"`
	Change         *string   `json:"change,omitempty"`
	ChangeCurrency *Currency `json:"change_currency,omitempty"`
	Comment        *string   `json:"comment,omitempty"`
}

type Order struct {
	ID             string     `json:"id"`
	Number         string     `json:"number"`
	StoreID        string     `json:"store_id"`
	TerminalID     string     `json:"terminal_id"`
	SellerUsername string     `json:"seller_username"`
	CustomerPhone  string     `json:"customer_phone"`
	CustomerName   string     `json:"customer_name,omitempty"`
	PaymentMethod  string     `json:"payment_method"`
	Currency       Currency   `json:"currency"`
	Rate           float64    `json:"rate"`
	TotalCents     int64      `json:"total_cents"`
	PaidCents      int64      `json:"paid_cents"`
	ChangeGiven    bool       `json:"change_given"`
	ChangeCents    int64      `json:"change_cents"`
	ChangeCurrency Currency   `json:"change_currency"`
	Status         string     `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	CancelledAt    *time.Time `json:"cancelled_at,omitempty"`
	Lines          []CartLine `json:"items"`
}

type OrderResponse struct {
	Order Order `json:"order"`
}

type OrderListResponse struct {
	Orders []Order `json:"orders"`
}

type Debtor struct {
	ID           string    `json:"id"`
	StoreID      string    `json:"store_id"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone"`
	BalanceCents int64     `json:"balance_cents"`
	Currency     Currency  `json:"currency"`
	CreatedAt    time.Time `json:"created_at"`
}

type DebtorCreateRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type DebtorResponse struct {
	Debtor Debtor `json:"debtor"`
}

type DebtorListResponse struct {
	Debtors []Debtor `json:"debtors"`
}

type DebtDocument struct {
	ID             string     `json:"id"`
	Number         string     `json:"number"`
	StoreID        string     `json:"store_id"`
	DebtorID       string     `json:"debtor_id"`
	Kind           string     `json:"kind"`
	SellerUsername string     `json:"seller_username"`
	PaymentMethod  string     `json:"payment_method"`
	Currency       Currency   `json:"currency"`
	Rate           float64    `json:"rate"`
	TotalCents     int64      `json:"total_cents"`
	Comment        string     `json:"comment,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	Lines          []CartLine `json:"items"`
}

type SubmitDebtDocumentRequest struct {
	TerminalID string `json:"terminal_id"`
	Kind       string `json:"kind"`
	Comment    string `json:"comment"`
}

type DebtDocumentResponse struct {
	Document DebtDocument `json:"document"`
}

type DebtDocumentListResponse struct {
	Documents []DebtDocument `json:"documents"`
}

type ExchangeRate struct {
	StoreID   string    `json:"store_id"`
	Rate      float64   `json:"rate"`
	UpdatedBy string    `json:"updated_by"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ExchangeRateUpdateRequest struct {
	Rate string `json:"rate"`
}

type ReceiptResponse struct {
	OrderID      string `json:"order_id"`
	PreviewText  string `json:"preview_text"`
	EscposBase64 string `json:"escpos_base64"`
	FileName     string `json:"file_name"`
}

type SalesSummary struct {
	StoreID         string `json:"store_id"`
	Date            string `json:"date"`
	Orders          int64  `json:"orders"`
	RevenueUZSCents int64  `json:"revenue_uzs_cents"`
	RevenueUSDCents int64  `json:"revenue_usd_cents"`
	DebtInCents     int64  `json:"debt_in_cents"`
	DebtOutCents    int64  `json:"debt_out_cents"`
	GeneratedAt     string `json:"generated_at"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string   `json:"access_token"`
	Role        string   `json:"role"`
	Stores      []string `json:"stores"`
	ExpiresAt   string   `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
	Stores   []string
}

// CanAccessStore reports whether the actor's token grants the given store.
// Admins are not store-scoped.
func (a Actor) CanAccessStore(storeID string) bool {
	if a.Role == RoleAdmin {
		return true
	}
	for _, id := range a.Stores {
		if id == storeID {
			return true
		}
	}
	return false
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Stores    []string
	Active    bool
	CreatedAt time.Time
}

type SellerCreateRequest struct {
	Username string   `json:"username"`
	Password string   `json:"password"`
	Stores   []string `json:"stores"`
}

type SellerUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Stores    []string  `json:"stores"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type AuditLog struct {
	ID            string    `json:"id"`
	StoreID       string    `json:"store_id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}
