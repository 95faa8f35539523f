package domain

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleOwner    = "owner"
	RoleEmployee = "employee"
)

const (
	MembershipPending  = "pending"
	MembershipApproved = "approved"
	MembershipRejected = "rejected"
)

const (
	SaleStatusPending  = "pending"
	SaleStatusComplete = "complete"
)

const (
	JoinActionApprove = "approve"
	JoinActionReject  = "reject"
)

// MaxQuantity bounds stock and line quantities to the INTEGER columns.
const MaxQuantity = math.MaxInt32

// Actor is the authenticated caller attached to a request context.
type Actor struct {
	UserID   string
	Username string
}

// Scope is the tenancy boundary every repository call is filtered by.
// An empty ShopID means the caller has no shop access at all; an empty
// BranchID means the caller is not restricted to a branch.
type Scope struct {
	UserID   string `json:"user_id"`
	ShopID   string `json:"shop_id,omitempty"`
	BranchID string `json:"branch_id,omitempty"`
	Role     string `json:"role,omitempty"`
}

func (s Scope) HasShop() bool {
	return s.ShopID != ""
}

func (s Scope) IsOwner() bool {
	return s.HasShop() && s.Role == RoleOwner
}

// AllowsShop reports whether a shop-level entity is visible in the scope.
func (s Scope) AllowsShop(shopID string) bool {
	return s.HasShop() && s.ShopID == shopID
}

// Allows reports whether a branch-bound entity is visible in the scope.
func (s Scope) Allows(shopID string, branchID string) bool {
	if !s.AllowsShop(shopID) {
		return false
	}
	return s.BranchID == "" || s.BranchID == branchID
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	ID        string
	Username  string
	Password  string
	Email     string
	FullName  string
	Phone     string
	CreatedAt time.Time
}

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	FullName string `json:"full_name,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

func (u UserAccount) Public() User {
	return User{ID: u.ID, Username: u.Username, Email: u.Email, FullName: u.FullName, Phone: u.Phone}
}

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   string `json:"expires_at"`
	User        User   `json:"user"`
}

type Shop struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"owner"`
	Address   string    `json:"address,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ShopRequest struct {
	Name    *string `json:"name,omitempty"`
	Address *string `json:"address,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	Email   *string `json:"email,omitempty"`
}

type MyShopResponse struct {
	Shop     *Shop  `json:"shop"`
	Role     string `json:"role,omitempty"`
	BranchID string `json:"branch_id,omitempty"`
}

type Membership struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user"`
	Username  string    `json:"username,omitempty"`
	ShopID    string    `json:"shop"`
	ShopName  string    `json:"shop_name,omitempty"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	BranchID  string    `json:"branch_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type JoinShopRequest struct {
	ShopID string `json:"shop"`
}

type HandleJoinRequest struct {
	Action   string `json:"action"`
	BranchID string `json:"branch_id,omitempty"`
}

type CheckMembershipResponse struct {
	CanJoinShop bool `json:"can_join_shop"`
}

type Branch struct {
	ID         string    `json:"id"`
	ShopID     string    `json:"shop"`
	BranchName string    `json:"branch_name"`
	Phone      string    `json:"phone,omitempty"`
	Location   string    `json:"location,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type BranchRequest struct {
	BranchName *string `json:"branch_name,omitempty"`
	Phone      *string `json:"phone,omitempty"`
	Location   *string `json:"location,omitempty"`
}

type Category struct {
	ID          string    `json:"id"`
	ShopID      string    `json:"shop"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type CategoryRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

type Product struct {
	ID           string          `json:"id"`
	ShopID       string          `json:"shop"`
	BranchID     string          `json:"branch_id,omitempty"`
	CategoryID   string          `json:"category_id,omitempty"`
	Category     *Category       `json:"category,omitempty"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	CostPrice    decimal.Decimal `json:"cost_price"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	Quantity     int             `json:"quantity"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type ProductRequest struct {
	BranchID     *string          `json:"branch_id,omitempty"`
	CategoryID   *string          `json:"category_id,omitempty"`
	Name         *string          `json:"name,omitempty"`
	Description  *string          `json:"description,omitempty"`
	CostPrice    *decimal.Decimal `json:"cost_price,omitempty"`
	SellingPrice *decimal.Decimal `json:"selling_price,omitempty"`
	Quantity     *int             `json:"quantity,omitempty"`
}

type Customer struct {
	ID        string    `json:"id"`
	ShopID    string    `json:"shop"`
	FullName  string    `json:"full_name"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CustomerRequest struct {
	FullName *string `json:"full_name,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	Email    *string `json:"email,omitempty"`
	Address  *string `json:"address,omitempty"`
}

type Sale struct {
	ID            string          `json:"id"`
	ShopID        string          `json:"shop"`
	BranchID      string          `json:"branch_id,omitempty"`
	CustomerID    string          `json:"customer_id,omitempty"`
	Customer      *Customer       `json:"customer,omitempty"`
	EmployeeID    string          `json:"employee"`
	Status        string          `json:"status"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	ProfitAmount  decimal.Decimal `json:"profit_amount"`
	InvoiceNumber string          `json:"invoice_number"`
	CreatedAt     time.Time       `json:"created_at"`
	Items         []SaleItem      `json:"sale_items"`
}

// Recalculate derives the sale totals from its items. Every code path that
// mutates Items must call it before persisting.
func (s *Sale) Recalculate() {
	total := decimal.Zero
	profit := decimal.Zero
	for _, item := range s.Items {
		total = total.Add(item.TotalPrice)
		profit = profit.Add(item.TotalPrice.Sub(item.TotalCost))
	}
	s.TotalAmount = total
	s.ProfitAmount = profit
}

type SaleItem struct {
	ID          string          `json:"id"`
	SaleID      string          `json:"sale"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	TotalPrice  decimal.Decimal `json:"total_price"`
	TotalCost   decimal.Decimal `json:"total_cost"`
}

// NewSaleItem freezes the product's current pricing into a line item.
func NewSaleItem(id string, saleID string, product Product, qty int) SaleItem {
	n := decimal.NewFromInt(int64(qty))
	return SaleItem{
		ID:          id,
		SaleID:      saleID,
		ProductID:   product.ID,
		ProductName: product.Name,
		Quantity:    qty,
		UnitPrice:   product.SellingPrice,
		UnitCost:    product.CostPrice,
		TotalPrice:  product.SellingPrice.Mul(n),
		TotalCost:   product.CostPrice.Mul(n),
	}
}

type SaleLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type SaleCustomerRef struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Address  string `json:"address"`
}

type SaleCreateRequest struct {
	BranchID      string           `json:"branch_id,omitempty"`
	InvoiceNumber string           `json:"invoice_number,omitempty"`
	Customer      *SaleCustomerRef `json:"customer,omitempty"`
	Items         []SaleLine       `json:"sale_items"`
}

type SaleItemCreateRequest struct {
	SaleID    string `json:"sale"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type Invoice struct {
	ID        string    `json:"id"`
	SaleID    string    `json:"sale"`
	ShopID    string    `json:"shop"`
	BranchID  string    `json:"branch_id,omitempty"`
	Sent      bool      `json:"sent"`
	Printed   bool      `json:"printed"`
	CreatedAt time.Time `json:"created_at"`
}

type InvoiceRequest struct {
	SaleID  string `json:"sale,omitempty"`
	Sent    *bool  `json:"sent,omitempty"`
	Printed *bool  `json:"printed,omitempty"`
}

type Expense struct {
	ID          string          `json:"id"`
	ShopID      string          `json:"shop"`
	BranchID    string          `json:"branch_id,omitempty"`
	Title       string          `json:"title"`
	Amount      decimal.Decimal `json:"amount"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

type ExpenseRequest struct {
	BranchID    *string          `json:"branch_id,omitempty"`
	Title       *string          `json:"title,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Date        *string          `json:"date,omitempty"`
	Description *string          `json:"description,omitempty"`
}

type ChartPoint struct {
	Month   string          `json:"month"`
	Year    int             `json:"year"`
	Revenue decimal.Decimal `json:"revenue"`
	Expense decimal.Decimal `json:"expense"`
}

type ReportSummary struct {
	ShopID       string          `json:"shop"`
	BranchID     string          `json:"branch_id,omitempty"`
	Timeframe    string          `json:"timeframe"`
	From         time.Time       `json:"from"`
	To           time.Time       `json:"to"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	TotalExpense decimal.Decimal `json:"total_expense"`
	GrossProfit  decimal.Decimal `json:"gross_profit"`
	TotalProfit  decimal.Decimal `json:"total_profit"`
	SaleCount    int             `json:"sale_count"`
	ExpenseCount int             `json:"expense_count"`
	ChartData    []ChartPoint    `json:"chart_data"`
}

// DateOnly truncates t to midnight UTC.
func DateOnly(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
