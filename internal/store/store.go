package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shopmate/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidInput      = errors.New("invalid input")
	ErrForbidden         = errors.New("forbidden")
	ErrConflict          = errors.New("conflict")
)

// InsufficientStockError names the product a sale line could not be served from.
type InsufficientStockError struct {
	ProductID   string
	ProductName string
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: available %d, requested %d", e.ProductName, e.Available, e.Requested)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// ListFilter narrows time-bounded listings. Zero times are unbounded.
type ListFilter struct {
	From   time.Time
	To     time.Time
	Search string
	Limit  int
}

type Repository interface {
	CreateUser(ctx context.Context, user domain.UserAccount) (*domain.UserAccount, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error)
	GetUserByID(ctx context.Context, id string) (*domain.UserAccount, error)

	CreateShop(ctx context.Context, shop domain.Shop) (*domain.Shop, error)
	GetShop(ctx context.Context, id string) (*domain.Shop, error)
	GetShopByOwner(ctx context.Context, ownerID string) (*domain.Shop, error)
	SearchShops(ctx context.Context, query string, limit int) ([]domain.Shop, error)
	UpdateShop(ctx context.Context, shop domain.Shop) (*domain.Shop, error)
	DeleteShop(ctx context.Context, id string) error

	CreateMembership(ctx context.Context, membership domain.Membership) (*domain.Membership, error)
	GetMembership(ctx context.Context, id string) (*domain.Membership, error)
	FindApprovedMembership(ctx context.Context, userID string) (*domain.Membership, error)
	ListMembershipsByUser(ctx context.Context, userID string) ([]domain.Membership, error)
	ListMembershipsByShop(ctx context.Context, shopID string, status string) ([]domain.Membership, error)
	TransitionMembership(ctx context.Context, id string, from string, to string, branchID string) (*domain.Membership, error)
	DeleteMembership(ctx context.Context, id string) error

	CreateBranch(ctx context.Context, branch domain.Branch) (*domain.Branch, error)
	GetBranch(ctx context.Context, scope domain.Scope, id string) (*domain.Branch, error)
	ListBranches(ctx context.Context, scope domain.Scope) ([]domain.Branch, error)
	ListBranchesByShop(ctx context.Context, shopID string) ([]domain.Branch, error)
	UpdateBranch(ctx context.Context, scope domain.Scope, branch domain.Branch) (*domain.Branch, error)
	DeleteBranch(ctx context.Context, scope domain.Scope, id string) error

	CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error)
	GetCategory(ctx context.Context, scope domain.Scope, id string) (*domain.Category, error)
	ListCategories(ctx context.Context, scope domain.Scope) ([]domain.Category, error)
	UpdateCategory(ctx context.Context, scope domain.Scope, category domain.Category) (*domain.Category, error)
	DeleteCategory(ctx context.Context, scope domain.Scope, id string) error

	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProduct(ctx context.Context, scope domain.Scope, id string) (*domain.Product, error)
	ListProducts(ctx context.Context, scope domain.Scope, filter ListFilter) ([]domain.Product, error)
	UpdateProduct(ctx context.Context, scope domain.Scope, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, scope domain.Scope, id string) error

	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	GetCustomer(ctx context.Context, scope domain.Scope, id string) (*domain.Customer, error)
	ListCustomers(ctx context.Context, scope domain.Scope, filter ListFilter) ([]domain.Customer, error)
	UpdateCustomer(ctx context.Context, scope domain.Scope, customer domain.Customer) (*domain.Customer, error)
	DeleteCustomer(ctx context.Context, scope domain.Scope, id string) error

	// CreateSale runs the whole sale as one atomic unit: customer get-or-create,
	// stock check and decrement, sale and item inserts.
	CreateSale(ctx context.Context, scope domain.Scope, sale domain.Sale, customer *domain.Customer) (*domain.Sale, error)
	GetSale(ctx context.Context, scope domain.Scope, id string) (*domain.Sale, error)
	ListSales(ctx context.Context, scope domain.Scope, filter ListFilter) ([]domain.Sale, error)
	SetSaleStatus(ctx context.Context, scope domain.Scope, id string, status string) (*domain.Sale, error)
	DeleteSale(ctx context.Context, scope domain.Scope, id string) error
	AddSaleItem(ctx context.Context, scope domain.Scope, saleID string, line domain.SaleLine) (*domain.SaleItem, error)
	GetSaleItem(ctx context.Context, scope domain.Scope, id string) (*domain.SaleItem, error)
	ListSaleItems(ctx context.Context, scope domain.Scope, saleID string) ([]domain.SaleItem, error)
	DeleteSaleItem(ctx context.Context, scope domain.Scope, id string) error

	CreateInvoice(ctx context.Context, scope domain.Scope, invoice domain.Invoice) (*domain.Invoice, error)
	GetInvoice(ctx context.Context, scope domain.Scope, id string) (*domain.Invoice, error)
	ListInvoices(ctx context.Context, scope domain.Scope) ([]domain.Invoice, error)
	UpdateInvoice(ctx context.Context, scope domain.Scope, invoice domain.Invoice) (*domain.Invoice, error)
	DeleteInvoice(ctx context.Context, scope domain.Scope, id string) error

	CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error)
	GetExpense(ctx context.Context, scope domain.Scope, id string) (*domain.Expense, error)
	ListExpenses(ctx context.Context, scope domain.Scope, filter ListFilter) ([]domain.Expense, error)
	UpdateExpense(ctx context.Context, scope domain.Scope, expense domain.Expense) (*domain.Expense, error)
	DeleteExpense(ctx context.Context, scope domain.Scope, id string) error
}
