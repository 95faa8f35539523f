package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/shopspring/decimal"

	"shopmate/backend/internal/domain"
	"shopmate/backend/internal/store"
)

func seedShop(t *testing.T, s *Store, stock int) (domain.Scope, *domain.Product) {
	t.Helper()
	ctx := context.Background()

	owner, err := s.CreateUser(ctx, domain.UserAccount{Username: "owner", Password: "hashed"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	shop, err := s.CreateShop(ctx, domain.Shop{Name: "Toko Maju", OwnerID: owner.ID})
	if err != nil {
		t.Fatalf("create shop: %v", err)
	}
	product, err := s.CreateProduct(ctx, domain.Product{
		ShopID:       shop.ID,
		Name:         "Teh Botol",
		CostPrice:    decimal.RequireFromString("3000"),
		SellingPrice: decimal.RequireFromString("5000"),
		Quantity:     stock,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	return domain.Scope{UserID: owner.ID, ShopID: shop.ID, Role: domain.RoleOwner}, product
}

func TestCreateShopAddsOwnerMembership(t *testing.T) {
	s := New()
	scope, _ := seedShop(t, s, 1)

	memberships, err := s.ListMembershipsByUser(context.Background(), scope.UserID)
	if err != nil {
		t.Fatalf("list memberships: %v", err)
	}
	if len(memberships) != 1 {
		t.Fatalf("expected one membership, got %d", len(memberships))
	}
	m := memberships[0]
	if m.Role != domain.RoleOwner || m.Status != domain.MembershipApproved || m.ShopName != "Toko Maju" {
		t.Fatalf("unexpected owner membership: %+v", m)
	}

	_, err = s.CreateShop(context.Background(), domain.Shop{Name: "Second", OwnerID: scope.UserID})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict on second shop, got %v", err)
	}
}

func TestCreateSaleLeavesNoTraceOnShortage(t *testing.T) {
	s := New()
	ctx := context.Background()
	scope, product := seedShop(t, s, 5)
	other, err := s.CreateProduct(ctx, domain.Product{
		ShopID:       scope.ShopID,
		Name:         "Roti",
		CostPrice:    decimal.RequireFromString("1000"),
		SellingPrice: decimal.RequireFromString("2000"),
		Quantity:     10,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	_, err = s.CreateSale(ctx, scope, domain.Sale{
		ShopID:        scope.ShopID,
		InvoiceNumber: "INV-1",
		Items: []domain.SaleItem{
			{ProductID: other.ID, Quantity: 3},
			{ProductID: product.ID, Quantity: 6},
		},
	}, &domain.Customer{FullName: "Ani", Phone: "0812"})

	var stockErr *store.InsufficientStockError
	if !errors.As(err, &stockErr) || stockErr.ProductID != product.ID {
		t.Fatalf("expected insufficient stock for %s, got %v", product.ID, err)
	}

	got, _ := s.GetProduct(ctx, scope, other.ID)
	if got.Quantity != 10 {
		t.Fatalf("expected untouched stock 10, got %d", got.Quantity)
	}
	customers, _ := s.ListCustomers(ctx, scope, store.ListFilter{})
	if len(customers) != 0 {
		t.Fatalf("expected no customer created, got %d", len(customers))
	}
	sales, _ := s.ListSales(ctx, scope, store.ListFilter{})
	if len(sales) != 0 {
		t.Fatalf("expected no sale rows, got %d", len(sales))
	}
}

func TestCreateSaleRejectsDuplicateInvoiceNumber(t *testing.T) {
	s := New()
	ctx := context.Background()
	scope, product := seedShop(t, s, 5)

	sale := domain.Sale{
		ShopID:        scope.ShopID,
		InvoiceNumber: "INV-DUP",
		Items:         []domain.SaleItem{{ProductID: product.ID, Quantity: 1}},
	}
	if _, err := s.CreateSale(ctx, scope, sale, nil); err != nil {
		t.Fatalf("first sale: %v", err)
	}
	if _, err := s.CreateSale(ctx, scope, sale, nil); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	got, _ := s.GetProduct(ctx, scope, product.ID)
	if got.Quantity != 4 {
		t.Fatalf("expected stock 4, got %d", got.Quantity)
	}
}

func TestSaleItemsKeepTotalsInSync(t *testing.T) {
	s := New()
	ctx := context.Background()
	scope, product := seedShop(t, s, 10)

	sale, err := s.CreateSale(ctx, scope, domain.Sale{
		ShopID:        scope.ShopID,
		InvoiceNumber: "INV-SYNC",
		Items:         []domain.SaleItem{{ProductID: product.ID, Quantity: 2}},
	}, nil)
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}

	item, err := s.AddSaleItem(ctx, scope, sale.ID, domain.SaleLine{ProductID: product.ID, Quantity: 3})
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	got, _ := s.GetSale(ctx, scope, sale.ID)
	if !got.TotalAmount.Equal(decimal.RequireFromString("25000")) || !got.ProfitAmount.Equal(decimal.RequireFromString("10000")) {
		t.Fatalf("unexpected totals after add: %s / %s", got.TotalAmount, got.ProfitAmount)
	}

	if err := s.DeleteSaleItem(ctx, scope, item.ID); err != nil {
		t.Fatalf("delete item: %v", err)
	}
	got, _ = s.GetSale(ctx, scope, sale.ID)
	if !got.TotalAmount.Equal(decimal.RequireFromString("10000")) || len(got.Items) != 1 {
		t.Fatalf("unexpected sale after delete: total %s items %d", got.TotalAmount, len(got.Items))
	}
	p, _ := s.GetProduct(ctx, scope, product.ID)
	if p.Quantity != 8 {
		t.Fatalf("expected stock 8 after item delete, got %d", p.Quantity)
	}
}

func TestDeleteProductReferencedBySaleIsRefused(t *testing.T) {
	s := New()
	ctx := context.Background()
	scope, product := seedShop(t, s, 2)

	sale, err := s.CreateSale(ctx, scope, domain.Sale{
		ShopID:        scope.ShopID,
		InvoiceNumber: "INV-REF",
		Items:         []domain.SaleItem{{ProductID: product.ID, Quantity: 1}},
	}, nil)
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if err := s.DeleteProduct(ctx, scope, product.ID); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if err := s.DeleteSale(ctx, scope, sale.ID); err != nil {
		t.Fatalf("delete sale: %v", err)
	}
	if err := s.DeleteProduct(ctx, scope, product.ID); err != nil {
		t.Fatalf("delete product after sale removed: %v", err)
	}
}

func TestDeleteShopCascades(t *testing.T) {
	s := New()
	ctx := context.Background()
	scope, product := seedShop(t, s, 2)

	branch, err := s.CreateBranch(ctx, domain.Branch{ShopID: scope.ShopID, BranchName: "Pusat"})
	if err != nil {
		t.Fatalf("create branch: %v", err)
	}
	if _, err := s.CreateSale(ctx, scope, domain.Sale{
		ShopID:        scope.ShopID,
		BranchID:      branch.ID,
		InvoiceNumber: "INV-CASCADE",
		Items:         []domain.SaleItem{{ProductID: product.ID, Quantity: 1}},
	}, nil); err != nil {
		t.Fatalf("create sale: %v", err)
	}

	if err := s.DeleteShop(ctx, scope.ShopID); err != nil {
		t.Fatalf("delete shop: %v", err)
	}
	if _, err := s.GetShop(ctx, scope.ShopID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected shop gone, got %v", err)
	}
	if len(s.products) != 0 || len(s.sales) != 0 || len(s.branches) != 0 || len(s.memberships) != 0 || len(s.itemSale) != 0 {
		t.Fatalf("expected cascade to clear shop data")
	}
}

func TestDeleteBranchNullsReferences(t *testing.T) {
	s := New()
	ctx := context.Background()
	scope, product := seedShop(t, s, 2)

	branch, err := s.CreateBranch(ctx, domain.Branch{ShopID: scope.ShopID, BranchName: "Cabang"})
	if err != nil {
		t.Fatalf("create branch: %v", err)
	}
	product.BranchID = branch.ID
	if _, err := s.UpdateProduct(ctx, scope, *product); err != nil {
		t.Fatalf("update product: %v", err)
	}
	if err := s.DeleteBranch(ctx, scope, branch.ID); err != nil {
		t.Fatalf("delete branch: %v", err)
	}
	got, err := s.GetProduct(ctx, scope, product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if got.BranchID != "" {
		t.Fatalf("expected branch reference cleared, got %q", got.BranchID)
	}
}

func TestBranchScopeHidesOtherBranches(t *testing.T) {
	s := New()
	ctx := context.Background()
	scope, _ := seedShop(t, s, 1)

	a, _ := s.CreateBranch(ctx, domain.Branch{ShopID: scope.ShopID, BranchName: "A"})
	b, _ := s.CreateBranch(ctx, domain.Branch{ShopID: scope.ShopID, BranchName: "B"})
	if _, err := s.CreateProduct(ctx, domain.Product{ShopID: scope.ShopID, BranchID: b.ID, Name: "Only B", Quantity: 1}); err != nil {
		t.Fatalf("create product: %v", err)
	}

	employee := domain.Scope{UserID: "emp", ShopID: scope.ShopID, BranchID: a.ID, Role: domain.RoleEmployee}
	products, err := s.ListProducts(ctx, employee, store.ListFilter{})
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	for _, p := range products {
		if p.Name == "Only B" {
			t.Fatalf("branch A employee should not see branch B product")
		}
	}
	branches, _ := s.ListBranches(ctx, employee)
	if len(branches) != 1 || branches[0].ID != a.ID {
		t.Fatalf("expected only branch A, got %+v", branches)
	}

	empty, _ := s.ListProducts(ctx, domain.Scope{UserID: "nobody"}, store.ListFilter{})
	if len(empty) != 0 {
		t.Fatalf("expected empty list for caller without shop")
	}
}

func TestSaleItemsKeepEntryOrder(t *testing.T) {
	s := New()
	ctx := context.Background()
	scope, first := seedShop(t, s, 10)

	var want []string
	for i := range 5 {
		product, err := s.CreateProduct(ctx, domain.Product{
			ShopID:       scope.ShopID,
			Name:         fmt.Sprintf("Produk %d", i),
			CostPrice:    decimal.RequireFromString("1000"),
			SellingPrice: decimal.RequireFromString("2000"),
			Quantity:     10,
		})
		if err != nil {
			t.Fatalf("create product: %v", err)
		}
		want = append(want, product.ID)
	}

	sale := domain.Sale{ShopID: scope.ShopID, InvoiceNumber: "INV-ORDER"}
	for _, id := range want[:4] {
		sale.Items = append(sale.Items, domain.SaleItem{ProductID: id, Quantity: 1})
	}
	created, err := s.CreateSale(ctx, scope, sale, nil)
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if _, err := s.AddSaleItem(ctx, scope, created.ID, domain.SaleLine{ProductID: want[4], Quantity: 1}); err != nil {
		t.Fatalf("add item: %v", err)
	}
	if _, err := s.AddSaleItem(ctx, scope, created.ID, domain.SaleLine{ProductID: first.ID, Quantity: 1}); err != nil {
		t.Fatalf("add item: %v", err)
	}
	want = append(want, first.ID)

	items, err := s.ListSaleItems(ctx, scope, created.ID)
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	if len(items) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(items))
	}
	for i, item := range items {
		if item.ProductID != want[i] {
			t.Fatalf("item %d: expected product %s, got %s", i, want[i], item.ProductID)
		}
	}
}

func TestSaleRejectsOutOfRangeQuantity(t *testing.T) {
	s := New()
	ctx := context.Background()
	scope, product := seedShop(t, s, 10)

	_, err := s.CreateSale(ctx, scope, domain.Sale{
		ShopID:        scope.ShopID,
		InvoiceNumber: "INV-HUGE",
		Items:         []domain.SaleItem{{ProductID: product.ID, Quantity: math.MinInt}},
	}, nil)
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}

	got, err := s.GetProduct(ctx, scope, product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if got.Quantity != 10 {
		t.Fatalf("expected stock 10, got %d", got.Quantity)
	}
}
