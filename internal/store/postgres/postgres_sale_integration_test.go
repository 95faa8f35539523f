package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"shopmate/backend/internal/domain"
	"shopmate/backend/internal/store"
	"shopmate/backend/internal/xid"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	databaseURL := os.Getenv("SHOPMATE_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set SHOPMATE_TEST_DATABASE_URL to run postgres integration test")
	}
	if err := Migrate(databaseURL); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	s, err := New(context.Background(), databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func seedShop(t *testing.T, s *Store, stock int) (domain.Scope, *domain.Product) {
	t.Helper()
	ctx := context.Background()
	stamp := time.Now().UnixNano()

	owner, err := s.CreateUser(ctx, domain.UserAccount{
		Username: fmt.Sprintf("owner-it-%d", stamp),
		Password: "hashed",
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	shop, err := s.CreateShop(ctx, domain.Shop{Name: fmt.Sprintf("Shop IT %d", stamp), OwnerID: owner.ID})
	if err != nil {
		t.Fatalf("create shop: %v", err)
	}
	t.Cleanup(func() {
		_ = s.DeleteShop(context.Background(), shop.ID)
		_, _ = s.db.ExecContext(context.Background(), `DELETE FROM users WHERE id = $1`, owner.ID)
	})

	product, err := s.CreateProduct(ctx, domain.Product{
		ShopID:       shop.ID,
		Name:         "Kopi Susu",
		CostPrice:    decimal.RequireFromString("5000"),
		SellingPrice: decimal.RequireFromString("8000"),
		Quantity:     stock,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	scope := domain.Scope{UserID: owner.ID, ShopID: shop.ID, Role: domain.RoleOwner}
	return scope, product
}

func newSale(scope domain.Scope, productID string, qty int) domain.Sale {
	return domain.Sale{
		ShopID:        scope.ShopID,
		EmployeeID:    scope.UserID,
		InvoiceNumber: xid.InvoiceNumber(time.Now()),
		Items:         []domain.SaleItem{{ProductID: productID, Quantity: qty}},
	}
}

func TestCreateSaleDecrementsStockAndRollsBackOnShortage(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	scope, product := seedShop(t, s, 10)

	sale, err := s.CreateSale(ctx, scope, newSale(scope, product.ID, 4), &domain.Customer{FullName: "Budi", Phone: "0811"})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if !sale.TotalAmount.Equal(decimal.RequireFromString("32000")) {
		t.Fatalf("expected total 32000, got %s", sale.TotalAmount)
	}
	if !sale.ProfitAmount.Equal(decimal.RequireFromString("12000")) {
		t.Fatalf("expected profit 12000, got %s", sale.ProfitAmount)
	}
	if sale.Customer == nil || sale.Customer.Phone != "0811" {
		t.Fatalf("expected customer to be attached, got %+v", sale.Customer)
	}

	_, err = s.CreateSale(ctx, scope, newSale(scope, product.ID, 7), nil)
	var stockErr *store.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected insufficient stock error, got %v", err)
	}
	if stockErr.Available != 6 || stockErr.Requested != 7 {
		t.Fatalf("unexpected stock error detail: %+v", stockErr)
	}

	after, err := s.GetProduct(ctx, scope, product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if after.Quantity != 6 {
		t.Fatalf("expected stock 6 after rollback, got %d", after.Quantity)
	}
	sales, err := s.ListSales(ctx, scope, store.ListFilter{})
	if err != nil {
		t.Fatalf("list sales: %v", err)
	}
	if len(sales) != 1 {
		t.Fatalf("expected exactly one sale, got %d", len(sales))
	}
}

func TestConcurrentSalesNeverOversell(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	scope, product := seedShop(t, s, 5)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.CreateSale(ctx, scope, newSale(scope, product.ID, 1), nil); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	after, err := s.GetProduct(ctx, scope, product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if succeeded != 5 || after.Quantity != 0 {
		t.Fatalf("expected 5 sales and zero stock, got %d sales and stock %d", succeeded, after.Quantity)
	}
}

func TestDeleteSaleRestoresStock(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	scope, product := seedShop(t, s, 3)

	sale, err := s.CreateSale(ctx, scope, newSale(scope, product.ID, 2), nil)
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if err := s.DeleteProduct(ctx, scope, product.ID); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict deleting referenced product, got %v", err)
	}
	if err := s.DeleteSale(ctx, scope, sale.ID); err != nil {
		t.Fatalf("delete sale: %v", err)
	}
	after, err := s.GetProduct(ctx, scope, product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if after.Quantity != 3 {
		t.Fatalf("expected stock restored to 3, got %d", after.Quantity)
	}
}

func TestSaleItemsKeepEntryOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	scope, first := seedShop(t, s, 10)

	want := []string{first.ID}
	for _, name := range []string{"Teh Manis", "Roti Bakar", "Es Jeruk"} {
		product, err := s.CreateProduct(ctx, domain.Product{
			ShopID:       scope.ShopID,
			Name:         name,
			CostPrice:    decimal.RequireFromString("2000"),
			SellingPrice: decimal.RequireFromString("4000"),
			Quantity:     10,
		})
		if err != nil {
			t.Fatalf("create product %s: %v", name, err)
		}
		want = append([]string{product.ID}, want...)
	}

	sale := newSale(scope, want[0], 1)
	for _, id := range want[1:] {
		sale.Items = append(sale.Items, domain.SaleItem{ProductID: id, Quantity: 1})
	}
	created, err := s.CreateSale(ctx, scope, sale, nil)
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}

	reloaded, err := s.GetSale(ctx, scope, created.ID)
	if err != nil {
		t.Fatalf("get sale: %v", err)
	}
	items, err := s.ListSaleItems(ctx, scope, created.ID)
	if err != nil {
		t.Fatalf("list sale items: %v", err)
	}
	for _, got := range [][]domain.SaleItem{reloaded.Items, items} {
		if len(got) != len(want) {
			t.Fatalf("expected %d items, got %d", len(want), len(got))
		}
		for i, item := range got {
			if item.ProductID != want[i] {
				t.Fatalf("item %d: expected product %s, got %s", i, want[i], item.ProductID)
			}
		}
	}
}
