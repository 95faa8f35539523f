package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"shopmate/backend/internal/domain"
	"shopmate/backend/internal/store"
	"shopmate/backend/internal/xid"
)

// Store keeps every entity in maps guarded by a single lock. Sales mutate
// stock under the write lock, which makes each sale atomic and serialises
// concurrent sales against the same product.
type Store struct {
	mu          sync.RWMutex
	users       map[string]domain.UserAccount
	usernames   map[string]string
	shops       map[string]domain.Shop
	memberships map[string]domain.Membership
	branches    map[string]domain.Branch
	categories  map[string]domain.Category
	products    map[string]domain.Product
	customers   map[string]domain.Customer
	sales       map[string]*domain.Sale
	itemSale    map[string]string
	invoices    map[string]domain.Invoice
	expenses    map[string]domain.Expense
}

func New() *Store {
	return &Store{
		users:       make(map[string]domain.UserAccount),
		usernames:   make(map[string]string),
		shops:       make(map[string]domain.Shop),
		memberships: make(map[string]domain.Membership),
		branches:    make(map[string]domain.Branch),
		categories:  make(map[string]domain.Category),
		products:    make(map[string]domain.Product),
		customers:   make(map[string]domain.Customer),
		sales:       make(map[string]*domain.Sale),
		itemSale:    make(map[string]string),
		invoices:    make(map[string]domain.Invoice),
		expenses:    make(map[string]domain.Expense),
	}
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) (*domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(strings.TrimSpace(user.Username))
	if key == "" || user.Password == "" {
		return nil, store.ErrInvalidInput
	}
	if _, exists := s.usernames[key]; exists {
		return nil, fmt.Errorf("%w: username already exists", store.ErrConflict)
	}
	if user.ID == "" {
		user.ID = xid.New()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.users[user.ID] = user
	s.usernames[key] = user.ID
	created := user
	return &created, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usernames[strings.ToLower(strings.TrimSpace(username))]
	if !ok {
		return nil, store.ErrNotFound
	}
	user := s.users[id]
	return &user, nil
}

func (s *Store) GetUserByID(_ context.Context, id string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &user, nil
}

func (s *Store) CreateShop(_ context.Context, shop domain.Shop) (*domain.Shop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if shop.OwnerID == "" || strings.TrimSpace(shop.Name) == "" {
		return nil, store.ErrInvalidInput
	}
	for _, existing := range s.shops {
		if existing.OwnerID == shop.OwnerID {
			return nil, fmt.Errorf("%w: user already owns a shop", store.ErrConflict)
		}
	}
	if shop.ID == "" {
		shop.ID = xid.New()
	}
	if shop.CreatedAt.IsZero() {
		shop.CreatedAt = time.Now().UTC()
	}
	shop.UpdatedAt = shop.CreatedAt
	s.shops[shop.ID] = shop

	owner := domain.Membership{
		ID:        xid.New(),
		UserID:    shop.OwnerID,
		ShopID:    shop.ID,
		Role:      domain.RoleOwner,
		Status:    domain.MembershipApproved,
		CreatedAt: shop.CreatedAt,
	}
	s.memberships[owner.ID] = owner

	created := shop
	return &created, nil
}

func (s *Store) GetShop(_ context.Context, id string) (*domain.Shop, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	shop, ok := s.shops[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &shop, nil
}

func (s *Store) GetShopByOwner(_ context.Context, ownerID string) (*domain.Shop, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *domain.Shop
	for _, shop := range s.shops {
		if shop.OwnerID != ownerID {
			continue
		}
		if found == nil || shop.CreatedAt.Before(found.CreatedAt) {
			dup := shop
			found = &dup
		}
	}
	if found == nil {
		return nil, store.ErrNotFound
	}
	return found, nil
}

func (s *Store) SearchShops(_ context.Context, query string, limit int) ([]domain.Shop, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 10
	}
	needle := strings.ToLower(strings.TrimSpace(query))
	result := make([]domain.Shop, 0, limit)
	for _, shop := range s.shops {
		if needle != "" && !strings.Contains(strings.ToLower(shop.Name), needle) {
			continue
		}
		result = append(result, shop)
	}
	slices.SortFunc(result, func(a, b domain.Shop) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) UpdateShop(_ context.Context, shop domain.Shop) (*domain.Shop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.shops[shop.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	shop.OwnerID = existing.OwnerID
	shop.CreatedAt = existing.CreatedAt
	shop.UpdatedAt = time.Now().UTC()
	s.shops[shop.ID] = shop
	updated := shop
	return &updated, nil
}

func (s *Store) DeleteShop(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.shops[id]; !ok {
		return store.ErrNotFound
	}
	for key, m := range s.memberships {
		if m.ShopID == id {
			delete(s.memberships, key)
		}
	}
	for key, b := range s.branches {
		if b.ShopID == id {
			delete(s.branches, key)
		}
	}
	for key, c := range s.categories {
		if c.ShopID == id {
			delete(s.categories, key)
		}
	}
	for key, sale := range s.sales {
		if sale.ShopID == id {
			s.dropSaleLocked(key)
		}
	}
	for key, p := range s.products {
		if p.ShopID == id {
			delete(s.products, key)
		}
	}
	for key, c := range s.customers {
		if c.ShopID == id {
			delete(s.customers, key)
		}
	}
	for key, e := range s.expenses {
		if e.ShopID == id {
			delete(s.expenses, key)
		}
	}
	delete(s.shops, id)
	return nil
}

func (s *Store) CreateMembership(_ context.Context, membership domain.Membership) (*domain.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.shops[membership.ShopID]; !ok {
		return nil, store.ErrNotFound
	}
	for _, m := range s.memberships {
		if m.UserID == membership.UserID && m.ShopID == membership.ShopID {
			return nil, fmt.Errorf("%w: membership already exists", store.ErrConflict)
		}
	}
	if membership.ID == "" {
		membership.ID = xid.New()
	}
	if membership.CreatedAt.IsZero() {
		membership.CreatedAt = time.Now().UTC()
	}
	s.memberships[membership.ID] = membership
	return s.decorateMembershipLocked(membership), nil
}

func (s *Store) GetMembership(_ context.Context, id string) (*domain.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.memberships[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return s.decorateMembershipLocked(m), nil
}

func (s *Store) FindApprovedMembership(_ context.Context, userID string) (*domain.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *domain.Membership
	for _, m := range s.memberships {
		if m.UserID != userID || m.Status != domain.MembershipApproved {
			continue
		}
		if found == nil || m.CreatedAt.Before(found.CreatedAt) {
			found = s.decorateMembershipLocked(m)
		}
	}
	if found == nil {
		return nil, store.ErrNotFound
	}
	return found, nil
}

func (s *Store) ListMembershipsByUser(_ context.Context, userID string) ([]domain.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Membership, 0, 4)
	for _, m := range s.memberships {
		if m.UserID == userID {
			result = append(result, *s.decorateMembershipLocked(m))
		}
	}
	sortMemberships(result)
	return result, nil
}

func (s *Store) ListMembershipsByShop(_ context.Context, shopID string, status string) ([]domain.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Membership, 0, 8)
	for _, m := range s.memberships {
		if m.ShopID != shopID {
			continue
		}
		if status != "" && m.Status != status {
			continue
		}
		result = append(result, *s.decorateMembershipLocked(m))
	}
	sortMemberships(result)
	return result, nil
}

func (s *Store) TransitionMembership(_ context.Context, id string, from string, to string, branchID string) (*domain.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.memberships[id]
	if !ok || m.Status != from {
		return nil, store.ErrNotFound
	}
	if branchID != "" {
		branch, ok := s.branches[branchID]
		if !ok || branch.ShopID != m.ShopID {
			return nil, fmt.Errorf("%w: branch does not belong to shop", store.ErrInvalidInput)
		}
	}
	m.Status = to
	m.BranchID = branchID
	s.memberships[id] = m
	return s.decorateMembershipLocked(m), nil
}

func (s *Store) DeleteMembership(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.memberships[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.memberships, id)
	return nil
}

func (s *Store) CreateBranch(_ context.Context, branch domain.Branch) (*domain.Branch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.shops[branch.ShopID]; !ok {
		return nil, store.ErrNotFound
	}
	if branch.ID == "" {
		branch.ID = xid.New()
	}
	if branch.CreatedAt.IsZero() {
		branch.CreatedAt = time.Now().UTC()
	}
	s.branches[branch.ID] = branch
	created := branch
	return &created, nil
}

func (s *Store) GetBranch(_ context.Context, scope domain.Scope, id string) (*domain.Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	branch, ok := s.branches[id]
	if !ok || !scope.Allows(branch.ShopID, branch.ID) {
		return nil, store.ErrNotFound
	}
	return &branch, nil
}

func (s *Store) ListBranches(_ context.Context, scope domain.Scope) ([]domain.Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Branch, 0, 8)
	for _, branch := range s.branches {
		if scope.Allows(branch.ShopID, branch.ID) {
			result = append(result, branch)
		}
	}
	sortBranches(result)
	return result, nil
}

func (s *Store) ListBranchesByShop(_ context.Context, shopID string) ([]domain.Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Branch, 0, 8)
	for _, branch := range s.branches {
		if branch.ShopID == shopID {
			result = append(result, branch)
		}
	}
	sortBranches(result)
	return result, nil
}

func (s *Store) UpdateBranch(_ context.Context, scope domain.Scope, branch domain.Branch) (*domain.Branch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.branches[branch.ID]
	if !ok || !scope.Allows(existing.ShopID, existing.ID) {
		return nil, store.ErrNotFound
	}
	branch.ShopID = existing.ShopID
	branch.CreatedAt = existing.CreatedAt
	s.branches[branch.ID] = branch
	updated := branch
	return &updated, nil
}

func (s *Store) DeleteBranch(_ context.Context, scope domain.Scope, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	branch, ok := s.branches[id]
	if !ok || !scope.Allows(branch.ShopID, branch.ID) {
		return store.ErrNotFound
	}
	for key, m := range s.memberships {
		if m.BranchID == id {
			m.BranchID = ""
			s.memberships[key] = m
		}
	}
	for key, p := range s.products {
		if p.BranchID == id {
			p.BranchID = ""
			s.products[key] = p
		}
	}
	for _, sale := range s.sales {
		if sale.BranchID == id {
			sale.BranchID = ""
		}
	}
	for key, e := range s.expenses {
		if e.BranchID == id {
			e.BranchID = ""
			s.expenses[key] = e
		}
	}
	delete(s.branches, id)
	return nil
}

func (s *Store) CreateCategory(_ context.Context, category domain.Category) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.shops[category.ShopID]; !ok {
		return nil, store.ErrNotFound
	}
	if s.categoryNameTakenLocked(category.ShopID, category.Name, "") {
		return nil, fmt.Errorf("%w: category %q already exists", store.ErrConflict, category.Name)
	}
	if category.ID == "" {
		category.ID = xid.New()
	}
	if category.CreatedAt.IsZero() {
		category.CreatedAt = time.Now().UTC()
	}
	s.categories[category.ID] = category
	created := category
	return &created, nil
}

func (s *Store) GetCategory(_ context.Context, scope domain.Scope, id string) (*domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	category, ok := s.categories[id]
	if !ok || !scope.AllowsShop(category.ShopID) {
		return nil, store.ErrNotFound
	}
	return &category, nil
}

func (s *Store) ListCategories(_ context.Context, scope domain.Scope) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Category, 0, 16)
	for _, category := range s.categories {
		if scope.AllowsShop(category.ShopID) {
			result = append(result, category)
		}
	}
	slices.SortFunc(result, func(a, b domain.Category) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return result, nil
}

func (s *Store) UpdateCategory(_ context.Context, scope domain.Scope, category domain.Category) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.categories[category.ID]
	if !ok || !scope.AllowsShop(existing.ShopID) {
		return nil, store.ErrNotFound
	}
	if s.categoryNameTakenLocked(existing.ShopID, category.Name, category.ID) {
		return nil, fmt.Errorf("%w: category %q already exists", store.ErrConflict, category.Name)
	}
	category.ShopID = existing.ShopID
	category.CreatedAt = existing.CreatedAt
	s.categories[category.ID] = category
	updated := category
	return &updated, nil
}

func (s *Store) DeleteCategory(_ context.Context, scope domain.Scope, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	category, ok := s.categories[id]
	if !ok || !scope.AllowsShop(category.ShopID) {
		return store.ErrNotFound
	}
	for key, p := range s.products {
		if p.CategoryID == id {
			p.CategoryID = ""
			s.products[key] = p
		}
	}
	delete(s.categories, id)
	return nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.shops[product.ShopID]; !ok {
		return nil, store.ErrNotFound
	}
	if product.Quantity < 0 {
		return nil, store.ErrInvalidInput
	}
	now := time.Now().UTC()
	if product.ID == "" {
		product.ID = xid.New()
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = product.CreatedAt
	product.Category = nil
	s.products[product.ID] = product
	return s.decorateProductLocked(product), nil
}

func (s *Store) GetProduct(_ context.Context, scope domain.Scope, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, ok := s.products[id]
	if !ok || !scope.Allows(product.ShopID, product.BranchID) {
		return nil, store.ErrNotFound
	}
	return s.decorateProductLocked(product), nil
}

func (s *Store) ListProducts(_ context.Context, scope domain.Scope, filter store.ListFilter) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(filter.Search))
	result := make([]domain.Product, 0, 32)
	for _, product := range s.products {
		if !scope.Allows(product.ShopID, product.BranchID) {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(product.Name), needle) {
			continue
		}
		result = append(result, *s.decorateProductLocked(product))
	}
	slices.SortFunc(result, func(a, b domain.Product) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return limitSlice(result, filter.Limit), nil
}

func (s *Store) UpdateProduct(_ context.Context, scope domain.Scope, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.products[product.ID]
	if !ok || !scope.Allows(existing.ShopID, existing.BranchID) {
		return nil, store.ErrNotFound
	}
	if product.Quantity < 0 {
		return nil, store.ErrInvalidInput
	}
	product.ShopID = existing.ShopID
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = time.Now().UTC()
	product.Category = nil
	s.products[product.ID] = product
	return s.decorateProductLocked(product), nil
}

func (s *Store) DeleteProduct(_ context.Context, scope domain.Scope, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.products[id]
	if !ok || !scope.Allows(product.ShopID, product.BranchID) {
		return store.ErrNotFound
	}
	for _, sale := range s.sales {
		for _, item := range sale.Items {
			if item.ProductID == id {
				return fmt.Errorf("%w: product %s is referenced by sale %s", store.ErrConflict, product.Name, sale.InvoiceNumber)
			}
		}
	}
	delete(s.products, id)
	return nil
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.shops[customer.ShopID]; !ok {
		return nil, store.ErrNotFound
	}
	return s.insertCustomerLocked(customer), nil
}

func (s *Store) GetCustomer(_ context.Context, scope domain.Scope, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, ok := s.customers[id]
	if !ok || !scope.AllowsShop(customer.ShopID) {
		return nil, store.ErrNotFound
	}
	return &customer, nil
}

func (s *Store) ListCustomers(_ context.Context, scope domain.Scope, filter store.ListFilter) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(filter.Search))
	result := make([]domain.Customer, 0, 32)
	for _, customer := range s.customers {
		if !scope.AllowsShop(customer.ShopID) {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(customer.FullName), needle) && !strings.Contains(customer.Phone, needle) {
			continue
		}
		result = append(result, customer)
	}
	slices.SortFunc(result, func(a, b domain.Customer) int {
		return cmp.Or(cmp.Compare(a.FullName, b.FullName), cmp.Compare(a.ID, b.ID))
	})
	return limitSlice(result, filter.Limit), nil
}

func (s *Store) UpdateCustomer(_ context.Context, scope domain.Scope, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.customers[customer.ID]
	if !ok || !scope.AllowsShop(existing.ShopID) {
		return nil, store.ErrNotFound
	}
	customer.ShopID = existing.ShopID
	customer.CreatedAt = existing.CreatedAt
	customer.UpdatedAt = time.Now().UTC()
	s.customers[customer.ID] = customer
	updated := customer
	return &updated, nil
}

func (s *Store) DeleteCustomer(_ context.Context, scope domain.Scope, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	customer, ok := s.customers[id]
	if !ok || !scope.AllowsShop(customer.ShopID) {
		return store.ErrNotFound
	}
	for _, sale := range s.sales {
		if sale.CustomerID == id {
			sale.CustomerID = ""
		}
	}
	delete(s.customers, id)
	return nil
}

func (s *Store) CreateSale(_ context.Context, scope domain.Scope, sale domain.Sale, customer *domain.Customer) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !scope.Allows(sale.ShopID, sale.BranchID) {
		return nil, store.ErrNotFound
	}
	if len(sale.Items) == 0 {
		return nil, store.ErrInvalidInput
	}
	if sale.BranchID != "" {
		branch, ok := s.branches[sale.BranchID]
		if !ok || branch.ShopID != sale.ShopID {
			return nil, fmt.Errorf("%w: branch does not belong to shop", store.ErrInvalidInput)
		}
	}
	for _, existing := range s.sales {
		if existing.InvoiceNumber == sale.InvoiceNumber {
			return nil, fmt.Errorf("%w: invoice number %s already used", store.ErrConflict, sale.InvoiceNumber)
		}
	}

	// Validate every line before touching any state so a failure leaves no trace.
	products := make([]domain.Product, 0, len(sale.Items))
	for _, item := range sale.Items {
		product, err := s.stockCheckLocked(scope, sale.ShopID, item.ProductID, item.Quantity)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}

	if sale.ID == "" {
		sale.ID = xid.New()
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	if sale.Status == "" {
		sale.Status = domain.SaleStatusPending
	}
	if customer != nil {
		resolved := s.getOrCreateCustomerLocked(sale.ShopID, *customer)
		sale.CustomerID = resolved.ID
	}

	items := make([]domain.SaleItem, 0, len(sale.Items))
	for i, item := range sale.Items {
		product := products[i]
		product.Quantity -= item.Quantity
		product.UpdatedAt = time.Now().UTC()
		s.products[product.ID] = product
		items = append(items, domain.NewSaleItem(xid.New(), sale.ID, product, item.Quantity))
	}
	sale.Items = items
	sale.Customer = nil
	sale.Recalculate()

	stored := cloneSale(&sale)
	s.sales[sale.ID] = stored
	for _, item := range stored.Items {
		s.itemSale[item.ID] = sale.ID
	}
	return s.decorateSaleLocked(stored), nil
}

func (s *Store) GetSale(_ context.Context, scope domain.Scope, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.sales[id]
	if !ok || !scope.Allows(sale.ShopID, sale.BranchID) {
		return nil, store.ErrNotFound
	}
	return s.decorateSaleLocked(sale), nil
}

func (s *Store) ListSales(_ context.Context, scope domain.Scope, filter store.ListFilter) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Sale, 0, 32)
	for _, sale := range s.sales {
		if !scope.Allows(sale.ShopID, sale.BranchID) {
			continue
		}
		if !filter.From.IsZero() && sale.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && sale.CreatedAt.After(filter.To) {
			continue
		}
		result = append(result, *s.decorateSaleLocked(sale))
	}
	slices.SortFunc(result, func(a, b domain.Sale) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return limitSlice(result, filter.Limit), nil
}

func (s *Store) SetSaleStatus(_ context.Context, scope domain.Scope, id string, status string) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, ok := s.sales[id]
	if !ok || !scope.Allows(sale.ShopID, sale.BranchID) {
		return nil, store.ErrNotFound
	}
	sale.Status = status
	return s.decorateSaleLocked(sale), nil
}

func (s *Store) DeleteSale(_ context.Context, scope domain.Scope, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, ok := s.sales[id]
	if !ok || !scope.Allows(sale.ShopID, sale.BranchID) {
		return store.ErrNotFound
	}
	for _, item := range sale.Items {
		s.restockLocked(item.ProductID, item.Quantity)
	}
	s.dropSaleLocked(id)
	return nil
}

func (s *Store) AddSaleItem(_ context.Context, scope domain.Scope, saleID string, line domain.SaleLine) (*domain.SaleItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, ok := s.sales[saleID]
	if !ok || !scope.Allows(sale.ShopID, sale.BranchID) {
		return nil, store.ErrNotFound
	}
	product, err := s.stockCheckLocked(scope, sale.ShopID, line.ProductID, line.Quantity)
	if err != nil {
		return nil, err
	}
	product.Quantity -= line.Quantity
	product.UpdatedAt = time.Now().UTC()
	s.products[product.ID] = product

	item := domain.NewSaleItem(xid.New(), sale.ID, product, line.Quantity)
	sale.Items = append(sale.Items, item)
	sale.Recalculate()
	s.itemSale[item.ID] = sale.ID
	return &item, nil
}

func (s *Store) GetSaleItem(_ context.Context, scope domain.Scope, id string) (*domain.SaleItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, idx := s.findItemLocked(scope, id)
	if sale == nil {
		return nil, store.ErrNotFound
	}
	item := sale.Items[idx]
	return &item, nil
}

func (s *Store) ListSaleItems(_ context.Context, scope domain.Scope, saleID string) ([]domain.SaleItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.SaleItem, 0, 32)
	for _, sale := range s.sales {
		if !scope.Allows(sale.ShopID, sale.BranchID) {
			continue
		}
		if saleID != "" && sale.ID != saleID {
			continue
		}
		result = append(result, sale.Items...)
	}
	// Items keep their entry order within a sale.
	slices.SortStableFunc(result, func(a, b domain.SaleItem) int {
		return cmp.Compare(a.SaleID, b.SaleID)
	})
	return result, nil
}

func (s *Store) DeleteSaleItem(_ context.Context, scope domain.Scope, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, idx := s.findItemLocked(scope, id)
	if sale == nil {
		return store.ErrNotFound
	}
	item := sale.Items[idx]
	s.restockLocked(item.ProductID, item.Quantity)
	sale.Items = slices.Delete(sale.Items, idx, idx+1)
	sale.Recalculate()
	delete(s.itemSale, id)
	return nil
}

func (s *Store) CreateInvoice(_ context.Context, scope domain.Scope, invoice domain.Invoice) (*domain.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, ok := s.sales[invoice.SaleID]
	if !ok || !scope.Allows(sale.ShopID, sale.BranchID) {
		return nil, store.ErrNotFound
	}
	for _, existing := range s.invoices {
		if existing.SaleID == invoice.SaleID {
			return nil, fmt.Errorf("%w: sale already has an invoice", store.ErrConflict)
		}
	}
	if invoice.ID == "" {
		invoice.ID = xid.New()
	}
	if invoice.CreatedAt.IsZero() {
		invoice.CreatedAt = time.Now().UTC()
	}
	s.invoices[invoice.ID] = invoice
	return s.decorateInvoiceLocked(invoice), nil
}

func (s *Store) GetInvoice(_ context.Context, scope domain.Scope, id string) (*domain.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	invoice, ok := s.visibleInvoiceLocked(scope, id)
	if !ok {
		return nil, store.ErrNotFound
	}
	return s.decorateInvoiceLocked(invoice), nil
}

func (s *Store) ListInvoices(_ context.Context, scope domain.Scope) ([]domain.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Invoice, 0, 16)
	for id := range s.invoices {
		if invoice, ok := s.visibleInvoiceLocked(scope, id); ok {
			result = append(result, *s.decorateInvoiceLocked(invoice))
		}
	}
	slices.SortFunc(result, func(a, b domain.Invoice) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return result, nil
}

func (s *Store) UpdateInvoice(_ context.Context, scope domain.Scope, invoice domain.Invoice) (*domain.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.visibleInvoiceLocked(scope, invoice.ID)
	if !ok {
		return nil, store.ErrNotFound
	}
	existing.Sent = invoice.Sent
	existing.Printed = invoice.Printed
	s.invoices[existing.ID] = existing
	return s.decorateInvoiceLocked(existing), nil
}

func (s *Store) DeleteInvoice(_ context.Context, scope domain.Scope, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.visibleInvoiceLocked(scope, id); !ok {
		return store.ErrNotFound
	}
	delete(s.invoices, id)
	return nil
}

func (s *Store) CreateExpense(_ context.Context, expense domain.Expense) (*domain.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.shops[expense.ShopID]; !ok {
		return nil, store.ErrNotFound
	}
	if expense.ID == "" {
		expense.ID = xid.New()
	}
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = time.Now().UTC()
	}
	expense.Date = domain.DateOnly(expense.Date)
	s.expenses[expense.ID] = expense
	created := expense
	return &created, nil
}

func (s *Store) GetExpense(_ context.Context, scope domain.Scope, id string) (*domain.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expense, ok := s.expenses[id]
	if !ok || !scope.Allows(expense.ShopID, expense.BranchID) {
		return nil, store.ErrNotFound
	}
	return &expense, nil
}

func (s *Store) ListExpenses(_ context.Context, scope domain.Scope, filter store.ListFilter) ([]domain.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	from := time.Time{}
	if !filter.From.IsZero() {
		from = domain.DateOnly(filter.From)
	}
	result := make([]domain.Expense, 0, 32)
	for _, expense := range s.expenses {
		if !scope.Allows(expense.ShopID, expense.BranchID) {
			continue
		}
		if !from.IsZero() && expense.Date.Before(from) {
			continue
		}
		if !filter.To.IsZero() && expense.Date.After(filter.To) {
			continue
		}
		result = append(result, expense)
	}
	slices.SortFunc(result, func(a, b domain.Expense) int {
		return cmp.Or(b.Date.Compare(a.Date), b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return limitSlice(result, filter.Limit), nil
}

func (s *Store) UpdateExpense(_ context.Context, scope domain.Scope, expense domain.Expense) (*domain.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.expenses[expense.ID]
	if !ok || !scope.Allows(existing.ShopID, existing.BranchID) {
		return nil, store.ErrNotFound
	}
	expense.ShopID = existing.ShopID
	expense.CreatedAt = existing.CreatedAt
	expense.Date = domain.DateOnly(expense.Date)
	s.expenses[expense.ID] = expense
	updated := expense
	return &updated, nil
}

func (s *Store) DeleteExpense(_ context.Context, scope domain.Scope, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	expense, ok := s.expenses[id]
	if !ok || !scope.Allows(expense.ShopID, expense.BranchID) {
		return store.ErrNotFound
	}
	delete(s.expenses, id)
	return nil
}

func (s *Store) stockCheckLocked(scope domain.Scope, shopID string, productID string, qty int) (domain.Product, error) {
	if qty < 1 || qty > domain.MaxQuantity {
		return domain.Product{}, fmt.Errorf("%w: quantity %d out of range", store.ErrInvalidInput, qty)
	}
	product, ok := s.products[productID]
	if !ok || product.ShopID != shopID || !scope.Allows(product.ShopID, product.BranchID) {
		return domain.Product{}, fmt.Errorf("%w: product %s", store.ErrNotFound, productID)
	}
	if product.Quantity < qty {
		return domain.Product{}, &store.InsufficientStockError{
			ProductID:   product.ID,
			ProductName: product.Name,
			Available:   product.Quantity,
			Requested:   qty,
		}
	}
	return product, nil
}

func (s *Store) restockLocked(productID string, qty int) {
	product, ok := s.products[productID]
	if !ok {
		return
	}
	product.Quantity += qty
	product.UpdatedAt = time.Now().UTC()
	s.products[productID] = product
}

func (s *Store) dropSaleLocked(id string) {
	sale, ok := s.sales[id]
	if !ok {
		return
	}
	for _, item := range sale.Items {
		delete(s.itemSale, item.ID)
	}
	for key, invoice := range s.invoices {
		if invoice.SaleID == id {
			delete(s.invoices, key)
		}
	}
	delete(s.sales, id)
}

func (s *Store) findItemLocked(scope domain.Scope, itemID string) (*domain.Sale, int) {
	saleID, ok := s.itemSale[itemID]
	if !ok {
		return nil, -1
	}
	sale, ok := s.sales[saleID]
	if !ok || !scope.Allows(sale.ShopID, sale.BranchID) {
		return nil, -1
	}
	idx := slices.IndexFunc(sale.Items, func(item domain.SaleItem) bool { return item.ID == itemID })
	if idx < 0 {
		return nil, -1
	}
	return sale, idx
}

func (s *Store) visibleInvoiceLocked(scope domain.Scope, id string) (domain.Invoice, bool) {
	invoice, ok := s.invoices[id]
	if !ok {
		return domain.Invoice{}, false
	}
	sale, ok := s.sales[invoice.SaleID]
	if !ok || !scope.Allows(sale.ShopID, sale.BranchID) {
		return domain.Invoice{}, false
	}
	return invoice, true
}

func (s *Store) getOrCreateCustomerLocked(shopID string, customer domain.Customer) domain.Customer {
	phone := strings.TrimSpace(customer.Phone)
	for _, existing := range s.customers {
		if existing.ShopID == shopID && existing.Phone == phone {
			return existing
		}
	}
	customer.ShopID = shopID
	customer.Phone = phone
	return *s.insertCustomerLocked(customer)
}

func (s *Store) insertCustomerLocked(customer domain.Customer) *domain.Customer {
	now := time.Now().UTC()
	if customer.ID == "" {
		customer.ID = xid.New()
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = now
	}
	customer.UpdatedAt = customer.CreatedAt
	s.customers[customer.ID] = customer
	created := customer
	return &created
}

func (s *Store) categoryNameTakenLocked(shopID string, name string, exceptID string) bool {
	for _, c := range s.categories {
		if c.ShopID == shopID && c.ID != exceptID && strings.EqualFold(c.Name, name) {
			return true
		}
	}
	return false
}

func (s *Store) decorateMembershipLocked(m domain.Membership) *domain.Membership {
	if user, ok := s.users[m.UserID]; ok {
		m.Username = user.Username
	}
	if shop, ok := s.shops[m.ShopID]; ok {
		m.ShopName = shop.Name
	}
	return &m
}

func (s *Store) decorateProductLocked(p domain.Product) *domain.Product {
	p.Category = nil
	if p.CategoryID != "" {
		if category, ok := s.categories[p.CategoryID]; ok {
			p.Category = &category
		}
	}
	return &p
}

func (s *Store) decorateSaleLocked(sale *domain.Sale) *domain.Sale {
	dup := cloneSale(sale)
	if dup.CustomerID != "" {
		if customer, ok := s.customers[dup.CustomerID]; ok {
			dup.Customer = &customer
		}
	}
	return dup
}

func (s *Store) decorateInvoiceLocked(invoice domain.Invoice) *domain.Invoice {
	if sale, ok := s.sales[invoice.SaleID]; ok {
		invoice.ShopID = sale.ShopID
		invoice.BranchID = sale.BranchID
	}
	return &invoice
}

func cloneSale(src *domain.Sale) *domain.Sale {
	if src == nil {
		return nil
	}
	dup := *src
	dup.Items = slices.Clone(src.Items)
	if dup.Items == nil {
		dup.Items = []domain.SaleItem{}
	}
	dup.Customer = nil
	return &dup
}

func sortMemberships(items []domain.Membership) {
	slices.SortFunc(items, func(a, b domain.Membership) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
}

func sortBranches(items []domain.Branch) {
	slices.SortFunc(items, func(a, b domain.Branch) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
}

func limitSlice[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
