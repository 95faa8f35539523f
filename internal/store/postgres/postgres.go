package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"shopmate/backend/internal/domain"
	"shopmate/backend/internal/store"
	"shopmate/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) (*domain.UserAccount, error) {
	user.Username = strings.TrimSpace(user.Username)
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return nil, store.ErrInvalidInput
	}
	if user.ID == "" {
		user.ID = xid.New()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, password, email, full_name, phone, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, user.ID, user.Username, user.Password, user.Email, user.FullName, user.Phone, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: username already exists", store.ErrConflict)
		}
		return nil, err
	}
	return &user, nil
}

const userColumns = `id, username, password, email, full_name, phone, created_at`

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE lower(username) = lower($1)`, strings.TrimSpace(username))
	return scanUser(row)
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*domain.UserAccount, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func scanUser(row rowScanner) (*domain.UserAccount, error) {
	var user domain.UserAccount
	if err := row.Scan(&user.ID, &user.Username, &user.Password, &user.Email, &user.FullName, &user.Phone, &user.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}

func (s *Store) CreateShop(ctx context.Context, shop domain.Shop) (*domain.Shop, error) {
	if shop.OwnerID == "" || strings.TrimSpace(shop.Name) == "" {
		return nil, store.ErrInvalidInput
	}
	if shop.ID == "" {
		shop.ID = xid.New()
	}
	if shop.CreatedAt.IsZero() {
		shop.CreatedAt = time.Now().UTC()
	}
	shop.UpdatedAt = shop.CreatedAt

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO shops (id, name, owner_id, address, phone, email, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, shop.ID, shop.Name, shop.OwnerID, shop.Address, shop.Phone, shop.Email, shop.CreatedAt, shop.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: user already owns a shop", store.ErrConflict)
		}
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO memberships (id, user_id, shop_id, role, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, xid.New(), shop.OwnerID, shop.ID, domain.RoleOwner, domain.MembershipApproved, shop.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &shop, nil
}

const shopColumns = `id, name, owner_id, address, phone, email, created_at, updated_at`

func (s *Store) GetShop(ctx context.Context, id string) (*domain.Shop, error) {
	return scanShop(s.db.QueryRowContext(ctx, `SELECT `+shopColumns+` FROM shops WHERE id = $1`, id))
}

func (s *Store) GetShopByOwner(ctx context.Context, ownerID string) (*domain.Shop, error) {
	return scanShop(s.db.QueryRowContext(ctx, `
		SELECT `+shopColumns+` FROM shops WHERE owner_id = $1 ORDER BY created_at ASC LIMIT 1
	`, ownerID))
}

func (s *Store) SearchShops(ctx context.Context, query string, limit int) ([]domain.Shop, error) {
	if limit < 1 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+shopColumns+`
		FROM shops
		WHERE $1::text = '' OR name ILIKE '%' || $1 || '%'
		ORDER BY name ASC, id ASC
		LIMIT $2
	`, strings.TrimSpace(query), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	shops := make([]domain.Shop, 0, limit)
	for rows.Next() {
		shop, err := scanShop(rows)
		if err != nil {
			return nil, err
		}
		shops = append(shops, *shop)
	}
	return shops, rows.Err()
}

func (s *Store) UpdateShop(ctx context.Context, shop domain.Shop) (*domain.Shop, error) {
	return scanShop(s.db.QueryRowContext(ctx, `
		UPDATE shops
		SET name = $2, address = $3, phone = $4, email = $5, updated_at = now()
		WHERE id = $1
		RETURNING `+shopColumns+`
	`, shop.ID, shop.Name, shop.Address, shop.Phone, shop.Email))
}

func (s *Store) DeleteShop(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM shops WHERE id = $1`, id)
	return affectedOne(res, err)
}

func scanShop(row rowScanner) (*domain.Shop, error) {
	var shop domain.Shop
	if err := row.Scan(&shop.ID, &shop.Name, &shop.OwnerID, &shop.Address, &shop.Phone, &shop.Email, &shop.CreatedAt, &shop.UpdatedAt); err != nil {
		return nil, notFound(err)
	}
	shop.CreatedAt = shop.CreatedAt.UTC()
	shop.UpdatedAt = shop.UpdatedAt.UTC()
	return &shop, nil
}

const membershipSelect = `
	SELECT m.id, m.user_id, u.username, m.shop_id, sh.name, m.role, m.status, COALESCE(m.branch_id, ''), m.created_at
	FROM memberships m
	JOIN users u ON u.id = m.user_id
	JOIN shops sh ON sh.id = m.shop_id
`

func (s *Store) CreateMembership(ctx context.Context, membership domain.Membership) (*domain.Membership, error) {
	if membership.ID == "" {
		membership.ID = xid.New()
	}
	if membership.CreatedAt.IsZero() {
		membership.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memberships (id, user_id, shop_id, role, status, branch_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, membership.ID, membership.UserID, membership.ShopID, membership.Role, membership.Status,
		nullIfEmpty(membership.BranchID), membership.CreatedAt)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return nil, fmt.Errorf("%w: membership already exists", store.ErrConflict)
		case isForeignKeyViolation(err):
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return s.GetMembership(ctx, membership.ID)
}

func (s *Store) GetMembership(ctx context.Context, id string) (*domain.Membership, error) {
	return scanMembership(s.db.QueryRowContext(ctx, membershipSelect+` WHERE m.id = $1`, id))
}

func (s *Store) FindApprovedMembership(ctx context.Context, userID string) (*domain.Membership, error) {
	return scanMembership(s.db.QueryRowContext(ctx, membershipSelect+`
		WHERE m.user_id = $1 AND m.status = $2
		ORDER BY m.created_at ASC
		LIMIT 1
	`, userID, domain.MembershipApproved))
}

func (s *Store) ListMembershipsByUser(ctx context.Context, userID string) ([]domain.Membership, error) {
	return s.listMemberships(ctx, membershipSelect+` WHERE m.user_id = $1 ORDER BY m.created_at ASC, m.id ASC`, userID)
}

func (s *Store) ListMembershipsByShop(ctx context.Context, shopID string, status string) ([]domain.Membership, error) {
	return s.listMemberships(ctx, membershipSelect+`
		WHERE m.shop_id = $1 AND ($2::text = '' OR m.status = $2)
		ORDER BY m.created_at ASC, m.id ASC
	`, shopID, status)
}

func (s *Store) listMemberships(ctx context.Context, query string, args ...any) ([]domain.Membership, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	memberships := make([]domain.Membership, 0, 8)
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		memberships = append(memberships, *m)
	}
	return memberships, rows.Err()
}

func (s *Store) TransitionMembership(ctx context.Context, id string, from string, to string, branchID string) (*domain.Membership, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var shopID, status string
	err = tx.QueryRowContext(ctx, `SELECT shop_id, status FROM memberships WHERE id = $1 FOR UPDATE`, id).Scan(&shopID, &status)
	if err != nil {
		return nil, notFound(err)
	}
	if status != from {
		return nil, store.ErrNotFound
	}
	if branchID != "" {
		var exists bool
		err := tx.QueryRowContext(ctx, `
			SELECT EXISTS (SELECT 1 FROM branches WHERE id = $1 AND shop_id = $2)
		`, branchID, shopID).Scan(&exists)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("%w: branch does not belong to shop", store.ErrInvalidInput)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE memberships SET status = $2, branch_id = $3 WHERE id = $1
	`, id, to, nullIfEmpty(branchID)); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetMembership(ctx, id)
}

func (s *Store) DeleteMembership(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memberships WHERE id = $1`, id)
	return affectedOne(res, err)
}

func scanMembership(row rowScanner) (*domain.Membership, error) {
	var m domain.Membership
	if err := row.Scan(&m.ID, &m.UserID, &m.Username, &m.ShopID, &m.ShopName, &m.Role, &m.Status, &m.BranchID, &m.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	m.CreatedAt = m.CreatedAt.UTC()
	return &m, nil
}

const branchColumns = `b.id, b.shop_id, b.branch_name, b.phone, b.location, b.created_at`

func (s *Store) CreateBranch(ctx context.Context, branch domain.Branch) (*domain.Branch, error) {
	if branch.ID == "" {
		branch.ID = xid.New()
	}
	if branch.CreatedAt.IsZero() {
		branch.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO branches (id, shop_id, branch_name, phone, location, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, branch.ID, branch.ShopID, branch.BranchName, branch.Phone, branch.Location, branch.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &branch, nil
}

func (s *Store) GetBranch(ctx context.Context, scope domain.Scope, id string) (*domain.Branch, error) {
	if !scope.HasShop() {
		return nil, store.ErrNotFound
	}
	return scanBranch(s.db.QueryRowContext(ctx, `
		SELECT `+branchColumns+` FROM branches b
		WHERE b.id = $1 AND b.shop_id = $2 AND ($3::text = '' OR b.id = $3)
	`, id, scope.ShopID, scope.BranchID))
}

func (s *Store) ListBranches(ctx context.Context, scope domain.Scope) ([]domain.Branch, error) {
	if !scope.HasShop() {
		return []domain.Branch{}, nil
	}
	return s.listBranches(ctx, `
		SELECT `+branchColumns+` FROM branches b
		WHERE b.shop_id = $1 AND ($2::text = '' OR b.id = $2)
		ORDER BY b.created_at ASC, b.id ASC
	`, scope.ShopID, scope.BranchID)
}

func (s *Store) ListBranchesByShop(ctx context.Context, shopID string) ([]domain.Branch, error) {
	return s.listBranches(ctx, `
		SELECT `+branchColumns+` FROM branches b
		WHERE b.shop_id = $1
		ORDER BY b.created_at ASC, b.id ASC
	`, shopID)
}

func (s *Store) listBranches(ctx context.Context, query string, args ...any) ([]domain.Branch, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	branches := make([]domain.Branch, 0, 8)
	for rows.Next() {
		b, err := scanBranch(rows)
		if err != nil {
			return nil, err
		}
		branches = append(branches, *b)
	}
	return branches, rows.Err()
}

func (s *Store) UpdateBranch(ctx context.Context, scope domain.Scope, branch domain.Branch) (*domain.Branch, error) {
	if !scope.HasShop() {
		return nil, store.ErrNotFound
	}
	return scanBranch(s.db.QueryRowContext(ctx, `
		UPDATE branches b
		SET branch_name = $4, phone = $5, location = $6
		WHERE b.id = $1 AND b.shop_id = $2 AND ($3::text = '' OR b.id = $3)
		RETURNING `+branchColumns+`
	`, branch.ID, scope.ShopID, scope.BranchID, branch.BranchName, branch.Phone, branch.Location))
}

func (s *Store) DeleteBranch(ctx context.Context, scope domain.Scope, id string) error {
	if !scope.HasShop() {
		return store.ErrNotFound
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM branches b
		WHERE b.id = $1 AND b.shop_id = $2 AND ($3::text = '' OR b.id = $3)
	`, id, scope.ShopID, scope.BranchID)
	return affectedOne(res, err)
}

func scanBranch(row rowScanner) (*domain.Branch, error) {
	var b domain.Branch
	if err := row.Scan(&b.ID, &b.ShopID, &b.BranchName, &b.Phone, &b.Location, &b.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	b.CreatedAt = b.CreatedAt.UTC()
	return &b, nil
}

const categoryColumns = `id, shop_id, name, description, created_at`

func (s *Store) CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error) {
	if category.ID == "" {
		category.ID = xid.New()
	}
	if category.CreatedAt.IsZero() {
		category.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, shop_id, name, description, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, category.ID, category.ShopID, category.Name, category.Description, category.CreatedAt)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return nil, fmt.Errorf("%w: category %q already exists", store.ErrConflict, category.Name)
		case isForeignKeyViolation(err):
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &category, nil
}

func (s *Store) GetCategory(ctx context.Context, scope domain.Scope, id string) (*domain.Category, error) {
	if !scope.HasShop() {
		return nil, store.ErrNotFound
	}
	return scanCategory(s.db.QueryRowContext(ctx, `
		SELECT `+categoryColumns+` FROM categories WHERE id = $1 AND shop_id = $2
	`, id, scope.ShopID))
}

func (s *Store) ListCategories(ctx context.Context, scope domain.Scope) ([]domain.Category, error) {
	if !scope.HasShop() {
		return []domain.Category{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+categoryColumns+` FROM categories WHERE shop_id = $1 ORDER BY name ASC, id ASC
	`, scope.ShopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := make([]domain.Category, 0, 16)
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, *c)
	}
	return categories, rows.Err()
}

func (s *Store) UpdateCategory(ctx context.Context, scope domain.Scope, category domain.Category) (*domain.Category, error) {
	if !scope.HasShop() {
		return nil, store.ErrNotFound
	}
	updated, err := scanCategory(s.db.QueryRowContext(ctx, `
		UPDATE categories SET name = $3, description = $4
		WHERE id = $1 AND shop_id = $2
		RETURNING `+categoryColumns+`
	`, category.ID, scope.ShopID, category.Name, category.Description))
	if err != nil && isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: category %q already exists", store.ErrConflict, category.Name)
	}
	return updated, err
}

func (s *Store) DeleteCategory(ctx context.Context, scope domain.Scope, id string) error {
	if !scope.HasShop() {
		return store.ErrNotFound
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1 AND shop_id = $2`, id, scope.ShopID)
	return affectedOne(res, err)
}

func scanCategory(row rowScanner) (*domain.Category, error) {
	var c domain.Category
	if err := row.Scan(&c.ID, &c.ShopID, &c.Name, &c.Description, &c.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

const productSelect = `
	SELECT p.id, p.shop_id, COALESCE(p.branch_id, ''), COALESCE(p.category_id, ''), p.name, p.description,
		p.cost_price, p.selling_price, p.quantity, p.created_at, p.updated_at,
		c.id, c.name, c.description, c.created_at
	FROM products p
	LEFT JOIN categories c ON c.id = p.category_id
`

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Quantity < 0 {
		return nil, store.ErrInvalidInput
	}
	if product.ID == "" {
		product.ID = xid.New()
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	product.UpdatedAt = product.CreatedAt

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, shop_id, branch_id, category_id, name, description, cost_price, selling_price, quantity, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, product.ID, product.ShopID, nullIfEmpty(product.BranchID), nullIfEmpty(product.CategoryID), product.Name,
		product.Description, product.CostPrice, product.SellingPrice, product.Quantity, product.CreatedAt, product.UpdatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, err
	}
	return scanProduct(s.db.QueryRowContext(ctx, productSelect+` WHERE p.id = $1`, product.ID))
}

func (s *Store) GetProduct(ctx context.Context, scope domain.Scope, id string) (*domain.Product, error) {
	if !scope.HasShop() {
		return nil, store.ErrNotFound
	}
	return scanProduct(s.db.QueryRowContext(ctx, productSelect+`
		WHERE p.id = $1 AND p.shop_id = $2 AND ($3::text = '' OR p.branch_id = $3)
	`, id, scope.ShopID, scope.BranchID))
}

func (s *Store) ListProducts(ctx context.Context, scope domain.Scope, filter store.ListFilter) ([]domain.Product, error) {
	if !scope.HasShop() {
		return []domain.Product{}, nil
	}
	rows, err := s.db.QueryContext(ctx, productSelect+`
		WHERE p.shop_id = $1 AND ($2::text = '' OR p.branch_id = $2)
			AND ($3::text = '' OR p.name ILIKE '%' || $3 || '%')
		ORDER BY p.created_at DESC, p.id ASC
		LIMIT $4
	`, scope.ShopID, scope.BranchID, strings.TrimSpace(filter.Search), nullLimit(filter.Limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 32)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func (s *Store) UpdateProduct(ctx context.Context, scope domain.Scope, product domain.Product) (*domain.Product, error) {
	if !scope.HasShop() {
		return nil, store.ErrNotFound
	}
	if product.Quantity < 0 {
		return nil, store.ErrInvalidInput
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE products p
		SET branch_id = $4, category_id = $5, name = $6, description = $7,
			cost_price = $8, selling_price = $9, quantity = $10, updated_at = now()
		WHERE p.id = $1 AND p.shop_id = $2 AND ($3::text = '' OR p.branch_id = $3)
	`, product.ID, scope.ShopID, scope.BranchID, nullIfEmpty(product.BranchID), nullIfEmpty(product.CategoryID),
		product.Name, product.Description, product.CostPrice, product.SellingPrice, product.Quantity)
	if err != nil && isForeignKeyViolation(err) {
		return nil, store.ErrInvalidInput
	}
	if err := affectedOne(res, err); err != nil {
		return nil, err
	}
	return scanProduct(s.db.QueryRowContext(ctx, productSelect+` WHERE p.id = $1`, product.ID))
}

func (s *Store) DeleteProduct(ctx context.Context, scope domain.Scope, id string) error {
	if !scope.HasShop() {
		return store.ErrNotFound
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM products p
		WHERE p.id = $1 AND p.shop_id = $2 AND ($3::text = '' OR p.branch_id = $3)
	`, id, scope.ShopID, scope.BranchID)
	if err != nil && isForeignKeyViolation(err) {
		return fmt.Errorf("%w: product is referenced by sales", store.ErrConflict)
	}
	return affectedOne(res, err)
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	var p domain.Product
	var catID, catName, catDesc sql.NullString
	var catCreated sql.NullTime
	if err := row.Scan(
		&p.ID, &p.ShopID, &p.BranchID, &p.CategoryID, &p.Name, &p.Description,
		&p.CostPrice, &p.SellingPrice, &p.Quantity, &p.CreatedAt, &p.UpdatedAt,
		&catID, &catName, &catDesc, &catCreated,
	); err != nil {
		return nil, notFound(err)
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	if catID.Valid {
		p.Category = &domain.Category{
			ID:          catID.String,
			ShopID:      p.ShopID,
			Name:        catName.String,
			Description: catDesc.String,
			CreatedAt:   catCreated.Time.UTC(),
		}
	}
	return &p, nil
}

const customerColumns = `id, shop_id, full_name, phone, email, address, created_at, updated_at`

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	created, err := insertCustomer(ctx, s.db, customer)
	if err != nil && isForeignKeyViolation(err) {
		return nil, store.ErrNotFound
	}
	return created, err
}

func insertCustomer(ctx context.Context, q queryer, customer domain.Customer) (*domain.Customer, error) {
	if customer.ID == "" {
		customer.ID = xid.New()
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	customer.UpdatedAt = customer.CreatedAt
	_, err := q.ExecContext(ctx, `
		INSERT INTO customers (id, shop_id, full_name, phone, email, address, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, customer.ID, customer.ShopID, customer.FullName, customer.Phone, customer.Email, customer.Address,
		customer.CreatedAt, customer.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

func (s *Store) GetCustomer(ctx context.Context, scope domain.Scope, id string) (*domain.Customer, error) {
	if !scope.HasShop() {
		return nil, store.ErrNotFound
	}
	return scanCustomer(s.db.QueryRowContext(ctx, `
		SELECT `+customerColumns+` FROM customers WHERE id = $1 AND shop_id = $2
	`, id, scope.ShopID))
}

func (s *Store) ListCustomers(ctx context.Context, scope domain.Scope, filter store.ListFilter) ([]domain.Customer, error) {
	if !scope.HasShop() {
		return []domain.Customer{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		WHERE shop_id = $1
			AND ($2::text = '' OR full_name ILIKE '%' || $2 || '%' OR phone LIKE '%' || $2 || '%')
		ORDER BY full_name ASC, id ASC
		LIMIT $3
	`, scope.ShopID, strings.TrimSpace(filter.Search), nullLimit(filter.Limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 32)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, *c)
	}
	return customers, rows.Err()
}

func (s *Store) UpdateCustomer(ctx context.Context, scope domain.Scope, customer domain.Customer) (*domain.Customer, error) {
	if !scope.HasShop() {
		return nil, store.ErrNotFound
	}
	return scanCustomer(s.db.QueryRowContext(ctx, `
		UPDATE customers
		SET full_name = $3, phone = $4, email = $5, address = $6, updated_at = now()
		WHERE id = $1 AND shop_id = $2
		RETURNING `+customerColumns+`
	`, customer.ID, scope.ShopID, customer.FullName, customer.Phone, customer.Email, customer.Address))
}

func (s *Store) DeleteCustomer(ctx context.Context, scope domain.Scope, id string) error {
	if !scope.HasShop() {
		return store.ErrNotFound
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM customers WHERE id = $1 AND shop_id = $2`, id, scope.ShopID)
	return affectedOne(res, err)
}

func scanCustomer(row rowScanner) (*domain.Customer, error) {
	var c domain.Customer
	if err := row.Scan(&c.ID, &c.ShopID, &c.FullName, &c.Phone, &c.Email, &c.Address, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, notFound(err)
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &c, nil
}

// CreateSale locks every product row of the sale in id order, checks stock,
// then decrements with a guarded update so no path can drive quantity negative.
func (s *Store) CreateSale(ctx context.Context, scope domain.Scope, sale domain.Sale, customer *domain.Customer) (*domain.Sale, error) {
	if !scope.Allows(sale.ShopID, sale.BranchID) {
		return nil, store.ErrNotFound
	}
	if len(sale.Items) == 0 {
		return nil, store.ErrInvalidInput
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if sale.BranchID != "" {
		var exists bool
		if err := tx.QueryRowContext(ctx, `
			SELECT EXISTS (SELECT 1 FROM branches WHERE id = $1 AND shop_id = $2)
		`, sale.BranchID, sale.ShopID).Scan(&exists); err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("%w: branch does not belong to shop", store.ErrInvalidInput)
		}
	}

	productIDs := make([]string, 0, len(sale.Items))
	for _, item := range sale.Items {
		productIDs = append(productIDs, item.ProductID)
	}
	products, err := lockProducts(ctx, tx, productIDs)
	if err != nil {
		return nil, err
	}
	for _, item := range sale.Items {
		if _, err := checkStock(scope, sale.ShopID, products, item.ProductID, item.Quantity); err != nil {
			return nil, err
		}
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
		customerID, err := getOrCreateCustomer(ctx, tx, sale.ShopID, *customer)
		if err != nil {
			return nil, err
		}
		sale.CustomerID = customerID
	}

	items := make([]domain.SaleItem, 0, len(sale.Items))
	for _, item := range sale.Items {
		product := products[item.ProductID]
		if err := decrementStock(ctx, tx, product, item.Quantity); err != nil {
			return nil, err
		}
		items = append(items, domain.NewSaleItem(xid.New(), sale.ID, product, item.Quantity))
	}
	sale.Items = items
	sale.Recalculate()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sales (id, shop_id, branch_id, customer_id, employee_id, status, total_amount, profit_amount, invoice_number, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, sale.ID, sale.ShopID, nullIfEmpty(sale.BranchID), nullIfEmpty(sale.CustomerID), nullIfEmpty(sale.EmployeeID),
		sale.Status, sale.TotalAmount, sale.ProfitAmount, sale.InvoiceNumber, sale.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: invoice number %s already used", store.ErrConflict, sale.InvoiceNumber)
		}
		return nil, err
	}
	for _, item := range sale.Items {
		if err := insertSaleItem(ctx, tx, item); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetSale(ctx, scope, sale.ID)
}

const saleSelect = `
	SELECT sa.id, sa.shop_id, COALESCE(sa.branch_id, ''), COALESCE(sa.customer_id, ''), COALESCE(sa.employee_id, ''),
		sa.status, sa.total_amount, sa.profit_amount, sa.invoice_number, sa.created_at,
		c.full_name, c.phone, c.email, c.address, c.created_at, c.updated_at
	FROM sales sa
	LEFT JOIN customers c ON c.id = sa.customer_id
`

func (s *Store) GetSale(ctx context.Context, scope domain.Scope, id string) (*domain.Sale, error) {
	if !scope.HasShop() {
		return nil, store.ErrNotFound
	}
	sale, err := scanSale(s.db.QueryRowContext(ctx, saleSelect+`
		WHERE sa.id = $1 AND sa.shop_id = $2 AND ($3::text = '' OR sa.branch_id = $3)
	`, id, scope.ShopID, scope.BranchID))
	if err != nil {
		return nil, err
	}
	itemsBySale, err := loadSaleItems(ctx, s.db, []string{sale.ID})
	if err != nil {
		return nil, err
	}
	sale.Items = itemsOrEmpty(itemsBySale[sale.ID])
	return sale, nil
}

func (s *Store) ListSales(ctx context.Context, scope domain.Scope, filter store.ListFilter) ([]domain.Sale, error) {
	if !scope.HasShop() {
		return []domain.Sale{}, nil
	}
	rows, err := s.db.QueryContext(ctx, saleSelect+`
		WHERE sa.shop_id = $1 AND ($2::text = '' OR sa.branch_id = $2)
			AND ($3::timestamptz IS NULL OR sa.created_at >= $3)
			AND ($4::timestamptz IS NULL OR sa.created_at <= $4)
		ORDER BY sa.created_at DESC, sa.id ASC
		LIMIT $5
	`, scope.ShopID, scope.BranchID, nullTime(filter.From), nullTime(filter.To), nullLimit(filter.Limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 32)
	ids := make([]string, 0, 32)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, *sale)
		ids = append(ids, sale.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return sales, nil
	}

	itemsBySale, err := loadSaleItems(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}
	for i := range sales {
		sales[i].Items = itemsOrEmpty(itemsBySale[sales[i].ID])
	}
	return sales, nil
}

func (s *Store) SetSaleStatus(ctx context.Context, scope domain.Scope, id string, status string) (*domain.Sale, error) {
	if !scope.HasShop() {
		return nil, store.ErrNotFound
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE sales sa SET status = $4
		WHERE sa.id = $1 AND sa.shop_id = $2 AND ($3::text = '' OR sa.branch_id = $3)
	`, id, scope.ShopID, scope.BranchID, status)
	if err := affectedOne(res, err); err != nil {
		return nil, err
	}
	return s.GetSale(ctx, scope, id)
}

func (s *Store) DeleteSale(ctx context.Context, scope domain.Scope, id string) error {
	if !scope.HasShop() {
		return store.ErrNotFound
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := lockSale(ctx, tx, scope, id); err != nil {
		return err
	}
	itemsBySale, err := loadSaleItems(ctx, tx, []string{id})
	if err != nil {
		return err
	}
	for _, item := range itemsBySale[id] {
		if err := restock(ctx, tx, item.ProductID, item.Quantity); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) AddSaleItem(ctx context.Context, scope domain.Scope, saleID string, line domain.SaleLine) (*domain.SaleItem, error) {
	if !scope.HasShop() {
		return nil, store.ErrNotFound
	}
	if line.Quantity < 1 {
		return nil, store.ErrInvalidInput
	}
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := lockSale(ctx, tx, scope, saleID); err != nil {
		return nil, err
	}
	products, err := lockProducts(ctx, tx, []string{line.ProductID})
	if err != nil {
		return nil, err
	}
	product, err := checkStock(scope, scope.ShopID, products, line.ProductID, line.Quantity)
	if err != nil {
		return nil, err
	}
	if err := decrementStock(ctx, tx, product, line.Quantity); err != nil {
		return nil, err
	}
	item := domain.NewSaleItem(xid.New(), saleID, product, line.Quantity)
	if err := insertSaleItem(ctx, tx, item); err != nil {
		return nil, err
	}
	if err := recalculateSale(ctx, tx, saleID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &item, nil
}

const saleItemSelect = `
	SELECT i.id, i.sale_id, i.product_id, i.product_name, i.quantity, i.unit_price, i.unit_cost, i.total_price, i.total_cost
	FROM sale_items i
	JOIN sales sa ON sa.id = i.sale_id
`

func (s *Store) GetSaleItem(ctx context.Context, scope domain.Scope, id string) (*domain.SaleItem, error) {
	if !scope.HasShop() {
		return nil, store.ErrNotFound
	}
	return scanSaleItem(s.db.QueryRowContext(ctx, saleItemSelect+`
		WHERE i.id = $1 AND sa.shop_id = $2 AND ($3::text = '' OR sa.branch_id = $3)
	`, id, scope.ShopID, scope.BranchID))
}

func (s *Store) ListSaleItems(ctx context.Context, scope domain.Scope, saleID string) ([]domain.SaleItem, error) {
	if !scope.HasShop() {
		return []domain.SaleItem{}, nil
	}
	rows, err := s.db.QueryContext(ctx, saleItemSelect+`
		WHERE sa.shop_id = $1 AND ($2::text = '' OR sa.branch_id = $2) AND ($3::text = '' OR i.sale_id = $3)
		ORDER BY i.sale_id ASC, i.seq ASC
	`, scope.ShopID, scope.BranchID, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.SaleItem, 0, 32)
	for rows.Next() {
		item, err := scanSaleItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (s *Store) DeleteSaleItem(ctx context.Context, scope domain.Scope, id string) error {
	if !scope.HasShop() {
		return store.ErrNotFound
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	item, err := scanSaleItem(tx.QueryRowContext(ctx, saleItemSelect+`
		WHERE i.id = $1 AND sa.shop_id = $2 AND ($3::text = '' OR sa.branch_id = $3)
		FOR UPDATE OF i, sa
	`, id, scope.ShopID, scope.BranchID))
	if err != nil {
		return err
	}
	if err := restock(ctx, tx, item.ProductID, item.Quantity); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sale_items WHERE id = $1`, id); err != nil {
		return err
	}
	if err := recalculateSale(ctx, tx, item.SaleID); err != nil {
		return err
	}
	return tx.Commit()
}

func lockSale(ctx context.Context, tx *sql.Tx, scope domain.Scope, id string) error {
	var locked string
	err := tx.QueryRowContext(ctx, `
		SELECT sa.id FROM sales sa
		WHERE sa.id = $1 AND sa.shop_id = $2 AND ($3::text = '' OR sa.branch_id = $3)
		FOR UPDATE
	`, id, scope.ShopID, scope.BranchID).Scan(&locked)
	return notFound(err)
}

func lockProducts(ctx context.Context, tx *sql.Tx, ids []string) (map[string]domain.Product, error) {
	ids = slices.Clone(ids)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	rows, err := tx.QueryContext(ctx, `
		SELECT id, shop_id, COALESCE(branch_id, ''), name, cost_price, selling_price, quantity
		FROM products
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make(map[string]domain.Product, len(ids))
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.ShopID, &p.BranchID, &p.Name, &p.CostPrice, &p.SellingPrice, &p.Quantity); err != nil {
			return nil, err
		}
		products[p.ID] = p
	}
	return products, rows.Err()
}

func checkStock(scope domain.Scope, shopID string, products map[string]domain.Product, productID string, qty int) (domain.Product, error) {
	if qty < 1 || qty > domain.MaxQuantity {
		return domain.Product{}, fmt.Errorf("%w: quantity %d out of range", store.ErrInvalidInput, qty)
	}
	product, ok := products[productID]
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

func decrementStock(ctx context.Context, tx *sql.Tx, product domain.Product, qty int) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE products SET quantity = quantity - $2, updated_at = now()
		WHERE id = $1 AND quantity >= $2
	`, product.ID, qty)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return &store.InsufficientStockError{
			ProductID:   product.ID,
			ProductName: product.Name,
			Available:   product.Quantity,
			Requested:   qty,
		}
	}
	return nil
}

func restock(ctx context.Context, tx *sql.Tx, productID string, qty int) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE products SET quantity = quantity + $2, updated_at = now() WHERE id = $1
	`, productID, qty)
	return err
}

func recalculateSale(ctx context.Context, tx *sql.Tx, saleID string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE sales
		SET total_amount = COALESCE((SELECT SUM(total_price) FROM sale_items WHERE sale_id = $1), 0),
			profit_amount = COALESCE((SELECT SUM(total_price - total_cost) FROM sale_items WHERE sale_id = $1), 0)
		WHERE id = $1
	`, saleID)
	return err
}

func getOrCreateCustomer(ctx context.Context, tx *sql.Tx, shopID string, customer domain.Customer) (string, error) {
	phone := strings.TrimSpace(customer.Phone)
	var id string
	err := tx.QueryRowContext(ctx, `
		SELECT id FROM customers WHERE shop_id = $1 AND phone = $2 ORDER BY created_at ASC LIMIT 1
	`, shopID, phone).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}
	customer.ShopID = shopID
	customer.Phone = phone
	created, err := insertCustomer(ctx, tx, customer)
	if err != nil {
		return "", err
	}
	return created.ID, nil
}

func insertSaleItem(ctx context.Context, tx *sql.Tx, item domain.SaleItem) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO sale_items (id, sale_id, product_id, product_name, quantity, unit_price, unit_cost, total_price, total_cost)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, item.ID, item.SaleID, item.ProductID, item.ProductName, item.Quantity, item.UnitPrice, item.UnitCost,
		item.TotalPrice, item.TotalCost)
	return err
}

func loadSaleItems(ctx context.Context, q queryer, saleIDs []string) (map[string][]domain.SaleItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, sale_id, product_id, product_name, quantity, unit_price, unit_cost, total_price, total_cost
		FROM sale_items
		WHERE sale_id = ANY($1)
		ORDER BY sale_id ASC, seq ASC
	`, saleIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make(map[string][]domain.SaleItem, len(saleIDs))
	for rows.Next() {
		item, err := scanSaleItem(rows)
		if err != nil {
			return nil, err
		}
		items[item.SaleID] = append(items[item.SaleID], *item)
	}
	return items, rows.Err()
}

func scanSale(row rowScanner) (*domain.Sale, error) {
	var sale domain.Sale
	var fullName, phone, email, address sql.NullString
	var cCreated, cUpdated sql.NullTime
	if err := row.Scan(
		&sale.ID, &sale.ShopID, &sale.BranchID, &sale.CustomerID, &sale.EmployeeID,
		&sale.Status, &sale.TotalAmount, &sale.ProfitAmount, &sale.InvoiceNumber, &sale.CreatedAt,
		&fullName, &phone, &email, &address, &cCreated, &cUpdated,
	); err != nil {
		return nil, notFound(err)
	}
	sale.CreatedAt = sale.CreatedAt.UTC()
	if sale.CustomerID != "" {
		sale.Customer = &domain.Customer{
			ID:        sale.CustomerID,
			ShopID:    sale.ShopID,
			FullName:  fullName.String,
			Phone:     phone.String,
			Email:     email.String,
			Address:   address.String,
			CreatedAt: cCreated.Time.UTC(),
			UpdatedAt: cUpdated.Time.UTC(),
		}
	}
	return &sale, nil
}

func scanSaleItem(row rowScanner) (*domain.SaleItem, error) {
	var item domain.SaleItem
	if err := row.Scan(&item.ID, &item.SaleID, &item.ProductID, &item.ProductName, &item.Quantity,
		&item.UnitPrice, &item.UnitCost, &item.TotalPrice, &item.TotalCost); err != nil {
		return nil, notFound(err)
	}
	return &item, nil
}

const invoiceSelect = `
	SELECT inv.id, inv.sale_id, sa.shop_id, COALESCE(sa.branch_id, ''), inv.sent, inv.printed, inv.created_at
	FROM invoices inv
	JOIN sales sa ON sa.id = inv.sale_id
`

func (s *Store) CreateInvoice(ctx context.Context, scope domain.Scope, invoice domain.Invoice) (*domain.Invoice, error) {
	if !scope.HasShop() {
		return nil, store.ErrNotFound
	}
	if invoice.ID == "" {
		invoice.ID = xid.New()
	}
	if invoice.CreatedAt.IsZero() {
		invoice.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO invoices (id, sale_id, sent, printed, created_at)
		SELECT $1, sa.id, $4, $5, $6
		FROM sales sa
		WHERE sa.id = $2 AND sa.shop_id = $3 AND ($7::text = '' OR sa.branch_id = $7)
	`, invoice.ID, invoice.SaleID, scope.ShopID, invoice.Sent, invoice.Printed, invoice.CreatedAt, scope.BranchID)
	if err != nil && isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: sale already has an invoice", store.ErrConflict)
	}
	if err := affectedOne(res, err); err != nil {
		return nil, err
	}
	return s.GetInvoice(ctx, scope, invoice.ID)
}

func (s *Store) GetInvoice(ctx context.Context, scope domain.Scope, id string) (*domain.Invoice, error) {
	if !scope.HasShop() {
		return nil, store.ErrNotFound
	}
	return scanInvoice(s.db.QueryRowContext(ctx, invoiceSelect+`
		WHERE inv.id = $1 AND sa.shop_id = $2 AND ($3::text = '' OR sa.branch_id = $3)
	`, id, scope.ShopID, scope.BranchID))
}

func (s *Store) ListInvoices(ctx context.Context, scope domain.Scope) ([]domain.Invoice, error) {
	if !scope.HasShop() {
		return []domain.Invoice{}, nil
	}
	rows, err := s.db.QueryContext(ctx, invoiceSelect+`
		WHERE sa.shop_id = $1 AND ($2::text = '' OR sa.branch_id = $2)
		ORDER BY inv.created_at DESC, inv.id ASC
	`, scope.ShopID, scope.BranchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	invoices := make([]domain.Invoice, 0, 16)
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, *inv)
	}
	return invoices, rows.Err()
}

func (s *Store) UpdateInvoice(ctx context.Context, scope domain.Scope, invoice domain.Invoice) (*domain.Invoice, error) {
	if !scope.HasShop() {
		return nil, store.ErrNotFound
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE invoices inv SET sent = $4, printed = $5
		FROM sales sa
		WHERE inv.id = $1 AND sa.id = inv.sale_id AND sa.shop_id = $2 AND ($3::text = '' OR sa.branch_id = $3)
	`, invoice.ID, scope.ShopID, scope.BranchID, invoice.Sent, invoice.Printed)
	if err := affectedOne(res, err); err != nil {
		return nil, err
	}
	return s.GetInvoice(ctx, scope, invoice.ID)
}

func (s *Store) DeleteInvoice(ctx context.Context, scope domain.Scope, id string) error {
	if !scope.HasShop() {
		return store.ErrNotFound
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM invoices inv
		USING sales sa
		WHERE inv.id = $1 AND sa.id = inv.sale_id AND sa.shop_id = $2 AND ($3::text = '' OR sa.branch_id = $3)
	`, id, scope.ShopID, scope.BranchID)
	return affectedOne(res, err)
}

func scanInvoice(row rowScanner) (*domain.Invoice, error) {
	var inv domain.Invoice
	if err := row.Scan(&inv.ID, &inv.SaleID, &inv.ShopID, &inv.BranchID, &inv.Sent, &inv.Printed, &inv.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	inv.CreatedAt = inv.CreatedAt.UTC()
	return &inv, nil
}

const expenseColumns = `e.id, e.shop_id, COALESCE(e.branch_id, ''), e.title, e.amount, e.date, e.description, e.created_at`

func (s *Store) CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error) {
	if expense.ID == "" {
		expense.ID = xid.New()
	}
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = time.Now().UTC()
	}
	expense.Date = nowDateUTC(expense.Date)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO expenses (id, shop_id, branch_id, title, amount, date, description, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, expense.ID, expense.ShopID, nullIfEmpty(expense.BranchID), expense.Title, expense.Amount, expense.Date,
		expense.Description, expense.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &expense, nil
}

func (s *Store) GetExpense(ctx context.Context, scope domain.Scope, id string) (*domain.Expense, error) {
	if !scope.HasShop() {
		return nil, store.ErrNotFound
	}
	return scanExpense(s.db.QueryRowContext(ctx, `
		SELECT `+expenseColumns+` FROM expenses e
		WHERE e.id = $1 AND e.shop_id = $2 AND ($3::text = '' OR e.branch_id = $3)
	`, id, scope.ShopID, scope.BranchID))
}

func (s *Store) ListExpenses(ctx context.Context, scope domain.Scope, filter store.ListFilter) ([]domain.Expense, error) {
	if !scope.HasShop() {
		return []domain.Expense{}, nil
	}
	var from any
	if !filter.From.IsZero() {
		from = nowDateUTC(filter.From)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+expenseColumns+` FROM expenses e
		WHERE e.shop_id = $1 AND ($2::text = '' OR e.branch_id = $2)
			AND ($3::date IS NULL OR e.date >= $3)
			AND ($4::timestamptz IS NULL OR e.date <= $4)
		ORDER BY e.date DESC, e.created_at DESC, e.id ASC
		LIMIT $5
	`, scope.ShopID, scope.BranchID, from, nullTime(filter.To), nullLimit(filter.Limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	expenses := make([]domain.Expense, 0, 32)
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, *e)
	}
	return expenses, rows.Err()
}

func (s *Store) UpdateExpense(ctx context.Context, scope domain.Scope, expense domain.Expense) (*domain.Expense, error) {
	if !scope.HasShop() {
		return nil, store.ErrNotFound
	}
	return scanExpense(s.db.QueryRowContext(ctx, `
		UPDATE expenses e
		SET branch_id = $4, title = $5, amount = $6, date = $7, description = $8
		WHERE e.id = $1 AND e.shop_id = $2 AND ($3::text = '' OR e.branch_id = $3)
		RETURNING `+expenseColumns+`
	`, expense.ID, scope.ShopID, scope.BranchID, nullIfEmpty(expense.BranchID), expense.Title, expense.Amount,
		nowDateUTC(expense.Date), expense.Description))
}

func (s *Store) DeleteExpense(ctx context.Context, scope domain.Scope, id string) error {
	if !scope.HasShop() {
		return store.ErrNotFound
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM expenses e
		WHERE e.id = $1 AND e.shop_id = $2 AND ($3::text = '' OR e.branch_id = $3)
	`, id, scope.ShopID, scope.BranchID)
	return affectedOne(res, err)
}

func scanExpense(row rowScanner) (*domain.Expense, error) {
	var e domain.Expense
	if err := row.Scan(&e.ID, &e.ShopID, &e.BranchID, &e.Title, &e.Amount, &e.Date, &e.Description, &e.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	e.Date = nowDateUTC(e.Date)
	e.CreatedAt = e.CreatedAt.UTC()
	return &e, nil
}

func itemsOrEmpty(items []domain.SaleItem) []domain.SaleItem {
	if items == nil {
		return []domain.SaleItem{}
	}
	return items
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

func affectedOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}

func nowDateUTC(t time.Time) time.Time {
	return time.Date(t.UTC().Year(), t.UTC().Month(), t.UTC().Day(), 0, 0, 0, 0, time.UTC)
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullTime(val time.Time) any {
	if val.IsZero() {
		return nil
	}
	return val
}

func nullLimit(limit int) any {
	if limit < 1 {
		return nil
	}
	return limit
}
