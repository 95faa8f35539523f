package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"shopmate/backend/internal/domain"
	"shopmate/backend/internal/store"
)

func (s *Service) CreateBranch(ctx context.Context, req domain.BranchRequest) (domain.Branch, error) {
	scope, err := s.ownerScope(ctx)
	if err != nil {
		return domain.Branch{}, err
	}
	name := trimPtr(req.BranchName)
	if name == "" {
		return domain.Branch{}, fmt.Errorf("%w: branch_name is required", store.ErrInvalidInput)
	}
	created, err := s.repo.CreateBranch(ctx, domain.Branch{
		ShopID:     scope.ShopID,
		BranchName: name,
		Phone:      trimPtr(req.Phone),
		Location:   trimPtr(req.Location),
	})
	if err != nil {
		return domain.Branch{}, err
	}
	return *created, nil
}

func (s *Service) ListBranches(ctx context.Context) ([]domain.Branch, error) {
	scope, err := s.ResolveScope(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListBranches(ctx, scope)
}

func (s *Service) GetBranch(ctx context.Context, id string) (domain.Branch, error) {
	scope, err := s.ResolveScope(ctx)
	if err != nil {
		return domain.Branch{}, err
	}
	branch, err := s.repo.GetBranch(ctx, scope, id)
	if err != nil {
		return domain.Branch{}, err
	}
	return *branch, nil
}

func (s *Service) UpdateBranch(ctx context.Context, id string, req domain.BranchRequest) (domain.Branch, error) {
	scope, err := s.ownerScope(ctx)
	if err != nil {
		return domain.Branch{}, err
	}
	existing, err := s.repo.GetBranch(ctx, scope, id)
	if err != nil {
		return domain.Branch{}, err
	}
	updated := *existing
	if req.BranchName != nil {
		name := trimPtr(req.BranchName)
		if name == "" {
			return domain.Branch{}, fmt.Errorf("%w: branch_name must not be empty", store.ErrInvalidInput)
		}
		updated.BranchName = name
	}
	if req.Phone != nil {
		updated.Phone = trimPtr(req.Phone)
	}
	if req.Location != nil {
		updated.Location = trimPtr(req.Location)
	}
	saved, err := s.repo.UpdateBranch(ctx, scope, updated)
	if err != nil {
		return domain.Branch{}, err
	}
	return *saved, nil
}

func (s *Service) DeleteBranch(ctx context.Context, id string) error {
	scope, err := s.ownerScope(ctx)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteBranch(ctx, scope, id); err != nil {
		return err
	}
	s.invalidateReports(ctx, scope.ShopID)
	return nil
}

func (s *Service) CreateCategory(ctx context.Context, req domain.CategoryRequest) (domain.Category, error) {
	scope, err := s.ResolveScope(ctx)
	if err != nil {
		return domain.Category{}, err
	}
	if !scope.HasShop() {
		return domain.Category{}, store.ErrNotFound
	}
	name := trimPtr(req.Name)
	if name == "" {
		return domain.Category{}, fmt.Errorf("%w: name is required", store.ErrInvalidInput)
	}
	created, err := s.repo.CreateCategory(ctx, domain.Category{
		ShopID:      scope.ShopID,
		Name:        name,
		Description: trimPtr(req.Description),
	})
	if err != nil {
		return domain.Category{}, err
	}
	return *created, nil
}

func (s *Service) ListCategories(ctx context.Context) ([]domain.Category, error) {
	scope, err := s.ResolveScope(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListCategories(ctx, scope)
}

func (s *Service) GetCategory(ctx context.Context, id string) (domain.Category, error) {
	scope, err := s.ResolveScope(ctx)
	if err != nil {
		return domain.Category{}, err
	}
	category, err := s.repo.GetCategory(ctx, scope, id)
	if err != nil {
		return domain.Category{}, err
	}
	return *category, nil
}

func (s *Service) UpdateCategory(ctx context.Context, id string, req domain.CategoryRequest) (domain.Category, error) {
	scope, err := s.ResolveScope(ctx)
	if err != nil {
		return domain.Category{}, err
	}
	existing, err := s.repo.GetCategory(ctx, scope, id)
	if err != nil {
		return domain.Category{}, err
	}
	updated := *existing
	if req.Name != nil {
		name := trimPtr(req.Name)
		if name == "" {
			return domain.Category{}, fmt.Errorf("%w: name must not be empty", store.ErrInvalidInput)
		}
		updated.Name = name
	}
	if req.Description != nil {
		updated.Description = trimPtr(req.Description)
	}
	saved, err := s.repo.UpdateCategory(ctx, scope, updated)
	if err != nil {
		return domain.Category{}, err
	}
	return *saved, nil
}

func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	scope, err := s.ResolveScope(ctx)
	if err != nil {
		return err
	}
	return s.repo.DeleteCategory(ctx, scope, id)
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductRequest) (domain.Product, error) {
	scope, err := s.ResolveScope(ctx)
	if err != nil {
		return domain.Product{}, err
	}
	if !scope.HasShop() {
		return domain.Product{}, store.ErrNotFound
	}

	product := domain.Product{
		ShopID:       scope.ShopID,
		Name:         trimPtr(req.Name),
		Description:  trimPtr(req.Description),
		CostPrice:    decimal.Zero,
		SellingPrice: decimal.Zero,
	}
	if product.Name == "" {
		return domain.Product{}, fmt.Errorf("%w: name is required", store.ErrInvalidInput)
	}
	if err := s.applyProductFields(ctx, scope, &product, req); err != nil {
		return domain.Product{}, err
	}
	product.BranchID, err = s.placeBranch(ctx, scope, trimPtr(req.BranchID))
	if err != nil {
		return domain.Product{}, err
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}
	return *created, nil
}

func (s *Service) ListProducts(ctx context.Context, search string, limit int) ([]domain.Product, error) {
	scope, err := s.ResolveScope(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListProducts(ctx, scope, store.ListFilter{Search: search, Limit: limit})
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	scope, err := s.ResolveScope(ctx)
	if err != nil {
		return domain.Product{}, err
	}
	product, err := s.repo.GetProduct(ctx, scope, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductRequest) (domain.Product, error) {
	scope, err := s.ResolveScope(ctx)
	if err != nil {
		return domain.Product{}, err
	}
	existing, err := s.repo.GetProduct(ctx, scope, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := trimPtr(req.Name)
		if name == "" {
			return domain.Product{}, fmt.Errorf("%w: name must not be empty", store.ErrInvalidInput)
		}
		updated.Name = name
	}
	if req.Description != nil {
		updated.Description = trimPtr(req.Description)
	}
	if err := s.applyProductFields(ctx, scope, &updated, req); err != nil {
		return domain.Product{}, err
	}
	if req.BranchID != nil {
		updated.BranchID, err = s.placeBranch(ctx, scope, trimPtr(req.BranchID))
		if err != nil {
			return domain.Product{}, err
		}
	}

	saved, err := s.repo.UpdateProduct(ctx, scope, updated)
	if err != nil {
		return domain.Product{}, err
	}
	return *saved, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	scope, err := s.ResolveScope(ctx)
	if err != nil {
		return err
	}
	return s.repo.DeleteProduct(ctx, scope, id)
}

func (s *Service) applyProductFields(ctx context.Context, scope domain.Scope, product *domain.Product, req domain.ProductRequest) error {
	if req.CostPrice != nil {
		if req.CostPrice.IsNegative() {
			return fmt.Errorf("%w: cost_price must not be negative", store.ErrInvalidInput)
		}
		product.CostPrice = *req.CostPrice
	}
	if req.SellingPrice != nil {
		if req.SellingPrice.IsNegative() {
			return fmt.Errorf("%w: selling_price must not be negative", store.ErrInvalidInput)
		}
		product.SellingPrice = *req.SellingPrice
	}
	if req.Quantity != nil {
		if *req.Quantity < 0 {
			return fmt.Errorf("%w: quantity must not be negative", store.ErrInvalidInput)
		}
		if *req.Quantity > domain.MaxQuantity {
			return fmt.Errorf("%w: quantity must not exceed %d", store.ErrInvalidInput, domain.MaxQuantity)
		}
		product.Quantity = *req.Quantity
	}
	if req.CategoryID != nil {
		categoryID := trimPtr(req.CategoryID)
		if categoryID != "" {
			if _, err := s.repo.GetCategory(ctx, scope, categoryID); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("%w: unknown category %s", store.ErrInvalidInput, categoryID)
				}
				return err
			}
		}
		product.CategoryID = categoryID
	}
	return nil
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerRequest) (domain.Customer, error) {
	scope, err := s.ResolveScope(ctx)
	if err != nil {
		return domain.Customer{}, err
	}
	if !scope.HasShop() {
		return domain.Customer{}, store.ErrNotFound
	}
	customer := domain.Customer{
		ShopID:   scope.ShopID,
		FullName: trimPtr(req.FullName),
		Phone:    trimPtr(req.Phone),
		Email:    trimPtr(req.Email),
		Address:  trimPtr(req.Address),
	}
	if customer.FullName == "" && customer.Phone == "" {
		return domain.Customer{}, fmt.Errorf("%w: full_name or phone is required", store.ErrInvalidInput)
	}
	created, err := s.repo.CreateCustomer(ctx, customer)
	if err != nil {
		return domain.Customer{}, err
	}
	return *created, nil
}

func (s *Service) ListCustomers(ctx context.Context, search string, limit int) ([]domain.Customer, error) {
	scope, err := s.ResolveScope(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListCustomers(ctx, scope, store.ListFilter{Search: strings.TrimSpace(search), Limit: limit})
}

func (s *Service) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	scope, err := s.ResolveScope(ctx)
	if err != nil {
		return domain.Customer{}, err
	}
	customer, err := s.repo.GetCustomer(ctx, scope, id)
	if err != nil {
		return domain.Customer{}, err
	}
	return *customer, nil
}

func (s *Service) UpdateCustomer(ctx context.Context, id string, req domain.CustomerRequest) (domain.Customer, error) {
	scope, err := s.ResolveScope(ctx)
	if err != nil {
		return domain.Customer{}, err
	}
	existing, err := s.repo.GetCustomer(ctx, scope, id)
	if err != nil {
		return domain.Customer{}, err
	}
	updated := *existing
	if req.FullName != nil {
		updated.FullName = trimPtr(req.FullName)
	}
	if req.Phone != nil {
		updated.Phone = trimPtr(req.Phone)
	}
	if req.Email != nil {
		updated.Email = trimPtr(req.Email)
	}
	if req.Address != nil {
		updated.Address = trimPtr(req.Address)
	}
	saved, err := s.repo.UpdateCustomer(ctx, scope, updated)
	if err != nil {
		return domain.Customer{}, err
	}
	return *saved, nil
}

func (s *Service) DeleteCustomer(ctx context.Context, id string) error {
	scope, err := s.ResolveScope(ctx)
	if err != nil {
		return err
	}
	return s.repo.DeleteCustomer(ctx, scope, id)
}
