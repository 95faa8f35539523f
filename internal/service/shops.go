package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"shopmate/backend/internal/domain"
	"shopmate/backend/internal/store"
)

const shopSearchLimit = 10

func (s *Service) CreateShop(ctx context.Context, req domain.ShopRequest) (domain.Shop, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.UserID == "" {
		return domain.Shop{}, fmt.Errorf("%w: authentication required", store.ErrForbidden)
	}
	name := trimPtr(req.Name)
	if name == "" {
		return domain.Shop{}, fmt.Errorf("%w: name is required", store.ErrInvalidInput)
	}

	created, err := s.repo.CreateShop(ctx, domain.Shop{
		Name:    name,
		OwnerID: actor.UserID,
		Address: trimPtr(req.Address),
		Phone:   trimPtr(req.Phone),
		Email:   trimPtr(req.Email),
	})
	if err != nil {
		return domain.Shop{}, err
	}
	return *created, nil
}

// ListShops returns the shops visible to the caller, which is at most one.
func (s *Service) ListShops(ctx context.Context) ([]domain.Shop, error) {
	scope, err := s.ResolveScope(ctx)
	if err != nil {
		return nil, err
	}
	if !scope.HasShop() {
		return []domain.Shop{}, nil
	}
	shop, err := s.repo.GetShop(ctx, scope.ShopID)
	if err != nil {
		return nil, err
	}
	return []domain.Shop{*shop}, nil
}

func (s *Service) GetShop(ctx context.Context, id string) (domain.Shop, error) {
	scope, err := s.ResolveScope(ctx)
	if err != nil {
		return domain.Shop{}, err
	}
	if !scope.AllowsShop(id) {
		return domain.Shop{}, store.ErrNotFound
	}
	shop, err := s.repo.GetShop(ctx, id)
	if err != nil {
		return domain.Shop{}, err
	}
	return *shop, nil
}

func (s *Service) UpdateShop(ctx context.Context, id string, req domain.ShopRequest) (domain.Shop, error) {
	existing, err := s.GetShop(ctx, id)
	if err != nil {
		return domain.Shop{}, err
	}
	if _, err := s.ownerScope(ctx); err != nil {
		return domain.Shop{}, err
	}

	updated := existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Shop{}, fmt.Errorf("%w: name must not be empty", store.ErrInvalidInput)
		}
		updated.Name = name
	}
	if req.Address != nil {
		updated.Address = trimPtr(req.Address)
	}
	if req.Phone != nil {
		updated.Phone = trimPtr(req.Phone)
	}
	if req.Email != nil {
		updated.Email = trimPtr(req.Email)
	}

	saved, err := s.repo.UpdateShop(ctx, updated)
	if err != nil {
		return domain.Shop{}, err
	}
	return *saved, nil
}

func (s *Service) DeleteShop(ctx context.Context, id string) error {
	if _, err := s.GetShop(ctx, id); err != nil {
		return err
	}
	if _, err := s.ownerScope(ctx); err != nil {
		return err
	}
	if err := s.repo.DeleteShop(ctx, id); err != nil {
		return err
	}
	s.invalidateReports(ctx, id)
	return nil
}

func (s *Service) MyShop(ctx context.Context) (domain.MyShopResponse, error) {
	scope, err := s.ResolveScope(ctx)
	if err != nil {
		return domain.MyShopResponse{}, err
	}
	if !scope.HasShop() {
		return domain.MyShopResponse{}, nil
	}
	shop, err := s.repo.GetShop(ctx, scope.ShopID)
	if err != nil {
		return domain.MyShopResponse{}, err
	}
	return domain.MyShopResponse{Shop: shop, Role: scope.Role, BranchID: scope.BranchID}, nil
}

func (s *Service) SearchShops(ctx context.Context, query string) ([]domain.Shop, error) {
	return s.repo.SearchShops(ctx, strings.TrimSpace(query), shopSearchLimit)
}

// ListShopBranches lets a prospective employee preview the branches of any shop.
func (s *Service) ListShopBranches(ctx context.Context, shopID string) ([]domain.Branch, error) {
	shopID = strings.TrimSpace(shopID)
	if shopID == "" {
		return nil, fmt.Errorf("%w: shop_id is required", store.ErrInvalidInput)
	}
	if _, err := s.repo.GetShop(ctx, shopID); err != nil {
		return nil, err
	}
	return s.repo.ListBranchesByShop(ctx, shopID)
}

func (s *Service) ownedShop(ctx context.Context, userID string) (*domain.Shop, error) {
	shop, err := s.repo.GetShopByOwner(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return shop, err
}
