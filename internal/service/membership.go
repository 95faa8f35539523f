package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"shopmate/backend/internal/domain"
	"shopmate/backend/internal/store"
)

func (s *Service) RequestJoin(ctx context.Context, req domain.JoinShopRequest) (domain.Membership, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.UserID == "" {
		return domain.Membership{}, fmt.Errorf("%w: authentication required", store.ErrForbidden)
	}
	shopID := strings.TrimSpace(req.ShopID)
	if shopID == "" {
		return domain.Membership{}, fmt.Errorf("%w: shop is required", store.ErrInvalidInput)
	}
	if _, err := s.repo.GetShop(ctx, shopID); err != nil {
		return domain.Membership{}, err
	}
	canJoin, err := s.canJoinShop(ctx, actor.UserID)
	if err != nil {
		return domain.Membership{}, err
	}
	if !canJoin {
		return domain.Membership{}, fmt.Errorf("%w: user already owns or belongs to a shop", store.ErrConflict)
	}

	created, err := s.repo.CreateMembership(ctx, domain.Membership{
		UserID: actor.UserID,
		ShopID: shopID,
		Role:   domain.RoleEmployee,
		Status: domain.MembershipPending,
	})
	if err != nil {
		return domain.Membership{}, err
	}
	return *created, nil
}

func (s *Service) ListPendingRequests(ctx context.Context) ([]domain.Membership, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("%w: authentication required", store.ErrForbidden)
	}
	shop, err := s.ownedShop(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if shop == nil {
		return []domain.Membership{}, nil
	}
	return s.repo.ListMembershipsByShop(ctx, shop.ID, domain.MembershipPending)
}

// HandleJoinRequest approves or rejects a pending membership. The transition
// is conditional on the row still being pending, so a request is handled once.
func (s *Service) HandleJoinRequest(ctx context.Context, membershipID string, req domain.HandleJoinRequest) (domain.Membership, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.Membership{}, fmt.Errorf("%w: authentication required", store.ErrForbidden)
	}

	membership, err := s.repo.GetMembership(ctx, membershipID)
	if err != nil {
		return domain.Membership{}, err
	}
	if membership.Status != domain.MembershipPending {
		return domain.Membership{}, fmt.Errorf("%w: no pending request %s", store.ErrNotFound, membershipID)
	}
	shop, err := s.repo.GetShop(ctx, membership.ShopID)
	if err != nil {
		return domain.Membership{}, err
	}
	if shop.OwnerID != actor.UserID {
		return domain.Membership{}, fmt.Errorf("%w: only the shop owner can handle join requests", store.ErrForbidden)
	}

	var handled *domain.Membership
	switch strings.ToLower(strings.TrimSpace(req.Action)) {
	case domain.JoinActionApprove:
		branchID := strings.TrimSpace(req.BranchID)
		if branchID == "" {
			return domain.Membership{}, fmt.Errorf("%w: branch_id is required to approve", store.ErrInvalidInput)
		}
		handled, err = s.repo.TransitionMembership(ctx, membershipID, domain.MembershipPending, domain.MembershipApproved, branchID)
	case domain.JoinActionReject:
		handled, err = s.repo.TransitionMembership(ctx, membershipID, domain.MembershipPending, domain.MembershipRejected, "")
	default:
		return domain.Membership{}, fmt.Errorf("%w: action must be approve or reject", store.ErrInvalidInput)
	}
	if err != nil {
		return domain.Membership{}, err
	}
	return *handled, nil
}

func (s *Service) ListEmployees(ctx context.Context) ([]domain.Membership, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("%w: authentication required", store.ErrForbidden)
	}
	shop, err := s.ownedShop(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if shop == nil {
		return []domain.Membership{}, nil
	}
	approved, err := s.repo.ListMembershipsByShop(ctx, shop.ID, domain.MembershipApproved)
	if err != nil {
		return nil, err
	}
	employees := make([]domain.Membership, 0, len(approved))
	for _, m := range approved {
		if m.Role == domain.RoleEmployee {
			employees = append(employees, m)
		}
	}
	return employees, nil
}

func (s *Service) RemoveEmployee(ctx context.Context, membershipID string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return fmt.Errorf("%w: authentication required", store.ErrForbidden)
	}
	shop, err := s.ownedShop(ctx, actor.UserID)
	if err != nil {
		return err
	}
	membership, err := s.repo.GetMembership(ctx, membershipID)
	if err != nil {
		return err
	}
	if shop == nil || membership.ShopID != shop.ID || membership.Role == domain.RoleOwner {
		return store.ErrNotFound
	}
	return s.repo.DeleteMembership(ctx, membershipID)
}

// CheckMembership reports whether the caller is free to join a shop: they
// own none and have no pending or approved membership.
func (s *Service) CheckMembership(ctx context.Context) (domain.CheckMembershipResponse, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.CheckMembershipResponse{}, fmt.Errorf("%w: authentication required", store.ErrForbidden)
	}
	canJoin, err := s.canJoinShop(ctx, actor.UserID)
	if err != nil {
		return domain.CheckMembershipResponse{}, err
	}
	return domain.CheckMembershipResponse{CanJoinShop: canJoin}, nil
}

// canJoinShop is false for shop owners and for users with a pending or
// approved membership anywhere.
func (s *Service) canJoinShop(ctx context.Context, userID string) (bool, error) {
	if _, err := s.repo.GetShopByOwner(ctx, userID); err == nil {
		return false, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return false, err
	}

	memberships, err := s.repo.ListMembershipsByUser(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, m := range memberships {
		if m.Status == domain.MembershipPending || m.Status == domain.MembershipApproved {
			return false, nil
		}
	}
	return true, nil
}
