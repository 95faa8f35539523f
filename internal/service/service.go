package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"shopmate/backend/internal/cache"
	"shopmate/backend/internal/domain"
	"shopmate/backend/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo     store.Repository
	reports  cache.SummaryCache
	cacheTTL time.Duration
	now      func() time.Time
}

func New(repo store.Repository, reports cache.SummaryCache, cacheTTL time.Duration) *Service {
	if reports == nil {
		reports = cache.NoopSummaryCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}

	return &Service{
		repo:     repo,
		reports:  reports,
		cacheTTL: cacheTTL,
		now:      time.Now,
	}
}

// ResolveScope derives the caller's tenancy boundary: the shop they own, or
// failing that the shop and branch of their approved membership. A caller
// with neither gets the empty scope, which the stores treat as "sees nothing".
func (s *Service) ResolveScope(ctx context.Context) (domain.Scope, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.UserID == "" {
		return domain.Scope{}, fmt.Errorf("%w: authentication required", store.ErrForbidden)
	}
	scope := domain.Scope{UserID: actor.UserID}

	shop, err := s.repo.GetShopByOwner(ctx, actor.UserID)
	switch {
	case err == nil:
		scope.ShopID = shop.ID
		scope.Role = domain.RoleOwner
		return scope, nil
	case !errors.Is(err, store.ErrNotFound):
		return domain.Scope{}, err
	}

	membership, err := s.repo.FindApprovedMembership(ctx, actor.UserID)
	switch {
	case err == nil:
		scope.ShopID = membership.ShopID
		scope.BranchID = membership.BranchID
		scope.Role = membership.Role
	case !errors.Is(err, store.ErrNotFound):
		return domain.Scope{}, err
	}
	return scope, nil
}

func (s *Service) actorScope(ctx context.Context) (domain.Actor, domain.Scope, error) {
	scope, err := s.ResolveScope(ctx)
	if err != nil {
		return domain.Actor{}, domain.Scope{}, err
	}
	actor, _ := ActorFromContext(ctx)
	return actor, scope, nil
}

func (s *Service) ownerScope(ctx context.Context) (domain.Scope, error) {
	scope, err := s.ResolveScope(ctx)
	if err != nil {
		return domain.Scope{}, err
	}
	if !scope.HasShop() {
		return domain.Scope{}, store.ErrNotFound
	}
	if !scope.IsOwner() {
		return domain.Scope{}, fmt.Errorf("%w: shop owner required", store.ErrForbidden)
	}
	return scope, nil
}

// placeBranch decides which branch a new record belongs to. Employees are
// pinned to their own branch; owners may name any branch of their shop.
func (s *Service) placeBranch(ctx context.Context, scope domain.Scope, requested string) (string, error) {
	if scope.BranchID != "" {
		return scope.BranchID, nil
	}
	requested = strings.TrimSpace(requested)
	if requested == "" {
		return "", nil
	}
	if _, err := s.repo.GetBranch(ctx, scope, requested); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", fmt.Errorf("%w: branch %s does not belong to shop", store.ErrInvalidInput, requested)
		}
		return "", err
	}
	return requested, nil
}

func (s *Service) invalidateReports(ctx context.Context, shopID string) {
	if err := s.reports.InvalidateShop(ctx, shopID); err != nil {
		log.Printf("[service] WARN: failed to invalidate report cache shop=%s: %v", shopID, err)
	}
}

func trimPtr(val *string) string {
	if val == nil {
		return ""
	}
	return strings.TrimSpace(*val)
}
