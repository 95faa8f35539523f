package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"shopmate/backend/internal/domain"
	"shopmate/backend/internal/store"
)

func (s *Service) CreateInvoice(ctx context.Context, req domain.InvoiceRequest) (domain.Invoice, error) {
	scope, err := s.ResolveScope(ctx)
	if err != nil {
		return domain.Invoice{}, err
	}
	saleID := strings.TrimSpace(req.SaleID)
	if saleID == "" {
		return domain.Invoice{}, fmt.Errorf("%w: sale is required", store.ErrInvalidInput)
	}
	invoice := domain.Invoice{SaleID: saleID}
	if req.Sent != nil {
		invoice.Sent = *req.Sent
	}
	if req.Printed != nil {
		invoice.Printed = *req.Printed
	}
	created, err := s.repo.CreateInvoice(ctx, scope, invoice)
	if err != nil {
		return domain.Invoice{}, err
	}
	return *created, nil
}

func (s *Service) ListInvoices(ctx context.Context) ([]domain.Invoice, error) {
	scope, err := s.ResolveScope(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListInvoices(ctx, scope)
}

func (s *Service) GetInvoice(ctx context.Context, id string) (domain.Invoice, error) {
	scope, err := s.ResolveScope(ctx)
	if err != nil {
		return domain.Invoice{}, err
	}
	invoice, err := s.repo.GetInvoice(ctx, scope, id)
	if err != nil {
		return domain.Invoice{}, err
	}
	return *invoice, nil
}

func (s *Service) UpdateInvoice(ctx context.Context, id string, req domain.InvoiceRequest) (domain.Invoice, error) {
	scope, err := s.ResolveScope(ctx)
	if err != nil {
		return domain.Invoice{}, err
	}
	existing, err := s.repo.GetInvoice(ctx, scope, id)
	if err != nil {
		return domain.Invoice{}, err
	}
	updated := *existing
	if req.Sent != nil {
		updated.Sent = *req.Sent
	}
	if req.Printed != nil {
		updated.Printed = *req.Printed
	}
	saved, err := s.repo.UpdateInvoice(ctx, scope, updated)
	if err != nil {
		return domain.Invoice{}, err
	}
	return *saved, nil
}

func (s *Service) DeleteInvoice(ctx context.Context, id string) error {
	scope, err := s.ResolveScope(ctx)
	if err != nil {
		return err
	}
	return s.repo.DeleteInvoice(ctx, scope, id)
}

func (s *Service) CreateExpense(ctx context.Context, req domain.ExpenseRequest) (domain.Expense, error) {
	scope, err := s.ResolveScope(ctx)
	if err != nil {
		return domain.Expense{}, err
	}
	if !scope.HasShop() {
		return domain.Expense{}, store.ErrNotFound
	}

	now := s.now().UTC()
	expense := domain.Expense{
		ShopID:      scope.ShopID,
		Title:       trimPtr(req.Title),
		Description: trimPtr(req.Description),
		Date:        domain.DateOnly(now),
		CreatedAt:   now,
	}
	if expense.Title == "" {
		return domain.Expense{}, fmt.Errorf("%w: title is required", store.ErrInvalidInput)
	}
	if req.Amount == nil {
		return domain.Expense{}, fmt.Errorf("%w: amount is required", store.ErrInvalidInput)
	}
	if err := applyExpenseFields(&expense, req); err != nil {
		return domain.Expense{}, err
	}
	expense.BranchID, err = s.placeBranch(ctx, scope, trimPtr(req.BranchID))
	if err != nil {
		return domain.Expense{}, err
	}

	created, err := s.repo.CreateExpense(ctx, expense)
	if err != nil {
		return domain.Expense{}, err
	}
	s.invalidateReports(ctx, scope.ShopID)
	return *created, nil
}

func (s *Service) ListExpenses(ctx context.Context, limit int) ([]domain.Expense, error) {
	scope, err := s.ResolveScope(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListExpenses(ctx, scope, store.ListFilter{Limit: limit})
}

func (s *Service) GetExpense(ctx context.Context, id string) (domain.Expense, error) {
	scope, err := s.ResolveScope(ctx)
	if err != nil {
		return domain.Expense{}, err
	}
	expense, err := s.repo.GetExpense(ctx, scope, id)
	if err != nil {
		return domain.Expense{}, err
	}
	return *expense, nil
}

func (s *Service) UpdateExpense(ctx context.Context, id string, req domain.ExpenseRequest) (domain.Expense, error) {
	scope, err := s.ResolveScope(ctx)
	if err != nil {
		return domain.Expense{}, err
	}
	existing, err := s.repo.GetExpense(ctx, scope, id)
	if err != nil {
		return domain.Expense{}, err
	}
	updated := *existing
	if req.Title != nil {
		title := trimPtr(req.Title)
		if title == "" {
			return domain.Expense{}, fmt.Errorf("%w: title must not be empty", store.ErrInvalidInput)
		}
		updated.Title = title
	}
	if req.Description != nil {
		updated.Description = trimPtr(req.Description)
	}
	if err := applyExpenseFields(&updated, req); err != nil {
		return domain.Expense{}, err
	}
	if req.BranchID != nil {
		updated.BranchID, err = s.placeBranch(ctx, scope, trimPtr(req.BranchID))
		if err != nil {
			return domain.Expense{}, err
		}
	}

	saved, err := s.repo.UpdateExpense(ctx, scope, updated)
	if err != nil {
		return domain.Expense{}, err
	}
	s.invalidateReports(ctx, scope.ShopID)
	return *saved, nil
}

func (s *Service) DeleteExpense(ctx context.Context, id string) error {
	scope, err := s.ResolveScope(ctx)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteExpense(ctx, scope, id); err != nil {
		return err
	}
	s.invalidateReports(ctx, scope.ShopID)
	return nil
}

func applyExpenseFields(expense *domain.Expense, req domain.ExpenseRequest) error {
	if req.Amount != nil {
		if req.Amount.IsNegative() {
			return fmt.Errorf("%w: amount must not be negative", store.ErrInvalidInput)
		}
		expense.Amount = *req.Amount
	}
	if req.Date != nil {
		raw := strings.TrimSpace(*req.Date)
		date, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return fmt.Errorf("%w: date must be YYYY-MM-DD", store.ErrInvalidInput)
		}
		expense.Date = date.UTC()
	}
	return nil
}
