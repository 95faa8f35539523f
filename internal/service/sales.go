package service

import (
	"context"
	"fmt"
	"strings"

	"shopmate/backend/internal/domain"
	"shopmate/backend/internal/store"
	"shopmate/backend/internal/xid"
)

// CreateSale records a sale and consumes stock as one unit. Either every line
// is served and persisted, or nothing changes.
func (s *Service) CreateSale(ctx context.Context, req domain.SaleCreateRequest) (domain.Sale, error) {
	actor, scope, err := s.actorScope(ctx)
	if err != nil {
		return domain.Sale{}, err
	}
	if !scope.HasShop() {
		return domain.Sale{}, store.ErrNotFound
	}

	lines, err := mergeLines(req.Items)
	if err != nil {
		return domain.Sale{}, err
	}
	branchID, err := s.placeBranch(ctx, scope, req.BranchID)
	if err != nil {
		return domain.Sale{}, err
	}

	var customer *domain.Customer
	if req.Customer != nil {
		phone := strings.TrimSpace(req.Customer.Phone)
		if phone == "" {
			return domain.Sale{}, fmt.Errorf("%w: customer phone is required", store.ErrInvalidInput)
		}
		customer = &domain.Customer{
			FullName: strings.TrimSpace(req.Customer.FullName),
			Phone:    phone,
			Email:    strings.TrimSpace(req.Customer.Email),
			Address:  strings.TrimSpace(req.Customer.Address),
		}
	}

	now := s.now().UTC()
	invoiceNumber := strings.TrimSpace(req.InvoiceNumber)
	if invoiceNumber == "" {
		invoiceNumber = xid.InvoiceNumber(now)
	}

	items := make([]domain.SaleItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, domain.SaleItem{ProductID: line.ProductID, Quantity: line.Quantity})
	}

	created, err := s.repo.CreateSale(ctx, scope, domain.Sale{
		ShopID:        scope.ShopID,
		BranchID:      branchID,
		EmployeeID:    actor.UserID,
		Status:        domain.SaleStatusPending,
		InvoiceNumber: invoiceNumber,
		CreatedAt:     now,
		Items:         items,
	}, customer)
	if err != nil {
		return domain.Sale{}, err
	}
	s.invalidateReports(ctx, scope.ShopID)
	return *created, nil
}

func (s *Service) ListSales(ctx context.Context, limit int) ([]domain.Sale, error) {
	scope, err := s.ResolveScope(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListSales(ctx, scope, store.ListFilter{Limit: limit})
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	scope, err := s.ResolveScope(ctx)
	if err != nil {
		return domain.Sale{}, err
	}
	sale, err := s.repo.GetSale(ctx, scope, id)
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

// ConfirmSale marks a pending sale complete. Stock was already taken when the
// sale was created, so confirming twice is a no-op.
func (s *Service) ConfirmSale(ctx context.Context, id string) (domain.Sale, error) {
	scope, err := s.ResolveScope(ctx)
	if err != nil {
		return domain.Sale{}, err
	}
	sale, err := s.repo.GetSale(ctx, scope, id)
	if err != nil {
		return domain.Sale{}, err
	}
	if sale.Status == domain.SaleStatusComplete {
		return *sale, nil
	}
	confirmed, err := s.repo.SetSaleStatus(ctx, scope, id, domain.SaleStatusComplete)
	if err != nil {
		return domain.Sale{}, err
	}
	return *confirmed, nil
}

func (s *Service) DeleteSale(ctx context.Context, id string) error {
	scope, err := s.ResolveScope(ctx)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteSale(ctx, scope, id); err != nil {
		return err
	}
	s.invalidateReports(ctx, scope.ShopID)
	return nil
}

func (s *Service) AddSaleItem(ctx context.Context, req domain.SaleItemCreateRequest) (domain.SaleItem, error) {
	scope, err := s.ResolveScope(ctx)
	if err != nil {
		return domain.SaleItem{}, err
	}
	saleID := strings.TrimSpace(req.SaleID)
	productID := strings.TrimSpace(req.ProductID)
	if saleID == "" || productID == "" {
		return domain.SaleItem{}, fmt.Errorf("%w: sale and product_id are required", store.ErrInvalidInput)
	}
	if err := checkLineQuantity(req.Quantity); err != nil {
		return domain.SaleItem{}, err
	}

	item, err := s.repo.AddSaleItem(ctx, scope, saleID, domain.SaleLine{ProductID: productID, Quantity: req.Quantity})
	if err != nil {
		return domain.SaleItem{}, err
	}
	s.invalidateReports(ctx, scope.ShopID)
	return *item, nil
}

func (s *Service) ListSaleItems(ctx context.Context, saleID string) ([]domain.SaleItem, error) {
	scope, err := s.ResolveScope(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListSaleItems(ctx, scope, strings.TrimSpace(saleID))
}

func (s *Service) GetSaleItem(ctx context.Context, id string) (domain.SaleItem, error) {
	scope, err := s.ResolveScope(ctx)
	if err != nil {
		return domain.SaleItem{}, err
	}
	item, err := s.repo.GetSaleItem(ctx, scope, id)
	if err != nil {
		return domain.SaleItem{}, err
	}
	return *item, nil
}

func (s *Service) DeleteSaleItem(ctx context.Context, id string) error {
	scope, err := s.ResolveScope(ctx)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteSaleItem(ctx, scope, id); err != nil {
		return err
	}
	s.invalidateReports(ctx, scope.ShopID)
	return nil
}

// mergeLines validates sale lines and folds repeated products into one line,
// keeping first-seen order.
func mergeLines(lines []domain.SaleLine) ([]domain.SaleLine, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: sale_items must not be empty", store.ErrInvalidInput)
	}
	merged := make([]domain.SaleLine, 0, len(lines))
	index := make(map[string]int, len(lines))
	for _, line := range lines {
		productID := strings.TrimSpace(line.ProductID)
		if productID == "" {
			return nil, fmt.Errorf("%w: product_id is required", store.ErrInvalidInput)
		}
		if err := checkLineQuantity(line.Quantity); err != nil {
			return nil, err
		}
		if i, ok := index[productID]; ok {
			if merged[i].Quantity > domain.MaxQuantity-line.Quantity {
				return nil, fmt.Errorf("%w: total quantity for product %s exceeds %d", store.ErrInvalidInput, productID, domain.MaxQuantity)
			}
			merged[i].Quantity += line.Quantity
			continue
		}
		index[productID] = len(merged)
		merged = append(merged, domain.SaleLine{ProductID: productID, Quantity: line.Quantity})
	}
	return merged, nil
}

func checkLineQuantity(qty int) error {
	if qty < 1 {
		return fmt.Errorf("%w: quantity must be at least 1", store.ErrInvalidInput)
	}
	if qty > domain.MaxQuantity {
		return fmt.Errorf("%w: quantity must not exceed %d", store.ErrInvalidInput, domain.MaxQuantity)
	}
	return nil
}
