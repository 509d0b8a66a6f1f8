package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"warungku/backend/internal/domain"
	"warungku/backend/internal/store"
)

const summaryCacheTTL = 2 * time.Minute

// SalesSummary aggregates the orders of one calendar day (date formatted
// 2006-01-02, UTC). The result is cached briefly because the dashboard
// polls it.
func (s *Service) SalesSummary(ctx context.Context, date string) (domain.SalesSummary, error) {
	if date == "" {
		date = time.Now().UTC().Format("2006-01-02")
	}
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return domain.SalesSummary{}, fmt.Errorf("%w: date %q", store.ErrInvalidInput, date)
	}

	cacheKey := "sales-summary:" + date
	if cached, ok, err := s.summary.Get(ctx, cacheKey); err == nil && ok {
		return *cached, nil
	} else if err != nil {
		s.log.Warn("summary cache read failed", zap.Error(err))
	}

	orders, err := s.repo.ListOrders(ctx)
	if err != nil {
		return domain.SalesSummary{}, err
	}
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return domain.SalesSummary{}, err
	}
	costByID := make(map[string]int64, len(products))
	for _, p := range products {
		costByID[p.ID] = p.Cost
	}

	dayStart := day
	dayEnd := day.Add(24 * time.Hour)

	summary := domain.SalesSummary{Date: date}
	for _, order := range orders {
		at := order.CreatedAt.UTC()
		if at.Before(dayStart) || !at.Before(dayEnd) {
			continue
		}
		summary.Orders++
		summary.Revenue += order.FinalAmount
		summary.Discount += order.Discount
		summary.Paid += order.PaidAmount
		summary.NewDebt += order.DebtAmount
		for _, line := range order.Items {
			summary.ItemsSold += line.Qty
			summary.GrossProfit += line.LineTotal - int64(line.Qty)*costByID[line.ProductID]
		}
	}

	if err := s.summary.Set(ctx, cacheKey, &summary, summaryCacheTTL); err != nil {
		s.log.Warn("summary cache write failed", zap.Error(err))
	}
	return summary, nil
}

// DebtSummary lists every customer with an outstanding balance, largest
// debt first.
func (s *Service) DebtSummary(ctx context.Context) (domain.DebtSummary, error) {
	customers, err := s.repo.ListCustomers(ctx)
	if err != nil {
		return domain.DebtSummary{}, err
	}

	summary := domain.DebtSummary{Debtors: []domain.DebtSummaryEntry{}}
	for _, customer := range customers {
		if customer.Debt <= 0 {
			continue
		}
		summary.TotalDebt += customer.Debt
		summary.Debtors = append(summary.Debtors, domain.DebtSummaryEntry{
			CustomerID:   customer.ID,
			CustomerName: customer.Name,
			Phone:        customer.Phone,
			Debt:         customer.Debt,
		})
	}
	slices.SortFunc(summary.Debtors, func(a, b domain.DebtSummaryEntry) int {
		switch {
		case a.Debt > b.Debt:
			return -1
		case a.Debt < b.Debt:
			return 1
		default:
			return 0
		}
	})
	return summary, nil
}

// LowStockProducts returns products at or below the threshold, lowest
// stock first. Negative stock (over-issued exports) sorts to the top.
func (s *Service) LowStockProducts(ctx context.Context, threshold int) ([]domain.Product, error) {
	if threshold < 0 {
		threshold = 0
	}
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}

	low := make([]domain.Product, 0)
	for _, product := range products {
		if product.Stock <= threshold {
			low = append(low, product)
		}
	}
	slices.SortFunc(low, func(a, b domain.Product) int { return a.Stock - b.Stock })
	return low, nil
}

// ExpiringProducts flags stocked products whose expiry date falls within
// the configured alert window. Already-expired products report a negative
// DaysLeft.
func (s *Service) ExpiringProducts(ctx context.Context) ([]domain.ExpiryAlert, error) {
	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	window := settings.ExpiryAlertDays
	if window < 1 {
		window = 30
	}

	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	alerts := make([]domain.ExpiryAlert, 0)
	for _, product := range products {
		if product.ExpiryDate == nil || product.Stock <= 0 {
			continue
		}
		daysLeft := int(product.ExpiryDate.Sub(now).Hours() / 24)
		if daysLeft > window {
			continue
		}
		alerts = append(alerts, domain.ExpiryAlert{
			ProductID:   product.ID,
			Code:        product.Code,
			Name:        product.Name,
			BatchNumber: product.BatchNumber,
			ExpiryDate:  product.ExpiryDate,
			DaysLeft:    daysLeft,
			Stock:       product.Stock,
		})
	}
	slices.SortFunc(alerts, func(a, b domain.ExpiryAlert) int { return a.DaysLeft - b.DaysLeft })
	return alerts, nil
}

// ---- snapshot export / import ----

func (s *Service) ExportSnapshot(ctx context.Context) (domain.Snapshot, error) {
	snapshot, err := s.repo.ExportSnapshot(ctx)
	if err != nil {
		return domain.Snapshot{}, err
	}
	return *snapshot, nil
}

// ImportSnapshot replaces every collection wholesale. Counts in the result
// tell the operator what the restored dataset holds.
func (s *Service) ImportSnapshot(ctx context.Context, snapshot domain.Snapshot) (domain.ImportResult, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.ImportResult{}, fmt.Errorf("admin role required")
	}

	if err := s.repo.ImportSnapshot(ctx, snapshot); err != nil {
		return domain.ImportResult{}, err
	}

	s.log.Info("snapshot imported",
		zap.Int("products", len(snapshot.Products)),
		zap.Int("customers", len(snapshot.Customers)),
		zap.Int("orders", len(snapshot.Orders)),
		zap.String("staff", actor.Username),
	)
	return domain.ImportResult{
		Ok:        true,
		Message:   "data restored",
		Products:  len(snapshot.Products),
		Customers: len(snapshot.Customers),
		Orders:    len(snapshot.Orders),
	}, nil
}
