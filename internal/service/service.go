package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"inventorypos/backend/internal/cache"
	"inventorypos/backend/internal/domain"
	"inventorypos/backend/internal/store"
)

// summaryCacheKey scopes the cached dashboard summary to one calendar day so
// a cached entry can never straddle a day, week or month boundary.
func summaryCacheKey(day time.Time) string {
	return "dashboard:summary:" + day.Format("2006-01-02")
}

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo         store.Repository
	summaryCache cache.SummaryCache
}

func New(repo store.Repository, summaryCache cache.SummaryCache) *Service {
	if summaryCache == nil {
		summaryCache = cache.NoopSummaryCache{}
	}
	return &Service{
		repo:         repo,
		summaryCache: summaryCache,
	}
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) GetProductByBarcode(ctx context.Context, barcode string) (domain.Product, error) {
	product, err := s.repo.GetProductByBarcode(ctx, strings.TrimSpace(barcode))
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Product{}, fmt.Errorf("%w: name is required", store.ErrValidation)
	}
	if req.UnitPriceCents < 0 || req.QuantityInStock < 0 {
		return domain.Product{}, fmt.Errorf("%w: price and quantity must not be negative", store.ErrValidation)
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		Name:            req.Name,
		SKU:             strings.TrimSpace(req.SKU),
		Barcode:         strings.TrimSpace(req.Barcode),
		Description:     strings.TrimSpace(req.Description),
		UnitPriceCents:  req.UnitPriceCents,
		QuantityInStock: req.QuantityInStock,
		Category:        strings.TrimSpace(req.Category),
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.invalidateSummary(ctx)
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	existing, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, fmt.Errorf("%w: name must not be empty", store.ErrValidation)
		}
		updated.Name = name
	}
	if req.SKU != nil {
		updated.SKU = strings.TrimSpace(*req.SKU)
	}
	if req.Barcode != nil {
		updated.Barcode = strings.TrimSpace(*req.Barcode)
	}
	if req.Description != nil {
		updated.Description = strings.TrimSpace(*req.Description)
	}
	if req.UnitPriceCents != nil {
		if *req.UnitPriceCents < 0 {
			return domain.Product{}, fmt.Errorf("%w: price must not be negative", store.ErrValidation)
		}
		updated.UnitPriceCents = *req.UnitPriceCents
	}
	if req.QuantityInStock != nil {
		if *req.QuantityInStock < 0 {
			return domain.Product{}, fmt.Errorf("%w: quantity must not be negative", store.ErrValidation)
		}
		updated.QuantityInStock = *req.QuantityInStock
	}
	if req.Category != nil {
		updated.Category = strings.TrimSpace(*req.Category)
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}

	s.invalidateSummary(ctx)
	return *saved, nil
}

// SetProductQuantity overwrites the stock level directly, used for manual
// stock corrections.
func (s *Service) SetProductQuantity(ctx context.Context, id string, quantity int) (domain.Product, error) {
	if quantity < 0 {
		return domain.Product{}, fmt.Errorf("%w: quantity must not be negative", store.ErrValidation)
	}

	saved, err := s.repo.SetProductQuantity(ctx, id, quantity)
	if err != nil {
		return domain.Product{}, err
	}

	s.invalidateSummary(ctx)
	return *saved, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.invalidateSummary(ctx)
	return nil
}

// CreateSale validates the request, computes the total from the
// caller-supplied per-line unit prices and hands the sale to the repository
// as one atomic unit of work. The caller is the source of truth for the
// price charged; the product's current price is not re-read.
func (s *Service) CreateSale(ctx context.Context, req domain.SaleCreateRequest) (domain.Sale, error) {
	if len(req.Items) == 0 {
		return domain.Sale{}, fmt.Errorf("%w: sale requires at least one item", store.ErrValidation)
	}

	totalCents := int64(0)
	items := make([]domain.SaleItem, 0, len(req.Items))
	for _, input := range req.Items {
		if strings.TrimSpace(input.ProductID) == "" {
			return domain.Sale{}, fmt.Errorf("%w: product id is required", store.ErrValidation)
		}
		if input.Quantity < 1 {
			return domain.Sale{}, fmt.Errorf("%w: quantity must be at least 1", store.ErrValidation)
		}
		if input.UnitPriceCents < 0 {
			return domain.Sale{}, fmt.Errorf("%w: unit price must not be negative", store.ErrValidation)
		}
		totalCents += int64(input.Quantity) * input.UnitPriceCents
		items = append(items, domain.SaleItem{
			ProductID:      input.ProductID,
			Quantity:       input.Quantity,
			UnitPriceCents: input.UnitPriceCents,
		})
	}

	created, err := s.repo.CreateSale(ctx, domain.Sale{
		TotalCents: totalCents,
		Notes:      strings.TrimSpace(req.Notes),
		CreatedAt:  time.Now().UTC(),
		Items:      items,
	})
	if err != nil {
		return domain.Sale{}, err
	}

	s.invalidateSummary(ctx)
	return *created, nil
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	sale, err := s.repo.GetSale(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

func (s *Service) ListSales(ctx context.Context) ([]domain.Sale, error) {
	return s.repo.ListSales(ctx)
}

// Summary aggregates the dashboard counters. Day, week and month windows are
// derived from now's calendar in now's location: the week starts on the most
// recent Sunday at or before today.
func (s *Service) Summary(ctx context.Context, now time.Time) (domain.DashboardSummary, error) {
	startOfToday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	startOfWeek := startOfToday.AddDate(0, 0, -int(startOfToday.Weekday()))
	startOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	cacheKey := summaryCacheKey(startOfToday)
	if cached, ok, err := s.summaryCache.Get(ctx, cacheKey); err == nil && ok {
		return *cached, nil
	} else if err != nil {
		log.Printf("[service] WARN: summary cache read failed: %v", err)
	}

	var summary domain.DashboardSummary
	var err error
	if summary.TotalProducts, err = s.repo.CountProducts(ctx); err != nil {
		return domain.DashboardSummary{}, err
	}
	if summary.LowStockCount, err = s.repo.CountLowStockProducts(ctx, domain.LowStockThreshold); err != nil {
		return domain.DashboardSummary{}, err
	}
	if summary.SalesToday, err = s.repo.CountSalesSince(ctx, startOfToday); err != nil {
		return domain.DashboardSummary{}, err
	}
	if summary.SalesWeek, err = s.repo.CountSalesSince(ctx, startOfWeek); err != nil {
		return domain.DashboardSummary{}, err
	}
	if summary.SalesMonth, err = s.repo.CountSalesSince(ctx, startOfMonth); err != nil {
		return domain.DashboardSummary{}, err
	}
	if summary.RevenueTodayCents, err = s.repo.SumSalesTotalSince(ctx, startOfToday); err != nil {
		return domain.DashboardSummary{}, err
	}
	if summary.RevenueWeekCents, err = s.repo.SumSalesTotalSince(ctx, startOfWeek); err != nil {
		return domain.DashboardSummary{}, err
	}
	if summary.RevenueMonthCents, err = s.repo.SumSalesTotalSince(ctx, startOfMonth); err != nil {
		return domain.DashboardSummary{}, err
	}

	if err := s.summaryCache.Set(ctx, cacheKey, &summary); err != nil {
		log.Printf("[service] WARN: summary cache write failed: %v", err)
	}
	return summary, nil
}

// SalesOverTime returns the ascending sale totals in [from, to]; the window
// defaults to the last 30 days when bounds are omitted.
func (s *Service) SalesOverTime(ctx context.Context, from *time.Time, to *time.Time) ([]domain.SalePoint, error) {
	now := time.Now().UTC()
	fromAt := now.Add(-30 * 24 * time.Hour)
	toAt := now
	if from != nil {
		fromAt = *from
	}
	if to != nil {
		toAt = *to
	}

	return s.repo.ListSalePointsBetween(ctx, fromAt, toAt)
}

// SalesReport returns the descending sales in [from, to] together with the
// revenue sum and transaction count. Both totals are computed from the same
// filtered result so they can never drift from the list.
func (s *Service) SalesReport(ctx context.Context, from *time.Time, to *time.Time) (domain.SalesReport, error) {
	fromAt := time.Unix(0, 0).UTC()
	toAt := time.Now().UTC()
	if from != nil {
		fromAt = *from
	}
	if to != nil {
		toAt = *to
	}

	sales, err := s.repo.ListSalesBetween(ctx, fromAt, toAt)
	if err != nil {
		return domain.SalesReport{}, err
	}

	report := domain.SalesReport{
		TotalTransactions: len(sales),
		Sales:             sales,
	}
	for _, sale := range sales {
		report.TotalRevenueCents += sale.TotalCents
	}
	return report, nil
}

func (s *Service) invalidateSummary(ctx context.Context) {
	now := time.Now()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if err := s.summaryCache.Invalidate(ctx, summaryCacheKey(day)); err != nil {
		log.Printf("[service] WARN: summary cache invalidation failed: %v", err)
	}
}
