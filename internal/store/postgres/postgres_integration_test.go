package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"inventorypos/backend/internal/domain"
	"inventorypos/backend/internal/store"
)

// Integration tests run only against a throwaway database:
//
//	INVENTORYPOS_TEST_DATABASE_URL=postgres://... go test ./internal/store/postgres/
func newIntegrationStore(t *testing.T) *Store {
	t.Helper()

	databaseURL := os.Getenv("INVENTORYPOS_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set INVENTORYPOS_TEST_DATABASE_URL to run postgres integration tests")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	statements := []string{
		`CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			sku TEXT,
			barcode TEXT UNIQUE,
			description TEXT,
			unit_price_cents BIGINT NOT NULL,
			quantity_in_stock INTEGER NOT NULL DEFAULT 0,
			category TEXT,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sales (
			id TEXT PRIMARY KEY,
			total_cents BIGINT NOT NULL,
			notes TEXT,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sale_items (
			id TEXT PRIMARY KEY,
			sale_id TEXT NOT NULL REFERENCES sales(id) ON DELETE CASCADE,
			product_id TEXT NOT NULL REFERENCES products(id),
			quantity INTEGER NOT NULL,
			unit_price_cents BIGINT NOT NULL,
			subtotal_cents BIGINT NOT NULL,
			position INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS admins (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("schema setup: %v", err)
		}
	}

	return s
}

func seedIntegrationProduct(t *testing.T, s *Store, name string, priceCents int64, stock int) domain.Product {
	t.Helper()
	ctx := context.Background()

	created, err := s.CreateProduct(ctx, domain.Product{
		Name:            name,
		UnitPriceCents:  priceCents,
		QuantityInStock: stock,
	})
	if err != nil {
		t.Fatalf("seed product: %v", err)
	}
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(context.Background(), `DELETE FROM products WHERE id = $1`, created.ID)
	})
	return *created
}

func TestIntegrationCreateSaleCommitsAndDecrementsStock(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	product := seedIntegrationProduct(t, s, "it-espresso", 18900, 10)

	sale, err := s.CreateSale(ctx, domain.Sale{
		TotalCents: 37800,
		Items: []domain.SaleItem{
			{ProductID: product.ID, Quantity: 2, UnitPriceCents: 18900},
		},
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(context.Background(), `DELETE FROM sales WHERE id = $1`, sale.ID)
	})

	if len(sale.Items) != 1 || sale.Items[0].SubtotalCents != 37800 {
		t.Fatalf("unexpected sale items %+v", sale.Items)
	}

	after, err := s.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if after.QuantityInStock != 8 {
		t.Fatalf("expected stock 8 after sale, got %d", after.QuantityInStock)
	}
}

func TestIntegrationInsufficientStockRollsBack(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	full := seedIntegrationProduct(t, s, "it-milk", 2400, 10)
	short := seedIntegrationProduct(t, s, "it-syrup", 7600, 1)

	_, err := s.CreateSale(ctx, domain.Sale{
		TotalCents: 2400*3 + 7600*5,
		Items: []domain.SaleItem{
			{ProductID: full.ID, Quantity: 3, UnitPriceCents: 2400},
			{ProductID: short.ID, Quantity: 5, UnitPriceCents: 7600},
		},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	fullAfter, err := s.GetProduct(ctx, full.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if fullAfter.QuantityInStock != 10 {
		t.Fatalf("expected first line rolled back, stock 10, got %d", fullAfter.QuantityInStock)
	}

	var saleCount int
	if err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM sale_items WHERE product_id = $1 OR product_id = $2`,
		full.ID, short.ID).Scan(&saleCount); err != nil {
		t.Fatalf("count sale items: %v", err)
	}
	if saleCount != 0 {
		t.Fatalf("expected no sale_items rows after rollback, got %d", saleCount)
	}
}

func TestIntegrationUnknownProductFailsSale(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	_, err := s.CreateSale(ctx, domain.Sale{
		TotalCents: 100,
		Items: []domain.SaleItem{
			{ProductID: "prod-it-missing", Quantity: 1, UnitPriceCents: 100},
		},
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for unknown product, got %v", err)
	}
}

func TestIntegrationBarcodeUniqueConflict(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	first, err := s.CreateProduct(ctx, domain.Product{
		Name:           "it-barcode-a",
		Barcode:        "it-8991002109999",
		UnitPriceCents: 100,
	})
	if err != nil {
		t.Fatalf("create first product: %v", err)
	}
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(context.Background(), `DELETE FROM products WHERE id = $1`, first.ID)
	})

	_, err = s.CreateProduct(ctx, domain.Product{
		Name:           "it-barcode-b",
		Barcode:        "it-8991002109999",
		UnitPriceCents: 200,
	})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict for duplicate barcode, got %v", err)
	}
}

func TestIntegrationReportingWindows(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	product := seedIntegrationProduct(t, s, "it-report", 300, 100)

	now := time.Now().UTC()
	saleIDs := make([]string, 0, 2)
	for _, age := range []int{45, 1} {
		sale, err := s.CreateSale(ctx, domain.Sale{
			TotalCents: 300,
			CreatedAt:  now.AddDate(0, 0, -age),
			Items: []domain.SaleItem{
				{ProductID: product.ID, Quantity: 1, UnitPriceCents: 300},
			},
		})
		if err != nil {
			t.Fatalf("create sale aged %dd: %v", age, err)
		}
		saleIDs = append(saleIDs, sale.ID)
	}
	t.Cleanup(func() {
		for _, id := range saleIDs {
			_, _ = s.db.ExecContext(context.Background(), `DELETE FROM sales WHERE id = $1`, id)
		}
	})

	points, err := s.ListSalePointsBetween(ctx, now.AddDate(0, 0, -30), now)
	if err != nil {
		t.Fatalf("list sale points: %v", err)
	}
	found := 0
	for _, point := range points {
		if point.ID == saleIDs[0] {
			t.Fatalf("45-day-old sale must not appear in a 30-day window")
		}
		if point.ID == saleIDs[1] {
			found++
		}
	}
	if found != 1 {
		t.Fatalf("expected the recent sale in the window, found %d matches", found)
	}
}
