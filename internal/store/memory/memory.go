package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"inventorypos/backend/internal/domain"
	"inventorypos/backend/internal/store"
	"inventorypos/backend/internal/xid"
)

type Store struct {
	mu               sync.RWMutex
	products         map[string]domain.Product
	salesByID        map[string]domain.Sale
	saleOrder        []string
	adminsByUsername map[string]domain.AdminAccount
}

func New() *Store {
	return &Store{
		products:         make(map[string]domain.Product),
		salesByID:        make(map[string]domain.Sale),
		saleOrder:        make([]string, 0, 64),
		adminsByUsername: make(map[string]domain.AdminAccount),
	}
}

// NewSeeded builds a store with demo products and an admin account for dev
// mode. The admin password is read from SEED_ADMIN_PASSWORD; a hardcoded dev
// default is used with a warning when unset. Production deployments use
// PostgreSQL (DATABASE_URL) and never hit this path.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()

	products := []domain.Product{
		{Name: "Espresso Beans 1kg", SKU: "SKU-BEAN-01", Barcode: "8991002100015", Category: "coffee", UnitPriceCents: 18900, QuantityInStock: 40},
		{Name: "Whole Milk 1L", SKU: "SKU-MILK-01", Barcode: "8991002100022", Category: "dairy", UnitPriceCents: 2400, QuantityInStock: 60},
		{Name: "Paper Cup 12oz (50pk)", SKU: "SKU-CUP-12", Barcode: "8991002100039", Category: "supplies", UnitPriceCents: 5200, QuantityInStock: 25},
		{Name: "Chocolate Syrup", SKU: "SKU-SYR-CHO", Category: "syrup", UnitPriceCents: 7600, QuantityInStock: 12},
		{Name: "Vanilla Syrup", SKU: "SKU-SYR-VAN", Category: "syrup", UnitPriceCents: 7600, QuantityInStock: 3},
		{Name: "Croissant", SKU: "SKU-CRS-01", Barcode: "8991002100060", Category: "bakery", UnitPriceCents: 1800, QuantityInStock: 18},
		{Name: "Bottled Water 600ml", SKU: "SKU-WTR-01", Barcode: "8991002100077", Category: "beverage", UnitPriceCents: 900, QuantityInStock: 120},
		{Name: "Tea Sampler Box", SKU: "SKU-TEA-01", Category: "tea", UnitPriceCents: 11200, QuantityInStock: 2},
	}
	for _, p := range products {
		p.ID = xid.New("prod")
		p.CreatedAt = now
		p.UpdatedAt = now
		s.products[p.ID] = p
	}

	adminPwd := os.Getenv("SEED_ADMIN_PASSWORD")
	if adminPwd == "" {
		adminPwd = "admin123"
		log.Println("[memory-store] WARNING: using default dev admin credentials. Set SEED_ADMIN_PASSWORD to override.")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(adminPwd), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("[memory-store] failed to hash seed admin password: %v", err)
	}
	s.adminsByUsername["admin"] = domain.AdminAccount{
		ID:           xid.New("adm"),
		Username:     "admin",
		PasswordHash: string(hash),
		CreatedAt:    now,
	}

	return s
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		return strings.Compare(a.Name, b.Name)
	})
	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := p
	return &found, nil
}

func (s *Store) GetProductByBarcode(_ context.Context, barcode string) (*domain.Product, error) {
	if barcode == "" {
		return nil, store.ErrNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.products {
		if p.Barcode == barcode {
			found := p
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.UnitPriceCents < 0 || product.QuantityInStock < 0 {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if product.Barcode != "" {
		for _, existing := range s.products {
			if existing.Barcode == product.Barcode {
				return nil, store.ErrConflict
			}
		}
	}

	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now
	s.products[product.ID] = product

	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.UnitPriceCents < 0 || product.QuantityInStock < 0 {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.products[product.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if product.Barcode != "" {
		for id, other := range s.products {
			if id != product.ID && other.Barcode == product.Barcode {
				return nil, store.ErrConflict
			}
		}
	}

	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = time.Now().UTC()
	s.products[product.ID] = product

	updated := product
	return &updated, nil
}

func (s *Store) SetProductQuantity(_ context.Context, id string, quantity int) (*domain.Product, error) {
	if quantity < 0 {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	p.QuantityInStock = quantity
	p.UpdatedAt = time.Now().UTC()
	s.products[id] = p

	updated := p
	return &updated, nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.products, id)
	return nil
}

// CreateSale applies the whole sale under one lock: the stock guards for
// every line are checked before any state is touched, so a failing line
// leaves no sale, no items and no stock change behind.
func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	if len(sale.Items) == 0 {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	needed := make(map[string]int, len(sale.Items))
	for _, item := range sale.Items {
		if item.Quantity < 1 {
			return nil, store.ErrValidation
		}
		needed[item.ProductID] += item.Quantity
	}
	for productID, qty := range needed {
		p, ok := s.products[productID]
		if !ok {
			return nil, store.ErrNotFound
		}
		if p.QuantityInStock < qty {
			return nil, store.ErrInsufficientStock
		}
	}

	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}

	now := time.Now().UTC()
	items := make([]domain.SaleItem, 0, len(sale.Items))
	for _, item := range sale.Items {
		p := s.products[item.ProductID]
		p.QuantityInStock -= item.Quantity
		p.UpdatedAt = now
		s.products[item.ProductID] = p

		if item.ID == "" {
			item.ID = xid.New("item")
		}
		item.SaleID = sale.ID
		item.SubtotalCents = int64(item.Quantity) * item.UnitPriceCents
		item.Product = nil
		items = append(items, item)
	}
	sale.Items = items

	s.salesByID[sale.ID] = sale
	s.saleOrder = append(s.saleOrder, sale.ID)

	created := s.saleWithProducts(sale)
	return &created, nil
}

// saleWithProducts attaches the current product row to each item for display,
// mirroring the join the SQL store does on read. The charged price stays in
// the item itself. Caller holds at least the read lock.
func (s *Store) saleWithProducts(sale domain.Sale) domain.Sale {
	items := make([]domain.SaleItem, len(sale.Items))
	copy(items, sale.Items)
	for i := range items {
		if p, ok := s.products[items[i].ProductID]; ok {
			current := p
			items[i].Product = &current
		} else {
			items[i].Product = nil
		}
	}
	sale.Items = items
	return sale
}

func (s *Store) GetSale(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.salesByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := s.saleWithProducts(sale)
	return &found, nil
}

func (s *Store) ListSales(_ context.Context) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, len(s.saleOrder))
	for _, id := range s.saleOrder {
		sales = append(sales, s.saleWithProducts(s.salesByID[id]))
	}
	slices.SortFunc(sales, func(a, b domain.Sale) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return sales, nil
}

func (s *Store) CountProducts(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.products), nil
}

func (s *Store) CountLowStockProducts(_ context.Context, threshold int) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, p := range s.products {
		if p.QuantityInStock < threshold {
			count++
		}
	}
	return count, nil
}

func (s *Store) CountSalesSince(_ context.Context, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, sale := range s.salesByID {
		if !sale.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (s *Store) SumSalesTotalSince(_ context.Context, since time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := int64(0)
	for _, sale := range s.salesByID {
		if !sale.CreatedAt.Before(since) {
			total += sale.TotalCents
		}
	}
	return total, nil
}

func (s *Store) ListSalePointsBetween(_ context.Context, from time.Time, to time.Time) ([]domain.SalePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	points := make([]domain.SalePoint, 0, len(s.salesByID))
	for _, sale := range s.salesByID {
		if inRange(sale.CreatedAt, from, to) {
			points = append(points, domain.SalePoint{ID: sale.ID, CreatedAt: sale.CreatedAt, TotalCents: sale.TotalCents})
		}
	}
	slices.SortFunc(points, func(a, b domain.SalePoint) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return points, nil
}

func (s *Store) ListSalesBetween(_ context.Context, from time.Time, to time.Time) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, len(s.salesByID))
	for _, sale := range s.salesByID {
		if inRange(sale.CreatedAt, from, to) {
			sales = append(sales, s.saleWithProducts(sale))
		}
	}
	slices.SortFunc(sales, func(a, b domain.Sale) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return sales, nil
}

func (s *Store) GetAdminByUsername(_ context.Context, username string) (*domain.AdminAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	admin, ok := s.adminsByUsername[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := admin
	return &found, nil
}

func (s *Store) CreateAdmin(_ context.Context, admin domain.AdminAccount) error {
	if admin.Username == "" || admin.PasswordHash == "" {
		return store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.adminsByUsername[admin.Username]; exists {
		return store.ErrConflict
	}
	if admin.ID == "" {
		admin.ID = xid.New("adm")
	}
	if admin.CreatedAt.IsZero() {
		admin.CreatedAt = time.Now().UTC()
	}
	s.adminsByUsername[admin.Username] = admin
	return nil
}

func inRange(at time.Time, from time.Time, to time.Time) bool {
	return !at.Before(from) && !at.After(to)
}
