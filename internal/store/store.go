package store

import (
	"context"
	"errors"
	"time"

	"inventorypos/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("invalid input")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrConflict          = errors.New("conflict")
)

type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	SetProductQuantity(ctx context.Context, id string, quantity int) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error

	// CreateSale persists the sale, its items and the stock decrements as one
	// atomic unit. It fails with ErrNotFound if any item references an
	// unknown product and ErrInsufficientStock if any stock guard fails; in
	// both cases nothing is persisted.
	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	GetSale(ctx context.Context, id string) (*domain.Sale, error)
	ListSales(ctx context.Context) ([]domain.Sale, error)

	CountProducts(ctx context.Context) (int, error)
	CountLowStockProducts(ctx context.Context, threshold int) (int, error)
	CountSalesSince(ctx context.Context, since time.Time) (int, error)
	SumSalesTotalSince(ctx context.Context, since time.Time) (int64, error)
	ListSalePointsBetween(ctx context.Context, from time.Time, to time.Time) ([]domain.SalePoint, error)
	ListSalesBetween(ctx context.Context, from time.Time, to time.Time) ([]domain.Sale, error)

	GetAdminByUsername(ctx context.Context, username string) (*domain.AdminAccount, error)
	CreateAdmin(ctx context.Context, admin domain.AdminAccount) error
}
