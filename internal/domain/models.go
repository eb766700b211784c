package domain

import "time"

// LowStockThreshold is the fixed quantity below which a product counts as
// low stock on the dashboard.
const LowStockThreshold = 5

type Product struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	SKU             string    `json:"sku,omitempty"`
	Barcode         string    `json:"barcode,omitempty"`
	Description     string    `json:"description,omitempty"`
	UnitPriceCents  int64     `json:"unit_price_cents"`
	QuantityInStock int       `json:"quantity_in_stock"`
	Category        string    `json:"category,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type ProductCreateRequest struct {
	Name            string `json:"name"`
	SKU             string `json:"sku,omitempty"`
	Barcode         string `json:"barcode,omitempty"`
	Description     string `json:"description,omitempty"`
	UnitPriceCents  int64  `json:"unit_price_cents"`
	QuantityInStock int    `json:"quantity_in_stock"`
	Category        string `json:"category,omitempty"`
}

type ProductUpdateRequest struct {
	Name            *string `json:"name,omitempty"`
	SKU             *string `json:"sku,omitempty"`
	Barcode         *string `json:"barcode,omitempty"`
	Description     *string `json:"description,omitempty"`
	UnitPriceCents  *int64  `json:"unit_price_cents,omitempty"`
	QuantityInStock *int    `json:"quantity_in_stock,omitempty"`
	Category        *string `json:"category,omitempty"`
}

type SetQuantityRequest struct {
	QuantityInStock int `json:"quantity_in_stock"`
}

// SaleItem records the unit price charged at the point of sale. Later
// product price changes never affect past sale items.
type SaleItem struct {
	ID             string   `json:"id"`
	SaleID         string   `json:"sale_id"`
	ProductID      string   `json:"product_id"`
	Quantity       int      `json:"quantity"`
	UnitPriceCents int64    `json:"unit_price_cents"`
	SubtotalCents  int64    `json:"subtotal_cents"`
	Product        *Product `json:"product,omitempty"`
}

type Sale struct {
	ID         string     `json:"id"`
	TotalCents int64      `json:"total_cents"`
	Notes      string     `json:"notes,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	Items      []SaleItem `json:"items"`
}

type SaleItemInput struct {
	ProductID      string `json:"product_id"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

type SaleCreateRequest struct {
	Notes string          `json:"notes,omitempty"`
	Items []SaleItemInput `json:"items"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Username    string `json:"username"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	ID       string
	Username string
}

// AdminAccount is an internal persistence model for auth credentials.
type AdminAccount struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

type DashboardSummary struct {
	TotalProducts     int   `json:"total_products"`
	LowStockCount     int   `json:"low_stock_count"`
	SalesToday        int   `json:"sales_today"`
	SalesWeek         int   `json:"sales_week"`
	SalesMonth        int   `json:"sales_month"`
	RevenueTodayCents int64 `json:"revenue_today_cents"`
	RevenueWeekCents  int64 `json:"revenue_week_cents"`
	RevenueMonthCents int64 `json:"revenue_month_cents"`
}

// SalePoint is the lightweight projection used by the sales-over-time chart.
type SalePoint struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	TotalCents int64     `json:"total_cents"`
}

type SalesReport struct {
	TotalRevenueCents int64  `json:"total_revenue_cents"`
	TotalTransactions int    `json:"total_transactions"`
	Sales             []Sale `json:"sales"`
}
