package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"inventorypos/backend/internal/domain"
	"inventorypos/backend/internal/store"
	"inventorypos/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const productColumns = `id, name, sku, barcode, description, unit_price_cents, quantity_in_stock, category, created_at, updated_at`

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = $1
	`, id)
	return scanProductRow(row)
}

func (s *Store) GetProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error) {
	if barcode == "" {
		return nil, store.ErrNotFound
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE barcode = $1
	`, barcode)
	return scanProductRow(row)
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.UnitPriceCents < 0 || product.QuantityInStock < 0 {
		return nil, store.ErrValidation
	}
	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, sku, barcode, description, unit_price_cents, quantity_in_stock, category, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, product.ID, product.Name, nullIfEmpty(product.SKU), nullIfEmpty(product.Barcode), nullIfEmpty(product.Description),
		product.UnitPriceCents, product.QuantityInStock, nullIfEmpty(product.Category), product.CreatedAt, product.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.UnitPriceCents < 0 || product.QuantityInStock < 0 {
		return nil, store.ErrValidation
	}

	product.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2, sku = $3, barcode = $4, description = $5, unit_price_cents = $6,
			quantity_in_stock = $7, category = $8, updated_at = $9
		WHERE id = $1
	`, product.ID, product.Name, nullIfEmpty(product.SKU), nullIfEmpty(product.Barcode), nullIfEmpty(product.Description),
		product.UnitPriceCents, product.QuantityInStock, nullIfEmpty(product.Category), product.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	return s.GetProduct(ctx, product.ID)
}

func (s *Store) SetProductQuantity(ctx context.Context, id string, quantity int) (*domain.Product, error) {
	if quantity < 0 {
		return nil, store.ErrValidation
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET quantity_in_stock = $2, updated_at = now()
		WHERE id = $1
	`, id, quantity)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	return s.GetProduct(ctx, id)
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// CreateSale inserts the sale row, its items in input order and applies the
// guarded stock decrement per line inside one serializable transaction. A
// failed guard or an unknown product rolls the whole transaction back.
func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if len(sale.Items) == 0 {
		return nil, store.ErrValidation
	}

	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sales (id, total_cents, notes, created_at)
		VALUES ($1,$2,$3,$4)
	`, sale.ID, sale.TotalCents, nullIfEmpty(sale.Notes), sale.CreatedAt)
	if err != nil {
		return nil, err
	}

	for pos, item := range sale.Items {
		if item.Quantity < 1 {
			return nil, store.ErrValidation
		}
		itemID := item.ID
		if itemID == "" {
			itemID = xid.New("item")
		}
		subtotal := int64(item.Quantity) * item.UnitPriceCents

		_, err = tx.ExecContext(ctx, `
			INSERT INTO sale_items (id, sale_id, product_id, quantity, unit_price_cents, subtotal_cents, position)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, itemID, sale.ID, item.ProductID, item.Quantity, item.UnitPriceCents, subtotal, pos)
		if err != nil {
			if isForeignKeyViolation(err) {
				return nil, store.ErrNotFound
			}
			return nil, err
		}

		if err := decrementStock(ctx, tx, item.ProductID, item.Quantity); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return s.GetSale(ctx, sale.ID)
}

// decrementStock is the conditional stock guard. It runs against the
// caller's transaction and is a single guarded UPDATE, so two concurrent
// sales can never both pass a check against the same stale quantity.
func decrementStock(ctx context.Context, tx *sql.Tx, productID string, quantity int) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE products
		SET quantity_in_stock = quantity_in_stock - $2, updated_at = now()
		WHERE id = $1 AND quantity_in_stock >= $2
	`, productID, quantity)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 1 {
		return nil
	}

	// Guard failed: distinguish a missing product from short stock.
	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, productID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return store.ErrNotFound
	}
	return store.ErrInsufficientStock
}

func (s *Store) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	var sale domain.Sale
	var notes sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, total_cents, notes, created_at
		FROM sales
		WHERE id = $1
	`, id).Scan(&sale.ID, &sale.TotalCents, &notes, &sale.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	sale.Notes = notes.String
	sale.CreatedAt = sale.CreatedAt.UTC()

	items, err := s.listSaleItems(ctx, []string{sale.ID})
	if err != nil {
		return nil, err
	}
	sale.Items = items[sale.ID]
	if sale.Items == nil {
		sale.Items = []domain.SaleItem{}
	}
	return &sale, nil
}

func (s *Store) ListSales(ctx context.Context) ([]domain.Sale, error) {
	return s.querySales(ctx, `
		SELECT id, total_cents, notes, created_at
		FROM sales
		ORDER BY created_at DESC
	`)
}

func (s *Store) ListSalesBetween(ctx context.Context, from time.Time, to time.Time) ([]domain.Sale, error) {
	return s.querySales(ctx, `
		SELECT id, total_cents, notes, created_at
		FROM sales
		WHERE created_at >= $1 AND created_at <= $2
		ORDER BY created_at DESC
	`, from, to)
}

func (s *Store) querySales(ctx context.Context, query string, args ...any) ([]domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 64)
	ids := make([]string, 0, 64)
	for rows.Next() {
		var sale domain.Sale
		var notes sql.NullString
		if err := rows.Scan(&sale.ID, &sale.TotalCents, &notes, &sale.CreatedAt); err != nil {
			return nil, err
		}
		sale.Notes = notes.String
		sale.CreatedAt = sale.CreatedAt.UTC()
		sale.Items = []domain.SaleItem{}
		sales = append(sales, sale)
		ids = append(ids, sale.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	itemsBySale, err := s.listSaleItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range sales {
		if items, ok := itemsBySale[sales[i].ID]; ok {
			sales[i].Items = items
		}
	}
	return sales, nil
}

// listSaleItems loads items (with joined product snapshots for display) for
// the given sales, keyed by sale id and ordered by item creation.
func (s *Store) listSaleItems(ctx context.Context, saleIDs []string) (map[string][]domain.SaleItem, error) {
	result := make(map[string][]domain.SaleItem, len(saleIDs))
	if len(saleIDs) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT i.id, i.sale_id, i.product_id, i.quantity, i.unit_price_cents, i.subtotal_cents,
			p.id, p.name, p.sku, p.barcode, p.description, p.unit_price_cents, p.quantity_in_stock, p.category, p.created_at, p.updated_at
		FROM sale_items i
		LEFT JOIN products p ON p.id = i.product_id
		WHERE i.sale_id = ANY($1)
		ORDER BY i.position ASC
	`, saleIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.SaleItem
		var productID, productName sql.NullString
		var sku, barcode, description, category sql.NullString
		var priceCents sql.NullInt64
		var qty sql.NullInt64
		var createdAt, updatedAt sql.NullTime
		if err := rows.Scan(&item.ID, &item.SaleID, &item.ProductID, &item.Quantity, &item.UnitPriceCents, &item.SubtotalCents,
			&productID, &productName, &sku, &barcode, &description, &priceCents, &qty, &category, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		if productID.Valid {
			item.Product = &domain.Product{
				ID:              productID.String,
				Name:            productName.String,
				SKU:             sku.String,
				Barcode:         barcode.String,
				Description:     description.String,
				UnitPriceCents:  priceCents.Int64,
				QuantityInStock: int(qty.Int64),
				Category:        category.String,
				CreatedAt:       createdAt.Time.UTC(),
				UpdatedAt:       updatedAt.Time.UTC(),
			}
		}
		result[item.SaleID] = append(result[item.SaleID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) CountProducts(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM products`).Scan(&count)
	return count, err
}

func (s *Store) CountLowStockProducts(ctx context.Context, threshold int) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM products WHERE quantity_in_stock < $1`, threshold).Scan(&count)
	return count, err
}

func (s *Store) CountSalesSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM sales WHERE created_at >= $1`, since).Scan(&count)
	return count, err
}

func (s *Store) SumSalesTotalSince(ctx context.Context, since time.Time) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(sum(total_cents), 0) FROM sales WHERE created_at >= $1`, since).Scan(&total)
	return total, err
}

func (s *Store) ListSalePointsBetween(ctx context.Context, from time.Time, to time.Time) ([]domain.SalePoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, total_cents
		FROM sales
		WHERE created_at >= $1 AND created_at <= $2
		ORDER BY created_at ASC
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	points := make([]domain.SalePoint, 0, 128)
	for rows.Next() {
		var point domain.SalePoint
		if err := rows.Scan(&point.ID, &point.CreatedAt, &point.TotalCents); err != nil {
			return nil, err
		}
		point.CreatedAt = point.CreatedAt.UTC()
		points = append(points, point)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return points, nil
}

func (s *Store) GetAdminByUsername(ctx context.Context, username string) (*domain.AdminAccount, error) {
	var admin domain.AdminAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, created_at
		FROM admins
		WHERE username = $1
	`, username).Scan(&admin.ID, &admin.Username, &admin.PasswordHash, &admin.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	admin.CreatedAt = admin.CreatedAt.UTC()
	return &admin, nil
}

func (s *Store) CreateAdmin(ctx context.Context, admin domain.AdminAccount) error {
	if admin.Username == "" || admin.PasswordHash == "" {
		return store.ErrValidation
	}
	if admin.ID == "" {
		admin.ID = xid.New("adm")
	}
	if admin.CreatedAt.IsZero() {
		admin.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO admins (id, username, password_hash, created_at)
		VALUES ($1,$2,$3,$4)
	`, admin.ID, admin.Username, admin.PasswordHash, admin.CreatedAt)
	if isUniqueViolation(err) {
		return store.ErrConflict
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	var sku, barcode, description, category sql.NullString
	err := row.Scan(&p.ID, &p.Name, &sku, &barcode, &description, &p.UnitPriceCents, &p.QuantityInStock, &category, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return domain.Product{}, err
	}
	p.SKU = sku.String
	p.Barcode = barcode.String
	p.Description = description.String
	p.Category = category.String
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

func scanProductRow(row *sql.Row) (*domain.Product, error) {
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
