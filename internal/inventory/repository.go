package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/layerworks/layerworks/internal/platform/db"
)

// Repository persists catalog products in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const productColumns = `id, sku, name, material, unit_price, stock, low_stock_threshold, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Material, &p.UnitPrice, &p.Stock, &p.LowStockThreshold, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func collectProducts(rows pgx.Rows) ([]Product, error) {
	defer rows.Close()
	products := []Product{}
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

// List returns products ordered by name.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Product, error) {
	if r == nil {
		return nil, errors.New("inventory repository not initialised")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY name ASC, id ASC LIMIT $1 OFFSET $2`, limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	return collectProducts(rows)
}

// Get loads a single product.
func (r *Repository) Get(ctx context.Context, id int64) (Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrProductNotFound
		}
		return Product{}, err
	}
	return p, nil
}

// Create inserts a product and returns the stored row.
func (r *Repository) Create(ctx context.Context, p Product) (Product, error) {
	created, err := scanProduct(r.pool.QueryRow(ctx, `INSERT INTO products (sku, name, material, unit_price, stock, low_stock_threshold, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW(),NOW())
RETURNING `+productColumns, p.SKU, p.Name, p.Material, p.UnitPrice, p.Stock, p.LowStockThreshold))
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Product{}, ErrDuplicateSKU
		}
		return Product{}, fmt.Errorf("inventory: insert product: %w", err)
	}
	return created, nil
}

// Restock atomically adds qty units and returns the updated product.
func (r *Repository) Restock(ctx context.Context, id int64, qty int) (Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, `UPDATE products SET stock = stock + $2, updated_at = NOW()
WHERE id = $1
RETURNING `+productColumns, id, qty))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrProductNotFound
		}
		if db.IsCheckViolation(err) {
			return Product{}, fmt.Errorf("%w: %w", ErrNegativeStock, err)
		}
		return Product{}, err
	}
	return p, nil
}

// Reserve runs the stock guard against the pool in its own implicit transaction.
func (r *Repository) Reserve(ctx context.Context, id int64, qty int) (Reservation, error) {
	return Decrement(ctx, r.pool, id, qty)
}

// LowStock lists products at or below their threshold, emptiest first.
func (r *Repository) LowStock(ctx context.Context, limit int) ([]Product, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products WHERE stock <= low_stock_threshold ORDER BY stock ASC, id ASC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return collectProducts(rows)
}
