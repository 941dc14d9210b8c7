package inventory

import (
	"errors"
	"time"
)

// Product is a sellable catalog entry with an on-hand stock count.
type Product struct {
	ID                int64     `json:"id"`
	SKU               string    `json:"sku"`
	Name              string    `json:"name"`
	Material          string    `json:"material"`
	UnitPrice         float64   `json:"unit_price"`
	Stock             int       `json:"stock"`
	LowStockThreshold int       `json:"low_stock_threshold"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// IsLow reports whether stock sits at or below the configured threshold.
func (p Product) IsLow() bool {
	return p.Stock <= p.LowStockThreshold
}

// StockOutcome describes what the stock guard did for one request.
type StockOutcome string

const (
	// OutcomeApplied means stock was decremented.
	OutcomeApplied StockOutcome = "applied"
	// OutcomeInsufficientStock means the product holds fewer units than requested; stock is unchanged.
	OutcomeInsufficientStock StockOutcome = "skipped_insufficient_stock"
	// OutcomeMissingProduct means the referenced product does not exist.
	OutcomeMissingProduct StockOutcome = "skipped_missing_product"
)

// Reservation is the result of a single conditional decrement.
type Reservation struct {
	ProductID int64        `json:"product_id"`
	Requested int          `json:"requested"`
	Available int          `json:"available"`
	Remaining int          `json:"remaining"`
	Outcome   StockOutcome `json:"outcome"`
}

// Applied reports whether the decrement took effect.
func (r Reservation) Applied() bool {
	return r.Outcome == OutcomeApplied
}

// CreateProductInput describes a new catalog product.
type CreateProductInput struct {
	SKU               string  `json:"sku" validate:"required,max=64"`
	Name              string  `json:"name" validate:"required,max=200"`
	Material          string  `json:"material" validate:"max=64"`
	UnitPrice         float64 `json:"unit_price" validate:"gte=0"`
	Stock             int     `json:"stock" validate:"gte=0"`
	LowStockThreshold int     `json:"low_stock_threshold" validate:"gte=0"`
}

// RestockInput adds units to an existing product.
type RestockInput struct {
	ProductID int64  `json:"-"`
	Qty       int    `json:"qty" validate:"gt=0"`
	Note      string `json:"note" validate:"max=500"`
	ActorID   int64  `json:"-"`
}

// ListFilter pages through the catalog.
type ListFilter struct {
	Limit  int
	Offset int
}

var (
	// ErrInvalidQuantity indicates a non-positive quantity.
	ErrInvalidQuantity = errors.New("inventory: quantity must be positive")
	// ErrProductNotFound indicates a missing product.
	ErrProductNotFound = errors.New("inventory: product not found")
	// ErrDuplicateSKU indicates a SKU collision on create.
	ErrDuplicateSKU = errors.New("inventory: sku already exists")
	// ErrNegativeStock triggered when a write would leave stock below zero.
	ErrNegativeStock = errors.New("inventory: negative stock not allowed")
)
