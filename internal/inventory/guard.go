package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/layerworks/layerworks/internal/platform/db"
)

// Querier is the minimal query surface the stock guard needs. Pools and
// transactions both satisfy it, so the guard can join a caller's transaction.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const decrementStockSQL = `UPDATE products
SET stock = stock - $2, updated_at = NOW()
WHERE id = $1 AND stock >= $2
RETURNING stock`

// Decrement removes qty units from a product in one conditional statement.
// Postgres evaluates "stock >= qty" and applies the write under the row lock,
// so concurrent callers can never drive stock below zero or lose an update.
// Insufficient stock and a missing product are reported as outcomes, not errors.
func Decrement(ctx context.Context, q Querier, productID int64, qty int) (Reservation, error) {
	if qty <= 0 {
		return Reservation{}, ErrInvalidQuantity
	}
	res := Reservation{ProductID: productID, Requested: qty}

	var remaining int
	err := q.QueryRow(ctx, decrementStockSQL, productID, qty).Scan(&remaining)
	if err == nil {
		res.Outcome = OutcomeApplied
		res.Available = remaining + qty
		res.Remaining = remaining
		return res, nil
	}
	if db.IsCheckViolation(err) {
		return Reservation{}, fmt.Errorf("inventory: decrement product %d: %w: %w", productID, ErrNegativeStock, err)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Reservation{}, fmt.Errorf("inventory: decrement product %d: %w", productID, err)
	}

	var current int
	err = q.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1`, productID).Scan(&current)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		res.Outcome = OutcomeMissingProduct
		return res, nil
	case err != nil:
		return Reservation{}, fmt.Errorf("inventory: read product %d: %w", productID, err)
	}
	res.Outcome = OutcomeInsufficientStock
	res.Available = current
	res.Remaining = current
	return res, nil
}
