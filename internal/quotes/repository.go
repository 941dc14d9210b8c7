package quotes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/layerworks/layerworks/internal/inventory"
	"github.com/layerworks/layerworks/internal/platform/db"
)

// Repository is the storage surface used by Service. Inside WithTx every call
// shares one READ COMMITTED transaction.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id int64) (*Quote, error)
	GetForUpdate(ctx context.Context, id int64) (*Quote, error)
	ListItems(ctx context.Context, quoteID int64) ([]QuoteItem, error)
	List(ctx context.Context, req ListQuotesRequest) ([]Quote, int, error)
	Create(ctx context.Context, quote Quote) (*Quote, error)
	InsertItems(ctx context.Context, quoteID int64, items []QuoteItem) ([]QuoteItem, error)
	LockProducts(ctx context.Context, ids []int64) error
	DecrementStock(ctx context.Context, productID int64, qty int) (inventory.Reservation, error)
	MarkConverted(ctx context.Context, id int64) (*Quote, error)
	MarkCancelled(ctx context.Context, id int64) (*Quote, error)
	SalesSummary(ctx context.Context, from, to time.Time) (SalesSummary, error)
}

type repository struct {
	db   db.DBTX
	pool *pgxpool.Pool
	inTx bool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	if r.inTx {
		return fn(ctx, r)
	}
	return db.WithTxIsolation(ctx, r.pool, pgx.ReadCommitted, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool, inTx: true})
	})
}

const quoteColumns = `id, client_name, client_email, client_phone, service_type, subtotal, shipping_cost, total, status, notes, created_at, updated_at, converted_at`

func scanQuote(row pgx.Row) (*Quote, error) {
	var q Quote
	var status string
	err := row.Scan(&q.ID, &q.ClientName, &q.ClientEmail, &q.ClientPhone, &q.ServiceType,
		&q.Subtotal, &q.ShippingCost, &q.Total, &status, &q.Notes, &q.CreatedAt, &q.UpdatedAt, &q.ConvertedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	q.Status = Status(status)
	return &q, nil
}

func (r *repository) Get(ctx context.Context, id int64) (*Quote, error) {
	q, err := scanQuote(r.db.QueryRow(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	items, err := r.ListItems(ctx, id)
	if err != nil {
		return nil, err
	}
	q.Items = items
	return q, nil
}

func (r *repository) GetForUpdate(ctx context.Context, id int64) (*Quote, error) {
	return scanQuote(r.db.QueryRow(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE id = $1 FOR UPDATE`, id))
}

func (r *repository) ListItems(ctx context.Context, quoteID int64) ([]QuoteItem, error) {
	rows, err := r.db.Query(ctx, `SELECT id, quote_id, product_id, description, quantity, unit_price, total_price
FROM quote_items WHERE quote_id = $1 ORDER BY id ASC`, quoteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []QuoteItem{}
	for rows.Next() {
		var item QuoteItem
		if err := rows.Scan(&item.ID, &item.QuoteID, &item.ProductID, &item.Description, &item.Quantity, &item.UnitPrice, &item.TotalPrice); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *repository) List(ctx context.Context, req ListQuotesRequest) ([]Quote, int, error) {
	where := []string{"1=1"}
	args := []any{}
	if req.Status != nil {
		args = append(args, string(*req.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM quotes WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, req.Offset)
	query := fmt.Sprintf(`SELECT %s FROM quotes WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		quoteColumns, clause, len(args)-1, len(args))
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	quotes := []Quote{}
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, 0, err
		}
		quotes = append(quotes, *q)
	}
	return quotes, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, quote Quote) (*Quote, error) {
	return scanQuote(r.db.QueryRow(ctx, `INSERT INTO quotes (client_name, client_email, client_phone, service_type, subtotal, shipping_cost, total, status, notes, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW(),NOW())
RETURNING `+quoteColumns,
		quote.ClientName, quote.ClientEmail, quote.ClientPhone, quote.ServiceType,
		quote.Subtotal, quote.ShippingCost, quote.Total, string(quote.Status), quote.Notes))
}

// InsertItems writes all items in one round trip with pgx.Batch.
func (r *repository) InsertItems(ctx context.Context, quoteID int64, items []QuoteItem) ([]QuoteItem, error) {
	batch := &pgx.Batch{}
	for _, item := range items {
		batch.Queue(`INSERT INTO quote_items (quote_id, product_id, description, quantity, unit_price, total_price)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
			quoteID, item.ProductID, item.Description, item.Quantity, item.UnitPrice, item.TotalPrice)
	}
	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	stored := make([]QuoteItem, len(items))
	for i, item := range items {
		item.QuoteID = quoteID
		if err := results.QueryRow().Scan(&item.ID); err != nil {
			return nil, err
		}
		stored[i] = item
	}
	return stored, nil
}

// LockProducts takes the product row locks in ascending id order so that
// conversions touching overlapping products queue instead of deadlocking.
func (r *repository) LockProducts(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	rows, err := r.db.Query(ctx, `SELECT id FROM products WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return err
	}
	rows.Close()
	return rows.Err()
}

func (r *repository) DecrementStock(ctx context.Context, productID int64, qty int) (inventory.Reservation, error) {
	return inventory.Decrement(ctx, r.db, productID, qty)
}

func (r *repository) MarkConverted(ctx context.Context, id int64) (*Quote, error) {
	q, err := scanQuote(r.db.QueryRow(ctx, `UPDATE quotes SET status = 'converted', converted_at = NOW(), updated_at = NOW()
WHERE id = $1 AND status = 'pending'
RETURNING `+quoteColumns, id))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrStatusChanged
	}
	return q, err
}

func (r *repository) MarkCancelled(ctx context.Context, id int64) (*Quote, error) {
	q, err := scanQuote(r.db.QueryRow(ctx, `UPDATE quotes SET status = 'cancelled', updated_at = NOW()
WHERE id = $1 AND status = 'pending'
RETURNING `+quoteColumns, id))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrStatusChanged
	}
	return q, err
}

func (r *repository) SalesSummary(ctx context.Context, from, to time.Time) (SalesSummary, error) {
	summary := SalesSummary{From: from, To: to}
	err := r.db.QueryRow(ctx, `SELECT
	COUNT(*) FILTER (WHERE status = 'converted' AND converted_at >= $1 AND converted_at < $2),
	COALESCE(SUM(total) FILTER (WHERE status = 'converted' AND converted_at >= $1 AND converted_at < $2), 0),
	COUNT(*) FILTER (WHERE status = 'pending' AND created_at >= $1 AND created_at < $2)
FROM quotes`, from, to).Scan(&summary.Converted, &summary.Revenue, &summary.Pending)
	return summary, err
}
