package quotes

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/layerworks/layerworks/internal/inventory"
)

// memoryStore emulates the tables touched by quotes. Transactions are
// serialized and rolled back from a snapshot on error.
type memoryStore struct {
	mu          sync.Mutex
	quotes      map[int64]Quote
	items       map[int64][]QuoteItem
	stock       map[int64]int
	nextQuoteID int64
	nextItemID  int64

	failInsertItems bool
	failDecrement   error
	decrementDelay  time.Duration
	// deadlocks makes the next n decrements fail with SQLSTATE 40P01.
	deadlocks   int
	lockedOrder [][]int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		quotes: make(map[int64]Quote),
		items:  make(map[int64][]QuoteItem),
		stock:  make(map[int64]int),
	}
}

type memoryRepo struct {
	store *memoryStore
	inTx  bool
}

func newMemoryRepo(store *memoryStore) *memoryRepo {
	return &memoryRepo{store: store}
}

type snapshot struct {
	quotes      map[int64]Quote
	items       map[int64][]QuoteItem
	stock       map[int64]int
	nextQuoteID int64
	nextItemID  int64
}

func (s *memoryStore) snapshot() snapshot {
	snap := snapshot{
		quotes:      make(map[int64]Quote, len(s.quotes)),
		items:       make(map[int64][]QuoteItem, len(s.items)),
		stock:       make(map[int64]int, len(s.stock)),
		nextQuoteID: s.nextQuoteID,
		nextItemID:  s.nextItemID,
	}
	for k, v := range s.quotes {
		snap.quotes[k] = v
	}
	for k, v := range s.items {
		snap.items[k] = append([]QuoteItem(nil), v...)
	}
	for k, v := range s.stock {
		snap.stock[k] = v
	}
	return snap
}

func (s *memoryStore) restore(snap snapshot) {
	s.quotes = snap.quotes
	s.items = snap.items
	s.stock = snap.stock
	s.nextQuoteID = snap.nextQuoteID
	s.nextItemID = snap.nextItemID
}

func (r *memoryRepo) lock() func() {
	if r.inTx {
		return func() {}
	}
	r.store.mu.Lock()
	return r.store.mu.Unlock
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	if r.inTx {
		return fn(ctx, r)
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	snap := r.store.snapshot()
	if err := fn(ctx, &memoryRepo{store: r.store, inTx: true}); err != nil {
		r.store.restore(snap)
		return err
	}
	if err := ctx.Err(); err != nil {
		r.store.restore(snap)
		return err
	}
	return nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (*Quote, error) {
	defer r.lock()()
	q, ok := r.store.quotes[id]
	if !ok {
		return nil, ErrNotFound
	}
	q.Items = append([]QuoteItem{}, r.store.items[id]...)
	return &q, nil
}

func (r *memoryRepo) GetForUpdate(ctx context.Context, id int64) (*Quote, error) {
	defer r.lock()()
	q, ok := r.store.quotes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &q, nil
}

func (r *memoryRepo) ListItems(ctx context.Context, quoteID int64) ([]QuoteItem, error) {
	defer r.lock()()
	items := append([]QuoteItem{}, r.store.items[quoteID]...)
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (r *memoryRepo) List(ctx context.Context, req ListQuotesRequest) ([]Quote, int, error) {
	defer r.lock()()
	out := []Quote{}
	for _, q := range r.store.quotes {
		if req.Status != nil && q.Status != *req.Status {
			continue
		}
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	total := len(out)
	if req.Offset >= len(out) {
		return []Quote{}, total, nil
	}
	out = out[req.Offset:]
	if req.Limit > 0 && req.Limit < len(out) {
		out = out[:req.Limit]
	}
	return out, total, nil
}

func (r *memoryRepo) Create(ctx context.Context, quote Quote) (*Quote, error) {
	defer r.lock()()
	r.store.nextQuoteID++
	quote.ID = r.store.nextQuoteID
	now := time.Now().UTC()
	quote.CreatedAt, quote.UpdatedAt = now, now
	r.store.quotes[quote.ID] = quote
	return &quote, nil
}

func (r *memoryRepo) InsertItems(ctx context.Context, quoteID int64, items []QuoteItem) ([]QuoteItem, error) {
	defer r.lock()()
	if r.store.failInsertItems {
		return nil, errors.New("insert rejected")
	}
	if _, ok := r.store.quotes[quoteID]; !ok {
		return nil, errors.New("foreign key violation")
	}
	stored := make([]QuoteItem, len(items))
	for i, item := range items {
		r.store.nextItemID++
		item.ID = r.store.nextItemID
		item.QuoteID = quoteID
		stored[i] = item
	}
	r.store.items[quoteID] = append(r.store.items[quoteID], stored...)
	return stored, nil
}

func (r *memoryRepo) LockProducts(ctx context.Context, ids []int64) error {
	defer r.lock()()
	r.store.lockedOrder = append(r.store.lockedOrder, append([]int64(nil), ids...))
	return nil
}

func (r *memoryRepo) DecrementStock(ctx context.Context, productID int64, qty int) (inventory.Reservation, error) {
	defer r.lock()()
	if r.store.failDecrement != nil {
		return inventory.Reservation{}, r.store.failDecrement
	}
	if r.store.deadlocks > 0 {
		r.store.deadlocks--
		return inventory.Reservation{}, fmt.Errorf("inventory: decrement product %d: %w", productID,
			&pgconn.PgError{Code: "40P01", Message: "deadlock detected"})
	}
	if r.store.decrementDelay > 0 {
		time.Sleep(r.store.decrementDelay)
	}
	res := inventory.Reservation{ProductID: productID, Requested: qty}
	current, ok := r.store.stock[productID]
	if !ok {
		res.Outcome = inventory.OutcomeMissingProduct
		return res, nil
	}
	if current < qty {
		res.Outcome = inventory.OutcomeInsufficientStock
		res.Available, res.Remaining = current, current
		return res, nil
	}
	r.store.stock[productID] = current - qty
	res.Outcome = inventory.OutcomeApplied
	res.Available, res.Remaining = current, current-qty
	return res, nil
}

func (r *memoryRepo) setStatus(id int64, status Status) (*Quote, error) {
	q, ok := r.store.quotes[id]
	if !ok || q.Status != StatusPending {
		return nil, ErrStatusChanged
	}
	now := time.Now().UTC()
	q.Status = status
	q.UpdatedAt = now
	if status == StatusConverted {
		q.ConvertedAt = &now
	}
	r.store.quotes[id] = q
	return &q, nil
}

func (r *memoryRepo) MarkConverted(ctx context.Context, id int64) (*Quote, error) {
	defer r.lock()()
	return r.setStatus(id, StatusConverted)
}

func (r *memoryRepo) MarkCancelled(ctx context.Context, id int64) (*Quote, error) {
	defer r.lock()()
	return r.setStatus(id, StatusCancelled)
}

func (r *memoryRepo) SalesSummary(ctx context.Context, from, to time.Time) (SalesSummary, error) {
	defer r.lock()()
	summary := SalesSummary{From: from, To: to}
	for _, q := range r.store.quotes {
		switch {
		case q.Status == StatusConverted && q.ConvertedAt != nil && !q.ConvertedAt.Before(from) && q.ConvertedAt.Before(to):
			summary.Converted++
			summary.Revenue += q.Total
		case q.Status == StatusPending && !q.CreatedAt.Before(from) && q.CreatedAt.Before(to):
			summary.Pending++
		}
	}
	return summary, nil
}

func (s *memoryStore) stockOf(productID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stock[productID]
}

func (s *memoryStore) quoteCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.quotes)
}
