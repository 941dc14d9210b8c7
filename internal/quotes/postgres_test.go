package quotes

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/layerworks/layerworks/migrations"
)

// pgFixture runs the service against a throwaway schema on the database named
// by LAYERWORKS_TEST_PG_DSN.
type pgFixture struct {
	pool *pgxpool.Pool
	svc  *Service
}

func newPGFixture(t *testing.T, policy StockPolicy) *pgFixture {
	t.Helper()
	dsn := os.Getenv("LAYERWORKS_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("LAYERWORKS_TEST_PG_DSN not set")
	}
	ctx := context.Background()

	admin, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	schema := fmt.Sprintf("lw_test_%d", time.Now().UnixNano())
	_, err = admin.Exec(ctx, "CREATE SCHEMA "+schema)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = admin.Exec(context.Background(), "DROP SCHEMA "+schema+" CASCADE")
		admin.Close()
	})

	cfg, err := pgxpool.ParseConfig(dsn)
	require.NoError(t, err)
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	cfg.MaxConns = 8
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	ddl, err := migrations.Files.ReadFile("0001_init.sql")
	require.NoError(t, err)
	_, err = pool.Exec(ctx, string(ddl))
	require.NoError(t, err)

	return &pgFixture{
		pool: pool,
		svc:  NewService(NewRepository(pool), Config{StockPolicy: policy}, Dependencies{}),
	}
}

func (f *pgFixture) product(t *testing.T, sku string, stock int) int64 {
	t.Helper()
	var id int64
	err := f.pool.QueryRow(context.Background(),
		`INSERT INTO products (sku, name, stock) VALUES ($1, $1, $2) RETURNING id`, sku, stock).Scan(&id)
	require.NoError(t, err)
	return id
}

func (f *pgFixture) stock(t *testing.T, id int64) int {
	t.Helper()
	var stock int
	require.NoError(t, f.pool.QueryRow(context.Background(), `SELECT stock FROM products WHERE id = $1`, id).Scan(&stock))
	return stock
}

func (f *pgFixture) quote(t *testing.T, lines ...CreateQuoteItemReq) int64 {
	t.Helper()
	q, err := f.svc.Create(context.Background(), validRequest(lines...), "")
	require.NoError(t, err)
	return q.ID
}

func line(productID int64, qty int) CreateQuoteItemReq {
	return CreateQuoteItemReq{ProductID: int64Ptr(productID), Description: "spool", Quantity: qty, UnitPrice: 10}
}

func convertAll(f *pgFixture, ids []int64) ([]ConversionResult, []error) {
	var wg sync.WaitGroup
	results := make([]ConversionResult, len(ids))
	errs := make([]error, len(ids))
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id int64) {
			defer wg.Done()
			results[i], errs[i] = f.svc.Convert(context.Background(), id, 1)
		}(i, id)
	}
	wg.Wait()
	return results, errs
}

func TestPostgresConcurrentConversionsShareLastUnits(t *testing.T) {
	f := newPGFixture(t, StockPolicySkip)
	p3 := f.product(t, "P3", 5)
	ids := []int64{f.quote(t, line(p3, 3)), f.quote(t, line(p3, 3))}

	results, errs := convertAll(f, ids)

	applied, skipped := 0, 0
	for i := range ids {
		require.NoError(t, errs[i])
		applied += results[i].Count(ItemApplied)
		skipped += results[i].Count(ItemSkippedInsufficientStock)
	}
	require.Equal(t, 1, applied)
	require.Equal(t, 1, skipped)
	require.Equal(t, 2, f.stock(t, p3))
}

func TestPostgresCrossOrderedConversionsComplete(t *testing.T) {
	f := newPGFixture(t, StockPolicySkip)
	p1 := f.product(t, "P1", 100)
	p2 := f.product(t, "P2", 100)

	ids := make([]int64, 0, 20)
	for i := 0; i < 10; i++ {
		ids = append(ids, f.quote(t, line(p1, 1), line(p2, 1)))
		ids = append(ids, f.quote(t, line(p2, 1), line(p1, 1)))
	}

	results, errs := convertAll(f, ids)

	for i := range ids {
		require.NoError(t, errs[i])
		require.Equal(t, OutcomeConverted, results[i].Outcome)
		require.Equal(t, 2, results[i].Count(ItemApplied))
	}
	require.Equal(t, 80, f.stock(t, p1))
	require.Equal(t, 80, f.stock(t, p2))
}

func TestPostgresRejectPolicyRollsBack(t *testing.T) {
	f := newPGFixture(t, StockPolicyReject)
	p1 := f.product(t, "P1", 10)
	p2 := f.product(t, "P2", 1)
	id := f.quote(t, line(p1, 2), line(p2, 5))

	_, err := f.svc.Convert(context.Background(), id, 1)
	require.Equal(t, KindInsufficientStock, KindOf(err))
	require.Equal(t, 10, f.stock(t, p1))
	require.Equal(t, 1, f.stock(t, p2))

	q, err := f.svc.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, StatusPending, q.Status)
}
