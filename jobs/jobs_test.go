package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/layerworks/layerworks/internal/inventory"
	jobmetrics "github.com/layerworks/layerworks/internal/jobs"
	"github.com/layerworks/layerworks/internal/quotes"
)

type stubQuotes struct {
	quote *quotes.Quote
	err   error
}

func (s stubQuotes) Get(context.Context, int64) (*quotes.Quote, error) {
	return s.quote, s.err
}

type capturedMail struct {
	from, to, subject, body string
}

type captureMailer struct {
	sent []capturedMail
}

func (m *captureMailer) Send(_ context.Context, from, to, subject, body string) error {
	m.sent = append(m.sent, capturedMail{from, to, subject, body})
	return nil
}

func TestQuoteNotifySendsConfirmation(t *testing.T) {
	mailer := &captureMailer{}
	job := NewQuoteNotifyJob(stubQuotes{quote: &quotes.Quote{
		ID:          12,
		ClientName:  "Ada",
		ClientEmail: "ada@example.com",
		ServiceType: "fdm",
		Total:       40.45,
		Items:       []quotes.QuoteItem{{ID: 1}},
	}}, mailer, "quotes@layerworks.local", nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewQuoteNotifyTask(12)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	require.Len(t, mailer.sent, 1)
	require.Equal(t, "ada@example.com", mailer.sent[0].to)
	require.Equal(t, "quotes@layerworks.local", mailer.sent[0].from)
	require.Contains(t, mailer.sent[0].subject, "#12")
	require.Contains(t, mailer.sent[0].body, "40.45")
}

func TestQuoteNotifySkipsRetryForMissingQuote(t *testing.T) {
	job := NewQuoteNotifyJob(stubQuotes{err: &quotes.Error{Kind: quotes.KindNotFound, Op: "get quote"}}, &captureMailer{}, "", nil, nil)
	task, err := NewQuoteNotifyTask(5)
	require.NoError(t, err)

	err = job.Handle(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)

	err = job.Handle(context.Background(), asynq.NewTask(TaskQuoteNotify, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestQuoteNotifyRetriesStorageErrors(t *testing.T) {
	boom := errors.New("db down")
	job := NewQuoteNotifyJob(stubQuotes{err: boom}, &captureMailer{}, "", nil, nil)
	task, err := NewQuoteNotifyTask(5)
	require.NoError(t, err)
	require.ErrorIs(t, job.Handle(context.Background(), task), boom)
}

type stubLowStock struct {
	products []inventory.Product
	limit    int
}

func (s *stubLowStock) LowStock(_ context.Context, limit int) ([]inventory.Product, error) {
	s.limit = limit
	return s.products, nil
}

func TestLowStockScanUsesPayloadLimit(t *testing.T) {
	lister := &stubLowStock{products: []inventory.Product{{ID: 1, SKU: "PLA-1", Stock: 0, LowStockThreshold: 3}}}
	job := NewLowStockScanJob(lister, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewLowStockScanTask(25)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 25, lister.limit)

	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskLowStockScan, nil)))
	require.Equal(t, 500, lister.limit)
}

type stubCleaner struct {
	retention time.Duration
}

func (s *stubCleaner) Cleanup(_ context.Context, olderThan time.Duration) (int64, error) {
	s.retention = olderThan
	return 3, nil
}

func TestIdempotencyCleanupAppliesRetention(t *testing.T) {
	cleaner := &stubCleaner{}
	job := NewIdempotencyCleanupJob(cleaner, 0, nil, nil)

	task, err := NewIdempotencyCleanupTask()
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 72*time.Hour, cleaner.retention)
}

func TestQuoteTaskIDIsStable(t *testing.T) {
	require.Equal(t, quoteTaskID(7), quoteTaskID(7))
	require.NotEqual(t, quoteTaskID(7), quoteTaskID(8))

	task, err := NewQuoteNotifyTask(7)
	require.NoError(t, err)
	var payload QuoteNotifyPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.Equal(t, int64(7), payload.QuoteID)
}

func TestHealthWithoutInspector(t *testing.T) {
	h := NewHandler(nil, nil)
	rr := httptest.NewRecorder()
	h.health(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"queue":"default","pending":0,"active":0,"scheduled":0,"retry":0,"archived":0}`, rr.Body.String())
}

func TestSMTPMessageHeaders(t *testing.T) {
	msg := buildMessage("quotes@layerworks.test", "ada@example.com", "We received your quote request #7", "body")
	require.Equal(t, []string{"quotes@layerworks.test"}, msg.GetHeader("From"))
	require.Equal(t, []string{"ada@example.com"}, msg.GetHeader("To"))
	require.Equal(t, []string{"We received your quote request #7"}, msg.GetHeader("Subject"))
}

func TestSMTPMailerHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewSMTPMailer("127.0.0.1", 2525, "", "", false).Send(ctx, "a@b.c", "d@e.f", "s", "b")
	require.ErrorIs(t, err, context.Canceled)
}
