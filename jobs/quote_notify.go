package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/layerworks/layerworks/internal/jobs"
	"github.com/layerworks/layerworks/internal/quotes"
)

// QuoteReader loads a quote for notification.
type QuoteReader interface {
	Get(ctx context.Context, id int64) (*quotes.Quote, error)
}

// Mailer delivers a rendered message. The default implementation logs it.
type Mailer interface {
	Send(ctx context.Context, from, to, subject, body string) error
}

// QuoteNotifyJob confirms a quote submission to the client.
type QuoteNotifyJob struct {
	Quotes  QuoteReader
	Mailer  Mailer
	From    string
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewQuoteNotifyJob initialises the handler. A nil mailer logs messages instead.
func NewQuoteNotifyJob(reader QuoteReader, mailer Mailer, from string, logger *slog.Logger, metrics *jobmetrics.Metrics) *QuoteNotifyJob {
	if logger == nil {
		logger = slog.Default()
	}
	if mailer == nil {
		mailer = logMailer{logger: logger}
	}
	return &QuoteNotifyJob{Quotes: reader, Mailer: mailer, From: from, Logger: logger, Metrics: metrics}
}

// Handle executes one notification.
func (j *QuoteNotifyJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Quotes == nil {
		return errors.New("quote notify: handler not configured")
	}
	var payload QuoteNotifyPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.QuoteID <= 0 {
		return asynq.SkipRetry
	}
	tracker := j.Metrics.Track(TaskQuoteNotify)
	defer func() { err = tracker.End(err) }()

	quote, err := j.Quotes.Get(ctx, payload.QuoteID)
	if err != nil {
		if quotes.KindOf(err) == quotes.KindNotFound {
			j.Logger.Warn("quote notify: quote vanished", slog.Int64("quote_id", payload.QuoteID))
			return fmt.Errorf("quote %d: %w", payload.QuoteID, asynq.SkipRetry)
		}
		return err
	}

	subject := fmt.Sprintf("We received your quote request #%d", quote.ID)
	body := fmt.Sprintf("Hi %s,\n\nThanks for your %s request with %d item(s). Estimated total: %.2f.\nWe will be in touch shortly.\n",
		quote.ClientName, quote.ServiceType, len(quote.Items), quote.Total)
	if err := j.Mailer.Send(ctx, j.From, quote.ClientEmail, subject, body); err != nil {
		return err
	}
	j.Logger.Info("quote confirmation sent", slog.Int64("quote_id", quote.ID))
	return nil
}

type logMailer struct {
	logger *slog.Logger
}

func (m logMailer) Send(_ context.Context, from, to, subject, _ string) error {
	m.logger.Info("mail", slog.String("from", from), slog.String("to", to), slog.String("subject", subject))
	return nil
}
