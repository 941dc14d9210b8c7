package quotes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/layerworks/layerworks/internal/inventory"
	"github.com/layerworks/layerworks/internal/platform/db"
	"github.com/layerworks/layerworks/internal/shared"
)

const idempotencyModule = "quotes.create"

// Notifier schedules the client confirmation for a new quote.
type Notifier interface {
	EnqueueQuoteNotification(ctx context.Context, quoteID int64) error
}

// AuditPort records state changes.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort deduplicates client submissions.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

// InventoryPort is told about stock movements made by conversions.
type InventoryPort interface {
	Invalidate(ctx context.Context) error
	ObserveStock(outcome inventory.StockOutcome)
}

// MetricsPort counts conversion attempts by outcome.
type MetricsPort interface {
	ObserveConversion(outcome string)
}

type Config struct {
	StockPolicy StockPolicy
}

// Dependencies are optional collaborators; nil entries are skipped.
type Dependencies struct {
	Inventory   InventoryPort
	Audit       AuditPort
	Notifier    Notifier
	Idempotency IdempotencyPort
	Metrics     MetricsPort
	Logger      *slog.Logger
}

type Service struct {
	repo     Repository
	policy   StockPolicy
	deps     Dependencies
	validate *validator.Validate
}

func NewService(repo Repository, cfg Config, deps Dependencies) *Service {
	policy := cfg.StockPolicy
	if policy != StockPolicyReject {
		policy = StockPolicySkip
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{repo: repo, policy: policy, deps: deps, validate: validator.New()}
}

// Create validates the request, prices every item and stores the quote with
// its items in one transaction.
func (s *Service) Create(ctx context.Context, req CreateQuoteRequest, idempotencyKey string) (*Quote, error) {
	const op = "create quote"
	req = normalizeRequest(req)
	if err := s.validate.Struct(req); err != nil {
		return nil, newError(KindInvalidInput, op, err)
	}
	key, err := shared.ParseIdempotencyKey(idempotencyKey)
	if err != nil {
		return nil, newError(KindInvalidInput, op, err)
	}
	if key != "" && s.deps.Idempotency != nil {
		if err := s.deps.Idempotency.CheckAndInsert(ctx, key, idempotencyModule); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return nil, newError(KindConflict, op, err)
			}
			return nil, newError(KindStorage, op, err)
		}
	}

	items, subtotal := priceItems(req.Items)
	quote := Quote{
		ClientName:   req.ClientName,
		ClientEmail:  req.ClientEmail,
		ClientPhone:  req.ClientPhone,
		ServiceType:  req.ServiceType,
		Subtotal:     subtotal,
		ShippingCost: roundCents(req.ShippingCost),
		Total:        roundCents(subtotal + req.ShippingCost),
		Status:       StatusPending,
		Notes:        req.Notes,
	}

	var created *Quote
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		q, err := repo.Create(ctx, quote)
		if err != nil {
			return newError(KindStorage, "create quote", err)
		}
		stored, err := repo.InsertItems(ctx, q.ID, items)
		if err != nil {
			return newError(KindStorage, "insert quote items", err)
		}
		q.Items = stored
		created = q
		return nil
	})
	if err != nil {
		if key != "" && s.deps.Idempotency != nil {
			_ = s.deps.Idempotency.Delete(ctx, key, idempotencyModule)
		}
		return nil, wrapStorage(op, err)
	}

	if s.deps.Notifier != nil {
		if err := s.deps.Notifier.EnqueueQuoteNotification(ctx, created.ID); err != nil {
			s.deps.Logger.Warn("quote notification not queued", slog.Int64("quote_id", created.ID), slog.Any("error", err))
		}
	}
	s.record(ctx, 0, "quote:create", created.ID, map[string]any{"total": created.Total, "items": len(created.Items)})
	return created, nil
}

// maxConvertAttempts bounds retries of a conversion aborted by a deadlock.
const maxConvertAttempts = 3

// Convert turns a pending quote into a sale and decrements stock for every
// item that references a product. It runs in one transaction holding the
// quote row lock; each decrement is a conditional update so stock never goes
// negative. Converting an already converted quote is a no-op.
func (s *Service) Convert(ctx context.Context, id int64, actorID int64) (ConversionResult, error) {
	const op = "convert quote"
	if id <= 0 {
		return ConversionResult{}, newError(KindInvalidInput, op, fmt.Errorf("invalid quote id %d", id))
	}

	var (
		result ConversionResult
		err    error
	)
	for attempt := 1; ; attempt++ {
		result, err = s.convertOnce(ctx, id)
		if !db.IsDeadlock(err) || ctx.Err() != nil || attempt == maxConvertAttempts {
			break
		}
		s.deps.Logger.Warn("quote conversion deadlocked, retrying",
			slog.Int64("quote_id", id), slog.Int("attempt", attempt))
	}
	if db.IsDeadlock(err) {
		err = newError(KindConflict, op, err)
	}
	if err != nil {
		err = wrapStorage(op, err)
		s.observeConversion("failed_" + string(KindOf(err)))
		return ConversionResult{}, err
	}

	s.observeConversion(string(result.Outcome))
	if result.Outcome == OutcomeConverted {
		s.afterConversion(ctx, actorID, result)
	}
	return result, nil
}

func (s *Service) convertOnce(ctx context.Context, id int64) (ConversionResult, error) {
	const op = "convert quote"
	var result ConversionResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		quote, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			return wrapStorage("lock quote", err)
		}
		switch quote.Status {
		case StatusPending:
		case StatusConverted:
			items, err := repo.ListItems(ctx, id)
			if err != nil {
				return newError(KindStorage, "list quote items", err)
			}
			quote.Items = items
			result = ConversionResult{Quote: *quote, Outcome: OutcomeAlreadyConverted, AlreadyConverted: true, Items: []ItemResult{}}
			return nil
		default:
			return newError(KindInvalidStatus, op, fmt.Errorf("quote %d is %s", id, quote.Status))
		}

		items, err := repo.ListItems(ctx, id)
		if err != nil {
			return newError(KindStorage, "list quote items", err)
		}
		if len(items) == 0 {
			quote.Items = items
			result = ConversionResult{Quote: *quote, Outcome: OutcomeNothingToConvert, Items: []ItemResult{}}
			return nil
		}

		if err := repo.LockProducts(ctx, productIDs(items)); err != nil {
			return newError(KindStorage, "lock products", err)
		}

		outcomes := make([]ItemResult, 0, len(items))
		for _, item := range items {
			res := ItemResult{ItemID: item.ID, ProductID: item.ProductID, Quantity: item.Quantity}
			if item.ProductID == nil {
				res.Outcome = ItemSkippedNoProduct
				outcomes = append(outcomes, res)
				continue
			}
			reservation, err := repo.DecrementStock(ctx, *item.ProductID, item.Quantity)
			if err != nil {
				return newError(KindStorage, "decrement stock", err)
			}
			res.Outcome = ItemOutcome(reservation.Outcome)
			res.Available = reservation.Available
			res.Remaining = reservation.Remaining
			if reservation.Outcome == inventory.OutcomeInsufficientStock && s.policy == StockPolicyReject {
				return newError(KindInsufficientStock, op, fmt.Errorf("product %d: requested %d, available %d",
					*item.ProductID, item.Quantity, reservation.Available))
			}
			outcomes = append(outcomes, res)
		}

		converted, err := repo.MarkConverted(ctx, id)
		if err != nil {
			if errors.Is(err, ErrStatusChanged) {
				return newError(KindConflict, "mark converted", err)
			}
			return newError(KindStorage, "mark converted", err)
		}
		converted.Items = items
		result = ConversionResult{Quote: *converted, Outcome: OutcomeConverted, Items: outcomes}
		return nil
	})
	return result, err
}

// productIDs returns the distinct referenced products in ascending order, the
// order every conversion locks them in.
func productIDs(items []QuoteItem) []int64 {
	seen := make(map[int64]struct{}, len(items))
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		if item.ProductID == nil {
			continue
		}
		if _, ok := seen[*item.ProductID]; ok {
			continue
		}
		seen[*item.ProductID] = struct{}{}
		ids = append(ids, *item.ProductID)
	}
	slices.Sort(ids)
	return ids
}

func (s *Service) afterConversion(ctx context.Context, actorID int64, result ConversionResult) {
	applied := 0
	skipped := 0
	for _, item := range result.Items {
		if s.deps.Inventory != nil && item.Outcome != ItemSkippedNoProduct {
			s.deps.Inventory.ObserveStock(inventory.StockOutcome(item.Outcome))
		}
		if item.Outcome == ItemApplied {
			applied++
		} else {
			skipped++
		}
	}
	if applied > 0 && s.deps.Inventory != nil {
		if err := s.deps.Inventory.Invalidate(ctx); err != nil {
			s.deps.Logger.Warn("catalog cache not invalidated", slog.Any("error", err))
		}
	}
	if skipped > 0 {
		s.deps.Logger.Info("quote converted with skipped items",
			slog.Int64("quote_id", result.Quote.ID),
			slog.Int("applied", applied),
			slog.Int("skipped", skipped))
	}
	s.record(ctx, actorID, "quote:convert", result.Quote.ID, map[string]any{
		"applied": applied,
		"skipped": skipped,
		"total":   result.Quote.Total,
	})
}

// Cancel moves a pending quote to cancelled.
func (s *Service) Cancel(ctx context.Context, id int64, actorID int64) (*Quote, error) {
	const op = "cancel quote"
	var cancelled *Quote
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		quote, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			return wrapStorage("lock quote", err)
		}
		if quote.Status != StatusPending {
			return newError(KindInvalidStatus, op, fmt.Errorf("quote %d is %s", id, quote.Status))
		}
		cancelled, err = repo.MarkCancelled(ctx, id)
		if err != nil {
			return newError(KindStorage, "mark cancelled", err)
		}
		return nil
	})
	if err != nil {
		return nil, wrapStorage(op, err)
	}
	s.record(ctx, actorID, "quote:cancel", id, nil)
	return cancelled, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Quote, error) {
	if id <= 0 {
		return nil, newError(KindNotFound, "get quote", ErrNotFound)
	}
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, wrapStorage("get quote", err)
	}
	return q, nil
}

func (s *Service) List(ctx context.Context, req ListQuotesRequest) ([]Quote, int, error) {
	if req.Status != nil && !req.Status.Valid() {
		return nil, 0, newError(KindInvalidInput, "list quotes", fmt.Errorf("unknown status %q", *req.Status))
	}
	if req.Limit <= 0 || req.Limit > 500 {
		req.Limit = 50
	}
	if req.Offset < 0 {
		req.Offset = 0
	}
	quotes, total, err := s.repo.List(ctx, req)
	if err != nil {
		return nil, 0, wrapStorage("list quotes", err)
	}
	return quotes, total, nil
}

// SalesSummary reports converted revenue for [from, to). Zero bounds default
// to the last 30 days.
func (s *Service) SalesSummary(ctx context.Context, req SalesSummaryRequest) (SalesSummary, error) {
	to := req.To
	if to.IsZero() {
		to = time.Now().UTC()
	}
	from := req.From
	if from.IsZero() {
		from = to.AddDate(0, 0, -30)
	}
	if !from.Before(to) {
		return SalesSummary{}, newError(KindInvalidInput, "sales summary", errors.New("from must be before to"))
	}
	summary, err := s.repo.SalesSummary(ctx, from, to)
	if err != nil {
		return SalesSummary{}, wrapStorage("sales summary", err)
	}
	summary.Revenue = roundCents(summary.Revenue)
	return summary, nil
}

func (s *Service) observeConversion(outcome string) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.ObserveConversion(outcome)
	}
}

func (s *Service) record(ctx context.Context, actorID int64, action string, quoteID int64, meta map[string]any) {
	if s.deps.Audit == nil {
		return
	}
	if err := s.deps.Audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "quote",
		EntityID: strconv.FormatInt(quoteID, 10),
		Meta:     meta,
	}); err != nil {
		s.deps.Logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

func normalizeRequest(req CreateQuoteRequest) CreateQuoteRequest {
	req.ClientName = strings.TrimSpace(req.ClientName)
	req.ClientEmail = strings.ToLower(strings.TrimSpace(req.ClientEmail))
	req.ClientPhone = strings.TrimSpace(req.ClientPhone)
	req.ServiceType = strings.TrimSpace(req.ServiceType)
	req.Notes = strings.TrimSpace(req.Notes)
	req.Items = append([]CreateQuoteItemReq(nil), req.Items...)
	for i := range req.Items {
		req.Items[i].Description = strings.TrimSpace(req.Items[i].Description)
	}
	return req
}

// priceItems computes total_price per item and the quote subtotal.
func priceItems(reqs []CreateQuoteItemReq) ([]QuoteItem, float64) {
	items := make([]QuoteItem, 0, len(reqs))
	var subtotal float64
	for _, r := range reqs {
		total := roundCents(float64(r.Quantity) * r.UnitPrice)
		items = append(items, QuoteItem{
			ProductID:   r.ProductID,
			Description: r.Description,
			Quantity:    r.Quantity,
			UnitPrice:   r.UnitPrice,
			TotalPrice:  total,
		})
		subtotal += total
	}
	return items, roundCents(subtotal)
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
