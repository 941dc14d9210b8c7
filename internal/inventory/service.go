package inventory

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/layerworks/layerworks/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	List(ctx context.Context, filter ListFilter) ([]Product, error)
	Get(ctx context.Context, id int64) (Product, error)
	Create(ctx context.Context, p Product) (Product, error)
	Restock(ctx context.Context, id int64, qty int) (Product, error)
	Reserve(ctx context.Context, id int64, qty int) (Reservation, error)
	LowStock(ctx context.Context, limit int) ([]Product, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// StockObserver receives the outcome of every stock guard evaluation.
type StockObserver interface {
	ObserveStock(outcome StockOutcome)
}

// Service coordinates catalog and stock operations.
type Service struct {
	repo     RepositoryPort
	cache    *CatalogCache
	audit    AuditPort
	observer StockObserver
	validate *validator.Validate
}

// NewService builds Service. cache, audit and observer may be nil.
func NewService(repo RepositoryPort, cache *CatalogCache, audit AuditPort, observer StockObserver) *Service {
	return &Service{repo: repo, cache: cache, audit: audit, observer: observer, validate: validator.New()}
}

// ListProducts returns a cached page of the catalog.
func (s *Service) ListProducts(ctx context.Context, filter ListFilter) ([]Product, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	key, err := s.cache.BuildKey(ctx, "list", strconv.Itoa(filter.Limit), strconv.Itoa(filter.Offset))
	if err != nil {
		return nil, err
	}
	var products []Product
	err = s.cache.FetchJSON(ctx, key, &products, func(ctx context.Context) (any, error) {
		return s.repo.List(ctx, filter)
	})
	if err != nil {
		return nil, fmt.Errorf("inventory: list products: %w", err)
	}
	return products, nil
}

// GetProduct loads one product, bypassing the cache so stock is current.
func (s *Service) GetProduct(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, ErrProductNotFound
	}
	return s.repo.Get(ctx, id)
}

// CreateProduct validates and stores a new product.
func (s *Service) CreateProduct(ctx context.Context, input CreateProductInput, actorID int64) (Product, error) {
	input.SKU = strings.ToUpper(strings.TrimSpace(input.SKU))
	input.Name = strings.TrimSpace(input.Name)
	input.Material = strings.TrimSpace(input.Material)
	if err := s.validate.Struct(input); err != nil {
		return Product{}, fmt.Errorf("inventory: invalid product: %w", err)
	}
	created, err := s.repo.Create(ctx, Product{
		SKU:               input.SKU,
		Name:              input.Name,
		Material:          input.Material,
		UnitPrice:         input.UnitPrice,
		Stock:             input.Stock,
		LowStockThreshold: input.LowStockThreshold,
	})
	if err != nil {
		return Product{}, err
	}
	s.afterChange(ctx, actorID, "inventory:create", created.ID, map[string]any{"sku": created.SKU, "stock": created.Stock})
	return created, nil
}

// Restock adds units to a product.
func (s *Service) Restock(ctx context.Context, input RestockInput) (Product, error) {
	if input.ProductID <= 0 {
		return Product{}, ErrProductNotFound
	}
	if input.Qty <= 0 {
		return Product{}, ErrInvalidQuantity
	}
	if err := s.validate.Struct(input); err != nil {
		return Product{}, fmt.Errorf("inventory: invalid restock: %w", err)
	}
	updated, err := s.repo.Restock(ctx, input.ProductID, input.Qty)
	if err != nil {
		return Product{}, err
	}
	s.afterChange(ctx, input.ActorID, "inventory:restock", updated.ID, map[string]any{"qty": input.Qty, "stock": updated.Stock, "note": input.Note})
	return updated, nil
}

// Reserve runs the stock guard for a single product outside of any quote.
func (s *Service) Reserve(ctx context.Context, productID int64, qty int, actorID int64) (Reservation, error) {
	if qty <= 0 {
		return Reservation{}, ErrInvalidQuantity
	}
	res, err := s.repo.Reserve(ctx, productID, qty)
	if err != nil {
		return Reservation{}, err
	}
	s.ObserveStock(res.Outcome)
	if res.Applied() {
		s.afterChange(ctx, actorID, "inventory:reserve", productID, map[string]any{"qty": qty, "stock": res.Remaining})
	}
	return res, nil
}

// LowStock lists products that need restocking.
func (s *Service) LowStock(ctx context.Context, limit int) ([]Product, error) {
	return s.repo.LowStock(ctx, limit)
}

// Invalidate drops cached catalog pages. Callers that change stock through
// another path, such as quote conversion, use it after committing.
func (s *Service) Invalidate(ctx context.Context) error {
	if s == nil {
		return nil
	}
	return s.cache.Bump(ctx)
}

// ObserveStock forwards a guard outcome to the configured observer.
func (s *Service) ObserveStock(outcome StockOutcome) {
	if s == nil || s.observer == nil {
		return
	}
	s.observer.ObserveStock(outcome)
}

func (s *Service) afterChange(ctx context.Context, actorID int64, action string, productID int64, meta map[string]any) {
	_ = s.Invalidate(ctx)
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   action,
			Entity:   "product",
			EntityID: strconv.FormatInt(productID, 10),
			Meta:     meta,
		})
	}
}

// IsValidationError reports whether err came from request validation.
func IsValidationError(err error) bool {
	var verrs validator.ValidationErrors
	return errors.As(err, &verrs) || errors.Is(err, ErrInvalidQuantity)
}
