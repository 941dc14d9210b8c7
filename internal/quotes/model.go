package quotes

import (
	"time"

	"github.com/layerworks/layerworks/internal/inventory"
)

// Status is the lifecycle state of a quote. It only moves forward:
// pending to converted, or pending to cancelled.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConverted Status = "converted"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConverted, StatusCancelled:
		return true
	}
	return false
}

type Quote struct {
	ID           int64       `json:"id"`
	ClientName   string      `json:"client_name"`
	ClientEmail  string      `json:"client_email"`
	ClientPhone  string      `json:"client_phone,omitempty"`
	ServiceType  string      `json:"service_type"`
	Subtotal     float64     `json:"subtotal"`
	ShippingCost float64     `json:"shipping_cost"`
	Total        float64     `json:"total"`
	Status       Status      `json:"status"`
	Notes        string      `json:"notes,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
	ConvertedAt  *time.Time  `json:"converted_at,omitempty"`
	Items        []QuoteItem `json:"items,omitempty"`
}

type QuoteItem struct {
	ID          int64   `json:"id"`
	QuoteID     int64   `json:"quote_id"`
	ProductID   *int64  `json:"product_id,omitempty"`
	Description string  `json:"description"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	TotalPrice  float64 `json:"total_price"`
}

// ItemOutcome records what conversion did with one quote item.
type ItemOutcome string

const (
	ItemApplied                  ItemOutcome = ItemOutcome(inventory.OutcomeApplied)
	ItemSkippedInsufficientStock ItemOutcome = ItemOutcome(inventory.OutcomeInsufficientStock)
	ItemSkippedMissingProduct    ItemOutcome = ItemOutcome(inventory.OutcomeMissingProduct)
	ItemSkippedNoProduct         ItemOutcome = "skipped_no_product"
)

// ItemResult pairs a quote item with its conversion outcome.
type ItemResult struct {
	ItemID    int64       `json:"item_id"`
	ProductID *int64      `json:"product_id,omitempty"`
	Quantity  int         `json:"quantity"`
	Outcome   ItemOutcome `json:"outcome"`
	Available int         `json:"available"`
	Remaining int         `json:"remaining"`
}

// ConversionOutcome summarises a whole conversion call.
type ConversionOutcome string

const (
	OutcomeConverted        ConversionOutcome = "converted"
	OutcomeAlreadyConverted ConversionOutcome = "already_converted"
	OutcomeNothingToConvert ConversionOutcome = "nothing_to_convert"
)

// ConversionResult is returned by Service.Convert.
type ConversionResult struct {
	Quote            Quote             `json:"quote"`
	Outcome          ConversionOutcome `json:"outcome"`
	AlreadyConverted bool              `json:"already_converted"`
	Items            []ItemResult      `json:"items"`
}

// Count returns how many items ended with outcome.
func (r ConversionResult) Count(outcome ItemOutcome) int {
	n := 0
	for _, item := range r.Items {
		if item.Outcome == outcome {
			n++
		}
	}
	return n
}

// SalesSummary aggregates converted quotes in a window.
type SalesSummary struct {
	From      time.Time `json:"from"`
	To        time.Time `json:"to"`
	Converted int       `json:"converted"`
	Revenue   float64   `json:"revenue"`
	Pending   int       `json:"pending"`
}

// StockPolicy decides what conversion does when a product is short.
type StockPolicy string

const (
	// StockPolicySkip records the shortfall and keeps converting.
	StockPolicySkip StockPolicy = "skip"
	// StockPolicyReject aborts the conversion and rolls back every decrement.
	StockPolicyReject StockPolicy = "reject"
)
