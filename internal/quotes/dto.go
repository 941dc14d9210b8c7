package quotes

import "time"

type CreateQuoteRequest struct {
	ClientName   string               `json:"client_name" validate:"required,max=200"`
	ClientEmail  string               `json:"client_email" validate:"required,email,max=320"`
	ClientPhone  string               `json:"client_phone" validate:"omitempty,max=40"`
	ServiceType  string               `json:"service_type" validate:"required,max=64"`
	ShippingCost float64              `json:"shipping_cost" validate:"gte=0"`
	Notes        string               `json:"notes" validate:"max=2000"`
	Items        []CreateQuoteItemReq `json:"items" validate:"required,min=1,dive"`
}

type CreateQuoteItemReq struct {
	ProductID   *int64  `json:"product_id,omitempty" validate:"omitempty,gt=0"`
	Description string  `json:"description" validate:"required,max=500"`
	Quantity    int     `json:"quantity" validate:"required,gt=0"`
	UnitPrice   float64 `json:"unit_price" validate:"gte=0"`
}

type ListQuotesRequest struct {
	Status *Status `json:"status,omitempty"`
	Limit  int     `json:"limit" validate:"gte=0,lte=500"`
	Offset int     `json:"offset" validate:"gte=0"`
}

type SalesSummaryRequest struct {
	From time.Time
	To   time.Time
}
