package quotes

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRenderPDF(t *testing.T) {
	q := &Quote{
		ID:           12,
		ClientName:   "Zoë Müller",
		ClientEmail:  "zoe@example.com",
		ServiceType:  "sla",
		Subtotal:     30,
		ShippingCost: 4.5,
		Total:        34.5,
		Status:       StatusPending,
		Notes:        "Matte finish, ship before Friday.",
		CreatedAt:    time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		Items: []QuoteItem{
			{ID: 1, QuoteID: 12, Description: "Bracket", Quantity: 3, UnitPrice: 10, TotalPrice: 30},
		},
	}

	body, err := RenderPDF(q)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(body, []byte("%PDF-")))
	require.Greater(t, len(body), 500)

	_, err = RenderPDF(nil)
	require.Equal(t, KindInvalidInput, KindOf(err))
}
