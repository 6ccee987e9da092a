package mongodb

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kasapos/backend/internal/domain"
)

func TestProductDocumentKeepsExactPrice(t *testing.T) {
	p := domain.Product{ID: "prd-1", Barcode: "869003", Name: "Çay (1kg)", Price: decimal.RequireFromString("180.00"), Category: "Gıda", QuickPick: true}

	doc, err := toProductDocument(p)
	require.NoError(t, err)
	back, err := doc.toDomain()
	require.NoError(t, err)

	assert.True(t, back.Price.Equal(p.Price))
	assert.Equal(t, p.Barcode, back.Barcode)
	assert.True(t, back.QuickPick)
}

func TestTransactionDocumentRoundsTripRefund(t *testing.T) {
	created := time.Date(2025, 3, 4, 12, 30, 0, 0, time.UTC)
	tx := domain.Transaction{
		ID: "tx-1",
		Items: []domain.CartLine{
			{Barcode: "869001", Name: "Ekmek (200g)", Price: decimal.RequireFromString("10.00"), Category: "Temel", Quantity: 2},
			{Barcode: "869002", Name: "Su (0.5L)", Price: decimal.RequireFromString("5.00"), Category: "İçecek", Quantity: 1},
		},
		TotalAmount: decimal.RequireFromString("-25.00"),
		Payment:     domain.PaymentType{Method: domain.PaymentCard, Refund: true},
		IsRefund:    true,
		Branch:      "Merkez",
		CashierName: "Ayşe Yılmaz",
		TerminalID:  "till-1",
		CreatedAt:   created,
		DisplayTime: "12:30:00",
	}

	doc, err := toTransactionDocument(tx)
	require.NoError(t, err)
	assert.Equal(t, "Card Refund", doc.PaymentLabel)

	back, err := doc.toDomain()
	require.NoError(t, err)
	assert.True(t, back.TotalAmount.Equal(tx.TotalAmount))
	assert.Equal(t, tx.Payment, back.Payment)
	require.Len(t, back.Items, 2)
	assert.True(t, back.Items[0].Subtotal().Equal(decimal.NewFromInt(20)))
	assert.Equal(t, created, back.CreatedAt)
}
