package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kasapos/backend/internal/domain"
)

func tx(amount string, method string, provider string, refund bool) domain.Transaction {
	return domain.Transaction{
		TotalAmount: decimal.RequireFromString(amount),
		Payment:     domain.PaymentType{Method: method, Provider: provider, Refund: refund},
		IsRefund:    refund,
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	assert.Equal(t, 0, s.Count)
	assert.True(t, s.NetTotal.IsZero())
	assert.True(t, s.RefundTotal.IsZero())
}

func TestSummarizeBucketsAndRefunds(t *testing.T) {
	txs := []domain.Transaction{
		tx("25.00", domain.PaymentCash, "", false),
		tx("100.00", domain.PaymentCard, "", false),
		tx("40.00", domain.PaymentMealCard, domain.MealCardSodexo, false),
		tx("60.00", domain.PaymentMealCard, domain.MealCardMultinet, false),
		tx("15.50", domain.PaymentStoreCredit, "", false),
		tx("-25.00", domain.PaymentCard, "", true),
		tx("-10.00", domain.PaymentCash, "", true),
	}

	s := Summarize(txs)
	assert.Equal(t, 7, s.Count)
	assert.True(t, s.CashTotal.Equal(dec("25")), s.CashTotal.String())
	assert.True(t, s.CardTotal.Equal(dec("100")), s.CardTotal.String())
	assert.True(t, s.MealCardTotal.Equal(dec("100")), s.MealCardTotal.String())
	assert.True(t, s.StoreCreditTotal.Equal(dec("15.5")), s.StoreCreditTotal.String())
	assert.True(t, s.RefundTotal.Equal(dec("35")), s.RefundTotal.String())

	sum := decimal.Zero
	for _, entry := range txs {
		sum = sum.Add(entry.TotalAmount)
	}
	assert.True(t, s.NetTotal.Equal(sum))
	assert.True(t, s.NetTotal.Equal(dec("205.50")), s.NetTotal.String())
}

func TestSummarizeRefundOnlyDay(t *testing.T) {
	s := Summarize([]domain.Transaction{tx("-25.00", domain.PaymentCard, "", true)})

	assert.True(t, s.RefundTotal.Equal(dec("25")))
	assert.True(t, s.CardTotal.IsZero())
	assert.True(t, s.NetTotal.Equal(dec("-25")))
}

func TestLedgerAppendIsIsolated(t *testing.T) {
	l := New()
	entry := tx("10.00", domain.PaymentCash, "", false)
	entry.Items = []domain.CartLine{{Barcode: "869001", Quantity: 1}}
	l.Append(entry)

	entry.Items[0].Quantity = 9
	got := l.Entries()
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Items[0].Quantity)

	got[0].Items[0].Quantity = 7
	assert.Equal(t, 1, l.Entries()[0].Items[0].Quantity)
	assert.Equal(t, 1, l.Len())
	assert.True(t, l.Summary().CashTotal.Equal(dec("10")))
}
