package ledger

import (
	"sync"

	"github.com/shopspring/decimal"

	"kasapos/backend/internal/domain"
)

// Ledger is the append-only list of transactions completed in this process.
// It outlives logouts and is lost on restart.
type Ledger struct {
	mu      sync.RWMutex
	entries []domain.Transaction
}

func New() *Ledger {
	return &Ledger{}
}

func (l *Ledger) Append(tx domain.Transaction) {
	l.mu.Lock()
	defer l.mu.Unlock()
	tx.Items = append([]domain.CartLine(nil), tx.Items...)
	l.entries = append(l.entries, tx)
}

func (l *Ledger) Entries() []domain.Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.Transaction, len(l.entries))
	for i, tx := range l.entries {
		tx.Items = append([]domain.CartLine(nil), tx.Items...)
		out[i] = tx
	}
	return out
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

func (l *Ledger) Summary() domain.DailySummary {
	return Summarize(l.Entries())
}

// Summarize buckets non-refund totals by payment method. Refunds only count
// towards RefundTotal, as a positive magnitude. NetTotal is the signed sum of
// every transaction.
func Summarize(txs []domain.Transaction) domain.DailySummary {
	s := domain.DailySummary{
		CashTotal:        decimal.Zero,
		CardTotal:        decimal.Zero,
		MealCardTotal:    decimal.Zero,
		StoreCreditTotal: decimal.Zero,
		RefundTotal:      decimal.Zero,
		NetTotal:         decimal.Zero,
	}

	for _, tx := range txs {
		s.Count++
		s.NetTotal = s.NetTotal.Add(tx.TotalAmount)

		if tx.IsRefund {
			s.RefundTotal = s.RefundTotal.Add(tx.TotalAmount.Abs())
			continue
		}
		switch tx.Payment.Method {
		case domain.PaymentCash:
			s.CashTotal = s.CashTotal.Add(tx.TotalAmount)
		case domain.PaymentCard:
			s.CardTotal = s.CardTotal.Add(tx.TotalAmount)
		case domain.PaymentMealCard:
			s.MealCardTotal = s.MealCardTotal.Add(tx.TotalAmount)
		case domain.PaymentStoreCredit:
			s.StoreCreditTotal = s.StoreCreditTotal.Add(tx.TotalAmount)
		}
	}
	return s
}
