package mongodb

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"kasapos/backend/internal/domain"
)

type productDocument struct {
	ID        string               `bson:"_id"`
	Barcode   string               `bson:"barcode"`
	Name      string               `bson:"name"`
	Price     primitive.Decimal128 `bson:"price"`
	Category  string               `bson:"category"`
	QuickPick bool                 `bson:"quick_pick"`
}

type lineDocument struct {
	Barcode  string               `bson:"barcode"`
	Name     string               `bson:"name"`
	Price    primitive.Decimal128 `bson:"price"`
	Category string               `bson:"category"`
	Quantity int                  `bson:"quantity"`
}

type transactionDocument struct {
	ID              string               `bson:"_id"`
	Items           []lineDocument       `bson:"items"`
	TotalAmount     primitive.Decimal128 `bson:"total_amount"`
	PaymentMethod   string               `bson:"payment_method"`
	PaymentProvider string               `bson:"payment_provider,omitempty"`
	PaymentLabel    string               `bson:"payment_label"`
	IsRefund        bool                 `bson:"is_refund"`
	CustomerName    string               `bson:"customer_name,omitempty"`
	Branch          string               `bson:"branch"`
	CashierName     string               `bson:"cashier_name"`
	TerminalID      string               `bson:"terminal_id"`
	CreatedAt       time.Time            `bson:"created_at"`
	DisplayTime     string               `bson:"display_time"`
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("convert %s to decimal128: %w", d.String(), err)
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("convert decimal128 %s: %w", v.String(), err)
	}
	return d, nil
}

func toProductDocument(p domain.Product) (productDocument, error) {
	price, err := toDecimal128(p.Price)
	if err != nil {
		return productDocument{}, err
	}
	return productDocument{
		ID:        p.ID,
		Barcode:   p.Barcode,
		Name:      p.Name,
		Price:     price,
		Category:  p.Category,
		QuickPick: p.QuickPick,
	}, nil
}

func (d productDocument) toDomain() (domain.Product, error) {
	price, err := fromDecimal128(d.Price)
	if err != nil {
		return domain.Product{}, err
	}
	return domain.Product{
		ID:        d.ID,
		Barcode:   d.Barcode,
		Name:      d.Name,
		Price:     price.Round(domain.MoneyPlaces),
		Category:  d.Category,
		QuickPick: d.QuickPick,
	}, nil
}

func toTransactionDocument(tx domain.Transaction) (transactionDocument, error) {
	total, err := toDecimal128(tx.TotalAmount)
	if err != nil {
		return transactionDocument{}, err
	}
	items := make([]lineDocument, 0, len(tx.Items))
	for _, line := range tx.Items {
		price, err := toDecimal128(line.Price)
		if err != nil {
			return transactionDocument{}, err
		}
		items = append(items, lineDocument{
			Barcode:  line.Barcode,
			Name:     line.Name,
			Price:    price,
			Category: line.Category,
			Quantity: line.Quantity,
		})
	}

	return transactionDocument{
		ID:              tx.ID,
		Items:           items,
		TotalAmount:     total,
		PaymentMethod:   tx.Payment.Method,
		PaymentProvider: tx.Payment.Provider,
		PaymentLabel:    tx.Payment.Label(),
		IsRefund:        tx.IsRefund,
		CustomerName:    tx.CustomerName,
		Branch:          tx.Branch,
		CashierName:     tx.CashierName,
		TerminalID:      tx.TerminalID,
		CreatedAt:       tx.CreatedAt.UTC(),
		DisplayTime:     tx.DisplayTime,
	}, nil
}

func (d transactionDocument) toDomain() (domain.Transaction, error) {
	total, err := fromDecimal128(d.TotalAmount)
	if err != nil {
		return domain.Transaction{}, err
	}
	items := make([]domain.CartLine, 0, len(d.Items))
	for _, line := range d.Items {
		price, err := fromDecimal128(line.Price)
		if err != nil {
			return domain.Transaction{}, err
		}
		items = append(items, domain.CartLine{
			Barcode:  line.Barcode,
			Name:     line.Name,
			Price:    price,
			Category: line.Category,
			Quantity: line.Quantity,
		})
	}

	return domain.Transaction{
		ID:           d.ID,
		Items:        items,
		TotalAmount:  total,
		Payment:      domain.PaymentType{Method: d.PaymentMethod, Provider: d.PaymentProvider, Refund: d.IsRefund},
		IsRefund:     d.IsRefund,
		CustomerName: d.CustomerName,
		Branch:       d.Branch,
		CashierName:  d.CashierName,
		TerminalID:   d.TerminalID,
		CreatedAt:    d.CreatedAt,
		DisplayTime:  d.DisplayTime,
	}, nil
}
