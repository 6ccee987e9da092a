package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"kasapos/backend/internal/domain"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrCatalogNotEmpty = errors.New("catalog already populated")
	ErrInvalidProduct  = errors.New("invalid product")
)

// Catalog is the remote product collection.
type Catalog interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	// ImportProducts writes products in one batch. It fails with
	// ErrCatalogNotEmpty when the collection already holds products.
	ImportProducts(ctx context.Context, products []domain.Product) error
}

// TransactionSink receives completed transactions. Writes are append-only.
type TransactionSink interface {
	AppendTransaction(ctx context.Context, tx domain.Transaction) error
}

// TransactionReader lists stored transactions created in [from, to).
// An empty branch matches every branch.
type TransactionReader interface {
	ListTransactions(ctx context.Context, branch string, from time.Time, to time.Time) ([]domain.Transaction, error)
}

type Repository interface {
	Catalog
	TransactionSink
	TransactionReader
}

// ValidateProduct checks the fields every stored product must carry.
func ValidateProduct(p domain.Product) error {
	if p.Barcode == "" || p.Name == "" || p.Category == "" {
		return ErrInvalidProduct
	}
	if p.Price.IsNegative() {
		return ErrInvalidProduct
	}
	return nil
}

// SeedCatalog is the fixed product list used by the one-time catalog import.
// The first nine entries are quick picks.
func SeedCatalog() []domain.Product {
	rows := []struct {
		name     string
		price    string
		category string
	}{
		{"Ekmek (200g)", "10.00", "Temel"},
		{"Su (0.5L)", "5.00", "İçecek"},
		{"Çay (1kg)", "180.00", "Gıda"},
		{"Şeker (1kg)", "35.00", "Gıda"},
		{"Süt (1L)", "28.00", "Süt Ürünleri"},
		{"Yumurta (15li)", "65.00", "Kahvaltılık"},
		{"Sigara (X Marka)", "60.00", "Tütün"},
		{"Kola (1L)", "30.00", "İçecek"},
		{"Çikolata", "15.00", "Atıştırmalık"},
		{"Cips", "25.00", "Atıştırmalık"},
		{"Makarna", "12.00", "Gıda"},
		{"Domates Salçası", "45.00", "Gıda"},
		{"Beyaz Peynir", "120.00", "Kahvaltılık"},
	}

	products := make([]domain.Product, 0, len(rows))
	for i, row := range rows {
		products = append(products, domain.Product{
			Barcode:   fmt.Sprintf("869%03d", i+1),
			Name:      row.name,
			Price:     decimal.RequireFromString(row.price),
			Category:  row.category,
			QuickPick: i < 9,
		})
	}
	return products
}
