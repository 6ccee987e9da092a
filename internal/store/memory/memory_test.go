package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"kasapos/backend/internal/domain"
	"kasapos/backend/internal/store"
)

func TestImportProductsOnlyIntoEmptyCatalog(t *testing.T) {
	ctx := context.Background()
	s := New()

	if err := s.ImportProducts(ctx, store.SeedCatalog()); err != nil {
		t.Fatalf("import: %v", err)
	}
	products, err := s.ListProducts(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(products) != 13 {
		t.Fatalf("expected 13 products, got %d", len(products))
	}
	if products[0].Barcode != "869001" || products[0].Name != "Ekmek (200g)" {
		t.Fatalf("unexpected first product %+v", products[0])
	}

	err = s.ImportProducts(ctx, store.SeedCatalog())
	if !errors.Is(err, store.ErrCatalogNotEmpty) {
		t.Fatalf("expected ErrCatalogNotEmpty, got %v", err)
	}
}

func TestImportRejectsInvalidProduct(t *testing.T) {
	s := New()
	err := s.ImportProducts(context.Background(), []domain.Product{{Barcode: "1", Name: "", Category: "x", Price: decimal.NewFromInt(1)}})
	if !errors.Is(err, store.ErrInvalidProduct) {
		t.Fatalf("expected ErrInvalidProduct, got %v", err)
	}
	products, _ := s.ListProducts(context.Background())
	if len(products) != 0 {
		t.Fatalf("expected nothing written, got %d products", len(products))
	}
}

func TestAppendAndListTransactionsByWindow(t *testing.T) {
	ctx := context.Background()
	s := New()
	day := time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)

	txs := []domain.Transaction{
		{ID: "tx-1", Branch: "Merkez", CreatedAt: day.Add(9 * time.Hour), Items: []domain.CartLine{{Barcode: "869001", Quantity: 1}}},
		{ID: "tx-2", Branch: "Şube 2", CreatedAt: day.Add(10 * time.Hour)},
		{ID: "tx-3", Branch: "Merkez", CreatedAt: day.Add(30 * time.Hour)},
	}
	for _, tx := range txs {
		if err := s.AppendTransaction(ctx, tx); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	// duplicate id is ignored
	if err := s.AppendTransaction(ctx, txs[0]); err != nil {
		t.Fatalf("append duplicate: %v", err)
	}

	got, err := s.ListTransactions(ctx, "Merkez", day, day.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].ID != "tx-1" {
		t.Fatalf("expected only tx-1, got %+v", got)
	}

	got[0].Items[0].Quantity = 99
	again, _ := s.ListTransactions(ctx, "", day, day.Add(24*time.Hour))
	if len(again) != 2 {
		t.Fatalf("expected 2 transactions across branches, got %d", len(again))
	}
	if again[0].Items[0].Quantity != 1 {
		t.Fatalf("stored items must not alias returned slices")
	}
}

func TestFailAppends(t *testing.T) {
	s := New()
	boom := errors.New("offline")
	s.FailAppends(boom)

	if err := s.AppendTransaction(context.Background(), domain.Transaction{ID: "tx-1"}); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}

	s.FailAppends(nil)
	if err := s.AppendTransaction(context.Background(), domain.Transaction{ID: "tx-1"}); err != nil {
		t.Fatalf("expected write to succeed, got %v", err)
	}
}
