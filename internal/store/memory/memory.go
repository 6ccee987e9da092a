package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"kasapos/backend/internal/domain"
	"kasapos/backend/internal/store"
	"kasapos/backend/internal/xid"
)

// Store keeps the catalog and transaction log in process memory.
type Store struct {
	mu               sync.RWMutex
	products         map[string]domain.Product
	transactions     []domain.Transaction
	transactionsByID map[string]int
	appendErr        error
}

func New() *Store {
	return &Store{
		products:         make(map[string]domain.Product),
		transactions:     make([]domain.Transaction, 0, 128),
		transactionsByID: make(map[string]int),
	}
}

// NewSeeded returns a store whose catalog already holds the seed products.
func NewSeeded() *Store {
	s := New()
	for _, p := range store.SeedCatalog() {
		p.ID = xid.New("prd")
		s.products[p.Barcode] = p
	}
	return s
}

// FailAppends makes every following AppendTransaction return err.
// Passing nil restores normal writes.
func (s *Store) FailAppends(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendErr = err
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}

	slices.SortFunc(products, func(a, b domain.Product) int {
		return strings.Compare(a.Barcode, b.Barcode)
	})

	return products, nil
}

func (s *Store) ImportProducts(_ context.Context, products []domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.products) > 0 {
		return store.ErrCatalogNotEmpty
	}
	for _, p := range products {
		if err := store.ValidateProduct(p); err != nil {
			return err
		}
	}

	for _, p := range products {
		if p.ID == "" {
			p.ID = xid.New("prd")
		}
		s.products[p.Barcode] = p
	}
	return nil
}

func (s *Store) AppendTransaction(_ context.Context, tx domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.appendErr != nil {
		return s.appendErr
	}
	if tx.ID == "" {
		tx.ID = xid.New("tx")
	}
	if _, exists := s.transactionsByID[tx.ID]; exists {
		// replayed record already landed
		return nil
	}

	s.transactionsByID[tx.ID] = len(s.transactions)
	s.transactions = append(s.transactions, cloneTransaction(tx))
	return nil
}

func (s *Store) ListTransactions(_ context.Context, branch string, from time.Time, to time.Time) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Transaction, 0, len(s.transactions))
	for _, tx := range s.transactions {
		if branch != "" && tx.Branch != branch {
			continue
		}
		if tx.CreatedAt.Before(from) || !tx.CreatedAt.Before(to) {
			continue
		}
		result = append(result, cloneTransaction(tx))
	}

	slices.SortStableFunc(result, func(a, b domain.Transaction) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return result, nil
}

func cloneTransaction(src domain.Transaction) domain.Transaction {
	dup := src
	items := make([]domain.CartLine, len(src.Items))
	copy(items, src.Items)
	dup.Items = items
	return dup
}
