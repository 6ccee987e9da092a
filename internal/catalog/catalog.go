package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"kasapos/backend/internal/domain"
	"kasapos/backend/internal/store"
)

var ErrProductNotFound = errors.New("product not found")

// Catalog is the till's local snapshot of the remote product collection.
// The snapshot is replaced wholesale on Load and never edited in place.
type Catalog struct {
	source store.Catalog
	logger *zap.Logger

	mu        sync.RWMutex
	products  []domain.Product
	byBarcode map[string]int
	degraded  bool
}

func New(source store.Catalog, logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{
		source:    source,
		logger:    logger.Named("catalog"),
		byBarcode: map[string]int{},
	}
}

// Load refreshes the snapshot from the source. A failed read leaves the
// catalog empty and marks it degraded; the till keeps working.
func (c *Catalog) Load(ctx context.Context) int {
	products, err := c.source.ListProducts(ctx)
	if err != nil {
		c.logger.Error("catalog read failed, continuing with empty catalog", zap.Error(err))
		c.replace(nil, true)
		return 0
	}

	for i := range products {
		products[i].Price = products[i].Price.Round(domain.MoneyPlaces)
	}
	c.replace(products, false)
	c.logger.Info("catalog loaded", zap.Int("products", len(products)))
	return len(products)
}

// Import writes the seed catalog into an empty source and reloads.
func (c *Catalog) Import(ctx context.Context) (int, error) {
	if err := c.source.ImportProducts(ctx, store.SeedCatalog()); err != nil {
		if !errors.Is(err, store.ErrCatalogNotEmpty) {
			c.logger.Error("catalog import failed", zap.Error(err))
		}
		return 0, fmt.Errorf("import catalog: %w", err)
	}
	return c.Load(ctx), nil
}

func (c *Catalog) replace(products []domain.Product, degraded bool) {
	index := make(map[string]int, len(products))
	for i, p := range products {
		if _, dup := index[p.Barcode]; !dup {
			index[p.Barcode] = i
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.products = products
	c.byBarcode = index
	c.degraded = degraded
}

// Degraded reports whether the last load failed.
func (c *Catalog) Degraded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.degraded
}

func (c *Catalog) Products() []domain.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.Product(nil), c.products...)
}

func (c *Catalog) Lookup(barcode string) (domain.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i, ok := c.byBarcode[strings.TrimSpace(barcode)]
	if !ok {
		return domain.Product{}, ErrProductNotFound
	}
	return c.products[i], nil
}

// Resolve treats input as a scanned barcode first and falls back to the
// first product whose name contains it.
func (c *Catalog) Resolve(input string) (domain.Product, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return domain.Product{}, ErrProductNotFound
	}
	if p, err := c.Lookup(input); err == nil {
		return p, nil
	}

	needle := fold(input)
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range c.products {
		if strings.Contains(fold(p.Name), needle) {
			return p, nil
		}
	}
	return domain.Product{}, ErrProductNotFound
}

// Search matches query against names and barcodes. An empty query returns everything.
func (c *Catalog) Search(query string) []domain.Product {
	query = strings.TrimSpace(query)
	if query == "" {
		return c.Products()
	}

	needle := fold(query)
	c.mu.RLock()
	defer c.mu.RUnlock()

	matches := make([]domain.Product, 0, 8)
	for _, p := range c.products {
		if strings.Contains(p.Barcode, query) || strings.Contains(fold(p.Name), needle) {
			matches = append(matches, p)
		}
	}
	return matches
}

func (c *Catalog) QuickPicks() []domain.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()

	picks := make([]domain.Product, 0, 9)
	for _, p := range c.products {
		if p.QuickPick {
			picks = append(picks, p)
		}
	}
	return picks
}

// fold lowercases with Turkish rules so "ÇAY" matches "Çay" and "I" matches "ı".
// Casers keep state, so one is built per call.
func fold(s string) string {
	return cases.Lower(language.Turkish).String(s)
}
