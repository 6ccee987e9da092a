package postgres

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"kasapos/backend/internal/domain"
	"kasapos/backend/internal/store"
	"kasapos/backend/internal/xid"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const uniqueViolation = "23505"

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Migrate applies the embedded schema migrations.
func (s *Store) Migrate() error {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("open migration source: %w", err)
	}
	driver, err := migratepgx.WithInstance(s.db, &migratepgx.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, barcode, name, price, category, quick_pick
		FROM products
		ORDER BY barcode
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Barcode, &p.Name, &p.Price, &p.Category, &p.QuickPick); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (s *Store) ImportProducts(ctx context.Context, products []domain.Product) error {
	for _, p := range products {
		if err := store.ValidateProduct(p); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var count int64
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return store.ErrCatalogNotEmpty
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO products (id, barcode, name, price, category, quick_pick)
		VALUES ($1, $2, $3, $4, $5, $6)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range products {
		if p.ID == "" {
			p.ID = xid.New("prd")
		}
		if _, err := stmt.ExecContext(ctx, p.ID, p.Barcode, p.Name, p.Price, p.Category, p.QuickPick); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) AppendTransaction(ctx context.Context, t domain.Transaction) error {
	items, err := json.Marshal(t.Items)
	if err != nil {
		return fmt.Errorf("encode items: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO transactions (
			id, branch, cashier_name, terminal_id, payment_method, payment_provider,
			is_refund, customer_name, total_amount, items, display_time, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, t.ID, t.Branch, t.CashierName, t.TerminalID, t.Payment.Method, t.Payment.Provider,
		t.IsRefund, t.CustomerName, t.TotalAmount, items, t.DisplayTime, t.CreatedAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			// replayed record already landed
			return nil
		}
		return err
	}
	return nil
}

func (s *Store) ListTransactions(ctx context.Context, branch string, from time.Time, to time.Time) ([]domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, branch, cashier_name, terminal_id, payment_method, payment_provider,
			is_refund, customer_name, total_amount, items, display_time, created_at
		FROM transactions
		WHERE ($1 = '' OR branch = $1)
			AND created_at >= $2
			AND created_at < $3
		ORDER BY created_at
	`, branch, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.Transaction, 0, 64)
	for rows.Next() {
		var t domain.Transaction
		var items []byte
		if err := rows.Scan(
			&t.ID, &t.Branch, &t.CashierName, &t.TerminalID, &t.Payment.Method, &t.Payment.Provider,
			&t.IsRefund, &t.CustomerName, &t.TotalAmount, &items, &t.DisplayTime, &t.CreatedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(items, &t.Items); err != nil {
			return nil, fmt.Errorf("decode items of %s: %w", t.ID, err)
		}
		t.Payment.Refund = t.IsRefund
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
