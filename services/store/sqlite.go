package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"sjsage522/pricemonitor/internal/models"
	"sjsage522/pricemonitor/logger"
	apperrors "sjsage522/pricemonitor/pkg/errors"
)

// sqliteTimeLayout is fixed width so text ordering matches time ordering
const sqliteTimeLayout = "2006-01-02 15:04:05.000000000"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS products (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	url TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	platform TEXT NOT NULL,
	desired_price REAL NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS price_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	product_id INTEGER NOT NULL REFERENCES products(id) ON DELETE CASCADE,
	price REAL NOT NULL,
	observed_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_price_history_product_id ON price_history(product_id, observed_at);
`

// SQLiteStore implements Store on a local SQLite file
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and creates if needed) the database at path
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps :memory: databases shared
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to create schema: %w", err)
	}

	logger.ForStore().Info().Str("path", path).Msg("SQLite store ready")
	return &SQLiteStore{db: db}, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.ParseInLocation(sqliteTimeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t
}

// UpsertProduct inserts or updates a product keyed by URL
func (s *SQLiteStore) UpsertProduct(ctx context.Context, url, name string, platform models.Platform, desiredPrice float64) (int64, error) {
	if err := validateProduct(url, desiredPrice); err != nil {
		return 0, err
	}

	ts := formatTime(now())
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO products (url, name, platform, desired_price, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(url) DO UPDATE SET
		   name = excluded.name, platform = excluded.platform,
		   desired_price = excluded.desired_price, updated_at = excluded.updated_at
		 RETURNING id`,
		url, name, string(platform), desiredPrice, ts, ts,
	).Scan(&id)
	if err != nil {
		return 0, apperrors.NewStoreWrite(url, "upsert product", err)
	}
	return id, nil
}

// AppendObservation records a price for an existing product
func (s *SQLiteStore) AppendObservation(ctx context.Context, productID int64, price float64) (int64, error) {
	if !models.ValidPrice(price) {
		return 0, apperrors.NewInvalidPrice("", price)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, apperrors.NewStoreWrite("", "begin transaction", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM products WHERE id = ?`, productID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, apperrors.NewStoreWrite("", fmt.Sprintf("product %d", productID), ErrProductNotFound)
	}
	if err != nil {
		return 0, apperrors.NewStoreWrite("", "lookup product", err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO price_history (product_id, price, observed_at) VALUES (?, ?, ?)`,
		productID, price, formatTime(now()),
	)
	if err != nil {
		return 0, apperrors.NewStoreWrite("", "append observation", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, apperrors.NewStoreWrite("", "append observation", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, apperrors.NewStoreWrite("", "commit observation", err)
	}
	return id, nil
}

// GetHistory returns observations for productID, most recent first
func (s *SQLiteStore) GetHistory(ctx context.Context, productID int64, limit int) ([]models.PriceObservation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, product_id, price, observed_at FROM price_history
		 WHERE product_id = ?
		 ORDER BY observed_at DESC, id DESC
		 LIMIT ?`,
		productID, historyLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := []models.PriceObservation{}
	for rows.Next() {
		var o models.PriceObservation
		var observedAt string
		if err := rows.Scan(&o.ID, &o.ProductID, &o.Price, &observedAt); err != nil {
			return nil, err
		}
		o.ObservedAt = parseTime(observedAt)
		history = append(history, o)
	}
	return history, rows.Err()
}

const sqliteProductColumns = `id, url, name, platform, desired_price, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteProduct(row rowScanner) (*models.Product, error) {
	var p models.Product
	var platform, createdAt, updatedAt string
	if err := row.Scan(&p.ID, &p.URL, &p.Name, &platform, &p.DesiredPrice, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	p.Platform = models.Platform(platform)
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}

// GetProduct returns the product with id
func (s *SQLiteStore) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteProductColumns+` FROM products WHERE id = ?`, id)
	p, err := scanSQLiteProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	return p, err
}

// GetProductByURL returns the product stored under url
func (s *SQLiteStore) GetProductByURL(ctx context.Context, url string) (*models.Product, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteProductColumns+` FROM products WHERE url = ?`, url)
	p, err := scanSQLiteProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	return p, err
}

// ListProducts returns every product ordered by id
func (s *SQLiteStore) ListProducts(ctx context.Context) ([]models.Product, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sqliteProductColumns+` FROM products ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		p, err := scanSQLiteProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

// DeleteProduct removes the product and, through the foreign key, its history
func (s *SQLiteStore) DeleteProduct(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return false, apperrors.NewStoreWrite("", "delete product", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// UpdateProduct changes the name and desired price
func (s *SQLiteStore) UpdateProduct(ctx context.Context, id int64, name string, desiredPrice float64) (bool, error) {
	if !models.ValidPrice(desiredPrice) {
		return false, apperrors.NewInvalidPrice("", desiredPrice)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE products SET name = ?, desired_price = ?, updated_at = ? WHERE id = ?`,
		name, desiredPrice, formatTime(now()), id,
	)
	if err != nil {
		return false, apperrors.NewStoreWrite("", "update product", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// UpdateDesiredPrice changes only the alert threshold
func (s *SQLiteStore) UpdateDesiredPrice(ctx context.Context, id int64, desiredPrice float64) (bool, error) {
	if !models.ValidPrice(desiredPrice) {
		return false, apperrors.NewInvalidPrice("", desiredPrice)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE products SET desired_price = ?, updated_at = ? WHERE id = ?`,
		desiredPrice, formatTime(now()), id,
	)
	if err != nil {
		return false, apperrors.NewStoreWrite("", "update desired price", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Ping verifies the database is reachable
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
