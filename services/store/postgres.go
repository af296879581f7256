package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sjsage522/pricemonitor/internal/models"
	"sjsage522/pricemonitor/logger"
	apperrors "sjsage522/pricemonitor/pkg/errors"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS products (
	id BIGSERIAL PRIMARY KEY,
	url TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	platform TEXT NOT NULL,
	desired_price DOUBLE PRECISION NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS price_history (
	id BIGSERIAL PRIMARY KEY,
	product_id BIGINT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
	price DOUBLE PRECISION NOT NULL,
	observed_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_price_history_product_id ON price_history(product_id, observed_at DESC);
`

// PostgresStore implements Store on PostgreSQL
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore connects to connStr and ensures the schema exists
func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	db, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to reach database: %w", err)
	}
	if _, err := db.Exec(ctx, postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to create schema: %w", err)
	}

	logger.ForStore().Info().Msg("Postgres store ready")
	return &PostgresStore{db: db}, nil
}

// Ping checks the connection
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// UpsertProduct inserts or updates a product keyed by URL
func (s *PostgresStore) UpsertProduct(ctx context.Context, url, name string, platform models.Platform, desiredPrice float64) (int64, error) {
	if err := validateProduct(url, desiredPrice); err != nil {
		return 0, err
	}

	ts := now()
	var id int64
	err := s.db.QueryRow(ctx,
		`INSERT INTO products (url, name, platform, desired_price, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $5)
		 ON CONFLICT (url) DO UPDATE SET
		   name = EXCLUDED.name, platform = EXCLUDED.platform,
		   desired_price = EXCLUDED.desired_price, updated_at = EXCLUDED.updated_at
		 RETURNING id`,
		url, name, string(platform), desiredPrice, ts,
	).Scan(&id)
	if err != nil {
		return 0, apperrors.NewStoreWrite(url, "upsert product", err)
	}
	return id, nil
}

// AppendObservation records a price for an existing product within a single transaction
func (s *PostgresStore) AppendObservation(ctx context.Context, productID int64, price float64) (int64, error) {
	if !models.ValidPrice(price) {
		return 0, apperrors.NewInvalidPrice("", price)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, apperrors.NewStoreWrite("", "begin transaction", err)
	}
	defer tx.Rollback(ctx)

	var exists int
	err = tx.QueryRow(ctx, `SELECT 1 FROM products WHERE id = $1 FOR SHARE`, productID).Scan(&exists)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, apperrors.NewStoreWrite("", fmt.Sprintf("product %d", productID), ErrProductNotFound)
	}
	if err != nil {
		return 0, apperrors.NewStoreWrite("", "lookup product", err)
	}

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO price_history (product_id, price, observed_at) VALUES ($1, $2, $3) RETURNING id`,
		productID, price, now(),
	).Scan(&id)
	if err != nil {
		return 0, apperrors.NewStoreWrite("", "append observation", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, apperrors.NewStoreWrite("", "commit observation", err)
	}
	return id, nil
}

// GetHistory returns observations for productID, most recent first
func (s *PostgresStore) GetHistory(ctx context.Context, productID int64, limit int) ([]models.PriceObservation, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, product_id, price, observed_at FROM price_history
		 WHERE product_id = $1
		 ORDER BY observed_at DESC, id DESC
		 LIMIT $2`,
		productID, historyLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := []models.PriceObservation{}
	for rows.Next() {
		var o models.PriceObservation
		if err := rows.Scan(&o.ID, &o.ProductID, &o.Price, &o.ObservedAt); err != nil {
			return nil, err
		}
		o.ObservedAt = o.ObservedAt.UTC()
		history = append(history, o)
	}
	return history, rows.Err()
}

const postgresProductColumns = `id, url, name, platform, desired_price, created_at, updated_at`

func scanPostgresProduct(row pgx.Row) (*models.Product, error) {
	var p models.Product
	var platform string
	if err := row.Scan(&p.ID, &p.URL, &p.Name, &platform, &p.DesiredPrice, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	p.Platform = models.Platform(platform)
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

// GetProduct returns the product with id
func (s *PostgresStore) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	return scanPostgresProduct(s.db.QueryRow(ctx, `SELECT `+postgresProductColumns+` FROM products WHERE id = $1`, id))
}

// GetProductByURL returns the product stored under url
func (s *PostgresStore) GetProductByURL(ctx context.Context, url string) (*models.Product, error) {
	return scanPostgresProduct(s.db.QueryRow(ctx, `SELECT `+postgresProductColumns+` FROM products WHERE url = $1`, url))
}

// ListProducts returns every product ordered by id
func (s *PostgresStore) ListProducts(ctx context.Context) ([]models.Product, error) {
	rows, err := s.db.Query(ctx, `SELECT `+postgresProductColumns+` FROM products ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		p, err := scanPostgresProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

// DeleteProduct removes the product and its history
func (s *PostgresStore) DeleteProduct(ctx context.Context, id int64) (bool, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return false, apperrors.NewStoreWrite("", "delete product", err)
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateProduct changes the name and desired price
func (s *PostgresStore) UpdateProduct(ctx context.Context, id int64, name string, desiredPrice float64) (bool, error) {
	if !models.ValidPrice(desiredPrice) {
		return false, apperrors.NewInvalidPrice("", desiredPrice)
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE products SET name = $1, desired_price = $2, updated_at = $3 WHERE id = $4`,
		name, desiredPrice, now(), id,
	)
	if err != nil {
		return false, apperrors.NewStoreWrite("", "update product", err)
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateDesiredPrice changes only the alert threshold
func (s *PostgresStore) UpdateDesiredPrice(ctx context.Context, id int64, desiredPrice float64) (bool, error) {
	if !models.ValidPrice(desiredPrice) {
		return false, apperrors.NewInvalidPrice("", desiredPrice)
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE products SET desired_price = $1, updated_at = $2 WHERE id = $3`,
		desiredPrice, now(), id,
	)
	if err != nil {
		return false, apperrors.NewStoreWrite("", "update desired price", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Close closes the pool
func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}
