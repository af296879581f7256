package store

import (
	"context"
	"errors"
	"time"

	"sjsage522/pricemonitor/helpers"
	"sjsage522/pricemonitor/internal/models"
	apperrors "sjsage522/pricemonitor/pkg/errors"
)

// DefaultHistoryLimit is used when GetHistory is called with a non-positive limit
const DefaultHistoryLimit = 30

// ErrProductNotFound is returned when a product id or URL has no row
var ErrProductNotFound = errors.New("product not found")

// Store persists monitored products and their price history
type Store interface {
	// UpsertProduct inserts or updates the product keyed by URL and returns its id.
	// The id of an existing product is kept.
	UpsertProduct(ctx context.Context, url, name string, platform models.Platform, desiredPrice float64) (int64, error)

	// AppendObservation records a price for an existing product
	AppendObservation(ctx context.Context, productID int64, price float64) (int64, error)

	// GetHistory returns up to limit observations, most recent first
	GetHistory(ctx context.Context, productID int64, limit int) ([]models.PriceObservation, error)

	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	GetProductByURL(ctx context.Context, url string) (*models.Product, error)
	ListProducts(ctx context.Context) ([]models.Product, error)

	// DeleteProduct removes the product and its history; false when nothing was deleted
	DeleteProduct(ctx context.Context, id int64) (bool, error)
	UpdateProduct(ctx context.Context, id int64, name string, desiredPrice float64) (bool, error)
	UpdateDesiredPrice(ctx context.Context, id int64, desiredPrice float64) (bool, error)

	Close() error
}

func validateProduct(url string, desiredPrice float64) error {
	if !helpers.IsValidURL(url) {
		return apperrors.NewInvalidURL(url)
	}
	if !models.ValidPrice(desiredPrice) {
		return apperrors.NewInvalidPrice(url, desiredPrice)
	}
	return nil
}

func historyLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	return limit
}

func now() time.Time {
	return time.Now().UTC()
}
