package store

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/pricemonitor/internal/models"
	apperrors "sjsage522/pricemonitor/pkg/errors"
)

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*PostgresStore)(nil)
)

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "price_monitor.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store { return newSQLiteStore(t) })
}

// This test requires a PostgreSQL database in TEST_POSTGRES_URL
// If it is not set, the test will be skipped
func TestPostgresStore(t *testing.T) {
	connStr := os.Getenv("TEST_POSTGRES_URL")
	if connStr == "" {
		t.Skip("TEST_POSTGRES_URL is not set, skipping test")
	}

	runStoreSuite(t, func(t *testing.T) Store {
		ctx := context.Background()
		s, err := NewPostgresStore(ctx, connStr)
		require.NoError(t, err)
		_, err = s.db.Exec(ctx, `TRUNCATE price_history, products RESTART IDENTITY`)
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func runStoreSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("append and history round trip", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		id, err := s.UpsertProduct(ctx, "https://www.amazon.com/dp/B0TEST", "Echo Dot", models.PlatformAmazon, 50)
		require.NoError(t, err)

		for _, price := range []float64{59.99, 54.99, 49.99} {
			_, err := s.AppendObservation(ctx, id, price)
			require.NoError(t, err)
		}

		history, err := s.GetHistory(ctx, id, 0)
		require.NoError(t, err)
		require.Len(t, history, 3)
		assert.Equal(t, 49.99, history[0].Price)
		assert.Equal(t, 54.99, history[1].Price)
		assert.Equal(t, 59.99, history[2].Price)
		assert.Equal(t, id, history[0].ProductID)
		assert.False(t, history[0].ObservedAt.Before(history[1].ObservedAt))
		assert.False(t, history[0].ObservedAt.IsZero())

		limited, err := s.GetHistory(ctx, id, 2)
		require.NoError(t, err)
		assert.Len(t, limited, 2)
		assert.Equal(t, 49.99, limited[0].Price)
	})

	t.Run("default history limit", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		id, err := s.UpsertProduct(ctx, "https://www.ebay.com/itm/1", "Camera", models.PlatformEbay, 10)
		require.NoError(t, err)
		for i := 0; i < DefaultHistoryLimit+5; i++ {
			_, err := s.AppendObservation(ctx, id, float64(100+i))
			require.NoError(t, err)
		}

		history, err := s.GetHistory(ctx, id, -1)
		require.NoError(t, err)
		assert.Len(t, history, DefaultHistoryLimit)
		assert.Equal(t, float64(100+DefaultHistoryLimit+4), history[0].Price)
	})

	t.Run("upsert keeps id", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		id, err := s.UpsertProduct(ctx, "https://www.amazon.com/dp/B0KEEP", "Old name", models.PlatformAmazon, 100)
		require.NoError(t, err)
		_, err = s.AppendObservation(ctx, id, 120)
		require.NoError(t, err)

		again, err := s.UpsertProduct(ctx, "https://www.amazon.com/dp/B0KEEP", "New name", models.PlatformAmazon, 90)
		require.NoError(t, err)
		assert.Equal(t, id, again)

		p, err := s.GetProduct(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "New name", p.Name)
		assert.Equal(t, 90.0, p.DesiredPrice)
		assert.Equal(t, models.PlatformAmazon, p.Platform)

		history, err := s.GetHistory(ctx, id, 0)
		require.NoError(t, err)
		assert.Len(t, history, 1)
	})

	t.Run("rejects invalid input before writing", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.UpsertProduct(ctx, "not a url", "x", models.PlatformAmazon, 10)
		assert.Equal(t, apperrors.ErrorTypeInvalidURL, apperrors.TypeOf(err))

		_, err = s.UpsertProduct(ctx, "https://www.amazon.com/dp/X", "x", models.PlatformAmazon, 0)
		assert.Equal(t, apperrors.ErrorTypeInvalidPrice, apperrors.TypeOf(err))

		products, err := s.ListProducts(ctx)
		require.NoError(t, err)
		assert.Empty(t, products)

		id, err := s.UpsertProduct(ctx, "https://www.amazon.com/dp/X", "x", models.PlatformAmazon, 10)
		require.NoError(t, err)

		for _, bad := range []float64{0, -5, math.Inf(1), math.NaN()} {
			_, err := s.AppendObservation(ctx, id, bad)
			assert.Equal(t, apperrors.ErrorTypeInvalidPrice, apperrors.TypeOf(err))
		}
		history, err := s.GetHistory(ctx, id, 0)
		require.NoError(t, err)
		assert.Empty(t, history)
	})

	t.Run("append to missing product", func(t *testing.T) {
		s := newStore(t)
		_, err := s.AppendObservation(context.Background(), 9999, 10)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrProductNotFound))
		assert.Equal(t, apperrors.ErrorTypeStoreWriteFailed, apperrors.TypeOf(err))
	})

	t.Run("get and list", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.GetProduct(ctx, 1)
		assert.ErrorIs(t, err, ErrProductNotFound)
		_, err = s.GetProductByURL(ctx, "https://nowhere.example/")
		assert.ErrorIs(t, err, ErrProductNotFound)

		first, err := s.UpsertProduct(ctx, "https://www.amazon.com/dp/A", "A", models.PlatformAmazon, 1)
		require.NoError(t, err)
		second, err := s.UpsertProduct(ctx, "https://www.ebay.com/itm/B", "B", models.PlatformEbay, 2)
		require.NoError(t, err)

		p, err := s.GetProductByURL(ctx, "https://www.ebay.com/itm/B")
		require.NoError(t, err)
		assert.Equal(t, second, p.ID)
		assert.False(t, p.CreatedAt.IsZero())

		products, err := s.ListProducts(ctx)
		require.NoError(t, err)
		require.Len(t, products, 2)
		assert.Equal(t, first, products[0].ID)
		assert.Equal(t, models.PlatformEbay, products[1].Platform)
	})

	t.Run("update", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		id, err := s.UpsertProduct(ctx, "https://www.amazon.com/dp/U", "Before", models.PlatformAmazon, 30)
		require.NoError(t, err)

		ok, err := s.UpdateProduct(ctx, id, "After", 25)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = s.UpdateDesiredPrice(ctx, id, 20)
		require.NoError(t, err)
		assert.True(t, ok)

		p, err := s.GetProduct(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "After", p.Name)
		assert.Equal(t, 20.0, p.DesiredPrice)

		ok, err = s.UpdateProduct(ctx, id+100, "Missing", 10)
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = s.UpdateDesiredPrice(ctx, id, -1)
		assert.Equal(t, apperrors.ErrorTypeInvalidPrice, apperrors.TypeOf(err))
	})

	t.Run("delete cascades history", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		id, err := s.UpsertProduct(ctx, "https://www.amazon.com/dp/D", "D", models.PlatformAmazon, 5)
		require.NoError(t, err)
		_, err = s.AppendObservation(ctx, id, 6)
		require.NoError(t, err)

		ok, err := s.DeleteProduct(ctx, id)
		require.NoError(t, err)
		assert.True(t, ok)

		history, err := s.GetHistory(ctx, id, 0)
		require.NoError(t, err)
		assert.Empty(t, history)

		ok, err = s.DeleteProduct(ctx, id)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestSQLiteTimeLayoutOrdersLexically(t *testing.T) {
	a := parseTime("2024-01-01 10:00:00.100000000")
	b := parseTime("2024-01-01 10:00:00.120000000")
	assert.True(t, a.Before(b))
	assert.Less(t, formatTime(a), formatTime(b))
	assert.True(t, parseTime("garbage").IsZero())
}
