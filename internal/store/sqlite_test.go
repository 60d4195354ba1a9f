package store

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/law-makers/pricecrawl/internal/engine"
	"github.com/law-makers/pricecrawl/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var vea = models.Retailer{ID: "VEA", Name: "Vea", BaseURL: "https://www.vea.com.ar"}

func f64(v float64) *float64 { return &v }

func sampleData(sku string, discounted float64) *models.ProductData {
	cond := "2x1"
	return &models.ProductData{
		Product: models.Product{
			ID:           sku,
			RetailerID:   vea.ID,
			Brand:        "La Serenisima",
			WeightVolume: f64(1000),
			Name:         "Leche Entera 1 L",
			ImageURL:     "https://img.example.com/" + sku + ".jpg",
			ProductURL:   "https://www.vea.com.ar/leche-" + sku + "/p",
		},
		Price: models.Price{
			ProductID:          sku,
			RetailerID:         vea.ID,
			OriginalPrice:      f64(1500),
			DiscountedPrice:    f64(discounted),
			DiscountConditions: &cond,
		},
	}
}

func openTestSQLite(t *testing.T, clock *fakeClock) *SQLite {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "products.db")
	s, err := OpenSQLite(context.Background(), path, Options{Now: clock.Now})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, s.SeedRetailer(context.Background(), vea))
	return s
}

func countPrices(t *testing.T, s *SQLite, productID string) int {
	t.Helper()
	var n int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM prices WHERE product_id = ?`, productID).Scan(&n))
	return n
}

func TestSQLite_DailyDedup(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)}
	s := openTestSQLite(t, clock)
	ctx := context.Background()

	inserted, err := s.Save(ctx, sampleData("111", 1200))
	require.NoError(t, err)
	assert.True(t, inserted)

	clock.Advance(8 * time.Hour)
	inserted, err = s.Save(ctx, sampleData("111", 999))
	require.NoError(t, err)
	assert.False(t, inserted, "second capture on the same day must be a no-op")
	assert.Equal(t, 1, countPrices(t, s, "111"))

	latest, err := s.LatestPrice(ctx, "111")
	require.NoError(t, err)
	require.NotNil(t, latest.DiscountedPrice)
	assert.Equal(t, 1200.0, *latest.DiscountedPrice, "first capture of the day is kept")

	clock.Advance(24 * time.Hour)
	inserted, err = s.InsertPriceIfAbsentToday(ctx, sampleData("111", 950).Price)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, 2, countPrices(t, s, "111"))

	latest, err = s.LatestPrice(ctx, "111")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-11", latest.Date.Format(time.DateOnly))
	assert.Equal(t, 950.0, *latest.DiscountedPrice)
	assert.Equal(t, "111_"+strconv.FormatInt(clock.Now().UnixMilli(), 10), latest.ID)
}

func TestSQLite_DayFollowsLocation(t *testing.T) {
	loc := time.FixedZone("ART", -3*60*60)
	// 01:30 UTC on the 11th is still the 10th in Buenos Aires
	clock := &fakeClock{now: time.Date(2024, 3, 11, 1, 30, 0, 0, time.UTC)}

	path := filepath.Join(t.TempDir(), "products.db")
	s, err := OpenSQLite(context.Background(), path, Options{Now: clock.Now, Location: loc})
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()
	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.SeedRetailer(ctx, vea))

	_, err = s.Save(ctx, sampleData("222", 10))
	require.NoError(t, err)

	p, err := s.LatestPrice(ctx, "222")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-10", p.Date.Format(time.DateOnly))
}

func TestSQLite_UpsertLastWriteWins(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)}
	s := openTestSQLite(t, clock)
	ctx := context.Background()

	first := sampleData("333", 100).Product
	require.NoError(t, s.UpsertProduct(ctx, first))

	second := first
	second.Name = "Leche Descremada 1 L"
	second.Brand = ""
	second.WeightVolume = nil
	require.NoError(t, s.UpsertProduct(ctx, second))

	got, err := s.GetProduct(ctx, "333")
	require.NoError(t, err)
	assert.Equal(t, "Leche Descremada 1 L", got.Name)
	assert.Equal(t, "", got.Brand)
	assert.Nil(t, got.WeightVolume)
	assert.Equal(t, first.ProductURL, got.ProductURL)
}

func TestSQLite_NotFound(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	s := openTestSQLite(t, clock)
	ctx := context.Background()

	_, err := s.GetProduct(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.LatestPrice(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_SaveIsAtomic(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	s := openTestSQLite(t, clock)
	ctx := context.Background()

	// Unknown retailer violates the products foreign key, so neither row
	// may survive.
	data := sampleData("444", 10)
	data.Product.RetailerID = "NOPE"
	data.Price.RetailerID = "NOPE"

	_, err := s.Save(ctx, data)
	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrStore))

	_, err = s.GetProduct(ctx, "444")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, countPrices(t, s, "444"))
}

func TestSQLite_ConcurrentSaves(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)}
	s := openTestSQLite(t, clock)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	inserted := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.Save(ctx, sampleData("555", 10))
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				inserted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, inserted)
	assert.Equal(t, 1, countPrices(t, s, "555"))
}

func TestSQLite_MigrateIdempotent(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	s := openTestSQLite(t, clock)
	require.NoError(t, s.Migrate(context.Background()))
}

func TestOpen_PicksBackend(t *testing.T) {
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "x.db"), Options{})
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, "sqlite", s.Backend())

	assert.True(t, IsPostgresDSN("postgres://u:p@localhost/db"))
	assert.True(t, IsPostgresDSN("postgresql://localhost/db"))
	assert.False(t, IsPostgresDSN("data/products.db"))

	_, err = Open(context.Background(), "  ", Options{})
	assert.Error(t, err)
}
