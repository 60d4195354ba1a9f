package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/law-makers/pricecrawl/internal/engine"
	"github.com/law-makers/pricecrawl/pkg/models"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS retailers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		base_url TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		retailer_id TEXT NOT NULL REFERENCES retailers(id),
		brand TEXT,
		weight_volume REAL,
		name TEXT NOT NULL,
		image_url TEXT,
		product_url TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS prices (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL REFERENCES products(id),
		retailer_id TEXT NOT NULL,
		original_price REAL,
		discount_percentage REAL,
		discounted_price REAL,
		price_per_unit REAL,
		discount_conditions TEXT,
		date TEXT NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_prices_date ON prices (date, product_id)`,
	`CREATE INDEX IF NOT EXISTS idx_products_url ON products (product_url)`,
}

const (
	sqliteUpsertRetailer = `INSERT INTO retailers (id, name, base_url) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, base_url = excluded.base_url`

	sqliteUpsertProduct = `INSERT INTO products (id, retailer_id, brand, weight_volume, name, image_url, product_url)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			retailer_id = excluded.retailer_id,
			brand = excluded.brand,
			weight_volume = excluded.weight_volume,
			name = excluded.name,
			image_url = excluded.image_url,
			product_url = excluded.product_url`

	sqliteInsertPrice = `INSERT INTO prices (id, product_id, retailer_id, original_price, discount_percentage,
			discounted_price, price_per_unit, discount_conditions, date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date, product_id) DO NOTHING`

	sqliteSelectProduct = `SELECT id, retailer_id, COALESCE(brand, ''), weight_volume, name,
			COALESCE(image_url, ''), COALESCE(product_url, '')
		FROM products WHERE id = ?`

	sqliteSelectLatestPrice = `SELECT id, product_id, retailer_id, original_price, discount_percentage,
			discounted_price, price_per_unit, discount_conditions, date
		FROM prices WHERE product_id = ? ORDER BY date DESC LIMIT 1`
)

// SQLite is the embedded, file-backed store
type SQLite struct {
	db   *sql.DB
	path string
	opts Options
}

// OpenSQLite opens (creating if needed) the database file at path
func OpenSQLite(ctx context.Context, path string, opts Options) (*SQLite, error) {
	path = strings.TrimPrefix(path, "sqlite://")
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, engine.NewStoreError("create database directory", err)
			}
		}
	}

	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")

	db, err := sql.Open("sqlite", "file:"+path+"?"+q.Encode())
	if err != nil {
		return nil, engine.NewStoreError("open sqlite", err)
	}
	// One writer; SQLite serializes writes anyway and this avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, engine.NewStoreError("open sqlite", err)
	}

	log.Debug().Str("path", path).Msg("SQLite store opened")

	return &SQLite{db: db, path: path, opts: opts.withDefaults()}, nil
}

// Backend implements Store
func (s *SQLite) Backend() string { return "sqlite" }

// Migrate implements Store
func (s *SQLite) Migrate(ctx context.Context) error {
	for _, stmt := range sqliteSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return engine.NewStoreError("migrate", err)
		}
	}
	return nil
}

// SeedRetailer implements Store
func (s *SQLite) SeedRetailer(ctx context.Context, r models.Retailer) error {
	if _, err := s.db.ExecContext(ctx, sqliteUpsertRetailer, r.ID, r.Name, r.BaseURL); err != nil {
		return engine.NewStoreError("seed retailer "+r.ID, err)
	}
	return nil
}

// UpsertProduct implements Store
func (s *SQLite) UpsertProduct(ctx context.Context, p models.Product) error {
	return s.inTx(ctx, "upsert product "+p.ID, func(tx *sql.Tx) error {
		return sqliteUpsert(ctx, tx, p)
	})
}

// InsertPriceIfAbsentToday implements Store
func (s *SQLite) InsertPriceIfAbsentToday(ctx context.Context, price models.Price) (bool, error) {
	var inserted bool
	err := s.inTx(ctx, "insert price "+price.ProductID, func(tx *sql.Tx) error {
		var err error
		inserted, err = sqliteInsertIfAbsent(ctx, tx, stampPrice(price, s.opts.stamp()))
		return err
	})
	return inserted, err
}

// Save implements Store
func (s *SQLite) Save(ctx context.Context, data *models.ProductData) (bool, error) {
	if err := validateData(data); err != nil {
		return false, engine.NewStoreError("save", err)
	}

	price := data.Price
	price.ProductID = data.Product.ID
	if price.RetailerID == "" {
		price.RetailerID = data.Product.RetailerID
	}

	var inserted bool
	err := s.inTx(ctx, "save "+data.Product.ID, func(tx *sql.Tx) error {
		if err := sqliteUpsert(ctx, tx, data.Product); err != nil {
			return err
		}
		var err error
		inserted, err = sqliteInsertIfAbsent(ctx, tx, stampPrice(price, s.opts.stamp()))
		return err
	})
	return inserted, err
}

// GetProduct implements Store
func (s *SQLite) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var (
		p  models.Product
		wv sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, sqliteSelectProduct, id).
		Scan(&p.ID, &p.RetailerID, &p.Brand, &wv, &p.Name, &p.ImageURL, &p.ProductURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, engine.NewStoreError("get product "+id, err)
	}
	p.WeightVolume = floatPtr(wv)
	return &p, nil
}

// LatestPrice implements Store
func (s *SQLite) LatestPrice(ctx context.Context, productID string) (*models.Price, error) {
	var (
		p                   models.Price
		orig, disc, dp, ppu sql.NullFloat64
		cond                sql.NullString
		day                 string
	)
	err := s.db.QueryRowContext(ctx, sqliteSelectLatestPrice, productID).
		Scan(&p.ID, &p.ProductID, &p.RetailerID, &orig, &disc, &dp, &ppu, &cond, &day)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, engine.NewStoreError("latest price "+productID, err)
	}

	p.OriginalPrice = floatPtr(orig)
	p.DiscountPercentage = floatPtr(disc)
	p.DiscountedPrice = floatPtr(dp)
	p.PricePerUnit = floatPtr(ppu)
	if cond.Valid {
		p.DiscountConditions = &cond.String
	}
	if p.Date, err = time.ParseInLocation(time.DateOnly, day, s.opts.Location); err != nil {
		return nil, engine.NewStoreError("latest price "+productID, err)
	}
	return &p, nil
}

// Close implements Store
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) inTx(ctx context.Context, what string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return engine.NewStoreError(what, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return engine.NewStoreError(what, err)
	}
	if err := tx.Commit(); err != nil {
		return engine.NewStoreError(what, err)
	}
	return nil
}

func sqliteUpsert(ctx context.Context, tx *sql.Tx, p models.Product) error {
	_, err := tx.ExecContext(ctx, sqliteUpsertProduct,
		p.ID, p.RetailerID, p.Brand, p.WeightVolume, p.Name, p.ImageURL, p.ProductURL)
	if err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	return nil
}

func sqliteInsertIfAbsent(ctx context.Context, tx *sql.Tx, p models.Price) (bool, error) {
	res, err := tx.ExecContext(ctx, sqliteInsertPrice,
		p.ID, p.ProductID, p.RetailerID, p.OriginalPrice, p.DiscountPercentage,
		p.DiscountedPrice, p.PricePerUnit, p.DiscountConditions, p.Date.Format(time.DateOnly))
	if err != nil {
		return false, fmt.Errorf("insert price: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert price: %w", err)
	}
	return n > 0, nil
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
