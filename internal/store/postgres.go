package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/law-makers/pricecrawl/internal/engine"
	"github.com/law-makers/pricecrawl/pkg/models"
	"github.com/rs/zerolog/log"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS retailers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		base_url TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		retailer_id TEXT NOT NULL REFERENCES retailers(id),
		brand TEXT,
		weight_volume DOUBLE PRECISION,
		name TEXT NOT NULL,
		image_url TEXT,
		product_url TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS prices (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL REFERENCES products(id),
		retailer_id TEXT NOT NULL,
		original_price DOUBLE PRECISION,
		discount_percentage DOUBLE PRECISION,
		discounted_price DOUBLE PRECISION,
		price_per_unit DOUBLE PRECISION,
		discount_conditions TEXT,
		date DATE NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_prices_date ON prices (date, product_id)`,
	`CREATE INDEX IF NOT EXISTS idx_products_url ON products (product_url)`,
}

const (
	pgUpsertRetailer = `INSERT INTO retailers (id, name, base_url) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, base_url = excluded.base_url`

	pgUpsertProduct = `INSERT INTO products (id, retailer_id, brand, weight_volume, name, image_url, product_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			retailer_id = excluded.retailer_id,
			brand = excluded.brand,
			weight_volume = excluded.weight_volume,
			name = excluded.name,
			image_url = excluded.image_url,
			product_url = excluded.product_url`

	pgInsertPrice = `INSERT INTO prices (id, product_id, retailer_id, original_price, discount_percentage,
			discounted_price, price_per_unit, discount_conditions, date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (date, product_id) DO NOTHING`

	pgSelectProduct = `SELECT id, retailer_id, COALESCE(brand, ''), weight_volume, name,
			COALESCE(image_url, ''), COALESCE(product_url, '')
		FROM products WHERE id = $1`

	pgSelectLatestPrice = `SELECT id, product_id, retailer_id, original_price, discount_percentage,
			discounted_price, price_per_unit, discount_conditions, date
		FROM prices WHERE product_id = $1 ORDER BY date DESC LIMIT 1`
)

// Postgres is the networked store, reached through DATABASE_URL
type Postgres struct {
	pool *pgxpool.Pool
	opts Options
}

// OpenPostgres connects a pool to dsn and pings it
func OpenPostgres(ctx context.Context, dsn string, opts Options) (*Postgres, error) {
	opts = opts.withDefaults()

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, engine.NewConfigError("parse database url", err)
	}
	cfg.MaxConns = int32(opts.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, connectError(err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, connectError(err)
	}

	log.Debug().
		Str("host", cfg.ConnConfig.Host).
		Str("database", cfg.ConnConfig.Database).
		Int32("max_conns", cfg.MaxConns).
		Msg("PostgreSQL store opened")

	return &Postgres{pool: pool, opts: opts}, nil
}

// connectError marks a failed dial as worth another attempt
func connectError(err error) error {
	ce := engine.NewStoreError("connect postgres", err)
	ce.Retry = true
	return ce
}

// Backend implements Store
func (s *Postgres) Backend() string { return "postgres" }

// Migrate implements Store
func (s *Postgres) Migrate(ctx context.Context) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, stmt := range postgresSchema {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return engine.NewStoreError("migrate", err)
	}
	return nil
}

// SeedRetailer implements Store
func (s *Postgres) SeedRetailer(ctx context.Context, r models.Retailer) error {
	if _, err := s.pool.Exec(ctx, pgUpsertRetailer, r.ID, r.Name, r.BaseURL); err != nil {
		return engine.NewStoreError("seed retailer "+r.ID, err)
	}
	return nil
}

// UpsertProduct implements Store
func (s *Postgres) UpsertProduct(ctx context.Context, p models.Product) error {
	if err := pgUpsert(ctx, s.pool, p); err != nil {
		return engine.NewStoreError("upsert product "+p.ID, err)
	}
	return nil
}

// InsertPriceIfAbsentToday implements Store
func (s *Postgres) InsertPriceIfAbsentToday(ctx context.Context, price models.Price) (bool, error) {
	inserted, err := pgInsertIfAbsent(ctx, s.pool, stampPrice(price, s.opts.stamp()))
	if err != nil {
		return false, engine.NewStoreError("insert price "+price.ProductID, err)
	}
	return inserted, nil
}

// Save implements Store
func (s *Postgres) Save(ctx context.Context, data *models.ProductData) (bool, error) {
	if err := validateData(data); err != nil {
		return false, engine.NewStoreError("save", err)
	}

	price := data.Price
	price.ProductID = data.Product.ID
	if price.RetailerID == "" {
		price.RetailerID = data.Product.RetailerID
	}

	var inserted bool
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := pgUpsert(ctx, tx, data.Product); err != nil {
			return err
		}
		var err error
		inserted, err = pgInsertIfAbsent(ctx, tx, stampPrice(price, s.opts.stamp()))
		return err
	})
	if err != nil {
		return false, engine.NewStoreError("save "+data.Product.ID, err)
	}
	return inserted, nil
}

// GetProduct implements Store
func (s *Postgres) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var p models.Product
	err := s.pool.QueryRow(ctx, pgSelectProduct, id).
		Scan(&p.ID, &p.RetailerID, &p.Brand, &p.WeightVolume, &p.Name, &p.ImageURL, &p.ProductURL)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, engine.NewStoreError("get product "+id, err)
	}
	return &p, nil
}

// LatestPrice implements Store
func (s *Postgres) LatestPrice(ctx context.Context, productID string) (*models.Price, error) {
	var p models.Price
	err := s.pool.QueryRow(ctx, pgSelectLatestPrice, productID).
		Scan(&p.ID, &p.ProductID, &p.RetailerID, &p.OriginalPrice, &p.DiscountPercentage,
			&p.DiscountedPrice, &p.PricePerUnit, &p.DiscountConditions, &p.Date)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, engine.NewStoreError("latest price "+productID, err)
	}
	return &p, nil
}

// Close implements Store
func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}

// execer is satisfied by both the pool and a transaction
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func pgUpsert(ctx context.Context, db execer, p models.Product) error {
	_, err := db.Exec(ctx, pgUpsertProduct,
		p.ID, p.RetailerID, p.Brand, p.WeightVolume, p.Name, p.ImageURL, p.ProductURL)
	if err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	return nil
}

func pgInsertIfAbsent(ctx context.Context, db execer, p models.Price) (bool, error) {
	tag, err := db.Exec(ctx, pgInsertPrice,
		p.ID, p.ProductID, p.RetailerID, p.OriginalPrice, p.DiscountPercentage,
		p.DiscountedPrice, p.PricePerUnit, p.DiscountConditions, p.Date)
	if err != nil {
		return false, fmt.Errorf("insert price: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
