// Package store persists products and their daily prices. Two backends share
// one contract: an embedded SQLite file and a PostgreSQL server.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/law-makers/pricecrawl/pkg/models"
)

// ErrNotFound is returned by lookups that match no row
var ErrNotFound = errors.New("not found")

// Store is the persistence gateway used by the crawl pipeline
type Store interface {
	// Migrate creates tables and indexes when missing.
	Migrate(ctx context.Context) error

	// SeedRetailer inserts or refreshes a retailer reference row.
	SeedRetailer(ctx context.Context, r models.Retailer) error

	// UpsertProduct inserts p or overwrites every column of the row with the
	// same ID.
	UpsertProduct(ctx context.Context, p models.Product) error

	// InsertPriceIfAbsentToday records price for today unless the product
	// already has a price today. It reports whether a row was written.
	InsertPriceIfAbsentToday(ctx context.Context, price models.Price) (bool, error)

	// Save upserts the product and conditionally inserts its price in one
	// transaction.
	Save(ctx context.Context, data *models.ProductData) (bool, error)

	GetProduct(ctx context.Context, id string) (*models.Product, error)
	LatestPrice(ctx context.Context, productID string) (*models.Price, error)

	Backend() string
	Close() error
}

// Options tunes a store
type Options struct {
	// Now is the capture clock. Defaults to time.Now.
	Now func() time.Time
	// Location decides where a calendar day starts. Defaults to UTC.
	Location *time.Location
	// MaxConns bounds the PostgreSQL pool. Ignored by SQLite.
	MaxConns int
}

func (o Options) withDefaults() Options {
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.MaxConns <= 0 {
		o.MaxConns = 4
	}
	return o
}

// IsPostgresDSN reports whether dsn addresses a PostgreSQL server
func IsPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Open connects to the backend dsn names. PostgreSQL URLs select the
// networked store; anything else is a SQLite file path.
func Open(ctx context.Context, dsn string, opts Options) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("empty database location")
	}
	if IsPostgresDSN(dsn) {
		pg, err := OpenPostgres(ctx, dsn, opts)
		if err != nil {
			return nil, err
		}
		return pg, nil
	}
	lite, err := OpenSQLite(ctx, dsn, opts)
	if err != nil {
		return nil, err
	}
	return lite, nil
}

var (
	_ Store = (*SQLite)(nil)
	_ Store = (*Postgres)(nil)
)

// stamp is the capture instant resolved to its calendar day
type stamp struct {
	at  time.Time
	day time.Time
}

func (o Options) stamp() stamp {
	now := o.Now().In(o.Location)
	y, m, d := now.Date()
	return stamp{at: now, day: time.Date(y, m, d, 0, 0, 0, 0, o.Location)}
}

// stampPrice fills the fields owned by the store
func stampPrice(p models.Price, s stamp) models.Price {
	p.ID = fmt.Sprintf("%s_%d", p.ProductID, s.at.UnixMilli())
	p.Date = s.day
	return p
}

func validateData(data *models.ProductData) error {
	if data == nil {
		return fmt.Errorf("nil product data")
	}
	if data.Product.ID == "" {
		return fmt.Errorf("product without id")
	}
	if data.Price.ProductID != "" && data.Price.ProductID != data.Product.ID {
		return fmt.Errorf("price for %q attached to product %q", data.Price.ProductID, data.Product.ID)
	}
	return nil
}
