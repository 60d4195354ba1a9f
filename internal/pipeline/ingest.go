// Package pipeline wires the crawl: categories are paginated, product links
// are fanned out to pages, and every product page ends up in the store.
package pipeline

import (
	"context"
	"sync/atomic"

	"github.com/law-makers/pricecrawl/internal/engine"
	"github.com/law-makers/pricecrawl/internal/reqctx"
	"github.com/law-makers/pricecrawl/internal/retailer"
	"github.com/law-makers/pricecrawl/pkg/models"
	"github.com/rs/zerolog/log"
)

// Sink is the part of the store the pipeline writes to
type Sink interface {
	SeedRetailer(ctx context.Context, r models.Retailer) error
	Save(ctx context.Context, data *models.ProductData) (bool, error)
}

// Ingestor handles a single product URL: load, read, store
type Ingestor struct {
	scraper retailer.Scraper
	sink    Sink

	saved   atomic.Int64
	priced  atomic.Int64
	skipped atomic.Int64
}

// NewIngestor creates an Ingestor
func NewIngestor(scraper retailer.Scraper, sink Sink) *Ingestor {
	return &Ingestor{scraper: scraper, sink: sink}
}

// Process is a batch.ProcessFunc. Errors are CrawlErrors describing which
// step failed; nothing is written unless extraction succeeded.
func (i *Ingestor) Process(ctx context.Context, page engine.Page, url string) error {
	if err := page.Navigate(ctx, url); err != nil {
		return err
	}

	data, err := i.scraper.Scrape(ctx, url, page)
	if err != nil {
		return err
	}

	inserted, err := i.sink.Save(ctx, data)
	if err != nil {
		return err
	}

	i.saved.Add(1)
	if inserted {
		i.priced.Add(1)
	} else {
		i.skipped.Add(1)
	}

	log.Debug().
		Str("run", reqctx.FromContext(ctx).RunID).
		Str("url", url).
		Str("sku", data.Product.ID).
		Bool("price_recorded", inserted).
		Msg("Product saved")

	return nil
}

// Counts returns products saved, prices recorded and prices skipped because
// the product was already priced today.
func (i *Ingestor) Counts() (saved, priced, skipped int64) {
	return i.saved.Load(), i.priced.Load(), i.skipped.Load()
}
