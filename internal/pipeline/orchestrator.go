package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/law-makers/pricecrawl/internal/batch"
	"github.com/law-makers/pricecrawl/internal/engine"
	"github.com/law-makers/pricecrawl/internal/paginate"
	"github.com/law-makers/pricecrawl/internal/reqctx"
	"github.com/law-makers/pricecrawl/internal/retailer"
	"github.com/law-makers/pricecrawl/internal/retry"
	"github.com/rs/zerolog/log"
)

// Options configures a run
type Options struct {
	MaxPages      int
	Delay         time.Duration
	MaxConcurrent int
	RetryBudget   int
	MaxBackoff    time.Duration
}

// Report summarizes a run
type Report struct {
	RunID          string
	Retailer       string
	Categories     []paginate.CategoryResult
	Summary        batch.Summary
	Seen           int
	Saved          int64
	PricesRecorded int64
	PricesSkipped  int64
	Duration       time.Duration
}

// FailedCategories counts categories that ended on errors
func (r *Report) FailedCategories() int {
	n := 0
	for _, c := range r.Categories {
		if c.Err != nil {
			n++
		}
	}
	return n
}

// Orchestrator runs every category of one retailer
type Orchestrator struct {
	renderer engine.Renderer
	scraper  retailer.Scraper
	sink     Sink
	opts     Options

	// OnResult is forwarded to the batcher
	OnResult func(batch.Result)
	// OnCategory is called when a category finishes
	OnCategory func(paginate.CategoryResult)
}

// NewOrchestrator creates an Orchestrator
func NewOrchestrator(renderer engine.Renderer, scraper retailer.Scraper, sink Sink, opts Options) *Orchestrator {
	return &Orchestrator{
		renderer: renderer,
		scraper:  scraper,
		sink:     sink,
		opts:     opts,
	}
}

// Run crawls all categories in order. Per-page and per-product failures are
// logged and counted; only startup failures and cancellation are returned.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	ctx = reqctx.WithRun(ctx)
	run := reqctx.FromContext(ctx)
	info := o.scraper.Retailer()
	report := &Report{RunID: run.RunID, Retailer: info.ID}

	if err := o.sink.SeedRetailer(ctx, info); err != nil {
		return report, err
	}

	listing, err := o.renderer.NewPage(ctx)
	if err != nil {
		return report, fmt.Errorf("open listing page: %w", err)
	}
	defer listing.Close()

	ingestor := NewIngestor(o.scraper, o.sink)
	b := batch.New(o.renderer, ingestor.Process, batch.Options{
		Workers: o.opts.MaxConcurrent,
		Delay:   o.opts.Delay,
	})
	b.OnResult = o.OnResult

	pager := paginate.New(listing, o.scraper.Filter(), b, paginate.Options{
		MaxPages: o.opts.MaxPages,
		Delay:    o.opts.Delay,
		Retry:    retry.ForDelay(o.opts.Delay, o.opts.MaxBackoff, o.opts.RetryBudget),
	})

	log.Info().
		Str("run", run.RunID).
		Str("retailer", info.ID).
		Str("engine", o.renderer.Name()).
		Int("categories", len(o.scraper.Categories())).
		Int("workers", b.Workers()).
		Msg("Crawl started")

	for _, category := range o.scraper.Categories() {
		res := pager.Crawl(ctx, category)
		report.Categories = append(report.Categories, res)
		report.Summary.Add(res.Summary)

		ev := log.Info()
		if res.Err != nil {
			ev = log.Warn().Err(res.Err)
		}
		ev.Str("run", run.RunID).
			Str("category", category).
			Int("pages", res.Pages).
			Int("products", res.Links).
			Int("failed", res.Summary.Failed).
			Msg("Category finished")

		if o.OnCategory != nil {
			o.OnCategory(res)
		}
		if err := ctx.Err(); err != nil {
			break
		}
	}

	report.Seen = pager.Seen()
	report.Saved, report.PricesRecorded, report.PricesSkipped = ingestor.Counts()
	report.Duration = time.Since(run.StartTime)

	log.Info().
		Str("run", run.RunID).
		Str("retailer", info.ID).
		Int("products", report.Summary.Attempted).
		Int("failed", report.Summary.Failed).
		Int64("prices_recorded", report.PricesRecorded).
		Dur("duration", report.Duration).
		Msg("Crawl finished")

	return report, reqctx.NewRunError(ctx, ctx.Err())
}
