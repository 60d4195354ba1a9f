// Package paginate walks the listing pages of a category and hands every new
// product link to a batch runner.
package paginate

import (
	"context"
	"errors"
	"time"

	"github.com/law-makers/pricecrawl/internal/batch"
	"github.com/law-makers/pricecrawl/internal/engine"
	"github.com/law-makers/pricecrawl/internal/retry"
	"github.com/law-makers/pricecrawl/internal/urlfilter"
	urlutil "github.com/law-makers/pricecrawl/internal/utils/url"
	"github.com/rs/zerolog/log"
)

// DefaultMaxPages caps pagination when no cap is configured
const DefaultMaxPages = 100000

// Runner processes one page worth of product URLs and returns when all of
// them are done.
type Runner interface {
	Run(ctx context.Context, urls []string) (batch.Summary, error)
}

// Options configures a Paginator
type Options struct {
	MaxPages int           // Highest page number requested
	Delay    time.Duration // Pause after every listing page
	Retry    retry.Config  // MaxAttempts is the per-page failure budget
}

// CategoryResult describes how one category ended
type CategoryResult struct {
	Category string
	Pages    int // Listing pages whose links were processed
	Links    int // New product links handed to the runner
	Summary  batch.Summary
	State    State
	Err      error // Set when the category ended on failures, not exhaustion
}

// Paginator owns the session's crawl state: the listing page, the seen-URL
// set and the retry budget. It is driven by a single goroutine.
type Paginator struct {
	listing engine.Page
	filter  *urlfilter.Filter
	dedup   *urlfilter.Deduplicator
	runner  Runner
	opts    Options

	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Paginator navigating listing pages with listing
func New(listing engine.Page, filter *urlfilter.Filter, runner Runner, opts Options) *Paginator {
	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultMaxPages
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry.MaxAttempts = 3
	}
	return &Paginator{
		listing: listing,
		filter:  filter,
		dedup:   urlfilter.NewDeduplicator(),
		runner:  runner,
		opts:    opts,
		sleep:   retry.Sleep,
	}
}

// Seen returns how many distinct product URLs this session handed out
func (p *Paginator) Seen() int {
	return p.dedup.Len()
}

// Crawl walks category from page 1 until a page yields no new product links,
// the retry budget runs out, or MaxPages is reached.
func (p *Paginator) Crawl(ctx context.Context, category string) CategoryResult {
	res := CategoryResult{Category: category}
	logger := log.With().Str("category", category).Logger()

	var (
		n        = 1
		failures = 0
		state    = Fetching
		pageURL  string
		links    []string
		lastErr  error
	)

	for state != Done {
		switch state {
		case Fetching:
			if err := ctx.Err(); err != nil {
				res.Err = err
				state = Done
				break
			}
			if n > p.opts.MaxPages {
				logger.Info().Int("max_pages", p.opts.MaxPages).Msg("Page cap reached")
				state = Done
				break
			}
			u, err := urlutil.WithPage(category, n)
			if err != nil {
				res.Err = engine.NewConfigError("invalid category url", err)
				state = Done
				break
			}
			pageURL = u
			logger.Debug().Int("page", n).Str("url", pageURL).Msg("Fetching listing page")
			if err := p.listing.Navigate(ctx, pageURL); err != nil {
				lastErr = err
				state = Retrying
				break
			}
			state = Extracting

		case Extracting:
			if err := p.listing.AutoScroll(ctx); err != nil {
				// Links already rendered are still usable
				logger.Debug().Err(err).Int("page", n).Msg("Auto-scroll incomplete")
			}
			raw, err := p.listing.Links(ctx)
			if err != nil {
				lastErr = engine.NewExtractionError(pageURL, "collect links", err)
				state = Retrying
				break
			}
			links = p.filter.Narrow(raw, p.dedup)
			logger.Debug().
				Int("page", n).
				Int("anchors", len(raw)).
				Int("new", len(links)).
				Msg("Links collected")
			state = Advancing

		case Advancing:
			if len(links) == 0 {
				logger.Info().Int("page", n).Msg("No new products, category exhausted")
				state = Done
				break
			}
			sum, err := p.runner.Run(ctx, links)
			res.Summary.Add(sum)
			res.Links += len(links)
			res.Pages++
			logger.Info().
				Int("page", n).
				Int("products", len(links)).
				Int("succeeded", sum.Succeeded).
				Int("failed", sum.Failed).
				Msg("Listing page done")
			if err != nil {
				res.Err = err
				state = Done
				break
			}
			n++
			failures = 0
			if err := p.sleep(ctx, p.opts.Delay); err != nil {
				res.Err = err
				state = Done
				break
			}
			state = Fetching

		case Retrying:
			failures++
			if errors.Is(lastErr, context.Canceled) || failures >= p.opts.Retry.MaxAttempts {
				logger.Error().
					Err(lastErr).
					Int("page", n).
					Int("attempt", failures).
					Msg("Giving up on category")
				res.Err = lastErr
				state = Done
				break
			}
			backoff := p.opts.Retry.Backoff(failures - 1)
			logger.Warn().
				Err(lastErr).
				Int("page", n).
				Int("attempt", failures).
				Dur("backoff", backoff).
				Msg("Listing page failed, retrying")
			if err := p.sleep(ctx, backoff); err != nil {
				res.Err = err
				state = Done
				break
			}
			state = Fetching
		}
	}

	res.State = state
	return res
}
