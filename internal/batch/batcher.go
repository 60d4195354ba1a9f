// internal/batch/batcher.go
package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/law-makers/pricecrawl/internal/engine"
	"github.com/law-makers/pricecrawl/internal/retry"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// ProcessFunc handles one URL on a page owned by the calling worker
type ProcessFunc func(ctx context.Context, page engine.Page, url string) error

// Result is reported once per attempted URL
type Result struct {
	URL string
	Err error
}

// Summary counts the outcome of one Run
type Summary struct {
	Attempted int
	Succeeded int
	Failed    int
}

// Add merges o into s
func (s *Summary) Add(o Summary) {
	s.Attempted += o.Attempted
	s.Succeeded += o.Succeeded
	s.Failed += o.Failed
}

// Options configures a Batcher
type Options struct {
	Workers int           // Pages held open at once; <= 0 auto-tunes
	Delay   time.Duration // Pause between chunks
}

// Batcher processes URLs in chunks on a fixed set of pages
type Batcher struct {
	renderer engine.Renderer
	process  ProcessFunc
	workers  int
	delay    time.Duration

	// OnResult, when set, is called after every URL. It may be called from
	// several goroutines at once.
	OnResult func(Result)

	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Batcher
func New(renderer engine.Renderer, process ProcessFunc, opts Options) *Batcher {
	workers := opts.Workers
	if workers <= 0 {
		workers = autoWorkers()
	}
	return &Batcher{
		renderer: renderer,
		process:  process,
		workers:  workers,
		delay:    opts.Delay,
		sleep:    retry.Sleep,
	}
}

// Workers returns the configured chunk size
func (b *Batcher) Workers() int {
	return b.workers
}

// Run processes urls chunk by chunk. Every URL of a chunk finishes (success
// or logged failure) before the next chunk starts. A failing URL never stops
// its siblings. The returned error is only set when no page could be opened
// or ctx ended before all chunks ran.
func (b *Batcher) Run(ctx context.Context, urls []string) (Summary, error) {
	var sum Summary
	if len(urls) == 0 {
		return sum, nil
	}

	pages, err := b.acquire(ctx, min(b.workers, len(urls)))
	if err != nil {
		return sum, err
	}
	defer func() {
		for _, p := range pages {
			if cerr := p.Close(); cerr != nil {
				log.Debug().Err(cerr).Msg("Failed to release page")
			}
		}
	}()

	n := len(pages)
	var mu sync.Mutex

	for start, chunk := 0, 0; start < len(urls); start, chunk = start+n, chunk+1 {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if start > 0 {
			if err := b.sleep(ctx, b.delay); err != nil {
				return sum, err
			}
		}

		end := min(start+n, len(urls))
		log.Debug().
			Int("chunk", chunk).
			Int("size", end-start).
			Msg("Processing chunk")

		var g errgroup.Group
		for i, u := range urls[start:end] {
			page := pages[i]
			g.Go(func() error {
				err := b.safeProcess(ctx, page, u)

				mu.Lock()
				sum.Attempted++
				if err != nil {
					sum.Failed++
				} else {
					sum.Succeeded++
				}
				mu.Unlock()

				if err != nil {
					log.Warn().Err(err).Str("url", u).Int("chunk", chunk).Msg("Product failed")
				}
				if b.OnResult != nil {
					b.OnResult(Result{URL: u, Err: err})
				}
				// Failures are counted, not propagated, so the group never
				// short-circuits.
				return nil
			})
		}
		_ = g.Wait()
	}

	return sum, nil
}

// acquire opens up to n pages. Partial success shrinks the worker count.
func (b *Batcher) acquire(ctx context.Context, n int) ([]engine.Page, error) {
	pages := make([]engine.Page, 0, n)
	var errs []error
	for i := 0; i < n; i++ {
		p, err := b.renderer.NewPage(ctx)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		pages = append(pages, p)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("open %s pages: %w", b.renderer.Name(), errors.Join(errs...))
	}
	if len(errs) > 0 {
		log.Warn().
			Int("wanted", n).
			Int("opened", len(pages)).
			Err(errors.Join(errs...)).
			Msg("Running with fewer workers")
	}
	return pages, nil
}

func (b *Batcher) safeProcess(ctx context.Context, page engine.Page, url string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic processing %s: %v", url, r)
		}
	}()
	return b.process(ctx, page, url)
}
