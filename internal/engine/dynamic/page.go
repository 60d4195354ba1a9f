package dynamic

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/law-makers/pricecrawl/internal/engine"
	"github.com/law-makers/pricecrawl/internal/engine/dom"
	"github.com/law-makers/pricecrawl/pkg/models"
	"github.com/rs/zerolog/log"
)

const (
	scrollPause     = 250 * time.Millisecond
	maxScrollRounds = 60
)

const scrollStep = `(() => {
	window.scrollBy(0, window.innerHeight);
	return document.body ? document.body.scrollHeight : 0;
})()`

const anchorHrefs = `Array.from(document.querySelectorAll('a[href]')).map(a => a.href)`

type page struct {
	r  *Renderer
	bc *BrowserContext

	url    string
	closed sync.Once
}

// run executes actions on the tab bounded by the navigation timeout. The
// caller's ctx can still cut it short.
func (p *page) run(ctx context.Context, actions ...chromedp.Action) error {
	tctx, cancel := context.WithTimeout(p.bc.Ctx, p.r.navTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(tctx, actions...)
}

func (p *page) Navigate(ctx context.Context, url string) error {
	if err := p.r.limiter.Wait(ctx, url); err != nil {
		return engine.NewNavigationError(url, err)
	}

	start := time.Now()
	p.bc.expect(url)

	actions := []chromedp.Action{network.Enable()}
	if len(p.r.headers) > 0 {
		actions = append(actions, network.SetExtraHTTPHeaders(p.r.headers))
	}
	actions = append(actions,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)

	err := p.run(ctx, actions...)
	if err != nil {
		return engine.NewNavigationError(url, err)
	}
	status := p.bc.Status()
	if status >= 500 {
		return engine.NewNavigationError(url, fmt.Errorf("server responded %d", status))
	}

	p.url = url
	log.Debug().
		Str("url", url).
		Int64("status", status).
		Dur("elapsed", time.Since(start)).
		Msg("Page loaded")
	return nil
}

// AutoScroll scrolls one viewport at a time until the document height stops
// growing, so lazily loaded grid items get rendered.
func (p *page) AutoScroll(ctx context.Context) error {
	var last int64 = -1
	stable := 0
	for i := 0; i < maxScrollRounds; i++ {
		var height int64
		if err := p.run(ctx, chromedp.Evaluate(scrollStep, &height), chromedp.Sleep(scrollPause)); err != nil {
			return fmt.Errorf("auto-scroll: %w", err)
		}
		if height == last {
			stable++
			if stable >= 2 {
				return nil
			}
		} else {
			stable = 0
			last = height
		}
	}
	log.Debug().Str("url", p.url).Msg("Auto-scroll stopped at round limit")
	return nil
}

func (p *page) Links(ctx context.Context) ([]string, error) {
	var hrefs []string
	if err := p.run(ctx, chromedp.Evaluate(anchorHrefs, &hrefs)); err != nil {
		return nil, fmt.Errorf("collect links: %w", err)
	}
	return hrefs, nil
}

// Extract waits for the identifying fields to render before taking the
// snapshot. If they never show up within the navigation timeout the snapshot
// is taken anyway and the missing fields surface as an extraction failure.
func (p *page) Extract(ctx context.Context, fields map[string]models.Selector) (map[string]string, error) {
	if queries := readyQueries(fields); len(queries) > 0 {
		waits := make([]chromedp.Action, 0, len(queries))
		for _, q := range queries {
			waits = append(waits, chromedp.WaitReady(q, chromedp.ByQuery))
		}
		err := p.run(ctx, waits...)
		switch {
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case errors.Is(err, context.DeadlineExceeded):
			log.Debug().Str("url", p.url).Strs("selectors", queries).Msg("Product fields did not render in time")
		case err != nil:
			return nil, fmt.Errorf("wait for fields: %w", err)
		}
	}

	var html string
	if err := p.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return nil, fmt.Errorf("snapshot page: %w", err)
	}
	doc, err := dom.Parse(html)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	return dom.Fields(doc, p.url, fields), nil
}

// readyQueries lists the selectors that mark a product page as hydrated
func readyQueries(fields map[string]models.Selector) []string {
	var qs []string
	for _, k := range []string{models.FieldName, models.FieldSKU} {
		if s, ok := fields[k]; ok && s.Query != "" {
			qs = append(qs, s.Query)
		}
	}
	return qs
}

func (p *page) URL() string { return p.url }

func (p *page) Close() error {
	p.closed.Do(func() { p.r.pool.Release(p.bc) })
	return nil
}
