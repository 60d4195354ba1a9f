// Package dynamic renders pages in headless Chrome through chromedp, for
// storefronts that build their catalog with JavaScript.
package dynamic

import (
	"context"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/law-makers/pricecrawl/internal/engine"
	"github.com/law-makers/pricecrawl/internal/ratelimit"
)

// Options configures the renderer
type Options struct {
	Pages      int // Tabs to keep open
	Headless   bool
	UserAgent  string
	Proxy      string
	ChromePath string
	NavTimeout time.Duration
	Limiter    ratelimit.RateLimiter
	Headers    map[string]string // sent with every navigation
}

// Renderer hands out pooled Chrome tabs as engine pages
type Renderer struct {
	pool       *BrowserPool
	limiter    ratelimit.RateLimiter
	navTimeout time.Duration
	headers    network.Headers
}

// New starts Chrome with opts.Pages tabs
func New(ctx context.Context, opts Options) (*Renderer, error) {
	pool, err := NewBrowserPool(ctx, BrowserPoolOptions{
		Size:       opts.Pages,
		Headless:   opts.Headless,
		UserAgent:  opts.UserAgent,
		Proxy:      opts.Proxy,
		ChromePath: opts.ChromePath,
	})
	if err != nil {
		return nil, err
	}
	if opts.NavTimeout <= 0 {
		opts.NavTimeout = 30 * time.Second
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.NewDomainLimiter(0, 0)
	}
	r := &Renderer{pool: pool, limiter: opts.Limiter, navTimeout: opts.NavTimeout}
	if len(opts.Headers) > 0 {
		r.headers = make(network.Headers, len(opts.Headers))
		for k, v := range opts.Headers {
			r.headers[k] = v
		}
	}
	return r, nil
}

// Name implements engine.Renderer
func (r *Renderer) Name() string { return "dynamic" }

// NewPage implements engine.Renderer. It blocks while every tab is in use.
func (r *Renderer) NewPage(ctx context.Context) (engine.Page, error) {
	bc, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &page{r: r, bc: bc}, nil
}

// Close implements engine.Renderer
func (r *Renderer) Close() error {
	return r.pool.Close()
}

var _ engine.Renderer = (*Renderer)(nil)
