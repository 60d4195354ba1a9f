// internal/engine/dynamic/browser_pool.go
package dynamic

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/law-makers/pricecrawl/internal/config"
	"github.com/rs/zerolog/log"
)

// releaseTimeout bounds blanking a tab on Release
var releaseTimeout = 5 * time.Second

var blankTab = func(ctx context.Context) error {
	return chromedp.Run(ctx, chromedp.Navigate("about:blank"))
}

// BrowserPool manages a fixed set of warmed tabs in one Chrome process.
// Tabs are handed out whole; a tab is never shared between two pages.
type BrowserPool struct {
	size        int
	contexts    chan *BrowserContext
	allocCtx    context.Context
	allocCancel context.CancelFunc
	mu          sync.Mutex
	closed      bool
}

// BrowserContext wraps a chromedp tab context with its cancel function
type BrowserContext struct {
	Ctx    context.Context
	Cancel context.CancelFunc

	target atomic.Value // URL being navigated to
	status atomic.Int64 // HTTP status of target's document response
}

// expect resets the recorded status for a navigation to url
func (bc *BrowserContext) expect(url string) {
	bc.target.Store(url)
	bc.status.Store(0)
}

// Status returns the document status of the last navigation, 0 if unseen
func (bc *BrowserContext) Status() int64 {
	return bc.status.Load()
}

// BrowserPoolOptions configures the browser pool
type BrowserPoolOptions struct {
	Size       int
	Headless   bool
	UserAgent  string
	Proxy      string
	ChromePath string
	ExtraArgs  []chromedp.ExecAllocatorOption
}

// NewBrowserPool starts Chrome and opens Size tabs
func NewBrowserPool(ctx context.Context, opts BrowserPoolOptions) (*BrowserPool, error) {
	if opts.Size <= 0 {
		opts.Size = 1
	}
	if opts.UserAgent == "" {
		opts.UserAgent = config.DefaultUserAgent
	}

	log.Debug().Int("size", opts.Size).Bool("headless", opts.Headless).Msg("Creating browser pool")

	allocOpts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-accelerated-2d-canvas", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-breakpad", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-hang-monitor", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("log-level", "3"),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-infobars", true),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(opts.UserAgent),
	}

	if chromePath := FindChrome(opts.ChromePath); chromePath != "" {
		allocOpts = append([]chromedp.ExecAllocatorOption{chromedp.ExecPath(chromePath)}, allocOpts...)
	}

	if opts.Headless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", "new"))
	} else {
		allocOpts = append(allocOpts, chromedp.Flag("headless", false))
	}

	if opts.Proxy != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(opts.Proxy))
	}

	allocOpts = append(allocOpts, opts.ExtraArgs...)

	// The allocator outlives the caller's context; Close ends it.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocOpts...)

	pool := &BrowserPool{
		size:        opts.Size,
		contexts:    make(chan *BrowserContext, opts.Size),
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
	}

	// The first tab starts the browser; the rest are tabs in it.
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := pool.warm(browserCtx, browserCancel, 0); err != nil {
		pool.Close()
		return nil, err
	}
	for i := 1; i < opts.Size; i++ {
		tabCtx, tabCancel := chromedp.NewContext(browserCtx)
		if err := pool.warm(tabCtx, tabCancel, i); err != nil {
			pool.Close()
			return nil, err
		}
	}

	log.Info().Int("pool_size", opts.Size).Msg("Browser pool ready")

	return pool, nil
}

func (bp *BrowserPool) warm(ctx context.Context, cancel context.CancelFunc, id int) error {
	if err := chromedp.Run(ctx, chromedp.Navigate("about:blank")); err != nil {
		cancel()
		return fmt.Errorf("failed to warm up browser context %d: %w", id, err)
	}
	bc := &BrowserContext{Ctx: ctx, Cancel: cancel}
	bc.target.Store("")
	chromedp.ListenTarget(ctx, func(ev interface{}) {
		e, ok := ev.(*network.EventResponseReceived)
		if !ok || e.Type != network.ResourceTypeDocument {
			return
		}
		if t, _ := bc.target.Load().(string); t != "" && t == e.Response.URL {
			bc.status.Store(e.Response.Status)
		}
	})
	bp.contexts <- bc
	log.Debug().Int("context_id", id).Msg("Browser context initialized")
	return nil
}

// Acquire takes a tab from the pool, blocking until one is free or ctx ends
func (bp *BrowserPool) Acquire(ctx context.Context) (*BrowserContext, error) {
	select {
	case bc, ok := <-bp.contexts:
		if !ok {
			return nil, fmt.Errorf("browser pool is closed")
		}
		bp.mu.Lock()
		defer bp.mu.Unlock()
		if bp.closed {
			bc.Cancel()
			return nil, fmt.Errorf("browser pool is closed")
		}
		return bc, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for browser context: %w", ctx.Err())
	}
}

// Release blanks the tab and returns it to the pool
func (bp *BrowserPool) Release(bc *BrowserContext) {
	bp.mu.Lock()
	if bp.closed {
		bc.Cancel()
		bp.mu.Unlock()
		return
	}
	bp.mu.Unlock()

	// Best effort; a tab that cannot blank still works for the next page
	ctx, cancel := context.WithTimeout(bc.Ctx, releaseTimeout)
	if err := blankTab(ctx); err != nil {
		log.Debug().Err(err).Msg("Could not blank tab on release")
	}
	cancel()

	bp.mu.Lock()
	defer bp.mu.Unlock()
	if bp.closed {
		bc.Cancel()
		return
	}
	select {
	case bp.contexts <- bc:
	default:
		bc.Cancel()
		log.Warn().Msg("Browser pool full, discarding context")
	}
}

// Close shuts down all browser contexts and the allocator
func (bp *BrowserPool) Close() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if bp.closed {
		return nil
	}
	bp.closed = true

	close(bp.contexts)
	for bc := range bp.contexts {
		bc.Cancel()
	}
	bp.allocCancel()

	log.Debug().Msg("Browser pool closed")

	return nil
}

// Size returns the pool size
func (bp *BrowserPool) Size() int {
	return bp.size
}

// Available returns the number of idle tabs
func (bp *BrowserPool) Available() int {
	return len(bp.contexts)
}
