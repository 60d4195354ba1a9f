// Package static loads pages over plain HTTP with colly. It suits storefronts
// that render their catalog server side; scripts are never executed.
package static

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/law-makers/pricecrawl/internal/engine"
	"github.com/law-makers/pricecrawl/internal/proxy"
	"github.com/law-makers/pricecrawl/internal/ratelimit"
)

// Options configures the renderer
type Options struct {
	UserAgent  string
	NavTimeout time.Duration
	Limiter    ratelimit.RateLimiter
	Proxies    *proxy.ProxyPool // optional rotation
	Headers    map[string]string
}

// Renderer hands out colly-backed pages sharing one transport
type Renderer struct {
	transport  *http.Transport
	limiter    ratelimit.RateLimiter
	userAgent  string
	navTimeout time.Duration
	proxies    *proxy.ProxyPool
	headers    map[string]string
}

// New creates a static renderer
func New(opts Options) *Renderer {
	if opts.NavTimeout <= 0 {
		opts.NavTimeout = 30 * time.Second
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.NewDomainLimiter(0, 0)
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	if opts.Proxies != nil && opts.Proxies.Len() > 0 {
		transport.Proxy = opts.Proxies.ProxyFunc()
	}

	return &Renderer{
		transport:  transport,
		limiter:    opts.Limiter,
		userAgent:  opts.UserAgent,
		navTimeout: opts.NavTimeout,
		proxies:    opts.Proxies,
		headers:    opts.Headers,
	}
}

// Name implements engine.Renderer
func (r *Renderer) Name() string { return "static" }

// NewPage implements engine.Renderer
func (r *Renderer) NewPage(ctx context.Context) (engine.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return newPage(r), nil
}

// Close implements engine.Renderer
func (r *Renderer) Close() error {
	r.transport.CloseIdleConnections()
	return nil
}

var _ engine.Renderer = (*Renderer)(nil)
