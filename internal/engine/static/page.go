package static

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"github.com/law-makers/pricecrawl/internal/engine"
	"github.com/law-makers/pricecrawl/internal/engine/dom"
	"github.com/law-makers/pricecrawl/pkg/models"
	"github.com/rs/zerolog/log"
)

type page struct {
	r         *Renderer
	collector *colly.Collector

	url    string
	doc    *goquery.Document
	status int
	proxy  string
	body   []byte
}

func newPage(r *Renderer) *page {
	opts := []colly.CollectorOption{
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
	}
	if r.userAgent != "" {
		opts = append(opts, colly.UserAgent(r.userAgent))
	}

	c := colly.NewCollector(opts...)
	c.WithTransport(r.transport)
	c.SetRequestTimeout(r.navTimeout)

	p := &page{r: r, collector: c}
	if len(r.headers) > 0 {
		c.OnRequest(func(req *colly.Request) {
			for k, v := range r.headers {
				req.Headers.Set(k, v)
			}
		})
	}
	c.OnResponse(func(resp *colly.Response) {
		p.status = resp.StatusCode
		p.body = resp.Body
		p.url = resp.Request.URL.String()
		p.proxy = resp.Request.ProxyURL
	})
	return p
}

func (p *page) Navigate(ctx context.Context, url string) error {
	if err := p.r.limiter.Wait(ctx, url); err != nil {
		return engine.NewNavigationError(url, err)
	}

	tctx, cancel := context.WithTimeout(ctx, p.r.navTimeout)
	defer cancel()

	start := time.Now()
	p.status, p.body, p.proxy, p.doc = 0, nil, "", nil
	p.collector.Context = tctx

	if err := p.collector.Visit(url); err != nil {
		p.markProxy(false)
		return engine.NewNavigationError(url, err)
	}
	if p.status >= http.StatusInternalServerError {
		p.markProxy(false)
		return engine.NewNavigationError(url, fmt.Errorf("server responded %d", p.status))
	}
	p.markProxy(true)

	doc, err := dom.Parse(string(p.body))
	if err != nil {
		return engine.NewNavigationError(url, fmt.Errorf("parse html: %w", err))
	}
	p.doc = doc

	log.Debug().
		Str("url", url).
		Int("status", p.status).
		Int("bytes", len(p.body)).
		Dur("elapsed", time.Since(start)).
		Msg("Page loaded")
	return nil
}

func (p *page) markProxy(ok bool) {
	if p.r.proxies == nil || p.proxy == "" {
		return
	}
	if ok {
		p.r.proxies.MarkHealthy(p.proxy)
	} else {
		p.r.proxies.MarkFailed(p.proxy)
	}
}

// AutoScroll is a no-op: a static document has nothing to lazy load
func (p *page) AutoScroll(context.Context) error { return nil }

func (p *page) Links(context.Context) ([]string, error) {
	if p.doc == nil {
		return nil, fmt.Errorf("no page loaded")
	}
	return dom.Links(p.doc, p.url), nil
}

func (p *page) Extract(_ context.Context, fields map[string]models.Selector) (map[string]string, error) {
	if p.doc == nil {
		return nil, fmt.Errorf("no page loaded")
	}
	return dom.Fields(p.doc, p.url, fields), nil
}

func (p *page) URL() string { return p.url }

func (p *page) Close() error {
	p.doc, p.body = nil, nil
	return nil
}
