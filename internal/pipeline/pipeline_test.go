package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/law-makers/pricecrawl/internal/batch"
	"github.com/law-makers/pricecrawl/internal/engine"
	"github.com/law-makers/pricecrawl/internal/engine/dom"
	"github.com/law-makers/pricecrawl/internal/paginate"
	"github.com/law-makers/pricecrawl/internal/retailer"
	"github.com/law-makers/pricecrawl/internal/store"
	"github.com/law-makers/pricecrawl/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// siteRenderer serves canned HTML keyed by URL
type siteRenderer struct {
	mu    sync.Mutex
	site  map[string]string
	pages int
}

func (r *siteRenderer) Name() string { return "fake" }
func (r *siteRenderer) Close() error { return nil }
func (r *siteRenderer) NewPage(context.Context) (engine.Page, error) {
	r.mu.Lock()
	r.pages++
	r.mu.Unlock()
	return &sitePage{site: r.site}, nil
}

type sitePage struct {
	site map[string]string
	url  string
	html string
}

func (p *sitePage) Navigate(_ context.Context, url string) error {
	html, ok := p.site[url]
	if !ok {
		return engine.NewNavigationError(url, errors.New("net::ERR_NAME_NOT_RESOLVED"))
	}
	p.url, p.html = url, html
	return nil
}

func (p *sitePage) AutoScroll(context.Context) error { return nil }
func (p *sitePage) URL() string                     { return p.url }
func (p *sitePage) Close() error                    { return nil }

func (p *sitePage) Links(context.Context) ([]string, error) {
	doc, err := dom.Parse(p.html)
	if err != nil {
		return nil, err
	}
	return dom.Links(doc, p.url), nil
}

func (p *sitePage) Extract(_ context.Context, fields map[string]models.Selector) (map[string]string, error) {
	doc, err := dom.Parse(p.html)
	if err != nil {
		return nil, err
	}
	return dom.Fields(doc, p.url, fields), nil
}

func listing(hrefs ...string) string {
	html := "<html><body><div class=gallery>"
	for _, h := range hrefs {
		html += fmt.Sprintf(`<a href="%s">item</a>`, h)
	}
	return html + `<a href="/institucional/terminos-y-condiciones/p">legal</a></div></body></html>`
}

func productPage(name, sku, price string) string {
	return fmt.Sprintf(`<html><body>
		<h1 class="vtex-store-components-3-x-productNameContainer">%s</h1>
		<span class="vtex-store-components-3-x-productBrand">Marca</span>
		<span class="vtex-product-identifier-0-x-product-identifier__value">%s</span>
		<img class="vtex-store-components-3-x-productImageTag" src="/arquivos/%s.jpg">
		<div id="priceContainer">%s</div>
	</body></html>`, name, sku, sku, price)
}

func newSite() map[string]string {
	const base = "https://www.vea.com.ar"
	return map[string]string{
		base + "/almacen?page=1": listing("/arroz-500g/p", "/yerba-1kg/p", base+"/arroz-500g/p#reviews"),
		base + "/almacen?page=2": listing("/yerba-1kg/p", "/fideos-500g/p", "/roto/p"),
		base + "/almacen?page=3": listing("/arroz-500g/p"),
		base + "/bebidas?page=1": listing("/yerba-1kg/p", "/agua-2l/p"),
		base + "/bebidas?page=2": listing(),

		base + "/arroz-500g/p":  productPage("Arroz Largo Fino 500 G", "1001", "$ 1.250,50"),
		base + "/yerba-1kg/p":   productPage("Yerba Mate 1 Kg", "1002", "$ 3.899"),
		base + "/fideos-500g/p": productPage("Fideos Spaghetti 500 g", "1003", "$ 990"),
		base + "/agua-2l/p":     productPage("Agua Mineral 2 L", "1004", "$ 700"),
		// rendered but without a SKU
		base + "/roto/p": `<html><body><h1 class="vtex-store-components-3-x-productNameContainer">Roto</h1></body></html>`,
	}
}

func newTestStore(t *testing.T, now time.Time) store.Store {
	t.Helper()
	s, err := store.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "products.db"),
		store.Options{Now: func() time.Time { return now }})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func newVea(t *testing.T) *retailer.Profile {
	t.Helper()
	p, err := retailer.Resolve("vea", retailer.Overrides{
		Categories: []string{"https://www.vea.com.ar/almacen", "https://www.vea.com.ar/bebidas"},
	})
	require.NoError(t, err)
	return p
}

func TestOrchestrator_EndToEnd(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)
	st := newTestStore(t, now)
	r := &siteRenderer{site: newSite()}

	o := NewOrchestrator(r, newVea(t), st, Options{MaxPages: 10, MaxConcurrent: 2, RetryBudget: 3})

	var mu sync.Mutex
	var results []batch.Result
	o.OnResult = func(res batch.Result) {
		mu.Lock()
		results = append(results, res)
		mu.Unlock()
	}
	var finished []paginate.CategoryResult
	o.OnCategory = func(c paginate.CategoryResult) { finished = append(finished, c) }

	report, err := o.Run(ctx)
	require.NoError(t, err)

	assert.Len(t, finished, 2)
	assert.Len(t, report.RunID, 16)
	assert.Equal(t, 5, report.Summary.Attempted)
	assert.Equal(t, 4, report.Summary.Succeeded)
	assert.Equal(t, 1, report.Summary.Failed, "the page without sku fails alone")
	assert.Len(t, results, 5)
	assert.Equal(t, 5, report.Seen)
	assert.Equal(t, int64(4), report.PricesRecorded)
	assert.Equal(t, 0, report.FailedCategories())

	almacen := report.Categories[0]
	assert.Equal(t, 2, almacen.Pages)
	assert.Equal(t, paginate.Done, almacen.State)

	p, err := st.GetProduct(ctx, "1002")
	require.NoError(t, err)
	assert.Equal(t, "VEA", p.RetailerID)
	assert.Equal(t, "https://www.vea.com.ar/yerba-1kg/p", p.ProductURL)
	assert.Equal(t, "https://www.vea.com.ar/arquivos/1002.jpg", p.ImageURL)
	require.NotNil(t, p.WeightVolume)
	assert.Equal(t, 1000.0, *p.WeightVolume)

	price, err := st.LatestPrice(ctx, "1001")
	require.NoError(t, err)
	require.NotNil(t, price.DiscountedPrice)
	assert.Equal(t, 1250.5, *price.DiscountedPrice)
	assert.Equal(t, "2024-05-02", price.Date.Format(time.DateOnly))

	_, err = st.GetProduct(ctx, "Roto")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestOrchestrator_SecondRunSameDay(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)
	st := newTestStore(t, now)

	for run := 0; run < 2; run++ {
		o := NewOrchestrator(&siteRenderer{site: newSite()}, newVea(t), st,
			Options{MaxPages: 10, MaxConcurrent: 3, RetryBudget: 3})
		report, err := o.Run(ctx)
		require.NoError(t, err)

		if run == 0 {
			assert.Equal(t, int64(4), report.PricesRecorded)
		} else {
			assert.Equal(t, int64(0), report.PricesRecorded)
			assert.Equal(t, int64(4), report.PricesSkipped)
		}
	}
}

func TestOrchestrator_UnreachableCategory(t *testing.T) {
	site := newSite()
	delete(site, "https://www.vea.com.ar/almacen?page=1")
	st := newTestStore(t, time.Now())

	o := NewOrchestrator(&siteRenderer{site: site}, newVea(t), st, Options{MaxPages: 10, MaxConcurrent: 2, RetryBudget: 2})
	report, err := o.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Categories, 2)
	assert.ErrorIs(t, report.Categories[0].Err, engine.ErrNavigation)
	assert.NoError(t, report.Categories[1].Err, "a failed category must not stop the next one")
	assert.Equal(t, 1, report.FailedCategories())
	assert.Equal(t, 2, report.Summary.Succeeded)
}

type failingSink struct{}

func (failingSink) SeedRetailer(context.Context, models.Retailer) error {
	return engine.NewStoreError("seed", errors.New("database is locked"))
}
func (failingSink) Save(context.Context, *models.ProductData) (bool, error) { return false, nil }

func TestOrchestrator_SeedFailure(t *testing.T) {
	r := &siteRenderer{site: newSite()}
	o := NewOrchestrator(r, newVea(t), failingSink{}, Options{})

	_, err := o.Run(context.Background())
	assert.ErrorIs(t, err, engine.ErrStore)
	assert.Equal(t, 0, r.pages, "nothing is rendered when the store is unusable")
}

type saveErrSink struct{ store.Store }

func (s saveErrSink) Save(context.Context, *models.ProductData) (bool, error) {
	return false, engine.NewStoreError("save", errors.New("disk I/O error"))
}

func TestIngestor_StoreFailure(t *testing.T) {
	st := newTestStore(t, time.Now())
	in := NewIngestor(newVea(t), saveErrSink{st})
	page := &sitePage{site: newSite()}

	err := in.Process(context.Background(), page, "https://www.vea.com.ar/agua-2l/p")
	assert.ErrorIs(t, err, engine.ErrStore)

	saved, _, _ := in.Counts()
	assert.Zero(t, saved)
}

func TestOrchestrator_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	st := newTestStore(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	o := NewOrchestrator(&siteRenderer{site: newSite()}, newVea(t), st, Options{MaxConcurrent: 2})

	report, err := o.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, report.Categories)
}
