// Package retailer holds the per-retailer knowledge the pipeline needs: where
// the categories are, which links are products and how a product page reads.
package retailer

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/law-makers/pricecrawl/internal/engine"
	"github.com/law-makers/pricecrawl/internal/extract"
	"github.com/law-makers/pricecrawl/internal/normalize"
	"github.com/law-makers/pricecrawl/internal/urlfilter"
	"github.com/law-makers/pricecrawl/pkg/models"
)

// Scraper is what the pipeline asks of a retailer
type Scraper interface {
	Retailer() models.Retailer
	Categories() []string
	// Filter accepts this retailer's product detail URLs.
	Filter() *urlfilter.Filter
	// Scrape reads the product page loaded in page and returns a record
	// ready to be stored.
	Scrape(ctx context.Context, productURL string, page engine.FieldReader) (*models.ProductData, error)
}

// Profile is a declarative Scraper
type Profile struct {
	Info          models.Retailer
	CategoryURLs  []string
	ProductMarker string
	Deny          []string
	LinkFilter    string // optional JavaScript predicate over href
	Selectors     models.SelectorMap

	filter    *urlfilter.Filter
	extractor *extract.Extractor
}

// Overrides replace parts of a built-in profile. Zero values keep the
// built-in setting.
type Overrides struct {
	Categories    []string
	Selectors     models.SelectorMap
	ProductMarker string
	DenyList      []string
	LinkFilter    string
}

var builtins = map[string]func() Profile{
	"vea": Vea,
}

// Names lists the built-in retailers
func Names() []string {
	names := make([]string, 0, len(builtins))
	for n := range builtins {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Resolve returns the built-in profile called name with o applied
func Resolve(name string, o Overrides) (*Profile, error) {
	mk, ok := builtins[strings.ToLower(name)]
	if !ok {
		return nil, engine.NewConfigError(
			fmt.Sprintf("unknown retailer %q (known: %s)", name, strings.Join(Names(), ", ")), nil)
	}

	p := mk()
	if len(o.Categories) > 0 {
		p.CategoryURLs = o.Categories
	}
	p.Selectors = p.Selectors.Merge(o.Selectors)
	if o.ProductMarker != "" {
		p.ProductMarker = o.ProductMarker
	}
	if len(o.DenyList) > 0 {
		p.Deny = o.DenyList
	}
	if o.LinkFilter != "" {
		p.LinkFilter = o.LinkFilter
	}

	if err := p.Build(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Build validates the profile and prepares its filter and extractor
func (p *Profile) Build() error {
	base, err := url.Parse(p.Info.BaseURL)
	if err != nil || base.Hostname() == "" {
		return engine.NewConfigError("retailer base url", err)
	}
	if p.Info.ID == "" {
		return engine.NewConfigError("retailer id is empty", nil)
	}
	if len(p.CategoryURLs) == 0 {
		return engine.NewConfigError("no categories configured", nil)
	}
	if p.ProductMarker == "" {
		return engine.NewConfigError("product marker is empty", nil)
	}
	if p.Selectors.Name.Query == "" || p.Selectors.SKU.Query == "" {
		return engine.NewConfigError("selector map needs name and sku", nil)
	}

	var script *urlfilter.ScriptPredicate
	if p.LinkFilter != "" {
		if script, err = urlfilter.CompileScript(p.LinkFilter); err != nil {
			return engine.NewConfigError("link filter", err)
		}
	}

	p.filter = urlfilter.NewFilter(base.Hostname(), p.ProductMarker, p.Deny, script)
	for _, c := range p.CategoryURLs {
		if !p.filter.OwnsURL(c) {
			return engine.NewConfigError(fmt.Sprintf("category %q is not on %s", c, base.Hostname()), nil)
		}
	}
	p.extractor = extract.New(p.Selectors)
	return nil
}

// Retailer implements Scraper
func (p *Profile) Retailer() models.Retailer { return p.Info }

// Categories implements Scraper
func (p *Profile) Categories() []string { return p.CategoryURLs }

// Filter implements Scraper
func (p *Profile) Filter() *urlfilter.Filter { return p.filter }

// Scrape implements Scraper
func (p *Profile) Scrape(ctx context.Context, productURL string, page engine.FieldReader) (*models.ProductData, error) {
	data, err := p.extractor.Extract(ctx, productURL, page)
	if err != nil {
		return nil, err
	}
	data.Product.RetailerID = p.Info.ID
	data.Product.ProductURL = normalize.CleanURL(productURL)
	data.Price.RetailerID = p.Info.ID
	return data, nil
}
