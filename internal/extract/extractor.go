// Package extract turns a rendered product detail page into a product and
// price pair. It knows nothing about retailers beyond the selector map it is
// given.
package extract

import (
	"context"

	"github.com/law-makers/pricecrawl/internal/engine"
	"github.com/law-makers/pricecrawl/internal/normalize"
	"github.com/law-makers/pricecrawl/pkg/models"
)

// Extractor reads detail pages through a fixed selector map
type Extractor struct {
	selectors models.SelectorMap
	fields    map[string]models.Selector
}

// New creates an Extractor for the given selectors
func New(selectors models.SelectorMap) *Extractor {
	return &Extractor{
		selectors: selectors,
		fields:    selectors.Fields(),
	}
}

// Selectors returns the map this extractor reads with
func (e *Extractor) Selectors() models.SelectorMap {
	return e.selectors
}

// Extract reads the page already loaded in page. pageURL is only used for
// error reporting. The returned product has no RetailerID or ProductURL and
// the price has no RetailerID, ID or Date; the caller owns those.
func (e *Extractor) Extract(ctx context.Context, pageURL string, page engine.FieldReader) (*models.ProductData, error) {
	raw, err := page.Extract(ctx, e.fields)
	if err != nil {
		return nil, engine.NewExtractionError(pageURL, "field evaluation failed", err)
	}

	name := normalize.Squash(raw[models.FieldName])
	sku := normalize.Squash(raw[models.FieldSKU])
	if name == "" {
		return nil, engine.NewExtractionError(pageURL, "missing product name", nil)
	}
	if sku == "" {
		return nil, engine.NewExtractionError(pageURL, "missing sku", nil)
	}

	data := &models.ProductData{
		Product: models.Product{
			ID:           sku,
			Name:         name,
			Brand:        normalize.Squash(raw[models.FieldBrand]),
			ImageURL:     normalize.Squash(raw[models.FieldImage]),
			WeightVolume: normalize.ExtractWeightVolume(name),
		},
		Price: models.Price{
			ProductID:          sku,
			OriginalPrice:      normalize.ExtractNumber(raw[models.FieldOriginalPrice]),
			DiscountedPrice:    normalize.ExtractNumber(raw[models.FieldDiscountedPrice]),
			PricePerUnit:       normalize.ExtractNumber(raw[models.FieldPricePerUnit]),
			DiscountPercentage: normalize.ExtractNumber(raw[models.FieldDiscount]),
			DiscountConditions: normalize.CleanText(raw[models.FieldDiscount]),
		},
	}

	return data, nil
}
