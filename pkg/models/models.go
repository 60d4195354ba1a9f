package models

import (
	"time"

	"gopkg.in/yaml.v3"
)

// Retailer is static reference data seeded once per run.
type Retailer struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	BaseURL string `json:"base_url"`
}

// Product is keyed by the retailer's SKU. Re-scraping the same SKU overwrites
// every mutable field.
type Product struct {
	ID           string   `json:"id"`
	RetailerID   string   `json:"retailer_id"`
	Brand        string   `json:"brand"`
	WeightVolume *float64 `json:"weight_volume"` // grams or milliliters
	Name         string   `json:"name"`
	ImageURL     string   `json:"image_url"`
	ProductURL   string   `json:"product_url"`
}

// Price is one daily observation of a product's pricing.
type Price struct {
	ID                 string    `json:"id"`
	ProductID          string    `json:"product_id"`
	RetailerID         string    `json:"retailer_id"`
	OriginalPrice      *float64  `json:"original_price"`
	DiscountPercentage *float64  `json:"discount_percentage"`
	DiscountedPrice    *float64  `json:"discounted_price"`
	PricePerUnit       *float64  `json:"price_per_unit"`
	DiscountConditions *string   `json:"discount_conditions"`
	Date               time.Time `json:"date"`
}

// ProductData pairs a product with the price captured on the same page.
type ProductData struct {
	Product Product `json:"product"`
	Price   Price   `json:"price"`
}

// Selector addresses one value on a rendered page. When Attr is empty the
// element's text content is read.
type Selector struct {
	Query string `json:"query" yaml:"query"`
	Attr  string `json:"attr,omitempty" yaml:"attr,omitempty"`
}

// UnmarshalYAML accepts either a bare CSS selector or a {query, attr} map.
func (s *Selector) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		s.Query = node.Value
		s.Attr = ""
		return nil
	}
	type plain Selector
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*s = Selector(p)
	return nil
}

// Field names used by SelectorMap.Fields.
const (
	FieldName            = "name"
	FieldBrand           = "brand"
	FieldSKU             = "sku"
	FieldImage           = "image"
	FieldOriginalPrice   = "original_price"
	FieldDiscountedPrice = "discounted_price"
	FieldPricePerUnit    = "price_per_unit"
	FieldDiscount        = "discount"
)

// SelectorMap is the declarative description of a product detail page.
type SelectorMap struct {
	Name            Selector `json:"name" yaml:"name"`
	Brand           Selector `json:"brand" yaml:"brand"`
	SKU             Selector `json:"sku" yaml:"sku"`
	Image           Selector `json:"image" yaml:"image"`
	OriginalPrice   Selector `json:"original_price" yaml:"originalPrice"`
	DiscountedPrice Selector `json:"discounted_price" yaml:"discountedPrice"`
	PricePerUnit    Selector `json:"price_per_unit" yaml:"pricePerUnit"`
	Discount        Selector `json:"discount" yaml:"discount"`
}

// Fields returns the non-empty selectors keyed by field name.
func (m SelectorMap) Fields() map[string]Selector {
	all := map[string]Selector{
		FieldName:            m.Name,
		FieldBrand:           m.Brand,
		FieldSKU:             m.SKU,
		FieldImage:           m.Image,
		FieldOriginalPrice:   m.OriginalPrice,
		FieldDiscountedPrice: m.DiscountedPrice,
		FieldPricePerUnit:    m.PricePerUnit,
		FieldDiscount:        m.Discount,
	}
	for k, s := range all {
		if s.Query == "" {
			delete(all, k)
		}
	}
	return all
}

// Merge overlays the non-empty selectors of o onto m.
func (m SelectorMap) Merge(o SelectorMap) SelectorMap {
	pick := func(a, b Selector) Selector {
		if b.Query != "" {
			return b
		}
		return a
	}
	return SelectorMap{
		Name:            pick(m.Name, o.Name),
		Brand:           pick(m.Brand, o.Brand),
		SKU:             pick(m.SKU, o.SKU),
		Image:           pick(m.Image, o.Image),
		OriginalPrice:   pick(m.OriginalPrice, o.OriginalPrice),
		DiscountedPrice: pick(m.DiscountedPrice, o.DiscountedPrice),
		PricePerUnit:    pick(m.PricePerUnit, o.PricePerUnit),
		Discount:        pick(m.Discount, o.Discount),
	}
}
