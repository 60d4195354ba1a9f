// Package engine defines the contract between the crawl pipeline and the
// rendering backends that load pages.
package engine

import (
	"context"

	"github.com/law-makers/pricecrawl/pkg/models"
)

// FieldReader extracts values from the currently loaded page.
type FieldReader interface {
	// Extract returns the value for every selector that matched. Selectors
	// that match nothing are absent from the result.
	Extract(ctx context.Context, fields map[string]models.Selector) (map[string]string, error)
}

// Page is a reusable rendering context. A Page is used by one goroutine at a
// time.
type Page interface {
	FieldReader

	// Navigate loads url, failing with a navigation CrawlError on network
	// errors or when the page's timeout elapses.
	Navigate(ctx context.Context, url string) error

	// AutoScroll scrolls until the document stops growing so lazily loaded
	// content is present.
	AutoScroll(ctx context.Context) error

	// Links returns the absolute href of every anchor on the page.
	Links(ctx context.Context) ([]string, error)

	// URL returns the address of the last successful navigation.
	URL() string

	// Close releases the context back to its owner.
	Close() error
}

// Renderer hands out pages.
type Renderer interface {
	NewPage(ctx context.Context) (Page, error)
	Name() string
	Close() error
}
