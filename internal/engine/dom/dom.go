// Package dom reads fields and links out of rendered HTML with goquery. Both
// renderers snapshot the page's markup and delegate here, so selector
// semantics are identical whichever engine loaded the page.
package dom

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	urlutil "github.com/law-makers/pricecrawl/internal/utils/url"
	"github.com/law-makers/pricecrawl/pkg/models"
)

// Parse builds a document from rendered HTML
func Parse(html string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

// Fields reads each selector from doc. Text selectors return the trimmed text
// of the first match; attribute selectors return the attribute of the first
// match, resolved against base when it is a URL attribute.
func Fields(doc *goquery.Document, base string, fields map[string]models.Selector) map[string]string {
	out := make(map[string]string, len(fields))
	if doc == nil {
		return out
	}

	for name, s := range fields {
		sel := doc.Find(s.Query).First()
		if sel.Length() == 0 {
			continue
		}

		if s.Attr == "" {
			out[name] = strings.TrimSpace(sel.Text())
			continue
		}

		v, ok := sel.Attr(s.Attr)
		if !ok {
			continue
		}
		v = strings.TrimSpace(v)
		if isURLAttr(s.Attr) && v != "" {
			v = urlutil.ResolveURL(base, v)
		}
		out[name] = v
	}

	return out
}

// Links returns every anchor href in doc resolved against base
func Links(doc *goquery.Document, base string) []string {
	if doc == nil {
		return nil
	}

	var links []string
	doc.Find("a[href]").Each(func(i int, sel *goquery.Selection) {
		if href, exists := sel.Attr("href"); exists && href != "" {
			links = append(links, urlutil.ResolveURL(base, strings.TrimSpace(href)))
		}
	})
	return links
}

func isURLAttr(attr string) bool {
	switch strings.ToLower(attr) {
	case "href", "src", "data-src", "srcset":
		return true
	}
	return false
}
