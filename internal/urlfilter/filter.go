// Package urlfilter decides which discovered links are product pages worth
// visiting, and remembers which ones were already handed out this session.
package urlfilter

import (
	"net/url"
	"strings"

	"github.com/law-makers/pricecrawl/internal/normalize"
	"golang.org/x/net/publicsuffix"
)

// Filter accepts product detail URLs of a single retailer.
type Filter struct {
	// Domain is the retailer host, e.g. "www.vea.com.ar". Any host under the
	// same registrable domain is accepted.
	Domain string
	// ProductMarker is the literal last path segment of product pages.
	ProductMarker string
	// Deny rejects URLs containing any of these substrings.
	Deny []string
	// Script is an optional extra predicate.
	Script *ScriptPredicate

	site string
}

// NewFilter creates a Filter for domain
func NewFilter(domain, marker string, deny []string, script *ScriptPredicate) *Filter {
	f := &Filter{
		Domain:        strings.ToLower(domain),
		ProductMarker: marker,
		Deny:          deny,
		Script:        script,
	}
	f.site = registrable(f.Domain)
	return f
}

// IsValidProductURL reports whether raw is a product page of this retailer.
// Unparsable input is rejected, never an error.
func (f *Filter) IsValidProductURL(raw string) bool {
	if !f.OwnsURL(raw) {
		return false
	}
	u, _ := url.Parse(strings.TrimSpace(raw))
	if lastSegment(u.Path) != f.ProductMarker {
		return false
	}
	for _, d := range f.Deny {
		if d != "" && strings.Contains(raw, d) {
			return false
		}
	}
	if f.Script != nil && !f.Script.Accept(raw) {
		return false
	}
	return true
}

// Narrow keeps the valid links that dedup has not seen yet, canonicalized
// and in discovery order. Every returned URL is marked as seen.
func (f *Filter) Narrow(links []string, dedup *Deduplicator) []string {
	var out []string
	for _, l := range links {
		if !f.IsValidProductURL(l) {
			continue
		}
		if dedup.ShouldProcess(l) {
			out = append(out, normalize.CleanURL(l))
		}
	}
	return out
}

// OwnsURL reports whether raw is an http(s) URL on the retailer's domain,
// whatever its path.
func (f *Filter) OwnsURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host != "" && f.ownsHost(host)
}

func (f *Filter) ownsHost(host string) bool {
	if f.site == "" {
		return host == f.Domain
	}
	return registrable(host) == f.site
}

func registrable(host string) string {
	site, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		// IP addresses and bare hosts have no public suffix
		return ""
	}
	return site
}

func lastSegment(path string) string {
	parts := strings.Split(path, "/")
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] != "" {
			return parts[i]
		}
	}
	return ""
}
