package urlfilter

import (
	"sync"

	"github.com/law-makers/pricecrawl/internal/normalize"
)

// Deduplicator is the session's seen-URL set, keyed by canonical URL.
type Deduplicator struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewDeduplicator creates an empty seen-set
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{seen: make(map[string]struct{})}
}

// ShouldProcess returns true and records raw the first time its canonical
// form is offered, false afterwards. Check and mark happen atomically.
func (d *Deduplicator) ShouldProcess(raw string) bool {
	key := normalize.CleanURL(raw)

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; ok {
		return false
	}
	d.seen[key] = struct{}{}
	return true
}

// Len returns how many distinct URLs were recorded
func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
