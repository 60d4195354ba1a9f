package headers

import (
	"net/http"
	"strings"
)

// ParseHeaders converts an array of header strings ("Key: Value") into a map
// keyed by canonical header name. Entries without a colon or a name are
// skipped.
func ParseHeaders(h []string) map[string]string {
	m := make(map[string]string)
	for _, hdr := range h {
		k, v, ok := strings.Cut(hdr, ":")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			continue
		}
		m[http.CanonicalHeaderKey(k)] = strings.TrimSpace(v)
	}
	return m
}
