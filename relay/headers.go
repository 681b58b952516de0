package relay

import (
	"net/http"
	"strings"
)

var hopByHopHeaders = map[string]struct{}{
	"connection":          {},
	"keep-alive":          {},
	"proxy-authenticate":  {},
	"proxy-authorization": {},
	"te":                  {},
	"trailers":            {},
	"transfer-encoding":   {},
	"upgrade":             {},
}

func isHopByHop(name string) bool {
	_, ok := hopByHopHeaders[strings.ToLower(name)]
	return ok
}

// FilterHopByHop returns a copy of h without the hop-by-hop headers.
func FilterHopByHop(h http.Header) http.Header {
	out := make(http.Header, len(h))
	for k, vv := range h {
		if isHopByHop(k) {
			continue
		}
		out[k] = append([]string(nil), vv...)
	}
	return out
}
