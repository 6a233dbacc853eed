package contact

import (
	"net/http"
	"strings"
)

// UnknownAddress is used when the client address cannot be determined.
const UnknownAddress = "unknown"

// ClientAddress returns the first X-Forwarded-For entry of r, trimmed, or
// UnknownAddress when the header is absent or blank. The header is trusted
// as is, so it must be set by the fronting proxy.
func ClientAddress(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	first, _, _ := strings.Cut(xff, ",")
	if first = strings.TrimSpace(first); first != "" {
		return first
	}
	return UnknownAddress
}
