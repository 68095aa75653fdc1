// Package guard provides client identity derivation.
package guard

import (
	"net/http"
	"strings"
)

// UnknownIdentity is the shared bucket for requests with no usable
// client address headers. All such requests count against one limit.
const UnknownIdentity = "unknown"

// IdentityFromHeaders derives the client identity from proxy headers.
// CF-Connecting-IP wins, then the first X-Forwarded-For hop, then
// X-Real-IP.
func IdentityFromHeaders(h http.Header) string {
	if h == nil {
		return UnknownIdentity
	}
	if v := strings.TrimSpace(h.Get("CF-Connecting-IP")); v != "" {
		return v
	}
	if v := h.Get("X-Forwarded-For"); v != "" {
		first := v
		if idx := strings.Index(v, ","); idx >= 0 {
			first = v[:idx]
		}
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if v := strings.TrimSpace(h.Get("X-Real-IP")); v != "" {
		return v
	}
	return UnknownIdentity
}
