package guard

import (
	"net/http"
	"testing"
)

func TestIdentityFromHeadersPrecedence(t *testing.T) {
	t.Parallel()

	h := http.Header{}
	h.Set("CF-Connecting-IP", "1.1.1.1")
	h.Set("X-Forwarded-For", "2.2.2.2, 3.3.3.3")
	h.Set("X-Real-IP", "4.4.4.4")
	if got := IdentityFromHeaders(h); got != "1.1.1.1" {
		t.Fatalf("identity = %q, want CF-Connecting-IP", got)
	}

	h.Del("CF-Connecting-IP")
	if got := IdentityFromHeaders(h); got != "2.2.2.2" {
		t.Fatalf("identity = %q, want first X-Forwarded-For hop", got)
	}

	h.Del("X-Forwarded-For")
	if got := IdentityFromHeaders(h); got != "4.4.4.4" {
		t.Fatalf("identity = %q, want X-Real-IP", got)
	}
}

func TestIdentityFromHeadersTrimsForwardedFor(t *testing.T) {
	t.Parallel()

	h := http.Header{}
	h.Set("X-Forwarded-For", "  5.6.7.8 , 9.9.9.9")
	if got := IdentityFromHeaders(h); got != "5.6.7.8" {
		t.Fatalf("identity = %q, want trimmed first hop", got)
	}
}

func TestIdentityFromHeadersUnknown(t *testing.T) {
	t.Parallel()

	if got := IdentityFromHeaders(http.Header{}); got != UnknownIdentity {
		t.Fatalf("identity = %q, want %q", got, UnknownIdentity)
	}
	if got := IdentityFromHeaders(nil); got != UnknownIdentity {
		t.Fatalf("identity = %q, want %q", got, UnknownIdentity)
	}
	h := http.Header{}
	h.Set("X-Forwarded-For", " , ")
	if got := IdentityFromHeaders(h); got != UnknownIdentity {
		t.Fatalf("identity = %q, want %q for blank hops", got, UnknownIdentity)
	}
}
