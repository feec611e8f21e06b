package handler

import (
	"net"
	"net/http"

	"toilet-map-service/internal/hashing"
)

// clientIP extracts the caller's address for identity hashing. The RealIP
// middleware has already folded X-Forwarded-For / X-Real-IP into RemoteAddr.
// Returns the sentinel when nothing usable is present, so the hasher always
// gets a non-empty key.
func clientIP(r *http.Request) string {
	addr := r.RemoteAddr
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	if addr == "" {
		return hashing.UnknownIdentity
	}
	return addr
}
