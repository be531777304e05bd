// Package clientip extracts the real client IP address from forwarding
// headers, in priority order, skipping private/loopback/link-local
// addresses that a reverse proxy may have left behind.
package clientip

import (
	"net"
	"net/http"
	"strconv"
	"strings"
)

// headerPriority lists the headers checked, in order. Cloudflare's header
// is trusted first since it is set by the edge, not by arbitrary clients.
var headerPriority = []string{
	"CF-Connecting-IP",
	"X-Forwarded-For",
	"X-Real-IP",
	"X-Client-IP",
}

// Extract returns the first valid, non-internal IP address found across
// the forwarding headers, or "" if none is present.
func Extract(h http.Header) string {
	for _, name := range headerPriority {
		value := strings.TrimSpace(h.Get(name))
		if value == "" {
			continue
		}

		if name == "X-Forwarded-For" {
			for _, candidate := range strings.Split(value, ",") {
				if ip := validateAndClean(strings.TrimSpace(candidate)); ip != "" {
					return ip
				}
			}
			continue
		}

		if ip := validateAndClean(value); ip != "" {
			return ip
		}
	}
	return ""
}

// validateAndClean returns the cleaned IP if it parses and is not an
// internal/private/loopback/link-local address, or "" otherwise.
func validateAndClean(s string) string {
	if s == "" || isInternalIP(s) {
		return ""
	}

	ip := net.ParseIP(s)
	if ip == nil {
		return ""
	}

	if ip4 := ip.To4(); ip4 != nil {
		if ip4.IsLoopback() || ip4.IsPrivate() || ip4.IsLinkLocalUnicast() {
			return ""
		}
		return s
	}

	if ip.IsLoopback() || ip.IsUnspecified() {
		return ""
	}
	return s
}

// isInternalIP matches the well-known internal subnet prefixes, mirroring
// a simple startswith check rather than a full subnet parse.
func isInternalIP(s string) bool {
	lower := strings.ToLower(s)
	prefixes := []string{
		"127.", "10.", "192.168.", "169.254.",
		"::1", "fc00:", "fd00:", "fe80:",
		"localhost",
	}
	for _, p := range prefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}

	if strings.HasPrefix(lower, "172.") {
		parts := strings.SplitN(lower, ".", 3)
		if len(parts) >= 2 {
			if octet, err := strconv.Atoi(parts[1]); err == nil && octet >= 16 && octet <= 31 {
				return true
			}
		}
	}
	return false
}
