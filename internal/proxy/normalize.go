package proxy

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
)

// protocolRepair matches scheme separators mangled by upstream
// path-segment routing, which collapses "https://" to "https:/".
var protocolRepair = regexp.MustCompile(`(?i)^(https?):/+`)

// NormalizeTarget repairs and validates a proxied target URL.
// "https:/example.com/x" and "https://example.com/x" both normalize to
// the latter; anything without an http(s) scheme is rejected.
func NormalizeTarget(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty target url")
	}

	if m := protocolRepair.FindStringSubmatch(raw); m != nil {
		raw = strings.ToLower(m[1]) + "://" + raw[len(m[0]):]
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid target url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("target url missing host")
	}
	return u, nil
}

// GuardPrivate rejects targets that resolve into the service's own
// network: loopback, RFC1918/link-local ranges, and the cloud metadata
// endpoint. A recording proxy fetches arbitrary user-supplied URLs, so
// without this it is an SSRF primitive.
func GuardPrivate(u *url.URL) error {
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("target url missing host")
	}

	lower := strings.ToLower(host)
	if lower == "localhost" || strings.HasSuffix(lower, ".localhost") || lower == "metadata.google.internal" {
		return fmt.Errorf("target host %q is not allowed", host)
	}

	ip := net.ParseIP(host)
	if ip == nil {
		// Hostname targets are resolved by the transport; re-resolution
		// tricks are out of scope for a best-effort guard.
		return nil
	}
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified() {
		return fmt.Errorf("target address %q is not allowed", host)
	}
	return nil
}
