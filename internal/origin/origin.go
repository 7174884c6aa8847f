// Package origin matches browser origins against a per-site allow-list.
// It gates every widget endpoint, including CORS preflights.
package origin

import (
	"net/url"
	"path"
	"strings"
)

// HostAllowed reports whether host matches any entry of the allow-list.
// Entries are evaluated in order with the following rules:
//
//	"*"              allows everything
//	"*.example.com"  matches example.com and any subdomain of it
//	"app-*.corp.io"  embedded wildcards are treated as a glob
//	"example.com"    exact match, or host is a subdomain of the entry
func HostAllowed(host string, allowed []string) bool {
	host = normalizeHost(host)
	if host == "" {
		return false
	}

	for _, entry := range allowed {
		entry = normalizeHost(entry)
		if entry == "" {
			continue
		}

		if entry == "*" {
			return true
		}

		if suffix, ok := strings.CutPrefix(entry, "*."); ok {
			if host == suffix || strings.HasSuffix(host, "."+suffix) {
				return true
			}
			continue
		}

		if strings.Contains(entry, "*") {
			if matched, err := path.Match(entry, host); err == nil && matched {
				return true
			}
			continue
		}

		if host == entry || strings.HasSuffix(host, "."+entry) {
			return true
		}
	}

	return false
}

// HostFromRequest extracts the host to validate from the Origin header,
// falling back to the page_url parameter when the header is absent.
func HostFromRequest(originHeader, pageURL string) string {
	if host := hostOf(originHeader); host != "" {
		return host
	}
	return hostOf(pageURL)
}

// AllowOrigin resolves the concrete origin string to echo back in
// Access-Control-Allow-Origin. We always echo the request origin rather
// than "*" because widget requests carry cookies.
func AllowOrigin(originHeader string, allowed []string) (string, bool) {
	host := hostOf(originHeader)
	if host == "" || !HostAllowed(host, allowed) {
		return "", false
	}
	return strings.TrimSuffix(originHeader, "/"), true
}

func hostOf(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		return normalizeHost(raw)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return normalizeHost(u.Hostname())
}

func normalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	host = strings.TrimSuffix(host, ".")
	if idx := strings.LastIndex(host, ":"); idx > 0 && !strings.Contains(host, "]") {
		host = host[:idx]
	}
	return host
}
