package tenants

import (
	"net"
	"regexp"
	"strings"
)

var subdomainRe = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

// ValidSubdomain reports whether s is an acceptable tenant subdomain:
// 3-63 characters, lowercase alphanumeric with interior hyphens.
func ValidSubdomain(s string) bool {
	if len(s) < 3 || len(s) > 63 {
		return false
	}
	return subdomainRe.MatchString(s)
}

// SubdomainFromHost extracts the tenant subdomain from a request host.
// The first hostname label counts only when the host has at least two labels
// and is not a loopback or private address. Returns "" when no usable
// subdomain is present.
func SubdomainFromHost(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if host == "" || host == "localhost" {
		return ""
	}
	if ip := net.ParseIP(host); ip != nil {
		return ""
	}
	labels := strings.Split(host, ".")
	if len(labels) < 2 {
		return ""
	}
	if !ValidSubdomain(labels[0]) {
		return ""
	}
	return labels[0]
}

// ResolveSubdomain applies the dev-override rule: an explicit query parameter
// value takes priority over the hostname-derived label.
func ResolveSubdomain(host, override string) string {
	if override = strings.ToLower(strings.TrimSpace(override)); override != "" {
		if ValidSubdomain(override) {
			return override
		}
		return ""
	}
	return SubdomainFromHost(host)
}
