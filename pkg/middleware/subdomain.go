// pkg/middleware/subdomain.go
package middleware

import (
	"context"
	"net/http"

	"foyer/pkg/tenants"
)

type ctxSubdomainKey struct{}

// WithSubdomain attaches the pre-login subdomain hint derived from the request
// host (or the dev-override query parameter) to the request context. Health
// and metrics endpoints skip resolution. The hint is presentation-only; it is
// never consulted as a trust boundary.
func WithSubdomain(queryParam string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/healthz", "/metrics":
				next.ServeHTTP(w, r)
				return
			}
			sub := tenants.ResolveSubdomain(r.Host, r.URL.Query().Get(queryParam))
			if sub != "" {
				ctx := context.WithValue(r.Context(), ctxSubdomainKey{}, sub)
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SubdomainFrom returns the subdomain hint stored by WithSubdomain, or "".
func SubdomainFrom(ctx context.Context) string {
	if v := ctx.Value(ctxSubdomainKey{}); v != nil {
		return v.(string)
	}
	return ""
}
