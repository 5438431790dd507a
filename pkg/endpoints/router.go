package endpoints

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"foyer/pkg/tenants"
)

// Router resolves a tenant descriptor to the transport handle for its backend.
// One handle exists per distinct normalized target URL; ONPREMISE and HYBRID
// tenants with a valid local endpoint get their own handle, everything else
// shares the central one. Auth traffic is pinned to the central handle via
// AuthHandle because login happens before any tenant is known.
type Router struct {
	log        *zap.SugaredLogger
	apiSegment string
	timeout    time.Duration
	transport  http.RoundTripper

	central *Handle
	auth    *Handle
	mu      sync.RWMutex
	byURL   map[string]*Handle
}

func NewRouter(log *zap.SugaredLogger, centralBaseURL, apiSegment string, timeout time.Duration, transport http.RoundTripper) *Router {
	if transport == nil {
		transport = http.DefaultTransport
	}
	jar, _ := cookiejar.New(nil)
	return &Router{
		log:        log,
		apiSegment: "/" + strings.Trim(apiSegment, "/"),
		timeout:    timeout,
		transport:  transport,
		central:    newHandle(centralBaseURL, timeout, transport),
		auth:       newHandleWithJar(centralBaseURL, timeout, transport, jar),
		byURL:      map[string]*Handle{},
	}
}

// Central returns the singleton central handle.
func (r *Router) Central() *Handle { return r.central }

// AuthHandle returns the handle auth endpoints must use, regardless of
// tenant: always central (login precedes tenant resolution), with a cookie
// jar that carries the HTTP-only refresh artifact between auth calls.
func (r *Router) AuthHandle() *Handle { return r.auth }

// Resolve picks the handle for a tenant. Routing is a pure function of the
// normalized local URL: equal normalized URLs always yield the same handle
// instance. An invalid local URL falls back to central with a warning, never
// an error.
func (r *Router) Resolve(d tenants.Descriptor) *Handle {
	if d.Mode != tenants.ModeOnPremise && d.Mode != tenants.ModeHybrid {
		return r.central
	}
	norm, err := r.normalize(d.LocalEndpointURL)
	if err != nil {
		r.log.Warnw("invalid local endpoint, falling back to central",
			"tenant", d.TenantID, "url", d.LocalEndpointURL, "err", err)
		return r.central
	}
	r.mu.RLock()
	h, ok := r.byURL[norm]
	r.mu.RUnlock()
	if ok {
		return h
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.byURL[norm]; ok {
		return h
	}
	h = newHandle(norm, r.timeout, r.transport)
	r.byURL[norm] = h
	r.log.Infow("tenant-local handle created", "tenant", d.TenantID, "base", norm)
	return h
}

// normalize validates an absolute http(s) URL and appends the API path
// segment when absent.
func (r *Router) normalize(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", &url.Error{Op: "parse", URL: raw, Err: errNotAbsoluteHTTP}
	}
	u.Path = strings.TrimRight(u.Path, "/")
	if !strings.HasSuffix(u.Path, r.apiSegment) {
		u.Path += r.apiSegment
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

var errNotAbsoluteHTTP = errNotHTTP("url must be absolute http or https")

type errNotHTTP string

func (e errNotHTTP) Error() string { return string(e) }
