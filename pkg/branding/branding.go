// Package branding caches tenant presentation configuration, partitioned by
// tenant id with a parallel short-lived partition keyed by subdomain for
// pre-login use. Recovery policy differs by failure class: a missing config
// (404/400) silently becomes the built-in default, a server failure (5xx)
// is surfaced so stale-looking data is never presented as correct.
package branding

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"foyer/pkg/endpoints"
	"foyer/pkg/registry"
)

const (
	DefaultPrimaryColor   = "#1976D2"
	DefaultSecondaryColor = "#424242"

	storeName = "branding"
)

// Payload is the wire shape of a tenant's presentation configuration.
type Payload struct {
	LogoURL        string         `json:"logoUrl"`
	FaviconURL     string         `json:"faviconUrl"`
	PrimaryColor   string         `json:"primaryColor"`
	SecondaryColor string         `json:"secondaryColor"`
	CustomTheme    map[string]any `json:"customTheme"`
}

// Record is one cached branding entry.
type Record struct {
	TenantID    string    `json:"tenantId,omitempty"`
	Subdomain   string    `json:"subdomain,omitempty"`
	Payload     Payload   `json:"payload"`
	Loading     bool      `json:"loading"`
	Err         string    `json:"error,omitempty"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// Defaults returns the built-in fallback configuration.
func Defaults() Payload {
	return Payload{PrimaryColor: DefaultPrimaryColor, SecondaryColor: DefaultSecondaryColor}
}

// Fetcher loads branding from the backend. Implemented over the endpoint
// router; swapped for a stub in tests.
type Fetcher interface {
	FetchTenant(ctx context.Context, tenantID string) (Payload, error)
	FetchSubdomain(ctx context.Context, subdomain string) (Payload, error)
}

type subEntry struct {
	rec     Record
	expires time.Time
}

type Cache struct {
	log   *zap.SugaredLogger
	fetch Fetcher
	ttl   time.Duration
	clock func() time.Time

	mu       sync.Mutex
	byTenant map[string]Record
	bySub    map[string]subEntry

	hits   prometheus.Counter
	misses prometheus.Counter
}

func NewCache(log *zap.SugaredLogger, fetch Fetcher, subdomainTTL time.Duration, reg prometheus.Registerer) *Cache {
	if subdomainTTL <= 0 {
		subdomainTTL = 5 * time.Minute
	}
	c := &Cache{
		log:      log,
		fetch:    fetch,
		ttl:      subdomainTTL,
		clock:    time.Now,
		byTenant: map[string]Record{},
		bySub:    map[string]subEntry{},
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "foyer_branding_cache_hits_total", Help: "Branding served from cache.",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "foyer_branding_cache_misses_total", Help: "Branding fetched from backend.",
		}),
	}
	if reg != nil {
		reg.MustRegister(c.hits, c.misses)
	}
	return c
}

// RegisterInto hooks the tenant partition into the store registry so tenant
// boundary crossings evict every other tenant's records.
func (c *Cache) RegisterInto(r *registry.Registry) {
	r.Register(storeName, func(tenantID string) {
		c.mu.Lock()
		defer c.mu.Unlock()
		for id := range c.byTenant {
			if id != tenantID {
				delete(c.byTenant, id)
			}
		}
	}, "tenant branding records")
}

// Load returns the branding for a tenant, fetching on first use.
func (c *Cache) Load(ctx context.Context, tenantID string) (Record, error) {
	c.mu.Lock()
	if rec, ok := c.byTenant[tenantID]; ok && !rec.Loading {
		c.mu.Unlock()
		c.hits.Inc()
		return rec, nil
	}
	c.byTenant[tenantID] = Record{TenantID: tenantID, Loading: true}
	c.mu.Unlock()
	c.misses.Inc()

	payload, err := c.fetch.FetchTenant(ctx, tenantID)
	rec, err := c.settle(Record{TenantID: tenantID}, payload, err)
	c.mu.Lock()
	if err != nil {
		// server failures are not cached; the next load retries
		delete(c.byTenant, tenantID)
	} else {
		c.byTenant[tenantID] = rec
	}
	c.mu.Unlock()
	return rec, err
}

// LoadForSubdomain is the pre-login path; entries carry a short TTL because
// nothing authoritative confirms the subdomain maps to a real tenant yet.
func (c *Cache) LoadForSubdomain(ctx context.Context, subdomain string) (Record, error) {
	now := c.clock()
	c.mu.Lock()
	if e, ok := c.bySub[subdomain]; ok && now.Before(e.expires) && !e.rec.Loading {
		c.mu.Unlock()
		c.hits.Inc()
		return e.rec, nil
	}
	c.mu.Unlock()
	c.misses.Inc()

	payload, err := c.fetch.FetchSubdomain(ctx, subdomain)
	rec, err := c.settle(Record{Subdomain: subdomain}, payload, err)
	c.mu.Lock()
	if err != nil {
		delete(c.bySub, subdomain)
	} else {
		c.bySub[subdomain] = subEntry{rec: rec, expires: now.Add(c.ttl)}
	}
	c.mu.Unlock()
	return rec, err
}

// settle applies the error-recovery taxonomy to a fetch result.
func (c *Cache) settle(rec Record, payload Payload, err error) (Record, error) {
	rec.Loading = false
	rec.LastUpdated = c.clock()
	if err == nil {
		rec.Payload = withDefaults(payload)
		return rec, nil
	}
	var apiErr *endpoints.APIError
	if errors.As(err, &apiErr) && (apiErr.Status == 404 || apiErr.Status == 400) {
		// Recoverable-with-default: tenant simply has no custom branding.
		rec.Payload = Defaults()
		rec.Err = err.Error()
		return rec, nil
	}
	// Fatal-server (5xx) or transport failure: surface, never substitute.
	rec.Err = err.Error()
	c.log.Warnw("branding fetch failed", "tenant", rec.TenantID, "subdomain", rec.Subdomain, "err", err)
	return rec, err
}

// Active selects the record to display: authenticated tenant id wins, then an
// unexpired subdomain entry, then defaults.
func (c *Cache) Active(tenantID, subdomain string) Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	if tenantID != "" {
		if rec, ok := c.byTenant[tenantID]; ok {
			return rec
		}
	}
	if subdomain != "" {
		if e, ok := c.bySub[subdomain]; ok && c.clock().Before(e.expires) {
			return e.rec
		}
	}
	return Record{Payload: Defaults()}
}

// Invalidate drops a single tenant's record.
func (c *Cache) Invalidate(tenantID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byTenant, tenantID)
}

// Clear drops both partitions.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byTenant = map[string]Record{}
	c.bySub = map[string]subEntry{}
}

// Cached reports whether a settled record exists for the tenant.
func (c *Cache) Cached(tenantID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.byTenant[tenantID]
	return ok && !rec.Loading
}

func withDefaults(p Payload) Payload {
	if p.PrimaryColor == "" {
		p.PrimaryColor = DefaultPrimaryColor
	}
	if p.SecondaryColor == "" {
		p.SecondaryColor = DefaultSecondaryColor
	}
	return p
}
