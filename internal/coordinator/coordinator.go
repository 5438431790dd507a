// Package coordinator owns the tenant context: it derives the active tenant
// (authenticated session first, address subdomain as a pre-login hint),
// drives store resets and cache eviction on every boundary crossing, and
// relays changes through the sync bus.
package coordinator

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"foyer/pkg/branding"
	"foyer/pkg/querycache"
	"foyer/pkg/registry"
	"foyer/pkg/syncbus"
	"foyer/pkg/tenants"
)

type State int

const (
	StateUnresolved State = iota
	StatePreLogin
	StateAuthenticated
	StateTransitioning
)

func (s State) String() string {
	switch s {
	case StatePreLogin:
		return "prelogin"
	case StateAuthenticated:
		return "authenticated"
	case StateTransitioning:
		return "transitioning"
	default:
		return "unresolved"
	}
}

// Snapshot is the reactive view the UI layer subscribes to.
type Snapshot struct {
	TenantID  string `json:"tenantId"`
	Subdomain string `json:"subdomain"`
	Valid     bool   `json:"isTenantValid"`
	State     string `json:"state"`
}

type Coordinator struct {
	log      *zap.SugaredLogger
	reg      *registry.Registry
	bus      *syncbus.Bus
	cache    querycache.Cache
	branding *branding.Cache

	mu     sync.Mutex
	state  State
	source tenants.Source

	obsMu     sync.Mutex
	observers map[int]chan Snapshot
	nextObs   int

	busUnsub func()
}

func New(log *zap.SugaredLogger, reg *registry.Registry, bus *syncbus.Bus, cache querycache.Cache, brand *branding.Cache) *Coordinator {
	c := &Coordinator{
		log:       log,
		reg:       reg,
		bus:       bus,
		cache:     cache,
		branding:  brand,
		state:     StateUnresolved,
		source:    tenants.None{},
		observers: map[int]chan Snapshot{},
	}
	c.busUnsub = bus.OnTenantChange(c.onRemoteChange)
	return c
}

// Snapshot returns the current tenant view.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Coordinator) snapshotLocked() Snapshot {
	return Snapshot{
		TenantID:  tenants.TenantID(c.source),
		Subdomain: tenants.Subdomain(c.source),
		Valid:     c.state == StateAuthenticated,
		State:     c.state.String(),
	}
}

// CurrentTenantID returns the authenticated tenant id, "" otherwise.
func (c *Coordinator) CurrentTenantID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return tenants.TenantID(c.source)
}

// Subscribe returns a channel of snapshots plus an unsubscribe func. The
// channel is buffered and lossy: a slow consumer sees the latest state, not
// every intermediate one.
func (c *Coordinator) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	c.obsMu.Lock()
	id := c.nextObs
	c.nextObs++
	c.observers[id] = ch
	c.obsMu.Unlock()
	ch <- c.Snapshot()
	return ch, func() {
		c.obsMu.Lock()
		delete(c.observers, id)
		c.obsMu.Unlock()
	}
}

func (c *Coordinator) publish(s Snapshot) {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()
	for _, ch := range c.observers {
		select {
		case ch <- s:
		default:
			// drop the stale snapshot, replace with the fresh one
			select {
			case <-ch:
			default:
			}
			ch <- s
		}
	}
}

// ResolveSubdomain installs a pre-login subdomain hint. A no-op once a
// session is authenticated: the session-derived tenant always wins.
func (c *Coordinator) ResolveSubdomain(subdomain string) {
	if subdomain == "" {
		return
	}
	c.mu.Lock()
	if c.state != StateUnresolved && c.state != StatePreLogin {
		c.mu.Unlock()
		return
	}
	c.state = StatePreLogin
	c.source = tenants.PreLoginSubdomain{Subdomain: subdomain}
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)
}

// SetTenant crosses a tenant boundary after login, bootstrap, or
// impersonation. The cascade order is fixed: evict the old tenant's shared
// cache entries, reset every registered store to the new tenant, notify
// sibling contexts, then warm branding if needed.
func (c *Coordinator) SetTenant(ctx context.Context, tenantID string) {
	c.mu.Lock()
	prev := tenants.TenantID(c.source)
	if c.state == StateAuthenticated && prev == tenantID {
		c.mu.Unlock()
		return
	}
	c.state = StateTransitioning
	c.mu.Unlock()

	c.cascade(ctx, prev, tenantID, true)

	c.mu.Lock()
	c.state = StateAuthenticated
	c.source = tenants.Authenticated{TenantID: tenantID}
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)
	c.log.Infow("tenant context switched", "from", prev, "to", tenantID)
}

// ResetTenant tears down all tenant context on logout or session expiry.
func (c *Coordinator) ResetTenant(ctx context.Context) {
	c.mu.Lock()
	if c.state == StateUnresolved {
		c.mu.Unlock()
		return
	}
	prev := tenants.TenantID(c.source)
	c.state = StateTransitioning
	c.mu.Unlock()

	if err := c.cache.Clear(ctx); err != nil {
		c.log.Warnw("query cache clear failed", "err", err)
	}
	c.reg.ClearAll()
	c.bus.NotifyTenantChange(ctx, "")

	c.mu.Lock()
	c.state = StateUnresolved
	c.source = tenants.None{}
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)
	c.log.Infow("tenant context cleared", "from", prev)
}

// onRemoteChange applies a boundary crossing announced by a sibling context.
// Same cascade, but never re-notifies the bus (the bus already suppressed
// echoes; notifying again would ping-pong).
func (c *Coordinator) onRemoteChange(tenantID string) {
	ctx := context.Background()
	c.mu.Lock()
	prev := tenants.TenantID(c.source)
	c.state = StateTransitioning
	c.mu.Unlock()

	if tenantID == "" {
		if err := c.cache.Clear(ctx); err != nil {
			c.log.Warnw("query cache clear failed", "err", err)
		}
		c.reg.ClearAll()
		c.mu.Lock()
		c.state = StateUnresolved
		c.source = tenants.None{}
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.publish(snap)
		return
	}

	c.cascade(ctx, prev, tenantID, false)
	c.mu.Lock()
	c.state = StateAuthenticated
	c.source = tenants.Authenticated{TenantID: tenantID}
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)
	c.log.Infow("tenant context adopted from sibling", "from", prev, "to", tenantID)
}

func (c *Coordinator) cascade(ctx context.Context, prev, next string, notify bool) {
	if prev != "" && prev != next {
		if err := c.cache.Invalidate(ctx, querycache.TenantPredicate(prev)); err != nil {
			c.log.Warnw("query cache invalidate failed", "tenant", prev, "err", err)
		}
	}
	c.reg.ResetAll(next)
	if notify {
		c.bus.NotifyTenantChange(ctx, next)
	}
	if c.branding != nil && !c.branding.Cached(next) {
		if _, err := c.branding.Load(ctx, next); err != nil {
			c.log.Warnw("branding warm failed", "tenant", next, "err", err)
		}
	}
}

// Close detaches from the sync bus.
func (c *Coordinator) Close() {
	if c.busUnsub != nil {
		c.busUnsub()
	}
}
