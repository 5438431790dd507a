// Package registry is the bookkeeping choke point for tenant-scoped state.
// Every in-memory container that holds tenant data registers a reset callback
// here; ResetAll is the single operation that guarantees no registered store
// exposes data from a previous tenant after a boundary crossing.
package registry

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const historyCap = 50

// ResetFunc receives the new tenant id ("" on logout). Callbacks must be
// synchronous: when ResetAll returns, every reset has completed.
type ResetFunc func(tenantID string)

type entry struct {
	reset       ResetFunc
	description string
}

// ResetRecord describes one ResetAll pass.
type ResetRecord struct {
	TenantID string        `json:"tenantId"`
	Stores   []string      `json:"stores"`
	Failed   []string      `json:"failed,omitempty"`
	Took     time.Duration `json:"tookNs"`
	At       time.Time     `json:"at"`
}

type Registry struct {
	log *zap.SugaredLogger

	mu      sync.Mutex
	entries map[string]entry
	history []ResetRecord

	resets   prometheus.Counter
	failures prometheus.Counter
	passTime prometheus.Histogram
}

func New(log *zap.SugaredLogger, reg prometheus.Registerer) *Registry {
	r := &Registry{
		log:     log,
		entries: map[string]entry{},
		resets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "foyer_store_resets_total", Help: "Individual store reset invocations.",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "foyer_store_reset_failures_total", Help: "Store reset callbacks that panicked.",
		}),
		passTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "foyer_store_reset_pass_seconds", Help: "Duration of full ResetAll passes.",
		}),
	}
	if reg != nil {
		reg.MustRegister(r.resets, r.failures, r.passTime)
	}
	return r
}

// Register installs a reset callback under a unique name. Overwriting an
// existing name is allowed but logged, since it usually means two components
// picked the same name by accident.
func (r *Registry) Register(name string, fn ResetFunc, description string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[name]; exists {
		r.log.Warnw("store re-registered, overwriting", "store", name)
	}
	r.entries[name] = entry{reset: fn, description: description}
}

// Unregister removes a store; only called when its owner is torn down for good.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, name)
}

// Reset invokes a single store's callback.
func (r *Registry) Reset(name, tenantID string) error {
	r.mu.Lock()
	e, ok := r.entries[name]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("store %q not registered", name)
	}
	if err := r.safeReset(name, e.reset, tenantID); err != nil {
		return err
	}
	r.resets.Inc()
	return nil
}

// ResetAll notifies every registered store of a tenant boundary crossing.
// Failures are isolated per store: one panicking callback never blocks the
// rest. A bounded history entry records the pass.
func (r *Registry) ResetAll(tenantID string) {
	r.mu.Lock()
	snapshot := make(map[string]entry, len(r.entries))
	for name, e := range r.entries {
		snapshot[name] = e
	}
	r.mu.Unlock()

	names := make([]string, 0, len(snapshot))
	for name := range snapshot {
		names = append(names, name)
	}
	sort.Strings(names)

	start := time.Now()
	rec := ResetRecord{TenantID: tenantID, At: start}
	for _, name := range names {
		if err := r.safeReset(name, snapshot[name].reset, tenantID); err != nil {
			rec.Failed = append(rec.Failed, name)
			r.failures.Inc()
			continue
		}
		rec.Stores = append(rec.Stores, name)
		r.resets.Inc()
	}
	rec.Took = time.Since(start)
	r.passTime.Observe(rec.Took.Seconds())

	r.mu.Lock()
	r.history = append(r.history, rec)
	if len(r.history) > historyCap {
		r.history = r.history[len(r.history)-historyCap:]
	}
	r.mu.Unlock()
	r.log.Infow("store reset pass", "tenant", tenantID,
		"stores", len(rec.Stores), "failed", len(rec.Failed), "took", rec.Took)
}

// ClearAll resets every store with no tenant (logout).
func (r *Registry) ClearAll() { r.ResetAll("") }

func (r *Registry) safeReset(name string, fn ResetFunc, tenantID string) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("store %q reset panicked: %v", name, rec)
			r.log.Errorw("store reset failed", "store", name, "err", rec)
		}
	}()
	fn(tenantID)
	return nil
}

// Names lists registered store names, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe returns the registration description for a store, or "".
func (r *Registry) Describe(name string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[name].description
}

// History returns a copy of the bounded reset history, oldest first.
func (r *Registry) History() []ResetRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ResetRecord, len(r.history))
	copy(out, r.history)
	return out
}
