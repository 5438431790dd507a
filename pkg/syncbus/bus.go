// Package syncbus propagates tenant-change events to sibling execution
// contexts of the same origin (other processes, tabs, or workers sharing the
// backend). Sync is best-effort: losing it degrades cross-context freshness,
// never single-context correctness.
package syncbus

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultTopic is the broadcast channel for tenant changes.
	DefaultTopic = "foyer:tenant-changed"

	msgTypeTenantChanged = "tenant-changed"
)

// Message is the wire schema. TenantID is null on logout.
type Message struct {
	Type      string  `json:"type"`
	TenantID  *string `json:"tenantId"`
	Timestamp int64   `json:"timestamp"`
}

type Bus struct {
	log   *zap.SugaredLogger
	bc    Broadcaster
	topic string

	mu       sync.Mutex
	last     string // last-known tenant id, "" = none
	handlers map[int]func(tenantID string)
	nextID   int
	unsub    func()
}

// New wires a bus over the given broadcaster and starts listening. A nil or
// unavailable broadcaster yields a functioning bus with Available() == false.
func New(log *zap.SugaredLogger, bc Broadcaster, topic string) *Bus {
	if bc == nil {
		bc = NewNoopBroadcaster()
	}
	if topic == "" {
		topic = DefaultTopic
	}
	b := &Bus{log: log, bc: bc, topic: topic, handlers: map[int]func(string){}}
	if bc.Available() {
		unsub, err := bc.Subscribe(topic, b.onMessage)
		if err != nil {
			log.Warnw("sync bus subscribe failed, disabling", "err", err)
			b.bc = NewNoopBroadcaster()
		} else {
			b.unsub = unsub
		}
	}
	return b
}

// Available reports whether cross-context propagation is active.
func (b *Bus) Available() bool { return b.bc.Available() }

// CurrentTenantID returns the bus's last-known tenant id ("" when none).
func (b *Bus) CurrentTenantID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}

// OnTenantChange registers a callback for tenant changes observed from
// sibling contexts. Returns an unsubscribe func.
func (b *Bus) OnTenantChange(cb func(tenantID string)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = cb
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}
}

// NotifyTenantChange records the new tenant as last-known and broadcasts it.
// Recording before publishing makes the bus discard its own echo when the
// broadcaster loops messages back.
func (b *Bus) NotifyTenantChange(ctx context.Context, tenantID string) {
	b.mu.Lock()
	b.last = tenantID
	b.mu.Unlock()

	msg := Message{Type: msgTypeTenantChanged, Timestamp: time.Now().UnixMilli()}
	if tenantID != "" {
		msg.TenantID = &tenantID
	}
	payload, _ := json.Marshal(msg)
	if err := b.bc.Publish(ctx, b.topic, payload); err != nil {
		b.log.Warnw("tenant change broadcast failed", "tenant", tenantID, "err", err)
	}
}

func (b *Bus) onMessage(payload []byte) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil || msg.Type != msgTypeTenantChanged {
		return
	}
	incoming := ""
	if msg.TenantID != nil {
		incoming = *msg.TenantID
	}
	b.mu.Lock()
	if incoming == b.last {
		// Echo (or a redundant notify): the local context already believes
		// this tenant is current, so no reset cascade.
		b.mu.Unlock()
		return
	}
	b.last = incoming
	cbs := make([]func(string), 0, len(b.handlers))
	for _, cb := range b.handlers {
		cbs = append(cbs, cb)
	}
	b.mu.Unlock()
	for _, cb := range cbs {
		cb(incoming)
	}
}

// Close detaches from the broadcaster.
func (b *Bus) Close() error {
	if b.unsub != nil {
		b.unsub()
	}
	return b.bc.Close()
}
