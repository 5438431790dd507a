package syncbus

import (
	"context"

	evbus "github.com/asaskevich/EventBus"
	"github.com/redis/go-redis/v9"
)

// Broadcaster is the origin-scoped broadcast primitive behind the bus. The
// mechanism is swappable: redis pub/sub fans out across processes, EventBus
// stays in-process, and the no-op variant is the degraded mode when neither
// is available.
type Broadcaster interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	// Subscribe registers a handler and returns an unsubscribe func.
	Subscribe(topic string, handler func(payload []byte)) (func(), error)
	Available() bool
	Close() error
}

// --- redis ---

type redisBroadcaster struct {
	rdb  *redis.Client
	subs []*redis.PubSub
}

// NewRedisBroadcaster fans messages out over redis pub/sub channels. Returns
// a no-op broadcaster when rdb is nil so callers never need to branch.
func NewRedisBroadcaster(rdb *redis.Client) Broadcaster {
	if rdb == nil {
		return NewNoopBroadcaster()
	}
	return &redisBroadcaster{rdb: rdb}
}

func (b *redisBroadcaster) Publish(ctx context.Context, topic string, payload []byte) error {
	return b.rdb.Publish(ctx, topic, payload).Err()
}

func (b *redisBroadcaster) Subscribe(topic string, handler func([]byte)) (func(), error) {
	ps := b.rdb.Subscribe(context.Background(), topic)
	if _, err := ps.Receive(context.Background()); err != nil {
		_ = ps.Close()
		return nil, err
	}
	b.subs = append(b.subs, ps)
	go func() {
		for msg := range ps.Channel() {
			handler([]byte(msg.Payload))
		}
	}()
	return func() { _ = ps.Close() }, nil
}

func (b *redisBroadcaster) Available() bool { return true }

func (b *redisBroadcaster) Close() error {
	for _, ps := range b.subs {
		_ = ps.Close()
	}
	return nil
}

// --- in-process ---

type localBroadcaster struct {
	bus evbus.Bus
}

// NewLocalBroadcaster wraps an in-process event bus. Used in single-process
// deployments and tests; delivery is synchronous within the process.
func NewLocalBroadcaster() Broadcaster {
	return &localBroadcaster{bus: evbus.New()}
}

func (b *localBroadcaster) Publish(ctx context.Context, topic string, payload []byte) error {
	b.bus.Publish(topic, payload)
	return nil
}

func (b *localBroadcaster) Subscribe(topic string, handler func([]byte)) (func(), error) {
	fn := func(payload []byte) { handler(payload) }
	if err := b.bus.Subscribe(topic, fn); err != nil {
		return nil, err
	}
	return func() { _ = b.bus.Unsubscribe(topic, fn) }, nil
}

func (b *localBroadcaster) Available() bool { return true }
func (b *localBroadcaster) Close() error    { return nil }

// --- degraded ---

type noopBroadcaster struct{}

// NewNoopBroadcaster is the best-effort degraded mode: cross-context sync is
// silently disabled, correctness within one process is unaffected.
func NewNoopBroadcaster() Broadcaster { return noopBroadcaster{} }

func (noopBroadcaster) Publish(context.Context, string, []byte) error { return nil }
func (noopBroadcaster) Subscribe(string, func([]byte)) (func(), error) {
	return func() {}, nil
}
func (noopBroadcaster) Available() bool { return false }
func (noopBroadcaster) Close() error    { return nil }
