package syncbus

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func nopLog() *zap.SugaredLogger { return zap.NewNop().Sugar() }

func TestLocalBusPropagates(t *testing.T) {
	bc := NewLocalBroadcaster()
	a := New(nopLog(), bc, "test:topic")
	b := New(nopLog(), bc, "test:topic")
	defer a.Close()

	var got []string
	b.OnTenantChange(func(id string) { got = append(got, id) })

	a.NotifyTenantChange(context.Background(), "t1")
	assert.Equal(t, []string{"t1"}, got)
	assert.Equal(t, "t1", a.CurrentTenantID())
	assert.Equal(t, "t1", b.CurrentTenantID())
}

func TestEchoSuppression(t *testing.T) {
	bc := NewLocalBroadcaster()
	a := New(nopLog(), bc, "test:topic")

	// a's own broadcast loops back through the shared broadcaster but must
	// not re-trigger a's handlers
	var selfHits int
	a.OnTenantChange(func(string) { selfHits++ })
	a.NotifyTenantChange(context.Background(), "t1")
	assert.Zero(t, selfHits)
}

func TestIdempotentNotify(t *testing.T) {
	bc := NewLocalBroadcaster()
	a := New(nopLog(), bc, "test:topic")
	b := New(nopLog(), bc, "test:topic")

	var hits int
	b.OnTenantChange(func(string) { hits++ })

	a.NotifyTenantChange(context.Background(), "t1")
	a.NotifyTenantChange(context.Background(), "t1")
	// b already believes t1 is current; the second notify is discarded
	assert.Equal(t, 1, hits)
}

func TestNullTenantOnLogout(t *testing.T) {
	bc := NewLocalBroadcaster()
	a := New(nopLog(), bc, "test:topic")
	b := New(nopLog(), bc, "test:topic")

	var got []string
	b.OnTenantChange(func(id string) { got = append(got, id) })

	a.NotifyTenantChange(context.Background(), "t1")
	a.NotifyTenantChange(context.Background(), "")
	assert.Equal(t, []string{"t1", ""}, got)
	assert.Equal(t, "", b.CurrentTenantID())
}

func TestUnsubscribe(t *testing.T) {
	bc := NewLocalBroadcaster()
	a := New(nopLog(), bc, "test:topic")
	b := New(nopLog(), bc, "test:topic")

	var hits int
	unsub := b.OnTenantChange(func(string) { hits++ })
	unsub()
	a.NotifyTenantChange(context.Background(), "t1")
	assert.Zero(t, hits)
}

func TestNoopBusDegrades(t *testing.T) {
	b := New(nopLog(), nil, "")
	assert.False(t, b.Available())
	// still safe to use within a single context
	b.NotifyTenantChange(context.Background(), "t1")
	assert.Equal(t, "t1", b.CurrentTenantID())
}

func TestMalformedMessageIgnored(t *testing.T) {
	bc := NewLocalBroadcaster()
	b := New(nopLog(), bc, "test:topic")
	var hits int
	b.OnTenantChange(func(string) { hits++ })

	require.NoError(t, bc.Publish(context.Background(), "test:topic", []byte("not json")))
	require.NoError(t, bc.Publish(context.Background(), "test:topic", []byte(`{"type":"other","tenantId":"x"}`)))
	assert.Zero(t, hits)
}

func TestRedisBusPropagates(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	bc := NewRedisBroadcaster(rdb)
	a := New(nopLog(), bc, "test:topic")
	b := New(nopLog(), bc, "test:topic")
	t.Cleanup(func() { _ = a.Close() })

	done := make(chan string, 1)
	b.OnTenantChange(func(id string) { done <- id })

	a.NotifyTenantChange(context.Background(), "t7")
	select {
	case id := <-done:
		assert.Equal(t, "t7", id)
	case <-time.After(3 * time.Second):
		t.Fatal("tenant change never reached sibling over redis")
	}
	assert.Equal(t, "t7", b.CurrentTenantID())
}

func TestRedisBroadcasterNilClient(t *testing.T) {
	bc := NewRedisBroadcaster(nil)
	assert.False(t, bc.Available())
}
