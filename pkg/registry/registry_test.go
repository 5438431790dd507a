package registry

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRegistry() *Registry {
	return New(zap.NewNop().Sugar(), nil)
}

// tenantStore is a minimal tenant-scoped container for isolation tests.
type tenantStore struct {
	tenant string
	data   map[string]string
}

func (s *tenantStore) put(k, v string) { s.data[k] = v }

func (s *tenantStore) reset(tenantID string) {
	s.tenant = tenantID
	s.data = map[string]string{}
}

func TestResetAllIsolatesTenants(t *testing.T) {
	r := newTestRegistry()
	a := &tenantStore{data: map[string]string{}}
	b := &tenantStore{data: map[string]string{}}
	r.Register("store-a", a.reset, "")
	r.Register("store-b", b.reset, "")

	r.ResetAll("t1")
	a.put("k", "belongs-to-t1")
	b.put("k", "belongs-to-t1")

	r.ResetAll("t2")
	assert.Equal(t, "t2", a.tenant)
	assert.Equal(t, "t2", b.tenant)
	assert.Empty(t, a.data, "no value set under t1 may survive the crossing")
	assert.Empty(t, b.data)
}

func TestResetAllIsolatesFailures(t *testing.T) {
	r := newTestRegistry()
	var okReset []string
	r.Register("bad", func(string) { panic("boom") }, "always fails")
	r.Register("good-1", func(id string) { okReset = append(okReset, "good-1:"+id) }, "")
	r.Register("good-2", func(id string) { okReset = append(okReset, "good-2:"+id) }, "")

	r.ResetAll("t9")

	assert.ElementsMatch(t, []string{"good-1:t9", "good-2:t9"}, okReset)
	hist := r.History()
	require.Len(t, hist, 1)
	assert.Equal(t, []string{"bad"}, hist[0].Failed)
	assert.ElementsMatch(t, []string{"good-1", "good-2"}, hist[0].Stores)
}

func TestHistoryIsBounded(t *testing.T) {
	r := newTestRegistry()
	r.Register("s", func(string) {}, "")
	for i := 0; i < historyCap+13; i++ {
		r.ResetAll(fmt.Sprintf("t%d", i))
	}
	hist := r.History()
	require.Len(t, hist, historyCap)
	// oldest entries fell off the front
	assert.Equal(t, "t13", hist[0].TenantID)
	assert.Equal(t, fmt.Sprintf("t%d", historyCap+12), hist[len(hist)-1].TenantID)
}

func TestClearAllRecordsNullTenant(t *testing.T) {
	r := newTestRegistry()
	var got string
	r.Register("s", func(id string) { got = id }, "")
	r.ResetAll("t1")
	r.ClearAll()
	assert.Equal(t, "", got)
	hist := r.History()
	require.Len(t, hist, 2)
	assert.Equal(t, "", hist[len(hist)-1].TenantID)
}

func TestRegisterOverwrite(t *testing.T) {
	r := newTestRegistry()
	var hit string
	r.Register("dup", func(string) { hit = "first" }, "")
	r.Register("dup", func(string) { hit = "second" }, "")
	require.NoError(t, r.Reset("dup", "t1"))
	assert.Equal(t, "second", hit)
	assert.Equal(t, []string{"dup"}, r.Names())
}

func TestResetUnknownStore(t *testing.T) {
	r := newTestRegistry()
	assert.Error(t, r.Reset("nope", "t1"))
}

func TestUnregister(t *testing.T) {
	r := newTestRegistry()
	called := false
	r.Register("s", func(string) { called = true }, "owned by a torn-down component")
	r.Unregister("s")
	r.ResetAll("t1")
	assert.False(t, called)
	assert.Empty(t, r.Names())
}
