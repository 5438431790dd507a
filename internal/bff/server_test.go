package bff

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"foyer/internal/coordinator"
	"foyer/pkg/branding"
	"foyer/pkg/config"
	"foyer/pkg/endpoints"
	"foyer/pkg/querycache"
	"foyer/pkg/registry"
	"foyer/pkg/session"
	"foyer/pkg/syncbus"
	"foyer/pkg/tenants"
)

// fakeUpstream is the auth + branding origin the bff fronts.
type fakeUpstream struct {
	mux        *http.ServeMux
	srv        *httptest.Server
	loginCalls int
	logoutOK   bool
}

func newFakeUpstream(t *testing.T) *fakeUpstream {
	t.Helper()
	f := &fakeUpstream{mux: http.NewServeMux()}
	f.mux.HandleFunc("/api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		f.loginCalls++
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Password != "hunter2" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"bad credentials"}`))
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "foyer_rt", Value: "rt-1", Path: "/", HttpOnly: true})
		_ = json.NewEncoder(w).Encode(map[string]any{
			"accessToken": "tok-1",
			"user":        map[string]string{"id": "u1", "email": req.Email, "tenantId": "t1"},
		})
	})
	f.mux.HandleFunc("/api/v1/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("foyer_rt"); err != nil || c.Value == "" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"no refresh artifact"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"accessToken": "tok-2",
			"user":        map[string]string{"id": "u1", "tenantId": "t1"},
		})
	})
	f.mux.HandleFunc("/api/v1/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		f.logoutOK = true
		http.SetCookie(w, &http.Cookie{Name: "foyer_rt", Value: "", Path: "/", MaxAge: -1})
		_, _ = w.Write([]byte(`{}`))
	})
	f.mux.HandleFunc("/api/v1/branding", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"logoUrl":      "https://cdn.example.com/t1.png",
			"primaryColor": "#112233",
		})
	})
	f.srv = httptest.NewServer(f.mux)
	t.Cleanup(f.srv.Close)
	return f
}

// newTestApp wires the app the same way cmd/bff-service does, against the
// fake upstream, and returns the bff's own test server.
func newTestApp(t *testing.T, up *fakeUpstream) (*httptest.Server, *coordinator.Coordinator) {
	t.Helper()
	log := zap.NewNop().Sugar()
	cfg := config.Config{TenantQueryParam: "tenant"}

	transport := &session.Transport{Base: http.DefaultTransport}
	router := endpoints.NewRouter(log, up.srv.URL+"/api/v1", "/api/v1", 5*time.Second, transport)
	sessions := session.NewManager(log, router.AuthHandle(), session.Options{RefreshCookieName: "foyer_rt"}, nil)
	transport.Manager = sessions

	provider := tenants.NewMemoryProvider(log, "", `[{"tenantId":"t1","subdomain":"acme","installationMode":"SHARED"}]`)
	reg := registry.New(log, nil)
	bus := syncbus.New(log, syncbus.NewLocalBroadcaster(), "")
	brand := branding.NewCache(log, &branding.HTTPFetcher{Router: router, Provider: provider, Path: "/branding"}, time.Minute, nil)
	brand.RegisterInto(reg)
	coord := coordinator.New(log, reg, bus, querycache.NewMemory(), brand)
	t.Cleanup(coord.Close)
	sessions.OnSessionEnd(func() { coord.ResetTenant(context.Background()) })

	app := New(log, cfg, sessions, coord, brand, reg)
	srv := httptest.NewServer(app.Handler())
	t.Cleanup(srv.Close)
	return srv, coord
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestApp(t, newFakeUpstream(t))
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, decode(t, resp)["ok"])
}

func TestLoginEstablishesTenantContext(t *testing.T) {
	up := newFakeUpstream(t)
	srv, coord := newTestApp(t, up)

	resp := postJSON(t, srv.URL+"/api/v1/auth/login", map[string]string{"email": "a@acme.test", "password": "hunter2"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)

	user := body["user"].(map[string]any)
	assert.Equal(t, "t1", user["tenantId"])
	tenant := body["tenant"].(map[string]any)
	assert.Equal(t, "t1", tenant["tenantId"])
	assert.Equal(t, true, tenant["isTenantValid"])
	assert.Equal(t, "t1", coord.CurrentTenantID())

	// login warmed branding through the cascade
	resp, err := http.Get(srv.URL + "/api/v1/tenant/branding")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rec := decode(t, resp)
	payload := rec["payload"].(map[string]any)
	assert.Equal(t, "#112233", payload["primaryColor"])
}

func TestLoginRejected(t *testing.T) {
	up := newFakeUpstream(t)
	srv, coord := newTestApp(t, up)

	resp := postJSON(t, srv.URL+"/api/v1/auth/login", map[string]string{"email": "a@acme.test", "password": "wrong"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))
	assert.Equal(t, "", coord.CurrentTenantID())
}

func TestMeRequiresSession(t *testing.T) {
	srv, _ := newTestApp(t, newFakeUpstream(t))
	resp, err := http.Get(srv.URL + "/api/v1/auth/me")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLogoutTearsDownTenantContext(t *testing.T) {
	up := newFakeUpstream(t)
	srv, coord := newTestApp(t, up)

	resp := postJSON(t, srv.URL+"/api/v1/auth/login", map[string]string{"email": "a@acme.test", "password": "hunter2"})
	resp.Body.Close()
	require.Equal(t, "t1", coord.CurrentTenantID())

	resp = postJSON(t, srv.URL+"/api/v1/auth/logout", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, up.logoutOK)
	assert.Equal(t, "", coord.CurrentTenantID())

	resp, err := http.Get(srv.URL + "/api/v1/auth/me")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestTenantContextPreLoginHint(t *testing.T) {
	srv, _ := newTestApp(t, newFakeUpstream(t))

	resp, err := http.Get(srv.URL + "/api/v1/tenant/context?tenant=acme")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap := decode(t, resp)
	assert.Equal(t, "acme", snap["subdomain"])
	assert.Equal(t, "", snap["tenantId"])
	assert.Equal(t, false, snap["isTenantValid"])
	assert.Equal(t, "prelogin", snap["state"])
}

func TestStoresEndpoint(t *testing.T) {
	up := newFakeUpstream(t)
	srv, _ := newTestApp(t, up)

	resp := postJSON(t, srv.URL+"/api/v1/auth/login", map[string]string{"email": "a@acme.test", "password": "hunter2"})
	resp.Body.Close()

	resp, err := http.Get(srv.URL + "/api/v1/tenant/stores")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	assert.Contains(t, body["registered"], "branding")
	assert.NotEmpty(t, body["history"])
}
