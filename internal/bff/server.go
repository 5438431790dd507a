package bff

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"foyer/pkg/middleware"
)

// Handler builds the HTTP handler with routes and middleware.
func (a *App) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recover(a.log))
	r.Use(middleware.Tracing(a.cfg, a.log))
	r.Use(middleware.WithSubdomain(a.cfg.TenantQueryParam))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api/v1", func(ar chi.Router) {
		ar.Post("/auth/login", a.postLogin)
		ar.Post("/auth/refresh", a.postRefresh)
		ar.Post("/auth/logout", a.postLogout)
		ar.Get("/auth/me", a.getMe)
		ar.Get("/tenant/context", a.getTenantContext)
		ar.Get("/tenant/branding", a.getBranding)
		ar.Get("/tenant/stores", a.getStores)
	})

	return r
}
