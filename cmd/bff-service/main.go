// cmd/bff-service/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"foyer/internal/bff"
	"foyer/internal/coordinator"
	"foyer/pkg/branding"
	"foyer/pkg/config"
	"foyer/pkg/db"
	"foyer/pkg/endpoints"
	"foyer/pkg/logger"
	"foyer/pkg/querycache"
	"foyer/pkg/registry"
	"foyer/pkg/session"
	"foyer/pkg/syncbus"
	"foyer/pkg/tenants"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)
	metrics := prometheus.DefaultRegisterer

	pool := db.MustConnect(cfg, log)
	rdb := db.MustRedis(cfg, log)

	var directory tenants.Provider
	if pool != nil {
		directory = tenants.NewPostgresProvider(pool, logger.Named(log, "tenants"))
		if err := tenants.EnsureSchema(context.Background(), pool); err != nil {
			log.Fatalw("schema", "err", err)
		}
		if err := tenants.SeedFromEnv(context.Background(), pool, cfg.TenantSeedJSON); err != nil {
			log.Warnw("seed", "err", err)
		}
	} else {
		directory = tenants.NewMemoryProvider(logger.Named(log, "tenants"), cfg.TenantDirectoryFile, cfg.TenantSeedJSON)
	}

	// The credential transport wraps every outbound handle; the manager's own
	// auth traffic bypasses it via the auth category. The manager is attached
	// after construction because it talks through a handle of this router.
	transport := &session.Transport{}
	router := endpoints.NewRouter(logger.Named(log, "endpoints"), cfg.CentralBaseURL, cfg.APIPathSegment, cfg.RequestTimeout, transport)
	sessions := session.NewManager(logger.Named(log, "session"), router.AuthHandle(), session.Options{
		LoginPath:         cfg.AuthLoginPath,
		RefreshPath:       cfg.AuthRefreshPath,
		LogoutPath:        cfg.AuthLogoutPath,
		RefreshCookieName: cfg.RefreshCookieName,
		ExpiryLeeway:      cfg.TokenExpiryLeeway,
	}, metrics)
	transport.Manager = sessions

	stores := registry.New(logger.Named(log, "registry"), metrics)

	var bc syncbus.Broadcaster
	switch {
	case !cfg.CrossContextSync:
		bc = syncbus.NewNoopBroadcaster()
	case rdb != nil:
		bc = syncbus.NewRedisBroadcaster(rdb)
	default:
		bc = syncbus.NewLocalBroadcaster()
	}
	bus := syncbus.New(logger.Named(log, "syncbus"), bc, syncbus.DefaultTopic)
	if !bus.Available() {
		log.Warnw("cross-context sync disabled")
	}

	var qcache querycache.Cache
	if rdb != nil {
		qcache = querycache.NewRedis(rdb, 15*time.Minute)
	} else {
		qcache = querycache.NewMemory()
	}

	brand := branding.NewCache(logger.Named(log, "branding"), &branding.HTTPFetcher{
		Router:   router,
		Provider: directory,
		Path:     cfg.BrandingPath,
	}, cfg.SubdomainCacheTTL, metrics)
	brand.RegisterInto(stores)

	coord := coordinator.New(logger.Named(log, "coordinator"), stores, bus, qcache, brand)
	defer coord.Close()
	sessions.OnSessionEnd(func() { coord.ResetTenant(context.Background()) })

	// Silent re-authentication from the persisted refresh artifact.
	if err := sessions.Bootstrap(context.Background()); err == nil {
		if tid := sessions.TenantID(); tid != "" {
			coord.SetTenant(context.Background(), tid)
		}
	} else {
		log.Infow("no persisted session", "reason", err)
	}

	app := bff.New(log, cfg, sessions, coord, brand, stores)
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: app.Handler()}
	go func() {
		log.Infow("bff-service listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("ListenAndServe", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	_ = bus.Close()
	fmt.Println("bff-service stopped")
}
