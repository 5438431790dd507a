// pkg/config/config.go
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	HTTPAddr string

	// Central backend. Tenant-local backends are resolved per tenant by the
	// endpoint router; the central base is the fallback for everything else.
	CentralBaseURL string
	APIPathSegment string
	RequestTimeout time.Duration

	// Auth upstream (always central; login must succeed before a tenant is known).
	AuthLoginPath     string
	AuthRefreshPath   string
	AuthLogoutPath    string
	RefreshCookieName string

	// Proactive refresh happens when the access token expires within this window.
	TokenExpiryLeeway time.Duration

	// Branding
	BrandingPath      string
	SubdomainCacheTTL time.Duration

	// Query parameter that overrides hostname-derived subdomain (local dev).
	TenantQueryParam string

	// Cross-context sync can be switched off for single-context deployments;
	// the bus then runs in its degraded no-op mode.
	CrossContextSync bool

	// Redis & Postgres (both optional; components degrade to in-memory)
	RedisURL    string
	DatabaseURL string

	// Tenant directory seed (YAML file, or inline JSON like the old deployments)
	TenantDirectoryFile string
	TenantSeedJSON      string
}

func Load() Config {
	_ = godotenv.Load()
	return Config{
		Env:                 env("FOYER_ENV", "dev"),
		HTTPAddr:            env("FOYER_HTTP_ADDR", ":8090"),
		CentralBaseURL:      env("FOYER_CENTRAL_BASE_URL", "http://localhost:8080/api/v1"),
		APIPathSegment:      env("FOYER_API_PATH_SEGMENT", "/api/v1"),
		RequestTimeout:      envDur("FOYER_REQUEST_TIMEOUT_SEC", 30) * time.Second,
		AuthLoginPath:       env("FOYER_AUTH_LOGIN_PATH", "/auth/login"),
		AuthRefreshPath:     env("FOYER_AUTH_REFRESH_PATH", "/auth/refresh"),
		AuthLogoutPath:      env("FOYER_AUTH_LOGOUT_PATH", "/auth/logout"),
		RefreshCookieName:   env("FOYER_REFRESH_COOKIE", "foyer_rt"),
		TokenExpiryLeeway:   envDur("FOYER_TOKEN_LEEWAY_SEC", 30) * time.Second,
		BrandingPath:        env("FOYER_BRANDING_PATH", "/branding"),
		SubdomainCacheTTL:   envDur("FOYER_SUBDOMAIN_CACHE_TTL_SEC", 300) * time.Second,
		TenantQueryParam:    env("FOYER_TENANT_QUERY_PARAM", "tenant"),
		CrossContextSync:    envBool("FOYER_CROSS_CONTEXT_SYNC", true),
		RedisURL:            env("REDIS_URL", ""),
		DatabaseURL:         env("DATABASE_URL", ""),
		TenantDirectoryFile: env("TENANT_DIRECTORY_FILE", ""),
		TenantSeedJSON:      env("TENANT_SEED_JSON", ""),
	}
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envDur(k string, def int) time.Duration {
	if v := os.Getenv(k); v != "" {
		i, _ := strconv.Atoi(v)
		return time.Duration(i)
	}
	return time.Duration(def)
}

func envBool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		b, _ := strconv.ParseBool(v)
		return b
	}
	return def
}
