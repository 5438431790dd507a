// pkg/tenants/postgres.go
package tenants

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// pgProvider implements Provider backed by PostgreSQL.
type pgProvider struct {
	dbPool *pgxpool.Pool
	log    *zap.SugaredLogger
}

// NewPostgresProvider constructs a PostgreSQL-backed tenant directory.
func NewPostgresProvider(dbPool *pgxpool.Pool, log *zap.SugaredLogger) Provider {
	return &pgProvider{dbPool: dbPool, log: log}
}

// EnsureSchema creates the directory table if it does not already exist.
// Safe to call repeatedly (idempotent).
func EnsureSchema(ctx context.Context, dbPool *pgxpool.Pool) error {
	_, err := dbPool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tenant_directory (
  tenant_id uuid PRIMARY KEY,
  subdomain text UNIQUE,
  installation_mode text NOT NULL DEFAULT 'SHARED',
  local_endpoint_url text,
  created_at timestamptz NOT NULL DEFAULT NOW(),
  updated_at timestamptz NOT NULL DEFAULT NOW()
);
ALTER TABLE tenant_directory ADD COLUMN IF NOT EXISTS local_endpoint_url text;
`)
	return err
}

// SeedFromEnv upserts directory rows from a JSON seed blob. Empty seed is a no-op.
func SeedFromEnv(ctx context.Context, dbPool *pgxpool.Pool, seedJSON string) error {
	if seedJSON == "" {
		return nil
	}
	var entries []seedEntry
	if err := json.Unmarshal([]byte(seedJSON), &entries); err != nil {
		return err
	}
	for _, e := range entries {
		if e.TenantID == "" {
			continue
		}
		_, err := dbPool.Exec(ctx, `
INSERT INTO tenant_directory (tenant_id, subdomain, installation_mode, local_endpoint_url)
VALUES ($1, NULLIF($2,''), $3, NULLIF($4,''))
ON CONFLICT (tenant_id) DO UPDATE SET
  subdomain = EXCLUDED.subdomain,
  installation_mode = EXCLUDED.installation_mode,
  local_endpoint_url = EXCLUDED.local_endpoint_url,
  updated_at = NOW()`,
			e.TenantID, e.Subdomain, string(ParseMode(e.InstallationMode)), e.LocalEndpointURL)
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *pgProvider) ResolveByID(ctx context.Context, id string) (Descriptor, error) {
	return p.scanOne(ctx, `
SELECT tenant_id, COALESCE(subdomain,''), installation_mode, COALESCE(local_endpoint_url,'')
FROM tenant_directory WHERE tenant_id = $1`, id)
}

func (p *pgProvider) ResolveBySubdomain(ctx context.Context, subdomain string) (Descriptor, error) {
	return p.scanOne(ctx, `
SELECT tenant_id, COALESCE(subdomain,''), installation_mode, COALESCE(local_endpoint_url,'')
FROM tenant_directory WHERE subdomain = $1`, subdomain)
}

func (p *pgProvider) scanOne(ctx context.Context, q string, arg any) (Descriptor, error) {
	var d Descriptor
	var mode string
	err := p.dbPool.QueryRow(ctx, q, arg).Scan(&d.TenantID, &d.Subdomain, &mode, &d.LocalEndpointURL)
	if errors.Is(err, pgx.ErrNoRows) {
		return Descriptor{}, ErrNotFound
	}
	if err != nil {
		return Descriptor{}, err
	}
	d.Mode = ParseMode(mode)
	return d, nil
}
