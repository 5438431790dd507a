package tenants

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("tenant not found")

// Provider is the tenant directory: where a tenant's backend lives and how.
type Provider interface {
	// Resolve tenant by its id (post-login).
	ResolveByID(ctx context.Context, id string) (Descriptor, error)
	// Resolve tenant by subdomain (pre-login branding lookups only).
	ResolveBySubdomain(ctx context.Context, subdomain string) (Descriptor, error)
}
