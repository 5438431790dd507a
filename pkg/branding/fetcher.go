package branding

import (
	"context"
	"encoding/json"

	"foyer/pkg/endpoints"
	"foyer/pkg/tenants"
)

// HTTPFetcher loads branding through the endpoint router: tenant fetches go
// to the tenant's resolved backend, subdomain fetches hit the public central
// endpoint (no tenant is trusted pre-login).
type HTTPFetcher struct {
	Router   *endpoints.Router
	Provider tenants.Provider
	Path     string
}

func (f *HTTPFetcher) FetchTenant(ctx context.Context, tenantID string) (Payload, error) {
	desc, err := f.Provider.ResolveByID(ctx, tenantID)
	if err != nil {
		// Unknown tenant in the directory behaves like missing branding.
		desc = tenants.Descriptor{TenantID: tenantID, Mode: tenants.ModeShared}
	}
	resp, err := f.Router.Resolve(desc).Get(ctx, f.Path)
	if err != nil {
		return Payload{}, err
	}
	return decode(resp.Data)
}

func (f *HTTPFetcher) FetchSubdomain(ctx context.Context, subdomain string) (Payload, error) {
	ctx = endpoints.WithCategory(ctx, endpoints.CategoryPublic)
	resp, err := f.Router.Central().Get(ctx, f.Path+"/public/"+subdomain)
	if err != nil {
		return Payload{}, err
	}
	return decode(resp.Data)
}

func decode(raw json.RawMessage) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, err
	}
	return p, nil
}
