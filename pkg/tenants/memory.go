// pkg/tenants/memory.go
package tenants

import (
	"context"
	"encoding/json"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type memProvider struct {
	log   *zap.SugaredLogger
	byID  map[string]Descriptor
	bySub map[string]Descriptor
}

type seedEntry struct {
	TenantID         string `json:"tenantId" yaml:"tenantId"`
	Subdomain        string `json:"subdomain" yaml:"subdomain"`
	InstallationMode string `json:"installationMode" yaml:"installationMode"`
	LocalEndpointURL string `json:"localEndpointUrl" yaml:"localEndpointUrl"`
}

// NewMemoryProvider builds an in-memory directory from a YAML file
// (TENANT_DIRECTORY_FILE) or inline JSON (TENANT_SEED_JSON). With neither set
// it seeds a single shared dev tenant so local bring-up works out of the box.
func NewMemoryProvider(log *zap.SugaredLogger, file, seedJSON string) Provider {
	p := &memProvider{log: log, byID: map[string]Descriptor{}, bySub: map[string]Descriptor{}}
	var entries []seedEntry
	switch {
	case file != "":
		raw, err := os.ReadFile(file)
		if err != nil {
			log.Warnw("tenant directory file unreadable", "file", file, "err", err)
			break
		}
		if err := yaml.Unmarshal(raw, &entries); err != nil {
			log.Warnw("tenant directory file invalid", "file", file, "err", err)
		}
	case seedJSON != "":
		if err := json.Unmarshal([]byte(seedJSON), &entries); err != nil {
			log.Warnw("tenant seed json invalid", "err", err)
		}
	default:
		entries = []seedEntry{{
			TenantID:         "00000000-0000-0000-0000-000000000001",
			Subdomain:        "dev",
			InstallationMode: string(ModeShared),
		}}
	}
	for _, e := range entries {
		d := Descriptor{
			TenantID:         e.TenantID,
			Subdomain:        e.Subdomain,
			Mode:             ParseMode(e.InstallationMode),
			LocalEndpointURL: e.LocalEndpointURL,
		}
		if d.TenantID != "" {
			p.byID[d.TenantID] = d
		}
		if d.Subdomain != "" {
			p.bySub[d.Subdomain] = d
		}
	}
	return p
}

func (m *memProvider) ResolveByID(ctx context.Context, id string) (Descriptor, error) {
	if d, ok := m.byID[id]; ok {
		return d, nil
	}
	return Descriptor{}, ErrNotFound
}

func (m *memProvider) ResolveBySubdomain(ctx context.Context, subdomain string) (Descriptor, error) {
	if d, ok := m.bySub[subdomain]; ok {
		return d, nil
	}
	return Descriptor{}, ErrNotFound
}
