package tenants

// InstallationMode describes the deployment topology of a tenant's backend.
type InstallationMode string

const (
	ModeShared    InstallationMode = "SHARED"    // shared central backend
	ModeDedicated InstallationMode = "DEDICATED" // dedicated instance, still centrally routed
	ModeOnPremise InstallationMode = "ONPREMISE" // customer-operated backend
	ModeHybrid    InstallationMode = "HYBRID"    // central control plane, local data plane
)

// ParseMode normalizes a stored mode string; unknown values collapse to SHARED
// so a corrupt directory row can never route traffic off the central backend.
func ParseMode(s string) InstallationMode {
	switch InstallationMode(s) {
	case ModeDedicated:
		return ModeDedicated
	case ModeOnPremise:
		return ModeOnPremise
	case ModeHybrid:
		return ModeHybrid
	default:
		return ModeShared
	}
}

// Descriptor identifies a tenant and how its backend is reached.
// TenantID is non-empty only once a session is authenticated; Subdomain may be
// known pre-login and is only ever a presentation hint, never a trust boundary.
type Descriptor struct {
	TenantID         string
	Subdomain        string
	Mode             InstallationMode
	LocalEndpointURL string
}

// Source is the provenance of the active tenant id. It replaces the nullable
// priority chain (session ?? subdomain ?? nothing) with an explicit sum type.
type Source interface{ isSource() }

// Authenticated carries a tenant id derived from an authenticated session.
type Authenticated struct{ TenantID string }

// PreLoginSubdomain carries a subdomain derived from the address before login.
type PreLoginSubdomain struct{ Subdomain string }

// None means no tenant has been resolved yet.
type None struct{}

func (Authenticated) isSource()     {}
func (PreLoginSubdomain) isSource() {}
func (None) isSource()              {}

// TenantID returns the authenticated tenant id, or "" for any other source.
// An authenticated id always wins over a subdomain hint.
func TenantID(s Source) string {
	if a, ok := s.(Authenticated); ok {
		return a.TenantID
	}
	return ""
}

// Subdomain returns the pre-login subdomain hint, or "" for any other source.
func Subdomain(s Source) string {
	if p, ok := s.(PreLoginSubdomain); ok {
		return p.Subdomain
	}
	return ""
}
