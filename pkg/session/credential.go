package session

import "errors"

var (
	// ErrNoSession means no credential is present and silent bootstrap found
	// no usable refresh artifact.
	ErrNoSession = errors.New("no active session")
	// ErrSessionExpired is the fatal-session error: refresh itself failed and
	// local state has been torn down.
	ErrSessionExpired = errors.New("session expired")
)

// UserProfile is the authenticated principal as reported by the auth upstream.
type UserProfile struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	TenantID string `json:"tenantId"`
}

// Credential is the in-memory session state. Exclusively owned by the
// Manager; other components read it through accessors and must not hold a
// copy beyond one request.
type Credential struct {
	AccessToken string
	User        *UserProfile
}
