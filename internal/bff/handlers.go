package bff

import (
	"encoding/json"
	"errors"
	"net/http"

	"foyer/pkg/endpoints"
	"foyer/pkg/middleware"
	"foyer/pkg/problems"
	"foyer/pkg/session"
)

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) postLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		problems.Write(w, http.StatusBadRequest, "invalid-credentials", "Invalid login request", "email and password are required")
		return
	}
	profile, err := a.sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		var apiErr *endpoints.APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			problems.Write(w, http.StatusUnauthorized, "login-failed", "Login failed", apiErr.Detail)
			return
		}
		problems.Write(w, http.StatusBadGateway, "auth-unavailable", "Auth upstream unavailable", err.Error())
		return
	}
	if profile.TenantID != "" {
		a.coord.SetTenant(r.Context(), profile.TenantID)
	}
	writeJSON(w, map[string]any{"user": profile, "tenant": a.coord.Snapshot()}, http.StatusOK)
}

func (a *App) postRefresh(w http.ResponseWriter, r *http.Request) {
	if _, err := a.sessions.RefreshToken(r.Context()); err != nil {
		problems.Write(w, http.StatusUnauthorized, "session-expired", "Session expired", "re-authentication required")
		return
	}
	if tid := a.sessions.TenantID(); tid != "" {
		a.coord.SetTenant(r.Context(), tid)
	}
	writeJSON(w, map[string]any{"user": a.sessions.User(), "tenant": a.coord.Snapshot()}, http.StatusOK)
}

func (a *App) postLogout(w http.ResponseWriter, r *http.Request) {
	a.sessions.Logout(r.Context(), true)
	writeJSON(w, map[string]any{"ok": true}, http.StatusOK)
}

func (a *App) getMe(w http.ResponseWriter, r *http.Request) {
	u := a.sessions.User()
	if u == nil {
		problems.Write(w, http.StatusUnauthorized, "no-session", "Not authenticated", session.ErrNoSession.Error())
		return
	}
	writeJSON(w, u, http.StatusOK)
}

func (a *App) getTenantContext(w http.ResponseWriter, r *http.Request) {
	snap := a.coord.Snapshot()
	if snap.TenantID == "" && snap.Subdomain == "" {
		// surface the request-derived hint pre-login
		if sub := middleware.SubdomainFrom(r.Context()); sub != "" {
			a.coord.ResolveSubdomain(sub)
			snap = a.coord.Snapshot()
		}
	}
	writeJSON(w, snap, http.StatusOK)
}

func (a *App) getBranding(w http.ResponseWriter, r *http.Request) {
	snap := a.coord.Snapshot()
	sub := snap.Subdomain
	if sub == "" {
		sub = middleware.SubdomainFrom(r.Context())
	}
	if snap.TenantID != "" {
		rec, err := a.branding.Load(r.Context(), snap.TenantID)
		if err != nil {
			problems.Write(w, http.StatusBadGateway, "branding-unavailable", "Branding unavailable", rec.Err)
			return
		}
		writeJSON(w, rec, http.StatusOK)
		return
	}
	if sub != "" {
		rec, err := a.branding.LoadForSubdomain(r.Context(), sub)
		if err != nil {
			problems.Write(w, http.StatusBadGateway, "branding-unavailable", "Branding unavailable", rec.Err)
			return
		}
		writeJSON(w, rec, http.StatusOK)
		return
	}
	writeJSON(w, a.branding.Active("", ""), http.StatusOK)
}

func (a *App) getStores(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"registered": a.stores.Names(),
		"history":    a.stores.History(),
	}, http.StatusOK)
}
