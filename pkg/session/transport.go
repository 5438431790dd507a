package session

import (
	"context"
	"io"
	"net/http"

	"foyer/pkg/endpoints"
)

type ctxRetriedKey struct{}

func retried(ctx context.Context) bool {
	return ctx.Value(ctxRetriedKey{}) != nil
}

func markRetried(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxRetriedKey{}, struct{}{})
}

// Transport intercepts every outbound request: it attaches the bearer token,
// and on an authorization failure for a non-auth, non-public request it runs
// the single-flight refresh and retries exactly once. Auth endpoints bypass
// the whole path so a failing refresh can never recurse.
type Transport struct {
	Base    http.RoundTripper
	Manager *Manager
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	cat := endpoints.CategoryFrom(req.Context())
	if t.Manager == nil || cat == endpoints.CategoryPublic || cat == endpoints.CategoryAuth {
		return base.RoundTrip(req)
	}

	out := req.Clone(req.Context())
	if tok := t.Manager.ensureToken(req.Context()); tok != "" {
		out.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := base.RoundTrip(out)
	if err != nil || resp.StatusCode != http.StatusUnauthorized || retried(req.Context()) {
		return resp, err
	}

	// Authorization failure: coalesce onto the refresh and replay once.
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	tok, rerr := t.Manager.RefreshToken(req.Context())
	if rerr != nil {
		return nil, rerr
	}
	retry := req.Clone(markRetried(req.Context()))
	if req.GetBody != nil {
		body, berr := req.GetBody()
		if berr != nil {
			return nil, berr
		}
		retry.Body = body
	}
	retry.Header.Set("Authorization", "Bearer "+tok)
	return base.RoundTrip(retry)
}
