package endpoints

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Category classifies a request for the credential interceptor.
type Category int

const (
	// CategoryDefault requests carry the bearer token and are eligible for
	// refresh-and-retry on an authorization failure.
	CategoryDefault Category = iota
	// CategoryPublic requests carry no token and are never retried.
	CategoryPublic
	// CategoryAuth requests target the auth upstream itself (login, refresh,
	// logout). No token attachment, no retry: a failing refresh must not
	// recurse into another refresh.
	CategoryAuth
)

type ctxCategoryKey struct{}

// WithCategory marks the request category on the context for the transport.
func WithCategory(ctx context.Context, c Category) context.Context {
	return context.WithValue(ctx, ctxCategoryKey{}, c)
}

// CategoryFrom returns the request category, defaulting to CategoryDefault.
func CategoryFrom(ctx context.Context) Category {
	if v := ctx.Value(ctxCategoryKey{}); v != nil {
		return v.(Category)
	}
	return CategoryDefault
}

// APIError is the structured error for non-2xx upstream responses.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.Status, e.Detail)
}

// Response is a decoded upstream reply.
type Response struct {
	Status int
	Data   json.RawMessage
}

// Handle is an immutable transport bound to one normalized base URL with a
// fixed timeout and default headers. Handles are shared; treat as read-only.
type Handle struct {
	baseURL string
	headers http.Header
	hc      *http.Client
	jar     http.CookieJar
}

func newHandle(baseURL string, timeout time.Duration, transport http.RoundTripper) *Handle {
	return newHandleWithJar(baseURL, timeout, transport, nil)
}

func newHandleWithJar(baseURL string, timeout time.Duration, transport http.RoundTripper, jar http.CookieJar) *Handle {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json")
	return &Handle{
		baseURL: strings.TrimRight(baseURL, "/"),
		headers: h,
		hc:      &http.Client{Timeout: timeout, Transport: transport, Jar: jar},
		jar:     jar,
	}
}

// ExpireCookie overwrites a cookie in the handle's jar with an already-expired
// one of the same name. This is how a forced logout discards the persisted
// refresh artifact without ever reading its value.
func (h *Handle) ExpireCookie(name string) {
	if h.jar == nil {
		return
	}
	u, err := url.Parse(h.baseURL)
	if err != nil || u.Host == "" {
		return
	}
	h.jar.SetCookies(u, []*http.Cookie{{
		Name: name, Value: "", Path: "/", MaxAge: -1, Expires: time.Unix(0, 0),
	}})
}

// BaseURL returns the normalized base target of this handle.
func (h *Handle) BaseURL() string { return h.baseURL }

func (h *Handle) Get(ctx context.Context, path string) (*Response, error) {
	return h.do(ctx, http.MethodGet, path, nil)
}

func (h *Handle) Post(ctx context.Context, path string, body any) (*Response, error) {
	return h.do(ctx, http.MethodPost, path, body)
}

func (h *Handle) Put(ctx context.Context, path string, body any) (*Response, error) {
	return h.do(ctx, http.MethodPut, path, body)
}

func (h *Handle) Delete(ctx context.Context, path string) (*Response, error) {
	return h.do(ctx, http.MethodDelete, path, nil)
}

func (h *Handle) do(ctx context.Context, method, path string, body any) (*Response, error) {
	var rdr io.Reader
	var raw []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		raw = b
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, rdr)
	if err != nil {
		return nil, err
	}
	if raw != nil {
		// GetBody allows the credential transport to replay the request once
		// after a refresh.
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(raw)), nil
		}
	}
	for k, vs := range h.headers {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}
	resp, err := h.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Status: resp.StatusCode, Detail: errorDetail(data)}
	}
	return &Response{Status: resp.StatusCode, Data: data}, nil
}

func errorDetail(body []byte) string {
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Detail != "" {
		return payload.Detail
	}
	return strings.TrimSpace(string(body))
}
