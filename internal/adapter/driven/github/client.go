// Package github implements the DocumentStore and IdentityVerifier ports on
// top of the GitHub contents and users APIs using the go-github library.
package github

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"
	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit/github_secondary_ratelimit"

	"github.com/ericfisherdev/policypanel/internal/domain/model"
	"github.com/ericfisherdev/policypanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.DocumentStore    = (*Client)(nil)
	_ driven.IdentityVerifier = (*Client)(nil)
)

// TokenSource yields the current session token. An empty string means no
// session is active.
type TokenSource interface {
	Token() string
}

// TokenFunc adapts a function to TokenSource. It lets the client be built
// before the credential manager that verifies tokens through it.
type TokenFunc func() string

// Token implements TokenSource.
func (f TokenFunc) Token() string { return f() }

// TargetSource yields the repository the table documents live in. It is read
// on every call so that settings changes apply without rebuilding the client.
type TargetSource interface {
	Target() model.RepoTarget
}

// Client implements the document store against one GitHub repository.
type Client struct {
	gh      *gh.Client
	tokens  TokenSource
	targets TargetSource

	// verifyHTTP is used for one-shot identity checks, which must not carry
	// the session token injected by authTransport.
	verifyHTTP *http.Client
}

// NewClient creates a GitHub client with the following transport stack:
//  1. auth (injects the current session token per request)
//  2. go-github-ratelimit (tracks primary and secondary limits, never sleeps)
//  3. httpcache (ETag-based conditional requests)
//
// A limited request is returned to the caller as ErrRateLimited instead of
// being held or replayed; a replayed PUT could land after the user gave up.
//
// apiURL may be empty for api.github.com.
func NewClient(tokens TokenSource, targets TargetSource, apiURL string) (*Client, error) {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	// WithNoSleep in v2.0.2 drops its option, so the zero limit is set directly.
	rateLimitClient := github_ratelimit.NewClient(cacheTransport,
		github_secondary_ratelimit.WithSingleSleepLimit(0, nil),
	)

	httpClient := &http.Client{
		Transport: &authTransport{base: rateLimitClient.Transport, tokens: tokens},
		Timeout:   30 * time.Second,
	}
	return newClient(httpClient, &http.Client{Timeout: 10 * time.Second}, apiURL, tokens, targets)
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string, tokens TokenSource, targets TargetSource) (*Client, error) {
	authed := *httpClient
	authed.Transport = &authTransport{base: httpClient.Transport, tokens: tokens}
	return newClient(&authed, httpClient, baseURL, tokens, targets)
}

func newClient(httpClient, verifyHTTP *http.Client, baseURL string, tokens TokenSource, targets TargetSource) (*Client, error) {
	client := gh.NewClient(httpClient)
	if baseURL != "" {
		u, err := parseBaseURL(baseURL)
		if err != nil {
			return nil, err
		}
		client.BaseURL = u
	}
	return &Client{
		gh:         client,
		tokens:     tokens,
		targets:    targets,
		verifyHTTP: verifyHTTP,
	}, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("parsing base URL: unsupported scheme %q", u.Scheme)
	}
	return u, nil
}

// authTransport sets the bearer token from the session on every request.
// GETs are sent with Cache-Control: no-cache so httpcache always revalidates
// with the stored ETag instead of serving a fingerprint we may have just
// superseded.
type authTransport struct {
	base   http.RoundTripper
	tokens TokenSource
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if token := t.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if req.Method == http.MethodGet {
		req.Header.Set("Cache-Control", "no-cache")
	}

	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}

// requireToken fails fast when no session is active, so no anonymous request
// ever reaches the API.
func (c *Client) requireToken() error {
	if c.tokens.Token() == "" {
		return model.ErrAuthenticationRequired
	}
	return nil
}

// logRateLimit logs the rate-limit headroom reported on resp.
func logRateLimit(resp *gh.Response, endpoint, path string) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"path", path,
		"status", resp.StatusCode,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Limit > 0 && resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}
