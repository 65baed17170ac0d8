// Package sessionbridge moves an obtained credential into the cross-subdomain
// session cookie and exposes the authenticated profile/logout surface backed
// by the same-origin session endpoints.
package sessionbridge

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/gilded-thistle/storefront-auth/authmodel"
)

const (
	routeSetSession = "/auth/set-session"
	routeProfile    = "/auth/profile"
	routeLogout     = "/auth/logout"

	// Cookie propagation is not instantaneous relative to same-tick reads;
	// give the Set-Cookie a short grace delay before callers rely on it.
	defaultPropagationDelay = 100 * time.Millisecond
)

// setSessionRequest is the body of POST /auth/set-session.
type setSessionRequest struct {
	AccessToken string              `json:"access_token"`
	ExpiresAt   time.Time           `json:"expires_at"`
	Customer    *authmodel.Customer `json:"customer,omitempty"`
}

// Bridge is an HTTP client for the session endpoints of the storefront
// origin. Requests carry credentials via the injected http.Client's cookie
// jar.
type Bridge struct {
	baseURL          string
	client           *http.Client
	propagationDelay time.Duration
}

// BridgeOption defines a function type to modify the Bridge instance.
type BridgeOption func(*Bridge)

// WithHTTPClient sets the HTTP client used for session calls.
func WithHTTPClient(client *http.Client) BridgeOption {
	return func(b *Bridge) {
		b.client = client
	}
}

// WithPropagationDelay overrides the post-persist grace delay (primarily for
// testing).
func WithPropagationDelay(d time.Duration) BridgeOption {
	return func(b *Bridge) {
		b.propagationDelay = d
	}
}

// New creates a Bridge for the given storefront base URL.
func New(baseURL string, options ...BridgeOption) *Bridge {
	b := &Bridge{
		baseURL:          strings.TrimRight(baseURL, "/"),
		client:           http.DefaultClient,
		propagationDelay: defaultPropagationDelay,
	}
	for _, opt := range options {
		opt(b)
	}
	return b
}

// PersistSession writes the token into the cross-subdomain session cookie via
// the same-origin set-session endpoint, then waits out the propagation delay
// so the cookie is observable by the caller's next request.
func (b *Bridge) PersistSession(ctx context.Context, result *authmodel.LoginResult) error {
	body, err := json.Marshal(setSessionRequest{
		AccessToken: result.AccessToken,
		ExpiresAt:   result.ExpiresAt,
		Customer:    result.Customer,
	})
	if err != nil {
		return errors.Wrap(err, "[PersistSession] marshalling request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+routeSetSession, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "[PersistSession] building request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "[PersistSession] set-session request")
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Errorf("[PersistSession] set-session returned status %d", resp.StatusCode)
	}

	if b.propagationDelay > 0 {
		select {
		case <-time.After(b.propagationDelay):
		case <-ctx.Done():
		}
	}
	return nil
}

// FetchAuthenticatedProfile returns the customer behind the session cookie.
// A 401 means "not authenticated" and returns (nil, nil); any other non-2xx
// is a genuine error.
func (b *Bridge) FetchAuthenticatedProfile(ctx context.Context) (*authmodel.Customer, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+routeProfile, nil)
	if err != nil {
		return nil, errors.Wrap(err, "[FetchAuthenticatedProfile] building request")
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "[FetchAuthenticatedProfile] profile request")
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Errorf("[FetchAuthenticatedProfile] profile returned status %d", resp.StatusCode)
	}

	var customer authmodel.Customer
	if err := json.NewDecoder(resp.Body).Decode(&customer); err != nil {
		return nil, errors.Wrap(err, "[FetchAuthenticatedProfile] decoding profile")
	}
	return &customer, nil
}

// Logout clears the session cookie via the same-origin logout endpoint and
// reports whether the call succeeded. Clearing in-memory UI state is the
// caller's responsibility.
func (b *Bridge) Logout(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+routeLogout, nil)
	if err != nil {
		log.Error().Err(err).Msg("building logout request")
		return false
	}

	resp, err := b.client.Do(req)
	if err != nil {
		log.Error().Err(err).Msg("logout request failed")
		return false
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	return resp.StatusCode >= 200 && resp.StatusCode <= 299
}
