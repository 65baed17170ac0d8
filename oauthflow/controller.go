// Package oauthflow drives the popup-based OAuth 2.0 Authorization Code +
// PKCE login flow: it generates the per-flow parameters, opens the popup at
// the authority's authorization endpoint, and waits for exactly one of a
// cross-window completion message, the user closing the popup, or the flow
// timeout.
package oauthflow

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/gilded-thistle/storefront-auth/authflowrepo"
	"github.com/gilded-thistle/storefront-auth/authmodel"
	"github.com/gilded-thistle/storefront-auth/pkce"
)

const (
	defaultFlowTimeout  = 5 * time.Minute
	defaultPollInterval = 1 * time.Second
)

// Settings holds the client configuration a flow cannot start without.
type Settings struct {
	ClientID              string
	ShopID                string
	AppBaseURL            string // storefront origin; also validates inbound message origins
	AuthorizationEndpoint string
	Scopes                []string // defaults to openid, email
	RedirectURI           string   // defaults to AppBaseURL + "/auth/callback"
}

func (s *Settings) validate() error {
	if s.ClientID == "" {
		return newFlowError(CodeConfiguration, "client id is required")
	}
	if s.ShopID == "" {
		return newFlowError(CodeConfiguration, "shop id is required")
	}
	if s.AppBaseURL == "" {
		return newFlowError(CodeConfiguration, "app base URL is required")
	}
	if s.AuthorizationEndpoint == "" {
		return newFlowError(CodeConfiguration, "authorization endpoint is required")
	}
	return nil
}

// SessionPersister bridges a completed login into the shared session cookie.
type SessionPersister interface {
	PersistSession(ctx context.Context, result *authmodel.LoginResult) error
}

// Controller owns the single pending login flow of one browsing context.
// Create one per authentication surface and pass it explicitly; it is not a
// process-wide singleton.
type Controller struct {
	settings  Settings
	opener    Opener
	persister SessionPersister
	flows     authflowrepo.Repo

	timeout      time.Duration
	pollInterval time.Duration
	nowTime      func() time.Time

	mu    sync.Mutex
	inbox chan Envelope // non-nil only while a flow is pending
}

// ControllerOption defines a function type to modify the Controller instance.
type ControllerOption func(*Controller)

// WithTimeout overrides the hard flow timeout (primarily for testing).
func WithTimeout(d time.Duration) ControllerOption {
	return func(c *Controller) {
		c.timeout = d
	}
}

// WithPollInterval overrides the popup-closed polling interval (primarily for
// testing).
func WithPollInterval(d time.Duration) ControllerOption {
	return func(c *Controller) {
		c.pollInterval = d
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ControllerOption {
	return func(c *Controller) {
		c.nowTime = nowFunc
	}
}

// NewController initializes a Controller with required dependencies. The
// persister may be nil, in which case completed logins are not bridged into
// the shared cookie.
func NewController(
	settings Settings,
	opener Opener,
	persister SessionPersister,
	flows authflowrepo.Repo,
	options ...ControllerOption,
) (*Controller, error) {
	if opener == nil {
		return nil, errors.New("[NewController] opener is required")
	}
	if flows == nil {
		return nil, errors.New("[NewController] flow repo is required")
	}

	if len(settings.Scopes) == 0 {
		settings.Scopes = []string{"openid", "email"}
	}
	if settings.RedirectURI == "" {
		settings.RedirectURI = strings.TrimRight(settings.AppBaseURL, "/") + "/auth/callback"
	}

	c := &Controller{
		settings:     settings,
		opener:       opener,
		persister:    persister,
		flows:        flows,
		timeout:      defaultFlowTimeout,
		pollInterval: defaultPollInterval,
		nowTime:      time.Now,
	}

	for _, opt := range options {
		opt(c)
	}

	return c, nil
}

// Deliver feeds one inbound cross-window message to the pending flow.
// Messages delivered while no flow is pending, or after the flow has settled,
// are dropped.
func (c *Controller) Deliver(env Envelope) {
	c.mu.Lock()
	inbox := c.inbox
	c.mu.Unlock()
	if inbox == nil {
		return
	}
	select {
	case inbox <- env:
	default:
	}
}

// InitiateLogin runs one login flow to completion and returns the token
// payload, or a *FlowError classifying the failure. Only one flow may be
// pending at a time; a concurrent call is refused with LOGIN_IN_PROGRESS and
// leaves the pending flow untouched.
func (c *Controller) InitiateLogin(ctx context.Context) (*authmodel.LoginResult, error) {
	if err := c.settings.validate(); err != nil {
		return nil, err
	}

	inbox, err := c.claimFlowSlot()
	if err != nil {
		return nil, err
	}
	defer c.releaseFlowSlot()

	verifier, state, challenge, err := c.generateFlowParameters()
	if err != nil {
		return nil, err
	}

	if err := c.flows.Upsert(state, &authflowrepo.FlowState{
		CodeVerifier: verifier,
		CreatedAt:    c.nowTime(),
	}); err != nil {
		return nil, errors.Wrap(err, "[InitiateLogin] storing flow state")
	}
	// Transient parameters are erased on every exit path, success or failure.
	defer func() {
		_ = c.flows.Delete(state)
	}()

	window, err := c.opener.Open(c.authorizationURL(state, challenge))
	if err != nil {
		return nil, newFlowError(CodePopupBlocked, err.Error())
	}

	return c.awaitCompletion(ctx, inbox, window)
}

// claimFlowSlot takes the single pending-flow slot and creates the inbox for
// this flow's messages.
func (c *Controller) claimFlowSlot() (chan Envelope, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inbox != nil {
		return nil, newFlowError(CodeLoginInProgress, "a login flow is already pending")
	}
	c.inbox = make(chan Envelope, 16)
	return c.inbox, nil
}

func (c *Controller) releaseFlowSlot() {
	c.mu.Lock()
	c.inbox = nil
	c.mu.Unlock()
}

// generateFlowParameters produces a fresh verifier/state/challenge triple and
// re-checks the generator's own constraints to fail fast on generation bugs.
func (c *Controller) generateFlowParameters() (verifier, state, challenge string, err error) {
	verifier, err = pkce.GenerateCodeVerifier()
	if err != nil {
		return "", "", "", errors.Wrap(err, "[InitiateLogin] generating code verifier")
	}
	state, err = pkce.GenerateState()
	if err != nil {
		return "", "", "", errors.Wrap(err, "[InitiateLogin] generating state")
	}
	if !pkce.IsValidCodeVerifier(verifier) {
		return "", "", "", errors.New("[InitiateLogin] generated code verifier failed validation")
	}
	if !pkce.IsValidState(state) {
		return "", "", "", errors.New("[InitiateLogin] generated state failed validation")
	}
	return verifier, state, pkce.GenerateCodeChallenge(verifier), nil
}

func (c *Controller) authorizationURL(state, challenge string) string {
	q := url.Values{}
	q.Set("client_id", c.settings.ClientID)
	q.Set("scope", strings.Join(c.settings.Scopes, " "))
	q.Set("response_type", "code")
	q.Set("redirect_uri", c.settings.RedirectURI)
	q.Set("state", state)
	q.Set("code_challenge", challenge)
	q.Set("code_challenge_method", pkce.CodeChallengeMethodS256)
	return c.settings.AuthorizationEndpoint + "?" + q.Encode()
}

// awaitCompletion blocks until exactly one of the three competing event
// sources fires: a valid completion message, the popup-closed poller, or the
// flow timeout. All three are torn down together on return.
func (c *Controller) awaitCompletion(ctx context.Context, inbox chan Envelope, window Window) (*authmodel.LoginResult, error) {
	appOrigin := originOf(c.settings.AppBaseURL)

	poll := time.NewTicker(c.pollInterval)
	defer poll.Stop()
	timeout := time.NewTimer(c.timeout)
	defer timeout.Stop()
	defer window.Close()

	for {
		select {
		case <-ctx.Done():
			return nil, newFlowError(CodeCancelled, "context cancelled")

		case env := <-inbox:
			if env.Origin != appOrigin {
				// Untrusted origin: ignore without logging the payload.
				log.Debug().Str("origin", env.Origin).Msg("ignoring message from unexpected origin")
				continue
			}
			msg, ok := parseMessage(env.Data)
			if !ok {
				continue
			}
			if msg.failure != "" {
				return nil, newFlowError(CodeOAuthError, msg.failure)
			}
			return c.settle(ctx, msg.success), nil

		case <-poll.C:
			if window.Closed() {
				return nil, newFlowError(CodeCancelled, "popup closed before completion")
			}

		case <-timeout.C:
			return nil, newFlowError(CodeTimeout, "no completion within the flow timeout")
		}
	}
}

// settle bridges the obtained token into the shared session. A persistence
// failure is a degraded success: the exchange itself succeeded, so the login
// is reported as such, with SessionPersisted=false for diagnostics.
func (c *Controller) settle(ctx context.Context, result *authmodel.LoginResult) *authmodel.LoginResult {
	result.SessionPersisted = true
	if c.persister == nil {
		result.SessionPersisted = false
		return result
	}
	if err := c.persister.PersistSession(ctx, result); err != nil {
		result.SessionPersisted = false
		log.Warn().Err(err).Msg("session persistence failed; customer is logged in for this tab only")
	}
	return result
}

// originOf reduces a base URL to its origin (scheme://host).
func originOf(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return strings.TrimRight(baseURL, "/")
	}
	return u.Scheme + "://" + u.Host
}
