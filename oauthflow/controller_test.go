package oauthflow_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gilded-thistle/storefront-auth/authflowrepo"
	"github.com/gilded-thistle/storefront-auth/authmodel"
	"github.com/gilded-thistle/storefront-auth/oauthflow"
	"github.com/gilded-thistle/storefront-auth/pkce"
)

const appOrigin = "https://shop.gildedthistle.test"

type fakeWindow struct {
	mu     sync.Mutex
	closed bool
}

func (w *fakeWindow) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

func (w *fakeWindow) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
}

type fakeOpener struct {
	mu      sync.Mutex
	urls    []string
	openErr error
	window  *fakeWindow
	opened  chan string
}

func newFakeOpener() *fakeOpener {
	return &fakeOpener{opened: make(chan string, 4)}
}

func (o *fakeOpener) Open(u string) (oauthflow.Window, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.openErr != nil {
		return nil, o.openErr
	}
	o.urls = append(o.urls, u)
	o.window = &fakeWindow{}
	o.opened <- u
	return o.window, nil
}

func (o *fakeOpener) openCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.urls)
}

type fakePersister struct {
	mu      sync.Mutex
	results []*authmodel.LoginResult
	err     error
}

func (p *fakePersister) PersistSession(_ context.Context, result *authmodel.LoginResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.results = append(p.results, result)
	return nil
}

func (p *fakePersister) persisted() []*authmodel.LoginResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.results
}

func testSettings() oauthflow.Settings {
	return oauthflow.Settings{
		ClientID:              "storefront-client",
		ShopID:                "gilded-thistle",
		AppBaseURL:            appOrigin,
		AuthorizationEndpoint: "https://accounts.platform.test/oauth/authorize",
	}
}

func newTestController(t *testing.T, settings oauthflow.Settings, opener *fakeOpener, persister *fakePersister, flows authflowrepo.Repo, options ...oauthflow.ControllerOption) *oauthflow.Controller {
	t.Helper()
	opts := append([]oauthflow.ControllerOption{
		oauthflow.WithPollInterval(5 * time.Millisecond),
		oauthflow.WithTimeout(2 * time.Second),
	}, options...)
	// Pass a nil *fakePersister as a nil interface so the controller's
	// nil-persister branch is exercised rather than a typed-nil panic.
	var p oauthflow.SessionPersister
	if persister != nil {
		p = persister
	}
	c, err := oauthflow.NewController(settings, opener, p, flows, opts...)
	require.NoError(t, err)
	return c
}

// startLogin runs InitiateLogin on a goroutine and returns the channels the
// outcome arrives on.
func startLogin(c *oauthflow.Controller) (<-chan *authmodel.LoginResult, <-chan error) {
	results := make(chan *authmodel.LoginResult, 1)
	errs := make(chan error, 1)
	go func() {
		result, err := c.InitiateLogin(context.Background())
		results <- result
		errs <- err
	}()
	return results, errs
}

func successData(t *testing.T, accessToken, expiresAt string) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(map[string]any{
		"type":         oauthflow.MessageTypeSuccess,
		"access_token": accessToken,
		"expires_at":   expiresAt,
	})
	require.NoError(t, err)
	return data
}

func awaitOutcome(t *testing.T, results <-chan *authmodel.LoginResult, errs <-chan error) (*authmodel.LoginResult, error) {
	t.Helper()
	select {
	case result := <-results:
		return result, <-errs
	case <-time.After(5 * time.Second):
		t.Fatal("login flow did not settle in time")
		return nil, nil
	}
}

func TestInitiateLogin_MissingConfiguration(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*oauthflow.Settings)
	}{
		{"missing client id", func(s *oauthflow.Settings) { s.ClientID = "" }},
		{"missing shop id", func(s *oauthflow.Settings) { s.ShopID = "" }},
		{"missing app base URL", func(s *oauthflow.Settings) { s.AppBaseURL = ""; s.RedirectURI = "/auth/callback" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := testSettings()
			tt.mutate(&settings)
			opener := newFakeOpener()
			c := newTestController(t, settings, opener, nil, authflowrepo.NewInMemoryRepo())

			result, err := c.InitiateLogin(context.Background())
			require.Nil(t, result)
			require.Equal(t, oauthflow.CodeConfiguration, oauthflow.CodeOf(err))
			require.Zero(t, opener.openCount(), "no popup may be opened on a configuration error")
		})
	}
}

func TestInitiateLogin_PopupBlocked(t *testing.T) {
	opener := newFakeOpener()
	opener.openErr = errors.New("window.open returned null")
	flows := authflowrepo.NewInMemoryRepo()
	c := newTestController(t, testSettings(), opener, nil, flows)

	result, err := c.InitiateLogin(context.Background())
	require.Nil(t, result)
	require.Equal(t, oauthflow.CodePopupBlocked, oauthflow.CodeOf(err))
}

func TestInitiateLogin_AuthorizationURL(t *testing.T) {
	opener := newFakeOpener()
	flows := authflowrepo.NewInMemoryRepo()
	c := newTestController(t, testSettings(), opener, nil, flows)

	results, errs := startLogin(c)
	rawURL := <-opener.opened

	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	require.Equal(t, "https://accounts.platform.test/oauth/authorize", u.Scheme+"://"+u.Host+u.Path)

	q := u.Query()
	require.Equal(t, "storefront-client", q.Get("client_id"))
	require.Equal(t, "openid email", q.Get("scope"))
	require.Equal(t, "code", q.Get("response_type"))
	require.Equal(t, appOrigin+"/auth/callback", q.Get("redirect_uri"))
	require.Equal(t, "S256", q.Get("code_challenge_method"))

	// The state in the URL keys the stored verifier, and the challenge in the
	// URL derives from that verifier.
	state := q.Get("state")
	require.True(t, pkce.IsValidState(state))
	flowState, err := flows.Get(state)
	require.NoError(t, err)
	require.True(t, pkce.IsValidCodeVerifier(flowState.CodeVerifier))
	require.Equal(t, pkce.GenerateCodeChallenge(flowState.CodeVerifier), q.Get("code_challenge"))

	c.Deliver(oauthflow.Envelope{Origin: appOrigin, Data: successData(t, "tok_abc", "2025-01-01T00:00:00Z")})
	result, loginErr := awaitOutcome(t, results, errs)
	require.NoError(t, loginErr)
	require.NotNil(t, result)

	// Transient flow state is erased on completion.
	_, err = flows.Get(state)
	require.Error(t, err)
}

func TestInitiateLogin_Success(t *testing.T) {
	opener := newFakeOpener()
	persister := &fakePersister{}
	c := newTestController(t, testSettings(), opener, persister, authflowrepo.NewInMemoryRepo())

	results, errs := startLogin(c)
	<-opener.opened

	c.Deliver(oauthflow.Envelope{Origin: appOrigin, Data: successData(t, "tok_abc", "2025-01-01T00:00:00Z")})

	result, err := awaitOutcome(t, results, errs)
	require.NoError(t, err)
	require.Equal(t, "tok_abc", result.AccessToken)
	require.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), result.ExpiresAt)
	require.True(t, result.SessionPersisted)

	// The bridge was handed the same token/expiry.
	persisted := persister.persisted()
	require.Len(t, persisted, 1)
	require.Equal(t, "tok_abc", persisted[0].AccessToken)
	require.Equal(t, result.ExpiresAt, persisted[0].ExpiresAt)
}

func TestInitiateLogin_IgnoresUntrustedOrigins(t *testing.T) {
	opener := newFakeOpener()
	c := newTestController(t, testSettings(), opener, nil, authflowrepo.NewInMemoryRepo())

	results, errs := startLogin(c)
	<-opener.opened

	// A well-formed success message from the wrong origin must not settle the
	// flow.
	c.Deliver(oauthflow.Envelope{Origin: "https://evil.example.com", Data: successData(t, "tok_stolen", "2025-01-01T00:00:00Z")})

	select {
	case <-results:
		t.Fatal("flow settled on a message from an untrusted origin")
	case <-time.After(50 * time.Millisecond):
	}

	c.Deliver(oauthflow.Envelope{Origin: appOrigin, Data: successData(t, "tok_abc", "2025-01-01T00:00:00Z")})

	result, err := awaitOutcome(t, results, errs)
	require.NoError(t, err)
	require.Equal(t, "tok_abc", result.AccessToken)
}

func TestInitiateLogin_IgnoresMalformedMessages(t *testing.T) {
	opener := newFakeOpener()
	c := newTestController(t, testSettings(), opener, nil, authflowrepo.NewInMemoryRepo())

	results, errs := startLogin(c)
	<-opener.opened

	c.Deliver(oauthflow.Envelope{Origin: appOrigin, Data: json.RawMessage(`not json`)})
	c.Deliver(oauthflow.Envelope{Origin: appOrigin, Data: json.RawMessage(`{"type":"SOMETHING_ELSE"}`)})
	c.Deliver(oauthflow.Envelope{Origin: appOrigin, Data: json.RawMessage(`{"type":"OAUTH_SUCCESS"}`)})
	c.Deliver(oauthflow.Envelope{Origin: appOrigin, Data: json.RawMessage(`{"type":"OAUTH_SUCCESS","access_token":"tok","expires_at":"not-a-time"}`)})

	select {
	case <-results:
		t.Fatal("flow settled on a malformed message")
	case <-time.After(50 * time.Millisecond):
	}

	c.Deliver(oauthflow.Envelope{Origin: appOrigin, Data: successData(t, "tok_abc", "2025-01-01T00:00:00Z")})
	_, err := awaitOutcome(t, results, errs)
	require.NoError(t, err)
}

func TestInitiateLogin_OAuthError(t *testing.T) {
	opener := newFakeOpener()
	c := newTestController(t, testSettings(), opener, nil, authflowrepo.NewInMemoryRepo())

	results, errs := startLogin(c)
	<-opener.opened

	c.Deliver(oauthflow.Envelope{Origin: appOrigin, Data: json.RawMessage(`{"type":"OAUTH_ERROR","error":"consent denied"}`)})

	result, err := awaitOutcome(t, results, errs)
	require.Nil(t, result)
	require.Equal(t, oauthflow.CodeOAuthError, oauthflow.CodeOf(err))
	require.Contains(t, err.Error(), "consent denied")
}

func TestInitiateLogin_CancelledByClosingPopup(t *testing.T) {
	opener := newFakeOpener()
	c := newTestController(t, testSettings(), opener, nil, authflowrepo.NewInMemoryRepo())

	results, errs := startLogin(c)
	<-opener.opened

	opener.window.Close()

	result, err := awaitOutcome(t, results, errs)
	require.Nil(t, result)
	require.Equal(t, oauthflow.CodeCancelled, oauthflow.CodeOf(err))
}

func TestInitiateLogin_Timeout(t *testing.T) {
	opener := newFakeOpener()
	c := newTestController(t, testSettings(), opener, nil, authflowrepo.NewInMemoryRepo(),
		oauthflow.WithTimeout(30*time.Millisecond))

	results, errs := startLogin(c)
	<-opener.opened

	result, err := awaitOutcome(t, results, errs)
	require.Nil(t, result)
	require.Equal(t, oauthflow.CodeTimeout, oauthflow.CodeOf(err))
	require.True(t, opener.window.Closed(), "timeout must force-close the popup")
}

func TestInitiateLogin_SettlesExactlyOnce(t *testing.T) {
	opener := newFakeOpener()
	persister := &fakePersister{}
	c := newTestController(t, testSettings(), opener, persister, authflowrepo.NewInMemoryRepo())

	results, errs := startLogin(c)
	<-opener.opened

	c.Deliver(oauthflow.Envelope{Origin: appOrigin, Data: successData(t, "tok_first", "2025-01-01T00:00:00Z")})
	result, err := awaitOutcome(t, results, errs)
	require.NoError(t, err)
	require.Equal(t, "tok_first", result.AccessToken)

	// Late duplicates and out-of-order events after settlement are no-ops.
	c.Deliver(oauthflow.Envelope{Origin: appOrigin, Data: successData(t, "tok_late", "2025-01-01T00:00:00Z")})
	c.Deliver(oauthflow.Envelope{Origin: appOrigin, Data: json.RawMessage(`{"type":"OAUTH_ERROR","error":"late"}`)})
	opener.window.Close()

	require.Len(t, persister.persisted(), 1)
}

func TestInitiateLogin_RefusesConcurrentFlow(t *testing.T) {
	opener := newFakeOpener()
	c := newTestController(t, testSettings(), opener, nil, authflowrepo.NewInMemoryRepo())

	results, errs := startLogin(c)
	<-opener.opened

	// The second attempt is refused; the first flow keeps its listeners.
	result, err := c.InitiateLogin(context.Background())
	require.Nil(t, result)
	require.Equal(t, oauthflow.CodeLoginInProgress, oauthflow.CodeOf(err))
	require.Equal(t, 1, opener.openCount())

	c.Deliver(oauthflow.Envelope{Origin: appOrigin, Data: successData(t, "tok_abc", "2025-01-01T00:00:00Z")})
	_, err = awaitOutcome(t, results, errs)
	require.NoError(t, err)
}

func TestInitiateLogin_SequentialFlowsUseFreshParameters(t *testing.T) {
	opener := newFakeOpener()
	c := newTestController(t, testSettings(), opener, nil, authflowrepo.NewInMemoryRepo())

	var states, challenges []string
	for i := 0; i < 2; i++ {
		results, errs := startLogin(c)
		rawURL := <-opener.opened
		u, err := url.Parse(rawURL)
		require.NoError(t, err)
		states = append(states, u.Query().Get("state"))
		challenges = append(challenges, u.Query().Get("code_challenge"))

		c.Deliver(oauthflow.Envelope{Origin: appOrigin, Data: successData(t, "tok_abc", "2025-01-01T00:00:00Z")})
		_, loginErr := awaitOutcome(t, results, errs)
		require.NoError(t, loginErr)
	}

	require.NotEqual(t, states[0], states[1], "state must not be reused across attempts")
	require.NotEqual(t, challenges[0], challenges[1], "verifier must not be reused across attempts")
}

func TestInitiateLogin_PersistenceFailureIsDegradedSuccess(t *testing.T) {
	opener := newFakeOpener()
	persister := &fakePersister{err: errors.New("set-session unreachable")}
	c := newTestController(t, testSettings(), opener, persister, authflowrepo.NewInMemoryRepo())

	results, errs := startLogin(c)
	<-opener.opened

	c.Deliver(oauthflow.Envelope{Origin: appOrigin, Data: successData(t, "tok_abc", "2025-01-01T00:00:00Z")})

	result, err := awaitOutcome(t, results, errs)
	require.NoError(t, err, "persistence failure must not fail the login")
	require.Equal(t, "tok_abc", result.AccessToken)
	require.False(t, result.SessionPersisted)
}

func TestInitiateLogin_ContextCancellation(t *testing.T) {
	opener := newFakeOpener()
	c := newTestController(t, testSettings(), opener, nil, authflowrepo.NewInMemoryRepo())

	ctx, cancel := context.WithCancel(context.Background())
	results := make(chan *authmodel.LoginResult, 1)
	errs := make(chan error, 1)
	go func() {
		result, err := c.InitiateLogin(ctx)
		results <- result
		errs <- err
	}()
	<-opener.opened

	cancel()

	result, err := awaitOutcome(t, results, errs)
	require.Nil(t, result)
	require.Equal(t, oauthflow.CodeCancelled, oauthflow.CodeOf(err))
}

func TestCodeOf(t *testing.T) {
	t.Run("flow errors report their code", func(t *testing.T) {
		err := &oauthflow.FlowError{Code: oauthflow.CodeTimeout, Reason: "no completion"}
		require.Equal(t, oauthflow.CodeTimeout, oauthflow.CodeOf(err))
		require.True(t, strings.HasPrefix(err.Error(), "TIMEOUT"))
	})

	t.Run("other errors report the empty code", func(t *testing.T) {
		require.Equal(t, oauthflow.Code(""), oauthflow.CodeOf(errors.New("boom")))
	})
}
