package server

import (
	"context"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	"github.com/gilded-thistle/storefront-auth/authmodel"
	"github.com/gilded-thistle/storefront-auth/internal/config"
)

// ExchangeResult is what the callback handler forwards to the popup opener
// after a successful code exchange.
type ExchangeResult struct {
	AccessToken string
	ExpiresAt   time.Time
	IDToken     string
	Customer    *authmodel.Customer
}

// Exchanger swaps an authorization code (plus the flow's code verifier) for
// tokens at the customer account authority.
type Exchanger interface {
	Exchange(ctx context.Context, code string, codeVerifier string) (*ExchangeResult, error)
}

// OIDCExchanger performs the real exchange against the platform authority
// using OIDC discovery. The provider is resolved lazily on first use so the
// server can start before the authority is reachable.
type OIDCExchanger struct {
	config config.OAuthConfig

	mu       sync.Mutex
	provider *oidc.Provider
	verifier *oidc.IDTokenVerifier
}

func NewOIDCExchanger(cfg config.OAuthConfig) *OIDCExchanger {
	return &OIDCExchanger{config: cfg}
}

func (e *OIDCExchanger) getProvider(ctx context.Context) (*oidc.Provider, *oidc.IDTokenVerifier, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.provider != nil {
		return e.provider, e.verifier, nil
	}

	provider, err := oidc.NewProvider(ctx, e.config.GetIssuerURL())
	if err != nil {
		return nil, nil, errors.Wrap(err, "[OIDCExchanger getProvider] discovering issuer")
	}
	e.provider = provider
	e.verifier = provider.Verifier(&oidc.Config{ClientID: e.config.GetClientID()})
	return e.provider, e.verifier, nil
}

func (e *OIDCExchanger) Exchange(ctx context.Context, code string, codeVerifier string) (*ExchangeResult, error) {
	provider, verifier, err := e.getProvider(ctx)
	if err != nil {
		return nil, err
	}

	oauthConfig := oauth2.Config{
		ClientID:    e.config.GetClientID(),
		Endpoint:    provider.Endpoint(),
		RedirectURL: e.config.GetRedirectURI(),
		Scopes:      e.config.GetScopes(),
	}

	token, err := oauthConfig.Exchange(ctx, code, oauth2.SetAuthURLParam("code_verifier", codeVerifier))
	if err != nil {
		return nil, errors.Wrap(err, "[OIDCExchanger Exchange] exchanging code")
	}

	result := &ExchangeResult{
		AccessToken: token.AccessToken,
		ExpiresAt:   token.Expiry,
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return result, nil
	}

	idToken, err := verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, errors.Wrap(err, "[OIDCExchanger Exchange] verifying id_token")
	}
	result.IDToken = rawIDToken

	var claims struct {
		Sub   string `json:"sub"`
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, errors.Wrap(err, "[OIDCExchanger Exchange] decoding claims")
	}
	result.Customer = &authmodel.Customer{
		ID:    claims.Sub,
		Email: claims.Email,
		Name:  claims.Name,
	}

	return result, nil
}
