package config

import (
	"fmt"
	"strings"
	"time"
)

type OAuthConfig interface {
	GetClientID() string
	GetShopID() string
	GetAuthorizationEndpoint() string
	GetIssuerURL() string
	GetScopes() []string
	GetRedirectURI() string
	GetFlowTimeout() time.Duration
	GetPopupPollInterval() time.Duration
}

type OAuth struct{}

var _ OAuthConfig = OAuth{}

func (OAuth) GetClientID() string {
	return GetEnv("OAUTH_CLIENT_ID", "")
}

// GetShopID returns the shop/tenant identifier on the commerce platform.
func (OAuth) GetShopID() string {
	return GetEnv("SHOP_ID", "")
}

// GetIssuerURL returns the base URL of the platform's customer account
// authority for this shop.
func (o OAuth) GetIssuerURL() string {
	if issuer := GetEnv("OAUTH_ISSUER_URL", ""); issuer != "" {
		return issuer
	}
	return fmt.Sprintf("https://shopify.com/authentication/%s", o.GetShopID())
}

func (o OAuth) GetAuthorizationEndpoint() string {
	return o.GetIssuerURL() + "/oauth/authorize"
}

// GetScopes returns the fixed identity scopes plus any comma-separated
// extensions from OAUTH_EXTRA_SCOPES.
func (OAuth) GetScopes() []string {
	scopes := []string{"openid", "email"}
	if extra := GetEnv("OAUTH_EXTRA_SCOPES", ""); extra != "" {
		for _, s := range strings.Split(extra, ",") {
			if s = strings.TrimSpace(s); s != "" {
				scopes = append(scopes, s)
			}
		}
	}
	return scopes
}

func (o OAuth) GetRedirectURI() string {
	return EnvVars{}.GetAppBaseURL() + "/auth/callback"
}

// GetFlowTimeout is the hard upper bound on one login attempt, measured from
// flow start.
func (OAuth) GetFlowTimeout() time.Duration {
	return 5 * time.Minute
}

// GetPopupPollInterval is how often the orchestrator checks whether the user
// closed the popup.
func (OAuth) GetPopupPollInterval() time.Duration {
	return 1 * time.Second
}
