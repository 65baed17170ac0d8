package oauthflow

import (
	"github.com/gilded-thistle/storefront-auth/authflowrepo"
	"github.com/gilded-thistle/storefront-auth/internal/config"
)

// SettingsFromConfig builds flow settings from the environment-backed
// configuration, so an embedding application wires the orchestrator from the
// same source the server wires its handlers from.
func SettingsFromConfig(cfg config.Config) Settings {
	return Settings{
		ClientID:              cfg.GetClientID(),
		ShopID:                cfg.GetShopID(),
		AppBaseURL:            cfg.GetAppBaseURL(),
		AuthorizationEndpoint: cfg.GetAuthorizationEndpoint(),
		Scopes:                cfg.GetScopes(),
		RedirectURI:           cfg.GetRedirectURI(),
	}
}

// NewControllerFromConfig initializes a Controller with its settings, flow
// timeout, and popup poll interval taken from configuration. Explicit options
// take precedence.
func NewControllerFromConfig(
	cfg config.Config,
	opener Opener,
	persister SessionPersister,
	flows authflowrepo.Repo,
	options ...ControllerOption,
) (*Controller, error) {
	opts := append([]ControllerOption{
		WithTimeout(cfg.GetFlowTimeout()),
		WithPollInterval(cfg.GetPopupPollInterval()),
	}, options...)
	return NewController(SettingsFromConfig(cfg), opener, persister, flows, opts...)
}
