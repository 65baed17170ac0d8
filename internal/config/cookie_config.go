package config

import "time"

type CookieConfig interface {
	GetCookieDomain() string
	GetSessionCookieName() string
	GetSessionSecret() string
	GetSessionMaxLifetime() time.Duration
}

type Cookies struct{}

var _ CookieConfig = Cookies{}

// GetCookieDomain returns the shared parent domain the session cookie is
// scoped to (e.g. ".gildedthistle.com"), so both the storefront and the
// checkout subdomain observe it.
func (Cookies) GetCookieDomain() string {
	return GetEnv("COOKIE_DOMAIN", "")
}

func (Cookies) GetSessionCookieName() string {
	return GetEnv("SESSION_COOKIE_NAME", "storefront_session")
}

// GetSessionSecret is the HS256 key the session cookie JWT is signed with.
func (Cookies) GetSessionSecret() string {
	return GetEnv("SESSION_SECRET", "")
}

func (Cookies) GetSessionMaxLifetime() time.Duration {
	return 24 * time.Hour
}
