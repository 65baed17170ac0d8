package config

import (
	"fmt"
	"os"
)

const (
	portEnvVar      = "PORT"
	appNameVar      = "APP_NAME"
	appBaseURLVar   = "APP_BASE_URL"
	checkoutURLVar  = "CHECKOUT_BASE_URL"
	redisAddrEnvVar = "REDIS_ADDR"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "8080")
	if port != "" && port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Storefront Auth")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

// GetAppBaseURL returns the storefront origin (e.g. "https://gildedthistle.com").
// It is used both to build the OAuth redirect_uri and as the target origin for
// the popup completion message.
func (EnvVars) GetAppBaseURL() string {
	return GetEnv(appBaseURLVar, "http://localhost:8080")
}

// GetCheckoutBaseURL returns the sibling checkout origin that must observe the
// same session cookie.
func (EnvVars) GetCheckoutBaseURL() string {
	return GetEnv(checkoutURLVar, "")
}

// GetRedisAddr returns the address of the shared session store. Empty means
// the in-memory store is used instead.
func (EnvVars) GetRedisAddr() string {
	return GetEnv(redisAddrEnvVar, "")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
