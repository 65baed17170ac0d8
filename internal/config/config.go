package config

type Config interface {
	EnvConfig
	CorsConfig
	OAuthConfig
	CookieConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetAppBaseURL() string
	GetCheckoutBaseURL() string
	GetRedisAddr() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	OAuth
	Cookies
}

func New() Config {
	return mainConfig{}
}
