package server

const (
	RouteCallback   = "/auth/callback"
	RouteSetSession = "/auth/set-session"
	RouteProfile    = "/auth/profile"
	RouteLogout     = "/auth/logout"
	RouteMetrics    = "/metrics"
)
