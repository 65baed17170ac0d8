package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) initRoutes() {
	// Popup completion: the authority redirects the popup here
	s.RegisterRouteFunc("GET "+RouteCallback, s.Callback())
	s.RegisterRouteFunc("POST "+RouteCallback, s.Callback()) // For form_post response mode

	// Session bridge API (called with credentials from the storefront and checkout origins)
	s.RegisterRouteHandler("POST "+RouteSetSession, ChainMiddleware(s.SetSession(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteProfile, ChainMiddleware(s.Profile(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteLogout, ChainMiddleware(s.Logout(), s.APIMiddleware()...))

	// Preflight for the cross-origin checkout caller
	preflight := s.CorsMiddleware(func(http.ResponseWriter, *http.Request) {})
	for _, route := range []string{RouteSetSession, RouteProfile, RouteLogout} {
		s.RegisterRouteHandler("OPTIONS "+route, preflight)
	}

	s.RegisterRouteHandler("GET "+RouteMetrics, promhttp.Handler())
}
