package server

import (
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gilded-thistle/storefront-auth/authflowrepo"
	"github.com/gilded-thistle/storefront-auth/internal/config"
	"github.com/gilded-thistle/storefront-auth/server/metrics"
	"github.com/gilded-thistle/storefront-auth/server/sessionrepo"
)

// Server hosts the same-origin session endpoints of the storefront: the
// OAuth callback exchange and the set-session/profile/logout surface the
// session bridge talks to.
type Server struct {
	env       string // Environment (e.g., "development", "production")
	mux       *http.ServeMux
	routes    []string
	config    config.Config
	sessions  sessionrepo.Repo
	flows     authflowrepo.Repo
	exchanger Exchanger
	metrics   *metrics.Metrics
}

func New(config config.Config, sessions sessionrepo.Repo, flows authflowrepo.Repo, exchanger Exchanger, m *metrics.Metrics) (*Server, error) {
	if sessions == nil {
		return nil, fmt.Errorf("[Server New] session repo is required")
	}
	if flows == nil {
		return nil, fmt.Errorf("[Server New] flow repo is required")
	}
	if exchanger == nil {
		return nil, fmt.Errorf("[Server New] exchanger is required")
	}
	if config.GetSessionSecret() == "" {
		return nil, fmt.Errorf("[Server New] session secret is not configured")
	}

	s := &Server{
		mux:       http.NewServeMux(),
		config:    config,
		sessions:  sessions,
		flows:     flows,
		exchanger: exchanger,
		metrics:   m,
	}
	s.env = config.GetEnv()

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Printf("[%-19s] %s\n", displayMethod, path)
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
