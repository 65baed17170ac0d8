package server

import "net/http"

// SetSessionCookie writes the signed session token into a cookie scoped to
// the shared parent domain, so both the storefront and the checkout
// subdomain observe it. HttpOnly keeps it away from script; SameSite=Lax
// survives the top-level navigation into checkout while blocking cross-site
// leakage.
func (s *Server) SetSessionCookie(w http.ResponseWriter, r *http.Request, token string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.config.GetSessionCookieName(),
		Value:    token,
		Path:     "/",
		Domain:   s.config.GetCookieDomain(),
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

func (s *Server) ClearSessionCookie(w http.ResponseWriter, r *http.Request) {
	s.SetSessionCookie(w, r, "", -1)
}
