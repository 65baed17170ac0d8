package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/gilded-thistle/storefront-auth/authmodel"
	"github.com/gilded-thistle/storefront-auth/server/sessionrepo"
)

type setSessionRequest struct {
	AccessToken string              `json:"access_token"`
	ExpiresAt   time.Time           `json:"expires_at"`
	Customer    *authmodel.Customer `json:"customer,omitempty"`
}

// SetSession stores the exchanged credential server-side and hands the
// browser a signed cookie referencing it. The session never outlives the
// access token or the configured maximum lifetime, whichever is shorter.
func (s *Server) SetSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req setSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.AccessToken == "" {
			writeJSONError(w, http.StatusBadRequest, "access_token is required")
			return
		}

		now := time.Now()
		if !req.ExpiresAt.After(now) {
			writeJSONError(w, http.StatusBadRequest, "expires_at must be in the future")
			return
		}

		expiresAt := req.ExpiresAt
		if maxExpiry := now.Add(s.config.GetSessionMaxLifetime()); expiresAt.After(maxExpiry) {
			expiresAt = maxExpiry
		}

		session := sessionrepo.Session{
			AccessToken: req.AccessToken,
			ExpiresAt:   expiresAt,
			CreatedAt:   now,
		}
		if req.Customer != nil {
			session.CustomerID = req.Customer.ID
			session.Email = req.Customer.Email
			session.Name = req.Customer.Name
		}

		sessionID := uuid.NewString()
		if err := s.sessions.Upsert(r.Context(), sessionID, session); err != nil {
			log.Error().Err(err).Msg("storing session")
			writeJSONError(w, http.StatusInternalServerError, "could not store session")
			return
		}

		token, err := s.signSessionToken(sessionID, expiresAt)
		if err != nil {
			log.Error().Err(err).Msg("signing session token")
			writeJSONError(w, http.StatusInternalServerError, "could not create session")
			return
		}

		s.SetSessionCookie(w, r, token, int(time.Until(expiresAt).Seconds()))
		if s.metrics != nil {
			s.metrics.IncrementActiveSessions()
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// Profile returns the customer behind the session cookie. Every way of not
// being authenticated (no cookie, bad signature, unknown or expired session)
// collapses to the same 401.
func (s *Server) Profile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, _, ok := s.authenticatedSession(r)
		if !ok {
			if s.metrics != nil {
				s.metrics.IncrementProfileRequests("unauthenticated")
			}
			writeJSONError(w, http.StatusUnauthorized, "not authenticated")
			return
		}

		if s.metrics != nil {
			s.metrics.IncrementProfileRequests("authenticated")
		}
		writeJSON(w, http.StatusOK, authmodel.Customer{
			ID:    session.CustomerID,
			Email: session.Email,
			Name:  session.Name,
		})
	}
}

// Logout deletes the server-side session and expires the cookie. It succeeds
// even when no valid session exists, so a stale tab can always log out.
func (s *Server) Logout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, sessionID, ok := s.authenticatedSession(r); ok {
			if err := s.sessions.Delete(r.Context(), sessionID); err != nil {
				log.Error().Err(err).Msg("deleting session")
			} else if s.metrics != nil {
				s.metrics.DecrementActiveSessions()
			}
		}

		s.ClearSessionCookie(w, r)
		w.WriteHeader(http.StatusNoContent)
	}
}

// authenticatedSession resolves the request's session cookie to a stored
// session. ok is false on any miss along the way.
func (s *Server) authenticatedSession(r *http.Request) (sessionrepo.Session, string, bool) {
	cookie, err := r.Cookie(s.config.GetSessionCookieName())
	if err != nil {
		return sessionrepo.Session{}, "", false
	}

	sessionID, err := s.verifySessionToken(cookie.Value)
	if err != nil {
		return sessionrepo.Session{}, "", false
	}

	session, err := s.sessions.Get(r.Context(), sessionID)
	if err != nil {
		if !errors.Is(err, sessionrepo.ErrNotFound) {
			log.Error().Err(err).Msg("loading session")
		}
		return sessionrepo.Session{}, "", false
	}
	return session, sessionID, true
}
