package server

import (
	"html/template"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gilded-thistle/storefront-auth/oauthflow"
)

// completionPage runs in the popup after the authority redirects back. It
// posts the outcome to the opener, scoped to the storefront origin, and then
// closes itself. html/template JSON-encodes Payload inside the script
// context.
// Fallback lifetime for authorities that omit expires_in on the token
// response. Never forward a zero expiry; set-session would reject it.
const defaultTokenLifetime = time.Hour

const completionPage = `<!DOCTYPE html>
<html>
<head><title>Signing in…</title></head>
<body>
<p>Completing sign-in. You can close this window.</p>
<script>
	var payload = {{.Payload}};
	if (window.opener) {
		window.opener.postMessage(payload, {{.TargetOrigin}});
	}
	window.close();
</script>
</body>
</html>
`

var completionTemplate = template.Must(template.New("completion").Parse(completionPage))

type completionData struct {
	Payload      map[string]any
	TargetOrigin string
}

// Callback handles the authority's redirect into the popup: it validates the
// state, exchanges the code, and renders the completion page that reports
// the outcome to the opener. Every path renders the page; the opener decides
// what a given error means.
func (s *Server) Callback() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// form_post response mode delivers parameters in the body
		if err := r.ParseForm(); err != nil {
			s.renderError(w, "invalid_request")
			return
		}

		if oauthErr := r.Form.Get("error"); oauthErr != "" {
			s.failLogin(w, oauthErr)
			return
		}

		state := r.Form.Get("state")
		code := r.Form.Get("code")
		if state == "" || code == "" {
			s.failLogin(w, "invalid_request")
			return
		}

		flowState, err := s.flows.Get(state)
		if err != nil || flowState == nil {
			s.failLogin(w, "invalid_state")
			return
		}
		// State is single-use regardless of how the exchange goes
		if err := s.flows.Delete(state); err != nil {
			log.Error().Err(err).Msg("deleting flow state")
		}

		if time.Since(flowState.CreatedAt) > s.config.GetFlowTimeout() {
			s.failLogin(w, "expired")
			return
		}

		start := time.Now()
		result, err := s.exchanger.Exchange(r.Context(), code, flowState.CodeVerifier)
		if s.metrics != nil {
			s.metrics.ObserveExchangeDuration(float64(time.Since(start).Milliseconds()))
		}
		if err != nil {
			log.Error().Err(err).Msg("authorization code exchange failed")
			s.failLogin(w, "exchange_failed")
			return
		}

		if s.metrics != nil {
			s.metrics.IncrementLoginsSucceeded()
		}

		expiresAt := result.ExpiresAt
		if expiresAt.IsZero() {
			expiresAt = time.Now().Add(defaultTokenLifetime)
		}

		payload := map[string]any{
			"type":         oauthflow.MessageTypeSuccess,
			"access_token": result.AccessToken,
			"expires_at":   expiresAt.Format(time.RFC3339),
		}
		if result.IDToken != "" {
			payload["id_token"] = result.IDToken
		}
		if result.Customer != nil {
			payload["customer"] = result.Customer
		}
		s.renderCompletion(w, payload)
	}
}

func (s *Server) failLogin(w http.ResponseWriter, reason string) {
	if s.metrics != nil {
		s.metrics.IncrementLoginsFailed(reason)
	}
	s.renderError(w, reason)
}

func (s *Server) renderError(w http.ResponseWriter, reason string) {
	s.renderCompletion(w, map[string]any{
		"type":  oauthflow.MessageTypeError,
		"error": reason,
	})
}

func (s *Server) renderCompletion(w http.ResponseWriter, payload map[string]any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	data := completionData{
		Payload:      payload,
		TargetOrigin: originOf(s.config.GetAppBaseURL()),
	}
	if err := completionTemplate.Execute(w, data); err != nil {
		log.Error().Err(err).Msg("rendering completion page")
	}
}

// originOf reduces a base URL to its origin (scheme://host[:port]).
func originOf(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return baseURL
	}
	return u.Scheme + "://" + u.Host
}
