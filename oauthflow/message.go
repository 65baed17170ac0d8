package oauthflow

import (
	"encoding/json"
	"time"

	"github.com/gilded-thistle/storefront-auth/authmodel"
)

// Cross-window message type discriminants, as posted by the popup completion
// page.
const (
	MessageTypeSuccess = "OAUTH_SUCCESS"
	MessageTypeError   = "OAUTH_ERROR"
)

// Envelope is one inbound cross-window message together with the origin it
// was posted from. The controller ignores envelopes whose origin is not the
// configured app origin.
type Envelope struct {
	Origin string
	Data   json.RawMessage
}

type rawMessage struct {
	Type        string              `json:"type"`
	AccessToken string              `json:"access_token"`
	ExpiresAt   string              `json:"expires_at"`
	IDToken     string              `json:"id_token"`
	Customer    *authmodel.Customer `json:"customer"`
	Error       string              `json:"error"`
}

// parsedMessage is the tagged-variant result of validating a raw payload.
// Exactly one of success / failure is set.
type parsedMessage struct {
	success *authmodel.LoginResult
	failure string
}

// parseMessage validates the discriminant and required fields of a raw
// payload. Anything that is not a well-formed OAUTH_SUCCESS or OAUTH_ERROR
// message is reported as not-ok and ignored by the caller.
func parseMessage(data json.RawMessage) (parsedMessage, bool) {
	var raw rawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return parsedMessage{}, false
	}

	switch raw.Type {
	case MessageTypeSuccess:
		if raw.AccessToken == "" || raw.ExpiresAt == "" {
			return parsedMessage{}, false
		}
		expiresAt, err := time.Parse(time.RFC3339, raw.ExpiresAt)
		if err != nil {
			return parsedMessage{}, false
		}
		return parsedMessage{success: &authmodel.LoginResult{
			AccessToken: raw.AccessToken,
			ExpiresAt:   expiresAt,
			IDToken:     raw.IDToken,
			Customer:    raw.Customer,
		}}, true

	case MessageTypeError:
		if raw.Error == "" {
			return parsedMessage{}, false
		}
		return parsedMessage{failure: raw.Error}, true
	}

	return parsedMessage{}, false
}
