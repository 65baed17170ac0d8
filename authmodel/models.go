package authmodel

import "time"

// Customer is the minimal identity projection attached to a login by the
// callback exchange. All fields beyond ID are optional.
type Customer struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// LoginResult is the terminal payload of a successful login flow.
type LoginResult struct {
	AccessToken string
	ExpiresAt   time.Time
	IDToken     string
	Customer    *Customer

	// SessionPersisted is false when the token exchange succeeded but the
	// cross-subdomain cookie could not be set. The customer is logged in for
	// this tab's lifetime but will not be recognised at checkout.
	SessionPersisted bool
}
