// Package sessionrepo stores server-side customer sessions behind a Repo
// interface. The in-memory implementation serves single-instance and test
// use; the Redis implementation serves shared serverless deployments.
package sessionrepo

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a session does not exist or has expired.
var ErrNotFound = errors.New("session not found")

type Session struct {
	// Customer identity attached by the callback exchange
	CustomerID string `json:"customer_id"`
	Email      string `json:"email"`
	Name       string `json:"name"`

	// Platform credential
	AccessToken string `json:"access_token"`

	// Session management
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

type Repo interface {
	Upsert(ctx context.Context, sessionID string, session Session) error
	Get(ctx context.Context, sessionID string) (Session, error)
	Delete(ctx context.Context, sessionID string) error
}
