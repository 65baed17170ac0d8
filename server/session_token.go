package server

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// The session cookie carries a signed HS256 JWT rather than a bare session
// ID, so a tampered cookie fails verification before the store is consulted.

func (s *Server) signSessionToken(sessionID string, expiresAt time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   sessionID,
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.GetSessionSecret()))
	if err != nil {
		return "", errors.Wrap(err, "[signSessionToken] signing")
	}
	return signed, nil
}

// verifySessionToken checks the signature and expiry of a session cookie
// value and returns the session ID it carries.
func (s *Server) verifySessionToken(raw string) (string, error) {
	token, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return []byte(s.config.GetSessionSecret()), nil
	})
	if err != nil {
		return "", errors.Wrap(err, "[verifySessionToken] parsing")
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", errors.New("[verifySessionToken] missing subject")
	}
	return claims.Subject, nil
}
