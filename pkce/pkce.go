// Package pkce generates and validates the per-flow parameters of the OAuth
// 2.0 Authorization Code flow with Proof Key for Code Exchange (RFC 7636).
package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"

	"github.com/pkg/errors"
)

const (
	// RFC 7636 §4.1: code verifier length bounds in characters.
	MinVerifierLength = 43
	MaxVerifierLength = 128

	// State parameter length bounds in characters.
	MinStateLength = 16
	MaxStateLength = 64

	verifierByteLength = 48 // encodes to 64 base64url characters
	stateByteLength    = 24 // encodes to 32 base64url characters
)

// CodeChallengeMethodS256 is the only challenge method this package produces.
const CodeChallengeMethodS256 = "S256"

// GenerateCodeVerifier returns a cryptographically random code verifier.
// If the randomness source is unavailable the error is returned as-is; there
// is no fallback to weaker randomness.
func GenerateCodeVerifier() (string, error) {
	b := make([]byte, verifierByteLength)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "[GenerateCodeVerifier] rand.Read")
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// GenerateCodeChallenge derives the S256 code challenge from a verifier:
// BASE64URL(SHA256(verifier)), no padding, per RFC 7636 §4.2.
func GenerateCodeChallenge(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

// GenerateState returns a cryptographically random state parameter for CSRF
// binding between the authorization request and its callback.
func GenerateState() (string, error) {
	b := make([]byte, stateByteLength)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "[GenerateState] rand.Read")
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// IsValidCodeVerifier reports whether s satisfies the RFC 7636 length and
// unreserved-character constraints for a code verifier.
func IsValidCodeVerifier(s string) bool {
	if len(s) < MinVerifierLength || len(s) > MaxVerifierLength {
		return false
	}
	return allUnreserved(s)
}

// IsValidState reports whether s satisfies the length and alphabet
// constraints for a state parameter.
func IsValidState(s string) bool {
	if len(s) < MinStateLength || len(s) > MaxStateLength {
		return false
	}
	return allUnreserved(s)
}

// allUnreserved checks every character against the RFC 3986 unreserved set:
// ALPHA / DIGIT / "-" / "." / "_" / "~".
func allUnreserved(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '.' || c == '_' || c == '~':
		default:
			return false
		}
	}
	return true
}
