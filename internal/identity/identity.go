// Package identity resolves bearer tokens to principals.
//
// Two verifiers are provided: JWTVerifier checks platform-issued HS256 tokens
// locally with the project's JWT secret, and RemoteVerifier asks the hosted
// auth service to resolve the token. Both return ErrInvalidToken for tokens
// that are malformed, expired or rejected, and a wrapped error for provider
// outages.
package identity

import (
	"context"
	"errors"
)

// RoleAdmin is the role claim value that grants administrative access
const RoleAdmin = "admin"

// ErrInvalidToken reports a token the provider does not accept
var ErrInvalidToken = errors.New("invalid or expired token")

// Principal is the identity resolved from a bearer token
type Principal struct {
	Subject      string         `json:"id"`
	Email        string         `json:"email,omitempty"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	AppMetadata  map[string]any `json:"app_metadata,omitempty"`
}

// Verifier resolves a bearer token to a principal
type Verifier interface {
	Verify(ctx context.Context, token string) (*Principal, error)
}

// IsAdmin reports whether either metadata site carries role=admin. The two
// sites are not ranked: an admin claim in one wins over anything in the other.
func (p *Principal) IsAdmin() bool {
	if p == nil {
		return false
	}
	return roleOf(p.UserMetadata) == RoleAdmin || roleOf(p.AppMetadata) == RoleAdmin
}

func roleOf(metadata map[string]any) string {
	role, _ := metadata["role"].(string)
	return role
}
