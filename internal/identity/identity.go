// Package identity models the out-of-scope identity provider collaborator:
// an opaque capability that exchanges a bearer token and a claimed user id
// for an authenticated principal.
package identity

import (
	"context"

	"github.com/google/uuid"
)

// Principal is the authenticated identity of a connected user.
type Principal struct {
	UserID   uuid.UUID
	Username string
}

// Verifier is the capability the dispatcher's handshake step depends on.
// Implementations call out to the external identity provider; this package
// only declares the contract.
type Verifier interface {
	VerifyToken(ctx context.Context, token string, claimedUserID uuid.UUID) (Principal, bool)
}

// VerifierFunc adapts a function into a Verifier.
type VerifierFunc func(ctx context.Context, token string, claimedUserID uuid.UUID) (Principal, bool)

func (f VerifierFunc) VerifyToken(ctx context.Context, token string, claimedUserID uuid.UUID) (Principal, bool) {
	if f == nil {
		return Principal{}, false
	}
	return f(ctx, token, claimedUserID)
}
