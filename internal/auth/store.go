package auth

import "context"

// UserStore is the credential store collaborator: user records keyed by
// opaque id with unique username and email lookups.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
}

// TokenLedger is the authoritative record of issued tokens and their
// lifecycle flags.
type TokenLedger interface {
	// Record stores a freshly minted token with both flags false.
	Record(ctx context.Context, userID, token string) (*IssuedToken, error)
	// FindUsable returns the token only if it is neither revoked nor
	// expired; otherwise ErrNotFound.
	FindUsable(ctx context.Context, token string) (*IssuedToken, error)
	// FindByToken is the raw lookup used by logout.
	FindByToken(ctx context.Context, token string) (*IssuedToken, error)
	// RevokeAllForUser flips both flags on every currently-usable token
	// owned by the user. Idempotent.
	RevokeAllForUser(ctx context.Context, userID string) error
	// Revoke flips both flags on a single token row.
	Revoke(ctx context.Context, id string) error
}
