package auth

import "time"

// User represents a registered account. Profile reference ids point at
// lookup tables owned by the surrounding application.
type User struct {
	ID            string
	Username      string
	Email         string
	FirstName     string
	LastName      string
	DisplayName   string
	PasswordHash  string
	Role          Role
	AgeCategoryID *string
	ClubBranchID  *string
	PlayerLevelID *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TokenKind discriminates ledger rows. Only access tokens are recorded in
// the minimal design; the kind column keeps refresh tracking an additive
// change.
type TokenKind string

const KindBearer TokenKind = "BEARER"

// IssuedToken is one row of the revocation ledger. Rows are flagged, never
// deleted, so the ledger doubles as an audit trail of issued credentials.
type IssuedToken struct {
	ID        string
	UserID    string
	Token     string
	Kind      TokenKind
	Revoked   bool
	Expired   bool
	CreatedAt time.Time
}

// Usable reports whether the token may still authenticate requests.
func (t IssuedToken) Usable() bool {
	return !t.Revoked && !t.Expired
}
