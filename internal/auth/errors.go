package auth

import "errors"

var (
	ErrNotFound            = errors.New("auth: not found")
	ErrDuplicateIdentity   = errors.New("auth: identity already exists")
	ErrBadCredentials      = errors.New("auth: bad credentials")
	ErrUnknownSubject      = errors.New("auth: unknown subject")
	ErrMissingRefreshToken = errors.New("auth: refresh token is missing")
	ErrTokenRevoked        = errors.New("auth: token revoked or superseded")
)
