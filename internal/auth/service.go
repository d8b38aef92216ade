package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 24 * time.Hour * 14
)

// Service orchestrates registration, login, token refresh and logout,
// consulting the user store, the password hasher, the token codec and the
// revocation ledger.
type Service struct {
	users  UserStore
	ledger TokenLedger
	codec  *Codec
	now    func() time.Time

	accessTTL  time.Duration
	refreshTTL time.Duration
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl <= 0 {
			return errors.New("auth: access ttl must be greater than zero")
		}
		s.accessTTL = ttl
		return nil
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl <= 0 {
			return errors.New("auth: refresh ttl must be greater than zero")
		}
		s.refreshTTL = ttl
		return nil
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewService constructs Service with optional configuration.
func NewService(users UserStore, ledger TokenLedger, codec *Codec, opts ...ServiceOption) (*Service, error) {
	if users == nil || ledger == nil || codec == nil {
		return nil, errors.New("auth: user store, token ledger and codec are required")
	}
	svc := &Service{
		users:      users,
		ledger:     ledger,
		codec:      codec,
		now:        time.Now,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// RefreshTTL reports the configured refresh token lifetime (the HTTP layer
// uses it for the cookie Max-Age).
func (s *Service) RefreshTTL() time.Duration {
	return s.refreshTTL
}

// RegisterInput carries the fields of a registration request. The optional
// reference ids point at lookup tables owned by the surrounding
// application and are stored opaquely.
type RegisterInput struct {
	Username      string
	Email         string
	FirstName     string
	LastName      string
	DisplayName   string
	Password      string
	AgeCategoryID *string
	ClubBranchID  *string
	PlayerLevelID *string
}

// Credentials is the outcome of a successful register or login: the access
// token for the response body and the refresh token for the cookie.
type Credentials struct {
	AccessToken      string
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Register creates a new account with the default USER role and issues its
// first token pair. Fails with ErrDuplicateIdentity when the email or the
// username is already taken; both uniqueness probes run independently.
func (s *Service) Register(ctx context.Context, input RegisterInput) (Credentials, error) {
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))
	input.Username = strings.TrimSpace(input.Username)
	if input.Email == "" || input.Username == "" || input.Password == "" {
		return Credentials{}, fmt.Errorf("%w: username, email and password are required", ErrBadCredentials)
	}

	if err := s.probeTaken(func() (*User, error) {
		return s.users.FindByEmail(ctx, input.Email)
	}); err != nil {
		return Credentials{}, err
	}
	if err := s.probeTaken(func() (*User, error) {
		return s.users.FindByUsername(ctx, input.Username)
	}); err != nil {
		return Credentials{}, err
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return Credentials{}, err
	}
	user := &User{
		Username:      input.Username,
		Email:         input.Email,
		FirstName:     strings.TrimSpace(input.FirstName),
		LastName:      strings.TrimSpace(input.LastName),
		DisplayName:   strings.TrimSpace(input.DisplayName),
		PasswordHash:  hash,
		Role:          RoleUser,
		AgeCategoryID: input.AgeCategoryID,
		ClubBranchID:  input.ClubBranchID,
		PlayerLevelID: input.PlayerLevelID,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return Credentials{}, err
	}
	return s.issueCredentials(ctx, user, false)
}

// Login verifies the credentials, revokes every previously usable access
// token for the account and issues a fresh token pair. Exactly one access
// token per account is usable afterwards.
func (s *Service) Login(ctx context.Context, email, password string) (Credentials, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return Credentials{}, ErrBadCredentials
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Credentials{}, ErrBadCredentials
		}
		return Credentials{}, err
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return Credentials{}, ErrBadCredentials
	}
	return s.issueCredentials(ctx, user, true)
}

// RefreshAccessToken exchanges a refresh token for a new access token. The
// refresh token itself is reused until its own expiry; no new one is
// issued here.
func (s *Service) RefreshAccessToken(ctx context.Context, refreshToken string) (string, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return "", ErrMissingRefreshToken
	}
	claims, err := s.codec.Parse(refreshToken)
	if err != nil {
		return "", err
	}
	user, err := s.users.FindByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", ErrUnknownSubject
		}
		return "", err
	}
	if claims.Subject != user.Email {
		return "", ErrUnknownSubject
	}

	accessToken, err := s.codec.Mint(user.Email, s.accessTTL, nil)
	if err != nil {
		return "", err
	}
	if err := s.ledger.RevokeAllForUser(ctx, user.ID); err != nil {
		return "", err
	}
	if _, err := s.ledger.Record(ctx, user.ID, accessToken); err != nil {
		return "", err
	}
	return accessToken, nil
}

// Logout marks the token revoked and expired in the ledger. A token that
// was never recorded is a silent no-op; the caller clears its local
// security context either way.
func (s *Service) Logout(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return nil
	}
	rec, err := s.ledger.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	return s.ledger.Revoke(ctx, rec.ID)
}

// AuthenticateAccessToken validates an access token end to end: signature
// and expiry via the codec, subject via the user store, usability via the
// revocation ledger. Only when all three pass is a principal returned.
func (s *Service) AuthenticateAccessToken(ctx context.Context, token string) (Principal, error) {
	claims, err := s.codec.Parse(token)
	if err != nil {
		return Principal{}, err
	}
	user, err := s.users.FindByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, ErrUnknownSubject
		}
		return Principal{}, err
	}
	if claims.Subject != user.Email {
		return Principal{}, ErrUnknownSubject
	}
	if _, err := s.ledger.FindUsable(ctx, token); err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, ErrTokenRevoked
		}
		return Principal{}, err
	}
	return NewPrincipal(user), nil
}

// issueCredentials mints a token pair for the user and records the access
// token. Revocation of prior tokens and the insert are two statements, not
// one transaction; a crash in between leaves zero usable tokens until the
// next login, which is an accepted degraded state.
func (s *Service) issueCredentials(ctx context.Context, user *User, revokePrior bool) (Credentials, error) {
	accessToken, err := s.codec.Mint(user.Email, s.accessTTL, nil)
	if err != nil {
		return Credentials{}, err
	}
	refreshToken, err := s.codec.Mint(user.Email, s.refreshTTL, nil)
	if err != nil {
		return Credentials{}, err
	}
	if revokePrior {
		if err := s.ledger.RevokeAllForUser(ctx, user.ID); err != nil {
			return Credentials{}, err
		}
	}
	if _, err := s.ledger.Record(ctx, user.ID, accessToken); err != nil {
		return Credentials{}, err
	}
	return Credentials{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: s.now().UTC().Add(s.refreshTTL),
	}, nil
}

func (s *Service) probeTaken(find func() (*User, error)) error {
	_, err := find()
	switch {
	case err == nil:
		return ErrDuplicateIdentity
	case errors.Is(err, ErrNotFound):
		return nil
	default:
		return err
	}
}
