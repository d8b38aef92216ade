package auth

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "club-api"

// Minimum signing key size: 256 bits, per HS256 guidance.
const minSecretBytes = 32

// Tokens are length-capped before any parsing work happens.
const maxTokenLength = 4096

var (
	// ErrTokenMalformed indicates a token whose encoding or signature does
	// not verify.
	ErrTokenMalformed = errors.New("auth: token malformed")
	// ErrTokenExpired indicates a structurally valid token past its expiry.
	// Kept distinct from ErrTokenMalformed so callers can react differently.
	ErrTokenExpired = errors.New("auth: token expired")
)

// TokenClaims is the decoded content of a signed token.
type TokenClaims struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Extra     map[string]any
}

// Codec mints and parses signed bearer tokens using a symmetric key held
// in process configuration.
type Codec struct {
	secret []byte
	now    func() time.Time
}

// CodecOption configures Codec behavior.
type CodecOption func(*Codec)

// WithCodecClock overrides the time source (useful for tests).
func WithCodecClock(fn func() time.Time) CodecOption {
	return func(c *Codec) {
		if fn != nil {
			c.now = fn
		}
	}
}

// NewCodec constructs a Codec from a base64-encoded signing secret. Keys
// shorter than 256 bits are rejected.
func NewCodec(secretBase64 string, opts ...CodecOption) (*Codec, error) {
	raw := strings.TrimSpace(secretBase64)
	if raw == "" {
		return nil, errors.New("auth: signing secret is not configured")
	}
	secret, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("auth: decode signing secret: %w", err)
	}
	if len(secret) < minSecretBytes {
		return nil, fmt.Errorf("auth: signing secret must be at least %d bytes", minSecretBytes)
	}
	c := &Codec{secret: secret, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Mint signs a token for the subject with issuedAt = now and
// expiresAt = now + ttl. Extra claims are embedded alongside the
// registered set and must not collide with registered claim names.
func (c *Codec) Mint(subject string, ttl time.Duration, extra map[string]any) (string, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", errors.New("auth: subject is required")
	}
	if ttl <= 0 {
		return "", errors.New("auth: ttl must be greater than zero")
	}

	now := c.now().UTC()
	claims := jwt.MapClaims{
		"iss": issuer,
		"sub": subject,
		"iat": jwt.NewNumericDate(now),
		"exp": jwt.NewNumericDate(now.Add(ttl)),
		"jti": uuid.NewString(),
	}
	for key, value := range extra {
		claims[key] = value
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies the signature and expiry of a token and returns its
// claims. Expired tokens fail with ErrTokenExpired; everything else that
// does not verify fails with ErrTokenMalformed.
func (c *Codec) Parse(tokenString string) (*TokenClaims, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" || len(tokenString) > maxTokenLength {
		return nil, ErrTokenMalformed
	}

	parsed, err := jwt.Parse(tokenString,
		func(t *jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenMalformed
	}

	payload, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenMalformed
	}
	return claimsFromPayload(payload)
}

func claimsFromPayload(payload jwt.MapClaims) (*TokenClaims, error) {
	sub, err := payload.GetSubject()
	if err != nil || strings.TrimSpace(sub) == "" {
		return nil, ErrTokenMalformed
	}
	exp, err := payload.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, ErrTokenMalformed
	}
	iat, err := payload.GetIssuedAt()
	if err != nil || iat == nil {
		return nil, ErrTokenMalformed
	}
	if exp.Time.Before(iat.Time) {
		return nil, ErrTokenMalformed
	}

	claims := &TokenClaims{
		Subject:   sub,
		IssuedAt:  iat.Time,
		ExpiresAt: exp.Time,
	}
	registered := map[string]struct{}{
		"iss": {}, "sub": {}, "iat": {}, "exp": {}, "jti": {}, "nbf": {}, "aud": {},
	}
	for key, value := range payload {
		if _, ok := registered[key]; ok {
			continue
		}
		if claims.Extra == nil {
			claims.Extra = make(map[string]any)
		}
		claims.Extra[key] = value
	}
	return claims, nil
}
