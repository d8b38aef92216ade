package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"clubapi.org/internal/auth"
	"clubapi.org/internal/obs"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "

	// All authentication failures on protected routes collapse to this one
	// body so a caller cannot tell which check rejected it.
	unauthorizedMessage = "Unauthorized: Authentication token was either missing or invalid."
)

var publicPaths = []string{
	"/metrics",
	"/healthz",
	"/readyz",
	"/v1/info",
	"/",
}

var publicPrefixes = []string{
	"/auth/",
}

// withAuth establishes identity for the request. It never denies access by
// itself except for one case: a structurally valid token past its expiry
// is a hard failure. Everything else falls through to the authorization
// gate, authenticated or not.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		// Re-entrant filtering: an upstream handler already authenticated
		// this request.
		if _, ok := auth.PrincipalFromContext(r.Context()); ok {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			// No credential at all; the authorization gate decides.
			next.ServeHTTP(w, r)
			return
		}

		principal, err := a.auth.AuthenticateAccessToken(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrTokenExpired):
				obs.CountAuthFailure("token_expired")
				writeError(w, r, http.StatusUnauthorized, unauthorizedMessage)
				return
			case errors.Is(err, auth.ErrTokenMalformed),
				errors.Is(err, auth.ErrUnknownSubject),
				errors.Is(err, auth.ErrTokenRevoked):
				// Invalid credential: continue unauthenticated.
				obs.CountAuthFailure(failureReason(err))
				next.ServeHTTP(w, r)
				return
			default:
				writeError(w, r, http.StatusInternalServerError, "authentication error")
				return
			}
		}

		ctx := auth.ContextWithPrincipal(r.Context(), principal)
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, auth.ErrTokenMalformed):
		return "token_malformed"
	case errors.Is(err, auth.ErrUnknownSubject):
		return "unknown_subject"
	case errors.Is(err, auth.ErrTokenRevoked):
		return "token_revoked"
	default:
		return "other"
	}
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
