package httpapi

import (
	"errors"
	"net/http"

	"clubapi.org/internal/auth"
	"clubapi.org/internal/obs"
)

const refreshCookieName = "refreshToken"

type registerRequest struct {
	Username     string  `json:"username"`
	Email        string  `json:"email"`
	FirstName    string  `json:"firstName"`
	LastName     string  `json:"lastName"`
	DisplayName  string  `json:"displayName"`
	Password     string  `json:"password"`
	CategoryID   *string `json:"categoryId,omitempty"`
	ClubBranchID *string `json:"clubBranchId,omitempty"`
	LevelID      *string `json:"levelId,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	creds, err := a.auth.Register(r.Context(), auth.RegisterInput{
		Username:      req.Username,
		Email:         req.Email,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		DisplayName:   req.DisplayName,
		Password:      req.Password,
		AgeCategoryID: req.CategoryID,
		ClubBranchID:  req.ClubBranchID,
		PlayerLevelID: req.LevelID,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrDuplicateIdentity):
			writeError(w, r, http.StatusConflict, "the username or email is already taken")
		case errors.Is(err, auth.ErrBadCredentials):
			writeError(w, r, http.StatusBadRequest, "username, email and password are required")
		default:
			writeError(w, r, http.StatusInternalServerError, "registration failed")
		}
		return
	}

	a.setRefreshCookie(w, creds)
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: creds.AccessToken})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	creds, err := a.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrBadCredentials) {
			obs.CountAuthFailure("bad_credentials")
			writeError(w, r, http.StatusUnauthorized, "invalid email or password")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "authentication failed")
		return
	}

	a.setRefreshCookie(w, creds)
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: creds.AccessToken})
}

func (a *API) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	cookie, err := r.Cookie(refreshCookieName)
	if err != nil || cookie.Value == "" {
		writeError(w, r, http.StatusUnauthorized, "refresh token is missing")
		return
	}

	accessToken, err := a.auth.RefreshAccessToken(r.Context(), cookie.Value)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrTokenExpired),
			errors.Is(err, auth.ErrTokenMalformed),
			errors.Is(err, auth.ErrUnknownSubject),
			errors.Is(err, auth.ErrMissingRefreshToken):
			obs.CountAuthFailure("refresh_rejected")
			writeError(w, r, http.StatusUnauthorized, unauthorizedMessage)
		default:
			writeError(w, r, http.StatusInternalServerError, "token refresh failed")
		}
		return
	}

	// The refresh token is reused until its own expiry; only the new
	// access token goes back to the caller.
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: accessToken})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	// A missing or malformed header is a no-op; the client clears its
	// local state either way.
	if token, err := extractBearerToken(r.Header.Get(authHeader)); err == nil {
		if err := a.auth.Logout(r.Context(), token); err != nil {
			// Durability gap: the token stays usable in the ledger, but the
			// client must still be told to drop its credentials.
			obs.LogEvent(map[string]any{
				"level": "error",
				"msg":   "logout_revocation_failed",
				"error": err.Error(),
			})
		}
	}

	a.clearRefreshCookie(w)
	writeJSON(w, http.StatusOK, map[string]any{"status": "logged_out"})
}

func (a *API) setRefreshCookie(w http.ResponseWriter, creds auth.Credentials) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    creds.RefreshToken,
		Path:     "/auth",
		MaxAge:   int(a.auth.RefreshTTL().Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func (a *API) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/auth",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}
