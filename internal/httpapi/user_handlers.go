package httpapi

import (
	"net/http"

	"clubapi.org/internal/auth"
)

type userInfoResponse struct {
	Username    string   `json:"username"`
	Email       string   `json:"email"`
	FirstName   string   `json:"firstName"`
	LastName    string   `json:"lastName"`
	DisplayName string   `json:"displayName"`
	Role        string   `json:"role"`
	Authorities []string `json:"authorities"`
}

// handleUserInfo returns the identity attached to the request context.
func (a *API) handleUserInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		unauthorized(w, r)
		return
	}
	user := principal.User
	writeJSON(w, http.StatusOK, userInfoResponse{
		Username:    user.Username,
		Email:       user.Email,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		DisplayName: user.DisplayName,
		Role:        string(user.Role),
		Authorities: user.Role.Authorities(),
	})
}

// handleUserAdmin covers update/delete of arbitrary accounts. Profile
// mutation belongs to the surrounding application's data layer; the routes
// exist so the admin gate in front of them is exercised.
func (a *API) handleUserAdmin(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPut, http.MethodDelete:
		writeError(w, r, http.StatusNotImplemented, "user administration is not implemented")
	default:
		methodNotAllowed(w, r, http.MethodPut, http.MethodDelete)
	}
}

// handleMembers is the management sample resource behind the
// role-and-permission policy table.
func (a *API) handleMembers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete:
		writeError(w, r, http.StatusNotImplemented, "member management is not implemented")
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete)
	}
}
