package httpapi

import (
	"net/http"
	"strings"

	"clubapi.org/internal/auth"
)

const managementPrefix = "/api/v1/management/"

// Roles allowed under the management prefix regardless of method.
var managementRoles = []auth.Role{auth.RoleAdmin, auth.RoleManager}

// Method-level rules under the management prefix: the principal needs any
// one of the listed permission keys, not just the coarse role.
var managementMethodPerms = map[string][]string{
	http.MethodGet:    {auth.PermAdminRead, auth.PermManagerRead},
	http.MethodPost:   {auth.PermAdminCreate, auth.PermManagerCreate},
	http.MethodPut:    {auth.PermAdminUpdate, auth.PermManagerUpdate},
	http.MethodDelete: {auth.PermAdminDelete, auth.PermManagerDelete},
}

// withPolicy is the authorization gate, evaluated after identity has been
// established. Public paths bypass it entirely; every other path requires
// an authenticated principal, and the management prefix additionally
// requires role and method-level permissions.
func (a *API) withPolicy(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		principal, ok := auth.PrincipalFromContext(r.Context())
		if !ok {
			unauthorized(w, r)
			return
		}

		if strings.HasPrefix(r.URL.Path, managementPrefix) {
			if !hasAnyRole(principal, managementRoles) {
				forbidden(w, r)
				return
			}
			if perms, found := managementMethodPerms[r.Method]; found {
				if !hasAnyAuthority(principal, perms) {
					forbidden(w, r)
					return
				}
			}
		}

		next.ServeHTTP(w, r)
	})
}

// RequireRole wraps a handler so that only principals holding the role may
// reach it. Requests without identity get 401, the rest 403.
func RequireRole(role auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := auth.PrincipalFromContext(r.Context())
			if !ok {
				unauthorized(w, r)
				return
			}
			if !principal.HasRole(role) {
				forbidden(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission wraps a handler behind a single permission key.
func RequirePermission(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := auth.PrincipalFromContext(r.Context())
			if !ok {
				unauthorized(w, r)
				return
			}
			if !principal.HasAuthority(perm) {
				forbidden(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func hasAnyRole(principal auth.Principal, roles []auth.Role) bool {
	for _, role := range roles {
		if principal.HasRole(role) {
			return true
		}
	}
	return false
}

func hasAnyAuthority(principal auth.Principal, keys []string) bool {
	for _, key := range keys {
		if principal.HasAuthority(key) {
			return true
		}
	}
	return false
}

func unauthorized(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeError(w, r, http.StatusUnauthorized, unauthorizedMessage)
}

func forbidden(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusForbidden, "insufficient permissions")
}
