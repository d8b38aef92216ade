package auth

import (
	"fmt"
	"sort"
	"strings"
)

// Role is a closed set of account roles. The role-to-permission mapping is
// fixed for the lifetime of the process.
type Role string

const (
	RoleUser    Role = "USER"
	RoleManager Role = "MANAGER"
	RoleAdmin   Role = "ADMIN"
)

// Permission keys gating method-level access to management resources.
const (
	PermAdminRead     = "admin:read"
	PermAdminCreate   = "admin:create"
	PermAdminUpdate   = "admin:update"
	PermAdminDelete   = "admin:delete"
	PermManagerRead   = "management:read"
	PermManagerCreate = "management:create"
	PermManagerUpdate = "management:update"
	PermManagerDelete = "management:delete"
)

var rolePermissions = map[Role][]string{
	RoleUser: nil,
	RoleManager: {
		PermManagerRead,
		PermManagerCreate,
		PermManagerUpdate,
		PermManagerDelete,
	},
	RoleAdmin: {
		PermAdminRead,
		PermAdminCreate,
		PermAdminUpdate,
		PermAdminDelete,
		PermManagerRead,
		PermManagerCreate,
		PermManagerUpdate,
		PermManagerDelete,
	},
}

// roleAuthorities contains each role's permission keys plus the synthesized
// "ROLE_<NAME>" tag, computed once at startup.
var roleAuthorities = func() map[Role]map[string]struct{} {
	out := make(map[Role]map[string]struct{}, len(rolePermissions))
	for role, perms := range rolePermissions {
		set := make(map[string]struct{}, len(perms)+1)
		for _, p := range perms {
			set[p] = struct{}{}
		}
		set["ROLE_"+string(role)] = struct{}{}
		out[role] = set
	}
	return out
}()

// ParseRole validates a stored role value.
func ParseRole(value string) (Role, error) {
	role := Role(strings.ToUpper(strings.TrimSpace(value)))
	if _, ok := rolePermissions[role]; !ok {
		return "", fmt.Errorf("%w: role %q", ErrNotFound, value)
	}
	return role, nil
}

// Authorities returns the role's permission keys plus its role tag, sorted.
func (r Role) Authorities() []string {
	set, ok := roleAuthorities[r]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(set))
	for key := range set {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// Principal is an authenticated user with the authority set derived from
// its role.
type Principal struct {
	User        *User
	Authorities map[string]struct{}
}

// NewPrincipal resolves the user's role into a principal.
func NewPrincipal(user *User) Principal {
	set := roleAuthorities[user.Role]
	return Principal{User: user, Authorities: set}
}

// HasAuthority reports whether the principal carries the permission key or
// role tag.
func (p Principal) HasAuthority(key string) bool {
	_, ok := p.Authorities[key]
	return ok
}

// HasRole reports whether the principal holds the given role.
func (p Principal) HasRole(role Role) bool {
	return p.HasAuthority("ROLE_" + string(role))
}
