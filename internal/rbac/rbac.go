// ABOUTME: Static role table and permission checks for admin accounts
// ABOUTME: Unknown roles resolve to no permissions; custom grants are additive

package rbac

import (
	"slices"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Role is an admin role name.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleSupport    Role = "support"
	RoleAnalyst    Role = "analyst"
)

// Capability tokens used by the role table.
const (
	PermBillingWrite  = "billing:write"
	PermUsersWrite    = "users:write"
	PermUsersRead     = "users:read"
	PermPromptsWrite  = "prompts:write"
	PermPromptsRead   = "prompts:read"
	PermSettingsWrite = "settings:write"
	PermSettingsRead  = "settings:read"
	PermAnalyticsRead = "analytics:read"
	PermAdminsWrite   = "admins:write"
)

// rolePermissions is the static role table. It is never handed out directly.
var rolePermissions = map[Role][]string{
	RoleSuperAdmin: {PermBillingWrite, PermUsersWrite, PermPromptsWrite, PermSettingsWrite, PermAdminsWrite},
	RoleAdmin:      {PermUsersWrite, PermPromptsWrite, PermSettingsWrite},
	RoleSupport:    {PermUsersRead, PermPromptsRead, PermSettingsRead},
	RoleAnalyst:    {PermAnalyticsRead},
}

// roleOrder lists roles from most to least privileged.
var roleOrder = []Role{RoleSuperAdmin, RoleAdmin, RoleSupport, RoleAnalyst}

// PermissionSet is a set of capability tokens.
type PermissionSet map[string]struct{}

// NewPermissionSet builds a set from the given tokens, ignoring empty strings.
func NewPermissionSet(perms ...string) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		if p != "" {
			set[p] = struct{}{}
		}
	}
	return set
}

// Has reports whether the set contains perm.
func (s PermissionSet) Has(perm string) bool {
	_, ok := s[perm]
	return ok
}

// Sorted returns the tokens in lexical order.
func (s PermissionSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Roles returns all known roles, most privileged first.
func Roles() []Role {
	return slices.Clone(roleOrder)
}

// ParseRole returns the role named by s and whether it is known.
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	_, ok := rolePermissions[r]
	return r, ok
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := rolePermissions[r]
	return ok
}

// Label returns a display name such as "Super Admin".
func (r Role) Label() string {
	if r == "" {
		return "(none)"
	}
	return cases.Title(language.English).String(strings.ReplaceAll(string(r), "_", " "))
}

// RolePermissions returns a copy of the permissions granted by role.
// Unknown and empty roles get an empty set.
func RolePermissions(role Role) PermissionSet {
	return NewPermissionSet(rolePermissions[role]...)
}

// Effective returns the union of the role's permissions and the custom grants.
func Effective(role Role, custom []string) PermissionSet {
	set := RolePermissions(role)
	for _, p := range custom {
		if p != "" {
			set[p] = struct{}{}
		}
	}
	return set
}

// HasPermission reports whether perm is granted by role or by any of the
// custom permissions.
func HasPermission(role Role, perm string, custom ...string) bool {
	if slices.Contains(rolePermissions[role], perm) {
		return true
	}
	return perm != "" && slices.Contains(custom, perm)
}

// KnownPermissions returns every capability that appears in the role table.
func KnownPermissions() []string {
	set := make(PermissionSet)
	for _, perms := range rolePermissions {
		for _, p := range perms {
			set[p] = struct{}{}
		}
	}
	return set.Sorted()
}

// IsKnownPermission reports whether perm appears in the role table.
func IsKnownPermission(perm string) bool {
	for _, perms := range rolePermissions {
		if slices.Contains(perms, perm) {
			return true
		}
	}
	return false
}
