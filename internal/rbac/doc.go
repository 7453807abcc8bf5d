// Package rbac resolves admin roles into capability sets.
//
// # Roles
//
// Every admin account carries exactly one role:
//
//   - super_admin: full access, including admin account management
//   - admin: user, prompt and settings management
//   - support: read-only access to users, prompts and settings
//   - analyst: analytics dashboards only
//
// # Capabilities
//
// A capability is a "resource:action" string such as "users:write". The role
// table is fixed at build time and is never mutated. An account may also carry
// custom capabilities; these are additive:
//
//	effective = RolePermissions(role) ∪ custom
//
// Custom capabilities can grant more, never less. Taking a capability away
// requires a role change.
//
// # Unknown roles
//
// An empty or unrecognized role resolves to an empty set. Missing or malformed
// role data therefore denies everything instead of falling back to a default
// role.
//
// # Usage
//
//	if !rbac.HasPermission(actor.Role, rbac.PermAdminsWrite, actor.Permissions...) {
//		return apperr.Authorization("admin management requires super admin")
//	}
package rbac
