// ABOUTME: Tests for the static role table and permission checks
// ABOUTME: Covers fail-closed lookups, additive custom grants, and actor helpers

package rbac

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasPermission_RoleGrants(t *testing.T) {
	for _, role := range Roles() {
		for perm := range RolePermissions(role) {
			assert.True(t, HasPermission(role, perm), "%s should have %s", role, perm)
		}
	}
}

func TestHasPermission_DeniesUngranted(t *testing.T) {
	all := KnownPermissions()
	for _, role := range Roles() {
		granted := RolePermissions(role)
		for _, perm := range all {
			if granted.Has(perm) {
				continue
			}
			assert.False(t, HasPermission(role, perm), "%s should not have %s", role, perm)
			assert.False(t, HasPermission(role, perm, "something:else"), "%s should not have %s", role, perm)
		}
	}
}

func TestHasPermission_CustomIsAdditive(t *testing.T) {
	tests := []struct {
		name   string
		role   Role
		perm   string
		custom []string
	}{
		{name: "analyst gains billing", role: RoleAnalyst, perm: PermBillingWrite, custom: []string{PermBillingWrite}},
		{name: "support gains users write", role: RoleSupport, perm: PermUsersWrite, custom: []string{PermUsersRead, PermUsersWrite}},
		{name: "custom duplicates role grant", role: RoleAdmin, perm: PermUsersWrite, custom: []string{PermUsersWrite}},
		{name: "capability outside table", role: RoleAdmin, perm: "reports:export", custom: []string{"reports:export"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, HasPermission(tt.role, tt.perm, tt.custom...))
		})
	}
}

func TestHasPermission_RemovingCustomKeepsRoleGrants(t *testing.T) {
	custom := []string{PermBillingWrite, PermUsersWrite}
	require.True(t, HasPermission(RoleAdmin, PermUsersWrite, custom...))

	// Drop every custom entry one at a time; the role grant survives.
	for i := range custom {
		reduced := append([]string{}, custom[:i]...)
		reduced = append(reduced, custom[i+1:]...)
		assert.True(t, HasPermission(RoleAdmin, PermUsersWrite, reduced...))
	}
	assert.True(t, HasPermission(RoleAdmin, PermUsersWrite))
	assert.False(t, HasPermission(RoleAdmin, PermBillingWrite))
}

func TestRolePermissions_UnknownRoleFailsClosed(t *testing.T) {
	for _, role := range []Role{"", "root", "SUPER_ADMIN", "owner"} {
		t.Run(string(role), func(t *testing.T) {
			assert.Empty(t, RolePermissions(role))
			assert.False(t, HasPermission(role, PermUsersWrite))
			assert.False(t, HasPermission(role, PermAnalyticsRead))
		})
	}
}

func TestRolePermissions_ReturnsCopy(t *testing.T) {
	perms := RolePermissions(RoleAnalyst)
	perms["billing:write"] = struct{}{}

	assert.False(t, HasPermission(RoleAnalyst, PermBillingWrite))
	assert.Equal(t, []string{PermAnalyticsRead}, RolePermissions(RoleAnalyst).Sorted())
}

func TestRolePermissions_Table(t *testing.T) {
	assert.Equal(t,
		[]string{PermAdminsWrite, PermBillingWrite, PermPromptsWrite, PermSettingsWrite, PermUsersWrite},
		RolePermissions(RoleSuperAdmin).Sorted())
	assert.Equal(t,
		[]string{PermPromptsWrite, PermSettingsWrite, PermUsersWrite},
		RolePermissions(RoleAdmin).Sorted())
	assert.Equal(t,
		[]string{PermPromptsRead, PermSettingsRead, PermUsersRead},
		RolePermissions(RoleSupport).Sorted())
	assert.Equal(t, []string{PermAnalyticsRead}, RolePermissions(RoleAnalyst).Sorted())
}

func TestOnlySuperAdminManagesAdmins(t *testing.T) {
	assert.True(t, HasPermission(RoleSuperAdmin, PermAdminsWrite))
	assert.False(t, HasPermission(RoleAdmin, PermAdminsWrite))
	assert.False(t, HasPermission(RoleSupport, PermAdminsWrite))
	assert.False(t, HasPermission(RoleAnalyst, PermAdminsWrite))
}

func TestEffective(t *testing.T) {
	got := Effective(RoleSupport, []string{PermAnalyticsRead, "", PermUsersRead})
	assert.Equal(t, []string{PermAnalyticsRead, PermPromptsRead, PermSettingsRead, PermUsersRead}, got.Sorted())

	assert.Equal(t, []string{"reports:export"}, Effective("", []string{"reports:export"}).Sorted())
}

func TestParseRole(t *testing.T) {
	r, ok := ParseRole("support")
	assert.True(t, ok)
	assert.Equal(t, RoleSupport, r)

	_, ok = ParseRole("owner")
	assert.False(t, ok)

	_, ok = ParseRole("")
	assert.False(t, ok)
}

func TestRole_Label(t *testing.T) {
	assert.Equal(t, "Super Admin", RoleSuperAdmin.Label())
	assert.Equal(t, "Analyst", RoleAnalyst.Label())
	assert.Equal(t, "(none)", Role("").Label())
}

func TestIsKnownPermission(t *testing.T) {
	assert.True(t, IsKnownPermission(PermBillingWrite))
	assert.True(t, IsKnownPermission(PermAdminsWrite))
	assert.False(t, IsKnownPermission("billing:delete"))
}

func TestActor(t *testing.T) {
	var nilActor *Actor
	assert.False(t, nilActor.Can(PermUsersRead))
	assert.Empty(t, nilActor.Effective())

	actor := &Actor{ID: "a1", Username: "sam", Role: RoleAnalyst, Permissions: []string{PermUsersRead}}
	assert.True(t, actor.Can(PermUsersRead))
	assert.True(t, actor.Can(PermAnalyticsRead))
	assert.False(t, actor.Can(PermUsersWrite))

	ctx := WithActor(context.Background(), actor)
	assert.Same(t, actor, FromContext(ctx))
	assert.Nil(t, FromContext(context.Background()))
}
