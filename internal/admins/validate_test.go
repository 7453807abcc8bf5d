// ABOUTME: Tests for local admin input validation and password strength scoring
// ABOUTME: Table-driven cases mirror the console's form rules

package admins

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/itsjuliuscoder/promptpal-admin-dashboard/internal/apperr"
	"github.com/itsjuliuscoder/promptpal-admin-dashboard/internal/rbac"
)

func TestInviteRequest_Validate(t *testing.T) {
	valid := InviteRequest{Username: "alice", Email: "alice@example.com", Role: rbac.RoleAdmin}

	tests := []struct {
		name    string
		mutate  func(r *InviteRequest)
		wantErr string
	}{
		{name: "valid", mutate: func(r *InviteRequest) {}},
		{name: "missing username", mutate: func(r *InviteRequest) { r.Username = "  " }, wantErr: "username is required"},
		{name: "short username", mutate: func(r *InviteRequest) { r.Username = "al" }, wantErr: "username must be at least 3 characters long"},
		{name: "missing email", mutate: func(r *InviteRequest) { r.Email = "" }, wantErr: "email is required"},
		{name: "malformed email", mutate: func(r *InviteRequest) { r.Email = "alice@example" }, wantErr: "please enter a valid email address"},
		{name: "email with space", mutate: func(r *InviteRequest) { r.Email = "al ice@example.com" }, wantErr: "please enter a valid email address"},
		{name: "missing role", mutate: func(r *InviteRequest) { r.Role = "" }, wantErr: "role is required"},
		{name: "unknown role", mutate: func(r *InviteRequest) { r.Role = "owner" }, wantErr: `unknown role "owner"`},
		{name: "unknown permission", mutate: func(r *InviteRequest) { r.Permissions = []string{"users:delete"} }, wantErr: `unknown permission "users:delete"`},
		{name: "known permission", mutate: func(r *InviteRequest) { r.Permissions = []string{rbac.PermBillingWrite} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			err := req.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, apperr.ErrValidation)
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}

func TestCreateRequest_Validate(t *testing.T) {
	valid := CreateRequest{
		Username:        "bob",
		Email:           "bob@example.com",
		Password:        "secret1",
		ConfirmPassword: "secret1",
		Role:            rbac.RoleSupport,
	}
	assert.NoError(t, valid.Validate())

	short := valid
	short.Password, short.ConfirmPassword = "abc", "abc"
	assert.EqualError(t, short.Validate(), "password must be at least 6 characters long")

	mismatch := valid
	mismatch.ConfirmPassword = "secret2"
	assert.EqualError(t, mismatch.Validate(), "passwords do not match")

	empty := valid
	empty.Password = ""
	assert.EqualError(t, empty.Validate(), "password is required")
}

func TestNormalize(t *testing.T) {
	req := InviteRequest{Username: "  alice ", Email: " alice@example.com\n"}
	req.Normalize()
	assert.Equal(t, "alice", req.Username)
	assert.Equal(t, "alice@example.com", req.Email)
}

func TestValidatePassword_Boundary(t *testing.T) {
	assert.ErrorIs(t, ValidatePassword("abcde"), apperr.ErrValidation)
	assert.NoError(t, ValidatePassword("abcdef"))
}

func TestValidate_CountsCharactersNotBytes(t *testing.T) {
	assert.ErrorIs(t, ValidatePassword("abcdé"), apperr.ErrValidation)
	assert.ErrorIs(t, ValidatePassword("日本語パス"), apperr.ErrValidation)
	assert.NoError(t, ValidatePassword("abcdéf"))

	assert.ErrorIs(t, ValidateUsername("jé"), apperr.ErrValidation)
	assert.NoError(t, ValidateUsername("josé"))
}

func TestPasswordStrength(t *testing.T) {
	tests := []struct {
		password  string
		wantScore int
		wantLabel string
	}{
		{password: "", wantScore: 0, wantLabel: StrengthNone},
		{password: "abc", wantScore: 0, wantLabel: StrengthNone},
		{password: "abcdef", wantScore: 1, wantLabel: StrengthWeak},
		{password: "abcdefgh", wantScore: 2, wantLabel: StrengthWeak},
		{password: "abcdefG1", wantScore: 4, wantLabel: StrengthStrong},
		{password: "abcdefg1", wantScore: 3, wantLabel: StrengthMedium},
		{password: "Abcdefg1!", wantScore: 5, wantLabel: StrengthStrong},
	}

	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			score, label := PasswordStrength(tt.password)
			assert.Equal(t, tt.wantScore, score)
			assert.Equal(t, tt.wantLabel, label)
		})
	}
}

func TestValidateListParams(t *testing.T) {
	assert.NoError(t, ValidateListParams(ListParams{}))
	assert.NoError(t, ValidateListParams(ListParams{Page: 2, Limit: 20, Role: rbac.RoleAnalyst, Status: StatusExpired}))
	assert.ErrorIs(t, ValidateListParams(ListParams{Page: -1}), apperr.ErrValidation)
	assert.ErrorIs(t, ValidateListParams(ListParams{Role: "owner"}), apperr.ErrValidation)
	assert.ErrorIs(t, ValidateListParams(ListParams{Status: "cancelled"}), apperr.ErrValidation)
}
