// ABOUTME: Local validation for admin identity and password input
// ABOUTME: Runs before any request so bad input never costs a round trip

package admins

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/itsjuliuscoder/promptpal-admin-dashboard/internal/apperr"
	"github.com/itsjuliuscoder/promptpal-admin-dashboard/internal/rbac"
)

const (
	MinUsernameLength = 3
	MinPasswordLength = 6
)

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidateUsername checks the username is present and long enough.
func ValidateUsername(username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return apperr.Validation("username is required")
	}
	if utf8.RuneCountInString(username) < MinUsernameLength {
		return apperr.Validation(fmt.Sprintf("username must be at least %d characters long", MinUsernameLength))
	}
	return nil
}

// ValidateEmail checks the email is present and well formed.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return apperr.Validation("email is required")
	}
	if !emailRegex.MatchString(email) {
		return apperr.Validation("please enter a valid email address")
	}
	return nil
}

// ValidatePassword checks the minimum password policy.
func ValidatePassword(password string) error {
	if password == "" {
		return apperr.Validation("password is required")
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return apperr.Validation(fmt.Sprintf("password must be at least %d characters long", MinPasswordLength))
	}
	return nil
}

// ConfirmPassword checks the policy and that both entries match.
func ConfirmPassword(password, confirm string) error {
	if err := ValidatePassword(password); err != nil {
		return err
	}
	if password != confirm {
		return apperr.Validation("passwords do not match")
	}
	return nil
}

// ValidateRole checks role is one of the known roles. An empty role is
// rejected rather than defaulted.
func ValidateRole(role rbac.Role) error {
	if role == "" {
		return apperr.Validation("role is required")
	}
	if !role.Valid() {
		return apperr.Validation(fmt.Sprintf("unknown role %q", role))
	}
	return nil
}

// ValidatePermissions checks every custom permission is a known capability.
func ValidatePermissions(perms []string) error {
	for _, p := range perms {
		if !rbac.IsKnownPermission(p) {
			return apperr.Validation(fmt.Sprintf("unknown permission %q", p))
		}
	}
	return nil
}

// Validate checks an invitation request.
func (r *InviteRequest) Validate() error {
	if err := ValidateUsername(r.Username); err != nil {
		return err
	}
	if err := ValidateEmail(r.Email); err != nil {
		return err
	}
	if err := ValidateRole(r.Role); err != nil {
		return err
	}
	return ValidatePermissions(r.Permissions)
}

// Normalize trims identity fields in place.
func (r *InviteRequest) Normalize() {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.TrimSpace(r.Email)
}

// Validate checks a direct creation request, including password confirmation.
func (r *CreateRequest) Validate() error {
	if err := ValidateUsername(r.Username); err != nil {
		return err
	}
	if err := ValidateEmail(r.Email); err != nil {
		return err
	}
	if err := ConfirmPassword(r.Password, r.ConfirmPassword); err != nil {
		return err
	}
	if err := ValidateRole(r.Role); err != nil {
		return err
	}
	return ValidatePermissions(r.Permissions)
}

// Normalize trims identity fields in place.
func (r *CreateRequest) Normalize() {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.TrimSpace(r.Email)
}

// Strength labels returned by PasswordStrength.
const (
	StrengthNone   = ""
	StrengthWeak   = "Weak"
	StrengthMedium = "Medium"
	StrengthStrong = "Strong"
)

var (
	lowerRegex  = regexp.MustCompile(`[a-z]`)
	upperRegex  = regexp.MustCompile(`[A-Z]`)
	digitRegex  = regexp.MustCompile(`\d`)
	symbolRegex = regexp.MustCompile(`[^a-zA-Z\d]`)
)

// PasswordStrength scores a password from 0 to 5 and labels it.
func PasswordStrength(password string) (int, string) {
	score := 0
	if len(password) >= 6 {
		score++
	}
	if len(password) >= 8 {
		score++
	}
	if lowerRegex.MatchString(password) && upperRegex.MatchString(password) {
		score++
	}
	if digitRegex.MatchString(password) {
		score++
	}
	if symbolRegex.MatchString(password) {
		score++
	}

	switch {
	case score == 0:
		return score, StrengthNone
	case score <= 2:
		return score, StrengthWeak
	case score == 3:
		return score, StrengthMedium
	default:
		return score, StrengthStrong
	}
}

// ValidateListParams checks listing filters.
func ValidateListParams(p ListParams) error {
	if p.Page < 0 || p.Limit < 0 {
		return apperr.Validation("page and limit must not be negative")
	}
	if p.Role != "" && !p.Role.Valid() {
		return apperr.Validation(fmt.Sprintf("unknown role %q", p.Role))
	}
	if p.Status != "" {
		for _, s := range ValidStatuses {
			if s == p.Status {
				return nil
			}
		}
		return apperr.Validation(fmt.Sprintf("unknown status %q", p.Status))
	}
	return nil
}
