// ABOUTME: Admin account, profile, and invitation types exchanged with the admin API
// ABOUTME: JSON tags follow the remote service's wire format

package admins

import (
	"time"

	"github.com/itsjuliuscoder/promptpal-admin-dashboard/internal/rbac"
)

// InvitationStatus is the lifecycle state of an invited account.
type InvitationStatus string

const (
	StatusPending  InvitationStatus = "pending"
	StatusAccepted InvitationStatus = "accepted"
	StatusExpired  InvitationStatus = "expired"
)

// ValidStatuses lists statuses accepted by the list filter.
var ValidStatuses = []InvitationStatus{StatusPending, StatusAccepted, StatusExpired}

// Inviter identifies the admin who issued an invitation.
type Inviter struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Account is an admin account as reported by the admin API.
type Account struct {
	ID               string           `json:"_id"`
	Username         string           `json:"username"`
	Email            string           `json:"email"`
	Role             rbac.Role        `json:"role"`
	Permissions      []string         `json:"permissions,omitempty"`
	InvitationStatus InvitationStatus `json:"invitationStatus,omitempty"` // empty for directly created accounts
	InvitedBy        *Inviter         `json:"invitedBy,omitempty"`
	InvitedAt        *time.Time       `json:"invitedAt,omitempty"`
	CreatedAt        time.Time        `json:"createdAt"`
}

// Pending reports whether the account is still waiting on its invitation.
func (a *Account) Pending() bool {
	return a.InvitationStatus == StatusPending
}

// Profile is the authenticated admin's own identity.
type Profile struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	Role        rbac.Role `json:"role,omitempty"`
	Permissions []string  `json:"permissions,omitempty"`
}

// Actor converts the profile into the actor used for permission checks.
func (p Profile) Actor() *rbac.Actor {
	return &rbac.Actor{
		ID:          p.ID,
		Username:    p.Username,
		Email:       p.Email,
		Role:        p.Role,
		Permissions: p.Permissions,
	}
}

// Invitation describes a pending invitation as seen by the invitee.
type Invitation struct {
	Email     string           `json:"email"`
	Username  string           `json:"username"`
	Role      rbac.Role        `json:"role"`
	Status    InvitationStatus `json:"status,omitempty"`
	InvitedBy *Inviter         `json:"invitedBy"`
	InvitedAt time.Time        `json:"invitedAt"`
	ExpiresAt *time.Time       `json:"expiresAt,omitempty"`
}

// ListParams filters an admin listing. Zero values mean "no filter".
type ListParams struct {
	Page   int
	Limit  int
	Search string
	Role   rbac.Role
	Status InvitationStatus
}

// Pagination describes the page returned by a listing.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// Page is one page of admin accounts.
type Page struct {
	Accounts   []Account   `json:"data"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// CreateRequest creates an active admin account with a password.
type CreateRequest struct {
	Username        string    `json:"username"`
	Email           string    `json:"email"`
	Password        string    `json:"password"`
	ConfirmPassword string    `json:"-"`
	Role            rbac.Role `json:"role,omitempty"`
	Permissions     []string  `json:"permissions,omitempty"`
}

// InviteRequest creates a pending admin account with no password.
type InviteRequest struct {
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	Role        rbac.Role `json:"role,omitempty"`
	Permissions []string  `json:"permissions,omitempty"`
}
