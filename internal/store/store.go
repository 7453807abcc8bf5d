// ABOUTME: Account and invitation types plus the AccountStore interface
// ABOUTME: Shared by the SQLite implementation and the dev server handlers

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrUsernameExists is returned when trying to create an account with an existing username.
var ErrUsernameExists = errors.New("username already exists")

// ErrEmailExists is returned when trying to create an account with an existing email.
var ErrEmailExists = errors.New("email already exists")

// ErrInvitationUsed is returned when trying to redeem an already-used invitation.
var ErrInvitationUsed = errors.New("invitation already used")

// ErrInvitationExpired is returned when an invitation has expired.
var ErrInvitationExpired = errors.New("invitation expired")

// ErrNotPending is returned when an invitation operation targets an account
// that is no longer pending.
var ErrNotPending = errors.New("account is not pending")

// Invitation status values stored on accounts. Directly created accounts
// have an empty status.
const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusExpired  = "expired"
)

// Account is an admin account row.
type Account struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string // empty while the invitation is pending
	Role         string
	Permissions  []string
	Status       string
	InvitedBy    string // account ID of the inviter, empty for bootstrap or direct creation
	InvitedAt    *time.Time
	LastLoginAt  *time.Time
	CreatedAt    time.Time

	// Filled by reads that join the inviter.
	InviterUsername string
	InviterEmail    string
}

// Invitation is a redemption token bound to one account.
type Invitation struct {
	TokenHash string
	AccountID string
	CreatedAt time.Time
	ExpiresAt time.Time
	UsedAt    *time.Time
}

// AccountFilter narrows ListAccounts. Zero values mean no filter.
type AccountFilter struct {
	Search string // substring of username or email
	Role   string
	Status string
	Offset int
	Limit  int
}

// AccountStore defines the persistence used by the admin API.
type AccountStore interface {
	CreateAccount(ctx context.Context, account *Account) error
	GetAccount(ctx context.Context, id string) (*Account, error)
	GetAccountByUsername(ctx context.Context, username string) (*Account, error)
	ListAccounts(ctx context.Context, filter AccountFilter) ([]*Account, int, error)
	CountAccounts(ctx context.Context) (int, error)
	RecordLogin(ctx context.Context, id string, at time.Time) error

	CreateInvitedAccount(ctx context.Context, account *Account, inv *Invitation) error
	GetInvitation(ctx context.Context, tokenHash string) (*Invitation, error)
	AcceptInvitation(ctx context.Context, tokenHash, passwordHash string) (*Account, error)
	ReplaceInvitation(ctx context.Context, accountID string, inv *Invitation) error
	CancelInvitation(ctx context.Context, accountID string) error
	ExpireStaleInvitations(ctx context.Context) (int, error)

	Close() error
}
