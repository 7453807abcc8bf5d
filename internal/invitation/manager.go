// ABOUTME: Invitation lifecycle manager over a remote admin directory
// ABOUTME: Gates privileged operations and classifies service failures per operation

package invitation

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/itsjuliuscoder/promptpal-admin-dashboard/internal/admins"
	"github.com/itsjuliuscoder/promptpal-admin-dashboard/internal/apperr"
	"github.com/itsjuliuscoder/promptpal-admin-dashboard/internal/rbac"
	"github.com/itsjuliuscoder/promptpal-admin-dashboard/internal/session"
)

// Details describes an invitation as shown to the invitee.
type Details = admins.Invitation

// IssueRequest names the account to invite.
type IssueRequest = admins.InviteRequest

// Directory is the admin service surface the manager needs.
// *apiclient.Client satisfies it.
type Directory interface {
	InviteAdmin(ctx context.Context, req admins.InviteRequest) (*admins.Account, error)
	VerifyInvitation(ctx context.Context, token string) (*admins.Invitation, error)
	AcceptInvitation(ctx context.Context, token, password string) (*session.Session, error)
	ResendInvitation(ctx context.Context, accountID string) error
	CancelInvitation(ctx context.Context, accountID string) error
}

// Manager runs invitation operations. It holds no mutable state and is safe
// for concurrent use if its Directory is.
type Manager struct {
	dir      Directory
	sessions session.Store
	logger   *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithSessionStore makes Accept persist the session it obtains.
func WithSessionStore(store session.Store) Option {
	return func(m *Manager) { m.sessions = store }
}

// NewManager creates a Manager backed by dir.
func NewManager(dir Directory, opts ...Option) *Manager {
	m := &Manager{
		dir:    dir,
		logger: slog.Default().With("component", "invitation"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Issue creates a pending account for req on behalf of actor.
func (m *Manager) Issue(ctx context.Context, actor *rbac.Actor, req IssueRequest) (*admins.Account, error) {
	if err := admins.RequireManager(actor); err != nil {
		return nil, err
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	account, err := m.dir.InviteAdmin(ctx, req)
	if err != nil {
		if e, ok := transportError(err); ok && admins.IsInputRejection(e.Status) {
			return nil, apperr.Reclassify(e, apperr.KindValidation)
		}
		return nil, err
	}

	// Older service versions answer with the bare account; fill in what the
	// caller already knows.
	if account.InvitationStatus == "" {
		account.InvitationStatus = admins.StatusPending
	}
	if account.Role == "" {
		account.Role = req.Role
	}
	if account.InvitedBy == nil {
		account.InvitedBy = &admins.Inviter{Username: actor.Username, Email: actor.Email}
	}

	m.logger.Info("invitation issued",
		"account_id", account.ID,
		"username", account.Username,
		"role", account.Role,
		"invited_by", actor.Username)
	return account, nil
}

// Verify looks up the invitation behind token without changing it.
func (m *Manager) Verify(ctx context.Context, token string) (*Details, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperr.InvalidToken("invitation token is required")
	}

	details, err := m.dir.VerifyInvitation(ctx, token)
	if err != nil {
		return nil, tokenError(err)
	}
	if details.Status != "" && details.Status != admins.StatusPending {
		m.logger.Debug("invitation no longer pending", "token", TokenPrefix(token), "status", details.Status)
		return nil, apperr.InvalidToken("invitation is " + string(details.Status))
	}
	return details, nil
}

// Accept redeems token with password and returns the new admin's session.
// A token can be redeemed once; later attempts fail with an invalid token error.
func (m *Manager) Accept(ctx context.Context, token, password string) (*session.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperr.InvalidToken("invitation token is required")
	}
	if err := admins.ValidatePassword(password); err != nil {
		return nil, err
	}

	s, err := m.dir.AcceptInvitation(ctx, token, password)
	if err != nil {
		if e, ok := transportError(err); ok && e.Status == http.StatusUnprocessableEntity {
			return nil, apperr.Reclassify(e, apperr.KindValidation)
		}
		return nil, tokenError(err)
	}

	if m.sessions != nil {
		if err := m.sessions.Save(s); err != nil {
			m.logger.Warn("saving session after accept", "username", s.Profile.Username, "error", err)
			return nil, fmt.Errorf("invitation accepted for %s, but the session could not be saved; log in to continue: %w", s.Profile.Username, err)
		}
	}

	m.logger.Info("invitation accepted", "username", s.Profile.Username, "role", s.Profile.Role)
	return s, nil
}

// Resend issues a fresh token for a pending account.
func (m *Manager) Resend(ctx context.Context, actor *rbac.Actor, accountID string) error {
	if err := m.checkTarget(actor, accountID); err != nil {
		return err
	}
	if err := m.dir.ResendInvitation(ctx, accountID); err != nil {
		return stateError(err)
	}
	m.logger.Info("invitation resent", "account_id", accountID, "by", actor.Username)
	return nil
}

// Cancel deletes a pending account and its invitation.
func (m *Manager) Cancel(ctx context.Context, actor *rbac.Actor, accountID string) error {
	if err := m.checkTarget(actor, accountID); err != nil {
		return err
	}
	if err := m.dir.CancelInvitation(ctx, accountID); err != nil {
		return stateError(err)
	}
	m.logger.Info("invitation cancelled", "account_id", accountID, "by", actor.Username)
	return nil
}

func (m *Manager) checkTarget(actor *rbac.Actor, accountID string) error {
	if err := admins.RequireManager(actor); err != nil {
		return err
	}
	if strings.TrimSpace(accountID) == "" {
		return apperr.Validation("account id is required")
	}
	return nil
}

// transportError returns err as a transport error with a response status.
func transportError(err error) (*apperr.Error, bool) {
	e, ok := apperr.As(err)
	if !ok || e.Kind != apperr.KindTransport || e.Status == 0 {
		return nil, false
	}
	return e, true
}

// tokenError maps token rejections to invalid token errors. Rejected
// sessions and failures worth retrying stay transport errors.
func tokenError(err error) error {
	e, ok := transportError(err)
	if !ok || e.Unauthorized() || e.Retryable() {
		return err
	}
	switch e.Status {
	case http.StatusBadRequest, http.StatusNotFound, http.StatusConflict, http.StatusGone:
		return apperr.Reclassify(e, apperr.KindInvalidToken)
	}
	return err
}

// stateError maps a conflict on resend or cancel to a state error.
func stateError(err error) error {
	if e, ok := transportError(err); ok && e.Status == http.StatusConflict {
		return apperr.Reclassify(e, apperr.KindState)
	}
	return err
}

// TokenPrefix shortens an invitation token for logs.
func TokenPrefix(token string) string {
	if len(token) <= 8 {
		return "***"
	}
	return token[:8] + "..."
}
