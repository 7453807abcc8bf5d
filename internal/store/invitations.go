// ABOUTME: Invitation store methods: issue, redeem, replace, cancel, and lazy expiry
// ABOUTME: Redemption and cancellation are conditional writes so races cannot double-apply

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

func insertInvitation(ctx context.Context, db execer, inv *Invitation) error {
	query := `
		INSERT INTO invitations (token_hash, account_id, created_at, expires_at)
		VALUES (?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		inv.TokenHash,
		inv.AccountID,
		formatTime(inv.CreatedAt),
		formatTime(inv.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("inserting invitation: %w", err)
	}
	return nil
}

// CreateInvitedAccount creates a pending account and its first invitation
// in one transaction.
func (s *SQLiteStore) CreateInvitedAccount(ctx context.Context, account *Account, inv *Invitation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	account.Status = StatusPending
	account.PasswordHash = ""
	if err := insertAccount(ctx, tx, account); err != nil {
		return err
	}
	inv.AccountID = account.ID
	if err := insertInvitation(ctx, tx, inv); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing invitation: %w", err)
	}

	s.logger.Info("created invited account",
		"id", account.ID,
		"username", account.Username,
		"role", account.Role,
		"expires_at", inv.ExpiresAt)
	return nil
}

// GetInvitation retrieves an invitation by token hash.
func (s *SQLiteStore) GetInvitation(ctx context.Context, tokenHash string) (*Invitation, error) {
	return getInvitation(ctx, s.db, tokenHash)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getInvitation(ctx context.Context, db queryRower, tokenHash string) (*Invitation, error) {
	query := `
		SELECT token_hash, account_id, created_at, expires_at, used_at
		FROM invitations
		WHERE token_hash = ?
	`

	var inv Invitation
	var createdAtStr, expiresAtStr string
	var usedAtStr sql.NullString

	err := db.QueryRowContext(ctx, query, tokenHash).Scan(
		&inv.TokenHash,
		&inv.AccountID,
		&createdAtStr,
		&expiresAtStr,
		&usedAtStr,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying invitation: %w", err)
	}

	if inv.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if inv.ExpiresAt, err = time.Parse(time.RFC3339, expiresAtStr); err != nil {
		return nil, fmt.Errorf("parsing expires_at: %w", err)
	}
	if inv.UsedAt, err = parseOptionalTime(usedAtStr, "used_at"); err != nil {
		return nil, err
	}
	return &inv, nil
}

// AcceptInvitation atomically redeems an invitation and activates its
// account with passwordHash. Returns ErrInvitationUsed if already used,
// ErrInvitationExpired if expired, or ErrNotFound if the token is unknown.
func (s *SQLiteStore) AcceptInvitation(ctx context.Context, tokenHash, passwordHash string) (*Account, error) {
	now := formatTime(s.nowUTC())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Only succeeds if the invitation exists, is unused, and not expired.
	result, err := tx.ExecContext(ctx, `
		UPDATE invitations
		SET used_at = ?
		WHERE token_hash = ?
		  AND used_at IS NULL
		  AND expires_at > ?
	`, now, tokenHash, now)
	if err != nil {
		return nil, fmt.Errorf("marking invitation as used: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return nil, s.diagnoseInvitation(ctx, tx, tokenHash)
	}

	inv, err := getInvitation(ctx, tx, tokenHash)
	if err != nil {
		return nil, err
	}

	result, err = tx.ExecContext(ctx, `
		UPDATE accounts
		SET password_hash = ?, invitation_status = ?
		WHERE id = ? AND invitation_status = ?
	`, passwordHash, StatusAccepted, inv.AccountID, StatusPending)
	if err != nil {
		return nil, fmt.Errorf("activating account: %w", err)
	}
	if rowsAffected, err = result.RowsAffected(); err != nil {
		return nil, fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, ErrNotPending
	}

	// Any other outstanding token for the account dies with this redemption.
	if _, err := tx.ExecContext(ctx,
		"UPDATE invitations SET used_at = ? WHERE account_id = ? AND used_at IS NULL",
		now, inv.AccountID); err != nil {
		return nil, fmt.Errorf("retiring sibling invitations: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing acceptance: %w", err)
	}

	s.logger.Info("invitation accepted", "account_id", inv.AccountID)
	return s.GetAccount(ctx, inv.AccountID)
}

// diagnoseInvitation explains why a redemption matched no row. An expired
// invitation also marks its still-pending account expired.
func (s *SQLiteStore) diagnoseInvitation(ctx context.Context, tx *sql.Tx, tokenHash string) error {
	inv, err := getInvitation(ctx, tx, tokenHash)
	if err != nil {
		return err
	}
	if inv.UsedAt != nil {
		return ErrInvitationUsed
	}
	if !s.nowUTC().Before(inv.ExpiresAt) {
		if _, err := tx.ExecContext(ctx,
			"UPDATE accounts SET invitation_status = ? WHERE id = ? AND invitation_status = ?",
			StatusExpired, inv.AccountID, StatusPending); err != nil {
			return fmt.Errorf("marking account expired: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing expiry: %w", err)
		}
		return ErrInvitationExpired
	}
	return ErrNotFound
}

// ReplaceInvitation retires every outstanding token of a pending account and
// stores inv as its only valid one. Returns ErrNotPending for accounts that
// are not pending and ErrNotFound for unknown accounts.
func (s *SQLiteStore) ReplaceInvitation(ctx context.Context, accountID string, inv *Invitation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := requirePending(ctx, tx, accountID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE invitations SET used_at = ? WHERE account_id = ? AND used_at IS NULL",
		formatTime(s.nowUTC()), accountID); err != nil {
		return fmt.Errorf("retiring invitations: %w", err)
	}

	inv.AccountID = accountID
	if err := insertInvitation(ctx, tx, inv); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE accounts SET invited_at = ? WHERE id = ?",
		formatTime(inv.CreatedAt), accountID); err != nil {
		return fmt.Errorf("updating invited_at: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing invitation: %w", err)
	}

	s.logger.Info("invitation replaced", "account_id", accountID, "expires_at", inv.ExpiresAt)
	return nil
}

func requirePending(ctx context.Context, db queryRower, accountID string) error {
	var status string
	err := db.QueryRowContext(ctx, "SELECT invitation_status FROM accounts WHERE id = ?", accountID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("querying account status: %w", err)
	}
	if status != StatusPending {
		return ErrNotPending
	}
	return nil
}

// CancelInvitation deletes a pending account along with its invitations.
// Accounts in any other state are left untouched and ErrNotPending is returned.
func (s *SQLiteStore) CancelInvitation(ctx context.Context, accountID string) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM accounts WHERE id = ? AND invitation_status = ?",
		accountID, StatusPending)
	if err != nil {
		return fmt.Errorf("deleting account: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected > 0 {
		s.logger.Info("invitation cancelled", "account_id", accountID)
		return nil
	}
	if err := requirePending(ctx, s.db, accountID); err != nil {
		return err
	}
	return ErrNotFound
}

// ExpireStaleInvitations marks pending accounts expired when none of their
// invitations can still be redeemed. Returns the number of accounts marked.
func (s *SQLiteStore) ExpireStaleInvitations(ctx context.Context) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE accounts
		SET invitation_status = ?
		WHERE invitation_status = ?
		  AND NOT EXISTS (
			SELECT 1 FROM invitations
			WHERE invitations.account_id = accounts.id
			  AND invitations.used_at IS NULL
			  AND invitations.expires_at > ?
		  )
	`, StatusExpired, StatusPending, formatTime(s.nowUTC()))
	if err != nil {
		return 0, fmt.Errorf("expiring invitations: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected > 0 {
		s.logger.Debug("expired stale invitations", "count", rowsAffected)
	}
	return int(rowsAffected), nil
}
