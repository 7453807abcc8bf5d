// ABOUTME: Account store methods: create, lookup, listing with filters, login tracking
// ABOUTME: Reads join the inviter so listings can show who sent an invitation

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const accountColumns = `
	a.id, a.username, a.email, a.password_hash, a.role, a.permissions_json,
	a.invitation_status, a.invited_by, a.invited_at, a.last_login_at, a.created_at,
	i.username, i.email
`

const accountFrom = `
	FROM accounts a
	LEFT JOIN accounts i ON i.id = a.invited_by
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*Account, error) {
	var a Account
	var passwordHash, invitedBy, invitedAt, lastLogin, inviterName, inviterEmail sql.NullString
	var permsJSON, createdAtStr string

	if err := row.Scan(
		&a.ID,
		&a.Username,
		&a.Email,
		&passwordHash,
		&a.Role,
		&permsJSON,
		&a.Status,
		&invitedBy,
		&invitedAt,
		&lastLogin,
		&createdAtStr,
		&inviterName,
		&inviterEmail,
	); err != nil {
		return nil, err
	}

	a.PasswordHash = passwordHash.String
	a.InvitedBy = invitedBy.String
	a.InviterUsername = inviterName.String
	a.InviterEmail = inviterEmail.String

	if err := json.Unmarshal([]byte(permsJSON), &a.Permissions); err != nil {
		return nil, fmt.Errorf("parsing permissions: %w", err)
	}

	var err error
	if a.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if a.InvitedAt, err = parseOptionalTime(invitedAt, "invited_at"); err != nil {
		return nil, err
	}
	if a.LastLoginAt, err = parseOptionalTime(lastLogin, "last_login_at"); err != nil {
		return nil, err
	}
	return &a, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertAccount(ctx context.Context, db execer, account *Account) error {
	perms := account.Permissions
	if perms == nil {
		perms = []string{}
	}
	permsJSON, err := json.Marshal(perms)
	if err != nil {
		return fmt.Errorf("encoding permissions: %w", err)
	}

	var passwordHash, invitedBy, invitedAt sql.NullString
	if account.PasswordHash != "" {
		passwordHash = sql.NullString{String: account.PasswordHash, Valid: true}
	}
	if account.InvitedBy != "" {
		invitedBy = sql.NullString{String: account.InvitedBy, Valid: true}
	}
	if account.InvitedAt != nil {
		invitedAt = sql.NullString{String: formatTime(*account.InvitedAt), Valid: true}
	}

	query := `
		INSERT INTO accounts (id, username, email, password_hash, role, permissions_json,
			invitation_status, invited_by, invited_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = db.ExecContext(ctx, query,
		account.ID,
		account.Username,
		account.Email,
		passwordHash,
		account.Role,
		string(permsJSON),
		account.Status,
		invitedBy,
		invitedAt,
		formatTime(account.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return uniqueViolation(err)
		}
		return fmt.Errorf("inserting account: %w", err)
	}
	return nil
}

// CreateAccount creates an account. Username and email are unique, ignoring case.
func (s *SQLiteStore) CreateAccount(ctx context.Context, account *Account) error {
	if err := insertAccount(ctx, s.db, account); err != nil {
		return err
	}
	s.logger.Info("created account", "id", account.ID, "username", account.Username, "role", account.Role)
	return nil
}

// GetAccount retrieves an account by ID.
func (s *SQLiteStore) GetAccount(ctx context.Context, id string) (*Account, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+accountColumns+accountFrom+" WHERE a.id = ?", id)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying account: %w", err)
	}
	return a, nil
}

// GetAccountByUsername retrieves an account by username, ignoring case.
func (s *SQLiteStore) GetAccountByUsername(ctx context.Context, username string) (*Account, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+accountColumns+accountFrom+" WHERE a.username = ?", username)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying account by username: %w", err)
	}
	return a, nil
}

// ListAccounts returns the accounts matching filter, newest first, and the
// total number of matches ignoring Offset and Limit.
func (s *SQLiteStore) ListAccounts(ctx context.Context, filter AccountFilter) ([]*Account, int, error) {
	var where []string
	var args []any

	if filter.Search != "" {
		like := "%" + escapeLike(filter.Search) + "%"
		where = append(where, `(a.username LIKE ? ESCAPE '\' OR a.email LIKE ? ESCAPE '\')`)
		args = append(args, like, like)
	}
	if filter.Role != "" {
		where = append(where, "a.role = ?")
		args = append(args, filter.Role)
	}
	if filter.Status != "" {
		where = append(where, "a.invitation_status = ?")
		args = append(args, filter.Status)
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM accounts a"+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting accounts: %w", err)
	}

	query := "SELECT " + accountColumns + accountFrom + clause + " ORDER BY a.created_at DESC, a.username ASC"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying accounts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	accounts := []*Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning account: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating accounts: %w", err)
	}

	return accounts, total, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// CountAccounts returns the number of accounts.
func (s *SQLiteStore) CountAccounts(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM accounts").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting accounts: %w", err)
	}
	return count, nil
}

// RecordLogin stores the time of a successful login.
func (s *SQLiteStore) RecordLogin(ctx context.Context, id string, at time.Time) error {
	result, err := s.db.ExecContext(ctx, "UPDATE accounts SET last_login_at = ? WHERE id = ?", formatTime(at), id)
	if err != nil {
		return fmt.Errorf("recording login: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
