// Package store persists admin accounts and invitations for the dev server
// using SQLite.
//
// # Data Models
//
//   - Account: an admin with role, custom permissions, and invitation status
//   - Invitation: a single-use token (stored hashed) bound to one account
//
// An invited account is created together with its first invitation and has
// no password. AcceptInvitation redeems a token and activates the account in
// one transaction; the redeeming UPDATE only matches unused, unexpired rows,
// so two concurrent redemptions of the same token cannot both succeed.
// CancelInvitation deletes the account only while it is still pending.
//
// Expiry is lazy: pending accounts whose invitations have all lapsed are
// marked expired when they are next looked at (ExpireStaleInvitations).
//
// # SQLite Configuration
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// # Testing
//
// Use NewSQLiteStore with a path under t.TempDir().
package store
