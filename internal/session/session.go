// ABOUTME: Authenticated admin session: signed token plus the admin's profile
// ABOUTME: Reads token expiry from JWT claims without verifying the signature

package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/itsjuliuscoder/promptpal-admin-dashboard/internal/admins"
	"github.com/itsjuliuscoder/promptpal-admin-dashboard/internal/rbac"
)

// ErrNoSession is returned when no session has been stored.
var ErrNoSession = errors.New("no active session")

// Session is the credential and identity held for the duration of a work session.
type Session struct {
	Token     string         `json:"token"`
	Profile   admins.Profile `json:"admin"`
	CreatedAt time.Time      `json:"created_at"`
}

// New creates a session from a freshly issued token.
func New(token string, profile admins.Profile) *Session {
	return &Session{
		Token:     token,
		Profile:   profile,
		CreatedAt: time.Now().UTC(),
	}
}

// Actor returns the session owner as a permission-checking actor.
func (s *Session) Actor() *rbac.Actor {
	if s == nil {
		return nil
	}
	return s.Profile.Actor()
}

// ExpiresAt returns the token's exp claim. ok is false when the token is not
// a JWT or carries no expiry; the service stays the authority either way.
func (s *Session) ExpiresAt() (t time.Time, ok bool) {
	if s == nil || s.Token == "" {
		return time.Time{}, false
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(s.Token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// Expired reports whether the token's exp claim is in the past.
func (s *Session) Expired(now time.Time) bool {
	exp, ok := s.ExpiresAt()
	return ok && !now.Before(exp)
}
