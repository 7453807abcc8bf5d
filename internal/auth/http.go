// ABOUTME: HTTP middleware for JWT authentication on admin API endpoints
// ABOUTME: Loads the account behind the token and gates handlers by permission

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/itsjuliuscoder/promptpal-admin-dashboard/internal/rbac"
	"github.com/itsjuliuscoder/promptpal-admin-dashboard/internal/store"
)

// AccountLookup loads accounts by ID.
type AccountLookup interface {
	GetAccount(ctx context.Context, id string) (*store.Account, error)
}

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// checkAccountStatus returns an error message for accounts that cannot
// authenticate (empty if allowed).
func checkAccountStatus(a *store.Account) string {
	switch a.Status {
	case "", store.StatusAccepted:
		if a.PasswordHash == "" {
			return "account has no password"
		}
		return ""
	case store.StatusPending:
		return "invitation has not been accepted"
	case store.StatusExpired:
		return "invitation has expired"
	default:
		return "unknown account status"
	}
}

// ActorFromAccount builds the permission-checking actor for an account.
func ActorFromAccount(a *store.Account) *rbac.Actor {
	return &rbac.Actor{
		ID:          a.ID,
		Username:    a.Username,
		Email:       a.Email,
		Role:        rbac.Role(a.Role),
		Permissions: a.Permissions,
	}
}

// WriteError writes the admin API error envelope.
func WriteError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": msg})
}

// HTTPAuthMiddleware creates an HTTP middleware that extracts and validates JWT tokens.
// It reloads the account named by the token and stores its actor in the
// request context with rbac.WithActor.
func HTTPAuthMiddleware(accounts AccountLookup, verifier TokenVerifier) func(http.Handler) http.Handler {
	logger := slog.Default().With("component", "auth")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, errMsg := extractBearerToken(r.Header.Get("Authorization"))
			if errMsg != "" {
				WriteError(w, http.StatusUnauthorized, errMsg)
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				msg := "invalid token"
				if errors.Is(err, ErrExpiredToken) {
					msg = "token expired"
				}
				WriteError(w, http.StatusUnauthorized, msg)
				return
			}

			account, err := accounts.GetAccount(r.Context(), claims.AccountID)
			if errors.Is(err, store.ErrNotFound) {
				WriteError(w, http.StatusUnauthorized, "account not found")
				return
			}
			if err != nil {
				logger.Error("loading account for request", "account_id", claims.AccountID, "error", err)
				WriteError(w, http.StatusInternalServerError, "internal error")
				return
			}

			if errMsg = checkAccountStatus(account); errMsg != "" {
				WriteError(w, http.StatusUnauthorized, errMsg)
				return
			}

			next.ServeHTTP(w, r.WithContext(rbac.WithActor(r.Context(), ActorFromAccount(account))))
		})
	}
}

// RequirePermissionHTTP creates an HTTP middleware that requires perm.
// Must be used after HTTPAuthMiddleware.
func RequirePermissionHTTP(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := rbac.FromContext(r.Context())
			if actor == nil {
				WriteError(w, http.StatusUnauthorized, "not authenticated")
				return
			}
			if !actor.Can(perm) {
				WriteError(w, http.StatusForbidden, "permission "+perm+" required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
