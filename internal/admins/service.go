// ABOUTME: Admin account listing and direct creation, gated by admin management rights
// ABOUTME: Checks permissions and input locally before calling the admin directory

package admins

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/itsjuliuscoder/promptpal-admin-dashboard/internal/apperr"
	"github.com/itsjuliuscoder/promptpal-admin-dashboard/internal/rbac"
)

// Directory is the subset of the admin API used by Service.
type Directory interface {
	ListAdmins(ctx context.Context, params ListParams) (*Page, error)
	CreateAdmin(ctx context.Context, req CreateRequest) (*Account, error)
}

// Service lists and creates admin accounts on behalf of an actor.
type Service struct {
	dir    Directory
	logger *slog.Logger
}

// NewService creates a Service backed by dir.
func NewService(dir Directory) *Service {
	return &Service{
		dir:    dir,
		logger: slog.Default().With("component", "admins"),
	}
}

// RequireManager returns an authorization error unless actor may manage
// admin accounts.
func RequireManager(actor *rbac.Actor) error {
	if actor == nil {
		return apperr.Authorization("not authenticated")
	}
	if !actor.Can(rbac.PermAdminsWrite) {
		return apperr.Authorization("only super admins can manage admin accounts")
	}
	return nil
}

// List returns one page of admin accounts.
func (s *Service) List(ctx context.Context, actor *rbac.Actor, params ListParams) (*Page, error) {
	if err := RequireManager(actor); err != nil {
		return nil, err
	}
	if err := ValidateListParams(params); err != nil {
		return nil, err
	}

	page, err := s.dir.ListAdmins(ctx, params)
	if err != nil {
		return nil, err
	}
	if page.Accounts == nil {
		page.Accounts = []Account{}
	}
	return page, nil
}

// Create creates an active admin account with a password.
func (s *Service) Create(ctx context.Context, actor *rbac.Actor, req CreateRequest) (*Account, error) {
	if err := RequireManager(actor); err != nil {
		return nil, err
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	account, err := s.dir.CreateAdmin(ctx, req)
	if err != nil {
		if e, ok := apperr.As(err); ok && e.Kind == apperr.KindTransport && IsInputRejection(e.Status) {
			return nil, apperr.Reclassify(e, apperr.KindValidation)
		}
		return nil, err
	}

	s.logger.Info("created admin account",
		"id", account.ID,
		"username", account.Username,
		"role", account.Role,
		"created_by", actor.Username)
	return account, nil
}

// IsInputRejection reports whether status means the service refused the
// submitted identity as malformed or duplicate.
func IsInputRejection(status int) bool {
	switch status {
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		return true
	}
	return false
}
