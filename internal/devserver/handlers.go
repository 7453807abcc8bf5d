// ABOUTME: Admin API handlers: login, profile, accounts, and the invitation lifecycle
// ABOUTME: Responses use the {success, data, error, pagination} envelope

package devserver

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/itsjuliuscoder/promptpal-admin-dashboard/internal/admins"
	"github.com/itsjuliuscoder/promptpal-admin-dashboard/internal/apperr"
	"github.com/itsjuliuscoder/promptpal-admin-dashboard/internal/auth"
	"github.com/itsjuliuscoder/promptpal-admin-dashboard/internal/rbac"
	"github.com/itsjuliuscoder/promptpal-admin-dashboard/internal/store"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
	maxRequestBytes  = 64 << 10
)

// dummyHash keeps login timing the same whether or not the user exists.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, map[string]any{"success": true, "data": data})
}

func writeOK(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": msg})
}

// writeValidation writes a local validation failure as 422.
func writeValidation(w http.ResponseWriter, err error) {
	msg := err.Error()
	if e, ok := apperr.As(err); ok && e.Message != "" {
		msg = e.Message
	}
	auth.WriteError(w, http.StatusUnprocessableEntity, msg)
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	s.logger.Error(op, "error", err)
	auth.WriteError(w, http.StatusInternalServerError, "internal error")
}

// hashToken returns the stored form of an invitation token.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// newInvitationToken returns a random URL-safe token.
func newInvitationToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating invitation token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func profileOf(a *store.Account) admins.Profile {
	return admins.Profile{
		ID:          a.ID,
		Username:    a.Username,
		Email:       a.Email,
		Role:        rbac.Role(a.Role),
		Permissions: a.Permissions,
	}
}

func accountOf(a *store.Account) admins.Account {
	out := admins.Account{
		ID:               a.ID,
		Username:         a.Username,
		Email:            a.Email,
		Role:             rbac.Role(a.Role),
		Permissions:      a.Permissions,
		InvitationStatus: admins.InvitationStatus(a.Status),
		InvitedAt:        a.InvitedAt,
		CreatedAt:        a.CreatedAt,
	}
	if a.InviterUsername != "" {
		out.InvitedBy = &admins.Inviter{Username: a.InviterUsername, Email: a.InviterEmail}
	}
	return out
}

// issueSession signs a session token for a and records the login.
func (s *Server) issueSession(r *http.Request, a *store.Account) (map[string]any, error) {
	token, err := s.verifier.Generate(a.ID, a.Username, a.Role, s.opts.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("signing session token: %w", err)
	}
	if err := s.store.RecordLogin(r.Context(), a.ID, s.now()); err != nil {
		s.logger.Warn("recording login", "account_id", a.ID, "error", err)
	}
	return map[string]any{"token": token, "admin": profileOf(a)}, nil
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		auth.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	body.Username = strings.TrimSpace(body.Username)
	if body.Username == "" || body.Password == "" {
		auth.WriteError(w, http.StatusBadRequest, "username and password required")
		return
	}

	account, err := s.store.GetAccountByUsername(r.Context(), body.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(body.Password))
			auth.WriteError(w, http.StatusUnauthorized, "invalid username or password")
			return
		}
		s.internalError(w, "loading account for login", err)
		return
	}

	if account.PasswordHash == "" {
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(body.Password))
		auth.WriteError(w, http.StatusUnauthorized, "invitation has not been accepted")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(body.Password)); err != nil {
		auth.WriteError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	result, err := s.issueSession(r, account)
	if err != nil {
		s.internalError(w, "issuing session", err)
		return
	}
	s.logger.Info("admin logged in", "username", account.Username, "role", account.Role)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	actor := rbac.FromContext(r.Context())
	writeData(w, http.StatusOK, admins.Profile{
		ID:          actor.ID,
		Username:    actor.Username,
		Email:       actor.Email,
		Role:        actor.Role,
		Permissions: actor.Permissions,
	})
}

// lookupInvitation resolves a raw token to a redeemable invitation and its
// account, writing the error response itself when it cannot.
func (s *Server) lookupInvitation(w http.ResponseWriter, r *http.Request, token string) (*store.Invitation, *store.Account, bool) {
	inv, err := s.store.GetInvitation(r.Context(), hashToken(token))
	if errors.Is(err, store.ErrNotFound) {
		auth.WriteError(w, http.StatusNotFound, "invitation not found")
		return nil, nil, false
	}
	if err != nil {
		s.internalError(w, "loading invitation", err)
		return nil, nil, false
	}
	if inv.UsedAt != nil {
		auth.WriteError(w, http.StatusGone, "invitation already used")
		return nil, nil, false
	}
	if !s.now().Before(inv.ExpiresAt) {
		if _, err := s.store.ExpireStaleInvitations(r.Context()); err != nil {
			s.logger.Warn("expiring invitations", "error", err)
		}
		auth.WriteError(w, http.StatusGone, "invitation expired")
		return nil, nil, false
	}

	account, err := s.store.GetAccount(r.Context(), inv.AccountID)
	if errors.Is(err, store.ErrNotFound) {
		auth.WriteError(w, http.StatusNotFound, "invitation not found")
		return nil, nil, false
	}
	if err != nil {
		s.internalError(w, "loading invited account", err)
		return nil, nil, false
	}
	if account.Status != store.StatusPending {
		auth.WriteError(w, http.StatusGone, "invitation is "+account.Status)
		return nil, nil, false
	}
	return inv, account, true
}

func (s *Server) handleVerifyInvitation(w http.ResponseWriter, r *http.Request) {
	inv, account, ok := s.lookupInvitation(w, r, r.PathValue("token"))
	if !ok {
		return
	}

	details := admins.Invitation{
		Email:     account.Email,
		Username:  account.Username,
		Role:      rbac.Role(account.Role),
		Status:    admins.StatusPending,
		ExpiresAt: &inv.ExpiresAt,
	}
	if account.InvitedAt != nil {
		details.InvitedAt = *account.InvitedAt
	}
	if account.InviterUsername != "" {
		details.InvitedBy = &admins.Inviter{Username: account.InviterUsername, Email: account.InviterEmail}
	}
	writeData(w, http.StatusOK, details)
}

func (s *Server) handleAcceptInvitation(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		auth.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.Token == "" {
		auth.WriteError(w, http.StatusBadRequest, "token is required")
		return
	}
	if err := admins.ValidatePassword(body.Password); err != nil {
		writeValidation(w, err)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), s.opts.BcryptCost)
	if err != nil {
		s.internalError(w, "hashing password", err)
		return
	}

	account, err := s.store.AcceptInvitation(r.Context(), hashToken(body.Token), string(hash))
	switch {
	case errors.Is(err, store.ErrNotFound):
		auth.WriteError(w, http.StatusNotFound, "invitation not found")
		return
	case errors.Is(err, store.ErrInvitationUsed), errors.Is(err, store.ErrNotPending):
		auth.WriteError(w, http.StatusGone, "invitation already used")
		return
	case errors.Is(err, store.ErrInvitationExpired):
		auth.WriteError(w, http.StatusGone, "invitation expired")
		return
	case err != nil:
		s.internalError(w, "accepting invitation", err)
		return
	}

	result, err := s.issueSession(r, account)
	if err != nil {
		s.internalError(w, "issuing session", err)
		return
	}
	s.logger.Info("invitation accepted", "username", account.Username, "role", account.Role)
	writeData(w, http.StatusOK, result)
}

// writeDuplicate maps unique violations to 409, reporting whether it did.
func writeDuplicate(w http.ResponseWriter, err error) bool {
	switch {
	case errors.Is(err, store.ErrUsernameExists):
		auth.WriteError(w, http.StatusConflict, "username already exists")
	case errors.Is(err, store.ErrEmailExists):
		auth.WriteError(w, http.StatusConflict, "email already exists")
	default:
		return false
	}
	return true
}

func (s *Server) handleCreateAdmin(w http.ResponseWriter, r *http.Request) {
	var req admins.CreateRequest
	if err := decodeBody(r, &req); err != nil {
		auth.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.ConfirmPassword = req.Password
	req.Normalize()
	if err := req.Validate(); err != nil {
		writeValidation(w, err)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.opts.BcryptCost)
	if err != nil {
		s.internalError(w, "hashing password", err)
		return
	}

	account := &store.Account{
		ID:           uuid.NewString(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         string(req.Role),
		Permissions:  req.Permissions,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.CreateAccount(r.Context(), account); err != nil {
		if !writeDuplicate(w, err) {
			s.internalError(w, "creating account", err)
		}
		return
	}

	actor := rbac.FromContext(r.Context())
	s.logger.Info("admin created", "username", account.Username, "role", account.Role, "by", actor.Username)
	writeData(w, http.StatusCreated, accountOf(account))
}

// sendInvitation mails the invitation link for token to account.
func (s *Server) sendInvitation(r *http.Request, account *store.Account, inviter, token string, expiresAt time.Time) error {
	link := s.opts.PublicURL + "/admin/accept-invitation?token=" + url.QueryEscape(token)
	msg, err := renderInvitation(account.Email, invitationData{
		Username:  account.Username,
		Role:      rbac.Role(account.Role).Label(),
		InvitedBy: inviter,
		Link:      link,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return err
	}
	return s.mailer.Send(r.Context(), msg)
}

func (s *Server) handleInviteAdmin(w http.ResponseWriter, r *http.Request) {
	var req admins.InviteRequest
	if err := decodeBody(r, &req); err != nil {
		auth.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		writeValidation(w, err)
		return
	}

	token, err := newInvitationToken()
	if err != nil {
		s.internalError(w, "creating invitation", err)
		return
	}

	actor := rbac.FromContext(r.Context())
	now := s.now().UTC().Truncate(time.Second)
	account := &store.Account{
		ID:          uuid.NewString(),
		Username:    req.Username,
		Email:       req.Email,
		Role:        string(req.Role),
		Permissions: req.Permissions,
		InvitedBy:   actor.ID,
		InvitedAt:   &now,
		CreatedAt:   now,
	}
	inv := &store.Invitation{
		TokenHash: hashToken(token),
		CreatedAt: now,
		ExpiresAt: now.Add(s.opts.InvitationTTL),
	}
	if err := s.store.CreateInvitedAccount(r.Context(), account, inv); err != nil {
		if !writeDuplicate(w, err) {
			s.internalError(w, "creating invited account", err)
		}
		return
	}

	if err := s.sendInvitation(r, account, actor.Username, token, inv.ExpiresAt); err != nil {
		s.logger.Error("sending invitation", "account_id", account.ID, "error", err)
	}

	account.InviterUsername = actor.Username
	account.InviterEmail = actor.Email
	s.logger.Info("admin invited", "username", account.Username, "role", account.Role, "by", actor.Username)
	writeData(w, http.StatusCreated, accountOf(account))
}

// listParams parses the listing query string.
func listParams(q url.Values) (admins.ListParams, error) {
	p := admins.ListParams{
		Page:   1,
		Limit:  defaultPageLimit,
		Search: strings.TrimSpace(q.Get("search")),
		Role:   rbac.Role(q.Get("role")),
		Status: admins.InvitationStatus(q.Get("status")),
	}
	for name, dst := range map[string]*int{"page": &p.Page, "limit": &p.Limit} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return p, fmt.Errorf("%s must be a positive integer", name)
		}
		*dst = n
	}
	if p.Limit > maxPageLimit {
		p.Limit = maxPageLimit
	}
	if err := admins.ValidateListParams(p); err != nil {
		return p, err
	}
	return p, nil
}

func (s *Server) handleListAdmins(w http.ResponseWriter, r *http.Request) {
	p, err := listParams(r.URL.Query())
	if err != nil {
		msg := err.Error()
		if e, ok := apperr.As(err); ok {
			msg = e.Message
		}
		auth.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	if _, err := s.store.ExpireStaleInvitations(r.Context()); err != nil {
		s.logger.Warn("expiring invitations", "error", err)
	}

	rows, total, err := s.store.ListAccounts(r.Context(), store.AccountFilter{
		Search: p.Search,
		Role:   string(p.Role),
		Status: string(p.Status),
		Offset: (p.Page - 1) * p.Limit,
		Limit:  p.Limit,
	})
	if err != nil {
		s.internalError(w, "listing accounts", err)
		return
	}

	data := make([]admins.Account, 0, len(rows))
	for _, a := range rows {
		data = append(data, accountOf(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    data,
		"pagination": admins.Pagination{
			Page:       p.Page,
			Limit:      p.Limit,
			Total:      total,
			TotalPages: (total + p.Limit - 1) / p.Limit,
		},
	})
}

// writeTargetError maps store errors for resend and cancel.
func (s *Server) writeTargetError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		auth.WriteError(w, http.StatusNotFound, "admin not found")
	case errors.Is(err, store.ErrNotPending):
		auth.WriteError(w, http.StatusConflict, "invitation is not pending")
	default:
		s.internalError(w, op, err)
	}
}

func (s *Server) handleResendInvitation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if s.opts.ResendCooldown > 0 && s.resends.CheckAndMark(id) {
		wait := s.resends.Remaining(id).Round(time.Second)
		w.Header().Set("Retry-After", strconv.Itoa(max(int(wait.Seconds()), 1)))
		auth.WriteError(w, http.StatusTooManyRequests, "invitation was resent recently; try again in "+wait.String())
		return
	}
	sent := false
	defer func() {
		if !sent {
			s.resends.Forget(id)
		}
	}()

	if _, err := s.store.ExpireStaleInvitations(r.Context()); err != nil {
		s.logger.Warn("expiring invitations", "error", err)
	}

	token, err := newInvitationToken()
	if err != nil {
		s.internalError(w, "creating invitation", err)
		return
	}
	now := s.now().UTC().Truncate(time.Second)
	inv := &store.Invitation{
		TokenHash: hashToken(token),
		CreatedAt: now,
		ExpiresAt: now.Add(s.opts.InvitationTTL),
	}
	if err := s.store.ReplaceInvitation(r.Context(), id, inv); err != nil {
		s.writeTargetError(w, "replacing invitation", err)
		return
	}

	account, err := s.store.GetAccount(r.Context(), id)
	if err != nil {
		s.internalError(w, "loading invited account", err)
		return
	}

	actor := rbac.FromContext(r.Context())
	if err := s.sendInvitation(r, account, actor.Username, token, inv.ExpiresAt); err != nil {
		s.internalError(w, "sending invitation", err)
		return
	}
	sent = true
	s.logger.Info("invitation resent", "account_id", id, "by", actor.Username)
	writeOK(w, "invitation resent")
}

func (s *Server) handleCancelInvitation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.CancelInvitation(r.Context(), id); err != nil {
		s.writeTargetError(w, "cancelling invitation", err)
		return
	}
	actor := rbac.FromContext(r.Context())
	s.logger.Info("invitation cancelled", "account_id", id, "by", actor.Username)
	writeOK(w, "invitation cancelled")
}
