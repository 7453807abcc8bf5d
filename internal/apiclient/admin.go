// ABOUTME: Admin API endpoints: login, profile, admin accounts, and invitations
// ABOUTME: Each method maps to one request against the /admin routes

package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/itsjuliuscoder/promptpal-admin-dashboard/internal/admins"
	"github.com/itsjuliuscoder/promptpal-admin-dashboard/internal/apperr"
	"github.com/itsjuliuscoder/promptpal-admin-dashboard/internal/session"
)

// authResult is the body returned by login and invitation acceptance.
type authResult struct {
	Token string         `json:"token"`
	Admin admins.Profile `json:"admin"`
}

func (r *authResult) session() (*session.Session, error) {
	if r.Token == "" {
		return nil, apperr.Transport("admin API returned no session token", http.StatusOK, nil)
	}
	return session.New(r.Token, r.Admin), nil
}

// decodeAuth accepts both the bare {token, admin} body and the enveloped form.
func decodeAuth(env *envelope, raw []byte) (*session.Session, error) {
	var res authResult
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, &res); err != nil {
			return nil, apperr.Transport("decoding admin API data", http.StatusOK, err)
		}
	} else if err := json.Unmarshal(raw, &res); err != nil {
		return nil, apperr.Transport("decoding admin API response", http.StatusOK, err)
	}
	return res.session()
}

// Login exchanges credentials for a session.
func (c *Client) Login(ctx context.Context, username, password string) (*session.Session, error) {
	env, raw, err := c.do(ctx, request{
		method: http.MethodPost,
		route:  "/admin/login",
		path:   "/admin/login",
		body:   map[string]string{"username": username, "password": password},
		public: true,
	})
	if err != nil {
		return nil, err
	}
	return decodeAuth(env, raw)
}

// Me returns the profile of the authenticated admin.
func (c *Client) Me(ctx context.Context) (*admins.Profile, error) {
	env, _, err := c.do(ctx, request{
		method: http.MethodGet,
		route:  "/admin/me",
		path:   "/admin/me",
	})
	if err != nil {
		return nil, err
	}
	var p admins.Profile
	if err := decodeData(env, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// VerifyInvitation looks up the invitation behind token.
func (c *Client) VerifyInvitation(ctx context.Context, token string) (*admins.Invitation, error) {
	env, _, err := c.do(ctx, request{
		method: http.MethodGet,
		route:  "/admin/invitation/{token}",
		path:   "/admin/invitation/" + url.PathEscape(token),
		public: true,
	})
	if err != nil {
		return nil, err
	}
	var inv admins.Invitation
	if err := decodeData(env, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// AcceptInvitation redeems token, setting the account's password, and
// returns the session issued for the new admin.
func (c *Client) AcceptInvitation(ctx context.Context, token, password string) (*session.Session, error) {
	env, raw, err := c.do(ctx, request{
		method: http.MethodPost,
		route:  "/admin/invitation/accept",
		path:   "/admin/invitation/accept",
		body:   map[string]string{"token": token, "password": password},
		public: true,
	})
	if err != nil {
		return nil, err
	}
	return decodeAuth(env, raw)
}

// CreateAdmin creates an active admin account.
func (c *Client) CreateAdmin(ctx context.Context, req admins.CreateRequest) (*admins.Account, error) {
	return c.postAccount(ctx, "/admin/create", req)
}

// InviteAdmin creates a pending admin account and sends its invitation.
func (c *Client) InviteAdmin(ctx context.Context, req admins.InviteRequest) (*admins.Account, error) {
	return c.postAccount(ctx, "/admin/invite", req)
}

func (c *Client) postAccount(ctx context.Context, path string, body any) (*admins.Account, error) {
	env, _, err := c.do(ctx, request{
		method: http.MethodPost,
		route:  path,
		path:   path,
		body:   body,
	})
	if err != nil {
		return nil, err
	}
	var a admins.Account
	if err := decodeData(env, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAdmins returns one page of admin accounts.
func (c *Client) ListAdmins(ctx context.Context, params admins.ListParams) (*admins.Page, error) {
	q := url.Values{}
	if params.Page > 0 {
		q.Set("page", strconv.Itoa(params.Page))
	}
	if params.Limit > 0 {
		q.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.Search != "" {
		q.Set("search", params.Search)
	}
	if params.Role != "" {
		q.Set("role", string(params.Role))
	}
	if params.Status != "" {
		q.Set("status", string(params.Status))
	}

	env, _, err := c.do(ctx, request{
		method: http.MethodGet,
		route:  "/admin/admins",
		path:   "/admin/admins",
		query:  q,
	})
	if err != nil {
		return nil, err
	}

	page := &admins.Page{Accounts: []admins.Account{}}
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, &page.Accounts); err != nil {
			return nil, apperr.Transport("decoding admin list", http.StatusOK, err)
		}
	}
	if len(env.Pagination) > 0 && string(env.Pagination) != "null" {
		var p admins.Pagination
		if err := json.Unmarshal(env.Pagination, &p); err != nil {
			return nil, apperr.Transport("decoding pagination", http.StatusOK, err)
		}
		page.Pagination = &p
	}
	return page, nil
}

// ResendInvitation issues a fresh invitation for a pending account.
func (c *Client) ResendInvitation(ctx context.Context, accountID string) error {
	_, _, err := c.do(ctx, request{
		method: http.MethodPost,
		route:  "/admin/admins/{id}/resend-invitation",
		path:   "/admin/admins/" + url.PathEscape(accountID) + "/resend-invitation",
	})
	return err
}

// CancelInvitation deletes a pending account and its invitation.
func (c *Client) CancelInvitation(ctx context.Context, accountID string) error {
	_, _, err := c.do(ctx, request{
		method: http.MethodDelete,
		route:  "/admin/admins/{id}/cancel-invitation",
		path:   "/admin/admins/" + url.PathEscape(accountID) + "/cancel-invitation",
	})
	return err
}
