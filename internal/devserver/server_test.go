// ABOUTME: HTTP-level tests for the dev server's admin API
// ABOUTME: Drives the routes with raw requests against a temp-dir SQLite store

package devserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/itsjuliuscoder/promptpal-admin-dashboard/internal/auth"
	"github.com/itsjuliuscoder/promptpal-admin-dashboard/internal/store"
)

const rootPassword = "rootpass1"

type testEnv struct {
	srv    *Server
	http   *httptest.Server
	store  *store.SQLiteStore
	mailer *MemoryMailer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "dev.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	verifier, err := auth.NewJWTVerifier([]byte("devserver-test-secret-32-bytes!!"))
	require.NoError(t, err)

	mailer := &MemoryMailer{}
	srv, err := New(Options{
		InvitationTTL: time.Hour,
		PublicURL:     "https://console.example.com/",
		BcryptCost:    bcrypt.MinCost,
	}, st, verifier, mailer)
	require.NoError(t, err)

	t.Cleanup(srv.Close)

	created, err := srv.Bootstrap(context.Background(), "root", "root@example.com", rootPassword)
	require.NoError(t, err)
	require.True(t, created)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &testEnv{srv: srv, http: ts, store: st, mailer: mailer}
}

func (e *testEnv) call(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, e.http.URL+"/api"+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func (e *testEnv) login(t *testing.T, username, password string) string {
	t.Helper()
	status, body := e.call(t, http.MethodPost, "/admin/login", "", map[string]string{"username": username, "password": password})
	require.Equal(t, http.StatusOK, status, body)
	return body["token"].(string)
}

// invite invites username as role and returns the account ID and raw token.
func (e *testEnv) invite(t *testing.T, rootToken, username, role string) (string, string) {
	t.Helper()
	status, body := e.call(t, http.MethodPost, "/admin/invite", rootToken, map[string]any{
		"username": username,
		"email":    username + "@example.com",
		"role":     role,
	})
	require.Equal(t, http.StatusCreated, status, body)
	data := body["data"].(map[string]any)

	msg, ok := e.mailer.LastTo(username + "@example.com")
	require.True(t, ok)
	return data["_id"].(string), tokenFromLink(t, msg.Link)
}

func tokenFromLink(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	require.NoError(t, err)
	return u.Query().Get("token")
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	resp, err := http.Get(env.http.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestBootstrap_OnlyWhenEmpty(t *testing.T) {
	env := newTestEnv(t)
	created, err := env.srv.Bootstrap(context.Background(), "other", "other@example.com", "password1")
	require.NoError(t, err)
	assert.False(t, created)
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.call(t, http.MethodPost, "/admin/login", "", map[string]string{"username": "root", "password": rootPassword})
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, body["token"])
	admin := body["admin"].(map[string]any)
	assert.Equal(t, "super_admin", admin["role"])

	status, body = env.call(t, http.MethodPost, "/admin/login", "", map[string]string{"username": "root", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "invalid username or password", body["error"])

	status, _ = env.call(t, http.MethodPost, "/admin/login", "", map[string]string{"username": "nobody", "password": "whatever"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = env.call(t, http.MethodPost, "/admin/login", "", map[string]string{"username": "root"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestMe(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "root", rootPassword)

	status, body := env.call(t, http.MethodGet, "/admin/me", token, nil)
	require.Equal(t, http.StatusOK, status)
	data := body["data"].(map[string]any)
	assert.Equal(t, "root", data["username"])

	status, _ = env.call(t, http.MethodGet, "/admin/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestInviteVerifyAccept(t *testing.T) {
	env := newTestEnv(t)
	rootToken := env.login(t, "root", rootPassword)

	status, body := env.call(t, http.MethodPost, "/admin/invite", rootToken, map[string]any{
		"username": "alice", "email": "alice@example.com", "role": "admin",
	})
	require.Equal(t, http.StatusCreated, status, body)
	data := body["data"].(map[string]any)
	assert.Equal(t, "pending", data["invitationStatus"])
	assert.Equal(t, "admin", data["role"])
	inviter := data["invitedBy"].(map[string]any)
	assert.Equal(t, "root", inviter["username"])

	msg, ok := env.mailer.LastTo("alice@example.com")
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(msg.Link, "https://console.example.com/admin/accept-invitation?token="))
	assert.Contains(t, msg.HTML, `<a href="`+msg.Link+`">Accept your invitation</a>`)
	assert.Contains(t, msg.Markdown, "**Admin**")
	token := tokenFromLink(t, msg.Link)

	status, body = env.call(t, http.MethodGet, "/admin/invitation/"+token, "", nil)
	require.Equal(t, http.StatusOK, status, body)
	details := body["data"].(map[string]any)
	assert.Equal(t, "alice", details["username"])
	assert.Equal(t, "pending", details["status"])

	// Pending accounts cannot log in.
	status, _ = env.call(t, http.MethodPost, "/admin/login", "", map[string]string{"username": "alice", "password": "anything"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = env.call(t, http.MethodPost, "/admin/invitation/accept", "", map[string]string{"token": token, "password": "short"})
	assert.Equal(t, http.StatusUnprocessableEntity, status, body)

	status, body = env.call(t, http.MethodPost, "/admin/invitation/accept", "", map[string]string{"token": token, "password": "alicepass"})
	require.Equal(t, http.StatusOK, status, body)
	data = body["data"].(map[string]any)
	assert.NotEmpty(t, data["token"])

	status, _ = env.call(t, http.MethodPost, "/admin/invitation/accept", "", map[string]string{"token": token, "password": "alicepass"})
	assert.Equal(t, http.StatusGone, status)

	status, _ = env.call(t, http.MethodGet, "/admin/invitation/"+token, "", nil)
	assert.Equal(t, http.StatusGone, status)

	env.login(t, "alice", "alicepass")
}

func TestVerify_UnknownToken(t *testing.T) {
	env := newTestEnv(t)
	status, body := env.call(t, http.MethodGet, "/admin/invitation/badtoken", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, false, body["success"])
}

func TestInvitationExpiry(t *testing.T) {
	env := newTestEnv(t)
	rootToken := env.login(t, "root", rootPassword)
	id, token := env.invite(t, rootToken, "alice", "admin")

	later := func() time.Time { return time.Now().Add(2 * time.Hour) }
	env.srv.now = later
	env.store.SetClock(later)

	status, body := env.call(t, http.MethodGet, "/admin/invitation/"+token, "", nil)
	assert.Equal(t, http.StatusGone, status)
	assert.Equal(t, "invitation expired", body["error"])

	account, err := env.store.GetAccount(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, store.StatusExpired, account.Status)

	status, _ = env.call(t, http.MethodPost, "/admin/invitation/accept", "", map[string]string{"token": token, "password": "alicepass"})
	assert.Equal(t, http.StatusGone, status)
}

func TestInvite_ValidationAndDuplicates(t *testing.T) {
	env := newTestEnv(t)
	rootToken := env.login(t, "root", rootPassword)

	status, body := env.call(t, http.MethodPost, "/admin/invite", rootToken, map[string]any{
		"username": "al", "email": "al@example.com", "role": "admin",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "username must be at least 3 characters long", body["error"])

	status, _ = env.call(t, http.MethodPost, "/admin/invite", rootToken, map[string]any{
		"username": "alice", "email": "alice@example.com",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	env.invite(t, rootToken, "alice", "admin")
	status, body = env.call(t, http.MethodPost, "/admin/invite", rootToken, map[string]any{
		"username": "alice", "email": "other@example.com", "role": "admin",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "username already exists", body["error"])
}

func TestManagementRequiresAdminsWrite(t *testing.T) {
	env := newTestEnv(t)
	rootToken := env.login(t, "root", rootPassword)

	status, _ := env.call(t, http.MethodPost, "/admin/create", rootToken, map[string]any{
		"username": "sue", "email": "sue@example.com", "password": "suepass1", "role": "support",
	})
	require.Equal(t, http.StatusCreated, status)
	sueToken := env.login(t, "sue", "suepass1")

	status, body := env.call(t, http.MethodPost, "/admin/invite", sueToken, map[string]any{
		"username": "alice", "email": "alice@example.com", "role": "admin",
	})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "permission admins:write required", body["error"])

	status, _ = env.call(t, http.MethodGet, "/admin/admins", sueToken, nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestListAdmins(t *testing.T) {
	env := newTestEnv(t)
	rootToken := env.login(t, "root", rootPassword)
	env.invite(t, rootToken, "alice", "admin")
	env.invite(t, rootToken, "albert", "analyst")

	status, body := env.call(t, http.MethodGet, "/admin/admins?status=pending&limit=1", rootToken, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Len(t, body["data"], 1)
	pagination := body["pagination"].(map[string]any)
	assert.Equal(t, float64(2), pagination["total"])
	assert.Equal(t, float64(2), pagination["totalPages"])

	status, body = env.call(t, http.MethodGet, "/admin/admins?role=analyst", rootToken, nil)
	require.Equal(t, http.StatusOK, status)
	rows := body["data"].([]any)
	require.Len(t, rows, 1)
	assert.Equal(t, "albert", rows[0].(map[string]any)["username"])

	status, _ = env.call(t, http.MethodGet, "/admin/admins?page=0", rootToken, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = env.call(t, http.MethodGet, "/admin/admins?status=cancelled", rootToken, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestResendReplacesToken(t *testing.T) {
	env := newTestEnv(t)
	rootToken := env.login(t, "root", rootPassword)
	id, oldToken := env.invite(t, rootToken, "alice", "admin")

	status, body := env.call(t, http.MethodPost, "/admin/admins/"+id+"/resend-invitation", rootToken, nil)
	require.Equal(t, http.StatusOK, status, body)

	msg, ok := env.mailer.LastTo("alice@example.com")
	require.True(t, ok)
	newToken := tokenFromLink(t, msg.Link)
	assert.NotEqual(t, oldToken, newToken)
	assert.Len(t, env.mailer.Sent(), 2)

	status, _ = env.call(t, http.MethodGet, "/admin/invitation/"+oldToken, "", nil)
	assert.Equal(t, http.StatusGone, status)
	status, _ = env.call(t, http.MethodGet, "/admin/invitation/"+newToken, "", nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = env.call(t, http.MethodPost, "/admin/admins/missing/resend-invitation", rootToken, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestResendCooldown(t *testing.T) {
	env := newTestEnv(t)
	rootToken := env.login(t, "root", rootPassword)
	id, _ := env.invite(t, rootToken, "alice", "admin")

	status, _ := env.call(t, http.MethodPost, "/admin/admins/"+id+"/resend-invitation", rootToken, nil)
	require.Equal(t, http.StatusOK, status)

	status, body := env.call(t, http.MethodPost, "/admin/admins/"+id+"/resend-invitation", rootToken, nil)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Contains(t, body["error"], "resent recently")
	assert.Len(t, env.mailer.Sent(), 2, "no mail for the refused resend")

	// Failed resends do not start a cooldown.
	for range 2 {
		status, _ = env.call(t, http.MethodPost, "/admin/admins/missing/resend-invitation", rootToken, nil)
		assert.Equal(t, http.StatusNotFound, status)
	}
}

func TestCancel(t *testing.T) {
	env := newTestEnv(t)
	rootToken := env.login(t, "root", rootPassword)
	id, token := env.invite(t, rootToken, "alice", "admin")
	acceptedID, acceptedToken := env.invite(t, rootToken, "bob", "support")

	status, _ := env.call(t, http.MethodPost, "/admin/invitation/accept", "", map[string]string{"token": acceptedToken, "password": "bobpass1"})
	require.Equal(t, http.StatusOK, status)

	status, body := env.call(t, http.MethodDelete, "/admin/admins/"+acceptedID+"/cancel-invitation", rootToken, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "invitation is not pending", body["error"])
	_, err := env.store.GetAccount(context.Background(), acceptedID)
	assert.NoError(t, err)

	status, _ = env.call(t, http.MethodDelete, "/admin/admins/"+id+"/cancel-invitation", rootToken, nil)
	assert.Equal(t, http.StatusOK, status)
	_, err = env.store.GetAccount(context.Background(), id)
	assert.ErrorIs(t, err, store.ErrNotFound)

	status, _ = env.call(t, http.MethodGet, "/admin/invitation/"+token, "", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestRedactPath(t *testing.T) {
	assert.Equal(t, "/api/admin/invitation/{token}", redactPath("/api/admin/invitation/secret"))
	assert.Equal(t, "/api/admin/invitation/accept", redactPath("/api/admin/invitation/accept"))
	assert.Equal(t, "/api/admin/me", redactPath("/api/admin/me"))
}
