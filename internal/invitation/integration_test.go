// ABOUTME: End-to-end invitation lifecycle tests through the API client and dev server
// ABOUTME: Counts requests reaching the server to prove local failures never leave the process

package invitation_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/itsjuliuscoder/promptpal-admin-dashboard/internal/admins"
	"github.com/itsjuliuscoder/promptpal-admin-dashboard/internal/apiclient"
	"github.com/itsjuliuscoder/promptpal-admin-dashboard/internal/apperr"
	"github.com/itsjuliuscoder/promptpal-admin-dashboard/internal/auth"
	"github.com/itsjuliuscoder/promptpal-admin-dashboard/internal/devserver"
	"github.com/itsjuliuscoder/promptpal-admin-dashboard/internal/invitation"
	"github.com/itsjuliuscoder/promptpal-admin-dashboard/internal/rbac"
	"github.com/itsjuliuscoder/promptpal-admin-dashboard/internal/session"
	"github.com/itsjuliuscoder/promptpal-admin-dashboard/internal/store"
)

type harness struct {
	baseURL  string
	requests atomic.Int64
	mailer   *devserver.MemoryMailer
	sessions *session.MemoryStore
	root     *session.Session
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "e2e.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	verifier, err := auth.NewJWTVerifier([]byte("integration-test-secret-32bytes!"))
	require.NoError(t, err)

	h := &harness{mailer: &devserver.MemoryMailer{}, sessions: session.NewMemoryStore()}
	srv, err := devserver.New(devserver.Options{InvitationTTL: time.Hour, BcryptCost: bcrypt.MinCost}, st, verifier, h.mailer)
	require.NoError(t, err)
	t.Cleanup(srv.Close)
	_, err = srv.Bootstrap(context.Background(), "root", "root@example.com", "rootpass1")
	require.NoError(t, err)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.requests.Add(1)
		srv.Handler().ServeHTTP(w, r)
	}))
	t.Cleanup(ts.Close)
	h.baseURL = ts.URL + "/api"

	h.root, err = h.anonymous().Login(context.Background(), "root", "rootpass1")
	require.NoError(t, err)
	require.NoError(t, h.sessions.Save(h.root))
	return h
}

func (h *harness) anonymous() *apiclient.Client {
	return apiclient.New(h.baseURL)
}

// client returns a client authenticated as s that clears the stored
// session when the server rejects it.
func (h *harness) client(s *session.Session) *apiclient.Client {
	return apiclient.New(h.baseURL,
		apiclient.WithUnauthorizedHandler(func() { _ = h.sessions.Clear() }),
	).WithSession(s)
}

func (h *harness) lastToken(t *testing.T, email string) string {
	t.Helper()
	msg, ok := h.mailer.LastTo(email)
	require.True(t, ok)
	u, err := url.Parse(msg.Link)
	require.NoError(t, err)
	return u.Query().Get("token")
}

func TestLifecycle_InviteVerifyAccept(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	m := invitation.NewManager(h.client(h.root))
	actor := h.root.Actor()

	account, err := m.Issue(ctx, actor, invitation.IssueRequest{Username: "alice", Email: "alice@example.com", Role: rbac.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, admins.StatusPending, account.InvitationStatus)
	assert.Equal(t, rbac.RoleAdmin, account.Role)
	require.NotNil(t, account.InvitedBy)
	assert.Equal(t, "root", account.InvitedBy.Username)

	token := h.lastToken(t, "alice@example.com")
	public := invitation.NewManager(h.anonymous())

	details, err := public.Verify(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "alice", details.Username)
	require.NotNil(t, details.ExpiresAt)

	s, err := public.Accept(ctx, token, "alicepass")
	require.NoError(t, err)
	assert.Equal(t, "alice", s.Profile.Username)
	assert.Equal(t, rbac.RoleAdmin, s.Profile.Role)

	_, err = public.Accept(ctx, token, "alicepass")
	assert.ErrorIs(t, err, apperr.ErrInvalidToken)

	_, err = public.Verify(ctx, token)
	assert.ErrorIs(t, err, apperr.ErrInvalidToken)

	me, err := h.client(s).Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice", me.Username)
}

func TestLifecycle_LocalFailuresMakeNoRequests(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.client(h.root).CreateAdmin(ctx, admins.CreateRequest{
		Username: "sue", Email: "sue@example.com", Password: "suepass1", Role: rbac.RoleSupport,
	})
	require.NoError(t, err)
	sue, err := h.anonymous().Login(ctx, "sue", "suepass1")
	require.NoError(t, err)

	before := h.requests.Load()
	m := invitation.NewManager(h.client(sue))

	for _, role := range []rbac.Role{rbac.RoleSupport, rbac.RoleAnalyst} {
		actor := &rbac.Actor{Username: "x", Role: role}
		_, err = m.Issue(ctx, actor, invitation.IssueRequest{Username: "alice", Email: "alice@example.com", Role: rbac.RoleAdmin})
		assert.ErrorIs(t, err, apperr.ErrAuthorization)
	}
	_, err = m.Issue(ctx, sue.Actor(), invitation.IssueRequest{Username: "alice", Email: "alice@example.com", Role: rbac.RoleAdmin})
	assert.ErrorIs(t, err, apperr.ErrAuthorization)

	_, err = m.Accept(ctx, "any-token", "ab")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = m.Accept(ctx, "any-token", "abcde")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = m.Verify(ctx, "")
	assert.ErrorIs(t, err, apperr.ErrInvalidToken)

	assert.Equal(t, before, h.requests.Load())
}

func TestLifecycle_BadToken(t *testing.T) {
	h := newHarness(t)
	_, err := invitation.NewManager(h.anonymous()).Verify(context.Background(), "badtoken")
	assert.ErrorIs(t, err, apperr.ErrInvalidToken)
	assert.Equal(t, "This invitation link is invalid or has expired.", apperr.UserMessage(err))
}

func TestLifecycle_CancelAcceptedIsStateError(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	m := invitation.NewManager(h.client(h.root))
	actor := h.root.Actor()

	bob, err := m.Issue(ctx, actor, invitation.IssueRequest{Username: "bob", Email: "bob@example.com", Role: rbac.RoleSupport})
	require.NoError(t, err)
	_, err = m.Accept(ctx, h.lastToken(t, "bob@example.com"), "bobpass1")
	require.NoError(t, err)

	err = m.Cancel(ctx, actor, bob.ID)
	assert.ErrorIs(t, err, apperr.ErrState)

	err = m.Resend(ctx, actor, bob.ID)
	assert.ErrorIs(t, err, apperr.ErrState)

	svc := admins.NewService(h.client(h.root))
	page, err := svc.List(ctx, actor, admins.ListParams{Search: "bob"})
	require.NoError(t, err)
	require.Len(t, page.Accounts, 1)
	assert.Equal(t, admins.StatusAccepted, page.Accounts[0].InvitationStatus)
}

func TestLifecycle_ResendAndCancelPending(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	m := invitation.NewManager(h.client(h.root))
	actor := h.root.Actor()

	carol, err := m.Issue(ctx, actor, invitation.IssueRequest{Username: "carol", Email: "carol@example.com", Role: rbac.RoleAnalyst})
	require.NoError(t, err)
	first := h.lastToken(t, "carol@example.com")

	require.NoError(t, m.Resend(ctx, actor, carol.ID))
	second := h.lastToken(t, "carol@example.com")
	assert.NotEqual(t, first, second)

	_, err = m.Verify(ctx, first)
	assert.ErrorIs(t, err, apperr.ErrInvalidToken)
	_, err = m.Verify(ctx, second)
	require.NoError(t, err)

	require.NoError(t, m.Cancel(ctx, actor, carol.ID))
	_, err = m.Verify(ctx, second)
	assert.ErrorIs(t, err, apperr.ErrInvalidToken)

	err = m.Cancel(ctx, actor, carol.ID)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.True(t, e.NotFound())
}

func TestLifecycle_DuplicateInviteIsValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	m := invitation.NewManager(h.client(h.root))

	_, err := m.Issue(ctx, h.root.Actor(), invitation.IssueRequest{Username: "dave", Email: "dave@example.com", Role: rbac.RoleAdmin})
	require.NoError(t, err)
	_, err = m.Issue(ctx, h.root.Actor(), invitation.IssueRequest{Username: "dave2", Email: "DAVE@example.com", Role: rbac.RoleAdmin})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, "email already exists", apperr.UserMessage(err))
}

func TestLifecycle_UnauthorizedClearsSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	forged := session.New("not-a-real-token", h.root.Profile)
	m := invitation.NewManager(h.client(forged))

	_, err := m.Issue(ctx, forged.Actor(), invitation.IssueRequest{Username: "erin", Email: "erin@example.com", Role: rbac.RoleAdmin})
	require.Error(t, err)
	assert.True(t, apiclient.IsUnauthorized(err))
	assert.Equal(t, "Your session has expired. Please log in again.", apperr.UserMessage(err))

	_, err = h.sessions.Load()
	assert.ErrorIs(t, err, session.ErrNoSession)
}
