// ABOUTME: Dev server implementing the PromptPal admin API over SQLite
// ABOUTME: Wires routes, auth middleware, tracing, bootstrap, and graceful shutdown

package devserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"

	"github.com/itsjuliuscoder/promptpal-admin-dashboard/internal/admins"
	"github.com/itsjuliuscoder/promptpal-admin-dashboard/internal/auth"
	"github.com/itsjuliuscoder/promptpal-admin-dashboard/internal/dedupe"
	"github.com/itsjuliuscoder/promptpal-admin-dashboard/internal/rbac"
	"github.com/itsjuliuscoder/promptpal-admin-dashboard/internal/store"
)

const (
	// DefaultInvitationTTL is how long invitation links are valid
	DefaultInvitationTTL = 7 * 24 * time.Hour

	// DefaultSessionTTL is how long issued session tokens are valid
	DefaultSessionTTL = 24 * time.Hour

	// DefaultPublicURL is the console origin used in invitation links
	DefaultPublicURL = "http://localhost:3000"

	// DefaultResendCooldown is the minimum gap between resends to one account
	DefaultResendCooldown = 30 * time.Second

	tracerName = "github.com/itsjuliuscoder/promptpal-admin-dashboard/internal/devserver"
)

// Options configures a Server.
type Options struct {
	Addr          string
	InvitationTTL time.Duration
	SessionTTL    time.Duration
	PublicURL     string
	BcryptCost    int

	// ResendCooldown limits invitation resends per account. Negative disables it.
	ResendCooldown time.Duration
}

// Server serves the admin API.
type Server struct {
	opts       Options
	store      store.AccountStore
	verifier   *auth.JWTVerifier
	mailer     Mailer
	resends    *dedupe.Cache
	handler    http.Handler
	httpServer *http.Server
	tracer     trace.Tracer
	logger     *slog.Logger
	now        func() time.Time
}

// New creates a Server. A nil mailer logs invitation links.
func New(opts Options, accounts store.AccountStore, verifier *auth.JWTVerifier, mailer Mailer) (*Server, error) {
	if accounts == nil {
		return nil, errors.New("account store is required")
	}
	if verifier == nil {
		return nil, errors.New("token verifier is required")
	}
	if opts.InvitationTTL <= 0 {
		opts.InvitationTTL = DefaultInvitationTTL
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = DefaultSessionTTL
	}
	if opts.PublicURL == "" {
		opts.PublicURL = DefaultPublicURL
	}
	opts.PublicURL = strings.TrimSuffix(opts.PublicURL, "/")
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.ResendCooldown == 0 {
		opts.ResendCooldown = DefaultResendCooldown
	}
	if mailer == nil {
		mailer = NewLogMailer()
	}

	s := &Server{
		opts:     opts,
		store:    accounts,
		verifier: verifier,
		mailer:   mailer,
		resends:  dedupe.New(max(opts.ResendCooldown, 0), 10000),
		tracer:   otel.Tracer(tracerName),
		logger:   slog.Default().With("component", "devserver"),
		now:      time.Now,
	}
	s.handler = s.routes()
	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Close releases background resources. The store is left open.
func (s *Server) Close() {
	s.resends.Close()
}

// Handler returns the HTTP handler serving the API under /api.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	authed := auth.HTTPAuthMiddleware(s.store, s.verifier)
	manage := func(h http.HandlerFunc) http.Handler {
		return authed(auth.RequirePermissionHTTP(rbac.PermAdminsWrite)(h))
	}

	api := http.NewServeMux()
	api.HandleFunc("POST /admin/login", s.handleLogin)
	api.Handle("GET /admin/me", authed(http.HandlerFunc(s.handleMe)))
	api.HandleFunc("GET /admin/invitation/{token}", s.handleVerifyInvitation)
	api.HandleFunc("POST /admin/invitation/accept", s.handleAcceptInvitation)
	api.Handle("POST /admin/create", manage(s.handleCreateAdmin))
	api.Handle("POST /admin/invite", manage(s.handleInviteAdmin))
	api.Handle("GET /admin/admins", manage(s.handleListAdmins))
	api.Handle("POST /admin/admins/{id}/resend-invitation", manage(s.handleResendInvitation))
	api.Handle("DELETE /admin/admins/{id}/cancel-invitation", manage(s.handleCancelInvitation))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("/api/", http.StripPrefix("/api", api))
	return s.traced(mux)
}

// traced starts a server span per request, continuing any propagated trace.
func (s *Server) traced(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := s.tracer.Start(ctx, r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("http.request_id", r.Header.Get("X-Request-ID")),
			))
		defer span.End()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r.WithContext(ctx))

		span.SetAttributes(attribute.Int("http.response.status_code", rec.status))
		s.logger.Debug("request",
			"method", r.Method,
			"path", redactPath(r.URL.Path),
			"status", rec.status,
			"request_id", r.Header.Get("X-Request-ID"),
			"duration", time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// redactPath hides invitation tokens carried in the path.
func redactPath(path string) string {
	const prefix = "/api/admin/invitation/"
	if strings.HasPrefix(path, prefix) && path != prefix+"accept" {
		return prefix + "{token}"
	}
	return path
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// Bootstrap creates a super admin when no accounts exist yet. It reports
// whether an account was created.
func (s *Server) Bootstrap(ctx context.Context, username, email, password string) (bool, error) {
	count, err := s.store.CountAccounts(ctx)
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	req := admins.CreateRequest{
		Username:        username,
		Email:           email,
		Password:        password,
		ConfirmPassword: password,
		Role:            rbac.RoleSuperAdmin,
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return false, fmt.Errorf("bootstrap account: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.opts.BcryptCost)
	if err != nil {
		return false, fmt.Errorf("hashing password: %w", err)
	}
	account := &store.Account{
		ID:           uuid.NewString(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         string(rbac.RoleSuperAdmin),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.CreateAccount(ctx, account); err != nil {
		return false, err
	}
	s.logger.Info("bootstrapped super admin", "username", account.Username)
	return true, nil
}

// Run serves on opts.Addr until ctx is canceled, then shuts down gracefully.
// Returns nil on graceful shutdown, or an error if the server fails.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is canceled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		s.logger.Error("server error", "error", serverErr)
	}

	// The caller's context is already done; shut down with a fresh deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	shutdownErr := s.httpServer.Shutdown(shutdownCtx)

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}
