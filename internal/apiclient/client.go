// ABOUTME: HTTP/JSON client for the remote PromptPal admin API
// ABOUTME: Classifies failures, traces requests, and reports rejected sessions

package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/itsjuliuscoder/promptpal-admin-dashboard/internal/apperr"
	"github.com/itsjuliuscoder/promptpal-admin-dashboard/internal/session"
)

const (
	// DefaultTimeout bounds a single request when no http.Client is supplied.
	DefaultTimeout = 15 * time.Second

	// maxBodyBytes caps how much of a response body is read.
	maxBodyBytes = 1 << 20

	tracerName = "github.com/itsjuliuscoder/promptpal-admin-dashboard/internal/apiclient"
)

// Client talks to the admin API. It is safe for concurrent use.
type Client struct {
	baseURL        string
	http           *http.Client
	token          string
	onUnauthorized func()
	tracer         trace.Tracer
	logger         *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http = &http.Client{Timeout: d}
		}
	}
}

// WithToken authenticates requests with a bearer token.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithUnauthorizedHandler registers fn to run whenever the service rejects
// the bearer token with 401. Public calls send no token and never fire it.
// Callers use it to drop the stored session and send the user back to login.
func WithUnauthorizedHandler(fn func()) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

// New creates a client for the API rooted at baseURL (for example
// "http://localhost:9002/api").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		tracer:  otel.Tracer(tracerName),
		logger:  slog.Default().With("component", "apiclient"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithSession returns a copy of c authenticated as s.
func (c *Client) WithSession(s *session.Session) *Client {
	cp := *c
	cp.token = ""
	if s != nil {
		cp.token = s.Token
	}
	return &cp
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// envelope is the service's response wrapper.
type envelope struct {
	Success    *bool           `json:"success,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	Error      string          `json:"error,omitempty"`
	Message    string          `json:"message,omitempty"`
	Pagination json.RawMessage `json:"pagination,omitempty"`
}

// failureMessage picks the most specific message in a failed envelope.
func (e *envelope) failureMessage() string {
	if e.Error != "" {
		return e.Error
	}
	return e.Message
}

// request describes a single API call. route is the path template used for
// span names and logs so that tokens in the path never leak.
type request struct {
	method string
	route  string
	path   string
	query  url.Values
	body   any
	public bool
}

// do performs req and returns the decoded envelope along with the raw body.
func (c *Client) do(ctx context.Context, req request) (*envelope, []byte, error) {
	ctx, span := c.tracer.Start(ctx, "admin-api "+req.method+" "+req.route,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.method),
			attribute.String("http.route", req.route),
		))
	defer span.End()

	env, raw, err := c.roundTrip(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if e, ok := apperr.As(err); ok && e.Status != 0 {
			span.SetAttributes(attribute.Int("http.response.status_code", e.Status))
		}
		return nil, nil, err
	}
	return env, raw, nil
}

func (c *Client) roundTrip(ctx context.Context, req request) (*envelope, []byte, error) {
	target := c.baseURL + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		data, err := json.Marshal(req.body)
		if err != nil {
			return nil, nil, fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return nil, nil, fmt.Errorf("creating request: %w", err)
	}

	requestID := uuid.NewString()
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", requestID)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	credentialed := c.token != "" && !req.public
	if credentialed {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.logger.Warn("admin API unreachable", "route", req.route, "request_id", requestID, "error", err)
		return nil, nil, apperr.Transport("calling admin API", 0, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, nil, apperr.Transport("reading admin API response", 0, err)
	}

	c.logger.Debug("admin API call",
		"method", req.method,
		"route", req.route,
		"status", resp.StatusCode,
		"request_id", requestID,
		"duration", time.Since(start))

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, nil, c.statusError(resp.StatusCode, &env, decodeErr == nil, credentialed)
	}
	if decodeErr != nil {
		return nil, nil, apperr.Transport("decoding admin API response", resp.StatusCode, decodeErr)
	}
	if env.Success != nil && !*env.Success {
		msg := env.failureMessage()
		if msg == "" {
			msg = "admin API reported failure"
		}
		return nil, nil, apperr.Transport(msg, resp.StatusCode, nil)
	}
	return &env, raw, nil
}

// statusError classifies an error response. A 401 to a request that carried
// the bearer token also fires the unauthorized hook.
func (c *Client) statusError(status int, env *envelope, decoded, credentialed bool) error {
	msg := ""
	if decoded {
		msg = env.failureMessage()
	}
	if msg == "" {
		msg = fmt.Sprintf("admin API returned %d %s", status, http.StatusText(status))
	}

	switch status {
	case http.StatusUnauthorized:
		if credentialed && c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return apperr.Transport(msg, status, nil)
	case http.StatusForbidden:
		return &apperr.Error{Kind: apperr.KindAuthorization, Message: msg, Status: status}
	default:
		return apperr.Transport(msg, status, nil)
	}
}

// decodeData unmarshals the envelope's data field into out.
func decodeData(env *envelope, out any) error {
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return apperr.Transport("admin API response has no data", http.StatusOK, nil)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return apperr.Transport("decoding admin API data", http.StatusOK, err)
	}
	return nil
}

// IsUnauthorized reports whether err is a rejected-session response.
func IsUnauthorized(err error) bool {
	var e *apperr.Error
	return errors.As(err, &e) && e.Unauthorized()
}
