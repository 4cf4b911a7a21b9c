package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/merbs-org/clientauth/sanitize"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL                 = "http://localhost:3001/api"
	DefaultTimeout                 = 10 * time.Second
	DefaultUploadTimeoutMultiplier = 3

	tracerName      = "github.com/merbs-org/clientauth/api"
	maxResponseSize = 4 << 20
)

const (
	HeaderRequestID = "X-Request-ID"
	HeaderSessionID = "X-Session-ID"
	// HeaderBackendToken carries the token the backend issued at login,
	// registration or refresh.
	HeaderBackendToken = "X-Auth-Token"
)

// Credentials are attached to outbound calls when a session exists.
type Credentials struct {
	// Bearer is sent as "Authorization: Bearer <Bearer>".
	Bearer string
	// SessionID is sent as X-Session-ID.
	SessionID string
	// BackendToken is sent as X-Auth-Token when the backend issued one.
	BackendToken string
}

// CredentialsFunc reports the current credentials, or false when anonymous.
type CredentialsFunc func() (Credentials, bool)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying client. A cookie jar is installed when it
// has none.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			cp := *hc
			c.http = &cp
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithUploadTimeoutMultiplier scales the timeout for UploadFile.
func WithUploadTimeoutMultiplier(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.uploadMultiplier = n
		}
	}
}

func WithCredentials(fn CredentialsFunc) Option {
	return func(c *Client) { c.credentials = fn }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithStrippedFields replaces [DefaultStrippedFields].
func WithStrippedFields(fields ...string) Option {
	return func(c *Client) { c.strip = fieldSet(fields) }
}

// WithRequestIDFunc replaces the X-Request-ID generator.
func WithRequestIDFunc(fn func() string) Option {
	return func(c *Client) {
		if fn != nil {
			c.requestID = fn
		}
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		if tp != nil {
			c.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithCircuitBreaker guards every call with a breaker built from cfg.
func WithCircuitBreaker(cfg BreakerConfig) Option {
	return func(c *Client) { c.breakerCfg = &cfg }
}

// RequestOption adjusts a single call.
type RequestOption func(*requestConfig)

type requestConfig struct {
	allow map[string]struct{}
}

// AllowFields lets the named fields through body stripping for one call. Only
// endpoints that must transmit a credential use it.
func AllowFields(names ...string) RequestOption {
	return func(rc *requestConfig) {
		if rc.allow == nil {
			rc.allow = make(map[string]struct{}, len(names))
		}
		for _, n := range names {
			rc.allow[n] = struct{}{}
		}
	}
}

// Client talks to the backend. It is safe for concurrent use.
type Client struct {
	baseURL          string
	http             *http.Client
	timeout          time.Duration
	uploadMultiplier int
	credentials      CredentialsFunc
	logger           *zap.Logger
	strip            map[string]struct{}
	requestID        func() string
	tracer           trace.Tracer
	breakerCfg       *BreakerConfig
	breaker          *breaker

	Auth        *AuthAPI
	Users       *UsersAPI
	Conferences *ConferencesAPI
}

// New creates a Client rooted at baseURL. An empty baseURL uses
// [DefaultBaseURL].
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		baseURL:          strings.TrimRight(baseURL, "/"),
		http:             &http.Client{},
		timeout:          DefaultTimeout,
		uploadMultiplier: DefaultUploadTimeoutMultiplier,
		logger:           zap.NewNop(),
		strip:            fieldSet(DefaultStrippedFields),
		requestID:        uuid.NewString,
		tracer:           otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.http.Jar == nil {
		// cookiejar.New only fails on a broken PublicSuffixList, and we pass none.
		jar, _ := cookiejar.New(nil)
		c.http.Jar = jar
	}
	if c.breakerCfg != nil {
		c.breaker = newBreaker(*c.breakerCfg, c.logger)
	}

	c.Auth = &AuthAPI{c: c}
	c.Users = &UsersAPI{c: c}
	c.Conferences = &ConferencesAPI{c: c}
	return c
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// HTTPClient exposes the underlying client, mainly for its cookie jar.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

func (c *Client) Get(ctx context.Context, path string) (*Envelope, error) {
	return c.Do(ctx, http.MethodGet, path, nil)
}

func (c *Client) Post(ctx context.Context, path string, body any, opts ...RequestOption) (*Envelope, error) {
	return c.Do(ctx, http.MethodPost, path, body, opts...)
}

func (c *Client) Put(ctx context.Context, path string, body any, opts ...RequestOption) (*Envelope, error) {
	return c.Do(ctx, http.MethodPut, path, body, opts...)
}

func (c *Client) Patch(ctx context.Context, path string, body any, opts ...RequestOption) (*Envelope, error) {
	return c.Do(ctx, http.MethodPatch, path, body, opts...)
}

func (c *Client) Delete(ctx context.Context, path string) (*Envelope, error) {
	return c.Do(ctx, http.MethodDelete, path, nil)
}

// Do performs a JSON call. A body is only sent for POST, PUT and PATCH.
func (c *Client) Do(ctx context.Context, method, path string, body any, opts ...RequestOption) (*Envelope, error) {
	var rc requestConfig
	for _, opt := range opts {
		opt(&rc)
	}

	var payload []byte
	if body != nil && methodHasBody(method) {
		var err error
		payload, err = encodeBody(body, c.strip, rc.allow)
		if err != nil {
			return nil, &Error{
				Kind:    KindProtocol,
				Message: sanitize.ErrorMessage(err),
				Detail:  err.Error(),
				Err:     err,
			}
		}
	}

	return c.execute(ctx, call{
		method:         method,
		path:           path,
		body:           payload,
		contentType:    "application/json",
		timeout:        c.timeout,
		timeoutMessage: TimeoutMessage,
		statusDetail: func(code int, text string) string {
			return fmt.Sprintf("HTTP %d: %s", code, text)
		},
		requireObject: true,
	})
}

func methodHasBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	default:
		return false
	}
}

type call struct {
	method         string
	path           string
	body           []byte
	contentType    string
	timeout        time.Duration
	timeoutMessage string
	statusDetail   func(code int, text string) string
	requireObject  bool
}

type rawResponse struct {
	status     int
	statusText string
	body       []byte
}

var errServerStatus = errors.New("server error status")

func (c *Client) execute(ctx context.Context, cl call) (*Envelope, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, span := c.tracer.Start(ctx, "api "+cl.method+" "+cl.path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", cl.method),
			attribute.String("url.path", cl.path),
		),
	)
	defer span.End()

	reqCtx, cancel := context.WithTimeout(ctx, cl.timeout)
	defer cancel()

	var bodyReader io.Reader
	if cl.body != nil {
		bodyReader = bytes.NewReader(cl.body)
	}
	req, err := http.NewRequestWithContext(reqCtx, cl.method, c.baseURL+cl.path, bodyReader)
	if err != nil {
		return nil, c.fail(span, &Error{
			Kind:    KindNetwork,
			Message: sanitize.ErrorMessage(err),
			Detail:  err.Error(),
			Err:     err,
		})
	}

	requestID := c.setHeaders(req, cl.contentType)
	span.SetAttributes(attribute.String("http.request.id", requestID))
	otel.GetTextMapPropagator().Inject(reqCtx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	res, err := c.breaker.do(func() (*rawResponse, error) {
		return c.send(req)
	})
	if err != nil && !errors.Is(err, errServerStatus) {
		return nil, c.fail(span, c.transportError(reqCtx, err, cl))
	}

	span.SetAttributes(attribute.Int("http.response.status_code", res.status))
	c.logger.Debug("api call",
		zap.String("method", cl.method),
		zap.String("path", cl.path),
		zap.Int("status", res.status),
		zap.String("request_id", requestID),
		zap.Duration("duration", time.Since(start)),
	)

	if res.status < 200 || res.status > 299 {
		detail := serverMessage(res.body)
		if detail == "" {
			detail = cl.statusDetail(res.status, res.statusText)
		}
		return nil, c.fail(span, &Error{
			Kind:    KindHTTP,
			Status:  res.status,
			Message: sanitize.Message(detail),
			Detail:  detail,
		})
	}

	if cl.requireObject && !isJSONObject(res.body) {
		return nil, c.fail(span, &Error{
			Kind:    KindProtocol,
			Status:  res.status,
			Message: sanitize.Message(InvalidResponseFormat),
			Detail:  InvalidResponseFormat,
		})
	}

	var env Envelope
	if err := json.Unmarshal(res.body, &env); err != nil {
		return nil, c.fail(span, &Error{
			Kind:    KindProtocol,
			Status:  res.status,
			Message: sanitize.ErrorMessage(err),
			Detail:  err.Error(),
			Err:     err,
		})
	}

	span.SetStatus(codes.Ok, "")
	return &env, nil
}

func (c *Client) setHeaders(req *http.Request, contentType string) string {
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	requestID := c.requestID()
	req.Header.Set(HeaderRequestID, requestID)

	if c.credentials != nil {
		if creds, ok := c.credentials(); ok {
			if creds.Bearer != "" {
				req.Header.Set("Authorization", "Bearer "+creds.Bearer)
			}
			if creds.SessionID != "" {
				req.Header.Set(HeaderSessionID, creds.SessionID)
			}
			if creds.BackendToken != "" {
				req.Header.Set(HeaderBackendToken, creds.BackendToken)
			}
		}
	}
	return requestID
}

func (c *Client) send(req *http.Request) (*rawResponse, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, err
	}

	res := &rawResponse{
		status:     resp.StatusCode,
		statusText: statusText(resp),
		body:       data,
	}
	if resp.StatusCode >= 500 {
		return res, errServerStatus
	}
	return res, nil
}

func statusText(resp *http.Response) string {
	text := strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)+" ")
	if text == "" || text == resp.Status {
		return http.StatusText(resp.StatusCode)
	}
	return text
}

func (c *Client) transportError(reqCtx context.Context, err error, cl call) *Error {
	switch {
	case errors.Is(err, errBreakerRejected):
		return &Error{
			Kind:    KindCircuitOpen,
			Message: sanitize.ErrorMessage(err),
			Detail:  err.Error(),
			Err:     fmt.Errorf("%w: %v", ErrCircuitOpen, err),
		}
	case errors.Is(reqCtx.Err(), context.DeadlineExceeded):
		return &Error{
			Kind:    KindTimeout,
			Message: cl.timeoutMessage,
			Detail:  err.Error(),
			Err:     fmt.Errorf("%w: %v", ErrTimeout, err),
		}
	default:
		return &Error{
			Kind:    KindNetwork,
			Message: sanitize.ErrorMessage(err),
			Detail:  err.Error(),
			Err:     err,
		}
	}
}

func (c *Client) fail(span trace.Span, err *Error) *Error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Kind.String())
	c.logger.Debug("api call failed",
		zap.String("kind", err.Kind.String()),
		zap.Int("status", err.Status),
		zap.String("detail", err.Detail),
	)
	return err
}
