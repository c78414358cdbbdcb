// Package apiclient talks to the admin API over HTTP. It is the only component
// that knows about URLs, headers and the wire envelope.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/charlesng35/userdash/internal/models"
	appErrors "github.com/charlesng35/userdash/pkg/errors"
	"github.com/charlesng35/userdash/pkg/logger"
	"github.com/charlesng35/userdash/pkg/metrics"
	"github.com/charlesng35/userdash/pkg/response"
	"github.com/charlesng35/userdash/pkg/validator"
)

const (
	endpointUsers   = "users"
	endpointLogin   = "login"
	endpointProfile = "profile"

	maxErrorBody = 1 << 20
)

// ErrUnavailable is returned while the circuit breaker is open.
var ErrUnavailable = appErrors.New(appErrors.CodeNetwork, "API temporarily unavailable", 0)

// Credentials supplies the bearer token attached to each request. An empty
// token sends the request without an Authorization header.
type Credentials interface {
	BearerToken() string
}

// StaticToken is a fixed bearer credential.
type StaticToken string

// BearerToken returns the token.
func (t StaticToken) BearerToken() string { return string(t) }

// Config controls transport behaviour.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// Retries is the number of extra attempts for network and 5xx failures.
	// 4xx responses are never retried.
	Retries   int
	RetryWait time.Duration
	// BreakerThreshold consecutive failures open the circuit for BreakerCooldown.
	// Zero disables the breaker.
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		BaseURL:          "http://localhost:8080/api",
		Timeout:          15 * time.Second,
		Retries:          1,
		RetryWait:        200 * time.Millisecond,
		BreakerThreshold: 5,
		BreakerCooldown:  30 * time.Second,
	}
}

// Option customises the Client.
type Option func(*Client)

// WithCredentials sets the bearer credential source.
func WithCredentials(creds Credentials) Option {
	return func(c *Client) {
		c.creds = creds
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithUnauthorizedHandler registers fn to run whenever the API answers 401.
func WithUnauthorizedHandler(fn func()) Option {
	return func(c *Client) {
		c.onUnauthorized = fn
	}
}

// LoginResult is the payload of a successful login.
type LoginResult struct {
	Token string         `json:"token"`
	User  models.Profile `json:"user"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Client is safe for concurrent use.
type Client struct {
	baseURL        *url.URL
	http           *http.Client
	creds          Credentials
	retries        int
	retryWait      time.Duration
	breaker        *gobreaker.CircuitBreaker
	onUnauthorized func()
	log            *zap.Logger
}

// New constructs a Client.
func New(cfg Config, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, appErrors.NewValidationError("apiclient: invalid base url " + strconv.Quote(cfg.BaseURL))
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = DefaultConfig().RetryWait
	}

	c := &Client{
		baseURL: base,
		http: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		retries:   cfg.Retries,
		retryWait: cfg.RetryWait,
		log:       logger.WithModule("apiclient"),
	}

	if cfg.BreakerThreshold > 0 {
		threshold := uint32(cfg.BreakerThreshold)
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "admin-api",
			MaxRequests: 1,
			Timeout:     cfg.BreakerCooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			IsSuccessful: func(err error) bool {
				var appErr *appErrors.AppError
				if err == nil {
					return true
				}
				// The server answered; a 4xx says nothing about its health.
				return errors.As(err, &appErr) && appErr.StatusCode >= 400 && appErr.StatusCode < 500
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				c.log.Warn("circuit breaker state changed",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		})
	}

	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ListUsers fetches one page of users for key.
func (c *Client) ListUsers(ctx context.Context, key models.QueryKey) (*models.PageResult, error) {
	if !key.Valid() {
		return nil, appErrors.NewValidationError("page and limit must be positive")
	}

	var payload response.List[models.User]
	if err := c.do(ctx, endpointUsers, http.MethodGet, "/users", key.Values(), nil, &payload); err != nil {
		return nil, err
	}

	rows := payload.Data
	if rows == nil {
		rows = []models.User{}
	}
	return &models.PageResult{Rows: rows, TotalCount: payload.Meta.Total}, nil
}

// Login exchanges email and password for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	req := loginRequest{Email: strings.TrimSpace(email), Password: password}
	if err := validator.ValidateStruct(req); err != nil {
		return nil, appErrors.NewValidationError(err.Error())
	}

	var result LoginResult
	if err := c.do(ctx, endpointLogin, http.MethodPost, "/auth/login", nil, req, &result); err != nil {
		return nil, err
	}
	if result.Token == "" {
		return nil, appErrors.NewServerError(http.StatusBadGateway, "login response carried no token")
	}
	return &result, nil
}

// Profile returns the signed-in user.
func (c *Client) Profile(ctx context.Context) (*models.Profile, error) {
	var payload response.Item[models.Profile]
	if err := c.do(ctx, endpointProfile, http.MethodGet, "/auth/me", nil, nil, &payload); err != nil {
		return nil, err
	}
	return &payload.Data, nil
}

func (c *Client) do(ctx context.Context, endpoint, method, path string, query url.Values, body, out any) error {
	var encoded []byte
	if body != nil {
		var err error
		if encoded, err = json.Marshal(body); err != nil {
			return appErrors.Wrap(err, "encode request")
		}
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryWait

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := c.attempt(ctx, endpoint, method, path, query, encoded, out)
		if err != nil && !appErrors.IsRetryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(c.retries+1)))

	if err == nil {
		return nil
	}

	appErr := appErrors.FromError(err)
	if appErr.Code == appErrors.CodeInternal && ctx.Err() != nil {
		appErr = appErrors.NewNetworkError(ctx.Err())
	}
	if appErr.Code == appErrors.CodeUnauthorized && c.onUnauthorized != nil {
		c.onUnauthorized()
	}
	return appErr
}

// attempt performs one request through the circuit breaker.
func (c *Client) attempt(ctx context.Context, endpoint, method, path string, query url.Values, body []byte, out any) error {
	if c.breaker == nil {
		return c.roundTrip(ctx, endpoint, method, path, query, body, out)
	}

	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.roundTrip(ctx, endpoint, method, path, query, body, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.APIRequests.WithLabelValues(endpoint, "breaker_open").Inc()
		return ErrUnavailable.WithInternal(err)
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, endpoint, method, path string, query url.Values, body []byte, out any) error {
	target := c.baseURL.JoinPath(path)
	if query != nil {
		target.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return appErrors.Wrap(err, "build request")
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.creds != nil {
		if token := c.creds.BearerToken(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.APIRequests.WithLabelValues(endpoint, "network_error").Inc()
		c.log.Debug("request failed",
			zap.String("request_id", requestID),
			zap.String("url", target.Redacted()),
			zap.Error(err),
		)
		return appErrors.NewNetworkError(err)
	}
	defer resp.Body.Close()

	metrics.APIRequests.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		appErr := appErrors.NewServerError(resp.StatusCode, response.ErrorMessage(raw))
		c.log.Debug("request rejected",
			zap.String("request_id", requestID),
			zap.String("url", target.Redacted()),
			zap.Int("status", resp.StatusCode),
			zap.String("message", appErr.Message),
		)
		return appErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return appErrors.NewServerError(http.StatusBadGateway, "malformed response").WithInternal(err)
	}
	return nil
}
