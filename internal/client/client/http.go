package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/trainlog/internal/client/models"
	"github.com/dmitrijs2005/trainlog/internal/common"
	"github.com/dmitrijs2005/trainlog/internal/logging"
	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	retryAttempts = 3
	retryBase     = 100 * time.Millisecond
	retryCap      = 5 * time.Second

	maxErrorBody = 64 << 10
)

// TokenStore is where the client reads the session and writes refreshed
// access tokens.
type TokenStore interface {
	AccessToken(ctx context.Context) (string, error)
	RefreshToken(ctx context.Context) (string, error)
	SetAccessToken(ctx context.Context, token string) error
}

// HTTPClient is the trainlog API client used by the CLI.
type HTTPClient struct {
	baseURL    string
	http       *http.Client
	tokens     TokenStore
	log        logging.Logger
	newBackoff func() retry.Backoff

	// refreshMu keeps concurrent 401s from spending the refresh token twice.
	refreshMu sync.Mutex
}

func NewHTTPClient(baseURL string, timeout time.Duration, tokens TokenStore, log logging.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		tokens:     tokens,
		log:        log,
		newBackoff: defaultBackoff,
	}
}

// Detached returns a client sharing c's transport whose refreshed access
// tokens stay in memory. The token store is only read.
func (c *HTTPClient) Detached() API {
	return &HTTPClient{
		baseURL:    c.baseURL,
		http:       c.http,
		tokens:     &sessionOverlay{TokenStore: c.tokens},
		log:        c.log,
		newBackoff: c.newBackoff,
	}
}

// sessionOverlay reads through to a TokenStore but keeps access tokens set
// on it to itself.
type sessionOverlay struct {
	TokenStore

	mu     sync.Mutex
	access string
}

func (o *sessionOverlay) AccessToken(ctx context.Context) (string, error) {
	o.mu.Lock()
	access := o.access
	o.mu.Unlock()
	if access != "" {
		return access, nil
	}
	return o.TokenStore.AccessToken(ctx)
}

func (o *sessionOverlay) SetAccessToken(_ context.Context, token string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.access = token
	return nil
}

func defaultBackoff() retry.Backoff {
	b := retry.NewExponential(retryBase)
	b = retry.WithCappedDuration(retryCap, b)
	return retry.WithMaxRetries(retryAttempts-1, b)
}

type request struct {
	method string
	path   string
	query  url.Values
	body   any
	auth   bool
	// once sends the request a single time. Used for writes that a
	// resend would turn into a conflict.
	once bool
}

func (c *HTTPClient) Register(ctx context.Context, email, password string) (*models.AuthResponse, error) {
	var out models.AuthResponse
	err := c.call(ctx, request{method: http.MethodPost, path: "/register", body: credentials{email, password}}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) Login(ctx context.Context, email, password string) (*models.AuthResponse, error) {
	var out models.AuthResponse
	err := c.call(ctx, request{method: http.MethodPost, path: "/login", body: credentials{email, password}}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Refresh trades the stored refresh token for a new access token and stores
// it. A rejected refresh token yields ErrUnauthorized.
func (c *HTTPClient) Refresh(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	rt, err := c.tokens.RefreshToken(ctx)
	if err != nil {
		return err
	}
	if rt == "" {
		return ErrUnauthorized
	}

	var out models.TokenResponse
	err = c.call(ctx, request{
		method: http.MethodPost,
		path:   "/refresh",
		body:   refreshBody{RefreshToken: rt},
	}, &out)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	return c.tokens.SetAccessToken(ctx, out.AccessToken)
}

func (c *HTTPClient) Logout(ctx context.Context) error {
	return c.call(ctx, request{method: http.MethodPost, path: "/logout", auth: true}, nil)
}

// WhoAmI returns the profile of the session owner. The sync engine uses it
// as its connectivity probe.
func (c *HTTPClient) WhoAmI(ctx context.Context) (*models.UserInfo, error) {
	var out models.UserInfo
	if err := c.call(ctx, request{method: http.MethodGet, path: "/profile", auth: true}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) ChangePassword(ctx context.Context, current, next string) error {
	return c.call(ctx, request{
		method: http.MethodPost,
		path:   "/change-password",
		body:   changePasswordBody{CurrentPassword: current, NewPassword: next},
		auth:   true,
	}, nil)
}

func (c *HTTPClient) Push(ctx context.Context, items []models.PushItem) ([]models.PushResult, error) {
	var out pushResponse
	err := c.call(ctx, request{
		method: http.MethodPost,
		path:   "/sync/push",
		body:   pushBody{Records: items},
		auth:   true,
		once:   true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Results, nil
}

func (c *HTTPClient) Changes(ctx context.Context, since int64) (*models.ChangeSet, error) {
	var out models.ChangeSet
	err := c.call(ctx, request{
		method: http.MethodGet,
		path:   "/sync/changes",
		query:  url.Values{"since": {strconv.FormatInt(since, 10)}},
		auth:   true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) RequestVideoUpload(ctx context.Context, contentType string) (*models.VideoUpload, error) {
	var out models.VideoUpload
	err := c.call(ctx, request{
		method: http.MethodPost,
		path:   "/uploads/video",
		body:   videoBody{ContentType: contentType},
		auth:   true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Health checks GET /health without credentials.
func (c *HTTPClient) Health(ctx context.Context) error {
	return c.call(ctx, request{method: http.MethodGet, path: "/health"}, nil)
}

func (c *HTTPClient) call(ctx context.Context, r request, out any) error {
	var payload []byte
	if r.body != nil {
		var err error
		if payload, err = json.Marshal(r.body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	resp, err := c.send(ctx, r, payload)
	if err != nil {
		return err
	}

	if r.auth && resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		c.log.Debug(ctx, "access token rejected, refreshing", "path", r.path)
		if err := c.Refresh(ctx); err != nil {
			return err
		}
		if resp, err = c.send(ctx, r, payload); err != nil {
			return err
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := decodeAPIError(resp)
		if r.auth && resp.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("%w: %w", ErrUnauthorized, apiErr)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", r.path, err)
	}
	return nil
}

// send performs one logical request, retrying network errors and gateway
// failures unless the request is marked once. The returned response is
// always 2xx-5xx other than 502/503/504.
func (c *HTTPClient) send(ctx context.Context, r request, payload []byte) (*http.Response, error) {
	var token string
	if r.auth {
		var err error
		if token, err = c.tokens.AccessToken(ctx); err != nil {
			return nil, err
		}
		if token == "" {
			return nil, ErrUnauthorized
		}
	}

	target := c.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	backoff := c.newBackoff()
	if r.once {
		backoff = retry.WithMaxRetries(0, backoff)
	}

	var resp *http.Response
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, r.method, target, body)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if token != "" {
			req.Header.Set(common.AuthorizationHeader, common.BearerScheme+" "+token)
		}

		res, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Debug(ctx, "request failed", "path", r.path, "attempt", attempt, "error", err)
			return retry.RetryableError(fmt.Errorf("%w: %v", ErrUnavailable, err))
		}

		switch res.StatusCode {
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			apiErr := decodeAPIError(res)
			res.Body.Close()
			c.log.Debug(ctx, "server not ready", "path", r.path, "attempt", attempt, "status", res.StatusCode)
			return retry.RetryableError(fmt.Errorf("%w: %w", ErrUnavailable, apiErr))
		}
		resp = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func decodeAPIError(resp *http.Response) *APIError {
	apiErr := &APIError{Status: resp.StatusCode}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err == nil && len(b) > 0 {
		_ = json.Unmarshal(b, apiErr)
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshBody struct {
	RefreshToken string `json:"refresh_token"`
}

type changePasswordBody struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type pushBody struct {
	Records []models.PushItem `json:"records"`
}

type pushResponse struct {
	Results []models.PushResult `json:"results"`
}

type videoBody struct {
	ContentType string `json:"content_type"`
}
