// Package httpapi is the JSON HTTP surface of the trainlog server: routing,
// request decoding, the auth and rate-limit middleware chain and error
// mapping.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/trainlog/internal/common"
	"github.com/dmitrijs2005/trainlog/internal/logging"
	"github.com/dmitrijs2005/trainlog/internal/server/auth"
	"github.com/dmitrijs2005/trainlog/internal/server/models"
	"github.com/dmitrijs2005/trainlog/internal/server/ratelimit"
	"github.com/dmitrijs2005/trainlog/internal/server/services"
)

const maxBodyBytes = 1 << 20

type UserService interface {
	SessionValidator
	Register(ctx context.Context, email, password, role string) (*services.AuthResult, error)
	Login(ctx context.Context, email, password string) (*services.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*services.AccessResult, error)
	Logout(ctx context.Context, session *auth.Session) error
	GetProfile(ctx context.Context, userID string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID, email string) (*models.User, error)
	ChangePassword(ctx context.Context, userID, current, next string) error
	ListUsers(ctx context.Context) ([]*models.User, error)
	UpdateRole(ctx context.Context, actor *auth.Session, targetID, role string) (*models.User, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, next string) error
}

type SyncService interface {
	Push(ctx context.Context, userID string, items []models.PushItem) ([]models.PushResult, error)
	Changes(ctx context.Context, userID string, since int64) (*services.ChangeSet, error)
}

type UploadService interface {
	PresignVideoUpload(ctx context.Context, userID, contentType string) (*models.VideoUpload, error)
	PresignVideoDownload(ctx context.Context, userID, key string) (*models.VideoUpload, error)
}

// Limiters holds one limiter per route profile. A nil field disables
// limiting for that profile.
type Limiters struct {
	Auth   *ratelimit.Limiter
	API    *ratelimit.Limiter
	Upload *ratelimit.Limiter
	Admin  *ratelimit.Limiter
}

// NewLimiters builds the standard profiles.
func NewLimiters() Limiters {
	return Limiters{
		Auth:   ratelimit.New(ratelimit.AuthProfile),
		API:    ratelimit.New(ratelimit.APIProfile),
		Upload: ratelimit.New(ratelimit.UploadProfile),
		Admin:  ratelimit.New(ratelimit.AdminProfile),
	}
}

// All returns the non-nil limiters.
func (l Limiters) All() []*ratelimit.Limiter {
	var out []*ratelimit.Limiter
	for _, x := range []*ratelimit.Limiter{l.Auth, l.API, l.Upload, l.Admin} {
		if x != nil {
			out = append(out, x)
		}
	}
	return out
}

type Options struct {
	Users    UserService
	Sync     SyncService
	Uploads  UploadService
	Log      logging.Logger
	Limiters Limiters
	// Health reports readiness; nil means always ready.
	Health func(context.Context) error
}

type Handler struct {
	users    UserService
	sync     SyncService
	uploads  UploadService
	log      logging.Logger
	limiters Limiters
	health   func(context.Context) error
	now      func() time.Time
}

func NewHandler(o Options) *Handler {
	return &Handler{
		users:    o.Users,
		sync:     o.Sync,
		uploads:  o.Uploads,
		log:      o.Log,
		limiters: o.Limiters,
		health:   o.Health,
		now:      time.Now,
	}
}

// Routes builds the request multiplexer with per-route middleware.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	public := func(fn http.HandlerFunc) http.Handler {
		return chain(fn, RateLimit(h.limiters.Auth))
	}
	session := RequireSession(h.users, h.log)
	authed := func(l *ratelimit.Limiter, fn http.HandlerFunc) http.Handler {
		return chain(fn, RateLimit(l), session)
	}
	admin := func(fn http.HandlerFunc) http.Handler {
		return chain(fn, RateLimit(h.limiters.Admin), session, RequireRole(auth.RoleAdmin))
	}

	mux.Handle("POST /register", public(h.handleRegister))
	mux.Handle("POST /login", public(h.handleLogin))
	mux.Handle("POST /refresh", public(h.handleRefresh))
	mux.Handle("POST /forgot-password", public(h.handleForgotPassword))
	mux.Handle("POST /reset-password", public(h.handleResetPassword))

	mux.Handle("POST /logout", authed(h.limiters.API, h.handleLogout))
	mux.Handle("GET /profile", authed(h.limiters.API, h.handleGetProfile))
	mux.Handle("PUT /profile", authed(h.limiters.API, h.handleUpdateProfile))
	mux.Handle("POST /change-password", authed(h.limiters.API, h.handleChangePassword))

	mux.Handle("GET /users", admin(h.handleListUsers))
	mux.Handle("PUT /users/{id}/role", admin(h.handleUpdateRole))

	mux.Handle("POST /sync/push", authed(h.limiters.API, h.handlePush))
	mux.Handle("GET /sync/changes", authed(h.limiters.API, h.handleChanges))

	mux.Handle("POST /uploads/video", authed(h.limiters.Upload, h.handleVideoUpload))
	mux.Handle("GET /uploads/video", authed(h.limiters.API, h.handleVideoDownload))

	mux.HandleFunc("GET /health", h.handleHealth)

	return mux
}

// decode reads a single JSON object, rejecting unknown fields and trailing
// data.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid JSON payload", common.ErrInvalidInput)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: unexpected data after JSON object", common.ErrInvalidInput)
	}
	return nil
}

// required takes name, value pairs and reports the first empty value.
func required(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			return fmt.Errorf("%w: %s is required", common.ErrInvalidInput, pairs[i])
		}
	}
	return nil
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	writeServiceError(w, r, h.log, err)
}

// mustSession is only used behind RequireSession.
func mustSession(r *http.Request) *auth.Session {
	s, _ := auth.SessionFromContext(r.Context())
	return s
}

func (h *Handler) authResponse(res *services.AuthResult) AuthResponse {
	return AuthResponse{
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
		TokenType:    tokenType,
		ExpiresIn:    expiresIn(res.Tokens.AccessExpiresAt, h.now()),
		User:         userInfo(res.User),
	}
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := required("email", req.Email, "password", req.Password); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.users.Register(r.Context(), req.Email, req.Password, req.Role)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.authResponse(res))
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := required("email", req.Email, "password", req.Password); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.authResponse(res))
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := required("refresh_token", req.RefreshToken); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.users.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TokenResponse{
		AccessToken: res.AccessToken,
		TokenType:   tokenType,
		ExpiresIn:   expiresIn(res.ExpiresAt, h.now()),
	})
}

func (h *Handler) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := required("email", req.Email); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.users.ForgotPassword(r.Context(), req.Email); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "if the address is registered, a reset link has been sent"})
}

func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := required("token", req.Token, "new_password", req.NewPassword); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.users.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "password has been reset"})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Logout(r.Context(), mustSession(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "logged out"})
}

func (h *Handler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.GetProfile(r.Context(), mustSession(r).UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userInfo(u))
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := required("email", req.Email); err != nil {
		h.fail(w, r, err)
		return
	}
	u, err := h.users.UpdateProfile(r.Context(), mustSession(r).UserID, req.Email)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userInfo(u))
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := required("current_password", req.CurrentPassword, "new_password", req.NewPassword); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.users.ChangePassword(r.Context(), mustSession(r).UserID, req.CurrentPassword, req.NewPassword); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "password changed"})
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.users.ListUsers(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]UserInfo, 0, len(list))
	for _, u := range list {
		out = append(out, userInfo(u))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	u, err := h.users.UpdateRole(r.Context(), mustSession(r), r.PathValue("id"), req.Role)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userInfo(u))
}

func (h *Handler) handlePush(w http.ResponseWriter, r *http.Request) {
	var req pushRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	results, err := h.sync.Push(r.Context(), mustSession(r).UserID, req.Records)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pushResponse{Results: results})
}

func (h *Handler) handleChanges(w http.ResponseWriter, r *http.Request) {
	var since int64
	if v := r.URL.Query().Get("since"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			h.fail(w, r, fmt.Errorf("%w: since must be an integer", common.ErrInvalidInput))
			return
		}
		since = n
	}
	cs, err := h.sync.Changes(r.Context(), mustSession(r).UserID, since)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cs)
}

func (h *Handler) handleVideoUpload(w http.ResponseWriter, r *http.Request) {
	var req videoRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	up, err := h.uploads.PresignVideoUpload(r.Context(), mustSession(r).UserID, req.ContentType)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, up)
}

func (h *Handler) handleVideoDownload(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if err := required("key", key); err != nil {
		h.fail(w, r, err)
		return
	}
	up, err := h.uploads.PresignVideoDownload(r.Context(), mustSession(r).UserID, key)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, up)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			h.log.Warn(r.Context(), "health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}
