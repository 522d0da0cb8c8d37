package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/trainlog/internal/common"
	"github.com/dmitrijs2005/trainlog/internal/logging"
	"github.com/dmitrijs2005/trainlog/internal/server/auth"
	"github.com/dmitrijs2005/trainlog/internal/server/ratelimit"
)

// Error codes that do not come from the auth package.
const (
	CodeInvalidRequest      = "INVALID_REQUEST"
	CodeInvalidCredentials  = "INVALID_CREDENTIALS"
	CodeTokenRevoked        = "TOKEN_REVOKED"
	CodeRefreshTokenExpired = "REFRESH_TOKEN_EXPIRED"
	CodeInvalidResetToken   = "INVALID_RESET_TOKEN"
	CodeAlreadyExists       = "ALREADY_EXISTS"
	CodeNotFound            = "NOT_FOUND"
	CodeInternal            = "INTERNAL_ERROR"
)

type errorResponse struct {
	ErrorCode  string `json:"error_code"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{ErrorCode: code, Message: message})
}

// authStatus is the HTTP status for each auth failure kind.
func authStatus(k auth.Kind) int {
	switch {
	case k == auth.KindInsufficientPermissions:
		return http.StatusForbidden
	case k.IsPasswordPolicy():
		return http.StatusBadRequest
	default:
		return http.StatusUnauthorized
	}
}

// writeServiceError maps err to a status and error code. Unknown errors are
// logged and reported as a bare 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, log logging.Logger, err error) {
	var (
		authErr  *auth.Error
		exceeded *ratelimit.ExceededError
	)

	switch {
	case errors.Is(err, common.ErrTokenRevoked):
		writeError(w, http.StatusUnauthorized, CodeTokenRevoked, "token has been revoked")
	case errors.As(err, &authErr):
		writeError(w, authStatus(authErr.Kind), authErr.Kind.Code(), authErr.Message())
	case errors.As(err, &exceeded):
		secs := int(exceeded.RetryAfter.Seconds())
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		writeJSON(w, http.StatusTooManyRequests, errorResponse{
			ErrorCode: ratelimit.ErrorCode, Message: exceeded.Error(), RetryAfter: secs,
		})
	case errors.Is(err, common.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, CodeInvalidCredentials, "invalid email or password")
	case errors.Is(err, common.ErrTokenExpired):
		writeError(w, http.StatusUnauthorized, auth.KindTokenExpired.Code(), "token has expired")
	case errors.Is(err, common.ErrRefreshTokenExpired):
		writeError(w, http.StatusUnauthorized, CodeRefreshTokenExpired, "refresh token has expired")
	case errors.Is(err, common.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, auth.KindInvalidToken.Code(), "invalid token")
	case errors.Is(err, common.ErrResetTokenInvalid):
		writeError(w, http.StatusBadRequest, CodeInvalidResetToken, err.Error())
	case errors.Is(err, common.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
	case errors.Is(err, common.ErrAlreadyExists):
		writeError(w, http.StatusConflict, CodeAlreadyExists, "email already registered")
	case errors.Is(err, common.ErrorNotFound):
		writeError(w, http.StatusNotFound, CodeNotFound, "not found")
	default:
		log.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternal, "internal server error")
	}
}
