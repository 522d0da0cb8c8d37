package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/dmitrijs2005/trainlog/internal/common"
	"github.com/dmitrijs2005/trainlog/internal/logging"
	"github.com/dmitrijs2005/trainlog/internal/server/auth"
	"github.com/dmitrijs2005/trainlog/internal/server/ratelimit"
)

// Middleware wraps a handler.
type Middleware func(http.Handler) http.Handler

// chain applies mws so that the first one runs first.
func chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			h = mws[i](h)
		}
	}
	return h
}

// SessionValidator turns a bearer token into a session.
type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (*auth.Session, error)
}

// RequireSession authenticates the request from its Authorization header
// and stores the session in the request context.
func RequireSession(v SessionValidator, log logging.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := auth.ExtractBearerToken(r.Header.Get(common.AuthorizationHeader))
			if err != nil {
				writeServiceError(w, r, log, err)
				return
			}
			session, err := v.ValidateSession(r.Context(), token)
			if err != nil {
				writeServiceError(w, r, log, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithSession(r.Context(), session)))
		})
	}
}

// RequireRole admits sessions whose role may access required. A request
// without a session is refused with 403 as well.
func RequireRole(required auth.Role) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, ok := auth.SessionFromContext(r.Context())
			if !ok || !auth.CanAccess(session.Role, required) {
				writeError(w, http.StatusForbidden, auth.KindInsufficientPermissions.Code(), "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit returns nil for a nil limiter so chain skips it.
func RateLimit(l *ratelimit.Limiter) Middleware {
	if l == nil {
		return nil
	}
	return ratelimit.Middleware(l)
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// LoggingMiddleware logs one line per request.
func LoggingMiddleware(log logging.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			writer := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(writer, r)
			log.Info(r.Context(), "request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", writer.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"client", ratelimit.ClientIP(r),
			)
		})
	}
}
