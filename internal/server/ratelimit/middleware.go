package ratelimit

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
)

// ErrorCode is the error_code of every 429 response.
const ErrorCode = "RATE_LIMIT_EXCEEDED"

type exceededResponse struct {
	ErrorCode  string `json:"error_code"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}

// Middleware rejects requests over the limiter's ceilings with 429.
func Middleware(l *Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := l.Check(l.Key(r))
			var exceeded *ExceededError
			if errors.As(err, &exceeded) {
				secs := int(exceeded.RetryAfter.Seconds())
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(exceededResponse{
					ErrorCode:  ErrorCode,
					Message:    exceeded.Error(),
					RetryAfter: secs,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
