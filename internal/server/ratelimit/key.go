package ratelimit

import (
	"net"
	"net/http"
	"strings"
)

// UnknownClient is the shared key for requests with no usable address.
const UnknownClient = "unknown"

// ClientIP derives the client key from, in order: the first entry of
// X-Forwarded-For, X-Real-IP, the host part of RemoteAddr, and finally
// UnknownClient.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	if r.RemoteAddr != "" {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			return r.RemoteAddr
		}
		if host != "" {
			return host
		}
	}

	return UnknownClient
}

// UserKey keys on the raw Authorization header and falls back to ClientIP
// when the header is absent.
func UserKey(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		return "user:" + h
	}
	return ClientIP(r)
}

// Key applies the limiter's configured key mode.
func (l *Limiter) Key(r *http.Request) string {
	if l.cfg.KeyMode == KeyByAuthHeader {
		return UserKey(r)
	}
	return ClientIP(r)
}
