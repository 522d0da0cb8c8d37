package httpapi

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/trainlog/internal/logging"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewServer wraps routes with logging, CORS and tracing and returns a
// configured http.Server.
func NewServer(addr string, routes http.Handler, allowedOrigins []string, log logging.Logger) *http.Server {
	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	handler := otelhttp.NewHandler(c.Handler(LoggingMiddleware(log)(routes)), "trainlog-api")

	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
