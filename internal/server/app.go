// Package server wires configuration, storage, services and transports into
// the running trainlog API process and handles graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/trainlog/internal/logging"
	"github.com/dmitrijs2005/trainlog/internal/server/auth"
	"github.com/dmitrijs2005/trainlog/internal/server/config"
	"github.com/dmitrijs2005/trainlog/internal/server/email"
	"github.com/dmitrijs2005/trainlog/internal/server/httpapi"
	"github.com/dmitrijs2005/trainlog/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/trainlog/internal/server/services"
	"github.com/dmitrijs2005/trainlog/internal/telemetry"

	gs "github.com/dmitrijs2005/trainlog/internal/server/grpc"
)

const (
	shutdownTimeout = 10 * time.Second
	purgeInterval   = time.Hour
)

var (
	openDB = func(dsn string) (*sql.DB, error) { return sql.Open("pgx", dsn) }

	newRepoManager = repomanager.NewPostgresRepositoryManager
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	users       *services.UserService
	handler     *httpapi.Handler
	limiters    httpapi.Limiters
}

func NewApp(c *config.Config, logger logging.Logger) (*App, error) {
	db, err := openDB(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := newRepoManager()
	tokens := auth.NewTokenService(c.SecretKey, c.AccessTokenValidityDuration, c.RefreshTokenValidityDuration)
	mailer := email.New(c.ResendAPIKey, c.MailFrom, c.AppURL, logger.With("module", "email"))

	users := services.NewUserService(db, rm, tokens, mailer, logger.With("module", "users"), c)
	syncs := services.NewSyncService(db, rm, logger.With("module", "sync"))
	uploads := services.NewUploadService(c)

	var limiters httpapi.Limiters
	if c.RateLimitEnabled {
		limiters = httpapi.NewLimiters()
	}

	handler := httpapi.NewHandler(httpapi.Options{
		Users:    users,
		Sync:     syncs,
		Uploads:  uploads,
		Log:      logger.With("module", "http"),
		Limiters: limiters,
		Health:   db.PingContext,
	})

	return &App{
		config:      c,
		logger:      logger,
		db:          db,
		repomanager: rm,
		users:       users,
		handler:     handler,
		limiters:    limiters,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	srv := httpapi.NewServer(app.config.EndpointAddrHTTP, app.handler.Routes(), app.config.CORSAllowedOrigins, app.logger.With("module", "http"))

	go func() {
		<-ctx.Done()
		app.logger.Info(ctx, "Stopping HTTP server...")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			app.logger.Error(ctx, "HTTP shutdown error", "error", err)
		}
	}()

	app.logger.Info(ctx, "Starting HTTP server", "address", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewHealthServer(app.config.EndpointAddrGRPC, app.logger, app.db.PingContext, 0)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// purgeLoop drops expired blacklist entries and refresh tokens.
func (app *App) purgeLoop(ctx context.Context) {
	t := time.NewTicker(purgeInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := app.users.PurgeExpired(ctx); err != nil {
				app.logger.Warn(ctx, "token purge failed", "error", err)
			}
		}
	}
}

// Run migrates the schema and serves until a signal arrives or ctx is done.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	shutdownTelemetry := telemetry.Setup(ctx, "trainlog-api", app.logger)
	defer func() {
		tctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(tctx)
	}()
	defer app.db.Close()

	if err := app.repomanager.RunMigrations(ctx, app.db); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	app.initSignalHandler(cancelFunc)

	for _, l := range app.limiters.All() {
		l.Start(ctx)
		defer l.Stop()
	}

	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.purgeLoop(ctx)
	}()

	wg.Wait()
	app.logger.Info(context.Background(), "App stopped")
	return nil
}
