package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/trainlog/internal/client/client"
	"github.com/dmitrijs2005/trainlog/internal/client/config"
	"github.com/dmitrijs2005/trainlog/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/trainlog/internal/client/services"
	"github.com/dmitrijs2005/trainlog/internal/client/syncer"
	"github.com/dmitrijs2005/trainlog/internal/filex"
	"github.com/dmitrijs2005/trainlog/internal/logging"
)

type App struct {
	config *config.Config
	db     *sql.DB
	log    logging.Logger
	now    func() time.Time

	api      client.API
	tokens   *metadata.TokenStore
	auth     services.AuthService
	workouts services.WorkoutService
	goals    services.GoalService
	stats    services.StatsService
	engine   *syncer.Engine

	reader *bufio.Reader
	out    io.Writer
	errOut io.Writer

	// online is the last health check result shown by the dashboard.
	online      atomic.Bool
	inDashboard bool
}

// NewApp opens the local store in the configured data dir and wires the
// services. Close releases the store.
func NewApp(ctx context.Context, cfg *config.Config, in io.Reader, out, errOut io.Writer) (*App, error) {
	strategy, err := cfg.Strategy()
	if err != nil {
		return nil, err
	}

	level := "warn"
	if cfg.Verbose {
		level = "debug"
	}
	logger := logging.New(errOut, false, level)

	if _, err := filex.EnsureDir(cfg.DataDir); err != nil {
		return nil, err
	}
	db, err := client.InitDatabase(ctx, cfg.DatabasePath())
	if err != nil {
		return nil, err
	}

	store := services.NewStore(db)
	tokens := metadata.NewTokenStore(store.Repos.Metadata(db))
	api := client.NewHTTPClient(cfg.API.BaseURL, cfg.API.Timeout.Duration, tokens, logger)

	return &App{
		config:   cfg,
		db:       db,
		log:      logger,
		now:      time.Now,
		api:      api,
		tokens:   tokens,
		auth:     services.NewAuthService(api, store, logger),
		workouts: services.NewWorkoutService(api, store),
		goals:    services.NewGoalService(store),
		stats:    services.NewStatsService(store),
		engine:   syncer.NewEngine(db, store.Repos, api, strategy, logger),
		reader:   bufio.NewReader(in),
		out:      out,
		errOut:   errOut,
	}, nil
}

func (a *App) Close() error {
	return a.db.Close()
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func (a *App) println(args ...any) {
	fmt.Fprintln(a.out, args...)
}

func (a *App) warnf(format string, args ...any) {
	fmt.Fprintf(a.errOut, "warning: "+format+"\n", args...)
}

func (a *App) isLoggedIn(ctx context.Context) bool {
	ok, err := a.tokens.LoggedIn(ctx)
	return err == nil && ok
}

// autoSync pushes local changes after a mutation when enabled. Failures are
// reported as warnings; the change itself is already stored.
func (a *App) autoSync(ctx context.Context) {
	if !a.config.Sync.AutoSync || a.config.Offline || !a.isLoggedIn(ctx) {
		return
	}
	rep, err := a.engine.Sync(ctx, false)
	if err != nil {
		a.warnf("changes saved locally, sync failed: %v", err)
		return
	}
	if len(rep.Rejected) > 0 || len(rep.Conflicts) > 0 {
		a.warnf("sync finished with %d rejected and %d conflicting records, run 'coach sync' for details",
			len(rep.Rejected), len(rep.Conflicts))
	}
}
