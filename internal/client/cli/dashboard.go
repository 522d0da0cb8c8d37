package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dmitrijs2005/trainlog/internal/client/models"
	"github.com/dmitrijs2005/trainlog/internal/client/services"
)

const (
	onlineCheckInterval = 30 * time.Second
	onlineCheckTimeout  = 3 * time.Second
)

var errNestedDashboard = errors.New("already in the dashboard")

// executor is the command surface the dashboard loop needs. App satisfies
// it; tests use a stub.
type executor interface {
	Execute(ctx context.Context, cmd string, args []string) error
}

// Dashboard prints a summary and then reads commands until EOF, "exit" or
// "quit". A failing command is reported and the loop goes on.
func (a *App) Dashboard(ctx context.Context) error {
	if a.inDashboard {
		return errNestedDashboard
	}
	a.inDashboard = true
	defer func() { a.inDashboard = false }()

	st, err := a.auth.Status(ctx, !a.config.Offline)
	if err != nil {
		return err
	}
	a.online.Store(st.Online)
	a.printSummary(ctx, st)

	if !a.config.Offline {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		go a.watchOnline(ctx, onlineCheckInterval)
	}

	a.println("Type 'help' for commands, 'exit' to leave.")
	runREPL(ctx, a, a.prompt, a.reader, a.out, a.errOut)
	return nil
}

// watchOnline polls the health endpoint until ctx is done.
func (a *App) watchOnline(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cctx, cancel := context.WithTimeout(ctx, onlineCheckTimeout)
			err := a.api.Health(cctx)
			cancel()
			a.online.Store(err == nil)
		case <-ctx.Done():
			return
		}
	}
}

// prompt renders the status line shown before each command.
func (a *App) prompt() string {
	ctx := context.Background()
	var parts []string

	if email, err := a.tokens.UserEmail(ctx); err == nil && email != "" && a.isLoggedIn(ctx) {
		parts = append(parts, email)
	} else {
		parts = append(parts, "not logged in")
	}

	if a.online.Load() {
		parts = append(parts, a.colorize(ansiGreen, "online"))
	} else {
		parts = append(parts, a.colorize(ansiYellow, "offline"))
	}

	if n, err := a.pendingCount(ctx); err == nil && n > 0 {
		parts = append(parts, fmt.Sprintf("%d pending", n))
	}
	return fmt.Sprintf("coach (%s)> ", strings.Join(parts, ", "))
}

func (a *App) pendingCount(ctx context.Context) (int, error) {
	items, err := a.engine.Pending(ctx)
	return len(items), err
}

func (a *App) printSummary(ctx context.Context, st *services.Status) {
	if st.LoggedIn {
		a.printf("Logged in as %s\n", st.Email)
	} else {
		a.println("Not logged in, changes stay local until you log in.")
	}
	if st.LastSyncAt != nil {
		a.printf("Last sync: %s\n", st.LastSyncAt.Local().Format(a.config.UI.DateFormat+" 15:04"))
	} else {
		a.println("Last sync: never")
	}
	if st.Pending > 0 {
		a.printf("%d change(s) waiting to sync\n", st.Pending)
	}
	if st.Conflicts > 0 {
		a.printf("%s: %d, run 'sync conflicts'\n", a.colorize(ansiYellow, "Conflicts"), st.Conflicts)
	}

	if week, err := a.stats.Stats(ctx, services.PeriodWeek); err == nil {
		a.printf("This week: %d workout(s), %s, %s\n", week.Total.Count,
			formatMinutes(week.Total.DurationMinutes), a.formatTotalDistance(week.Total.DistanceKm))
	}

	open := false
	if goals, err := a.goals.List(ctx, models.GoalFilter{Completed: &open}); err == nil && len(goals) > 0 {
		a.println("Open goals:")
		for _, g := range goals {
			a.printf("  %s  %s  %s\n", g.Title, a.formatProgress(g), a.formatDaysLeft(g))
		}
	}
	a.println()
}

// runREPL reads one command per line from reader and dispatches it to ex.
// Commands that prompt read from the same reader, so it must be shared.
func runREPL(ctx context.Context, ex executor, statusFn func() string, reader *bufio.Reader, out, errOut io.Writer) {
	for {
		if ctx.Err() != nil {
			return
		}
		fmt.Fprint(out, statusFn())

		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			fmt.Fprintln(out)
			return
		}

		parts, perr := splitLine(line)
		if perr != nil {
			fmt.Fprintf(errOut, "error: %v\n", perr)
			continue
		}
		if len(parts) == 0 {
			continue
		}

		switch parts[0] {
		case "exit", "quit":
			fmt.Fprintln(out, "Bye!")
			return
		case "coach":
			// Commands pasted from the shell.
			parts = parts[1:]
			if len(parts) == 0 {
				continue
			}
		}

		if err := ex.Execute(ctx, parts[0], parts[1:]); err != nil {
			fmt.Fprintf(errOut, "error: %s\n", describe(err))
		}
	}
}
