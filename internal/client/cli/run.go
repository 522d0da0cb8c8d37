package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/dmitrijs2005/trainlog/internal/client/client"
	"github.com/dmitrijs2005/trainlog/internal/client/config"
	"github.com/dmitrijs2005/trainlog/internal/client/services"
	"github.com/dmitrijs2005/trainlog/internal/client/syncer"
	"github.com/dmitrijs2005/trainlog/internal/flagx"
)

// Run executes one coach invocation and returns the process exit code.
// args exclude the program name.
func Run(ctx context.Context, args []string, getenv func(string) string, in io.Reader, out, errOut io.Writer) int {
	globals, cmd, rest := flagx.SplitCommand(args, config.GlobalValueFlags)

	cfg, err := config.LoadConfig(globals, getenv)
	if errors.Is(err, flag.ErrHelp) {
		printUsage(out)
		return 0
	}
	if err != nil {
		fmt.Fprintf(errOut, "error: %s\n", describe(err))
		return 1
	}

	// These work without the local store.
	switch cmd {
	case "", "help":
		printUsage(out)
		return 0
	case "version", "completions", "config":
		if err := runStandalone(cfg, cmd, rest, out, errOut); err != nil {
			fmt.Fprintf(errOut, "error: %s\n", describe(err))
			return 1
		}
		return 0
	}

	app, err := NewApp(ctx, cfg, in, out, errOut)
	if err != nil {
		fmt.Fprintf(errOut, "error: %s\n", describe(err))
		return 1
	}
	defer app.Close()

	if err := app.Execute(ctx, cmd, rest); err != nil {
		fmt.Fprintf(errOut, "error: %s\n", describe(err))
		return 1
	}
	return 0
}

// describe turns err into a message with a hint on what to do next.
func describe(err error) string {
	var apiErr *client.APIError
	switch {
	case errors.Is(err, services.ErrNotLoggedIn), errors.Is(err, syncer.ErrNotLoggedIn):
		return err.Error() + " (run 'coach login')"
	case errors.Is(err, client.ErrUnauthorized):
		return "session expired (run 'coach login')"
	case errors.Is(err, syncer.ErrServerUnreachable), errors.Is(err, client.ErrUnavailable):
		return err.Error() + " (check api.base_url or use -offline)"
	case errors.As(err, &apiErr) && apiErr.RetryAfter > 0:
		return fmt.Sprintf("%s (retry in %ds)", apiErr.Message, apiErr.RetryAfter)
	case errors.As(err, &apiErr):
		return apiErr.Message
	default:
		return err.Error()
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `coach - training log with offline sync

Usage:
  coach [-a url] [-d dir] [-c file] [-v] [-offline] <command> [arguments]

Commands:
`)
	for _, c := range commands {
		fmt.Fprintf(w, "  %-12s %s\n", c.name, c.summary)
	}
	fmt.Fprint(w, `
Run 'coach <command> -h' for the flags of a command.
`)
}
