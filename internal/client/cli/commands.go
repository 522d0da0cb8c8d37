package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/trainlog/internal/buildinfo"
	"github.com/dmitrijs2005/trainlog/internal/client/config"
)

type command struct {
	name    string
	summary string
	sub     []string
}

// commands drives the usage text and the shell completions.
var commands = []command{
	{name: "login", summary: "log in to the trainlog API"},
	{name: "logout", summary: "end the session"},
	{name: "register", summary: "create an account and log in"},
	{name: "whoami", summary: "show the logged-in user"},
	{name: "password", summary: "change the account password"},
	{name: "workout", summary: "log and manage workouts", sub: []string{"log", "list", "show", "edit", "delete", "attach"}},
	{name: "goals", summary: "manage training goals", sub: []string{"list", "show", "create", "update", "complete", "delete"}},
	{name: "stats", summary: "training totals for the last week, month or year"},
	{name: "sync", summary: "synchronise with the server", sub: []string{"conflicts", "resolve"}},
	{name: "dashboard", summary: "interactive session"},
	{name: "config", summary: "show, edit or create the config file", sub: []string{"show", "edit", "init"}},
	{name: "completions", summary: "print a shell completion script", sub: []string{"bash", "zsh", "fish"}},
	{name: "version", summary: "print build information"},
}

var (
	errNothingToChange = errors.New("nothing to change")
	errOffline         = errors.New("not available in offline mode")
)

// Execute runs one command against the App.
func (a *App) Execute(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "login":
		return a.login(ctx, args)
	case "logout":
		return a.logout(ctx)
	case "register":
		return a.register(ctx, args)
	case "whoami":
		return a.whoami(ctx)
	case "password":
		return a.changePassword(ctx)
	case "workout", "workouts":
		return a.workoutCmd(ctx, args)
	case "goals", "goal":
		return a.goalsCmd(ctx, args)
	case "stats":
		return a.statsCmd(ctx, args)
	case "sync":
		return a.syncCmd(ctx, args)
	case "dashboard":
		return a.Dashboard(ctx)
	case "help":
		printUsage(a.out)
		return nil
	case "version", "completions", "config":
		return runStandalone(a.config, cmd, args, a.out, a.errOut)
	default:
		return fmt.Errorf("unknown command %q (run 'coach help')", cmd)
	}
}

func runStandalone(cfg *config.Config, cmd string, args []string, out, errOut io.Writer) error {
	switch cmd {
	case "version":
		buildinfo.PrintBuildData(out)
		return nil
	case "completions":
		return completions(args, out)
	default:
		return configCmd(cfg, args, out, errOut)
	}
}

func newFlagSet(name string, w io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(w)
	return fs
}

// parseInterspersed parses fs and returns the positional arguments, which
// may appear before, between or after the flags.
func parseInterspersed(fs *flag.FlagSet, args []string) ([]string, error) {
	var pos []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			return pos, nil
		}
		pos = append(pos, args[0])
		args = args[1:]
	}
}

// setFlags names the flags given on the command line.
func setFlags(fs *flag.FlagSet) map[string]bool {
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

func subcommand(group string, args []string, known []string) (string, []string, error) {
	if len(args) == 0 {
		return "", nil, fmt.Errorf("usage: coach %s %s", group, strings.Join(known, "|"))
	}
	return args[0], args[1:], nil
}

// oneID checks that exactly one positional argument, the record id, was given.
func oneID(usage string, pos []string) (string, error) {
	if len(pos) != 1 {
		return "", fmt.Errorf("usage: coach %s", usage)
	}
	return pos[0], nil
}
