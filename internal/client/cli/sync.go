package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/trainlog/internal/client/syncer"
)

func (a *App) syncCmd(ctx context.Context, args []string) error {
	if len(args) > 0 {
		switch args[0] {
		case "conflicts":
			return a.syncConflicts(ctx)
		case "resolve":
			return a.syncResolve(ctx, args[1:])
		}
	}

	fs := newFlagSet("sync", a.errOut)
	dryRun := fs.Bool("dry-run", false, "show what would change without writing anything")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("usage: coach sync [-dry-run] | conflicts | resolve <id> -keep local|server")
	}
	if err := a.requireOnline(); err != nil {
		return err
	}

	rep, err := a.engine.Sync(ctx, *dryRun)
	if err != nil {
		return err
	}
	a.printReport(rep)
	return nil
}

func (a *App) printReport(rep *syncer.Report) {
	if rep.DryRun {
		a.println("Dry run, nothing was changed.")
	}
	if rep.Empty() {
		a.println("Everything is up to date.")
		return
	}

	verb := map[bool]string{false: "", true: "would be "}[rep.DryRun]
	a.printf("%d %suploaded, %d %sdownloaded\n", len(rep.Uploaded), verb, len(rep.Downloaded), verb)
	for _, c := range rep.Uploaded {
		a.printf("  ↑ %s %s%s\n", c.Kind, shortID(c.ID), deletedSuffix(c.Deleted))
	}
	for _, c := range rep.Downloaded {
		a.printf("  ↓ %s %s%s\n", c.Kind, shortID(c.ID), deletedSuffix(c.Deleted))
	}
	for _, r := range rep.Rejected {
		a.printf("  %s %s %s: %s\n", a.colorize(ansiYellow, "rejected"), r.Kind, shortID(r.ID), r.Reason)
	}
	for _, c := range rep.Conflicts {
		a.printf("  %s %s %s (%s)\n", a.colorize(ansiYellow, "conflict"), c.Kind, shortID(c.ID), conflictOutcome(c.Strategy))
	}
	if !rep.DryRun {
		a.printf("Server version %d\n", rep.Version)
	}
}

func deletedSuffix(deleted bool) string {
	if deleted {
		return " (deleted)"
	}
	return ""
}

func conflictOutcome(s syncer.Strategy) string {
	switch s {
	case syncer.ServerWins:
		return "server copy kept"
	case syncer.LocalWins:
		return "local copy kept"
	default:
		return "run 'coach sync resolve'"
	}
}

func (a *App) syncConflicts(ctx context.Context) error {
	cs, err := a.engine.Conflicts(ctx)
	if err != nil {
		return err
	}
	if len(cs) == 0 {
		a.println("No conflicts.")
		return nil
	}

	tw := a.table()
	writeRow(tw, "ID", "KIND", "SERVER", "DETECTED")
	for _, c := range cs {
		server := fmt.Sprintf("v%d", c.ServerVersion)
		if c.ServerDeleted {
			server += " deleted"
		}
		writeRow(tw, c.RecordID, string(c.Kind), server, a.formatDate(c.DetectedAt))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	a.println("\nResolve with: coach sync resolve <id> -keep local|server")
	return nil
}

func (a *App) syncResolve(ctx context.Context, args []string) error {
	fs := newFlagSet("sync resolve", a.errOut)
	keep := fs.String("keep", "", "local or server")
	pos, err := parseInterspersed(fs, args)
	if err != nil {
		return err
	}
	id, err := oneID("sync resolve <id> -keep local|server", pos)
	if err != nil {
		return err
	}
	k, err := syncer.ParseKeep(*keep)
	if err != nil {
		return err
	}

	cs, err := a.engine.Conflicts(ctx)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(cs))
	for _, c := range cs {
		ids = append(ids, c.RecordID)
	}
	if full, ok := uniquePrefix(ids, id); ok {
		id = full
	}

	if err := a.engine.ResolveConflict(ctx, id, k); err != nil {
		return err
	}
	a.printf("Conflict on %s resolved, %s copy kept.\n", id, k)
	if k == syncer.KeepLocal {
		a.autoSync(ctx)
	}
	return nil
}

// uniquePrefix returns the single id starting with prefix.
func uniquePrefix(ids []string, prefix string) (string, bool) {
	var match string
	for _, id := range ids {
		if strings.HasPrefix(id, prefix) {
			if match != "" {
				return "", false
			}
			match = id
		}
	}
	return match, match != ""
}
