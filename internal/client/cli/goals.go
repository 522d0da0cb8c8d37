package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/trainlog/internal/client/models"
)

var goalSubcommands = []string{"list", "show", "create", "update", "complete", "delete"}

func (a *App) goalsCmd(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return a.goalList(ctx, nil)
	}
	sub, rest, err := subcommand("goals", args, goalSubcommands)
	if err != nil {
		return err
	}
	switch sub {
	case "list", "ls":
		return a.goalList(ctx, rest)
	case "show":
		return a.goalShow(ctx, rest)
	case "create", "add":
		return a.goalCreate(ctx, rest)
	case "update", "edit":
		return a.goalUpdate(ctx, rest)
	case "complete", "done":
		return a.goalComplete(ctx, rest)
	case "delete", "rm":
		return a.goalDelete(ctx, rest)
	default:
		return fmt.Errorf("unknown goals command %q", sub)
	}
}

// goalUnit names the unit a goal's values are shown and typed in.
func (a *App) goalUnit(t models.GoalType) string {
	switch t {
	case models.GoalDistance:
		return a.config.Workouts.DistanceUnit
	case models.GoalDuration:
		return "min"
	case models.GoalFrequency:
		return "workouts"
	default:
		return ""
	}
}

// toGoalValue converts a typed value for storage; distances are kept in km.
func (a *App) toGoalValue(t models.GoalType, v float64) float64 {
	if t == models.GoalDistance {
		return a.toKm(v)
	}
	return v
}

func (a *App) fromGoalValue(t models.GoalType, v float64) float64 {
	if t == models.GoalDistance && a.miles() {
		return v / a.toKm(1)
	}
	return v
}

func (a *App) formatProgress(g *models.Goal) string {
	if g.TargetValue == nil {
		if g.Completed {
			return "done"
		}
		return "-"
	}
	unit := a.goalUnit(g.GoalType)
	return fmt.Sprintf("%.1f/%.1f %s (%.0f%%)", a.fromGoalValue(g.GoalType, g.CurrentValue),
		a.fromGoalValue(g.GoalType, *g.TargetValue), unit, g.ProgressPercentage())
}

func (a *App) formatDaysLeft(g *models.Goal) string {
	if g.Completed {
		return a.colorize(ansiGreen, "completed")
	}
	switch d := g.DaysRemaining(a.now()); {
	case d < 0:
		return a.colorize(ansiYellow, fmt.Sprintf("overdue %dd", -d))
	case d == 0:
		return "today"
	default:
		return fmt.Sprintf("%dd left", d)
	}
}

func (a *App) goalList(ctx context.Context, args []string) error {
	fs := newFlagSet("goals list", a.errOut)
	all := fs.Bool("all", false, "include completed goals")
	typ := fs.String("type", "", "only this goal type")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var f models.GoalFilter
	if !*all {
		open := false
		f.Completed = &open
	}
	if *typ != "" {
		t, err := models.ParseGoalType(*typ)
		if err != nil {
			return err
		}
		f.GoalType = t
	}

	gs, err := a.goals.List(ctx, f)
	if err != nil {
		return err
	}
	if len(gs) == 0 {
		a.println("No goals found.")
		return nil
	}

	tw := a.table()
	writeRow(tw, "ID", "TITLE", "TYPE", "TARGET DATE", "PROGRESS", "", "STATUS")
	for _, g := range gs {
		writeRow(tw, shortID(g.ID), g.Title, string(g.GoalType), a.formatDate(g.TargetDate),
			a.formatProgress(g), a.formatDaysLeft(g), a.syncMark(g.Synced))
	}
	return tw.Flush()
}

func (a *App) goalShow(ctx context.Context, args []string) error {
	id, err := oneID("goals show <id>", args)
	if err != nil {
		return err
	}
	g, err := a.findGoal(ctx, id)
	if err != nil {
		return err
	}

	tw := a.table()
	writeRow(tw, "ID:", g.ID)
	writeRow(tw, "Title:", g.Title)
	writeRow(tw, "Type:", string(g.GoalType))
	writeRow(tw, "Target date:", a.formatDate(g.TargetDate))
	writeRow(tw, "Progress:", a.formatProgress(g))
	writeRow(tw, "Time left:", a.formatDaysLeft(g))
	if g.CompletedAt != nil {
		writeRow(tw, "Completed:", a.formatDate(*g.CompletedAt))
	}
	writeRow(tw, "Notes:", optional(g.Notes))
	writeRow(tw, "Status:", a.syncMark(g.Synced))
	return tw.Flush()
}

func (a *App) goalCreate(ctx context.Context, args []string) error {
	fs := newFlagSet("goals create", a.errOut)
	title := fs.String("title", "", "goal title")
	typ := fs.String("type", "", "distance, duration, event or frequency")
	target := fs.Float64("target", 0, "target value (distance, minutes or workouts)")
	date := fs.String("date", "", "target date ("+a.config.UI.DateFormat+")")
	notes := fs.String("notes", "", "free-form notes")
	pos, err := parseInterspersed(fs, args)
	if err != nil {
		return err
	}
	set := setFlags(fs)
	if *title == "" && len(pos) > 0 {
		*title = strings.Join(pos, " ")
	}

	if *title == "" {
		if *title, err = GetSimpleText(a.reader, "Title", a.out); err != nil {
			return err
		}
	}
	if *typ == "" {
		if *typ, err = GetTextOr(a.reader, "Type (distance, duration, event, frequency)", string(models.GoalDistance), a.out); err != nil {
			return err
		}
	}
	goalType, err := models.ParseGoalType(*typ)
	if err != nil {
		return err
	}
	if *date == "" {
		if *date, err = GetSimpleText(a.reader, "Target date ("+a.config.UI.DateFormat+")", a.out); err != nil {
			return err
		}
	}
	targetDate, err := a.parseDate(*date)
	if err != nil {
		return err
	}

	var targetValue *float64
	switch {
	case set["target"]:
		v := a.toGoalValue(goalType, *target)
		targetValue = &v
	case goalType != models.GoalEvent:
		ans, err := GetSimpleText(a.reader, fmt.Sprintf("Target in %s (empty to skip)", a.goalUnit(goalType)), a.out)
		if err != nil {
			return err
		}
		v, err := optFloat(ans)
		if err != nil {
			return err
		}
		if v != nil {
			conv := a.toGoalValue(goalType, *v)
			targetValue = &conv
		}
	}

	g := models.NewGoal(*title, goalType, targetDate, targetValue, optString(*notes), a.now())
	if err := a.goals.Create(ctx, g); err != nil {
		return err
	}
	a.printf("Goal created: %s\n", g.ID)
	a.autoSync(ctx)
	return nil
}

func (a *App) goalUpdate(ctx context.Context, args []string) error {
	fs := newFlagSet("goals update", a.errOut)
	title := fs.String("title", "", "goal title")
	target := fs.Float64("target", 0, "target value")
	current := fs.Float64("current", 0, "current progress")
	date := fs.String("date", "", "target date ("+a.config.UI.DateFormat+")")
	notes := fs.String("notes", "", "free-form notes")
	pos, err := parseInterspersed(fs, args)
	if err != nil {
		return err
	}
	id, err := oneID("goals update <id> [-title s] [-target n] [-current n] [-date d] [-notes s]", pos)
	if err != nil {
		return err
	}
	set := setFlags(fs)
	if len(set) == 0 {
		return fmt.Errorf("%w: pass -title, -target, -current, -date or -notes", errNothingToChange)
	}

	g, err := a.findGoal(ctx, id)
	if err != nil {
		return err
	}

	var p models.GoalPatch
	if set["title"] {
		p.Title = title
	}
	if set["target"] {
		v := a.toGoalValue(g.GoalType, *target)
		p.TargetValue = &v
	}
	if set["current"] {
		v := a.toGoalValue(g.GoalType, *current)
		p.CurrentValue = &v
	}
	if set["date"] {
		d, err := a.parseDate(*date)
		if err != nil {
			return err
		}
		p.TargetDate = &d
	}
	if set["notes"] {
		p.Notes = notes
	}

	if g, err = a.goals.Update(ctx, g.ID, p); err != nil {
		return err
	}
	a.printf("Goal updated: %s  %s\n", g.Title, a.formatProgress(g))
	a.autoSync(ctx)
	return nil
}

func (a *App) goalComplete(ctx context.Context, args []string) error {
	id, err := oneID("goals complete <id>", args)
	if err != nil {
		return err
	}
	g, err := a.findGoal(ctx, id)
	if err != nil {
		return err
	}
	if g, err = a.goals.Complete(ctx, g.ID); err != nil {
		return err
	}
	a.printf("Goal completed: %s\n", g.Title)
	a.autoSync(ctx)
	return nil
}

func (a *App) goalDelete(ctx context.Context, args []string) error {
	fs := newFlagSet("goals delete", a.errOut)
	yes := fs.Bool("y", false, "do not ask for confirmation")
	pos, err := parseInterspersed(fs, args)
	if err != nil {
		return err
	}
	id, err := oneID("goals delete <id> [-y]", pos)
	if err != nil {
		return err
	}
	g, err := a.findGoal(ctx, id)
	if err != nil {
		return err
	}

	if !*yes {
		ok, err := Confirm(a.reader, fmt.Sprintf("Delete goal %q?", g.Title), a.out)
		if err != nil {
			return err
		}
		if !ok {
			a.println("Cancelled.")
			return nil
		}
	}

	if err := a.goals.Delete(ctx, g.ID); err != nil {
		return err
	}
	a.printf("Goal deleted: %s\n", g.ID)
	a.autoSync(ctx)
	return nil
}

func (a *App) findGoal(ctx context.Context, id string) (*models.Goal, error) {
	return findByPrefix(id,
		func() (*models.Goal, error) { return a.goals.Show(ctx, id) },
		func() ([]*models.Goal, error) { return a.goals.List(ctx, models.GoalFilter{}) },
		func(g *models.Goal) string { return g.ID })
}
