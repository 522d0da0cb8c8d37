package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/trainlog/internal/client/models"
	"github.com/dmitrijs2005/trainlog/internal/client/parser"
	"github.com/dmitrijs2005/trainlog/internal/common"
)

var workoutSubcommands = []string{"log", "list", "show", "edit", "delete", "attach"}

func (a *App) workoutCmd(ctx context.Context, args []string) error {
	sub, rest, err := subcommand("workout", args, workoutSubcommands)
	if err != nil {
		return err
	}
	switch sub {
	case "log", "add":
		return a.workoutLog(ctx, rest)
	case "list", "ls":
		return a.workoutList(ctx, rest)
	case "show":
		return a.workoutShow(ctx, rest)
	case "edit":
		return a.workoutEdit(ctx, rest)
	case "delete", "rm":
		return a.workoutDelete(ctx, rest)
	case "attach":
		return a.workoutAttach(ctx, rest)
	default:
		return fmt.Errorf("unknown workout command %q", sub)
	}
}

// workoutFields are the flags shared by log and edit.
type workoutFields struct {
	exercise string
	duration int
	distance float64
	notes    string
	date     string
}

func (a *App) workoutFlags(name string, f *workoutFields) *flag.FlagSet {
	fs := newFlagSet(name, a.errOut)
	fs.StringVar(&f.exercise, "type", "", "exercise type (running, cycling, swimming, walking, strength)")
	fs.IntVar(&f.duration, "duration", 0, "duration in minutes")
	fs.Float64Var(&f.distance, "distance", 0, "distance in "+a.config.Workouts.DistanceUnit)
	fs.StringVar(&f.notes, "notes", "", "free-form notes")
	fs.StringVar(&f.date, "date", "", "date ("+a.config.UI.DateFormat+")")
	return fs
}

// patch turns the flags that were given into a WorkoutPatch.
func (a *App) workoutPatch(f *workoutFields, set map[string]bool) (models.WorkoutPatch, error) {
	var p models.WorkoutPatch
	if set["type"] {
		p.ExerciseType = &f.exercise
	}
	if set["duration"] {
		p.DurationMinutes = &f.duration
	}
	if set["distance"] {
		km := a.toKm(f.distance)
		p.DistanceKm = &km
	}
	if set["notes"] {
		p.Notes = &f.notes
	}
	if set["date"] {
		d, err := a.parseDate(f.date)
		if err != nil {
			return p, err
		}
		p.Date = &d
	}
	return p, nil
}

func (a *App) workoutLog(ctx context.Context, args []string) error {
	var f workoutFields
	fs := a.workoutFlags("workout log", &f)
	pos, err := parseInterspersed(fs, args)
	if err != nil {
		return err
	}
	set := setFlags(fs)
	desc := strings.TrimSpace(strings.Join(pos, " "))

	w := models.NewWorkout(a.config.Workouts.DefaultExerciseType, nil, nil, nil, a.now())
	switch {
	case desc != "":
		res, err := parser.Parse(desc)
		if err != nil && !set["type"] {
			return fmt.Errorf("%w; add -type", err)
		}
		if err == nil {
			w.ExerciseType = res.ExerciseType
			w.DurationMinutes = res.DurationMinutes
			w.DistanceKm = res.DistanceKm
		}
		w.Notes = &desc
	case len(set) == 0:
		if err := a.promptWorkout(w); err != nil {
			return err
		}
	}

	p, err := a.workoutPatch(&f, set)
	if err != nil {
		return err
	}
	w.Apply(p)

	if err := a.workouts.Log(ctx, w); err != nil {
		return err
	}
	a.printf("Workout logged: %s\n", w.ID)
	a.printWorkoutLine(w)
	a.autoSync(ctx)
	return nil
}

func (a *App) promptWorkout(w *models.Workout) error {
	typ, err := GetTextOr(a.reader, "Exercise type", w.ExerciseType, a.out)
	if err != nil {
		return err
	}
	dur, err := GetSimpleText(a.reader, "Duration in minutes (empty to skip)", a.out)
	if err != nil {
		return err
	}
	dist, err := GetSimpleText(a.reader, "Distance in "+a.config.Workouts.DistanceUnit+" (empty to skip)", a.out)
	if err != nil {
		return err
	}
	notes, err := GetSimpleText(a.reader, "Notes (empty to skip)", a.out)
	if err != nil {
		return err
	}

	w.Apply(models.WorkoutPatch{ExerciseType: &typ, Notes: optString(notes)})
	if w.DurationMinutes, err = optInt(dur); err != nil {
		return err
	}
	km, err := optFloat(dist)
	if err != nil {
		return err
	}
	if km != nil {
		v := a.toKm(*km)
		w.DistanceKm = &v
	}
	return nil
}

func (a *App) printWorkoutLine(w *models.Workout) {
	a.printf("  %s  %s  %s  %s\n", a.formatDate(w.Date), w.ExerciseType, formatDuration(w.DurationMinutes), a.formatDistance(w.DistanceKm))
}

func (a *App) workoutList(ctx context.Context, args []string) error {
	fs := newFlagSet("workout list", a.errOut)
	typ := fs.String("type", "", "only this exercise type")
	from := fs.String("from", "", "from date ("+a.config.UI.DateFormat+")")
	to := fs.String("to", "", "to date, inclusive")
	limit := fs.Int("limit", 10, "maximum number of workouts, 0 for all")
	unsynced := fs.Bool("unsynced", false, "only workouts not yet synced")
	if err := fs.Parse(args); err != nil {
		return err
	}

	f := models.WorkoutFilter{ExerciseType: *typ, Limit: *limit}
	if *from != "" {
		t, err := a.parseDate(*from)
		if err != nil {
			return err
		}
		f.From = &t
	}
	if *to != "" {
		t, err := a.parseDate(*to)
		if err != nil {
			return err
		}
		end := t.AddDate(0, 0, 1).Add(-1)
		f.To = &end
	}
	if *unsynced {
		no := false
		f.Synced = &no
	}

	ws, err := a.workouts.List(ctx, f)
	if err != nil {
		return err
	}
	if len(ws) == 0 {
		a.println("No workouts found.")
		return nil
	}

	tw := a.table()
	writeRow(tw, "ID", "DATE", "TYPE", "DURATION", "DISTANCE", "STATUS")
	for _, w := range ws {
		writeRow(tw, shortID(w.ID), a.formatDate(w.Date), w.ExerciseType,
			formatDuration(w.DurationMinutes), a.formatDistance(w.DistanceKm), a.syncMark(w.Synced))
	}
	return tw.Flush()
}

func (a *App) workoutShow(ctx context.Context, args []string) error {
	id, err := oneID("workout show <id>", args)
	if err != nil {
		return err
	}
	w, err := a.findWorkout(ctx, id)
	if err != nil {
		return err
	}

	tw := a.table()
	writeRow(tw, "ID:", w.ID)
	writeRow(tw, "Date:", a.formatDate(w.Date))
	writeRow(tw, "Type:", w.ExerciseType)
	writeRow(tw, "Duration:", formatDuration(w.DurationMinutes))
	writeRow(tw, "Distance:", a.formatDistance(w.DistanceKm))
	writeRow(tw, "Notes:", optional(w.Notes))
	writeRow(tw, "Video:", optional(w.VideoKey))
	writeRow(tw, "Status:", a.syncMark(w.Synced))
	return tw.Flush()
}

func (a *App) workoutEdit(ctx context.Context, args []string) error {
	var f workoutFields
	fs := a.workoutFlags("workout edit", &f)
	pos, err := parseInterspersed(fs, args)
	if err != nil {
		return err
	}
	id, err := oneID("workout edit <id> [-type t] [-duration min] [-distance d] [-notes s] [-date d]", pos)
	if err != nil {
		return err
	}
	set := setFlags(fs)
	if len(set) == 0 {
		return fmt.Errorf("%w: pass -type, -duration, -distance, -notes or -date", errNothingToChange)
	}
	p, err := a.workoutPatch(&f, set)
	if err != nil {
		return err
	}

	w, err := a.findWorkout(ctx, id)
	if err != nil {
		return err
	}
	if w, err = a.workouts.Edit(ctx, w.ID, p); err != nil {
		return err
	}
	a.printf("Workout updated: %s\n", w.ID)
	a.printWorkoutLine(w)
	a.autoSync(ctx)
	return nil
}

func (a *App) workoutDelete(ctx context.Context, args []string) error {
	fs := newFlagSet("workout delete", a.errOut)
	yes := fs.Bool("y", false, "do not ask for confirmation")
	pos, err := parseInterspersed(fs, args)
	if err != nil {
		return err
	}
	id, err := oneID("workout delete <id> [-y]", pos)
	if err != nil {
		return err
	}
	w, err := a.findWorkout(ctx, id)
	if err != nil {
		return err
	}

	if !*yes {
		ok, err := Confirm(a.reader, fmt.Sprintf("Delete %s workout from %s?", w.ExerciseType, a.formatDate(w.Date)), a.out)
		if err != nil {
			return err
		}
		if !ok {
			a.println("Cancelled.")
			return nil
		}
	}

	if err := a.workouts.Delete(ctx, w.ID); err != nil {
		return err
	}
	a.printf("Workout deleted: %s\n", w.ID)
	a.autoSync(ctx)
	return nil
}

func (a *App) workoutAttach(ctx context.Context, args []string) error {
	fs := newFlagSet("workout attach", a.errOut)
	ct := fs.String("content-type", "", "MIME type, guessed from the file when empty")
	pos, err := parseInterspersed(fs, args)
	if err != nil {
		return err
	}
	if len(pos) != 2 {
		return fmt.Errorf("usage: coach workout attach <id> <video file>")
	}
	if err := a.requireOnline(); err != nil {
		return err
	}

	w, err := a.findWorkout(ctx, pos[0])
	if err != nil {
		return err
	}
	data, err := os.ReadFile(pos[1])
	if err != nil {
		return fmt.Errorf("read video: %w", err)
	}
	contentType := *ct
	if contentType == "" {
		contentType = guessContentType(pos[1], data)
	}

	w, err = a.workouts.AttachVideo(ctx, w.ID, contentType, data)
	if err != nil {
		return err
	}
	a.printf("Video attached to %s: %s\n", w.ID, *w.VideoKey)
	a.autoSync(ctx)
	return nil
}

func guessContentType(path string, data []byte) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); t != "" {
		return t
	}
	return http.DetectContentType(data)
}

func (a *App) findWorkout(ctx context.Context, id string) (*models.Workout, error) {
	return findByPrefix(id,
		func() (*models.Workout, error) { return a.workouts.Show(ctx, id) },
		func() ([]*models.Workout, error) { return a.workouts.List(ctx, models.WorkoutFilter{}) },
		func(w *models.Workout) string { return w.ID })
}

// findByPrefix looks id up directly and, when that finds nothing, accepts an
// unambiguous prefix of a listed id such as the short form tables print.
func findByPrefix[T any](id string, get func() (T, error), list func() ([]T, error), idOf func(T) string) (T, error) {
	v, err := get()
	if err == nil || !errors.Is(err, common.ErrorNotFound) || id == "" {
		return v, err
	}
	all, lerr := list()
	if lerr != nil {
		return v, lerr
	}
	var (
		match T
		found bool
	)
	for _, cand := range all {
		if !strings.HasPrefix(idOf(cand), id) {
			continue
		}
		if found {
			return match, fmt.Errorf("id %q is ambiguous", id)
		}
		match, found = cand, true
	}
	if !found {
		return v, err
	}
	return match, nil
}
