package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/trainlog/internal/client/services"
)

func (a *App) statsCmd(ctx context.Context, args []string) error {
	fs := newFlagSet("stats", a.errOut)
	week := fs.Bool("week", false, "last 7 days (default)")
	month := fs.Bool("month", false, "last 30 days")
	year := fs.Bool("year", false, "last 365 days")
	if err := fs.Parse(args); err != nil {
		return err
	}

	period := services.PeriodWeek
	picked := 0
	for _, opt := range []struct {
		on bool
		p  services.Period
	}{{*week, services.PeriodWeek}, {*month, services.PeriodMonth}, {*year, services.PeriodYear}} {
		if opt.on {
			period = opt.p
			picked++
		}
	}
	if picked > 1 {
		return fmt.Errorf("pick one of -week, -month or -year")
	}

	st, err := a.stats.Stats(ctx, period)
	if err != nil {
		return err
	}

	a.printf("Training stats, last %s (%s to %s)\n\n", st.Period, a.formatDate(st.From), a.formatDate(st.To))
	if st.Total.Count == 0 {
		a.println("No workouts in this period.")
		return nil
	}

	tw := a.table()
	writeRow(tw, "EXERCISE", "WORKOUTS", "DURATION", "DISTANCE")
	for _, e := range st.ByExercise {
		writeRow(tw, e.ExerciseType, strconv.Itoa(e.Count), formatMinutes(e.DurationMinutes), a.formatTotalDistance(e.DistanceKm))
	}
	writeRow(tw, "total", strconv.Itoa(st.Total.Count), formatMinutes(st.Total.DurationMinutes), a.formatTotalDistance(st.Total.DistanceKm))
	return tw.Flush()
}
