package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dmitrijs2005/trainlog/internal/client/models"
)

type Period string

const (
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

// Days is the length of the trailing window the period covers.
func (p Period) Days() int {
	switch p {
	case PeriodMonth:
		return 30
	case PeriodYear:
		return 365
	default:
		return 7
	}
}

// Totals aggregates a set of workouts.
type Totals struct {
	Count           int
	DurationMinutes int
	DistanceKm      float64
}

func (t *Totals) add(w *models.Workout) {
	t.Count++
	if w.DurationMinutes != nil {
		t.DurationMinutes += *w.DurationMinutes
	}
	if w.DistanceKm != nil {
		t.DistanceKm += *w.DistanceKm
	}
}

type ExerciseTotals struct {
	ExerciseType string
	Totals
}

type Stats struct {
	Period Period
	From   time.Time
	To     time.Time
	Total  Totals

	// ByExercise is sorted by exercise type.
	ByExercise []ExerciseTotals
}

type StatsService interface {
	Stats(ctx context.Context, p Period) (*Stats, error)
}

type statsService struct {
	store *Store
}

func NewStatsService(store *Store) StatsService {
	return &statsService{store: store}
}

func (s *statsService) Stats(ctx context.Context, p Period) (*Stats, error) {
	to := s.store.Now().UTC()
	from := to.AddDate(0, 0, -p.Days())

	ws, err := s.store.Repos.Workouts(s.store.DB).List(ctx, models.WorkoutFilter{From: &from, To: &to})
	if err != nil {
		return nil, fmt.Errorf("list workouts: %w", err)
	}

	st := &Stats{Period: p, From: from, To: to}
	byType := map[string]*Totals{}
	for _, w := range ws {
		st.Total.add(w)
		t, ok := byType[w.ExerciseType]
		if !ok {
			t = &Totals{}
			byType[w.ExerciseType] = t
		}
		t.add(w)
	}

	for typ, t := range byType {
		st.ByExercise = append(st.ByExercise, ExerciseTotals{ExerciseType: typ, Totals: *t})
	}
	sort.Slice(st.ByExercise, func(i, j int) bool {
		return st.ByExercise[i].ExerciseType < st.ByExercise[j].ExerciseType
	})
	return st, nil
}
