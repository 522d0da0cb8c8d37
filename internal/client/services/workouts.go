package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/trainlog/internal/client/client"
	"github.com/dmitrijs2005/trainlog/internal/client/models"
	"github.com/dmitrijs2005/trainlog/internal/dbx"
	"github.com/dmitrijs2005/trainlog/internal/netx"
)

type WorkoutService interface {
	Log(ctx context.Context, w *models.Workout) error
	List(ctx context.Context, f models.WorkoutFilter) ([]*models.Workout, error)
	Show(ctx context.Context, id string) (*models.Workout, error)
	Edit(ctx context.Context, id string, p models.WorkoutPatch) (*models.Workout, error)
	Delete(ctx context.Context, id string) error

	// AttachVideo uploads data to object storage and stores the object key
	// on the workout.
	AttachVideo(ctx context.Context, id, contentType string, data []byte) (*models.Workout, error)
}

type workoutService struct {
	api   client.API
	store *Store
}

func NewWorkoutService(api client.API, store *Store) WorkoutService {
	return &workoutService{api: api, store: store}
}

func (s *workoutService) Log(ctx context.Context, w *models.Workout) error {
	if err := w.Validate(); err != nil {
		return err
	}
	err := s.store.mutate(ctx, w.ID, models.KindWorkout, func(ctx context.Context, tx dbx.DBTX) error {
		return s.store.Repos.Workouts(tx).Insert(ctx, w)
	})
	if err != nil {
		return fmt.Errorf("save workout: %w", err)
	}
	return nil
}

func (s *workoutService) List(ctx context.Context, f models.WorkoutFilter) ([]*models.Workout, error) {
	ws, err := s.store.Repos.Workouts(s.store.DB).List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list workouts: %w", err)
	}
	return ws, nil
}

func (s *workoutService) Show(ctx context.Context, id string) (*models.Workout, error) {
	w, err := s.store.Repos.Workouts(s.store.DB).GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("workout %s: %w", id, err)
	}
	return w, nil
}

func (s *workoutService) Edit(ctx context.Context, id string, p models.WorkoutPatch) (*models.Workout, error) {
	return s.update(ctx, id, func(w *models.Workout) { w.Apply(p) })
}

func (s *workoutService) update(ctx context.Context, id string, change func(w *models.Workout)) (*models.Workout, error) {
	var out *models.Workout
	err := s.store.mutate(ctx, id, models.KindWorkout, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.store.Repos.Workouts(tx)
		w, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		change(w)
		if err := w.Validate(); err != nil {
			return err
		}
		if err := repo.Update(ctx, w); err != nil {
			return err
		}
		out, err = repo.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("update workout %s: %w", id, err)
	}
	return out, nil
}

func (s *workoutService) Delete(ctx context.Context, id string) error {
	err := s.store.mutate(ctx, id, models.KindWorkout, func(ctx context.Context, tx dbx.DBTX) error {
		return s.store.Repos.Workouts(tx).Delete(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete workout %s: %w", id, err)
	}
	return nil
}

func (s *workoutService) AttachVideo(ctx context.Context, id, contentType string, data []byte) (*models.Workout, error) {
	if _, err := s.Show(ctx, id); err != nil {
		return nil, err
	}

	slot, err := s.api.RequestVideoUpload(ctx, contentType)
	if err != nil {
		return nil, fmt.Errorf("request upload: %w", err)
	}
	if err := netx.UploadToPresignedURL(ctx, slot.URL, contentType, data); err != nil {
		return nil, err
	}

	key := slot.Key
	return s.update(ctx, id, func(w *models.Workout) { w.VideoKey = &key })
}
