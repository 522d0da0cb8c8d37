package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/trainlog/internal/client/models"
	"github.com/dmitrijs2005/trainlog/internal/dbx"
)

var ErrGoalCompleted = errors.New("goal is already completed")

type GoalService interface {
	Create(ctx context.Context, g *models.Goal) error
	List(ctx context.Context, f models.GoalFilter) ([]*models.Goal, error)
	Show(ctx context.Context, id string) (*models.Goal, error)
	Update(ctx context.Context, id string, p models.GoalPatch) (*models.Goal, error)
	Complete(ctx context.Context, id string) (*models.Goal, error)
	Delete(ctx context.Context, id string) error
}

type goalService struct {
	store *Store
}

func NewGoalService(store *Store) GoalService {
	return &goalService{store: store}
}

func (s *goalService) Create(ctx context.Context, g *models.Goal) error {
	if err := g.Validate(); err != nil {
		return err
	}
	err := s.store.mutate(ctx, g.ID, models.KindGoal, func(ctx context.Context, tx dbx.DBTX) error {
		return s.store.Repos.Goals(tx).Insert(ctx, g)
	})
	if err != nil {
		return fmt.Errorf("save goal: %w", err)
	}
	return nil
}

func (s *goalService) List(ctx context.Context, f models.GoalFilter) ([]*models.Goal, error) {
	gs, err := s.store.Repos.Goals(s.store.DB).List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	return gs, nil
}

func (s *goalService) Show(ctx context.Context, id string) (*models.Goal, error) {
	g, err := s.store.Repos.Goals(s.store.DB).GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("goal %s: %w", id, err)
	}
	return g, nil
}

func (s *goalService) Update(ctx context.Context, id string, p models.GoalPatch) (*models.Goal, error) {
	return s.update(ctx, id, func(g *models.Goal) error {
		g.Apply(p)
		return nil
	})
}

func (s *goalService) Complete(ctx context.Context, id string) (*models.Goal, error) {
	return s.update(ctx, id, func(g *models.Goal) error {
		if g.Completed {
			return ErrGoalCompleted
		}
		g.MarkComplete(s.store.Now())
		return nil
	})
}

func (s *goalService) update(ctx context.Context, id string, change func(g *models.Goal) error) (*models.Goal, error) {
	var out *models.Goal
	err := s.store.mutate(ctx, id, models.KindGoal, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.store.Repos.Goals(tx)
		g, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := change(g); err != nil {
			return err
		}
		if err := g.Validate(); err != nil {
			return err
		}
		if err := repo.Update(ctx, g); err != nil {
			return err
		}
		out, err = repo.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("update goal %s: %w", id, err)
	}
	return out, nil
}

func (s *goalService) Delete(ctx context.Context, id string) error {
	err := s.store.mutate(ctx, id, models.KindGoal, func(ctx context.Context, tx dbx.DBTX) error {
		return s.store.Repos.Goals(tx).Delete(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete goal %s: %w", id, err)
	}
	return nil
}
