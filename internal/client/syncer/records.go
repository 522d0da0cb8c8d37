package syncer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/trainlog/internal/client/models"
	"github.com/dmitrijs2005/trainlog/internal/client/repositories/goals"
	"github.com/dmitrijs2005/trainlog/internal/client/repositories/repomanager"
	"github.com/dmitrijs2005/trainlog/internal/client/repositories/workouts"
	"github.com/dmitrijs2005/trainlog/internal/dbx"
)

// localRecord is the sync-relevant view of a workout or goal row.
type localRecord struct {
	Synced        bool
	Deleted       bool
	ServerVersion int64
	Payload       json.RawMessage
}

// table hides the difference between the workouts and goals repositories.
type table interface {
	find(ctx context.Context, id string) (*localRecord, error)
	applyRemote(ctx context.Context, id string, version int64, payload json.RawMessage) error
	markSynced(ctx context.Context, id string, version int64) error
	setServerVersion(ctx context.Context, id string, version int64) error
	purge(ctx context.Context, id string) error
}

func tableFor(repos repomanager.RepositoryManager, db dbx.DBTX, kind models.RecordKind) (table, error) {
	switch kind {
	case models.KindWorkout:
		return workoutTable{repos.Workouts(db)}, nil
	case models.KindGoal:
		return goalTable{repos.Goals(db)}, nil
	default:
		return nil, fmt.Errorf("unknown record kind %q", kind)
	}
}

type workoutTable struct{ repo workouts.Repository }

func (t workoutTable) find(ctx context.Context, id string) (*localRecord, error) {
	w, err := t.repo.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	rec := &localRecord{Synced: w.Synced, Deleted: w.Deleted, ServerVersion: w.ServerVersion}
	if !w.Deleted {
		if rec.Payload, err = w.Payload(); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

func (t workoutTable) applyRemote(ctx context.Context, id string, version int64, payload json.RawMessage) error {
	w, err := models.WorkoutFromPayload(id, payload)
	if err != nil {
		return err
	}
	w.ServerVersion = version
	return t.repo.ApplyRemote(ctx, w)
}

func (t workoutTable) markSynced(ctx context.Context, id string, version int64) error {
	return t.repo.MarkSynced(ctx, id, version)
}

func (t workoutTable) setServerVersion(ctx context.Context, id string, version int64) error {
	return t.repo.SetServerVersion(ctx, id, version)
}

func (t workoutTable) purge(ctx context.Context, id string) error {
	return t.repo.Purge(ctx, id)
}

type goalTable struct{ repo goals.Repository }

func (t goalTable) find(ctx context.Context, id string) (*localRecord, error) {
	g, err := t.repo.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	rec := &localRecord{Synced: g.Synced, Deleted: g.Deleted, ServerVersion: g.ServerVersion}
	if !g.Deleted {
		if rec.Payload, err = g.Payload(); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

func (t goalTable) applyRemote(ctx context.Context, id string, version int64, payload json.RawMessage) error {
	g, err := models.GoalFromPayload(id, payload)
	if err != nil {
		return err
	}
	g.ServerVersion = version
	return t.repo.ApplyRemote(ctx, g)
}

func (t goalTable) markSynced(ctx context.Context, id string, version int64) error {
	return t.repo.MarkSynced(ctx, id, version)
}

func (t goalTable) setServerVersion(ctx context.Context, id string, version int64) error {
	return t.repo.SetServerVersion(ctx, id, version)
}

func (t goalTable) purge(ctx context.Context, id string) error {
	return t.repo.Purge(ctx, id)
}
