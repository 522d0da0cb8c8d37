// Package workouts persists workouts in the local SQLite store.
//
// Deletes are tombstones (deleted=1, synced=0) so that the removal can be
// pushed; Purge drops the row once the server has acknowledged it.
package workouts

import (
	"context"

	"github.com/dmitrijs2005/trainlog/internal/client/models"
)

type Repository interface {
	Insert(ctx context.Context, w *models.Workout) error

	// GetByID returns a live workout or common.ErrorNotFound.
	GetByID(ctx context.Context, id string) (*models.Workout, error)

	// Find is GetByID that also returns tombstones.
	Find(ctx context.Context, id string) (*models.Workout, error)

	// List returns live workouts, newest first.
	List(ctx context.Context, f models.WorkoutFilter) ([]*models.Workout, error)

	// Update stores w and clears its synced flag, even when nothing changed.
	Update(ctx context.Context, w *models.Workout) error

	// Delete turns a live workout into a tombstone.
	Delete(ctx context.Context, id string) error

	// ListUnsynced returns dirty workouts, tombstones included.
	ListUnsynced(ctx context.Context) ([]*models.Workout, error)

	MarkSynced(ctx context.Context, id string, version int64) error
	SetServerVersion(ctx context.Context, id string, version int64) error

	// ApplyRemote upserts the server copy as clean.
	ApplyRemote(ctx context.Context, w *models.Workout) error

	Purge(ctx context.Context, id string) error
}
