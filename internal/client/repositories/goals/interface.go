// Package goals persists training goals in the local SQLite store. It
// follows the same tombstone and dirty-flag rules as the workouts table.
package goals

import (
	"context"

	"github.com/dmitrijs2005/trainlog/internal/client/models"
)

type Repository interface {
	Insert(ctx context.Context, g *models.Goal) error
	GetByID(ctx context.Context, id string) (*models.Goal, error)
	Find(ctx context.Context, id string) (*models.Goal, error)

	// List returns live goals ordered by target date.
	List(ctx context.Context, f models.GoalFilter) ([]*models.Goal, error)

	Update(ctx context.Context, g *models.Goal) error
	Delete(ctx context.Context, id string) error
	ListUnsynced(ctx context.Context) ([]*models.Goal, error)
	MarkSynced(ctx context.Context, id string, version int64) error
	SetServerVersion(ctx context.Context, id string, version int64) error
	ApplyRemote(ctx context.Context, g *models.Goal) error
	Purge(ctx context.Context, id string) error
}
