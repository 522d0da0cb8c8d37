// Package conflicts stores server changes that collided with unsynced local
// edits under the manual resolution strategy.
package conflicts

import (
	"context"

	"github.com/dmitrijs2005/trainlog/internal/client/models"
)

type Repository interface {
	// Save records c, replacing an older conflict for the same record.
	Save(ctx context.Context, c *models.Conflict) error

	// Get returns common.ErrorNotFound when the record has no conflict.
	Get(ctx context.Context, id string) (*models.Conflict, error)
	List(ctx context.Context) ([]*models.Conflict, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}
