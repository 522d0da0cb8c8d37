// Package records stores synced workouts and goals with per-user versions.
package records

import (
	"context"

	"github.com/dmitrijs2005/trainlog/internal/server/models"
)

type Repository interface {
	// GetForUpdate returns the user's record and locks the row for the
	// rest of the transaction; common.ErrorNotFound when absent.
	GetForUpdate(ctx context.Context, userID, id string) (*models.Record, error)
	CreateOrUpdate(ctx context.Context, rec *models.Record) error
	SelectUpdated(ctx context.Context, userID string, minVersion int64) ([]*models.Record, error)
}
