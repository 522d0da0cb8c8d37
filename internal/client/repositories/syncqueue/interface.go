// Package syncqueue is the list of local record ids waiting to be pushed.
// A record appears at most once no matter how often it changed.
package syncqueue

import (
	"context"
	"time"

	"github.com/dmitrijs2005/trainlog/internal/client/models"
)

type Repository interface {
	// Enqueue adds id, keeping the original queued_at when already present.
	Enqueue(ctx context.Context, id string, kind models.RecordKind, at time.Time) error
	Dequeue(ctx context.Context, id string) error
	List(ctx context.Context) ([]models.QueueItem, error)
	Count(ctx context.Context) (int, error)
}
