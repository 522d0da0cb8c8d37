package syncqueue

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/trainlog/internal/client/models"
	"github.com/dmitrijs2005/trainlog/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Enqueue(ctx context.Context, id string, kind models.RecordKind, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_queue (record_id, kind, queued_at) VALUES (?, ?, ?)
		ON CONFLICT(record_id) DO NOTHING
	`, id, string(kind), dbx.FormatTime(at))
	if err != nil {
		return fmt.Errorf("failed to enqueue %s %s: %w", kind, id, err)
	}
	return nil
}

func (r *SQLiteRepository) Dequeue(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE record_id = ?`, id); err != nil {
		return fmt.Errorf("failed to dequeue %s: %w", id, err)
	}
	return nil
}

// List returns the queue oldest first.
func (r *SQLiteRepository) List(ctx context.Context) ([]models.QueueItem, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT record_id, kind, queued_at FROM sync_queue ORDER BY queued_at, record_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync queue: %w", err)
	}
	defer rows.Close()

	items := make([]models.QueueItem, 0)
	for rows.Next() {
		var (
			it       models.QueueItem
			kind, at string
		)
		if err := rows.Scan(&it.RecordID, &kind, &at); err != nil {
			return nil, fmt.Errorf("failed to scan sync queue row: %w", err)
		}
		it.Kind = models.RecordKind(kind)
		if it.QueuedAt, err = dbx.ParseTime(at); err != nil {
			return nil, fmt.Errorf("failed to parse queued_at: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_queue`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count sync queue: %w", err)
	}
	return n, nil
}
