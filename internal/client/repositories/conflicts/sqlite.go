package conflicts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/trainlog/internal/client/models"
	"github.com/dmitrijs2005/trainlog/internal/common"
	"github.com/dmitrijs2005/trainlog/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Save(ctx context.Context, c *models.Conflict) error {
	var payload any
	if len(c.ServerPayload) > 0 {
		payload = []byte(c.ServerPayload)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_conflicts (record_id, kind, server_payload, server_deleted, server_version, detected_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(record_id) DO UPDATE SET
			kind = excluded.kind,
			server_payload = excluded.server_payload,
			server_deleted = excluded.server_deleted,
			server_version = excluded.server_version,
			detected_at = excluded.detected_at
	`, c.RecordID, string(c.Kind), payload, c.ServerDeleted, c.ServerVersion, dbx.FormatTime(c.DetectedAt))
	if err != nil {
		return fmt.Errorf("failed to save conflict %s: %w", c.RecordID, err)
	}
	return nil
}

const selectConflict = `SELECT record_id, kind, server_payload, server_deleted, server_version, detected_at FROM sync_conflicts`

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*models.Conflict, error) {
	c, err := scanConflict(r.db.QueryRowContext(ctx, selectConflict+` WHERE record_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conflict %s: %w", id, err)
	}
	return c, nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]*models.Conflict, error) {
	rows, err := r.db.QueryContext(ctx, selectConflict+` ORDER BY detected_at, record_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list conflicts: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Conflict, 0)
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conflict: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sync_conflicts WHERE record_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete conflict %s: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_conflicts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count conflicts: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanConflict(s scanner) (*models.Conflict, error) {
	var (
		c        models.Conflict
		kind, at string
		payload  []byte
	)
	if err := s.Scan(&c.RecordID, &kind, &payload, &c.ServerDeleted, &c.ServerVersion, &at); err != nil {
		return nil, err
	}
	detected, err := dbx.ParseTime(at)
	if err != nil {
		return nil, err
	}
	c.Kind = models.RecordKind(kind)
	c.DetectedAt = detected
	if len(payload) > 0 {
		c.ServerPayload = payload
	}
	return &c, nil
}
