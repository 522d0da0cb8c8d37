package goals

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/trainlog/internal/client/models"
	"github.com/dmitrijs2005/trainlog/internal/common"
	"github.com/dmitrijs2005/trainlog/internal/dbx"
)

const columns = `id, title, goal_type, target_date, target_value, current_value, completed,
	completed_at, notes, synced, deleted, server_version, created_at, updated_at`

type SQLiteRepository struct {
	db  dbx.DBTX
	now func() time.Time
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

func (r *SQLiteRepository) Insert(ctx context.Context, g *models.Goal) error {
	query := `INSERT INTO goals (` + columns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		g.ID, g.Title, string(g.GoalType), dbx.FormatTime(g.TargetDate),
		dbx.NullFloat(g.TargetValue), g.CurrentValue, g.Completed,
		dbx.NullTime(g.CompletedAt), dbx.NullString(g.Notes),
		g.Synced, g.Deleted, g.ServerVersion,
		dbx.FormatTime(g.CreatedAt), dbx.FormatTime(g.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert goal: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Goal, error) {
	return r.get(ctx, `SELECT `+columns+` FROM goals WHERE id = ? AND deleted = 0`, id)
}

func (r *SQLiteRepository) Find(ctx context.Context, id string) (*models.Goal, error) {
	return r.get(ctx, `SELECT `+columns+` FROM goals WHERE id = ?`, id)
}

func (r *SQLiteRepository) get(ctx context.Context, query, id string) (*models.Goal, error) {
	g, err := scanGoal(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get goal %s: %w", id, err)
	}
	return g, nil
}

func (r *SQLiteRepository) List(ctx context.Context, f models.GoalFilter) ([]*models.Goal, error) {
	where := []string{"deleted = 0"}
	var args []any
	if f.Completed != nil {
		where = append(where, "completed = ?")
		args = append(args, *f.Completed)
	}
	if f.GoalType != "" {
		where = append(where, "goal_type = ?")
		args = append(args, string(f.GoalType))
	}
	query := `SELECT ` + columns + ` FROM goals WHERE ` + strings.Join(where, " AND ") + ` ORDER BY target_date, id`
	return r.query(ctx, query, args...)
}

func (r *SQLiteRepository) Update(ctx context.Context, g *models.Goal) error {
	g.UpdatedAt = r.now().UTC()
	g.Synced = false
	query := `
		UPDATE goals SET title = ?, goal_type = ?, target_date = ?, target_value = ?,
			current_value = ?, completed = ?, completed_at = ?, notes = ?, synced = 0, updated_at = ?
		WHERE id = ? AND deleted = 0`
	res, err := r.db.ExecContext(ctx, query,
		g.Title, string(g.GoalType), dbx.FormatTime(g.TargetDate), dbx.NullFloat(g.TargetValue),
		g.CurrentValue, g.Completed, dbx.NullTime(g.CompletedAt), dbx.NullString(g.Notes),
		dbx.FormatTime(g.UpdatedAt), g.ID)
	if err != nil {
		return fmt.Errorf("failed to update goal: %w", err)
	}
	return expectOne(res)
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE goals SET deleted = 1, synced = 0, updated_at = ? WHERE id = ? AND deleted = 0`,
		dbx.FormatTime(r.now()), id)
	if err != nil {
		return fmt.Errorf("failed to delete goal: %w", err)
	}
	return expectOne(res)
}

func (r *SQLiteRepository) ListUnsynced(ctx context.Context) ([]*models.Goal, error) {
	return r.query(ctx, `SELECT `+columns+` FROM goals WHERE synced = 0 ORDER BY updated_at, id`)
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string, version int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE goals SET synced = 1, server_version = ? WHERE id = ?`, version, id)
	if err != nil {
		return fmt.Errorf("failed to mark goal synced: %w", err)
	}
	return expectOne(res)
}

func (r *SQLiteRepository) SetServerVersion(ctx context.Context, id string, version int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE goals SET server_version = ? WHERE id = ?`, version, id)
	if err != nil {
		return fmt.Errorf("failed to set goal server version: %w", err)
	}
	return expectOne(res)
}

func (r *SQLiteRepository) ApplyRemote(ctx context.Context, g *models.Goal) error {
	query := `INSERT INTO goals (` + columns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, 0, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			goal_type = excluded.goal_type,
			target_date = excluded.target_date,
			target_value = excluded.target_value,
			current_value = excluded.current_value,
			completed = excluded.completed,
			completed_at = excluded.completed_at,
			notes = excluded.notes,
			synced = 1,
			deleted = 0,
			server_version = excluded.server_version,
			updated_at = excluded.updated_at`
	createdAt := g.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.now()
	}
	updatedAt := g.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}
	_, err := r.db.ExecContext(ctx, query,
		g.ID, g.Title, string(g.GoalType), dbx.FormatTime(g.TargetDate),
		dbx.NullFloat(g.TargetValue), g.CurrentValue, g.Completed,
		dbx.NullTime(g.CompletedAt), dbx.NullString(g.Notes),
		g.ServerVersion, dbx.FormatTime(createdAt), dbx.FormatTime(updatedAt))
	if err != nil {
		return fmt.Errorf("failed to apply remote goal: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Purge(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM goals WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to purge goal: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) query(ctx context.Context, query string, args ...any) ([]*models.Goal, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select goals: %w", err)
	}
	defer rows.Close()

	result := make([]*models.Goal, 0)
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan goal: %w", err)
		}
		result = append(result, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanGoal(s scanner) (*models.Goal, error) {
	var (
		g                                models.Goal
		goalType                         string
		targetDate, createdAt, updatedAt string
		target                           sql.NullFloat64
		completedAt, notes               sql.NullString
	)
	err := s.Scan(&g.ID, &g.Title, &goalType, &targetDate, &target, &g.CurrentValue, &g.Completed,
		&completedAt, &notes, &g.Synced, &g.Deleted, &g.ServerVersion, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	g.GoalType = models.GoalType(goalType)
	if g.TargetDate, err = dbx.ParseTime(targetDate); err != nil {
		return nil, err
	}
	if g.CreatedAt, err = dbx.ParseTime(createdAt); err != nil {
		return nil, err
	}
	if g.UpdatedAt, err = dbx.ParseTime(updatedAt); err != nil {
		return nil, err
	}
	if g.CompletedAt, err = dbx.TimePtr(completedAt); err != nil {
		return nil, err
	}
	g.TargetValue = dbx.FloatPtr(target)
	g.Notes = dbx.StringPtr(notes)
	return &g, nil
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
