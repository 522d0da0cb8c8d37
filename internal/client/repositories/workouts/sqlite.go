package workouts

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

const columns = `id, date, exercise_type, duration_minutes, distance_km, notes, video_key,
	synced, deleted, server_version, created_at, updated_at`

// SQLiteRepository implements Repository over a *sql.DB or *sql.Tx.
type SQLiteRepository struct {
	db  dbx.DBTX
	now func() time.Time
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

func (r *SQLiteRepository) Insert(ctx context.Context, w *models.Workout) error {
	query := `INSERT INTO workouts (` + columns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		w.ID, dbx.FormatTime(w.Date), w.ExerciseType,
		dbx.NullInt(w.DurationMinutes), dbx.NullFloat(w.DistanceKm),
		dbx.NullString(w.Notes), dbx.NullString(w.VideoKey),
		w.Synced, w.Deleted, w.ServerVersion,
		dbx.FormatTime(w.CreatedAt), dbx.FormatTime(w.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert workout: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Workout, error) {
	return r.get(ctx, `SELECT `+columns+` FROM workouts WHERE id = ? AND deleted = 0`, id)
}

func (r *SQLiteRepository) Find(ctx context.Context, id string) (*models.Workout, error) {
	return r.get(ctx, `SELECT `+columns+` FROM workouts WHERE id = ?`, id)
}

func (r *SQLiteRepository) get(ctx context.Context, query, id string) (*models.Workout, error) {
	w, err := scanWorkout(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workout %s: %w", id, err)
	}
	return w, nil
}

func (r *SQLiteRepository) List(ctx context.Context, f models.WorkoutFilter) ([]*models.Workout, error) {
	where := []string{"deleted = 0"}
	var args []any
	if f.ExerciseType != "" {
		where = append(where, "exercise_type = ?")
		args = append(args, strings.ToLower(f.ExerciseType))
	}
	if f.From != nil {
		where = append(where, "date >= ?")
		args = append(args, dbx.FormatTime(*f.From))
	}
	if f.To != nil {
		where = append(where, "date <= ?")
		args = append(args, dbx.FormatTime(*f.To))
	}
	if f.Synced != nil {
		where = append(where, "synced = ?")
		args = append(args, *f.Synced)
	}
	query := `SELECT ` + columns + ` FROM workouts WHERE ` + strings.Join(where, " AND ") + ` ORDER BY date DESC, id`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	return r.query(ctx, query, args...)
}

func (r *SQLiteRepository) Update(ctx context.Context, w *models.Workout) error {
	w.UpdatedAt = r.now().UTC()
	w.Synced = false
	query := `
		UPDATE workouts SET date = ?, exercise_type = ?, duration_minutes = ?, distance_km = ?,
			notes = ?, video_key = ?, synced = 0, updated_at = ?
		WHERE id = ? AND deleted = 0`
	res, err := r.db.ExecContext(ctx, query,
		dbx.FormatTime(w.Date), w.ExerciseType,
		dbx.NullInt(w.DurationMinutes), dbx.NullFloat(w.DistanceKm),
		dbx.NullString(w.Notes), dbx.NullString(w.VideoKey),
		dbx.FormatTime(w.UpdatedAt), w.ID)
	if err != nil {
		return fmt.Errorf("failed to update workout: %w", err)
	}
	return expectOne(res)
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE workouts SET deleted = 1, synced = 0, updated_at = ? WHERE id = ? AND deleted = 0`,
		dbx.FormatTime(r.now()), id)
	if err != nil {
		return fmt.Errorf("failed to delete workout: %w", err)
	}
	return expectOne(res)
}

func (r *SQLiteRepository) ListUnsynced(ctx context.Context) ([]*models.Workout, error) {
	return r.query(ctx, `SELECT `+columns+` FROM workouts WHERE synced = 0 ORDER BY updated_at, id`)
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string, version int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE workouts SET synced = 1, server_version = ? WHERE id = ?`, version, id)
	if err != nil {
		return fmt.Errorf("failed to mark workout synced: %w", err)
	}
	return expectOne(res)
}

func (r *SQLiteRepository) SetServerVersion(ctx context.Context, id string, version int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE workouts SET server_version = ? WHERE id = ?`, version, id)
	if err != nil {
		return fmt.Errorf("failed to set workout server version: %w", err)
	}
	return expectOne(res)
}

func (r *SQLiteRepository) ApplyRemote(ctx context.Context, w *models.Workout) error {
	query := `INSERT INTO workouts (` + columns + `) VALUES (?, ?, ?, ?, ?, ?, ?, 1, 0, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			date = excluded.date,
			exercise_type = excluded.exercise_type,
			duration_minutes = excluded.duration_minutes,
			distance_km = excluded.distance_km,
			notes = excluded.notes,
			video_key = excluded.video_key,
			synced = 1,
			deleted = 0,
			server_version = excluded.server_version,
			updated_at = excluded.updated_at`
	createdAt := w.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.now()
	}
	updatedAt := w.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}
	_, err := r.db.ExecContext(ctx, query,
		w.ID, dbx.FormatTime(w.Date), w.ExerciseType,
		dbx.NullInt(w.DurationMinutes), dbx.NullFloat(w.DistanceKm),
		dbx.NullString(w.Notes), dbx.NullString(w.VideoKey),
		w.ServerVersion, dbx.FormatTime(createdAt), dbx.FormatTime(updatedAt))
	if err != nil {
		return fmt.Errorf("failed to apply remote workout: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Purge(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM workouts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to purge workout: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) query(ctx context.Context, query string, args ...any) ([]*models.Workout, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select workouts: %w", err)
	}
	defer rows.Close()

	result := make([]*models.Workout, 0)
	for rows.Next() {
		w, err := scanWorkout(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workout: %w", err)
		}
		result = append(result, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanWorkout(s scanner) (*models.Workout, error) {
	var (
		w                          models.Workout
		date, createdAt, updatedAt string
		duration                   sql.NullInt64
		distance                   sql.NullFloat64
		notes, videoKey            sql.NullString
	)
	err := s.Scan(&w.ID, &date, &w.ExerciseType, &duration, &distance, &notes, &videoKey,
		&w.Synced, &w.Deleted, &w.ServerVersion, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if w.Date, err = dbx.ParseTime(date); err != nil {
		return nil, err
	}
	if w.CreatedAt, err = dbx.ParseTime(createdAt); err != nil {
		return nil, err
	}
	if w.UpdatedAt, err = dbx.ParseTime(updatedAt); err != nil {
		return nil, err
	}
	w.DurationMinutes = dbx.IntPtr(duration)
	w.DistanceKm = dbx.FloatPtr(distance)
	w.Notes = dbx.StringPtr(notes)
	w.VideoKey = dbx.StringPtr(videoKey)
	return &w, nil
}

// expectOne maps "no row touched" to common.ErrorNotFound.
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
