package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/trainlog/internal/common"
	"github.com/dmitrijs2005/trainlog/internal/dbx"
	"github.com/dmitrijs2005/trainlog/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetForUpdate(ctx context.Context, userID, id string) (*models.Record, error) {
	query := `
		SELECT id, user_id, kind, payload, version, deleted, updated_at
		FROM records
		WHERE id = $1 AND user_id = $2
		FOR UPDATE
	`
	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}

// CreateOrUpdate upserts rec by id. An id owned by another user updates
// nothing and yields common.ErrVersionConflict.
func (r *PostgresRepository) CreateOrUpdate(ctx context.Context, rec *models.Record) error {
	query := `
		INSERT INTO records (id, user_id, kind, payload, version, deleted, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (id)
		DO UPDATE SET
			kind = EXCLUDED.kind,
			payload = EXCLUDED.payload,
			version = EXCLUDED.version,
			deleted = EXCLUDED.deleted,
			updated_at = EXCLUDED.updated_at
			WHERE records.user_id = EXCLUDED.user_id;
	`
	var payload any
	if len(rec.Payload) > 0 {
		payload = []byte(rec.Payload)
	}
	res, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.UserID, string(rec.Kind), payload, rec.Version, rec.Deleted)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrVersionConflict
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

// SelectUpdated returns the user's records with version > minVersion in
// version order, tombstones included.
func (r *PostgresRepository) SelectUpdated(ctx context.Context, userID string, minVersion int64) ([]*models.Record, error) {
	query := `
		SELECT id, user_id, kind, payload, version, deleted, updated_at FROM records
		WHERE user_id = $1 AND version > $2
		ORDER BY version
	`
	rows, err := r.db.QueryContext(ctx, query, userID, minVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to select records: %w", err)
	}
	defer rows.Close()

	var result []*models.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanRecord(row interface{ Scan(...any) error }) (*models.Record, error) {
	var (
		rec     models.Record
		kind    string
		payload []byte
	)
	if err := row.Scan(&rec.ID, &rec.UserID, &kind, &payload, &rec.Version, &rec.Deleted, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	rec.Kind = models.RecordKind(kind)
	rec.Payload = payload
	return &rec, nil
}
