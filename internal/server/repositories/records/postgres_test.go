package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/trainlog/internal/common"
	"github.com/dmitrijs2005/trainlog/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

const upsertRe = `INSERT INTO records .* ON CONFLICT \(id\) DO UPDATE SET .* WHERE records\.user_id = EXCLUDED\.user_id;`

var recordCols = []string{"id", "user_id", "kind", "payload", "version", "deleted", "updated_at"}

func TestCreateOrUpdate_RowsAffected(t *testing.T) {
	tests := []struct {
		name    string
		rows    int64
		wantErr error
	}{
		{name: "applied", rows: 1},
		{name: "owned by someone else", rows: 0, wantErr: common.ErrVersionConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newRepoWithMock(t)
			payload := json.RawMessage(`{"exercise_type":"running"}`)

			mock.ExpectExec(upsertRe).
				WithArgs("r1", "u1", "workout", []byte(payload), int64(3), false).
				WillReturnResult(sqlmock.NewResult(0, tt.rows))

			err := repo.CreateOrUpdate(context.Background(), &models.Record{
				ID: "r1", UserID: "u1", Kind: models.KindWorkout, Payload: payload, Version: 3,
			})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCreateOrUpdate_Tombstone(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(upsertRe).
		WithArgs("r1", "u1", "goal", nil, int64(9), true).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.CreateOrUpdate(context.Background(), &models.Record{ID: "r1", UserID: "u1", Kind: models.KindGoal, Version: 9, Deleted: true})
	assert.NoError(t, err)
}

func TestCreateOrUpdate_Errors(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectExec(upsertRe).WillReturnError(errors.New("db down"))
	assert.ErrorContains(t, repo.CreateOrUpdate(context.Background(), &models.Record{}), "db error: db down")

	repo, mock = newRepoWithMock(t)
	mock.ExpectExec(upsertRe).WillReturnResult(sqlmock.NewResult(0, 2))
	assert.ErrorContains(t, repo.CreateOrUpdate(context.Background(), &models.Record{}), "unexpected rows affected: 2")
}

func TestGetForUpdate(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now()

	mock.ExpectQuery(`(?s)FROM records WHERE id = \$1 AND user_id = \$2 FOR UPDATE`).
		WithArgs("r1", "u1").
		WillReturnRows(sqlmock.NewRows(recordCols).AddRow("r1", "u1", "goal", []byte(`{"title":"10k"}`), int64(4), false, now))

	rec, err := repo.GetForUpdate(context.Background(), "u1", "r1")
	require.NoError(t, err)
	assert.Equal(t, models.KindGoal, rec.Kind)
	assert.JSONEq(t, `{"title":"10k"}`, string(rec.Payload))
	assert.Equal(t, int64(4), rec.Version)
}

func TestGetForUpdate_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery(`FROM records`).WillReturnError(sql.ErrNoRows)

	_, err := repo.GetForUpdate(context.Background(), "u1", "r1")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestSelectUpdated(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now()

	mock.ExpectQuery(`(?s)FROM records WHERE user_id = \$1 AND version > \$2 ORDER BY version`).
		WithArgs("u1", int64(5)).
		WillReturnRows(sqlmock.NewRows(recordCols).
			AddRow("a", "u1", "workout", []byte(`{}`), int64(6), false, now).
			AddRow("b", "u1", "goal", nil, int64(7), true, now))

	list, err := repo.SelectUpdated(context.Background(), "u1", 5)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)
	assert.True(t, list[1].Deleted)
	assert.Nil(t, []byte(list[1].Payload))
}

func TestSelectUpdated_QueryError(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery(`FROM records`).WillReturnError(errors.New("boom"))

	_, err := repo.SelectUpdated(context.Background(), "u1", 0)
	assert.ErrorContains(t, err, "failed to select records")
}
