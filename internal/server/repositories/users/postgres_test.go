package users

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/trainlog/internal/common"
	"github.com/dmitrijs2005/trainlog/internal/server/auth"
	"github.com/dmitrijs2005/trainlog/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
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

var userCols = []string{"id", "email", "password_hash", "role", "current_version", "created_at", "updated_at"}

func TestCreate_Success(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now()

	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+users\s*\(id,\s*email,\s*password_hash,\s*role\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4\)\s*RETURNING\s+created_at,\s*updated_at$`).
		WithArgs("u-1", "a@x.io", "hash", "athlete").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	got, err := repo.Create(context.Background(), &models.User{ID: "u-1", Email: "a@x.io", PasswordHash: "hash", Role: auth.RoleAthlete})
	require.NoError(t, err)
	assert.Equal(t, now, got.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_DuplicateEmail(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`INSERT INTO users`).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := repo.Create(context.Background(), &models.User{ID: "u-1", Email: "a@x.io", Role: auth.RoleAthlete})
	assert.ErrorIs(t, err, common.ErrAlreadyExists)
}

func TestCreate_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`INSERT INTO users`).WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), &models.User{})
	require.Error(t, err)
	assert.Regexp(t, regexp.MustCompile(`db error: .*db down`), err.Error())
}

func TestGetByEmail(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now()

	mock.ExpectQuery(`(?s)SELECT .* FROM users WHERE lower\(email\) = lower\(\$1\)`).
		WithArgs("A@x.io").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow("u-1", "a@x.io", "h", "coach", int64(3), now, now))

	u, err := repo.GetByEmail(context.Background(), "A@x.io")
	require.NoError(t, err)
	assert.Equal(t, &models.User{ID: "u-1", Email: "a@x.io", PasswordHash: "h", Role: auth.RoleCoach, CurrentVersion: 3, CreatedAt: now, UpdatedAt: now}, u)
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`FROM users WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestList(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now()

	mock.ExpectQuery(`FROM users ORDER BY created_at`).
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow("u-1", "a@x.io", "h", "admin", int64(0), now, now).
			AddRow("u-2", "b@x.io", "h", "athlete", int64(5), now, now))

	list, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, auth.RoleAdmin, list[0].Role)
	assert.Equal(t, "u-2", list[1].ID)
}

func TestUpdates(t *testing.T) {
	t.Run("email ok", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectExec(`UPDATE users SET email = \$2`).WithArgs("u-1", "new@x.io").WillReturnResult(sqlmock.NewResult(0, 1))
		assert.NoError(t, repo.UpdateEmail(context.Background(), "u-1", "new@x.io"))
	})
	t.Run("email taken", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectExec(`UPDATE users SET email`).WillReturnError(&pgconn.PgError{Code: "23505"})
		assert.ErrorIs(t, repo.UpdateEmail(context.Background(), "u-1", "dup@x.io"), common.ErrAlreadyExists)
	})
	t.Run("password missing user", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectExec(`UPDATE users SET password_hash = \$2`).WithArgs("nobody", "h").WillReturnResult(sqlmock.NewResult(0, 0))
		assert.ErrorIs(t, repo.UpdatePassword(context.Background(), "nobody", "h"), common.ErrorNotFound)
	})
	t.Run("role", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectExec(`UPDATE users SET role = \$2`).WithArgs("u-1", "coach").WillReturnResult(sqlmock.NewResult(0, 1))
		assert.NoError(t, repo.UpdateRole(context.Background(), "u-1", auth.RoleCoach))
	})
}

func TestIncrementCurrentVersion(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)UPDATE users SET current_version = current_version \+ 1.*RETURNING current_version`).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"current_version"}).AddRow(int64(8)))

	v, err := repo.IncrementCurrentVersion(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, int64(8), v)
}
