package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/dmitrijs2005/trainlog/internal/client/client"
	"github.com/dmitrijs2005/trainlog/internal/client/models"
	"github.com/stretchr/testify/require"
)

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

// fakeAPI implements client.API; unset funcs fail the call.
type fakeAPI struct {
	RegisterFn       func(ctx context.Context, email, password string) (*models.AuthResponse, error)
	LoginFn          func(ctx context.Context, email, password string) (*models.AuthResponse, error)
	LogoutFn         func(ctx context.Context) error
	WhoAmIFn         func(ctx context.Context) (*models.UserInfo, error)
	ChangePasswordFn func(ctx context.Context, current, next string) error
	UploadFn         func(ctx context.Context, contentType string) (*models.VideoUpload, error)
	HealthFn         func(ctx context.Context) error
}

var _ client.API = (*fakeAPI)(nil)

func (f *fakeAPI) Register(ctx context.Context, email, password string) (*models.AuthResponse, error) {
	if f.RegisterFn == nil {
		return nil, errBoom{}
	}
	return f.RegisterFn(ctx, email, password)
}

func (f *fakeAPI) Login(ctx context.Context, email, password string) (*models.AuthResponse, error) {
	if f.LoginFn == nil {
		return nil, errBoom{}
	}
	return f.LoginFn(ctx, email, password)
}

func (f *fakeAPI) Refresh(ctx context.Context) error { return errBoom{} }

func (f *fakeAPI) Logout(ctx context.Context) error {
	if f.LogoutFn == nil {
		return errBoom{}
	}
	return f.LogoutFn(ctx)
}

func (f *fakeAPI) WhoAmI(ctx context.Context) (*models.UserInfo, error) {
	if f.WhoAmIFn == nil {
		return nil, errBoom{}
	}
	return f.WhoAmIFn(ctx)
}

func (f *fakeAPI) ChangePassword(ctx context.Context, current, next string) error {
	if f.ChangePasswordFn == nil {
		return errBoom{}
	}
	return f.ChangePasswordFn(ctx, current, next)
}

func (f *fakeAPI) Push(ctx context.Context, items []models.PushItem) ([]models.PushResult, error) {
	return nil, errBoom{}
}

func (f *fakeAPI) Changes(ctx context.Context, since int64) (*models.ChangeSet, error) {
	return nil, errBoom{}
}

func (f *fakeAPI) RequestVideoUpload(ctx context.Context, contentType string) (*models.VideoUpload, error) {
	if f.UploadFn == nil {
		return nil, errBoom{}
	}
	return f.UploadFn(ctx, contentType)
}

func (f *fakeAPI) Health(ctx context.Context) error {
	if f.HealthFn == nil {
		return errBoom{}
	}
	return f.HealthFn(ctx)
}

var now0 = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func newStore(t *testing.T) *Store {
	t.Helper()
	db, err := client.InitDatabase(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s := NewStore(db)
	s.Now = func() time.Time { return now0 }
	return s
}

func queued(t *testing.T, s *Store) []models.QueueItem {
	t.Helper()
	items, err := s.Repos.Queue(s.DB).List(context.Background())
	require.NoError(t, err)
	return items
}

func ptr[T any](v T) *T { return &v }

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM `+table).Scan(&n))
	return n
}
