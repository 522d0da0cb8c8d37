package services

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/trainlog/internal/common"
	"github.com/dmitrijs2005/trainlog/internal/dbx"
	"github.com/dmitrijs2005/trainlog/internal/server/auth"
	"github.com/dmitrijs2005/trainlog/internal/server/models"
	"github.com/dmitrijs2005/trainlog/internal/server/repositories/blacklist"
	"github.com/dmitrijs2005/trainlog/internal/server/repositories/records"
	"github.com/dmitrijs2005/trainlog/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/trainlog/internal/server/repositories/resettokens"
	"github.com/dmitrijs2005/trainlog/internal/server/repositories/users"
)

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

// --- users ---

type fakeUsers struct {
	byID      map[string]*models.User
	createErr error
	getErr    error
	updateErr error
	incErr    error
}

func newFakeUsers(us ...*models.User) *fakeUsers {
	f := &fakeUsers{byID: map[string]*models.User{}}
	for _, u := range us {
		f.byID[u.ID] = u
	}
	return f
}

func (f *fakeUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	for _, e := range f.byID {
		if e.Email == u.Email {
			return nil, common.ErrAlreadyExists
		}
	}
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	f.byID[u.ID] = u
	return u, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.byID {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u, nil
}

func (f *fakeUsers) List(context.Context) ([]*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	out := make([]*models.User, 0, len(f.byID))
	for _, u := range f.byID {
		out = append(out, u)
	}
	return out, nil
}

func (f *fakeUsers) UpdateEmail(_ context.Context, id, email string) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	for _, u := range f.byID {
		if u.Email == email && u.ID != id {
			return common.ErrAlreadyExists
		}
	}
	u, ok := f.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.Email = email
	return nil
}

func (f *fakeUsers) UpdatePassword(_ context.Context, id, hash string) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	u, ok := f.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (f *fakeUsers) UpdateRole(_ context.Context, id string, role auth.Role) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	u, ok := f.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.Role = role
	return nil
}

func (f *fakeUsers) IncrementCurrentVersion(_ context.Context, id string) (int64, error) {
	if f.incErr != nil {
		return 0, f.incErr
	}
	u, ok := f.byID[id]
	if !ok {
		return 0, common.ErrorNotFound
	}
	u.CurrentVersion++
	return u.CurrentVersion, nil
}

// --- refresh tokens ---

type fakeRefresh struct {
	byHash    map[string]*models.RefreshToken
	createErr error
	findErr   error
	revokeErr error
}

func newFakeRefresh() *fakeRefresh {
	return &fakeRefresh{byHash: map[string]*models.RefreshToken{}}
}

func (f *fakeRefresh) Create(_ context.Context, t *models.RefreshToken) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.byHash[t.TokenHash] = t
	return nil
}

func (f *fakeRefresh) FindByHash(_ context.Context, h string) (*models.RefreshToken, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	t, ok := f.byHash[h]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return t, nil
}

func (f *fakeRefresh) Revoke(_ context.Context, h string) error {
	if t, ok := f.byHash[h]; ok {
		t.Revoked = true
	}
	return nil
}

func (f *fakeRefresh) RevokeAllForUser(_ context.Context, userID string) (int64, error) {
	if f.revokeErr != nil {
		return 0, f.revokeErr
	}
	var n int64
	for _, t := range f.byHash {
		if t.UserID == userID && !t.Revoked {
			t.Revoked = true
			n++
		}
	}
	return n, nil
}

func (f *fakeRefresh) DeleteExpired(context.Context) (int64, error) {
	var n int64
	for h, t := range f.byHash {
		if t.ExpiresAt.Before(time.Now()) {
			delete(f.byHash, h)
			n++
		}
	}
	return n, nil
}

// --- blacklist ---

type fakeBlacklist struct {
	jtis   map[string]time.Time
	addErr error
	hasErr error
}

func newFakeBlacklist() *fakeBlacklist { return &fakeBlacklist{jtis: map[string]time.Time{}} }

func (f *fakeBlacklist) Add(_ context.Context, jti string, exp time.Time) error {
	if f.addErr != nil {
		return f.addErr
	}
	f.jtis[jti] = exp
	return nil
}

func (f *fakeBlacklist) Contains(_ context.Context, jti string) (bool, error) {
	if f.hasErr != nil {
		return false, f.hasErr
	}
	_, ok := f.jtis[jti]
	return ok, nil
}

func (f *fakeBlacklist) DeleteExpired(context.Context) (int64, error) { return 0, nil }

// --- reset tokens ---

type fakeResets struct {
	byHash    map[string]*models.PasswordResetToken
	createErr error
}

func newFakeResets() *fakeResets {
	return &fakeResets{byHash: map[string]*models.PasswordResetToken{}}
}

func (f *fakeResets) Create(_ context.Context, t *models.PasswordResetToken) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.byHash[t.TokenHash] = t
	return nil
}

func (f *fakeResets) GetByHash(_ context.Context, h string) (*models.PasswordResetToken, error) {
	t, ok := f.byHash[h]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return t, nil
}

func (f *fakeResets) DeleteByID(_ context.Context, id string) error {
	for h, t := range f.byHash {
		if t.ID == id {
			delete(f.byHash, h)
		}
	}
	return nil
}

func (f *fakeResets) DeleteByUserID(_ context.Context, userID string) error {
	for h, t := range f.byHash {
		if t.UserID == userID {
			delete(f.byHash, h)
		}
	}
	return nil
}

// --- records ---

type fakeRecords struct {
	byID      map[string]*models.Record
	getErr    error
	upsertErr error
	selectErr error
}

func newFakeRecords(rs ...*models.Record) *fakeRecords {
	f := &fakeRecords{byID: map[string]*models.Record{}}
	for _, r := range rs {
		f.byID[r.ID] = r
	}
	return f
}

func (f *fakeRecords) GetForUpdate(_ context.Context, userID, id string) (*models.Record, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	r, ok := f.byID[id]
	if !ok || r.UserID != userID {
		return nil, common.ErrorNotFound
	}
	return r, nil
}

func (f *fakeRecords) CreateOrUpdate(_ context.Context, rec *models.Record) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	if r, ok := f.byID[rec.ID]; ok && r.UserID != rec.UserID {
		return common.ErrVersionConflict
	}
	cp := *rec
	f.byID[rec.ID] = &cp
	return nil
}

func (f *fakeRecords) SelectUpdated(_ context.Context, userID string, min int64) ([]*models.Record, error) {
	if f.selectErr != nil {
		return nil, f.selectErr
	}
	var out []*models.Record
	for _, r := range f.byID {
		if r.UserID == userID && r.Version > min {
			out = append(out, r)
		}
	}
	return out, nil
}

// --- manager ---

type fakeRepoManager struct {
	u  *fakeUsers
	r  *fakeRefresh
	b  *fakeBlacklist
	rt *fakeResets
	rc *fakeRecords
}

func newFakeRepoManager(us ...*models.User) *fakeRepoManager {
	return &fakeRepoManager{
		u:  newFakeUsers(us...),
		r:  newFakeRefresh(),
		b:  newFakeBlacklist(),
		rt: newFakeResets(),
		rc: newFakeRecords(),
	}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error    { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository                 { return m.u }
func (m *fakeRepoManager) RefreshTokens(dbx.DBTX) refreshtokens.Repository { return m.r }
func (m *fakeRepoManager) Blacklist(dbx.DBTX) blacklist.Repository         { return m.b }
func (m *fakeRepoManager) ResetTokens(dbx.DBTX) resettokens.Repository     { return m.rt }
func (m *fakeRepoManager) Records(dbx.DBTX) records.Repository             { return m.rc }

// --- mail ---

type fakeMailer struct {
	resetTo    string
	resetToken string
	changedTo  string
	err        error
}

func (f *fakeMailer) SendPasswordReset(_ context.Context, to, token string, _ time.Duration) error {
	f.resetTo, f.resetToken = to, token
	return f.err
}

func (f *fakeMailer) SendPasswordChanged(_ context.Context, to string) error {
	f.changedTo = to
	return f.err
}
