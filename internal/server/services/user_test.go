package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/trainlog/internal/common"
	"github.com/dmitrijs2005/trainlog/internal/logging"
	"github.com/dmitrijs2005/trainlog/internal/server/auth"
	"github.com/dmitrijs2005/trainlog/internal/server/config"
	"github.com/dmitrijs2005/trainlog/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const goodPassword = "Str0ng!pass"

func newUserService(t *testing.T, rm *fakeRepoManager, mailer *fakeMailer) (*UserService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newSQLMockDB(t)
	cfg := &config.Config{}
	cfg.LoadDefaults()
	tokens := auth.NewTokenService("k", time.Hour, 2*time.Hour)
	if mailer == nil {
		mailer = &fakeMailer{}
	}
	return NewUserService(db, rm, tokens, mailer, logging.Discard(), cfg), mock
}

func testUser(t *testing.T, id, email string, role auth.Role) *models.User {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(goodPassword), bcrypt.MinCost)
	require.NoError(t, err)
	return &models.User{ID: id, Email: email, PasswordHash: string(h), Role: role}
}

func TestRegister_Success(t *testing.T) {
	rm := newFakeRepoManager()
	s, mock := newUserService(t, rm, nil)
	mock.ExpectBegin()
	mock.ExpectCommit()

	res, err := s.Register(context.Background(), "  Alice@Example.COM ", goodPassword, "")
	require.NoError(t, err)

	assert.Equal(t, "alice@example.com", res.User.Email)
	assert.Equal(t, auth.RoleAthlete, res.User.Role)
	assert.NotEqual(t, goodPassword, res.User.PasswordHash)
	require.NotEmpty(t, res.Tokens.AccessToken)
	require.NotEmpty(t, res.Tokens.RefreshToken)

	stored, ok := rm.r.byHash[common.HashToken(res.Tokens.RefreshToken)]
	require.True(t, ok, "refresh token must be stored hashed")
	assert.Equal(t, res.User.ID, stored.UserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegister_Duplicate(t *testing.T) {
	rm := newFakeRepoManager(testUser(t, "u1", "alice@example.com", auth.RoleAthlete))
	s, mock := newUserService(t, rm, nil)
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := s.Register(context.Background(), "alice@example.com", goodPassword, "")
	require.ErrorIs(t, err, common.ErrAlreadyExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegister_Rejected(t *testing.T) {
	s, mock := newUserService(t, newFakeRepoManager(), nil)

	_, err := s.Register(context.Background(), "not-an-email", goodPassword, "")
	require.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = s.Register(context.Background(), "bob@example.com", "short", "")
	kind, ok := auth.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, auth.KindTooShort, kind)

	_, err = s.Register(context.Background(), "bob@example.com", goodPassword, "wizard")
	require.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = s.Register(context.Background(), "bob@example.com", goodPassword, "admin")
	require.ErrorIs(t, err, common.ErrInvalidInput, "admin cannot be self-assigned")

	assert.NoError(t, mock.ExpectationsWereMet(), "no transaction for rejected input")
}

func TestRegister_RequestedRole(t *testing.T) {
	tests := []struct {
		name string
		role string
		want auth.Role
	}{
		{"omitted", "", auth.RoleAthlete},
		{"coach", "coach", auth.RoleCoach},
		{"case insensitive", " Athlete ", auth.RoleAthlete},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newUserService(t, newFakeRepoManager(), nil)
			mock.ExpectBegin()
			mock.ExpectCommit()

			res, err := s.Register(context.Background(), "carol@example.com", goodPassword, tt.role)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.User.Role)

			claims, err := s.tokens.ValidateAccessToken(res.Tokens.AccessToken)
			require.NoError(t, err)
			assert.Equal(t, tt.want, claims.Role)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestLogin(t *testing.T) {
	u := testUser(t, "u1", "alice@example.com", auth.RoleCoach)

	t.Run("success", func(t *testing.T) {
		rm := newFakeRepoManager(u)
		s, _ := newUserService(t, rm, nil)

		res, err := s.Login(context.Background(), "ALICE@example.com", goodPassword)
		require.NoError(t, err)
		assert.Equal(t, "u1", res.User.ID)

		claims, err := s.tokens.ValidateAccessToken(res.Tokens.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, auth.RoleCoach, claims.Role)
		assert.Len(t, rm.r.byHash, 1)
	})

	t.Run("wrong password and unknown email look the same", func(t *testing.T) {
		s, _ := newUserService(t, newFakeRepoManager(u), nil)

		_, err1 := s.Login(context.Background(), "alice@example.com", "Wr0ng!pass")
		_, err2 := s.Login(context.Background(), "nobody@example.com", goodPassword)
		require.ErrorIs(t, err1, common.ErrInvalidCredentials)
		require.ErrorIs(t, err2, common.ErrInvalidCredentials)
		assert.Equal(t, err1.Error(), err2.Error())
	})

	t.Run("unknown email still pays for a hash comparison", func(t *testing.T) {
		s, _ := newUserService(t, newFakeRepoManager(u), nil)
		var hashes []string
		s.verifyPassword = func(password, hash string) (bool, error) {
			hashes = append(hashes, hash)
			return auth.VerifyPassword(password, hash)
		}

		_, err := s.Login(context.Background(), "nobody@example.com", goodPassword)
		require.ErrorIs(t, err, common.ErrInvalidCredentials)
		require.Len(t, hashes, 1)
		assert.Equal(t, auth.DummyHash(), hashes[0])

		_, err = s.Login(context.Background(), "alice@example.com", "Wr0ng!pass")
		require.ErrorIs(t, err, common.ErrInvalidCredentials)
		require.Len(t, hashes, 2)
		assert.Equal(t, u.PasswordHash, hashes[1])
	})

	t.Run("repository error", func(t *testing.T) {
		rm := newFakeRepoManager(u)
		rm.u.getErr = errBoom{}
		s, _ := newUserService(t, rm, nil)

		_, err := s.Login(context.Background(), "alice@example.com", goodPassword)
		require.ErrorIs(t, err, errBoom{})
	})

	t.Run("refresh store failure", func(t *testing.T) {
		rm := newFakeRepoManager(u)
		rm.r.createErr = errBoom{}
		s, _ := newUserService(t, rm, nil)

		_, err := s.Login(context.Background(), "alice@example.com", goodPassword)
		require.ErrorIs(t, err, errBoom{})
	})
}

func TestRefresh(t *testing.T) {
	login := func(t *testing.T) (*UserService, *fakeRepoManager, *AuthResult) {
		rm := newFakeRepoManager(testUser(t, "u1", "alice@example.com", auth.RoleAthlete))
		s, _ := newUserService(t, rm, nil)
		res, err := s.Login(context.Background(), "alice@example.com", goodPassword)
		require.NoError(t, err)
		return s, rm, res
	}

	t.Run("success uses current role", func(t *testing.T) {
		s, rm, res := login(t)
		rm.u.byID["u1"].Role = auth.RoleAdmin

		out, err := s.Refresh(context.Background(), res.Tokens.RefreshToken)
		require.NoError(t, err)

		claims, err := s.tokens.ValidateAccessToken(out.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, auth.RoleAdmin, claims.Role)
		assert.WithinDuration(t, time.Now().Add(time.Hour), out.ExpiresAt, 5*time.Second)
	})

	t.Run("access token is rejected", func(t *testing.T) {
		s, _, res := login(t)
		_, err := s.Refresh(context.Background(), res.Tokens.AccessToken)
		require.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("revoked", func(t *testing.T) {
		s, rm, res := login(t)
		_, _ = rm.r.RevokeAllForUser(context.Background(), "u1")
		_, err := s.Refresh(context.Background(), res.Tokens.RefreshToken)
		require.ErrorIs(t, err, common.ErrTokenRevoked)
	})

	t.Run("stored token expired", func(t *testing.T) {
		s, rm, res := login(t)
		rm.r.byHash[common.HashToken(res.Tokens.RefreshToken)].ExpiresAt = time.Now().Add(-time.Second)
		_, err := s.Refresh(context.Background(), res.Tokens.RefreshToken)
		require.ErrorIs(t, err, common.ErrRefreshTokenExpired)
	})

	t.Run("unknown to the store", func(t *testing.T) {
		s, rm, res := login(t)
		rm.r.byHash = map[string]*models.RefreshToken{}
		_, err := s.Refresh(context.Background(), res.Tokens.RefreshToken)
		require.ErrorIs(t, err, common.ErrInvalidToken)
	})

	t.Run("lookup error", func(t *testing.T) {
		s, rm, res := login(t)
		rm.r.findErr = errBoom{}
		_, err := s.Refresh(context.Background(), res.Tokens.RefreshToken)
		require.ErrorIs(t, err, errBoom{})
	})
}

func TestLogoutAndValidateSession(t *testing.T) {
	rm := newFakeRepoManager(testUser(t, "u1", "alice@example.com", auth.RoleAthlete))
	s, mock := newUserService(t, rm, nil)

	res, err := s.Login(context.Background(), "alice@example.com", goodPassword)
	require.NoError(t, err)

	session, err := s.ValidateSession(context.Background(), res.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", session.UserID)

	_, err = s.ValidateSession(context.Background(), res.Tokens.RefreshToken)
	require.ErrorIs(t, err, auth.ErrInvalidToken, "refresh token is not a session")

	mock.ExpectBegin()
	mock.ExpectCommit()
	require.NoError(t, s.Logout(context.Background(), session))
	assert.NoError(t, mock.ExpectationsWereMet())

	_, err = s.ValidateSession(context.Background(), res.Tokens.AccessToken)
	require.ErrorIs(t, err, auth.ErrInvalidToken)
	require.ErrorIs(t, err, common.ErrTokenRevoked)

	_, err = s.Refresh(context.Background(), res.Tokens.RefreshToken)
	require.ErrorIs(t, err, common.ErrTokenRevoked)
}

func TestLogout_BlacklistError(t *testing.T) {
	rm := newFakeRepoManager()
	rm.b.addErr = errBoom{}
	s, mock := newUserService(t, rm, nil)
	mock.ExpectBegin()
	mock.ExpectRollback()

	err := s.Logout(context.Background(), &auth.Session{UserID: "u1", JTI: "j"})
	require.ErrorIs(t, err, errBoom{})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestValidateSession_BlacklistError(t *testing.T) {
	rm := newFakeRepoManager()
	rm.b.hasErr = errBoom{}
	s, _ := newUserService(t, rm, nil)

	tok, err := s.tokens.CreateAccessToken("u1", "a@b.c", auth.RoleAthlete)
	require.NoError(t, err)
	_, err = s.ValidateSession(context.Background(), tok)
	require.ErrorIs(t, err, errBoom{})
}

func TestProfile(t *testing.T) {
	rm := newFakeRepoManager(
		testUser(t, "u1", "alice@example.com", auth.RoleAthlete),
		testUser(t, "u2", "bob@example.com", auth.RoleAthlete),
	)
	s, _ := newUserService(t, rm, nil)

	u, err := s.GetProfile(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", u.Email)

	_, err = s.GetProfile(context.Background(), "nope")
	require.ErrorIs(t, err, common.ErrorNotFound)

	u, err = s.UpdateProfile(context.Background(), "u1", "Alice.New@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "alice.new@example.com", u.Email)

	_, err = s.UpdateProfile(context.Background(), "u1", "bob@example.com")
	require.ErrorIs(t, err, common.ErrAlreadyExists)

	_, err = s.UpdateProfile(context.Background(), "u1", "bad")
	require.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestChangePassword(t *testing.T) {
	t.Run("wrong current password", func(t *testing.T) {
		rm := newFakeRepoManager(testUser(t, "u1", "alice@example.com", auth.RoleAthlete))
		s, _ := newUserService(t, rm, nil)
		err := s.ChangePassword(context.Background(), "u1", "Wr0ng!pass", "N3w!password")
		require.ErrorIs(t, err, common.ErrInvalidCredentials)
	})

	t.Run("weak new password", func(t *testing.T) {
		rm := newFakeRepoManager(testUser(t, "u1", "alice@example.com", auth.RoleAthlete))
		s, _ := newUserService(t, rm, nil)
		err := s.ChangePassword(context.Background(), "u1", goodPassword, "alllowercase1!")
		kind, ok := auth.KindOf(err)
		require.True(t, ok)
		assert.Equal(t, auth.KindNoUppercase, kind)
	})

	t.Run("success revokes sessions and notifies", func(t *testing.T) {
		rm := newFakeRepoManager(testUser(t, "u1", "alice@example.com", auth.RoleAthlete))
		mailer := &fakeMailer{err: errBoom{}}
		s, mock := newUserService(t, rm, mailer)

		res, err := s.Login(context.Background(), "alice@example.com", goodPassword)
		require.NoError(t, err)

		mock.ExpectBegin()
		mock.ExpectCommit()
		require.NoError(t, s.ChangePassword(context.Background(), "u1", goodPassword, "N3w!password"),
			"mail failure must not fail the change")
		assert.NoError(t, mock.ExpectationsWereMet())

		assert.Equal(t, "alice@example.com", mailer.changedTo)
		assert.True(t, rm.r.byHash[common.HashToken(res.Tokens.RefreshToken)].Revoked)

		ok, err := auth.VerifyPassword("N3w!password", rm.u.byID["u1"].PasswordHash)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestUsersAdmin(t *testing.T) {
	rm := newFakeRepoManager(
		testUser(t, "admin", "root@example.com", auth.RoleAdmin),
		testUser(t, "u1", "alice@example.com", auth.RoleAthlete),
	)
	s, _ := newUserService(t, rm, nil)
	actor := &auth.Session{UserID: "admin", Role: auth.RoleAdmin}

	list, err := s.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 2)

	u, err := s.UpdateRole(context.Background(), actor, "u1", "Coach")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleCoach, u.Role)

	_, err = s.UpdateRole(context.Background(), actor, "u1", "superuser")
	require.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = s.UpdateRole(context.Background(), actor, "admin", "athlete")
	require.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = s.UpdateRole(context.Background(), actor, "ghost", "coach")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestForgotAndResetPassword(t *testing.T) {
	rm := newFakeRepoManager(testUser(t, "u1", "alice@example.com", auth.RoleAthlete))
	mailer := &fakeMailer{}
	s, mock := newUserService(t, rm, mailer)

	require.NoError(t, s.ForgotPassword(context.Background(), "nobody@example.com"))
	assert.Empty(t, mailer.resetTo, "unknown email sends nothing")

	mock.ExpectBegin()
	mock.ExpectCommit()
	require.NoError(t, s.ForgotPassword(context.Background(), "Alice@example.com"))
	assert.Equal(t, "alice@example.com", mailer.resetTo)
	require.Len(t, mailer.resetToken, common.ResetTokenLength)
	_, ok := rm.rt.byHash[common.HashToken(mailer.resetToken)]
	assert.True(t, ok, "reset token stored hashed")

	login, err := s.Login(context.Background(), "alice@example.com", goodPassword)
	require.NoError(t, err)

	err = s.ResetPassword(context.Background(), mailer.resetToken, "weak")
	require.Error(t, err)

	mock.ExpectBegin()
	mock.ExpectCommit()
	require.NoError(t, s.ResetPassword(context.Background(), mailer.resetToken, "N3w!password"))
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.Empty(t, rm.rt.byHash)
	assert.True(t, rm.r.byHash[common.HashToken(login.Tokens.RefreshToken)].Revoked)

	err = s.ResetPassword(context.Background(), mailer.resetToken, "N3w!password")
	require.ErrorIs(t, err, common.ErrResetTokenInvalid, "tokens are single use")
}

func TestResetPassword_Expired(t *testing.T) {
	rm := newFakeRepoManager(testUser(t, "u1", "alice@example.com", auth.RoleAthlete))
	s, _ := newUserService(t, rm, nil)
	rm.rt.byHash[common.HashToken("tok")] = &models.PasswordResetToken{
		ID: "r1", UserID: "u1", TokenHash: common.HashToken("tok"), ExpiresAt: time.Now().Add(-time.Minute),
	}

	err := s.ResetPassword(context.Background(), "tok", "N3w!password")
	require.ErrorIs(t, err, common.ErrResetTokenInvalid)
	assert.Empty(t, rm.rt.byHash, "expired token is dropped")
}

func TestForgotPassword_MailFailureIsSilent(t *testing.T) {
	rm := newFakeRepoManager(testUser(t, "u1", "alice@example.com", auth.RoleAthlete))
	s, mock := newUserService(t, rm, &fakeMailer{err: errBoom{}})
	mock.ExpectBegin()
	mock.ExpectCommit()

	require.NoError(t, s.ForgotPassword(context.Background(), "alice@example.com"))
}

func TestPurgeExpired(t *testing.T) {
	rm := newFakeRepoManager()
	rm.r.byHash["old"] = &models.RefreshToken{TokenHash: "old", ExpiresAt: time.Now().Add(-time.Hour)}
	rm.r.byHash["new"] = &models.RefreshToken{TokenHash: "new", ExpiresAt: time.Now().Add(time.Hour)}
	s, _ := newUserService(t, rm, nil)

	require.NoError(t, s.PurgeExpired(context.Background()))
	assert.Len(t, rm.r.byHash, 1)
}
