// Package services contains server-side business logic. This file implements
// UserService: registration, login, token refresh and revocation, profile
// management, password changes and resets, and role administration.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/dmitrijs2005/trainlog/internal/common"
	"github.com/dmitrijs2005/trainlog/internal/dbx"
	"github.com/dmitrijs2005/trainlog/internal/logging"
	"github.com/dmitrijs2005/trainlog/internal/server/auth"
	"github.com/dmitrijs2005/trainlog/internal/server/config"
	"github.com/dmitrijs2005/trainlog/internal/server/email"
	"github.com/dmitrijs2005/trainlog/internal/server/models"
	"github.com/dmitrijs2005/trainlog/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// AuthResult is returned by Register and Login.
type AuthResult struct {
	User   *models.User
	Tokens *auth.TokenPair
}

// AccessResult is returned by Refresh.
type AccessResult struct {
	AccessToken string
	ExpiresAt   time.Time
}

type UserService struct {
	db                 *sql.DB
	repomanager        repomanager.RepositoryManager
	tokens             *auth.TokenService
	policy             auth.PasswordPolicy
	mailer             email.Sender
	log                logging.Logger
	resetTokenValidity time.Duration
	now                func() time.Time
	verifyPassword     func(password, hash string) (bool, error)
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, tokens *auth.TokenService,
	mailer email.Sender, log logging.Logger, cfg *config.Config) *UserService {
	return &UserService{
		db:                 db,
		repomanager:        m,
		tokens:             tokens,
		policy:             cfg.PasswordPolicy(),
		mailer:             mailer,
		log:                log,
		resetTokenValidity: cfg.ResetTokenValidityDuration,
		now:                time.Now,
		verifyPassword:     auth.VerifyPassword,
	}
}

// normalizeEmail lowercases and validates an address.
func normalizeEmail(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return "", fmt.Errorf("%w: invalid email address", common.ErrInvalidInput)
	}
	return s, nil
}

// registrationRole resolves the role requested at sign-up. Empty means
// athlete; admin accounts are only granted by another admin.
func registrationRole(s string) (auth.Role, error) {
	if strings.TrimSpace(s) == "" {
		return auth.RoleAthlete, nil
	}
	role, err := auth.ParseRole(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}
	if role == auth.RoleAdmin {
		return "", fmt.Errorf("%w: admin role cannot be self-assigned", common.ErrInvalidInput)
	}
	return role, nil
}

// Register creates an account with the requested role and signs it in.
func (s *UserService) Register(ctx context.Context, emailAddr, password, role string) (*AuthResult, error) {
	emailAddr, err := normalizeEmail(emailAddr)
	if err != nil {
		return nil, err
	}
	userRole, err := registrationRole(role)
	if err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(password, s.policy)
	if err != nil {
		return nil, err
	}

	var res *AuthResult
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		u, err := s.repomanager.Users(tx).Create(ctx, &models.User{
			ID:           uuid.NewString(),
			Email:        emailAddr,
			PasswordHash: hash,
			Role:         userRole,
		})
		if err != nil {
			return fmt.Errorf("error creating user: %w", err)
		}
		pair, err := s.issueTokens(ctx, tx, u)
		if err != nil {
			return err
		}
		res = &AuthResult{User: u, Tokens: pair}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "user registered", "user_id", res.User.ID, "role", res.User.Role)
	return res, nil
}

// Login never reveals whether the email or the password was wrong.
func (s *UserService) Login(ctx context.Context, emailAddr, password string) (*AuthResult, error) {
	emailAddr = strings.ToLower(strings.TrimSpace(emailAddr))

	u, err := s.repomanager.Users(s.db).GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			_, _ = s.verifyPassword(password, auth.DummyHash())
			return nil, common.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("error loading user: %w", err)
	}

	ok, err := s.verifyPassword(password, u.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("error verifying password: %w", err)
	}
	if !ok {
		return nil, common.ErrInvalidCredentials
	}

	pair, err := s.issueTokens(ctx, s.db, u)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: u, Tokens: pair}, nil
}

// Refresh exchanges a stored, unrevoked refresh token for a new access token.
// The access token carries the user's current email and role.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*AccessResult, error) {
	claims, err := s.tokens.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	stored, err := s.repomanager.RefreshTokens(s.db).FindByHash(ctx, common.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, fmt.Errorf("error searching refresh token: %w", err)
	}
	if stored.Revoked {
		return nil, common.ErrTokenRevoked
	}
	if !stored.ExpiresAt.After(s.now()) {
		return nil, common.ErrRefreshTokenExpired
	}
	if stored.UserID != claims.Subject {
		return nil, common.ErrInvalidToken
	}

	u, err := s.repomanager.Users(s.db).GetByID(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, fmt.Errorf("error loading user: %w", err)
	}

	access, err := s.tokens.CreateAccessToken(u.ID, u.Email, u.Role)
	if err != nil {
		return nil, common.ErrorInternal
	}
	return &AccessResult{AccessToken: access, ExpiresAt: s.now().Add(s.tokens.AccessTTL())}, nil
}

// Logout blacklists the current access token until it expires and revokes
// every refresh token of the user.
func (s *UserService) Logout(ctx context.Context, session *auth.Session) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Blacklist(tx).Add(ctx, session.JTI, session.ExpiresAt); err != nil {
			return fmt.Errorf("error blacklisting token: %w", err)
		}
		if _, err := s.repomanager.RefreshTokens(tx).RevokeAllForUser(ctx, session.UserID); err != nil {
			return fmt.Errorf("error revoking refresh tokens: %w", err)
		}
		return nil
	})
}

// ValidateSession turns a bearer token into a session, rejecting refresh
// tokens and blacklisted access tokens.
func (s *UserService) ValidateSession(ctx context.Context, token string) (*auth.Session, error) {
	session, err := s.tokens.ExtractUserSession(token)
	if err != nil {
		return nil, err
	}
	revoked, err := s.repomanager.Blacklist(s.db).Contains(ctx, session.JTI)
	if err != nil {
		return nil, fmt.Errorf("error checking blacklist: %w", err)
	}
	if revoked {
		return nil, &auth.Error{Kind: auth.KindInvalidToken, Err: common.ErrTokenRevoked}
	}
	return session, nil
}

func (s *UserService) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	return s.repomanager.Users(s.db).GetByID(ctx, userID)
}

// UpdateProfile changes the account email.
func (s *UserService) UpdateProfile(ctx context.Context, userID, emailAddr string) (*models.User, error) {
	emailAddr, err := normalizeEmail(emailAddr)
	if err != nil {
		return nil, err
	}
	repo := s.repomanager.Users(s.db)
	if err := repo.UpdateEmail(ctx, userID, emailAddr); err != nil {
		return nil, err
	}
	return repo.GetByID(ctx, userID)
}

// ChangePassword verifies the current password, stores the new hash and
// signs out every other device. The notice mail is best-effort.
func (s *UserService) ChangePassword(ctx context.Context, userID, current, next string) error {
	u, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		return err
	}
	ok, err := s.verifyPassword(current, u.PasswordHash)
	if err != nil {
		return fmt.Errorf("error verifying password: %w", err)
	}
	if !ok {
		return common.ErrInvalidCredentials
	}
	hash, err := auth.HashPassword(next, s.policy)
	if err != nil {
		return err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Users(tx).UpdatePassword(ctx, userID, hash); err != nil {
			return err
		}
		_, err := s.repomanager.RefreshTokens(tx).RevokeAllForUser(ctx, userID)
		return err
	})
	if err != nil {
		return err
	}

	if err := s.mailer.SendPasswordChanged(ctx, u.Email); err != nil {
		s.log.Warn(ctx, "password change notice failed", "user_id", userID, "error", err)
	}
	return nil
}

func (s *UserService) ListUsers(ctx context.Context) ([]*models.User, error) {
	return s.repomanager.Users(s.db).List(ctx)
}

// UpdateRole sets the role of another user. Admins cannot demote themselves.
func (s *UserService) UpdateRole(ctx context.Context, actor *auth.Session, targetID, role string) (*models.User, error) {
	r, err := auth.ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}
	if actor != nil && actor.UserID == targetID && r != actor.Role {
		return nil, fmt.Errorf("%w: cannot change your own role", common.ErrInvalidInput)
	}
	repo := s.repomanager.Users(s.db)
	if err := repo.UpdateRole(ctx, targetID, r); err != nil {
		return nil, err
	}
	s.log.Info(ctx, "role updated", "user_id", targetID, "role", r.String())
	return repo.GetByID(ctx, targetID)
}

// ForgotPassword mails a single-use reset link. Unknown addresses and mail
// failures are not reported to the caller.
func (s *UserService) ForgotPassword(ctx context.Context, emailAddr string) error {
	emailAddr = strings.ToLower(strings.TrimSpace(emailAddr))

	u, err := s.repomanager.Users(s.db).GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.log.Debug(ctx, "password reset for unknown email")
			return nil
		}
		return fmt.Errorf("error loading user: %w", err)
	}

	token, err := auth.GenerateResetToken()
	if err != nil {
		return common.ErrorInternal
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.ResetTokens(tx)
		if err := repo.DeleteByUserID(ctx, u.ID); err != nil {
			return err
		}
		return repo.Create(ctx, &models.PasswordResetToken{
			ID:        uuid.NewString(),
			UserID:    u.ID,
			TokenHash: common.HashToken(token),
			ExpiresAt: s.now().Add(s.resetTokenValidity),
		})
	})
	if err != nil {
		return err
	}

	if err := s.mailer.SendPasswordReset(ctx, u.Email, token, s.resetTokenValidity); err != nil {
		s.log.Error(ctx, "password reset mail failed", "user_id", u.ID, "error", err)
	}
	return nil
}

// ResetPassword consumes a reset token, sets the new password and revokes
// all refresh tokens of the user.
func (s *UserService) ResetPassword(ctx context.Context, token, next string) error {
	repo := s.repomanager.ResetTokens(s.db)
	rt, err := repo.GetByHash(ctx, common.HashToken(token))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrResetTokenInvalid
		}
		return err
	}
	if !rt.ExpiresAt.After(s.now()) {
		if err := repo.DeleteByID(ctx, rt.ID); err != nil {
			s.log.Warn(ctx, "failed to drop expired reset token", "error", err)
		}
		return common.ErrResetTokenInvalid
	}

	hash, err := auth.HashPassword(next, s.policy)
	if err != nil {
		return err
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Users(tx).UpdatePassword(ctx, rt.UserID, hash); err != nil {
			return err
		}
		if err := s.repomanager.ResetTokens(tx).DeleteByUserID(ctx, rt.UserID); err != nil {
			return err
		}
		_, err := s.repomanager.RefreshTokens(tx).RevokeAllForUser(ctx, rt.UserID)
		return err
	})
}

// PurgeExpired removes blacklist entries and refresh tokens past their expiry.
func (s *UserService) PurgeExpired(ctx context.Context) error {
	n, err := s.repomanager.Blacklist(s.db).DeleteExpired(ctx)
	if err != nil {
		return fmt.Errorf("error purging blacklist: %w", err)
	}
	m, err := s.repomanager.RefreshTokens(s.db).DeleteExpired(ctx)
	if err != nil {
		return fmt.Errorf("error purging refresh tokens: %w", err)
	}
	s.log.Debug(ctx, "expired tokens purged", "blacklist", n, "refresh_tokens", m)
	return nil
}

// issueTokens mints a token pair and stores the refresh token hash.
func (s *UserService) issueTokens(ctx context.Context, db dbx.DBTX, u *models.User) (*auth.TokenPair, error) {
	pair, err := s.tokens.CreateTokenPair(u.ID, u.Email, u.Role)
	if err != nil {
		return nil, common.ErrorInternal
	}
	err = s.repomanager.RefreshTokens(db).Create(ctx, &models.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		TokenHash: common.HashToken(pair.RefreshToken),
		ExpiresAt: pair.RefreshExpiresAt,
	})
	if err != nil {
		return nil, fmt.Errorf("error storing refresh token: %w", err)
	}
	return pair, nil
}
