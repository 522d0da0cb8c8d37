package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/trainlog/internal/client/client"
	"github.com/dmitrijs2005/trainlog/internal/client/models"
	"github.com/dmitrijs2005/trainlog/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/trainlog/internal/common"
	"github.com/dmitrijs2005/trainlog/internal/dbx"
	"github.com/dmitrijs2005/trainlog/internal/logging"
)

var ErrNotLoggedIn = errors.New("not logged in")

// AuthService manages the API session kept in the local store.
//
// Passwords are taken as byte slices and wiped once the request is sent.
type AuthService interface {
	Register(ctx context.Context, email string, password []byte) (*models.UserInfo, error)
	Login(ctx context.Context, email string, password []byte) (*models.UserInfo, error)

	// Logout revokes the session on the server when it can and always
	// forgets it locally.
	Logout(ctx context.Context) error

	WhoAmI(ctx context.Context) (*models.UserInfo, error)
	ChangePassword(ctx context.Context, current, next []byte) error

	// Status summarises the session and the local sync state without
	// failing when the server is down. The server is only probed when
	// probe is set.
	Status(ctx context.Context, probe bool) (*Status, error)
}

// Status is shown by the dashboard.
type Status struct {
	LoggedIn   bool
	Email      string
	Online     bool
	Pending    int
	Conflicts  int
	LastSyncAt *time.Time
}

type authService struct {
	api    client.API
	store  *Store
	tokens *metadata.TokenStore
	log    logging.Logger
}

func NewAuthService(api client.API, store *Store, log logging.Logger) AuthService {
	return &authService{
		api:    api,
		store:  store,
		tokens: metadata.NewTokenStore(store.Repos.Metadata(store.DB)),
		log:    log,
	}
}

func (a *authService) Register(ctx context.Context, email string, password []byte) (*models.UserInfo, error) {
	defer common.WipeByteArray(password)

	resp, err := a.api.Register(ctx, normalizeEmail(email), string(password))
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	return a.saveSession(ctx, resp)
}

func (a *authService) Login(ctx context.Context, email string, password []byte) (*models.UserInfo, error) {
	defer common.WipeByteArray(password)

	resp, err := a.api.Login(ctx, normalizeEmail(email), string(password))
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return a.saveSession(ctx, resp)
}

func (a *authService) saveSession(ctx context.Context, resp *models.AuthResponse) (*models.UserInfo, error) {
	if err := a.tokens.SaveSession(ctx, resp.AccessToken, resp.RefreshToken, resp.User.Email); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	user := resp.User
	return &user, nil
}

func (a *authService) Logout(ctx context.Context) error {
	loggedIn, err := a.tokens.LoggedIn(ctx)
	if err != nil {
		return fmt.Errorf("read session: %w", err)
	}
	if !loggedIn {
		return ErrNotLoggedIn
	}

	if err := a.api.Logout(ctx); err != nil {
		a.log.Warn(ctx, "server logout failed, clearing local session anyway", "err", err)
	}

	if err := a.tokens.ClearSession(ctx); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func (a *authService) WhoAmI(ctx context.Context) (*models.UserInfo, error) {
	if err := a.requireSession(ctx); err != nil {
		return nil, err
	}
	user, err := a.api.WhoAmI(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	return user, nil
}

func (a *authService) ChangePassword(ctx context.Context, current, next []byte) error {
	defer common.WipeByteArray(current)
	defer common.WipeByteArray(next)

	if err := a.requireSession(ctx); err != nil {
		return err
	}
	if err := a.api.ChangePassword(ctx, string(current), string(next)); err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	return nil
}

func (a *authService) requireSession(ctx context.Context) error {
	loggedIn, err := a.tokens.LoggedIn(ctx)
	if err != nil {
		return fmt.Errorf("read session: %w", err)
	}
	if !loggedIn {
		return ErrNotLoggedIn
	}
	return nil
}

func (a *authService) Status(ctx context.Context, probe bool) (*Status, error) {
	meta := a.store.Repos.Metadata(a.store.DB)

	st := &Status{}
	var err error

	if st.LoggedIn, err = a.tokens.LoggedIn(ctx); err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	if st.Email, err = a.tokens.UserEmail(ctx); err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	if st.Pending, err = a.store.Repos.Queue(a.store.DB).Count(ctx); err != nil {
		return nil, fmt.Errorf("count pending: %w", err)
	}
	if st.Conflicts, err = a.store.Repos.Conflicts(a.store.DB).Count(ctx); err != nil {
		return nil, fmt.Errorf("count conflicts: %w", err)
	}

	last, err := metadata.GetString(ctx, meta, metadata.KeyLastSyncAt)
	if err != nil {
		return nil, fmt.Errorf("read last sync: %w", err)
	}
	if last != "" {
		if t, err := dbx.ParseTime(last); err == nil {
			st.LastSyncAt = &t
		}
	}

	if probe {
		st.Online = a.api.Health(ctx) == nil
	}
	return st, nil
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
