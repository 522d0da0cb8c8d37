package metadata

import (
	"context"
	"fmt"
	"strconv"
)

const (
	KeyAccessToken     = "access_token"
	KeyRefreshToken    = "refresh_token"
	KeyUserEmail       = "user_email"
	KeyLastSyncVersion = "last_sync_version"
	KeyLastSyncAt      = "last_sync_at"
)

// sessionKeys are removed on logout; sync bookkeeping stays.
var sessionKeys = []string{KeyAccessToken, KeyRefreshToken, KeyUserEmail}

// TokenStore keeps the API session in the metadata table.
type TokenStore struct {
	repo Repository
}

func NewTokenStore(repo Repository) *TokenStore {
	return &TokenStore{repo: repo}
}

func (s *TokenStore) AccessToken(ctx context.Context) (string, error) {
	return GetString(ctx, s.repo, KeyAccessToken)
}

func (s *TokenStore) RefreshToken(ctx context.Context) (string, error) {
	return GetString(ctx, s.repo, KeyRefreshToken)
}

func (s *TokenStore) UserEmail(ctx context.Context) (string, error) {
	return GetString(ctx, s.repo, KeyUserEmail)
}

// SaveSession stores a fresh token pair and the user it belongs to.
func (s *TokenStore) SaveSession(ctx context.Context, access, refresh, email string) error {
	for k, v := range map[string]string{
		KeyAccessToken:  access,
		KeyRefreshToken: refresh,
		KeyUserEmail:    email,
	} {
		if err := s.repo.Set(ctx, k, []byte(v)); err != nil {
			return err
		}
	}
	return nil
}

// SetAccessToken replaces the access token after a refresh.
func (s *TokenStore) SetAccessToken(ctx context.Context, token string) error {
	return s.repo.Set(ctx, KeyAccessToken, []byte(token))
}

// ClearSession forgets the tokens and the user email.
func (s *TokenStore) ClearSession(ctx context.Context) error {
	for _, k := range sessionKeys {
		if err := s.repo.Delete(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

// LoggedIn reports whether an access token is stored.
func (s *TokenStore) LoggedIn(ctx context.Context) (bool, error) {
	tok, err := s.AccessToken(ctx)
	return tok != "", err
}

func GetString(ctx context.Context, r Repository, key string) (string, error) {
	v, err := r.Get(ctx, key)
	if err != nil {
		return "", err
	}
	return string(v), nil
}

// GetInt64 reads a decimal value; a missing key yields 0.
func GetInt64(ctx context.Context, r Repository, key string) (int64, error) {
	v, err := r.Get(ctx, key)
	if err != nil || v == nil {
		return 0, err
	}
	n, err := strconv.ParseInt(string(v), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("metadata[%s] is not an integer: %w", key, err)
	}
	return n, nil
}

func SetInt64(ctx context.Context, r Repository, key string, n int64) error {
	return r.Set(ctx, key, []byte(strconv.FormatInt(n, 10)))
}
