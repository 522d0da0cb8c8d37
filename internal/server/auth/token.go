package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/trainlog/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 30 * 24 * time.Hour
)

// TokenKind separates access tokens from refresh tokens. Both are signed
// with the same secret, so the kind is checked explicitly.
type TokenKind string

const (
	AccessToken  TokenKind = "access"
	RefreshToken TokenKind = "refresh"
)

// Claims is the JWT payload. Subject carries the user id and ID the jti.
type Claims struct {
	Email string    `json:"email"`
	Role  Role      `json:"role"`
	Kind  TokenKind `json:"typ"`
	jwt.RegisteredClaims
}

// TokenPair is what login and registration hand out.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessJTI        string
	RefreshJTI       string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// TokenService mints and validates HS256 tokens.
type TokenService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenService uses the default lifetimes for zero durations.
func NewTokenService(secret string, accessTTL, refreshTTL time.Duration) *TokenService {
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}
	return &TokenService{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

func (s *TokenService) AccessTTL() time.Duration  { return s.accessTTL }
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }

func (s *TokenService) CreateAccessToken(userID, email string, role Role) (string, error) {
	tok, _, err := s.create(userID, email, role, AccessToken, s.accessTTL)
	return tok, err
}

func (s *TokenService) CreateRefreshToken(userID, email string, role Role) (string, error) {
	tok, _, err := s.create(userID, email, role, RefreshToken, s.refreshTTL)
	return tok, err
}

// CreateTokenPair mints an access and a refresh token with distinct jtis.
func (s *TokenService) CreateTokenPair(userID, email string, role Role) (*TokenPair, error) {
	access, ac, err := s.create(userID, email, role, AccessToken, s.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, rc, err := s.create(userID, email, role, RefreshToken, s.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessJTI:        ac.ID,
		RefreshJTI:       rc.ID,
		AccessExpiresAt:  ac.ExpiresAt.Time,
		RefreshExpiresAt: rc.ExpiresAt.Time,
	}, nil
}

func (s *TokenService) create(userID, email string, role Role, kind TokenKind, ttl time.Duration) (string, *Claims, error) {
	now := s.now()
	claims := &Claims{
		Email: email,
		Role:  role,
		Kind:  kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return tok, claims, nil
}

func (s *TokenService) keyFunc(*jwt.Token) (any, error) { return s.secret, nil }

// ValidateToken verifies signature and expiry of a token of either kind.
// Expiry yields ErrTokenExpired; every other failure ErrInvalidToken.
func (s *TokenService) ValidateToken(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, s.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, newError(KindTokenExpired, common.ErrTokenExpired)
		}
		return nil, newError(KindInvalidToken, err)
	}
	if claims.Subject == "" || claims.ID == "" || !claims.Role.Valid() {
		return nil, newError(KindInvalidToken, common.ErrInvalidToken)
	}
	return claims, nil
}

// ValidateAccessToken rejects refresh tokens.
func (s *TokenService) ValidateAccessToken(token string) (*Claims, error) {
	return s.validateKind(token, AccessToken)
}

// ValidateRefreshToken rejects access tokens.
func (s *TokenService) ValidateRefreshToken(token string) (*Claims, error) {
	return s.validateKind(token, RefreshToken)
}

func (s *TokenService) validateKind(token string, kind TokenKind) (*Claims, error) {
	claims, err := s.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	if claims.Kind != kind {
		return nil, newError(KindInvalidToken, fmt.Errorf("expected %s token, got %q", kind, claims.Kind))
	}
	return claims, nil
}

// ExtractUserSession validates an access token and builds the session.
func (s *TokenService) ExtractUserSession(token string) (*Session, error) {
	claims, err := s.ValidateAccessToken(token)
	if err != nil {
		return nil, err
	}
	return &Session{
		UserID:    claims.Subject,
		Email:     claims.Email,
		Role:      claims.Role,
		JTI:       claims.ID,
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
	}, nil
}

// IsTokenExpired verifies the signature but judges only the expiry claim.
func (s *TokenService) IsTokenExpired(token string) (bool, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, s.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return false, newError(KindInvalidToken, err)
	}
	if claims.ExpiresAt == nil {
		return false, newError(KindInvalidToken, common.ErrInvalidToken)
	}
	return !s.now().Before(claims.ExpiresAt.Time), nil
}

// ExtractJTI returns the revocation id of a valid token.
func (s *TokenService) ExtractJTI(token string) (string, error) {
	claims, err := s.ValidateToken(token)
	if err != nil {
		return "", err
	}
	return claims.ID, nil
}
