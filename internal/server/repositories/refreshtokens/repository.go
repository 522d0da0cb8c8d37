// Package refreshtokens persists issued refresh tokens so they can be
// rotated and revoked.
package refreshtokens

import (
	"context"

	"github.com/dmitrijs2005/trainlog/internal/server/models"
)

type Repository interface {
	// Create stores a token record. Only the token hash is persisted.
	Create(ctx context.Context, token *models.RefreshToken) error

	// FindByHash returns common.ErrorNotFound when no row matches.
	FindByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error)

	// Revoke marks one token as revoked. Unknown hashes are not an error.
	Revoke(ctx context.Context, tokenHash string) error

	// RevokeAllForUser revokes every live token of the user.
	RevokeAllForUser(ctx context.Context, userID string) (int64, error)

	// DeleteExpired removes rows past their expiry.
	DeleteExpired(ctx context.Context) (int64, error)
}
