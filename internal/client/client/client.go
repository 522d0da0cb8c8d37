package client

import (
	"context"

	"github.com/dmitrijs2005/trainlog/internal/client/models"
)

// API is the part of the trainlog HTTP API the CLI depends on.
type API interface {
	Register(ctx context.Context, email, password string) (*models.AuthResponse, error)
	Login(ctx context.Context, email, password string) (*models.AuthResponse, error)
	Refresh(ctx context.Context) error
	Logout(ctx context.Context) error
	WhoAmI(ctx context.Context) (*models.UserInfo, error)
	ChangePassword(ctx context.Context, current, next string) error
	Push(ctx context.Context, items []models.PushItem) ([]models.PushResult, error)
	Changes(ctx context.Context, since int64) (*models.ChangeSet, error)
	RequestVideoUpload(ctx context.Context, contentType string) (*models.VideoUpload, error)
	Health(ctx context.Context) error
}

var _ API = (*HTTPClient)(nil)
