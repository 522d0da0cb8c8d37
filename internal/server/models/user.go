// Package models defines server-side data models persisted in Postgres.
package models

import (
	"time"

	"github.com/dmitrijs2005/trainlog/internal/server/auth"
)

// User is the credential record. Rows are never physically deleted.
type User struct {
	ID             string
	Email          string
	PasswordHash   string
	Role           auth.Role
	CurrentVersion int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
