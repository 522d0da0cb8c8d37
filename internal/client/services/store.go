// Package services implements the coach CLI's use cases on top of the local
// store and the trainlog API.
//
// Every change to a workout or goal is written together with its sync queue
// entry in one transaction, so a record is never dirty without being queued.
package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/dmitrijs2005/trainlog/internal/client/models"
	"github.com/dmitrijs2005/trainlog/internal/client/repositories/repomanager"
	"github.com/dmitrijs2005/trainlog/internal/dbx"
)

// Store is the local database together with its repositories.
type Store struct {
	DB    *sql.DB
	Repos repomanager.RepositoryManager
	Now   func() time.Time
}

func NewStore(db *sql.DB) *Store {
	return &Store{DB: db, Repos: repomanager.NewSQLiteRepositoryManager(), Now: time.Now}
}

// mutate runs fn and enqueues id for upload in the same transaction.
func (s *Store) mutate(ctx context.Context, id string, kind models.RecordKind, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	return dbx.WithTx(ctx, s.DB, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := fn(ctx, tx); err != nil {
			return err
		}
		return s.Repos.Queue(tx).Enqueue(ctx, id, kind, s.Now())
	})
}
