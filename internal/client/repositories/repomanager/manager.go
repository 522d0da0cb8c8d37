// Package repomanager vends the local-store repositories bound to either the
// database handle or an open transaction.
package repomanager

import (
	"github.com/dmitrijs2005/trainlog/internal/client/repositories/conflicts"
	"github.com/dmitrijs2005/trainlog/internal/client/repositories/goals"
	"github.com/dmitrijs2005/trainlog/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/trainlog/internal/client/repositories/syncqueue"
	"github.com/dmitrijs2005/trainlog/internal/client/repositories/workouts"
	"github.com/dmitrijs2005/trainlog/internal/dbx"
)

type RepositoryManager interface {
	Workouts(db dbx.DBTX) workouts.Repository
	Goals(db dbx.DBTX) goals.Repository
	Queue(db dbx.DBTX) syncqueue.Repository
	Conflicts(db dbx.DBTX) conflicts.Repository
	Metadata(db dbx.DBTX) metadata.Repository
}

type SQLiteRepositoryManager struct{}

func NewSQLiteRepositoryManager() RepositoryManager {
	return &SQLiteRepositoryManager{}
}

func (m *SQLiteRepositoryManager) Workouts(db dbx.DBTX) workouts.Repository {
	return workouts.NewSQLiteRepository(db)
}

func (m *SQLiteRepositoryManager) Goals(db dbx.DBTX) goals.Repository {
	return goals.NewSQLiteRepository(db)
}

func (m *SQLiteRepositoryManager) Queue(db dbx.DBTX) syncqueue.Repository {
	return syncqueue.NewSQLiteRepository(db)
}

func (m *SQLiteRepositoryManager) Conflicts(db dbx.DBTX) conflicts.Repository {
	return conflicts.NewSQLiteRepository(db)
}

func (m *SQLiteRepositoryManager) Metadata(db dbx.DBTX) metadata.Repository {
	return metadata.NewSQLiteRepository(db)
}
