package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/trainlog/internal/dbx"
	"github.com/dmitrijs2005/trainlog/internal/server/repositories/blacklist"
	"github.com/dmitrijs2005/trainlog/internal/server/repositories/records"
	"github.com/dmitrijs2005/trainlog/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/trainlog/internal/server/repositories/resettokens"
	"github.com/dmitrijs2005/trainlog/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so services can use
// the same code inside and outside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Blacklist(db dbx.DBTX) blacklist.Repository
	ResetTokens(db dbx.DBTX) resettokens.Repository
	Records(db dbx.DBTX) records.Repository
}
