package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/trainlog/internal/common"
	"github.com/dmitrijs2005/trainlog/internal/dbx"
	"github.com/dmitrijs2005/trainlog/internal/logging"
	"github.com/dmitrijs2005/trainlog/internal/server/models"
	"github.com/dmitrijs2005/trainlog/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// MaxPushItems bounds a single push request.
const MaxPushItems = 500

// ChangeSet is the answer to a pull: every record changed after the
// requested version and the user's current version.
type ChangeSet struct {
	Records []*models.Record `json:"records"`
	Version int64            `json:"version"`
}

// SyncService stores workout and goal records pushed by clients and serves
// them back by version.
type SyncService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	log         logging.Logger
}

func NewSyncService(db *sql.DB, m repomanager.RepositoryManager, log logging.Logger) *SyncService {
	return &SyncService{db: db, repomanager: m, log: log}
}

// errStale aborts a record transaction whose base version is behind.
type errStale struct{ serverVersion int64 }

func (e errStale) Error() string {
	return fmt.Sprintf("stale base version, server has %d", e.serverVersion)
}

// Push applies each item in its own transaction. An item whose base version
// is older than the stored version is reported as a conflict and left
// untouched; accepted items get a fresh per-user version.
func (s *SyncService) Push(ctx context.Context, userID string, items []models.PushItem) ([]models.PushResult, error) {
	if len(items) > MaxPushItems {
		return nil, fmt.Errorf("%w: at most %d records per push", common.ErrInvalidInput, MaxPushItems)
	}

	results := make([]models.PushResult, 0, len(items))
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		results = append(results, s.pushOne(ctx, userID, item))
	}
	return results, nil
}

func (s *SyncService) pushOne(ctx context.Context, userID string, item models.PushItem) models.PushResult {
	res := models.PushResult{ID: item.ID}

	if err := validatePushItem(item); err != nil {
		res.Error = err.Error()
		return res
	}

	var version int64
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		existing, err := s.repomanager.Records(tx).GetForUpdate(ctx, userID, item.ID)
		if err != nil && !errors.Is(err, common.ErrorNotFound) {
			return err
		}
		if existing != nil && existing.Version > item.BaseVersion {
			return errStale{serverVersion: existing.Version}
		}

		version, err = s.repomanager.Users(tx).IncrementCurrentVersion(ctx, userID)
		if err != nil {
			return err
		}
		return s.repomanager.Records(tx).CreateOrUpdate(ctx, &models.Record{
			ID:      item.ID,
			UserID:  userID,
			Kind:    item.Kind,
			Payload: item.Payload,
			Version: version,
			Deleted: item.Deleted,
		})
	})

	var stale errStale
	switch {
	case err == nil:
		res.Accepted = true
		res.Version = version
	case errors.As(err, &stale):
		res.Conflict = true
		res.ServerVersion = stale.serverVersion
	case errors.Is(err, common.ErrVersionConflict):
		res.Error = "record id already in use"
	default:
		s.log.Error(ctx, "push record failed", "user_id", userID, "record_id", item.ID, "error", err)
		res.Error = "internal error"
	}
	return res
}

func validatePushItem(item models.PushItem) error {
	if _, err := uuid.Parse(item.ID); err != nil {
		return fmt.Errorf("invalid record id")
	}
	if !item.Kind.Valid() {
		return fmt.Errorf("invalid record kind %q", item.Kind)
	}
	if !item.Deleted && len(item.Payload) == 0 {
		return fmt.Errorf("payload required")
	}
	if item.BaseVersion < 0 {
		return fmt.Errorf("invalid base version")
	}
	return nil
}

// Changes returns the records changed after since, oldest first.
func (s *SyncService) Changes(ctx context.Context, userID string, since int64) (*ChangeSet, error) {
	if since < 0 {
		return nil, fmt.Errorf("%w: since must not be negative", common.ErrInvalidInput)
	}
	u, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	recs, err := s.repomanager.Records(s.db).SelectUpdated(ctx, userID, since)
	if err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []*models.Record{}
	}
	return &ChangeSet{Records: recs, Version: u.CurrentVersion}, nil
}
