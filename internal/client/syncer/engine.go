// Package syncer reconciles the CLI's local store with the trainlog server.
//
// A run first pushes every queued record, clearing the dirty flag of a record
// only when the server acknowledged that record, and then pulls the changes
// made since the last run. Server changes that collide with unsynced local
// edits are settled by the configured Strategy.
package syncer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/trainlog/internal/client/client"
	"github.com/dmitrijs2005/trainlog/internal/client/models"
	"github.com/dmitrijs2005/trainlog/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/trainlog/internal/client/repositories/repomanager"
	"github.com/dmitrijs2005/trainlog/internal/common"
	"github.com/dmitrijs2005/trainlog/internal/dbx"
	"github.com/dmitrijs2005/trainlog/internal/logging"
)

// pushBatch stays well below the server's per-request limit.
const pushBatch = 100

var (
	ErrNotLoggedIn       = errors.New("not logged in")
	ErrServerUnreachable = errors.New("cannot connect to server")
)

// API is what the engine needs from the server.
type API interface {
	WhoAmI(ctx context.Context) (*models.UserInfo, error)
	Push(ctx context.Context, items []models.PushItem) ([]models.PushResult, error)
	Changes(ctx context.Context, since int64) (*models.ChangeSet, error)
}

var _ API = (client.API)(nil)

// detachable APIs can hand out a view that keeps refreshed access tokens in
// memory instead of writing them back to the session store.
type detachable interface {
	Detached() client.API
}

type Engine struct {
	db       *sql.DB
	repos    repomanager.RepositoryManager
	api      API
	strategy Strategy
	log      logging.Logger
	now      func() time.Time

	// mu serialises runs against the single-writer local store.
	mu sync.Mutex
}

func NewEngine(db *sql.DB, repos repomanager.RepositoryManager, api API, strategy Strategy, log logging.Logger) *Engine {
	return &Engine{db: db, repos: repos, api: api, strategy: strategy, log: log, now: time.Now}
}

// Sync runs a push and a pull. With dryRun it only reads: nothing is pushed
// and nothing is written locally, and the report describes what a real run
// would do.
func (e *Engine) Sync(ctx context.Context, dryRun bool) (*Report, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	api := e.api
	if d, ok := api.(detachable); ok && dryRun {
		api = d.Detached()
	}

	if err := e.checkSession(ctx, api); err != nil {
		return nil, err
	}

	rep := &Report{DryRun: dryRun}
	if err := e.push(ctx, api, rep); err != nil {
		return rep, fmt.Errorf("upload: %w", err)
	}
	if err := e.pull(ctx, api, rep); err != nil {
		return rep, fmt.Errorf("download: %w", err)
	}

	e.log.Info(ctx, "sync finished",
		"dry_run", dryRun,
		"uploaded", len(rep.Uploaded),
		"rejected", len(rep.Rejected),
		"downloaded", len(rep.Downloaded),
		"conflicts", len(rep.Conflicts))
	return rep, nil
}

func (e *Engine) checkSession(ctx context.Context, api API) error {
	tok, err := metadata.GetString(ctx, e.repos.Metadata(e.db), metadata.KeyAccessToken)
	if err != nil {
		return fmt.Errorf("read session: %w", err)
	}
	if tok == "" {
		return ErrNotLoggedIn
	}

	if _, err := api.WhoAmI(ctx); err != nil {
		if errors.Is(err, client.ErrUnauthorized) {
			return fmt.Errorf("%w: session expired, log in again", ErrNotLoggedIn)
		}
		return fmt.Errorf("%w: %v", ErrServerUnreachable, err)
	}
	return nil
}

func (e *Engine) push(ctx context.Context, api API, rep *Report) error {
	queue, err := e.repos.Queue(e.db).List(ctx)
	if err != nil {
		return err
	}

	var items []models.PushItem
	for _, q := range queue {
		item, ok, err := e.pushItem(ctx, q, rep.DryRun)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if rep.DryRun {
			rep.Uploaded = append(rep.Uploaded, Change{ID: item.ID, Kind: item.Kind, Deleted: item.Deleted})
			continue
		}
		items = append(items, item)
	}

	for start := 0; start < len(items); start += pushBatch {
		batch := items[start:min(start+pushBatch, len(items))]
		results, err := api.Push(ctx, batch)
		if err != nil {
			return err
		}
		if err := e.acknowledge(ctx, batch, results, rep); err != nil {
			return err
		}
	}
	return nil
}

// pushItem builds the upload for a queued record. Records with an open
// manual conflict are held back, and queue entries whose record vanished
// are dropped.
func (e *Engine) pushItem(ctx context.Context, q models.QueueItem, dryRun bool) (models.PushItem, bool, error) {
	if _, err := e.repos.Conflicts(e.db).Get(ctx, q.RecordID); err == nil {
		return models.PushItem{}, false, nil
	} else if !errors.Is(err, common.ErrorNotFound) {
		return models.PushItem{}, false, err
	}

	t, err := tableFor(e.repos, e.db, q.Kind)
	if err != nil {
		return models.PushItem{}, false, err
	}
	rec, err := t.find(ctx, q.RecordID)
	if errors.Is(err, common.ErrorNotFound) {
		if !dryRun {
			err = e.repos.Queue(e.db).Dequeue(ctx, q.RecordID)
		}
		return models.PushItem{}, false, err
	}
	if err != nil {
		return models.PushItem{}, false, err
	}

	return models.PushItem{
		ID:          q.RecordID,
		Kind:        q.Kind,
		Payload:     rec.Payload,
		Deleted:     rec.Deleted,
		BaseVersion: rec.ServerVersion,
	}, true, nil
}

// acknowledge clears the dirty flag of every accepted record, one
// transaction per record. Records without a positive answer stay dirty.
func (e *Engine) acknowledge(ctx context.Context, batch []models.PushItem, results []models.PushResult, rep *Report) error {
	byID := make(map[string]models.PushResult, len(results))
	for _, r := range results {
		byID[r.ID] = r
	}

	for _, item := range batch {
		res, ok := byID[item.ID]
		switch {
		case !ok:
			rep.Rejected = append(rep.Rejected, Rejection{ID: item.ID, Kind: item.Kind, Reason: "no answer from server"})
			continue
		case res.Conflict:
			rep.Rejected = append(rep.Rejected, Rejection{ID: item.ID, Kind: item.Kind,
				Reason: fmt.Sprintf("server has newer version %d", res.ServerVersion)})
			continue
		case !res.Accepted:
			rep.Rejected = append(rep.Rejected, Rejection{ID: item.ID, Kind: item.Kind, Reason: res.Error})
			continue
		}

		err := dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			t, err := tableFor(e.repos, tx, item.Kind)
			if err != nil {
				return err
			}
			if item.Deleted {
				err = t.purge(ctx, item.ID)
			} else {
				err = t.markSynced(ctx, item.ID, res.Version)
			}
			if err != nil {
				return err
			}
			return e.repos.Queue(tx).Dequeue(ctx, item.ID)
		})
		if err != nil {
			return fmt.Errorf("record %s: %w", item.ID, err)
		}
		rep.Uploaded = append(rep.Uploaded, Change{ID: item.ID, Kind: item.Kind, Deleted: item.Deleted, Version: res.Version})
	}
	return nil
}

func (e *Engine) pull(ctx context.Context, api API, rep *Report) error {
	meta := e.repos.Metadata(e.db)
	since, err := metadata.GetInt64(ctx, meta, metadata.KeyLastSyncVersion)
	if err != nil {
		return err
	}

	cs, err := api.Changes(ctx, since)
	if err != nil {
		return err
	}

	// Purged tombstones cannot be recognised locally once the server echoes
	// them back.
	acked := make(map[string]int64, len(rep.Uploaded))
	for _, c := range rep.Uploaded {
		acked[c.ID] = c.Version
	}

	for _, rec := range cs.Records {
		if v, ok := acked[rec.ID]; ok && v >= rec.Version {
			continue
		}
		if err := e.pullOne(ctx, rec, rep); err != nil {
			return fmt.Errorf("record %s: %w", rec.ID, err)
		}
	}

	rep.Version = cs.Version
	if rep.DryRun {
		return nil
	}
	return dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		m := e.repos.Metadata(tx)
		if err := metadata.SetInt64(ctx, m, metadata.KeyLastSyncVersion, cs.Version); err != nil {
			return err
		}
		return m.Set(ctx, metadata.KeyLastSyncAt, []byte(dbx.FormatTime(e.now())))
	})
}

func (e *Engine) pullOne(ctx context.Context, rec models.Record, rep *Report) error {
	t, err := tableFor(e.repos, e.db, rec.Kind)
	if err != nil {
		return err
	}
	local, err := t.find(ctx, rec.ID)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return err
	}

	change := Change{ID: rec.ID, Kind: rec.Kind, Deleted: rec.Deleted, Version: rec.Version}

	switch {
	case local != nil && local.ServerVersion >= rec.Version:
		// Already have it, usually our own push coming back.
		return nil
	case local == nil || local.Synced:
		rep.Downloaded = append(rep.Downloaded, change)
		if rep.DryRun {
			return nil
		}
		return e.adoptServer(ctx, rec)
	}

	c := ConflictReport{Change: change, Strategy: e.strategy}
	rep.Conflicts = append(rep.Conflicts, c)
	if rep.DryRun {
		return nil
	}

	switch e.strategy {
	case ServerWins:
		return e.adoptServer(ctx, rec)
	case LocalWins:
		return t.setServerVersion(ctx, rec.ID, rec.Version)
	default:
		return e.repos.Conflicts(e.db).Save(ctx, &models.Conflict{
			RecordID:      rec.ID,
			Kind:          rec.Kind,
			ServerPayload: rec.Payload,
			ServerDeleted: rec.Deleted,
			ServerVersion: rec.Version,
			DetectedAt:    e.now(),
		})
	}
}

// adoptServer replaces the local copy with the server's and drops any
// pending upload of it.
func (e *Engine) adoptServer(ctx context.Context, rec models.Record) error {
	return dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		t, err := tableFor(e.repos, tx, rec.Kind)
		if err != nil {
			return err
		}
		if rec.Deleted {
			err = t.purge(ctx, rec.ID)
		} else {
			err = t.applyRemote(ctx, rec.ID, rec.Version, rec.Payload)
		}
		if err != nil {
			return err
		}
		return e.repos.Queue(tx).Dequeue(ctx, rec.ID)
	})
}

// Keep picks a side in ResolveConflict.
type Keep string

const (
	KeepLocal  Keep = "local"
	KeepServer Keep = "server"
)

func ParseKeep(s string) (Keep, error) {
	switch k := Keep(s); k {
	case KeepLocal, KeepServer:
		return k, nil
	default:
		return "", fmt.Errorf("keep must be local or server, got %q", s)
	}
}

// ResolveConflict settles a conflict parked by the manual strategy. Keeping
// the local copy rebases it on the server version so the next push
// overwrites the server.
func (e *Engine) ResolveConflict(ctx context.Context, id string, keep Keep) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		c, err := e.repos.Conflicts(tx).Get(ctx, id)
		if err != nil {
			return fmt.Errorf("conflict %s: %w", id, err)
		}
		t, err := tableFor(e.repos, tx, c.Kind)
		if err != nil {
			return err
		}

		switch keep {
		case KeepServer:
			if c.ServerDeleted {
				err = t.purge(ctx, id)
			} else {
				err = t.applyRemote(ctx, id, c.ServerVersion, c.ServerPayload)
			}
			if err == nil {
				err = e.repos.Queue(tx).Dequeue(ctx, id)
			}
		case KeepLocal:
			err = t.setServerVersion(ctx, id, c.ServerVersion)
			if err == nil {
				err = e.repos.Queue(tx).Enqueue(ctx, id, c.Kind, e.now())
			}
		default:
			err = fmt.Errorf("unknown side %q", keep)
		}
		if err != nil {
			return err
		}
		return e.repos.Conflicts(tx).Delete(ctx, id)
	})
}

// Pending lists the queued uploads, oldest first.
func (e *Engine) Pending(ctx context.Context) ([]models.QueueItem, error) {
	return e.repos.Queue(e.db).List(ctx)
}

func (e *Engine) Conflicts(ctx context.Context) ([]*models.Conflict, error) {
	return e.repos.Conflicts(e.db).List(ctx)
}
