package syncer

import "github.com/dmitrijs2005/trainlog/internal/client/models"

// Change identifies a record moved in either direction.
type Change struct {
	ID      string
	Kind    models.RecordKind
	Deleted bool

	// Version is the server version; zero for dry-run uploads.
	Version int64
}

// Rejection is an upload the server did not accept. The record stays dirty.
type Rejection struct {
	ID     string
	Kind   models.RecordKind
	Reason string
}

type ConflictReport struct {
	Change
	Strategy Strategy
}

// Report describes a sync run. In a dry run Uploaded, Downloaded and
// Conflicts list what would have happened.
type Report struct {
	DryRun     bool
	Uploaded   []Change
	Rejected   []Rejection
	Downloaded []Change
	Conflicts  []ConflictReport

	// Version is the server version the local store is now based on.
	Version int64
}

// Empty reports whether the run had nothing to do.
func (r *Report) Empty() bool {
	return len(r.Uploaded) == 0 && len(r.Rejected) == 0 && len(r.Downloaded) == 0 && len(r.Conflicts) == 0
}
