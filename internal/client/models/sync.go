package models

import (
	"encoding/json"
	"time"
)

// RecordKind names a synced collection. The values match the server's.
type RecordKind string

const (
	KindWorkout RecordKind = "workout"
	KindGoal    RecordKind = "goal"
)

// Record is a server-side copy of a workout or goal.
type Record struct {
	ID        string          `json:"id"`
	Kind      RecordKind      `json:"kind"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Version   int64           `json:"version"`
	Deleted   bool            `json:"deleted"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// PushItem is one local change sent to POST /sync/push.
type PushItem struct {
	ID          string          `json:"id"`
	Kind        RecordKind      `json:"kind"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Deleted     bool            `json:"deleted"`
	BaseVersion int64           `json:"base_version"`
}

// PushResult is the server's verdict on one PushItem.
type PushResult struct {
	ID            string `json:"id"`
	Accepted      bool   `json:"accepted"`
	Version       int64  `json:"version,omitempty"`
	Conflict      bool   `json:"conflict,omitempty"`
	ServerVersion int64  `json:"server_version,omitempty"`
	Error         string `json:"error,omitempty"`
}

// ChangeSet is the body of GET /sync/changes.
type ChangeSet struct {
	Records []Record `json:"records"`
	Version int64    `json:"version"`
}

// QueueItem is a record id waiting in the local sync queue.
type QueueItem struct {
	RecordID string
	Kind     RecordKind
	QueuedAt time.Time
}

// Conflict is a server change that collided with an unsynced local edit and
// is waiting for the user to pick a side.
type Conflict struct {
	RecordID      string
	Kind          RecordKind
	ServerPayload json.RawMessage
	ServerDeleted bool
	ServerVersion int64
	DetectedAt    time.Time
}
