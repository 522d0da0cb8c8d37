package models

import (
	"encoding/json"
	"time"
)

// RecordKind names the synced client collections.
type RecordKind string

const (
	KindWorkout RecordKind = "workout"
	KindGoal    RecordKind = "goal"
)

func (k RecordKind) Valid() bool {
	return k == KindWorkout || k == KindGoal
}

// Record is one synced workout or goal. The payload is opaque JSON owned by
// the client; Version is assigned from users.current_version on every write.
type Record struct {
	ID        string          `json:"id"`
	UserID    string          `json:"-"`
	Kind      RecordKind      `json:"kind"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Version   int64           `json:"version"`
	Deleted   bool            `json:"deleted"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// PushItem is a client change with the server version it was based on.
type PushItem struct {
	ID          string          `json:"id"`
	Kind        RecordKind      `json:"kind"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Deleted     bool            `json:"deleted"`
	BaseVersion int64           `json:"base_version"`
}

// PushResult reports the outcome of one PushItem. Exactly one of Version
// (accepted) or Conflict is meaningful.
type PushResult struct {
	ID            string `json:"id"`
	Accepted      bool   `json:"accepted"`
	Version       int64  `json:"version,omitempty"`
	Conflict      bool   `json:"conflict,omitempty"`
	ServerVersion int64  `json:"server_version,omitempty"`
	Error         string `json:"error,omitempty"`
}

// VideoUpload is a presigned upload slot for a workout video.
type VideoUpload struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
