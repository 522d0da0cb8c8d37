// Package models defines the records kept in the coach CLI's local store and
// the wire types exchanged with the trainlog API.
package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Exercise types recognised by the CLI. Other values are stored as given.
const (
	ExerciseRunning  = "running"
	ExerciseCycling  = "cycling"
	ExerciseSwimming = "swimming"
	ExerciseWalking  = "walking"
	ExerciseStrength = "strength"
)

// Workout is a single logged training activity.
type Workout struct {
	// ID is a client-generated UUID; the server keys records by it.
	ID string `json:"id"`

	// Date is when the workout took place, in UTC.
	Date time.Time `json:"date"`

	ExerciseType    string   `json:"exercise_type"`
	DurationMinutes *int     `json:"duration_minutes,omitempty"`
	DistanceKm      *float64 `json:"distance_km,omitempty"`
	Notes           *string  `json:"notes,omitempty"`

	// VideoKey is the object key of an attached video, if any.
	VideoKey *string `json:"video_key,omitempty"`

	// Synced is false while the record has local changes the server has not
	// acknowledged.
	Synced bool `json:"-"`

	// Deleted marks a tombstone awaiting upload.
	Deleted bool `json:"-"`

	// ServerVersion is the last server version this copy is based on.
	ServerVersion int64 `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewWorkout returns an unsynced workout dated now.
func NewWorkout(exerciseType string, duration *int, distance *float64, notes *string, now time.Time) *Workout {
	now = now.UTC()
	return &Workout{
		ID:              uuid.NewString(),
		Date:            now,
		ExerciseType:    strings.ToLower(strings.TrimSpace(exerciseType)),
		DurationMinutes: duration,
		DistanceKm:      distance,
		Notes:           notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// WorkoutPatch lists the fields an edit may change. Nil fields are kept.
type WorkoutPatch struct {
	ExerciseType    *string
	DurationMinutes *int
	DistanceKm      *float64
	Notes           *string
	Date            *time.Time
}

// Apply copies the non-nil fields of p into w.
func (w *Workout) Apply(p WorkoutPatch) {
	if p.ExerciseType != nil {
		w.ExerciseType = strings.ToLower(strings.TrimSpace(*p.ExerciseType))
	}
	if p.DurationMinutes != nil {
		w.DurationMinutes = p.DurationMinutes
	}
	if p.DistanceKm != nil {
		w.DistanceKm = p.DistanceKm
	}
	if p.Notes != nil {
		w.Notes = p.Notes
	}
	if p.Date != nil {
		w.Date = p.Date.UTC()
	}
}

// Validate checks the fields a user can get wrong.
func (w *Workout) Validate() error {
	if w.ExerciseType == "" {
		return fmt.Errorf("exercise type is required")
	}
	if w.DurationMinutes != nil && *w.DurationMinutes < 0 {
		return fmt.Errorf("duration must not be negative")
	}
	if w.DistanceKm != nil && *w.DistanceKm < 0 {
		return fmt.Errorf("distance must not be negative")
	}
	return nil
}

// Payload is the JSON body pushed to the server for this workout.
func (w *Workout) Payload() (json.RawMessage, error) {
	return json.Marshal(w)
}

// WorkoutFromPayload decodes a server payload into a workout with the given id.
func WorkoutFromPayload(id string, payload json.RawMessage) (*Workout, error) {
	var w Workout
	if err := json.Unmarshal(payload, &w); err != nil {
		return nil, fmt.Errorf("decode workout %s: %w", id, err)
	}
	w.ID = id
	return &w, nil
}

// WorkoutFilter narrows List. Zero values do not filter.
type WorkoutFilter struct {
	ExerciseType string
	From         *time.Time
	To           *time.Time
	Synced       *bool
	Limit        int
}
