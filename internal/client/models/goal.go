package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

type GoalType string

const (
	GoalDistance  GoalType = "distance"
	GoalDuration  GoalType = "duration"
	GoalEvent     GoalType = "event"
	GoalFrequency GoalType = "frequency"
)

// ParseGoalType accepts the goal type names case-insensitively.
func ParseGoalType(s string) (GoalType, error) {
	switch t := GoalType(strings.ToLower(strings.TrimSpace(s))); t {
	case GoalDistance, GoalDuration, GoalEvent, GoalFrequency:
		return t, nil
	default:
		return "", fmt.Errorf("invalid goal type: %q", s)
	}
}

// Goal is a training target, e.g. "run 100 km before June".
type Goal struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	GoalType   GoalType  `json:"goal_type"`
	TargetDate time.Time `json:"target_date"`

	// TargetValue is in km for distance goals, minutes for duration goals
	// and workouts for frequency goals.
	TargetValue  *float64 `json:"target_value,omitempty"`
	CurrentValue float64  `json:"current_value"`

	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Notes       *string    `json:"notes,omitempty"`

	Synced        bool  `json:"-"`
	Deleted       bool  `json:"-"`
	ServerVersion int64 `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewGoal(title string, goalType GoalType, targetDate time.Time, target *float64, notes *string, now time.Time) *Goal {
	now = now.UTC()
	return &Goal{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(title),
		GoalType:    goalType,
		TargetDate:  targetDate.UTC(),
		TargetValue: target,
		Notes:       notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// GoalPatch lists the fields an update may change. Nil fields are kept.
type GoalPatch struct {
	Title        *string
	TargetDate   *time.Time
	TargetValue  *float64
	CurrentValue *float64
	Notes        *string
}

func (g *Goal) Apply(p GoalPatch) {
	if p.Title != nil {
		g.Title = strings.TrimSpace(*p.Title)
	}
	if p.TargetDate != nil {
		g.TargetDate = p.TargetDate.UTC()
	}
	if p.TargetValue != nil {
		g.TargetValue = p.TargetValue
	}
	if p.CurrentValue != nil {
		g.CurrentValue = *p.CurrentValue
	}
	if p.Notes != nil {
		g.Notes = p.Notes
	}
}

func (g *Goal) Validate() error {
	if g.Title == "" {
		return fmt.Errorf("title is required")
	}
	if _, err := ParseGoalType(string(g.GoalType)); err != nil {
		return err
	}
	if g.TargetValue != nil && *g.TargetValue < 0 {
		return fmt.Errorf("target value must not be negative")
	}
	return nil
}

// MarkComplete flags the goal as done at now.
func (g *Goal) MarkComplete(now time.Time) {
	now = now.UTC()
	g.Completed = true
	g.CompletedAt = &now
}

// ProgressPercentage is current/target as a percentage capped at 100. It is
// 0 when the goal has no positive target.
func (g *Goal) ProgressPercentage() float64 {
	if g.TargetValue == nil || *g.TargetValue <= 0 {
		return 0
	}
	return math.Min(g.CurrentValue / *g.TargetValue * 100, 100)
}

// DaysRemaining is the number of whole days from now until the target date;
// negative once the date has passed.
func (g *Goal) DaysRemaining(now time.Time) int {
	return int(g.TargetDate.Sub(now).Hours() / 24)
}

func (g *Goal) Payload() (json.RawMessage, error) {
	return json.Marshal(g)
}

func GoalFromPayload(id string, payload json.RawMessage) (*Goal, error) {
	var g Goal
	if err := json.Unmarshal(payload, &g); err != nil {
		return nil, fmt.Errorf("decode goal %s: %w", id, err)
	}
	g.ID = id
	return &g, nil
}

// GoalFilter narrows List. Zero values do not filter.
type GoalFilter struct {
	Completed *bool
	GoalType  GoalType
}
