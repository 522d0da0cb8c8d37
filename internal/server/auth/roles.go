package auth

import (
	"fmt"
	"strings"
)

// Role is the coarse authorization level stored on each account.
type Role string

const (
	RoleAthlete Role = "athlete"
	RoleCoach   Role = "coach"
	RoleAdmin   Role = "admin"
)

// canAccess lists, for every actor role, the resource roles it may reach.
// It is a relation, not a rank: new roles get their own row.
var canAccess = map[Role]map[Role]bool{
	RoleAdmin:   {RoleAdmin: true, RoleCoach: true, RoleAthlete: true},
	RoleCoach:   {RoleCoach: true, RoleAthlete: true},
	RoleAthlete: {RoleAthlete: true},
}

// ParseRole is case-insensitive and ignores surrounding spaces.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := canAccess[r]; !ok {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

func (r Role) Valid() bool {
	_, ok := canAccess[r]
	return ok
}

func (r Role) String() string { return string(r) }

// CanAccess reports whether an actor with this role may use a resource
// that requires the given role.
func (r Role) CanAccess(required Role) bool {
	return CanAccess(r, required)
}

func CanAccess(actor, required Role) bool {
	return canAccess[actor][required]
}
