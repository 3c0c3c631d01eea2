// Package roles defines the fixed role hierarchy and the predicates
// that gate feature visibility and mutation rights.
package roles

import "fmt"

// Entry is one row of the hierarchy table.
type Entry struct {
	Role  string `json:"role"`
	Level int    `json:"level"`
	Label string `json:"label"`
}

// ManagerLevel is the threshold at which a user gains the
// administrative view (dual mode).
const ManagerLevel = 40

// Feature tiers unlocked by CanSee.
const (
	TierSupervisor = 30
	TierManagement = 50
	TierDirector   = 90
)

// hierarchy is ordered from lowest to highest level.
var hierarchy = []Entry{
	{Role: "collaborator", Level: 10, Label: "Colaborador"},
	{Role: "supervisor", Level: 30, Label: "Supervisor"},
	{Role: "coordinator", Level: 50, Label: "Coordenador"},
	{Role: "manager", Level: 70, Label: "Gerente"},
	{Role: "director", Level: 90, Label: "Diretor"},
	{Role: "owner", Level: 100, Label: "Proprietário"},
}

// ErrUnknownRole is returned by Lookup for a key outside the table.
var ErrUnknownRole = fmt.Errorf("unknown role")

// Lookup returns the hierarchy entry for a role key.
func Lookup(role string) (Entry, error) {
	for _, e := range hierarchy {
		if e.Role == role {
			return e, nil
		}
	}
	return Entry{}, fmt.Errorf("%w: %q", ErrUnknownRole, role)
}

// All returns the full hierarchy, lowest level first.
func All() []Entry {
	out := make([]Entry, len(hierarchy))
	copy(out, hierarchy)
	return out
}

// Assignable returns the roles offered by the promotion picker
// (everything below the owner level).
func Assignable() []Entry {
	var out []Entry
	for _, e := range hierarchy {
		if e.Level < 100 {
			out = append(out, e)
		}
	}
	return out
}

// IsManager reports whether a level grants the administrative view.
func IsManager(level int) bool {
	return level >= ManagerLevel
}

// CanSee is the generic feature gate: a user sees a feature when their
// level meets the feature's required level.
func CanSee(userLevel, requiredLevel int) bool {
	return userLevel >= requiredLevel
}
