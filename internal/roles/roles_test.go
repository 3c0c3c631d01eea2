package roles

import (
	"errors"
	"testing"
)

func TestIsManager_BoundaryAt40(t *testing.T) {
	tests := []struct {
		level int
		want  bool
	}{
		{0, false},
		{10, false},
		{30, false},
		{39, false},
		{40, true},
		{50, true},
		{70, true},
		{100, true},
	}

	for _, tt := range tests {
		if got := IsManager(tt.level); got != tt.want {
			t.Errorf("IsManager(%d) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestCanSee_Monotonic(t *testing.T) {
	levels := []int{0, 10, 30, 40, 50, 70, 90, 100}

	// Raising the user level never revokes visibility.
	for _, required := range levels {
		prev := false
		for _, user := range levels {
			got := CanSee(user, required)
			if prev && !got {
				t.Errorf("CanSee(%d, %d) = false after lower level saw it", user, required)
			}
			prev = got
		}
	}

	// Raising the required level never grants visibility.
	for _, user := range levels {
		prev := true
		for _, required := range levels {
			got := CanSee(user, required)
			if !prev && got {
				t.Errorf("CanSee(%d, %d) = true after lower requirement denied it", user, required)
			}
			prev = got
		}
	}
}

func TestLookup(t *testing.T) {
	e, err := Lookup("manager")
	if err != nil {
		t.Fatalf("Lookup(manager): %v", err)
	}
	if e.Level != 70 || e.Label != "Gerente" {
		t.Errorf("Lookup(manager) = %+v, want level 70 / Gerente", e)
	}

	if _, err := Lookup("wizard"); !errors.Is(err, ErrUnknownRole) {
		t.Errorf("Lookup(wizard) error = %v, want ErrUnknownRole", err)
	}
}

func TestAssignable_ExcludesOwner(t *testing.T) {
	for _, e := range Assignable() {
		if e.Level >= 100 {
			t.Errorf("Assignable included %q (level %d)", e.Role, e.Level)
		}
	}
	if len(Assignable()) != len(All())-1 {
		t.Errorf("Assignable length = %d, want %d", len(Assignable()), len(All())-1)
	}
}
