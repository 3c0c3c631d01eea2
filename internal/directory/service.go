// Package directory covers operations on the tenant user directory,
// currently the promotion flow.
package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/escaladev/escala/internal/audit"
	"github.com/escaladev/escala/internal/roles"
	"github.com/escaladev/escala/pkg/models"
)

var (
	// ErrForbidden marks an actor without promotion rights, a
	// self-promotion attempt, or an untouchable target.
	ErrForbidden = errors.New("forbidden")
)

// Store is the persistence slice for promotions.
// *database.Tenant satisfies it.
type Store interface {
	Profile(ctx context.Context, uid string) (*models.UserProfile, error)
	UpdateRole(ctx context.Context, uid, role string, level int, cargo string) error
}

// Auditor records role changes.
type Auditor interface {
	Record(ctx context.Context, adminEmail, action, target string)
}

// Service runs directory mutations for one tenant.
type Service struct {
	store   Store
	auditor Auditor
}

// NewService creates a Service.
func NewService(store Store, auditor Auditor) *Service {
	return &Service{store: store, auditor: auditor}
}

// Promote overwrites the target's cargo/role/level and appends an audit
// entry. An unknown role key fails before any write; a failed write
// surfaces without an audit entry (write and audit are deliberately
// sequential, primary effect first).
func (s *Service) Promote(ctx context.Context, actorUID, actorEmail string, actorLevel int, targetUID, roleKey string) error {
	if !roles.IsManager(actorLevel) {
		return ErrForbidden
	}
	if targetUID == actorUID {
		return fmt.Errorf("%w: cannot promote yourself", ErrForbidden)
	}

	entry, err := roles.Lookup(roleKey)
	if err != nil {
		return err
	}
	if entry.Level >= 100 {
		return fmt.Errorf("%w: role %q is not assignable", ErrForbidden, roleKey)
	}

	target, err := s.store.Profile(ctx, targetUID)
	if err != nil {
		return err
	}
	if target.Level >= 100 {
		return fmt.Errorf("%w: target holds the top level", ErrForbidden)
	}

	if err := s.store.UpdateRole(ctx, targetUID, entry.Role, entry.Level, entry.Label); err != nil {
		return err
	}

	s.auditor.Record(ctx, actorEmail, audit.ActionPromotion, target.Name)
	return nil
}
