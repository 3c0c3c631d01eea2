// Package invites manages tenant join invitations. At most one invite
// is active per tenant; creation enforces this by deactivating every
// currently active invite before writing the new one.
package invites

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/escaladev/escala/pkg/models"
)

// Store is the persistence slice. *database.Tenant satisfies it.
type Store interface {
	ActiveInvites(ctx context.Context) ([]models.Invite, error)
	SetInvite(ctx context.Context, inv models.Invite) error
	DeactivateInvite(ctx context.Context, code string) error
}

// Service manages invites for one tenant.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService creates a Service.
func NewService(store Store, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, now: now}
}

// Create issues a fresh invite and retires any active predecessors.
// Concurrent creates can interleave between the query and the writes;
// the loser is retired on the next create.
func (s *Service) Create(ctx context.Context, createdBy string) (*models.Invite, error) {
	active, err := s.store.ActiveInvites(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active invites: %w", err)
	}
	for _, inv := range active {
		if err := s.store.DeactivateInvite(ctx, inv.Code); err != nil {
			return nil, fmt.Errorf("retire invite %s: %w", inv.Code, err)
		}
	}

	inv := models.Invite{
		Code:      uuid.New().String(),
		CreatedBy: createdBy,
		CreatedAt: s.now(),
		Active:    true,
	}
	if err := s.store.SetInvite(ctx, inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// Active returns the current active invite, or nil when none exists.
// If several are active (a leftover race), the newest wins.
func (s *Service) Active(ctx context.Context) (*models.Invite, error) {
	active, err := s.store.ActiveInvites(ctx)
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return nil, nil
	}

	newest := active[0]
	for _, inv := range active[1:] {
		if inv.CreatedAt.After(newest.CreatedAt) {
			newest = inv
		}
	}
	return &newest, nil
}

// Revoke deactivates an invite by code.
func (s *Service) Revoke(ctx context.Context, code string) error {
	return s.store.DeactivateInvite(ctx, code)
}
