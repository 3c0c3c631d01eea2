package database

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"

	"github.com/escaladev/escala/pkg/models"
)

// ActiveInvites lists every invite still marked active.
func (t *Tenant) ActiveInvites(ctx context.Context) ([]models.Invite, error) {
	docs, err := t.root().Collection(invitesCollection).
		Where("active", "==", true).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("query invites: %w", err)
	}

	invites := make([]models.Invite, 0, len(docs))
	for _, doc := range docs {
		var inv models.Invite
		if err := doc.DataTo(&inv); err != nil {
			return nil, fmt.Errorf("decode invite %s: %w", doc.Ref.ID, err)
		}
		inv.Code = doc.Ref.ID
		invites = append(invites, inv)
	}
	return invites, nil
}

// SetInvite writes an invite under its code.
func (t *Tenant) SetInvite(ctx context.Context, inv models.Invite) error {
	_, err := t.root().Collection(invitesCollection).Doc(inv.Code).Set(ctx, inv)
	if err != nil {
		return fmt.Errorf("set invite: %w", err)
	}
	return nil
}

// DeactivateInvite flips an invite's active flag off.
func (t *Tenant) DeactivateInvite(ctx context.Context, code string) error {
	_, err := t.root().Collection(invitesCollection).Doc(code).Update(ctx, []firestore.Update{
		{Path: "active", Value: false},
	})
	if err != nil {
		return fmt.Errorf("deactivate invite: %w", err)
	}
	return nil
}
