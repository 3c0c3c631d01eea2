package database

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/escaladev/escala/pkg/models"
)

// Profile fetches one tenant-scoped user profile.
// Returns ErrNotFound when the document does not exist.
func (t *Tenant) Profile(ctx context.Context, uid string) (*models.UserProfile, error) {
	doc, err := t.root().Collection(usersCollection).Doc(uid).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}

	var p models.UserProfile
	if err := doc.DataTo(&p); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	p.UID = doc.Ref.ID
	return &p, nil
}

// ProfileIn fetches a profile from a specific tenant partition without
// a prior Tenant handle. Used by identity resolution, which discovers
// the tenant and the profile in one pass.
func (db *DB) ProfileIn(ctx context.Context, companyID, uid string) (*models.UserProfile, error) {
	t, err := db.Tenant(companyID)
	if err != nil {
		return nil, err
	}
	return t.Profile(ctx, uid)
}

// ActiveUsers returns every active profile in the tenant directory.
func (t *Tenant) ActiveUsers(ctx context.Context) ([]models.UserProfile, error) {
	docs, err := t.root().Collection(usersCollection).
		Where("active", "==", true).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("query active users: %w", err)
	}

	users := make([]models.UserProfile, 0, len(docs))
	for _, doc := range docs {
		var p models.UserProfile
		if err := doc.DataTo(&p); err != nil {
			return nil, fmt.Errorf("decode profile %s: %w", doc.Ref.ID, err)
		}
		p.UID = doc.Ref.ID
		users = append(users, p)
	}
	return users, nil
}

// MergeProfile upsert-merges fields into a user profile document.
func (t *Tenant) MergeProfile(ctx context.Context, uid string, fields map[string]interface{}) error {
	_, err := t.root().Collection(usersCollection).Doc(uid).
		Set(ctx, fields, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("merge profile: %w", err)
	}
	return nil
}

// UpdateRole overwrites the cargo/role/level fields of a profile.
func (t *Tenant) UpdateRole(ctx context.Context, uid, role string, level int, cargo string) error {
	_, err := t.root().Collection(usersCollection).Doc(uid).Update(ctx, []firestore.Update{
		{Path: "role", Value: role},
		{Path: "level", Value: level},
		{Path: "cargo", Value: cargo},
	})
	if err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	return nil
}

// LegacyCollaborators reads the pre-unification collaborator collection.
func (t *Tenant) LegacyCollaborators(ctx context.Context) (map[string]models.LegacyUser, error) {
	return t.legacyCollection(ctx, legacyCollaborators)
}

// LegacyAdministrators reads the pre-unification administrator collection.
func (t *Tenant) LegacyAdministrators(ctx context.Context) (map[string]models.LegacyUser, error) {
	return t.legacyCollection(ctx, legacyAdministrators)
}

func (t *Tenant) legacyCollection(ctx context.Context, name string) (map[string]models.LegacyUser, error) {
	docs, err := t.root().Collection(name).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	out := make(map[string]models.LegacyUser, len(docs))
	for _, doc := range docs {
		var lu models.LegacyUser
		if err := doc.DataTo(&lu); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", name, doc.Ref.ID, err)
		}
		out[doc.Ref.ID] = lu
	}
	return out, nil
}
