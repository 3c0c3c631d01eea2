package database

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/escaladev/escala/pkg/models"
)

func (t *Tenant) rosterPartition(monthID string) *firestore.CollectionRef {
	return t.root().Collection(rosterCollection).Doc(monthID).Collection(rosterSubcollection)
}

// Roster reads the full roster partition for one month, keyed by uid.
func (t *Tenant) Roster(ctx context.Context, monthID string) (map[string]models.RosterEntry, error) {
	docs, err := t.rosterPartition(monthID).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("read roster %s: %w", monthID, err)
	}

	entries := make(map[string]models.RosterEntry, len(docs))
	for _, doc := range docs {
		var e models.RosterEntry
		if err := doc.DataTo(&e); err != nil {
			return nil, fmt.Errorf("decode roster %s/%s: %w", monthID, doc.Ref.ID, err)
		}
		e.UID = doc.Ref.ID
		entries[e.UID] = e
	}
	return entries, nil
}

// SaveRosterEntry persists one employee's schedule for a month. The
// whole array is written on explicit save, not per edit.
func (t *Tenant) SaveRosterEntry(ctx context.Context, monthID string, entry models.RosterEntry) error {
	entry.SavedAt = time.Now()
	_, err := t.rosterPartition(monthID).Doc(entry.UID).Set(ctx, entry)
	if err != nil {
		return fmt.Errorf("save roster entry: %w", err)
	}
	return nil
}

// SetRosterDay updates a single day slot of an existing roster entry,
// used when a manager resolution mutates the schedule directly.
func (t *Tenant) SetRosterDay(ctx context.Context, monthID, uid string, dayIndex int, code models.StatusCode) error {
	docRef := t.rosterPartition(monthID).Doc(uid)

	// A missing entry starts from an empty schedule; any other read
	// failure must abort, or the Set below would overwrite the stored
	// month with a padded stub.
	doc, err := docRef.Get(ctx)
	var entry models.RosterEntry
	switch {
	case err == nil:
		if err := doc.DataTo(&entry); err != nil {
			return fmt.Errorf("decode roster entry: %w", err)
		}
	case status.Code(err) == codes.NotFound:
	default:
		return fmt.Errorf("get roster entry: %w", err)
	}
	entry.UID = uid

	for len(entry.Schedule) <= dayIndex {
		entry.Schedule = append(entry.Schedule, models.StatusOff)
	}
	entry.Schedule[dayIndex] = code
	entry.SavedAt = time.Now()

	if _, err := docRef.Set(ctx, entry); err != nil {
		return fmt.Errorf("set roster day: %w", err)
	}
	return nil
}

// SubscribeRoster establishes a live query over a month's roster
// partition. Every backend push delivers the full, re-read partition.
func (t *Tenant) SubscribeRoster(ctx context.Context, monthID string, fn func(map[string]models.RosterEntry)) Subscription {
	query := t.rosterPartition(monthID).Query
	return subscribe(ctx, query, func(docs []*firestore.DocumentSnapshot) {
		entries := make(map[string]models.RosterEntry, len(docs))
		for _, doc := range docs {
			var e models.RosterEntry
			if err := doc.DataTo(&e); err != nil {
				continue
			}
			e.UID = doc.Ref.ID
			entries[e.UID] = e
		}
		fn(entries)
	})
}
