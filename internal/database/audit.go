package database

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"

	"github.com/escaladev/escala/pkg/models"
)

// AppendAudit writes one immutable audit log entry.
func (t *Tenant) AppendAudit(ctx context.Context, entry models.AuditLogEntry) error {
	_, _, err := t.root().Collection(auditCollection).Add(ctx, entry)
	if err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	return nil
}

// AuditLog lists audit entries, newest first.
func (t *Tenant) AuditLog(ctx context.Context, limit int) ([]models.AuditLogEntry, error) {
	docs, err := t.auditQuery(limit).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	return decodeAuditDocs(docs), nil
}

// SubscribeAudit establishes a live query over the audit log.
func (t *Tenant) SubscribeAudit(ctx context.Context, limit int, fn func([]models.AuditLogEntry)) Subscription {
	return subscribe(ctx, t.auditQuery(limit), func(docs []*firestore.DocumentSnapshot) {
		fn(decodeAuditDocs(docs))
	})
}

func (t *Tenant) auditQuery(limit int) firestore.Query {
	q := t.root().Collection(auditCollection).
		OrderBy("timestamp", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}
	return q
}

func decodeAuditDocs(docs []*firestore.DocumentSnapshot) []models.AuditLogEntry {
	entries := make([]models.AuditLogEntry, 0, len(docs))
	for _, doc := range docs {
		var e models.AuditLogEntry
		if err := doc.DataTo(&e); err != nil {
			continue
		}
		e.ID = doc.Ref.ID
		entries = append(entries, e)
	}
	return entries
}
