// Package migration implements the one-shot batch copy from the two
// legacy collections into the unified user collection.
package migration

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/escaladev/escala/internal/audit"
	"github.com/escaladev/escala/internal/roles"
	"github.com/escaladev/escala/pkg/models"
)

// Source is the persistence slice the tool reads and writes.
// *database.Tenant satisfies it.
type Source interface {
	LegacyCollaborators(ctx context.Context) (map[string]models.LegacyUser, error)
	LegacyAdministrators(ctx context.Context) (map[string]models.LegacyUser, error)
	MergeProfile(ctx context.Context, uid string, fields map[string]interface{}) error
}

// Auditor records the completed run.
type Auditor interface {
	Record(ctx context.Context, adminEmail, action, target string)
}

// Tool copies legacy documents into the users collection.
type Tool struct {
	source  Source
	auditor Auditor
	now     func() time.Time
}

// New creates the migration tool.
func New(source Source, auditor Auditor, now func() time.Time) *Tool {
	if now == nil {
		now = time.Now
	}
	return &Tool{source: source, auditor: auditor, now: now}
}

// Run processes plain collaborators first, then administrators. Each
// document is upsert-merged into users with the fixed role and level of
// its source collection and stamped with the migration timestamp. Any
// error aborts the whole run; a re-run re-processes already-migrated
// documents, which the per-document merge makes safe apart from the
// advancing timestamp. Returns the number of migrated documents.
func (t *Tool) Run(ctx context.Context, adminEmail string) (int, error) {
	collaborators, err := t.source.LegacyCollaborators(ctx)
	if err != nil {
		return 0, fmt.Errorf("read legacy collaborators: %w", err)
	}

	migrated := 0
	if err := t.migrateBatch(ctx, collaborators, "collaborator", &migrated); err != nil {
		return migrated, err
	}

	administrators, err := t.source.LegacyAdministrators(ctx)
	if err != nil {
		return migrated, fmt.Errorf("read legacy administrators: %w", err)
	}
	if err := t.migrateBatch(ctx, administrators, "manager", &migrated); err != nil {
		return migrated, err
	}

	t.auditor.Record(ctx, adminEmail, audit.ActionMigration, fmt.Sprintf("%d documentos", migrated))
	return migrated, nil
}

func (t *Tool) migrateBatch(ctx context.Context, docs map[string]models.LegacyUser, roleKey string, migrated *int) error {
	entry, err := roles.Lookup(roleKey)
	if err != nil {
		return err
	}

	// Deterministic order so an aborted run fails at a stable point.
	uids := make([]string, 0, len(docs))
	for uid := range docs {
		uids = append(uids, uid)
	}
	sort.Strings(uids)

	for _, uid := range uids {
		fields := mapLegacy(docs[uid], entry, t.now())
		if err := t.source.MergeProfile(ctx, uid, fields); err != nil {
			return fmt.Errorf("migrate %s: %w", uid, err)
		}
		*migrated++
	}
	return nil
}

// mapLegacy translates the old field names into the unified schema.
func mapLegacy(lu models.LegacyUser, entry roles.Entry, now time.Time) map[string]interface{} {
	cargo := lu.Funcao
	if cargo == "" {
		cargo = entry.Label
	}

	return map[string]interface{}{
		"name":       lu.Nome,
		"email":      lu.Email,
		"cargo":      cargo,
		"setorId":    lu.Setor,
		"horario":    lu.Turno,
		"role":       entry.Role,
		"level":      entry.Level,
		"active":     true,
		"migratedAt": now,
	}
}
