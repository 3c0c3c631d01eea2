// Package audit appends privileged-mutation entries to the tenant
// audit log. The pairing with the primary write is deliberately
// non-transactional: the primary effect always wins, and a failed audit
// append is logged loudly instead of rolling anything back.
package audit

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/escaladev/escala/pkg/models"
)

// Actions recorded by the application.
const (
	ActionScheduleSave = "Edição de Escala"
	ActionPromotion    = "Alteração de Cargo"
	ActionMigration    = "Migração de Legado"
	ActionRequestFinal = "Resolução de Solicitação"
)

// Sink is where entries are appended. *database.Tenant satisfies it.
type Sink interface {
	AppendAudit(ctx context.Context, entry models.AuditLogEntry) error
}

// Recorder writes audit entries for a single tenant.
type Recorder struct {
	sink Sink
}

// NewRecorder creates a Recorder over the given sink.
func NewRecorder(sink Sink) *Recorder {
	return &Recorder{sink: sink}
}

// Record appends an entry. Called after the primary write has
// succeeded; failure here never propagates to the caller.
func (r *Recorder) Record(ctx context.Context, adminEmail, action, target string) {
	entry := models.AuditLogEntry{
		AdminEmail: adminEmail,
		Action:     action,
		Target:     target,
		Timestamp:  time.Now(),
	}

	if err := r.sink.AppendAudit(ctx, entry); err != nil {
		log.Error().Err(err).
			Str("admin", adminEmail).
			Str("action", action).
			Str("target", target).
			Msg("audit append failed, primary write retained")
	}
}
