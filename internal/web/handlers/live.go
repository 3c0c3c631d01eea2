package handlers

import (
	"context"
	"sync"

	"github.com/escaladev/escala/internal/database"
	"github.com/escaladev/escala/pkg/models"
)

// requestFeed keeps one user's request list current through a live
// query. The backend delivers an initial snapshot and every later
// change; readers block until that first snapshot has landed.
type requestFeed struct {
	sub   database.Subscription
	ready chan struct{}
	once  sync.Once

	mu   sync.RWMutex
	list []models.Request
}

func newRequestFeed(subscribe func(fn func([]models.Request)) database.Subscription) *requestFeed {
	f := &requestFeed{ready: make(chan struct{})}
	f.sub = subscribe(func(reqs []models.Request) {
		f.mu.Lock()
		f.list = reqs
		f.mu.Unlock()
		f.once.Do(func() { close(f.ready) })
	})
	return f
}

// Wait returns the current list, blocking until the initial snapshot
// arrives or ctx ends.
func (f *requestFeed) Wait(ctx context.Context) ([]models.Request, error) {
	select {
	case <-f.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]models.Request(nil), f.list...), nil
}

func (f *requestFeed) Cancel() { f.sub.Cancel() }

// auditFeed mirrors requestFeed for the audit trail.
type auditFeed struct {
	sub   database.Subscription
	ready chan struct{}
	once  sync.Once

	mu   sync.RWMutex
	list []models.AuditLogEntry
}

func newAuditFeed(subscribe func(fn func([]models.AuditLogEntry)) database.Subscription) *auditFeed {
	f := &auditFeed{ready: make(chan struct{})}
	f.sub = subscribe(func(entries []models.AuditLogEntry) {
		f.mu.Lock()
		f.list = entries
		f.mu.Unlock()
		f.once.Do(func() { close(f.ready) })
	})
	return f
}

func (f *auditFeed) Wait(ctx context.Context) ([]models.AuditLogEntry, error) {
	select {
	case <-f.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]models.AuditLogEntry(nil), f.list...), nil
}

func (f *auditFeed) Cancel() { f.sub.Cancel() }
