// Package schedule holds the in-memory schedule state store and the
// month navigator that drives which roster partition is loaded.
package schedule

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/escaladev/escala/internal/database"
	"github.com/escaladev/escala/pkg/models"
)

// Backend is the slice of the persistence layer the store reads and
// writes. *database.Tenant satisfies it.
type Backend interface {
	Roster(ctx context.Context, monthID string) (map[string]models.RosterEntry, error)
	ActiveUsers(ctx context.Context) ([]models.UserProfile, error)
	SaveRosterEntry(ctx context.Context, monthID string, entry models.RosterEntry) error
	SubscribeRoster(ctx context.Context, monthID string, fn func(map[string]models.RosterEntry)) database.Subscription
}

// Auditor records privileged schedule mutations.
type Auditor interface {
	Record(ctx context.Context, adminEmail, action, target string)
}

// Store maps employee uid to schedule record for the selected month.
// Contents are rebuilt wholesale on every month change; readers never
// observe a partial update.
type Store struct {
	backend Backend
	auditor Auditor

	mu      sync.RWMutex
	records map[string]models.ScheduleRecord
	month   MonthRef

	// watchMu serializes subscription replacement so two concurrent
	// month changes cannot both install a listener. It is never held
	// while a push callback runs, which only needs mu.
	watchMu sync.Mutex
	watch   database.Subscription
}

// NewStore creates an empty store over the given backend.
func NewStore(backend Backend, auditor Auditor) *Store {
	return &Store{
		backend: backend,
		auditor: auditor,
		records: make(map[string]models.ScheduleRecord),
	}
}

// merge builds the schedule record set from a roster partition and the
// active-user directory. Records are keyed by uid; roster entries whose
// profile is missing or inactive are dropped, and every active profile
// without a roster entry appears with an empty schedule so managers can
// assign shifts to newly added staff.
func merge(roster map[string]models.RosterEntry, users []models.UserProfile) map[string]models.ScheduleRecord {
	records := make(map[string]models.ScheduleRecord, len(users))

	for _, u := range users {
		rec := models.ScheduleRecord{
			UID:     u.UID,
			Name:    u.Name,
			Cargo:   u.Cargo,
			Horario: u.Horario,
			Level:   u.Level,
		}
		if entry, ok := roster[u.UID]; ok {
			rec.Schedule = entry.Schedule
		} else {
			rec.Schedule = []models.StatusCode{}
		}
		records[u.UID] = rec
	}

	return records
}

// Load queries the month's roster partition and the active-user
// directory, merges them and swaps the store contents in one step. The
// previous contents stay visible until the new load completes.
func (s *Store) Load(ctx context.Context, month MonthRef) error {
	roster, err := s.backend.Roster(ctx, month.ID())
	if err != nil {
		return fmt.Errorf("load roster: %w", err)
	}

	users, err := s.backend.ActiveUsers(ctx)
	if err != nil {
		return fmt.Errorf("load user directory: %w", err)
	}

	records := merge(roster, users)

	s.mu.Lock()
	s.records = records
	s.month = month
	s.mu.Unlock()

	return nil
}

// Month returns the month the current contents belong to.
func (s *Store) Month() MonthRef {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.month
}

// Records returns a snapshot of every schedule record, keyed by uid.
func (s *Store) Records() map[string]models.ScheduleRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]models.ScheduleRecord, len(s.records))
	for uid, rec := range s.records {
		out[uid] = rec
	}
	return out
}

// Record returns one employee's schedule record.
func (s *Store) Record(uid string) (models.ScheduleRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[uid]
	return rec, ok
}

// StatusAt returns the day status for an employee. Day indices outside
// the stored schedule default to F rather than fail.
func (s *Store) StatusAt(uid string, dayIndex int) models.StatusCode {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[uid]
	if !ok || dayIndex < 0 || dayIndex >= len(rec.Schedule) {
		return models.StatusOff
	}
	code := rec.Schedule[dayIndex]
	if !models.ValidStatus(code) {
		return models.StatusOff
	}
	return code
}

// Save persists one employee's schedule for the month and records the
// mutation in the audit log. The roster write is the primary effect;
// audit failure does not roll it back.
func (s *Store) Save(ctx context.Context, month MonthRef, adminEmail string, rec models.ScheduleRecord) error {
	for _, code := range rec.Schedule {
		if !models.ValidStatus(code) {
			return fmt.Errorf("invalid status code %q", code)
		}
	}
	if len(rec.Schedule) > month.Days() {
		return fmt.Errorf("schedule has %d entries for a %d-day month", len(rec.Schedule), month.Days())
	}

	entry := models.RosterEntry{
		UID:      rec.UID,
		Name:     rec.Name,
		Schedule: rec.Schedule,
		SavedBy:  adminEmail,
	}
	if err := s.backend.SaveRosterEntry(ctx, month.ID(), entry); err != nil {
		return err
	}

	s.auditor.Record(ctx, adminEmail, "Edição de Escala", rec.Name)
	return nil
}

// Watch subscribes to the month's roster partition so backend pushes
// refresh the store. The previous month's subscription is cancelled and
// drained before the new one is installed, so a late callback for an
// old month can never overwrite fresher data.
func (s *Store) Watch(ctx context.Context, month MonthRef) {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()

	if s.watch != nil {
		s.watch.Cancel()
		<-s.watch.Done()
	}

	s.watch = s.backend.SubscribeRoster(ctx, month.ID(), func(roster map[string]models.RosterEntry) {
		users, err := s.backend.ActiveUsers(ctx)
		if err != nil {
			log.Error().Err(err).Str("month", month.ID()).Msg("roster push: user directory reload failed")
			return
		}

		records := merge(roster, users)

		s.mu.Lock()
		if s.month == month {
			s.records = records
		}
		s.mu.Unlock()
	})
}

// Unwatch cancels the active roster subscription, if any.
func (s *Store) Unwatch() {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()

	if s.watch != nil {
		s.watch.Cancel()
		<-s.watch.Done()
		s.watch = nil
	}
}
