// Package requests implements the shift-swap, peer-swap and leave
// request workflow: an append-only request collection with a small
// status state machine driven by peer and manager actions.
package requests

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/escaladev/escala/internal/audit"
	"github.com/escaladev/escala/internal/roles"
	"github.com/escaladev/escala/pkg/models"
)

var (
	// ErrValidation marks input rejected before any write.
	ErrValidation = errors.New("validation failed")

	// ErrForbidden marks an actor acting on a request that is not
	// addressed to (or owned by) them.
	ErrForbidden = errors.New("forbidden")

	// ErrBadTransition marks a transition from the wrong status.
	ErrBadTransition = errors.New("invalid status transition")
)

// swapWindowOpensDay: shift-swap requests may only be created strictly
// after day 25 of the month preceding the roster month.
const swapWindowOpensDay = 25

// Store is the persistence slice used by the workflow.
// *database.Tenant satisfies it.
type Store interface {
	AddRequest(ctx context.Context, req models.Request) (string, error)
	Request(ctx context.Context, id string) (*models.Request, error)
	UpdateRequestStatus(ctx context.Context, id, newStatus string) error
	DeleteRequest(ctx context.Context, id string) error
	SetRosterDay(ctx context.Context, monthID, uid string, dayIndex int, code models.StatusCode) error
}

// Auditor records manager resolutions.
type Auditor interface {
	Record(ctx context.Context, adminEmail, action, target string)
}

// Service runs the request workflow for one tenant.
type Service struct {
	store   Store
	auditor Auditor
	now     func() time.Time
}

// NewService creates a Service. now is the clock used for the swap
// window check; pass time.Now outside tests.
func NewService(store Store, auditor Auditor, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, auditor: auditor, now: now}
}

// CreateInput is the collaborator's submission.
type CreateInput struct {
	MonthID      string
	DayIndex     int
	Type         string
	Target       string
	TargetUID    string
	DesiredShift string
	Reason       string
}

// Create validates and writes a new request. Shift-swap requests are
// always addressed to the manager role and start pending_leader;
// peer-swap requests are addressed to a named colleague and start
// pending_peer. Validation failures reject before any write.
func (s *Service) Create(ctx context.Context, requesterName, requesterUID string, in CreateInput) (*models.Request, error) {
	month, err := parseMonthID(in.MonthID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if in.DayIndex < 0 || in.DayIndex >= daysInMonth(month) {
		return nil, fmt.Errorf("%w: day index %d outside month %s", ErrValidation, in.DayIndex, in.MonthID)
	}

	req := models.Request{
		MonthID:      in.MonthID,
		Requester:    requesterName,
		RequesterUID: requesterUID,
		DayIndex:     in.DayIndex,
		Type:         in.Type,
		Target:       in.Target,
		TargetUID:    in.TargetUID,
		DesiredShift: in.DesiredShift,
		Reason:       in.Reason,
		CreatedAt:    s.now(),
	}

	switch in.Type {
	case models.RequestShiftSwap:
		if !swapWindowOpen(s.now(), month) {
			return nil, fmt.Errorf("%w: swap requests open after day %d of %s",
				ErrValidation, swapWindowOpensDay, month.AddDate(0, -1, 0).Format("2006-01"))
		}
		// Addressed to the manager role, never to a colleague.
		managerEntry, _ := roles.Lookup("manager")
		req.Target = managerEntry.Label
		req.TargetUID = ""
		req.Status = models.StatusPendingLeader

	case models.RequestPeerSwap:
		if in.TargetUID == "" {
			return nil, fmt.Errorf("%w: peer swap needs a target colleague", ErrValidation)
		}
		if in.TargetUID == requesterUID {
			return nil, fmt.Errorf("%w: cannot target yourself", ErrValidation)
		}
		req.Status = models.StatusPendingPeer

	case models.RequestLeave:
		if in.Reason == "" {
			return nil, fmt.Errorf("%w: leave request needs a reason", ErrValidation)
		}
		managerEntry, _ := roles.Lookup("manager")
		req.Target = managerEntry.Label
		req.TargetUID = ""
		req.Status = models.StatusPendingLeader

	default:
		return nil, fmt.Errorf("%w: unknown request type %q", ErrValidation, in.Type)
	}

	id, err := s.store.AddRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	req.ID = id
	return &req, nil
}

// PeerApprove moves a peer-swap request from the colleague's inbox to
// the leader queue. Only the addressed colleague may act.
func (s *Service) PeerApprove(ctx context.Context, actorUID, id string) error {
	return s.peerRespond(ctx, actorUID, id, models.StatusPendingLeader)
}

// PeerReject terminates a peer-swap request. No compensating action
// returns it to pending_peer.
func (s *Service) PeerReject(ctx context.Context, actorUID, id string) error {
	return s.peerRespond(ctx, actorUID, id, models.StatusRejected)
}

func (s *Service) peerRespond(ctx context.Context, actorUID, id, newStatus string) error {
	req, err := s.store.Request(ctx, id)
	if err != nil {
		return err
	}
	if req.TargetUID != actorUID {
		return ErrForbidden
	}
	if req.Status != models.StatusPendingPeer {
		return fmt.Errorf("%w: %s is %s", ErrBadTransition, id, req.Status)
	}
	return s.store.UpdateRequestStatus(ctx, id, newStatus)
}

// Delete removes a request. Only the original requester may delete, and
// only while the request is unresolved.
func (s *Service) Delete(ctx context.Context, actorUID, id string) error {
	req, err := s.store.Request(ctx, id)
	if err != nil {
		return err
	}
	if req.RequesterUID != actorUID {
		return ErrForbidden
	}
	if req.Terminal() {
		return fmt.Errorf("%w: %s already %s", ErrBadTransition, id, req.Status)
	}
	return s.store.DeleteRequest(ctx, id)
}

// ManagerApprove resolves a pending_leader request to approved and
// applies the schedule mutation: the requester's day is set to the
// granted status on the roster partition. The roster write and the
// status update are the primary effects; the audit append follows and
// never rolls them back.
func (s *Service) ManagerApprove(ctx context.Context, actorEmail string, actorLevel int, id string) error {
	req, err := s.managerLoad(ctx, actorLevel, id)
	if err != nil {
		return err
	}

	if err := s.store.SetRosterDay(ctx, req.MonthID, req.RequesterUID, req.DayIndex, grantedStatus(req)); err != nil {
		return err
	}
	if err := s.store.UpdateRequestStatus(ctx, id, models.StatusApproved); err != nil {
		return err
	}

	s.auditor.Record(ctx, actorEmail, audit.ActionRequestFinal, req.Requester)
	return nil
}

// ManagerReject resolves a pending_leader request to rejected.
func (s *Service) ManagerReject(ctx context.Context, actorEmail string, actorLevel int, id string) error {
	req, err := s.managerLoad(ctx, actorLevel, id)
	if err != nil {
		return err
	}

	if err := s.store.UpdateRequestStatus(ctx, id, models.StatusRejected); err != nil {
		return err
	}

	s.auditor.Record(ctx, actorEmail, audit.ActionRequestFinal, req.Requester)
	return nil
}

func (s *Service) managerLoad(ctx context.Context, actorLevel int, id string) (*models.Request, error) {
	if !roles.IsManager(actorLevel) {
		return nil, ErrForbidden
	}

	req, err := s.store.Request(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != models.StatusPendingLeader {
		return nil, fmt.Errorf("%w: %s is %s", ErrBadTransition, id, req.Status)
	}
	return req, nil
}

// grantedStatus picks the roster status an approval applies. A desired
// shift that is itself a status code wins; otherwise leave requests
// free the day and swaps mark it working.
func grantedStatus(req *models.Request) models.StatusCode {
	if code := models.StatusCode(req.DesiredShift); models.ValidStatus(code) {
		return code
	}
	if req.Type == models.RequestLeave {
		return models.StatusOff
	}
	return models.StatusWorking
}

// swapWindowOpen reports whether now falls strictly after day 25 of the
// month preceding the roster month.
func swapWindowOpen(now time.Time, rosterMonth time.Time) bool {
	opens := time.Date(rosterMonth.Year(), rosterMonth.Month(), 1, 0, 0, 0, 0, time.UTC).
		AddDate(0, -1, swapWindowOpensDay)
	return !now.Before(opens)
}

func parseMonthID(monthID string) (time.Time, error) {
	t, err := time.Parse("2006-01", monthID)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad month id %q", monthID)
	}
	return t, nil
}

func daysInMonth(month time.Time) int {
	return time.Date(month.Year(), month.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
