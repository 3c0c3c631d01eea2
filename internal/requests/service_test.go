package requests

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/escaladev/escala/pkg/models"
)

type fakeStore struct {
	reqs   map[string]*models.Request
	roster map[string]models.StatusCode // "monthID/uid/day" -> code
	nextID int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		reqs:   make(map[string]*models.Request),
		roster: make(map[string]models.StatusCode),
	}
}

func (f *fakeStore) AddRequest(_ context.Context, req models.Request) (string, error) {
	f.nextID++
	id := fmt.Sprintf("r%d", f.nextID)
	req.ID = id
	f.reqs[id] = &req
	return id, nil
}

func (f *fakeStore) Request(_ context.Context, id string) (*models.Request, error) {
	req, ok := f.reqs[id]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := *req
	return &cp, nil
}

func (f *fakeStore) UpdateRequestStatus(_ context.Context, id, newStatus string) error {
	req, ok := f.reqs[id]
	if !ok {
		return errors.New("not found")
	}
	req.Status = newStatus
	return nil
}

func (f *fakeStore) DeleteRequest(_ context.Context, id string) error {
	delete(f.reqs, id)
	return nil
}

func (f *fakeStore) SetRosterDay(_ context.Context, monthID, uid string, dayIndex int, code models.StatusCode) error {
	f.roster[fmt.Sprintf("%s/%s/%d", monthID, uid, dayIndex)] = code
	return nil
}

type recordingAuditor struct{ actions []string }

func (a *recordingAuditor) Record(_ context.Context, _, action, target string) {
	a.actions = append(a.actions, action+"/"+target)
}

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestCreate_ShiftSwap_WindowBoundary(t *testing.T) {
	tests := []struct {
		name    string
		now     time.Time
		wantErr bool
	}{
		{"day 25 rejected", time.Date(2025, time.May, 25, 23, 59, 0, 0, time.UTC), true},
		{"day 26 accepted", time.Date(2025, time.May, 26, 0, 0, 0, 0, time.UTC), false},
		{"mid June accepted", time.Date(2025, time.June, 10, 9, 0, 0, 0, time.UTC), false},
		{"early May rejected", time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			svc := NewService(store, &recordingAuditor{}, fixedNow(tt.now))

			_, err := svc.Create(context.Background(), "Ana", "u1", CreateInput{
				MonthID:  "2025-06",
				DayIndex: 4,
				Type:     models.RequestShiftSwap,
			})

			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Errorf("error = %v, want ErrValidation", err)
				}
				if len(store.reqs) != 0 {
					t.Error("rejected request must not be written")
				}
				return
			}
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
		})
	}
}

func TestCreate_ShiftSwap_AddressedToManagerRole(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, &recordingAuditor{}, fixedNow(time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)))

	req, err := svc.Create(context.Background(), "Ana", "u1", CreateInput{
		MonthID:   "2025-06",
		DayIndex:  0,
		Type:      models.RequestShiftSwap,
		Target:    "Bruno", // ignored: swap always targets the manager role
		TargetUID: "u2",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if req.Status != models.StatusPendingLeader {
		t.Errorf("status = %q, want pending_leader", req.Status)
	}
	if req.Target != "Gerente" || req.TargetUID != "" {
		t.Errorf("target = %q/%q, want manager role", req.Target, req.TargetUID)
	}
}

func TestCreate_PeerSwap_Lifecycle(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, &recordingAuditor{}, fixedNow(time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)))
	ctx := context.Background()

	req, err := svc.Create(ctx, "Ana", "u1", CreateInput{
		MonthID:   "2025-06",
		DayIndex:  2,
		Type:      models.RequestPeerSwap,
		Target:    "Bruno",
		TargetUID: "u2",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if req.Status != models.StatusPendingPeer {
		t.Fatalf("fresh peer swap status = %q, want pending_peer", req.Status)
	}

	// Only the addressed colleague may respond.
	if err := svc.PeerApprove(ctx, "u3", req.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("stranger approve error = %v, want ErrForbidden", err)
	}

	if err := svc.PeerApprove(ctx, "u2", req.ID); err != nil {
		t.Fatalf("PeerApprove: %v", err)
	}
	got, _ := store.Request(ctx, req.ID)
	if got.Status != models.StatusPendingLeader {
		t.Errorf("after approve status = %q, want pending_leader", got.Status)
	}

	// No compensating action back to pending_peer.
	if err := svc.PeerReject(ctx, "u2", req.ID); !errors.Is(err, ErrBadTransition) {
		t.Errorf("re-respond error = %v, want ErrBadTransition", err)
	}
}

func TestPeerReject_IsTerminal(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, &recordingAuditor{}, fixedNow(time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)))
	ctx := context.Background()

	req, err := svc.Create(ctx, "Ana", "u1", CreateInput{
		MonthID: "2025-06", DayIndex: 2, Type: models.RequestPeerSwap, TargetUID: "u2",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := svc.PeerReject(ctx, "u2", req.ID); err != nil {
		t.Fatalf("PeerReject: %v", err)
	}
	got, _ := store.Request(ctx, req.ID)
	if got.Status != models.StatusRejected {
		t.Fatalf("status = %q, want rejected", got.Status)
	}

	if err := svc.PeerApprove(ctx, "u2", req.ID); !errors.Is(err, ErrBadTransition) {
		t.Errorf("approve after reject error = %v, want ErrBadTransition", err)
	}
}

func TestDelete_OnlyRequesterWhileUnresolved(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, &recordingAuditor{}, fixedNow(time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)))
	ctx := context.Background()

	req, err := svc.Create(ctx, "Ana", "u1", CreateInput{
		MonthID: "2025-06", DayIndex: 2, Type: models.RequestShiftSwap,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := svc.Delete(ctx, "u2", req.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("stranger delete error = %v, want ErrForbidden", err)
	}

	// Deleting while pending_leader is allowed, even if a manager may be
	// reviewing it.
	if err := svc.Delete(ctx, "u1", req.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(store.reqs) != 0 {
		t.Error("request still present after delete")
	}
}

func TestManagerApprove_AppliesScheduleMutation(t *testing.T) {
	store := newFakeStore()
	auditor := &recordingAuditor{}
	svc := NewService(store, auditor, fixedNow(time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)))
	ctx := context.Background()

	req, err := svc.Create(ctx, "Ana", "u1", CreateInput{
		MonthID: "2025-06", DayIndex: 9, Type: models.RequestLeave, Reason: "consulta médica",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// A collaborator cannot resolve.
	if err := svc.ManagerApprove(ctx, "ana@acme.com", 10, req.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("collaborator approve error = %v, want ErrForbidden", err)
	}

	if err := svc.ManagerApprove(ctx, "chefe@acme.com", 70, req.ID); err != nil {
		t.Fatalf("ManagerApprove: %v", err)
	}

	got, _ := store.Request(ctx, req.ID)
	if got.Status != models.StatusApproved {
		t.Errorf("status = %q, want approved", got.Status)
	}
	if code := store.roster["2025-06/u1/9"]; code != models.StatusOff {
		t.Errorf("roster day = %q, want F for approved leave", code)
	}
	if len(auditor.actions) != 1 {
		t.Errorf("audit actions = %v, want one resolution entry", auditor.actions)
	}

	// Terminal: cannot resolve again.
	if err := svc.ManagerReject(ctx, "chefe@acme.com", 70, req.ID); !errors.Is(err, ErrBadTransition) {
		t.Errorf("re-resolve error = %v, want ErrBadTransition", err)
	}
}

func TestManagerReject(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, &recordingAuditor{}, fixedNow(time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)))
	ctx := context.Background()

	req, err := svc.Create(ctx, "Ana", "u1", CreateInput{
		MonthID: "2025-06", DayIndex: 3, Type: models.RequestShiftSwap,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := svc.ManagerReject(ctx, "chefe@acme.com", 70, req.ID); err != nil {
		t.Fatalf("ManagerReject: %v", err)
	}
	got, _ := store.Request(ctx, req.ID)
	if got.Status != models.StatusRejected {
		t.Errorf("status = %q, want rejected", got.Status)
	}
	if len(store.roster) != 0 {
		t.Error("reject must not mutate the roster")
	}
}

func TestCreate_Validation(t *testing.T) {
	svc := NewService(newFakeStore(), &recordingAuditor{}, fixedNow(time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)))
	ctx := context.Background()

	tests := []struct {
		name string
		in   CreateInput
	}{
		{"unknown type", CreateInput{MonthID: "2025-06", DayIndex: 0, Type: "férias-eternas"}},
		{"bad month id", CreateInput{MonthID: "junho", DayIndex: 0, Type: models.RequestLeave, Reason: "x"}},
		{"negative day", CreateInput{MonthID: "2025-06", DayIndex: -1, Type: models.RequestLeave, Reason: "x"}},
		{"day past month end", CreateInput{MonthID: "2025-06", DayIndex: 30, Type: models.RequestLeave, Reason: "x"}},
		{"peer swap without target", CreateInput{MonthID: "2025-06", DayIndex: 1, Type: models.RequestPeerSwap}},
		{"peer swap with self", CreateInput{MonthID: "2025-06", DayIndex: 1, Type: models.RequestPeerSwap, TargetUID: "u1"}},
		{"leave without reason", CreateInput{MonthID: "2025-06", DayIndex: 1, Type: models.RequestLeave}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, "Ana", "u1", tt.in); !errors.Is(err, ErrValidation) {
				t.Errorf("error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestGrantedStatus_DesiredShiftWins(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, &recordingAuditor{}, fixedNow(time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)))
	ctx := context.Background()

	req, err := svc.Create(ctx, "Ana", "u1", CreateInput{
		MonthID: "2025-06", DayIndex: 0, Type: models.RequestShiftSwap, DesiredShift: "FS",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.ManagerApprove(ctx, "chefe@acme.com", 70, req.ID); err != nil {
		t.Fatalf("ManagerApprove: %v", err)
	}
	if code := store.roster["2025-06/u1/0"]; code != models.StatusSaturdayOff {
		t.Errorf("roster day = %q, want FS", code)
	}
}
