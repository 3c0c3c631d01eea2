package migration

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/escaladev/escala/pkg/models"
)

type fakeSource struct {
	collaborators map[string]models.LegacyUser
	admins        map[string]models.LegacyUser
	users         map[string]map[string]interface{}
	failOn        string
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		collaborators: make(map[string]models.LegacyUser),
		admins:        make(map[string]models.LegacyUser),
		users:         make(map[string]map[string]interface{}),
	}
}

func (f *fakeSource) LegacyCollaborators(context.Context) (map[string]models.LegacyUser, error) {
	return f.collaborators, nil
}

func (f *fakeSource) LegacyAdministrators(context.Context) (map[string]models.LegacyUser, error) {
	return f.admins, nil
}

func (f *fakeSource) MergeProfile(_ context.Context, uid string, fields map[string]interface{}) error {
	if uid == f.failOn {
		return errors.New("backend down")
	}
	if f.users[uid] == nil {
		f.users[uid] = make(map[string]interface{})
	}
	for k, v := range fields {
		f.users[uid][k] = v
	}
	return nil
}

type recordingAuditor struct{ actions []string }

func (a *recordingAuditor) Record(_ context.Context, _, action, target string) {
	a.actions = append(a.actions, action)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestRun_MapsLegacyFieldsAndRoles(t *testing.T) {
	source := newFakeSource()
	source.collaborators["X"] = models.LegacyUser{Nome: "Bob", Email: "b@x.com"}
	source.admins["A"] = models.LegacyUser{Nome: "Alice", Email: "a@x.com", Funcao: "Gerente de Loja", Setor: "caixa", Turno: "07:00-19:00"}

	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	tool := New(source, &recordingAuditor{}, fixedClock(now))

	count, err := tool.Run(context.Background(), "chefe@acme.com")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}

	bob := source.users["X"]
	if bob["role"] != "collaborator" || bob["level"] != 10 || bob["active"] != true {
		t.Errorf("bob = %v", bob)
	}
	if bob["name"] != "Bob" || bob["email"] != "b@x.com" {
		t.Errorf("bob fields = %v", bob)
	}
	// Empty legacy funcao falls back to the role label.
	if bob["cargo"] != "Colaborador" {
		t.Errorf("bob cargo = %v", bob["cargo"])
	}

	alice := source.users["A"]
	if alice["role"] != "manager" || alice["level"] != 70 {
		t.Errorf("alice = %v", alice)
	}
	if alice["cargo"] != "Gerente de Loja" || alice["setorId"] != "caixa" || alice["horario"] != "07:00-19:00" {
		t.Errorf("alice fields = %v", alice)
	}
	if alice["migratedAt"] != now {
		t.Errorf("migratedAt = %v, want %v", alice["migratedAt"], now)
	}
}

func TestRun_Idempotent_ExceptTimestamp(t *testing.T) {
	source := newFakeSource()
	source.collaborators["X"] = models.LegacyUser{Nome: "Bob", Email: "b@x.com"}

	first := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	if _, err := New(source, &recordingAuditor{}, fixedClock(first)).Run(context.Background(), "chefe@acme.com"); err != nil {
		t.Fatalf("first run: %v", err)
	}
	snapshot := make(map[string]interface{})
	for k, v := range source.users["X"] {
		snapshot[k] = v
	}

	second := first.Add(24 * time.Hour)
	if _, err := New(source, &recordingAuditor{}, fixedClock(second)).Run(context.Background(), "chefe@acme.com"); err != nil {
		t.Fatalf("second run: %v", err)
	}

	got := source.users["X"]
	if got["migratedAt"] != second {
		t.Errorf("migratedAt = %v, want advanced to %v", got["migratedAt"], second)
	}
	delete(snapshot, "migratedAt")
	rerun := make(map[string]interface{})
	for k, v := range got {
		if k != "migratedAt" {
			rerun[k] = v
		}
	}
	if !reflect.DeepEqual(snapshot, rerun) {
		t.Errorf("fields changed across runs: %v vs %v", snapshot, rerun)
	}
}

func TestRun_AbortsOnFirstError(t *testing.T) {
	source := newFakeSource()
	source.collaborators["a"] = models.LegacyUser{Nome: "A"}
	source.collaborators["b"] = models.LegacyUser{Nome: "B"}
	source.collaborators["c"] = models.LegacyUser{Nome: "C"}
	source.failOn = "b"

	auditor := &recordingAuditor{}
	count, err := New(source, auditor, nil).Run(context.Background(), "chefe@acme.com")
	if err == nil {
		t.Fatal("expected abort error")
	}
	if count != 1 {
		t.Errorf("count = %d, want 1 (only %q migrated before abort)", count, "a")
	}
	if len(auditor.actions) != 0 {
		t.Error("aborted run must not audit")
	}
}
