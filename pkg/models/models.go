package models

import "time"

// StatusCode classifies one calendar day of an employee's roster.
type StatusCode string

const (
	StatusWorking     StatusCode = "T"  // Trabalho
	StatusOff         StatusCode = "F"  // Folga
	StatusSaturdayOff StatusCode = "FS" // Folga de sábado
	StatusSundayOff   StatusCode = "FD" // Folga de domingo
	StatusVacation    StatusCode = "FE" // Férias
	StatusLeave       StatusCode = "A"  // Afastado
	StatusMaternity   StatusCode = "LM" // Licença-maternidade
)

// ValidStatus reports whether s is one of the known day-status codes.
func ValidStatus(s StatusCode) bool {
	switch s {
	case StatusWorking, StatusOff, StatusSaturdayOff, StatusSundayOff,
		StatusVacation, StatusLeave, StatusMaternity:
		return true
	}
	return false
}

// UserProfile is the tenant-scoped document describing one employee.
// Level drives both menu visibility and mutation rights; inactive
// profiles are excluded from the working schedule set.
type UserProfile struct {
	UID        string       `firestore:"uid" json:"uid"`
	Name       string       `firestore:"name" json:"name"`
	Email      string       `firestore:"email" json:"email"`
	Role       string       `firestore:"role" json:"role"`
	Level      int          `firestore:"level" json:"level"`
	Cargo      string       `firestore:"cargo" json:"cargo"`
	SetorID    string       `firestore:"setorId" json:"setorId"`
	Horario    string       `firestore:"horario" json:"horario"`
	Active     bool         `firestore:"active" json:"active"`
	Schedule   []StatusCode `firestore:"schedule" json:"schedule"`
	MigratedAt *time.Time   `firestore:"migratedAt,omitempty" json:"migratedAt,omitempty"`
}

// RosterEntry is one employee's stored schedule inside a month partition
// (escalas/{monthId}/plantonistas/{uid}).
type RosterEntry struct {
	UID      string       `firestore:"uid" json:"uid"`
	Name     string       `firestore:"name" json:"name"`
	Schedule []StatusCode `firestore:"schedule" json:"schedule"`
	SavedBy  string       `firestore:"savedBy,omitempty" json:"savedBy,omitempty"`
	SavedAt  time.Time    `firestore:"savedAt" json:"savedAt"`
}

// ScheduleRecord is the in-memory merge of a roster entry with its
// profile, keyed by uid. Name is carried for display only.
type ScheduleRecord struct {
	UID      string       `json:"uid"`
	Name     string       `json:"name"`
	Cargo    string       `json:"cargo"`
	Horario  string       `json:"horario"`
	Level    int          `json:"level"`
	Schedule []StatusCode `json:"schedule"`
}

// Request types.
const (
	RequestShiftSwap = "shift_swap" // swap requiring leader approval
	RequestPeerSwap  = "peer_swap"  // day swap with a named colleague
	RequestLeave     = "leave"      // leave request
)

// Request statuses.
const (
	StatusPendingLeader = "pending_leader"
	StatusPendingPeer   = "pending_peer"
	StatusApproved      = "approved"
	StatusRejected      = "rejected"
)

// Request is an append-only, tenant-scoped workflow document.
type Request struct {
	ID           string    `firestore:"-" json:"id"`
	MonthID      string    `firestore:"monthId" json:"monthId"`
	Requester    string    `firestore:"requester" json:"requester"`
	RequesterUID string    `firestore:"requesterUid" json:"requesterUid"`
	DayIndex     int       `firestore:"dayIndex" json:"dayIndex"`
	Type         string    `firestore:"type" json:"type"`
	Target       string    `firestore:"target" json:"target"`
	TargetUID    string    `firestore:"targetUid" json:"targetUid"`
	DesiredShift string    `firestore:"desiredShift,omitempty" json:"desiredShift,omitempty"`
	Reason       string    `firestore:"reason,omitempty" json:"reason,omitempty"`
	Status       string    `firestore:"status" json:"status"`
	CreatedAt    time.Time `firestore:"createdAt" json:"createdAt"`
}

// Terminal reports whether the request has reached a final status.
func (r *Request) Terminal() bool {
	return r.Status == StatusApproved || r.Status == StatusRejected
}

// AuditLogEntry records a privileged mutation. Entries are immutable
// once written.
type AuditLogEntry struct {
	ID         string    `firestore:"-" json:"id"`
	AdminEmail string    `firestore:"adminEmail" json:"adminEmail"`
	Action     string    `firestore:"action" json:"action"`
	Target     string    `firestore:"target" json:"target"`
	Timestamp  time.Time `firestore:"timestamp" json:"timestamp"`
}

// Invite is a tenant join invitation. The code doubles as the document
// key; at most one invite should be active per tenant.
type Invite struct {
	Code      string    `firestore:"-" json:"code"`
	CreatedBy string    `firestore:"createdBy" json:"createdBy"`
	CreatedAt time.Time `firestore:"createdAt" json:"createdAt"`
	Active    bool      `firestore:"active" json:"active"`
}

// SysUser maps an authenticated principal to its tenant. Lives outside
// any tenant partition (sys_users/{uid}).
type SysUser struct {
	CompanyID string `firestore:"companyId" json:"companyId"`
}
