// Package database is the Firestore-backed persistence layer. All
// business collections live under a per-tenant root; a Tenant handle
// must be constructed before any of them can be touched.
package database

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/escaladev/escala/pkg/models"
)

// Collection names. Everything except sysUsersCollection is scoped
// under tenantRoot/{companyId}.
const (
	tenantRoot           = "empresas"
	sysUsersCollection   = "sys_users"
	usersCollection      = "users"
	rosterCollection     = "escalas"
	rosterSubcollection  = "plantonistas"
	requestsCollection   = "solicitacoes"
	auditCollection      = "logs_auditoria"
	invitesCollection    = "convites"
	legacyCollaborators  = "colaboradores"
	legacyAdministrators = "administradores"
)

var (
	// ErrNoTenant is the configuration error returned when data access
	// is attempted without a bound tenant.
	ErrNoTenant = errors.New("no tenant bound")

	// ErrNotFound marks an expected document that does not exist.
	ErrNotFound = errors.New("document not found")
)

// DB wraps the shared Firestore client.
type DB struct {
	client *firestore.Client
}

// New creates the data access layer over an initialized client.
func New(client *firestore.Client) *DB {
	return &DB{client: client}
}

// Tenant is a handle to one company's partition. All tenant-scoped
// accessors hang off it.
type Tenant struct {
	db        *DB
	companyID string
}

// Tenant binds a company partition. An empty id is a configuration
// error and fails every accessor up front.
func (db *DB) Tenant(companyID string) (*Tenant, error) {
	if companyID == "" {
		return nil, ErrNoTenant
	}
	return &Tenant{db: db, companyID: companyID}, nil
}

// CompanyID returns the bound tenant id.
func (t *Tenant) CompanyID() string { return t.companyID }

func (t *Tenant) root() *firestore.DocumentRef {
	return t.db.client.Collection(tenantRoot).Doc(t.companyID)
}

// SysUser resolves a principal uid to its tenant mapping.
// Returns ErrNotFound when the principal has no tenant.
func (db *DB) SysUser(ctx context.Context, uid string) (*models.SysUser, error) {
	doc, err := db.client.Collection(sysUsersCollection).Doc(uid).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get sys_user: %w", err)
	}

	var su models.SysUser
	if err := doc.DataTo(&su); err != nil {
		return nil, fmt.Errorf("decode sys_user: %w", err)
	}
	return &su, nil
}

// SetSysUser writes the principal-to-tenant mapping.
func (db *DB) SetSysUser(ctx context.Context, uid, companyID string) error {
	_, err := db.client.Collection(sysUsersCollection).Doc(uid).
		Set(ctx, models.SysUser{CompanyID: companyID})
	if err != nil {
		return fmt.Errorf("set sys_user: %w", err)
	}
	return nil
}
