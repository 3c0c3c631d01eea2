// Package auth resolves an authenticated principal to a tenant and a
// role profile. Resolution runs once per login; afterwards the session
// travels as a signed token and is not re-resolved until the next
// authentication.
package auth

import (
	"context"
	"errors"
	"fmt"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/rs/zerolog/log"

	"github.com/escaladev/escala/internal/database"
	"github.com/escaladev/escala/pkg/models"
)

// Provider is the slice of the Firebase Auth client the resolver uses.
type Provider interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
	RevokeRefreshTokens(ctx context.Context, uid string) error
}

// Directory is the system-level lookup surface. *database.DB satisfies it.
type Directory interface {
	SysUser(ctx context.Context, uid string) (*models.SysUser, error)
	ProfileIn(ctx context.Context, companyID, uid string) (*models.UserProfile, error)
}

// Session is the resolved identity bound into process-wide state.
type Session struct {
	UID       string
	CompanyID string
	Profile   *models.UserProfile
}

// Resolver maps Firebase principals onto tenant profiles.
type Resolver struct {
	provider Provider
	dir      Directory
}

// NewResolver creates a Resolver.
func NewResolver(provider Provider, dir Directory) *Resolver {
	return &Resolver{provider: provider, dir: dir}
}

// Resolve verifies the ID token and looks up the principal's tenant and
// profile. A missing tenant mapping terminates the session server-side
// (refresh tokens revoked) before returning ErrNoTenant.
func (r *Resolver) Resolve(ctx context.Context, idToken string) (*Session, error) {
	token, err := r.provider.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	sysUser, err := r.dir.SysUser(ctx, token.UID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			if revokeErr := r.provider.RevokeRefreshTokens(ctx, token.UID); revokeErr != nil {
				log.Error().Err(revokeErr).Str("uid", token.UID).Msg("revoke refresh tokens failed")
			}
			return nil, ErrNoTenant
		}
		return nil, fmt.Errorf("resolve tenant: %w", err)
	}

	profile, err := r.dir.ProfileIn(ctx, sysUser.CompanyID, token.UID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrProfileMissing
		}
		return nil, fmt.Errorf("load profile: %w", err)
	}

	return &Session{
		UID:       token.UID,
		CompanyID: sysUser.CompanyID,
		Profile:   profile,
	}, nil
}
