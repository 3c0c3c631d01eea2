package auth

import "errors"

var (
	// ErrInvalidToken covers ID tokens that fail verification.
	ErrInvalidToken = errors.New("invalid id token")

	// ErrNoTenant means the principal has no tenant mapping. Fatal and
	// non-retryable: the session is terminated.
	ErrNoTenant = errors.New("principal has no tenant")

	// ErrProfileMissing means the tenant exists but holds no profile
	// document for the principal. Fatal to the current flow.
	ErrProfileMissing = errors.New("profile missing in tenant")
)
