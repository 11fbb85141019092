package db

import (
	"context"
)

// Querier is the database access surface consumed by the service layer.
// Services depend on this interface so tests can substitute a gomock double.
//
//go:generate mockgen -package mocks -destination ../mocks/mock_querier.go delegate-api/internal/db Querier
type Querier interface {
	// CreateVerifiedLink deactivates any prior active link for the identity
	// and inserts the new one. A partial unique index backstops the statement
	// against concurrent writers, so two verifications cannot both end up
	// active; losers of the race retry internally.
	CreateVerifiedLink(ctx context.Context, arg CreateVerifiedLinkParams) (VerifiedLink, error)
	GetActiveVerifiedLink(ctx context.Context, identity string) (VerifiedLink, error)
	ListVerifiedLinks(ctx context.Context, identity string) ([]VerifiedLink, error)
	// RevokeVerifiedLinks flips every active link for the identity inactive and
	// returns how many rows changed.
	RevokeVerifiedLinks(ctx context.Context, identity string) (int64, error)

	CreatePermissionGrant(ctx context.Context, arg CreatePermissionGrantParams) (PermissionGrant, error)
	ListPermissionGrantsByWallet(ctx context.Context, walletAddress string) ([]PermissionGrant, error)
}

var _ Querier = (*Queries)(nil)
