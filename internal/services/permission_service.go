package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"

	"delegate-api/internal/db"
	"delegate-api/internal/logger"
	"delegate-api/internal/types"
)

// PermissionService owns the permission-grant store: it receives grants
// created by the external grant-ceremony UI and resolves which stored grant
// applies to an execution request.
type PermissionService struct {
	queries db.Querier
	logger  *zap.Logger
}

// NewPermissionService creates a permission service.
func NewPermissionService(queries db.Querier) *PermissionService {
	return &PermissionService{
		queries: queries,
		logger:  logger.Log,
	}
}

// SyncGrantParams describe a grant completed in the off-engine ceremony.
type SyncGrantParams struct {
	GrantID            string
	WalletAddress      string
	BackendKeyPublicID string
	Expiry             time.Time
	Scope              types.GrantScope
	Identity           string
	Handle             string
}

// SyncGrant appends the grant to the store. Grants are never mutated in
// place; a renewal or narrower re-grant is a new row and old rows stay for
// audit.
func (s *PermissionService) SyncGrant(ctx context.Context, params SyncGrantParams) (string, error) {
	if !types.IsAddressValid(params.WalletAddress) {
		return "", fmt.Errorf("invalid wallet address %q", params.WalletAddress)
	}
	if params.BackendKeyPublicID == "" {
		return "", fmt.Errorf("backend key public id is required")
	}
	if !params.Expiry.After(time.Now()) {
		return "", fmt.Errorf("grant expiry must be in the future")
	}
	if len(params.Scope.AllowedTargets) == 0 {
		return "", fmt.Errorf("grant scope must allow at least one target")
	}
	for _, target := range params.Scope.AllowedTargets {
		if !types.IsAddressValid(target) {
			return "", fmt.Errorf("allowed target %q is not a valid address", target)
		}
	}

	grantID := params.GrantID
	if grantID == "" {
		grantID = uuid.NewString()
	}

	spendLimits, err := json.Marshal(params.Scope.SpendLimits)
	if err != nil {
		return "", fmt.Errorf("failed to marshal spend limits: %w", err)
	}

	row, err := s.queries.CreatePermissionGrant(ctx, db.CreatePermissionGrantParams{
		ID:                 grantID,
		WalletAddress:      params.WalletAddress,
		BackendKeyPublicID: params.BackendKeyPublicID,
		Expiry:             pgtype.Timestamptz{Time: params.Expiry.UTC(), Valid: true},
		AllowedTargets:     params.Scope.AllowedTargets,
		SpendLimits:        spendLimits,
		GrantedAt:          pgtype.Timestamptz{Time: time.Now().UTC(), Valid: true},
		Identity:           pgtype.Text{String: params.Identity, Valid: params.Identity != ""},
		Handle:             pgtype.Text{String: params.Handle, Valid: params.Handle != ""},
	})
	if err != nil {
		s.logger.Error("Failed to store permission grant",
			zap.String("wallet_address", params.WalletAddress),
			zap.String("grant_id", grantID),
			zap.Error(err),
		)
		return "", fmt.Errorf("failed to store permission grant: %w", err)
	}

	s.logger.Info("Permission grant synced",
		zap.String("grant_id", row.ID),
		zap.String("wallet_address", params.WalletAddress),
		zap.Time("expiry", params.Expiry),
		zap.Int("allowed_targets", len(params.Scope.AllowedTargets)),
	)
	return row.ID, nil
}

// Resolve selects the grant authorizing the required targets for the wallet:
// the most recently granted non-expired record whose allowed targets cover
// every required one. It reads the store fresh on every call: grants are
// never cached across requests, so expiry and renewals are observed with
// at-most-one-stale-read freshness.
//
// The three failure causes (no grant at all, all expired, scope too narrow)
// share KindNoMatchingGrant but carry distinct details for diagnostics.
func (s *PermissionService) Resolve(ctx context.Context, walletAddress string, requiredTargets []string) (*types.PermissionGrant, error) {
	rows, err := s.queries.ListPermissionGrantsByWallet(ctx, walletAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}
	if len(rows) == 0 {
		return nil, types.NewError(types.KindNoMatchingGrant, types.DetailNoGrantForWallet)
	}

	now := time.Now()
	var best *types.PermissionGrant
	anyLive := false
	for _, row := range rows {
		grant := toPermissionGrant(row)
		if grant.Expired(now) {
			continue
		}
		anyLive = true
		if !grant.Covers(requiredTargets) {
			continue
		}
		if best == nil || grant.GrantedAt.After(best.GrantedAt) {
			g := grant
			best = &g
		}
	}

	if best != nil {
		return best, nil
	}
	if !anyLive {
		return nil, types.NewError(types.KindNoMatchingGrant, types.DetailAllGrantsExpired)
	}
	return nil, types.NewError(types.KindNoMatchingGrant, types.DetailScopeInsufficient)
}

// WalletSummary reports grant counts for the UI.
type WalletSummary struct {
	TotalGrants     int  `json:"total_grants"`
	ActiveGrants    int  `json:"active_grants"`
	HasBackendGrant bool `json:"has_backend_grant"`
}

// Summary returns grant statistics for a wallet. A wallet "has a backend
// grant" when at least one non-expired grant names the given key identifier.
func (s *PermissionService) Summary(ctx context.Context, walletAddress, backendKeyPublicID string) (*WalletSummary, error) {
	rows, err := s.queries.ListPermissionGrantsByWallet(ctx, walletAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}

	now := time.Now()
	summary := &WalletSummary{TotalGrants: len(rows)}
	for _, row := range rows {
		grant := toPermissionGrant(row)
		if grant.Expired(now) {
			continue
		}
		summary.ActiveGrants++
		if types.SameAddress(grant.BackendKeyPublicID, backendKeyPublicID) {
			summary.HasBackendGrant = true
		}
	}
	return summary, nil
}

func toPermissionGrant(row db.PermissionGrant) types.PermissionGrant {
	var limits []types.SpendLimit
	if len(row.SpendLimits) > 0 {
		// Limits were validated on the way in; a decode failure here only
		// loses the advisory limit metadata, not the target scope.
		_ = json.Unmarshal(row.SpendLimits, &limits)
	}
	return types.PermissionGrant{
		ID:                 row.ID,
		WalletAddress:      row.WalletAddress,
		BackendKeyPublicID: row.BackendKeyPublicID,
		Expiry:             row.Expiry.Time,
		GrantedAt:          row.GrantedAt.Time,
		Scope: types.GrantScope{
			AllowedTargets: row.AllowedTargets,
			SpendLimits:    limits,
		},
		Identity: row.Identity.String,
		Handle:   row.Handle.String,
	}
}
