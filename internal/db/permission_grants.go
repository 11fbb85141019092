package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const createPermissionGrant = `
INSERT INTO permission_grants (id, wallet_address, backend_key_public_id, expiry, allowed_targets, spend_limits, granted_at, identity, handle)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id, wallet_address, backend_key_public_id, expiry, allowed_targets, spend_limits, granted_at, identity, handle, created_at
`

type CreatePermissionGrantParams struct {
	ID                 string
	WalletAddress      string
	BackendKeyPublicID string
	Expiry             pgtype.Timestamptz
	AllowedTargets     []string
	SpendLimits        []byte
	GrantedAt          pgtype.Timestamptz
	Identity           pgtype.Text
	Handle             pgtype.Text
}

// CreatePermissionGrant appends a grant row. No uniqueness constraint beyond
// the issuer-assigned id; grant history accumulates by design of the store.
func (q *Queries) CreatePermissionGrant(ctx context.Context, arg CreatePermissionGrantParams) (PermissionGrant, error) {
	row := q.db.QueryRow(ctx, createPermissionGrant,
		arg.ID,
		arg.WalletAddress,
		arg.BackendKeyPublicID,
		arg.Expiry,
		arg.AllowedTargets,
		arg.SpendLimits,
		arg.GrantedAt,
		arg.Identity,
		arg.Handle,
	)
	var i PermissionGrant
	err := row.Scan(
		&i.ID,
		&i.WalletAddress,
		&i.BackendKeyPublicID,
		&i.Expiry,
		&i.AllowedTargets,
		&i.SpendLimits,
		&i.GrantedAt,
		&i.Identity,
		&i.Handle,
		&i.CreatedAt,
	)
	return i, err
}

const listPermissionGrantsByWallet = `
SELECT id, wallet_address, backend_key_public_id, expiry, allowed_targets, spend_limits, granted_at, identity, handle, created_at
FROM permission_grants
WHERE lower(wallet_address) = lower($1)
ORDER BY granted_at DESC
`

// ListPermissionGrantsByWallet returns every grant row for the wallet, newest
// first. Address matching is case-insensitive; the stored value keeps its
// original checksum casing.
func (q *Queries) ListPermissionGrantsByWallet(ctx context.Context, walletAddress string) ([]PermissionGrant, error) {
	rows, err := q.db.Query(ctx, listPermissionGrantsByWallet, walletAddress)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PermissionGrant
	for rows.Next() {
		var i PermissionGrant
		if err := rows.Scan(
			&i.ID,
			&i.WalletAddress,
			&i.BackendKeyPublicID,
			&i.Expiry,
			&i.AllowedTargets,
			&i.SpendLimits,
			&i.GrantedAt,
			&i.Identity,
			&i.Handle,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}
