package db

import (
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// VerifiedLink is a row in verified_links. The table is an append-only log:
// re-verification inserts a new row and flips prior rows inactive, revocation
// flips active without deleting history.
type VerifiedLink struct {
	ID            uuid.UUID
	Identity      string
	Handle        pgtype.Text
	WalletAddress string
	VerifiedAt    pgtype.Timestamptz
	Signature     []byte
	ChallengeHash pgtype.Text
	Active        bool
	CreatedAt     pgtype.Timestamptz
}

// PermissionGrant is a row in permission_grants. Rows are never mutated in
// place; renewals append and old grants are retired by expiry.
type PermissionGrant struct {
	ID                 string
	WalletAddress      string
	BackendKeyPublicID string
	Expiry             pgtype.Timestamptz
	AllowedTargets     []string
	SpendLimits        []byte // jsonb
	GrantedAt          pgtype.Timestamptz
	Identity           pgtype.Text
	Handle             pgtype.Text
	CreatedAt          pgtype.Timestamptz
}
