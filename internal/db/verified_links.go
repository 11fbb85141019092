package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pkg/errors"
)

const createVerifiedLink = `
WITH superseded AS (
    UPDATE verified_links
    SET active = false
    WHERE identity = $1 AND active = true
)
INSERT INTO verified_links (identity, handle, wallet_address, verified_at, signature, challenge_hash, active)
VALUES ($1, $2, $3, $4, $5, $6, true)
RETURNING id, identity, handle, wallet_address, verified_at, signature, challenge_hash, active, created_at
`

type CreateVerifiedLinkParams struct {
	Identity      string
	Handle        pgtype.Text
	WalletAddress string
	VerifiedAt    pgtype.Timestamptz
	Signature     []byte
	ChallengeHash pgtype.Text
}

// activeLinkIndex is the partial unique index enforcing one active link per
// identity. See scripts/db/schema.sql.
const activeLinkIndex = "verified_links_one_active"

const createLinkMaxRetries = 3

// CreateVerifiedLink inserts a new active link for the identity, deactivating
// prior active rows in the same statement. The CTE alone is not enough under
// concurrent writers: two verifications running under READ COMMITTED each take
// a snapshot in which the other's insert is invisible, so neither UPDATE
// deactivates the other's row. The partial unique index on (identity) WHERE
// active rejects the loser, and the statement is retried; the retry's UPDATE
// sees the committed row and supersedes it.
func (q *Queries) CreateVerifiedLink(ctx context.Context, arg CreateVerifiedLinkParams) (VerifiedLink, error) {
	var i VerifiedLink
	for attempt := 0; ; attempt++ {
		row := q.db.QueryRow(ctx, createVerifiedLink,
			arg.Identity,
			arg.Handle,
			arg.WalletAddress,
			arg.VerifiedAt,
			arg.Signature,
			arg.ChallengeHash,
		)
		err := row.Scan(
			&i.ID,
			&i.Identity,
			&i.Handle,
			&i.WalletAddress,
			&i.VerifiedAt,
			&i.Signature,
			&i.ChallengeHash,
			&i.Active,
			&i.CreatedAt,
		)
		if err == nil {
			return i, nil
		}
		if !isActiveLinkConflict(err) || attempt >= createLinkMaxRetries {
			return VerifiedLink{}, err
		}
	}
}

// isActiveLinkConflict reports whether err is the unique violation raised when
// a concurrent verification won the race for the active slot.
func isActiveLinkConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) &&
		pgErr.Code == "23505" &&
		pgErr.ConstraintName == activeLinkIndex
}

const getActiveVerifiedLink = `
SELECT id, identity, handle, wallet_address, verified_at, signature, challenge_hash, active, created_at
FROM verified_links
WHERE identity = $1 AND active = true
ORDER BY created_at DESC
LIMIT 1
`

func (q *Queries) GetActiveVerifiedLink(ctx context.Context, identity string) (VerifiedLink, error) {
	row := q.db.QueryRow(ctx, getActiveVerifiedLink, identity)
	var i VerifiedLink
	err := row.Scan(
		&i.ID,
		&i.Identity,
		&i.Handle,
		&i.WalletAddress,
		&i.VerifiedAt,
		&i.Signature,
		&i.ChallengeHash,
		&i.Active,
		&i.CreatedAt,
	)
	return i, err
}

const listVerifiedLinks = `
SELECT id, identity, handle, wallet_address, verified_at, signature, challenge_hash, active, created_at
FROM verified_links
WHERE identity = $1
ORDER BY created_at DESC
`

func (q *Queries) ListVerifiedLinks(ctx context.Context, identity string) ([]VerifiedLink, error) {
	rows, err := q.db.Query(ctx, listVerifiedLinks, identity)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []VerifiedLink
	for rows.Next() {
		var i VerifiedLink
		if err := rows.Scan(
			&i.ID,
			&i.Identity,
			&i.Handle,
			&i.WalletAddress,
			&i.VerifiedAt,
			&i.Signature,
			&i.ChallengeHash,
			&i.Active,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const revokeVerifiedLinks = `
UPDATE verified_links
SET active = false
WHERE identity = $1 AND active = true
`

func (q *Queries) RevokeVerifiedLinks(ctx context.Context, identity string) (int64, error) {
	tag, err := q.db.Exec(ctx, revokeVerifiedLinks, identity)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
