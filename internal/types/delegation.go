package types

import (
	"math/big"
	"time"

	"github.com/google/uuid"
)

// VerifiedLink is the attested association between a messaging identity and a
// wallet address. At most one link per identity is active at a time; history
// rows are kept for audit and never deleted.
type VerifiedLink struct {
	ID            uuid.UUID `json:"id"`
	Identity      string    `json:"identity"`
	Handle        string    `json:"handle"`
	WalletAddress string    `json:"wallet_address"`
	VerifiedAt    time.Time `json:"verified_at"`
	Signature     []byte    `json:"signature"`
	ChallengeHash string    `json:"challenge_hash"`
	Active        bool      `json:"active"`
}

// SpendLimit caps how much of a token a grant allows per period.
type SpendLimit struct {
	Token  string `json:"token"`
	Limit  string `json:"limit"` // decimal string, wei-denominated
	Period string `json:"period"`
}

// GrantScope bounds what a permission grant authorizes.
type GrantScope struct {
	AllowedTargets []string     `json:"allowed_targets"`
	SpendLimits    []SpendLimit `json:"spend_limits,omitempty"`
}

// PermissionGrant is a scoped, time-limited authorization letting the backend
// session key execute contract calls on the owner's behalf. Grants are
// append-only: renewals and narrower re-grants add rows, old rows stay for
// audit and are retired by expiry.
type PermissionGrant struct {
	ID                 string     `json:"id"` // assigned by the grant issuer
	WalletAddress      string     `json:"wallet_address"`
	BackendKeyPublicID string     `json:"backend_key_public_id"`
	Expiry             time.Time  `json:"expiry"`
	GrantedAt          time.Time  `json:"granted_at"`
	Scope              GrantScope `json:"scope"`
	Identity           string     `json:"identity,omitempty"`
	Handle             string     `json:"handle,omitempty"`
}

// Expired reports whether the grant is past its expiry at the given instant.
// An expired grant is never eligible for execution regardless of storage state.
func (g *PermissionGrant) Expired(now time.Time) bool {
	return !g.Expiry.After(now)
}

// Covers reports whether every required target is inside the grant's allowed
// target set. Comparison is on normalized addresses.
func (g *PermissionGrant) Covers(requiredTargets []string) bool {
	allowed := make(map[string]struct{}, len(g.Scope.AllowedTargets))
	for _, t := range g.Scope.AllowedTargets {
		allowed[NormalizeAddress(t)] = struct{}{}
	}
	for _, t := range requiredTargets {
		if _, ok := allowed[NormalizeAddress(t)]; !ok {
			return false
		}
	}
	return true
}

// Call is a single contract call inside a batch.
type Call struct {
	Target string   `json:"target"`
	Data   []byte   `json:"data"`
	Value  *big.Int `json:"value,omitempty"`
}

// DelegatedCallBatch is an ordered list of calls intended for atomic
// execution. It is transient and never persisted by the engine.
type DelegatedCallBatch []Call

// Targets returns the deduplicated, normalized target set of the batch, in
// first-seen order. This set is what the permission resolver checks scope
// against.
func (b DelegatedCallBatch) Targets() []string {
	seen := make(map[string]struct{}, len(b))
	targets := make([]string, 0, len(b))
	for _, call := range b {
		norm := NormalizeAddress(call.Target)
		if _, ok := seen[norm]; ok {
			continue
		}
		seen[norm] = struct{}{}
		targets = append(targets, norm)
	}
	return targets
}

// ExecutionOutcome is the normalized result of one execution request.
// Transient; left to external audit collaborators to persist if needed.
type ExecutionOutcome struct {
	Success           bool      `json:"success"`
	RelayBatchID      string    `json:"relay_batch_id,omitempty"`
	TransactionHashes []string  `json:"transaction_hashes,omitempty"`
	ErrorKind         ErrorKind `json:"error_kind,omitempty"`
	ErrorDetail       string    `json:"error_detail,omitempty"`
}
