package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"

	"delegate-api/internal/db"
	"delegate-api/internal/logger"
	"delegate-api/internal/types"
)

// challengeWindow bounds how old a challenge may be when its signature
// arrives. Protects against stale or replayed messages.
const challengeWindow = 10 * time.Minute

const challengeTemplate = "delegate-api wallet verification\nIdentity: %s\nHandle: %s\nIssued-At: %s\nNonce: %s"

// VerificationService binds messaging identities to wallet addresses via a
// signed-proof challenge/response. It owns the verified-link write path.
type VerificationService struct {
	queries    db.Querier
	logger     *zap.Logger
	challenges *challengeCache
}

// NewVerificationService creates a verification service.
func NewVerificationService(queries db.Querier) *VerificationService {
	return &VerificationService{
		queries:    queries,
		logger:     logger.Log,
		challenges: newChallengeCache(challengeWindow),
	}
}

// Challenge is an issued verification message awaiting a signature.
type Challenge struct {
	Message       string `json:"message"`
	ChallengeHash string `json:"challenge_hash"`
}

// IssueChallenge produces a unique message for the identity to sign with the
// wallet it claims. Each message embeds an issue timestamp and a random
// nonce, so no two challenges are alike; the hash is retained server-side to
// bind the later signature to exactly this challenge.
func (s *VerificationService) IssueChallenge(ctx context.Context, identity, handle string) (*Challenge, error) {
	if identity == "" {
		return nil, fmt.Errorf("identity is required")
	}

	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate challenge nonce: %w", err)
	}

	issuedAt := time.Now().UTC()
	message := fmt.Sprintf(challengeTemplate,
		identity,
		handle,
		issuedAt.Format(time.RFC3339),
		"0x"+hex.EncodeToString(nonce),
	)
	challengeHash := hexutil.Encode(crypto.Keccak256([]byte(message)))

	s.challenges.put(challengeHash, challengeEntry{
		message:  message,
		identity: identity,
		issuedAt: issuedAt,
	})

	s.logger.Debug("Issued verification challenge",
		zap.String("identity", identity),
		zap.String("challenge_hash", challengeHash),
	)
	return &Challenge{Message: message, ChallengeHash: challengeHash}, nil
}

// VerifyParams are the inputs to a signature verification.
type VerifyParams struct {
	Address   string
	Signature []byte
	Message   string
	Identity  string
	Handle    string
}

// Verify checks that the signature over the challenge message recovers to the
// claimed address and, on success, records the identity↔wallet link. Prior
// active links for the identity are superseded in the same write. Failed
// verifications are reported immediately, never retried: recovery is
// deterministic, so a retry cannot change the result.
func (s *VerificationService) Verify(ctx context.Context, params VerifyParams) (*types.VerifiedLink, error) {
	if !types.IsAddressValid(params.Address) {
		return nil, types.Errorf(types.KindSignatureMismatch, "invalid wallet address %q", params.Address)
	}

	recovered, err := recoverSigner(params.Message, params.Signature)
	if err != nil {
		return nil, types.Errorf(types.KindSignatureMismatch, "signature recovery failed: %v", err)
	}
	if !types.SameAddress(recovered, params.Address) {
		s.logger.Warn("Signature does not match claimed address",
			zap.String("identity", params.Identity),
			zap.String("claimed", params.Address),
			zap.String("recovered", recovered),
		)
		return nil, types.NewError(types.KindSignatureMismatch, "recovered signer does not match supplied address")
	}

	challengeHash := hexutil.Encode(crypto.Keccak256([]byte(params.Message)))
	if _, ok := s.challenges.take(challengeHash, params.Identity); !ok {
		return nil, types.NewError(types.KindChallengeExpired, "challenge unknown or expired")
	}
	if issuedAt, err := embeddedIssuedAt(params.Message); err != nil || time.Since(issuedAt) > challengeWindow {
		return nil, types.NewError(types.KindChallengeExpired, "challenge timestamp outside the accepted window")
	}

	now := time.Now().UTC()
	row, err := s.queries.CreateVerifiedLink(ctx, db.CreateVerifiedLinkParams{
		Identity:      params.Identity,
		Handle:        pgtype.Text{String: params.Handle, Valid: params.Handle != ""},
		WalletAddress: params.Address,
		VerifiedAt:    pgtype.Timestamptz{Time: now, Valid: true},
		Signature:     params.Signature,
		ChallengeHash: pgtype.Text{String: challengeHash, Valid: true},
	})
	if err != nil {
		s.logger.Error("Failed to store verified link",
			zap.String("identity", params.Identity),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to store verified link: %w", err)
	}

	s.logger.Info("Wallet verified for identity",
		zap.String("identity", params.Identity),
		zap.String("wallet_address", params.Address),
	)
	link := toVerifiedLink(row)
	return &link, nil
}

// Status returns the active link for the identity, if any.
func (s *VerificationService) Status(ctx context.Context, identity string) (*types.VerifiedLink, error) {
	row, err := s.queries.GetActiveVerifiedLink(ctx, identity)
	if err != nil {
		return nil, err
	}
	link := toVerifiedLink(row)
	return &link, nil
}

// History returns every link ever recorded for the identity, newest first.
// Superseded and revoked rows are retained for audit.
func (s *VerificationService) History(ctx context.Context, identity string) ([]types.VerifiedLink, error) {
	rows, err := s.queries.ListVerifiedLinks(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("failed to list verified links: %w", err)
	}
	links := make([]types.VerifiedLink, 0, len(rows))
	for _, row := range rows {
		links = append(links, toVerifiedLink(row))
	}
	return links, nil
}

// Revoke deactivates the identity's links without deleting history.
func (s *VerificationService) Revoke(ctx context.Context, identity string) (int64, error) {
	revoked, err := s.queries.RevokeVerifiedLinks(ctx, identity)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke links: %w", err)
	}
	if revoked > 0 {
		s.logger.Info("Verified link revoked",
			zap.String("identity", identity),
			zap.Int64("links", revoked),
		)
	}
	return revoked, nil
}

// recoverSigner recovers the EIP-191 personal-message signer address.
func recoverSigner(message string, signature []byte) (string, error) {
	if len(signature) != 65 {
		return "", fmt.Errorf("signature must be 65 bytes, got %d", len(signature))
	}

	sig := make([]byte, 65)
	copy(sig, signature)
	// Wallets emit V as 27/28; go-ethereum expects 0/1.
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return "", err
	}
	return crypto.PubkeyToAddress(*pub).Hex(), nil
}

// embeddedIssuedAt parses the Issued-At line out of a challenge message.
func embeddedIssuedAt(message string) (time.Time, error) {
	for _, line := range strings.Split(message, "\n") {
		if value, ok := strings.CutPrefix(line, "Issued-At: "); ok {
			return time.Parse(time.RFC3339, value)
		}
	}
	return time.Time{}, fmt.Errorf("message has no Issued-At line")
}

func toVerifiedLink(row db.VerifiedLink) types.VerifiedLink {
	return types.VerifiedLink{
		ID:            row.ID,
		Identity:      row.Identity,
		Handle:        row.Handle.String,
		WalletAddress: row.WalletAddress,
		VerifiedAt:    row.VerifiedAt.Time,
		Signature:     row.Signature,
		ChallengeHash: row.ChallengeHash.String,
		Active:        row.Active,
	}
}
