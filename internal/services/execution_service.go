package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"delegate-api/internal/client/relay"
	"delegate-api/internal/db"
	"delegate-api/internal/logger"
	"delegate-api/internal/types"
)

// SessionSigner is the signing capability the execution engine needs from the
// session key manager.
type SessionSigner interface {
	PublicIdentifier(ctx context.Context) (string, error)
	KeyType() string
	Sign(ctx context.Context, digest []byte) ([]byte, error)
}

// ExecutionService runs delegated call batches through the relay's
// prepare/sign/submit protocol under a resolved permission grant. Every
// request walks the five steps strictly in order; nothing is skipped,
// reordered, or secretly retried.
type ExecutionService struct {
	queries     db.Querier
	permissions *PermissionService
	signer      SessionSigner
	relay       relay.Client
	chainID     uint64
	logger      *zap.Logger
}

// NewExecutionService creates the execution engine. All collaborators are
// injected; the service holds no process-wide state.
func NewExecutionService(queries db.Querier, permissions *PermissionService, signer SessionSigner, relayClient relay.Client, chainID uint64) *ExecutionService {
	return &ExecutionService{
		queries:     queries,
		permissions: permissions,
		signer:      signer,
		relay:       relayClient,
		chainID:     chainID,
		logger:      logger.Log,
	}
}

func failure(kind types.ErrorKind, detail string) types.ExecutionOutcome {
	return types.ExecutionOutcome{Success: false, ErrorKind: kind, ErrorDetail: detail}
}

// Execute runs one call batch for the wallet. The returned outcome is always
// structured: relay failures are classified into the engine taxonomy, never
// rethrown. Requests for different wallets run concurrently without
// coordination; ordering between overlapping batches is the relay's concern.
func (s *ExecutionService) Execute(ctx context.Context, walletAddress string, batch types.DelegatedCallBatch) types.ExecutionOutcome {
	if len(batch) == 0 {
		return failure(types.KindPermissionDenied, "call batch is empty")
	}
	if !types.IsAddressValid(walletAddress) {
		return failure(types.KindPermissionDenied, fmt.Sprintf("invalid wallet address %q", walletAddress))
	}

	// Step 1: resolve the grant. Scope is checked here, before any relay
	// call, so an out-of-scope target never reaches the network.
	grant, err := s.permissions.Resolve(ctx, walletAddress, batch.Targets())
	if err != nil {
		s.logger.Warn("Grant resolution failed",
			zap.String("wallet_address", walletAddress),
			zap.Error(err),
		)
		return failure(types.KindPermissionDenied, types.DetailOf(err))
	}

	keyID, err := s.signer.PublicIdentifier(ctx)
	if err != nil {
		return failure(types.KindConfigurationError, types.DetailOf(err))
	}
	if !types.SameAddress(grant.BackendKeyPublicID, keyID) {
		// The resolved grant names a different backend key than this
		// deployment holds. Fatal configuration problem, not retryable.
		return failure(types.KindConfigurationError,
			fmt.Sprintf("grant %s names backend key %s, deployment key is %s", grant.ID, grant.BackendKeyPublicID, keyID))
	}

	// Step 2: prepare. No on-chain side effect yet.
	prepared, err := s.relay.PrepareCalls(ctx, &relay.PrepareRequest{
		ChainID:        s.chainID,
		From:           walletAddress,
		Calls:          toPrepareCalls(batch),
		AtomicRequired: true,
		Key: relay.KeyReference{
			Type:     s.signer.KeyType(),
			PublicID: keyID,
		},
	})
	if err != nil {
		return failure(relay.Classify(err), err.Error())
	}
	if prepared.Atomicity != "" && prepared.Atomicity != "atomic" {
		return failure(types.KindPartialExecutionRisk,
			fmt.Sprintf("relay offered %q execution, atomic required", prepared.Atomicity))
	}

	// Step 3: sign the relay's digest with the session key.
	signature, err := s.signer.Sign(ctx, prepared.Digest)
	if err != nil {
		return failure(types.KindConfigurationError, types.DetailOf(err))
	}

	// Step 4: submit, forwarding the relay context verbatim. At most one
	// submission per Execute call; a timed-out submit may still have been
	// applied, so it surfaces as ambiguous rather than transient.
	result, err := s.relay.SendPreparedCalls(ctx, &relay.SubmitRequest{
		Context:   prepared.Context,
		Key:       relay.KeyReference{Type: s.signer.KeyType(), PublicID: keyID},
		Signature: signature,
	})
	if err != nil {
		if relay.IsTransient(err) {
			return failure(types.KindAmbiguousOutcome,
				"we cannot confirm whether this completed — check before retrying")
		}
		// Step 5: classify the relay's loosely-typed failure.
		return failure(relay.Classify(err), err.Error())
	}

	s.logger.Info("Delegated batch executed",
		zap.String("wallet_address", walletAddress),
		zap.String("grant_id", grant.ID),
		zap.String("relay_batch_id", result.BatchID),
		zap.Int("calls", len(batch)),
	)
	return types.ExecutionOutcome{
		Success:           true,
		RelayBatchID:      result.BatchID,
		TransactionHashes: result.TransactionHashes,
	}
}

// ExecuteForIdentity resolves the caller's active verified link first, then
// executes against the linked wallet.
func (s *ExecutionService) ExecuteForIdentity(ctx context.Context, identity string, batch types.DelegatedCallBatch) types.ExecutionOutcome {
	link, err := s.queries.GetActiveVerifiedLink(ctx, identity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return failure(types.KindPermissionDenied, fmt.Sprintf("no verified wallet for identity %q", identity))
		}
		return failure(types.KindPermissionDenied, fmt.Sprintf("failed to load verified link: %v", err))
	}
	return s.Execute(ctx, link.WalletAddress, batch)
}

// ExecuteWithRetry reruns Execute with exponential backoff while the outcome
// is a transient network failure. Nothing else is ever retried: duplicate,
// stale-grant, permission and ambiguous outcomes cannot be fixed by
// resubmitting the same batch.
func (s *ExecutionService) ExecuteWithRetry(ctx context.Context, walletAddress string, batch types.DelegatedCallBatch, maxRetries uint64) types.ExecutionOutcome {
	var outcome types.ExecutionOutcome
	operation := func() error {
		outcome = s.Execute(ctx, walletAddress, batch)
		if !outcome.Success && outcome.ErrorKind == types.KindTransientNetworkError {
			return fmt.Errorf("transient relay failure: %s", outcome.ErrorDetail)
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx)
	// The last outcome is returned regardless; Retry's error adds nothing.
	_ = backoff.Retry(operation, policy)
	return outcome
}

func toPrepareCalls(batch types.DelegatedCallBatch) []relay.PrepareCall {
	calls := make([]relay.PrepareCall, len(batch))
	for i, call := range batch {
		calls[i] = relay.PrepareCall{
			To:   call.Target,
			Data: hexutil.Bytes(call.Data),
		}
		if call.Value != nil && call.Value.Sign() > 0 {
			calls[i].Value = (*hexutil.Big)(call.Value)
		}
	}
	return calls
}
