package services_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"delegate-api/internal/client/relay"
	"delegate-api/internal/db"
	"delegate-api/internal/keys"
	"delegate-api/internal/mocks"
	"delegate-api/internal/services"
	"delegate-api/internal/types"
)

// staticSecret feeds the key manager a fixed private key, standing in for
// Secrets Manager.
type staticSecret struct{ value string }

func (s staticSecret) GetSecretString(_ context.Context, _, _ string) (string, error) {
	return s.value, nil
}

const testChainID = 11155111

func newTestEngine(t *testing.T) (*services.ExecutionService, *mocks.MockQuerier, *mocks.MockRelayClient, string) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	mockQuerier := mocks.NewMockQuerier(ctrl)
	mockRelay := mocks.NewMockRelayClient(ctrl)

	manager := keys.NewManager(staticSecret{value: "0x" + testKeyHex}, zap.NewNop())
	keyID, err := manager.PublicIdentifier(context.Background())
	require.NoError(t, err)

	permissions := services.NewPermissionService(mockQuerier)
	engine := services.NewExecutionService(mockQuerier, permissions, manager, mockRelay, testChainID)
	return engine, mockQuerier, mockRelay, keyID
}

func executionGrantRow(keyID string, targets ...string) db.PermissionGrant {
	now := time.Now()
	return db.PermissionGrant{
		ID:                 "grant-live",
		WalletAddress:      testWallet,
		BackendKeyPublicID: keyID,
		Expiry:             pgtype.Timestamptz{Time: now.Add(time.Hour), Valid: true},
		AllowedTargets:     targets,
		GrantedAt:          pgtype.Timestamptz{Time: now.Add(-time.Minute), Valid: true},
	}
}

func testBatch(targets ...string) types.DelegatedCallBatch {
	batch := make(types.DelegatedCallBatch, len(targets))
	for i, target := range targets {
		batch[i] = types.Call{Target: target, Data: []byte{0xa9, 0x05, 0x9c, 0xbb, byte(i)}}
	}
	return batch
}

func TestExecutionService_Execute_Success(t *testing.T) {
	engine, mockQuerier, mockRelay, keyID := newTestEngine(t)
	ctx := context.Background()

	digest := crypto.Keccak256([]byte("prepared batch"))
	relayContext := json.RawMessage(`{"precallId":"pc-1","nonce":7}`)

	mockQuerier.EXPECT().ListPermissionGrantsByWallet(ctx, testWallet).
		Return([]db.PermissionGrant{executionGrantRow(keyID, testTokenA)}, nil)

	mockRelay.EXPECT().
		PrepareCalls(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, req *relay.PrepareRequest) (*relay.PrepareResponse, error) {
			assert.Equal(t, uint64(testChainID), req.ChainID)
			assert.Equal(t, testWallet, req.From)
			assert.True(t, req.AtomicRequired)
			assert.Equal(t, keys.KeyTypeSecp256k1, req.Key.Type)
			assert.Equal(t, keyID, req.Key.PublicID)
			return &relay.PrepareResponse{Digest: digest, Context: relayContext}, nil
		})

	mockRelay.EXPECT().
		SendPreparedCalls(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, req *relay.SubmitRequest) (*relay.SubmitResult, error) {
			// The relay context must come back byte for byte, never rebuilt.
			assert.True(t, bytes.Equal(relayContext, req.Context))
			assert.Len(t, []byte(req.Signature), 65)
			return &relay.SubmitResult{
				BatchID:           "batch-1",
				TransactionHashes: []string{"0xabc"},
			}, nil
		})

	outcome := engine.Execute(ctx, testWallet, testBatch(testTokenA))
	require.True(t, outcome.Success)
	assert.Equal(t, "batch-1", outcome.RelayBatchID)
	assert.Equal(t, []string{"0xabc"}, outcome.TransactionHashes)
}

func TestExecutionService_Execute_OutOfScopeMakesNoRelayCalls(t *testing.T) {
	engine, mockQuerier, _, keyID := newTestEngine(t)
	ctx := context.Background()

	// The grant only covers token A; the batch touches token B. The relay
	// mock has zero expectations, so any network call fails the test.
	mockQuerier.EXPECT().ListPermissionGrantsByWallet(ctx, testWallet).
		Return([]db.PermissionGrant{executionGrantRow(keyID, testTokenA)}, nil)

	outcome := engine.Execute(ctx, testWallet, testBatch(testTokenB))
	require.False(t, outcome.Success)
	assert.Equal(t, types.KindPermissionDenied, outcome.ErrorKind)
	assert.Equal(t, types.DetailScopeInsufficient, outcome.ErrorDetail)
}

func TestExecutionService_Execute_EmptyBatch(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)

	outcome := engine.Execute(context.Background(), testWallet, nil)
	require.False(t, outcome.Success)
	assert.Equal(t, types.KindPermissionDenied, outcome.ErrorKind)
}

func TestExecutionService_Execute_GrantNamesDifferentKey(t *testing.T) {
	engine, mockQuerier, _, _ := newTestEngine(t)
	ctx := context.Background()

	grant := executionGrantRow(testBackend, testTokenA) // not this deployment's key
	mockQuerier.EXPECT().ListPermissionGrantsByWallet(ctx, testWallet).
		Return([]db.PermissionGrant{grant}, nil)

	outcome := engine.Execute(ctx, testWallet, testBatch(testTokenA))
	require.False(t, outcome.Success)
	assert.Equal(t, types.KindConfigurationError, outcome.ErrorKind)
}

func TestExecutionService_Execute_DuplicateBatch(t *testing.T) {
	engine, mockQuerier, mockRelay, keyID := newTestEngine(t)
	ctx := context.Background()

	digest := crypto.Keccak256([]byte("prepared batch"))
	relayContext := json.RawMessage(`{"precallId":"pc-1"}`)
	batch := testBatch(testTokenA)

	mockQuerier.EXPECT().ListPermissionGrantsByWallet(ctx, testWallet).
		Return([]db.PermissionGrant{executionGrantRow(keyID, testTokenA)}, nil).
		Times(2)

	gomock.InOrder(
		mockRelay.EXPECT().PrepareCalls(ctx, gomock.Any()).
			Return(&relay.PrepareResponse{Digest: digest, Context: relayContext}, nil),
		mockRelay.EXPECT().SendPreparedCalls(ctx, gomock.Any()).
			Return(&relay.SubmitResult{BatchID: "batch-1"}, nil),
		// The identical batch from the same signer trips relay-level dedup.
		mockRelay.EXPECT().PrepareCalls(ctx, gomock.Any()).
			Return(nil, &relay.Error{StatusCode: 409, Message: "duplicate call batch detected"}),
	)

	first := engine.Execute(ctx, testWallet, batch)
	require.True(t, first.Success)

	second := engine.Execute(ctx, testWallet, batch)
	require.False(t, second.Success)
	assert.Equal(t, types.KindDuplicateBatch, second.ErrorKind)
}

func TestExecutionService_Execute_SubmitTimeoutIsAmbiguous(t *testing.T) {
	engine, mockQuerier, mockRelay, keyID := newTestEngine(t)
	ctx := context.Background()

	mockQuerier.EXPECT().ListPermissionGrantsByWallet(ctx, testWallet).
		Return([]db.PermissionGrant{executionGrantRow(keyID, testTokenA)}, nil)
	mockRelay.EXPECT().PrepareCalls(ctx, gomock.Any()).
		Return(&relay.PrepareResponse{
			Digest:  crypto.Keccak256([]byte("x")),
			Context: json.RawMessage(`{}`),
		}, nil)
	// A timed-out submit may still have been applied on-chain.
	mockRelay.EXPECT().SendPreparedCalls(ctx, gomock.Any()).
		Return(nil, &url.Error{Op: "Post", URL: "https://relay/v1/calls/submit", Err: context.DeadlineExceeded})

	outcome := engine.Execute(ctx, testWallet, testBatch(testTokenA))
	require.False(t, outcome.Success)
	assert.Equal(t, types.KindAmbiguousOutcome, outcome.ErrorKind)
}

func TestExecutionService_Execute_PrepareNetworkErrorIsTransient(t *testing.T) {
	engine, mockQuerier, mockRelay, keyID := newTestEngine(t)
	ctx := context.Background()

	mockQuerier.EXPECT().ListPermissionGrantsByWallet(ctx, testWallet).
		Return([]db.PermissionGrant{executionGrantRow(keyID, testTokenA)}, nil)
	mockRelay.EXPECT().PrepareCalls(ctx, gomock.Any()).
		Return(nil, &url.Error{Op: "Post", URL: "https://relay/v1/calls/prepare", Err: context.DeadlineExceeded})

	outcome := engine.Execute(ctx, testWallet, testBatch(testTokenA))
	require.False(t, outcome.Success)
	assert.Equal(t, types.KindTransientNetworkError, outcome.ErrorKind)
}

func TestExecutionService_Execute_NonAtomicPrepareRefused(t *testing.T) {
	engine, mockQuerier, mockRelay, keyID := newTestEngine(t)
	ctx := context.Background()

	mockQuerier.EXPECT().ListPermissionGrantsByWallet(ctx, testWallet).
		Return([]db.PermissionGrant{executionGrantRow(keyID, testTokenA)}, nil)
	// Relay would apply calls one by one; nothing may be signed or submitted.
	mockRelay.EXPECT().PrepareCalls(ctx, gomock.Any()).
		Return(&relay.PrepareResponse{
			Digest:    crypto.Keccak256([]byte("x")),
			Context:   json.RawMessage(`{}`),
			Atomicity: "sequential",
		}, nil)

	outcome := engine.Execute(ctx, testWallet, testBatch(testTokenA))
	require.False(t, outcome.Success)
	assert.Equal(t, types.KindPartialExecutionRisk, outcome.ErrorKind)
}

func TestExecutionService_ExecuteForIdentity(t *testing.T) {
	engine, mockQuerier, mockRelay, keyID := newTestEngine(t)
	ctx := context.Background()

	t.Run("no verified link", func(t *testing.T) {
		mockQuerier.EXPECT().GetActiveVerifiedLink(ctx, "42").
			Return(db.VerifiedLink{}, pgx.ErrNoRows)

		outcome := engine.ExecuteForIdentity(ctx, "42", testBatch(testTokenA))
		require.False(t, outcome.Success)
		assert.Equal(t, types.KindPermissionDenied, outcome.ErrorKind)
	})

	t.Run("no grants yet, then grant synced, then duplicate", func(t *testing.T) {
		batch := testBatch(testTokenA)

		link := db.VerifiedLink{Identity: "42", WalletAddress: testWallet, Active: true}
		mockQuerier.EXPECT().GetActiveVerifiedLink(ctx, "42").Return(link, nil).Times(3)

		gomock.InOrder(
			// Before the grant ceremony: nothing to execute under.
			mockQuerier.EXPECT().ListPermissionGrantsByWallet(ctx, testWallet).Return(nil, nil),
			// After permissions/sync: grant covers token A.
			mockQuerier.EXPECT().ListPermissionGrantsByWallet(ctx, testWallet).
				Return([]db.PermissionGrant{executionGrantRow(keyID, testTokenA)}, nil),
			mockQuerier.EXPECT().ListPermissionGrantsByWallet(ctx, testWallet).
				Return([]db.PermissionGrant{executionGrantRow(keyID, testTokenA)}, nil),
		)
		gomock.InOrder(
			mockRelay.EXPECT().PrepareCalls(ctx, gomock.Any()).
				Return(&relay.PrepareResponse{
					Digest:  crypto.Keccak256([]byte("x")),
					Context: json.RawMessage(`{}`),
				}, nil),
			mockRelay.EXPECT().SendPreparedCalls(ctx, gomock.Any()).
				Return(&relay.SubmitResult{BatchID: "batch-1", TransactionHashes: []string{"0xdef"}}, nil),
			mockRelay.EXPECT().PrepareCalls(ctx, gomock.Any()).
				Return(nil, &relay.Error{StatusCode: 409, Message: "duplicate call batch detected"}),
		)

		outcome := engine.ExecuteForIdentity(ctx, "42", batch)
		require.False(t, outcome.Success)
		assert.Equal(t, types.KindPermissionDenied, outcome.ErrorKind)
		assert.Equal(t, types.DetailNoGrantForWallet, outcome.ErrorDetail)

		outcome = engine.ExecuteForIdentity(ctx, "42", batch)
		require.True(t, outcome.Success)
		assert.Equal(t, "batch-1", outcome.RelayBatchID)

		outcome = engine.ExecuteForIdentity(ctx, "42", batch)
		require.False(t, outcome.Success)
		assert.Equal(t, types.KindDuplicateBatch, outcome.ErrorKind)
	})
}

func TestExecutionService_ExecuteWithRetry(t *testing.T) {
	engine, mockQuerier, mockRelay, keyID := newTestEngine(t)
	ctx := context.Background()

	mockQuerier.EXPECT().ListPermissionGrantsByWallet(ctx, testWallet).
		Return([]db.PermissionGrant{executionGrantRow(keyID, testTokenA)}, nil).
		Times(2)

	gomock.InOrder(
		mockRelay.EXPECT().PrepareCalls(ctx, gomock.Any()).
			Return(nil, &url.Error{Op: "Post", URL: "https://relay", Err: context.DeadlineExceeded}),
		mockRelay.EXPECT().PrepareCalls(ctx, gomock.Any()).
			Return(&relay.PrepareResponse{
				Digest:  crypto.Keccak256([]byte("x")),
				Context: json.RawMessage(`{}`),
			}, nil),
	)
	mockRelay.EXPECT().SendPreparedCalls(ctx, gomock.Any()).
		Return(&relay.SubmitResult{BatchID: "batch-1"}, nil)

	outcome := engine.ExecuteWithRetry(ctx, testWallet, testBatch(testTokenA), 3)
	require.True(t, outcome.Success)
}
