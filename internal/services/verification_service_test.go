package services_test

import (
	"context"
	"crypto/ecdsa"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"delegate-api/internal/db"
	"delegate-api/internal/logger"
	"delegate-api/internal/mocks"
	"delegate-api/internal/services"
	"delegate-api/internal/types"
)

func init() {
	logger.InitLogger()
}

// testKey is a throwaway key used only in tests.
const testKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func mustTestKey(t *testing.T) (*ecdsa.PrivateKey, string) {
	t.Helper()
	key, err := crypto.HexToECDSA(testKeyHex)
	require.NoError(t, err)
	return key, crypto.PubkeyToAddress(key.PublicKey).Hex()
}

// signMessage signs the way wallets do: EIP-191 prefix, V as 27/28.
func signMessage(t *testing.T, key *ecdsa.PrivateKey, message string) []byte {
	t.Helper()
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	require.NoError(t, err)
	sig[64] += 27
	return sig
}

func TestVerificationService_Verify(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockQuerier := mocks.NewMockQuerier(ctrl)
	service := services.NewVerificationService(mockQuerier)
	ctx := context.Background()

	key, address := mustTestKey(t)
	otherKey, _ := crypto.GenerateKey()

	t.Run("valid signature records an active link", func(t *testing.T) {
		challenge, err := service.IssueChallenge(ctx, "42", "alice")
		require.NoError(t, err)
		assert.Contains(t, challenge.Message, "Identity: 42")
		assert.Contains(t, challenge.Message, "Handle: alice")

		mockQuerier.EXPECT().
			CreateVerifiedLink(ctx, gomock.Any()).
			DoAndReturn(func(_ context.Context, arg db.CreateVerifiedLinkParams) (db.VerifiedLink, error) {
				assert.Equal(t, "42", arg.Identity)
				assert.Equal(t, address, arg.WalletAddress)
				assert.Equal(t, challenge.ChallengeHash, arg.ChallengeHash.String)
				return db.VerifiedLink{
					Identity:      arg.Identity,
					WalletAddress: arg.WalletAddress,
					Active:        true,
				}, nil
			})

		link, err := service.Verify(ctx, services.VerifyParams{
			Address:   address,
			Signature: signMessage(t, key, challenge.Message),
			Message:   challenge.Message,
			Identity:  "42",
			Handle:    "alice",
		})
		require.NoError(t, err)
		assert.True(t, link.Active)
		assert.Equal(t, address, link.WalletAddress)
	})

	t.Run("wrong signer fails with signature mismatch and writes nothing", func(t *testing.T) {
		challenge, err := service.IssueChallenge(ctx, "42", "alice")
		require.NoError(t, err)

		// No CreateVerifiedLink expectation: any write would fail the test.
		_, err = service.Verify(ctx, services.VerifyParams{
			Address:   address,
			Signature: signMessage(t, otherKey, challenge.Message),
			Message:   challenge.Message,
			Identity:  "42",
		})
		require.Error(t, err)
		assert.True(t, types.IsKind(err, types.KindSignatureMismatch))
	})

	t.Run("unissued challenge fails as expired", func(t *testing.T) {
		message := "delegate-api wallet verification\nIdentity: 42\nHandle: alice\nIssued-At: 2020-01-01T00:00:00Z\nNonce: 0xdeadbeef"
		_, err := service.Verify(ctx, services.VerifyParams{
			Address:   address,
			Signature: signMessage(t, key, message),
			Message:   message,
			Identity:  "42",
		})
		require.Error(t, err)
		assert.True(t, types.IsKind(err, types.KindChallengeExpired))
	})

	t.Run("challenge is single use", func(t *testing.T) {
		challenge, err := service.IssueChallenge(ctx, "42", "alice")
		require.NoError(t, err)
		signature := signMessage(t, key, challenge.Message)

		mockQuerier.EXPECT().
			CreateVerifiedLink(ctx, gomock.Any()).
			Return(db.VerifiedLink{Identity: "42", WalletAddress: address, Active: true}, nil)

		_, err = service.Verify(ctx, services.VerifyParams{
			Address: address, Signature: signature, Message: challenge.Message, Identity: "42",
		})
		require.NoError(t, err)

		_, err = service.Verify(ctx, services.VerifyParams{
			Address: address, Signature: signature, Message: challenge.Message, Identity: "42",
		})
		require.Error(t, err)
		assert.True(t, types.IsKind(err, types.KindChallengeExpired))
	})

	t.Run("challenge bound to the issuing identity", func(t *testing.T) {
		challenge, err := service.IssueChallenge(ctx, "42", "alice")
		require.NoError(t, err)
		signature := signMessage(t, key, challenge.Message)

		_, err = service.Verify(ctx, services.VerifyParams{
			Address:   address,
			Signature: signature,
			Message:   challenge.Message,
			Identity:  "43",
		})
		require.Error(t, err)
		assert.True(t, types.IsKind(err, types.KindChallengeExpired))

		// The mismatched submission must not consume the challenge: the
		// issuing identity still verifies with the same message.
		mockQuerier.EXPECT().
			CreateVerifiedLink(ctx, gomock.Any()).
			Return(db.VerifiedLink{Identity: "42", WalletAddress: address, Active: true}, nil)

		link, err := service.Verify(ctx, services.VerifyParams{
			Address:   address,
			Signature: signature,
			Message:   challenge.Message,
			Identity:  "42",
		})
		require.NoError(t, err)
		assert.True(t, link.Active)
	})

	t.Run("invalid address rejected before recovery", func(t *testing.T) {
		_, err := service.Verify(ctx, services.VerifyParams{
			Address:   "not-an-address",
			Signature: []byte{0x01},
			Message:   "whatever",
			Identity:  "42",
		})
		require.Error(t, err)
		assert.True(t, types.IsKind(err, types.KindSignatureMismatch))
	})
}

func TestVerificationService_Reverify(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockQuerier := mocks.NewMockQuerier(ctrl)
	service := services.NewVerificationService(mockQuerier)
	ctx := context.Background()

	key, address := mustTestKey(t)

	// Two verifications for the same identity: each one goes through the
	// superseding insert, so the latest link wins.
	mockQuerier.EXPECT().
		CreateVerifiedLink(ctx, gomock.Any()).
		Return(db.VerifiedLink{Identity: "42", WalletAddress: address, Active: true}, nil).
		Times(2)

	for i := 0; i < 2; i++ {
		challenge, err := service.IssueChallenge(ctx, "42", "alice")
		require.NoError(t, err)

		link, err := service.Verify(ctx, services.VerifyParams{
			Address:   address,
			Signature: signMessage(t, key, challenge.Message),
			Message:   challenge.Message,
			Identity:  "42",
			Handle:    "alice",
		})
		require.NoError(t, err)
		assert.True(t, link.Active)
	}
}

func TestVerificationService_Revoke(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockQuerier := mocks.NewMockQuerier(ctrl)
	service := services.NewVerificationService(mockQuerier)
	ctx := context.Background()

	mockQuerier.EXPECT().RevokeVerifiedLinks(ctx, "42").Return(int64(1), nil)

	revoked, err := service.Revoke(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, int64(1), revoked)
}
