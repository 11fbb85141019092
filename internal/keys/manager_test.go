package keys_test

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"delegate-api/internal/keys"
	"delegate-api/internal/types"
)

const testKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

type stubSecrets struct {
	value string
	err   error
	calls int
}

func (s *stubSecrets) GetSecretString(_ context.Context, _, _ string) (string, error) {
	s.calls++
	return s.value, s.err
}

func TestManager_PublicIdentifier(t *testing.T) {
	secrets := &stubSecrets{value: "0x" + testKeyHex}
	manager := keys.NewManager(secrets, zap.NewNop())

	id, err := manager.PublicIdentifier(context.Background())
	require.NoError(t, err)

	priv, err := crypto.HexToECDSA(testKeyHex)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(priv.PublicKey).Hex(), id)

	// Key material loads once; later calls reuse it.
	_, err = manager.PublicIdentifier(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, secrets.calls)
}

func TestManager_Sign(t *testing.T) {
	manager := keys.NewManager(&stubSecrets{value: "0x" + testKeyHex}, zap.NewNop())
	ctx := context.Background()

	digest := crypto.Keccak256([]byte("relay digest"))
	sig, err := manager.Sign(ctx, digest)
	require.NoError(t, err)
	require.Len(t, sig, 65)

	// The signature must recover to the manager's own public identifier.
	pub, err := crypto.SigToPub(digest, sig)
	require.NoError(t, err)
	id, err := manager.PublicIdentifier(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, crypto.PubkeyToAddress(*pub).Hex())
}

func TestManager_Sign_RejectsBadDigest(t *testing.T) {
	manager := keys.NewManager(&stubSecrets{value: "0x" + testKeyHex}, zap.NewNop())

	_, err := manager.Sign(context.Background(), []byte("too short"))
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindConfigurationError))
}

func TestManager_Load_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name    string
		secrets *stubSecrets
	}{
		{"source failure", &stubSecrets{err: assert.AnError}},
		{"not hex", &stubSecrets{value: "hello world"}},
		{"wrong length", &stubSecrets{value: "0xabcdef"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager := keys.NewManager(tt.secrets, zap.NewNop())
			err := manager.Load(context.Background())
			require.Error(t, err)
			assert.True(t, types.IsKind(err, types.KindConfigurationError))
		})
	}
}

func TestManager_KeyType(t *testing.T) {
	manager := keys.NewManager(&stubSecrets{value: "0x" + testKeyHex}, zap.NewNop())
	assert.Equal(t, keys.KeyTypeSecp256k1, manager.KeyType())
}
