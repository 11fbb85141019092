// Package keys owns the backend session signing key. Exactly one keypair is
// active per deployment; rotation happens by redeploying with a new secret.
package keys

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"delegate-api/internal/types"
)

// KeyTypeSecp256k1 is the curve the relay registers session keys under. The
// grant ceremony records this type next to the public identifier; execution
// fails with a configuration error if they disagree.
const KeyTypeSecp256k1 = "secp256k1"

const (
	secretArnEnvVar   = "SESSION_KEY_SECRET_ARN"
	fallbackKeyEnvVar = "SESSION_SIGNER_PRIVATE_KEY"
)

// rotationHint is how long a session key can live before load starts logging
// a rotation reminder. Soft only: backend keys are long-lived relative to
// grants and nothing is enforced here.
const rotationHint = 90 * 24 * time.Hour

// SecretSource provides the provisioned signing key material.
type SecretSource interface {
	GetSecretString(ctx context.Context, secretArnEnvVar string, fallbackEnvVar string) (string, error)
}

// Manager holds the backend session keypair. Key material is materialized
// lazily on first use and immutable for the process lifetime; concurrent
// reads need no locking after load.
type Manager struct {
	secrets SecretSource
	logger  *zap.Logger

	once     sync.Once
	loadErr  error
	priv     *ecdsa.PrivateKey
	address  common.Address
	loadedAt time.Time
}

// NewManager creates a session key manager reading its key from the given
// secret source. The manager is injected wherever signing is needed; there is
// deliberately no package-level instance.
func NewManager(secrets SecretSource, log *zap.Logger) *Manager {
	return &Manager{secrets: secrets, logger: log}
}

func (m *Manager) load(ctx context.Context) error {
	m.once.Do(func() {
		raw, err := m.secrets.GetSecretString(ctx, secretArnEnvVar, fallbackKeyEnvVar)
		if err != nil {
			m.loadErr = types.Errorf(types.KindConfigurationError, "session signing key unavailable: %v", err)
			return
		}

		raw = strings.TrimSpace(raw)
		if !types.IsPrivateKeyValid(raw) {
			m.loadErr = types.NewError(types.KindConfigurationError, "session signing key is not a 32-byte hex private key")
			return
		}

		priv, err := crypto.HexToECDSA(strings.TrimPrefix(raw, "0x"))
		if err != nil {
			m.loadErr = types.Errorf(types.KindConfigurationError, "session signing key is not a valid secp256k1 key: %v", err)
			return
		}

		m.priv = priv
		m.address = crypto.PubkeyToAddress(priv.PublicKey)
		m.loadedAt = time.Now()

		m.logger.Info("Session signing key loaded",
			zap.String("public_identifier", m.address.Hex()),
			zap.String("key_type", KeyTypeSecp256k1),
		)
	})
	return m.loadErr
}

// Load materializes the key eagerly so configuration errors surface at
// startup rather than on the first execution request.
func (m *Manager) Load(ctx context.Context) error {
	return m.load(ctx)
}

// PublicIdentifier returns the EIP-55 address of the session key. This is the
// value the grant-ceremony UI embeds in the user's permission grant.
func (m *Manager) PublicIdentifier(ctx context.Context) (string, error) {
	if err := m.load(ctx); err != nil {
		return "", err
	}
	return m.address.Hex(), nil
}

// KeyType returns the declared curve of the session key.
func (m *Manager) KeyType() string {
	return KeyTypeSecp256k1
}

// Sign signs the relay-provided digest with the session key. The private key
// never leaves this package.
func (m *Manager) Sign(ctx context.Context, digest []byte) ([]byte, error) {
	if err := m.load(ctx); err != nil {
		return nil, err
	}
	if len(digest) != 32 {
		return nil, types.Errorf(types.KindConfigurationError, "digest must be 32 bytes, got %d", len(digest))
	}

	if age := time.Since(m.loadedAt); age > rotationHint {
		m.logger.Warn("Session key past rotation hint",
			zap.Duration("age", age),
			zap.String("public_identifier", m.address.Hex()),
		)
	}

	sig, err := crypto.Sign(digest, m.priv)
	if err != nil {
		return nil, fmt.Errorf("failed to sign digest: %w", err)
	}
	return sig, nil
}
