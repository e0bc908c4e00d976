package signer

import (
	"fmt"

	solanago "github.com/gagliardetto/solana-go"
)

// Signer produces transaction signatures for a single wallet.
type Signer interface {
	// PublicKey returns the wallet address transactions are signed for.
	PublicKey() solanago.PublicKey

	// Sign signs every required signature slot of the transaction that
	// belongs to this wallet.
	Sign(tx *solanago.Transaction) error
}

// Local signs with an in-process ed25519 keypair.
type Local struct {
	key solanago.PrivateKey
}

// Compile-time interface check.
var _ Signer = (*Local)(nil)

// NewLocal creates a signer from a base58-encoded private key.
func NewLocal(base58Key string) (*Local, error) {
	key, err := solanago.PrivateKeyFromBase58(base58Key)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return &Local{key: key}, nil
}

// PublicKey returns the wallet address.
func (l *Local) PublicKey() solanago.PublicKey {
	return l.key.PublicKey()
}

// Sign signs the transaction with the local key.
func (l *Local) Sign(tx *solanago.Transaction) error {
	_, err := tx.Sign(func(key solanago.PublicKey) *solanago.PrivateKey {
		if key.Equals(l.key.PublicKey()) {
			return &l.key
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("sign transaction: %w", err)
	}
	return nil
}
