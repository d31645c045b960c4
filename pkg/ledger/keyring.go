package ledger

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Keyring signs ledger records so audit tooling can detect after-the-fact
// tampering with the validation history.
type Keyring struct {
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
}

// ledgerKeyInfo is the HKDF info label; deriving per-purpose keys from one
// master secret keeps the ledger key separate from any future signing use.
const ledgerKeyInfo = "keel/ledger/v1"

// NewKeyring derives the ledger signing key from a master secret.
func NewKeyring(masterSecret []byte) (*Keyring, error) {
	if len(masterSecret) == 0 {
		return nil, fmt.Errorf("ledger: empty master secret")
	}
	kdf := hkdf.New(sha256.New, masterSecret, nil, []byte(ledgerKeyInfo))
	seed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(kdf, seed); err != nil {
		return nil, fmt.Errorf("ledger: derive key: %w", err)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &Keyring{pub: priv.Public().(ed25519.PublicKey), priv: priv}, nil
}

// NewEphemeralKeyring generates a throwaway key, for development and tests.
func NewEphemeralKeyring() (*Keyring, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &Keyring{pub: pub, priv: priv}, nil
}

// Sign returns a base64 signature over msg.
func (k *Keyring) Sign(msg []byte) string {
	return base64.StdEncoding.EncodeToString(ed25519.Sign(k.priv, msg))
}

// Verify checks a base64 signature over msg.
func (k *Keyring) Verify(msg []byte, signature string) bool {
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	return ed25519.Verify(k.pub, msg, sig)
}

// PublicKey returns the verification key.
func (k *Keyring) PublicKey() ed25519.PublicKey { return k.pub }
