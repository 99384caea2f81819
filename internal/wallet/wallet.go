// Package wallet signs transactions on behalf of an account.
package wallet

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dmagro/novax/internal/address"
)

// ErrInvalidKey is returned when key material cannot be read.
var ErrInvalidKey = errors.New("wallet: invalid key")

// Wallet owns an address and signs payloads for it.
type Wallet interface {
	Address() address.Address
	Sign(payload []byte) ([]byte, error)
}

// KeyWallet is an in-memory ed25519 key pair.
type KeyWallet struct {
	key  ed25519.PrivateKey
	addr address.Address
}

// FromSeed derives a wallet from a 32-byte ed25519 seed.
func FromSeed(seed []byte) (*KeyWallet, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: seed must be %d bytes, got %d", ErrInvalidKey, ed25519.SeedSize, len(seed))
	}
	key := ed25519.NewKeyFromSeed(seed)
	addr, err := address.FromBytes(key.Public().(ed25519.PublicKey))
	if err != nil {
		return nil, err
	}
	return &KeyWallet{key: key, addr: addr}, nil
}

// FromPEM reads the first key of a wallet PEM file. The block body is the
// hex text of seed followed by public key.
func FromPEM(data []byte) (*KeyWallet, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block", ErrInvalidKey)
	}
	if !strings.HasPrefix(block.Type, "PRIVATE KEY") {
		return nil, fmt.Errorf("%w: unexpected PEM type %q", ErrInvalidKey, block.Type)
	}

	raw, err := hex.DecodeString(strings.TrimSpace(string(block.Bytes)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	var seed, pub []byte
	switch len(raw) {
	case ed25519.SeedSize:
		seed = raw
	case ed25519.SeedSize + ed25519.PublicKeySize:
		seed, pub = raw[:ed25519.SeedSize], raw[ed25519.SeedSize:]
	default:
		return nil, fmt.Errorf("%w: key is %d bytes", ErrInvalidKey, len(raw))
	}

	w, err := FromSeed(seed)
	if err != nil {
		return nil, err
	}
	if pub != nil && !bytes.Equal(pub, w.addr.Bytes()) {
		return nil, fmt.Errorf("%w: public key does not match seed", ErrInvalidKey)
	}
	return w, nil
}

// LoadPEM reads a wallet PEM file from path.
func LoadPEM(path string) (*KeyWallet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("wallet: read %s: %w", path, err)
	}
	return FromPEM(data)
}

// EncodePEM renders the wallet as a PEM file readable by FromPEM.
func (w *KeyWallet) EncodePEM() []byte {
	body := hex.EncodeToString(append(w.key.Seed(), w.addr.Bytes()...))
	return pem.EncodeToMemory(&pem.Block{
		Type:  "PRIVATE KEY for " + w.addr.Bech32(),
		Bytes: []byte(body),
	})
}

// Address implements Wallet.
func (w *KeyWallet) Address() address.Address { return w.addr }

// Sign implements Wallet.
func (w *KeyWallet) Sign(payload []byte) ([]byte, error) {
	return ed25519.Sign(w.key, payload), nil
}

// Verify checks sig against payload for the wallet's public key.
func (w *KeyWallet) Verify(payload, sig []byte) bool {
	return ed25519.Verify(w.key.Public().(ed25519.PublicKey), payload, sig)
}
