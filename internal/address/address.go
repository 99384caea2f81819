// Package address implements the 32-byte account identifier used by the
// network, together with its bech32 text form ("erd1...").
package address

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

const (
	// HRP is the human readable part of every bech32 address.
	HRP = "erd"

	// Length is the size of an address in bytes.
	Length = 32
)

// ErrInvalidAddress is returned for any text or byte input that is not a
// valid address.
var ErrInvalidAddress = errors.New("invalid address")

// Address is an immutable account or contract identifier. Two addresses are
// equal when their raw bytes are equal, so Address can be compared with ==
// and used as a map key.
type Address [Length]byte

// Zero is the all-zero address. Deploy transactions are sent to it.
var Zero Address

// FromBytes copies b into an Address. b must be exactly 32 bytes long.
func FromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != Length {
		return a, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidAddress, Length, len(b))
	}
	copy(a[:], b)
	return a, nil
}

// FromHex parses the hex form of the raw bytes.
func FromHex(s string) (Address, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return FromBytes(b)
}

// FromBech32 parses the checksummed text form.
func FromBech32(s string) (Address, error) {
	hrp, data, err := bech32.Decode(s)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %q: %v", ErrInvalidAddress, s, err)
	}
	if hrp != HRP {
		return Address{}, fmt.Errorf("%w: %q: unexpected prefix %q", ErrInvalidAddress, s, hrp)
	}

	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %q: %v", ErrInvalidAddress, s, err)
	}
	return FromBytes(raw)
}

// MustFromBech32 is FromBech32 for package-level constants and tests.
func MustFromBech32(s string) Address {
	a, err := FromBech32(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Bech32 returns the checksummed text form.
func (a Address) Bech32() string {
	// Converting 32 bytes to 5-bit groups and encoding them cannot fail.
	conv, _ := bech32.ConvertBits(a[:], 8, 5, true)
	s, _ := bech32.Encode(HRP, conv)
	return s
}

// String implements fmt.Stringer.
func (a Address) String() string { return a.Bech32() }

// Bytes returns a copy of the raw bytes.
func (a Address) Bytes() []byte {
	b := make([]byte, Length)
	copy(b, a[:])
	return b
}

// Hex returns the raw bytes hex encoded.
func (a Address) Hex() string { return hex.EncodeToString(a[:]) }

// IsZero reports whether a is the zero address.
func (a Address) IsZero() bool { return a == Zero }

// IsSmartContract reports whether a belongs to a contract. Contract addresses
// start with 8 zero bytes.
func (a Address) IsSmartContract() bool {
	for _, b := range a[:8] {
		if b != 0 {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the address as its bech32 string.
func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Bech32())
}

// UnmarshalJSON decodes a bech32 string.
func (a *Address) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	parsed, err := FromBech32(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
