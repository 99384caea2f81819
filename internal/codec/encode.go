// Package codec implements the binary value encoding used by contract
// arguments and return data.
//
// Values travel in two forms. The top-level form is used for a single
// argument or a single return-data part: integers are big-endian with leading
// zero bytes stripped and zero is the empty byte string. The nested form is
// used inside lists, options and tuples: fixed-width integers and 4-byte
// length prefixes for variable-size values.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"github.com/dmagro/novax/internal/address"
)

// ErrEncode is returned when a Go value has no wire representation.
var ErrEncode = errors.New("codec: cannot encode value")

// EncodeUint64 returns the minimal big-endian encoding of v. Zero encodes as
// an empty slice.
func EncodeUint64(v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return trimLeadingZeros(buf[:])
}

// EncodeBigUint returns the minimal big-endian encoding of a non-negative
// integer. A nil pointer encodes like zero.
func EncodeBigUint(v *big.Int) ([]byte, error) {
	if v == nil {
		return []byte{}, nil
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative value %s for unsigned integer", ErrEncode, v)
	}
	return v.Bytes(), nil
}

// EncodeInt64 returns the minimal two's complement encoding of v.
func EncodeInt64(v int64) []byte {
	return EncodeBigInt(big.NewInt(v))
}

// EncodeBigInt returns the minimal two's complement encoding of v. Zero
// encodes as an empty slice.
func EncodeBigInt(v *big.Int) []byte {
	if v == nil || v.Sign() == 0 {
		return []byte{}
	}
	if v.Sign() > 0 {
		b := v.Bytes()
		if b[0]&0x80 != 0 {
			b = append([]byte{0}, b...)
		}
		return b
	}

	// Two's complement of a negative value on the smallest number of bytes
	// that keeps the sign bit set.
	n := (v.BitLen() + 8) / 8
	mod := new(big.Int).Lsh(big.NewInt(1), uint(n*8))
	b := new(big.Int).Add(mod, v).Bytes()
	for len(b) < n {
		b = append([]byte{0xff}, b...)
	}
	for len(b) > 1 && b[0] == 0xff && b[1]&0x80 != 0 {
		b = b[1:]
	}
	return b
}

// EncodeBool returns 0x01 for true and an empty slice for false.
func EncodeBool(v bool) []byte {
	if v {
		return []byte{1}
	}
	return []byte{}
}

// Encode top-encodes a Go value. Supported types are the integer kinds,
// *big.Int (unsigned), bool, string, []byte and address.Address.
func Encode(v any) ([]byte, error) {
	switch x := v.(type) {
	case []byte:
		return append([]byte{}, x...), nil
	case string:
		return []byte(x), nil
	case bool:
		return EncodeBool(x), nil
	case *big.Int:
		return EncodeBigUint(x)
	case big.Int:
		return EncodeBigUint(&x)
	case address.Address:
		return x.Bytes(), nil
	case uint8:
		return EncodeUint64(uint64(x)), nil
	case uint16:
		return EncodeUint64(uint64(x)), nil
	case uint32:
		return EncodeUint64(uint64(x)), nil
	case uint64:
		return EncodeUint64(x), nil
	case uint:
		return EncodeUint64(uint64(x)), nil
	case int8:
		return EncodeInt64(int64(x)), nil
	case int16:
		return EncodeInt64(int64(x)), nil
	case int32:
		return EncodeInt64(int64(x)), nil
	case int64:
		return EncodeInt64(x), nil
	case int:
		return EncodeInt64(int64(x)), nil
	default:
		return nil, fmt.Errorf("%w: unsupported type %T", ErrEncode, v)
	}
}

// EncodeAll top-encodes each value, in order.
func EncodeAll(values ...any) ([][]byte, error) {
	out := make([][]byte, 0, len(values))
	for i, v := range values {
		b, err := Encode(v)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		out = append(out, b)
	}
	return out, nil
}

func trimLeadingZeros(b []byte) []byte {
	i := 0
	for i < len(b) && b[i] == 0 {
		i++
	}
	return append([]byte{}, b[i:]...)
}
