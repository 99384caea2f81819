package codec

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmagro/novax/internal/address"
)

func TestEncodeUint64(t *testing.T) {
	tests := []struct {
		name string
		in   uint64
		want []byte
	}{
		{"zero", 0, []byte{}},
		{"one byte", 5, []byte{0x05}},
		{"two bytes", 1000, []byte{0x03, 0xe8}},
		{"max", ^uint64(0), []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EncodeUint64(tt.in))
		})
	}
}

func TestEncodeBigInt(t *testing.T) {
	tests := []struct {
		in   int64
		want []byte
	}{
		{0, []byte{}},
		{1, []byte{0x01}},
		{127, []byte{0x7f}},
		{128, []byte{0x00, 0x80}},
		{-1, []byte{0xff}},
		{-128, []byte{0x80}},
		{-129, []byte{0xff, 0x7f}},
		{-256, []byte{0xff, 0x00}},
	}

	for _, tt := range tests {
		got := EncodeInt64(tt.in)
		assert.Equal(t, tt.want, got, "encode %d", tt.in)

		back, err := DecodeTop(got, I64)
		require.NoError(t, err)
		assert.Equal(t, tt.in, back, "decode %x", got)
	}
}

func TestEncodeBigUintRejectsNegative(t *testing.T) {
	_, err := EncodeBigUint(big.NewInt(-1))
	assert.ErrorIs(t, err, ErrEncode)

	b, err := EncodeBigUint(nil)
	require.NoError(t, err)
	assert.Empty(t, b)
}

func TestEncodeAll(t *testing.T) {
	out, err := EncodeAll(uint64(2), "swap", true, false, big.NewInt(256))
	require.NoError(t, err)
	assert.Equal(t, [][]byte{{0x02}, []byte("swap"), {0x01}, {}, {0x01, 0x00}}, out)

	_, err = EncodeAll(3.14)
	assert.ErrorIs(t, err, ErrEncode)
}

func TestDecodeTopPrimitives(t *testing.T) {
	v, err := DecodeTop([]byte{0x05}, BigUint)
	require.NoError(t, err)
	assert.Equal(t, "5", v.(*big.Int).String())

	v, err = DecodeTop(nil, U64)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), v)

	v, err = DecodeTop([]byte{0x01, 0x00}, U16)
	require.NoError(t, err)
	assert.Equal(t, uint16(256), v)

	_, err = DecodeTop([]byte{0x01, 0x00}, U8)
	assert.ErrorIs(t, err, ErrDecode)

	_, err = DecodeTop([]byte{0x02}, Bool)
	assert.ErrorIs(t, err, ErrDecode)

	v, err = DecodeTop([]byte("WEGLD-abcdef"), String)
	require.NoError(t, err)
	assert.Equal(t, "WEGLD-abcdef", v)

	_, err = DecodeTop(make([]byte, 31), Address)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestDecodeNestedShapes(t *testing.T) {
	// List<u32> top-encoded: 1, 2
	v, err := DecodeTop([]byte{0, 0, 0, 1, 0, 0, 0, 2}, List(U32))
	require.NoError(t, err)
	assert.Equal(t, []any{uint32(1), uint32(2)}, v)

	// Option<BigUint>: Some(5)
	v, err = DecodeTop([]byte{1, 0, 0, 0, 1, 5}, Option(BigUint))
	require.NoError(t, err)
	assert.Equal(t, "5", v.(*big.Int).String())

	v, err = DecodeTop(nil, Option(BigUint))
	require.NoError(t, err)
	assert.Nil(t, v)

	// tuple<String,u64>
	raw := append([]byte{0, 0, 0, 3}, []byte("abc")...)
	raw = append(raw, 0, 0, 0, 0, 0, 0, 0, 9)
	v, err = DecodeTop(raw, Tuple(String, U64))
	require.NoError(t, err)
	assert.Equal(t, []any{"abc", uint64(9)}, v)

	_, err = DecodeTop(append(raw, 0xff), Tuple(String, U64))
	assert.ErrorIs(t, err, ErrDecode)
}

func TestDecodeRejectsOversizedCounts(t *testing.T) {
	tests := []struct {
		name  string
		parts [][]byte
		shape Type
	}{
		{"list count beyond input", [][]byte{{0x01, 0xff, 0xff, 0xff, 0xff}}, Option(List(U64))},
		{"list count of one with no bytes", [][]byte{{0x01, 0, 0, 0, 1}}, Option(List(U8))},
		{"nested list count", [][]byte{{0x7f, 0xff, 0xff, 0xff}}, List(List(U8))},
		{"empty items in a top list", [][]byte{{0x00}}, List(Tuple())},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeMulti(tt.parts, tt.shape)
			assert.ErrorIs(t, err, ErrDecode)
		})
	}

	v, err := DecodeMulti([][]byte{{0x01, 0, 0, 0, 2, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0, 2}}, Option(List(U64)))
	require.NoError(t, err)
	assert.Equal(t, []any{uint64(1), uint64(2)}, v)
}

func TestDecodeMulti(t *testing.T) {
	owner := make([]byte, 32)
	owner[31] = 7

	parts := [][]byte{owner, {0x0a}, {0x01}, {0x02}}
	v, err := DecodeMulti(parts, Multi(Address, BigUint, Variadic(U8)))
	require.NoError(t, err)

	out := v.([]any)
	require.Len(t, out, 3)
	assert.Equal(t, byte(7), out[0].(address.Address)[31])
	assert.Equal(t, "10", out[1].(*big.Int).String())
	assert.Equal(t, []any{uint8(1), uint8(2)}, out[2])

	_, err = DecodeMulti(parts, BigUint)
	assert.ErrorIs(t, err, ErrDecode)

	_, err = DecodeMulti(nil, BigUint)
	assert.ErrorIs(t, err, ErrDecode)

	v, err = DecodeMulti(nil, Optional(U64))
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = DecodeMulti(parts, Raw)
	require.NoError(t, err)
	assert.Equal(t, parts, v)
}

func TestLookup(t *testing.T) {
	tests := []struct {
		abi  string
		want string
	}{
		{"BigUint", "BigUint"},
		{"TokenIdentifier", "String"},
		{"List<u64>", "List<u64>"},
		{"Option<ManagedAddress>", "Option<Address>"},
		{"variadic<multi<Address,BigUint>>", "variadic<multi<Address,BigUint>>"},
		{"MultiValue2<u32, bool>", "multi<u32,bool>"},
		{"OptionalValue<BigUint>", "optional<BigUint>"},
	}

	for _, tt := range tests {
		t.Run(tt.abi, func(t *testing.T) {
			got, err := Lookup(tt.abi)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Name())
		})
	}

	_, err := Lookup("f64")
	assert.ErrorIs(t, err, ErrUnknownType)

	_, err = Lookup("List<u64")
	assert.ErrorIs(t, err, ErrUnknownType)
}
