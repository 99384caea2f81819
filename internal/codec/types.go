package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/dmagro/novax/internal/address"
)

// ErrDecode is matched by every decoding failure.
var ErrDecode = errors.New("codec: cannot decode value")

// DecodeError describes why bytes could not be decoded as a given type.
type DecodeError struct {
	Type   string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("codec: cannot decode %s: %s", e.Type, e.Reason)
}

// Is makes DecodeError match ErrDecode.
func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

func decodeErr(t Type, format string, args ...any) error {
	return &DecodeError{Type: t.Name(), Reason: fmt.Sprintf(format, args...)}
}

// Type is a runtime descriptor of a wire type. Decoded values use these Go
// types:
//
//	U8/U16/U32/U64  uint8/uint16/uint32/uint64
//	I64             int64
//	BigUint/BigInt  *big.Int
//	Bool            bool
//	Bytes           []byte
//	String          string
//	Address         address.Address
//	Option(T)       nil or the value of T
//	List(T)         []any
//	Tuple(T...)     []any
type Type interface {
	Name() string

	decodeTop(b []byte) (any, error)
	decodeNested(r *reader) (any, error)
}

type reader struct {
	buf []byte
	pos int
}

func (r *reader) remaining() int { return len(r.buf) - r.pos }

func (r *reader) take(t Type, n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, decodeErr(t, "need %d bytes, have %d", n, r.remaining())
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) length(t Type) (int, error) {
	b, err := r.take(t, 4)
	if err != nil {
		return 0, err
	}
	return int(binary.BigEndian.Uint32(b)), nil
}

// DecodeTop decodes a single top-encoded value.
func DecodeTop(b []byte, t Type) (any, error) {
	return t.decodeTop(b)
}

// DecodeNested decodes a nested-encoded value that must consume all of b.
func DecodeNested(b []byte, t Type) (any, error) {
	r := &reader{buf: b}
	v, err := t.decodeNested(r)
	if err != nil {
		return nil, err
	}
	if r.remaining() != 0 {
		return nil, decodeErr(t, "%d trailing bytes", r.remaining())
	}
	return v, nil
}

type uintType struct {
	name  string
	width int
}

var (
	U8  Type = uintType{"u8", 1}
	U16 Type = uintType{"u16", 2}
	U32 Type = uintType{"u32", 4}
	U64 Type = uintType{"u64", 8}
)

func (u uintType) Name() string { return u.name }

func (u uintType) cast(v uint64) any {
	switch u.width {
	case 1:
		return uint8(v)
	case 2:
		return uint16(v)
	case 4:
		return uint32(v)
	default:
		return v
	}
}

func (u uintType) decodeTop(b []byte) (any, error) {
	if len(b) > u.width {
		return nil, decodeErr(u, "%d bytes exceed width %d", len(b), u.width)
	}
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return u.cast(v), nil
}

func (u uintType) decodeNested(r *reader) (any, error) {
	b, err := r.take(u, u.width)
	if err != nil {
		return nil, err
	}
	return u.decodeTop(b)
}

type i64Type struct{}

// I64 is a signed 64-bit integer.
var I64 Type = i64Type{}

func (i64Type) Name() string { return "i64" }

func (t i64Type) decodeTop(b []byte) (any, error) {
	if len(b) > 8 {
		return nil, decodeErr(t, "%d bytes exceed width 8", len(b))
	}
	v := signedFromBytes(b)
	if !v.IsInt64() {
		return nil, decodeErr(t, "value %s out of range", v)
	}
	return v.Int64(), nil
}

func (t i64Type) decodeNested(r *reader) (any, error) {
	b, err := r.take(t, 8)
	if err != nil {
		return nil, err
	}
	return t.decodeTop(b)
}

type bigType struct{ signed bool }

var (
	// BigUint is an arbitrary size unsigned integer.
	BigUint Type = bigType{signed: false}
	// BigInt is an arbitrary size two's complement signed integer.
	BigInt Type = bigType{signed: true}
)

func (b bigType) Name() string {
	if b.signed {
		return "BigInt"
	}
	return "BigUint"
}

func (b bigType) decodeTop(raw []byte) (any, error) {
	if b.signed {
		return signedFromBytes(raw), nil
	}
	return new(big.Int).SetBytes(raw), nil
}

func (b bigType) decodeNested(r *reader) (any, error) {
	n, err := r.length(b)
	if err != nil {
		return nil, err
	}
	raw, err := r.take(b, n)
	if err != nil {
		return nil, err
	}
	return b.decodeTop(raw)
}

func signedFromBytes(b []byte) *big.Int {
	v := new(big.Int).SetBytes(b)
	if len(b) > 0 && b[0]&0x80 != 0 {
		v.Sub(v, new(big.Int).Lsh(big.NewInt(1), uint(len(b)*8)))
	}
	return v
}

type boolType struct{}

// Bool is encoded as 0x01 (true) or empty / 0x00 (false).
var Bool Type = boolType{}

func (boolType) Name() string { return "bool" }

func (t boolType) decodeTop(b []byte) (any, error) {
	switch {
	case len(b) == 0:
		return false, nil
	case len(b) == 1 && b[0] == 0:
		return false, nil
	case len(b) == 1 && b[0] == 1:
		return true, nil
	default:
		return nil, decodeErr(t, "invalid bytes %x", b)
	}
}

func (t boolType) decodeNested(r *reader) (any, error) {
	b, err := r.take(t, 1)
	if err != nil {
		return nil, err
	}
	return t.decodeTop(b)
}

type bytesType struct{ text bool }

var (
	// Bytes is an arbitrary byte buffer.
	Bytes Type = bytesType{}
	// String is a UTF-8 byte buffer, also used for token identifiers.
	String Type = bytesType{text: true}
)

func (b bytesType) Name() string {
	if b.text {
		return "String"
	}
	return "bytes"
}

func (b bytesType) decodeTop(raw []byte) (any, error) {
	if b.text {
		return string(raw), nil
	}
	return append([]byte{}, raw...), nil
}

func (b bytesType) decodeNested(r *reader) (any, error) {
	n, err := r.length(b)
	if err != nil {
		return nil, err
	}
	raw, err := r.take(b, n)
	if err != nil {
		return nil, err
	}
	return b.decodeTop(raw)
}

type addressType struct{}

// Address is a raw 32-byte address.
var Address Type = addressType{}

func (addressType) Name() string { return "Address" }

func (t addressType) decodeTop(b []byte) (any, error) {
	a, err := address.FromBytes(b)
	if err != nil {
		return nil, decodeErr(t, "%v", err)
	}
	return a, nil
}

func (t addressType) decodeNested(r *reader) (any, error) {
	b, err := r.take(t, address.Length)
	if err != nil {
		return nil, err
	}
	return t.decodeTop(b)
}

type optionType struct{ inner Type }

// Option wraps a value that may be absent.
func Option(inner Type) Type { return optionType{inner} }

func (o optionType) Name() string { return "Option<" + o.inner.Name() + ">" }

func (o optionType) decodeTop(b []byte) (any, error) {
	if len(b) == 0 {
		return nil, nil
	}
	if b[0] != 1 {
		return nil, decodeErr(o, "invalid tag %#x", b[0])
	}
	return DecodeNested(b[1:], o.inner)
}

func (o optionType) decodeNested(r *reader) (any, error) {
	tag, err := r.take(o, 1)
	if err != nil {
		return nil, err
	}
	switch tag[0] {
	case 0:
		return nil, nil
	case 1:
		return o.inner.decodeNested(r)
	default:
		return nil, decodeErr(o, "invalid tag %#x", tag[0])
	}
}

type listType struct{ inner Type }

// List is a homogeneous sequence. Top-encoded lists are the concatenation of
// the nested items; nested lists carry a 4-byte item count.
func List(inner Type) Type { return listType{inner} }

func (l listType) Name() string { return "List<" + l.inner.Name() + ">" }

func (l listType) decodeTop(b []byte) (any, error) {
	r := &reader{buf: b}
	items := []any{}
	for r.remaining() > 0 {
		start := r.pos
		v, err := l.inner.decodeNested(r)
		if err != nil {
			return nil, err
		}
		if r.pos == start {
			return nil, decodeErr(l, "item decoded from no bytes")
		}
		items = append(items, v)
	}
	return items, nil
}

func (l listType) decodeNested(r *reader) (any, error) {
	n, err := r.length(l)
	if err != nil {
		return nil, err
	}
	// A count above the bytes left cannot be genuine.
	if n > r.remaining() {
		return nil, decodeErr(l, "%d items announced, %d bytes left", n, r.remaining())
	}
	items := make([]any, 0, n)
	for i := 0; i < n; i++ {
		v, err := l.inner.decodeNested(r)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, nil
}

type tupleType struct{ fields []Type }

// Tuple is a fixed sequence of nested-encoded fields, the shape of a struct.
func Tuple(fields ...Type) Type { return tupleType{fields} }

func (t tupleType) Name() string {
	names := make([]string, len(t.fields))
	for i, f := range t.fields {
		names[i] = f.Name()
	}
	return "tuple<" + strings.Join(names, ",") + ">"
}

func (t tupleType) decodeTop(b []byte) (any, error) {
	return DecodeNested(b, t)
}

func (t tupleType) decodeNested(r *reader) (any, error) {
	out := make([]any, 0, len(t.fields))
	for _, f := range t.fields {
		v, err := f.decodeNested(r)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
