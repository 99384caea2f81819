package codec

import (
	"errors"
	"fmt"
	"strings"
)

// multiValue is implemented by types that span several return-data parts.
type multiValue interface {
	Type
	decodeMulti(parts [][]byte) (value any, consumed int, err error)
}

// DecodeMulti decodes ordered return-data parts as t. A plain type consumes
// exactly one part; Multi, Variadic, Optional and Raw consume as many parts as
// their shape requires. Every part must be consumed.
func DecodeMulti(parts [][]byte, t Type) (any, error) {
	mv, ok := t.(multiValue)
	if !ok {
		if len(parts) != 1 {
			return nil, decodeErr(t, "expected 1 return value, got %d", len(parts))
		}
		return t.decodeTop(parts[0])
	}

	v, n, err := mv.decodeMulti(parts)
	if err != nil {
		return nil, err
	}
	if n != len(parts) {
		return nil, decodeErr(t, "%d unconsumed return values", len(parts)-n)
	}
	return v, nil
}

func notNested(t Type) error {
	return decodeErr(t, "multi-value types cannot be nested")
}

type rawType struct{}

// Raw returns the return-data parts unchanged as [][]byte.
var Raw Type = rawType{}

func (rawType) Name() string { return "raw" }

func (rawType) decodeTop(b []byte) (any, error) {
	return [][]byte{append([]byte{}, b...)}, nil
}

func (t rawType) decodeNested(*reader) (any, error) { return nil, notNested(t) }

func (rawType) decodeMulti(parts [][]byte) (any, int, error) {
	out := make([][]byte, len(parts))
	for i, p := range parts {
		out[i] = append([]byte{}, p...)
	}
	return out, len(parts), nil
}

type multiType struct{ items []Type }

// Multi is a fixed number of top-level values, one part each unless an item is
// itself a multi-value type.
func Multi(items ...Type) Type { return multiType{items} }

func (m multiType) Name() string {
	names := make([]string, len(m.items))
	for i, it := range m.items {
		names[i] = it.Name()
	}
	return "multi<" + strings.Join(names, ",") + ">"
}

func (m multiType) decodeTop(b []byte) (any, error) {
	v, _, err := m.decodeMulti([][]byte{b})
	return v, err
}

func (m multiType) decodeNested(*reader) (any, error) { return nil, notNested(m) }

func (m multiType) decodeMulti(parts [][]byte) (any, int, error) {
	out := make([]any, 0, len(m.items))
	pos := 0
	for _, it := range m.items {
		if mv, ok := it.(multiValue); ok {
			v, n, err := mv.decodeMulti(parts[pos:])
			if err != nil {
				return nil, 0, err
			}
			out = append(out, v)
			pos += n
			continue
		}
		if pos >= len(parts) {
			return nil, 0, decodeErr(m, "missing value for %s", it.Name())
		}
		v, err := it.decodeTop(parts[pos])
		if err != nil {
			return nil, 0, err
		}
		out = append(out, v)
		pos++
	}
	return out, pos, nil
}

type variadicType struct{ inner Type }

// Variadic consumes every remaining part as inner.
func Variadic(inner Type) Type { return variadicType{inner} }

func (v variadicType) Name() string { return "variadic<" + v.inner.Name() + ">" }

func (v variadicType) decodeTop(b []byte) (any, error) {
	out, _, err := v.decodeMulti([][]byte{b})
	return out, err
}

func (v variadicType) decodeNested(*reader) (any, error) { return nil, notNested(v) }

func (v variadicType) decodeMulti(parts [][]byte) (any, int, error) {
	out := []any{}
	pos := 0
	for pos < len(parts) {
		if mv, ok := v.inner.(multiValue); ok {
			item, n, err := mv.decodeMulti(parts[pos:])
			if err != nil {
				return nil, 0, err
			}
			if n == 0 {
				break
			}
			out = append(out, item)
			pos += n
			continue
		}
		item, err := v.inner.decodeTop(parts[pos])
		if err != nil {
			return nil, 0, err
		}
		out = append(out, item)
		pos++
	}
	return out, pos, nil
}

type optionalType struct{ inner Type }

// Optional is a top-level value that may be missing entirely. A missing
// value decodes as nil.
func Optional(inner Type) Type { return optionalType{inner} }

func (o optionalType) Name() string { return "optional<" + o.inner.Name() + ">" }

func (o optionalType) decodeTop(b []byte) (any, error) {
	v, _, err := o.decodeMulti([][]byte{b})
	return v, err
}

func (o optionalType) decodeNested(*reader) (any, error) { return nil, notNested(o) }

func (o optionalType) decodeMulti(parts [][]byte) (any, int, error) {
	if len(parts) == 0 {
		return nil, 0, nil
	}
	if mv, ok := o.inner.(multiValue); ok {
		return mv.decodeMulti(parts)
	}
	v, err := o.inner.decodeTop(parts[0])
	if err != nil {
		return nil, 0, err
	}
	return v, 1, nil
}

// ErrUnknownType is returned by Lookup for an ABI type name it cannot map.
var ErrUnknownType = errors.New("codec: unknown ABI type")

var primitives = map[string]Type{
	"u8":                        U8,
	"u16":                       U16,
	"u32":                       U32,
	"u64":                       U64,
	"usize":                     U32,
	"i64":                       I64,
	"BigUint":                   BigUint,
	"BigInt":                    BigInt,
	"bool":                      Bool,
	"bytes":                     Bytes,
	"ManagedBuffer":             Bytes,
	"BoxedBytes":                Bytes,
	"String":                    String,
	"TokenIdentifier":           String,
	"EgldOrEsdtTokenIdentifier": String,
	"Address":                   Address,
	"ManagedAddress":            Address,
}

// Lookup maps an ABI type name such as "BigUint", "List<u64>" or
// "variadic<multi<Address,BigUint>>" to its descriptor.
func Lookup(name string) (Type, error) {
	name = strings.TrimSpace(name)
	if t, ok := primitives[name]; ok {
		return t, nil
	}

	open := strings.IndexByte(name, '<')
	if open <= 0 || !strings.HasSuffix(name, ">") {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
	outer := name[:open]
	args, err := splitGenericArgs(name[open+1 : len(name)-1])
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrUnknownType, name, err)
	}

	inner := make([]Type, len(args))
	for i, a := range args {
		if inner[i], err = Lookup(a); err != nil {
			return nil, err
		}
	}

	single := func(build func(Type) Type) (Type, error) {
		if len(inner) != 1 {
			return nil, fmt.Errorf("%w: %q takes one type argument", ErrUnknownType, name)
		}
		return build(inner[0]), nil
	}

	switch outer {
	case "Option":
		return single(Option)
	case "List", "vec", "ManagedVec":
		return single(List)
	case "variadic", "MultiValueEncoded", "MultiValueManagedVec":
		return single(Variadic)
	case "optional", "OptionalValue":
		return single(Optional)
	case "tuple":
		return Tuple(inner...), nil
	}
	if outer == "multi" || strings.HasPrefix(outer, "MultiValue") {
		return Multi(inner...), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, name)
}

func splitGenericArgs(s string) ([]string, error) {
	var out []string
	depth, start := 0, 0
	for i, c := range s {
		switch c {
		case '<':
			depth++
		case '>':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced brackets")
			}
		case ',':
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced brackets")
	}
	out = append(out, s[start:])
	return out, nil
}
