package mock

import (
	"fmt"
	"math/big"

	"github.com/dmagro/novax/internal/codec"
)

// AdderCodeID is the code id of the Adder contract.
const AdderCodeID = "adder"

// adderSumKey is the storage key of the running sum.
const adderSumKey = "sum"

// Adder keeps a running sum.
//
//	init(initial: BigUint)
//	add(value: BigUint)
//	getSum() -> BigUint
type Adder struct{}

// Call implements Contract.
func (Adder) Call(ctx *Context, function string, args [][]byte) ([][]byte, error) {
	switch function {
	case InitFunction:
		if len(args) != 1 {
			return nil, Fail("init expects 1 argument, got %d", len(args))
		}
		ctx.Set(adderSumKey, args[0])
		return nil, nil

	case "add":
		if len(args) != 1 {
			return nil, Fail("add expects 1 argument, got %d", len(args))
		}
		if ctx.ReadOnly() {
			return nil, Fail("add is not a view")
		}
		sum := new(big.Int).SetBytes(ctx.Get(adderSumKey))
		sum.Add(sum, new(big.Int).SetBytes(args[0]))
		ctx.Set(adderSumKey, sum.Bytes())
		return nil, nil

	case "getSum":
		if len(args) != 0 {
			return nil, Fail("getSum expects no arguments, got %d", len(args))
		}
		sum := new(big.Int).SetBytes(ctx.Get(adderSumKey))
		out, err := codec.EncodeBigUint(sum)
		if err != nil {
			return nil, err
		}
		return [][]byte{out}, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFunction, function)
	}
}
