package mock

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/dmagro/novax/internal/address"
	"github.com/dmagro/novax/internal/payment"
)

// ErrMalformedTransfer is returned when built-in transfer arguments cannot
// be parsed.
var ErrMalformedTransfer = errors.New("mock: malformed built-in transfer")

// execution is a normalized call unpacked into what actually happens: who
// receives which payments and which function then runs there.
type execution struct {
	sender    address.Address
	dest      address.Address
	egld      *big.Int
	transfers []payment.TokenTransfer
	function  string
	args      [][]byte
}

// unpack reverses call normalization. Built-in transfer functions are
// parsed back into their transfers and inner call; any other call is taken
// as is.
func unpack(call payment.CanonicalCall) (*execution, error) {
	receiver, err := address.FromBech32(call.Receiver)
	if err != nil {
		return nil, fmt.Errorf("mock: receiver: %w", err)
	}
	ex := &execution{sender: call.Sender, dest: receiver, egld: call.EgldValue}
	if ex.egld == nil {
		ex.egld = new(big.Int)
	}
	args := call.Arguments

	switch call.Function {
	case payment.ESDTTransferFunc:
		if len(args) < 2 {
			return nil, fmt.Errorf("%w: %s needs 2 arguments", ErrMalformedTransfer, call.Function)
		}
		ex.transfers = []payment.TokenTransfer{{
			Identifier: string(args[0]),
			Amount:     new(big.Int).SetBytes(args[1]),
		}}
		ex.setInner(args[2:])

	case payment.ESDTNFTTransferFunc:
		if len(args) < 4 {
			return nil, fmt.Errorf("%w: %s needs 4 arguments", ErrMalformedTransfer, call.Function)
		}
		dest, err := address.FromBytes(args[3])
		if err != nil {
			return nil, fmt.Errorf("%w: destination: %v", ErrMalformedTransfer, err)
		}
		nonce, err := uintArg(args[1])
		if err != nil {
			return nil, err
		}
		ex.dest = dest
		ex.transfers = []payment.TokenTransfer{{
			Identifier: string(args[0]),
			Nonce:      nonce,
			Amount:     new(big.Int).SetBytes(args[2]),
		}}
		ex.setInner(args[4:])

	case payment.MultiESDTNFTTransferFunc:
		if len(args) < 2 {
			return nil, fmt.Errorf("%w: %s needs 2 arguments", ErrMalformedTransfer, call.Function)
		}
		dest, err := address.FromBytes(args[0])
		if err != nil {
			return nil, fmt.Errorf("%w: destination: %v", ErrMalformedTransfer, err)
		}
		count, err := uintArg(args[1])
		if err != nil {
			return nil, err
		}
		rest := args[2:]
		if uint64(len(rest)) < 3*count {
			return nil, fmt.Errorf("%w: %d transfers announced, %d arguments", ErrMalformedTransfer, count, len(rest))
		}
		ex.dest = dest
		for i := uint64(0); i < count; i++ {
			nonce, err := uintArg(rest[3*i+1])
			if err != nil {
				return nil, err
			}
			ex.transfers = append(ex.transfers, payment.TokenTransfer{
				Identifier: string(rest[3*i]),
				Nonce:      nonce,
				Amount:     new(big.Int).SetBytes(rest[3*i+2]),
			})
		}
		ex.setInner(rest[3*count:])

	default:
		ex.function = call.Function
		ex.args = args
	}
	return ex, nil
}

func (ex *execution) setInner(rest [][]byte) {
	if len(rest) == 0 {
		return
	}
	ex.function = string(rest[0])
	ex.args = rest[1:]
}

func uintArg(b []byte) (uint64, error) {
	if len(b) > 8 {
		return 0, fmt.Errorf("%w: integer of %d bytes", ErrMalformedTransfer, len(b))
	}
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v, nil
}

// run moves the payments and calls the destination function on s.
func (ex *execution) run(s *state, registry *Registry, readOnly bool) ([][]byte, error) {
	if err := s.moveEgld(ex.sender, ex.dest, ex.egld); err != nil {
		return nil, err
	}
	for _, tr := range ex.transfers {
		if err := s.moveToken(ex.sender, ex.dest, TokenKey{tr.Identifier, tr.Nonce}, tr.Amount); err != nil {
			return nil, err
		}
	}
	if ex.function == "" {
		return nil, nil
	}

	acc, err := s.get(ex.dest)
	if err != nil {
		return nil, err
	}
	if !acc.IsContract() {
		return nil, fmt.Errorf("%w: %s", ErrNotAContract, ex.dest)
	}
	contract, err := registry.Lookup(acc.CodeID)
	if err != nil {
		return nil, err
	}

	ctx := &Context{
		state:    s,
		self:     acc,
		caller:   ex.sender,
		egld:     ex.egld,
		payments: ex.transfers,
		readOnly: readOnly,
	}
	return contract.Call(ctx, ex.function, ex.args)
}
