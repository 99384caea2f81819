// Package payment folds native-coin and token payments into the canonical
// call shape the network expects, and serializes calls into the "@"-delimited
// transaction data string.
package payment

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/dmagro/novax/internal/address"
	"github.com/dmagro/novax/internal/codec"
)

// Built-in function names used for token transfers.
const (
	ESDTTransferFunc         = "ESDTTransfer"
	ESDTNFTTransferFunc      = "ESDTNFTTransfer"
	MultiESDTNFTTransferFunc = "MultiESDTNFTTransfer"
)

// ErrEgldAndEsdtPaymentsDetected is returned when a call carries both a
// native amount and token transfers. The two travel on different wire
// channels and cannot be combined in one transaction.
var ErrEgldAndEsdtPaymentsDetected = errors.New("payment: EGLD and ESDT payments detected in the same call")

// TokenTransfer is a fungible (nonce 0) or non-fungible token payment.
type TokenTransfer struct {
	Identifier string   `json:"identifier"`
	Nonce      uint64   `json:"nonce"`
	Amount     *big.Int `json:"amount"`
}

// IsFungible reports whether the transfer is for a fungible token.
func (t TokenTransfer) IsFungible() bool { return t.Nonce == 0 }

// CanonicalCall describes a contract call before and after normalization.
// An empty Function means no function is called: the call is a plain
// transfer, or, for deploys, the arguments carry the code.
type CanonicalCall struct {
	Sender        address.Address
	Receiver      string
	Function      string
	Arguments     [][]byte
	EgldValue     *big.Int
	EsdtTransfers []TokenTransfer
}

// Normalize returns a new call where token transfers are folded into
// built-in transfer function arguments. The result carries either a native
// amount or transfer-prefixed arguments, never both, and no EsdtTransfers, so
// normalizing it again returns it unchanged.
func (c CanonicalCall) Normalize() (CanonicalCall, error) {
	egld := c.EgldValue
	if egld == nil {
		egld = new(big.Int)
	}

	if egld.Sign() > 0 && len(c.EsdtTransfers) > 0 {
		return CanonicalCall{}, ErrEgldAndEsdtPaymentsDetected
	}

	out := CanonicalCall{
		Sender:    c.Sender,
		Receiver:  c.Receiver,
		Function:  c.Function,
		Arguments: copyArgs(c.Arguments),
		EgldValue: new(big.Int).Set(egld),
	}

	switch n := len(c.EsdtTransfers); {
	case n == 0:
		return out, nil

	case n == 1 && c.EsdtTransfers[0].IsFungible():
		tr := c.EsdtTransfers[0]
		amount, err := encodeAmount(tr)
		if err != nil {
			return CanonicalCall{}, err
		}
		out.Function = ESDTTransferFunc
		out.Arguments = append([][]byte{[]byte(tr.Identifier), amount}, c.innerCall()...)
		return out, nil

	case n == 1:
		tr := c.EsdtTransfers[0]
		receiver, err := address.FromBech32(c.Receiver)
		if err != nil {
			return CanonicalCall{}, fmt.Errorf("payment: receiver: %w", err)
		}
		amount, err := encodeAmount(tr)
		if err != nil {
			return CanonicalCall{}, err
		}
		out.Receiver = c.Sender.Bech32()
		out.Function = ESDTNFTTransferFunc
		out.Arguments = append([][]byte{
			[]byte(tr.Identifier),
			codec.EncodeUint64(tr.Nonce),
			amount,
			receiver.Bytes(),
		}, c.innerCall()...)
		return out, nil

	default:
		receiver, err := address.FromBech32(c.Receiver)
		if err != nil {
			return CanonicalCall{}, fmt.Errorf("payment: receiver: %w", err)
		}
		args := [][]byte{receiver.Bytes(), codec.EncodeUint64(uint64(n))}
		for _, tr := range c.EsdtTransfers {
			amount, err := encodeAmount(tr)
			if err != nil {
				return CanonicalCall{}, err
			}
			args = append(args, []byte(tr.Identifier), codec.EncodeUint64(tr.Nonce), amount)
		}
		out.Receiver = c.Sender.Bech32()
		out.Function = MultiESDTNFTTransferFunc
		out.Arguments = append(args, c.innerCall()...)
		return out, nil
	}
}

// innerCall is the function name and the original arguments, appended after
// the transfer arguments. Without a function the original arguments are
// dropped together with it.
func (c CanonicalCall) innerCall() [][]byte {
	if c.Function == "" {
		return nil
	}
	return append([][]byte{[]byte(c.Function)}, copyArgs(c.Arguments)...)
}

// TransactionData joins the function name and the hex encoded arguments with
// "@". An empty argument is kept as an empty segment.
func (c CanonicalCall) TransactionData() string {
	segments := make([]string, 0, len(c.Arguments)+1)
	if c.Function != "" {
		segments = append(segments, c.Function)
	}
	for _, arg := range c.Arguments {
		segments = append(segments, hex.EncodeToString(arg))
	}
	return strings.Join(segments, "@")
}

func encodeAmount(tr TokenTransfer) ([]byte, error) {
	b, err := codec.EncodeBigUint(tr.Amount)
	if err != nil {
		return nil, fmt.Errorf("payment: transfer %s amount: %w", tr.Identifier, err)
	}
	return b, nil
}

func copyArgs(args [][]byte) [][]byte {
	if args == nil {
		return nil
	}
	out := make([][]byte, len(args))
	for i, a := range args {
		out[i] = append([]byte{}, a...)
	}
	return out
}
