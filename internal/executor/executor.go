// Package executor defines how contract calls are executed and provides the
// gateway-backed backends: Network submits signed transactions and waits for
// them, Simulation dry-runs them. The in-memory backend lives in package mock.
//
// Every backend takes a codec.Type describing the expected result. A nil
// shape skips result decoding: queries then return the raw [][]byte parts and
// calls return a nil Result.
package executor

import (
	"context"
	"math/big"

	"github.com/dmagro/novax/internal/address"
	"github.com/dmagro/novax/internal/codec"
	"github.com/dmagro/novax/internal/payment"
	"github.com/dmagro/novax/internal/receipt"
)

// QueryRequest is a read-only call of a contract function.
type QueryRequest struct {
	Contract      address.Address
	Function      string
	Arguments     [][]byte
	EgldValue     *big.Int
	EsdtTransfers []payment.TokenTransfer
	// Caller is the address the query runs as. The zero address means none.
	Caller address.Address
}

// Canonical returns the call described by the request.
func (r *QueryRequest) Canonical() payment.CanonicalCall {
	return payment.CanonicalCall{
		Sender:        r.Caller,
		Receiver:      r.Contract.Bech32(),
		Function:      r.Function,
		Arguments:     r.Arguments,
		EgldValue:     r.EgldValue,
		EsdtTransfers: r.EsdtTransfers,
	}
}

// CallRequest is a state-changing call of a contract function.
type CallRequest struct {
	Contract      address.Address
	Function      string
	Arguments     [][]byte
	GasLimit      uint64
	EgldValue     *big.Int
	EsdtTransfers []payment.TokenTransfer
}

// Canonical returns the call described by the request, sent by sender.
func (r *CallRequest) Canonical(sender address.Address) payment.CanonicalCall {
	return payment.CanonicalCall{
		Sender:        sender,
		Receiver:      r.Contract.Bech32(),
		Function:      r.Function,
		Arguments:     r.Arguments,
		EgldValue:     r.EgldValue,
		EsdtTransfers: r.EsdtTransfers,
	}
}

// DeployRequest deploys contract code.
type DeployRequest struct {
	Code      []byte
	Metadata  CodeMetadata
	Arguments [][]byte
	GasLimit  uint64
	EgldValue *big.Int
}

// vmTypeWasm is the VM type argument of a deploy, "0500".
var vmTypeWasm = []byte{0x05, 0x00}

// Canonical returns the deploy transaction of the request: no function, and
// the code, VM type and metadata ahead of the init arguments, sent to the
// zero address.
func (r *DeployRequest) Canonical(sender address.Address) payment.CanonicalCall {
	meta := r.Metadata.Bytes()
	args := make([][]byte, 0, len(r.Arguments)+3)
	args = append(args, r.Code, vmTypeWasm, meta[:])
	args = append(args, r.Arguments...)
	return payment.CanonicalCall{
		Sender:    sender,
		Receiver:  address.Zero.Bech32(),
		Arguments: args,
		EgldValue: r.EgldValue,
	}
}

// CallResult is the outcome of a transaction.
type CallResult struct {
	Receipt *receipt.Receipt
	Result  any
}

// QueryExecutor runs read-only queries. Queries have no side effects and are
// safe to retry and to run concurrently.
type QueryExecutor interface {
	ExecuteQuery(ctx context.Context, req *QueryRequest, shape codec.Type) (any, error)
}

// TransactionExecutor runs state-changing calls. A call is submitted at most
// once.
type TransactionExecutor interface {
	ExecuteCall(ctx context.Context, req *CallRequest, shape codec.Type) (*CallResult, error)
}

// DeployExecutor deploys contracts.
type DeployExecutor interface {
	ExecuteDeploy(ctx context.Context, req *DeployRequest, shape codec.Type) (address.Address, *CallResult, error)
}

// Executor is a backend offering every capability.
type Executor interface {
	QueryExecutor
	TransactionExecutor
	DeployExecutor
}

// DecodeParts decodes return-data parts as shape. A nil shape returns the
// parts unchanged.
func DecodeParts(parts [][]byte, shape codec.Type) (any, error) {
	if shape == nil {
		return parts, nil
	}
	return codec.DecodeMulti(parts, shape)
}

// decodeReceipt decodes the result carried by r. A nil shape skips decoding.
func decodeReceipt(r *receipt.Receipt, shape codec.Type) (any, error) {
	if shape == nil {
		return nil, nil
	}
	return receipt.Decode(r, shape)
}
