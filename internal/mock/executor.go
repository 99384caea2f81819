package mock

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/sha3"

	"github.com/dmagro/novax/internal/address"
	"github.com/dmagro/novax/internal/codec"
	"github.com/dmagro/novax/internal/executor"
	"github.com/dmagro/novax/internal/gateway"
	"github.com/dmagro/novax/internal/receipt"
)

// Option configures an Executor.
type Option func(*Executor)

// WithSkipDeserialization installs a hook deciding, per called function,
// whether the result of a call is left undecoded. Calls it approves return
// a nil Result whatever shape is requested.
func WithSkipDeserialization(skip func(function string) bool) Option {
	return func(e *Executor) { e.skipDecode = skip }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// Executor runs calls against a World as sender. It runs inline and does
// no I/O.
type Executor struct {
	world      *World
	sender     address.Address
	skipDecode func(function string) bool
	logger     zerolog.Logger
}

var _ executor.Executor = (*Executor)(nil)

// NewExecutor creates a backend sending transactions from sender.
func NewExecutor(world *World, sender address.Address, opts ...Option) *Executor {
	e := &Executor{
		world:      world,
		sender:     sender,
		skipDecode: func(string) bool { return false },
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// World returns the ledger the executor runs against.
func (e *Executor) World() *World { return e.world }

// ExecuteQuery implements executor.QueryExecutor. The query runs on a copy
// of the world. A contract failure is a *gateway.QueryError, as on the
// network.
func (e *Executor) ExecuteQuery(ctx context.Context, req *executor.QueryRequest, shape codec.Type) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	call, err := req.Canonical().Normalize()
	if err != nil {
		return nil, err
	}
	ex, err := unpack(call)
	if err != nil {
		return nil, err
	}

	var out [][]byte
	err = e.world.view(func(s *state) error {
		out, err = ex.run(s, e.world.registry, true)
		return err
	})
	if err != nil {
		return nil, &gateway.QueryError{ReturnCode: returnCode(err), ReturnMessage: err.Error()}
	}
	return executor.DecodeParts(out, shape)
}

// ExecuteCall implements executor.TransactionExecutor. State changes are
// kept only when the call succeeds; the sender nonce is consumed either way.
func (e *Executor) ExecuteCall(ctx context.Context, req *executor.CallRequest, shape codec.Type) (*executor.CallResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	call, err := req.Canonical(e.sender).Normalize()
	if err != nil {
		return nil, err
	}
	ex, err := unpack(call)
	if err != nil {
		return nil, err
	}
	if err := e.checkSender(); err != nil {
		return nil, err
	}

	var (
		nonce uint64
		out   [][]byte
	)
	runErr := e.world.update(e.consumeNonce(&nonce), func(s *state) error {
		var err error
		out, err = ex.run(s, e.world.registry, false)
		return err
	})
	hash := txHash(e.sender, nonce)
	e.logger.Debug().Str("hash", hash).Str("function", ex.function).Err(runErr).Msg("mock call")
	if runErr != nil {
		r := failedReceipt(hash, e.sender, runErr)
		return nil, &executor.TransactionFailedError{Hash: hash, Status: r.Status, Message: runErr.Error(), Receipt: r}
	}

	r := successReceipt(hash, e.sender, out)
	if e.skipDecode(req.Function) || shape == nil {
		return &executor.CallResult{Receipt: r}, nil
	}
	result, err := receipt.Decode(r, shape)
	if err != nil {
		return nil, &executor.PostSubmissionError{TxHash: hash, Err: err}
	}
	return &executor.CallResult{Receipt: r, Result: result}, nil
}

// ExecuteDeploy implements executor.DeployExecutor. The deploy runs from its
// canonical arguments: the code bytes are the registered code id of the
// contract to deploy, the code metadata is recorded on the new account and
// the init function runs with the remaining arguments.
func (e *Executor) ExecuteDeploy(ctx context.Context, req *executor.DeployRequest, shape codec.Type) (address.Address, *executor.CallResult, error) {
	if err := ctx.Err(); err != nil {
		return address.Address{}, nil, err
	}
	call, err := req.Canonical(e.sender).Normalize()
	if err != nil {
		return address.Address{}, nil, err
	}
	if len(call.Arguments) < 3 {
		return address.Address{}, nil, fmt.Errorf("mock: deploy needs code, vm type and metadata, got %d arguments", len(call.Arguments))
	}
	codeID := string(call.Arguments[0])
	meta, err := executor.ParseCodeMetadata(call.Arguments[2])
	if err != nil {
		return address.Address{}, nil, err
	}
	initArgs := call.Arguments[3:]
	contract, err := e.world.registry.Lookup(codeID)
	if err != nil {
		return address.Address{}, nil, err
	}
	if err := e.checkSender(); err != nil {
		return address.Address{}, nil, err
	}

	var (
		nonce uint64
		addr  address.Address
		out   [][]byte
	)
	runErr := e.world.update(e.consumeNonce(&nonce), func(s *state) error {
		addr = ContractAddress(e.sender, nonce)
		if _, exists := s.accounts[addr]; exists {
			return fmt.Errorf("mock: account %s already exists", addr)
		}
		acc := s.getOrCreate(addr)
		acc.CodeID = codeID
		acc.CodeMetadata = meta
		acc.Owner = e.sender

		if err := s.moveEgld(e.sender, addr, call.EgldValue); err != nil {
			return err
		}
		var err error
		out, err = contract.Call(&Context{
			state:  s,
			self:   acc,
			caller: e.sender,
			egld:   call.EgldValue,
		}, InitFunction, initArgs)
		if errors.Is(err, ErrUnknownFunction) {
			return nil
		}
		return err
	})
	hash := txHash(e.sender, nonce)
	if runErr != nil {
		r := failedReceipt(hash, e.sender, runErr)
		return address.Address{}, nil, &executor.TransactionFailedError{Hash: hash, Status: r.Status, Message: runErr.Error(), Receipt: r}
	}
	e.logger.Debug().Str("hash", hash).Str("address", addr.Bech32()).Msg("mock deploy")

	r := successReceipt(hash, e.sender, out)
	r.Logs.Events = append(r.Logs.Events, receipt.Event{
		Address:    addr.Bech32(),
		Identifier: receipt.EventSCDeploy,
		Topics:     [][]byte{addr.Bytes(), e.sender.Bytes()},
	})

	deployed, err := receipt.FindDeployedAddress(r)
	if err != nil {
		return address.Address{}, nil, &executor.PostSubmissionError{TxHash: hash, Err: err}
	}
	if e.skipDecode(InitFunction) || shape == nil {
		return deployed, &executor.CallResult{Receipt: r}, nil
	}
	result, err := receipt.Decode(r, shape)
	if err != nil {
		return address.Address{}, nil, &executor.PostSubmissionError{TxHash: hash, Err: err}
	}
	return deployed, &executor.CallResult{Receipt: r, Result: result}, nil
}

// consumeNonce increments the sender nonce on the committed state and
// records the nonce the transaction used.
func (e *Executor) consumeNonce(nonce *uint64) func(s *state) error {
	return func(s *state) error {
		acc, err := s.get(e.sender)
		if err != nil {
			return err
		}
		*nonce = acc.Nonce
		acc.Nonce++
		return nil
	}
}

func (e *Executor) checkSender() error {
	if _, ok := e.world.Account(e.sender); !ok {
		return fmt.Errorf("%w: sender %s", ErrUnknownAccount, e.sender)
	}
	return nil
}

// ContractAddress derives the address of the contract deployed by owner at
// the given account nonce: eight zero bytes, the VM type, 20 bytes of the
// keccak hash of owner and nonce, and the last two bytes of owner.
func ContractAddress(owner address.Address, nonce uint64) address.Address {
	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], nonce)

	h := sha3.NewLegacyKeccak256()
	h.Write(owner[:])
	h.Write(n[:])
	sum := h.Sum(nil)

	var a address.Address
	copy(a[8:10], []byte{0x05, 0x00})
	copy(a[10:30], sum[10:30])
	copy(a[30:], owner[30:])
	return a
}

func txHash(sender address.Address, nonce uint64) string {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], nonce)
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte("mock-tx"))
	h.Write(sender[:])
	h.Write(n[:])
	return hex.EncodeToString(h.Sum(nil))
}

func successReceipt(hash string, sender address.Address, out [][]byte) *receipt.Receipt {
	segments := []string{"", "6f6b"}
	for _, part := range out {
		segments = append(segments, hex.EncodeToString(part))
	}
	return &receipt.Receipt{
		Hash:   hash,
		Status: receipt.StatusSuccess,
		SmartContractResults: []receipt.SmartContractResult{{
			Hash:     hash + "-0",
			Receiver: sender.Bech32(),
			Data:     strings.Join(segments, "@"),
		}},
		Logs: &receipt.Logs{Address: sender.Bech32()},
	}
}

func failedReceipt(hash string, sender address.Address, err error) *receipt.Receipt {
	return &receipt.Receipt{
		Hash:   hash,
		Status: receipt.StatusFail,
		Logs: &receipt.Logs{
			Address: sender.Bech32(),
			Events: []receipt.Event{{
				Address:    sender.Bech32(),
				Identifier: receipt.EventSignalError,
				Topics:     [][]byte{sender.Bytes(), []byte(err.Error())},
			}},
		},
	}
}

// returnCode mirrors the VM return codes of a failed query.
func returnCode(err error) string {
	var ue *UserError
	switch {
	case errors.As(err, &ue):
		return "user error"
	case errors.Is(err, ErrUnknownFunction):
		return "function not found"
	case errors.Is(err, ErrUnknownAccount), errors.Is(err, ErrNotAContract):
		return "contract not found"
	default:
		return "execution failed"
	}
}
