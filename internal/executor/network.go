package executor

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/dmagro/novax/internal/address"
	"github.com/dmagro/novax/internal/codec"
	"github.com/dmagro/novax/internal/gateway"
	"github.com/dmagro/novax/internal/payment"
	"github.com/dmagro/novax/internal/receipt"
	"github.com/dmagro/novax/internal/wallet"
)

// NetworkOptions configures a Network backend.
type NetworkOptions struct {
	PollInterval time.Duration
	PollTimeout  time.Duration
	// GasPrice overrides the network minimum gas price when non-zero.
	GasPrice uint64
	Logger   zerolog.Logger
}

// Network executes calls on a live network through a gateway.
type Network struct {
	client  *gateway.Client
	wallet  wallet.Wallet
	builder txBuilder
	opts    NetworkOptions
}

var _ Executor = (*Network)(nil)

// errPending marks a poll that saw a non-final status.
var errPending = errors.New("transaction pending")

// NewNetwork creates a backend signing with w.
func NewNetwork(client *gateway.Client, w wallet.Wallet, opts NetworkOptions) *Network {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = time.Minute
	}
	return &Network{
		client:  client,
		wallet:  w,
		builder: txBuilder{client: client, gasPrice: opts.GasPrice},
		opts:    opts,
	}
}

// ExecuteQuery implements QueryExecutor.
func (n *Network) ExecuteQuery(ctx context.Context, req *QueryRequest, shape codec.Type) (any, error) {
	return queryGateway(ctx, n.client, req, shape)
}

// ExecuteCall implements TransactionExecutor.
func (n *Network) ExecuteCall(ctx context.Context, req *CallRequest, shape codec.Type) (*CallResult, error) {
	hash, r, err := n.submit(ctx, req.Canonical(n.wallet.Address()), req.GasLimit)
	if err != nil {
		return nil, err
	}

	result, err := decodeReceipt(r, shape)
	if err != nil {
		return nil, &PostSubmissionError{TxHash: hash, Err: err}
	}
	return &CallResult{Receipt: r, Result: result}, nil
}

// ExecuteDeploy implements DeployExecutor.
func (n *Network) ExecuteDeploy(ctx context.Context, req *DeployRequest, shape codec.Type) (address.Address, *CallResult, error) {
	hash, r, err := n.submit(ctx, req.Canonical(n.wallet.Address()), req.GasLimit)
	if err != nil {
		return address.Address{}, nil, err
	}

	addr, err := receipt.FindDeployedAddress(r)
	if err != nil {
		return address.Address{}, nil, &PostSubmissionError{TxHash: hash, Err: err}
	}
	result, err := decodeReceipt(r, shape)
	if err != nil {
		return address.Address{}, nil, &PostSubmissionError{TxHash: hash, Err: err}
	}
	return addr, &CallResult{Receipt: r, Result: result}, nil
}

// submit signs and sends the call once, then waits for its receipt.
func (n *Network) submit(ctx context.Context, call payment.CanonicalCall, gasLimit uint64) (string, *receipt.Receipt, error) {
	tx, err := n.builder.build(ctx, call, gasLimit)
	if err != nil {
		return "", nil, err
	}

	payload, err := tx.SigningPayload()
	if err != nil {
		return "", nil, fmt.Errorf("executor: signing payload: %w", err)
	}
	sig, err := n.wallet.Sign(payload)
	if err != nil {
		return "", nil, fmt.Errorf("executor: sign transaction: %w", err)
	}
	tx.Signature = hex.EncodeToString(sig)

	hash, err := n.client.SendTransaction(ctx, tx)
	if err != nil {
		return "", nil, fmt.Errorf("executor: send transaction: %w", err)
	}
	n.opts.Logger.Info().
		Str("hash", hash).
		Str("receiver", tx.Receiver).
		Uint64("nonce", tx.Nonce).
		Msg("transaction sent")

	r, err := n.wait(ctx, hash)
	if err != nil {
		return hash, nil, &PostSubmissionError{TxHash: hash, Err: err}
	}
	if !receipt.IsSuccess(r) {
		return hash, r, newTransactionFailed(hash, r)
	}
	return hash, r, nil
}

// wait polls the transaction status every PollInterval until it is final,
// then fetches the receipt. It gives up with ErrTimeout after PollTimeout.
func (n *Network) wait(ctx context.Context, hash string) (*receipt.Receipt, error) {
	pctx, cancel := context.WithTimeout(ctx, n.opts.PollTimeout)
	defer cancel()

	policy := backoff.WithContext(backoff.NewConstantBackOff(n.opts.PollInterval), pctx)
	err := backoff.Retry(func() error {
		status, err := n.client.GetTransactionStatus(pctx, hash)
		if err != nil {
			n.opts.Logger.Debug().Err(err).Str("hash", hash).Msg("status poll failed")
			return err
		}
		if !receipt.IsFinal(status) {
			return errPending
		}
		return nil
	}, policy)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if pctx.Err() != nil {
			return nil, ErrTimeout
		}
		return nil, err
	}

	r, err := n.client.GetTransaction(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("executor: fetch transaction: %w", err)
	}
	return r, nil
}
