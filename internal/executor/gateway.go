package executor

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"

	"golang.org/x/sync/errgroup"

	"github.com/dmagro/novax/internal/address"
	"github.com/dmagro/novax/internal/codec"
	"github.com/dmagro/novax/internal/gateway"
	"github.com/dmagro/novax/internal/payment"
)

// transactionVersion is used when the network reports no minimum.
const transactionVersion = 1

// queryGateway runs req through the gateway's VM query endpoint.
func queryGateway(ctx context.Context, client *gateway.Client, req *QueryRequest, shape codec.Type) (any, error) {
	call, err := req.Canonical().Normalize()
	if err != nil {
		return nil, err
	}

	q := &gateway.VMQuery{
		ScAddress: call.Receiver,
		FuncName:  call.Function,
		Value:     call.EgldValue.String(),
		Args:      hexArgs(call.Arguments),
	}
	if !req.Caller.IsZero() {
		q.Caller = req.Caller.Bech32()
	}

	res, err := client.QueryContract(ctx, q)
	if err != nil {
		return nil, err
	}
	return DecodeParts(res.ReturnData, shape)
}

func hexArgs(args [][]byte) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = hex.EncodeToString(a)
	}
	return out
}

// txBuilder turns normalized calls into unsigned gateway transactions.
type txBuilder struct {
	client   *gateway.Client
	gasPrice uint64
}

type chainState struct {
	nonce   uint64
	network *gateway.NetworkConfig
}

// fetchState reads the sender nonce and the network parameters concurrently.
func (b *txBuilder) fetchState(ctx context.Context, sender address.Address) (*chainState, error) {
	var st chainState

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		acc, err := b.client.GetAccount(gctx, sender.Bech32())
		if err != nil {
			return fmt.Errorf("fetch account %s: %w", sender, err)
		}
		st.nonce = acc.Nonce
		return nil
	})
	g.Go(func() error {
		cfg, err := b.client.GetNetworkConfig(gctx)
		if err != nil {
			return fmt.Errorf("fetch network config: %w", err)
		}
		st.network = cfg
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &st, nil
}

// build normalizes call and fills in the envelope. A zero gasLimit is
// replaced by the minimum gas for the data length.
func (b *txBuilder) build(ctx context.Context, call payment.CanonicalCall, gasLimit uint64) (*gateway.Transaction, error) {
	normalized, err := call.Normalize()
	if err != nil {
		return nil, err
	}

	st, err := b.fetchState(ctx, normalized.Sender)
	if err != nil {
		return nil, err
	}

	data := normalized.TransactionData()
	if gasLimit == 0 {
		gasLimit = st.network.MinGasLimit + st.network.GasPerDataByte*uint64(len(data))
	}
	gasPrice := b.gasPrice
	if gasPrice == 0 {
		gasPrice = st.network.MinGasPrice
	}
	version := st.network.MinTransactionVersion
	if version == 0 {
		version = transactionVersion
	}

	tx := &gateway.Transaction{
		Nonce:    st.nonce,
		Value:    valueString(normalized.EgldValue),
		Receiver: normalized.Receiver,
		Sender:   normalized.Sender.Bech32(),
		GasPrice: gasPrice,
		GasLimit: gasLimit,
		ChainID:  st.network.ChainID,
		Version:  version,
	}
	if data != "" {
		tx.Data = []byte(data)
	}
	return tx, nil
}

func valueString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
