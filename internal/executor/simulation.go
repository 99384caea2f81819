package executor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/dmagro/novax/internal/address"
	"github.com/dmagro/novax/internal/codec"
	"github.com/dmagro/novax/internal/gateway"
	"github.com/dmagro/novax/internal/payment"
	"github.com/dmagro/novax/internal/receipt"
)

// defaultSimulationGasLimit is the per-transaction maximum, used when a
// simulated call does not set a gas limit.
const defaultSimulationGasLimit = 600_000_000

// SimulationOptions configures a Simulation backend.
type SimulationOptions struct {
	GasPrice uint64
	Logger   zerolog.Logger
}

// Simulation dry-runs calls on a gateway. Nothing is signed and no state
// changes, so errors never need PostSubmissionError.
type Simulation struct {
	client  *gateway.Client
	sender  address.Address
	builder txBuilder
	logger  zerolog.Logger
}

var _ Executor = (*Simulation)(nil)

// NewSimulation creates a backend simulating calls sent by sender.
func NewSimulation(client *gateway.Client, sender address.Address, opts SimulationOptions) *Simulation {
	return &Simulation{
		client:  client,
		sender:  sender,
		builder: txBuilder{client: client, gasPrice: opts.GasPrice},
		logger:  opts.Logger,
	}
}

// ExecuteQuery implements QueryExecutor.
func (s *Simulation) ExecuteQuery(ctx context.Context, req *QueryRequest, shape codec.Type) (any, error) {
	return queryGateway(ctx, s.client, req, shape)
}

// ExecuteCall implements TransactionExecutor.
func (s *Simulation) ExecuteCall(ctx context.Context, req *CallRequest, shape codec.Type) (*CallResult, error) {
	r, err := s.simulate(ctx, req.Canonical(s.sender), req.GasLimit)
	if err != nil {
		return nil, err
	}
	result, err := decodeReceipt(r, shape)
	if err != nil {
		return nil, err
	}
	return &CallResult{Receipt: r, Result: result}, nil
}

// ExecuteDeploy implements DeployExecutor.
func (s *Simulation) ExecuteDeploy(ctx context.Context, req *DeployRequest, shape codec.Type) (address.Address, *CallResult, error) {
	r, err := s.simulate(ctx, req.Canonical(s.sender), req.GasLimit)
	if err != nil {
		return address.Address{}, nil, err
	}
	addr, err := receipt.FindDeployedAddress(r)
	if err != nil {
		return address.Address{}, nil, err
	}
	result, err := decodeReceipt(r, shape)
	if err != nil {
		return address.Address{}, nil, err
	}
	return addr, &CallResult{Receipt: r, Result: result}, nil
}

func (s *Simulation) simulate(ctx context.Context, call payment.CanonicalCall, gasLimit uint64) (*receipt.Receipt, error) {
	if gasLimit == 0 {
		gasLimit = defaultSimulationGasLimit
	}
	tx, err := s.builder.build(ctx, call, gasLimit)
	if err != nil {
		return nil, err
	}

	raw, err := s.client.SimulateTransaction(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("executor: simulate transaction: %w", err)
	}

	r, err := parseSimulation(raw, s.logger)
	if err != nil {
		return nil, err
	}
	if !receipt.IsSuccess(r) {
		return r, newTransactionFailed(r.Hash, r)
	}
	return r, nil
}

// parseSimulation builds a receipt from a simulation response. The response
// holds either one "result" or a "senderShard" and a "receiverShard" result;
// results within each are keyed by hash.
func parseSimulation(raw []byte, logger zerolog.Logger) (*receipt.Receipt, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("%w: invalid simulation JSON", gateway.ErrParse)
	}
	root := gjson.ParseBytes(raw)

	var shards []gjson.Result
	if res := root.Get("result"); res.Exists() {
		shards = append(shards, res)
	} else {
		for _, key := range []string{"senderShard", "receiverShard"} {
			if res := root.Get(key); res.Exists() {
				shards = append(shards, res)
			}
		}
	}
	if len(shards) == 0 {
		return nil, fmt.Errorf("%w: simulation has no result", gateway.ErrParse)
	}

	r := &receipt.Receipt{Status: receipt.StatusSuccess}
	var events []receipt.Event
	for _, shard := range shards {
		status := shard.Get("status")
		if !status.Exists() {
			return nil, fmt.Errorf("%w: simulation result without status", gateway.ErrParse)
		}
		if r.Hash == "" {
			r.Hash = shard.Get("hash").String()
		}
		if r.Status == receipt.StatusSuccess && status.String() != receipt.StatusSuccess {
			r.Status = status.String()
		}
		if reason := shard.Get("failReason").String(); reason != "" {
			events = append(events, receipt.Event{
				Identifier: receipt.EventSignalError,
				Topics:     [][]byte{nil, []byte(reason)},
			})
		}

		var scrErr error
		shard.Get("scResults").ForEach(func(key, value gjson.Result) bool {
			var scr receipt.SmartContractResult
			if err := json.Unmarshal([]byte(value.Raw), &scr); err != nil {
				scrErr = fmt.Errorf("%w: result %s: %v", gateway.ErrParse, key.String(), err)
				return false
			}
			if scr.Hash == "" {
				scr.Hash = key.String()
			}
			r.SmartContractResults = append(r.SmartContractResults, scr)
			return true
		})
		if scrErr != nil {
			return nil, scrErr
		}

		logs := shard.Get("logs")
		if !logs.IsObject() {
			if logs.Exists() && logs.Type != gjson.Null {
				logger.Warn().Str("logs", logs.Raw).Msg("ignoring simulation logs that are not an object")
			}
			continue
		}
		var l receipt.Logs
		if err := json.Unmarshal([]byte(logs.Raw), &l); err != nil {
			return nil, fmt.Errorf("%w: simulation logs: %v", gateway.ErrParse, err)
		}
		events = append(events, l.Events...)
		if r.Logs == nil {
			r.Logs = &receipt.Logs{Address: l.Address}
		}
	}

	if len(events) > 0 {
		if r.Logs == nil {
			r.Logs = &receipt.Logs{}
		}
		r.Logs.Events = events
	}
	return r, nil
}
