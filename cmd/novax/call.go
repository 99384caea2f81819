package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmagro/novax/internal/address"
	"github.com/dmagro/novax/internal/executor"
	"github.com/dmagro/novax/internal/mock"
	"github.com/dmagro/novax/internal/output"
)

type callOptions struct {
	contract string
	function string
	args     []string
	typeName string
	sender   string
	gasLimit uint64
	payments paymentFlags
}

func (o *callOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.typeName, "type", "", "ABI type of the result, e.g. BigUint")
	cmd.Flags().StringVar(&o.sender, "sender", "", "Sender address (default: the configured wallet)")
	cmd.Flags().Uint64Var(&o.gasLimit, "gas-limit", 0, "Gas limit (0 = minimum for the data length)")
	o.payments.register(cmd)
}

func callCmd(a *app) *cobra.Command {
	var opts callOptions
	cmd := &cobra.Command{
		Use:   "call <contract> <function> [args...]",
		Short: "Send a contract call transaction and wait for its result",
		Long: `Sign and send a contract call, wait until it is processed and decode its
result. With --mock the call runs on the snapshot ledger, which is written
back afterwards.

Examples:
  novax call erd1qqqqqqqqqqqqqpgq... add int:3 --gas-limit 5000000
  novax call erd1qqqqqqqqqqqqqpgq... deposit --esdt WEGLD-bd4d79:1000
  novax call erd1qqqqqqqqqqqqqpgq... add int:3 --mock world.json --sender erd1...`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.contract, opts.function, opts.args = args[0], args[1], args[2:]
			return runCall(cmd.Context(), a, opts, false)
		},
	}
	opts.register(cmd)
	return cmd
}

func simulateCmd(a *app) *cobra.Command {
	var opts callOptions
	cmd := &cobra.Command{
		Use:   "simulate <contract> <function> [args...]",
		Short: "Dry-run a contract call on the gateway",
		Long: `Simulate a contract call without signing or sending it. The gateway
executes it against current state and nothing is committed.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.contract, opts.function, opts.args = args[0], args[1], args[2:]
			return runCall(cmd.Context(), a, opts, true)
		},
	}
	opts.register(cmd)
	return cmd
}

// txBackend returns the transaction executor for the sender. The returned
// finish function persists mock state and must run after the transaction,
// whatever its outcome.
func (a *app) txBackend(senderFlag string, simulate bool) (executor.Executor, string, func() error, error) {
	noop := func() error { return nil }

	if a.usingMock() {
		if simulate {
			return nil, "", nil, fmt.Errorf("simulate needs a gateway; use query or call with --mock")
		}
		sender, err := a.sender(senderFlag)
		if err != nil {
			return nil, "", nil, err
		}
		world, err := a.mockWorld()
		if err != nil {
			return nil, "", nil, err
		}
		exec := mock.NewExecutor(world, sender, mock.WithLogger(a.logger))
		return exec, "mock", func() error { return a.saveWorld(world) }, nil
	}

	client := a.client()
	if simulate {
		sender, err := a.sender(senderFlag)
		if err != nil {
			return nil, "", nil, err
		}
		return executor.NewSimulation(client, sender, executor.SimulationOptions{
			GasPrice: a.cfg.Network.GasPrice,
			Logger:   a.logger,
		}), "simulation " + client.URL(), noop, nil
	}

	w, err := a.wallet()
	if err != nil {
		return nil, "", nil, err
	}
	if senderFlag != "" && senderFlag != w.Address().Bech32() {
		return nil, "", nil, fmt.Errorf("--sender %s does not match the wallet %s", senderFlag, w.Address())
	}
	return executor.NewNetwork(client, w, executor.NetworkOptions{
		PollInterval: a.cfg.Network.PollInterval,
		PollTimeout:  a.cfg.Network.PollTimeout,
		GasPrice:     a.cfg.Network.GasPrice,
		Logger:       a.logger,
	}), client.URL(), noop, nil
}

func runCall(ctx context.Context, a *app, opts callOptions, simulate bool) error {
	contract, err := address.FromBech32(opts.contract)
	if err != nil {
		return fmt.Errorf("invalid contract: %w", err)
	}
	args, err := parseArgs(opts.args)
	if err != nil {
		return err
	}
	shape, err := parseShape(opts.typeName)
	if err != nil {
		return err
	}
	value, transfers, err := opts.payments.parse()
	if err != nil {
		return err
	}

	exec, name, finish, err := a.txBackend(opts.sender, simulate)
	if err != nil {
		return err
	}

	start := time.Now()
	res, err := exec.ExecuteCall(ctx, &executor.CallRequest{
		Contract:      contract,
		Function:      opts.function,
		Arguments:     args,
		GasLimit:      opts.gasLimit,
		EgldValue:     value,
		EsdtTransfers: transfers,
	}, shape)
	latency := time.Since(start)
	if ferr := finish(); ferr != nil {
		return errors.Join(err, ferr)
	}

	cd := &output.CallDisplay{Contract: contract, Function: opts.function, Backend: name, Latency: latency}
	return a.renderOutcome(cd, res, err)
}

// renderOutcome renders a transaction result, or the receipt of a failed
// transaction before returning its error.
func (a *app) renderOutcome(cd *output.CallDisplay, res *executor.CallResult, err error) error {
	var failed *executor.TransactionFailedError
	switch {
	case err == nil:
		cd.Receipt, cd.Value = res.Receipt, res.Result
	case errors.As(err, &failed):
		cd.Receipt = failed.Receipt
	default:
		var post *executor.PostSubmissionError
		if errors.As(err, &post) {
			a.logger.Warn().Str("hash", post.TxHash).Msg("transaction was submitted but its outcome is unknown")
		}
		return err
	}

	if a.format == output.JSON {
		if rerr := output.RenderCallJSON(a.out, cd); rerr != nil {
			return rerr
		}
	} else {
		output.RenderCallTerminal(a.out, cd)
	}
	return err
}

type deployOptions struct {
	code        string
	args        []string
	typeName    string
	sender      string
	gasLimit    uint64
	value       string
	upgradeable bool
	readable    bool
	payable     bool
	payableBySC bool
	simulate    bool
}

func deployCmd(a *app) *cobra.Command {
	var opts deployOptions
	cmd := &cobra.Command{
		Use:   "deploy <code> [args...]",
		Short: "Deploy a contract",
		Long: `Deploy contract code and print the new contract address. <code> is a
.wasm file, or with --mock the code id of a registered mock contract.

Examples:
  novax deploy adder.wasm int:0 --gas-limit 60000000
  novax deploy adder int:5 --mock world.json --sender erd1...`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.code, opts.args = args[0], args[1:]
			return runDeploy(cmd.Context(), a, opts)
		},
	}
	cmd.Flags().StringVar(&opts.typeName, "type", "", "ABI type of the init result")
	cmd.Flags().StringVar(&opts.sender, "sender", "", "Sender address (default: the configured wallet)")
	cmd.Flags().Uint64Var(&opts.gasLimit, "gas-limit", 0, "Gas limit (0 = minimum for the data length)")
	cmd.Flags().StringVar(&opts.value, "value", "", "Native amount to send, in atomic units")
	cmd.Flags().BoolVar(&opts.upgradeable, "upgradeable", true, "Code metadata: upgradeable")
	cmd.Flags().BoolVar(&opts.readable, "readable", true, "Code metadata: readable")
	cmd.Flags().BoolVar(&opts.payable, "payable", false, "Code metadata: payable")
	cmd.Flags().BoolVar(&opts.payableBySC, "payable-by-sc", false, "Code metadata: payable by smart contracts")
	cmd.Flags().BoolVar(&opts.simulate, "simulate", false, "Dry-run the deploy on the gateway")
	return cmd
}

func runDeploy(ctx context.Context, a *app, opts deployOptions) error {
	var code []byte
	if a.usingMock() {
		code = []byte(opts.code)
	} else {
		b, err := os.ReadFile(opts.code)
		if err != nil {
			return fmt.Errorf("failed to read code: %w", err)
		}
		code = b
	}
	args, err := parseArgs(opts.args)
	if err != nil {
		return err
	}
	shape, err := parseShape(opts.typeName)
	if err != nil {
		return err
	}
	value, err := parseValue(opts.value)
	if err != nil {
		return err
	}

	exec, name, finish, err := a.txBackend(opts.sender, opts.simulate)
	if err != nil {
		return err
	}

	start := time.Now()
	addr, res, err := exec.ExecuteDeploy(ctx, &executor.DeployRequest{
		Code: code,
		Metadata: executor.CodeMetadata{
			Upgradeable: opts.upgradeable,
			Readable:    opts.readable,
			Payable:     opts.payable,
			PayableBySC: opts.payableBySC,
		},
		Arguments: args,
		GasLimit:  opts.gasLimit,
		EgldValue: value,
	}, shape)
	latency := time.Since(start)
	if ferr := finish(); ferr != nil {
		return errors.Join(err, ferr)
	}

	cd := &output.CallDisplay{Backend: name, Latency: latency}
	if err == nil {
		cd.Deployed = &addr
	}
	return a.renderOutcome(cd, res, err)
}
