package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmagro/novax/internal/address"
	"github.com/dmagro/novax/internal/codec"
	"github.com/dmagro/novax/internal/executor"
	"github.com/dmagro/novax/internal/output"
	"github.com/dmagro/novax/internal/stats"
)

type queryOptions struct {
	contract string
	function string
	args     []string
	typeName string
	caller   string
	payments paymentFlags
	repeat   int
	parallel bool
}

func queryCmd(a *app) *cobra.Command {
	var opts queryOptions

	cmd := &cobra.Command{
		Use:   "query <contract> <function> [args...]",
		Short: "Run a read-only contract function",
		Long: `Run a contract view function and decode its return data.

Arguments are hex by default; use int:N, str:S or an erd1 address for other
kinds. --type decodes the result with an ABI type name, otherwise the raw
return-data parts are shown.

Examples:
  novax query erd1qqqqqqqqqqqqqpgq... getSum --type BigUint
  novax query erd1qqqqqqqqqqqqqpgq... getSum --repeat 50 --parallel`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.contract, opts.function, opts.args = args[0], args[1], args[2:]
			return runQuery(cmd.Context(), a, opts)
		},
	}

	cmd.Flags().StringVar(&opts.typeName, "type", "", "ABI type of the result, e.g. BigUint or variadic<Address>")
	cmd.Flags().StringVar(&opts.caller, "caller", "", "Address the query runs as")
	cmd.Flags().IntVar(&opts.repeat, "repeat", 1, "Run the query N times and report tail latency")
	cmd.Flags().BoolVar(&opts.parallel, "parallel", false, "With --repeat, run the queries concurrently")
	opts.payments.register(cmd)
	return cmd
}

func runQuery(ctx context.Context, a *app, opts queryOptions) error {
	if opts.repeat < 1 {
		return fmt.Errorf("--repeat must be >= 1")
	}
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
	req := &executor.QueryRequest{
		Contract:      contract,
		Function:      opts.function,
		Arguments:     args,
		EgldValue:     value,
		EsdtTransfers: transfers,
	}
	if opts.caller != "" {
		if req.Caller, err = address.FromBech32(opts.caller); err != nil {
			return fmt.Errorf("invalid caller: %w", err)
		}
	}

	backend, name, err := a.queryBackend(ctx)
	if err != nil {
		return err
	}

	rec := &stats.Recorder{}
	timed := &timedQuery{inner: backend, rec: rec}
	var (
		result  any
		lastErr error
	)
	if opts.parallel && opts.repeat > 1 {
		batch := make([]executor.BatchQuery, opts.repeat)
		for i := range batch {
			batch[i] = executor.BatchQuery{Request: req, Shape: shape}
		}
		for _, r := range executor.QueryAll(ctx, timed, batch) {
			if r.Err != nil {
				lastErr = r.Err
				continue
			}
			result = r.Value
		}
	} else {
		for i := 0; i < opts.repeat; i++ {
			v, err := timed.ExecuteQuery(ctx, req, shape)
			if err != nil {
				lastErr = err
				continue
			}
			result = v
		}
	}

	summary := rec.Summary()
	if summary.Count == 0 {
		return lastErr
	}
	if lastErr != nil {
		a.logger.Warn().Err(lastErr).Int("failed", summary.Errors).Msg("some queries failed")
	}
	qd := &output.QueryDisplay{
		Contract: contract,
		Function: opts.function,
		Backend:  name,
		Value:    result,
		Latency:  summary.P50,
	}
	if a.format == output.JSON {
		if err := output.RenderQueryJSON(a.out, qd); err != nil {
			return err
		}
		if opts.repeat > 1 {
			return output.RenderLatencyJSON(a.out, summary)
		}
		return nil
	}
	output.RenderQueryTerminal(a.out, qd)
	if opts.repeat > 1 {
		output.RenderLatencyTerminal(a.out, summary)
	}
	return nil
}

// timedQuery records the latency of every query it runs.
type timedQuery struct {
	inner executor.QueryExecutor
	rec   *stats.Recorder
}

func (t *timedQuery) ExecuteQuery(ctx context.Context, req *executor.QueryRequest, shape codec.Type) (any, error) {
	start := time.Now()
	v, err := t.inner.ExecuteQuery(ctx, req, shape)
	t.rec.Record(time.Since(start), err)
	return v, err
}
